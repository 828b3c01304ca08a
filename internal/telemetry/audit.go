package telemetry

import (
	"context"
	"fmt"
	"log"
	"time"
)

const schemaVersion = 1

// Publisher is the delivery backend for audit envelopes.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter formats and publishes schema-versioned audit events. A
// nil emitter or nil publisher drops events silently, so call sites
// never need to guard.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

// AuditEnvelope is the wire shape of an audit event.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	ConnID        string       `json:"conn_id,omitempty"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

// AuditPayload carries the human-readable body of an audit event.
type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes one audit event. Publish failures are logged, not
// returned; auditing never blocks the calling operation.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, connID string, userID *string) {
	if e == nil || e.publisher == nil {
		return
	}

	log.Printf("audit emit: level=%s conn_id=%s user_id=%v text=%q", level, connID, userID, text)
	if err := e.publisher.Publish(ctx, e.routingKey, e.envelope(level, text, connID, userID)); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

func (e *AuditEmitter) envelope(level, text, connID string, userID *string) AuditEnvelope {
	return AuditEnvelope{
		SchemaVersion: schemaVersion,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		ConnID:        connID,
		UserID:        userID,
		Payload: AuditPayload{
			Level: level,
			Text:  text,
		},
	}
}

// EmitSession records a session lifecycle transition.
func (e *AuditEmitter) EmitSession(ctx context.Context, state, reason string, userID *string) {
	text := "session " + state
	if reason != "" {
		text += ": " + reason
	}
	e.Emit(ctx, "info", text, "", userID)
}

// EmitSync records the outcome of a reconciliation pass.
func (e *AuditEmitter) EmitSync(ctx context.Context, collection, outcome string, applied int, userID *string) {
	e.Emit(ctx, "info", fmt.Sprintf("sync %s %s applied=%d", collection, outcome, applied), "", userID)
}
