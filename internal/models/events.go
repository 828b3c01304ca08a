package models

import (
	"encoding/json"
	"fmt"
)

// Envelope discriminant values accepted on the stream.
const (
	EnvelopeChat          = "chat"
	EnvelopeMessageStatus = "message-status"
	EnvelopeStatus        = "status"
)

// Envelope is the outer structure of every inbound text frame.
type Envelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// ChatPayload is the body of a "chat" envelope. Content arrives sealed and
// is opened by the dispatcher before persisting.
type ChatPayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	SentAt    string `json:"sent_at"`
}

// StatusPayload is the body of a "message-status"/"status" envelope.
type StatusPayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StreamEvent is the decoded form of an inbound frame.
type StreamEvent struct {
	Kind    EventKind
	Chat    *ChatPayload
	Status  *StatusPayload
	RawType string
}

// EventKind classifies inbound envelopes.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventChat
	EventStatus
)

// DecodeStreamEvent validates the envelope discriminant once at the
// boundary. Unrecognized types decode to EventUnknown rather than an error;
// only malformed JSON fails.
func DecodeStreamEvent(data []byte) (StreamEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return StreamEvent{}, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case EnvelopeChat:
		var p ChatPayload
		if err := json.Unmarshal(env.Message, &p); err != nil {
			return StreamEvent{}, fmt.Errorf("decode chat payload: %w", err)
		}
		return StreamEvent{Kind: EventChat, Chat: &p, RawType: env.Type}, nil
	case EnvelopeMessageStatus, EnvelopeStatus:
		var p StatusPayload
		if err := json.Unmarshal(env.Message, &p); err != nil {
			return StreamEvent{}, fmt.Errorf("decode status payload: %w", err)
		}
		return StreamEvent{Kind: EventStatus, Status: &p, RawType: env.Type}, nil
	default:
		return StreamEvent{Kind: EventUnknown, RawType: env.Type}, nil
	}
}
