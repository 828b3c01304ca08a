package observability

// EventEnvelope is the wire shape of telemetry events published to the
// topic exchange.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// SessionPayload builds the payload of a session lifecycle event.
func SessionPayload(state, connID, reason string) map[string]interface{} {
	return map[string]interface{}{
		"session": map[string]interface{}{
			"state":   state,
			"conn_id": connID,
			"reason":  reason,
		},
	}
}

func BuildHeaders(connID, traceID string) map[string]string {
	headers := map[string]string{}
	if connID != "" {
		headers["conn_id"] = connID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
