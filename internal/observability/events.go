package observability

import "time"

// EventEnvelope is the common shape of every event the service publishes:
// delivery lifecycle, websocket lifecycle, and mailbox flushes.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	EmittedAt time.Time   `json:"emitted_at"`
	Payload   interface{} `json:"payload"`
}

// BuildHeaders assembles AMQP headers carrying request correlation ids.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
