package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Publisher is the subset of the rabbitmq publisher the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter ships audit records to the audit exchange. Emission is
// best-effort; a failed publish is logged and forgotten.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         *zap.Logger
}

// AuditRecord is the wire format consumed by the audit pipeline.
type AuditRecord struct {
	SchemaVersion int     `json:"schema_version"`
	EventType     string  `json:"event_type"`
	OccurredAt    string  `json:"occurred_at"`
	Service       string  `json:"service"`
	Environment   string  `json:"environment"`
	RequestID     string  `json:"request_id"`
	UserID        *string `json:"user_id,omitempty"`
	Level         string  `json:"level"`
	Text          string  `json:"text"`
}

// NewAuditEmitter constructs an AuditEmitter.
func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log *zap.Logger) *AuditEmitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
	}
}

// Emit publishes one audit record.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	if e == nil || e.publisher == nil {
		return
	}

	record := AuditRecord{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Level:         level,
		Text:          text,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, record); err != nil {
		e.log.Warn("audit publish failed", zap.Error(err), zap.String("request_id", requestID))
	}
}
