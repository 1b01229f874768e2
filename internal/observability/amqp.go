package observability

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher ships delivery and websocket lifecycle events to the event bus.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, envelope EventEnvelope, headers map[string]string) error
}

// EventPublisher is the AMQP-backed Publisher. It owns one channel on a topic
// exchange shared with the audit pipeline consumers.
type EventPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewEventPublisher dials the broker and declares the topic exchange.
func NewEventPublisher(url, exchange string) (*EventPublisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &EventPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// PublishJSON publishes one envelope as a persistent JSON message.
func (p *EventPublisher) PublishJSON(ctx context.Context, routingKey string, envelope EventEnvelope, headers map[string]string) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	amqpHeaders := amqp.Table{}
	for key, value := range headers {
		amqpHeaders[key] = value
	}

	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqpHeaders,
	})
}

// Close tears down the channel and connection.
func (p *EventPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

var defaultPublisher Publisher

// SetPublisher installs the process-wide event publisher. With none installed
// PublishEvent is a no-op.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent stamps and publishes an envelope through the installed
// publisher. Publish failures bump a counter and are returned to the caller,
// who typically ignores them.
func PublishEvent(ctx context.Context, routingKey string, envelope EventEnvelope, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	if envelope.EmittedAt.IsZero() {
		envelope.EmittedAt = time.Now().UTC()
	}
	err := defaultPublisher.PublishJSON(ctx, routingKey, envelope, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
