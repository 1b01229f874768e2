package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher publishes audit events for the delivery service.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher connects to RabbitMQ and declares the topic exchange. Any
// failure degrades to a noop publisher: audit events are dropped, delivery
// itself is unaffected.
func NewPublisher(amqpURL, exchange string, log *zap.Logger) Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if amqpURL == "" {
		log.Info("rabbitmq disabled", zap.String("reason", "empty amqp url"))
		return noopPublisher{log: log}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Warn("rabbitmq unavailable, audit events dropped", zap.Error(err))
		return noopPublisher{log: log}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("rabbitmq channel failed, audit events dropped", zap.Error(err))
		_ = conn.Close()
		return noopPublisher{log: log}
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		log.Warn("rabbitmq exchange declare failed, audit events dropped", zap.Error(err))
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{log: log}
	}

	log.Info("rabbitmq connected", zap.String("exchange", exchange))
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, log: log}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *zap.Logger
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		p.log.Warn("rabbitmq publish failed", zap.Error(err), zap.String("routing_key", routingKey))
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	log *zap.Logger
}

func (n noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	n.log.Debug("audit event dropped", zap.String("routing_key", routingKey))
	return nil
}

func (noopPublisher) Close() error {
	return nil
}
