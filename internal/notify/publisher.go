package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cafe-pos/internal/logger"
	"cafe-pos/internal/queue"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Exchange is the fanout exchange queue screens bind their own queues to.
const Exchange = "queue_events"

// RabbitMQ publishes queue changes as JSON to a fanout exchange.
type RabbitMQ struct {
	conn Connection
}

func NewRabbitMQ(conn Connection) *RabbitMQ {
	return &RabbitMQ{conn: conn}
}

func (p *RabbitMQ) QueueChanged(ctx context.Context, e queue.Event) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(Exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType: "application/json",
		Type:        string(e.Type),
		Timestamp:   e.OccurredAt,
		Body:        body,
	}
	if rid := logger.RequestIDFrom(ctx); rid != "" {
		msg.CorrelationId = rid
	}

	if err := ch.PublishWithContext(ctx, Exchange, "", false, false, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	logger.FromCtx(ctx).Debug("queue event published",
		zap.String("event", string(e.Type)),
		zap.String("preparation_type", string(e.PreparationType)),
	)
	return nil
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) QueueChanged(context.Context, queue.Event) error { return nil }
