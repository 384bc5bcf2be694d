package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type AMQPConfig struct {
	URL      string
	Exchange string
}

// NotificationPublisher emits lifecycle events for the external
// notification service (email/SMS delivery happens there). Publishing is
// fire-and-forget from the ledger's point of view: callers log failures and
// move on, they never roll back money movement over a lost event.
type NotificationPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewNotificationPublisher(cfg AMQPConfig) (*NotificationPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	return &NotificationPublisher{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

// Publish sends one JSON event with the given routing key, e.g.
// "payment.succeeded" or "plan.defaulted".
func (p *NotificationPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if p == nil || p.ch == nil {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *NotificationPublisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
