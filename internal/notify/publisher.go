// Package notify publishes booking status changes to RabbitMQ for downstream consumers
// (customer notifications, payment reconciliation).
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"carwash/internal/booking"
)

// QueueStatusChanged is declared durable and addressed through the default exchange.
const QueueStatusChanged = "booking.status_changed"

// Publisher dials per message. Status changes are low volume and the API process holds no
// long-lived broker state.
type Publisher struct {
	URL   string
	Queue string
}

func NewPublisher(url string) *Publisher {
	return &Publisher{URL: url, Queue: QueueStatusChanged}
}

var _ booking.Publisher = (*Publisher)(nil)

func (p *Publisher) PublishStatusChanged(ctx context.Context, ev booking.StatusChanged) error {
	msg, err := message(ev)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func message(ev booking.StatusChanged) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         "booking." + string(ev.To),
		Timestamp:    ev.OccurredAt.UTC(),
		Body:         body,
	}, nil
}
