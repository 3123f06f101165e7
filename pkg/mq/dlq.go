package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DLQExchangeName = "events.dlq"

	HeaderOriginalError = "x-original-error"
	HeaderFailedAt      = "x-failed-at"
)

// DeclareDLQExchange declares the dead letter exchange.
func DeclareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DLQQueueName names the dead letter queue for a routing key.
func DLQQueueName(routingKey string) string {
	return fmt.Sprintf("%s.dlq", routingKey)
}

// DeclareDLQQueue declares a dead letter queue for a specific routing key.
func DeclareDLQQueue(ch *amqp091.Channel, routingKey string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		DLQQueueName(routingKey),
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}
	return q, nil
}

// PublishToDLQ publishes a poison message to the dead letter exchange.
func (p *Publisher) PublishToDLQ(ctx context.Context, routingKey string, body []byte, originalError string) error {
	headers := amqp091.Table{
		HeaderOriginalError: originalError,
		HeaderFailedAt:      p.now().UTC().Format(time.RFC3339),
	}
	return p.publish(ctx, DLQExchangeName, routingKey, body, headers)
}
