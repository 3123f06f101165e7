package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	ExchangeName = "events"

	dialAttempts = 5
	dialBackoff  = 500 * time.Millisecond
)

// NewConnection dials RabbitMQ, retrying with exponential backoff.
func NewConnection(ctx context.Context, url string, logger *zap.Logger) (*amqp091.Connection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backoff := retry.WithMaxRetries(dialAttempts-1, retry.NewExponential(dialBackoff))

	var conn *amqp091.Connection
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		c, err := amqp091.Dial(url)
		if err != nil {
			logger.Warn("RabbitMQ dial failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the events exchange.
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}
