package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"taskboard/pkg/metrics"
	"taskboard/pkg/util"
)

// BatchHandler processes a batch and returns one error per message, index-aligned.
// A nil error acks the message.
type BatchHandler func(ctx context.Context, msgs []Message) []error

// RetryTracker counts delivery attempts per message.
type RetryTracker interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// DeadLetterer receives messages that will not be retried.
type DeadLetterer interface {
	PublishToDLQ(ctx context.Context, routingKey string, body []byte, originalError string) error
}

// ErrResultMismatch is reported for every message of a batch whose handler
// returned the wrong number of results.
var ErrResultMismatch = errors.New("batch handler returned mismatched result count")

var errDeliveriesClosed = errors.New("delivery channel closed")

type ConsumerConfig struct {
	Queue      string
	RoutingKey string
	BatchSize  int
	BatchWait  time.Duration
	MaxRetries int64
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.BatchWait <= 0 {
		c.BatchWait = time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// BatchConsumer drains one queue in batches with manual ack. Failed messages
// are requeued until MaxRetries, then sent to the DLQ and acked.
type BatchConsumer struct {
	cfg     ConsumerConfig
	conn    *amqp091.Connection
	channel *amqp091.Channel
	handler BatchHandler
	retries RetryTracker
	dlq     DeadLetterer
	logger  *zap.Logger

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewBatchConsumer connects, declares the queue bound to cfg.RoutingKey and its DLQ.
func NewBatchConsumer(ctx context.Context, url string, cfg ConsumerConfig, logger *zap.Logger) (*BatchConsumer, error) {
	c := newBatchConsumer(cfg, logger)

	conn, err := NewConnection(ctx, url, c.logger)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := c.declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	c.conn = conn
	c.channel = ch

	c.logger.Info("Consumer initialized",
		zap.String("routing_key", c.cfg.RoutingKey),
		zap.String("queue", c.cfg.Queue),
		zap.String("exchange", ExchangeName),
		zap.Int("batch_size", c.cfg.BatchSize),
	)
	return c, nil
}

func newBatchConsumer(cfg ConsumerConfig, logger *zap.Logger) *BatchConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchConsumer{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

func (c *BatchConsumer) declare(ch *amqp091.Channel) error {
	if err := DeclareExchange(ch); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}
	if _, err := DeclareDLQQueue(ch, c.cfg.RoutingKey); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		c.cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, c.cfg.RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := ch.Qos(c.cfg.BatchSize*2, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	return nil
}

func (c *BatchConsumer) SetHandler(h BatchHandler) {
	c.handler = h
}

// SetRetryTracker enables bounded retries; without it retryable failures are requeued indefinitely.
func (c *BatchConsumer) SetRetryTracker(r RetryTracker) {
	c.retries = r
}

// SetDeadLetterer enables the DLQ; without it exhausted messages are rejected.
func (c *BatchConsumer) SetDeadLetterer(d DeadLetterer) {
	c.dlq = d
}

// IsConnected reports whether the broker connection is open.
func (c *BatchConsumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop ends consumption and closes the channel and connection.
// Unacked messages are redelivered by the broker.
func (c *BatchConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
		if c.channel != nil {
			_ = c.channel.Close()
		}
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// StartConsuming blocks until ctx is done, Stop is called, or the broker closes the channel.
func (c *BatchConsumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.cfg.Queue,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.cfg.RoutingKey),
		zap.String("queue", c.cfg.Queue),
	)

	err = c.run(ctx, deliveries)
	if errors.Is(err, errDeliveriesClosed) {
		select {
		case <-c.stopped:
			return nil
		default:
		}
	}
	return err
}

// run collects deliveries into batches of up to BatchSize, flushing a partial
// batch BatchWait after its first message arrived.
func (c *BatchConsumer) run(ctx context.Context, deliveries <-chan amqp091.Delivery) error {
	batch := make([]amqp091.Delivery, 0, c.cfg.BatchSize)
	timer := time.NewTimer(c.cfg.BatchWait)
	timer.Stop()
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		c.handleBatch(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stopped:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				flush()
				return errDeliveriesClosed
			}
			batch = append(batch, d)
			if len(batch) == 1 {
				timer.Reset(c.cfg.BatchWait)
			}
			if len(batch) >= c.cfg.BatchSize {
				timer.Stop()
				flush()
			}
		case <-timer.C:
			flush()
		}
	}
}

func (c *BatchConsumer) handleBatch(ctx context.Context, batch []amqp091.Delivery) {
	msgs := make([]Message, len(batch))
	for i, d := range batch {
		msgs[i] = messageFromDelivery(d)
	}

	start := time.Now()
	errs := c.invoke(ctx, msgs)
	elapsed := time.Since(start)

	for i, d := range batch {
		metrics.RecordMQConsumeLatency(d.RoutingKey, c.cfg.Queue, elapsed)
		c.settle(ctx, d, msgs[i], errs[i])
	}
}

// invoke calls the handler, turning a panic or a short result slice into
// an error for every message.
func (c *BatchConsumer) invoke(ctx context.Context, msgs []Message) (errs []error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("queue", c.cfg.Queue),
				zap.Any("panic", r),
			)
			errs = fillErrors(len(msgs), fmt.Errorf("handler panic: %v", r))
		}
	}()

	errs = c.handler(ctx, msgs)
	if len(errs) != len(msgs) {
		c.logger.Error("Handler returned mismatched results",
			zap.String("queue", c.cfg.Queue),
			zap.Int("messages", len(msgs)),
			zap.Int("results", len(errs)),
		)
		return fillErrors(len(msgs), ErrResultMismatch)
	}
	return errs
}

func fillErrors(n int, err error) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = err
	}
	return errs
}

func (c *BatchConsumer) settle(ctx context.Context, d amqp091.Delivery, msg Message, err error) {
	retryKey := util.FormatRetryKey(c.cfg.Queue, msg.ID)
	log := c.logger.With(
		zap.String("queue", c.cfg.Queue),
		zap.String("message_id", msg.ID),
		zap.String("trace_id", msg.TraceID),
	)

	if err == nil {
		if msg.Redelivered && c.retries != nil {
			if rerr := c.retries.Reset(ctx, retryKey); rerr != nil {
				log.Warn("Failed to reset retry count", zap.Error(rerr))
			}
		}
		c.ack(d, log)
		return
	}

	retryable, errType := util.IsRetryableError(err)
	if retryable {
		if c.retries == nil {
			log.Warn("Message failed, requeueing", zap.String("error_type", errType), zap.Error(err))
			c.requeue(d, log)
			return
		}

		count, rerr := c.retries.IncrementAndGet(ctx, retryKey)
		if rerr != nil {
			log.Warn("Retry counter unavailable, requeueing", zap.Error(rerr))
			c.requeue(d, log)
			return
		}
		if util.ShouldRetry(count, c.cfg.MaxRetries, true) {
			log.Warn("Message failed, requeueing",
				zap.String("error_type", errType),
				zap.Int64("retry_count", count),
				zap.Int64("max_retries", c.cfg.MaxRetries),
				zap.Error(err),
			)
			c.requeue(d, log)
			return
		}
	}

	log.Error("Message failed permanently, dead-lettering",
		zap.String("error_type", errType),
		zap.Bool("retryable", retryable),
		zap.Error(err),
	)

	if c.dlq == nil {
		if nerr := d.Nack(false, false); nerr != nil {
			log.Error("Failed to reject message", zap.Error(nerr))
		}
		metrics.IncrementMQMessage(c.cfg.Queue, "rejected")
		return
	}

	if perr := c.dlq.PublishToDLQ(ctx, d.RoutingKey, d.Body, err.Error()); perr != nil {
		log.Error("Failed to publish to DLQ, requeueing", zap.Error(perr))
		c.requeue(d, log)
		return
	}
	if c.retries != nil {
		_ = c.retries.Reset(ctx, retryKey)
	}
	metrics.IncrementMQMessage(c.cfg.Queue, "dead_letter")
	if aerr := d.Ack(false); aerr != nil {
		log.Error("Failed to ack dead-lettered message", zap.Error(aerr))
	}
}

func (c *BatchConsumer) ack(d amqp091.Delivery, log *zap.Logger) {
	metrics.IncrementMQMessage(c.cfg.Queue, "ack")
	if err := d.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
	}
}

func (c *BatchConsumer) requeue(d amqp091.Delivery, log *zap.Logger) {
	metrics.IncrementMQMessage(c.cfg.Queue, "requeue")
	if err := d.Nack(false, true); err != nil {
		log.Error("Failed to nack message", zap.Error(err))
	}
}
