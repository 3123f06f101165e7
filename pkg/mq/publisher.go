package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"taskboard/pkg/circuitbreaker"
	"taskboard/pkg/metrics"
	"taskboard/pkg/trace"
)

// MaxDelay is the longest delay PublishDelayed honours; longer delays are capped.
const MaxDelay = 900 * time.Second

// delay queues outlive their last declaration by this much so queued messages
// always expire before the queue does
const delayQueueGrace = 5 * time.Minute

// channel is the subset of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	IsClosed() bool
	Close() error
}

// errNoChannel is returned when the channel is closed and cannot be reopened.
var errNoChannel = errors.New("amqp channel is closed")

// Publisher publishes JSON events to the events exchange. It is safe for
// concurrent use; calls are serialized on a single channel.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel channel
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
	now     func() time.Time

	// connAlive and openChannel are nil without a broker connection.
	// A channel closed by the broker, e.g. after PRECONDITION_FAILED on a
	// delay queue declare, is replaced by openChannel on next use.
	connAlive   func() bool
	openChannel func() (channel, error)
}

func NewPublisher(ctx context.Context, url string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := NewConnection(ctx, url, logger)
	if err != nil {
		return nil, err
	}

	ch, err := openPublisherChannel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	p := newPublisher(ch, logger)
	p.conn = conn
	p.connAlive = func() bool { return !conn.IsClosed() }
	p.openChannel = func() (channel, error) { return openPublisherChannel(conn) }
	p.watchChannel(ch)
	return p, nil
}

// openPublisherChannel opens a channel and declares the exchanges it publishes to.
func openPublisherChannel(conn *amqp091.Connection) (*amqp091.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := DeclareDLQExchange(ch); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}
	return ch, nil
}

// watchChannel logs the broker's reason when ch is closed under us.
func (p *Publisher) watchChannel(ch *amqp091.Channel) {
	closed := ch.NotifyClose(make(chan *amqp091.Error, 1))
	go func() {
		if amqpErr, ok := <-closed; ok && amqpErr != nil {
			p.logger.Warn("Publisher channel closed by broker",
				zap.Int("code", amqpErr.Code),
				zap.String("reason", amqpErr.Reason),
			)
		}
	}()
}

// ensureChannel returns an open channel, reopening it if the broker closed
// the previous one. Callers must hold p.mu.
func (p *Publisher) ensureChannel() (channel, error) {
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}
	if p.openChannel == nil || (p.connAlive != nil && !p.connAlive()) {
		return nil, errNoChannel
	}

	ch, err := p.openChannel()
	if err != nil {
		return nil, fmt.Errorf("failed to reopen channel: %w", err)
	}
	if amqpCh, ok := ch.(*amqp091.Channel); ok {
		p.watchChannel(amqpCh)
	}
	p.channel = ch
	p.logger.Info("Publisher channel reopened")
	return ch, nil
}

// breakerName labels the publisher's breaker in metrics.
const breakerName = "amqp_publisher"

func newPublisher(ch channel, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := circuitbreaker.DefaultConfig()
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Publisher circuit breaker changed state",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		metrics.SetCircuitBreakerState(breakerName, int(to))
	}

	return &Publisher{
		channel: ch,
		breaker: circuitbreaker.NewCircuitBreaker(cfg),
		logger:  logger,
		now:     time.Now,
	}
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// IsConnected reports whether the connection is alive and a usable channel
// exists, reopening a channel the broker closed.
func (p *Publisher) IsConnected() bool {
	if p.connAlive == nil || !p.connAlive() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.ensureChannel()
	return err == nil
}

// PublishWithContext publishes payload as JSON to the events exchange.
func (p *Publisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", routingKey, err)
	}
	return p.publish(ctx, ExchangeName, routingKey, body, nil)
}

// PublishDelayed makes payload visible on routingKey after delay, capped at MaxDelay.
// The message waits in a per-delay TTL queue that dead-letters into the events
// exchange with the original routing key.
func (p *Publisher) PublishDelayed(ctx context.Context, routingKey string, payload any, delay time.Duration) error {
	secs := DelaySeconds(delay)
	if secs == 0 {
		return p.PublishWithContext(ctx, routingKey, payload)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", routingKey, err)
	}

	queue := DelayQueueName(routingKey, secs)
	ttl := int64(secs) * 1000

	// Redeclared on every publish to refresh x-expires.
	p.mu.Lock()
	ch, err := p.ensureChannel()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to declare delay queue %s: %w", queue, err)
	}
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp091.Table{
			"x-message-ttl":             ttl,
			"x-dead-letter-exchange":    ExchangeName,
			"x-dead-letter-routing-key": routingKey,
			"x-expires":                 ttl + delayQueueGrace.Milliseconds(),
		},
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to declare delay queue %s: %w", queue, err)
	}

	// default exchange routes by queue name
	return p.publish(ctx, "", queue, body, nil)
}

// DelaySeconds clamps delay to [0, MaxDelay] and truncates to whole seconds.
func DelaySeconds(delay time.Duration) int {
	if delay <= 0 {
		return 0
	}
	if delay > MaxDelay {
		delay = MaxDelay
	}
	return int(delay / time.Second)
}

// DelayQueueName names the TTL queue that holds messages for routingKey for secs seconds.
func DelayQueueName(routingKey string, secs int) string {
	return fmt.Sprintf("%s.delay.%d", routingKey, secs)
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, body []byte, headers amqp091.Table) error {
	if headers == nil {
		headers = amqp091.Table{}
	}
	if traceID := trace.FromContext(ctx); traceID != "" {
		headers[TraceHeader] = traceID
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    p.now(),
		Headers:      headers,
	}

	err := p.breaker.Execute(func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		ch, err := p.ensureChannel()
		if err != nil {
			return err
		}
		return ch.PublishWithContext(ctx, exchange, key, false, false, msg)
	})
	if err != nil {
		p.logger.Warn("Publish failed",
			zap.String("exchange", exchange),
			zap.String("routing_key", key),
			zap.String("breaker_state", p.breaker.GetState().String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish to %s: %w", key, err)
	}
	return nil
}
