// Package activity publishes task change events and persists them as an
// append-only activity log.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	contractmq "taskboard/contracts/mq"
	"taskboard/pkg/logger"
)

// EventPublisher publishes a JSON payload on a routing key.
type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Publisher emits activity events after a mutation succeeded. It is
// best-effort: failures are logged and never returned to the caller.
type Publisher struct {
	queue  EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func NewPublisher(queue EventPublisher, log *zap.Logger) *Publisher {
	return &Publisher{
		queue:  queue,
		logger: logger.OrNop(log),
		now:    time.Now,
	}
}

// Publish records that actorID performed action on taskID.
func (p *Publisher) Publish(ctx context.Context, taskID, actorID, action string, details any) {
	log := logger.WithTrace(ctx, p.logger).With(
		zap.String("task_id", taskID),
		zap.String("action", action),
	)

	raw, err := json.Marshal(details)
	if err != nil {
		log.Error("Failed to encode activity details", zap.Error(err))
		return
	}

	payload := contractmq.ActivityPayload{
		TaskID:    taskID,
		UserID:    actorID,
		Action:    action,
		Details:   raw,
		Timestamp: p.now().UnixMilli(),
	}
	if err := p.queue.PublishWithContext(ctx, contractmq.RoutingKeyActivityLogged, payload); err != nil {
		log.Error("Failed to publish activity", zap.Error(err))
	}
}
