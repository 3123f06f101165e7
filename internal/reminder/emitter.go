package reminder

import (
	"context"

	"go.uber.org/zap"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/model"
	"taskboard/pkg/logger"
	"taskboard/pkg/metrics"
)

// Emitter schedules a reminder right after a task is written.
type Emitter struct {
	queue  Queue
	opts   options
	logger *zap.Logger
}

func NewEmitter(queue Queue, log *zap.Logger, opts ...Option) *Emitter {
	return &Emitter{
		queue:  queue,
		opts:   buildOptions(opts),
		logger: logger.OrNop(log),
	}
}

// OnTaskMutated publishes at most one reminder for task when its reminder falls
// inside the queue's delay window. It must only be called after the store write
// succeeded. Publish failures are logged and never returned.
func (e *Emitter) OnTaskMutated(ctx context.Context, task *model.Task, isNew bool) Schedule {
	if task == nil || task.IsDone() || task.DueDate == nil {
		return Schedule{Kind: None}
	}

	log := logger.WithTrace(ctx, e.logger).With(
		zap.String("task_id", task.TaskID),
		zap.Bool("is_new", isNew),
	)

	schedule := ComputeSchedule(task.DueDate.Time(), e.opts.now())
	if schedule.Kind != Immediate {
		log.Debug("Reminder not scheduled", zap.Stringer("schedule", schedule.Kind))
		return schedule
	}

	if e.opts.marker != nil && !e.opts.marker.AcquireOnce(ctx, markerScope, markerID(task)) {
		return schedule
	}

	payload := NewPayload(task)
	if err := e.queue.PublishDelayed(ctx, contractmq.RoutingKeyReminderDue, payload, schedule.Delay); err != nil {
		log.Error("Failed to publish reminder", zap.Error(err))
		metrics.IncrementReminderEmitted("emitter_failed")
		if e.opts.marker != nil {
			if rerr := e.opts.marker.Release(ctx, markerScope, markerID(task)); rerr != nil {
				log.Warn("Failed to release reminder marker", zap.Error(rerr))
			}
		}
		return schedule
	}

	metrics.IncrementReminderEmitted("emitter")
	log.Info("Reminder scheduled",
		zap.String("user_id", payload.UserID),
		zap.Int("delay_seconds", schedule.DelaySeconds()),
	)
	return schedule
}
