package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/model"
	"taskboard/pkg/logger"
	"taskboard/pkg/metrics"
)

// TaskScanner lists open tasks with a due date in (from, to].
type TaskScanner interface {
	ListReminderCandidates(ctx context.Context, from, to time.Time) ([]model.Task, error)
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Scanned       int      `json:"tasksChecked"`
	RemindersSent int      `json:"remindersSent"`
	TaskIDs       []string `json:"taskIds"`
}

// Sweeper emits reminders whose lead time exceeds the queue's delay window.
// It keeps no "already sent" state unless a Marker is configured, so a task
// may be reminded on every pass while it stays eligible.
type Sweeper struct {
	store  TaskScanner
	queue  Queue
	opts   options
	logger *zap.Logger
}

func NewSweeper(store TaskScanner, queue Queue, log *zap.Logger, opts ...Option) *Sweeper {
	return &Sweeper{
		store:  store,
		queue:  queue,
		opts:   buildOptions(opts),
		logger: logger.OrNop(log),
	}
}

// RunPeriodicSweep publishes one immediate reminder for every eligible task.
// It fails only when the candidate query fails; individual publish failures
// are logged and skipped.
func (s *Sweeper) RunPeriodicSweep(ctx context.Context) (SweepResult, error) {
	now := s.opts.now()
	log := logger.WithTrace(ctx, s.logger)

	candidates, err := s.store.ListReminderCandidates(ctx, now, now.Add(LeadTime))
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list reminder candidates: %w", err)
	}

	result := SweepResult{Scanned: len(candidates), TaskIDs: []string{}}
	metrics.SetReminderSweepScanned(len(candidates))

	for i := range candidates {
		task := &candidates[i]
		if task.IsDone() || task.DueDate == nil || !Eligible(task.DueDate.Time(), now) {
			continue
		}

		if s.opts.marker != nil && !s.opts.marker.AcquireOnce(ctx, markerScope, markerID(task)) {
			continue
		}

		if err := s.queue.PublishDelayed(ctx, contractmq.RoutingKeyReminderDue, NewPayload(task), 0); err != nil {
			log.Error("Failed to publish reminder during sweep",
				zap.String("task_id", task.TaskID),
				zap.Error(err),
			)
			metrics.IncrementReminderEmitted("sweeper_failed")
			if s.opts.marker != nil {
				_ = s.opts.marker.Release(ctx, markerScope, markerID(task))
			}
			continue
		}

		metrics.IncrementReminderEmitted("sweeper")
		result.RemindersSent++
		result.TaskIDs = append(result.TaskIDs, task.TaskID)
	}

	log.Info("Reminder sweep completed",
		zap.Int("tasks_checked", result.Scanned),
		zap.Int("reminders_sent", result.RemindersSent),
	)
	return result, nil
}
