package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/model"
	"taskboard/pkg/logger"
	"taskboard/pkg/metrics"
	"taskboard/pkg/mq"
	"taskboard/pkg/trace"
	"taskboard/pkg/util"
)

// TaskReader fetches a task by its store key. A missing task is model.ErrTaskNotFound.
type TaskReader interface {
	GetTask(ctx context.Context, ownerID, taskID string) (*model.Task, error)
}

// Notifier delivers a due-soon reminder to the recipient.
type Notifier interface {
	NotifyDueSoon(ctx context.Context, task *model.Task, payload contractmq.ReminderPayload) error
}

const (
	ReasonTaskNotFound  = "task not found"
	ReasonTaskCompleted = "task completed"
)

// ReminderOutcome is the per-message result of a reminder batch.
// Success is false only when processing failed; a suppressed reminder is a
// success with ReminderSent false.
type ReminderOutcome struct {
	MessageID    string `json:"messageId"`
	Success      bool   `json:"success"`
	TaskID       string `json:"taskId,omitempty"`
	ReminderSent bool   `json:"reminderSent"`
	Reason       string `json:"reason,omitempty"`
	Error        string `json:"error,omitempty"`
	Err          error  `json:"-"`
}

// Processor re-validates delivered reminders against current task state and
// notifies for tasks that are still open. It never mutates tasks.
type Processor struct {
	store       TaskReader
	notifier    Notifier
	validate    *validator.Validate
	concurrency int
	logger      *zap.Logger
}

func NewProcessor(store TaskReader, notifier Notifier, concurrency int, log *zap.Logger) *Processor {
	return &Processor{
		store:       store,
		notifier:    notifier,
		validate:    validator.New(),
		concurrency: concurrency,
		logger:      logger.OrNop(log),
	}
}

// ProcessReminderBatch returns exactly one outcome per message, in order.
// A failure on one message never affects the others.
func (p *Processor) ProcessReminderBatch(ctx context.Context, msgs []mq.Message) []ReminderOutcome {
	results, errs := mq.ProcessEach(ctx, msgs, p.concurrency, p.processOne)

	outcomes := make([]ReminderOutcome, len(msgs))
	for i, msg := range msgs {
		out := results[i]
		out.MessageID = msg.ID
		if errs[i] != nil {
			out.Success = false
			out.ReminderSent = false
			out.Err = errs[i]
			out.Error = errs[i].Error()
			metrics.IncrementReminderOutcome("failed")
			p.logger.Error("Reminder processing failed",
				zap.String("message_id", msg.ID),
				zap.String("task_id", out.TaskID),
				zap.String("trace_id", msg.TraceID),
				zap.Error(errs[i]),
			)
		}
		outcomes[i] = out
	}
	return outcomes
}

func (p *Processor) processOne(ctx context.Context, msg mq.Message) (ReminderOutcome, error) {
	ctx = trace.WithContext(ctx, msg.TraceID)

	var payload contractmq.ReminderPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		return ReminderOutcome{}, fmt.Errorf("failed to decode reminder: %w", err)
	}
	out := ReminderOutcome{TaskID: payload.TaskID}

	if err := p.validate.Struct(payload); err != nil {
		return out, util.Permanent(fmt.Errorf("invalid reminder: %w", err))
	}

	log := logger.WithTrace(ctx, p.logger).With(zap.String("task_id", payload.TaskID))

	task, err := p.store.GetTask(ctx, payload.LookupOwner(), payload.TaskID)
	switch {
	case errors.Is(err, model.ErrTaskNotFound):
		metrics.IncrementReminderOutcome("suppressed")
		log.Info("Reminder suppressed", zap.String("reason", ReasonTaskNotFound))
		out.Success = true
		out.Reason = ReasonTaskNotFound
		return out, nil
	case err != nil:
		return out, fmt.Errorf("failed to load task: %w", err)
	}

	if task.IsDone() {
		metrics.IncrementReminderOutcome("suppressed")
		log.Info("Reminder suppressed", zap.String("reason", ReasonTaskCompleted))
		out.Success = true
		out.Reason = ReasonTaskCompleted
		return out, nil
	}

	if err := p.notifier.NotifyDueSoon(ctx, task, payload); err != nil {
		return out, fmt.Errorf("failed to notify: %w", err)
	}

	metrics.IncrementReminderOutcome("sent")
	out.Success = true
	out.ReminderSent = true
	return out, nil
}
