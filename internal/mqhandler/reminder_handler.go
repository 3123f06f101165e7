package mqhandler

import (
	"context"

	"go.uber.org/zap"

	"taskboard/internal/reminder"
	"taskboard/pkg/logger"
	"taskboard/pkg/mq"
)

type ReminderBatchProcessor interface {
	ProcessReminderBatch(ctx context.Context, msgs []mq.Message) []reminder.ReminderOutcome
}

// ReminderHandler adapts the reminder processor to the batch consumer.
type ReminderHandler struct {
	processor ReminderBatchProcessor
	logger    *zap.Logger
}

func NewReminderHandler(p ReminderBatchProcessor, log *zap.Logger) *ReminderHandler {
	return &ReminderHandler{processor: p, logger: logger.OrNop(log)}
}

func (h *ReminderHandler) Handle(ctx context.Context, msgs []mq.Message) []error {
	outcomes := h.processor.ProcessReminderBatch(ctx, msgs)

	errs := make([]error, len(outcomes))
	sent, failed := 0, 0
	for i, o := range outcomes {
		switch {
		case !o.Success:
			failed++
			errs[i] = outcomeError(o.Err, o.Error)
		case o.ReminderSent:
			sent++
		}
	}

	h.logger.Info("Reminder batch processed",
		zap.Int("received", len(msgs)),
		zap.Int("sent", sent),
		zap.Int("suppressed", len(outcomes)-sent-failed),
		zap.Int("failed", failed),
	)
	return errs
}
