package mqhandler

import (
	"context"

	"go.uber.org/zap"

	"taskboard/internal/activity"
	"taskboard/pkg/logger"
	"taskboard/pkg/mq"
)

type ActivityBatchProcessor interface {
	ProcessActivityBatch(ctx context.Context, msgs []mq.Message) []activity.ActivityOutcome
}

// ActivityHandler adapts the activity processor to the batch consumer.
type ActivityHandler struct {
	processor ActivityBatchProcessor
	logger    *zap.Logger
}

func NewActivityHandler(p ActivityBatchProcessor, log *zap.Logger) *ActivityHandler {
	return &ActivityHandler{processor: p, logger: logger.OrNop(log)}
}

func (h *ActivityHandler) Handle(ctx context.Context, msgs []mq.Message) []error {
	outcomes := h.processor.ProcessActivityBatch(ctx, msgs)

	errs := make([]error, len(outcomes))
	failed := 0
	for i, o := range outcomes {
		if !o.Success {
			failed++
			errs[i] = outcomeError(o.Err, o.Error)
		}
	}

	h.logger.Debug("Activity batch processed",
		zap.Int("received", len(msgs)),
		zap.Int("failed", failed),
	)
	return errs
}
