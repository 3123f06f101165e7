package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/model"
	"taskboard/pkg/logger"
	"taskboard/pkg/metrics"
	"taskboard/pkg/mq"
	"taskboard/pkg/util"
)

// Store appends activity records. Inserting an existing (taskId, timestamp)
// key is a no-op so redelivered messages are harmless.
type Store interface {
	InsertActivity(ctx context.Context, rec model.ActivityRecord) error
}

// ActivityOutcome is the per-message result of an activity batch.
type ActivityOutcome struct {
	MessageID string `json:"messageId"`
	Success   bool   `json:"success"`
	TaskID    string `json:"taskId,omitempty"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

type Processor struct {
	store       Store
	validate    *validator.Validate
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

func NewProcessor(store Store, concurrency int, log *zap.Logger) *Processor {
	return &Processor{
		store:       store,
		validate:    validator.New(),
		concurrency: concurrency,
		logger:      logger.OrNop(log),
		now:         time.Now,
	}
}

// ProcessActivityBatch persists one record per message and returns one
// outcome per message, in order.
func (p *Processor) ProcessActivityBatch(ctx context.Context, msgs []mq.Message) []ActivityOutcome {
	results, errs := mq.ProcessEach(ctx, msgs, p.concurrency, p.processOne)

	outcomes := make([]ActivityOutcome, len(msgs))
	for i, msg := range msgs {
		out := results[i]
		out.MessageID = msg.ID
		if errs[i] != nil {
			out.Success = false
			out.Err = errs[i]
			out.Error = errs[i].Error()
			metrics.IncrementActivityRecord("failed")
			p.logger.Error("Activity processing failed",
				zap.String("message_id", msg.ID),
				zap.String("task_id", out.TaskID),
				zap.String("trace_id", msg.TraceID),
				zap.Error(errs[i]),
			)
		} else {
			metrics.IncrementActivityRecord("success")
		}
		outcomes[i] = out
	}
	return outcomes
}

func (p *Processor) processOne(ctx context.Context, msg mq.Message) (ActivityOutcome, error) {
	var payload contractmq.ActivityPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		return ActivityOutcome{}, fmt.Errorf("failed to decode activity: %w", err)
	}
	out := ActivityOutcome{TaskID: payload.TaskID}

	if err := p.validate.Struct(payload); err != nil {
		return out, util.Permanent(fmt.Errorf("invalid activity: %w", err))
	}

	rec := model.ActivityRecord{
		TaskID:    payload.TaskID,
		Timestamp: payload.Timestamp,
		UserID:    payload.UserID,
		Action:    payload.Action,
		Details:   detailsText(payload.Details),
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = p.now().UnixMilli()
	}

	if err := p.store.InsertActivity(ctx, rec); err != nil {
		return out, fmt.Errorf("failed to insert activity: %w", err)
	}

	out.Success = true
	return out, nil
}

// detailsText normalizes the details JSON for storage; absent details become "{}".
func detailsText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
