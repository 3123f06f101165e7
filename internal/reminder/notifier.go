package reminder

import (
	"context"
	"time"

	"go.uber.org/zap"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/model"
	"taskboard/pkg/logger"
)

// LogNotifier "delivers" reminders as structured log lines.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.OrNop(log)}
}

func (n *LogNotifier) NotifyDueSoon(ctx context.Context, task *model.Task, payload contractmq.ReminderPayload) error {
	fields := []zap.Field{
		zap.String("task_id", task.TaskID),
		zap.String("user_id", payload.UserID),
		zap.String("title", task.Title),
		zap.String("reminder_type", payload.ReminderType),
	}
	if task.DueDate != nil {
		fields = append(fields, zap.String("due_date", task.DueDate.Time().UTC().Format(time.RFC3339)))
	}
	logger.WithTrace(ctx, n.logger).Info("Reminder: task is due soon", fields...)
	return nil
}
