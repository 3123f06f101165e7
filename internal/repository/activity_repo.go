package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/pkg/logger"
)

type ActivityRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewActivityRepository(db DBTX, log *zap.Logger) *ActivityRepository {
	return &ActivityRepository{db: db, logger: logger.OrNop(log)}
}

// InsertActivity appends a record. A record with the same (task_id, ts) key
// already present is left untouched.
func (r *ActivityRepository) InsertActivity(ctx context.Context, rec model.ActivityRecord) error {
	defer observe("insert", "activity_log", time.Now())

	query := `
        INSERT INTO activity_log (task_id, ts, user_id, action, details)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (task_id, ts) DO NOTHING
    `
	tag, err := r.db.Exec(ctx, query, rec.TaskID, rec.Timestamp, rec.UserID, rec.Action, rec.Details)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug("Activity already recorded",
			zap.String("task_id", rec.TaskID),
			zap.Int64("timestamp", rec.Timestamp),
		)
	}
	return nil
}

// ListActivityByTask returns a task's history, newest first.
func (r *ActivityRepository) ListActivityByTask(ctx context.Context, taskID string) ([]model.ActivityRecord, error) {
	defer observe("list", "activity_log", time.Now())

	query := `
        SELECT task_id, ts, user_id, action, details
        FROM activity_log
        WHERE task_id = $1
        ORDER BY ts DESC
    `
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	records := []model.ActivityRecord{}
	for rows.Next() {
		var rec model.ActivityRecord
		if err := rows.Scan(&rec.TaskID, &rec.Timestamp, &rec.UserID, &rec.Action, &rec.Details); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return records, nil
}
