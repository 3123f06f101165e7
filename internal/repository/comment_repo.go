package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/pkg/logger"
)

type CommentRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewCommentRepository(db DBTX, log *zap.Logger) *CommentRepository {
	return &CommentRepository{db: db, logger: logger.OrNop(log)}
}

func (r *CommentRepository) InsertComment(ctx context.Context, c *model.Comment) error {
	defer observe("insert", "comments", time.Now())

	query := `
        INSERT INTO comments (task_id, comment_id, user_id, content, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	if _, err := r.db.Exec(ctx, query, c.TaskID, c.CommentID, c.UserID, c.Content, c.CreatedAt); err != nil {
		r.logger.Error("Failed to insert comment", zap.String("task_id", c.TaskID), zap.Error(err))
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ListCommentsByTask returns comments newest first.
func (r *CommentRepository) ListCommentsByTask(ctx context.Context, taskID string) ([]model.Comment, error) {
	defer observe("list", "comments", time.Now())

	query := `
        SELECT task_id, comment_id, user_id, content, created_at
        FROM comments
        WHERE task_id = $1
        ORDER BY created_at DESC, comment_id
    `
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.TaskID, &c.CommentID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}
