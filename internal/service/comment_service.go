package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/model"
)

type CommentStore interface {
	InsertComment(ctx context.Context, c *model.Comment) error
	ListCommentsByTask(ctx context.Context, taskID string) ([]model.Comment, error)
}

type CommentService struct {
	comments CommentStore
	events   ActivityPublisher
	now      func() time.Time
	newID    func() string
}

func NewCommentService(comments CommentStore, events ActivityPublisher) *CommentService {
	return &CommentService{
		comments: comments,
		events:   events,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *CommentService) AddComment(ctx context.Context, callerID, taskID, content string) (*model.Comment, error) {
	if taskID == "" {
		return nil, model.NewValidationError("Task ID is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, model.NewValidationError("Comment content is required")
	}

	c := &model.Comment{
		TaskID:    taskID,
		CommentID: s.newID(),
		UserID:    callerID,
		Content:   content,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.comments.InsertComment(ctx, c); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, taskID, callerID, contractmq.ActionCommentAdded, map[string]string{
		"commentId": c.CommentID,
	})
	return c, nil
}

// ListComments returns the task's comments, newest first.
func (s *CommentService) ListComments(ctx context.Context, taskID string) ([]model.Comment, error) {
	if taskID == "" {
		return nil, model.NewValidationError("Task ID is required")
	}
	return s.comments.ListCommentsByTask(ctx, taskID)
}
