package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/model"
	"taskboard/internal/reminder"
	"taskboard/pkg/logger"
)

type TaskStore interface {
	InsertTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, ownerID, taskID string) (*model.Task, error)
	UpdateTask(ctx context.Context, ownerID, taskID string, changes model.TaskChanges, updatedAt int64) (*model.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) (*model.Task, error)
	ListTasksByOwner(ctx context.Context, ownerID string) ([]model.Task, error)
}

type ActivityReader interface {
	ListActivityByTask(ctx context.Context, taskID string) ([]model.ActivityRecord, error)
}

// ReminderEmitter is called after every successful task write.
type ReminderEmitter interface {
	OnTaskMutated(ctx context.Context, task *model.Task, isNew bool) reminder.Schedule
}

// ActivityPublisher records a change event; it never fails the caller.
type ActivityPublisher interface {
	Publish(ctx context.Context, taskID, actorID, action string, details any)
}

// TaskService owns task mutations. Reminders and activity events are emitted
// only after the store write succeeded and never affect the result.
type TaskService struct {
	tasks    TaskStore
	activity ActivityReader
	emitter  ReminderEmitter
	events   ActivityPublisher
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewTaskService(tasks TaskStore, activity ActivityReader, emitter ReminderEmitter, events ActivityPublisher, log *zap.Logger) *TaskService {
	return &TaskService{
		tasks:    tasks,
		activity: activity,
		emitter:  emitter,
		events:   events,
		logger:   logger.OrNop(log),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CreateTask stores a new task owned by callerID.
func (s *TaskService) CreateTask(ctx context.Context, callerID string, in model.CreateTaskInput) (*model.Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	ts := s.now().UnixMilli()
	task := &model.Task{
		OwnerID:     callerID,
		TaskID:      s.newID(),
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		DueDate:     in.DueDate,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   callerID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if task.AssignedTo == "" {
		task.AssignedTo = callerID
	}

	if err := s.tasks.InsertTask(ctx, task); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, task.TaskID, callerID, contractmq.ActionTaskCreated, map[string]string{
		"title":  task.Title,
		"status": task.Status,
	})
	s.emitter.OnTaskMutated(ctx, task, true)

	logger.WithTrace(ctx, s.logger).Info("Task created",
		zap.String("task_id", task.TaskID),
		zap.String("owner_id", callerID),
	)
	return task, nil
}

// UpdateTask applies changes to the caller's task. Last write wins per field.
func (s *TaskService) UpdateTask(ctx context.Context, callerID, taskID string, changes model.TaskChanges) (*model.Task, error) {
	if taskID == "" {
		return nil, model.NewValidationError("Task ID is required")
	}
	if err := changes.Validate(); err != nil {
		return nil, err
	}

	task, err := s.tasks.UpdateTask(ctx, callerID, taskID, changes, s.now().UnixMilli())
	if err != nil {
		return nil, err
	}

	details := map[string]string{}
	if changes.Status != nil {
		details["status"] = *changes.Status
	}
	if changes.Title != nil {
		details["title"] = *changes.Title
	}
	s.events.Publish(ctx, taskID, callerID, contractmq.ActionTaskUpdated, details)
	s.emitter.OnTaskMutated(ctx, task, false)

	return task, nil
}

// DeleteTask removes the caller's task.
func (s *TaskService) DeleteTask(ctx context.Context, callerID, taskID string) error {
	if taskID == "" {
		return model.NewValidationError("Task ID is required")
	}

	task, err := s.tasks.DeleteTask(ctx, callerID, taskID)
	if err != nil {
		return err
	}

	s.events.Publish(ctx, taskID, callerID, contractmq.ActionTaskDeleted, map[string]string{
		"title": task.Title,
	})
	return nil
}

// ListTasks returns the caller's tasks, newest first.
func (s *TaskService) ListTasks(ctx context.Context, callerID string) ([]model.Task, error) {
	return s.tasks.ListTasksByOwner(ctx, callerID)
}

// ListActivity returns the task's history, newest first.
func (s *TaskService) ListActivity(ctx context.Context, taskID string) ([]model.ActivityRecord, error) {
	if taskID == "" {
		return nil, model.NewValidationError("Task ID is required")
	}
	return s.activity.ListActivityByTask(ctx, taskID)
}
