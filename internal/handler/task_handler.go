package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/pkg/logger"
)

type TaskService interface {
	CreateTask(ctx context.Context, callerID string, in model.CreateTaskInput) (*model.Task, error)
	UpdateTask(ctx context.Context, callerID, taskID string, changes model.TaskChanges) (*model.Task, error)
	DeleteTask(ctx context.Context, callerID, taskID string) error
	ListTasks(ctx context.Context, callerID string) ([]model.Task, error)
	ListActivity(ctx context.Context, taskID string) ([]model.ActivityRecord, error)
}

type TaskHandler struct {
	svc    TaskService
	logger *zap.Logger
}

func NewTaskHandler(svc TaskService, log *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger.OrNop(log)}
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	callerID := CallerID(c)

	tasks, err := h.svc.ListTasks(c.Request.Context(), callerID)
	if err != nil {
		writeError(c, h.logger, CodeGetTasks, err)
		return
	}

	h.logger.Debug("ListTasks: success",
		zap.String("user_id", callerID),
		zap.Int("task_count", len(tasks)),
	)
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var in model.CreateTaskInput
	if err := bindJSON(c, &in); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.svc.CreateTask(c.Request.Context(), CallerID(c), in)
	if err != nil {
		writeError(c, h.logger, CodeCreateTask, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var changes model.TaskChanges
	if err := bindJSON(c, &changes); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.svc.UpdateTask(c.Request.Context(), CallerID(c), c.Param("taskId"), changes)
	if err != nil {
		writeError(c, h.logger, CodeUpdateTask, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.svc.DeleteTask(c.Request.Context(), CallerID(c), c.Param("taskId")); err != nil {
		writeError(c, h.logger, CodeDeleteTask, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func (h *TaskHandler) ListActivity(c *gin.Context) {
	records, err := h.svc.ListActivity(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		writeError(c, h.logger, CodeGetActivity, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
