package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/model"
)

const (
	// CallerKey is the gin context key holding the caller's identity.
	CallerKey = "user_id"
	// DefaultCallerID is used when a request carries no credentials.
	DefaultCallerID = "local-test-user-id"
)

const (
	CodeCreateTask  = "CREATE_TASK_ERROR"
	CodeUpdateTask  = "UPDATE_TASK_ERROR"
	CodeDeleteTask  = "DELETE_TASK_ERROR"
	CodeGetTasks    = "GET_TASKS_ERROR"
	CodeAddComment  = "ADD_COMMENT_ERROR"
	CodeGetComments = "GET_COMMENTS_ERROR"
	CodeGetActivity = "GET_ACTIVITY_ERROR"
)

// CallerID returns the identity set by the auth middleware.
func CallerID(c *gin.Context) string {
	if v, ok := c.Get(CallerKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return DefaultCallerID
}

// bindJSON decodes the body into dst; an empty body leaves dst untouched.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, logger *zap.Logger, code string, err error) {
	var vErr *model.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Msg})
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	default:
		logger.Error("Request failed",
			zap.String("code", code),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": err.Error(),
			"code":    code,
		})
	}
}

// badRequest reports a malformed body.
func badRequest(c *gin.Context, err error) {
	var vErr *model.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Msg})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
}
