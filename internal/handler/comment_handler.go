package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/pkg/logger"
)

type CommentService interface {
	AddComment(ctx context.Context, callerID, taskID, content string) (*model.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]model.Comment, error)
}

type CommentHandler struct {
	svc    CommentService
	logger *zap.Logger
}

func NewCommentHandler(svc CommentService, log *zap.Logger) *CommentHandler {
	return &CommentHandler{svc: svc, logger: logger.OrNop(log)}
}

type addCommentRequest struct {
	Content string `json:"content"`
}

func (h *CommentHandler) AddComment(c *gin.Context) {
	var req addCommentRequest
	if err := bindJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	comment, err := h.svc.AddComment(c.Request.Context(), CallerID(c), c.Param("taskId"), req.Content)
	if err != nil {
		writeError(c, h.logger, CodeAddComment, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) ListComments(c *gin.Context) {
	comments, err := h.svc.ListComments(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		writeError(c, h.logger, CodeGetComments, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}
