package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/model"
	"teamboard/internal/service/task"
)

type CommentHandler struct {
	tasks  *task.Service
	logger *zap.Logger
}

func NewCommentHandler(tasks *task.Service, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{tasks: tasks, logger: logger}
}

// List handles GET /tasks/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}

	comments, err := h.tasks.ListComments(c.Request.Context(), taskID, uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// Create handles POST /tasks/:id/comments. Attachments are metadata only:
// name, url and mime type of a file hosted elsewhere.
func (h *CommentHandler) Create(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Content     string             `json:"content"`
		Attachments []model.Attachment `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	comment, err := h.tasks.AddComment(c.Request.Context(), taskID, uid, req.Content, req.Attachments)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// Delete handles DELETE /comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	commentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.tasks.DeleteComment(c.Request.Context(), commentID, uid); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
