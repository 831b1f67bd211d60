package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"teamboard/internal/repository"
)

// NotificationHandler reads straight from the repository: listing and
// flagging rows needs no domain logic on top.
type NotificationHandler struct {
	repo   *repository.NotificationRepository
	logger *zap.Logger
}

func NewNotificationHandler(repo *repository.NotificationRepository, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{repo: repo, logger: logger}
}

// List handles GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	notifications, err := h.repo.ListByUser(c.Request.Context(), uid)
	if err != nil {
		h.logger.Error("Failed to list notifications",
			zap.Int("user_id", uid),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkRead handles POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	notificationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.repo.MarkRead(c.Request.Context(), notificationID, uid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		h.logger.Error("Failed to mark notification read",
			zap.Int("notification_id", notificationID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
