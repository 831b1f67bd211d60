package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"teamboard/contracts/mq"
	"teamboard/internal/model"
)

// CommentCreatedHandler notifies a task's assignee about new comments on it.
type CommentCreatedHandler struct {
	delivery
}

func NewCommentCreatedHandler(notifications NotificationStore, deduper Deduper, hub Pusher, logger *zap.Logger) *CommentCreatedHandler {
	return &CommentCreatedHandler{delivery{
		notifications: notifications,
		deduper:       deduper,
		hub:           hub,
		logger:        logger,
	}}
}

func (h *CommentCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mq.CommentCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal comment created payload, dropping",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return nil
	}

	// Nobody to tell about an unassigned task, and authors already know
	// about their own comments.
	if p.AssigneeID == 0 || p.AssigneeID == p.AuthorID {
		h.logger.Debug("Skipping comment notification",
			zap.Int("task_id", p.TaskID),
			zap.Int("assignee_id", p.AssigneeID),
			zap.Int("author_id", p.AuthorID),
		)
		return nil
	}

	projectID := p.ProjectID
	n := &model.Notification{
		UserID:    p.AssigneeID,
		Kind:      mq.RoutingKeyCommentCreated,
		Message:   fmt.Sprintf("%s commented on %q", p.AuthorName, p.TaskTitle),
		ProjectID: &projectID,
	}
	return h.deliver(ctx, "comment_created", p.EventID, n)
}
