package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"teamboard/contracts/mq"
	"teamboard/internal/model"
)

// TaskAssignedHandler notifies the assignee of a task handed to them.
type TaskAssignedHandler struct {
	delivery
}

func NewTaskAssignedHandler(notifications NotificationStore, deduper Deduper, hub Pusher, logger *zap.Logger) *TaskAssignedHandler {
	return &TaskAssignedHandler{delivery{
		notifications: notifications,
		deduper:       deduper,
		hub:           hub,
		logger:        logger,
	}}
}

func (h *TaskAssignedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mq.TaskAssignedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal task assigned payload, dropping",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return nil
	}

	// Assigning a task to yourself needs no notification.
	if p.AssigneeID == p.AssignerID {
		h.logger.Debug("Skipping self-assignment",
			zap.Int("task_id", p.TaskID),
			zap.Int("user_id", p.AssigneeID),
		)
		return nil
	}

	projectID := p.ProjectID
	n := &model.Notification{
		UserID:    p.AssigneeID,
		Kind:      mq.RoutingKeyTaskAssigned,
		Message:   fmt.Sprintf("You were assigned %q in %s", p.Title, p.ProjectName),
		ProjectID: &projectID,
	}
	return h.deliver(ctx, "task_assigned", p.EventID, n)
}
