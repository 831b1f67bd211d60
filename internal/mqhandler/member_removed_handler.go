package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"teamboard/contracts/mq"
	"teamboard/internal/model"
)

// MemberRemovedHandler tells a user they were removed from a project.
type MemberRemovedHandler struct {
	delivery
}

func NewMemberRemovedHandler(notifications NotificationStore, deduper Deduper, hub Pusher, logger *zap.Logger) *MemberRemovedHandler {
	return &MemberRemovedHandler{delivery{
		notifications: notifications,
		deduper:       deduper,
		hub:           hub,
		logger:        logger,
	}}
}

func (h *MemberRemovedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mq.MemberRemovedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal member removed payload, dropping",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return nil
	}

	// No ProjectID on the notification: the user no longer has access to
	// the project, so a deep link would just 404 for them.
	n := &model.Notification{
		UserID:  p.UserID,
		Kind:    mq.RoutingKeyMemberRemoved,
		Message: fmt.Sprintf("You were removed from %s", p.ProjectName),
	}
	return h.deliver(ctx, "member_removed", p.EventID, n)
}
