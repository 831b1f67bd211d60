package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"teamboard/contracts/mq"
	"teamboard/internal/model"
)

// InvitationAcceptedHandler tells the inviter their invitation was taken.
type InvitationAcceptedHandler struct {
	delivery
}

func NewInvitationAcceptedHandler(notifications NotificationStore, deduper Deduper, hub Pusher, logger *zap.Logger) *InvitationAcceptedHandler {
	return &InvitationAcceptedHandler{delivery{
		notifications: notifications,
		deduper:       deduper,
		hub:           hub,
		logger:        logger,
	}}
}

func (h *InvitationAcceptedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mq.InvitationAcceptedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal invitation accepted payload, dropping",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return nil
	}

	projectID := p.ProjectID
	n := &model.Notification{
		UserID:    p.InviterID,
		Kind:      mq.RoutingKeyInvitationAccepted,
		Message:   fmt.Sprintf("%s accepted your invitation to %s", p.InviteeName, p.ProjectName),
		ProjectID: &projectID,
	}
	return h.deliver(ctx, "invitation_accepted", p.EventID, n)
}
