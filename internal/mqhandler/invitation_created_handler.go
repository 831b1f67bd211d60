package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"teamboard/contracts/mq"
	"teamboard/internal/model"
)

// InvitationCreatedHandler notifies the invitee about a fresh invitation.
type InvitationCreatedHandler struct {
	delivery
}

func NewInvitationCreatedHandler(notifications NotificationStore, deduper Deduper, hub Pusher, logger *zap.Logger) *InvitationCreatedHandler {
	return &InvitationCreatedHandler{delivery{
		notifications: notifications,
		deduper:       deduper,
		hub:           hub,
		logger:        logger,
	}}
}

func (h *InvitationCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mq.InvitationCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		// A malformed payload never gets better on redelivery.
		h.logger.Error("Failed to unmarshal invitation created payload, dropping",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return nil
	}

	projectID := p.ProjectID
	n := &model.Notification{
		UserID:    p.InviteeID,
		Kind:      mq.RoutingKeyInvitationCreated,
		Message:   fmt.Sprintf("%s invited you to join %s as %s", p.InviterName, p.ProjectName, p.Role),
		ProjectID: &projectID,
	}
	return h.deliver(ctx, "invitation_created", p.EventID, n)
}
