package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"teamboard/contracts/mq"
	"teamboard/internal/model"
)

// InvitationDeclinedHandler tells the inviter their invitation was turned down.
type InvitationDeclinedHandler struct {
	delivery
}

func NewInvitationDeclinedHandler(notifications NotificationStore, deduper Deduper, hub Pusher, logger *zap.Logger) *InvitationDeclinedHandler {
	return &InvitationDeclinedHandler{delivery{
		notifications: notifications,
		deduper:       deduper,
		hub:           hub,
		logger:        logger,
	}}
}

func (h *InvitationDeclinedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mq.InvitationDeclinedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal invitation declined payload, dropping",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return nil
	}

	projectID := p.ProjectID
	n := &model.Notification{
		UserID:    p.InviterID,
		Kind:      mq.RoutingKeyInvitationDeclined,
		Message:   fmt.Sprintf("%s declined your invitation to %s", p.InviteeName, p.ProjectName),
		ProjectID: &projectID,
	}
	return h.deliver(ctx, "invitation_declined", p.EventID, n)
}
