package mqhandler

import (
	"context"

	"go.uber.org/zap"

	"teamboard/internal/model"
	"teamboard/pkg/util"
)

type NotificationStore interface {
	Insert(ctx context.Context, n *model.Notification) error
}

type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventID string) bool
	Release(ctx context.Context, handler, eventID string)
}

// Pusher fans a message out to a user's live websocket connections.
type Pusher interface {
	Push(userID int, msgType string, data any)
}

// delivery is the shared tail of every notification handler: dedup on the
// event id, persist the notification, push it to live connections. The
// returned error follows the consumer contract — nil acks the message,
// non-nil sends it back for redelivery.
type delivery struct {
	notifications NotificationStore
	deduper       Deduper
	hub           Pusher
	logger        *zap.Logger
}

func (d *delivery) deliver(ctx context.Context, handlerName, eventID string, n *model.Notification) error {
	if eventID != "" && !d.deduper.AcquireOnce(ctx, handlerName, eventID) {
		d.logger.Info("Skipped duplicate event",
			zap.String("handler", handlerName),
			zap.String("event_id", eventID),
		)
		return nil
	}

	if err := d.notifications.Insert(ctx, n); err != nil {
		// Free the dedup slot so a redelivery can try the insert again.
		if eventID != "" {
			d.deduper.Release(ctx, handlerName, eventID)
		}
		isRetryable, errType := util.IsRetryableError(err)
		d.logger.Error("Failed to insert notification",
			zap.String("handler", handlerName),
			zap.Int("user_id", n.UserID),
			zap.String("error_type", errType),
			zap.Bool("retryable", isRetryable),
			zap.Error(err),
		)
		if !isRetryable {
			return nil
		}
		return err
	}

	// Live push is best-effort; the row above is the durable copy.
	d.hub.Push(n.UserID, "notification", n)

	d.logger.Info("Notification delivered",
		zap.String("handler", handlerName),
		zap.Int("notification_id", n.ID),
		zap.Int("user_id", n.UserID),
	)
	return nil
}
