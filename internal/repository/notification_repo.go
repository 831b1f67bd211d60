package repository

import (
	"context"
	"teamboard/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) error {
	r.logger.Debug("Inserting notification",
		zap.Int("user_id", n.UserID),
		zap.String("kind", n.Kind),
	)
	query := `
        INSERT INTO notifications (user_id, kind, message, project_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id, is_read, created_at
    `
	err := r.db.QueryRow(ctx, query, n.UserID, n.Kind, n.Message, n.ProjectID).
		Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert notification",
			zap.Int("user_id", n.UserID),
			zap.String("kind", n.Kind),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Notification inserted successfully",
		zap.Int("notification_id", n.ID),
		zap.Int("user_id", n.UserID),
	)
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int) ([]model.Notification, error) {
	r.logger.Debug("Listing notifications", zap.Int("user_id", userID))
	query := `
        SELECT id, user_id, kind, message, project_id, is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query notifications",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Kind, &n.Message, &n.ProjectID, &n.IsRead, &n.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan notification row", zap.Error(err))
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags the notification as read, guarded by the owning user.
// pgx.ErrNoRows when the notification does not exist or belongs to someone else.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	result, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		r.logger.Error("Failed to mark notification read",
			zap.Int("notification_id", id),
			zap.Error(err),
		)
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
