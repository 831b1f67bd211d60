package repository

import (
	"context"
	"errors"
	"teamboard/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type InvitationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewInvitationRepository(db *pgxpool.Pool, logger *zap.Logger) *InvitationRepository {
	return &InvitationRepository{db: db, logger: logger}
}

func (r *InvitationRepository) Insert(ctx context.Context, inv *model.Invitation) error {
	r.logger.Debug("Inserting invitation",
		zap.Int("project_id", inv.ProjectID),
		zap.Int("invitee_id", inv.InviteeID),
		zap.String("role", string(inv.Role)),
	)
	query := `
        INSERT INTO project_invitations (project_id, invitee_id, inviter_id, role)
        VALUES ($1, $2, $3, $4)
        RETURNING id, status, created_at
    `
	err := r.db.QueryRow(ctx, query, inv.ProjectID, inv.InviteeID, inv.InviterID, inv.Role).
		Scan(&inv.ID, &inv.Status, &inv.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert invitation",
			zap.Int("project_id", inv.ProjectID),
			zap.Int("invitee_id", inv.InviteeID),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Invitation inserted successfully",
		zap.Int("invitation_id", inv.ID),
		zap.Int("project_id", inv.ProjectID),
		zap.Int("invitee_id", inv.InviteeID),
	)
	return nil
}

// FindByID returns the invitation with display fields for notification payloads.
func (r *InvitationRepository) FindByID(ctx context.Context, id int) (*model.Invitation, error) {
	query := `
        SELECT i.id, i.project_id, i.invitee_id, i.inviter_id, i.role, i.status,
               i.created_at, i.resolved_at,
               p.name, inviter.display_name, invitee.display_name, invitee.email
        FROM project_invitations i
        JOIN projects p ON p.id = i.project_id
        JOIN users inviter ON inviter.id = i.inviter_id
        JOIN users invitee ON invitee.id = i.invitee_id
        WHERE i.id = $1
    `
	var inv model.Invitation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.ProjectID, &inv.InviteeID, &inv.InviterID, &inv.Role, &inv.Status,
		&inv.CreatedAt, &inv.ResolvedAt,
		&inv.ProjectName, &inv.InviterName, &inv.InviteeName, &inv.InviteeEmail,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindPending returns the pending invitation for (project, invitee), if any.
func (r *InvitationRepository) FindPending(ctx context.Context, projectID, inviteeID int) (*model.Invitation, error) {
	query := `
        SELECT id, project_id, invitee_id, inviter_id, role, status, created_at, resolved_at
        FROM project_invitations
        WHERE project_id = $1 AND invitee_id = $2 AND status = 'pending'
    `
	var inv model.Invitation
	err := r.db.QueryRow(ctx, query, projectID, inviteeID).Scan(
		&inv.ID, &inv.ProjectID, &inv.InviteeID, &inv.InviterID, &inv.Role, &inv.Status,
		&inv.CreatedAt, &inv.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListPendingForUser returns the user's open invitations, newest first.
func (r *InvitationRepository) ListPendingForUser(ctx context.Context, userID int) ([]model.Invitation, error) {
	r.logger.Debug("Listing pending invitations", zap.Int("user_id", userID))
	query := `
        SELECT i.id, i.project_id, i.invitee_id, i.inviter_id, i.role, i.status,
               i.created_at, i.resolved_at,
               p.name, inviter.display_name
        FROM project_invitations i
        JOIN projects p ON p.id = i.project_id
        JOIN users inviter ON inviter.id = i.inviter_id
        WHERE i.invitee_id = $1 AND i.status = 'pending'
        ORDER BY i.created_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query invitations",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	invitations := []model.Invitation{}
	for rows.Next() {
		var inv model.Invitation
		if err := rows.Scan(
			&inv.ID, &inv.ProjectID, &inv.InviteeID, &inv.InviterID, &inv.Role, &inv.Status,
			&inv.CreatedAt, &inv.ResolvedAt,
			&inv.ProjectName, &inv.InviterName,
		); err != nil {
			r.logger.Error("Failed to scan invitation row", zap.Error(err))
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// ListByProject returns the project's invitations, newest first, all statuses.
func (r *InvitationRepository) ListByProject(ctx context.Context, projectID int) ([]model.Invitation, error) {
	r.logger.Debug("Listing project invitations", zap.Int("project_id", projectID))
	query := `
        SELECT i.id, i.project_id, i.invitee_id, i.inviter_id, i.role, i.status,
               i.created_at, i.resolved_at,
               invitee.display_name, invitee.email
        FROM project_invitations i
        JOIN users invitee ON invitee.id = i.invitee_id
        WHERE i.project_id = $1
        ORDER BY i.created_at DESC
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to query project invitations",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	invitations := []model.Invitation{}
	for rows.Next() {
		var inv model.Invitation
		if err := rows.Scan(
			&inv.ID, &inv.ProjectID, &inv.InviteeID, &inv.InviterID, &inv.Role, &inv.Status,
			&inv.CreatedAt, &inv.ResolvedAt,
			&inv.InviteeName, &inv.InviteeEmail,
		); err != nil {
			r.logger.Error("Failed to scan invitation row", zap.Error(err))
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// AcceptTx flips pending → accepted and inserts the membership row in one
// transaction. Zero rows on the update means the invitation was not pending
// anymore; the transaction leaves nothing behind in that case.
func (r *InvitationRepository) AcceptTx(ctx context.Context, invitationID int) (*model.ProjectMember, error) {
	r.logger.Debug("Accepting invitation", zap.Int("invitation_id", invitationID))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin accept tx", zap.Error(err))
		return nil, err
	}
	defer tx.Rollback(ctx)

	updateQuery := `
        UPDATE project_invitations
        SET status = 'accepted', resolved_at = NOW()
        WHERE id = $1 AND status = 'pending'
        RETURNING project_id, invitee_id, role
    `
	var m model.ProjectMember
	err = tx.QueryRow(ctx, updateQuery, invitationID).Scan(&m.ProjectID, &m.UserID, &m.Role)
	if err != nil {
		// pgx.ErrNoRows: the invitation was already resolved or cancelled.
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("Failed to resolve invitation",
				zap.Int("invitation_id", invitationID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	memberQuery := `
        INSERT INTO project_members (project_id, user_id, role)
        VALUES ($1, $2, $3)
        RETURNING id, joined_at
    `
	if err := tx.QueryRow(ctx, memberQuery, m.ProjectID, m.UserID, m.Role).Scan(&m.ID, &m.JoinedAt); err != nil {
		r.logger.Error("Failed to insert membership on accept",
			zap.Int("invitation_id", invitationID),
			zap.Int("project_id", m.ProjectID),
			zap.Int("user_id", m.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit accept tx", zap.Error(err))
		return nil, err
	}

	r.logger.Info("Invitation accepted",
		zap.Int("invitation_id", invitationID),
		zap.Int("project_id", m.ProjectID),
		zap.Int("user_id", m.UserID),
		zap.String("role", string(m.Role)),
	)
	return &m, nil
}

// MarkDeclined flips pending → declined. pgx.ErrNoRows when not pending.
func (r *InvitationRepository) MarkDeclined(ctx context.Context, invitationID int) error {
	query := `
        UPDATE project_invitations
        SET status = 'declined', resolved_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `
	result, err := r.db.Exec(ctx, query, invitationID)
	if err != nil {
		r.logger.Error("Failed to decline invitation",
			zap.Int("invitation_id", invitationID),
			zap.Error(err),
		)
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	r.logger.Info("Invitation declined", zap.Int("invitation_id", invitationID))
	return nil
}

// DeletePending removes a still-pending invitation. Returns false when the
// invitation had already been resolved (nothing deleted).
func (r *InvitationRepository) DeletePending(ctx context.Context, invitationID int) (bool, error) {
	query := `DELETE FROM project_invitations WHERE id = $1 AND status = 'pending'`
	result, err := r.db.Exec(ctx, query, invitationID)
	if err != nil {
		r.logger.Error("Failed to delete invitation",
			zap.Int("invitation_id", invitationID),
			zap.Error(err),
		)
		return false, err
	}
	deleted := result.RowsAffected() > 0
	if deleted {
		r.logger.Info("Invitation cancelled", zap.Int("invitation_id", invitationID))
	}
	return deleted, nil
}
