package repository

import (
	"context"
	"teamboard/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type MemberRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMemberRepository(db *pgxpool.Pool, logger *zap.Logger) *MemberRepository {
	return &MemberRepository{db: db, logger: logger}
}

// Find returns the membership row for (project, user). pgx.ErrNoRows means
// the user is not a member.
func (r *MemberRepository) Find(ctx context.Context, projectID, userID int) (*model.ProjectMember, error) {
	query := `
        SELECT id, project_id, user_id, role, joined_at
        FROM project_members
        WHERE project_id = $1 AND user_id = $2
    `
	var m model.ProjectMember
	err := r.db.QueryRow(ctx, query, projectID, userID).Scan(
		&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByProject returns all members with their user display fields.
func (r *MemberRepository) ListByProject(ctx context.Context, projectID int) ([]model.ProjectMember, error) {
	r.logger.Debug("Listing members", zap.Int("project_id", projectID))
	query := `
        SELECT m.id, m.project_id, m.user_id, m.role, m.joined_at,
               u.display_name, u.email, u.avatar_url, u.job_title
        FROM project_members m
        JOIN users u ON u.id = m.user_id
        WHERE m.project_id = $1
        ORDER BY m.joined_at ASC
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to query members",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	members := []model.ProjectMember{}
	for rows.Next() {
		var m model.ProjectMember
		if err := rows.Scan(
			&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt,
			&m.DisplayName, &m.Email, &m.AvatarURL, &m.JobTitle,
		); err != nil {
			r.logger.Error("Failed to scan member row",
				zap.Int("project_id", projectID),
				zap.Error(err),
			)
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *MemberRepository) Insert(ctx context.Context, m *model.ProjectMember) error {
	r.logger.Debug("Inserting member",
		zap.Int("project_id", m.ProjectID),
		zap.Int("user_id", m.UserID),
		zap.String("role", string(m.Role)),
	)
	query := `
        INSERT INTO project_members (project_id, user_id, role)
        VALUES ($1, $2, $3)
        RETURNING id, joined_at
    `
	err := r.db.QueryRow(ctx, query, m.ProjectID, m.UserID, m.Role).Scan(&m.ID, &m.JoinedAt)
	if err != nil {
		r.logger.Error("Failed to insert member",
			zap.Int("project_id", m.ProjectID),
			zap.Int("user_id", m.UserID),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Member inserted successfully",
		zap.Int("project_id", m.ProjectID),
		zap.Int("user_id", m.UserID),
	)
	return nil
}

func (r *MemberRepository) Delete(ctx context.Context, projectID, userID int) error {
	r.logger.Debug("Removing member",
		zap.Int("project_id", projectID),
		zap.Int("user_id", userID),
	)
	query := `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`
	result, err := r.db.Exec(ctx, query, projectID, userID)
	if err != nil {
		r.logger.Error("Failed to remove member",
			zap.Int("project_id", projectID),
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Member removed",
		zap.Int("project_id", projectID),
		zap.Int("user_id", userID),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}
