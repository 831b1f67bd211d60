package repository

import (
	"context"
	"teamboard/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type MilestoneRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMilestoneRepository(db *pgxpool.Pool, logger *zap.Logger) *MilestoneRepository {
	return &MilestoneRepository{db: db, logger: logger}
}

func (r *MilestoneRepository) Insert(ctx context.Context, m *model.Milestone) error {
	r.logger.Debug("Inserting milestone",
		zap.Int("project_id", m.ProjectID),
		zap.String("title", m.Title),
	)
	query := `
        INSERT INTO milestones (project_id, title, description, due_date)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query, m.ProjectID, m.Title, m.Description, m.DueDate).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert milestone",
			zap.Int("project_id", m.ProjectID),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Milestone inserted successfully",
		zap.Int("milestone_id", m.ID),
		zap.Int("project_id", m.ProjectID),
	)
	return nil
}

func (r *MilestoneRepository) FindByID(ctx context.Context, id int) (*model.Milestone, error) {
	query := `
        SELECT id, project_id, title, description, due_date, created_at
        FROM milestones
        WHERE id = $1
    `
	var m model.Milestone
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.DueDate, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MilestoneRepository) ListByProject(ctx context.Context, projectID int) ([]model.Milestone, error) {
	query := `
        SELECT id, project_id, title, description, due_date, created_at
        FROM milestones
        WHERE project_id = $1
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to query milestones",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	milestones := []model.Milestone{}
	for rows.Next() {
		var m model.Milestone
		if err := rows.Scan(
			&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.DueDate, &m.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan milestone row", zap.Error(err))
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

func (r *MilestoneRepository) Update(ctx context.Context, m *model.Milestone) error {
	r.logger.Debug("Updating milestone", zap.Int("milestone_id", m.ID))
	query := `
        UPDATE milestones
        SET title = $2, description = $3, due_date = $4
        WHERE id = $1
    `
	result, err := r.db.Exec(ctx, query, m.ID, m.Title, m.Description, m.DueDate)
	if err != nil {
		r.logger.Error("Failed to update milestone",
			zap.Int("milestone_id", m.ID),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Milestone updated",
		zap.Int("milestone_id", m.ID),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

// Delete removes the milestone; tasks keep living with milestone_id set NULL
// by the FK.
func (r *MilestoneRepository) Delete(ctx context.Context, id int) error {
	r.logger.Debug("Deleting milestone", zap.Int("milestone_id", id))
	query := `DELETE FROM milestones WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete milestone",
			zap.Int("milestone_id", id),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Milestone deleted",
		zap.Int("milestone_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}
