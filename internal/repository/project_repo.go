package repository

import (
	"context"
	"teamboard/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

// InsertWithOwner creates the project and the creator's owner membership in
// one transaction, so no project ever exists without exactly one owner.
func (r *ProjectRepository) InsertWithOwner(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.String("name", p.Name),
		zap.Int("created_by", p.CreatedBy),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin project insert tx", zap.Error(err))
		return err
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO projects (name, description, template, created_by)
        VALUES ($1, $2, $3, $4)
        RETURNING id, progress, created_at, updated_at
    `
	err = tx.QueryRow(ctx, query, p.Name, p.Description, p.Template, p.CreatedBy).
		Scan(&p.ID, &p.Progress, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project",
			zap.String("name", p.Name),
			zap.Error(err),
		)
		return err
	}

	memberQuery := `
        INSERT INTO project_members (project_id, user_id, role)
        VALUES ($1, $2, $3)
    `
	if _, err := tx.Exec(ctx, memberQuery, p.ID, p.CreatedBy, model.RoleOwner); err != nil {
		r.logger.Error("Failed to insert owner membership",
			zap.Int("project_id", p.ID),
			zap.Int("user_id", p.CreatedBy),
			zap.Error(err),
		)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit project insert", zap.Error(err))
		return err
	}

	r.logger.Info("Project inserted successfully",
		zap.Int("project_id", p.ID),
		zap.Int("created_by", p.CreatedBy),
	)
	return nil
}

// ListForUser returns every project the user holds a membership in,
// newest first, with the caller's role and the task count.
func (r *ProjectRepository) ListForUser(ctx context.Context, userID int) ([]model.ProjectSummary, error) {
	r.logger.Debug("Listing projects for user", zap.Int("user_id", userID))
	query := `
        SELECT p.id, p.name, p.description, p.template, p.progress, p.created_by,
               p.created_at, p.updated_at, m.role,
               (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id) AS task_count
        FROM projects p
        JOIN project_members m ON m.project_id = p.id
        WHERE m.user_id = $1
        ORDER BY p.created_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query projects",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	projects := []model.ProjectSummary{}
	for rows.Next() {
		var s model.ProjectSummary
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Description, &s.Template, &s.Progress, &s.CreatedBy,
			&s.CreatedAt, &s.UpdatedAt, &s.Role, &s.TaskCount,
		); err != nil {
			r.logger.Error("Failed to scan project row",
				zap.Int("user_id", userID),
				zap.Error(err),
			)
			return nil, err
		}
		projects = append(projects, s)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) FindByID(ctx context.Context, id int) (*model.Project, error) {
	query := `
        SELECT id, name, description, template, progress, created_by, created_at, updated_at
        FROM projects
        WHERE id = $1
    `
	var p model.Project
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Template, &p.Progress, &p.CreatedBy,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) Update(ctx context.Context, id int, name, description string) error {
	r.logger.Debug("Updating project", zap.Int("project_id", id))
	query := `
        UPDATE projects
        SET name = $2, description = $3, updated_at = NOW()
        WHERE id = $1
    `
	result, err := r.db.Exec(ctx, query, id, name, description)
	if err != nil {
		r.logger.Error("Failed to update project",
			zap.Int("project_id", id),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Project updated",
		zap.Int("project_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id int) error {
	r.logger.Debug("Deleting project", zap.Int("project_id", id))
	query := `DELETE FROM projects WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete project",
			zap.Int("project_id", id),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Project deleted",
		zap.Int("project_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

// SetProgress stores the recomputed progress percentage.
func (r *ProjectRepository) SetProgress(ctx context.Context, id, progress int) error {
	query := `UPDATE projects SET progress = $2 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, progress); err != nil {
		r.logger.Error("Failed to set project progress",
			zap.Int("project_id", id),
			zap.Int("progress", progress),
			zap.Error(err),
		)
		return err
	}
	return nil
}
