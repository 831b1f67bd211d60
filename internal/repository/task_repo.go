package repository

import (
	"context"
	"fmt"
	"strings"
	"teamboard/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Insert appends the task at the end of the project's ordering: the position
// is max(position)+1, computed inside the insert statement.
func (r *TaskRepository) Insert(ctx context.Context, t *model.Task) error {
	r.logger.Debug("Inserting task",
		zap.Int("project_id", t.ProjectID),
		zap.String("title", t.Title),
		zap.String("status", string(t.Status)),
	)
	query := `
        INSERT INTO tasks (project_id, milestone_id, title, description, status, priority, assignee_id, due_date, position)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
            (SELECT COALESCE(MAX(position), 0) + 1 FROM tasks WHERE project_id = $1))
        RETURNING id, position, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.ProjectID,
		t.MilestoneID,
		t.Title,
		t.Description,
		t.Status,
		t.Priority,
		t.AssigneeID,
		t.DueDate,
	).Scan(&t.ID, &t.Position, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Int("project_id", t.ProjectID),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Task inserted successfully",
		zap.Int("task_id", t.ID),
		zap.Int("project_id", t.ProjectID),
		zap.Int("position", t.Position),
	)
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id int) (*model.Task, error) {
	query := `
        SELECT id, project_id, milestone_id, title, description, status, priority,
               assignee_id, due_date, position, created_at, updated_at
        FROM tasks
        WHERE id = $1
    `
	var t model.Task
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.ProjectID, &t.MilestoneID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.AssigneeID, &t.DueDate, &t.Position, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByProject returns the project's tasks in position order.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID int) ([]model.Task, error) {
	r.logger.Debug("Listing tasks", zap.Int("project_id", projectID))
	query := `
        SELECT id, project_id, milestone_id, title, description, status, priority,
               assignee_id, due_date, position, created_at, updated_at
        FROM tasks
        WHERE project_id = $1
        ORDER BY position ASC
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to query tasks",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(
			&t.ID, &t.ProjectID, &t.MilestoneID, &t.Title, &t.Description, &t.Status, &t.Priority,
			&t.AssigneeID, &t.DueDate, &t.Position, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan task row",
				zap.Int("project_id", projectID),
				zap.Error(err),
			)
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateFields applies a partial update: only the supplied fields reach the
// SET list. Clear flags null out the optional references.
func (r *TaskRepository) UpdateFields(ctx context.Context, id int, u *model.TaskUpdate) error {
	setParts := []string{}
	args := []interface{}{}
	argPos := 1

	if u.Title != nil {
		setParts = append(setParts, fmt.Sprintf("title = $%d", argPos))
		args = append(args, *u.Title)
		argPos++
	}
	if u.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *u.Description)
		argPos++
	}
	if u.Status != nil {
		setParts = append(setParts, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *u.Status)
		argPos++
	}
	if u.Priority != nil {
		setParts = append(setParts, fmt.Sprintf("priority = $%d", argPos))
		args = append(args, *u.Priority)
		argPos++
	}
	if u.ClearAssignee {
		setParts = append(setParts, "assignee_id = NULL")
	} else if u.AssigneeID != nil {
		setParts = append(setParts, fmt.Sprintf("assignee_id = $%d", argPos))
		args = append(args, *u.AssigneeID)
		argPos++
	}
	if u.ClearDueDate {
		setParts = append(setParts, "due_date = NULL")
	} else if u.DueDate != nil {
		setParts = append(setParts, fmt.Sprintf("due_date = $%d", argPos))
		args = append(args, *u.DueDate)
		argPos++
	}
	if u.ClearMilestone {
		setParts = append(setParts, "milestone_id = NULL")
	} else if u.MilestoneID != nil {
		setParts = append(setParts, fmt.Sprintf("milestone_id = $%d", argPos))
		args = append(args, *u.MilestoneID)
		argPos++
	}

	if len(setParts) == 0 {
		return nil
	}

	setParts = append(setParts, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", strings.Join(setParts, ", "), argPos)
	args = append(args, id)

	r.logger.Debug("Updating task",
		zap.Int("task_id", id),
		zap.Int("fields", len(setParts)-1),
	)

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update task",
			zap.Int("task_id", id),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Task updated",
		zap.Int("task_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	r.logger.Debug("Deleting task", zap.Int("task_id", id))
	query := `DELETE FROM tasks WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete task",
			zap.Int("task_id", id),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Task deleted",
		zap.Int("task_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

// MoveTx reassigns the milestone reference and, when beforeTaskID is set,
// renumbers positions in one transaction so the moved task lands directly
// before the target. Positions stay dense: the vacated slot is closed before
// the insertion slot is opened.
func (r *TaskRepository) MoveTx(ctx context.Context, taskID int, milestoneID *int, beforeTaskID *int) error {
	r.logger.Debug("Moving task",
		zap.Int("task_id", taskID),
		zap.Any("before_task_id", beforeTaskID),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin move tx", zap.Error(err))
		return err
	}
	defer tx.Rollback(ctx)

	var projectID, oldPos int
	err = tx.QueryRow(ctx,
		`SELECT project_id, position FROM tasks WHERE id = $1 FOR UPDATE`,
		taskID,
	).Scan(&projectID, &oldPos)
	if err != nil {
		return err
	}

	if beforeTaskID == nil {
		_, err = tx.Exec(ctx,
			`UPDATE tasks SET milestone_id = $2, updated_at = NOW() WHERE id = $1`,
			taskID, milestoneID,
		)
		if err != nil {
			r.logger.Error("Failed to reassign milestone",
				zap.Int("task_id", taskID),
				zap.Error(err),
			)
			return err
		}
		return tx.Commit(ctx)
	}

	var targetProject, targetPos int
	err = tx.QueryRow(ctx,
		`SELECT project_id, position FROM tasks WHERE id = $1 FOR UPDATE`,
		*beforeTaskID,
	).Scan(&targetProject, &targetPos)
	if err != nil {
		return err
	}
	if targetProject != projectID {
		return fmt.Errorf("move target task %d belongs to another project", *beforeTaskID)
	}

	// Close the gap left by the moved task.
	_, err = tx.Exec(ctx,
		`UPDATE tasks SET position = position - 1 WHERE project_id = $1 AND position > $2 AND id <> $3`,
		projectID, oldPos, taskID,
	)
	if err != nil {
		r.logger.Error("Failed to close position gap", zap.Error(err))
		return err
	}
	if targetPos > oldPos {
		targetPos--
	}

	// Open the insertion slot at the target.
	_, err = tx.Exec(ctx,
		`UPDATE tasks SET position = position + 1 WHERE project_id = $1 AND position >= $2 AND id <> $3`,
		projectID, targetPos, taskID,
	)
	if err != nil {
		r.logger.Error("Failed to shift positions", zap.Error(err))
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE tasks SET position = $2, milestone_id = $3, updated_at = NOW() WHERE id = $1`,
		taskID, targetPos, milestoneID,
	)
	if err != nil {
		r.logger.Error("Failed to place moved task",
			zap.Int("task_id", taskID),
			zap.Error(err),
		)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit move tx", zap.Error(err))
		return err
	}

	r.logger.Info("Task moved",
		zap.Int("task_id", taskID),
		zap.Int("project_id", projectID),
		zap.Int("from", oldPos),
		zap.Int("to", targetPos),
	)
	return nil
}

// CountByProject returns total and completed task counts for progress
// recomputation.
func (r *TaskRepository) CountByProject(ctx context.Context, projectID int) (total, completed int, err error) {
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = 'completed')
        FROM tasks
        WHERE project_id = $1
    `
	err = r.db.QueryRow(ctx, query, projectID).Scan(&total, &completed)
	if err != nil {
		r.logger.Error("Failed to count tasks",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
		return 0, 0, err
	}
	return total, completed, nil
}
