package repository

import (
	"context"
	"teamboard/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type CommentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCommentRepository(db *pgxpool.Pool, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{db: db, logger: logger}
}

// Insert stores the comment and its attachment metadata rows in one
// transaction.
func (r *CommentRepository) Insert(ctx context.Context, c *model.Comment) error {
	r.logger.Debug("Inserting comment",
		zap.Int("task_id", c.TaskID),
		zap.Int("author_id", c.AuthorID),
		zap.Int("attachments", len(c.Attachments)),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin comment insert tx", zap.Error(err))
		return err
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO comments (task_id, author_id, content)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `
	err = tx.QueryRow(ctx, query, c.TaskID, c.AuthorID, c.Content).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert comment",
			zap.Int("task_id", c.TaskID),
			zap.Error(err),
		)
		return err
	}

	attachmentQuery := `
        INSERT INTO attachments (comment_id, name, url, mime_type)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	for i := range c.Attachments {
		a := &c.Attachments[i]
		a.CommentID = c.ID
		if err := tx.QueryRow(ctx, attachmentQuery, c.ID, a.Name, a.URL, a.MimeType).Scan(&a.ID); err != nil {
			r.logger.Error("Failed to insert attachment",
				zap.Int("comment_id", c.ID),
				zap.String("name", a.Name),
				zap.Error(err),
			)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit comment insert", zap.Error(err))
		return err
	}

	r.logger.Info("Comment inserted successfully",
		zap.Int("comment_id", c.ID),
		zap.Int("task_id", c.TaskID),
	)
	return nil
}

// ListByTask returns the task's comments oldest first, with author display
// fields and attachments.
func (r *CommentRepository) ListByTask(ctx context.Context, taskID int) ([]model.Comment, error) {
	r.logger.Debug("Listing comments", zap.Int("task_id", taskID))
	query := `
        SELECT c.id, c.task_id, c.author_id, c.content, c.created_at,
               u.display_name, u.avatar_url
        FROM comments c
        JOIN users u ON u.id = c.author_id
        WHERE c.task_id = $1
        ORDER BY c.created_at ASC
    `
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to query comments",
			zap.Int("task_id", taskID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	comments := []model.Comment{}
	ids := []int{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(
			&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt,
			&c.AuthorName, &c.AuthorAvatar,
		); err != nil {
			r.logger.Error("Failed to scan comment row", zap.Error(err))
			return nil, err
		}
		c.Attachments = []model.Attachment{}
		comments = append(comments, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return comments, nil
	}

	attachmentQuery := `
        SELECT id, comment_id, name, url, mime_type
        FROM attachments
        WHERE comment_id = ANY($1)
        ORDER BY id ASC
    `
	aRows, err := r.db.Query(ctx, attachmentQuery, ids)
	if err != nil {
		r.logger.Error("Failed to query attachments",
			zap.Int("task_id", taskID),
			zap.Error(err),
		)
		return nil, err
	}
	defer aRows.Close()

	byComment := make(map[int][]model.Attachment)
	for aRows.Next() {
		var a model.Attachment
		if err := aRows.Scan(&a.ID, &a.CommentID, &a.Name, &a.URL, &a.MimeType); err != nil {
			r.logger.Error("Failed to scan attachment row", zap.Error(err))
			return nil, err
		}
		byComment[a.CommentID] = append(byComment[a.CommentID], a)
	}
	if err := aRows.Err(); err != nil {
		return nil, err
	}

	for i := range comments {
		if atts, ok := byComment[comments[i].ID]; ok {
			comments[i].Attachments = atts
		}
	}
	return comments, nil
}

func (r *CommentRepository) FindByID(ctx context.Context, id int) (*model.Comment, error) {
	query := `
        SELECT id, task_id, author_id, content, created_at
        FROM comments
        WHERE id = $1
    `
	var c model.Comment
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes the comment; attachments cascade via FK.
func (r *CommentRepository) Delete(ctx context.Context, id int) error {
	r.logger.Debug("Deleting comment", zap.Int("comment_id", id))
	query := `DELETE FROM comments WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete comment",
			zap.Int("comment_id", id),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Comment deleted",
		zap.Int("comment_id", id),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}
