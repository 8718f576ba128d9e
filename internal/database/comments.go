package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"todo-server/internal/models"
)

const commentColumns = `id, todo_id, comment, created_at, updated_at`

// CommentRepository handles comment database operations. Ownership checks
// run through the parent todo, which callers verify first (see the
// todo-exists guard in the comments handler).
type CommentRepository struct {
	db *DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByTodo retrieves all comments of a todo.
func (r *CommentRepository) ListByTodo(ctx context.Context, todoID uuid.UUID) ([]*models.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE todo_id = $1 ORDER BY created_at`,
		todoID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}

	return comments, nil
}

// Create inserts a comment and flips the parent todo's has_comment flag in
// the same transaction.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO comments (`+commentColumns+`) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		comment.ID, comment.TodoID, comment.Comment, time.Now(), nil,
	).Scan(&comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE todos SET has_comment = true WHERE id = $1`, comment.TodoID,
	); err != nil {
		return fmt.Errorf("failed to mark todo as commented: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Update changes a comment's text and returns the updated row.
func (r *CommentRepository) Update(ctx context.Context, id, todoID uuid.UUID, text string) (*models.Comment, error) {
	comment, err := scanComment(r.db.QueryRowContext(ctx,
		`UPDATE comments SET comment = $1, updated_at = $2 WHERE id = $3 AND todo_id = $4 RETURNING `+commentColumns,
		text, time.Now(), id, todoID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return comment, nil
}

// Delete removes a comment and recomputes the parent todo's has_comment
// flag in the same transaction.
func (r *CommentRepository) Delete(ctx context.Context, id, todoID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM comments WHERE id = $1 AND todo_id = $2`, id, todoID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE todos SET has_comment = EXISTS(SELECT 1 FROM comments WHERE todo_id = $1) WHERE id = $1`,
		todoID,
	); err != nil {
		return fmt.Errorf("failed to recompute comment flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func scanComment(row rowScanner) (*models.Comment, error) {
	comment := &models.Comment{}
	var updatedAt sql.NullTime

	err := row.Scan(
		&comment.ID,
		&comment.TodoID,
		&comment.Comment,
		&comment.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		comment.UpdatedAt = &updatedAt.Time
	}
	return comment, nil
}
