package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"todo-server/internal/models"
)

// ErrNotFound is returned when a row does not exist or belongs to a
// different user; the two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("not found")

const todoColumns = `id, user_id, title, description, completed, has_comment, priority, due_date, reminder, repeats, project_id, section_id, created_at, updated_at`

// TodoRepository handles todo database operations. Every query is scoped by
// user id.
type TodoRepository struct {
	db *DB
}

// NewTodoRepository creates a new todo repository
func NewTodoRepository(db *DB) *TodoRepository {
	return &TodoRepository{db: db}
}

// Create inserts a new todo
func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	query := `
		INSERT INTO todos (` + todoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		todo.ID,
		todo.UserID,
		todo.Title,
		todo.Description,
		todo.Completed,
		todo.HasComment,
		todo.Priority,
		todo.DueDate,
		todo.Reminder,
		todo.Repeats,
		todo.ProjectID,
		todo.SectionID,
		time.Now(),
		nil,
	).Scan(&todo.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}

	return nil
}

// GetByID retrieves a todo owned by the given user.
func (r *TodoRepository) GetByID(ctx context.Context, id uuid.UUID, userID string) (*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND user_id = $2`

	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return todo, nil
}

// GetByUserID retrieves all todos for a user, optionally filtered by project.
func (r *TodoRepository) GetByUserID(ctx context.Context, userID string, projectID *uuid.UUID) ([]*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE user_id = $1`
	args := []any{userID}
	if projectID != nil {
		query += ` AND project_id = $2`
		args = append(args, *projectID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	todos := []*models.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}

	return todos, nil
}

// Update applies a partial update to a todo owned by the user and returns
// the updated row. The SET clause is assembled from the non-nil fields.
func (r *TodoRepository) Update(ctx context.Context, id uuid.UUID, userID string, update *models.TodoUpdate) (*models.Todo, error) {
	setClause, args := buildTodoUpdate(update)
	whereIndex := len(args) + 1
	args = append(args, id, userID)

	query := fmt.Sprintf(
		`UPDATE todos SET %s WHERE id = $%d AND user_id = $%d RETURNING `+todoColumns,
		setClause, whereIndex, whereIndex+1,
	)

	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return todo, nil
}

// Delete removes a todo owned by the user together with its comments, in
// one transaction so the comments never orphan.
func (r *TodoRepository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE todo_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Exists reports whether a todo exists and is owned by the user.
func (r *TodoRepository) Exists(ctx context.Context, id uuid.UUID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM todos WHERE id = $1 AND user_id = $2)`,
		id, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check todo existence: %w", err)
	}
	return exists, nil
}

// buildTodoUpdate assembles the SET clause and argument list for a partial
// update. updated_at is always set.
func buildTodoUpdate(update *models.TodoUpdate) (string, []any) {
	var clauses []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Completed != nil {
		add("completed", *update.Completed)
	}
	if update.Priority != nil {
		add("priority", *update.Priority)
	}
	if update.DueDate != nil {
		add("due_date", *update.DueDate)
	}
	if update.Reminder != nil {
		add("reminder", *update.Reminder)
	}
	if update.Repeats != nil {
		add("repeats", *update.Repeats)
	}
	if update.ProjectID != nil {
		add("project_id", *update.ProjectID)
	}
	if update.SectionID != nil {
		add("section_id", *update.SectionID)
	}
	add("updated_at", time.Now())

	return strings.Join(clauses, ", "), args
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	todo := &models.Todo{}
	var updatedAt sql.NullTime

	err := row.Scan(
		&todo.ID,
		&todo.UserID,
		&todo.Title,
		&todo.Description,
		&todo.Completed,
		&todo.HasComment,
		&todo.Priority,
		&todo.DueDate,
		&todo.Reminder,
		&todo.Repeats,
		&todo.ProjectID,
		&todo.SectionID,
		&todo.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		todo.UpdatedAt = &updatedAt.Time
	}
	return todo, nil
}
