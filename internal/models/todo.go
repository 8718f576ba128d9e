package models

import (
	"time"

	"github.com/google/uuid"
)

// Todo is a task owned by exactly one user. Every query against it is
// scoped by UserID; ownership is enforced at the row level, not in
// handlers.
type Todo struct {
	ID          uuid.UUID  `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	HasComment  bool       `json:"has_comment"`
	Priority    *int       `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Reminder    *time.Time `json:"reminder,omitempty"`
	Repeats     *string    `json:"repeats,omitempty"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	SectionID   *uuid.UUID `json:"section_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// TodoWithComments embeds a todo together with its comments, returned by
// the single-todo endpoint.
type TodoWithComments struct {
	Todo
	Comments []*Comment `json:"comments"`
}

// TodoUpdate carries the fields a PATCH may change. Nil means "leave
// untouched".
type TodoUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Reminder    *time.Time `json:"reminder,omitempty"`
	Repeats     *string    `json:"repeats,omitempty"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	SectionID   *uuid.UUID `json:"section_id,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u *TodoUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Completed == nil &&
		u.Priority == nil && u.DueDate == nil && u.Reminder == nil &&
		u.Repeats == nil && u.ProjectID == nil && u.SectionID == nil
}
