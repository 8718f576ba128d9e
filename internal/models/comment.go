package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment belongs to a single todo. Access control runs through the parent:
// a comment is reachable only by the owner of its todo.
type Comment struct {
	ID        uuid.UUID  `json:"id"`
	TodoID    uuid.UUID  `json:"todo_id"`
	Comment   string     `json:"comment"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
