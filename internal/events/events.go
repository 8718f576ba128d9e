// Package events publishes activity events for user-visible mutations.
// Publishing is best effort; a failed publish never fails the request
// that triggered it.
package events

import (
	"context"
	"time"
)

// Well-known event types.
const (
	TypeUserRegistered = "user.registered"
	TypeUserLoggedIn   = "user.logged_in"
	TypeTodoCreated    = "todo.created"
	TypeTodoUpdated    = "todo.updated"
	TypeTodoDeleted    = "todo.deleted"
	TypeCommentCreated = "comment.created"
	TypeCommentUpdated = "comment.updated"
	TypeCommentDeleted = "comment.deleted"
)

// Event describes a single user action.
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	EntityID  string    `json:"entity_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers activity events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (NoopPublisher) HealthCheck(ctx context.Context) error          { return nil }
func (NoopPublisher) Close() error                                   { return nil }
