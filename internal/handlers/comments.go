package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"todo-server/internal/database"
	"todo-server/internal/events"
	"todo-server/internal/models"
	"todo-server/internal/request"
	"todo-server/internal/validation"
)

// CommentHandler handles comment requests nested under a todo.
type CommentHandler struct {
	todos    TodoRepo
	comments CommentRepo
	events   events.Publisher
	logger   *zap.Logger
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(todos TodoRepo, comments CommentRepo, publisher events.Publisher, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{todos: todos, comments: comments, events: publisher, logger: logger}
}

// RegisterRoutes registers comment routes on the given router. The router
// should already carry the /todos/{todoId}/comments prefix.
func (h *CommentHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListComments).Methods("GET")
	r.HandleFunc("", h.CreateComment).Methods("POST")
	r.HandleFunc("/{id}", h.UpdateComment).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteComment).Methods("DELETE")
}

// CommentRequest carries the comment body for create and update.
type CommentRequest struct {
	Comment string `json:"comment" validate:"required,min=1,max=10000"`
}

// ListComments lists the comments of a todo.
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	todoID, ok := h.ownedTodo(w, r)
	if !ok {
		return
	}

	comments, err := h.comments.ListByTodo(r.Context(), todoID)
	if err != nil {
		h.logger.Error("comment_list_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to retrieve comments.")
		return
	}

	respondJSON(w, http.StatusOK, comments)
}

// CreateComment adds a comment to a todo.
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	todoID, ok := h.ownedTodo(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeComment(w, r)
	if !ok {
		return
	}

	comment := &models.Comment{
		ID:      uuid.New(),
		TodoID:  todoID,
		Comment: req.Comment,
	}

	ctx := r.Context()
	if err := h.comments.Create(ctx, comment); err != nil {
		h.logger.Error("comment_create_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to create comment.")
		return
	}

	h.publish(ctx, events.TypeCommentCreated, request.UserID(r), comment.ID.String())
	respondJSON(w, http.StatusCreated, comment)
}

// UpdateComment changes a comment's text.
func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	todoID, ok := h.ownedTodo(w, r)
	if !ok {
		return
	}

	id, ok := parseID(w, r, "Invalid comment ID.")
	if !ok {
		return
	}

	req, ok := h.decodeComment(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	comment, err := h.comments.Update(ctx, id, todoID, req.Comment)
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(w, http.StatusNotFound, "Comment not found.")
		return
	}
	if err != nil {
		h.logger.Error("comment_update_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to update comment.")
		return
	}

	h.publish(ctx, events.TypeCommentUpdated, request.UserID(r), comment.ID.String())
	respondJSON(w, http.StatusOK, comment)
}

// DeleteComment removes a comment.
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	todoID, ok := h.ownedTodo(w, r)
	if !ok {
		return
	}

	id, ok := parseID(w, r, "Invalid comment ID.")
	if !ok {
		return
	}

	ctx := r.Context()
	err := h.comments.Delete(ctx, id, todoID)
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(w, http.StatusNotFound, "Comment not found.")
		return
	}
	if err != nil {
		h.logger.Error("comment_delete_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to delete comment.")
		return
	}

	h.publish(ctx, events.TypeCommentDeleted, request.UserID(r), id.String())
	w.WriteHeader(http.StatusNoContent)
}

// ownedTodo parses the todoId path variable and verifies the todo belongs
// to the authenticated user. A foreign todo reads as 404.
func (h *CommentHandler) ownedTodo(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	todoID, err := uuid.Parse(mux.Vars(r)["todoId"])
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid todo ID.")
		return uuid.Nil, false
	}

	exists, err := h.todos.Exists(r.Context(), todoID, request.UserID(r))
	if err != nil {
		h.logger.Error("todo_exists_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to retrieve todo.")
		return uuid.Nil, false
	}
	if !exists {
		respondMessage(w, http.StatusNotFound, "Todo not found.")
		return uuid.Nil, false
	}

	return todoID, true
}

func (h *CommentHandler) decodeComment(w http.ResponseWriter, r *http.Request) (*CommentRequest, bool) {
	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body.")
		return nil, false
	}
	req.Comment = validation.SanitizeText(req.Comment)
	if err := validation.Validate.Struct(req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Comment text is required.")
		return nil, false
	}
	return &req, true
}

func (h *CommentHandler) publish(ctx context.Context, eventType, userID, entityID string) {
	event := events.Event{
		Type:      eventType,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
	if err := h.events.Publish(ctx, event); err != nil {
		h.logger.Warn("event_publish_failed", zap.String("event_type", eventType), zap.Error(err))
	}
}
