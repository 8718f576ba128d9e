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

// MaxTitleLength caps todo titles and comment bodies.
const MaxTitleLength = 10000

// TodoRepo is the slice of the todo repository the handler needs.
type TodoRepo interface {
	Create(ctx context.Context, todo *models.Todo) error
	GetByID(ctx context.Context, id uuid.UUID, userID string) (*models.Todo, error)
	GetByUserID(ctx context.Context, userID string, projectID *uuid.UUID) ([]*models.Todo, error)
	Update(ctx context.Context, id uuid.UUID, userID string, update *models.TodoUpdate) (*models.Todo, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) error
	Exists(ctx context.Context, id uuid.UUID, userID string) (bool, error)
}

// CommentRepo is the slice of the comment repository the handlers need.
type CommentRepo interface {
	ListByTodo(ctx context.Context, todoID uuid.UUID) ([]*models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) error
	Update(ctx context.Context, id, todoID uuid.UUID, text string) (*models.Comment, error)
	Delete(ctx context.Context, id, todoID uuid.UUID) error
}

// TodoHandler handles todo-related requests
type TodoHandler struct {
	todos    TodoRepo
	comments CommentRepo
	events   events.Publisher
	logger   *zap.Logger
}

// NewTodoHandler creates a new todo handler
func NewTodoHandler(todos TodoRepo, comments CommentRepo, publisher events.Publisher, logger *zap.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, comments: comments, events: publisher, logger: logger}
}

// RegisterRoutes registers todo routes on the given router. The router
// should already carry the /todos prefix.
func (h *TodoHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTodos).Methods("GET")
	r.HandleFunc("", h.CreateTodo).Methods("POST")
	r.HandleFunc("/{id}", h.GetTodo).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTodo).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTodo).Methods("DELETE")
}

// CreateTodoRequest represents a create todo request. The id is optional;
// offline-first clients mint their own so the todo keeps the id it already
// has locally.
type CreateTodoRequest struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Title       string     `json:"title" validate:"required,min=1,max=10000"`
	Description *string    `json:"description,omitempty"`
	Priority    *int       `json:"priority,omitempty" validate:"omitempty,min=1,max=4"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Reminder    *time.Time `json:"reminder,omitempty"`
	Repeats     *string    `json:"repeats,omitempty" validate:"omitempty,repeats"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	SectionID   *uuid.UUID `json:"section_id,omitempty"`
}

// ListTodos lists the authenticated user's todos, optionally filtered by
// project.
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	userID := request.UserID(r)

	var projectID *uuid.UUID
	if p := r.URL.Query().Get("project_id"); p != "" {
		parsed, err := uuid.Parse(p)
		if err != nil {
			respondMessage(w, http.StatusBadRequest, "Invalid project ID.")
			return
		}
		projectID = &parsed
	}

	todos, err := h.todos.GetByUserID(r.Context(), userID, projectID)
	if err != nil {
		h.logger.Error("todo_list_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to retrieve todos.")
		return
	}

	respondJSON(w, http.StatusOK, todos)
}

// CreateTodo creates a new todo
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	userID := request.UserID(r)

	var req CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	req.Title = validation.SanitizeText(req.Title)
	if err := validation.Validate.Struct(req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	id := uuid.New()
	if req.ID != nil {
		id = *req.ID
	}

	todo := &models.Todo{
		ID:          id,
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Reminder:    req.Reminder,
		Repeats:     req.Repeats,
		ProjectID:   req.ProjectID,
		SectionID:   req.SectionID,
	}

	ctx := r.Context()
	if err := h.todos.Create(ctx, todo); err != nil {
		h.logger.Error("todo_create_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to create todo.")
		return
	}

	h.publish(ctx, events.TypeTodoCreated, userID, todo.ID.String())
	respondJSON(w, http.StatusCreated, todo)
}

// GetTodo retrieves a todo together with its comments.
func (h *TodoHandler) GetTodo(w http.ResponseWriter, r *http.Request) {
	userID := request.UserID(r)

	id, ok := parseID(w, r, "Invalid todo ID.")
	if !ok {
		return
	}

	ctx := r.Context()
	todo, err := h.todos.GetByID(ctx, id, userID)
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(w, http.StatusNotFound, "Todo not found.")
		return
	}
	if err != nil {
		h.logger.Error("todo_get_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to retrieve todo.")
		return
	}

	comments, err := h.comments.ListByTodo(ctx, id)
	if err != nil {
		h.logger.Error("comment_list_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to retrieve comments.")
		return
	}

	respondJSON(w, http.StatusOK, &models.TodoWithComments{Todo: *todo, Comments: comments})
}

// UpdateTodo applies a partial update to a todo.
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	userID := request.UserID(r)

	id, ok := parseID(w, r, "Invalid todo ID.")
	if !ok {
		return
	}

	var update models.TodoUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if update.Empty() {
		respondMessage(w, http.StatusBadRequest, "No fields to update.")
		return
	}
	if update.Title != nil {
		sanitized := validation.SanitizeText(*update.Title)
		if sanitized == "" || len(sanitized) > MaxTitleLength {
			respondMessage(w, http.StatusBadRequest, "Invalid title.")
			return
		}
		update.Title = &sanitized
	}
	if update.Repeats != nil {
		if err := validation.ValidateRepeats(*update.Repeats); err != nil {
			respondMessage(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := r.Context()
	todo, err := h.todos.Update(ctx, id, userID, &update)
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(w, http.StatusNotFound, "Todo not found.")
		return
	}
	if err != nil {
		h.logger.Error("todo_update_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to update todo.")
		return
	}

	h.publish(ctx, events.TypeTodoUpdated, userID, todo.ID.String())
	respondJSON(w, http.StatusOK, todo)
}

// DeleteTodo deletes a todo and its comments.
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	userID := request.UserID(r)

	id, ok := parseID(w, r, "Invalid todo ID.")
	if !ok {
		return
	}

	ctx := r.Context()
	err := h.todos.Delete(ctx, id, userID)
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(w, http.StatusNotFound, "Todo not found.")
		return
	}
	if err != nil {
		h.logger.Error("todo_delete_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to delete todo.")
		return
	}

	h.publish(ctx, events.TypeTodoDeleted, userID, id.String())
	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) publish(ctx context.Context, eventType, userID, entityID string) {
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

func parseID(w http.ResponseWriter, r *http.Request, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondMessage(w, http.StatusBadRequest, message)
		return uuid.Nil, false
	}
	return id, true
}
