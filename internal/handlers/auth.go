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

	"todo-server/internal/auth"
	"todo-server/internal/events"
	"todo-server/internal/models"
	"todo-server/internal/userstore"
	"todo-server/internal/validation"
)

// Messages returned to clients. Registration with a taken email reports
// 401 rather than 409 so the response is indistinguishable from other
// credential failures.
const (
	msgWrongPassword    = "Wrong password."
	msgEmailUnavailable = "The provided email address is not available."
)

// UserStore persists and looks up credential records.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	users    UserStore
	sessions *auth.SessionService
	events   events.Publisher
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users UserStore, sessions *auth.SessionService, publisher events.Publisher, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, events: publisher, logger: logger}
}

// RegisterRoutes registers the credential routes on the given router. The
// router should already carry the /auth prefix.
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("DELETE")
}

// Register creates a new user and opens a session for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	if err := validation.Validate.Struct(creds); err != nil {
		respondMessage(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		h.logger.Error("password_hash_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Registration failed.")
		return
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Email:    creds.Email,
		Password: hash,
		Created:  time.Now().UTC(),
	}

	ctx := r.Context()
	if err := h.users.Create(ctx, user); err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			respondMessage(w, http.StatusUnauthorized, msgEmailUnavailable)
			return
		}
		h.logger.Error("user_create_failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Registration failed.")
		return
	}

	h.publish(ctx, events.TypeUserRegistered, user.ID, "")
	h.openSession(w, r, user.ID, http.StatusCreated)
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	if err := validation.Validate.Struct(creds); err != nil {
		// Absent credentials read the same as wrong ones.
		respondMessage(w, http.StatusUnauthorized, msgWrongPassword)
		return
	}

	ctx := r.Context()
	user, err := h.users.FindByEmail(ctx, creds.Email)
	if err != nil {
		if !errors.Is(err, userstore.ErrNotFound) {
			h.logger.Error("user_lookup_failed", zap.Error(err))
		}
		// Unknown email and wrong password are deliberately the same answer.
		respondMessage(w, http.StatusUnauthorized, msgWrongPassword)
		return
	}

	if !auth.CheckPassword(creds.Password, user.Password) {
		respondMessage(w, http.StatusUnauthorized, msgWrongPassword)
		return
	}

	h.publish(ctx, events.TypeUserLoggedIn, user.ID, "")
	h.openSession(w, r, user.ID, http.StatusOK)
}

// Logout clears the session cookies. Tokens are stateless, so there is
// nothing to revoke server side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) decodeCredentials(w http.ResponseWriter, r *http.Request) (*models.Credentials, bool) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body.")
		return nil, false
	}
	return &creds, true
}

func (h *AuthHandler) openSession(w http.ResponseWriter, r *http.Request, userID string, status int) {
	session, err := h.sessions.IssueSession(r.Context(), userID)
	if err != nil {
		h.logger.Error("session_issue_failed", zap.String("user_id", userID), zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Failed to create session.")
		return
	}

	if err := auth.WriteSession(w, session, auth.ClientKindFromRequest(r), status); err != nil {
		h.logger.Error("session_write_failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (h *AuthHandler) publish(ctx context.Context, eventType, userID, entityID string) {
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
