package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/domain"
	"github.com/shubham-shewale/tradestream/pkg/models"
)

// UserStore is the subset of the record store the account endpoints need.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

// UserHandler handles registration and login. Credentials are compared in
// plaintext; hardening is explicitly out of scope.
type UserHandler struct {
	store UserStore
}

func NewUserHandler(store UserStore) *UserHandler {
	return &UserHandler{store: store}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status string       `json:"status"`
	User   *models.User `json:"user,omitempty"`
}

// Register handles POST /register.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "body must be valid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}

	_, err := h.store.UserByEmail(r.Context(), req.Email)
	if err == nil {
		WriteError(w, http.StatusConflict, domain.ErrUserExists.Error(), "already registered")
		return
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Password:  req.Password,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, user)
}

// Login handles POST /login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "body must be valid JSON")
		return
	}

	user, err := h.store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		WriteError(w, http.StatusNotFound, domain.ErrUserNotFound.Error(), "no records found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	if user.Password != req.Password {
		WriteError(w, http.StatusUnauthorized, domain.ErrWrongPassword.Error(), "wrong password")
		return
	}

	WriteJSON(w, http.StatusOK, loginResponse{Status: "Success", User: user})
}
