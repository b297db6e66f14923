package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/studycompanion/internal/api"
	"github.com/cloo-solutions/studycompanion/internal/domain"
)

type AuthService interface {
	CreateUser(ctx context.Context, name string) (*domain.User, error)
	CreateAPIKey(ctx context.Context, userID, name string) (string, error)
}

// AuthHandler serves the unauthenticated signup endpoints
type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type CreateUserRequest struct {
	Name string `json:"name"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type CreateAPIKeyRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type APIKeyResponse struct {
	Token  string `json:"token"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	user, err := h.svc.CreateUser(r.Context(), req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}

func (h *AuthHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	if req.UserID == "" {
		api.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	token, err := h.svc.CreateAPIKey(r.Context(), req.UserID, req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, APIKeyResponse{
		Token:  token,
		Name:   strings.TrimSpace(req.Name),
		UserID: req.UserID,
	})
}
