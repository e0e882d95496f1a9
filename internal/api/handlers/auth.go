package handlers

import (
	"net/http"
	"time"

	"github.com/voltgrid/server/internal/api/problem"
	"github.com/voltgrid/server/internal/domain/users"
)

type AuthHandler struct {
	Service *users.Service
	Env     string
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

func userToResponse(user *users.User) *userResponse {
	if user == nil {
		return nil
	}
	return &userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		CreatedAt:   user.CreatedAt,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Auth service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload registerRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}
	user, err := h.Service.Register(r.Context(), users.RegisterParams{
		Email:       payload.Email,
		Password:    payload.Password,
		DisplayName: payload.DisplayName,
		Role:        payload.Role,
	})
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusCreated, userToResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Auth service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload loginRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	token, user, err := h.Service.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  userToResponse(user),
	})
}

// Me returns the authenticated user's own record.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Auth service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	user, err := h.Service.Get(r.Context(), actorID(r))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(user))
}
