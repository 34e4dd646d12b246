// internal/handlers/auth.go
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
)

// AuthHandler handles login and logout of the terminal user
type AuthHandler struct {
	responder
	auth ports.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth ports.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger.With(slog.String("handler", "auth"))},
		auth:      auth,
	}
}

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse describes the signed-in user
type UserResponse struct {
	Username  string      `json:"username"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// LoginResponse carries the bearer token, shown only once
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func newUserResponse(s *domain.Session) UserResponse {
	return UserResponse{
		Username:  s.Username,
		Name:      s.Name,
		Role:      s.Role,
		ExpiresAt: s.ExpiresAt,
	}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err, "login")
		return
	}

	token, session, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(w, r, err, "login")
		return
	}

	h.respondJSON(w, http.StatusOK, LoginResponse{Token: token, User: newUserResponse(session)})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFrom(r.Context())
	if !ok {
		h.handleError(w, r, domain.ErrUnauthenticated, "current user")
		return
	}
	h.respondJSON(w, http.StatusOK, newUserResponse(session))
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.BearerToken(r)); err != nil {
		h.handleError(w, r, err, "logout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
