package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	mw "github.com/lorrc/armesa-dashboard/internal/adapters/primary/http/middleware"
	"github.com/lorrc/armesa-dashboard/internal/adapters/primary/validation"
	"github.com/lorrc/armesa-dashboard/internal/auth"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// AuthHandler exchanges backend credentials for dashboard sessions.
type AuthHandler struct {
	sessions     ports.SessionService
	tokenManager *auth.TokenManager
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewAuthHandler(sessions ports.SessionService, tokenManager *auth.TokenManager, errorHandler *ErrorHandler, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		tokenManager: tokenManager,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "auth"),
	}
}

// RegisterRoutes registers /auth. Logout needs a session, login does not.
func (h *AuthHandler) RegisterRoutes(r chi.Router, requireSession func(http.Handler) http.Handler) {
	r.Post("/login", h.HandleLogin)
	r.With(requireSession).Post("/logout", h.HandleLogout)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	return validation.NewValidator().
		Required("username", r.Username).
		MaxLength("username", r.Username, domain.MaxUsernameLength).
		Required("password", r.Password).
		MaxLength("password", r.Password, domain.MaxPasswordLength).
		Err()
}

type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt string             `json:"expiresAt"`
	User      domain.SessionUser `json:"user"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeJSON[LoginRequest](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, req.Validate(), h.errorHandler) {
		return
	}

	session, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	token, err := h.tokenManager.GenerateToken(session)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewInternalError(err))
		return
	}

	WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: h.tokenManager.ExpiresAt(session).UTC().Format(time.RFC3339),
		User:      session.User,
	})
}

// HandleLogout handles POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	session, ok := mw.GetSession(r)
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	if HandleError(w, r, h.sessions.Logout(r.Context(), session.ID), h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "session ended")
	WriteNoContent(w)
}
