package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	mw "github.com/lorrc/armesa-dashboard/internal/adapters/primary/http/middleware"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
)

// PermissionsDTO tells the dashboard which controls to show.
type PermissionsDTO struct {
	CanWorkTickets bool `json:"canWorkTickets"`
	CanManageUsers bool `json:"canManageUsers"`
}

// MeResponse describes the logged-in panel user.
type MeResponse struct {
	User             domain.SessionUser `json:"user"`
	SessionExpiresAt string             `json:"sessionExpiresAt"`
	Permissions      PermissionsDTO     `json:"permissions"`
}

// MeHandler handles HTTP requests for the authenticated user.
type MeHandler struct {
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(errorHandler *ErrorHandler, logger *slog.Logger) *MeHandler {
	return &MeHandler{
		errorHandler: errorHandler,
		logger:       logger.With("handler", "me"),
	}
}

// RegisterRoutes registers the /me routes.
func (h *MeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleMe)
}

// HandleMe handles GET /me.
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := mw.GetSession(r)
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	WriteJSON(w, http.StatusOK, MeResponse{
		User:             session.User,
		SessionExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		Permissions: PermissionsDTO{
			CanWorkTickets: session.User.Role.CanWorkTickets(),
			CanManageUsers: session.User.Role.CanManageUsers(),
		},
	})
}
