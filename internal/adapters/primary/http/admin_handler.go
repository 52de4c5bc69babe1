package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/armesa-dashboard/internal/adapters/primary/validation"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// AdminHandler manages panel users. The service enforces the admin role.
type AdminHandler struct {
	dashboard    ports.DashboardService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewAdminHandler(dashboard ports.DashboardService, errorHandler *ErrorHandler, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		dashboard:    dashboard,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "admin"),
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.HandleListUsers)
		r.Post("/", h.HandleCreateUser)
		r.Delete("/{userID}", h.HandleDeleteUser)
	})
}

// HandleListUsers handles GET /admin/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.dashboard.ListUsers(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteList(w, users)
}

// HandleCreateUser handles POST /admin/users
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	params, err := validation.DecodeJSON[domain.CreateUserParams](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	user, err := h.dashboard.CreateUser(r.Context(), *params)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "panel user created",
		"target_user_id", user.ID,
		"role", user.Role,
	)
	WriteCreated(w, user)
}

// HandleDeleteUser handles DELETE /admin/users/{userID}
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if HandleError(w, r, h.dashboard.DeleteUser(r.Context(), userID), h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "panel user deleted", "target_user_id", userID)
	WriteNoContent(w)
}
