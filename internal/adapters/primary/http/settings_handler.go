package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/armesa-dashboard/internal/adapters/primary/validation"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

type SettingsHandler struct {
	dashboard    ports.DashboardService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewSettingsHandler(dashboard ports.DashboardService, errorHandler *ErrorHandler, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		dashboard:    dashboard,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "settings"),
	}
}

func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGetSettings)
	r.Put("/", h.HandleUpdateSettings)
}

// HandleGetSettings handles GET /settings
func (h *SettingsHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.dashboard.GetSettings(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings handles PUT /settings and echoes the stored values.
func (h *SettingsHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := validation.DecodeJSON[domain.Settings](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	if HandleError(w, r, h.dashboard.UpdateSettings(r.Context(), *settings), h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "settings updated")
	WriteJSON(w, http.StatusOK, settings)
}
