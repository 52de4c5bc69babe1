package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/armesa-dashboard/internal/adapters/primary/validation"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// DashboardHandler serves the read-only dashboard views.
type DashboardHandler struct {
	dashboard    ports.DashboardService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewDashboardHandler(dashboard ports.DashboardService, errorHandler *ErrorHandler, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard:    dashboard,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "dashboard"),
	}
}

func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/overview", h.HandleOverview)
	r.Get("/kpi", h.HandleKPI)
	r.Get("/search", h.HandleSearch)
	r.Get("/support-stats", h.HandleSupportStats)
	r.Get("/sla", h.HandleSLA)
	r.Get("/audit-log", h.HandleAuditLog)
	r.Get("/analytics", h.HandleAnalytics)
}

// HandleOverview handles GET /overview: KPIs plus the latest tickets.
func (h *DashboardHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.dashboard.Overview(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, overview)
}

func (h *DashboardHandler) HandleKPI(w http.ResponseWriter, r *http.Request) {
	kpi, err := h.dashboard.KPI(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, kpi)
}

// HandleSearch handles GET /search?q=
func (h *DashboardHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := h.dashboard.Search(r.Context(), validation.ParseStringQueryParam(r, "q"))
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteList(w, results)
}

func (h *DashboardHandler) HandleSupportStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.SupportStats(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteList(w, stats)
}

func (h *DashboardHandler) HandleSLA(w http.ResponseWriter, r *http.Request) {
	report, err := h.dashboard.SLA(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// HandleAuditLog handles GET /audit-log?page=&limit=
func (h *DashboardHandler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	params, err := validation.ParsePage(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	page, err := h.dashboard.AuditLog(r.Context(), params.Page, params.Limit)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// HandleAnalytics handles GET /analytics?days=
func (h *DashboardHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	days, err := validation.ParseIntQueryParam(r, "days", 0)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	analytics, err := h.dashboard.Analytics(r.Context(), ports.AnalyticsParams{Days: days})
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, analytics)
}
