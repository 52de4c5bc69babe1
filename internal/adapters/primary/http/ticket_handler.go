package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/armesa-dashboard/internal/adapters/primary/validation"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// TicketHandler handles HTTP requests for tickets
type TicketHandler struct {
	dashboard    ports.DashboardService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(dashboard ports.DashboardService, errorHandler *ErrorHandler, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{
		dashboard:    dashboard,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "ticket"),
	}
}

// RegisterRoutes sets up the routing for all ticket endpoints.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListTickets)

	r.Route("/{ticketID}", func(r chi.Router) {
		r.Get("/", h.HandleGetTicket)
		r.Put("/", h.HandleUpdateTicket)
		r.Post("/actions/{action}", h.HandleTicketAction)
	})
}

// parseTicketQuery maps the list query string onto a TicketQuery. Defaults
// and range checks are applied by the service.
func parseTicketQuery(r *http.Request) (domain.TicketQuery, error) {
	page, err := validation.ParsePage(r)
	if err != nil {
		return domain.TicketQuery{}, err
	}

	return domain.TicketQuery{
		Status:    domain.TicketStatus(validation.ParseStringQueryParam(r, "status")),
		Priority:  domain.TicketPriority(validation.ParseStringQueryParam(r, "priority")),
		Lang:      validation.ParseStringQueryParam(r, "lang"),
		Search:    validation.ParseStringQueryParam(r, "search"),
		SortBy:    validation.ParseStringQueryParam(r, "sort_by"),
		SortOrder: validation.ParseStringQueryParam(r, "sort_order"),
		Page:      page.Page,
		Limit:     page.Limit,
	}, nil
}

// HandleListTickets handles GET /tickets
func (h *TicketHandler) HandleListTickets(w http.ResponseWriter, r *http.Request) {
	query, err := parseTicketQuery(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	page, err := h.dashboard.ListTickets(r.Context(), query)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	limit := query.Limit
	if limit == 0 {
		limit = domain.DefaultTicketPageSize
	}
	current := page.Page
	if current == 0 {
		current = max(query.Page, 1)
	}

	WritePaginated(w, page.Tickets, current, limit, page.Total, page.Pages)
}

// HandleGetTicket handles GET /tickets/{ticketID}
func (h *TicketHandler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	detail, err := h.dashboard.GetTicket(r.Context(), chi.URLParam(r, "ticketID"))
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, detail)
}

// HandleUpdateTicket handles PUT /tickets/{ticketID}: notes, priority and
// status changes.
func (h *TicketHandler) HandleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	update, err := validation.DecodeJSON[domain.TicketUpdate](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	ticketID := chi.URLParam(r, "ticketID")
	if HandleError(w, r, h.dashboard.UpdateTicket(r.Context(), ticketID, *update), h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "ticket updated", "ticket_id", ticketID)
	WriteNoContent(w)
}

// HandleTicketAction handles POST /tickets/{ticketID}/actions/{action}
func (h *TicketHandler) HandleTicketAction(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	action := domain.TicketAction(chi.URLParam(r, "action"))

	result, err := h.dashboard.ApplyTicketAction(r.Context(), ticketID, action)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "ticket action applied",
		"ticket_id", ticketID,
		"action", action,
	)
	WriteJSON(w, http.StatusOK, result)
}
