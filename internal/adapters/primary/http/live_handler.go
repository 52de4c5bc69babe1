package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/armesa-dashboard/internal/adapters/primary/validation"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// LiveHandler exposes the buffered live feed for clients that poll instead
// of holding a websocket open.
type LiveHandler struct {
	feed         ports.LiveFeed
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewLiveHandler(feed ports.LiveFeed, errorHandler *ErrorHandler, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		feed:         feed,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "live"),
	}
}

func (h *LiveHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.HandleEvents)
	r.Post("/refresh", h.HandleRefresh)
}

// LiveFeedResponse is the polled view of the feed.
type LiveFeedResponse struct {
	Events []domain.Event `json:"events"`
	// Keys[i] is the list identity of Events[i].
	Keys   []string               `json:"keys"`
	State  domain.ConnectionState `json:"state"`
	Stats  domain.FeedStats       `json:"stats"`
	Filter domain.EventType       `json:"filter"`
}

// HandleEvents handles GET /live/events?type=
func (h *LiveHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	filter := domain.EventType(validation.ParseStringQueryParam(r, "type"))
	if err := validation.NewValidator().
		OneOf("type", string(filter), domain.FeedFilters).
		Err(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.writeFeed(w, filter)
}

// HandleRefresh handles POST /live/refresh: the snapshot is fetched again
// while the stream keeps running.
func (h *LiveHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.feed.Refresh(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "live feed refresh failed", "error", err)
		h.errorHandler.Handle(w, r, apperrors.ErrBackendUnavailable)
		return
	}

	h.writeFeed(w, "")
}

func (h *LiveHandler) writeFeed(w http.ResponseWriter, filter domain.EventType) {
	events := h.feed.Events(filter)
	if events == nil {
		events = []domain.Event{}
	}

	WriteJSON(w, http.StatusOK, LiveFeedResponse{
		Events: events,
		Keys:   domain.EventKeys(events),
		State:  h.feed.State(),
		Stats:  h.feed.Stats(),
		Filter: filter,
	})
}
