package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	mw "github.com/lorrc/armesa-dashboard/internal/adapters/primary/http/middleware"
	"github.com/lorrc/armesa-dashboard/internal/adapters/primary/validation"
	wsAdapter "github.com/lorrc/armesa-dashboard/internal/adapters/primary/websocket"
	"github.com/lorrc/armesa-dashboard/internal/auth"
	"github.com/lorrc/armesa-dashboard/internal/config"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// WebSocketHandler upgrades authenticated browsers onto the live feed hub.
type WebSocketHandler struct {
	hub          *wsAdapter.Hub
	tm           *auth.TokenManager
	sessions     ports.SessionService
	clientCfg    wsAdapter.ClientConfig
	upgrader     websocket.Upgrader
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	tm *auth.TokenManager,
	sessions ports.SessionService,
	cfg *config.Config,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:      hub,
		tm:       tm,
		sessions: sessions,
		clientCfg: wsAdapter.ClientConfig{
			SendBuffer: cfg.WebSocket.SendBufferSize,
			PongWait:   cfg.WebSocket.PongWait,
			PingPeriod: cfg.WebSocket.PingInterval,
		},
		errorHandler: errorHandler,
		logger:       logger.With("handler", "websocket"),
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg.WebSocket.AllowedOrigins, cfg.IsDevelopment()),
	}

	return handler
}

// makeOriginChecker accepts exact hosts and "*.example.com" wildcards.
// Development mode accepts any origin.
func (h *WebSocketHandler) makeOriginChecker(allowedOrigins []string, development bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if development {
			if origin != "" {
				h.logger.Debug("allowing websocket origin in development mode", "origin", origin)
			}
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin", "origin", origin, "error", err)
			return false
		}

		originHost := parsedOrigin.Host
		for _, allowed := range allowedOrigins {
			if allowedURL, err := url.Parse(allowed); err == nil && allowedURL.Host != "" {
				allowed = allowedURL.Host
			}
			if strings.HasPrefix(allowed, "*.") {
				suffix := allowed[1:]
				if strings.HasSuffix(originHost, suffix) || originHost == allowed[2:] {
					return true
				}
			} else if originHost == allowed {
				return true
			}
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
		)
		return false
	}
}

// sessionToken reads the dashboard token. Browsers cannot set headers on a
// websocket handshake, so the query parameter is checked first.
func sessionToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	token, _ := mw.BearerToken(r)
	return token
}

// ServeHTTP handles GET /live/ws?token=&type=
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := domain.EventType(validation.ParseStringQueryParam(r, "type"))
	if err := validation.NewValidator().OneOf("type", string(filter), domain.FeedFilters).Err(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	tokenString := sessionToken(r)
	if tokenString == "" {
		h.logger.WarnContext(r.Context(), "websocket connection rejected: missing token", "remote_addr", r.RemoteAddr)
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	session, err := mw.Authenticate(r, h.tm, h.sessions, tokenString)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket connection rejected",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		h.errorHandler.Handle(w, r, err)
		return
	}
	r = mw.WithSession(r, session)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.WarnContext(r.Context(), "failed to upgrade websocket connection", "error", err)
		return
	}

	client := wsAdapter.NewClient(h.hub, conn, session.ID.String(), filter, h.clientCfg, h.logger)
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	h.logger.InfoContext(r.Context(), "websocket connection established", "filter", filter)
	client.Start()
}
