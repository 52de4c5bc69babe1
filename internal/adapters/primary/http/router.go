package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	mw "github.com/lorrc/armesa-dashboard/internal/adapters/primary/http/middleware"
	"github.com/lorrc/armesa-dashboard/internal/auth"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// RouterDeps holds everything the API router mounts. Rate limiters are
// optional; a nil limiter disables limiting for its routes.
type RouterDeps struct {
	Logger       *slog.Logger
	TokenManager *auth.TokenManager
	Sessions     ports.SessionService
	Dashboard    ports.DashboardService
	Feed         ports.LiveFeed

	Health    *HealthHandler
	WebSocket *WebSocketHandler

	CORSOrigins []string
	CORSMaxAge  int

	GeneralLimiter *mw.RateLimiter
	AuthLimiter    *mw.RateLimiter
}

// NewRouter builds the dashboard API.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	errorHandler := NewErrorHandler(logger)

	authHandler := NewAuthHandler(deps.Sessions, deps.TokenManager, errorHandler, logger)
	meHandler := NewMeHandler(errorHandler, logger)
	ticketHandler := NewTicketHandler(deps.Dashboard, errorHandler, logger)
	dashboardHandler := NewDashboardHandler(deps.Dashboard, errorHandler, logger)
	adminHandler := NewAdminHandler(deps.Dashboard, errorHandler, logger)
	settingsHandler := NewSettingsHandler(deps.Dashboard, errorHandler, logger)
	liveHandler := NewLiveHandler(deps.Feed, errorHandler, logger)

	requireSession := mw.SessionAuth(deps.TokenManager, deps.Sessions, logger)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", mw.RequestIDHeader},
			ExposedHeaders:   []string{mw.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           deps.CORSMaxAge,
		}))
	}
	if deps.GeneralLimiter != nil {
		r.Use(deps.GeneralLimiter.Middleware)
	}

	if deps.Health != nil {
		deps.Health.RegisterRoutes(r)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.AuthLimiter != nil {
				r.Use(deps.AuthLimiter.Middleware)
			}
			r.Route("/auth", func(r chi.Router) {
				authHandler.RegisterRoutes(r, requireSession)
			})
		})

		// The websocket handshake authenticates inside the handler.
		if deps.WebSocket != nil {
			r.Get("/live/ws", deps.WebSocket.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Route("/me", meHandler.RegisterRoutes)
			r.Route("/tickets", ticketHandler.RegisterRoutes)
			r.Group(dashboardHandler.RegisterRoutes)
			r.Route("/admin", adminHandler.RegisterRoutes)
			r.Route("/settings", settingsHandler.RegisterRoutes)
			r.Route("/live", liveHandler.RegisterRoutes)
		})
	})

	return r
}
