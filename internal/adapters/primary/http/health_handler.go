package http

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
)

// HealthChecker defines the interface for health check dependencies
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Ping(ctx context.Context) error { return f(ctx) }

// FeedStateReader reports the live feed connection state.
type FeedStateReader interface {
	State() domain.ConnectionState
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db        HealthChecker
	backend   HealthChecker
	feed      FeedStateReader
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler. Any dependency may be nil;
// it is then reported as not configured.
func NewHealthHandler(db, backend HealthChecker, feed FeedStateReader, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		backend:   backend,
		feed:      feed,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

// HandleLiveness handles liveness probe requests (is the service running?)
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles readiness probe requests. The database and the
// backend must answer; a disconnected live feed only degrades the result
// because it reconnects on its own.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	response := h.collect(r.Context())

	statusCode := http.StatusOK
	if response.Status == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	WriteJSON(w, statusCode, response)
}

// HandleHealth handles detailed health check requests (for monitoring/debugging)
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := struct {
		HealthResponse
		Memory struct {
			Alloc      uint64 `json:"alloc_bytes"`
			TotalAlloc uint64 `json:"total_alloc_bytes"`
			Sys        uint64 `json:"sys_bytes"`
			NumGC      uint32 `json:"num_gc"`
		} `json:"memory"`
		Goroutines int `json:"goroutines"`
	}{
		HealthResponse: h.collect(r.Context()),
		Goroutines:     runtime.NumGoroutine(),
	}
	response.Memory.Alloc = memStats.Alloc
	response.Memory.TotalAlloc = memStats.TotalAlloc
	response.Memory.Sys = memStats.Sys
	response.Memory.NumGC = memStats.NumGC

	statusCode := http.StatusOK
	if response.Status != statusHealthy {
		statusCode = http.StatusServiceUnavailable
	}
	WriteJSON(w, statusCode, response)
}

func (h *HealthHandler) collect(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	checks := map[string]Check{
		"database":  ping(ctx, h.db, "Database not configured"),
		"backend":   ping(ctx, h.backend, "Backend not configured"),
		"live_feed": h.checkFeed(),
	}

	overall := statusHealthy
	if checks["live_feed"].Status != statusHealthy {
		overall = statusDegraded
	}
	if checks["database"].Status != statusHealthy || checks["backend"].Status != statusHealthy {
		overall = statusUnhealthy
	}

	return HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}
}

func ping(ctx context.Context, checker HealthChecker, missing string) Check {
	if checker == nil {
		return Check{Status: statusUnhealthy, Message: missing}
	}

	start := time.Now()
	err := checker.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{
			Status:  statusUnhealthy,
			Message: err.Error(),
			Latency: latency.String(),
		}
	}
	return Check{Status: statusHealthy, Latency: latency.String()}
}

func (h *HealthHandler) checkFeed() Check {
	if h.feed == nil {
		return Check{Status: statusDegraded, Message: "Live feed not configured"}
	}
	if state := h.feed.State(); state != domain.StateConnected {
		return Check{Status: statusDegraded, Message: "Live feed " + string(state)}
	}
	return Check{Status: statusHealthy}
}
