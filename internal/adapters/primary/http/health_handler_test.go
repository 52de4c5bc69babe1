package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/armesa-dashboard/internal/core/domain"
)

type feedState domain.ConnectionState

func (s feedState) State() domain.ConnectionState { return domain.ConnectionState(s) }

func okCheck(context.Context) error { return nil }

func serveHealth(t *testing.T, h *HealthHandler, path string) (int, HealthResponse) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, path, nil))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestHealthHandler_Liveness(t *testing.T) {
	code, resp := serveHealth(t, NewHealthHandler(nil, nil, nil, "test"), "/health/live")
	assert.Equal(t, stdhttp.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		db         HealthChecker
		backend    HealthChecker
		feed       FeedStateReader
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all up",
			db:         HealthCheckFunc(okCheck),
			backend:    HealthCheckFunc(okCheck),
			feed:       feedState(domain.StateConnected),
			wantCode:   stdhttp.StatusOK,
			wantStatus: "healthy",
		},
		{
			name:       "feed reconnecting",
			db:         HealthCheckFunc(okCheck),
			backend:    HealthCheckFunc(okCheck),
			feed:       feedState(domain.StateDisconnected),
			wantCode:   stdhttp.StatusOK,
			wantStatus: "degraded",
		},
		{
			name: "backend down",
			db:   HealthCheckFunc(okCheck),
			backend: HealthCheckFunc(func(context.Context) error {
				return errors.New("connection refused")
			}),
			feed:       feedState(domain.StateConnected),
			wantCode:   stdhttp.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
		{
			name:       "no database",
			backend:    HealthCheckFunc(okCheck),
			feed:       feedState(domain.StateConnected),
			wantCode:   stdhttp.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := serveHealth(t, NewHealthHandler(tt.db, tt.backend, tt.feed, "1.2.3"), "/health/ready")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "1.2.3", resp.Version)
			assert.Contains(t, resp.Checks, "live_feed")
		})
	}
}

func TestHealthHandler_DetailedIsStrict(t *testing.T) {
	h := NewHealthHandler(HealthCheckFunc(okCheck), HealthCheckFunc(okCheck), feedState(domain.StateDisconnected), "1.2.3")
	code, resp := serveHealth(t, h, "/health")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", resp.Status)
}
