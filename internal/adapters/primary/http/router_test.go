package http

import (
	"bytes"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/armesa-dashboard/internal/auth"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/lorrc/armesa-dashboard/internal/core/mocks"
	"github.com/lorrc/armesa-dashboard/internal/infrastructure/logging"
)

type testAPI struct {
	handler   stdhttp.Handler
	tm        *auth.TokenManager
	sessions  *mocks.MockSessionService
	dashboard *mocks.MockDashboardService
	feed      *mocks.MockLiveFeed
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	api := &testAPI{
		tm:        auth.NewTokenManager("handler-test-secret", time.Hour),
		sessions:  mocks.NewMockSessionService(),
		dashboard: mocks.NewMockDashboardService(),
		feed:      mocks.NewMockLiveFeed(),
	}
	api.handler = NewRouter(RouterDeps{
		Logger:       logging.Discard(),
		TokenManager: api.tm,
		Sessions:     api.sessions,
		Dashboard:    api.dashboard,
		Feed:         api.feed,
		CORSOrigins:  []string{"http://localhost:3000"},
		CORSMaxAge:   300,
	})

	t.Cleanup(func() {
		api.sessions.AssertExpectations(t)
		api.dashboard.AssertExpectations(t)
		api.feed.AssertExpectations(t)
	})
	return api
}

// login registers a stored session for role and returns its bearer token.
func (a *testAPI) login(t *testing.T, role domain.Role) (*domain.Session, string) {
	t.Helper()

	session := domain.NewSession("backend-token",
		domain.SessionUser{ID: "user-" + string(role), Username: string(role), Role: role},
		time.Now(), time.Time{})
	token, err := a.tm.GenerateToken(session)
	require.NoError(t, err)

	a.sessions.On("Load", mock.Anything, session.ID).Return(session, nil).Maybe()
	return session, token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeJSON[ErrorResponse](t, rec).Code
}

func TestRouter_ProtectedRoutesNeedSession(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{
		"/api/v1/me",
		"/api/v1/tickets",
		"/api/v1/overview",
		"/api/v1/admin/users",
		"/api/v1/settings",
		"/api/v1/live/events",
	} {
		t.Run(path, func(t *testing.T) {
			rec := api.do(t, stdhttp.MethodGet, path, "", nil)
			assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
		})
	}
}

func TestRouter_RequestIDAndCORS(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(stdhttp.MethodOptions, "/api/v1/tickets", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", stdhttp.MethodGet)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(stdhttp.MethodOptions, "/api/v1/tickets", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", stdhttp.MethodGet)
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, stdhttp.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}
