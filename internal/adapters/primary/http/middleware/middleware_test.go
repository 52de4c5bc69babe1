package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/armesa-dashboard/internal/auth"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/lorrc/armesa-dashboard/internal/core/mocks"
	"github.com/lorrc/armesa-dashboard/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestRecoveryLogger(t *testing.T) {
	handler := RecoveryLogger(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec)["code"])
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	handler := RequestLogger(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?token=secret", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 2, TTL: time.Minute})
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1").Code)

	limited := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeError(t, limited)["code"])

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2").Code)
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(context.Background(), RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1, TTL: time.Minute})
	current := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return current }

	rl.Allow("a")
	current = current.Add(2 * time.Minute)
	rl.Allow("b")
	rl.evictIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "a")
	assert.Contains(t, rl.visitors, "b")
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(req))
}

func TestSessionAuth(t *testing.T) {
	tm := auth.NewTokenManager("middleware-secret", time.Hour)
	session := domain.NewSession("backend-token", domain.SessionUser{ID: "u1", Username: "alice", Role: domain.RoleSupport}, time.Now(), time.Time{})
	token, err := tm.GenerateToken(session)
	require.NoError(t, err)

	newHandler := func(sessions *mocks.MockSessionService) (http.Handler, **domain.Session) {
		var got *domain.Session
		h := SessionAuth(tm, sessions, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = GetSession(r)
			w.WriteHeader(http.StatusOK)
		}))
		return h, &got
	}

	t.Run("missing header", func(t *testing.T) {
		h, _ := newHandler(mocks.NewMockSessionService())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec)["code"])
	})

	t.Run("bad token", func(t *testing.T) {
		h, _ := newHandler(mocks.NewMockSessionService())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired session", func(t *testing.T) {
		sessions := mocks.NewMockSessionService()
		sessions.On("Load", mock.Anything, session.ID).Return(nil, apperrors.ErrSessionExpired)
		h, _ := newHandler(sessions)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "SESSION_EXPIRED", decodeError(t, rec)["code"])
	})

	t.Run("store failure", func(t *testing.T) {
		sessions := mocks.NewMockSessionService()
		sessions.On("Load", mock.Anything, session.ID).Return(nil, assert.AnError)
		h, _ := newHandler(sessions)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("valid", func(t *testing.T) {
		sessions := mocks.NewMockSessionService()
		sessions.On("Load", mock.Anything, session.ID).Return(session, nil)
		h, got := newHandler(sessions)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, *got)
		assert.Equal(t, session.ID, (*got).ID)
		sessions.AssertExpectations(t)
	})
}

func TestBySession(t *testing.T) {
	session := domain.NewSession("t", domain.SessionUser{ID: "u1"}, time.Now(), time.Time{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:1"
	assert.Equal(t, "192.0.2.9", BySession(req))

	req = WithSession(req, session)
	assert.Equal(t, "session:"+session.ID.String(), BySession(req))
}
