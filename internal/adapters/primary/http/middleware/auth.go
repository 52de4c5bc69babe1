package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lorrc/armesa-dashboard/internal/auth"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
	"github.com/lorrc/armesa-dashboard/internal/infrastructure/logging"
)

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// SessionAuth validates the dashboard token, loads its session and puts the
// session on the request context for downstream handlers and the backend
// client.
func SessionAuth(tm *auth.TokenManager, sessions ports.SessionService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Authentication required", "UNAUTHORIZED")
				return
			}

			session, err := Authenticate(r, tm, sessions, tokenString)
			if err != nil {
				switch {
				case errors.Is(err, apperrors.ErrSessionExpired), errors.Is(err, apperrors.ErrSessionNotFound):
					writeJSONError(w, http.StatusUnauthorized, "Session expired, please log in again", "SESSION_EXPIRED")
				case errors.Is(err, apperrors.ErrUnauthorized):
					writeJSONError(w, http.StatusUnauthorized, "Invalid or expired token", "UNAUTHORIZED")
				default:
					logger.ErrorContext(r.Context(), "session lookup failed", "error", err)
					writeJSONError(w, http.StatusInternalServerError, "An unexpected error occurred", "INTERNAL_ERROR")
				}
				return
			}

			next.ServeHTTP(w, WithSession(r, session))
		})
	}
}

// Authenticate resolves a dashboard token to its live session.
func Authenticate(r *http.Request, tm *auth.TokenManager, sessions ports.SessionService, tokenString string) (*domain.Session, error) {
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	return sessions.Load(r.Context(), claims.SessionID)
}

// WithSession returns r with the session and its log fields on the context.
func WithSession(r *http.Request, session *domain.Session) *http.Request {
	ctx := domain.ContextWithSession(r.Context(), session)
	ctx = logging.WithSessionID(ctx, session.ID.String())
	ctx = logging.WithUserID(ctx, session.User.ID)
	return r.WithContext(ctx)
}

// GetSession returns the session set by SessionAuth.
func GetSession(r *http.Request) (*domain.Session, bool) {
	return domain.SessionFromContext(r.Context())
}
