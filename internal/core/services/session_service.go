package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// SessionService implements the dashboard session lifecycle
type SessionService struct {
	backend ports.BackendClient
	repo    ports.SessionRepository
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.SessionService = (*SessionService)(nil)

// NewSessionService creates a new session service
func NewSessionService(backend ports.BackendClient, repo ports.SessionRepository, logger *slog.Logger) *SessionService {
	return &SessionService{
		backend: backend,
		repo:    repo,
		logger:  logger.With("component", "session_service"),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Login authenticates against the backend and persists a new session
func (s *SessionService) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	result, err := s.backend.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	session := domain.NewSession(result.Token, result.User, now, result.ExpiresAt)
	if session.IsExpired(now) {
		return nil, apperrors.ErrSessionExpired
	}

	if err := s.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.InfoContext(ctx, "session created",
		"session_id", session.ID.String(),
		"username", session.User.Username,
		"role", string(session.User.Role),
	)
	return session, nil
}

// Load returns a live session. Expired sessions are removed on access.
func (s *SessionService) Load(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.IsExpired(s.now()) {
		if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, apperrors.ErrSessionNotFound) {
			s.logger.WarnContext(ctx, "failed to delete expired session", "session_id", id.String(), "error", err)
		}
		return nil, apperrors.ErrSessionExpired
	}

	return session, nil
}

// Logout clears the session. Clearing an absent session is not an error.
func (s *SessionService) Logout(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if err != nil && !errors.Is(err, apperrors.ErrSessionNotFound) {
		return err
	}
	s.logger.InfoContext(ctx, "session cleared", "session_id", id.String())
	return nil
}

// PurgeExpired removes every session past its expiry
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions purged", "count", n)
	}
	return n, nil
}
