package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// TokenSealer encrypts backend tokens at rest.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// SessionRepository persists dashboard sessions. Backend tokens are stored
// sealed and never leave the database in clear text.
type SessionRepository struct {
	pool   *pgxpool.Pool
	tx     *TransactionManager
	sealer TokenSealer
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(pool *pgxpool.Pool, sealer TokenSealer) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		tx:     NewTransactionManager(pool),
		sealer: sealer,
	}
}

type sessionRow struct {
	ID          pgtype.UUID
	TokenSealed string
	UserID      string
	Username    string
	Role        string
	CreatedAt   pgtype.Timestamptz
	ExpiresAt   pgtype.Timestamptz
}

func (r *SessionRepository) mapRowToDomain(row sessionRow) (*domain.Session, error) {
	token, err := r.sealer.Open(row.TokenSealed)
	if err != nil {
		return nil, fmt.Errorf("open session token: %w", err)
	}

	return &domain.Session{
		ID:    fromUUID(row.ID),
		Token: token,
		User: domain.SessionUser{
			ID:       row.UserID,
			Username: row.Username,
			Role:     domain.Role(row.Role),
		},
		CreatedAt: fromTimestamptz(row.CreatedAt),
		ExpiresAt: fromTimestamptz(row.ExpiresAt),
	}, nil
}

// Save stores the session and drops the user's sessions that have already expired.
func (r *SessionRepository) Save(ctx context.Context, session *domain.Session) error {
	sealed, err := r.sealer.Seal(session.Token)
	if err != nil {
		return fmt.Errorf("seal session token: %w", err)
	}

	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		q := getDBTX(ctx, r.pool)

		if _, err := q.Exec(ctx,
			`DELETE FROM dashboard_sessions WHERE user_id = $1 AND expires_at <= $2`,
			session.User.ID, toTimestamptz(session.CreatedAt),
		); err != nil {
			return fmt.Errorf("prune user sessions: %w", err)
		}

		_, err := q.Exec(ctx, `
			INSERT INTO dashboard_sessions (id, token_sealed, user_id, username, role, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				token_sealed = EXCLUDED.token_sealed,
				username     = EXCLUDED.username,
				role         = EXCLUDED.role,
				expires_at   = EXCLUDED.expires_at`,
			toUUID(session.ID),
			sealed,
			session.User.ID,
			session.User.Username,
			string(session.User.Role),
			toTimestamptz(session.CreatedAt),
			toTimestamptz(session.ExpiresAt),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var row sessionRow
	err := getDBTX(ctx, r.pool).QueryRow(ctx, `
		SELECT id, token_sealed, user_id, username, role, created_at, expires_at
		FROM dashboard_sessions
		WHERE id = $1`,
		toUUID(id),
	).Scan(&row.ID, &row.TokenSealed, &row.UserID, &row.Username, &row.Role, &row.CreatedAt, &row.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, err
	}
	return r.mapRowToDomain(row)
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := getDBTX(ctx, r.pool).Exec(ctx, `DELETE FROM dashboard_sessions WHERE id = $1`, toUUID(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes every session whose expiry is at or before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := getDBTX(ctx, r.pool).Exec(ctx,
		`DELETE FROM dashboard_sessions WHERE expires_at <= $1`, toTimestamptz(now))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
