package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"lamisys/internal/domain"
)

type SessionsStore struct {
	pool *pgxpool.Pool
}

func NewSessionsStore(pool *pgxpool.Pool) *SessionsStore {
	return &SessionsStore{pool: pool}
}

func (s *SessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time) (string, error) {
	const q = `
		INSERT INTO sessions (user_id, expires_at)
		VALUES ($1, $2)
		RETURNING id
	`

	var idUUID pgtype.UUID
	if err := s.pool.QueryRow(ctx, q, userID, expiresAt).Scan(&idUUID); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return uuidOrEmpty(idUUID), nil
}

// GetSession returns only sessions that are neither revoked nor expired.
func (s *SessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	const q = `
		SELECT id, user_id, created_at, expires_at, revoked_at
		FROM sessions
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > now()
	`

	var (
		sess      domain.Session
		idUUID    pgtype.UUID
		userUUID  pgtype.UUID
		revokedTS pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, q, sessionID).Scan(
		&idUUID,
		&userUUID,
		&sess.CreatedAt,
		&sess.ExpiresAt,
		&revokedTS,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	sess.ID = uuidOrEmpty(idUUID)
	sess.UserID = uuidOrEmpty(userUUID)
	sess.RevokedAt = timestamptzPtr(revokedTS)
	return sess, nil
}

func (s *SessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	const q = `
		UPDATE sessions
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	if _, err := s.pool.Exec(ctx, q, sessionID, when); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeUserSessions invalidates every live session of one user. Called on
// password change.
func (s *SessionsStore) RevokeUserSessions(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE sessions
		SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	if _, err := s.pool.Exec(ctx, q, userID, when); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}
