package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"lamisys/internal/domain"
)

type UserDevicesStore struct {
	pool *pgxpool.Pool
}

func NewUserDevicesStore(pool *pgxpool.Pool) *UserDevicesStore {
	return &UserDevicesStore{pool: pool}
}

func (s *UserDevicesStore) UpsertDevice(ctx context.Context, userID, token, platform string, when time.Time) (domain.UserDevice, error) {
	const q = `
		INSERT INTO user_devices (user_id, token, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (token)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, token, platform, created_at, updated_at
	`

	var (
		d        domain.UserDevice
		idUUID   pgtype.UUID
		userUUID pgtype.UUID
	)
	err := s.pool.QueryRow(ctx, q, userID, token, platform, when).Scan(
		&idUUID,
		&userUUID,
		&d.Token,
		&d.Platform,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return domain.UserDevice{}, fmt.Errorf("upsert user device: %w", err)
	}

	d.ID = uuidOrEmpty(idUUID)
	d.UserID = uuidOrEmpty(userUUID)
	return d, nil
}

func (s *UserDevicesStore) DeleteDevice(ctx context.Context, userID, token string) error {
	const q = `
		DELETE FROM user_devices
		WHERE user_id = $1 AND token = $2
	`
	if _, err := s.pool.Exec(ctx, q, userID, token); err != nil {
		return fmt.Errorf("delete user device: %w", err)
	}
	return nil
}

// DeleteToken removes a registration token regardless of owner. Used when the
// push gateway reports the token as no longer registered.
func (s *UserDevicesStore) DeleteToken(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_devices WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}

func (s *UserDevicesStore) ListDevicesForUser(ctx context.Context, userID string) ([]domain.UserDevice, error) {
	const q = `
		SELECT id, user_id, token, platform, created_at, updated_at
		FROM user_devices
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list user devices: %w", err)
	}
	return collectDevices(rows)
}

// ListDevicesByEmails resolves alarm recipients straight to their registered
// devices.
func (s *UserDevicesStore) ListDevicesByEmails(ctx context.Context, emails []string) ([]domain.UserDevice, error) {
	const q = `
		SELECT d.id, d.user_id, d.token, d.platform, d.created_at, d.updated_at
		FROM user_devices d
		JOIN users u ON u.id = d.user_id
		WHERE lower(u.email) = ANY($1)
		ORDER BY d.updated_at DESC
	`

	lowered := make([]string, 0, len(emails))
	for _, e := range emails {
		lowered = append(lowered, strings.ToLower(e))
	}
	rows, err := s.pool.Query(ctx, q, pgtype.FlatArray[string](lowered))
	if err != nil {
		return nil, fmt.Errorf("list devices by emails: %w", err)
	}
	return collectDevices(rows)
}

func collectDevices(rows pgx.Rows) ([]domain.UserDevice, error) {
	defer rows.Close()

	var out []domain.UserDevice
	for rows.Next() {
		var (
			d        domain.UserDevice
			idUUID   pgtype.UUID
			userUUID pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &userUUID, &d.Token, &d.Platform, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user device: %w", err)
		}
		d.ID = uuidOrEmpty(idUUID)
		d.UserID = uuidOrEmpty(userUUID)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list user devices: %w", err)
	}
	return out, nil
}
