package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lamisys/internal/domain"
)

// SMTPSettingsStore persists the single outgoing-mail configuration row.
type SMTPSettingsStore struct {
	pool *pgxpool.Pool
}

func NewSMTPSettingsStore(pool *pgxpool.Pool) *SMTPSettingsStore {
	return &SMTPSettingsStore{pool: pool}
}

// GetSMTPSettings reports ok=false when nothing has been configured yet.
func (s *SMTPSettingsStore) GetSMTPSettings(ctx context.Context) (domain.SMTPSettings, bool, error) {
	const q = `
		SELECT host, port, username, password, tls_mode, from_name, from_email, created_at, updated_at
		FROM smtp_settings
		WHERE id = 1
	`

	var settings domain.SMTPSettings
	err := s.pool.QueryRow(ctx, q).Scan(
		&settings.Host,
		&settings.Port,
		&settings.Username,
		&settings.Password,
		&settings.TLSMode,
		&settings.FromName,
		&settings.FromEmail,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SMTPSettings{}, false, nil
		}
		return domain.SMTPSettings{}, false, fmt.Errorf("get smtp settings: %w", err)
	}
	return settings, true, nil
}

func (s *SMTPSettingsStore) UpsertSMTPSettings(ctx context.Context, settings domain.SMTPSettings) error {
	const q = `
		INSERT INTO smtp_settings (
			id, host, port, username, password, tls_mode, from_name, from_email, created_at, updated_at
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (id)
		DO UPDATE SET
			host = EXCLUDED.host,
			port = EXCLUDED.port,
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			tls_mode = EXCLUDED.tls_mode,
			from_name = EXCLUDED.from_name,
			from_email = EXCLUDED.from_email,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, q,
		settings.Host,
		settings.Port,
		settings.Username,
		settings.Password,
		settings.TLSMode,
		settings.FromName,
		settings.FromEmail,
	)
	if err != nil {
		return fmt.Errorf("upsert smtp settings: %w", err)
	}
	return nil
}
