package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"lamisys/internal/domain"
)

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userColumns = `
	id, name, email, matricula, role, avatar_url, first_access,
	created_at, updated_at, last_login_at
`

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u           domain.User
		idUUID      pgtype.UUID
		avatarText  pgtype.Text
		lastLoginTS pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID,
		&u.Name,
		&u.Email,
		&u.Matricula,
		&u.Role,
		&avatarText,
		&u.FirstAccess,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastLoginTS,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.ID = uuidOrEmpty(idUUID)
	u.AvatarURL = textOrEmpty(avatarText)
	u.LastLoginAt = timestamptzPtr(lastLoginTS)
	return u, nil
}

func (s *UsersStore) CreateUser(ctx context.Context, u domain.User, passwordHash string) (domain.User, error) {
	q := `
		INSERT INTO users (name, email, matricula, role, avatar_url, first_access, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	created, err := scanUser(s.pool.QueryRow(ctx, q,
		u.Name,
		u.Email,
		u.Matricula,
		u.Role,
		nullIfEmpty(u.AvatarURL),
		u.FirstAccess,
		passwordHash,
	))
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return created, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	const q = `
		SELECT id, name, email, matricula, role, avatar_url, first_access,
			created_at, updated_at, last_login_at,
			password_hash, recovery_password_hash
		FROM users
		WHERE lower(email) = lower($1)
		LIMIT 1
	`

	var (
		u           domain.UserWithPassword
		idUUID      pgtype.UUID
		avatarText  pgtype.Text
		lastLoginTS pgtype.Timestamptz
		recovery    pgtype.Text
	)
	err := s.pool.QueryRow(ctx, q, email).Scan(
		&idUUID,
		&u.Name,
		&u.Email,
		&u.Matricula,
		&u.Role,
		&avatarText,
		&u.FirstAccess,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastLoginTS,
		&u.PasswordHash,
		&recovery,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}

	u.ID = uuidOrEmpty(idUUID)
	u.AvatarURL = textOrEmpty(avatarText)
	u.LastLoginAt = timestamptzPtr(lastLoginTS)
	u.RecoveryPasswordHash = textOrEmpty(recovery)
	return u, nil
}

func (s *UsersStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY name, email`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (s *UsersStore) UpdateUser(ctx context.Context, u domain.User) (domain.User, error) {
	q := `
		UPDATE users
		SET name = $2, email = $3, matricula = $4, role = $5, avatar_url = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	updated, err := scanUser(s.pool.QueryRow(ctx, q,
		u.ID,
		u.Name,
		u.Email,
		u.Matricula,
		u.Role,
		nullIfEmpty(u.AvatarURL),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, mapUserWriteError(err)
	}
	return updated, nil
}

func (s *UsersStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetPasswordHash(ctx context.Context, userID, hash string) error {
	const q = `
		UPDATE users
		SET password_hash = $2, first_access = false, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, userID, hash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetRecoveryPasswordHash stores a one-time recovery hash. An empty hash
// clears it.
func (s *UsersStore) SetRecoveryPasswordHash(ctx context.Context, userID, hash string) error {
	const q = `
		UPDATE users
		SET recovery_password_hash = $2, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, userID, nullIfEmpty(hash))
	if err != nil {
		return fmt.Errorf("set recovery password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetFirstAccess(ctx context.Context, userID string, firstAccess bool) error {
	const q = `
		UPDATE users
		SET first_access = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID, firstAccess); err != nil {
		return fmt.Errorf("set first access: %w", err)
	}
	return nil
}

func (s *UsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET last_login_at = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID, when); err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}

func mapUserWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_email_uq":
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("write user: %w", err)
}
