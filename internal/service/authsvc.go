package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lamisys/internal/auth"
	"lamisys/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, u domain.User, passwordHash string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, u domain.User) (domain.User, error)
	DeleteUser(ctx context.Context, id string) error
	SetPasswordHash(ctx context.Context, userID, hash string) error
	SetRecoveryPasswordHash(ctx context.Context, userID, hash string) error
	SetFirstAccess(ctx context.Context, userID string, firstAccess bool) error
	SetLastLogin(ctx context.Context, userID string, when time.Time) error
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string, when time.Time) error
	RevokeUserSessions(ctx context.Context, userID string, when time.Time) error
}

// RecoveryMailer delivers the one-time recovery password.
type RecoveryMailer interface {
	SendRecoveryPassword(ctx context.Context, toEmail, name, password string) error
}

type AuthService struct {
	Users      UsersStore
	Sessions   SessionsStore
	Mailer     RecoveryMailer
	SessionTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Login accepts the primary password or, as a fallback, the one-time recovery
// password. A recovery login consumes the recovery hash and flags the account
// for a forced password change.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok {
		ok, err = s.tryRecoveryLogin(ctx, &u, password)
		if err != nil {
			return domain.User{}, "", err
		}
	}
	if !ok {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	sessID, err := s.Sessions.CreateSession(ctx, u.ID, s.now().Add(s.SessionTTL))
	if err != nil {
		return domain.User{}, "", err
	}

	_ = s.Users.SetLastLogin(ctx, u.ID, s.now())

	return u.User, sessID, nil
}

func (s *AuthService) tryRecoveryLogin(ctx context.Context, u *domain.UserWithPassword, password string) (bool, error) {
	if u.RecoveryPasswordHash == "" {
		return false, nil
	}
	ok, err := auth.VerifyPassword(u.RecoveryPasswordHash, password)
	if err != nil || !ok {
		return false, err
	}

	if err := s.Users.SetRecoveryPasswordHash(ctx, u.ID, ""); err != nil {
		return false, err
	}
	if err := s.Users.SetFirstAccess(ctx, u.ID, true); err != nil {
		return false, err
	}
	u.FirstAccess = true
	return true, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.RevokeSession(ctx, sessionID, s.now())
}

func (s *AuthService) GetUserForSession(ctx context.Context, sessionID string) (domain.User, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}

	u, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	return u, nil
}

// ChangePassword verifies the current password, stores the new hash and
// clears the first-access flag.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < 8 {
		return domain.NewValidationError(map[string]string{"new_password": "must be at least 8 characters"})
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	withPassword, err := s.Users.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return err
	}

	ok, err := auth.VerifyPassword(withPassword.PasswordHash, current)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.Users.SetPasswordHash(ctx, userID, hash)
}

// RequestPasswordRecovery generates a one-time password and emails it. The
// response never reveals whether the address exists.
func (s *AuthService) RequestPasswordRecovery(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return domain.NewValidationError(map[string]string{"email": "required"})
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	password := generateTemporaryPassword()
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.Users.SetRecoveryPasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}

	if s.Mailer == nil {
		return domain.ErrSMTPNotConfigured
	}
	if err := s.Mailer.SendRecoveryPassword(ctx, u.Email, u.Name, password); err != nil {
		s.logger().Error("auth: recovery email failed", "user_id", u.ID, "err", err)
		return err
	}
	return nil
}

// generateTemporaryPassword returns a short random password. Random enough
// for a single use; the user must replace it on first login.
func generateTemporaryPassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
