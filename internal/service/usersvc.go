package service

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"lamisys/internal/auth"
	"lamisys/internal/domain"
)

// WelcomeMailer delivers the temporary password of a newly created account.
type WelcomeMailer interface {
	SendWelcome(ctx context.Context, toEmail, name, password string) error
}

type UserService struct {
	Users    UsersStore
	Sessions SessionsStore
	Mailer   WelcomeMailer
	Logger   *slog.Logger
	Now      func() time.Time
}

type CreateUserInput struct {
	Name      string
	Email     string
	Matricula string
	Role      domain.Role
	AvatarURL string
}

// CreateUser provisions an account with a generated temporary password and
// emails it. The account starts in first-access mode so the password must be
// replaced on first login. The temporary password is also returned for the
// case where mail is not configured yet.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (domain.User, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Matricula = strings.TrimSpace(in.Matricula)
	if in.Role == "" {
		in.Role = domain.RoleUser
	}

	if fields := validateUserInput(in.Name, in.Email, in.Role); len(fields) > 0 {
		return domain.User{}, "", domain.NewValidationError(fields)
	}

	password := generateTemporaryPassword()
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.CreateUser(ctx, domain.User{
		Name:        in.Name,
		Email:       in.Email,
		Matricula:   in.Matricula,
		Role:        in.Role,
		AvatarURL:   in.AvatarURL,
		FirstAccess: true,
	}, hash)
	if err != nil {
		return domain.User{}, "", err
	}

	if s.Mailer != nil {
		if err := s.Mailer.SendWelcome(ctx, u.Email, u.Name, password); err != nil {
			s.logger().Error("users: welcome email failed", "user_id", u.ID, "err", err)
		}
	}

	return u, password, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.Users.GetUserByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Users.ListUsers(ctx)
}

type UpdateUserInput struct {
	Name      *string
	Email     *string
	Matricula *string
	Role      *domain.Role
	AvatarURL *string
}

func (s *UserService) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (domain.User, error) {
	u, err := s.Users.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		u.Email = strings.TrimSpace(strings.ToLower(*in.Email))
	}
	if in.Matricula != nil {
		u.Matricula = strings.TrimSpace(*in.Matricula)
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*in.AvatarURL)
	}

	if fields := validateUserInput(u.Name, u.Email, u.Role); len(fields) > 0 {
		return domain.User{}, domain.NewValidationError(fields)
	}

	return s.Users.UpdateUser(ctx, u)
}

// DeleteUser removes the account and revokes its live sessions.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if s.Now == nil {
		s.Now = time.Now
	}
	if err := s.Users.DeleteUser(ctx, id); err != nil {
		return err
	}
	if err := s.Sessions.RevokeUserSessions(ctx, id, s.Now()); err != nil {
		s.logger().Error("users: revoke sessions failed", "user_id", id, "err", err)
	}
	return nil
}

// ResetPassword issues a fresh temporary password for the account and puts it
// back into first-access mode.
func (s *UserService) ResetPassword(ctx context.Context, id string) (string, error) {
	u, err := s.Users.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}

	password := generateTemporaryPassword()
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	if err := s.Users.SetPasswordHash(ctx, id, hash); err != nil {
		return "", err
	}
	if err := s.Users.SetFirstAccess(ctx, id, true); err != nil {
		return "", err
	}

	if s.Mailer != nil {
		if err := s.Mailer.SendWelcome(ctx, u.Email, u.Name, password); err != nil {
			s.logger().Error("users: reset email failed", "user_id", id, "err", err)
		}
	}
	return password, nil
}

func validateUserInput(name, email string, role domain.Role) map[string]string {
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "required"
	}
	if email == "" {
		fields["email"] = "required"
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "invalid address"
	}
	if !role.Valid() {
		fields["role"] = "unknown role"
	}
	return fields
}

func (s *UserService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
