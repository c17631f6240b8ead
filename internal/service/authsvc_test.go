package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lamisys/internal/auth"
	"lamisys/internal/domain"
)

type stubUsersStore struct {
	t *testing.T

	createUserFunc              func(context.Context, domain.User, string) (domain.User, error)
	getUserByIDFunc             func(context.Context, string) (domain.User, error)
	getUserByEmailFunc          func(context.Context, string) (domain.UserWithPassword, error)
	listUsersFunc               func(context.Context) ([]domain.User, error)
	updateUserFunc              func(context.Context, domain.User) (domain.User, error)
	deleteUserFunc              func(context.Context, string) error
	setPasswordHashFunc         func(context.Context, string, string) error
	setRecoveryPasswordHashFunc func(context.Context, string, string) error
	setFirstAccessFunc          func(context.Context, string, bool) error
	setLastLoginFunc            func(context.Context, string, time.Time) error
}

func (s *stubUsersStore) CreateUser(ctx context.Context, u domain.User, passwordHash string) (domain.User, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, u, passwordHash)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getUserByIDFunc != nil {
		return s.getUserByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	if s.getUserByEmailFunc != nil {
		return s.getUserByEmailFunc(ctx, email)
	}
	s.t.Fatalf("GetUserByEmail called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	if s.listUsersFunc != nil {
		return s.listUsersFunc(ctx)
	}
	s.t.Fatalf("ListUsers called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubUsersStore) UpdateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if s.updateUserFunc != nil {
		return s.updateUserFunc(ctx, u)
	}
	s.t.Fatalf("UpdateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) DeleteUser(ctx context.Context, id string) error {
	if s.deleteUserFunc != nil {
		return s.deleteUserFunc(ctx, id)
	}
	s.t.Fatalf("DeleteUser called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) SetPasswordHash(ctx context.Context, userID, hash string) error {
	if s.setPasswordHashFunc != nil {
		return s.setPasswordHashFunc(ctx, userID, hash)
	}
	s.t.Fatalf("SetPasswordHash called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) SetRecoveryPasswordHash(ctx context.Context, userID, hash string) error {
	if s.setRecoveryPasswordHashFunc != nil {
		return s.setRecoveryPasswordHashFunc(ctx, userID, hash)
	}
	s.t.Fatalf("SetRecoveryPasswordHash called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) SetFirstAccess(ctx context.Context, userID string, firstAccess bool) error {
	if s.setFirstAccessFunc != nil {
		return s.setFirstAccessFunc(ctx, userID, firstAccess)
	}
	s.t.Fatalf("SetFirstAccess called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	if s.setLastLoginFunc != nil {
		return s.setLastLoginFunc(ctx, userID, when)
	}
	s.t.Fatalf("SetLastLogin called unexpectedly")
	return errors.New("unexpected call")
}

type stubSessionsStore struct {
	t *testing.T

	createSessionFunc      func(context.Context, string, time.Time) (string, error)
	getSessionFunc         func(context.Context, string) (domain.Session, error)
	revokeSessionFunc      func(context.Context, string, time.Time) error
	revokeUserSessionsFunc func(context.Context, string, time.Time) error
}

func (s *stubSessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time) (string, error) {
	if s.createSessionFunc != nil {
		return s.createSessionFunc(ctx, userID, expiresAt)
	}
	s.t.Fatalf("CreateSession called unexpectedly")
	return "", errors.New("unexpected call")
}

func (s *stubSessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if s.getSessionFunc != nil {
		return s.getSessionFunc(ctx, sessionID)
	}
	s.t.Fatalf("GetSession called unexpectedly")
	return domain.Session{}, errors.New("unexpected call")
}

func (s *stubSessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	if s.revokeSessionFunc != nil {
		return s.revokeSessionFunc(ctx, sessionID, when)
	}
	s.t.Fatalf("RevokeSession called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubSessionsStore) RevokeUserSessions(ctx context.Context, userID string, when time.Time) error {
	if s.revokeUserSessionsFunc != nil {
		return s.revokeUserSessionsFunc(ctx, userID, when)
	}
	s.t.Fatalf("RevokeUserSessions called unexpectedly")
	return errors.New("unexpected call")
}

type stubRecoveryMailer struct {
	sendFunc func(context.Context, string, string, string) error
}

func (m *stubRecoveryMailer) SendRecoveryPassword(ctx context.Context, toEmail, name, password string) error {
	if m.sendFunc != nil {
		return m.sendFunc(ctx, toEmail, name, password)
	}
	return nil
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func TestAuthServiceLoginWithPassword(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	hash := mustHash(t, "correct horse")

	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			if email != "planner@example.com" {
				t.Fatalf("unexpected email lookup: %s", email)
			}
			return domain.UserWithPassword{
				User:         domain.User{ID: "user-1", Email: email, Role: domain.RolePlanner},
				PasswordHash: hash,
			}, nil
		},
		setLastLoginFunc: func(_ context.Context, userID string, when time.Time) error {
			if userID != "user-1" || !when.Equal(now) {
				t.Fatalf("unexpected last login: %s %s", userID, when)
			}
			return nil
		},
	}
	sessions := &stubSessionsStore{
		t: t,
		createSessionFunc: func(_ context.Context, userID string, expiresAt time.Time) (string, error) {
			if userID != "user-1" || !expiresAt.Equal(now.Add(12*time.Hour)) {
				t.Fatalf("unexpected session args: %s %s", userID, expiresAt)
			}
			return "sess-1", nil
		},
	}

	svc := &AuthService{
		Users:      users,
		Sessions:   sessions,
		SessionTTL: 12 * time.Hour,
		Now:        func() time.Time { return now },
	}

	user, sessID, err := svc.Login(context.Background(), " Planner@Example.COM ", "correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" || sessID != "sess-1" {
		t.Fatalf("unexpected login result: %+v %s", user, sessID)
	}
}

func TestAuthServiceConcurrentLoginsShareNoState(t *testing.T) {
	hash := mustHash(t, "correct horse")
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{
				User:         domain.User{ID: "user-1", Email: email},
				PasswordHash: hash,
			}, nil
		},
		setLastLoginFunc: func(_ context.Context, _ string, _ time.Time) error { return nil },
	}
	sessions := &stubSessionsStore{
		t: t,
		createSessionFunc: func(_ context.Context, _ string, _ time.Time) (string, error) {
			return "sess-1", nil
		},
	}

	// No injected clock, like the production wiring. Login must not write to
	// the service struct from request goroutines.
	svc := &AuthService{Users: users, Sessions: sessions, SessionTTL: time.Hour}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Login(context.Background(), "a@x.com", "correct horse")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, _ string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{
				User:         domain.User{ID: "user-1"},
				PasswordHash: mustHash(t, "right"),
			}, nil
		},
	}

	svc := &AuthService{Users: users, Sessions: &stubSessionsStore{t: t}, SessionTTL: time.Hour}
	_, _, err := svc.Login(context.Background(), "a@x.com", "wrong")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, _ string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
	}

	svc := &AuthService{Users: users, Sessions: &stubSessionsStore{t: t}, SessionTTL: time.Hour}
	_, _, err := svc.Login(context.Background(), "nobody@x.com", "whatever")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthServiceLoginWithRecoveryPasswordConsumesIt(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	var clearedRecovery, flaggedFirstAccess bool
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, _ string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{
				User:                 domain.User{ID: "user-1", Email: "a@x.com"},
				PasswordHash:         mustHash(t, "forgotten"),
				RecoveryPasswordHash: mustHash(t, "one-time"),
			}, nil
		},
		setRecoveryPasswordHashFunc: func(_ context.Context, userID, hash string) error {
			if userID != "user-1" || hash != "" {
				t.Fatalf("expected recovery hash cleared, got %q for %s", hash, userID)
			}
			clearedRecovery = true
			return nil
		},
		setFirstAccessFunc: func(_ context.Context, userID string, firstAccess bool) error {
			if userID != "user-1" || !firstAccess {
				t.Fatalf("expected first access flagged")
			}
			flaggedFirstAccess = true
			return nil
		},
		setLastLoginFunc: func(_ context.Context, _ string, _ time.Time) error { return nil },
	}
	sessions := &stubSessionsStore{
		t: t,
		createSessionFunc: func(_ context.Context, _ string, _ time.Time) (string, error) {
			return "sess-1", nil
		},
	}

	svc := &AuthService{
		Users:      users,
		Sessions:   sessions,
		SessionTTL: time.Hour,
		Now:        func() time.Time { return now },
	}

	user, _, err := svc.Login(context.Background(), "a@x.com", "one-time")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !clearedRecovery || !flaggedFirstAccess {
		t.Fatalf("recovery login must clear the hash and flag first access")
	}
	if !user.FirstAccess {
		t.Fatalf("returned user must carry the first access flag")
	}
}

func TestAuthServiceRecoveryRequestDoesNotRevealUnknownEmail(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, _ string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
	}
	mailer := &stubRecoveryMailer{
		sendFunc: func(_ context.Context, _, _, _ string) error {
			t.Fatalf("no email expected for unknown address")
			return nil
		},
	}

	svc := &AuthService{Users: users, Sessions: &stubSessionsStore{t: t}, Mailer: mailer}
	if err := svc.RequestPasswordRecovery(context.Background(), "nobody@x.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthServiceRecoveryRequestStoresAndEmailsOneTimePassword(t *testing.T) {
	var storedHash, sentPassword string
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, _ string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{User: domain.User{ID: "user-1", Email: "a@x.com", Name: "Ana"}}, nil
		},
		setRecoveryPasswordHashFunc: func(_ context.Context, userID, hash string) error {
			if userID != "user-1" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			storedHash = hash
			return nil
		},
	}
	mailer := &stubRecoveryMailer{
		sendFunc: func(_ context.Context, toEmail, name, password string) error {
			if toEmail != "a@x.com" || name != "Ana" {
				t.Fatalf("unexpected mail args: %s %s", toEmail, name)
			}
			sentPassword = password
			return nil
		},
	}

	svc := &AuthService{Users: users, Sessions: &stubSessionsStore{t: t}, Mailer: mailer}
	if err := svc.RequestPasswordRecovery(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sentPassword == "" || storedHash == "" {
		t.Fatalf("expected a generated password and stored hash")
	}
	ok, err := auth.VerifyPassword(storedHash, sentPassword)
	if err != nil || !ok {
		t.Fatalf("emailed password must match stored hash: ok=%v err=%v", ok, err)
	}
}

func TestAuthServiceChangePassword(t *testing.T) {
	currentHash := mustHash(t, "old password")

	var newHash string
	users := &stubUsersStore{
		t: t,
		getUserByIDFunc: func(_ context.Context, id string) (domain.User, error) {
			return domain.User{ID: id, Email: "a@x.com", FirstAccess: true}, nil
		},
		getUserByEmailFunc: func(_ context.Context, _ string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{
				User:         domain.User{ID: "user-1", Email: "a@x.com"},
				PasswordHash: currentHash,
			}, nil
		},
		setPasswordHashFunc: func(_ context.Context, userID, hash string) error {
			if userID != "user-1" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			newHash = hash
			return nil
		},
	}

	svc := &AuthService{Users: users, Sessions: &stubSessionsStore{t: t}}
	if err := svc.ChangePassword(context.Background(), "user-1", "old password", "new password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := auth.VerifyPassword(newHash, "new password")
	if err != nil || !ok {
		t.Fatalf("stored hash must match new password: ok=%v err=%v", ok, err)
	}
}

func TestAuthServiceChangePasswordRejectsShortPassword(t *testing.T) {
	svc := &AuthService{Users: &stubUsersStore{t: t}, Sessions: &stubSessionsStore{t: t}}
	err := svc.ChangePassword(context.Background(), "user-1", "old", "short")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthServiceGetUserForSessionUnauthorizedWhenMissing(t *testing.T) {
	sessions := &stubSessionsStore{
		t: t,
		getSessionFunc: func(_ context.Context, _ string) (domain.Session, error) {
			return domain.Session{}, domain.ErrNotFound
		},
	}

	svc := &AuthService{Users: &stubUsersStore{t: t}, Sessions: sessions}
	_, err := svc.GetUserForSession(context.Background(), "gone")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
