package service

import (
	"context"
	"strings"

	"lamisys/internal/alarm"
	"lamisys/internal/domain"
	"lamisys/internal/email"
)

type SMTPSettingsStore interface {
	GetSMTPSettings(ctx context.Context) (domain.SMTPSettings, bool, error)
	UpsertSMTPSettings(ctx context.Context, settings domain.SMTPSettings) error
}

// EmailService wraps the SMTP settings singleton and every outgoing mail the
// system sends: alarm notifications, recovery and welcome passwords, and the
// settings test message.
type EmailService struct {
	Settings SMTPSettingsStore
}

func (s *EmailService) GetSMTPSettings(ctx context.Context) (domain.SMTPSettings, bool, error) {
	return s.Settings.GetSMTPSettings(ctx)
}

func (s *EmailService) SaveSMTPSettings(ctx context.Context, settings domain.SMTPSettings) error {
	fields := map[string]string{}
	if strings.TrimSpace(settings.Host) == "" {
		fields["host"] = "required"
	}
	if settings.Port <= 0 || settings.Port > 65535 {
		fields["port"] = "must be between 1 and 65535"
	}
	if strings.TrimSpace(settings.FromEmail) == "" {
		fields["from_email"] = "required"
	}
	switch settings.TLSMode {
	case "", "none", "tls", "starttls":
	default:
		fields["tls_mode"] = "must be none, tls or starttls"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return s.Settings.UpsertSMTPSettings(ctx, settings)
}

// SendTestEmail exercises the given settings without persisting them.
func (s *EmailService) SendTestEmail(ctx context.Context, settings domain.SMTPSettings, toEmail string) error {
	toEmail = strings.TrimSpace(strings.ToLower(toEmail))
	if toEmail == "" {
		return domain.NewValidationError(map[string]string{"to_email": "required"})
	}

	body := strings.Join([]string{
		"This is a test email from LamiSys.",
		"",
		"If you received this, the SMTP settings are working.",
	}, "\n")
	return email.Send(settings, email.Message{
		ToEmail:  toEmail,
		Subject:  "LamiSys SMTP test",
		TextBody: body,
	})
}

// SendAlarmNotification implements the scheduler's notifier contract.
func (s *EmailService) SendAlarmNotification(ctx context.Context, recipient string, n alarm.Notification) error {
	settings, err := s.configured(ctx)
	if err != nil {
		return err
	}
	return email.Send(settings, email.Message{
		ToEmail:  recipient,
		Subject:  "LamiSys alarm: " + n.RuleName,
		TextBody: n.Details,
	})
}

func (s *EmailService) SendRecoveryPassword(ctx context.Context, toEmail, name, password string) error {
	settings, err := s.configured(ctx)
	if err != nil {
		return err
	}

	body := strings.Join([]string{
		greeting(name),
		"",
		"A password recovery was requested for your LamiSys account.",
		"Sign in with this one-time password and choose a new one:",
		"",
		"    " + password,
		"",
		"If you did not request this, you can ignore this email.",
	}, "\n")
	return email.Send(settings, email.Message{
		ToEmail:  toEmail,
		Subject:  "LamiSys password recovery",
		TextBody: body,
	})
}

func (s *EmailService) SendWelcome(ctx context.Context, toEmail, name, password string) error {
	settings, err := s.configured(ctx)
	if err != nil {
		return err
	}

	body := strings.Join([]string{
		greeting(name),
		"",
		"An account was created for you on LamiSys.",
		"Sign in with this temporary password and choose a new one:",
		"",
		"    " + password,
	}, "\n")
	return email.Send(settings, email.Message{
		ToEmail:  toEmail,
		Subject:  "Welcome to LamiSys",
		TextBody: body,
	})
}

func (s *EmailService) configured(ctx context.Context) (domain.SMTPSettings, error) {
	settings, ok, err := s.Settings.GetSMTPSettings(ctx)
	if err != nil {
		return domain.SMTPSettings{}, err
	}
	if !ok {
		return domain.SMTPSettings{}, domain.ErrSMTPNotConfigured
	}
	return settings, nil
}

func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Hello,"
	}
	return "Hello " + name + ","
}
