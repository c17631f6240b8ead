package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"lamisys/internal/domain"
	"lamisys/internal/notifications"
)

type UserDevicesStore interface {
	UpsertDevice(ctx context.Context, userID, token, platform string, when time.Time) (domain.UserDevice, error)
	DeleteDevice(ctx context.Context, userID, token string) error
	DeleteToken(ctx context.Context, token string) error
	ListDevicesForUser(ctx context.Context, userID string) ([]domain.UserDevice, error)
	ListDevicesByEmails(ctx context.Context, emails []string) ([]domain.UserDevice, error)
}

type PushSender interface {
	Send(ctx context.Context, token string, push notifications.AlarmPush) error
}

// PushService registers device tokens and mirrors fired alarms to the devices
// of the rule's recipients. Push is best effort; email remains the channel of
// record.
type PushService struct {
	Devices UserDevicesStore
	Sender  PushSender
	Logger  *slog.Logger
	Now     func() time.Time
}

func (s *PushService) RegisterDevice(ctx context.Context, userID, token, platform string) (domain.UserDevice, error) {
	token = strings.TrimSpace(token)
	platform = strings.TrimSpace(strings.ToLower(platform))

	fields := map[string]string{}
	if token == "" {
		fields["token"] = "required"
	}
	switch platform {
	case "android", "ios", "web":
	default:
		fields["platform"] = "must be android, ios or web"
	}
	if len(fields) > 0 {
		return domain.UserDevice{}, domain.NewValidationError(fields)
	}

	return s.Devices.UpsertDevice(ctx, userID, token, platform, s.now().UTC())
}

func (s *PushService) RemoveDevice(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.NewValidationError(map[string]string{"token": "required"})
	}
	return s.Devices.DeleteDevice(ctx, userID, token)
}

func (s *PushService) ListDevices(ctx context.Context, userID string) ([]domain.UserDevice, error) {
	return s.Devices.ListDevicesForUser(ctx, userID)
}

// BroadcastAlarm sends the fired rule to every device registered by one of
// its recipients. Tokens the gateway reports as unregistered are dropped.
func (s *PushService) BroadcastAlarm(ctx context.Context, rule domain.AlarmRule, matched int, details string) {
	if s.Sender == nil {
		return
	}
	logger := s.logger()

	devices, err := s.Devices.ListDevicesByEmails(ctx, rule.Recipients.Normalized())
	if err != nil {
		logger.Error("push: list devices failed", "rule_id", rule.ID, "err", err)
		return
	}

	push := notifications.AlarmPush{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Matched:  matched,
		Body:     details,
	}
	for _, device := range devices {
		if err := s.Sender.Send(ctx, device.Token, push); err != nil {
			if errors.Is(err, notifications.ErrInvalidToken) {
				if delErr := s.Devices.DeleteToken(ctx, device.Token); delErr != nil {
					logger.Error("push: drop invalid token failed", "err", delErr)
				}
				continue
			}
			logger.Error("push: send failed", "rule_id", rule.ID, "user_id", device.UserID, "err", err)
		}
	}
}

func (s *PushService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *PushService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
