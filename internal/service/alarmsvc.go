package service

import (
	"context"
	"strings"
	"time"

	"lamisys/internal/alarm"
	"lamisys/internal/condition"
	"lamisys/internal/domain"
)

type AlarmRulesStore interface {
	CreateAlarmRule(ctx context.Context, r domain.AlarmRule) (domain.AlarmRule, error)
	GetAlarmRule(ctx context.Context, id string) (domain.AlarmRule, error)
	ListAlarmRules(ctx context.Context) ([]domain.AlarmRule, error)
	UpdateAlarmRule(ctx context.Context, r domain.AlarmRule) (domain.AlarmRule, error)
	DeleteAlarmRule(ctx context.Context, id string) error
}

// AlarmService owns rule CRUD and the lifecycle of the evaluation scheduler.
type AlarmService struct {
	Rules     AlarmRulesStore
	Scheduler *alarm.Scheduler
	Interval  time.Duration
}

func (s *AlarmService) CreateRule(ctx context.Context, r domain.AlarmRule, createdBy string) (domain.AlarmRule, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Condition = strings.TrimSpace(r.Condition)
	r.CreatedBy = createdBy

	if fields := validateRule(r); len(fields) > 0 {
		return domain.AlarmRule{}, domain.NewValidationError(fields)
	}
	return s.Rules.CreateAlarmRule(ctx, r)
}

func (s *AlarmService) GetRule(ctx context.Context, id string) (domain.AlarmRule, error) {
	return s.Rules.GetAlarmRule(ctx, id)
}

func (s *AlarmService) ListRules(ctx context.Context) ([]domain.AlarmRule, error) {
	return s.Rules.ListAlarmRules(ctx)
}

func (s *AlarmService) UpdateRule(ctx context.Context, id string, r domain.AlarmRule) (domain.AlarmRule, error) {
	current, err := s.Rules.GetAlarmRule(ctx, id)
	if err != nil {
		return domain.AlarmRule{}, err
	}

	r.ID = current.ID
	r.CreatedBy = current.CreatedBy
	r.Name = strings.TrimSpace(r.Name)
	r.Condition = strings.TrimSpace(r.Condition)

	if fields := validateRule(r); len(fields) > 0 {
		return domain.AlarmRule{}, domain.NewValidationError(fields)
	}
	return s.Rules.UpdateAlarmRule(ctx, r)
}

func (s *AlarmService) DeleteRule(ctx context.Context, id string) error {
	return s.Rules.DeleteAlarmRule(ctx, id)
}

// validateRule rejects rules that can never fire correctly. The condition
// must parse up front; the engine would otherwise silently match nothing.
func validateRule(r domain.AlarmRule) map[string]string {
	fields := map[string]string{}
	if r.Name == "" {
		fields["name"] = "required"
	}
	if !r.Type.Valid() {
		fields["type"] = "unknown rule type"
	}
	if len(r.Recipients.Normalized()) == 0 {
		fields["recipients"] = "at least one recipient required"
	}
	if r.Condition != "" {
		if _, err := condition.Parse(r.Condition); err != nil {
			fields["condition"] = err.Error()
		}
	}
	if r.Value.Valid && r.Value.Value < 0 {
		fields["value"] = "must not be negative"
	}
	return fields
}

// StartScheduler arms the evaluation timer. A zero interval falls back to the
// configured default.
func (s *AlarmService) StartScheduler(interval time.Duration) bool {
	if interval <= 0 {
		interval = s.Interval
	}
	return s.Scheduler.Start(interval)
}

func (s *AlarmService) StopScheduler() bool {
	return s.Scheduler.Stop()
}

func (s *AlarmService) SchedulerRunning() bool {
	return s.Scheduler.Running()
}

// RunPassNow evaluates all active rules once, outside the timer.
func (s *AlarmService) RunPassNow(ctx context.Context) alarm.PassStats {
	return s.Scheduler.RunPass(ctx)
}
