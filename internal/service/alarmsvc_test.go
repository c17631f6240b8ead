package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lamisys/internal/alarm"
	"lamisys/internal/domain"
)

type stubAlarmRulesStore struct {
	t *testing.T

	createFunc func(context.Context, domain.AlarmRule) (domain.AlarmRule, error)
	getFunc    func(context.Context, string) (domain.AlarmRule, error)
	listFunc   func(context.Context) ([]domain.AlarmRule, error)
	updateFunc func(context.Context, domain.AlarmRule) (domain.AlarmRule, error)
	deleteFunc func(context.Context, string) error
}

func (s *stubAlarmRulesStore) CreateAlarmRule(ctx context.Context, r domain.AlarmRule) (domain.AlarmRule, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, r)
	}
	s.t.Fatalf("CreateAlarmRule called unexpectedly")
	return domain.AlarmRule{}, errors.New("unexpected call")
}

func (s *stubAlarmRulesStore) GetAlarmRule(ctx context.Context, id string) (domain.AlarmRule, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, id)
	}
	s.t.Fatalf("GetAlarmRule called unexpectedly")
	return domain.AlarmRule{}, errors.New("unexpected call")
}

func (s *stubAlarmRulesStore) ListAlarmRules(ctx context.Context) ([]domain.AlarmRule, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx)
	}
	s.t.Fatalf("ListAlarmRules called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAlarmRulesStore) UpdateAlarmRule(ctx context.Context, r domain.AlarmRule) (domain.AlarmRule, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, r)
	}
	s.t.Fatalf("UpdateAlarmRule called unexpectedly")
	return domain.AlarmRule{}, errors.New("unexpected call")
}

func (s *stubAlarmRulesStore) DeleteAlarmRule(ctx context.Context, id string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, id)
	}
	s.t.Fatalf("DeleteAlarmRule called unexpectedly")
	return errors.New("unexpected call")
}

func validRule() domain.AlarmRule {
	return domain.AlarmRule{
		Name:       "Stale pending",
		Type:       domain.AlarmRuleTimeInStage,
		Condition:  "status == PENDING",
		Value:      domain.FlexInt{Value: 7, Valid: true},
		Recipients: domain.RecipientList{"planner@example.com"},
		Active:     true,
	}
}

func TestAlarmServiceCreateRule(t *testing.T) {
	rules := &stubAlarmRulesStore{
		t: t,
		createFunc: func(_ context.Context, r domain.AlarmRule) (domain.AlarmRule, error) {
			if r.CreatedBy != "user-1" {
				t.Fatalf("unexpected creator: %s", r.CreatedBy)
			}
			r.ID = "rule-1"
			return r, nil
		},
	}

	svc := &AlarmService{Rules: rules}
	created, err := svc.CreateRule(context.Background(), validRule(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "rule-1" {
		t.Fatalf("unexpected rule: %+v", created)
	}
}

func TestAlarmServiceCreateRuleValidation(t *testing.T) {
	svc := &AlarmService{Rules: &stubAlarmRulesStore{t: t}}

	cases := []struct {
		name   string
		mutate func(*domain.AlarmRule)
	}{
		{"missing name", func(r *domain.AlarmRule) { r.Name = " " }},
		{"unknown type", func(r *domain.AlarmRule) { r.Type = "SOMETHING_ELSE" }},
		{"no recipients", func(r *domain.AlarmRule) { r.Recipients = domain.RecipientList{" ", ""} }},
		{"broken condition", func(r *domain.AlarmRule) { r.Condition = "status ==" }},
		{"negative value", func(r *domain.AlarmRule) { r.Value = domain.FlexInt{Value: -1, Valid: true} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := validRule()
			tc.mutate(&rule)
			_, err := svc.CreateRule(context.Background(), rule, "user-1")
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAlarmServiceUpdateRulePreservesIdentity(t *testing.T) {
	rules := &stubAlarmRulesStore{
		t: t,
		getFunc: func(_ context.Context, id string) (domain.AlarmRule, error) {
			return domain.AlarmRule{ID: id, CreatedBy: "creator-1"}, nil
		},
		updateFunc: func(_ context.Context, r domain.AlarmRule) (domain.AlarmRule, error) {
			if r.ID != "rule-1" || r.CreatedBy != "creator-1" {
				t.Fatalf("update must keep id and creator: %+v", r)
			}
			return r, nil
		},
	}

	svc := &AlarmService{Rules: rules}
	in := validRule()
	in.ID = "spoofed"
	in.CreatedBy = "spoofed"
	if _, err := svc.UpdateRule(context.Background(), "rule-1", in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type noActiveRules struct{}

func (noActiveRules) ListActiveAlarmRules(ctx context.Context) ([]domain.AlarmRule, error) {
	return nil, nil
}

func TestAlarmServiceSchedulerLifecycle(t *testing.T) {
	sched := &alarm.Scheduler{
		Rules:  noActiveRules{},
		Engine: &alarm.Engine{},
	}
	svc := &AlarmService{Scheduler: sched, Interval: time.Hour}

	if !svc.StartScheduler(0) {
		t.Fatalf("zero interval must fall back to the configured default")
	}
	if !svc.SchedulerRunning() {
		t.Fatalf("scheduler should be running")
	}
	if !svc.StopScheduler() {
		t.Fatalf("stop should report success")
	}
	if svc.StopScheduler() {
		t.Fatalf("second stop should report not running")
	}
}
