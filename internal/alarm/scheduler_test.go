package alarm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lamisys/internal/domain"
)

type stubRuleStore struct {
	rules []domain.AlarmRule
	err   error
}

func (s *stubRuleStore) ListActiveAlarmRules(ctx context.Context) ([]domain.AlarmRule, error) {
	return s.rules, s.err
}

type stubMaterialStore struct {
	mu        sync.Mutex
	materials []domain.Material
	errAfter  int // fail calls numbered > errAfter; 0 means never fail
	calls     int
	err       error
}

func (s *stubMaterialStore) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil && (s.errAfter == 0 || s.calls > s.errAfter) {
		return nil, s.err
	}
	return s.materials, nil
}

type recordedSend struct {
	recipient string
	n         Notification
}

type stubNotifier struct {
	mu    sync.Mutex
	sends []recordedSend
	fail  map[string]error
}

func (s *stubNotifier) SendAlarmNotification(ctx context.Context, recipient string, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, recordedSend{recipient: recipient, n: n})
	if err, ok := s.fail[recipient]; ok {
		return err
	}
	return nil
}

func (s *stubNotifier) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sends))
	for _, send := range s.sends {
		out = append(out, send.recipient)
	}
	return out
}

func newTestScheduler(rules *stubRuleStore, materials *stubMaterialStore, notifier *stubNotifier) *Scheduler {
	return &Scheduler{
		Rules:     rules,
		Materials: materials,
		Engine:    newTestEngine(),
		Notifier:  notifier,
		Now:       func() time.Time { return engineNow },
	}
}

func TestRunPassCountsAndNotifiesPerRecipient(t *testing.T) {
	rules := &stubRuleStore{rules: []domain.AlarmRule{
		{
			ID:         "r1",
			Name:       "Stale pending",
			Type:       domain.AlarmRuleTimeInStage,
			Condition:  "status == PENDING",
			Value:      intValue(7),
			Recipients: domain.RecipientList{"a@x.com", " b@x.com ", ""},
			Active:     true,
		},
		{
			ID:         "r2",
			Name:       "Quiet rule",
			Type:       domain.AlarmRuleTimeInStage,
			Condition:  "status == SENT",
			Value:      intValue(7),
			Recipients: domain.RecipientList{"c@x.com"},
			Active:     true,
		},
	}}
	materials := &stubMaterialStore{materials: []domain.Material{
		{ID: "m1", Status: domain.MaterialStatusPending, UpdatedAt: daysAgo(10)},
	}}
	notifier := &stubNotifier{}

	s := newTestScheduler(rules, materials, notifier)
	stats := s.RunPass(context.Background())

	if stats.Processed != 2 || stats.Triggered != 1 || stats.Errors != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	got := notifier.recipients()
	if len(got) != 2 || got[0] != "a@x.com" || got[1] != "b@x.com" {
		t.Fatalf("unexpected notification recipients: %v", got)
	}
	if notifier.sends[0].n.RuleName != "Stale pending" {
		t.Fatalf("unexpected rule name in payload: %q", notifier.sends[0].n.RuleName)
	}
}

func TestRunPassIsolatesRuleFailures(t *testing.T) {
	rules := &stubRuleStore{rules: []domain.AlarmRule{
		{ID: "bad", Type: "NO_SUCH_TYPE", Active: true},
		{
			ID: "good", Name: "ok", Type: domain.AlarmRuleTimeInStage,
			Value: intValue(7), Recipients: domain.RecipientList{"a@x.com"}, Active: true,
		},
	}}
	materials := &stubMaterialStore{materials: []domain.Material{
		{ID: "m1", UpdatedAt: daysAgo(10)},
	}}
	notifier := &stubNotifier{}

	s := newTestScheduler(rules, materials, notifier)
	stats := s.RunPass(context.Background())

	if stats.Processed != 2 || stats.Errors != 1 || stats.Triggered != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(notifier.recipients()) != 1 {
		t.Fatalf("good rule should still notify")
	}
}

func TestRunPassCountsStoreFailurePerRule(t *testing.T) {
	rules := &stubRuleStore{rules: []domain.AlarmRule{
		{ID: "r1", Type: domain.AlarmRuleTimeInStage, Active: true},
		{ID: "r2", Type: domain.AlarmRuleTimeInStage, Active: true},
	}}
	materials := &stubMaterialStore{err: errors.New("store down")}
	notifier := &stubNotifier{}

	s := newTestScheduler(rules, materials, notifier)
	stats := s.RunPass(context.Background())

	if stats.Processed != 2 || stats.Errors != 2 || stats.Triggered != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRunPassSendFailureDoesNotBlockOtherRecipientsOrCountAsError(t *testing.T) {
	rules := &stubRuleStore{rules: []domain.AlarmRule{
		{
			ID: "r1", Name: "rule", Type: domain.AlarmRuleTimeInStage,
			Value: intValue(7), Recipients: domain.RecipientList{"fail@x.com", "ok@x.com"}, Active: true,
		},
	}}
	materials := &stubMaterialStore{materials: []domain.Material{
		{ID: "m1", UpdatedAt: daysAgo(10)},
	}}
	notifier := &stubNotifier{fail: map[string]error{"fail@x.com": errors.New("smtp refused")}}

	s := newTestScheduler(rules, materials, notifier)
	stats := s.RunPass(context.Background())

	if stats.Errors != 0 {
		t.Fatalf("send failures must not count as rule errors, got %+v", stats)
	}
	got := notifier.recipients()
	if len(got) != 2 || got[1] != "ok@x.com" {
		t.Fatalf("second recipient must still be attempted, got %v", got)
	}
}

func TestRunPassMalformedConditionIsNotARuleError(t *testing.T) {
	rules := &stubRuleStore{rules: []domain.AlarmRule{
		{
			ID: "r1", Type: domain.AlarmRuleTimeInStage,
			Condition: "status ===== nope", Value: intValue(1),
			Recipients: domain.RecipientList{"a@x.com"}, Active: true,
		},
	}}
	materials := &stubMaterialStore{materials: []domain.Material{
		{ID: "m1", Status: domain.MaterialStatusPending, UpdatedAt: daysAgo(30)},
	}}
	notifier := &stubNotifier{}

	s := newTestScheduler(rules, materials, notifier)
	stats := s.RunPass(context.Background())

	if stats.Processed != 1 || stats.Errors != 0 || stats.Triggered != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(notifier.recipients()) != 0 {
		t.Fatalf("no notification expected for fail-closed condition")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := newTestScheduler(&stubRuleStore{}, &stubMaterialStore{}, &stubNotifier{})

	if s.Stop() {
		t.Fatalf("stop before start must return false")
	}
	if !s.Start(time.Hour) {
		t.Fatalf("start failed")
	}
	if !s.Stop() {
		t.Fatalf("first stop must return true")
	}
	if s.Stop() {
		t.Fatalf("second stop must return false")
	}
}

func TestStartRejectsNonPositiveInterval(t *testing.T) {
	s := newTestScheduler(&stubRuleStore{}, &stubMaterialStore{}, &stubNotifier{})
	if s.Start(0) {
		t.Fatalf("zero interval must be rejected")
	}
	if s.Running() {
		t.Fatalf("scheduler must not be running after rejected start")
	}
}

func TestStartTwiceKeepsASingleTicker(t *testing.T) {
	rules := &stubRuleStore{rules: []domain.AlarmRule{
		{ID: "r1", Type: domain.AlarmRuleMaterialCount, Active: true},
	}}
	materials := &stubMaterialStore{materials: []domain.Material{{ID: "m1"}}}
	notifier := &stubNotifier{}
	s := newTestScheduler(rules, materials, notifier)

	if !s.Start(20 * time.Millisecond) {
		t.Fatalf("first start failed")
	}
	if !s.Start(20 * time.Millisecond) {
		t.Fatalf("restart failed")
	}
	time.Sleep(70 * time.Millisecond)
	s.Stop()
	time.Sleep(30 * time.Millisecond)

	materials.mu.Lock()
	calls := materials.calls
	materials.mu.Unlock()

	// Two immediate passes (one per Start) plus ~3 ticks from the surviving
	// timer. A duplicate ticker would roughly double the tick count.
	if calls > 7 {
		t.Fatalf("too many passes for a single ticker: %d", calls)
	}

	after := calls
	time.Sleep(60 * time.Millisecond)
	materials.mu.Lock()
	final := materials.calls
	materials.mu.Unlock()
	if final != after {
		t.Fatalf("passes continued after stop: %d -> %d", after, final)
	}
}

type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (n *blockingNotifier) SendAlarmNotification(ctx context.Context, recipient string, _ Notification) error {
	n.once.Do(func() { close(n.entered) })
	<-n.release
	return nil
}

func TestTickSkippedWhilePreviousPassRunning(t *testing.T) {
	rules := &stubRuleStore{rules: []domain.AlarmRule{
		{
			ID: "r1", Type: domain.AlarmRuleMaterialCount,
			Recipients: domain.RecipientList{"a@x.com"}, Active: true,
		},
	}}
	materials := &stubMaterialStore{materials: []domain.Material{{ID: "m1"}}}
	notifier := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}

	s := &Scheduler{
		Rules:     rules,
		Materials: materials,
		Engine:    newTestEngine(),
		Notifier:  notifier,
		Now:       func() time.Time { return engineNow },
	}

	if !s.Start(15 * time.Millisecond) {
		t.Fatalf("start failed")
	}
	defer s.Stop()

	<-notifier.entered
	// The first pass is blocked inside the notifier; several intervals
	// elapse and every tick must be skipped, not queued.
	time.Sleep(60 * time.Millisecond)

	materials.mu.Lock()
	calls := materials.calls
	materials.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected ticks to be skipped during a running pass, got %d passes", calls)
	}

	close(notifier.release)
}
