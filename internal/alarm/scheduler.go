package alarm

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lamisys/internal/domain"
)

// RuleStore is the read contract the scheduler needs from the record store.
type RuleStore interface {
	ListActiveAlarmRules(ctx context.Context) ([]domain.AlarmRule, error)
}

// MaterialStore provides the point-in-time material snapshot for one rule.
type MaterialStore interface {
	ListMaterials(ctx context.Context) ([]domain.Material, error)
}

// PassStats aggregates one evaluation pass. Every active rule contributes
// exactly one outcome: normal or error. Per-recipient send failures are
// logged but never counted here.
type PassStats struct {
	Processed int
	Triggered int
	Errors    int
}

// Scheduler owns the repeating evaluation timer. It is an explicit object
// constructed at startup; there is no package-level state, so tests can run
// independent schedulers side by side.
//
// Overlap policy: if a tick fires while the previous pass is still running,
// the tick is skipped. Passes never queue and never share counters.
type Scheduler struct {
	Rules     RuleStore
	Materials MaterialStore
	Engine    *Engine
	Notifier  Notifier
	Push      Broadcaster
	Logger    *slog.Logger
	Now       func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	running bool

	passActive atomic.Bool
}

// Start arms the repeating timer and fires one immediate pass in the
// background. Starting while already running restarts the timer. Returns
// false only for a non-positive interval.
func (s *Scheduler) Start(interval time.Duration) bool {
	if interval <= 0 {
		return false
	}

	s.mu.Lock()
	if s.running {
		close(s.stopCh)
	}
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.running = true
	s.mu.Unlock()

	s.logger().Info("alarm scheduler started", "interval", interval)
	go s.loop(interval, stopCh)
	return true
}

// Stop cancels future ticks. An in-flight pass runs to completion. Returns
// false when the scheduler was not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	close(s.stopCh)
	s.running = false
	s.logger().Info("alarm scheduler stopped")
	return true
}

// Running reports whether the timer is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(interval time.Duration, stopCh chan struct{}) {
	s.tryRunPass()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tryRunPass()
		}
	}
}

func (s *Scheduler) tryRunPass() {
	if !s.passActive.CompareAndSwap(false, true) {
		s.logger().Warn("alarm pass still running, skipping tick")
		return
	}
	defer s.passActive.Store(false)
	s.RunPass(context.Background())
}

// RunPass evaluates every active rule once. A failing rule is counted and
// skipped; it never aborts the pass. The aggregate stats are logged once.
func (s *Scheduler) RunPass(ctx context.Context) PassStats {
	passID := uuid.NewString()
	logger := s.logger()

	var stats PassStats

	rules, err := s.Rules.ListActiveAlarmRules(ctx)
	if err != nil {
		logger.Error("alarm pass: list rules failed", "pass_id", passID, "err", err)
		return stats
	}

	for _, rule := range rules {
		stats.Processed++
		if err := s.processRule(ctx, rule, &stats); err != nil {
			stats.Errors++
			logger.Error("alarm pass: rule failed", "pass_id", passID, "rule_id", rule.ID, "err", err)
		}
	}

	logger.Info("alarm pass complete",
		"pass_id", passID,
		"processed", stats.Processed,
		"triggered", stats.Triggered,
		"errors", stats.Errors,
	)
	return stats
}

func (s *Scheduler) processRule(ctx context.Context, rule domain.AlarmRule, stats *PassStats) error {
	materials, err := s.Materials.ListMaterials(ctx)
	if err != nil {
		return err
	}

	outcome, err := s.Engine.Evaluate(rule, materials)
	if err != nil {
		return err
	}
	if !outcome.Triggered {
		return nil
	}
	stats.Triggered++

	details := RenderDetails(outcome.Matched, s.now())
	n := Notification{RuleName: rule.Name, Details: details}
	for _, recipient := range rule.Recipients.Normalized() {
		if err := s.Notifier.SendAlarmNotification(ctx, recipient, n); err != nil {
			s.logger().Error("alarm pass: notification send failed",
				"rule_id", rule.ID, "recipient", recipient, "err", err)
		}
	}

	if s.Push != nil {
		s.Push.BroadcastAlarm(ctx, rule, len(outcome.Matched), details)
	}
	return nil
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
