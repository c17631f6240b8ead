// Package alarm contains the rule engine and the background scheduler that
// evaluates active alarm rules against the current material set and
// dispatches notifications.
package alarm

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"lamisys/internal/condition"
	"lamisys/internal/domain"
)

const (
	defaultThresholdDays = 7
	defaultCountMin      = 1
)

// Outcome is the result of evaluating one rule.
type Outcome struct {
	Triggered bool
	Matched   []domain.Material
}

// Engine decides, per rule, whether an alarm fires. It holds the per-rule
// NEW_ITEM watermarks, so one engine instance must live as long as its
// scheduler.
type Engine struct {
	Logger *slog.Logger
	Now    func() time.Time

	mu         sync.Mutex
	watermarks map[string]time.Time
}

// Evaluate applies the rule's threshold policy to the material snapshot.
// Condition errors fail closed per material; only structural problems (an
// unknown rule type) surface as an error.
func (e *Engine) Evaluate(rule domain.AlarmRule, materials []domain.Material) (Outcome, error) {
	now := e.now()

	switch rule.Type {
	case domain.AlarmRuleTimeInStage:
		return e.evaluateElapsed(rule, materials, now, true), nil
	case domain.AlarmRuleTimeTotal:
		return e.evaluateElapsed(rule, materials, now, false), nil
	case domain.AlarmRuleNewItem:
		return e.evaluateNewItem(rule, materials), nil
	case domain.AlarmRuleMaterialCount:
		return e.evaluateCount(rule, materials), nil
	}
	return Outcome{}, fmt.Errorf("unknown alarm rule type %q", rule.Type)
}

// evaluateElapsed covers TIME_IN_STAGE (anchored at updatedAt, with the
// rule's condition as a filter) and TIME_TOTAL (anchored at createdAt, no
// condition). A zero anchor timestamp counts as epoch, so such materials are
// always stale.
func (e *Engine) evaluateElapsed(rule domain.AlarmRule, materials []domain.Material, now time.Time, sinceUpdate bool) Outcome {
	threshold := time.Duration(rule.Value.Or(defaultThresholdDays)) * 24 * time.Hour

	var expr condition.Expr
	if sinceUpdate {
		expr = e.compileCondition(rule)
	}

	var matched []domain.Material
	for _, m := range materials {
		if sinceUpdate && strings.TrimSpace(rule.Condition) != "" {
			if expr == nil || !e.matchCondition(expr, rule, m) {
				continue
			}
		}
		anchor := m.UpdatedAt
		if !sinceUpdate {
			anchor = m.CreatedAt
		}
		if now.Sub(anchor) >= threshold {
			matched = append(matched, m)
		}
	}

	return Outcome{Triggered: len(matched) > 0, Matched: matched}
}

// evaluateNewItem compares the snapshot against the watermark recorded on
// this rule's previous evaluation. Watermarks are keyed by rule id so
// concurrent NEW_ITEM rules never consume each other's baseline, and they
// advance to the newest createdAt in the snapshot rather than the wall
// clock, so a material created between the snapshot read and this call
// still counts as new on the next pass.
func (e *Engine) evaluateNewItem(rule domain.AlarmRule, materials []domain.Material) Outcome {
	var latest time.Time
	for _, m := range materials {
		if m.CreatedAt.After(latest) {
			latest = m.CreatedAt
		}
	}

	e.mu.Lock()
	if e.watermarks == nil {
		e.watermarks = make(map[string]time.Time)
	}
	since, seeded := e.watermarks[rule.ID]
	if !seeded || latest.After(since) {
		e.watermarks[rule.ID] = latest
	}
	e.mu.Unlock()

	// First evaluation for this rule: the whole snapshot is the baseline,
	// nothing counts as new.
	if !seeded {
		return Outcome{}
	}

	var matched []domain.Material
	for _, m := range materials {
		if m.CreatedAt.After(since) {
			matched = append(matched, m)
		}
	}
	return Outcome{Triggered: len(matched) > 0, Matched: matched}
}

func (e *Engine) evaluateCount(rule domain.AlarmRule, materials []domain.Material) Outcome {
	minCount := rule.Value.Or(defaultCountMin)

	matched := materials
	if strings.TrimSpace(rule.Condition) != "" {
		expr := e.compileCondition(rule)
		matched = nil
		if expr != nil {
			for _, m := range materials {
				if e.matchCondition(expr, rule, m) {
					matched = append(matched, m)
				}
			}
		}
	}

	if len(matched) >= minCount {
		return Outcome{Triggered: true, Matched: matched}
	}
	return Outcome{Triggered: false}
}

// compileCondition parses the rule's condition once per evaluation. A parse
// failure fails closed: warn and match nothing, never abort the pass.
func (e *Engine) compileCondition(rule domain.AlarmRule) condition.Expr {
	raw := strings.TrimSpace(rule.Condition)
	if raw == "" {
		return nil
	}
	expr, err := condition.Parse(raw)
	if err != nil {
		e.logger().Warn("alarm: condition parse failed", "rule_id", rule.ID, "err", err)
		return nil
	}
	return expr
}

func (e *Engine) matchCondition(expr condition.Expr, rule domain.AlarmRule, m domain.Material) bool {
	ok, err := expr.Eval(materialResolver(m))
	if err != nil {
		e.logger().Warn("alarm: condition eval failed", "rule_id", rule.ID, "material_id", m.ID, "err", err)
		return false
	}
	return ok
}

// materialResolver exposes a material's business fields to the condition
// language. Names follow the legacy camelCase payloads; snake_case aliases
// are accepted too.
func materialResolver(m domain.Material) condition.Resolver {
	fields := map[string]string{
		"id":            m.ID,
		"invoicenumber": m.InvoiceNumber,
		"ordernumber":   m.OrderNumber,
		"equipment":     m.Equipment,
		"ordertype":     m.OrderType,
		"materialtype":  m.MaterialType,
		"shipmentcode":  m.ShipmentCode,
		"sapcode":       m.SAPCode,
		"company":       m.Company,
		"carrier":       m.Carrier,
		"status":        string(m.Status),
		"notes":         m.Notes,
		"comments":      m.Comments,
		"createdby":     m.CreatedBy,
		"updatedby":     m.UpdatedBy,
	}
	if m.ShipDate != nil {
		fields["shipdate"] = m.ShipDate.Format(time.RFC3339)
	}
	if m.ShipmentDate != nil {
		fields["shipmentdate"] = m.ShipmentDate.Format(time.RFC3339)
	}
	return func(name string) (string, bool) {
		key := strings.ToLower(strings.ReplaceAll(name, "_", ""))
		v, ok := fields[key]
		return v, ok
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
