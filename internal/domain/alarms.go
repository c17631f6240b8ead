package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type AlarmRuleType string

const (
	AlarmRuleTimeInStage AlarmRuleType = "TIME_IN_STAGE"
	AlarmRuleTimeTotal   AlarmRuleType = "TIME_TOTAL"
	AlarmRuleNewItem     AlarmRuleType = "NEW_ITEM"
	// Wire value kept from the legacy system for stored rules.
	AlarmRuleMaterialCount AlarmRuleType = "QUANTIDADE_MATERIAIS"
)

func (t AlarmRuleType) Valid() bool {
	switch t {
	case AlarmRuleTimeInStage, AlarmRuleTimeTotal, AlarmRuleNewItem, AlarmRuleMaterialCount:
		return true
	}
	return false
}

// AlarmRule describes what to watch and whom to notify.
type AlarmRule struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Type       AlarmRuleType `json:"type"`
	Condition  string        `json:"condition,omitempty"`
	Value      FlexInt       `json:"value,omitempty"`
	Recipients RecipientList `json:"recipients"`
	Active     bool          `json:"active"`
	CreatedBy  string        `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// RecipientList accepts either a JSON list of addresses or a single
// comma-delimited string (legacy rule payloads used both).
type RecipientList []string

func (r *RecipientList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*r = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(b, &joined); err != nil {
		return err
	}
	*r = strings.Split(joined, ",")
	return nil
}

// Normalized returns trimmed, non-empty recipient addresses.
func (r RecipientList) Normalized() []string {
	out := make([]string, 0, len(r))
	for _, addr := range r {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// FlexInt decodes a JSON number or a numeric string. Legacy rules stored the
// threshold both ways; anything unparseable is treated as absent and the
// engine applies the per-type default.
type FlexInt struct {
	Value int
	Valid bool
}

func (v *FlexInt) UnmarshalJSON(b []byte) error {
	*v = FlexInt{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		v.Value, v.Valid = n, true
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		v.Value, v.Valid = n, true
	}
	return nil
}

func (v FlexInt) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Value)
}

// Or returns the value, or def when absent.
func (v FlexInt) Or(def int) int {
	if v.Valid {
		return v.Value
	}
	return def
}
