package alarm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lamisys/internal/domain"
)

// Notification is the payload delivered to one recipient of a fired rule.
type Notification struct {
	RuleName string
	Details  string
}

// Notifier delivers one notification to one recipient. Implementations own
// the transport; the scheduler only cares about success or failure.
type Notifier interface {
	SendAlarmNotification(ctx context.Context, recipient string, n Notification) error
}

// Broadcaster mirrors a fired rule to the push channel. Optional.
type Broadcaster interface {
	BroadcastAlarm(ctx context.Context, rule domain.AlarmRule, matched int, details string)
}

// RenderDetails produces the plain-text summary of the matched materials
// included in notification bodies.
func RenderDetails(matched []domain.Material, now time.Time) string {
	if len(matched) == 0 {
		return "No materials matched."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d material(s) matched:\n", len(matched))
	for _, m := range matched {
		fmt.Fprintf(&b, "- %s (invoice %s, order %s): status %s",
			orDash(m.Equipment), orDash(m.InvoiceNumber), orDash(m.OrderNumber), m.Status)
		if !m.UpdatedAt.IsZero() {
			days := int(now.Sub(m.UpdatedAt).Hours() / 24)
			fmt.Fprintf(&b, ", last update %d day(s) ago", days)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
