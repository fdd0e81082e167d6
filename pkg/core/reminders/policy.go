// Package reminders turns approved assignments into timed reminders and
// escalates the ones that go unconfirmed.
//
// Flow: the Scheduler writes one timer queue entry per Offset when an
// assignment is approved. The Dispatcher fires due entries, creating the
// worker notification and arming an escalation check. The EscalationChecks
// runner fires the check and, if the worker has not confirmed by then,
// notifies the organization's HR manager.
package reminders

import (
	"fmt"
	"time"
)

// Offset is one reminder relative to the event start
type Offset struct {
	Label string
	// Before is how long before the event start the reminder fires
	Before time.Duration
	// CheckDelay is how long after dispatch the escalation check fires
	CheckDelay time.Duration
}

// DefaultOffsets returns the standard day-before and hour-before reminders
func DefaultOffsets() []Offset {
	return []Offset{
		{Label: "27h_before", Before: 27 * time.Hour, CheckDelay: 3 * time.Hour},
		{Label: "1h_before", Before: time.Hour, CheckDelay: 20 * time.Minute},
	}
}

// ValidateOffsets rejects empty or duplicate labels and non-positive durations
func ValidateOffsets(offsets []Offset) error {
	seen := make(map[string]bool, len(offsets))
	for _, o := range offsets {
		if o.Label == "" {
			return fmt.Errorf("reminder offset needs a label")
		}
		if seen[o.Label] {
			return fmt.Errorf("duplicate reminder label %q", o.Label)
		}
		seen[o.Label] = true
		if o.Before <= 0 || o.CheckDelay <= 0 {
			return fmt.Errorf("reminder %q: before and check delay must be positive", o.Label)
		}
	}
	return nil
}
