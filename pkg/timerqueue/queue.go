// Package timerqueue is the ordered set of pending wake-ups behind reminders
// and escalation checks. Entries are scored by their fire time in UTC unix
// seconds. Implementations: an in-process queue for tests and single-process
// runs, and a Redis sorted-set queue.
package timerqueue

import (
	"context"
	"time"
)

// Queue is a score-addressable set of entries.
//
// Every mutating call is atomic with respect to other calls on the same queue:
// two concurrent ReplacePair calls for one pair never both keep their entries.
type Queue interface {
	// Enqueue inserts the entry at e.FireAt, replacing any entry with the same Identity
	Enqueue(ctx context.Context, e Entry) error
	// DueBefore returns up to limit entries whose fire time is <= now, oldest
	// first. It does not remove them; callers Remove each entry once handled.
	DueBefore(ctx context.Context, now time.Time, limit int) ([]Entry, error)
	// Remove deletes the entry if it is still the live entry for its Identity.
	// An entry that was rescheduled in the meantime is left alone.
	Remove(ctx context.Context, e Entry) (bool, error)
	// ReplacePair atomically drops the entries of the pair and inserts entries.
	// Entries already due at keepDue survive unless entries carries their
	// Identity. A zero keepDue drops every entry of the pair.
	ReplacePair(ctx context.Context, eventID, workerID string, entries []Entry, keepDue time.Time) error
	RemovePair(ctx context.Context, eventID, workerID string) error
	RemoveEvent(ctx context.Context, eventID string) error
	// Pending lists the live entries of a pair ordered by fire time
	Pending(ctx context.Context, eventID, workerID string) ([]Entry, error)
}
