package timerqueue

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ Queue = (*MemoryQueue)(nil)

// MemoryQueue keeps entries in process memory
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[string]Entry // identity -> entry
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[string]Entry)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := Encode(e); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	e = normalize(e)
	q.entries[e.Identity()] = e
	return nil
}

func (q *MemoryQueue) DueBefore(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := now.UTC().Unix()
	var due []Entry
	for _, e := range q.entries {
		if e.FireAt.Unix() <= cutoff {
			due = append(due, e)
		}
	}
	sortEntries(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (q *MemoryQueue) Remove(ctx context.Context, e Entry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	e = normalize(e)
	cur, ok := q.entries[e.Identity()]
	if !ok || !samePayload(cur, e) {
		return false, nil
	}
	delete(q.entries, e.Identity())
	return true, nil
}

func (q *MemoryQueue) ReplacePair(ctx context.Context, eventID, workerID string, entries []Entry, keepDue time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range entries {
		if e.EventID != eventID || e.WorkerID != workerID {
			return fmt.Errorf("entry %s does not belong to pair %s", e.Identity(), PairKey(eventID, workerID))
		}
		if _, err := Encode(e); err != nil {
			return err
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	replaced := make(map[string]bool, len(entries))
	for _, e := range entries {
		replaced[e.Identity()] = true
	}
	for id, e := range q.entries {
		if e.EventID != eventID || e.WorkerID != workerID {
			continue
		}
		if !keepDue.IsZero() && !replaced[id] && e.FireAt.Unix() <= keepDue.UTC().Unix() {
			continue
		}
		delete(q.entries, id)
	}
	for _, e := range entries {
		e = normalize(e)
		q.entries[e.Identity()] = e
	}
	return nil
}

func (q *MemoryQueue) RemovePair(ctx context.Context, eventID, workerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removePairLocked(eventID, workerID)
	return nil
}

func (q *MemoryQueue) removePairLocked(eventID, workerID string) {
	for id, e := range q.entries {
		if e.EventID == eventID && e.WorkerID == workerID {
			delete(q.entries, id)
		}
	}
}

func (q *MemoryQueue) RemoveEvent(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, e := range q.entries {
		if e.EventID == eventID {
			delete(q.entries, id)
		}
	}
	return nil
}

func (q *MemoryQueue) Pending(ctx context.Context, eventID, workerID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Entry
	for _, e := range q.entries {
		if e.EventID == eventID && e.WorkerID == workerID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

// Len reports the number of live entries
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func samePayload(a, b Entry) bool {
	pa, errA := Encode(a)
	pb, errB := Encode(b)
	return errA == nil && errB == nil && bytes.Equal(pa, pb)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].FireAt.Equal(entries[j].FireAt) {
			return entries[i].FireAt.Before(entries[j].FireAt)
		}
		return entries[i].Identity() < entries[j].Identity()
	})
}
