package reminders

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/clock"
	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/metrics"
	"github.com/Majulish/cookie/pkg/timerqueue"
)

const pairLockStripes = 64

// Scheduler keeps the reminder entries of each (event, worker) pair in sync
// with the event start time
type Scheduler struct {
	queue   timerqueue.Queue
	offsets []Offset
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics

	locks [pairLockStripes]sync.Mutex
}

func NewScheduler(queue timerqueue.Queue, offsets []Offset, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if len(offsets) == 0 {
		offsets = DefaultOffsets()
	}
	return &Scheduler{queue: queue, offsets: offsets, clock: clk, logger: logger, metrics: m}
}

func (s *Scheduler) lockPair(eventID, workerID string) func() {
	h := fnv.New32a()
	h.Write([]byte(timerqueue.PairKey(eventID, workerID)))
	mu := &s.locks[h.Sum32()%pairLockStripes]
	mu.Lock()
	return mu.Unlock
}

// Plan computes the entries for a pair without touching the queue.
// Offsets whose fire time is already in the past are left out.
func (s *Scheduler) Plan(eventID, workerID string, start time.Time) []timerqueue.Entry {
	now := s.clock.Now()
	start = start.UTC()

	var entries []timerqueue.Entry
	for _, o := range s.offsets {
		fireAt := start.Add(-o.Before)
		if fireAt.Before(now) {
			s.logger.Debug("Skipping reminder in the past",
				zap.String("event_id", eventID),
				zap.String("worker_id", workerID),
				zap.String("label", o.Label),
				zap.Time("fire_at", fireAt))
			continue
		}
		entries = append(entries, timerqueue.Entry{
			Kind:       timerqueue.KindReminder,
			EventID:    eventID,
			WorkerID:   workerID,
			Label:      o.Label,
			CheckDelay: o.CheckDelay,
			FireAt:     fireAt,
		})
	}
	return entries
}

// Schedule replaces the pending reminders of the pair with a fresh set
// computed from start. Calling it again with the same start is harmless.
// Reminders that are already due but not yet dispatched are kept until the
// event starts, since Plan no longer produces them.
func (s *Scheduler) Schedule(ctx context.Context, eventID, workerID string, start time.Time) ([]timerqueue.Entry, error) {
	unlock := s.lockPair(eventID, workerID)
	defer unlock()

	entries := s.Plan(eventID, workerID, start)
	var keepDue time.Time
	if now := s.clock.Now(); now.Before(start) {
		keepDue = now
	}
	if err := s.queue.ReplacePair(ctx, eventID, workerID, entries, keepDue); err != nil {
		s.metrics.QueueWriteFailures.WithLabelValues("schedule").Inc()
		return nil, fmt.Errorf("failed to schedule reminders for %s: %w: %w",
			timerqueue.PairKey(eventID, workerID), model.ErrQueueWrite, err)
	}
	s.metrics.RemindersScheduled.Add(float64(len(entries)))
	s.logger.Info("Scheduled reminders",
		zap.String("event_id", eventID),
		zap.String("worker_id", workerID),
		zap.Int("count", len(entries)))
	return entries, nil
}

// Cancel drops every pending reminder of the pair
func (s *Scheduler) Cancel(ctx context.Context, eventID, workerID string) error {
	unlock := s.lockPair(eventID, workerID)
	defer unlock()

	if err := s.queue.RemovePair(ctx, eventID, workerID); err != nil {
		s.metrics.QueueWriteFailures.WithLabelValues("cancel").Inc()
		return fmt.Errorf("failed to cancel reminders for %s: %w: %w",
			timerqueue.PairKey(eventID, workerID), model.ErrQueueWrite, err)
	}
	return nil
}

// CancelEvent drops every pending reminder of the event
func (s *Scheduler) CancelEvent(ctx context.Context, eventID string) error {
	if err := s.queue.RemoveEvent(ctx, eventID); err != nil {
		s.metrics.QueueWriteFailures.WithLabelValues("cancel_event").Inc()
		return fmt.Errorf("failed to cancel reminders for event %s: %w: %w", eventID, model.ErrQueueWrite, err)
	}
	return nil
}
