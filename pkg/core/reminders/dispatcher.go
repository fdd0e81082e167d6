package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/clock"
	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/db"
	"github.com/Majulish/cookie/pkg/events"
	"github.com/Majulish/cookie/pkg/messages"
	"github.com/Majulish/cookie/pkg/metrics"
	"github.com/Majulish/cookie/pkg/timerqueue"
)

const (
	DefaultDispatchInterval = 30 * time.Second
	DefaultDispatchBatch    = 100
)

// Dispatcher turns due reminder entries into worker notifications.
//
// Delivery is at least once: an entry is removed only after its notification
// is committed and its escalation check is armed. A crash in between means
// the entry fires again, finds the outstanding notification and reuses it.
type Dispatcher struct {
	db       db.Database
	queue    timerqueue.Queue
	checks   *EscalationChecks
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
	catalog  *messages.Catalog
	outbound Outbound
}

func NewDispatcher(
	database db.Database,
	queue timerqueue.Queue,
	checks *EscalationChecks,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
	catalog *messages.Catalog,
	outbound Outbound,
) *Dispatcher {
	return &Dispatcher{
		db:       database,
		queue:    queue,
		checks:   checks,
		clock:    clk,
		logger:   logger,
		metrics:  m,
		catalog:  catalog,
		outbound: outbound,
	}
}

// Tick dispatches up to limit due entries. A failing entry is logged and
// counted and left in the queue for the next tick; it never stops the others.
func (d *Dispatcher) Tick(ctx context.Context, limit int) (int, error) {
	due, err := d.queue.DueBefore(ctx, d.clock.Now(), limit)
	if err != nil {
		d.metrics.DispatchFailures.WithLabelValues("read").Inc()
		return 0, fmt.Errorf("failed to read due reminders: %w", err)
	}

	dispatched := 0
	for _, e := range due {
		if ctx.Err() != nil {
			return dispatched, ctx.Err()
		}
		err := d.Dispatch(ctx, e)
		switch {
		case err == nil:
			dispatched++
		case errors.Is(err, model.ErrStaleReminder):
			d.logger.Debug("Dropped stale reminder",
				zap.String("event_id", e.EventID),
				zap.String("worker_id", e.WorkerID),
				zap.String("label", e.Label))
		default:
			d.logger.Error("Failed to dispatch reminder",
				zap.String("event_id", e.EventID),
				zap.String("worker_id", e.WorkerID),
				zap.String("label", e.Label),
				zap.Error(err))
		}
	}
	return dispatched, nil
}

// Dispatch handles one entry end to end
func (d *Dispatcher) Dispatch(ctx context.Context, e timerqueue.Entry) error {
	var (
		n      model.Notification
		worker *model.User
		cycle  int
		reused bool
		stale  bool
	)

	err := d.db.WithTx(ctx, func(tx db.Tx) error {
		event, err := tx.GetEvent(ctx, e.EventID)
		if errors.Is(err, model.ErrEventNotFound) {
			stale = true
			return nil
		}
		if err != nil {
			return err
		}

		a, err := tx.GetAssignmentByPair(ctx, e.EventID, e.WorkerID)
		if errors.Is(err, model.ErrAssignmentNotFound) {
			stale = true
			return nil
		}
		if err != nil {
			return err
		}
		a, err = tx.GetAssignmentForUpdate(ctx, a.ID)
		if err != nil {
			return err
		}
		if a.Status != model.StatusApproved {
			stale = true
			return nil
		}

		if w, err := tx.GetUser(ctx, e.WorkerID); err == nil {
			worker = w
		}

		existing, err := tx.FindUnconfirmed(ctx, e.EventID, e.WorkerID, e.Label)
		switch {
		case err == nil:
			n = *existing
			reused = true
		case errors.Is(err, model.ErrNotificationNotFound):
			n = model.Notification{
				ID:          uuid.New().String(),
				RecipientID: e.WorkerID,
				Message: d.catalog.Render(messages.ReminderConfirm, map[string]any{
					"EventName": event.Name,
					"Start":     event.Start.UTC().Format("2006-01-02 15:04 MST"),
				}),
				EventID:   e.EventID,
				WorkerID:  e.WorkerID,
				Label:     e.Label,
				Kind:      model.NotificationReminder,
				CreatedAt: d.clock.Now(),
			}
			if err := tx.InsertNotification(ctx, &n); err != nil {
				return err
			}
		default:
			return err
		}

		cycle = a.ConfirmationCount
		if a.Confirmed {
			a.Confirmed = false
			a.UpdatedAt = d.clock.Now()
			if err := tx.UpdateAssignment(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		d.metrics.DispatchFailures.WithLabelValues("store").Inc()
		return err
	}

	if stale {
		d.metrics.RemindersStale.Inc()
		if _, err := d.queue.Remove(ctx, e); err != nil {
			d.metrics.DispatchFailures.WithLabelValues("remove").Inc()
			return fmt.Errorf("failed to drop stale reminder %s: %w", e.Identity(), err)
		}
		return fmt.Errorf("reminder %s: %w", e.Identity(), model.ErrStaleReminder)
	}

	if _, err := d.checks.Arm(ctx, n, e.CheckDelay, cycle); err != nil {
		d.metrics.DispatchFailures.WithLabelValues("arm").Inc()
		return err
	}

	if _, err := d.queue.Remove(ctx, e); err != nil {
		d.metrics.DispatchFailures.WithLabelValues("remove").Inc()
		return fmt.Errorf("failed to remove dispatched reminder %s: %w", e.Identity(), err)
	}

	d.metrics.RemindersDispatched.Inc()
	d.logger.Info("Dispatched reminder",
		zap.String("event_id", e.EventID),
		zap.String("worker_id", e.WorkerID),
		zap.String("label", e.Label),
		zap.String("notification_id", n.ID),
		zap.Bool("reused", reused))

	if !reused {
		d.outbound.send(ctx, d.logger, events.Event{
			Type:     events.ReminderSent,
			EventID:  e.EventID,
			WorkerID: e.WorkerID,
			Label:    e.Label,
		}, worker, "Please confirm your attendance", n.Message)
	}
	return nil
}

// Run dispatches due reminders every interval until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("Starting reminder dispatcher", zap.Duration("interval", interval), zap.Int("limit", limit))
	defer d.logger.Info("Stopping reminder dispatcher")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Tick(ctx, limit); err != nil && ctx.Err() == nil {
				d.logger.Error("Dispatcher tick failed", zap.Error(err))
			}
		}
	}
}
