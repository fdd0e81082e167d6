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

// DefaultEscalationRetry is how long an escalation waits before trying again
// when the organization has no HR manager
const DefaultEscalationRetry = 15 * time.Minute

// EscalationChecks arms, cancels and fires escalation checks. Checks live in
// their own timer queue, one per (event, worker, label).
type EscalationChecks struct {
	db       db.Database
	queue    timerqueue.Queue
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
	catalog  *messages.Catalog
	outbound Outbound

	RetryDelay time.Duration
}

func NewEscalationChecks(
	database db.Database,
	queue timerqueue.Queue,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
	catalog *messages.Catalog,
	outbound Outbound,
) *EscalationChecks {
	return &EscalationChecks{
		db:         database,
		queue:      queue,
		clock:      clk,
		logger:     logger,
		metrics:    m,
		catalog:    catalog,
		outbound:   outbound,
		RetryDelay: DefaultEscalationRetry,
	}
}

// Arm schedules the check for a reminder notification at now + checkDelay.
// Re-arming the same (event, worker, label) replaces the earlier check.
func (c *EscalationChecks) Arm(ctx context.Context, n model.Notification, checkDelay time.Duration, cycle int) (timerqueue.Entry, error) {
	e := timerqueue.Entry{
		Kind:           timerqueue.KindEscalation,
		EventID:        n.EventID,
		WorkerID:       n.WorkerID,
		Label:          n.Label,
		CheckDelay:     checkDelay,
		FireAt:         c.clock.Now().Add(checkDelay),
		NotificationID: n.ID,
		Cycle:          cycle,
	}
	if err := c.queue.Enqueue(ctx, e); err != nil {
		c.metrics.QueueWriteFailures.WithLabelValues("arm_escalation").Inc()
		return e, fmt.Errorf("failed to arm escalation for notification %s: %w: %w", n.ID, model.ErrQueueWrite, err)
	}
	return e, nil
}

// CancelLabel drops the armed check of one reminder label
func (c *EscalationChecks) CancelLabel(ctx context.Context, eventID, workerID, label string) error {
	pending, err := c.queue.Pending(ctx, eventID, workerID)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrQueueWrite, err)
	}
	for _, e := range pending {
		if e.Label != label {
			continue
		}
		if _, err := c.queue.Remove(ctx, e); err != nil {
			c.metrics.QueueWriteFailures.WithLabelValues("cancel_escalation").Inc()
			return fmt.Errorf("failed to cancel escalation %s: %w: %w", e.Identity(), model.ErrQueueWrite, err)
		}
	}
	return nil
}

// Cancel drops every armed check of the pair
func (c *EscalationChecks) Cancel(ctx context.Context, eventID, workerID string) error {
	if err := c.queue.RemovePair(ctx, eventID, workerID); err != nil {
		c.metrics.QueueWriteFailures.WithLabelValues("cancel_escalation").Inc()
		return fmt.Errorf("failed to cancel escalations for %s: %w: %w",
			timerqueue.PairKey(eventID, workerID), model.ErrQueueWrite, err)
	}
	return nil
}

// CancelEvent drops every armed check of the event
func (c *EscalationChecks) CancelEvent(ctx context.Context, eventID string) error {
	if err := c.queue.RemoveEvent(ctx, eventID); err != nil {
		c.metrics.QueueWriteFailures.WithLabelValues("cancel_escalation").Inc()
		return fmt.Errorf("failed to cancel escalations for event %s: %w: %w", eventID, model.ErrQueueWrite, err)
	}
	return nil
}

// CheckResult describes what a check did
type CheckResult string

const (
	CheckEscalated        CheckResult = "escalated"
	CheckConfirmed        CheckResult = "confirmed"
	CheckAlreadyEscalated CheckResult = "already_escalated"
	CheckStale            CheckResult = "stale"
)

// Check escalates the notification of e if the worker has not confirmed it.
//
// The guard on the notification flags and the manager notification insert
// run in the same transaction, so a re-delivered check never escalates twice.
// Returns model.ErrEscalationTargetUnresolved when the organization has no
// HR manager.
func (c *EscalationChecks) Check(ctx context.Context, e timerqueue.Entry) (CheckResult, error) {
	var (
		result  CheckResult
		manager *model.User
		managed model.Notification
	)

	err := c.db.WithTx(ctx, func(tx db.Tx) error {
		n, err := tx.GetNotificationForUpdate(ctx, e.NotificationID)
		if errors.Is(err, model.ErrNotificationNotFound) {
			result = CheckStale
			return nil
		}
		if err != nil {
			return err
		}
		if n.Confirmed {
			result = CheckConfirmed
			return nil
		}
		if n.Escalated {
			result = CheckAlreadyEscalated
			return nil
		}

		event, err := tx.GetEvent(ctx, n.EventID)
		if errors.Is(err, model.ErrEventNotFound) {
			result = CheckStale
			return nil
		}
		if err != nil {
			return err
		}

		// The worker no longer holds the slot this reminder was about
		a, err := tx.GetAssignmentByPair(ctx, n.EventID, n.WorkerID)
		if errors.Is(err, model.ErrAssignmentNotFound) {
			result = CheckStale
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
			result = CheckStale
			return nil
		}

		manager, err = tx.FindManager(ctx, event.OrganizationID)
		if errors.Is(err, model.ErrUserNotFound) {
			return fmt.Errorf("organization %s of event %s: %w", event.OrganizationID, event.ID, model.ErrEscalationTargetUnresolved)
		}
		if err != nil {
			return err
		}

		n.IsRead = true
		n.Escalated = true
		if err := tx.UpdateNotification(ctx, n); err != nil {
			return err
		}

		a.ConfirmationCount++
		a.UpdatedAt = c.clock.Now()
		if err := tx.UpdateAssignment(ctx, a); err != nil {
			return err
		}

		workerName := n.WorkerID
		if w, err := tx.GetUser(ctx, n.WorkerID); err == nil && w.Name != "" {
			workerName = w.Name
		}

		managed = model.Notification{
			ID:          uuid.New().String(),
			RecipientID: manager.ID,
			Message: c.catalog.Render(messages.EscalationUnconfirmed, map[string]any{
				"WorkerName": workerName,
				"EventName":  event.Name,
				"Label":      n.Label,
			}),
			EventID:   n.EventID,
			WorkerID:  n.WorkerID,
			Label:     n.Label,
			Kind:      model.NotificationEscalation,
			CreatedAt: c.clock.Now(),
		}
		result = CheckEscalated
		return tx.InsertNotification(ctx, &managed)
	})
	if err != nil {
		return "", err
	}

	switch result {
	case CheckEscalated:
		c.metrics.EscalationsSent.Inc()
		c.logger.Info("Escalated unconfirmed reminder",
			zap.String("event_id", e.EventID),
			zap.String("worker_id", e.WorkerID),
			zap.String("label", e.Label),
			zap.String("manager_id", manager.ID))
		c.outbound.send(ctx, c.logger, events.Event{
			Type:     events.EscalationRaised,
			EventID:  e.EventID,
			WorkerID: e.WorkerID,
			Label:    e.Label,
		}, manager, "Unconfirmed attendance", managed.Message)
	case CheckStale:
		c.metrics.RemindersStale.Inc()
		c.metrics.EscalationsSkipped.WithLabelValues(string(result)).Inc()
		return result, fmt.Errorf("escalation %s: %w", e.Identity(), model.ErrStaleReminder)
	default:
		c.metrics.EscalationsSkipped.WithLabelValues(string(result)).Inc()
	}
	return result, nil
}

// Tick fires every due check and returns how many completed
func (c *EscalationChecks) Tick(ctx context.Context, limit int) (int, error) {
	due, err := c.queue.DueBefore(ctx, c.clock.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to read due escalations: %w", err)
	}

	done := 0
	for _, e := range due {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if c.process(ctx, e) {
			done++
		}
	}
	return done, nil
}

func (c *EscalationChecks) process(ctx context.Context, e timerqueue.Entry) bool {
	log := c.logger.With(
		zap.String("event_id", e.EventID),
		zap.String("worker_id", e.WorkerID),
		zap.String("label", e.Label),
		zap.Int("cycle", e.Cycle))

	_, err := c.Check(ctx, e)
	switch {
	case err == nil, errors.Is(err, model.ErrStaleReminder):
		if _, err := c.queue.Remove(ctx, e); err != nil {
			c.metrics.QueueWriteFailures.WithLabelValues("remove_escalation").Inc()
			log.Error("Failed to remove completed escalation check", zap.Error(err))
		}
		return true
	case errors.Is(err, model.ErrEscalationTargetUnresolved):
		c.metrics.EscalationFailures.WithLabelValues("unresolved_manager").Inc()
		log.Error("No manager to escalate to, retrying later", zap.Duration("retry_in", c.RetryDelay), zap.Error(err))
		retry := e
		retry.FireAt = c.clock.Now().Add(c.RetryDelay)
		if err := c.queue.Enqueue(ctx, retry); err != nil {
			c.metrics.QueueWriteFailures.WithLabelValues("arm_escalation").Inc()
			log.Error("Failed to re-arm escalation check", zap.Error(err))
		}
		return false
	default:
		c.metrics.EscalationFailures.WithLabelValues("error").Inc()
		log.Error("Escalation check failed", zap.Error(err))
		return false
	}
}

// Run fires due checks every interval until ctx is cancelled
func (c *EscalationChecks) Run(ctx context.Context, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("Starting escalation checks", zap.Duration("interval", interval), zap.Int("limit", limit))
	defer c.logger.Info("Stopping escalation checks")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Tick(ctx, limit); err != nil && ctx.Err() == nil {
				c.logger.Error("Escalation tick failed", zap.Error(err))
			}
		}
	}
}
