package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/db"
	"github.com/Majulish/cookie/pkg/events"
)

// ConfirmAttendance records that the worker has seen a reminder and will
// attend. Only the addressee of a reminder notification may confirm it.
//
// The pending escalation check for that reminder is cancelled after commit.
// If the check already fired, whichever transaction committed first decides:
// the check skips a confirmed notification, and a confirmation after an
// escalation still marks the worker as confirmed.
func (s *Staffing) ConfirmAttendance(ctx context.Context, notificationID, workerID string) error {
	if err := s.authorize(ctx, ActionConfirm, notificationID); err != nil {
		return err
	}

	var n *model.Notification
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		var err error
		n, err = tx.GetNotificationForUpdate(ctx, notificationID)
		if err != nil {
			return err
		}
		if n.RecipientID != workerID || n.Kind != model.NotificationReminder {
			return fmt.Errorf("notification %s for worker %s: %w", notificationID, workerID, model.ErrForbidden)
		}
		if n.Confirmed {
			return model.ErrAlreadyConfirmed
		}

		n.Confirmed = true
		n.IsRead = true
		if err := tx.UpdateNotification(ctx, n); err != nil {
			return err
		}

		a, err := tx.GetAssignmentByPair(ctx, n.EventID, n.WorkerID)
		if errors.Is(err, model.ErrAssignmentNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		a, err = tx.GetAssignmentForUpdate(ctx, a.ID)
		if err != nil {
			return err
		}
		latest, err := latestReminder(ctx, tx, n)
		if err != nil {
			return err
		}
		// An older cycle says nothing about the reminder outstanding now
		if latest {
			a.Confirmed = true
		}
		// An escalated reminder was already counted by the escalation
		if !n.Escalated {
			a.ConfirmationCount++
		}
		a.UpdatedAt = s.clock.Now()
		return tx.UpdateAssignment(ctx, a)
	})
	if err != nil {
		return fmt.Errorf("failed to confirm attendance: %w", err)
	}

	s.logger.Info("Attendance confirmed",
		zap.String("notification_id", n.ID),
		zap.String("event_id", n.EventID),
		zap.String("worker_id", n.WorkerID),
		zap.String("label", n.Label))
	s.emitter.Emit(ctx, events.Event{Type: events.AttendanceConfirmed, EventID: n.EventID, WorkerID: n.WorkerID, Label: n.Label})

	if err := s.checks.CancelLabel(ctx, n.EventID, n.WorkerID, n.Label); err != nil {
		// The check finds the notification confirmed and does nothing
		s.logger.Warn("Failed to cancel escalation check", zap.String("notification_id", n.ID), zap.Error(err))
	}
	return nil
}

// latestReminder reports whether n is the most recent reminder sent for its
// (event, worker) pair
func latestReminder(ctx context.Context, tx db.Tx, n *model.Notification) (bool, error) {
	inbox, err := tx.ListNotifications(ctx, n.RecipientID)
	if err != nil {
		return false, err
	}
	last := ""
	for _, m := range inbox {
		if m.Kind == model.NotificationReminder && m.EventID == n.EventID && m.WorkerID == n.WorkerID {
			last = m.ID
		}
	}
	return last == n.ID, nil
}

// ListNotifications returns the inbox of recipientID, oldest first
func (s *Staffing) ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error) {
	if err := s.authorize(ctx, ActionReadNotifications, recipientID); err != nil {
		return nil, err
	}

	var out []model.Notification
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = tx.ListNotifications(ctx, recipientID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationsRead marks the given notifications of recipientID as read.
// Ids that belong to someone else are ignored. Returns how many changed.
func (s *Staffing) MarkNotificationsRead(ctx context.Context, ids []string, recipientID string) (int, error) {
	if err := s.authorize(ctx, ActionReadNotifications, recipientID); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var updated int
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		var err error
		updated, err = tx.MarkNotificationsRead(ctx, ids, recipientID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	s.logger.Debug("Marked notifications read", zap.String("recipient_id", recipientID), zap.Int("count", updated))
	return updated, nil
}
