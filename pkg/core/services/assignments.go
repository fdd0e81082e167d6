package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/core/assignment"
	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/db"
	"github.com/Majulish/cookie/pkg/events"
	"github.com/Majulish/cookie/pkg/messages"
)

// ApplyToEvent records a worker's application for a job slot as PENDING.
// A worker holds at most one assignment per event, whatever its status.
func (s *Staffing) ApplyToEvent(ctx context.Context, eventID, workerID, jobID string) (string, error) {
	if err := s.authorize(ctx, ActionApply, eventID); err != nil {
		return "", err
	}

	now := s.clock.Now()
	a := &model.Assignment{
		ID:        uuid.New().String(),
		EventID:   eventID,
		WorkerID:  workerID,
		JobID:     jobID,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		event, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.Status == model.EventFinished {
			return fmt.Errorf("event %s: %w", eventID, model.ErrEventFinished)
		}
		if err := s.jobOfEvent(ctx, tx, eventID, jobID); err != nil {
			return err
		}
		return tx.InsertAssignment(ctx, a)
	})
	if err != nil {
		return "", fmt.Errorf("failed to apply to event: %w", err)
	}

	s.logger.Info("Worker applied",
		zap.String("event_id", eventID),
		zap.String("worker_id", workerID),
		zap.String("job_id", jobID),
		zap.String("assignment_id", a.ID))
	return a.ID, nil
}

// jobOfEvent fails with model.ErrRoleNotFound unless jobID is a slot of eventID
func (s *Staffing) jobOfEvent(ctx context.Context, tx db.Tx, eventID, jobID string) error {
	slot, err := tx.GetJobSlot(ctx, jobID)
	if err != nil {
		return err
	}
	if slot.EventID != eventID {
		return fmt.Errorf("job %s is not part of event %s: %w", jobID, eventID, model.ErrRoleNotFound)
	}
	return nil
}

// SetAssignmentStatus moves an assignment to status, keeping its job
func (s *Staffing) SetAssignmentStatus(ctx context.Context, assignmentID string, status model.AssignmentStatus) error {
	return s.ChangeAssignment(ctx, assignmentID, status, "")
}

// ChangeAssignment moves an assignment to status and, when jobID is set, to
// another job slot of the same event.
//
// Capacity changes and the row update commit together: if reserving the new
// slot fails the release of the old one is rolled back with it. Reminders are
// scheduled or cancelled only after the commit. A queue failure is returned
// as model.ErrQueueWrite with the assignment already changed; issuing the
// same change again reschedules.
func (s *Staffing) ChangeAssignment(ctx context.Context, assignmentID string, status model.AssignmentStatus, jobID string) error {
	if err := s.authorize(ctx, ActionManageAssignment, assignmentID); err != nil {
		return err
	}

	var (
		plan  assignment.Plan
		a     *model.Assignment
		start time.Time
	)
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		var err error
		a, err = tx.GetAssignmentForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		plan, err = assignment.PlanTransition(*a, status, jobID)
		if err != nil {
			return err
		}

		event, err := tx.GetEvent(ctx, a.EventID)
		if err != nil {
			return err
		}
		start = event.Start
		if plan.NoOp {
			return nil
		}
		if plan.To == model.StatusApproved && event.Status == model.EventFinished {
			return fmt.Errorf("event %s: %w", event.ID, model.ErrEventFinished)
		}
		if plan.JobID != a.JobID {
			if err := s.jobOfEvent(ctx, tx, a.EventID, plan.JobID); err != nil {
				return err
			}
		}

		for _, op := range plan.Ops {
			switch op.Kind {
			case assignment.OpReserve:
				err = s.ledger.Reserve(ctx, tx, op.JobID)
			case assignment.OpRelease:
				err = s.ledger.Release(ctx, tx, op.JobID)
			}
			if err != nil {
				return err
			}
		}

		a.Status = plan.To
		a.JobID = plan.JobID
		a.UpdatedAt = s.clock.Now()
		if plan.To != model.StatusApproved {
			a.Confirmed = false
		}
		if err := tx.UpdateAssignment(ctx, a); err != nil {
			return err
		}

		if plan.To == model.StatusApproved && plan.From != model.StatusApproved {
			return s.notifyApproved(ctx, tx, event, a)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to change assignment %s: %w", assignmentID, err)
	}

	s.logger.Info("Assignment changed",
		zap.String("assignment_id", a.ID),
		zap.String("event_id", a.EventID),
		zap.String("worker_id", a.WorkerID),
		zap.String("from", string(plan.From)),
		zap.String("to", string(plan.To)),
		zap.String("job_id", plan.JobID),
		zap.Bool("no_op", plan.NoOp))

	switch {
	case plan.ScheduleReminders:
		if !plan.NoOp {
			s.emitter.Emit(ctx, events.Event{Type: events.AssignmentApproved, EventID: a.EventID, WorkerID: a.WorkerID, Status: string(plan.To)})
		}
		if _, err := s.scheduler.Schedule(ctx, a.EventID, a.WorkerID, start); err != nil {
			return err
		}
	case plan.CancelReminders:
		s.emitter.Emit(ctx, events.Event{Type: events.AssignmentReleased, EventID: a.EventID, WorkerID: a.WorkerID, Status: string(plan.To)})
		return s.cancelPairTimers(ctx, a.EventID, a.WorkerID)
	}
	return nil
}

func (s *Staffing) notifyApproved(ctx context.Context, tx db.Tx, event *model.Event, a *model.Assignment) error {
	title := a.JobID
	if slot, err := tx.GetJobSlot(ctx, a.JobID); err == nil {
		title = slot.Title
	}
	n := &model.Notification{
		ID:          uuid.New().String(),
		RecipientID: a.WorkerID,
		Message: s.catalog.Render(messages.AssignmentApproved, map[string]any{
			"JobTitle":  title,
			"EventName": event.Name,
		}),
		EventID:   event.ID,
		WorkerID:  a.WorkerID,
		Kind:      model.NotificationInfo,
		CreatedAt: s.clock.Now(),
	}
	return tx.InsertNotification(ctx, n)
}

func (s *Staffing) cancelPairTimers(ctx context.Context, eventID, workerID string) error {
	return errors.Join(
		s.scheduler.Cancel(ctx, eventID, workerID),
		s.checks.Cancel(ctx, eventID, workerID),
	)
}

// RemoveAssignment deletes an assignment, releasing its opening if it held one
func (s *Staffing) RemoveAssignment(ctx context.Context, assignmentID string) error {
	if err := s.authorize(ctx, ActionManageAssignment, assignmentID); err != nil {
		return err
	}

	var a *model.Assignment
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		var err error
		a, err = tx.GetAssignmentForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		if a.Status.HoldsCapacity() {
			if err := s.ledger.Release(ctx, tx, a.JobID); err != nil {
				return err
			}
		}
		return tx.DeleteAssignment(ctx, assignmentID)
	})
	if err != nil {
		return fmt.Errorf("failed to remove assignment %s: %w", assignmentID, err)
	}

	s.logger.Info("Removed assignment",
		zap.String("assignment_id", a.ID),
		zap.String("event_id", a.EventID),
		zap.String("worker_id", a.WorkerID))
	s.emitter.Emit(ctx, events.Event{Type: events.AssignmentReleased, EventID: a.EventID, WorkerID: a.WorkerID})
	return s.cancelPairTimers(ctx, a.EventID, a.WorkerID)
}

// GetWorkersForEvent lists every assignment of the event with its job title
func (s *Staffing) GetWorkersForEvent(ctx context.Context, eventID string) ([]model.WorkerSummary, error) {
	if err := s.authorize(ctx, ActionViewWorkers, eventID); err != nil {
		return nil, err
	}

	var out []model.WorkerSummary
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return err
		}
		slots, err := tx.ListJobSlots(ctx, eventID)
		if err != nil {
			return err
		}
		titles := make(map[string]string, len(slots))
		for _, j := range slots {
			titles[j.ID] = j.Title
		}

		assignments, err := tx.ListAssignmentsByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		out = make([]model.WorkerSummary, 0, len(assignments))
		for _, a := range assignments {
			out = append(out, model.WorkerSummary{
				AssignmentID:      a.ID,
				WorkerID:          a.WorkerID,
				JobID:             a.JobID,
				JobTitle:          titles[a.JobID],
				Status:            a.Status,
				Confirmed:         a.Confirmed,
				ConfirmationCount: a.ConfirmationCount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	return out, nil
}
