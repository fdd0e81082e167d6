package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/db"
	"github.com/Majulish/cookie/pkg/events"
)

// JobSlotInput describes a role to open on a new event
type JobSlotInput struct {
	Title string
	Slots int
}

// EventInput describes a new event. End may be zero.
type EventInput struct {
	Name           string
	Description    string
	Location       string
	Start          time.Time
	End            time.Time
	OrganizationID string
	RecruiterID    string
	Jobs           []JobSlotInput
}

func (in EventInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("event name is required: %w", model.ErrInvalidInput)
	}
	if in.Start.IsZero() {
		return fmt.Errorf("event start is required: %w", model.ErrInvalidInput)
	}
	if !in.End.IsZero() && !in.End.After(in.Start) {
		return fmt.Errorf("event must end after it starts: %w", model.ErrInvalidInput)
	}
	if in.OrganizationID == "" {
		return fmt.Errorf("event organization is required: %w", model.ErrInvalidInput)
	}
	for _, j := range in.Jobs {
		if err := validateJob(j.Title, j.Slots); err != nil {
			return err
		}
	}
	return nil
}

func validateJob(title string, slots int) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("job title is required: %w", model.ErrInvalidInput)
	}
	if slots <= 0 {
		return fmt.Errorf("job %q needs at least one slot, got %d: %w", title, slots, model.ErrInvalidInput)
	}
	return nil
}

// EventResult is a created event with its job slots
type EventResult struct {
	Event *model.Event
	Jobs  []model.JobSlot
}

// CreateEvent inserts a planned event and its job slots in one transaction
func (s *Staffing) CreateEvent(ctx context.Context, in EventInput) (*EventResult, error) {
	if err := s.authorize(ctx, ActionManageEvent, in.OrganizationID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var result *EventResult
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		var err error
		result, err = s.insertEvent(ctx, tx, in, in.Start)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.logger.Info("Created event",
		zap.String("event_id", result.Event.ID),
		zap.String("name", result.Event.Name),
		zap.Time("start", result.Event.Start),
		zap.Int("jobs", len(result.Jobs)))
	return result, nil
}

// insertEvent writes one event of in starting at start
func (s *Staffing) insertEvent(ctx context.Context, tx db.Tx, in EventInput, start time.Time) (*EventResult, error) {
	event := &model.Event{
		ID:             uuid.New().String(),
		Name:           in.Name,
		Description:    in.Description,
		Location:       in.Location,
		Start:          start.UTC(),
		OrganizationID: in.OrganizationID,
		RecruiterID:    in.RecruiterID,
		Status:         model.EventPlanned,
		CreatedAt:      s.clock.Now(),
	}
	if !in.End.IsZero() {
		event.End = start.Add(in.End.Sub(in.Start)).UTC()
	}
	if err := tx.InsertEvent(ctx, event); err != nil {
		return nil, err
	}

	result := &EventResult{Event: event}
	for _, j := range in.Jobs {
		slot := model.JobSlot{
			ID:       uuid.New().String(),
			EventID:  event.ID,
			Title:    j.Title,
			Slots:    j.Slots,
			Openings: j.Slots,
		}
		if err := tx.InsertJobSlot(ctx, &slot); err != nil {
			return nil, err
		}
		result.Jobs = append(result.Jobs, slot)
	}
	return result, nil
}

// AddJobSlot opens a new role on an event with openings equal to slots
func (s *Staffing) AddJobSlot(ctx context.Context, eventID, title string, slots int) (*model.JobSlot, error) {
	if err := s.authorize(ctx, ActionManageEvent, eventID); err != nil {
		return nil, err
	}
	if err := validateJob(title, slots); err != nil {
		return nil, err
	}

	slot := &model.JobSlot{
		ID:       uuid.New().String(),
		EventID:  eventID,
		Title:    title,
		Slots:    slots,
		Openings: slots,
	}
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		event, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.Status == model.EventFinished {
			return fmt.Errorf("event %s: %w", eventID, model.ErrEventFinished)
		}
		return tx.InsertJobSlot(ctx, slot)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add job slot: %w", err)
	}

	s.logger.Info("Added job slot",
		zap.String("event_id", eventID),
		zap.String("job_id", slot.ID),
		zap.String("title", title),
		zap.Int("slots", slots))
	return slot, nil
}

// GetEvent returns an event with its job slots
func (s *Staffing) GetEvent(ctx context.Context, eventID string) (*EventResult, error) {
	if err := s.authorize(ctx, ActionViewEvent, eventID); err != nil {
		return nil, err
	}

	result := &EventResult{}
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		var err error
		result.Event, err = tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		result.Jobs, err = tx.ListJobSlots(ctx, eventID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return result, nil
}

// ListEvents returns the events of an organization ordered by start time.
// An empty organizationID lists every event.
func (s *Staffing) ListEvents(ctx context.Context, organizationID string) ([]model.Event, error) {
	if err := s.authorize(ctx, ActionViewEvent, organizationID); err != nil {
		return nil, err
	}

	var out []model.Event
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = tx.ListEvents(ctx, organizationID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return out, nil
}

// EventUpdate lists the fields to change on an event. Nil fields keep their
// value; a zero End clears the end time.
type EventUpdate struct {
	Name        *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
}

func (u EventUpdate) apply(e *model.Event) {
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.Location != nil {
		e.Location = *u.Location
	}
	if u.Start != nil {
		e.Start = u.Start.UTC()
	}
	if u.End != nil {
		e.End = u.End.UTC()
	}
}

// UpdateEvent changes the details of an event that has not finished.
//
// When the start time moves, the reminders of every approved worker are
// rescheduled from the new start after the commit. Queue failures are
// returned as model.ErrQueueWrite with the event already updated.
func (s *Staffing) UpdateEvent(ctx context.Context, eventID string, upd EventUpdate) (*model.Event, error) {
	if err := s.authorize(ctx, ActionManageEvent, eventID); err != nil {
		return nil, err
	}

	var (
		event    *model.Event
		moved    bool
		approved []string
	)
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		var err error
		event, err = tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.Status == model.EventFinished {
			return fmt.Errorf("event %s: %w", eventID, model.ErrEventFinished)
		}

		previous := event.Start
		upd.apply(event)
		in := EventInput{Name: event.Name, Start: event.Start, End: event.End, OrganizationID: event.OrganizationID}
		if err := in.validate(); err != nil {
			return err
		}
		if err := tx.UpdateEvent(ctx, event); err != nil {
			return err
		}

		moved = !event.Start.Equal(previous)
		if !moved {
			return nil
		}
		assignments, err := tx.ListAssignmentsByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.Status == model.StatusApproved {
				approved = append(approved, a.WorkerID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	s.logger.Info("Updated event",
		zap.String("event_id", event.ID),
		zap.Time("start", event.Start),
		zap.Bool("start_moved", moved),
		zap.Int("rescheduled", len(approved)))
	s.emitter.Emit(ctx, events.Event{Type: events.EventUpdated, EventID: eventID})

	var errs []error
	for _, workerID := range approved {
		if _, err := s.scheduler.Schedule(ctx, eventID, workerID, event.Start); err != nil {
			errs = append(errs, err)
		}
	}
	return event, errors.Join(errs...)
}

// SetEventStatus moves an event through planned, started and finished.
// Finishing an event drops every pending reminder and escalation check.
func (s *Staffing) SetEventStatus(ctx context.Context, eventID string, status model.EventStatus) error {
	if err := s.authorize(ctx, ActionManageEvent, eventID); err != nil {
		return err
	}
	if !status.IsValid() {
		return fmt.Errorf("unknown event status %q: %w", status, model.ErrInvalidInput)
	}

	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		event, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.Status == model.EventFinished && status != model.EventFinished {
			return fmt.Errorf("event %s cannot leave finished: %w", eventID, model.ErrInvalidTransition)
		}
		return tx.UpdateEventStatus(ctx, eventID, status)
	})
	if err != nil {
		return fmt.Errorf("failed to set event status: %w", err)
	}
	s.logger.Info("Event status changed", zap.String("event_id", eventID), zap.String("status", string(status)))

	if status == model.EventFinished {
		return s.cancelEventTimers(ctx, eventID)
	}
	return nil
}

// DeleteEvent removes the event with its job slots and assignments, then
// drops every reminder and escalation check queued for it
func (s *Staffing) DeleteEvent(ctx context.Context, eventID string) error {
	if err := s.authorize(ctx, ActionManageEvent, eventID); err != nil {
		return err
	}

	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		return tx.DeleteEvent(ctx, eventID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	s.logger.Info("Deleted event", zap.String("event_id", eventID))

	s.emitter.Emit(ctx, events.Event{Type: events.EventDeleted, EventID: eventID})
	return s.cancelEventTimers(ctx, eventID)
}

func (s *Staffing) cancelEventTimers(ctx context.Context, eventID string) error {
	// Entries left behind by a failure here are dropped as stale when they fire
	return errors.Join(
		s.scheduler.CancelEvent(ctx, eventID),
		s.checks.CancelEvent(ctx, eventID),
	)
}

// RegisterUser adds a worker, manager or recruiter to the directory
func (s *Staffing) RegisterUser(ctx context.Context, user model.User) (*model.User, error) {
	if err := s.authorize(ctx, ActionManageUsers, user.OrganizationID); err != nil {
		return nil, err
	}
	if !user.Role.IsValid() {
		return nil, fmt.Errorf("unknown role %q: %w", user.Role, model.ErrInvalidInput)
	}
	if strings.TrimSpace(user.Name) == "" {
		return nil, fmt.Errorf("user name is required: %w", model.ErrInvalidInput)
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		return tx.InsertUser(ctx, &user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	s.logger.Info("Registered user", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return &user, nil
}
