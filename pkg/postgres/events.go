package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Majulish/cookie/pkg/core/model"
)

const eventColumns = `id, name, description, location, start_at, end_at, organization_id, recruiter_id, status, created_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	var end *time.Time
	var status string
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Location, &e.Start, &end,
		&e.OrganizationID, &e.RecruiterID, &status, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Status = model.EventStatus(status)
	e.Start = e.Start.UTC()
	if end != nil {
		e.End = end.UTC()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// InsertEvent inserts a new event
func (s *txStore) InsertEvent(ctx context.Context, event *model.Event) error {
	status := event.Status
	if status == "" {
		status = model.EventPlanned
	}
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (@id, @name, @description, @location, @start, @end, @org, @recruiter, @status, @created)
	`
	_, err := s.tx.Exec(ctx, query, pgx.NamedArgs{
		"id":          event.ID,
		"name":        event.Name,
		"description": event.Description,
		"location":    event.Location,
		"start":       event.Start,
		"end":         nullableTime(event.End),
		"org":         event.OrganizationID,
		"recruiter":   event.RecruiterID,
		"status":      string(status),
		"created":     createdAt(event.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by ID
func (s *txStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(s.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// ListEvents returns the events of an organization, or every event when
// organizationID is empty, ordered by start time
func (s *txStore) ListEvents(ctx context.Context, organizationID string) ([]model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE $1::text = '' OR organization_id = $1
		ORDER BY start_at, id
	`
	rows, err := s.tx.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return out, nil
}

// UpdateEvent rewrites the descriptive fields and times of an event
func (s *txStore) UpdateEvent(ctx context.Context, event *model.Event) error {
	query := `
		UPDATE events
		SET name = @name, description = @description, location = @location, start_at = @start, end_at = @end
		WHERE id = @id
	`
	tag, err := s.tx.Exec(ctx, query, pgx.NamedArgs{
		"id":          event.ID,
		"name":        event.Name,
		"description": event.Description,
		"location":    event.Location,
		"start":       event.Start,
		"end":         nullableTime(event.End),
	})
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

// UpdateEventStatus sets the lifecycle status of an event
func (s *txStore) UpdateEventStatus(ctx context.Context, id string, status model.EventStatus) error {
	tag, err := s.tx.Exec(ctx, `UPDATE events SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

// DeleteEvent removes an event. Job slots and assignments go with it through
// ON DELETE CASCADE.
func (s *txStore) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

// InsertJobSlot inserts a job slot for an existing event
func (s *txStore) InsertJobSlot(ctx context.Context, slot *model.JobSlot) error {
	query := `
		INSERT INTO job_slots (id, event_id, title, slots, openings)
		SELECT @id, @event, @title, @slots, @openings
		WHERE EXISTS (SELECT 1 FROM events WHERE id = @event)
	`
	tag, err := s.tx.Exec(ctx, query, pgx.NamedArgs{
		"id":       slot.ID,
		"event":    slot.EventID,
		"title":    slot.Title,
		"slots":    slot.Slots,
		"openings": slot.Openings,
	})
	if err != nil {
		return fmt.Errorf("failed to insert job slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

// GetJobSlot retrieves a job slot by ID
func (s *txStore) GetJobSlot(ctx context.Context, id string) (*model.JobSlot, error) {
	var j model.JobSlot
	err := s.tx.QueryRow(ctx, `SELECT id, event_id, title, slots, openings FROM job_slots WHERE id = $1`, id).
		Scan(&j.ID, &j.EventID, &j.Title, &j.Slots, &j.Openings)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job slot: %w", err)
	}
	return &j, nil
}

// ListJobSlots returns the job slots of an event in creation order
func (s *txStore) ListJobSlots(ctx context.Context, eventID string) ([]model.JobSlot, error) {
	query := `
		SELECT id, event_id, title, slots, openings
		FROM job_slots
		WHERE event_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.tx.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job slots: %w", err)
	}
	defer rows.Close()

	var slots []model.JobSlot
	for rows.Next() {
		var j model.JobSlot
		if err := rows.Scan(&j.ID, &j.EventID, &j.Title, &j.Slots, &j.Openings); err != nil {
			return nil, fmt.Errorf("failed to scan job slot: %w", err)
		}
		slots = append(slots, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job slots: %w", err)
	}
	return slots, nil
}

// DecrementOpenings takes one opening if any is left
func (s *txStore) DecrementOpenings(ctx context.Context, jobID string) (bool, error) {
	return s.adjustOpenings(ctx, jobID,
		`UPDATE job_slots SET openings = openings - 1 WHERE id = $1 AND openings > 0 RETURNING openings`)
}

// IncrementOpenings returns one opening unless the slot is already full
func (s *txStore) IncrementOpenings(ctx context.Context, jobID string) (bool, error) {
	return s.adjustOpenings(ctx, jobID,
		`UPDATE job_slots SET openings = openings + 1 WHERE id = $1 AND openings < slots RETURNING openings`)
}

func (s *txStore) adjustOpenings(ctx context.Context, jobID, query string) (bool, error) {
	var openings int
	err := s.tx.QueryRow(ctx, query, jobID).Scan(&openings)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("failed to adjust openings: %w", err)
	}

	var exists bool
	if err := s.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM job_slots WHERE id = $1)`, jobID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check job slot: %w", err)
	}
	if !exists {
		return false, model.ErrRoleNotFound
	}
	return false, nil
}
