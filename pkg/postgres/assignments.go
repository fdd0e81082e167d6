package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Majulish/cookie/pkg/core/model"
)

const assignmentColumns = `id, event_id, worker_id, job_id, status, confirmed, confirmation_count, created_at, updated_at`

func scanAssignment(row pgx.Row) (*model.Assignment, error) {
	var a model.Assignment
	var status string
	if err := row.Scan(&a.ID, &a.EventID, &a.WorkerID, &a.JobID, &status,
		&a.Confirmed, &a.ConfirmationCount, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = model.AssignmentStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// InsertAssignment inserts a new assignment
func (s *txStore) InsertAssignment(ctx context.Context, a *model.Assignment) error {
	created := createdAt(a.CreatedAt)
	updated := a.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	query := `
		INSERT INTO assignments (` + assignmentColumns + `)
		VALUES (@id, @event, @worker, @job, @status, @confirmed, @count, @created, @updated)
	`
	_, err := s.tx.Exec(ctx, query, pgx.NamedArgs{
		"id":        a.ID,
		"event":     a.EventID,
		"worker":    a.WorkerID,
		"job":       a.JobID,
		"status":    string(a.Status),
		"confirmed": a.Confirmed,
		"count":     a.ConfirmationCount,
		"created":   created,
		"updated":   updated,
	})
	if isUniqueViolation(err, "assignments_event_worker_key") {
		return model.ErrDuplicateAssignment
	}
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// GetAssignmentForUpdate reads an assignment and locks the row until the
// transaction ends
func (s *txStore) GetAssignmentForUpdate(ctx context.Context, id string) (*model.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1 FOR UPDATE`
	a, err := scanAssignment(s.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// GetAssignmentByPair reads the assignment of a worker for an event
func (s *txStore) GetAssignmentByPair(ctx context.Context, eventID, workerID string) (*model.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE event_id = $1 AND worker_id = $2 FOR UPDATE`
	a, err := scanAssignment(s.tx.QueryRow(ctx, query, eventID, workerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// UpdateAssignment writes back status, role and confirmation state
func (s *txStore) UpdateAssignment(ctx context.Context, a *model.Assignment) error {
	query := `
		UPDATE assignments
		SET job_id = @job, status = @status, confirmed = @confirmed,
		    confirmation_count = @count, updated_at = @updated
		WHERE id = @id
	`
	tag, err := s.tx.Exec(ctx, query, pgx.NamedArgs{
		"id":        a.ID,
		"job":       a.JobID,
		"status":    string(a.Status),
		"confirmed": a.Confirmed,
		"count":     a.ConfirmationCount,
		"updated":   createdAt(a.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAssignmentNotFound
	}
	return nil
}

// DeleteAssignment removes an assignment
func (s *txStore) DeleteAssignment(ctx context.Context, id string) error {
	tag, err := s.tx.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAssignmentNotFound
	}
	return nil
}

// ListAssignmentsByEvent returns every assignment of an event in creation order
func (s *txStore) ListAssignmentsByEvent(ctx context.Context, eventID string) ([]model.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE event_id = $1 ORDER BY created_at, id`
	rows, err := s.tx.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return out, nil
}
