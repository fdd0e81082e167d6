package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Majulish/cookie/pkg/core/model"
)

// InsertReview stores a review of an existing worker
func (s *txStore) InsertReview(ctx context.Context, review *model.Review) error {
	query := `
		INSERT INTO reviews (id, worker_id, commenter_id, review_text, created_at)
		VALUES (@id, @worker, @commenter, @text, @created)
	`
	_, err := s.tx.Exec(ctx, query, pgx.NamedArgs{
		"id":        review.ID,
		"worker":    review.WorkerID,
		"commenter": review.CommenterID,
		"text":      review.Text,
		"created":   createdAt(review.CreatedAt),
	})
	if isForeignKeyViolation(err, "reviews_worker_id_fkey") {
		return model.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// ListReviews returns the reviews of a worker, oldest first
func (s *txStore) ListReviews(ctx context.Context, workerID string) ([]model.Review, error) {
	query := `
		SELECT id, worker_id, commenter_id, review_text, created_at
		FROM reviews
		WHERE worker_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.tx.Query(ctx, query, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.WorkerID, &r.CommenterID, &r.Text, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return out, nil
}
