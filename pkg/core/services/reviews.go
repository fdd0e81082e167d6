package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/db"
)

// AddReview records feedback on a worker. The caller in ctx is the commenter.
func (s *Staffing) AddReview(ctx context.Context, workerID, text string) (*model.Review, error) {
	if err := s.authorize(ctx, ActionReviewWorker, workerID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("review text is required: %w", model.ErrInvalidInput)
	}

	review := &model.Review{
		ID:          uuid.New().String(),
		WorkerID:    workerID,
		CommenterID: ActorFrom(ctx),
		Text:        text,
		CreatedAt:   s.clock.Now(),
	}
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		return tx.InsertReview(ctx, review)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add review: %w", err)
	}

	s.logger.Info("Added review",
		zap.String("review_id", review.ID),
		zap.String("worker_id", workerID),
		zap.String("commenter_id", review.CommenterID))
	return review, nil
}

// ListReviews returns the reviews of a worker, oldest first
func (s *Staffing) ListReviews(ctx context.Context, workerID string) ([]model.Review, error) {
	if err := s.authorize(ctx, ActionViewReviews, workerID); err != nil {
		return nil, err
	}

	var out []model.Review
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = tx.ListReviews(ctx, workerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return out, nil
}
