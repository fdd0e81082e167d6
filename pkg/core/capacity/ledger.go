// Package capacity guards the openings counter of every job slot.
//
// The ledger never reads-then-writes: it relies on the store's conditional
// decrement/increment, which runs under a row lock in postgres and under the
// store lock in memory, so concurrent reservations against one slot are
// serialized and the N+1-th reservation on N openings always fails.
package capacity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/db"
	"github.com/Majulish/cookie/pkg/metrics"
)

// Ledger reserves and releases openings
type Ledger struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewLedger(logger *zap.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{logger: logger, metrics: m}
}

// Reserve consumes one opening of the job slot.
// Returns model.ErrCapacityExhausted when the slot is full.
func (l *Ledger) Reserve(ctx context.Context, counter db.CapacityCounter, jobID string) error {
	ok, err := counter.DecrementOpenings(ctx, jobID)
	if err != nil {
		if errors.Is(err, model.ErrRoleNotFound) {
			return err
		}
		return fmt.Errorf("failed to reserve opening for job %s: %w", jobID, err)
	}
	if !ok {
		l.metrics.CapacityRejections.Inc()
		l.logger.Debug("Reservation rejected, no openings", zap.String("job_id", jobID))
		return fmt.Errorf("job %s: %w", jobID, model.ErrCapacityExhausted)
	}
	l.logger.Debug("Reserved opening", zap.String("job_id", jobID))
	return nil
}

// Release returns one opening to the job slot. A release against a slot that
// is already at full capacity is reported as model.ErrCapacityInvariant and
// leaves the counter untouched.
func (l *Ledger) Release(ctx context.Context, counter db.CapacityCounter, jobID string) error {
	ok, err := counter.IncrementOpenings(ctx, jobID)
	if err != nil {
		if errors.Is(err, model.ErrRoleNotFound) {
			return err
		}
		return fmt.Errorf("failed to release opening for job %s: %w", jobID, err)
	}
	if !ok {
		l.metrics.CapacityInvariant.Inc()
		l.logger.Error("Release would exceed slot capacity", zap.String("job_id", jobID))
		return fmt.Errorf("job %s: %w", jobID, model.ErrCapacityInvariant)
	}
	l.logger.Debug("Released opening", zap.String("job_id", jobID))
	return nil
}
