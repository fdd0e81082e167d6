package services

import (
	"context"
	"fmt"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/db"
)

// MaxSeriesOccurrences bounds how many events one series may create
const MaxSeriesOccurrences = 366

// DefineEventSeries creates one event per occurrence of rule, each a copy of
// template shifted to the occurrence. The first occurrence is template.Start.
// count limits the series when the rule has neither COUNT nor UNTIL.
func (s *Staffing) DefineEventSeries(ctx context.Context, template EventInput, rule string, count int) ([]*EventResult, error) {
	if err := s.authorize(ctx, ActionManageEvent, template.OrganizationID); err != nil {
		return nil, err
	}
	if err := template.validate(); err != nil {
		return nil, err
	}

	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule %q: %w", rule, model.ErrInvalidInput)
	}
	opt.Dtstart = template.Start.UTC()
	if opt.Count == 0 && opt.Until.IsZero() {
		if count <= 0 {
			return nil, fmt.Errorf("recurrence rule needs COUNT, UNTIL or a count: %w", model.ErrInvalidInput)
		}
		opt.Count = count
	}
	if count > 0 && (opt.Count == 0 || opt.Count > count) {
		opt.Count = count
	}
	if opt.Count == 0 || opt.Count > MaxSeriesOccurrences {
		// Bound open-ended UNTIL rules as well
		opt.Count = MaxSeriesOccurrences
	}

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule %q: %w", rule, model.ErrInvalidInput)
	}
	occurrences := r.All()
	if len(occurrences) == 0 {
		return nil, fmt.Errorf("recurrence rule %q has no occurrences: %w", rule, model.ErrInvalidInput)
	}

	results := make([]*EventResult, 0, len(occurrences))
	err = s.db.WithTx(ctx, func(tx db.Tx) error {
		for _, start := range occurrences {
			res, err := s.insertEvent(ctx, tx, template, start)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event series: %w", err)
	}

	s.logger.Info("Created event series",
		zap.String("name", template.Name),
		zap.String("rule", rule),
		zap.Int("events", len(results)),
		zap.Time("first", occurrences[0]),
		zap.Time("last", occurrences[len(occurrences)-1]))
	return results, nil
}
