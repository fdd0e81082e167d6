package reminders

import (
	"context"

	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/events"
)

// Deliverer sends an out-of-band copy of a notification (e.g. email)
type Deliverer interface {
	Deliver(ctx context.Context, to model.User, subject, body string) error
}

// Outbound bundles the best-effort side channels fed after a commit.
// Both fields are optional.
type Outbound struct {
	Emitter   *events.Emitter
	Deliverer Deliverer
}

func (o Outbound) send(ctx context.Context, logger *zap.Logger, ev events.Event, to *model.User, subject, body string) {
	o.Emitter.Emit(ctx, ev)

	if o.Deliverer == nil || to == nil || to.Email == "" {
		return
	}
	if err := o.Deliverer.Deliver(ctx, *to, subject, body); err != nil {
		logger.Warn("Failed to deliver notification copy",
			zap.String("recipient_id", to.ID),
			zap.String("event_id", ev.EventID),
			zap.Error(err))
	}
}
