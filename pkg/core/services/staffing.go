package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/clock"
	"github.com/Majulish/cookie/pkg/core/capacity"
	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/core/reminders"
	"github.com/Majulish/cookie/pkg/db"
	"github.com/Majulish/cookie/pkg/events"
	"github.com/Majulish/cookie/pkg/messages"
)

// Staffing is the entry point for every external staffing operation
type Staffing struct {
	db        db.Database
	ledger    *capacity.Ledger
	scheduler *reminders.Scheduler
	checks    *reminders.EscalationChecks
	authz     Authorizer
	catalog   *messages.Catalog
	emitter   *events.Emitter
	clock     clock.Clock
	logger    *zap.Logger
}

// Deps holds the collaborators of Staffing. Authz, Emitter and Clock are optional.
type Deps struct {
	Database  db.Database
	Ledger    *capacity.Ledger
	Scheduler *reminders.Scheduler
	Checks    *reminders.EscalationChecks
	Authz     Authorizer
	Catalog   *messages.Catalog
	Emitter   *events.Emitter
	Clock     clock.Clock
	Logger    *zap.Logger
}

func NewStaffing(d Deps) *Staffing {
	if d.Authz == nil {
		d.Authz = AllowAll{}
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	return &Staffing{
		db:        d.Database,
		ledger:    d.Ledger,
		scheduler: d.Scheduler,
		checks:    d.Checks,
		authz:     d.Authz,
		catalog:   d.Catalog,
		emitter:   d.Emitter,
		clock:     d.Clock,
		logger:    d.Logger,
	}
}

// authorize asks the Authorizer whether the actor in ctx may perform action
func (s *Staffing) authorize(ctx context.Context, action Action, resource string) error {
	actor := ActorFrom(ctx)
	if s.authz.Can(ctx, actor, action, resource) {
		return nil
	}
	s.logger.Warn("Permission denied",
		zap.String("actor", actor),
		zap.String("action", string(action)),
		zap.String("resource", resource))
	return fmt.Errorf("%s on %s: %w", action, resource, model.ErrForbidden)
}
