package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/clock"
	"github.com/Majulish/cookie/pkg/core/capacity"
	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/core/reminders"
	"github.com/Majulish/cookie/pkg/db"
	"github.com/Majulish/cookie/pkg/events"
	"github.com/Majulish/cookie/pkg/messages"
	"github.com/Majulish/cookie/pkg/metrics"
	"github.com/Majulish/cookie/pkg/timerqueue"
)

var gala = time.Date(2026, 9, 12, 19, 0, 0, 0, time.UTC)

type testEnv struct {
	staffing   *Staffing
	store      *db.MemoryStore
	reminders  *toggleQueue
	checkQueue *timerqueue.MemoryQueue
	dispatcher *reminders.Dispatcher
	checks     *reminders.EscalationChecks
	clock      *clock.Fake
	published  *countingPublisher
}

func newTestEnv(t *testing.T, authz Authorizer) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.New()
	catalog, err := messages.NewCatalog("en", logger)
	require.NoError(t, err)

	env := &testEnv{
		store:      db.NewMemoryStore(),
		reminders:  &toggleQueue{MemoryQueue: timerqueue.NewMemoryQueue()},
		checkQueue: timerqueue.NewMemoryQueue(),
		clock:      clock.NewFake(gala.Add(-72 * time.Hour)),
		published:  &countingPublisher{},
	}
	emitter := events.NewEmitter(env.published, logger)
	out := reminders.Outbound{Emitter: emitter}

	scheduler := reminders.NewScheduler(env.reminders, reminders.DefaultOffsets(), env.clock, logger, m)
	env.checks = reminders.NewEscalationChecks(env.store, env.checkQueue, env.clock, logger, m, catalog, out)
	env.dispatcher = reminders.NewDispatcher(env.store, env.reminders, env.checks, env.clock, logger, m, catalog, out)
	env.staffing = NewStaffing(Deps{
		Database:  env.store,
		Ledger:    capacity.NewLedger(logger, m),
		Scheduler: scheduler,
		Checks:    env.checks,
		Authz:     authz,
		Catalog:   catalog,
		Emitter:   emitter,
		Clock:     env.clock,
		Logger:    logger,
	})
	return env
}

// createGala makes an event at gala with one job per slot count given
func (e *testEnv) createGala(t *testing.T, slots ...int) (*model.Event, []model.JobSlot) {
	t.Helper()
	in := EventInput{
		Name:           "Autumn Gala",
		Location:       "Town Hall",
		Start:          gala,
		End:            gala.Add(5 * time.Hour),
		OrganizationID: "org-1",
	}
	for i, n := range slots {
		in.Jobs = append(in.Jobs, JobSlotInput{Title: []string{"Waiter", "Bartender", "Host"}[i%3], Slots: n})
	}
	res, err := e.staffing.CreateEvent(context.Background(), in)
	require.NoError(t, err)
	return res.Event, res.Jobs
}

func (e *testEnv) registerManager(t *testing.T) {
	t.Helper()
	_, err := e.staffing.RegisterUser(context.Background(), model.User{ID: "mgr-1", Name: "Maya", OrganizationID: "org-1", Role: model.RoleHRManager})
	require.NoError(t, err)
}

func (e *testEnv) slot(t *testing.T, id string) model.JobSlot {
	t.Helper()
	var out *model.JobSlot
	require.NoError(t, e.store.WithTx(context.Background(), func(tx db.Tx) error {
		var err error
		out, err = tx.GetJobSlot(context.Background(), id)
		return err
	}))
	return *out
}

func (e *testEnv) assignment(t *testing.T, id string) model.Assignment {
	t.Helper()
	var out *model.Assignment
	require.NoError(t, e.store.WithTx(context.Background(), func(tx db.Tx) error {
		var err error
		out, err = tx.GetAssignmentForUpdate(context.Background(), id)
		return err
	}))
	return *out
}

// toggleQueue fails every write while down is set
type toggleQueue struct {
	*timerqueue.MemoryQueue
	down atomic.Bool
}

var errRedisDown = errors.New("redis down")

func (q *toggleQueue) ReplacePair(ctx context.Context, eventID, workerID string, entries []timerqueue.Entry, keepDue time.Time) error {
	if q.down.Load() {
		return errRedisDown
	}
	return q.MemoryQueue.ReplacePair(ctx, eventID, workerID, entries, keepDue)
}

func (q *toggleQueue) RemovePair(ctx context.Context, eventID, workerID string) error {
	if q.down.Load() {
		return errRedisDown
	}
	return q.MemoryQueue.RemovePair(ctx, eventID, workerID)
}

type countingPublisher struct {
	n atomic.Int64
}

func (p *countingPublisher) Publish(context.Context, []byte, []byte) error {
	p.n.Add(1)
	return nil
}
