package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/clock"
	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/db"
	"github.com/Majulish/cookie/pkg/messages"
	"github.com/Majulish/cookie/pkg/metrics"
	"github.com/Majulish/cookie/pkg/timerqueue"
)

// eventStart is the start of the event every test staffs
var eventStart = time.Date(2026, 7, 4, 18, 0, 0, 0, time.UTC)

type harness struct {
	store      *db.MemoryStore
	reminders  *timerqueue.MemoryQueue
	checkQueue *timerqueue.MemoryQueue
	clock      *clock.Fake
	metrics    *metrics.Metrics
	scheduler  *Scheduler
	checks     *EscalationChecks
	dispatcher *Dispatcher
	deliverer  *recordingDeliverer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, db.NewMemoryStore())
}

func newHarnessWith(t *testing.T, store *db.MemoryStore, wrap ...func(db.Database) db.Database) *harness {
	t.Helper()
	logger := zap.NewNop()
	catalog, err := messages.NewCatalog("en", logger)
	require.NoError(t, err)

	h := &harness{
		store:      store,
		reminders:  timerqueue.NewMemoryQueue(),
		checkQueue: timerqueue.NewMemoryQueue(),
		clock:      clock.NewFake(eventStart.Add(-48 * time.Hour)),
		metrics:    metrics.New(),
		deliverer:  &recordingDeliverer{},
	}
	var database db.Database = store
	for _, w := range wrap {
		database = w(database)
	}
	out := Outbound{Deliverer: h.deliverer}
	h.scheduler = NewScheduler(h.reminders, DefaultOffsets(), h.clock, logger, h.metrics)
	h.checks = NewEscalationChecks(database, h.checkQueue, h.clock, logger, h.metrics, catalog, out)
	h.dispatcher = NewDispatcher(database, h.reminders, h.checks, h.clock, logger, h.metrics, catalog, out)
	return h
}

// seed creates an organization with a manager, an event starting at
// eventStart and one approved worker per id
func (h *harness) seed(t *testing.T, withManager bool, workers ...string) {
	t.Helper()
	err := h.store.WithTx(context.Background(), func(tx db.Tx) error {
		ctx := context.Background()
		if withManager {
			if err := tx.InsertUser(ctx, &model.User{ID: "mgr-1", Name: "Maya", Email: "maya@example.com", OrganizationID: "org-1", Role: model.RoleHRManager}); err != nil {
				return err
			}
		}
		if err := tx.InsertEvent(ctx, &model.Event{ID: "evt-1", Name: "Summer Gala", Start: eventStart, End: eventStart.Add(4 * time.Hour), OrganizationID: "org-1", Status: model.EventPlanned}); err != nil {
			return err
		}
		if err := tx.InsertJobSlot(ctx, &model.JobSlot{ID: "job-1", EventID: "evt-1", Title: "Waiter", Slots: len(workers), Openings: 0}); err != nil {
			return err
		}
		for _, w := range workers {
			if err := tx.InsertUser(ctx, &model.User{ID: w, Name: "Worker " + w, Email: w + "@example.com", OrganizationID: "org-1", Role: model.RoleWorker}); err != nil {
				return err
			}
			if err := tx.InsertAssignment(ctx, &model.Assignment{ID: "asg-" + w, EventID: "evt-1", WorkerID: w, JobID: "job-1", Status: model.StatusApproved}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func (h *harness) notifications(t *testing.T, recipient string) []model.Notification {
	t.Helper()
	var out []model.Notification
	require.NoError(t, h.store.WithTx(context.Background(), func(tx db.Tx) error {
		var err error
		out, err = tx.ListNotifications(context.Background(), recipient)
		return err
	}))
	return out
}

func (h *harness) assignment(t *testing.T, id string) model.Assignment {
	t.Helper()
	var out *model.Assignment
	require.NoError(t, h.store.WithTx(context.Background(), func(tx db.Tx) error {
		var err error
		out, err = tx.GetAssignmentForUpdate(context.Background(), id)
		return err
	}))
	return *out
}

type recordingDeliverer struct {
	to []string
}

func (d *recordingDeliverer) Deliver(_ context.Context, to model.User, _, _ string) error {
	d.to = append(d.to, to.ID)
	return nil
}

// failingQueue rejects every write
type failingQueue struct {
	timerqueue.Queue
}

var errQueueDown = errors.New("queue down")

func (failingQueue) ReplacePair(context.Context, string, string, []timerqueue.Entry, time.Time) error {
	return errQueueDown
}

func (failingQueue) RemovePair(context.Context, string, string) error { return errQueueDown }

// brokenEventDB fails every read of one event
type brokenEventDB struct {
	db.Database
	eventID string
}

func (b brokenEventDB) WithTx(ctx context.Context, fn func(tx db.Tx) error) error {
	return b.Database.WithTx(ctx, func(tx db.Tx) error {
		return fn(brokenEventTx{Tx: tx, eventID: b.eventID})
	})
}

type brokenEventTx struct {
	db.Tx
	eventID string
}

func (b brokenEventTx) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == b.eventID {
		return nil, errors.New("disk on fire")
	}
	return b.Tx.GetEvent(ctx, id)
}
