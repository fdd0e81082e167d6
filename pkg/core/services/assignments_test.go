package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Majulish/cookie/pkg/core/model"
)

func TestApplyToEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 2)
	other, otherJobs := env.createGala(t, 1)

	id, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	require.NoError(t, err)
	a := env.assignment(t, id)
	assert.Equal(t, model.StatusPending, a.Status)
	assert.Equal(t, 2, env.slot(t, jobs[0].ID).Openings)

	tests := []struct {
		name    string
		eventID string
		worker  string
		jobID   string
		want    error
	}{
		{name: "second application by the same worker", eventID: event.ID, worker: "w-1", jobID: jobs[0].ID, want: model.ErrAlreadyAssigned},
		{name: "unknown event", eventID: "nope", worker: "w-2", jobID: jobs[0].ID, want: model.ErrEventNotFound},
		{name: "unknown job", eventID: event.ID, worker: "w-2", jobID: "nope", want: model.ErrRoleNotFound},
		{name: "job of another event", eventID: event.ID, worker: "w-2", jobID: otherJobs[0].ID, want: model.ErrRoleNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.staffing.ApplyToEvent(ctx, tt.eventID, tt.worker, tt.jobID)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, env.staffing.SetEventStatus(ctx, other.ID, model.EventFinished))
	_, err = env.staffing.ApplyToEvent(ctx, other.ID, "w-2", otherJobs[0].ID)
	assert.ErrorIs(t, err, model.ErrEventFinished)
}

func TestSetAssignmentStatus_ApproveReservesAndSchedules(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 2)

	id, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	require.NoError(t, err)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved))

	assert.Equal(t, model.StatusApproved, env.assignment(t, id).Status)
	assert.Equal(t, 1, env.slot(t, jobs[0].ID).Openings)

	pending, err := env.reminders.Pending(ctx, event.ID, "w-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, gala.Add(-27*time.Hour), pending[0].FireAt)
	assert.Equal(t, gala.Add(-time.Hour), pending[1].FireAt)

	inbox, err := env.staffing.ListNotifications(ctx, "w-1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotificationInfo, inbox[0].Kind)
	assert.Equal(t, "You are approved as Waiter for Autumn Gala.", inbox[0].Message)

	// Re-issued approval neither reserves again nor duplicates reminders
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved))
	assert.Equal(t, 1, env.slot(t, jobs[0].ID).Openings)
	assert.Equal(t, 2, env.reminders.Len())
	inbox, err = env.staffing.ListNotifications(ctx, "w-1")
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

func TestSetAssignmentStatus_NoOpeningsLeavesAssignmentPending(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 1)

	first, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	require.NoError(t, err)
	second, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-2", jobs[0].ID)
	require.NoError(t, err)

	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, first, model.StatusApproved))
	err = env.staffing.SetAssignmentStatus(ctx, second, model.StatusApproved)
	assert.ErrorIs(t, err, model.ErrNoOpenings)

	assert.Equal(t, model.StatusPending, env.assignment(t, second).Status)
	assert.Equal(t, 0, env.slot(t, jobs[0].ID).Openings)
	pending, err := env.reminders.Pending(ctx, event.ID, "w-2")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSetAssignmentStatus_ConcurrentApprovals(t *testing.T) {
	tests := []struct {
		name    string
		slots   int
		workers int
	}{
		{name: "one slot", slots: 1, workers: 10},
		{name: "three slots", slots: 3, workers: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			ctx := context.Background()
			event, jobs := env.createGala(t, tt.slots)

			ids := make([]string, tt.workers)
			for i := range ids {
				id, err := env.staffing.ApplyToEvent(ctx, event.ID, fmt.Sprintf("w-%d", i), jobs[0].ID)
				require.NoError(t, err)
				ids[i] = id
			}

			var approved, rejected atomic.Int64
			var wg sync.WaitGroup
			for _, id := range ids {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					err := env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved)
					switch {
					case err == nil:
						approved.Add(1)
					case assert.ErrorIs(t, err, model.ErrNoOpenings):
						rejected.Add(1)
					}
				}(id)
			}
			wg.Wait()

			assert.Equal(t, int64(tt.slots), approved.Load())
			assert.Equal(t, int64(tt.workers-tt.slots), rejected.Load())
			assert.Equal(t, 0, env.slot(t, jobs[0].ID).Openings)
		})
	}
}

func TestSetAssignmentStatus_ReleasesCapacity(t *testing.T) {
	tests := []struct {
		name string
		to   model.AssignmentStatus
	}{
		{name: "to backup", to: model.StatusBackup},
		{name: "back to pending", to: model.StatusPending},
		{name: "to done", to: model.StatusDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			ctx := context.Background()
			event, jobs := env.createGala(t, 1)
			id, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
			require.NoError(t, err)
			require.NoError(t, env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved))
			_, err = env.checks.Arm(ctx, model.Notification{ID: "n-1", EventID: event.ID, WorkerID: "w-1", Label: "27h_before"}, time.Hour, 0)
			require.NoError(t, err)

			require.NoError(t, env.staffing.SetAssignmentStatus(ctx, id, tt.to))

			assert.Equal(t, tt.to, env.assignment(t, id).Status)
			assert.Equal(t, 1, env.slot(t, jobs[0].ID).Openings)
			assert.Equal(t, 0, env.reminders.Len())
			assert.Equal(t, 0, env.checkQueue.Len())
		})
	}
}

func TestSetAssignmentStatus_DoneIsTerminal(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 1)
	id, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	require.NoError(t, err)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, id, model.StatusDone))

	err = env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.Equal(t, 1, env.slot(t, jobs[0].ID).Openings)

	err = env.staffing.SetAssignmentStatus(ctx, "missing", model.StatusApproved)
	assert.ErrorIs(t, err, model.ErrAssignmentNotFound)
}

func TestChangeAssignment_RoleSwap(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 1, 1)
	waiter, bartender := jobs[0].ID, jobs[1].ID

	w1, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", waiter)
	require.NoError(t, err)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, w1, model.StatusApproved))

	require.NoError(t, env.staffing.ChangeAssignment(ctx, w1, model.StatusApproved, bartender))
	assert.Equal(t, bartender, env.assignment(t, w1).JobID)
	assert.Equal(t, 1, env.slot(t, waiter).Openings)
	assert.Equal(t, 0, env.slot(t, bartender).Openings)

	// Bartender is now full: moving w-2 there fails and w-2 keeps the waiter slot
	w2, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-2", waiter)
	require.NoError(t, err)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, w2, model.StatusApproved))

	err = env.staffing.ChangeAssignment(ctx, w2, model.StatusApproved, bartender)
	assert.ErrorIs(t, err, model.ErrNoOpenings)

	a := env.assignment(t, w2)
	assert.Equal(t, waiter, a.JobID)
	assert.Equal(t, model.StatusApproved, a.Status)
	assert.Equal(t, 0, env.slot(t, waiter).Openings)
	assert.Equal(t, 0, env.slot(t, bartender).Openings)
}

func TestSetAssignmentStatus_QueueFailureIsRetryable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 1)
	id, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	require.NoError(t, err)

	env.reminders.down.Store(true)
	err = env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved)
	assert.ErrorIs(t, err, model.ErrQueueWrite)
	assert.Equal(t, model.StatusApproved, env.assignment(t, id).Status)
	assert.Equal(t, 0, env.reminders.Len())

	env.reminders.down.Store(false)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved))
	assert.Equal(t, 2, env.reminders.Len())
	assert.Equal(t, 0, env.slot(t, jobs[0].ID).Openings)
}

func TestRemoveAssignment(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 1)
	id, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	require.NoError(t, err)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved))

	require.NoError(t, env.staffing.RemoveAssignment(ctx, id))
	assert.Equal(t, 1, env.slot(t, jobs[0].ID).Openings)
	assert.Equal(t, 0, env.reminders.Len())

	err = env.staffing.RemoveAssignment(ctx, id)
	assert.ErrorIs(t, err, model.ErrAssignmentNotFound)

	// The worker may apply again once removed
	_, err = env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	assert.NoError(t, err)
}

func TestGetWorkersForEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 2, 1)

	a1, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	require.NoError(t, err)
	_, err = env.staffing.ApplyToEvent(ctx, event.ID, "w-2", jobs[1].ID)
	require.NoError(t, err)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, a1, model.StatusApproved))

	workers, err := env.staffing.GetWorkersForEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, "w-1", workers[0].WorkerID)
	assert.Equal(t, "Waiter", workers[0].JobTitle)
	assert.Equal(t, model.StatusApproved, workers[0].Status)
	assert.Equal(t, "w-2", workers[1].WorkerID)
	assert.Equal(t, "Bartender", workers[1].JobTitle)
	assert.Equal(t, model.StatusPending, workers[1].Status)
	assert.Zero(t, workers[1].ConfirmationCount)

	_, err = env.staffing.GetWorkersForEvent(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}
