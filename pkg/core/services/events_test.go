package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/db"
)

func TestCreateEvent_Validation(t *testing.T) {
	valid := EventInput{Name: "Gala", Start: gala, End: gala.Add(time.Hour), OrganizationID: "org-1"}

	tests := []struct {
		name   string
		mutate func(in *EventInput)
	}{
		{name: "missing name", mutate: func(in *EventInput) { in.Name = " " }},
		{name: "missing start", mutate: func(in *EventInput) { in.Start = time.Time{} }},
		{name: "ends before start", mutate: func(in *EventInput) { in.End = gala.Add(-time.Hour) }},
		{name: "missing organization", mutate: func(in *EventInput) { in.OrganizationID = "" }},
		{name: "job without slots", mutate: func(in *EventInput) { in.Jobs = []JobSlotInput{{Title: "Waiter"}} }},
		{name: "job without title", mutate: func(in *EventInput) { in.Jobs = []JobSlotInput{{Slots: 2}} }},
	}

	env := newTestEnv(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := env.staffing.CreateEvent(context.Background(), in)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
		})
	}
}

func TestCreateEvent_OpensJobSlots(t *testing.T) {
	env := newTestEnv(t, nil)
	event, jobs := env.createGala(t, 3, 1)

	assert.Equal(t, model.EventPlanned, event.Status)
	assert.Equal(t, gala, event.Start)
	require.Len(t, jobs, 2)
	assert.Equal(t, 3, env.slot(t, jobs[0].ID).Openings)
	assert.Equal(t, 3, env.slot(t, jobs[0].ID).Slots)
	assert.Equal(t, 1, env.slot(t, jobs[1].ID).Openings)
}

func TestAddJobSlot(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, _ := env.createGala(t)

	slot, err := env.staffing.AddJobSlot(ctx, event.ID, "Cloakroom", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, env.slot(t, slot.ID).Openings)

	_, err = env.staffing.AddJobSlot(ctx, event.ID, "Cloakroom", 0)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = env.staffing.AddJobSlot(ctx, "nope", "Cloakroom", 1)
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestSetEventStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 1)
	id, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	require.NoError(t, err)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved))
	require.Equal(t, 2, env.reminders.Len())

	require.NoError(t, env.staffing.SetEventStatus(ctx, event.ID, model.EventStarted))
	assert.Equal(t, 2, env.reminders.Len())

	require.NoError(t, env.staffing.SetEventStatus(ctx, event.ID, model.EventFinished))
	assert.Equal(t, 0, env.reminders.Len())

	err = env.staffing.SetEventStatus(ctx, event.ID, model.EventPlanned)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	err = env.staffing.SetEventStatus(ctx, event.ID, model.EventStatus("cancelled"))
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = env.staffing.AddJobSlot(ctx, event.ID, "Late", 1)
	assert.ErrorIs(t, err, model.ErrEventFinished)
}

func TestDeleteEvent_CancelsEverything(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerManager(t)
	ctx := context.Background()
	event, jobs := env.createGala(t, 2)
	keep, keepJobs := env.createGala(t, 1)

	for _, w := range []string{"w-1", "w-2"} {
		id, err := env.staffing.ApplyToEvent(ctx, event.ID, w, jobs[0].ID)
		require.NoError(t, err)
		require.NoError(t, env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved))
	}
	kept, err := env.staffing.ApplyToEvent(ctx, keep.ID, "w-1", keepJobs[0].ID)
	require.NoError(t, err)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, kept, model.StatusApproved))

	// The day-before reminders fire and arm their checks
	env.clock.Set(gala.Add(-27 * time.Hour))
	n, err := env.dispatcher.Tick(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, env.checkQueue.Len())

	require.NoError(t, env.staffing.DeleteEvent(ctx, event.ID))

	assert.Equal(t, 1, env.reminders.Len())
	assert.Equal(t, 1, env.checkQueue.Len())
	require.NoError(t, env.store.WithTx(ctx, func(tx db.Tx) error {
		_, err := tx.GetJobSlot(ctx, jobs[0].ID)
		assert.ErrorIs(t, err, model.ErrRoleNotFound)
		as, err := tx.ListAssignmentsByEvent(ctx, event.ID)
		assert.Empty(t, as)
		return err
	}))

	// Nothing fires later for the deleted event
	env.clock.Set(gala)
	_, err = env.checks.Tick(ctx, 100)
	require.NoError(t, err)
	inbox, err := env.staffing.ListNotifications(ctx, "mgr-1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, keep.ID, inbox[0].EventID)

	err = env.staffing.DeleteEvent(ctx, event.ID)
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestRegisterUser(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	u, err := env.staffing.RegisterUser(ctx, model.User{Name: "Ana", OrganizationID: "org-1", Role: model.RoleWorker})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = env.staffing.RegisterUser(ctx, model.User{Name: "Bo", Role: model.UserRole("owner")})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestGetAndListEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, _ := env.createGala(t, 2, 1)
	_, err := env.staffing.CreateEvent(ctx, EventInput{Name: "Breakfast", Start: gala.Add(-24 * time.Hour), OrganizationID: "org-1"})
	require.NoError(t, err)
	_, err = env.staffing.CreateEvent(ctx, EventInput{Name: "Elsewhere", Start: gala, OrganizationID: "org-2"})
	require.NoError(t, err)

	res, err := env.staffing.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Autumn Gala", res.Event.Name)
	require.Len(t, res.Jobs, 2)
	assert.Equal(t, "Waiter", res.Jobs[0].Title)

	_, err = env.staffing.GetEvent(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrEventNotFound)

	list, err := env.staffing.ListEvents(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Breakfast", list[0].Name)
	assert.Equal(t, event.ID, list[1].ID)

	all, err := env.staffing.ListEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateEvent_ReschedulesApprovedWorkers(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 2)

	approved, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	require.NoError(t, err)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, approved, model.StatusApproved))
	_, err = env.staffing.ApplyToEvent(ctx, event.ID, "w-2", jobs[0].ID)
	require.NoError(t, err)

	location := "Riverside Pavilion"
	moved := gala.Add(24 * time.Hour)
	updated, err := env.staffing.UpdateEvent(ctx, event.ID, EventUpdate{Location: &location, Start: &moved})
	require.NoError(t, err)
	assert.Equal(t, moved, updated.Start)
	assert.Equal(t, location, updated.Location)
	assert.Equal(t, "Autumn Gala", updated.Name)

	pending, err := env.reminders.Pending(ctx, event.ID, "w-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, moved.Add(-27*time.Hour), pending[0].FireAt)
	assert.Equal(t, moved.Add(-time.Hour), pending[1].FireAt)

	pending, err = env.reminders.Pending(ctx, event.ID, "w-2")
	require.NoError(t, err)
	assert.Empty(t, pending)

	res, err := env.staffing.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, moved, res.Event.Start)
}

func TestUpdateEvent_Rejects(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	event, jobs := env.createGala(t, 1)
	id, err := env.staffing.ApplyToEvent(ctx, event.ID, "w-1", jobs[0].ID)
	require.NoError(t, err)
	require.NoError(t, env.staffing.SetAssignmentStatus(ctx, id, model.StatusApproved))

	blank := " "
	_, err = env.staffing.UpdateEvent(ctx, event.ID, EventUpdate{Name: &blank})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	early := gala.Add(-time.Hour)
	_, err = env.staffing.UpdateEvent(ctx, event.ID, EventUpdate{End: &early})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = env.staffing.UpdateEvent(ctx, "nope", EventUpdate{Name: &blank})
	assert.ErrorIs(t, err, model.ErrEventNotFound)

	// The event is written even when the reminders cannot be
	env.reminders.down.Store(true)
	later := gala.Add(2 * time.Hour)
	_, err = env.staffing.UpdateEvent(ctx, event.ID, EventUpdate{Start: &later})
	assert.ErrorIs(t, err, model.ErrQueueWrite)
	res, err := env.staffing.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, later, res.Event.Start)
	env.reminders.down.Store(false)

	require.NoError(t, env.staffing.SetEventStatus(ctx, event.ID, model.EventFinished))
	name := "Renamed"
	_, err = env.staffing.UpdateEvent(ctx, event.ID, EventUpdate{Name: &name})
	assert.ErrorIs(t, err, model.ErrEventFinished)
}
