// Package assignment decides what a status change of an assignment does to
// capacity and reminders. It holds no state; callers execute the returned plan
// inside one store transaction so a failing step rolls back the earlier ones.
package assignment

import (
	"fmt"

	"github.com/Majulish/cookie/pkg/core/model"
)

type OpKind int

const (
	OpReserve OpKind = iota + 1
	OpRelease
)

func (k OpKind) String() string {
	switch k {
	case OpReserve:
		return "reserve"
	case OpRelease:
		return "release"
	}
	return "unknown"
}

// CapacityOp is one ledger call, executed in order
type CapacityOp struct {
	Kind  OpKind
	JobID string
}

// Plan is the outcome of a requested transition
type Plan struct {
	From  model.AssignmentStatus
	To    model.AssignmentStatus
	JobID string
	Ops   []CapacityOp
	// NoOp is set when the assignment already has the requested status and job
	NoOp bool
	// ScheduleReminders is set whenever the assignment ends up APPROVED,
	// including re-issued approvals, so a failed reminder write can be retried
	ScheduleReminders bool
	// CancelReminders is set when the worker stops holding an approved slot
	CancelReminders bool
}

// PlanTransition computes the plan for moving a to status `to` on job `jobID`.
// An empty jobID keeps the current job.
func PlanTransition(a model.Assignment, to model.AssignmentStatus, jobID string) (Plan, error) {
	if !to.IsValid() {
		return Plan{}, fmt.Errorf("unknown status %q: %w", to, model.ErrInvalidTransition)
	}
	if jobID == "" {
		jobID = a.JobID
	}
	plan := Plan{From: a.Status, To: to, JobID: jobID}
	jobChanged := jobID != a.JobID

	if a.Status == model.StatusDone {
		if to == model.StatusDone && !jobChanged {
			plan.NoOp = true
			return plan, nil
		}
		return Plan{}, fmt.Errorf("%s -> %s: %w", a.Status, to, model.ErrInvalidTransition)
	}

	if to == a.Status && !jobChanged {
		plan.NoOp = true
		plan.ScheduleReminders = to == model.StatusApproved
		return plan, nil
	}
	if to == model.StatusDone && jobChanged {
		return Plan{}, fmt.Errorf("cannot change job while completing: %w", model.ErrInvalidTransition)
	}

	held := a.Status.HoldsCapacity()
	switch {
	case held && to.HoldsCapacity():
		// reassignment to another role while approved
		plan.Ops = []CapacityOp{{OpRelease, a.JobID}, {OpReserve, jobID}}
		plan.ScheduleReminders = true
	case held:
		plan.Ops = []CapacityOp{{OpRelease, a.JobID}}
		plan.CancelReminders = true
	case to.HoldsCapacity():
		plan.Ops = []CapacityOp{{OpReserve, jobID}}
		plan.ScheduleReminders = true
	}
	if to == model.StatusDone {
		plan.CancelReminders = true
	}
	return plan, nil
}
