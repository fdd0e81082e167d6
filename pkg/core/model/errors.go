package model

import "errors"

// Domain errors. Callers match them with errors.Is; stores and services wrap
// them with context.
var (
	ErrEventNotFound              = errors.New("event not found")
	ErrRoleNotFound               = errors.New("job slot not found for event")
	ErrAssignmentNotFound         = errors.New("assignment not found")
	ErrNotificationNotFound       = errors.New("notification not found")
	ErrUserNotFound               = errors.New("user not found")
	ErrCapacityExhausted          = errors.New("no openings left for job")
	ErrCapacityInvariant          = errors.New("capacity invariant violated: openings would exceed slots")
	ErrInvalidTransition          = errors.New("invalid assignment status transition")
	ErrDuplicateAssignment        = errors.New("worker already holds a role in this event")
	ErrQueueWrite                 = errors.New("timer queue write failed")
	ErrEscalationTargetUnresolved = errors.New("no manager found to escalate to")
	ErrStaleReminder              = errors.New("reminder refers to a deleted event or assignment")
	ErrAlreadyConfirmed           = errors.New("attendance already confirmed")
	ErrForbidden                  = errors.New("not allowed")
	ErrEventFinished              = errors.New("event is finished")
	ErrInvalidInput               = errors.New("invalid input")
)

// Aliases matching the names used by the external operations.
var (
	ErrNoOpenings      = ErrCapacityExhausted
	ErrAlreadyAssigned = ErrDuplicateAssignment
)
