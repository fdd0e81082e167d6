package db

import (
	"context"

	"github.com/Majulish/cookie/pkg/core/model"
)

// EventStore defines the event and job slot operations
type EventStore interface {
	InsertEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// ListEvents returns the events of an organization ordered by start time.
	// An empty organizationID lists every event.
	ListEvents(ctx context.Context, organizationID string) ([]model.Event, error)
	// UpdateEvent rewrites the descriptive fields and times of an event.
	// Status, organization and recruiter are left alone.
	UpdateEvent(ctx context.Context, event *model.Event) error
	UpdateEventStatus(ctx context.Context, id string, status model.EventStatus) error
	// DeleteEvent removes the event together with its job slots and assignments
	DeleteEvent(ctx context.Context, id string) error

	InsertJobSlot(ctx context.Context, slot *model.JobSlot) error
	GetJobSlot(ctx context.Context, id string) (*model.JobSlot, error)
	ListJobSlots(ctx context.Context, eventID string) ([]model.JobSlot, error)
}

// CapacityCounter is the atomic counter behind the capacity ledger.
// DecrementOpenings reports false when no openings are left; IncrementOpenings
// reports false when openings already equal slots. Both return
// model.ErrRoleNotFound for an unknown job slot.
type CapacityCounter interface {
	DecrementOpenings(ctx context.Context, jobID string) (bool, error)
	IncrementOpenings(ctx context.Context, jobID string) (bool, error)
}

// AssignmentStore defines the assignment operations
type AssignmentStore interface {
	// InsertAssignment fails with model.ErrDuplicateAssignment when the worker
	// already has an assignment for the event
	InsertAssignment(ctx context.Context, assignment *model.Assignment) error
	// GetAssignmentForUpdate reads the row and locks it until the transaction ends
	GetAssignmentForUpdate(ctx context.Context, id string) (*model.Assignment, error)
	GetAssignmentByPair(ctx context.Context, eventID, workerID string) (*model.Assignment, error)
	UpdateAssignment(ctx context.Context, assignment *model.Assignment) error
	DeleteAssignment(ctx context.Context, id string) error
	ListAssignmentsByEvent(ctx context.Context, eventID string) ([]model.Assignment, error)
}

// UserStore defines the user directory operations
type UserStore interface {
	InsertUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	// FindManager returns the HR manager of an organization
	FindManager(ctx context.Context, organizationID string) (*model.User, error)
}

// NotificationStore defines the inbox operations
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *model.Notification) error
	GetNotificationForUpdate(ctx context.Context, id string) (*model.Notification, error)
	UpdateNotification(ctx context.Context, n *model.Notification) error
	// FindUnconfirmed returns the outstanding reminder notification for the
	// (event, worker, label) triple, or model.ErrNotificationNotFound
	FindUnconfirmed(ctx context.Context, eventID, workerID, label string) (*model.Notification, error)
	ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error)
	MarkNotificationsRead(ctx context.Context, ids []string, recipientID string) (int, error)
}

// ReviewStore defines the worker review operations
type ReviewStore interface {
	InsertReview(ctx context.Context, review *model.Review) error
	// ListReviews returns the reviews of a worker, oldest first
	ListReviews(ctx context.Context, workerID string) ([]model.Review, error)
}

// Tx is the full set of operations available inside a transaction
type Tx interface {
	EventStore
	CapacityCounter
	AssignmentStore
	UserStore
	NotificationStore
	ReviewStore
}

// Database runs transactional read-modify-write units of work.
// Both the in-memory MemoryStore and postgres.DB implement this interface.
// If fn returns an error every change made through tx is discarded.
type Database interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close()
}
