package model

import "time"

type EventStatus string

const (
	EventPlanned  EventStatus = "planned"
	EventStarted  EventStatus = "started"
	EventFinished EventStatus = "finished"
)

func (s EventStatus) IsValid() bool {
	return s == EventPlanned || s == EventStarted || s == EventFinished
}

// Event is a time-boxed engagement that workers are staffed onto
type Event struct {
	ID             string
	Name           string
	Description    string
	Location       string
	Start          time.Time
	End            time.Time
	OrganizationID string
	RecruiterID    string
	Status         EventStatus
	CreatedAt      time.Time
}

// JobSlot holds the capacity of one role within one event.
// Openings is only ever changed through the capacity ledger.
type JobSlot struct {
	ID       string
	EventID  string
	Title    string
	Slots    int
	Openings int
}

type AssignmentStatus string

const (
	StatusPending  AssignmentStatus = "PENDING"
	StatusApproved AssignmentStatus = "APPROVED"
	StatusBackup   AssignmentStatus = "BACKUP"
	StatusDone     AssignmentStatus = "DONE"
)

func (s AssignmentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusBackup, StatusDone:
		return true
	}
	return false
}

// HoldsCapacity reports whether an assignment in this status consumes an opening
func (s AssignmentStatus) HoldsCapacity() bool {
	return s == StatusApproved
}

// Assignment links one worker to one job slot of one event
type Assignment struct {
	ID                string
	EventID           string
	WorkerID          string
	JobID             string
	Status            AssignmentStatus
	Confirmed         bool
	ConfirmationCount int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type UserRole string

const (
	RoleWorker    UserRole = "worker"
	RoleHRManager UserRole = "hr_manager"
	RoleRecruiter UserRole = "recruiter"
	RoleAdmin     UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleWorker, RoleHRManager, RoleRecruiter, RoleAdmin:
		return true
	}
	return false
}

// User is anyone who can receive notifications: workers, managers, recruiters
type User struct {
	ID             string
	Name           string
	Email          string
	OrganizationID string
	Role           UserRole
}

type NotificationKind string

const (
	NotificationReminder   NotificationKind = "reminder"
	NotificationEscalation NotificationKind = "escalation"
	NotificationInfo       NotificationKind = "info"
)

// Notification is an inbox entry. Reminder notifications carry the worker and
// label of the reminder that produced them so re-dispatch can find them again.
type Notification struct {
	ID          string
	RecipientID string
	Message     string
	EventID     string
	WorkerID    string
	Label       string
	Kind        NotificationKind
	IsRead      bool
	Confirmed   bool
	Escalated   bool
	CreatedAt   time.Time
}

// Review is feedback left on a worker by a recruiter or manager
type Review struct {
	ID          string
	WorkerID    string
	CommenterID string
	Text        string
	CreatedAt   time.Time
}

// WorkerSummary is one row of the per-event staffing view
type WorkerSummary struct {
	AssignmentID      string
	WorkerID          string
	JobID             string
	JobTitle          string
	Status            AssignmentStatus
	Confirmed         bool
	ConfirmationCount int
}
