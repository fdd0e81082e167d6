package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Majulish/cookie/pkg/core/model"
)

var _ Database = (*MemoryStore)(nil)

// MemoryStore is an in-process Database. Transactions are serialized by a
// single lock and applied to a copy of the state, which is swapped in on
// success, so a failed unit of work leaves nothing behind.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore creates an empty in-memory database
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) Close() {}

type memState struct {
	seq           int64
	order         map[string]int64
	events        map[string]model.Event
	jobSlots      map[string]model.JobSlot
	assignments   map[string]model.Assignment
	users         map[string]model.User
	notifications map[string]model.Notification
	reviews       map[string]model.Review
}

func newMemState() *memState {
	return &memState{
		order:         make(map[string]int64),
		events:        make(map[string]model.Event),
		jobSlots:      make(map[string]model.JobSlot),
		assignments:   make(map[string]model.Assignment),
		users:         make(map[string]model.User),
		notifications: make(map[string]model.Notification),
		reviews:       make(map[string]model.Review),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	c.seq = s.seq
	for k, v := range s.order {
		c.order[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.jobSlots {
		c.jobSlots[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	return c
}

func (s *memState) track(id string) {
	s.seq++
	s.order[id] = s.seq
}

// Events

func (s *memState) InsertEvent(_ context.Context, event *model.Event) error {
	if _, exists := s.events[event.ID]; exists {
		return fmt.Errorf("event %s already exists", event.ID)
	}
	s.events[event.ID] = *event
	s.track(event.ID)
	return nil
}

func (s *memState) GetEvent(_ context.Context, id string) (*model.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return &e, nil
}

func (s *memState) ListEvents(_ context.Context, organizationID string) ([]model.Event, error) {
	var out []model.Event
	for _, e := range s.events {
		if organizationID == "" || e.OrganizationID == organizationID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].Start.Equal(out[k].Start) {
			return out[i].Start.Before(out[k].Start)
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

func (s *memState) UpdateEvent(_ context.Context, event *model.Event) error {
	e, ok := s.events[event.ID]
	if !ok {
		return model.ErrEventNotFound
	}
	e.Name = event.Name
	e.Description = event.Description
	e.Location = event.Location
	e.Start = event.Start
	e.End = event.End
	s.events[event.ID] = e
	return nil
}

func (s *memState) UpdateEventStatus(_ context.Context, id string, status model.EventStatus) error {
	e, ok := s.events[id]
	if !ok {
		return model.ErrEventNotFound
	}
	e.Status = status
	s.events[id] = e
	return nil
}

func (s *memState) DeleteEvent(_ context.Context, id string) error {
	if _, ok := s.events[id]; !ok {
		return model.ErrEventNotFound
	}
	delete(s.events, id)
	for aid, a := range s.assignments {
		if a.EventID == id {
			delete(s.assignments, aid)
		}
	}
	for jid, j := range s.jobSlots {
		if j.EventID == id {
			delete(s.jobSlots, jid)
		}
	}
	return nil
}

func (s *memState) InsertJobSlot(_ context.Context, slot *model.JobSlot) error {
	if _, ok := s.events[slot.EventID]; !ok {
		return model.ErrEventNotFound
	}
	s.jobSlots[slot.ID] = *slot
	s.track(slot.ID)
	return nil
}

func (s *memState) GetJobSlot(_ context.Context, id string) (*model.JobSlot, error) {
	j, ok := s.jobSlots[id]
	if !ok {
		return nil, model.ErrRoleNotFound
	}
	return &j, nil
}

func (s *memState) ListJobSlots(_ context.Context, eventID string) ([]model.JobSlot, error) {
	var out []model.JobSlot
	for _, j := range s.jobSlots {
		if j.EventID == eventID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return s.order[out[i].ID] < s.order[out[k].ID] })
	return out, nil
}

// Capacity

func (s *memState) DecrementOpenings(_ context.Context, jobID string) (bool, error) {
	j, ok := s.jobSlots[jobID]
	if !ok {
		return false, model.ErrRoleNotFound
	}
	if j.Openings <= 0 {
		return false, nil
	}
	j.Openings--
	s.jobSlots[jobID] = j
	return true, nil
}

func (s *memState) IncrementOpenings(_ context.Context, jobID string) (bool, error) {
	j, ok := s.jobSlots[jobID]
	if !ok {
		return false, model.ErrRoleNotFound
	}
	if j.Openings >= j.Slots {
		return false, nil
	}
	j.Openings++
	s.jobSlots[jobID] = j
	return true, nil
}

// Assignments

func (s *memState) InsertAssignment(_ context.Context, a *model.Assignment) error {
	for _, existing := range s.assignments {
		if existing.EventID == a.EventID && existing.WorkerID == a.WorkerID {
			return model.ErrDuplicateAssignment
		}
	}
	s.assignments[a.ID] = *a
	s.track(a.ID)
	return nil
}

func (s *memState) GetAssignmentForUpdate(_ context.Context, id string) (*model.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, model.ErrAssignmentNotFound
	}
	return &a, nil
}

func (s *memState) GetAssignmentByPair(_ context.Context, eventID, workerID string) (*model.Assignment, error) {
	for _, a := range s.assignments {
		if a.EventID == eventID && a.WorkerID == workerID {
			return &a, nil
		}
	}
	return nil, model.ErrAssignmentNotFound
}

func (s *memState) UpdateAssignment(_ context.Context, a *model.Assignment) error {
	if _, ok := s.assignments[a.ID]; !ok {
		return model.ErrAssignmentNotFound
	}
	s.assignments[a.ID] = *a
	return nil
}

func (s *memState) DeleteAssignment(_ context.Context, id string) error {
	if _, ok := s.assignments[id]; !ok {
		return model.ErrAssignmentNotFound
	}
	delete(s.assignments, id)
	return nil
}

func (s *memState) ListAssignmentsByEvent(_ context.Context, eventID string) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, a := range s.assignments {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, k int) bool { return s.order[out[i].ID] < s.order[out[k].ID] })
	return out, nil
}

// Users

func (s *memState) InsertUser(_ context.Context, u *model.User) error {
	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("user %s already exists: %w", u.ID, model.ErrInvalidInput)
	}
	s.users[u.ID] = *u
	s.track(u.ID)
	return nil
}

func (s *memState) GetUser(_ context.Context, id string) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

func (s *memState) FindManager(_ context.Context, organizationID string) (*model.User, error) {
	var found *model.User
	for _, u := range s.users {
		if u.OrganizationID != organizationID || u.Role != model.RoleHRManager {
			continue
		}
		if found == nil || s.order[u.ID] < s.order[found.ID] {
			u := u
			found = &u
		}
	}
	if found == nil {
		return nil, model.ErrUserNotFound
	}
	return found, nil
}

// Notifications

func (s *memState) InsertNotification(_ context.Context, n *model.Notification) error {
	s.notifications[n.ID] = *n
	s.track(n.ID)
	return nil
}

func (s *memState) GetNotificationForUpdate(_ context.Context, id string) (*model.Notification, error) {
	n, ok := s.notifications[id]
	if !ok {
		return nil, model.ErrNotificationNotFound
	}
	return &n, nil
}

func (s *memState) UpdateNotification(_ context.Context, n *model.Notification) error {
	if _, ok := s.notifications[n.ID]; !ok {
		return model.ErrNotificationNotFound
	}
	s.notifications[n.ID] = *n
	return nil
}

func (s *memState) FindUnconfirmed(_ context.Context, eventID, workerID, label string) (*model.Notification, error) {
	for _, n := range s.notifications {
		if n.Kind == model.NotificationReminder && n.EventID == eventID && n.WorkerID == workerID &&
			n.Label == label && !n.Confirmed && !n.Escalated {
			return &n, nil
		}
	}
	return nil, model.ErrNotificationNotFound
}

func (s *memState) ListNotifications(_ context.Context, recipientID string) ([]model.Notification, error) {
	var out []model.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, k int) bool { return s.order[out[i].ID] < s.order[out[k].ID] })
	return out, nil
}

func (s *memState) MarkNotificationsRead(_ context.Context, ids []string, recipientID string) (int, error) {
	updated := 0
	for _, id := range ids {
		n, ok := s.notifications[id]
		if !ok || n.RecipientID != recipientID || n.IsRead {
			continue
		}
		n.IsRead = true
		s.notifications[id] = n
		updated++
	}
	return updated, nil
}

// Reviews

func (s *memState) InsertReview(_ context.Context, r *model.Review) error {
	if _, ok := s.users[r.WorkerID]; !ok {
		return model.ErrUserNotFound
	}
	s.reviews[r.ID] = *r
	s.track(r.ID)
	return nil
}

func (s *memState) ListReviews(_ context.Context, workerID string) ([]model.Review, error) {
	var out []model.Review
	for _, r := range s.reviews {
		if r.WorkerID == workerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, k int) bool { return s.order[out[i].ID] < s.order[out[k].ID] })
	return out, nil
}
