// Package clock abstracts "now" so reminder timing can be tested without sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current instant. Implementations always return UTC.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a manually driven clock for tests
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}
