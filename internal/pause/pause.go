// Package pause schedules the deferred re-toggle of a timed "pause blocking".
//
// Each activation registers exactly one callback. There is no cancellation:
// scheduling again while a callback is outstanding adds a second one, so a
// caller that re-pauses before the first timer fires will see two toggles.
// Outstanding lets callers dedupe if they need to.
package pause

import (
	"sync"
	"time"

	"github.com/lotas/trackerguard/internal/applog"
)

// AfterFunc matches time.AfterFunc's shape without the returned timer.
type AfterFunc func(d time.Duration, f func())

// Scheduler registers deferred callbacks.
type Scheduler struct {
	after AfterFunc

	mu          sync.Mutex
	outstanding int
}

// New returns a scheduler backed by time.AfterFunc. Callbacks run on the
// timer's goroutine; the panel's event loop is responsible for marshalling
// them back onto its own goroutine.
func New() *Scheduler {
	return NewWithAfterFunc(func(d time.Duration, f func()) { time.AfterFunc(d, f) })
}

// NewWithAfterFunc returns a scheduler using after to defer callbacks.
func NewWithAfterFunc(after AfterFunc) *Scheduler {
	return &Scheduler{after: after}
}

// Schedule runs fn once after d.
func (s *Scheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	s.outstanding++
	n := s.outstanding
	s.mu.Unlock()

	if n > 1 {
		applog.Info("pause.overlap", "outstanding", n)
	}
	applog.Info("pause.scheduled", "after", d)

	s.after(d, func() {
		s.mu.Lock()
		s.outstanding--
		s.mu.Unlock()
		fn()
	})
}

// Outstanding returns the number of callbacks not yet fired.
func (s *Scheduler) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding
}
