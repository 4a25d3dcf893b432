package sheets

import (
	"sync"
	"time"
)

// Saver coalesces rapid successive edits into a single write: every Arm
// restarts the quiet-period timer, and only when the timer fires does the
// save function run. The function must read current state at fire time, not a
// snapshot captured when the timer was armed.
type Saver struct {
	mu     sync.Mutex
	delay  time.Duration
	save   func()
	timer  *time.Timer
	gen    uint64
	closed bool
}

// NewSaver creates a debounced saver with the given quiet period
func NewSaver(delay time.Duration, save func()) *Saver {
	return &Saver{
		delay: delay,
		save:  save,
	}
}

// Arm restarts the quiet-period timer. Called after every mutation.
func (s *Saver) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Saver) fire(gen uint64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	// An Arm that slipped in between this timer firing and the lock being
	// taken has moved the generation on; the newer timer owns s.timer then
	// and must stay scheduled.
	if s.gen == gen {
		s.timer = nil
	}
	s.mu.Unlock()

	// Runs outside the lock: the save function takes its own snapshot of
	// current state, and a fired write is allowed to complete even if the
	// saver is closed while it is in flight
	s.save()
}

// Cancel stops a pending timer without saving. A write already in flight is
// fire-and-forget and completes on its own.
func (s *Saver) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Close cancels any pending timer and prevents all future arms
func (s *Saver) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Pending reports whether a save is currently scheduled
func (s *Saver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
