package clock

import (
	"sync"
	"time"
)

// Clock reports the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

// Now calls the wrapped function.
func (fn Func) Now() time.Time {
	return fn()
}

// System returns a Clock backed by time.Now.
func System() Clock {
	return Func(time.Now)
}

// Manual is a Clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock positioned at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (manual *Manual) Now() time.Time {
	manual.mu.Lock()
	defer manual.mu.Unlock()
	return manual.now
}

// Set moves the clock to an absolute instant, backwards included.
func (manual *Manual) Set(now time.Time) {
	manual.mu.Lock()
	manual.now = now
	manual.mu.Unlock()
}

// Advance moves the clock forward by delta.
func (manual *Manual) Advance(delta time.Duration) time.Time {
	manual.mu.Lock()
	defer manual.mu.Unlock()
	manual.now = manual.now.Add(delta)
	return manual.now
}
