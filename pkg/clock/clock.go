// Package clock abstracts wall-clock access so that expiry logic can be
// tested without sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time. Values returned by Now carry Go's
// monotonic reading, so elapsed-time comparisons within a process never
// move backward.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the real wall clock.
func System() Clock {
	return systemClock{}
}

// FixedClock is a clock frozen at a settable instant. Only useful in tests.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// Fixed returns a clock frozen at t.
func Fixed(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
