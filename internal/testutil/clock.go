package testutil

import (
	"sync"
	"time"
)

// StepClock is a fake wall clock that advances by a fixed step on every read.
//
// Unlike time.Now, two runs of the same test observe identical timestamps, so
// latency samples are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock creates a clock starting at start that moves forward by step
// each time Now is called.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{now: start, step: step}
}

// Now returns the current reading, then advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Reads returns how far the clock has advanced in steps.
func (c *StepClock) Reads(start time.Time) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step == 0 {
		return 0
	}
	return int64(c.now.Sub(start) / c.step)
}
