// Package timeutil provides a testable source of wall-clock time for
// calibration timestamps and fit durations.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// StepClock is a manually controlled clock for testing. Every call to Now
// advances it by Step, so consecutive calibration records get distinct,
// strictly increasing timestamps.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewStepClock creates a StepClock starting at t.
func NewStepClock(t time.Time, step time.Duration) *StepClock {
	return &StepClock{now: t, Step: step}
}

// Now returns the current mocked time and advances by Step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.Step)
	return now
}

// Peek returns the time the next Now call will report, without advancing.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the duration between t and the current mocked time.
func (c *StepClock) Since(t time.Time) time.Duration {
	return c.Peek().Sub(t)
}

// Set moves the clock to t.
func (c *StepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
