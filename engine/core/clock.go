package core

import "time"

type Clock struct {
	start   time.Time
	elapsed time.Duration
}

func NewClock() *Clock {
	return &Clock{}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.start = time.Now()
	c.elapsed = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	if !c.start.IsZero() {
		c.elapsed = time.Since(c.start)
	}
	c.start = time.Time{}
}

// Elapsed is the time since Start while the clock runs, and the time it ran
// for once stopped.
func (c *Clock) Elapsed() time.Duration {
	if c.start.IsZero() {
		return c.elapsed
	}
	return time.Since(c.start)
}

func (c *Clock) Running() bool {
	return !c.start.IsZero()
}
