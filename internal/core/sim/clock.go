// Package sim drives the single-threaded cooperative frame loop: a
// simulated clock, a cancellable timer scheduler keyed to that clock,
// and the Logic/Physics/Late phase sequencing per tick.
package sim

import "time"

// Clock tracks simulated time. It only moves when the loop advances it,
// so timers and smoothing windows stay deterministic under test.
type Clock struct {
	now time.Duration
}

func NewClock() *Clock { return &Clock{} }

func (c *Clock) Now() time.Duration { return c.now }

func (c *Clock) Advance(d time.Duration) {
	if d > 0 {
		c.now += d
	}
}
