package sim

import (
	"sort"
	"time"
)

// Timer is a one-shot deferred action on simulated time.
type Timer struct {
	when    time.Duration
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

// Stop cancels the timer. It reports whether the cancel happened before
// the timer fired; stopping a fired or already-stopped timer is a no-op.
func (t *Timer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	t.fn = nil
	return true
}

// Scheduler runs timers against a simulated clock. All methods are
// called from the frame loop goroutine only.
type Scheduler struct {
	clock  *Clock
	seq    uint64
	timers []*Timer
}

func NewScheduler(clock *Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// After schedules fn to run once d of simulated time has elapsed. fn
// runs during a later Fire call, on the loop goroutine.
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	s.seq++
	t := &Timer{when: s.clock.Now() + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Fire runs every due, uncancelled timer in deadline order and compacts
// the timer list. Callbacks may schedule or stop other timers.
func (s *Scheduler) Fire() {
	now := s.clock.Now()

	due := make([]*Timer, 0)
	for _, t := range s.timers {
		if !t.stopped && t.when <= now {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].when != due[j].when {
			return due[i].when < due[j].when
		}
		return due[i].seq < due[j].seq
	})

	for _, t := range due {
		if t.stopped {
			continue
		}
		t.fired = true
		fn := t.fn
		t.fn = nil
		if fn != nil {
			fn()
		}
	}

	remaining := s.timers[:0]
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			remaining = append(remaining, t)
		}
	}
	s.timers = remaining
}

// Pending returns the number of live timers.
func (s *Scheduler) Pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}
