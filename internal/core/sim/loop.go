package sim

import (
	"context"
	"errors"
	"time"

	"github.com/planelock/planelock/internal/core/observability/log"
	"github.com/planelock/planelock/internal/core/systems"
)

const (
	// DefaultFixedDelta is the physics substep cadence.
	DefaultFixedDelta = 10 * time.Millisecond
	// maxSubsteps caps physics catch-up after a long frame.
	maxSubsteps = 8
)

// Loop runs the tick: advance the clock, drain queued events, fire due
// timers and run the logic phase, then fixed physics substeps, then the
// late reconciliation phase. The phase order is a hard invariant; late
// corrections rely on the manipulation subsystem having already written
// this frame.
type Loop struct {
	world       *World
	manager     *systems.Manager
	fixedDelta  time.Duration
	accumulator time.Duration
	logger      log.Log
}

func NewLoop(world *World, manager *systems.Manager, opts ...LoopOption) *Loop {
	l := &Loop{
		world:      world,
		manager:    manager,
		fixedDelta: DefaultFixedDelta,
		logger:     world.Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type LoopOption func(*Loop)

// WithFixedDelta overrides the physics substep duration.
func WithFixedDelta(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.fixedDelta = d
		}
	}
}

// Step advances the simulation by one frame of frameDelta.
func (l *Loop) Step(frameDelta time.Duration) error {
	l.world.clock.Advance(frameDelta)
	dt := frameDelta.Seconds()

	var errs []error

	// Logic phase: queued external signals first, then due timers, then
	// system updates against the fresh state.
	if err := l.world.events.Drain(); err != nil {
		errs = append(errs, err)
	}
	l.world.sched.Fire()
	if err := l.manager.Update(dt); err != nil {
		errs = append(errs, err)
	}

	// Physics phase at fixed cadence.
	l.accumulator += frameDelta
	steps := 0
	for l.accumulator >= l.fixedDelta && steps < maxSubsteps {
		if err := l.manager.FixedUpdate(l.fixedDelta.Seconds()); err != nil {
			errs = append(errs, err)
		}
		l.accumulator -= l.fixedDelta
		steps++
	}
	if steps == maxSubsteps {
		// Shed the backlog instead of spiraling.
		l.accumulator = 0
	}

	// Late phase.
	if err := l.manager.LateUpdate(dt); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Run drives Step from a wall-clock ticker until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, frameDelta time.Duration) error {
	if frameDelta <= 0 {
		return errors.New("sim: non-positive frame delta")
	}
	ticker := time.NewTicker(frameDelta)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.Step(frameDelta); err != nil {
				l.logger.Error("frame step failed", log.Err(err))
			}
		}
	}
}
