package systems

import (
	"context"
	"time"

	"github.com/planelock/planelock/internal/core/events/bus"
	"github.com/planelock/planelock/internal/core/observability/log"
	"github.com/planelock/planelock/internal/core/scene"
)

// System is a simulation logic processor driven by the frame loop.
//
// Each frame the manager runs every system through three strictly
// ordered phases:
//
//	Update      — logic phase: refresh cached values, pump events/timers
//	FixedUpdate — physics phase: corrections against simulated bodies,
//	              possibly several substeps per frame
//	LateUpdate  — after external writers (the manipulation subsystem)
//	              have moved objects this frame; bounded reconciliation only
type System interface {
	Name() string

	Initialize(ctx context.Context, world World) error
	Shutdown(ctx context.Context) error

	Update(dt float64) error
	FixedUpdate(dt float64) error
	LateUpdate(dt float64) error

	Priority() Priority
}

// Priority defines execution order within a phase. Higher runs first.
type Priority uint16

const (
	PriorityLow    Priority = 200
	PriorityNormal Priority = 600
	PriorityHigh   Priority = 1000
)

// Timer is a cancellable one-shot deferred action on simulated time.
// Stop reports whether the timer was cancelled before firing.
type Timer interface {
	Stop() bool
}

// World is the facade systems use to reach shared state. It is
// implemented by sim.World.
type World interface {
	// Scene returns the environment graph.
	Scene() *scene.Graph
	// Events returns the shared event bus.
	Events() bus.EventBus
	// Now returns the current simulated time.
	Now() time.Duration
	// After schedules fn on simulated time. The returned Timer must be
	// stopped when its owning object is torn down.
	After(d time.Duration, fn func()) Timer
	// Logger returns the world logger.
	Logger() log.Log
}
