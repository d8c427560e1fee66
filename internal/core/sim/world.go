package sim

import (
	"time"

	"github.com/planelock/planelock/internal/core/events/bus"
	"github.com/planelock/planelock/internal/core/observability/log"
	"github.com/planelock/planelock/internal/core/scene"
	"github.com/planelock/planelock/internal/core/systems"
)

var _ systems.World = (*World)(nil)

// World bundles the shared state systems operate on.
type World struct {
	graph  *scene.Graph
	events bus.EventBus
	clock  *Clock
	sched  *Scheduler
	logger log.Log
}

func NewWorld(graph *scene.Graph, events bus.EventBus, logger log.Log) *World {
	clock := NewClock()
	return &World{
		graph:  graph,
		events: events,
		clock:  clock,
		sched:  NewScheduler(clock),
		logger: logger,
	}
}

func (w *World) Scene() *scene.Graph   { return w.graph }
func (w *World) Events() bus.EventBus  { return w.events }
func (w *World) Now() time.Duration    { return w.clock.Now() }
func (w *World) Logger() log.Log       { return w.logger }
func (w *World) Clock() *Clock         { return w.clock }
func (w *World) Scheduler() *Scheduler { return w.sched }

func (w *World) After(d time.Duration, fn func()) systems.Timer {
	return w.sched.After(d, fn)
}
