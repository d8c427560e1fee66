// Package boundary watches idle objects for horizontal excursion past
// the surface footprint and drives their delayed removal.
package boundary

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/planelock/planelock/internal/core/events"
	"github.com/planelock/planelock/internal/core/events/bus"
	"github.com/planelock/planelock/internal/core/observability/log"
	"github.com/planelock/planelock/internal/core/scene"
	"github.com/planelock/planelock/internal/core/systems"
)

// Name registers the system with the manager.
const Name = "boundary"

// State is the derived per-object boundary state.
type State uint8

const (
	Inside State = iota
	CountingDown
	Removed
)

func (s State) String() string {
	switch s {
	case CountingDown:
		return "counting-down"
	case Removed:
		return "removed"
	default:
		return "inside"
	}
}

// Bounds is the allowed footprint on the surface's horizontal axes.
type Bounds struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
}

// Settings is the per-object boundary configuration. A nil Bounds means
// the object is never monitored.
type Settings struct {
	Bounds       *Bounds
	Tolerance    float64
	DestroyDelay time.Duration
}

const defaultDestroyDelay = 500 * time.Millisecond

// DefaultSettings returns the baseline tolerance and removal delay,
// without bounds.
func DefaultSettings() Settings {
	return Settings{Tolerance: 0.1, DestroyDelay: defaultDestroyDelay}
}

func (s Settings) withDefaults() Settings {
	if s.DestroyDelay <= 0 {
		s.DestroyDelay = defaultDestroyDelay
	}
	return s
}

type watch struct {
	obj     *scene.Object
	cfg     Settings
	surface *scene.SurfaceRef
	active  bool

	grabbed bool
	state   State
	timer   systems.Timer
}

// System implements systems.System. It is independent of the constraint
// system: it keeps its own grab flag from the same bus events.
type System struct {
	world  systems.World
	logger log.Log

	surfaceName string

	watches map[uuid.UUID]*watch
	order   []*watch
	subs    []bus.Subscription
}

type Option func(*System)

// WithSurfaceName overrides the fallback surface lookup name.
func WithSurfaceName(name string) Option {
	return func(s *System) { s.surfaceName = name }
}

func New(opts ...Option) *System {
	s := &System{watches: make(map[uuid.UUID]*watch)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *System) Name() string               { return Name }
func (s *System) Priority() systems.Priority { return systems.PriorityNormal }

func (s *System) Initialize(_ context.Context, world systems.World) error {
	s.world = world
	s.logger = world.Logger().With(log.String("system", Name))

	begin, err := world.Events().Subscribe(events.TypeGrabBegin, s.onGrabBegin)
	if err != nil {
		return err
	}
	end, err := world.Events().Subscribe(events.TypeGrabEnd, s.onGrabEnd)
	if err != nil {
		begin.Cancel()
		return err
	}
	s.subs = append(s.subs, begin, end)
	return nil
}

func (s *System) Shutdown(_ context.Context) error {
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.subs = nil
	return nil
}

// Watch puts obj under boundary monitoring. surfaceObj may be nil to
// fall back to the named lookup. Must be called after Initialize.
func (s *System) Watch(obj *scene.Object, cfg Settings, surfaceObj *scene.Object) error {
	if s.world == nil {
		return errors.New("boundary: watch before initialize")
	}
	if _, exists := s.watches[obj.ID()]; exists {
		return errors.New("boundary: object already watched")
	}

	cfg = cfg.withDefaults()
	w := &watch{
		obj:     obj,
		cfg:     cfg,
		surface: scene.ResolveSurface(s.world.Scene(), surfaceObj, s.surfaceName, s.logger),
	}
	w.active = w.surface != nil && cfg.Bounds != nil

	id := obj.ID()
	// Removal through any other path must cancel the pending timer, not
	// let it fire against destroyed state.
	obj.OnTeardown(func() { s.unwatch(id) })

	s.watches[id] = w
	s.order = append(s.order, w)
	return nil
}

func (s *System) unwatch(id uuid.UUID) {
	w, ok := s.watches[id]
	if !ok {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	delete(s.watches, id)
	for i, o := range s.order {
		if o == w {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// StateOf reports the boundary state of a watched object.
func (s *System) StateOf(id uuid.UUID) (State, bool) {
	w, ok := s.watches[id]
	if !ok {
		return Inside, false
	}
	return w.state, true
}

// Update evaluates excursion for idle objects (logic phase). A running
// countdown is left alone: repeated "still outside" observations never
// restart it.
func (s *System) Update(_ float64) error {
	for _, w := range s.order {
		if !w.active || w.grabbed || w.state != Inside {
			continue
		}
		s.evaluate(w)
	}
	return nil
}

func (s *System) FixedUpdate(_ float64) error { return nil }
func (s *System) LateUpdate(_ float64) error  { return nil }

func (s *System) evaluate(w *watch) {
	rel := w.surface.Relative(w.obj.Body().Position())
	b, tol := w.cfg.Bounds, w.cfg.Tolerance
	outside := rel.X() < b.MinX-tol || rel.X() > b.MaxX+tol ||
		rel.Z() < b.MinZ-tol || rel.Z() > b.MaxZ+tol
	if !outside {
		return
	}

	w.state = CountingDown
	w.timer = s.world.After(w.cfg.DestroyDelay, func() { s.expire(w) })
	s.logger.Debug("excursion detected",
		log.String("object", w.obj.Name()),
		log.Float64("rel_x", rel.X()),
		log.Float64("rel_z", rel.Z()),
		log.Duration("destroy_delay", w.cfg.DestroyDelay))
}

// expire fires once per countdown: notify, then destroy.
func (s *System) expire(w *watch) {
	if w.state != CountingDown {
		return
	}
	w.state = Removed
	w.timer = nil

	removal := events.Removal{
		ObjectID:     w.obj.ID(),
		Name:         w.obj.Name(),
		LastPosition: w.obj.Body().Position(),
	}
	if err := s.world.Events().Publish(bus.NewEvent(events.TypeObjectRemoved, Name, removal)); err != nil {
		s.logger.Error("removal notification failed", log.Err(err))
	}

	if err := s.world.Scene().Remove(w.obj.ID()); err != nil {
		s.logger.Error("remove failed", log.String("object", w.obj.Name()), log.Err(err))
		return
	}
	s.logger.Info("object removed out of bounds", log.String("object", removal.Name))
}

func (s *System) onGrabBegin(e bus.Event) error {
	sig, ok := e.Data().(events.GrabSignal)
	if !ok {
		return nil
	}
	w, ok := s.watches[sig.ObjectID]
	if !ok {
		return nil
	}
	w.grabbed = true
	// Re-grabbing an object mid-countdown cancels the pending removal.
	if w.state == CountingDown {
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.state = Inside
		s.logger.Debug("countdown cancelled by grab", log.String("object", w.obj.Name()))
	}
	return nil
}

func (s *System) onGrabEnd(e bus.Event) error {
	sig, ok := e.Data().(events.GrabSignal)
	if !ok {
		return nil
	}
	w, ok := s.watches[sig.ObjectID]
	if !ok {
		return nil
	}
	w.grabbed = false
	// One synchronous check right at release.
	if w.active && w.state == Inside {
		s.evaluate(w)
	}
	return nil
}
