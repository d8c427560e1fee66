// Package constraint keeps manipulable objects clamped to the reference
// surface: a two-state grab tracker, a height clamp with selectable
// policies, an optional rotation lock and exponential velocity damping,
// unified into one system parameterized by per-object Settings.
package constraint

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/planelock/planelock/internal/core/events"
	"github.com/planelock/planelock/internal/core/events/bus"
	"github.com/planelock/planelock/internal/core/observability/log"
	"github.com/planelock/planelock/internal/core/scene"
	"github.com/planelock/planelock/internal/core/systems"
)

// Name registers the system with the manager.
const Name = "constraint"

// GrabState is the per-object manipulation state.
type GrabState uint8

const (
	Idle GrabState = iota
	Grabbed
)

func (s GrabState) String() string {
	if s == Grabbed {
		return "grabbed"
	}
	return "idle"
}

type attachment struct {
	obj     *scene.Object
	cfg     Settings
	surface *scene.SurfaceRef
	// active is false when the surface is unresolved or a grabbable
	// object has no manipulation source; the attachment is then inert.
	active bool

	state          GrabState
	grabbedAt      time.Duration
	everGrabbed    bool
	preGrabGravity bool
	lockedHeight   float64
	baseline       mgl64.Quat

	// targetHeight is refreshed in the logic phase and consumed by the
	// physics and late phases.
	targetHeight float64
}

// System implements systems.System.
type System struct {
	world  systems.World
	logger log.Log

	surfaceName  string
	signalSource bool

	attachments map[uuid.UUID]*attachment
	order       []*attachment
	subs        []bus.Subscription
}

type Option func(*System)

// WithSurfaceName overrides the fallback surface lookup name.
func WithSurfaceName(name string) Option {
	return func(s *System) { s.surfaceName = name }
}

// WithSignalSource declares whether a manipulation signal source is
// connected. Without one, grabbable objects are attached inert.
func WithSignalSource(available bool) Option {
	return func(s *System) { s.signalSource = available }
}

func New(opts ...Option) *System {
	s := &System{
		signalSource: true,
		attachments:  make(map[uuid.UUID]*attachment),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *System) Name() string               { return Name }
func (s *System) Priority() systems.Priority { return systems.PriorityHigh }

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

// Attach puts obj under constraint. surfaceObj may be nil to fall back
// to the named lookup. Must be called after Initialize.
func (s *System) Attach(obj *scene.Object, cfg Settings, surfaceObj *scene.Object) error {
	if s.world == nil {
		return errors.New("constraint: attach before initialize")
	}
	if _, exists := s.attachments[obj.ID()]; exists {
		return errors.New("constraint: object already attached")
	}

	cfg = cfg.withDefaults()
	a := &attachment{
		obj:     obj,
		cfg:     cfg,
		surface: scene.ResolveSurface(s.world.Scene(), surfaceObj, s.surfaceName, s.logger),
	}
	a.active = a.surface != nil
	if cfg.Grabbable && !s.signalSource {
		s.logger.Warn("no manipulation source, constraint disabled",
			log.String("object", obj.Name()))
		a.active = false
	}
	if a.active {
		a.targetHeight = s.targetHeightFor(a)
	}

	id := obj.ID()
	obj.OnTeardown(func() { s.detach(id) })

	s.attachments[id] = a
	s.order = append(s.order, a)
	return nil
}

func (s *System) detach(id uuid.UUID) {
	a, ok := s.attachments[id]
	if !ok {
		return
	}
	delete(s.attachments, id)
	for i, o := range s.order {
		if o == a {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// StateOf reports the grab state of an attached object.
func (s *System) StateOf(id uuid.UUID) (GrabState, bool) {
	a, ok := s.attachments[id]
	if !ok {
		return Idle, false
	}
	return a.state, true
}

// Update refreshes cached target heights (logic phase).
func (s *System) Update(_ float64) error {
	for _, a := range s.order {
		if a.active {
			a.targetHeight = s.targetHeightFor(a)
		}
	}
	return nil
}

// FixedUpdate applies the height clamp, rotation lock and velocity
// damping against simulated bodies (physics phase).
func (s *System) FixedUpdate(dt float64) error {
	for _, a := range s.order {
		if !a.active || !a.constrained() {
			continue
		}
		s.applyHeight(a, dt)
		if a.cfg.RotationLock {
			s.applyRotation(a, dt)
		}
		s.applyVelocityDecay(a, dt)
	}
	return nil
}

// LateUpdate reconciles the height after the manipulation subsystem has
// written this frame. The correction is a bounded fraction of the
// remaining gap, never a full override.
func (s *System) LateUpdate(_ float64) error {
	for _, a := range s.order {
		if !a.active || !a.constrained() {
			continue
		}
		body := a.obj.Body()
		pos := body.Position()
		err := a.targetHeight - pos.Y()
		if math.Abs(err) <= a.cfg.DeadZone {
			continue
		}
		pos[1] += err * a.cfg.LateFraction
		body.SetPosition(pos)
	}
	return nil
}

// constrained reports whether corrections run this tick.
func (a *attachment) constrained() bool {
	return a.state == Grabbed || (a.state == Idle && a.cfg.MaintainHeight)
}

func (s *System) targetHeightFor(a *attachment) float64 {
	if a.cfg.HeightPolicy == HeightLockedAtGrab && a.everGrabbed {
		return a.lockedHeight
	}
	return a.surface.Height() + a.cfg.HeightOffset
}

func (s *System) applyHeight(a *attachment, dt float64) {
	body := a.obj.Body()
	pos := body.Position()
	err := a.targetHeight - pos.Y()
	if math.Abs(err) <= a.cfg.DeadZone {
		return
	}

	mode := a.cfg.Correction
	if !body.Simulated() {
		// No velocity concept: written directly under the same dead-zone.
		mode = CorrectDirect
	}

	switch mode {
	case CorrectDirect:
		pos[1] = a.targetHeight
	case CorrectSmoothed:
		rate := a.cfg.PositionRate
		if a.state == Grabbed {
			if since := s.world.Now() - a.grabbedAt; since < a.cfg.SettleWindow {
				// Ramp the rate up over the settle window so the grab
				// does not visibly snap.
				rate *= float64(since) / float64(a.cfg.SettleWindow)
			}
		}
		pos[1] += err * (1 - math.Exp(-rate*dt))
	}
	body.SetPosition(pos)
}

func (s *System) applyRotation(a *attachment, dt float64) {
	body := a.obj.Body()
	target := a.cfg.TargetOrientation
	if a.cfg.RotationMode == RotationAtGrab && a.everGrabbed {
		target = a.baseline
	}

	cur := body.Orientation()
	angle := angularDistanceDeg(cur, target)
	if angle <= a.cfg.AngularSnap {
		if angle > snapEpsilon {
			body.SetOrientation(target)
		}
		return
	}

	frac := a.cfg.RotationRate * dt / angle
	if frac > 1 {
		frac = 1
	}
	body.SetOrientation(mgl64.QuatSlerp(cur, target, frac).Normalize())
}

func (s *System) applyVelocityDecay(a *attachment, dt float64) {
	body := a.obj.Body()
	if !body.Simulated() || body.Kinematic() || body.Static() {
		return
	}
	v := body.LinearVelocity()
	v[1] *= math.Exp(-a.cfg.VelocityDecay * dt)
	body.SetLinearVelocity(v)

	if a.cfg.RotationLock {
		w := body.AngularVelocity().Mul(math.Exp(-a.cfg.AngularDecay * dt))
		body.SetAngularVelocity(w)
	}
}

func (s *System) onGrabBegin(e bus.Event) error {
	sig, ok := e.Data().(events.GrabSignal)
	if !ok {
		return nil
	}
	a, ok := s.attachments[sig.ObjectID]
	if !ok || !a.active || a.state == Grabbed {
		return nil
	}

	body := a.obj.Body()
	a.state = Grabbed
	a.grabbedAt = s.world.Now()
	a.everGrabbed = true

	// Gravity off and vertical velocity zeroed immediately; a residual
	// velocity with gravity disabled would launch the object.
	a.preGrabGravity = body.GravityEnabled()
	body.SetGravityEnabled(false)
	if body.Simulated() {
		v := body.LinearVelocity()
		v[1] = 0
		body.SetLinearVelocity(v)
	}

	if a.cfg.RotationLock && a.cfg.RotationMode == RotationAtGrab {
		a.baseline = body.Orientation()
	}
	if a.cfg.HeightPolicy == HeightLockedAtGrab {
		a.lockedHeight = a.surface.Height() + a.cfg.HeightOffset
	}
	a.targetHeight = s.targetHeightFor(a)

	s.logger.Debug("grab begin", log.String("object", a.obj.Name()))
	return nil
}

func (s *System) onGrabEnd(e bus.Event) error {
	sig, ok := e.Data().(events.GrabSignal)
	if !ok {
		return nil
	}
	a, ok := s.attachments[sig.ObjectID]
	if !ok || a.state != Grabbed {
		return nil
	}

	a.state = Idle
	if !a.cfg.MaintainHeight {
		a.obj.Body().SetGravityEnabled(a.preGrabGravity)
	}

	s.logger.Debug("grab end", log.String("object", a.obj.Name()))
	return nil
}

const snapEpsilon = 1e-9

// angularDistanceDeg is the rotation angle between two unit quaternions,
// in degrees.
func angularDistanceDeg(a, b mgl64.Quat) float64 {
	d := math.Abs(a.Normalize().Dot(b.Normalize()))
	if d > 1 {
		d = 1
	}
	return mgl64.RadToDeg(2 * math.Acos(d))
}
