package constraint_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planelock/planelock/internal/core/events"
	"github.com/planelock/planelock/internal/core/events/bus"
	"github.com/planelock/planelock/internal/core/observability/log"
	"github.com/planelock/planelock/internal/core/scene"
	"github.com/planelock/planelock/internal/core/sim"
	"github.com/planelock/planelock/internal/core/systems/constraint"
)

// spyBody counts writes so tests can assert "no correction produced".
type spyBody struct {
	*scene.RigidBody
	posWrites    int
	orientWrites int
}

func (b *spyBody) SetPosition(p mgl64.Vec3) {
	b.posWrites++
	b.RigidBody.SetPosition(p)
}

func (b *spyBody) SetOrientation(q mgl64.Quat) {
	b.orientWrites++
	b.RigidBody.SetOrientation(q)
}

type rig struct {
	t       *testing.T
	world   *sim.World
	sys     *constraint.System
	surface *scene.Object
}

func newRig(t *testing.T, surfaceHeight float64, opts ...constraint.Option) *rig {
	t.Helper()
	world := sim.NewWorld(scene.NewGraph(), bus.New(), log.Nop())

	surface := scene.NewObject(scene.DefaultSurfaceName, scene.NewPoseBody(mgl64.Vec3{0, surfaceHeight, 0}))
	require.NoError(t, world.Scene().Add(surface))

	sys := constraint.New(opts...)
	require.NoError(t, sys.Initialize(context.Background(), world))
	return &rig{t: t, world: world, sys: sys, surface: surface}
}

func (r *rig) add(name string, body scene.Body, cfg constraint.Settings) *scene.Object {
	r.t.Helper()
	obj := scene.NewObject(name, body)
	require.NoError(r.t, r.world.Scene().Add(obj))
	require.NoError(r.t, r.sys.Attach(obj, cfg, nil))
	return obj
}

func (r *rig) grab(obj *scene.Object) {
	r.t.Helper()
	err := r.world.Events().Publish(bus.NewEvent(events.TypeGrabBegin, "test", events.GrabSignal{ObjectID: obj.ID()}))
	require.NoError(r.t, err)
}

func (r *rig) release(obj *scene.Object) {
	r.t.Helper()
	err := r.world.Events().Publish(bus.NewEvent(events.TypeGrabEnd, "test", events.GrabSignal{ObjectID: obj.ID()}))
	require.NoError(r.t, err)
}

// tick advances simulated time and runs the logic + physics phases.
func (r *rig) tick(d time.Duration) {
	r.t.Helper()
	r.world.Clock().Advance(d)
	require.NoError(r.t, r.sys.Update(d.Seconds()))
	require.NoError(r.t, r.sys.FixedUpdate(d.Seconds()))
}

func TestGrabBeginDisablesGravityAndZeroesVerticalVelocity(t *testing.T) {
	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 1, 0})
	body.SetLinearVelocity(mgl64.Vec3{1, -2, 3})
	obj := r.add("cube", body, constraint.DefaultSettings())

	r.grab(obj)

	assert.False(t, body.GravityEnabled())
	assert.Equal(t, mgl64.Vec3{1, 0, 3}, body.LinearVelocity())

	state, ok := r.sys.StateOf(obj.ID())
	require.True(t, ok)
	assert.Equal(t, constraint.Grabbed, state)
}

func TestGrabStateTransitions(t *testing.T) {
	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 1, 0})
	obj := r.add("cube", body, constraint.DefaultSettings())

	// Release without a grab is a no-op.
	r.release(obj)
	state, _ := r.sys.StateOf(obj.ID())
	assert.Equal(t, constraint.Idle, state)

	r.grab(obj)
	// A second grab-begin while grabbed is a no-op.
	r.grab(obj)
	state, _ = r.sys.StateOf(obj.ID())
	assert.Equal(t, constraint.Grabbed, state)

	r.release(obj)
	state, _ = r.sys.StateOf(obj.ID())
	assert.Equal(t, constraint.Idle, state)
}

// Scenario: surface at 0.5, offset 0.1, object within half the dead-zone
// of the 0.6 target. No position write may be produced.
func TestDeadZoneSuppressesCorrection(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1

	r := newRig(t, 0.5)
	body := &spyBody{RigidBody: scene.NewRigidBody(mgl64.Vec3{0, 0.6005, 0})}
	obj := r.add("cube", body, cfg)

	r.grab(obj)
	r.tick(10 * time.Millisecond)
	require.NoError(t, r.sys.LateUpdate(0.01))

	assert.Zero(t, body.posWrites)
}

func TestDirectCorrectionSetsTargetExactly(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1
	cfg.Correction = constraint.CorrectDirect

	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0.2, 1.3, -0.1})
	obj := r.add("cube", body, cfg)

	r.grab(obj)
	r.tick(10 * time.Millisecond)

	assert.Equal(t, 0.6, body.Position().Y())
	// Horizontal position is untouched.
	assert.Equal(t, 0.2, body.Position().X())
	assert.Equal(t, -0.1, body.Position().Z())
}

func TestSmoothedCorrectionRampsUpDuringSettleWindow(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1
	cfg.SettleWindow = 100 * time.Millisecond

	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 1.0, 0})
	obj := r.add("cube", body, cfg)
	r.grab(obj)

	target := 0.6
	var fractions []float64
	for i := 0; i < 12; i++ {
		before := body.Position().Y()
		r.tick(10 * time.Millisecond)
		after := body.Position().Y()
		fractions = append(fractions, (before-after)/(before-target))
	}

	// Gentler early, progressively increasing inside the window.
	assert.Less(t, fractions[0], fractions[4])
	assert.Less(t, fractions[4], fractions[8])
	// Steady state after the window.
	assert.InDelta(t, fractions[10], fractions[11], 1e-9)

	for i, f := range fractions {
		assert.Greater(t, f, -1e-12, "tick %d overshot upward", i)
		assert.Less(t, f, 1.0, "tick %d overcorrected", i)
	}
}

func TestSmoothedCorrectionConverges(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1

	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 1.5, 0})
	obj := r.add("cube", body, cfg)
	r.grab(obj)

	for i := 0; i < 500; i++ {
		r.tick(10 * time.Millisecond)
	}
	assert.InDelta(t, 0.6, body.Position().Y(), 0.002)
}

func TestGrabEndRestoresGravityWhenNotMaintaining(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1

	r := newRig(t, 0.5)
	body := &spyBody{RigidBody: scene.NewRigidBody(mgl64.Vec3{0, 2, 0})}
	obj := r.add("cube", body, cfg)

	r.grab(obj)
	assert.False(t, body.GravityEnabled())
	r.release(obj)
	assert.True(t, body.GravityEnabled())

	// Clamping stops while idle.
	writes := body.posWrites
	r.tick(10 * time.Millisecond)
	require.NoError(t, r.sys.LateUpdate(0.01))
	assert.Equal(t, writes, body.posWrites)
}

func TestGrabEndPreservesPreGrabGravityValue(t *testing.T) {
	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 1, 0})
	body.SetGravityEnabled(false)
	obj := r.add("cube", body, constraint.DefaultSettings())

	r.grab(obj)
	r.release(obj)
	assert.False(t, body.GravityEnabled())
}

func TestMaintainHeightKeepsConstraintWhileIdle(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1
	cfg.MaintainHeight = true
	cfg.Correction = constraint.CorrectDirect

	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 1, 0})
	obj := r.add("cube", body, cfg)

	r.grab(obj)
	r.release(obj)

	// Gravity stays disabled and the clamp keeps running.
	assert.False(t, body.GravityEnabled())
	body.SetPosition(mgl64.Vec3{0, 2, 0})
	r.tick(10 * time.Millisecond)
	assert.Equal(t, 0.6, body.Position().Y())
}

func TestLiveTrackingFollowsMovingSurface(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1
	cfg.Correction = constraint.CorrectDirect

	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 0.6, 0})
	obj := r.add("cube", body, cfg)
	r.grab(obj)

	r.surface.Body().SetPosition(mgl64.Vec3{0, 1.0, 0})
	r.tick(10 * time.Millisecond)
	assert.Equal(t, 1.1, body.Position().Y())
}

func TestLockedAtGrabIgnoresSurfaceMotion(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1
	cfg.HeightPolicy = constraint.HeightLockedAtGrab
	cfg.Correction = constraint.CorrectDirect

	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 1.2, 0})
	obj := r.add("cube", body, cfg)
	r.grab(obj)

	r.surface.Body().SetPosition(mgl64.Vec3{0, 1.0, 0})
	r.tick(10 * time.Millisecond)
	// Target captured at grab-begin: 0.5 + 0.1.
	assert.Equal(t, 0.6, body.Position().Y())
}

// Scenario: rotation lock toward identity from a 30 degree offset.
// The orientation converges under slerp, then snaps exactly.
func TestRotationLockConvergesThenSnaps(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1
	cfg.RotationLock = true
	cfg.TargetOrientation = mgl64.QuatIdent()

	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 0.6, 0})
	body.SetOrientation(mgl64.QuatRotate(mgl64.DegToRad(30), mgl64.Vec3{0, 1, 0}))
	obj := r.add("cube", body, cfg)
	r.grab(obj)

	for i := 0; i < 50; i++ {
		r.tick(10 * time.Millisecond)
	}
	assert.Equal(t, mgl64.QuatIdent(), body.Orientation())
}

func TestRotationLockNoWriteWhenAligned(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.RotationLock = true
	cfg.MaintainHeight = true

	r := newRig(t, 0.5)
	inner := scene.NewRigidBody(mgl64.Vec3{0, 0.0005, 0})
	body := &spyBody{RigidBody: inner}
	r.add("cube", body, cfg)

	r.tick(10 * time.Millisecond)
	assert.Zero(t, body.orientWrites)
}

func TestAngularVelocityDecaysGradually(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.RotationLock = true

	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 0.5, 0})
	body.SetAngularVelocity(mgl64.Vec3{0, 5, 0})
	obj := r.add("cube", body, cfg)
	r.grab(obj)

	r.tick(10 * time.Millisecond)
	w := body.AngularVelocity().Y()
	assert.Less(t, w, 5.0)
	assert.Greater(t, w, 0.0)
}

func TestVerticalVelocityDecayIsExponential(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.VelocityDecay = 8

	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 0.5, 0})
	obj := r.add("cube", body, cfg)
	r.grab(obj)

	body.SetLinearVelocity(mgl64.Vec3{0, 1, 0})
	r.tick(100 * time.Millisecond)
	// exp(-8 * 0.1)
	assert.InDelta(t, 0.4493, body.LinearVelocity().Y(), 1e-3)
}

func TestLateReconciliationIsBounded(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1
	cfg.LateFraction = 0.85

	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 0.6, 0})
	obj := r.add("cube", body, cfg)
	r.grab(obj)
	r.tick(10 * time.Millisecond)

	// The manipulation subsystem writes its own position after physics.
	body.SetPosition(mgl64.Vec3{0, 1.6, 0})
	require.NoError(t, r.sys.LateUpdate(0.01))

	// 1.6 + (0.6-1.6)*0.85: corrected, but never a full override.
	assert.InDelta(t, 0.75, body.Position().Y(), 1e-9)
	assert.NotEqual(t, 0.6, body.Position().Y())

	// Re-running only closes the remaining gap further.
	require.NoError(t, r.sys.LateUpdate(0.01))
	assert.InDelta(t, 0.6225, body.Position().Y(), 1e-9)
}

func TestMissingSurfaceMakesAttachmentInert(t *testing.T) {
	world := sim.NewWorld(scene.NewGraph(), bus.New(), log.Nop())
	sys := constraint.New()
	require.NoError(t, sys.Initialize(context.Background(), world))

	body := scene.NewRigidBody(mgl64.Vec3{0, 1, 0})
	obj := scene.NewObject("cube", body)
	require.NoError(t, world.Scene().Add(obj))
	require.NoError(t, sys.Attach(obj, constraint.DefaultSettings(), nil))

	err := world.Events().Publish(bus.NewEvent(events.TypeGrabBegin, "test", events.GrabSignal{ObjectID: obj.ID()}))
	require.NoError(t, err)

	// Inert: gravity untouched, state unchanged.
	assert.True(t, body.GravityEnabled())
	state, ok := sys.StateOf(obj.ID())
	require.True(t, ok)
	assert.Equal(t, constraint.Idle, state)
}

func TestGrabbableWithoutSignalSourceIsInert(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.Grabbable = true

	r := newRig(t, 0.5, constraint.WithSignalSource(false))
	body := scene.NewRigidBody(mgl64.Vec3{0, 1, 0})
	obj := r.add("cube", body, cfg)

	r.grab(obj)
	assert.True(t, body.GravityEnabled())
	state, _ := r.sys.StateOf(obj.ID())
	assert.Equal(t, constraint.Idle, state)
}

func TestNonSimulatedBodyWrittenDirectly(t *testing.T) {
	cfg := constraint.DefaultSettings()
	cfg.HeightOffset = 0.1
	cfg.MaintainHeight = true
	// Smoothed is configured, but a pose-only body has no velocity
	// concept and is written directly.
	cfg.Correction = constraint.CorrectSmoothed

	r := newRig(t, 0.5)
	body := scene.NewPoseBody(mgl64.Vec3{0, 1.7, 0})
	r.add("marker", body, cfg)

	r.tick(10 * time.Millisecond)
	assert.Equal(t, 0.6, body.Position().Y())
}

func TestDetachedObjectIgnoresGrabs(t *testing.T) {
	r := newRig(t, 0.5)
	body := scene.NewRigidBody(mgl64.Vec3{0, 1, 0})
	obj := r.add("cube", body, constraint.DefaultSettings())

	require.NoError(t, r.world.Scene().Remove(obj.ID()))
	r.grab(obj)

	_, ok := r.sys.StateOf(obj.ID())
	assert.False(t, ok)
	assert.True(t, body.GravityEnabled())
}

func TestAttachRequiresInitialize(t *testing.T) {
	sys := constraint.New()
	obj := scene.NewObject("cube", scene.NewRigidBody(mgl64.Vec3{}))
	assert.Error(t, sys.Attach(obj, constraint.DefaultSettings(), nil))
}
