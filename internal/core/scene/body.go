package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Body is the port to the external physics/simulation backend. The
// constraint core reads and writes through it but never owns the
// integration step.
//
// Simulated reports whether the body carries velocity state at all;
// non-simulated bodies are posed directly and have no velocity concept.
type Body interface {
	Position() mgl64.Vec3
	SetPosition(p mgl64.Vec3)

	Orientation() mgl64.Quat
	SetOrientation(q mgl64.Quat)

	LinearVelocity() mgl64.Vec3
	SetLinearVelocity(v mgl64.Vec3)

	AngularVelocity() mgl64.Vec3
	SetAngularVelocity(w mgl64.Vec3)

	GravityEnabled() bool
	SetGravityEnabled(enabled bool)

	Kinematic() bool
	Static() bool
	Simulated() bool
}

const gravityAccel = -9.81

// RigidBody is a value-backed Body used by the daemon and tests as a
// stand-in for a real backend. Step provides just enough integration to
// make gravity observable; it is not a physics engine.
type RigidBody struct {
	pos       mgl64.Vec3
	orient    mgl64.Quat
	linVel    mgl64.Vec3
	angVel    mgl64.Vec3
	gravity   bool
	kinematic bool
	static    bool
	simulated bool
}

// NewRigidBody creates a physically simulated, gravity-enabled body at p.
func NewRigidBody(p mgl64.Vec3) *RigidBody {
	return &RigidBody{
		pos:       p,
		orient:    mgl64.QuatIdent(),
		gravity:   true,
		simulated: true,
	}
}

// NewPoseBody creates a non-simulated body at p. It has no velocity
// state; height and orientation are written directly.
func NewPoseBody(p mgl64.Vec3) *RigidBody {
	return &RigidBody{
		pos:    p,
		orient: mgl64.QuatIdent(),
	}
}

func (b *RigidBody) Position() mgl64.Vec3     { return b.pos }
func (b *RigidBody) SetPosition(p mgl64.Vec3) { b.pos = p }

func (b *RigidBody) Orientation() mgl64.Quat     { return b.orient }
func (b *RigidBody) SetOrientation(q mgl64.Quat) { b.orient = q }

func (b *RigidBody) LinearVelocity() mgl64.Vec3     { return b.linVel }
func (b *RigidBody) SetLinearVelocity(v mgl64.Vec3) { b.linVel = v }

func (b *RigidBody) AngularVelocity() mgl64.Vec3     { return b.angVel }
func (b *RigidBody) SetAngularVelocity(w mgl64.Vec3) { b.angVel = w }

func (b *RigidBody) GravityEnabled() bool           { return b.gravity }
func (b *RigidBody) SetGravityEnabled(enabled bool) { b.gravity = enabled }

func (b *RigidBody) Kinematic() bool { return b.kinematic }
func (b *RigidBody) Static() bool    { return b.static }
func (b *RigidBody) Simulated() bool { return b.simulated }

func (b *RigidBody) SetKinematic(v bool) { b.kinematic = v }
func (b *RigidBody) SetStatic(v bool)    { b.static = v }

// Step integrates velocity and gravity over dt seconds. No collision,
// no forces beyond gravity.
func (b *RigidBody) Step(dt float64) {
	if !b.simulated || b.kinematic || b.static {
		return
	}
	if b.gravity {
		b.linVel[1] += gravityAccel * dt
	}
	b.pos = b.pos.Add(b.linVel.Mul(dt))
}
