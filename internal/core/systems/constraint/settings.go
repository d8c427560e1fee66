package constraint

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// HeightPolicy selects how the target height tracks the surface.
type HeightPolicy uint8

const (
	// HeightLiveTracking recomputes surface height + offset every tick,
	// following a moving surface.
	HeightLiveTracking HeightPolicy = iota
	// HeightLockedAtGrab captures the target height once at grab-begin.
	HeightLockedAtGrab
)

// CorrectionMode selects how a height error is closed.
type CorrectionMode uint8

const (
	// CorrectSmoothed closes a fraction of the remaining gap per tick,
	// gentler during the settle window after grab-begin.
	CorrectSmoothed CorrectionMode = iota
	// CorrectDirect sets the height to the target exactly.
	CorrectDirect
)

// RotationMode selects the rotation lock target.
type RotationMode uint8

const (
	// RotationFixedTarget locks toward the configured TargetOrientation.
	RotationFixedTarget RotationMode = iota
	// RotationAtGrab locks toward the orientation captured at grab-begin.
	RotationAtGrab
)

// Settings is the per-object configuration surface. Plain values only.
type Settings struct {
	// Grabbable marks the object as manipulable by the external
	// manipulation subsystem. A grabbable object with no signal source
	// connected has its constraint disabled.
	Grabbable bool

	HeightOffset float64
	HeightPolicy HeightPolicy
	Correction   CorrectionMode
	// MaintainHeight keeps the height/rotation clamp (and disabled
	// gravity) active while the object is idle.
	MaintainHeight bool

	RotationLock      bool
	RotationMode      RotationMode
	TargetOrientation mgl64.Quat

	// DeadZone is the height error below which no position write occurs.
	DeadZone float64
	// AngularSnap is the angular error, in degrees, below which the
	// orientation snaps exactly to the target.
	AngularSnap float64
	// SettleWindow bounds the gentle-correction interval after grab-begin.
	SettleWindow time.Duration

	// PositionRate is the smoothed gap-closure rate, per simulated second.
	PositionRate float64
	// LateFraction is the per-tick fraction applied by the late
	// reconciliation pass. Always kept below 1 so the pass never fully
	// overrides the manipulation subsystem's write.
	LateFraction float64
	// RotationRate is the slerp rate in degrees per simulated second.
	RotationRate float64
	// VelocityDecay and AngularDecay are exponential decay rates, per
	// simulated second.
	VelocityDecay float64
	AngularDecay  float64
}

const (
	defaultDeadZone     = 0.001
	defaultAngularSnap  = 0.5
	defaultSettleWindow = 100 * time.Millisecond
	defaultPositionRate = 12.0
	defaultLateFraction = 0.85
	maxLateFraction     = 0.95
	defaultRotationRate = 180.0
	defaultDecay        = 8.0
)

// DefaultSettings returns the baseline configuration: live height
// tracking, smoothed correction, no rotation lock.
func DefaultSettings() Settings {
	return Settings{
		TargetOrientation: mgl64.QuatIdent(),
		DeadZone:          defaultDeadZone,
		AngularSnap:       defaultAngularSnap,
		SettleWindow:      defaultSettleWindow,
		PositionRate:      defaultPositionRate,
		LateFraction:      defaultLateFraction,
		RotationRate:      defaultRotationRate,
		VelocityDecay:     defaultDecay,
		AngularDecay:      defaultDecay,
	}
}

// withDefaults fills zero values and clamps the late fraction below 1.
func (s Settings) withDefaults() Settings {
	if s.TargetOrientation == (mgl64.Quat{}) {
		s.TargetOrientation = mgl64.QuatIdent()
	} else {
		s.TargetOrientation = s.TargetOrientation.Normalize()
	}
	if s.DeadZone <= 0 {
		s.DeadZone = defaultDeadZone
	}
	if s.AngularSnap <= 0 {
		s.AngularSnap = defaultAngularSnap
	}
	if s.SettleWindow <= 0 {
		s.SettleWindow = defaultSettleWindow
	}
	if s.PositionRate <= 0 {
		s.PositionRate = defaultPositionRate
	}
	if s.LateFraction <= 0 {
		s.LateFraction = defaultLateFraction
	}
	if s.LateFraction > maxLateFraction {
		s.LateFraction = maxLateFraction
	}
	if s.RotationRate <= 0 {
		s.RotationRate = defaultRotationRate
	}
	if s.VelocityDecay <= 0 {
		s.VelocityDecay = defaultDecay
	}
	if s.AngularDecay <= 0 {
		s.AngularDecay = defaultDecay
	}
	return s
}
