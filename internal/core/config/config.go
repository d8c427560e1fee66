// Package config loads the scene description: the reference surface and
// the objects placed on it, with their constraint and boundary settings.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/planelock/planelock/internal/core/systems/boundary"
	"github.com/planelock/planelock/internal/core/systems/constraint"
)

// Duration wraps time.Duration with yaml decoding of strings like "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the root scene document.
type Config struct {
	Surface SurfaceConfig  `yaml:"surface"`
	Objects []ObjectConfig `yaml:"objects"`

	// Digest is the xxhash of the raw document, filled in by Load.
	Digest uint64 `yaml:"-"`
}

// SurfaceConfig describes the reference plane.
type SurfaceConfig struct {
	Name     string     `yaml:"name"`
	Position [3]float64 `yaml:"position"`
	// YawDeg rotates the surface frame around the vertical axis.
	YawDeg float64 `yaml:"yaw_deg"`
}

// ObjectConfig describes one manipulable object.
type ObjectConfig struct {
	Name      string     `yaml:"name"`
	Position  [3]float64 `yaml:"position"`
	Simulated bool       `yaml:"simulated"`
	Grabbable bool       `yaml:"grabbable"`

	Constraint ConstraintConfig `yaml:"constraint"`
	Boundary   *BoundaryConfig  `yaml:"boundary"`
}

// ConstraintConfig mirrors constraint.Settings with yaml-friendly enums.
type ConstraintConfig struct {
	HeightOffset   float64 `yaml:"height_offset"`
	HeightPolicy   string  `yaml:"height_policy"` // live | locked
	Correction     string  `yaml:"correction"`    // smoothed | direct
	MaintainHeight bool    `yaml:"maintain_height"`

	RotationLock bool       `yaml:"rotation_lock"`
	RotationMode string     `yaml:"rotation_mode"` // target | grab
	TargetEuler  [3]float64 `yaml:"target_euler_deg"`

	DeadZone     float64  `yaml:"dead_zone"`
	AngularSnap  float64  `yaml:"angular_snap_deg"`
	SettleWindow Duration `yaml:"settle_window"`

	PositionRate  float64 `yaml:"position_rate"`
	LateFraction  float64 `yaml:"late_fraction"`
	RotationRate  float64 `yaml:"rotation_rate"`
	VelocityDecay float64 `yaml:"velocity_decay"`
	AngularDecay  float64 `yaml:"angular_decay"`
}

// BoundaryConfig mirrors boundary.Settings.
type BoundaryConfig struct {
	Min          [2]float64 `yaml:"min"` // X, Z
	Max          [2]float64 `yaml:"max"`
	Tolerance    *float64   `yaml:"tolerance"`
	DestroyDelay Duration   `yaml:"destroy_delay"`
}

// Load decodes and validates a scene document and records its digest.
func Load(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Digest = xxhash.Sum64(raw)

	if err = cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile loads a scene document from disk.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (c *Config) validate() error {
	if c.Surface.Name == "" {
		return fmt.Errorf("config: surface name required")
	}
	names := make(map[string]struct{}, len(c.Objects))
	for i := range c.Objects {
		o := &c.Objects[i]
		if o.Name == "" {
			return fmt.Errorf("config: object %d: name required", i)
		}
		if _, dup := names[o.Name]; dup {
			return fmt.Errorf("config: duplicate object name %q", o.Name)
		}
		names[o.Name] = struct{}{}

		switch o.Constraint.HeightPolicy {
		case "", "live", "locked":
		default:
			return fmt.Errorf("config: object %q: unknown height_policy %q", o.Name, o.Constraint.HeightPolicy)
		}
		switch o.Constraint.Correction {
		case "", "smoothed", "direct":
		default:
			return fmt.Errorf("config: object %q: unknown correction %q", o.Name, o.Constraint.Correction)
		}
		switch o.Constraint.RotationMode {
		case "", "target", "grab":
		default:
			return fmt.Errorf("config: object %q: unknown rotation_mode %q", o.Name, o.Constraint.RotationMode)
		}
		if f := o.Constraint.LateFraction; f != 0 && (f < 0 || f >= 1) {
			return fmt.Errorf("config: object %q: late_fraction must be in (0, 1)", o.Name)
		}
		if b := o.Boundary; b != nil {
			if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
				return fmt.Errorf("config: object %q: boundary min exceeds max", o.Name)
			}
			if b.Tolerance != nil && *b.Tolerance < 0 {
				return fmt.Errorf("config: object %q: negative boundary tolerance", o.Name)
			}
		}
	}
	return nil
}

// SurfaceOrientation builds the surface frame rotation.
func (c *SurfaceConfig) Orientation() mgl64.Quat {
	return mgl64.QuatRotate(mgl64.DegToRad(c.YawDeg), mgl64.Vec3{0, 1, 0})
}

func (c *SurfaceConfig) Origin() mgl64.Vec3 {
	return mgl64.Vec3{c.Position[0], c.Position[1], c.Position[2]}
}

func (o *ObjectConfig) Origin() mgl64.Vec3 {
	return mgl64.Vec3{o.Position[0], o.Position[1], o.Position[2]}
}

// ConstraintSettings converts to the runtime settings, applying defaults
// for unset values.
func (o *ObjectConfig) ConstraintSettings() constraint.Settings {
	cc := o.Constraint
	s := constraint.DefaultSettings()
	s.Grabbable = o.Grabbable
	s.HeightOffset = cc.HeightOffset
	s.MaintainHeight = cc.MaintainHeight
	s.RotationLock = cc.RotationLock

	if cc.HeightPolicy == "locked" {
		s.HeightPolicy = constraint.HeightLockedAtGrab
	}
	if cc.Correction == "direct" {
		s.Correction = constraint.CorrectDirect
	}
	if cc.RotationMode == "grab" {
		s.RotationMode = constraint.RotationAtGrab
	}
	s.TargetOrientation = mgl64.AnglesToQuat(
		mgl64.DegToRad(cc.TargetEuler[0]),
		mgl64.DegToRad(cc.TargetEuler[1]),
		mgl64.DegToRad(cc.TargetEuler[2]),
		mgl64.XYZ,
	)

	if cc.DeadZone > 0 {
		s.DeadZone = cc.DeadZone
	}
	if cc.AngularSnap > 0 {
		s.AngularSnap = cc.AngularSnap
	}
	if cc.SettleWindow > 0 {
		s.SettleWindow = time.Duration(cc.SettleWindow)
	}
	if cc.PositionRate > 0 {
		s.PositionRate = cc.PositionRate
	}
	if cc.LateFraction > 0 {
		s.LateFraction = cc.LateFraction
	}
	if cc.RotationRate > 0 {
		s.RotationRate = cc.RotationRate
	}
	if cc.VelocityDecay > 0 {
		s.VelocityDecay = cc.VelocityDecay
	}
	if cc.AngularDecay > 0 {
		s.AngularDecay = cc.AngularDecay
	}
	return s
}

// BoundarySettings converts to the runtime settings; nil when the object
// has no boundary block.
func (o *ObjectConfig) BoundarySettings() *boundary.Settings {
	if o.Boundary == nil {
		return nil
	}
	b := boundary.DefaultSettings()
	b.Bounds = &boundary.Bounds{
		MinX: o.Boundary.Min[0], MaxX: o.Boundary.Max[0],
		MinZ: o.Boundary.Min[1], MaxZ: o.Boundary.Max[1],
	}
	if o.Boundary.Tolerance != nil {
		b.Tolerance = *o.Boundary.Tolerance
	}
	if o.Boundary.DestroyDelay > 0 {
		b.DestroyDelay = time.Duration(o.Boundary.DestroyDelay)
	}
	return &b
}
