package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/planelock/planelock/internal/core/observability/log"
)

// DefaultSurfaceName is looked up in the graph when an attachment has no
// explicit surface binding.
const DefaultSurfaceName = "ReferenceSurface"

// SurfaceRef is a read-only view of the reference plane an object is
// constrained against. Many attachments share one surface object; the
// constraint subsystem never writes through a SurfaceRef.
type SurfaceRef struct {
	obj *Object
}

// ResolveSurface binds an attachment to its surface. An explicit binding
// wins; otherwise the named lookup runs against the graph. name may be
// empty to use DefaultSurfaceName. A nil return means the surface is
// missing and dependent components must go inert; this is diagnosed, not
// fatal.
func ResolveSurface(g *Graph, explicit *Object, name string, logger log.Log) *SurfaceRef {
	if explicit != nil {
		return &SurfaceRef{obj: explicit}
	}
	if name == "" {
		name = DefaultSurfaceName
	}
	if obj, ok := g.Find(name); ok {
		return &SurfaceRef{obj: obj}
	}
	logger.Warn("surface not found, constraints inert", log.String("surface", name))
	return nil
}

// Object returns the underlying surface object.
func (s *SurfaceRef) Object() *Object { return s.obj }

func (s *SurfaceRef) Origin() mgl64.Vec3 {
	return s.obj.Body().Position()
}

func (s *SurfaceRef) Orientation() mgl64.Quat {
	return s.obj.Body().Orientation()
}

// Height is the plane's elevation; the target height for a clamped
// object is Height plus its configured offset.
func (s *SurfaceRef) Height() float64 {
	return s.obj.Body().Position().Y()
}

// Relative maps a world position into the surface frame. The X/Z
// components are the horizontal offsets the boundary monitor checks.
func (s *SurfaceRef) Relative(p mgl64.Vec3) mgl64.Vec3 {
	return s.Orientation().Inverse().Rotate(p.Sub(s.Origin()))
}
