// Package events defines the event vocabulary shared between the
// constraint core and its collaborators.
package events

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Event types routed over the bus.
const (
	// TypeGrabBegin and TypeGrabEnd are consumed from the external
	// manipulation subsystem.
	TypeGrabBegin = "grab.begin"
	TypeGrabEnd   = "grab.end"

	// TypeObjectRemoved is produced exactly once when the boundary monitor
	// destroys an object that left the surface footprint.
	TypeObjectRemoved = "object.removed"
)

// GrabSignal is the payload of grab.begin and grab.end events.
type GrabSignal struct {
	ObjectID uuid.UUID
}

// Removal is the payload of object.removed events.
type Removal struct {
	ObjectID     uuid.UUID
	Name         string
	LastPosition mgl64.Vec3
}
