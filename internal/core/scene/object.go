package scene

import (
	"github.com/google/uuid"
)

// Object is a named entity in the environment graph. The constraint
// subsystem attaches to objects but does not own their lifetime; the one
// exception is the final destroy the boundary monitor triggers, which
// goes through Graph.Remove.
type Object struct {
	id       uuid.UUID
	name     string
	body     Body
	teardown []func()
}

func NewObject(name string, body Body) *Object {
	return &Object{
		id:   uuid.New(),
		name: name,
		body: body,
	}
}

func (o *Object) ID() uuid.UUID { return o.id }
func (o *Object) Name() string  { return o.name }
func (o *Object) Body() Body    { return o.body }

// OnTeardown registers fn to run when the object is removed from its
// graph, in registration order. Attachments use this to cancel pending
// timers so nothing fires against destroyed state.
func (o *Object) OnTeardown(fn func()) {
	o.teardown = append(o.teardown, fn)
}

func (o *Object) runTeardown() {
	for _, fn := range o.teardown {
		fn()
	}
	o.teardown = nil
}
