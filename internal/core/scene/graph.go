package scene

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDuplicateName = errors.New("scene: duplicate object name")
	ErrNotFound      = errors.New("scene: object not found")
)

// Graph is the environment graph: the set of live objects, addressable
// by id and by name. It is driven only from the frame loop goroutine and
// is deliberately unsynchronized.
type Graph struct {
	byID   map[uuid.UUID]*Object
	byName map[string]*Object
}

func NewGraph() *Graph {
	return &Graph{
		byID:   make(map[uuid.UUID]*Object),
		byName: make(map[string]*Object),
	}
}

func (g *Graph) Add(obj *Object) error {
	if _, exists := g.byName[obj.name]; exists {
		return ErrDuplicateName
	}
	g.byID[obj.id] = obj
	g.byName[obj.name] = obj
	return nil
}

// Remove destroys the object: teardown hooks run first, then the object
// leaves the graph. Removing an unknown id is an error.
func (g *Graph) Remove(id uuid.UUID) error {
	obj, ok := g.byID[id]
	if !ok {
		return ErrNotFound
	}
	obj.runTeardown()
	delete(g.byID, id)
	delete(g.byName, obj.name)
	return nil
}

func (g *Graph) Get(id uuid.UUID) (*Object, bool) {
	obj, ok := g.byID[id]
	return obj, ok
}

// Find looks an object up by name.
func (g *Graph) Find(name string) (*Object, bool) {
	obj, ok := g.byName[name]
	return obj, ok
}

func (g *Graph) Len() int { return len(g.byID) }

// Objects returns a snapshot slice of live objects.
func (g *Graph) Objects() []*Object {
	out := make([]*Object, 0, len(g.byID))
	for _, obj := range g.byID {
		out = append(out, obj)
	}
	return out
}
