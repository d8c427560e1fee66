package systems

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Manager owns system registration and runs the three-phase tick.
// Within a phase, systems execute by descending priority; registration
// order breaks ties. The phase ordering itself is fixed by the loop
// calling Update, FixedUpdate and LateUpdate in that sequence.
type Manager struct {
	systems     []System
	byName      map[string]System
	initialized bool
}

func NewManager() *Manager {
	return &Manager{byName: make(map[string]System)}
}

func (m *Manager) Register(s System) error {
	if m.initialized {
		return errors.New("systems: register after initialize")
	}
	if _, exists := m.byName[s.Name()]; exists {
		return fmt.Errorf("systems: duplicate system %q", s.Name())
	}
	m.byName[s.Name()] = s
	m.systems = append(m.systems, s)
	sort.SliceStable(m.systems, func(i, j int) bool {
		return m.systems[i].Priority() > m.systems[j].Priority()
	})
	return nil
}

func (m *Manager) Get(name string) (System, bool) {
	s, ok := m.byName[name]
	return s, ok
}

func (m *Manager) InitializeAll(ctx context.Context, world World) error {
	for _, s := range m.systems {
		if err := s.Initialize(ctx, world); err != nil {
			return fmt.Errorf("systems: initialize %s: %w", s.Name(), err)
		}
	}
	m.initialized = true
	return nil
}

// ShutdownAll tears systems down in reverse execution order.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	var errs []error
	for i := len(m.systems) - 1; i >= 0; i-- {
		if err := m.systems[i].Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("systems: shutdown %s: %w", m.systems[i].Name(), err))
		}
	}
	m.initialized = false
	return errors.Join(errs...)
}

func (m *Manager) Update(dt float64) error {
	var errs []error
	for _, s := range m.systems {
		if err := s.Update(dt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) FixedUpdate(dt float64) error {
	var errs []error
	for _, s := range m.systems {
		if err := s.FixedUpdate(dt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) LateUpdate(dt float64) error {
	var errs []error
	for _, s := range m.systems {
		if err := s.LateUpdate(dt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
