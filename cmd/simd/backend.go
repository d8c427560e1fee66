package main

import (
	"context"

	"github.com/planelock/planelock/internal/core/scene"
	"github.com/planelock/planelock/internal/core/systems"
)

// stepper is the stand-in for the external physics backend: it
// integrates rigid bodies so gravity and velocities are observable when
// running the daemon without a real engine attached. It runs before the
// constraint system within the physics phase.
type stepper struct {
	world systems.World
}

func (s *stepper) Name() string               { return "backend-stepper" }
func (s *stepper) Priority() systems.Priority { return systems.PriorityHigh + 100 }

func (s *stepper) Initialize(_ context.Context, world systems.World) error {
	s.world = world
	return nil
}

func (s *stepper) Shutdown(context.Context) error { return nil }

func (s *stepper) Update(float64) error     { return nil }
func (s *stepper) LateUpdate(float64) error { return nil }

func (s *stepper) FixedUpdate(dt float64) error {
	for _, obj := range s.world.Scene().Objects() {
		if rb, ok := obj.Body().(*scene.RigidBody); ok {
			rb.Step(dt)
		}
	}
	return nil
}
