// Package sim advances the shared world: it owns the bodies, detects and
// resolves collisions, handles the world edges and places new bodies.
package sim

import "github.com/tomz197/tileworld/internal/physics"

// Body is a circle with mass moving through the world.
type Body struct {
	ID      int
	Pos     physics.Vec
	Vel     physics.Vec // units per second
	Mass    float64
	Radius  float64 // always half of an integer side length
	ShapeID int
}

// Side returns the integer diameter of the body.
func (b Body) Side() int {
	return int(b.Radius*2 + 0.5)
}

// StepResult reports what happened during one step.
type StepResult struct {
	Step     uint8
	Collided []int // ids of bodies that collided this step
}
