package sim

import (
	"math"

	"github.com/tomz197/tileworld/internal/physics"
)

// Bounded is a world with hard walls. Collisions are found by a discrete
// overlap test at the post-move positions, and bodies reflect off the walls.
type Bounded struct {
	*base
}

var _ Simulator = (*Bounded)(nil)

// NewBounded creates an empty walled world.
func NewBounded(opts Options) *Bounded {
	b := &Bounded{base: newBase(opts)}
	b.topo = b
	return b
}

func (w *Bounded) Wraps() bool {
	return false
}

func (w *Bounded) collide(a, b *Body) bool {
	pa := a.Pos.Add(a.Vel.Scale(w.dt))
	pb := b.Pos.Add(b.Vel.Scale(w.dt))
	if !physics.CirclesOverlap(pa, a.Radius, pb, b.Radius) {
		return false
	}
	n, dist := normal(pa, pb)
	bounce(a, b, n)
	separate(a, b, n, dist)
	return true
}

func (w *Bounded) confine(b *Body) {
	b.Pos.X, b.Vel.X = reflect(b.Pos.X, b.Vel.X, b.Radius, w.width)
	b.Pos.Y, b.Vel.Y = reflect(b.Pos.Y, b.Vel.Y, b.Radius, w.height)
}

// reflect clamps a coordinate to [r, size-r] and points the velocity away
// from the wall it hit.
func reflect(p, v, r, size float64) (float64, float64) {
	lo, hi := r, size-r
	if lo > hi {
		return size / 2, v
	}
	if p < lo {
		return lo, math.Abs(v)
	}
	if p > hi {
		return hi, -math.Abs(v)
	}
	return p, v
}

func (w *Bounded) fold(p physics.Vec, r float64) physics.Vec {
	return physics.Vec{X: clamp(p.X, r, w.width-r), Y: clamp(p.Y, r, w.height-r)}
}

func clamp(v, lo, hi float64) float64 {
	if lo > hi {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(v, hi))
}

func (w *Bounded) distance(a, b physics.Vec) float64 {
	return physics.Distance(a, b)
}

func (w *Bounded) shifts(_, _, _, _ float64, out []physics.Vec) []physics.Vec {
	return append(out, physics.Vec{})
}
