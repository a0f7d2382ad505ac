package sim

import "github.com/tomz197/tileworld/internal/physics"

// Wrapping is a toroidal world: bodies leaving one edge re-enter at the
// opposite one, and collisions are found by continuous time-of-impact tests
// against the nearest image of the other body.
type Wrapping struct {
	*base
}

var _ Simulator = (*Wrapping)(nil)

// NewWrapping creates an empty toroidal world.
func NewWrapping(opts Options) *Wrapping {
	w := &Wrapping{base: newBase(opts)}
	w.topo = w
	return w
}

func (w *Wrapping) Wraps() bool {
	return true
}

func (w *Wrapping) collide(a, b *Body) bool {
	img := physics.NearestImage(a.Pos, b.Pos, w.width, w.height)
	dp := img.Sub(a.Pos)
	reach := a.Radius + b.Radius

	// Already overlapping at the start of the step: resolve in place.
	if dp.LenSq() < reach*reach {
		n, dist := normal(a.Pos, img)
		bounce(a, b, n)
		separate(a, b, n, dist)
		return true
	}

	dv := b.Vel.Sub(a.Vel).Scale(w.dt)
	t, ok := physics.TimeOfImpact(dp, dv, reach)
	if !ok {
		return false
	}

	travel := t * w.dt
	va, vb := a.Vel, b.Vel
	n, _ := normal(a.Pos.Add(va.Scale(travel)), img.Add(vb.Scale(travel)))
	if !bounce(a, b, n) {
		return false
	}

	// Integration moves every body by a full step afterwards. Shift the pair so
	// that it ends up at the contact point plus the remainder of the step
	// travelled with the new velocity.
	a.Pos = a.Pos.Add(va.Scale(travel)).Sub(a.Vel.Scale(travel))
	b.Pos = b.Pos.Add(vb.Scale(travel)).Sub(b.Vel.Scale(travel))
	return true
}

func (w *Wrapping) confine(b *Body) {
	b.Pos.X = physics.Wrap(b.Pos.X, w.width)
	b.Pos.Y = physics.Wrap(b.Pos.Y, w.height)
}

func (w *Wrapping) fold(p physics.Vec, _ float64) physics.Vec {
	return physics.Vec{X: physics.Wrap(p.X, w.width), Y: physics.Wrap(p.Y, w.height)}
}

func (w *Wrapping) distance(a, b physics.Vec) float64 {
	return physics.WrappedDistance(a, b, w.width, w.height)
}

// shifts repeats a query box that sticks out of the world on the far side.
func (w *Wrapping) shifts(x1, y1, x2, y2 float64, out []physics.Vec) []physics.Vec {
	xs := [3]float64{0}
	nx := 1
	if x1 < 0 {
		xs[nx] = w.width
		nx++
	}
	if x2 >= w.width {
		xs[nx] = -w.width
		nx++
	}
	ys := [3]float64{0}
	ny := 1
	if y1 < 0 {
		ys[ny] = w.height
		ny++
	}
	if y2 >= w.height {
		ys[ny] = -w.height
		ny++
	}
	for _, dx := range xs[:nx] {
		for _, dy := range ys[:ny] {
			out = append(out, physics.Vec{X: dx, Y: dy})
		}
	}
	return out
}
