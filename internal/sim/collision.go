package sim

import "github.com/tomz197/tileworld/internal/physics"

// bounce applies an elastic (restitution 1) impulse along n, the unit normal
// pointing from a to b. Bodies that are already separating are left alone.
func bounce(a, b *Body, n physics.Vec) bool {
	dvn := a.Vel.Sub(b.Vel).Dot(n)
	if dvn <= 0 {
		return false
	}
	j := -2 * dvn / (1/a.Mass + 1/b.Mass)
	a.Vel = a.Vel.Add(n.Scale(j / a.Mass))
	b.Vel = b.Vel.Sub(n.Scale(j / b.Mass))
	return true
}

// separate pushes overlapping bodies apart along n. Each moves by the share of
// the overlap proportional to the other body's radius, so smaller bodies move more.
func separate(a, b *Body, n physics.Vec, dist float64) {
	reach := a.Radius + b.Radius
	overlap := reach - dist
	if overlap <= 0 {
		return
	}
	a.Pos = a.Pos.Sub(n.Scale(overlap * b.Radius / reach))
	b.Pos = b.Pos.Add(n.Scale(overlap * a.Radius / reach))
}

// normal returns the unit vector from a to b, falling back to +X for
// coincident centers.
func normal(a, b physics.Vec) (physics.Vec, float64) {
	d := b.Sub(a)
	dist := d.Len()
	if dist == 0 {
		return physics.Vec{X: 1}, 0
	}
	return d.Scale(1 / dist), dist
}
