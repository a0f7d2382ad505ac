// Package physics provides vector math, toroidal distance utilities, the
// time-of-impact solver and the quadtree used for broad-phase collision detection.
package physics

import "math"

// Distance calculates the Euclidean distance between two points.
func Distance(a, b Vec) float64 {
	return math.Sqrt(DistanceSquared(a, b))
}

// DistanceSquared calculates the squared distance between two points.
// Use this when comparing distances to avoid the sqrt cost.
func DistanceSquared(a, b Vec) float64 {
	return b.Sub(a).LenSq()
}

// CirclesOverlap checks if two circles overlap. Touching circles do not overlap.
func CirclesOverlap(a Vec, ra float64, b Vec, rb float64) bool {
	minDist := ra + rb
	return DistanceSquared(a, b) < minDist*minDist
}

// Wrap folds a coordinate into [0, size) using floored modulo.
func Wrap(v, size float64) float64 {
	if size <= 0 {
		return v
	}
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	// A tiny negative remainder rounds up to size.
	if v >= size {
		v = 0
	}
	return v
}

// WrapInt is Wrap for integer grid coordinates.
func WrapInt(v, size int) int {
	if size <= 0 {
		return v
	}
	v %= size
	if v < 0 {
		v += size
	}
	return v
}

// NearestImage returns the copy of b closest to a among the nine images of
// b on a w x h torus (b itself plus the eight lattice shifts).
func NearestImage(a, b Vec, w, h float64) Vec {
	best := b
	bestDist := DistanceSquared(a, b)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			img := Vec{b.X + float64(dx)*w, b.Y + float64(dy)*h}
			if d := DistanceSquared(a, img); d < bestDist {
				best, bestDist = img, d
			}
		}
	}
	return best
}

// WrappedDistance is the distance between a and the nearest image of b.
func WrappedDistance(a, b Vec, w, h float64) float64 {
	return Distance(a, NearestImage(a, b, w, h))
}

// TimeOfImpact solves |dp + dv*t| = reach for the earliest t in [0, 1).
// dp is the relative position of B to A at the start of the step and dv the
// relative displacement over the whole step. It reports false when the
// circles do not touch within the step; circles that already overlap at
// t=0 yield a negative root and are the caller's concern.
func TimeOfImpact(dp, dv Vec, reach float64) (float64, bool) {
	a := dv.LenSq()
	b := 2 * dp.Dot(dv)
	c := dp.LenSq() - reach*reach
	if a == 0 {
		return 0, false
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t >= 0 && t < 1 {
		return t, true
	}
	return 0, false
}
