package physics

import "math"

// Vec is a 2D vector in world units.
type Vec struct {
	X, Y float64
}

func (v Vec) Add(o Vec) Vec {
	return Vec{v.X + o.X, v.Y + o.Y}
}

func (v Vec) Sub(o Vec) Vec {
	return Vec{v.X - o.X, v.Y - o.Y}
}

func (v Vec) Scale(s float64) Vec {
	return Vec{v.X * s, v.Y * s}
}

func (v Vec) Dot(o Vec) float64 {
	return v.X*o.X + v.Y*o.Y
}

// LenSq returns the squared length. Use it when comparing lengths.
func (v Vec) LenSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

func (v Vec) Len() float64 {
	return math.Sqrt(v.LenSq())
}
