package physics

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestWrap(t *testing.T) {
	cases := []struct {
		v, size, want float64
	}{
		{5, 10, 5},
		{10, 10, 0},
		{-0.5, 10, 9.5},
		{-10, 10, 0},
		{23, 10, 3},
		{-1e-17, 10, 0},
	}
	for _, tc := range cases {
		if got := Wrap(tc.v, tc.size); got != tc.want {
			t.Fatalf("Wrap(%v, %v) = %v, want %v", tc.v, tc.size, got, tc.want)
		}
	}
	if got := WrapInt(-1, 5); got != 4 {
		t.Fatalf("WrapInt(-1, 5) = %d, want 4", got)
	}
}

func TestWrappedDistanceIsSymmetricAndShorter(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	for i := 0; i < 1000; i++ {
		w := 1 + rng.Float64()*300
		h := 1 + rng.Float64()*300
		a := Vec{rng.Float64() * w, rng.Float64() * h}
		b := Vec{rng.Float64() * w, rng.Float64() * h}

		ab := WrappedDistance(a, b, w, h)
		ba := WrappedDistance(b, a, w, h)
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("distance not symmetric: %v vs %v (a=%v b=%v)", ab, ba, a, b)
		}
		if raw := Distance(a, b); ab > raw {
			t.Fatalf("wrapped %v > raw %v (a=%v b=%v)", ab, raw, a, b)
		}
	}
}

func TestNearestImageCrossesSeam(t *testing.T) {
	got := NearestImage(Vec{1, 1}, Vec{199, 199}, 200, 200)
	if got != (Vec{-1, -1}) {
		t.Fatalf("nearest image = %v, want {-1 -1}", got)
	}
}

func TestTimeOfImpact(t *testing.T) {
	cases := []struct {
		name   string
		dp, dv Vec
		reach  float64
		want   float64
		hit    bool
	}{
		{"touching and approaching", Vec{2, 0}, Vec{-1, 0}, 2, 0, true},
		{"contact exactly at end of step", Vec{3, 0}, Vec{-1, 0}, 2, 0, false},
		{"mid step", Vec{4, 0}, Vec{-4, 0}, 2, 0.5, true},
		{"separating", Vec{3, 0}, Vec{1, 0}, 2, 0, false},
		{"no relative motion", Vec{3, 0}, Vec{}, 2, 0, false},
		{"miss", Vec{4, 5}, Vec{-4, 0}, 2, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, hit := TimeOfImpact(tc.dp, tc.dv, tc.reach)
			if hit != tc.hit || got != tc.want {
				t.Fatalf("TimeOfImpact = %v, %v; want %v, %v", got, hit, tc.want, tc.hit)
			}
		})
	}
}
