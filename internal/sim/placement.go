package sim

import "github.com/tomz197/tileworld/internal/physics"

// place returns the requested position if it is free, otherwise the first
// free position on a clockwise square spiral of integer offsets around it.
// It gives up after testing width*height candidates.
func (s *base) place(want physics.Vec, radius float64) (physics.Vec, bool) {
	limit := int(s.width) * int(s.height)
	if limit < 1 {
		limit = 1
	}
	sp := newSpiral()
	for tested := 0; tested < limit; tested++ {
		dx, dy := sp.next()
		cand := s.topo.fold(physics.Vec{X: want.X + float64(dx), Y: want.Y + float64(dy)}, radius)
		if s.free(cand, radius) {
			return cand, true
		}
	}
	return physics.Vec{}, false
}

func (s *base) free(p physics.Vec, radius float64) bool {
	for i := range s.bodies {
		other := &s.bodies[i]
		if s.topo.distance(p, other.Pos) < radius+other.Radius {
			return false
		}
	}
	return true
}

// spiral walks (0,0), then right, down, left, up with the leg length growing
// after every second turn: (1,0) (1,1) (0,1) (-1,1) (-1,0) (-1,-1) ...
type spiral struct {
	x, y   int
	dx, dy int
	leg    int
	steps  int
	turns  int
	primed bool
}

func newSpiral() *spiral {
	return &spiral{dx: 1, leg: 1}
}

func (sp *spiral) next() (int, int) {
	if !sp.primed {
		sp.primed = true
		return 0, 0
	}
	sp.x += sp.dx
	sp.y += sp.dy
	sp.steps++
	if sp.steps == sp.leg {
		sp.steps = 0
		sp.dx, sp.dy = -sp.dy, sp.dx
		sp.turns++
		if sp.turns%2 == 0 {
			sp.leg++
		}
	}
	return sp.x, sp.y
}
