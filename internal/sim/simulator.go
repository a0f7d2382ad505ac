package sim

import (
	"github.com/charmbracelet/log"

	"github.com/tomz197/tileworld/internal/physics"
)

// Simulator advances the bodies of one world. The two implementations,
// Wrapping and Bounded, share the broad phase, integration and placement and
// differ in distance, collision test and edge handling.
//
// A Simulator is not safe for concurrent use; the owner serializes access.
type Simulator interface {
	// Step advances the world by one tick of 1/UpdatesPerSecond seconds.
	Step() StepResult
	// AddBodies places each body at its requested position or the nearest
	// free one, assigns ids and returns the bodies that found room.
	AddBodies(bodies []Body) []Body
	// Bodies returns a copy of the current bodies.
	Bodies() []Body
	Len() int
	Size() (w, h float64)
	// Resize changes the world extent and folds bodies back inside it.
	Resize(w, h float64)
	// StepCount is the wrap-around tick counter.
	StepCount() uint8
	Wraps() bool
	// Reset removes every body.
	Reset()
}

// Options configures a simulator.
type Options struct {
	Width, Height    float64
	UpdatesPerSecond int
	MaxElements      int // quadtree leaf capacity
	MaxDepth         int // quadtree depth limit
	Logger           *log.Logger
}

// Broad-phase box sizes relative to the body radius.
const (
	indexPadding = 1.05
	queryReach   = 2.0
)

// topology is what distinguishes the wrapping world from the bounded one.
type topology interface {
	// collide tests a and b for a collision during this step and resolves it.
	collide(a, b *Body) bool
	// confine applies edge handling after integration.
	confine(b *Body)
	// fold maps a candidate placement into the world.
	fold(p physics.Vec, radius float64) physics.Vec
	distance(a, b physics.Vec) float64
	// shifts lists the translations under which a query box must be repeated.
	shifts(x1, y1, x2, y2 float64, out []physics.Vec) []physics.Vec
}

type base struct {
	topo   topology
	logger *log.Logger

	bodies        []Body
	width, height float64
	dt            float64
	step          uint8
	nextID        int

	tree     *physics.Quadtree
	checked  map[uint64]struct{}
	collided []bool
	offsets  []physics.Vec
}

func newBase(opts Options) *base {
	if opts.UpdatesPerSecond <= 0 {
		opts.UpdatesPerSecond = 1
	}
	if opts.MaxElements <= 0 {
		opts.MaxElements = 8
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &base{
		logger:  logger,
		width:   opts.Width,
		height:  opts.Height,
		dt:      1 / float64(opts.UpdatesPerSecond),
		tree:    physics.NewQuadtree(int(opts.Width), int(opts.Height), opts.MaxElements, opts.MaxDepth),
		checked: make(map[uint64]struct{}),
	}
}

// Step runs broad phase, narrow phase and resolution, then integrates and
// applies edge handling.
func (s *base) Step() StepResult {
	s.rebuildIndex()

	clear(s.checked)
	if cap(s.collided) < len(s.bodies) {
		s.collided = make([]bool, len(s.bodies))
	}
	s.collided = s.collided[:len(s.bodies)]
	clear(s.collided)

	for i := range s.bodies {
		a := &s.bodies[i]
		reach := a.Radius * queryReach
		x1, y1, x2, y2 := a.Pos.X-reach, a.Pos.Y-reach, a.Pos.X+reach, a.Pos.Y+reach

		s.offsets = s.topo.shifts(x1, y1, x2, y2, s.offsets[:0])
		for _, off := range s.offsets {
			_, ids := s.tree.QueryWithIDs(x1+off.X, y1+off.Y, x2+off.X, y2+off.Y, i)
			for _, j := range ids {
				key := pairKey(i, j)
				if _, done := s.checked[key]; done {
					continue
				}
				s.checked[key] = struct{}{}
				if s.topo.collide(a, &s.bodies[j]) {
					s.collided[i] = true
					s.collided[j] = true
				}
			}
		}
	}

	for i := range s.bodies {
		b := &s.bodies[i]
		b.Pos = b.Pos.Add(b.Vel.Scale(s.dt))
		s.topo.confine(b)
	}

	s.step++
	res := StepResult{Step: s.step}
	for i, hit := range s.collided {
		if hit {
			res.Collided = append(res.Collided, s.bodies[i].ID)
		}
	}
	return res
}

// rebuildIndex refills the quadtree; the element handle of body i is i.
func (s *base) rebuildIndex() {
	s.tree.Reset(int(s.width), int(s.height))
	for i := range s.bodies {
		b := &s.bodies[i]
		r := b.Radius * indexPadding
		s.tree.Insert(i, b.Pos.X-r, b.Pos.Y-r, b.Pos.X+r, b.Pos.Y+r)
	}
}

func pairKey(i, j int) uint64 {
	if i > j {
		i, j = j, i
	}
	return uint64(uint32(i))<<32 | uint64(uint32(j))
}

func (s *base) AddBodies(bodies []Body) []Body {
	placed := make([]Body, 0, len(bodies))
	for _, b := range bodies {
		pos, ok := s.place(b.Pos, b.Radius)
		if !ok {
			s.logger.Warn("no free location for body, dropping it",
				"side", b.Side(), "x", b.Pos.X, "y", b.Pos.Y)
			continue
		}
		s.nextID++
		b.ID = s.nextID
		b.Pos = pos
		s.bodies = append(s.bodies, b)
		placed = append(placed, b)
	}
	return placed
}

func (s *base) Bodies() []Body {
	out := make([]Body, len(s.bodies))
	copy(out, s.bodies)
	return out
}

func (s *base) Len() int {
	return len(s.bodies)
}

func (s *base) Size() (float64, float64) {
	return s.width, s.height
}

func (s *base) Resize(w, h float64) {
	s.width, s.height = w, h
	for i := range s.bodies {
		s.topo.confine(&s.bodies[i])
	}
}

func (s *base) StepCount() uint8 {
	return s.step
}

func (s *base) Reset() {
	s.bodies = s.bodies[:0]
}
