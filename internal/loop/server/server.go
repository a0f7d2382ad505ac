package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tomz197/tileworld/internal/config"
	"github.com/tomz197/tileworld/internal/physics"
	"github.com/tomz197/tileworld/internal/protocol"
	"github.com/tomz197/tileworld/internal/shape"
	"github.com/tomz197/tileworld/internal/sim"
	"github.com/tomz197/tileworld/internal/viewport"
	"github.com/tomz197/tileworld/internal/world"
)

// ErrNoRoom is returned when a new body finds no free location.
var ErrNoRoom = errors.New("no room for body")

// Server owns the shared world: the simulator, the client registry and the
// latest visibility frame. Request handlers call its methods concurrently
// with Run and RunHeartbeat.
type Server struct {
	cfg      config.Config
	logger   *log.Logger
	catalog  *shape.Catalog
	registry *world.Registry

	// mu guards sim and rng. Held for single operations only.
	mu  sync.Mutex
	sim sim.Simulator
	rng *rand.Rand

	frozen atomic.Bool
	frame  atomic.Pointer[Frame]
	seq    uint64 // only touched by the tick
}

// Compile-time check that Server implements protocol.Core.
var _ protocol.Core = (*Server)(nil)

// Options configures a Server.
type Options struct {
	Config  config.Config
	Catalog *shape.Catalog
	Logger  *log.Logger
	Now     func() time.Time // registry clock, time.Now when nil
	Rand    *rand.Rand       // body placement source, time seeded when nil
}

// NewServer creates a server with an empty world of one tile.
func NewServer(opts Options) (*Server, error) {
	cfg := opts.Config
	locations, err := world.LocationsByName(cfg.LocationPattern)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = shape.Default(cfg.MaxShapeSide)
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	simOpts := sim.Options{
		Width:            float64(cfg.TileWidth),
		Height:           float64(cfg.TileHeight),
		UpdatesPerSecond: cfg.UpdatesPerSecond,
		MaxElements:      cfg.QuadtreeMaxElements,
		MaxDepth:         cfg.QuadtreeMaxDepth,
		Logger:           logger.WithPrefix("sim"),
	}
	var simulator sim.Simulator
	if cfg.Wrap {
		simulator = sim.NewWrapping(simOpts)
	} else {
		simulator = sim.NewBounded(simOpts)
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		catalog: catalog,
		registry: world.NewRegistry(world.Options{
			TileW:     cfg.TileWidth,
			TileH:     cfg.TileHeight,
			Locations: locations,
			Now:       opts.Now,
			Logger:    logger.WithPrefix("registry"),
		}),
		sim: simulator,
		rng: rng,
	}

	s.frame.Store(&Frame{
		Boundary: image.Pt(1, 1),
		Width:    cfg.TileWidth,
		Height:   cfg.TileHeight,
		Visible:  map[int][]viewport.Visible{},
	})
	return s, nil
}

// Run advances the world once per tick until the context is cancelled.
// A tick that finishes early sleeps for the rest of its budget.
func (s *Server) Run(ctx context.Context) {
	tickTime := s.cfg.TickTime()
	for {
		frameStart := time.Now()
		s.Tick()

		elapsed := time.Since(frameStart)
		if elapsed < tickTime {
			select {
			case <-ctx.Done():
				return
			case <-time.After(tickTime - elapsed):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// RunHeartbeat expires silent clients every interval until the context is
// cancelled.
func (s *Server) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Tick performs one step, resolves visibility for every client and
// publishes the result as the new frame. A panic inside the tick is logged
// and the world is left as it was.
func (s *Server) Tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked", "panic", r)
		}
	}()

	frozen := s.frozen.Load()

	s.mu.Lock()
	clients, boundary := s.registry.Snapshot()
	s.resizeLocked(boundary)
	var res sim.StepResult
	if frozen {
		res.Step = s.sim.StepCount()
	} else {
		res = s.sim.Step()
	}
	bodies := s.sim.Bodies()
	w, h := s.sim.Size()
	s.mu.Unlock()

	views := make([]viewport.Viewport, len(clients))
	for i, c := range clients {
		views[i] = viewport.Viewport{
			ClientID: c.ID,
			Bounds:   c.Bounds,
			ScreenW:  c.ScreenW,
			ScreenH:  c.ScreenH,
		}
	}
	resolver := viewport.Resolver{
		TileW:  s.cfg.TileWidth,
		TileH:  s.cfg.TileHeight,
		WorldW: int(w),
		WorldH: int(h),
		Wrap:   s.cfg.Wrap,
	}
	visible := resolver.Resolve(bodies, views)
	s.notifyCollisions(res.Collided, visible)

	s.seq++
	s.frame.Store(&Frame{
		Seq:      s.seq,
		Step:     res.Step,
		Frozen:   frozen,
		Boundary: boundary,
		Width:    int(w),
		Height:   int(h),
		Bodies:   len(bodies),
		Visible:  visible,
	})
}

// Frame returns the latest published frame. It must not be modified.
func (s *Server) Frame() *Frame {
	return s.frame.Load()
}

// AddClient registers a viewer, grows the world to cover its tile and tells
// every client the roster changed.
func (s *Server) AddClient(info world.ClientInfo) (world.Client, error) {
	c, err := s.registry.CreateClient(info)
	if err != nil {
		return world.Client{}, err
	}
	s.resizeToBoundary()
	s.registry.AddEventToAll(world.EventRoster)
	return c, nil
}

// RemoveClient unregisters a viewer and shrinks the world if its tile was on
// the boundary.
func (s *Server) RemoveClient(id int) bool {
	if !s.registry.RemoveClient(id) {
		return false
	}
	s.resizeToBoundary()
	s.registry.AddEventToAll(world.EventRoster)
	return true
}

// Heartbeat records that a client is alive.
func (s *Server) Heartbeat(id int) bool {
	return s.registry.Heartbeat(id)
}

// Sweep removes clients whose heartbeat is older than the configured timeout.
func (s *Server) Sweep() []int {
	removed := s.registry.Sweep(s.cfg.HeartbeatTimeout)
	if len(removed) > 0 {
		s.resizeToBoundary()
		s.registry.AddEventToAll(world.EventRoster)
	}
	return removed
}

// Client returns one registered client.
func (s *Server) Client(id int) (world.Client, bool) {
	return s.registry.Client(id)
}

// Clients returns every registered client ordered by id.
func (s *Server) Clients() []world.Client {
	return s.registry.Clients()
}

// resizeToBoundary matches the simulator extent to the registry boundary.
// The boundary is read under s.mu so the last resize always sees the newest
// roster.
func (s *Server) resizeToBoundary() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizeLocked(s.registry.Boundary())
}

// resizeLocked resizes the simulator to b tiles. s.mu must be held.
func (s *Server) resizeLocked(b image.Point) {
	w := float64(b.X * s.cfg.TileWidth)
	h := float64(b.Y * s.cfg.TileHeight)
	if cw, ch := s.sim.Size(); cw == w && ch == h {
		return
	}
	s.sim.Resize(w, h)
	s.logger.Debug("world resized", "boundary", b, "width", w, "height", h)
}

// ToggleFreeze suspends or resumes stepping and reports whether the world is
// now frozen.
func (s *Server) ToggleFreeze() bool {
	for {
		old := s.frozen.Load()
		if s.frozen.CompareAndSwap(old, !old) {
			s.registry.AddEventToAll(world.EventFreeze)
			s.logger.Info("freeze toggled", "frozen", !old)
			return !old
		}
	}
}

// Frozen reports whether stepping is suspended.
func (s *Server) Frozen() bool {
	return s.frozen.Load()
}

// AddRandomBody adds a body of the catalog shape with the given side at a
// random position, heading in a random direction at the initial speed.
func (s *Server) AddRandomBody(side int) (sim.Body, error) {
	sh, err := s.catalog.BySide(side)
	if err != nil {
		return sim.Body{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, h := s.sim.Size()
	angle := s.rng.Float64() * 2 * math.Pi
	body := sim.Body{
		Pos:     physics.Vec{X: s.rng.Float64() * w, Y: s.rng.Float64() * h},
		Vel:     physics.Vec{X: math.Cos(angle), Y: math.Sin(angle)}.Scale(s.cfg.InitialSpeed),
		Mass:    sh.Mass,
		Radius:  sh.Radius(),
		ShapeID: sh.ID,
	}
	placed := s.sim.AddBodies([]sim.Body{body})
	if len(placed) == 0 {
		return sim.Body{}, fmt.Errorf("add body of side %d: %w", side, ErrNoRoom)
	}
	return placed[0], nil
}

// AddBodies places bodies as given and returns the ones that found room.
func (s *Server) AddBodies(bodies []sim.Body) []sim.Body {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sim.AddBodies(bodies)
}

// View returns the step of the latest frame, the client's pending status
// (consuming it) and what the client sees in that frame.
func (s *Server) View(id int) (step, status uint8, visible []viewport.Visible, ok bool) {
	status, ok = s.registry.CalculateStatus(id)
	if !ok {
		return 0, 0, nil, false
	}
	f := s.frame.Load()
	return f.Step, status, f.Visible[id], true
}

// Status returns and clears the pending status of one client.
func (s *Server) Status(id int) (uint8, bool) {
	return s.registry.CalculateStatus(id)
}

// Poke marks a command as delivered to the client.
func (s *Server) Poke(id int) bool {
	return s.registry.AddEvent(id, world.EventCommand)
}

// StepCount is the wrap-around step counter.
func (s *Server) StepCount() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sim.StepCount()
}

// WorldSize is the world extent in pixels.
func (s *Server) WorldSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, h := s.sim.Size()
	return int(w), int(h)
}

// SizeHistogram counts bodies per side length; index i holds side i+1.
// Bodies larger than the configured maximum side are not counted.
func (s *Server) SizeHistogram() []int {
	hist := make([]int, s.cfg.MaxShapeSide)
	s.mu.Lock()
	bodies := s.sim.Bodies()
	s.mu.Unlock()
	for _, b := range bodies {
		if side := b.Side(); side >= 1 && side <= len(hist) {
			hist[side-1]++
		}
	}
	return hist
}

// Reset removes every body.
func (s *Server) Reset() {
	s.mu.Lock()
	n := s.sim.Len()
	s.sim.Reset()
	s.mu.Unlock()
	s.logger.Info("world reset", "removed", n)
}
