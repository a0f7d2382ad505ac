package server

import (
	"context"
	"errors"
	"image"
	"io"
	"math/rand"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tomz197/tileworld/internal/config"
	"github.com/tomz197/tileworld/internal/physics"
	"github.com/tomz197/tileworld/internal/shape"
	"github.com/tomz197/tileworld/internal/sim"
	"github.com/tomz197/tileworld/internal/world"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func testConfig() config.Config {
	return config.Config{
		TileWidth:           100,
		TileHeight:          100,
		UpdatesPerSecond:    1,
		InitialSpeed:        2,
		Wrap:                true,
		LocationPattern:     "line",
		MaxShapeSide:        4,
		QuadtreeMaxElements: 4,
		QuadtreeMaxDepth:    6,
		HeartbeatTimeout:    10 * time.Second,
		HeartbeatInterval:   time.Second,
		IdleTimeout:         time.Minute,
	}
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(5000, 0)}
	s, err := NewServer(Options{
		Config:  cfg,
		Catalog: shape.Default(cfg.MaxShapeSide),
		Logger:  log.New(io.Discard),
		Now:     clock.Now,
		Rand:    rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, clock
}

func TestNewServerRejectsUnknownPattern(t *testing.T) {
	cfg := testConfig()
	cfg.LocationPattern = "zigzag"
	if _, err := NewServer(Options{Config: cfg, Logger: log.New(io.Discard)}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestClientsResizeTheWorld(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	if w, h := s.WorldSize(); w != 100 || h != 100 {
		t.Fatalf("empty world = %dx%d, want 100x100", w, h)
	}

	a, _ := s.AddClient(world.ClientInfo{Name: "a", ScreenW: 100, ScreenH: 100})
	b, _ := s.AddClient(world.ClientInfo{Name: "b", ScreenW: 100, ScreenH: 100})
	if w, h := s.WorldSize(); w != 200 || h != 100 {
		t.Fatalf("world = %dx%d, want 200x100", w, h)
	}
	if st, _ := s.Status(a.ID); st != uint8(world.EventRoster) {
		t.Fatalf("status of a = %d, want roster", st)
	}

	s.RemoveClient(b.ID)
	if w, _ := s.WorldSize(); w != 100 {
		t.Fatalf("width after leave = %d, want 100", w)
	}
	if s.RemoveClient(b.ID) {
		t.Fatalf("second RemoveClient = true")
	}
}

func TestConcurrentRosterChangesLeaveMatchingSize(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	if _, err := s.AddClient(world.ClientInfo{Name: "anchor", ScreenW: 100, ScreenH: 100}); err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c, err := s.AddClient(world.ClientInfo{Name: "churn", ScreenW: 100, ScreenH: 100})
				if err != nil {
					t.Errorf("AddClient: %v", err)
					return
				}
				s.RemoveClient(c.ID)
			}
		}()
	}
	wg.Wait()

	b := s.registry.Boundary()
	if w, h := s.WorldSize(); w != b.X*100 || h != b.Y*100 {
		t.Fatalf("world = %dx%d, boundary %v wants %dx%d", w, h, b, b.X*100, b.Y*100)
	}
}

func TestTickFrameAgreesWithRoster(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	s.AddClient(world.ClientInfo{Name: "a", ScreenW: 100, ScreenH: 100})
	// Joined in the registry but not yet resized.
	if _, err := s.registry.CreateClient(world.ClientInfo{Name: "late", ScreenW: 100, ScreenH: 100}); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	s.Tick()
	f := s.Frame()
	if f.Boundary != image.Pt(2, 1) || f.Width != 200 || f.Height != 100 {
		t.Fatalf("frame boundary %v size %dx%d, want (2,1) 200x100", f.Boundary, f.Width, f.Height)
	}
	if w, _ := s.WorldSize(); w != 200 {
		t.Fatalf("world width = %d, want 200", w)
	}
}

func TestTickPublishesVisibleFrame(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	a, _ := s.AddClient(world.ClientInfo{Name: "a", ScreenW: 200, ScreenH: 200})
	b, _ := s.AddClient(world.ClientInfo{Name: "b", ScreenW: 100, ScreenH: 100})
	placed := s.AddBodies([]sim.Body{
		{Pos: physics.Vec{X: 50, Y: 50}, Mass: 1, Radius: 0.5, ShapeID: 1},
		{Pos: physics.Vec{X: 150, Y: 20}, Mass: 1, Radius: 0.5, ShapeID: 1},
	})
	if len(placed) != 2 {
		t.Fatalf("placed %d bodies, want 2", len(placed))
	}

	s.Tick()
	f := s.Frame()
	if f.Seq != 1 || f.Step != 1 || f.Boundary != image.Pt(2, 1) || f.Bodies != 2 {
		t.Fatalf("frame = %+v", f)
	}

	step, _, visA, ok := s.View(a.ID)
	if !ok || step != 1 {
		t.Fatalf("View(a) step=%d ok=%v", step, ok)
	}
	if len(visA) != 1 || visA[0].BodyID != placed[0].ID || visA[0].X != 100 || visA[0].Y != 100 {
		t.Fatalf("visible to a = %+v", visA)
	}
	visB := f.For(b.ID)
	if len(visB) != 1 || visB[0].BodyID != placed[1].ID || visB[0].X != 50 || visB[0].Y != 20 {
		t.Fatalf("visible to b = %+v", visB)
	}

	if _, _, _, ok := s.View(99); ok {
		t.Fatalf("View(99) ok = true")
	}
}

func TestFreezeStopsStepping(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	a, _ := s.AddClient(world.ClientInfo{Name: "a", ScreenW: 100, ScreenH: 100})
	s.Status(a.ID)

	s.AddBodies([]sim.Body{{Pos: physics.Vec{X: 10, Y: 10}, Vel: physics.Vec{X: 1}, Mass: 1, Radius: 1, ShapeID: 2}})
	s.Tick()

	if !s.ToggleFreeze() || !s.Frozen() {
		t.Fatalf("ToggleFreeze did not freeze")
	}
	s.Tick()
	s.Tick()
	if got := s.StepCount(); got != 1 {
		t.Fatalf("step count while frozen = %d, want 1", got)
	}
	f := s.Frame()
	if !f.Frozen || f.Seq != 3 || f.Step != 1 {
		t.Fatalf("frozen frame = %+v", f)
	}
	if st, _ := s.Status(a.ID); st != uint8(world.EventFreeze) {
		t.Fatalf("status = %d, want freeze", st)
	}

	if s.ToggleFreeze() {
		t.Fatalf("second ToggleFreeze still frozen")
	}
	s.Tick()
	if got := s.StepCount(); got != 2 {
		t.Fatalf("step count after thaw = %d, want 2", got)
	}
}

func TestCollisionFlagsViewers(t *testing.T) {
	cfg := testConfig()
	cfg.LocationPattern = "spiral"
	s, _ := newTestServer(t, cfg)
	a, _ := s.AddClient(world.ClientInfo{Name: "a", ScreenW: 100, ScreenH: 100})
	b, _ := s.AddClient(world.ClientInfo{Name: "b", ScreenW: 100, ScreenH: 100})
	s.Status(a.ID)
	s.Status(b.ID)

	s.AddBodies([]sim.Body{
		{Pos: physics.Vec{X: 20, Y: 20}, Vel: physics.Vec{X: 1}, Mass: 1, Radius: 1, ShapeID: 2},
		{Pos: physics.Vec{X: 23, Y: 20}, Vel: physics.Vec{X: -1}, Mass: 1, Radius: 1, ShapeID: 2},
	})
	s.Tick()

	if st, _ := s.Status(a.ID); st&uint8(world.EventCollision) == 0 {
		t.Fatalf("status of a = %d, want collision", st)
	}
	if st, _ := s.Status(b.ID); st != 0 {
		t.Fatalf("status of b = %d, want 0", st)
	}
}

func TestAddRandomBodyAndHistogram(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	for _, side := range []int{1, 3, 3, 4} {
		b, err := s.AddRandomBody(side)
		if err != nil {
			t.Fatalf("AddRandomBody(%d): %v", side, err)
		}
		if b.Side() != side || b.Mass != float64(side*side) {
			t.Fatalf("body = %+v, want side %d", b, side)
		}
		if speed := b.Vel.Len(); speed < 1.999 || speed > 2.001 {
			t.Fatalf("speed = %v, want 2", speed)
		}
	}
	if _, err := s.AddRandomBody(5); !errors.Is(err, shape.ErrUnknownShape) {
		t.Fatalf("err = %v, want ErrUnknownShape", err)
	}

	if got := s.SizeHistogram(); !slices.Equal(got, []int{1, 0, 2, 1}) {
		t.Fatalf("histogram = %v", got)
	}

	s.Reset()
	if got := s.SizeHistogram(); !slices.Equal(got, []int{0, 0, 0, 0}) {
		t.Fatalf("histogram after reset = %v", got)
	}
}

func TestAddRandomBodyReportsFullWorld(t *testing.T) {
	cfg := testConfig()
	cfg.TileWidth, cfg.TileHeight = 4, 4
	s, _ := newTestServer(t, cfg)

	if _, err := s.AddRandomBody(4); err != nil {
		t.Fatalf("first body: %v", err)
	}
	if _, err := s.AddRandomBody(4); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("err = %v, want ErrNoRoom", err)
	}
}

func TestSweepAndPoke(t *testing.T) {
	s, clock := newTestServer(t, testConfig())
	a, _ := s.AddClient(world.ClientInfo{Name: "a"})
	b, _ := s.AddClient(world.ClientInfo{Name: "b"})

	clock.now = clock.now.Add(8 * time.Second)
	s.Heartbeat(b.ID)
	clock.now = clock.now.Add(5 * time.Second)

	if removed := s.Sweep(); !slices.Equal(removed, []int{a.ID}) {
		t.Fatalf("removed = %v, want [%d]", removed, a.ID)
	}
	if w, _ := s.WorldSize(); w != 200 {
		t.Fatalf("width = %d, want 200 while b holds tile 1", w)
	}

	s.Status(b.ID)
	if !s.Poke(b.ID) || s.Poke(a.ID) {
		t.Fatalf("Poke results wrong")
	}
	if st, _ := s.Status(b.ID); st != uint8(world.EventCommand) {
		t.Fatalf("status = %d, want command", st)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.UpdatesPerSecond = 200
	s, _ := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Frame().Seq < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("loop did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
