package world

import (
	"errors"
	"image"
	"io"
	"iter"
	"slices"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestRegistry(loc Locations) (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := NewRegistry(Options{
		TileW:     200,
		TileH:     100,
		Locations: loc,
		Now:       clock.Now,
		Logger:    log.New(io.Discard),
	})
	return r, clock
}

func take(seq iter.Seq[image.Point], n int) []image.Point {
	var out []image.Point
	for p := range seq {
		out = append(out, p)
		if len(out) == n {
			break
		}
	}
	return out
}

func TestLocationPatterns(t *testing.T) {
	cases := []struct {
		name string
		want []image.Point
	}{
		{"spiral", []image.Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {2, 0}, {2, 1}, {2, 2}, {1, 2}, {0, 2}, {3, 0}}},
		{"line", []image.Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}}},
		{"diamond", []image.Point{{0, 0}, {1, 0}, {0, 1}, {2, 0}, {1, 1}, {0, 2}, {3, 0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loc, err := LocationsByName(tc.name)
			if err != nil {
				t.Fatalf("LocationsByName: %v", err)
			}
			if got := take(loc(), len(tc.want)); !slices.Equal(got, tc.want) {
				t.Fatalf("sequence = %v, want %v", got, tc.want)
			}
		})
	}

	if _, err := LocationsByName("zigzag"); err == nil {
		t.Fatalf("expected error for unknown pattern")
	}
}

func TestCreateClientAssignsTilesAndGrowsBoundary(t *testing.T) {
	r, _ := newTestRegistry(Spiral)
	if b := r.Boundary(); b != image.Pt(1, 1) {
		t.Fatalf("empty boundary = %v, want (1,1)", b)
	}

	wantTiles := []image.Point{{0, 0}, {1, 0}, {1, 1}}
	wantBoundary := []image.Point{{1, 1}, {2, 1}, {2, 2}}
	for i := range wantTiles {
		c, err := r.CreateClient(ClientInfo{Name: "viewer", ScreenW: 800, ScreenH: 400})
		if err != nil {
			t.Fatalf("CreateClient: %v", err)
		}
		if c.ID != i+1 || c.Tile != wantTiles[i] {
			t.Fatalf("client %d tile = %v, want %v", c.ID, c.Tile, wantTiles[i])
		}
		if b := r.Boundary(); b != wantBoundary[i] {
			t.Fatalf("boundary after %d clients = %v, want %v", i+1, b, wantBoundary[i])
		}
	}

	c, _ := r.Client(3)
	if want := image.Rect(200, 100, 400, 200); c.Bounds != want {
		t.Fatalf("bounds = %v, want %v", c.Bounds, want)
	}

	clients, b := r.Snapshot()
	if len(clients) != 3 || clients[0].ID != 1 || b != image.Pt(2, 2) {
		t.Fatalf("snapshot = %d clients, boundary %v", len(clients), b)
	}
}

func TestRemoveClientFreesTileForReuse(t *testing.T) {
	r, _ := newTestRegistry(Line)
	for i := 0; i < 3; i++ {
		if _, err := r.CreateClient(ClientInfo{Name: "v"}); err != nil {
			t.Fatalf("CreateClient: %v", err)
		}
	}
	if !r.RemoveClient(2) {
		t.Fatalf("RemoveClient(2) = false")
	}
	if r.RemoveClient(2) {
		t.Fatalf("second RemoveClient(2) = true")
	}
	if b := r.Boundary(); b != image.Pt(3, 1) {
		t.Fatalf("boundary = %v, want (3,1)", b)
	}
	r.RemoveClient(3)
	if b := r.Boundary(); b != image.Pt(1, 1) {
		t.Fatalf("boundary = %v, want (1,1)", b)
	}

	c, err := r.CreateClient(ClientInfo{Name: "late"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if c.Tile != image.Pt(1, 0) || c.ID != 4 {
		t.Fatalf("new client = id %d tile %v, want id 4 tile (1,0)", c.ID, c.Tile)
	}
}

func TestCreateClientFailsWhenLocationsRunOut(t *testing.T) {
	single := func() iter.Seq[image.Point] {
		return func(yield func(image.Point) bool) {
			yield(image.Pt(0, 0))
		}
	}
	r, _ := newTestRegistry(single)
	if _, err := r.CreateClient(ClientInfo{Name: "a"}); err != nil {
		t.Fatalf("first CreateClient: %v", err)
	}
	_, err := r.CreateClient(ClientInfo{Name: "b"})
	if !errors.Is(err, ErrNoFreeTile) {
		t.Fatalf("err = %v, want ErrNoFreeTile", err)
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
}

func TestSweepExpiresSilentClients(t *testing.T) {
	r, clock := newTestRegistry(Spiral)
	a, _ := r.CreateClient(ClientInfo{Name: "a"})
	b, _ := r.CreateClient(ClientInfo{Name: "b"})

	clock.Advance(4 * time.Second)
	if !r.Heartbeat(b.ID) {
		t.Fatalf("Heartbeat(%d) = false", b.ID)
	}
	if r.Heartbeat(99) {
		t.Fatalf("Heartbeat(99) = true for unknown client")
	}
	clock.Advance(2 * time.Second)

	removed := r.Sweep(5 * time.Second)
	if !slices.Equal(removed, []int{a.ID}) {
		t.Fatalf("removed = %v, want [%d]", removed, a.ID)
	}
	if _, ok := r.Client(a.ID); ok {
		t.Fatalf("client %d still registered", a.ID)
	}
	if _, ok := r.Client(b.ID); !ok {
		t.Fatalf("client %d was removed", b.ID)
	}
}

func TestStatusIsConsumedOnce(t *testing.T) {
	r, _ := newTestRegistry(Spiral)
	a, _ := r.CreateClient(ClientInfo{Name: "a"})
	b, _ := r.CreateClient(ClientInfo{Name: "b"})

	r.AddEvent(a.ID, EventCollision)
	r.AddEvent(a.ID, EventCollision)
	r.AddEventToAll(EventRoster)
	r.AddEvent(a.ID, EventCommand)

	if got, _ := r.CalculateStatus(a.ID); got != 1+4+8 {
		t.Fatalf("status = %d, want 13", got)
	}
	if got, _ := r.CalculateStatus(a.ID); got != 0 {
		t.Fatalf("second status = %d, want 0", got)
	}
	if got, _ := r.CalculateStatus(b.ID); got != 4 {
		t.Fatalf("status of b = %d, want 4", got)
	}
	r.AddEvent(a.ID, EventFreeze)
	if got, _ := r.CalculateStatus(a.ID); got != 2 {
		t.Fatalf("status after new event = %d, want 2", got)
	}

	if r.AddEvent(42, EventFreeze) {
		t.Fatalf("AddEvent for unknown client = true")
	}
	if _, ok := r.CalculateStatus(42); ok {
		t.Fatalf("CalculateStatus for unknown client ok = true")
	}
}

func TestRemoveClientDropsPendingEvents(t *testing.T) {
	r, _ := newTestRegistry(Spiral)
	a, _ := r.CreateClient(ClientInfo{Name: "a"})
	r.AddEvent(a.ID, EventFreeze)
	r.RemoveClient(a.ID)
	if _, ok := r.CalculateStatus(a.ID); ok {
		t.Fatalf("removed client still has status")
	}
}
