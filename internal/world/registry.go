// Package world keeps track of the clients sharing the world: which tile
// each one owns, when it was last heard from, how large the world has grown
// and which status events are waiting for it.
package world

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	ErrUnknownClient = errors.New("unknown client")
	ErrNoFreeTile    = errors.New("no free tile")
)

// ClientInfo is what a client announces when it joins.
type ClientInfo struct {
	Name    string
	Version string
	ScreenW int
	ScreenH int
}

// Client is a registered viewer owning one tile of the world.
type Client struct {
	ID int
	ClientInfo
	Tile   image.Point
	Bounds image.Rectangle // world pixels covered by Tile
}

// Options configures a Registry.
type Options struct {
	TileW, TileH int
	Locations    Locations
	Now          func() time.Time
	Logger       *log.Logger
}

// Registry is safe for concurrent use. Every method holds the lock for a
// single map operation or a short scan; nothing blocks while holding it.
type Registry struct {
	mu         sync.RWMutex
	clients    map[int]*Client
	occupied   map[image.Point]int
	heartbeats map[int]time.Time
	events     map[int]Event
	boundary   image.Point
	nextID     int

	tileW, tileH int
	locations    Locations
	now          func() time.Time
	logger       *log.Logger
}

func NewRegistry(opts Options) *Registry {
	if opts.Locations == nil {
		opts.Locations = Spiral
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Registry{
		clients:    make(map[int]*Client),
		occupied:   make(map[image.Point]int),
		heartbeats: make(map[int]time.Time),
		events:     make(map[int]Event),
		boundary:   image.Pt(1, 1),
		tileW:      opts.TileW,
		tileH:      opts.TileH,
		locations:  opts.Locations,
		now:        opts.Now,
		logger:     opts.Logger,
	}
}

// CreateClient assigns the first unoccupied tile of the location sequence
// to a new client and grows the boundary to cover it.
func (r *Registry) CreateClient(info ClientInfo) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tile, err := r.freeTileLocked()
	if err != nil {
		return Client{}, fmt.Errorf("create client %q: %w", info.Name, err)
	}

	r.nextID++
	c := &Client{
		ID:         r.nextID,
		ClientInfo: info,
		Tile:       tile,
		Bounds:     image.Rect(tile.X*r.tileW, tile.Y*r.tileH, (tile.X+1)*r.tileW, (tile.Y+1)*r.tileH),
	}
	r.clients[c.ID] = c
	r.occupied[tile] = c.ID
	r.heartbeats[c.ID] = r.now()
	r.recomputeBoundaryLocked()

	r.logger.Info("client joined", "id", c.ID, "name", info.Name, "version", info.Version,
		"tile", tile, "boundary", r.boundary)
	return *c, nil
}

// freeTileLocked pulls tiles from the location sequence until one is free.
// Sequences never repeat a tile, so one more attempt than there are clients
// always suffices; anything beyond that means the sequence is broken.
func (r *Registry) freeTileLocked() (image.Point, error) {
	limit := len(r.occupied) + 1
	attempts := 0
	for tile := range r.locations() {
		if _, taken := r.occupied[tile]; !taken {
			return tile, nil
		}
		attempts++
		if attempts >= limit {
			break
		}
	}
	return image.Point{}, ErrNoFreeTile
}

// RemoveClient frees the client's tile and drops its heartbeat and pending
// events. It reports whether the client existed.
func (r *Registry) RemoveClient(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return false
	}
	delete(r.clients, id)
	delete(r.occupied, c.Tile)
	delete(r.heartbeats, id)
	delete(r.events, id)
	r.recomputeBoundaryLocked()

	r.logger.Info("client left", "id", id, "name", c.Name, "boundary", r.boundary)
	return true
}

// recomputeBoundaryLocked sets the boundary to the smallest rectangle from the
// origin covering every occupied tile, (1,1) when there are none.
func (r *Registry) recomputeBoundaryLocked() {
	b := image.Pt(1, 1)
	for tile := range r.occupied {
		b.X = max(b.X, tile.X+1)
		b.Y = max(b.Y, tile.Y+1)
	}
	r.boundary = b
}

// Heartbeat records that the client is alive.
func (r *Registry) Heartbeat(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	r.heartbeats[id] = r.now()
	return true
}

// Sweep removes every client not heard from within timeout and returns their
// ids. It works on a snapshot of the ids so clients may come and go meanwhile.
func (r *Registry) Sweep(timeout time.Duration) []int {
	now := r.now()

	r.mu.RLock()
	var stale []int
	for id, last := range r.heartbeats {
		if now.Sub(last) > timeout {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	slices.Sort(stale)
	removed := stale[:0]
	for _, id := range stale {
		if r.RemoveClient(id) {
			r.logger.Warn("client heartbeat expired", "id", id, "timeout", timeout)
			removed = append(removed, id)
		}
	}
	return removed
}

// Client returns a copy of one client.
func (r *Registry) Client(id int) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return Client{}, false
	}
	return *c, true
}

// Clients returns copies of every client ordered by id.
func (r *Registry) Clients() []Client {
	clients, _ := r.Snapshot()
	return clients
}

// Snapshot returns every client ordered by id together with the boundary
// they span, both read under one lock.
func (r *Registry) Snapshot() ([]Client, image.Point) {
	r.mu.RLock()
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, *c)
	}
	b := r.boundary
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b Client) int { return a.ID - b.ID })
	return out, b
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Boundary is the world size in tiles.
func (r *Registry) Boundary() image.Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.boundary
}

// TileSize is the size of one tile in world pixels.
func (r *Registry) TileSize() (int, int) {
	return r.tileW, r.tileH
}
