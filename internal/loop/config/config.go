// Package config centralizes the default tunables of the world.
package config

import "time"

// Tile size - the part of the world one client displays, in world pixels.
// The world is a grid of tiles that grows as clients join.
const (
	TileWidth  = 200
	TileHeight = 200
)

// Simulation tick rate
const (
	UpdatesPerSecond = 30
	InitialSpeed     = 20.0 // world pixels per second for randomly added bodies
)

// Bodies
const (
	MaxShapeSide = 16
)

// Broad phase
const (
	QuadtreeMaxElements = 8
	QuadtreeMaxDepth    = 8
)

// Clients
const (
	LocationPattern   = "spiral"
	HeartbeatTimeout  = 15 * time.Second
	HeartbeatInterval = 5 * time.Second
	IdleTimeout       = 2 * time.Minute // connections sending no command are closed
)

// Shutdown
const (
	ShutdownTimeout = 5 * time.Second
)
