package config

import (
	"errors"
	"fmt"
	"time"

	defaults "github.com/tomz197/tileworld/internal/loop/config"
	"github.com/tomz197/tileworld/internal/world"
)

// Config is the fixed parameter bundle the world is built from.
type Config struct {
	TileWidth        int
	TileHeight       int
	UpdatesPerSecond int
	InitialSpeed     float64
	Wrap             bool
	LocationPattern  string

	MaxShapeSide int
	ShapesPath   string // empty: generated catalog

	QuadtreeMaxElements int
	QuadtreeMaxDepth    int

	HeartbeatTimeout  time.Duration
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration

	SSHHost        string
	SSHPort        string
	SSHHostKey     string
	SSHDisplayHost string // host name printed in connection instructions
	HTTPHost       string
	HTTPPort       string

	LogLevel string
}

// TickTime is the duration of one simulation step.
func (c Config) TickTime() time.Duration {
	return time.Second / time.Duration(c.UpdatesPerSecond)
}

// Load reads the configuration from the environment. Every invalid variable
// is reported, not only the first.
func Load() (Config, error) {
	var errs []error
	intVar := func(key string, fallback int) int {
		n, err := GetEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		d, err := GetEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	cfg := Config{
		TileWidth:           intVar("TILE_WIDTH", defaults.TileWidth),
		TileHeight:          intVar("TILE_HEIGHT", defaults.TileHeight),
		UpdatesPerSecond:    intVar("UPDATES_PER_SECOND", defaults.UpdatesPerSecond),
		LocationPattern:     GetEnv("LOCATION_PATTERN", defaults.LocationPattern),
		MaxShapeSide:        intVar("MAX_SHAPE_SIDE", defaults.MaxShapeSide),
		ShapesPath:          GetEnv("SHAPES_PATH", ""),
		QuadtreeMaxElements: intVar("QUADTREE_MAX_ELEMENTS", defaults.QuadtreeMaxElements),
		QuadtreeMaxDepth:    intVar("QUADTREE_MAX_DEPTH", defaults.QuadtreeMaxDepth),
		HeartbeatTimeout:    durVar("HEARTBEAT_TIMEOUT", defaults.HeartbeatTimeout),
		HeartbeatInterval:   durVar("HEARTBEAT_INTERVAL", defaults.HeartbeatInterval),
		IdleTimeout:         durVar("IDLE_TIMEOUT", defaults.IdleTimeout),
		SSHHost:             GetEnv("SSH_HOST", "::"),
		SSHPort:             GetEnv("SSH_PORT", "2222"),
		SSHHostKey:          GetEnv("SSH_HOST_KEY", ".ssh/host_key"),
		SSHDisplayHost:      GetEnv("SSH_DISPLAY_HOST", "localhost"),
		HTTPHost:            GetEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort:            GetEnv("HTTP_PORT", "8080"),
		LogLevel:            GetEnv("LOG_LEVEL", "info"),
	}

	speed, err := GetEnvFloat("INITIAL_SPEED", defaults.InitialSpeed)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.InitialSpeed = speed

	wrap, err := GetEnvBool("WRAP", true)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Wrap = wrap

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the values Load cannot check while parsing.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("TILE_WIDTH", c.TileWidth)
	positive("TILE_HEIGHT", c.TileHeight)
	positive("UPDATES_PER_SECOND", c.UpdatesPerSecond)
	positive("MAX_SHAPE_SIDE", c.MaxShapeSide)
	positive("QUADTREE_MAX_ELEMENTS", c.QuadtreeMaxElements)
	positive("QUADTREE_MAX_DEPTH", c.QuadtreeMaxDepth)
	if c.HeartbeatTimeout <= 0 || c.HeartbeatInterval <= 0 || c.IdleTimeout <= 0 {
		errs = append(errs, errors.New("HEARTBEAT_TIMEOUT, HEARTBEAT_INTERVAL and IDLE_TIMEOUT must be positive"))
	}
	if _, err := world.LocationsByName(c.LocationPattern); err != nil {
		errs = append(errs, fmt.Errorf("LOCATION_PATTERN: %w", err))
	}
	if c.InitialSpeed < 0 {
		errs = append(errs, fmt.Errorf("INITIAL_SPEED must not be negative, got %v", c.InitialSpeed))
	}
	return errors.Join(errs...)
}
