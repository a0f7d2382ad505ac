package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/tomz197/tileworld/internal/config"
	defaults "github.com/tomz197/tileworld/internal/loop/config"
	"github.com/tomz197/tileworld/internal/loop/server"
	"github.com/tomz197/tileworld/internal/shape"
	"github.com/tomz197/tileworld/internal/transport/sshd"
	"github.com/tomz197/tileworld/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tileworld: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)

	catalog := shape.Default(cfg.MaxShapeSide)
	if cfg.ShapesPath != "" {
		if catalog, err = shape.Load(cfg.ShapesPath); err != nil {
			return err
		}
		cfg.MaxShapeSide = max(cfg.MaxShapeSide, catalog.MaxSide())
	}

	world, err := server.NewServer(server.Options{
		Config:  cfg,
		Catalog: catalog,
		Logger:  logger.WithPrefix("world"),
	})
	if err != nil {
		return err
	}

	sshServer, err := sshd.New(world, sshd.Options{
		Addr:        net.JoinHostPort(cfg.SSHHost, cfg.SSHPort),
		HostKeyPath: cfg.SSHHostKey,
		IdleTimeout: cfg.IdleTimeout,
		Logger:      logger.WithPrefix("ssh"),
	})
	if err != nil {
		return err
	}
	wsServer := ws.New(world, ws.Options{
		Addr:        net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort),
		IdleTimeout: cfg.IdleTimeout,
		TickTime:    cfg.TickTime(),
		Logger:      logger.WithPrefix("http"),

		SSHDisplayHost: cfg.SSHDisplayHost,
		SSHPort:        cfg.SSHPort,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	logger.Info("world started",
		"tile", fmt.Sprintf("%dx%d", cfg.TileWidth, cfg.TileHeight),
		"ups", cfg.UpdatesPerSecond, "wrap", cfg.Wrap, "pattern", cfg.LocationPattern,
		"shapes", len(catalog.Shapes()))

	g.Go(func() error {
		world.Run(ctx)
		return nil
	})
	g.Go(func() error {
		world.RunHeartbeat(ctx)
		return nil
	})
	g.Go(sshServer.ListenAndServe)
	g.Go(wsServer.ListenAndServe)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaults.ShutdownTimeout)
		defer cancel()
		sshErr := sshServer.Shutdown(shutdownCtx)
		wsErr := wsServer.Shutdown(shutdownCtx)
		if sshErr != nil {
			return fmt.Errorf("ssh shutdown: %w", sshErr)
		}
		if wsErr != nil {
			return fmt.Errorf("http shutdown: %w", wsErr)
		}
		return nil
	})

	return g.Wait()
}
