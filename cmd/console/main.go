// Command console runs a world in process and reads commands from the local
// terminal, without any network listener.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/tomz197/tileworld/internal/config"
	"github.com/tomz197/tileworld/internal/draw"
	"github.com/tomz197/tileworld/internal/loop/server"
	"github.com/tomz197/tileworld/internal/protocol"
	"github.com/tomz197/tileworld/internal/shape"
	tw "github.com/tomz197/tileworld/internal/world"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if err := runLines(cfg, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "console error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to enable raw mode: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
	}()

	cols, _, err := term.GetSize(fd)
	if err != nil || cols <= 0 {
		cols = 80
	}
	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "tileworld> ")
	if err := runTerminal(cfg, t, cols); err != nil {
		fmt.Fprintf(t, "console error: %v\r\n", err)
	}
}

func startWorld(cfg config.Config, logOut io.Writer) (*server.Server, *shape.Catalog, context.CancelFunc, error) {
	logger := log.New(logOut)
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	catalog := shape.Default(cfg.MaxShapeSide)
	if cfg.ShapesPath != "" {
		var err error
		if catalog, err = shape.Load(cfg.ShapesPath); err != nil {
			return nil, nil, nil, err
		}
		cfg.MaxShapeSide = max(cfg.MaxShapeSide, catalog.MaxSide())
	}
	world, err := server.NewServer(server.Options{Config: cfg, Catalog: catalog, Logger: logger})
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	go world.Run(ctx)
	go world.RunHeartbeat(ctx)
	return world, catalog, cancel, nil
}

// runTerminal drives the world from a line editor; responses are shown
// quoted since most of them are binary. "show <id>" draws what a client sees.
func runTerminal(cfg config.Config, t *term.Terminal, cols int) error {
	world, catalog, stop, err := startWorld(cfg, t)
	if err != nil {
		return err
	}
	defer stop()

	fmt.Fprintf(t, "commands: %s, show, quit\r\n", strings.Join(protocol.Names(), ", "))
	for {
		line, err := t.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		if fields := strings.Fields(line); fields[0] == "show" {
			if err := show(t, world, catalog, cfg, fields[1:], cols); err != nil {
				fmt.Fprintf(t, "show: %v\r\n", err)
			}
			continue
		}
		resp, err := protocol.Execute(world, line)
		if err != nil {
			fmt.Fprintf(t, "%q (%v)\r\n", resp, err)
			continue
		}
		fmt.Fprintf(t, "%q\r\n", resp)
	}
}

// show draws the latest frame as seen by one client.
func show(w io.Writer, world *server.Server, catalog *shape.Catalog, cfg config.Config, args []string, cols int) error {
	if len(args) != 1 {
		return errors.New("usage: show <id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	client, ok := world.Client(id)
	if !ok {
		return fmt.Errorf("client %d: %w", id, tw.ErrUnknownClient)
	}
	f := world.Frame()
	v := draw.View{
		ScreenW: client.ScreenW,
		ScreenH: client.ScreenH,
		ScaleX:  float64(client.ScreenW) / float64(cfg.TileWidth),
		ScaleY:  float64(client.ScreenH) / float64(cfg.TileHeight),
		Visible: f.For(id),
	}
	fmt.Fprintf(w, "step %d, %d bodies visible\n", f.Step, len(v.Visible))
	return v.Render(w, catalog, cols)
}

// runLines answers piped input one raw response per line.
func runLines(cfg config.Config, in io.Reader, out io.Writer) error {
	world, _, stop, err := startWorld(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer stop()

	w := bufio.NewWriter(out)
	defer w.Flush()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		resp, _ := protocol.Execute(world, scanner.Text())
		w.Write(resp)
		w.WriteByte('\n')
	}
	return scanner.Err()
}
