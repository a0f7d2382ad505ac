// Package protocol turns one-line text commands into calls on the world and
// encodes the results as the bytes sent back to the client.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tomz197/tileworld/internal/sim"
	"github.com/tomz197/tileworld/internal/viewport"
	"github.com/tomz197/tileworld/internal/world"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMalformed      = errors.New("malformed command")
)

// Failure is the whole response to any rejected command.
var Failure = []byte("ERR")

// Core is the part of the world a command can reach.
type Core interface {
	AddClient(info world.ClientInfo) (world.Client, error)
	RemoveClient(id int) bool
	Heartbeat(id int) bool
	ToggleFreeze() bool
	AddRandomBody(side int) (sim.Body, error)
	View(id int) (step, status uint8, visible []viewport.Visible, ok bool)
	Status(id int) (uint8, bool)
	Poke(id int) bool
	WorldSize() (int, int)
	SizeHistogram() []int
	StepCount() uint8
	Reset()
}

// Command is one parsed request line.
type Command struct {
	Name string
	Args []string
}

type handler struct {
	args  int
	usage string
	run   func(c Core, args []string) ([]byte, error)
}

var handlers = map[string]handler{
	"join":      {4, "join <name> <version> <screenW> <screenH>", join},
	"leave":     {1, "leave <id>", withID(leave)},
	"beat":      {1, "beat <id>", withID(beat)},
	"freeze":    {0, "freeze", freeze},
	"add":       {1, "add <side>", add},
	"view":      {1, "view <id>", withID(view)},
	"status":    {1, "status <id>", withID(status)},
	"poke":      {1, "poke <id>", withID(poke)},
	"size":      {0, "size", size},
	"histogram": {0, "histogram", histogram},
	"reset":     {0, "reset", reset},
	"step":      {0, "step", step},
}

// Names lists the known commands in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Usage returns the argument synopsis of a command.
func Usage(name string) (string, bool) {
	h, ok := handlers[name]
	return h.usage, ok
}

// Parse splits a request line and checks the command name and arity.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty line: %w", ErrMalformed)
	}
	cmd := Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
	h, ok := handlers[cmd.Name]
	if !ok {
		return Command{}, fmt.Errorf("%q: %w", fields[0], ErrUnknownCommand)
	}
	if len(cmd.Args) != h.args {
		return Command{}, fmt.Errorf("usage %s: %w", h.usage, ErrMalformed)
	}
	return cmd, nil
}

// Execute runs one request line against the core. A rejected command
// returns Failure together with the reason; the core is left untouched
// unless the command succeeded.
func Execute(c Core, line string) ([]byte, error) {
	cmd, err := Parse(line)
	if err != nil {
		return Failure, err
	}
	resp, err := handlers[cmd.Name].run(c, cmd.Args)
	if err != nil {
		return Failure, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return resp, nil
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number: %w", s, ErrMalformed)
	}
	return n, nil
}

func withID(run func(c Core, id int) ([]byte, error)) func(Core, []string) ([]byte, error) {
	return func(c Core, args []string) ([]byte, error) {
		id, err := parseInt(args[0])
		if err != nil {
			return nil, err
		}
		return run(c, id)
	}
}

func acknowledge(done bool, id int) ([]byte, error) {
	if !done {
		return nil, fmt.Errorf("client %d: %w", id, world.ErrUnknownClient)
	}
	return []byte("OK"), nil
}

func join(c Core, args []string) ([]byte, error) {
	w, err := parseInt(args[2])
	if err != nil {
		return nil, err
	}
	h, err := parseInt(args[3])
	if err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("screen %dx%d: %w", w, h, ErrMalformed)
	}
	client, err := c.AddClient(world.ClientInfo{Name: args[0], Version: args[1], ScreenW: w, ScreenH: h})
	if err != nil {
		return nil, err
	}
	return strconv.AppendInt(nil, int64(client.ID), 10), nil
}

func leave(c Core, id int) ([]byte, error) {
	return acknowledge(c.RemoveClient(id), id)
}

func beat(c Core, id int) ([]byte, error) {
	return acknowledge(c.Heartbeat(id), id)
}

func poke(c Core, id int) ([]byte, error) {
	return acknowledge(c.Poke(id), id)
}

func freeze(c Core, _ []string) ([]byte, error) {
	if c.ToggleFreeze() {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func add(c Core, args []string) ([]byte, error) {
	side, err := parseInt(args[0])
	if err != nil {
		return nil, err
	}
	body, err := c.AddRandomBody(side)
	if err != nil {
		return nil, err
	}
	return strconv.AppendInt(nil, int64(body.ID), 10), nil
}

func view(c Core, id int) ([]byte, error) {
	stepNo, st, visible, found := c.View(id)
	if !found {
		return nil, fmt.Errorf("client %d: %w", id, world.ErrUnknownClient)
	}
	return EncodeView(stepNo, st, visible), nil
}

func status(c Core, id int) ([]byte, error) {
	st, found := c.Status(id)
	if !found {
		return nil, fmt.Errorf("client %d: %w", id, world.ErrUnknownClient)
	}
	return []byte{st}, nil
}

func size(c Core, _ []string) ([]byte, error) {
	w, h := c.WorldSize()
	return EncodeSize(w, h), nil
}

func histogram(c Core, _ []string) ([]byte, error) {
	return EncodeHistogram(c.SizeHistogram()), nil
}

func reset(c Core, _ []string) ([]byte, error) {
	c.Reset()
	return []byte("OK"), nil
}

func step(c Core, _ []string) ([]byte, error) {
	return []byte{c.StepCount()}, nil
}

// EncodeView writes the step byte, the status byte and then one
// "shape,x,y,body" row per visible body, rows separated by ';'.
func EncodeView(step, status uint8, visible []viewport.Visible) []byte {
	buf := make([]byte, 0, 2+len(visible)*16)
	buf = append(buf, step, status)
	for i, v := range visible {
		if i > 0 {
			buf = append(buf, ';')
		}
		buf = strconv.AppendInt(buf, int64(v.ShapeID), 10)
		buf = append(buf, ',')
		buf = strconv.AppendInt(buf, int64(v.X), 10)
		buf = append(buf, ',')
		buf = strconv.AppendInt(buf, int64(v.Y), 10)
		buf = append(buf, ',')
		buf = strconv.AppendInt(buf, int64(v.BodyID), 10)
	}
	return buf
}

// EncodeSize writes width and height as little-endian uint16 values.
func EncodeSize(w, h int) []byte {
	buf := make([]byte, 0, 4)
	buf = binary.LittleEndian.AppendUint16(buf, clampUint16(w))
	buf = binary.LittleEndian.AppendUint16(buf, clampUint16(h))
	return buf
}

// EncodeHistogram writes every count as a little-endian uint16.
func EncodeHistogram(counts []int) []byte {
	buf := make([]byte, 0, 2*len(counts))
	for _, n := range counts {
		buf = binary.LittleEndian.AppendUint16(buf, clampUint16(n))
	}
	return buf
}

func clampUint16(n int) uint16 {
	return uint16(min(max(n, 0), 0xffff))
}
