package server

import (
	"image"

	"github.com/tomz197/tileworld/internal/viewport"
)

// Frame is an immutable snapshot of one tick, shared by every reader until
// the next tick replaces it.
type Frame struct {
	Seq      uint64 // increases every tick, frozen or not
	Step     uint8
	Frozen   bool
	Boundary image.Point // tiles
	Width    int         // world pixels
	Height   int
	Bodies   int
	Visible  map[int][]viewport.Visible // keyed by client id
}

// For returns what one client sees in this frame.
func (f *Frame) For(clientID int) []viewport.Visible {
	return f.Visible[clientID]
}
