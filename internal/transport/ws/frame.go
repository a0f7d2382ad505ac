package ws

import "github.com/tomz197/tileworld/internal/loop/server"

// WireFrame is the msgpack form of one client's view of a frame.
type WireFrame struct {
	Seq      uint64   `msgpack:"seq"`
	Step     uint8    `msgpack:"step"`
	Frozen   bool     `msgpack:"frozen"`
	Boundary [2]int   `msgpack:"boundary"` // tiles
	Size     [2]int   `msgpack:"size"`     // world pixels
	Shapes   [][4]int `msgpack:"shapes"`   // shape id, x, y, body id
}

func NewWireFrame(f *server.Frame, clientID int) WireFrame {
	visible := f.For(clientID)
	shapes := make([][4]int, len(visible))
	for i, v := range visible {
		shapes[i] = [4]int{v.ShapeID, v.X, v.Y, v.BodyID}
	}
	return WireFrame{
		Seq:      f.Seq,
		Step:     f.Step,
		Frozen:   f.Frozen,
		Boundary: [2]int{f.Boundary.X, f.Boundary.Y},
		Size:     [2]int{f.Width, f.Height},
		Shapes:   shapes,
	}
}
