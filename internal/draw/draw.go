// Package draw renders a client's view of the world as terminal text.
package draw

import (
	"io"
	"math"

	"github.com/tomz197/tileworld/internal/shape"
	"github.com/tomz197/tileworld/internal/viewport"
)

// Block characters for drawing.
const (
	BlockFull      = '█'
	BlockEmpty     = ' '
	BlockUpperHalf = '▀'
	BlockLowerHalf = '▄'
)

// View is everything needed to draw one client's screen.
type View struct {
	ScreenW, ScreenH int     // client screen pixels
	ScaleX, ScaleY   float64 // screen pixels per world pixel
	Visible          []viewport.Visible
}

// Render draws the view cols characters wide. Rows are chosen so that
// screen pixels stay square. Shapes missing from the catalog are skipped.
func (v View) Render(w io.Writer, catalog *shape.Catalog, cols int) error {
	if v.ScreenW <= 0 || v.ScreenH <= 0 || cols <= 0 {
		return nil
	}
	rows := max(1, int(math.Round(float64(cols)*float64(v.ScreenH)/float64(v.ScreenW)/2)))
	c := NewScaledCanvas(cols, rows, float64(v.ScreenW), float64(v.ScreenH))

	for _, vis := range v.Visible {
		s, err := catalog.Get(vis.ShapeID)
		if err != nil {
			continue
		}
		Stamp(c, s, vis.X, vis.Y, v.ScaleX, v.ScaleY)
	}
	return c.Render(w)
}

// Stamp draws a shape whose center pixel lands on (cx, cy), every shape pixel
// covering sx by sy logical pixels. Even sides put the extra pixel up and left
// of the center, matching how visibility places bodies.
func Stamp(c *Canvas, s shape.Shape, cx, cy int, sx, sy float64) {
	lo := s.Side / 2
	for y := 0; y < s.Side; y++ {
		for x := 0; x < s.Side; x++ {
			if s.Pixels[y*s.Side+x] == 0 {
				continue
			}
			c.FillRect(float64(cx)+float64(x-lo)*sx, float64(cy)+float64(y-lo)*sy, sx, sy)
		}
	}
}
