// Package viewport decides which bodies each client sees and where, in that
// client's own scaled screen coordinates.
package viewport

import (
	"cmp"
	"image"
	"math"
	"slices"

	"github.com/tomz197/tileworld/internal/physics"
	"github.com/tomz197/tileworld/internal/sim"
)

// Viewport is the part of the world one client displays.
type Viewport struct {
	ClientID int
	Bounds   image.Rectangle // world pixels, Min inclusive, Max exclusive
	ScreenW  int
	ScreenH  int
}

// Visible is one body image inside a viewport, in screen pixels.
type Visible struct {
	ShapeID int
	X, Y    int
	BodyID  int
}

// Resolver maps bodies onto viewports.
type Resolver struct {
	TileW, TileH   int // world pixels per tile
	WorldW, WorldH int // world pixels
	Wrap           bool
}

// corner is one corner pixel of a body's bounding square, with the offset
// from that pixel back to the body's center pixel.
type corner struct {
	x, y   int
	ox, oy int
}

// Resolve returns the visible set of every viewport, keyed by client id and
// ordered by body id then position. Viewports are matched in the given order;
// the first one containing a corner owns it.
func (r Resolver) Resolve(bodies []sim.Body, views []Viewport) map[int][]Visible {
	sets := make([]map[Visible]struct{}, len(views))
	for i := range sets {
		sets[i] = make(map[Visible]struct{})
	}

	for _, b := range bodies {
		for _, c := range corners(b) {
			x, y := r.fold(c.x, c.y)
			owner := -1
			for i, v := range views {
				if image.Pt(x, y).In(v.Bounds) {
					owner = i
					break
				}
			}
			if owner < 0 {
				continue
			}
			origin := views[owner].Bounds.Min
			sets[owner][Visible{
				ShapeID: b.ShapeID,
				X:       x + c.ox - origin.X,
				Y:       y + c.oy - origin.Y,
				BodyID:  b.ID,
			}] = struct{}{}
		}
	}

	out := make(map[int][]Visible, len(views))
	for i, v := range views {
		sx := scale(v.ScreenW, r.TileW)
		sy := scale(v.ScreenH, r.TileH)
		list := make([]Visible, 0, len(sets[i]))
		for vis := range sets[i] {
			vis.X = roundHalfUp(float64(vis.X) * sx)
			vis.Y = roundHalfUp(float64(vis.Y) * sy)
			list = append(list, vis)
		}
		slices.SortFunc(list, func(a, b Visible) int {
			return cmp.Or(cmp.Compare(a.BodyID, b.BodyID), cmp.Compare(a.X, b.X), cmp.Compare(a.Y, b.Y))
		})
		out[v.ClientID] = list
	}
	return out
}

// corners returns the four corner pixels of the body's bounding square. The
// center pixel is the rounded position; an even side has no middle pixel, so
// the square extends one pixel further up and left than down and right.
func corners(b sim.Body) [4]corner {
	d := b.Side()
	cx := int(math.Floor(b.Pos.X + 0.5))
	cy := int(math.Floor(b.Pos.Y + 0.5))
	lo := d / 2
	hi := d - 1 - lo
	return [4]corner{
		{cx - lo, cy - lo, lo, lo},
		{cx + hi, cy - lo, -hi, lo},
		{cx - lo, cy + hi, lo, -hi},
		{cx + hi, cy + hi, -hi, -hi},
	}
}

// fold maps a grid point into the world the same way body edges are handled.
func (r Resolver) fold(x, y int) (int, int) {
	if r.Wrap {
		return physics.WrapInt(x, r.WorldW), physics.WrapInt(y, r.WorldH)
	}
	return min(max(x, 0), r.WorldW-1), min(max(y, 0), r.WorldH-1)
}

func scale(screen, tile int) float64 {
	if screen <= 0 || tile <= 0 {
		return 1
	}
	return float64(screen) / float64(tile)
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
