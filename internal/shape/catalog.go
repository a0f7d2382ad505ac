// Package shape holds the immutable catalog of body templates.
package shape

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

var ErrUnknownShape = errors.New("unknown shape")

// Shape is a body template. Pixels holds Side*Side bytes, row major, non-zero
// where the shape is filled.
type Shape struct {
	ID     int     `json:"id"`
	Mass   float64 `json:"mass"`
	Side   int     `json:"side"`
	Pixels []byte  `json:"-"`
}

// Radius is half the side length.
func (s Shape) Radius() float64 {
	return float64(s.Side) / 2
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	shapes []Shape
	byID   map[int]int
	bySide map[int]int
}

// NewCatalog validates shapes and indexes them by id and side. The first
// shape of each side is the one BySide returns.
func NewCatalog(shapes []Shape) (*Catalog, error) {
	c := &Catalog{
		byID:   make(map[int]int, len(shapes)),
		bySide: make(map[int]int),
	}
	for _, s := range shapes {
		if s.Side < 1 {
			return nil, fmt.Errorf("shape %d: side %d must be positive", s.ID, s.Side)
		}
		if s.Mass <= 0 {
			return nil, fmt.Errorf("shape %d: mass %v must be positive", s.ID, s.Mass)
		}
		if len(s.Pixels) != s.Side*s.Side {
			return nil, fmt.Errorf("shape %d: %d pixels for side %d", s.ID, len(s.Pixels), s.Side)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("shape %d: duplicate id", s.ID)
		}
		c.byID[s.ID] = len(c.shapes)
		if _, ok := c.bySide[s.Side]; !ok {
			c.bySide[s.Side] = len(c.shapes)
		}
		c.shapes = append(c.shapes, s)
	}
	return c, nil
}

// Default builds one filled disc per side length 1..maxSide with mass equal
// to the side squared. Shape ids equal side lengths.
func Default(maxSide int) *Catalog {
	shapes := make([]Shape, 0, maxSide)
	for side := 1; side <= maxSide; side++ {
		shapes = append(shapes, Shape{
			ID:     side,
			Mass:   float64(side * side),
			Side:   side,
			Pixels: disc(side),
		})
	}
	c, err := NewCatalog(shapes)
	if err != nil {
		panic(err)
	}
	return c
}

func disc(side int) []byte {
	px := make([]byte, side*side)
	r := float64(side) / 2
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			dx := float64(x) + 0.5 - r
			dy := float64(y) + 0.5 - r
			if dx*dx+dy*dy <= r*r {
				px[y*side+x] = 1
			}
		}
	}
	return px
}

// fileShape is the on-disk form: rows of '#' (filled) and '.' (empty).
type fileShape struct {
	ID   int      `json:"id"`
	Mass float64  `json:"mass"`
	Rows []string `json:"rows"`
}

// Load reads a JSON array of shapes from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shapes: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of shapes. Each shape is square; its side is the
// number of rows.
func Parse(data []byte) (*Catalog, error) {
	var raw []fileShape
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode shapes: %w", err)
	}
	shapes := make([]Shape, 0, len(raw))
	for _, fs := range raw {
		side := len(fs.Rows)
		px := make([]byte, 0, side*side)
		for i, row := range fs.Rows {
			if len(row) != side {
				return nil, fmt.Errorf("shape %d: row %d has %d columns, want %d", fs.ID, i, len(row), side)
			}
			for _, ch := range row {
				switch ch {
				case '#':
					px = append(px, 1)
				case '.':
					px = append(px, 0)
				default:
					return nil, fmt.Errorf("shape %d: unexpected %q in row %d", fs.ID, ch, i)
				}
			}
		}
		shapes = append(shapes, Shape{ID: fs.ID, Mass: fs.Mass, Side: side, Pixels: px})
	}
	return NewCatalog(shapes)
}

// Get returns the shape with the given id.
func (c *Catalog) Get(id int) (Shape, error) {
	i, ok := c.byID[id]
	if !ok {
		return Shape{}, fmt.Errorf("shape id %d: %w", id, ErrUnknownShape)
	}
	return c.shapes[i], nil
}

// BySide returns the first shape with the given side length.
func (c *Catalog) BySide(side int) (Shape, error) {
	i, ok := c.bySide[side]
	if !ok {
		return Shape{}, fmt.Errorf("side %d: %w", side, ErrUnknownShape)
	}
	return c.shapes[i], nil
}

// MaxSide is the largest side length in the catalog.
func (c *Catalog) MaxSide() int {
	m := 0
	for side := range c.bySide {
		m = max(m, side)
	}
	return m
}

// Shapes returns all shapes ordered by id.
func (c *Catalog) Shapes() []Shape {
	out := slices.Clone(c.shapes)
	slices.SortFunc(out, func(a, b Shape) int { return a.ID - b.ID })
	return out
}

// String renders a shape as rows of '#' and '.'.
func (s Shape) String() string {
	var sb strings.Builder
	for y := 0; y < s.Side; y++ {
		for x := 0; x < s.Side; x++ {
			if s.Pixels[y*s.Side+x] != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		if y < s.Side-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
