package world

import (
	"fmt"
	"image"
	"iter"
	"slices"
	"strings"
)

// Locations produces the infinite sequence of tiles offered to joining
// clients. Every tile appears at most once.
type Locations func() iter.Seq[image.Point]

// Spiral grows the occupied square by concentric L-shapes:
// (0,0), (1,0) (1,1) (0,1), (2,0) (2,1) (2,2) (1,2) (0,2), ...
func Spiral() iter.Seq[image.Point] {
	return func(yield func(image.Point) bool) {
		if !yield(image.Pt(0, 0)) {
			return
		}
		for k := 1; ; k++ {
			for y := 0; y <= k; y++ {
				if !yield(image.Pt(k, y)) {
					return
				}
			}
			for x := k - 1; x >= 0; x-- {
				if !yield(image.Pt(x, k)) {
					return
				}
			}
		}
	}
}

// Line places clients in a single row growing to the right.
func Line() iter.Seq[image.Point] {
	return func(yield func(image.Point) bool) {
		for x := 0; ; x++ {
			if !yield(image.Pt(x, 0)) {
				return
			}
		}
	}
}

// Diamond walks the anti-diagonals: (0,0), (1,0) (0,1), (2,0) (1,1) (0,2), ...
func Diamond() iter.Seq[image.Point] {
	return func(yield func(image.Point) bool) {
		for d := 0; ; d++ {
			for y := 0; y <= d; y++ {
				if !yield(image.Pt(d-y, y)) {
					return
				}
			}
		}
	}
}

var patterns = map[string]Locations{
	"spiral":  Spiral,
	"line":    Line,
	"diamond": Diamond,
}

// PatternNames lists the names accepted by LocationsByName.
func PatternNames() []string {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LocationsByName returns the named tile pattern.
func LocationsByName(name string) (Locations, error) {
	loc, ok := patterns[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown location pattern %q (want one of %s)",
			name, strings.Join(PatternNames(), ", "))
	}
	return loc, nil
}
