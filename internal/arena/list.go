// Package arena provides a flat, reusable store of fixed-width integer records
// addressed by integer handles.
package arena

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// List stores records of Stride integer fields in one contiguous slice.
// Erased records are linked into a free list (through their first field)
// and handed out again by Insert, so handles stay stable and nothing is
// compacted. The zero value is not usable; create lists with New.
type List[T constraints.Signed] struct {
	data   []T
	stride int
	num    int // slots ever handed out (high-water mark)
	live   int // slots not currently on the free list
	free   T   // head of the free list, -1 when empty
}

// New creates a list whose records have stride fields each.
func New[T constraints.Signed](stride int) *List[T] {
	if stride < 1 {
		panic(fmt.Sprintf("arena: invalid stride %d", stride))
	}
	return &List[T]{
		data:   make([]T, 0, 16*stride),
		stride: stride,
		free:   -1,
	}
}

// Size returns the number of slots handed out so far, erased ones included.
// Owners iterate handles in [0, Size) and skip the ones they erased.
func (l *List[T]) Size() int {
	return l.num
}

// Len returns the number of live (not erased) records.
func (l *List[T]) Len() int {
	return l.live
}

// Stride returns the number of fields per record.
func (l *List[T]) Stride() int {
	return l.stride
}

// Get returns field of record n.
func (l *List[T]) Get(n, field int) T {
	return l.data[l.index(n, field)]
}

// Set stores val in field of record n.
func (l *List[T]) Set(n, field int, val T) {
	l.data[l.index(n, field)] = val
}

// Clear drops every record but keeps the backing storage.
func (l *List[T]) Clear() {
	l.data = l.data[:0]
	l.num = 0
	l.live = 0
	l.free = -1
}

// PushBack appends a zeroed record and returns its handle. Capacity doubles
// when the backing slice is full.
func (l *List[T]) PushBack() int {
	end := (l.num + 1) * l.stride
	if end > cap(l.data) {
		grown := make([]T, len(l.data), 2*end)
		copy(grown, l.data)
		l.data = grown
	}
	start := len(l.data)
	l.data = l.data[:end]
	clear(l.data[start:end])
	l.num++
	l.live++
	return l.num - 1
}

// PopBack removes the last record. It must not be on the free list.
func (l *List[T]) PopBack() {
	if l.num == 0 {
		panic("arena: pop from empty list")
	}
	l.num--
	l.live--
	l.data = l.data[:l.num*l.stride]
}

// Insert reuses the most recently erased record if there is one, otherwise
// it behaves like PushBack. The returned record is zeroed.
func (l *List[T]) Insert() int {
	if l.free == -1 {
		return l.PushBack()
	}
	n := int(l.free)
	pos := n * l.stride
	l.free = l.data[pos]
	clear(l.data[pos : pos+l.stride])
	l.live++
	return n
}

// Erase puts record n on the free list. The slot is not compacted.
func (l *List[T]) Erase(n int) {
	pos := l.index(n, 0)
	l.data[pos] = l.free
	l.free = T(n)
	l.live--
}

func (l *List[T]) index(n, field int) int {
	if n < 0 || n >= l.num {
		panic(fmt.Sprintf("arena: handle %d out of range [0,%d)", n, l.num))
	}
	if field < 0 || field >= l.stride {
		panic(fmt.Sprintf("arena: field %d out of range [0,%d)", field, l.stride))
	}
	return n*l.stride + field
}
