package physics

import (
	"math"

	"github.com/tomz197/tileworld/internal/arena"
)

// Node record fields. A branch stores the handle of its first of four
// contiguous children and a count of -1; a leaf stores the head of its
// element-node list and the number of elements in it.
const (
	nodeFirst = iota
	nodeCount
	nodeStride
)

// Element record fields: the floored bounding box plus the owner id.
const (
	eltLeft = iota
	eltTop
	eltRight
	eltBottom
	eltID
	eltStride
)

// Element-node record fields: singly linked list of elements in a leaf.
const (
	enNext = iota
	enElt
	enStride
)

// Traversal record fields: center, half size, node handle and depth.
const (
	ndMX = iota
	ndMY
	ndSX
	ndSY
	ndIndex
	ndDepth
	ndStride
)

// Quadtree is a bucket quadtree of axis-aligned boxes over a fixed extent.
// Every structure lives in arena lists, so a tree that is cleared and
// refilled every tick stops allocating once its buffers have grown.
// Elements are addressed by handle; the owner id passed to Insert is
// carried alongside and returned by QueryWithIDs.
type Quadtree struct {
	nodes    *arena.List[int32]
	elts     *arena.List[int32]
	eltNodes *arena.List[int32]

	// scratch
	leaves *arena.List[int32]
	stack  *arena.List[int32]
	seen   []bool
	found  []int
	ids    []int
	moved  []int32

	rootMX, rootMY int32
	rootSX, rootSY int32

	maxElements int
	maxDepth    int
}

// NewQuadtree creates a tree covering width x height. A leaf holding more
// than maxElements splits into quadrants unless it is already maxDepth deep.
func NewQuadtree(width, height, maxElements, maxDepth int) *Quadtree {
	qt := &Quadtree{
		nodes:       arena.New[int32](nodeStride),
		elts:        arena.New[int32](eltStride),
		eltNodes:    arena.New[int32](enStride),
		leaves:      arena.New[int32](ndStride),
		stack:       arena.New[int32](ndStride),
		maxElements: maxElements,
		maxDepth:    maxDepth,
	}
	qt.Reset(width, height)
	return qt
}

// Reset empties the tree and sets a new extent, keeping buffers.
func (qt *Quadtree) Reset(width, height int) {
	qt.nodes.Clear()
	qt.elts.Clear()
	qt.eltNodes.Clear()

	root := qt.nodes.PushBack()
	qt.nodes.Set(root, nodeFirst, -1)
	qt.nodes.Set(root, nodeCount, 0)

	qt.rootMX = int32(width / 2)
	qt.rootMY = int32(height / 2)
	qt.rootSX = qt.rootMX
	qt.rootSY = qt.rootMY
}

// Len returns the number of live elements.
func (qt *Quadtree) Len() int {
	return qt.elts.Len()
}

// Insert adds a box owned by id and returns its element handle. Coordinates
// are floored to integers.
func (qt *Quadtree) Insert(id int, x1, y1, x2, y2 float64) int {
	elt := qt.elts.Insert()
	qt.elts.Set(elt, eltLeft, floor32(x1))
	qt.elts.Set(elt, eltTop, floor32(y1))
	qt.elts.Set(elt, eltRight, floor32(x2))
	qt.elts.Set(elt, eltBottom, floor32(y2))
	qt.elts.Set(elt, eltID, int32(id))

	qt.nodeInsert(0, 0, qt.rootMX, qt.rootMY, qt.rootSX, qt.rootSY, int32(elt))
	return elt
}

// Remove unlinks an element from every leaf holding it and frees it.
func (qt *Quadtree) Remove(elt int) {
	l := qt.elts.Get(elt, eltLeft)
	t := qt.elts.Get(elt, eltTop)
	r := qt.elts.Get(elt, eltRight)
	b := qt.elts.Get(elt, eltBottom)

	qt.findLeaves(0, 0, qt.rootMX, qt.rootMY, qt.rootSX, qt.rootSY, l, t, r, b)
	for i := 0; i < qt.leaves.Size(); i++ {
		node := int(qt.leaves.Get(i, ndIndex))

		prev := int32(-1)
		cur := qt.nodes.Get(node, nodeFirst)
		for cur != -1 && qt.eltNodes.Get(int(cur), enElt) != int32(elt) {
			prev = cur
			cur = qt.eltNodes.Get(int(cur), enNext)
		}
		if cur == -1 {
			continue
		}
		next := qt.eltNodes.Get(int(cur), enNext)
		if prev == -1 {
			qt.nodes.Set(node, nodeFirst, next)
		} else {
			qt.eltNodes.Set(int(prev), enNext, next)
		}
		qt.eltNodes.Erase(int(cur))
		qt.nodes.Set(node, nodeCount, qt.nodes.Get(node, nodeCount)-1)
	}
	qt.elts.Erase(elt)
}

// Query returns the handles of every element whose box intersects the query
// box, touching edges included. omit excludes one handle (-1 for none).
// The returned slice is reused by the next query.
func (qt *Quadtree) Query(x1, y1, x2, y2 float64, omit int) []int {
	qt.query(x1, y1, x2, y2, omit)
	return qt.found
}

// QueryWithIDs is Query that also returns the owner id of each handle at the
// same index. Both slices are reused by the next query.
func (qt *Quadtree) QueryWithIDs(x1, y1, x2, y2 float64, omit int) (handles, ids []int) {
	qt.query(x1, y1, x2, y2, omit)
	qt.ids = qt.ids[:0]
	for _, elt := range qt.found {
		qt.ids = append(qt.ids, int(qt.elts.Get(elt, eltID)))
	}
	return qt.found, qt.ids
}

func (qt *Quadtree) query(x1, y1, x2, y2 float64, omit int) {
	ql, qt2, qr, qb := floor32(x1), floor32(y1), floor32(x2), floor32(y2)

	qt.found = qt.found[:0]
	if n := qt.elts.Size(); len(qt.seen) < n {
		qt.seen = make([]bool, n)
	}

	qt.findLeaves(0, 0, qt.rootMX, qt.rootMY, qt.rootSX, qt.rootSY, ql, qt2, qr, qb)
	for i := 0; i < qt.leaves.Size(); i++ {
		node := int(qt.leaves.Get(i, ndIndex))
		for en := qt.nodes.Get(node, nodeFirst); en != -1; en = qt.eltNodes.Get(int(en), enNext) {
			elt := int(qt.eltNodes.Get(int(en), enElt))
			if qt.seen[elt] || elt == omit {
				continue
			}
			if intersects(ql, qt2, qr, qb,
				qt.elts.Get(elt, eltLeft), qt.elts.Get(elt, eltTop),
				qt.elts.Get(elt, eltRight), qt.elts.Get(elt, eltBottom)) {
				qt.found = append(qt.found, elt)
				qt.seen[elt] = true
			}
		}
	}
	for _, elt := range qt.found {
		qt.seen[elt] = false
	}
}

func (qt *Quadtree) nodeInsert(index, depth int, mx, my, sx, sy, elt int32) {
	l := qt.elts.Get(int(elt), eltLeft)
	t := qt.elts.Get(int(elt), eltTop)
	r := qt.elts.Get(int(elt), eltRight)
	b := qt.elts.Get(int(elt), eltBottom)

	qt.findLeaves(index, depth, mx, my, sx, sy, l, t, r, b)

	// leafInsert may split a leaf and run findLeaves again, so work from a copy.
	start := qt.stack.Size()
	for i := 0; i < qt.leaves.Size(); i++ {
		n := qt.stack.PushBack()
		for f := 0; f < ndStride; f++ {
			qt.stack.Set(n, f, qt.leaves.Get(i, f))
		}
	}
	end := qt.stack.Size()
	for i := start; i < end; i++ {
		qt.leafInsert(
			int(qt.stack.Get(i, ndIndex)), int(qt.stack.Get(i, ndDepth)),
			qt.stack.Get(i, ndMX), qt.stack.Get(i, ndMY),
			qt.stack.Get(i, ndSX), qt.stack.Get(i, ndSY),
			elt,
		)
	}
	for qt.stack.Size() > start {
		qt.stack.PopBack()
	}
}

func (qt *Quadtree) leafInsert(node, depth int, mx, my, sx, sy, elt int32) {
	en := qt.eltNodes.Insert()
	qt.eltNodes.Set(en, enNext, qt.nodes.Get(node, nodeFirst))
	qt.eltNodes.Set(en, enElt, elt)
	qt.nodes.Set(node, nodeFirst, int32(en))

	count := int(qt.nodes.Get(node, nodeCount))
	if count < qt.maxElements || depth >= qt.maxDepth {
		qt.nodes.Set(node, nodeCount, int32(count+1))
		return
	}

	// Detach the elements, turn the leaf into a branch and redistribute.
	start := len(qt.moved)
	for cur := qt.nodes.Get(node, nodeFirst); cur != -1; {
		next := qt.eltNodes.Get(int(cur), enNext)
		qt.moved = append(qt.moved, qt.eltNodes.Get(int(cur), enElt))
		qt.eltNodes.Erase(int(cur))
		cur = next
	}

	first := qt.nodes.PushBack()
	for i := 1; i < 4; i++ {
		qt.nodes.PushBack()
	}
	for i := 0; i < 4; i++ {
		qt.nodes.Set(first+i, nodeFirst, -1)
		qt.nodes.Set(first+i, nodeCount, 0)
	}
	qt.nodes.Set(node, nodeFirst, int32(first))
	qt.nodes.Set(node, nodeCount, -1)

	// Nested splits append past end and truncate back, so index rather than range.
	end := len(qt.moved)
	for i := start; i < end; i++ {
		qt.nodeInsert(node, depth, mx, my, sx, sy, qt.moved[i])
	}
	qt.moved = qt.moved[:start]
}

// findLeaves fills qt.leaves with every leaf under the given node whose
// region intersects the box. An element on a split line goes to both sides.
func (qt *Quadtree) findLeaves(index, depth int, mx, my, sx, sy, l, t, r, b int32) {
	qt.leaves.Clear()
	push := func(list *arena.List[int32], index, depth int, mx, my, sx, sy int32) {
		n := list.PushBack()
		list.Set(n, ndMX, mx)
		list.Set(n, ndMY, my)
		list.Set(n, ndSX, sx)
		list.Set(n, ndSY, sy)
		list.Set(n, ndIndex, int32(index))
		list.Set(n, ndDepth, int32(depth))
	}

	base := qt.stack.Size()
	push(qt.stack, index, depth, mx, my, sx, sy)
	for qt.stack.Size() > base {
		top := qt.stack.Size() - 1
		nmx, nmy := qt.stack.Get(top, ndMX), qt.stack.Get(top, ndMY)
		nsx, nsy := qt.stack.Get(top, ndSX), qt.stack.Get(top, ndSY)
		nd := int(qt.stack.Get(top, ndIndex))
		ndepth := int(qt.stack.Get(top, ndDepth))
		qt.stack.PopBack()

		if qt.nodes.Get(nd, nodeCount) != -1 {
			push(qt.leaves, nd, ndepth, nmx, nmy, nsx, nsy)
			continue
		}

		fc := int(qt.nodes.Get(nd, nodeFirst))
		hx, hy := nsx>>1, nsy>>1
		left, top2, right, bottom := nmx-hx, nmy-hy, nmx+hx, nmy+hy
		if t <= nmy {
			if l <= nmx {
				push(qt.stack, fc+0, ndepth+1, left, top2, hx, hy)
			}
			if r > nmx {
				push(qt.stack, fc+1, ndepth+1, right, top2, hx, hy)
			}
		}
		if b > nmy {
			if l <= nmx {
				push(qt.stack, fc+2, ndepth+1, left, bottom, hx, hy)
			}
			if r > nmx {
				push(qt.stack, fc+3, ndepth+1, right, bottom, hx, hy)
			}
		}
	}
}

func intersects(l1, t1, r1, b1, l2, t2, r2, b2 int32) bool {
	return l2 <= r1 && r2 >= l1 && t2 <= b1 && b2 >= t1
}

func floor32(v float64) int32 {
	return int32(math.Floor(v))
}
