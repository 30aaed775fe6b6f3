package chunk

import (
	"fmt"
	"slices"
)

// Range is a half-open span [Start, Start+Size) of a buffer.
type Range struct {
	Start int
	Size  int
}

// End returns Start+Size.
func (r Range) End() int { return r.Start + r.Size }

// String returns the range as [start,end).
func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End()) }

// FreeList tracks the free spans of a fixed-capacity buffer. Ranges are
// kept sorted, disjoint, non-empty and never adjacent.
type FreeList struct {
	capacity int
	ranges   []Range
}

// NewFreeList returns a list whose whole capacity is free.
func NewFreeList(capacity int) *FreeList {
	l := &FreeList{capacity: capacity}
	if capacity > 0 {
		l.ranges = []Range{{Start: 0, Size: capacity}}
	}
	return l
}

// Capacity returns the buffer capacity.
func (l *FreeList) Capacity() int { return l.capacity }

// Ranges returns a copy of the free ranges in order.
func (l *FreeList) Ranges() []Range { return slices.Clone(l.ranges) }

// FreeSize returns the total free size.
func (l *FreeList) FreeSize() int {
	n := 0
	for _, r := range l.ranges {
		n += r.Size
	}
	return n
}

// FirstFit returns the index of the first range that holds n, or false.
// A zero n always fits.
func (l *FreeList) FirstFit(n int) (int, bool) {
	if n == 0 {
		return -1, true
	}
	for i, r := range l.ranges {
		if r.Size >= n {
			return i, true
		}
	}
	return 0, false
}

// Take carves n from the front of range i, as found by FirstFit.
func (l *FreeList) Take(i, n int) Range {
	if n == 0 {
		return Range{}
	}
	r := &l.ranges[i]
	out := Range{Start: r.Start, Size: n}
	r.Start += n
	r.Size -= n
	if r.Size == 0 {
		l.ranges = slices.Delete(l.ranges, i, i+1)
	}
	return out
}

// Allocate is FirstFit followed by Take.
func (l *FreeList) Allocate(n int) (Range, bool) {
	i, ok := l.FirstFit(n)
	if !ok {
		return Range{}, false
	}
	return l.Take(i, n), true
}

// Release returns r to the list, merging it with the free ranges that
// touch it.
func (l *FreeList) Release(r Range) {
	if r.Size == 0 {
		return
	}
	i, _ := slices.BinarySearchFunc(l.ranges, r.Start, func(f Range, start int) int {
		return f.Start - start
	})

	before := i > 0 && l.ranges[i-1].End() == r.Start
	after := i < len(l.ranges) && r.End() == l.ranges[i].Start

	switch {
	case before && after:
		l.ranges[i-1].Size += r.Size + l.ranges[i].Size
		l.ranges = slices.Delete(l.ranges, i, i+1)
	case before:
		l.ranges[i-1].Size += r.Size
	case after:
		l.ranges[i].Start = r.Start
		l.ranges[i].Size += r.Size
	default:
		l.ranges = slices.Insert(l.ranges, i, r)
	}
}

// ActiveLength returns how much of the buffer must be drawn. When a free
// range reaches the end of the buffer only the part before it is drawn;
// otherwise the whole capacity is, holes included.
func (l *FreeList) ActiveLength() int {
	if n := len(l.ranges); n > 0 && l.ranges[n-1].End() == l.capacity {
		return l.ranges[n-1].Start
	}
	return l.capacity
}
