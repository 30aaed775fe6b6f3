package atlas

import (
	"fmt"
)

// Region represents a rectangular region in an atlas texture.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// IsValid returns true if the region has valid dimensions.
func (r Region) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

// Contains returns true if the point (x, y) is inside the region.
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Overlaps returns true if the two regions share any pixel.
func (r Region) Overlaps(o Region) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Area returns Width*Height.
func (r Region) Area() int { return r.Width * r.Height }

// String returns a string representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("Region(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// AllocID identifies one allocation of a GuillotineAllocator. Stale IDs
// (already deallocated) are rejected even after the slot is reused.
type AllocID uint64

type nodeState uint8

const (
	nodeUnused nodeState = iota
	nodeFree
	nodeAllocated
	nodeSplit
)

type node struct {
	rect     Region
	parent   int
	children [2]int
	state    nodeState
	gen      uint32
}

// GuillotineAllocator packs rectangles into a fixed area by recursive
// guillotine cuts. Freed rectangles merge back with their sibling, so a
// fully freed allocator returns to a single free rectangle.
//
// Placement picks the free leaf with the smallest leftover short side;
// the cut follows the axis with the smaller leftover first.
//
// GuillotineAllocator is not safe for concurrent use.
type GuillotineAllocator struct {
	width  int
	height int

	nodes  []node
	unused []int

	allocCount int
	usedArea   int

	// epoch is the lowest generation handed to new nodes; Reset raises it
	// so IDs from before the reset never match.
	epoch uint32
}

// NewGuillotineAllocator creates an allocator covering width x height.
func NewGuillotineAllocator(width, height int) *GuillotineAllocator {
	a := &GuillotineAllocator{width: width, height: height}
	a.nodes = append(a.nodes, node{
		rect:     Region{Width: width, Height: height},
		parent:   -1,
		children: [2]int{-1, -1},
		state:    nodeFree,
	})
	return a
}

// Allocate finds space for a width x height rectangle. It returns false
// if no free rectangle is large enough.
func (a *GuillotineAllocator) Allocate(width, height int) (AllocID, Region, bool) {
	if width <= 0 || height <= 0 || width > a.width || height > a.height {
		return 0, Region{}, false
	}

	best := -1
	bestShort, bestArea := 0, 0
	for i := range a.nodes {
		n := &a.nodes[i]
		if n.state != nodeFree || n.rect.Width < width || n.rect.Height < height {
			continue
		}
		short := min(n.rect.Width-width, n.rect.Height-height)
		area := n.rect.Area()
		if best < 0 || short < bestShort || (short == bestShort && area < bestArea) {
			best, bestShort, bestArea = i, short, area
		}
	}
	if best < 0 {
		return 0, Region{}, false
	}

	idx := a.place(best, width, height)
	a.allocCount++
	a.usedArea += width * height
	n := &a.nodes[idx]
	return AllocID(uint64(n.gen)<<32 | uint64(idx)), n.rect, true
}

// place cuts node idx until one leaf matches width x height exactly and
// marks that leaf allocated.
func (a *GuillotineAllocator) place(idx, width, height int) int {
	for {
		r := a.nodes[idx].rect
		switch {
		case r.Width == width && r.Height == height:
			a.nodes[idx].state = nodeAllocated
			return idx
		case r.Height > height && (r.Width == width || r.Width-width < r.Height-height):
			idx = a.split(idx,
				Region{X: r.X, Y: r.Y, Width: r.Width, Height: height},
				Region{X: r.X, Y: r.Y + height, Width: r.Width, Height: r.Height - height})
		default:
			idx = a.split(idx,
				Region{X: r.X, Y: r.Y, Width: width, Height: r.Height},
				Region{X: r.X + width, Y: r.Y, Width: r.Width - width, Height: r.Height})
		}
	}
}

// split turns leaf idx into a split node with two free children and
// returns the first child.
func (a *GuillotineAllocator) split(idx int, first, second Region) int {
	c0 := a.newNode(first, idx)
	c1 := a.newNode(second, idx)
	n := &a.nodes[idx]
	n.state = nodeSplit
	n.children = [2]int{c0, c1}
	return c0
}

func (a *GuillotineAllocator) newNode(r Region, parent int) int {
	nd := node{rect: r, parent: parent, children: [2]int{-1, -1}, state: nodeFree, gen: a.epoch}
	if k := len(a.unused); k > 0 {
		idx := a.unused[k-1]
		a.unused = a.unused[:k-1]
		nd.gen = max(a.nodes[idx].gen+1, a.epoch)
		a.nodes[idx] = nd
		return idx
	}
	a.nodes = append(a.nodes, nd)
	return len(a.nodes) - 1
}

// Deallocate frees an allocation and merges free siblings upward. It
// returns false for unknown or already freed IDs.
func (a *GuillotineAllocator) Deallocate(id AllocID) bool {
	idx := int(uint32(id))
	gen := uint32(uint64(id) >> 32)
	if idx < 0 || idx >= len(a.nodes) {
		return false
	}
	n := &a.nodes[idx]
	if n.state != nodeAllocated || n.gen != gen {
		return false
	}
	n.state = nodeFree
	a.allocCount--
	a.usedArea -= n.rect.Area()

	for p := n.parent; p >= 0; p = a.nodes[p].parent {
		c0, c1 := a.nodes[p].children[0], a.nodes[p].children[1]
		if a.nodes[c0].state != nodeFree || a.nodes[c1].state != nodeFree {
			break
		}
		a.release(c0)
		a.release(c1)
		a.nodes[p].state = nodeFree
		a.nodes[p].children = [2]int{-1, -1}
	}
	return true
}

func (a *GuillotineAllocator) release(idx int) {
	a.nodes[idx].state = nodeUnused
	a.unused = append(a.unused, idx)
}

// Reset frees every allocation.
func (a *GuillotineAllocator) Reset() {
	for i := range a.nodes {
		a.epoch = max(a.epoch, a.nodes[i].gen+1)
	}
	a.nodes = a.nodes[:1]
	a.nodes[0] = node{
		rect:     Region{Width: a.width, Height: a.height},
		parent:   -1,
		children: [2]int{-1, -1},
		state:    nodeFree,
		gen:      a.epoch,
	}
	a.unused = a.unused[:0]
	a.allocCount = 0
	a.usedArea = 0
}

// IsEmpty reports whether nothing is allocated.
func (a *GuillotineAllocator) IsEmpty() bool { return a.allocCount == 0 }

// AllocCount returns the number of live allocations.
func (a *GuillotineAllocator) AllocCount() int { return a.allocCount }

// UsedArea returns the total allocated area in pixels.
func (a *GuillotineAllocator) UsedArea() int { return a.usedArea }

// Utilization returns the fraction of the area in use (0.0 to 1.0).
func (a *GuillotineAllocator) Utilization() float64 {
	total := a.width * a.height
	if total == 0 {
		return 0
	}
	return float64(a.usedArea) / float64(total)
}

// Size returns the allocator dimensions.
func (a *GuillotineAllocator) Size() (width, height int) { return a.width, a.height }

// freeLeaves returns the number of free leaf rectangles. Used by tests.
func (a *GuillotineAllocator) freeLeaves() int {
	n := 0
	for i := range a.nodes {
		if a.nodes[i].state == nodeFree {
			n++
		}
	}
	return n
}
