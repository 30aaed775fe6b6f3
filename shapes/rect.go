package shapes

import "github.com/gogpu/batch"

// Rect is a flat colored axis-aligned rectangle.
type Rect struct {
	*batch.RenderObject
	x, y, w, h float32
}

// NewRect returns a w x h rectangle with its top-left corner at (x, y).
// Call Update to show it.
func NewRect(types *Types, x, y, w, h float32, color batch.Vec4) *Rect {
	r := &Rect{RenderObject: batch.NewRenderObject(types.Rect)}
	r.AddIndices(0, 1, 2, 0, 2, 3)
	r.SetBounds(x, y, w, h)
	r.SetColor(color)
	return r
}

// Bounds returns the rectangle's corner and size.
func (r *Rect) Bounds() (x, y, w, h float32) { return r.x, r.y, r.w, r.h }

// SetBounds moves and resizes the rectangle.
func (r *Rect) SetBounds(x, y, w, h float32) {
	r.x, r.y, r.w, r.h = x, y, w, h
	r.SetVertexDatas(0, "pos",
		batch.Vec2{x, y},
		batch.Vec2{x + w, y},
		batch.Vec2{x + w, y + h},
		batch.Vec2{x, y + h},
	)
}

// SetColor recolors the rectangle.
func (r *Rect) SetColor(c batch.Vec4) {
	fill(r.RenderObject, 4, "color", c)
}
