package shapes

import (
	"math"

	"github.com/gogpu/batch"
)

// EndStyle selects how a line ends.
type EndStyle uint8

const (
	// EndClipped ends the line flat at its endpoints.
	EndClipped EndStyle = iota

	// EndRounded extends the line past its endpoints with round caps.
	EndRounded
)

// Line is an anti-aliased line segment. Its quad covers the segment plus
// thickness and smoothing on every side; the fragment stage shades by
// distance to the segment.
type Line struct {
	*batch.RenderObject
	ends      EndStyle
	thickness float32
	smoothing float32
}

// NewLine returns a segment from a to b. thickness is the distance from
// the center line to the edge and smoothing the width of the edge
// falloff. Call Update to show it.
func NewLine(types *Types, a, b batch.Vec2, color batch.Vec4, thickness, smoothing float32, ends EndStyle) *Line {
	l := &Line{
		RenderObject: batch.NewRenderObject(types.Line),
		ends:         ends,
		thickness:    thickness,
		smoothing:    smoothing,
	}
	l.AddTriangle([3]uint16{0, 1, 2})
	l.AddTriangle([3]uint16{2, 3, 0})
	fill(l.RenderObject, 4, "color", color)
	fill(l.RenderObject, 4, "thickness", batch.Float(thickness))
	fill(l.RenderObject, 4, "smoothing", batch.Float(smoothing))
	l.SetPoints(a, b)
	return l
}

// SetPoints moves the segment endpoints.
func (l *Line) SetPoints(a, b batch.Vec2) {
	corners := lineQuad(a, b, l.thickness+l.smoothing, l.ends)
	l.SetVertexDatas(0, "pos", corners[0], corners[1], corners[2], corners[3])
	fill(l.RenderObject, 4, "start", a)
	fill(l.RenderObject, 4, "end", b)
}

// SetColor recolors the line.
func (l *Line) SetColor(c batch.Vec4) {
	fill(l.RenderObject, 4, "color", c)
}

// lineQuad returns the corners of the quad enclosing the segment a-b
// widened by offset, in winding order.
func lineQuad(a, b batch.Vec2, offset float32, ends EndStyle) [4]batch.Vec2 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		dx, dy, length = 1, 0, 1
	}
	// d runs along the segment, n is its left normal.
	d := batch.Vec2{dx / length * offset, dy / length * offset}
	n := batch.Vec2{-d[1], d[0]}
	if ends == EndClipped {
		d = batch.Vec2{}
	}
	return [4]batch.Vec2{
		{a[0] - d[0] + n[0], a[1] - d[1] + n[1]},
		{b[0] + d[0] + n[0], b[1] + d[1] + n[1]},
		{b[0] + d[0] - n[0], b[1] + d[1] - n[1]},
		{a[0] - d[0] - n[0], a[1] - d[1] - n[1]},
	}
}
