package shapes

import (
	"github.com/gogpu/batch"
)

// QuadraticBezier is an anti-aliased quadratic Bezier curve from p0 to
// p2 bent toward the control point p1. Its quad is the bounding box of
// the three points grown by thickness and smoothing, which contains the
// whole curve.
type QuadraticBezier struct {
	*batch.RenderObject
	thickness float32
	smoothing float32
}

// NewQuadraticBezier returns the curve through p0 and p2 with control
// point p1. thickness and smoothing are as for NewLine. Call Update to
// show it.
func NewQuadraticBezier(types *Types, p0, p1, p2 batch.Vec2, color batch.Vec4, thickness, smoothing float32) *QuadraticBezier {
	q := &QuadraticBezier{
		RenderObject: batch.NewRenderObject(types.Bezier),
		thickness:    thickness,
		smoothing:    smoothing,
	}
	q.AddTriangle([3]uint16{0, 1, 2})
	q.AddTriangle([3]uint16{2, 3, 0})
	fill(q.RenderObject, 4, "color", color)
	fill(q.RenderObject, 4, "thickness", batch.Float(thickness))
	fill(q.RenderObject, 4, "smoothing", batch.Float(smoothing))
	q.SetPoints(p0, p1, p2)
	return q
}

// SetPoints moves the endpoints and the control point.
func (q *QuadraticBezier) SetPoints(p0, p1, p2 batch.Vec2) {
	corners := bezierQuad(p0, p1, p2, q.thickness+q.smoothing)
	q.SetVertexDatas(0, "pos", corners[0], corners[1], corners[2], corners[3])
	fill(q.RenderObject, 4, "p0", p0)
	fill(q.RenderObject, 4, "p1", p1)
	fill(q.RenderObject, 4, "p2", p2)
}

// SetColor recolors the curve.
func (q *QuadraticBezier) SetColor(c batch.Vec4) {
	fill(q.RenderObject, 4, "color", c)
}

// bezierQuad returns the corners of the bounding box of p0, p1 and p2
// widened by offset, in winding order.
func bezierQuad(p0, p1, p2 batch.Vec2, offset float32) [4]batch.Vec2 {
	minX := min(p0[0], p1[0], p2[0]) - offset
	minY := min(p0[1], p1[1], p2[1]) - offset
	maxX := max(p0[0], p1[0], p2[0]) + offset
	maxY := max(p0[1], p1[1], p2[1]) + offset
	return [4]batch.Vec2{
		{minX, maxY},
		{maxX, maxY},
		{maxX, minY},
		{minX, minY},
	}
}
