package shapes

import "github.com/gogpu/batch"

// Triangle is a flat colored triangle.
type Triangle struct {
	*batch.RenderObject
}

// NewTriangle returns a triangle over points. Call Update to show it.
func NewTriangle(types *Types, points [3]batch.Vec2, color batch.Vec4) *Triangle {
	t := &Triangle{RenderObject: batch.NewRenderObject(types.Triangle)}
	t.AddTriangle([3]uint16{0, 1, 2})
	t.SetPoints(points)
	t.SetColor(color)
	return t
}

// SetPoints moves the corners.
func (t *Triangle) SetPoints(points [3]batch.Vec2) {
	t.SetVertexDatas(0, "pos", points[0], points[1], points[2])
}

// SetColor recolors the triangle.
func (t *Triangle) SetColor(c batch.Vec4) {
	fill(t.RenderObject, 3, "color", c)
}
