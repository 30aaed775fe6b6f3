// Package shapes provides ready-made drawables on top of the batch object
// API: flat triangles and rectangles, anti-aliased line segments and
// quadratic Bezier curves, and textured image quads.
//
// Shapes of one kind share a render type, so shapes with equal uniforms
// are drawn together in a single call. Create the types once with
// NewTypes and register them with every renderer that draws shapes:
//
//	types, err := shapes.NewTypes()
//	if err != nil {
//	    return err
//	}
//	if err := types.Register(r); err != nil {
//	    return err
//	}
//	rect := shapes.NewRect(types, 10, 10, 100, 50, batch.Vec4{1, 0, 0, 1})
//	if err := rect.Update(r); err != nil {
//	    return err
//	}
//
// All shapes take positions in the coordinate space set by the
// renderer's projection and view matrices.
package shapes

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/batch"
	"github.com/gogpu/batch/rendertype"
)

//go:embed shaders/color.wgsl
var colorShaderSource string

//go:embed shaders/line.wgsl
var lineShaderSource string

//go:embed shaders/bezier.wgsl
var bezierShaderSource string

//go:embed shaders/image.wgsl
var imageShaderSource string

// Types holds the render types of the shape kinds.
type Types struct {
	Triangle *rendertype.RenderType
	Rect     *rendertype.RenderType
	Line     *rendertype.RenderType
	Bezier   *rendertype.RenderType
	Image    *rendertype.RenderType
}

// frameUniforms are the matrices every shape type takes from the frame.
func frameUniforms(extra ...rendertype.UniformAttribute) []rendertype.UniformAttribute {
	return append([]rendertype.UniformAttribute{
		{Name: "projection", Role: rendertype.UniformProjection},
		{Name: "view", Role: rendertype.UniformView},
	}, extra...)
}

// NewTypes builds the shape render types.
func NewTypes() (*Types, error) {
	descs := []rendertype.Desc{
		{
			Name:           "shapes.triangle",
			VertexShader:   colorShaderSource,
			FragmentShader: colorShaderSource,
			Attributes: []rendertype.VertexAttribute{
				{Name: "pos", Type: rendertype.Vec2},
				{Name: "color", Type: rendertype.Vec4},
			},
			Uniforms: frameUniforms(),
			Sizing:   rendertype.Growable(20, 40, 20, 40, 2, 2),
		},
		{
			Name:           "shapes.rect",
			VertexShader:   colorShaderSource,
			FragmentShader: colorShaderSource,
			Attributes: []rendertype.VertexAttribute{
				{Name: "pos", Type: rendertype.Vec2},
				{Name: "color", Type: rendertype.Vec4},
			},
			Uniforms: frameUniforms(),
			Sizing:   rendertype.Growable(1000, 2000, 1500, 3000, 1.1, 1.1),
		},
		{
			Name:           "shapes.line",
			VertexShader:   lineShaderSource,
			FragmentShader: lineShaderSource,
			Attributes: []rendertype.VertexAttribute{
				{Name: "pos", Type: rendertype.Vec2},
				{Name: "color", Type: rendertype.Vec4},
				{Name: "thickness", Type: rendertype.Float},
				{Name: "smoothing", Type: rendertype.Float},
				{Name: "start", Type: rendertype.Vec2},
				{Name: "end", Type: rendertype.Vec2},
			},
			Uniforms: frameUniforms(),
			Sizing:   rendertype.Growable(20, 1000, 30, 1500, 2, 2),
		},
		{
			Name:           "shapes.bezier",
			VertexShader:   bezierShaderSource,
			FragmentShader: bezierShaderSource,
			Attributes: []rendertype.VertexAttribute{
				{Name: "pos", Type: rendertype.Vec2},
				{Name: "color", Type: rendertype.Vec4},
				{Name: "thickness", Type: rendertype.Float},
				{Name: "smoothing", Type: rendertype.Float},
				{Name: "p0", Type: rendertype.Vec2},
				{Name: "p1", Type: rendertype.Vec2},
				{Name: "p2", Type: rendertype.Vec2},
			},
			Uniforms: frameUniforms(),
			Sizing:   rendertype.Growable(20, 2000, 30, 3000, 2, 2),
		},
		{
			Name:           "shapes.image",
			VertexShader:   imageShaderSource,
			FragmentShader: imageShaderSource,
			Attributes: []rendertype.VertexAttribute{
				{Name: "pos", Type: rendertype.Vec2},
				{Name: "uv", Role: rendertype.RoleTextureCoordinate, Type: rendertype.Vec2},
			},
			Uniforms: frameUniforms(
				rendertype.UniformAttribute{Name: "tint", Kind: rendertype.KindVec4},
				rendertype.UniformAttribute{Name: "image", Kind: rendertype.KindTexture},
			),
			Sizing: rendertype.Growable(64, 4096, 96, 6144, 2, 2),
		},
	}

	rts := make([]*rendertype.RenderType, len(descs))
	for i, d := range descs {
		rt, err := rendertype.New(d)
		if err != nil {
			return nil, fmt.Errorf("shapes: %w", err)
		}
		rts[i] = rt
	}
	return &Types{Triangle: rts[0], Rect: rts[1], Line: rts[2], Bezier: rts[3], Image: rts[4]}, nil
}

// All returns the types in registration order.
func (t *Types) All() []*rendertype.RenderType {
	return []*rendertype.RenderType{t.Triangle, t.Rect, t.Line, t.Bezier, t.Image}
}

// Register registers every shape type with r.
func (t *Types) Register(r *batch.Renderer) error {
	return r.Register(t.All()...)
}

// fill writes the same value into attribute name of records 0..n-1.
func fill(o *batch.RenderObject, n int, name string, v batch.Value) {
	for i := range n {
		o.SetVertexData(i, name, v)
	}
}
