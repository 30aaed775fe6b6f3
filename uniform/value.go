// Package uniform holds per-object uniform values and decides whether two
// objects may share a draw call.
package uniform

import (
	"github.com/gogpu/batch/atlas"
	"github.com/gogpu/batch/rendertype"
)

// Value is a uniform value. The set of implementations is closed.
type Value interface {
	Kind() rendertype.UniformKind
	equal(other Value) bool
}

// Float is a scalar uniform.
type Float float32

// Int is an integer uniform.
type Int int32

// Vec2 is a two-component vector uniform.
type Vec2 [2]float32

// Vec3 is a three-component vector uniform.
type Vec3 [3]float32

// Vec4 is a four-component vector uniform.
type Vec4 [4]float32

// Mat4 is a column-major 4x4 matrix uniform.
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Ortho returns an orthographic projection mapping the rectangle
// [left,right]x[bottom,top] to clip space.
func Ortho(left, right, bottom, top float32) Mat4 {
	m := Identity()
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[12] = -(right + left) / (right - left)
	m[13] = -(top + bottom) / (top - bottom)
	return m
}

// Texture references an atlas placement. Two texture values are equal
// when they draw from the same atlas instance; the placement inside the
// instance does not matter.
type Texture struct {
	Handle *atlas.Handle
}

// External marks a uniform whose value comes from the frame globals.
type External struct {
	Role rendertype.UniformRole
}

func (Float) Kind() rendertype.UniformKind    { return rendertype.KindFloat }
func (Int) Kind() rendertype.UniformKind      { return rendertype.KindInt }
func (Vec2) Kind() rendertype.UniformKind     { return rendertype.KindVec2 }
func (Vec3) Kind() rendertype.UniformKind     { return rendertype.KindVec3 }
func (Vec4) Kind() rendertype.UniformKind     { return rendertype.KindVec4 }
func (Mat4) Kind() rendertype.UniformKind     { return rendertype.KindMat4 }
func (Texture) Kind() rendertype.UniformKind  { return rendertype.KindTexture }
func (External) Kind() rendertype.UniformKind { return rendertype.KindMat4 }

func (v Float) equal(o Value) bool { w, ok := o.(Float); return ok && v == w }
func (v Int) equal(o Value) bool   { w, ok := o.(Int); return ok && v == w }
func (v Vec2) equal(o Value) bool  { w, ok := o.(Vec2); return ok && v == w }
func (v Vec3) equal(o Value) bool  { w, ok := o.(Vec3); return ok && v == w }
func (v Vec4) equal(o Value) bool  { w, ok := o.(Vec4); return ok && v == w }
func (v Mat4) equal(o Value) bool  { w, ok := o.(Mat4); return ok && v == w }

func (v External) equal(o Value) bool { w, ok := o.(External); return ok && v == w }

func (v Texture) equal(o Value) bool {
	w, ok := o.(Texture)
	if !ok {
		return false
	}
	if v.Handle == nil || w.Handle == nil {
		return v.Handle == w.Handle
	}
	return v.Handle.SameInstance(w.Handle)
}
