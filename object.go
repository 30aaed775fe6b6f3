package batch

import (
	"github.com/gogpu/batch/atlas"
	"github.com/gogpu/batch/internal/chunk"
	"github.com/gogpu/batch/internal/coordinator"
	"github.com/gogpu/batch/rendertype"
	"github.com/gogpu/batch/uniform"
)

// Value is a typed vertex attribute or uniform value.
type Value = uniform.Value

// Value types shared by vertex attributes and uniforms.
type (
	Float   = uniform.Float
	Int     = uniform.Int
	Vec2    = uniform.Vec2
	Vec3    = uniform.Vec3
	Vec4    = uniform.Vec4
	Mat4    = uniform.Mat4
	Texture = uniform.Texture
)

// RenderObject is one drawable: packed records of its render type,
// triangle indices local to the object and a uniform block. Mutate it
// with the setters, then call Update to make the changes visible.
//
// For instanced types each record is an instance and indices are unused.
type RenderObject struct {
	rt       *rendertype.RenderType
	uniforms uniform.Block
	vertices []byte
	indices  []uint16

	token *coordinator.Token
	owner *Renderer
}

// NewRenderObject returns an empty object of type rt.
func NewRenderObject(rt *rendertype.RenderType) *RenderObject {
	return &RenderObject{rt: rt}
}

// RenderType returns the object's type.
func (o *RenderObject) RenderType() *rendertype.RenderType { return o.rt }

// Placed reports whether the object is currently held by a renderer.
func (o *RenderObject) Placed() bool { return o.token != nil && o.token.Live() }

// SetUniform stores a uniform value. Unknown names and values of the
// wrong kind are logged and ignored.
func (o *RenderObject) SetUniform(name string, v Value) bool {
	return o.uniforms.Set(o.rt, name, v)
}

// SetTexture binds an atlas image to a texture uniform.
func (o *RenderObject) SetTexture(name string, h *atlas.Handle) bool {
	return o.SetUniform(name, Texture{Handle: h})
}

// Uniform returns a stored uniform value.
func (o *RenderObject) Uniform(name string) (Value, bool) { return o.uniforms.Get(name) }

// AddTriangle appends one triangle of object-local vertex indices.
func (o *RenderObject) AddTriangle(t [3]uint16) {
	o.indices = append(o.indices, t[0], t[1], t[2])
}

// AddIndices appends object-local vertex indices.
func (o *RenderObject) AddIndices(idx ...uint16) {
	o.indices = append(o.indices, idx...)
}

// ClearIndices drops every index.
func (o *RenderObject) ClearIndices() { o.indices = o.indices[:0] }

// Indices returns the object-local indices.
func (o *RenderObject) Indices() []uint16 { return o.indices }

// Vertices returns the packed records.
func (o *RenderObject) Vertices() []byte { return o.vertices }

// VertexCount returns the number of records.
func (o *RenderObject) VertexCount() int {
	if s := o.rt.Stride(); s > 0 {
		return len(o.vertices) / s
	}
	return 0
}

// SetVertexCount grows or truncates the object to n records. New records
// hold the type's blank vertex.
func (o *RenderObject) SetVertexCount(n int) {
	stride := o.rt.Stride()
	if n*stride <= len(o.vertices) {
		o.vertices = o.vertices[:n*stride]
		return
	}
	o.grow(n)
}

func (o *RenderObject) grow(records int) {
	stride := o.rt.Stride()
	have := len(o.vertices) / stride
	if records <= have {
		return
	}
	o.vertices = append(o.vertices, make([]byte, (records-have)*stride)...)
	if blank := o.rt.BlankVertex(); blank != nil {
		for i := have; i < records; i++ {
			copy(o.vertices[i*stride:], blank)
		}
	}
}

// SetVertexData writes attribute name of record i, growing the object as
// needed. Unknown attributes and values of the wrong type are logged and
// ignored.
func (o *RenderObject) SetVertexData(i int, name string, v Value) bool {
	attr, off, ok := o.rt.RecordAttribute(name)
	if !ok {
		Logger().Warn("batch: unknown vertex attribute", "type", o.rt.Name(), "name", name)
		return false
	}
	if v == nil || v.Kind() != attr.Type.Kind() {
		Logger().Warn("batch: vertex attribute type mismatch",
			"type", o.rt.Name(), "name", name, "want", attr.Type, "value", v)
		return false
	}
	if i < 0 {
		Logger().Warn("batch: negative vertex index", "type", o.rt.Name(), "index", i)
		return false
	}
	o.grow(i + 1)
	uniform.Put(o.vertices[i*o.rt.Stride()+off:], v)
	return true
}

// SetVertexDatas writes attribute name of consecutive records starting
// at first.
func (o *RenderObject) SetVertexDatas(first int, name string, vs ...Value) bool {
	for i, v := range vs {
		if !o.SetVertexData(first+i, name, v) {
			return false
		}
	}
	return true
}

// SubData copies raw record bytes starting at record idx, growing the
// object as needed. data need not be a whole number of records.
func (o *RenderObject) SubData(idx int, data []byte) {
	stride := o.rt.Stride()
	if idx < 0 || stride == 0 {
		return
	}
	end := idx*stride + len(data)
	o.grow((end + stride - 1) / stride)
	copy(o.vertices[idx*stride:], data)
}

// Update adds the object to r, or rewrites its placement.
func (o *RenderObject) Update(r *Renderer) error { return r.Update(o) }

// Remove releases the object's placement. It leaves the screen at the
// next Render. Removing an object that is not placed is a no-op.
func (o *RenderObject) Remove() {
	if o.token == nil {
		Logger().Debug("batch: remove on unplaced object", "type", o.rt.Name())
		return
	}
	o.token.Release()
	o.token = nil
	o.owner = nil
}

func (o *RenderObject) geometry() chunk.Geometry {
	return chunk.Geometry{
		Vertices: o.vertices,
		Indices:  o.indices,
		Uniforms: &o.uniforms,
	}
}
