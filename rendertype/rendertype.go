package rendertype

import (
	"errors"
	"fmt"

	"github.com/gogpu/batch/gpucore"
)

// Errors returned by New and the registry.
var (
	ErrNoName          = errors.New("rendertype: name is required")
	ErrNoShader        = errors.New("rendertype: vertex and fragment shaders are required")
	ErrDuplicateName   = errors.New("rendertype: duplicate name")
	ErrInvalidType     = errors.New("rendertype: invalid attribute type")
	ErrBlankVertexSize = errors.New("rendertype: blank vertex length must equal record stride")
	ErrTemplate        = errors.New("rendertype: instance attributes and template must be given together")
)

// Template is the shared geometry drawn once per instance by instanced
// render types. Vertices are packed with the type's vertex attributes.
type Template struct {
	Vertices []byte
	Indices  []uint16
}

// Desc describes a render type for New.
type Desc struct {
	Name           string
	VertexShader   string
	FragmentShader string

	// Attributes is the per-vertex layout. For instanced types it is the
	// layout of the template vertices.
	Attributes []VertexAttribute

	// InstanceAttributes is the per-instance layout. Non-empty makes the
	// type instanced: objects then contribute instance records and no
	// indices.
	InstanceAttributes []VertexAttribute
	Template           *Template

	Uniforms []UniformAttribute

	// BlankVertex fills freed record space. Nil means zero fill.
	BlankVertex []byte

	Sizing Sizing
}

// RenderType is the immutable descriptor of one drawable kind. It is
// created once by New and shared by pointer; its identity routes objects
// to their coordinator.
type RenderType struct {
	name           string
	vertexShader   string
	fragmentShader string

	attributes         []VertexAttribute
	instanceAttributes []VertexAttribute
	template           *Template

	vertexStride   int
	instanceStride int
	offsets        map[string]int

	uniforms       []UniformAttribute
	uniformIndex   map[string]int
	uniformOffsets []int
	uniformSize    int
	textureCount   int

	blank  []byte
	sizing Sizing
}

// New validates desc and builds a render type.
func New(desc Desc) (*RenderType, error) {
	if desc.Name == "" {
		return nil, ErrNoName
	}
	if desc.VertexShader == "" || desc.FragmentShader == "" {
		return nil, fmt.Errorf("%q: %w", desc.Name, ErrNoShader)
	}
	if (len(desc.InstanceAttributes) > 0) != (desc.Template != nil) {
		return nil, fmt.Errorf("%q: %w", desc.Name, ErrTemplate)
	}

	rt := &RenderType{
		name:           desc.Name,
		vertexShader:   desc.VertexShader,
		fragmentShader: desc.FragmentShader,
		attributes:     append([]VertexAttribute(nil), desc.Attributes...),
		offsets:        make(map[string]int),
		uniformIndex:   make(map[string]int),
		sizing:         desc.Sizing.normalized(),
	}

	stride, vertexOffsets, err := layout(desc.Attributes)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", desc.Name, err)
	}
	rt.vertexStride = stride

	if len(desc.InstanceAttributes) > 0 {
		rt.instanceAttributes = append([]VertexAttribute(nil), desc.InstanceAttributes...)
		istride, instOffsets, err := layout(desc.InstanceAttributes)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", desc.Name, err)
		}
		rt.instanceStride = istride
		rt.offsets = instOffsets
		rt.template = &Template{
			Vertices: append([]byte(nil), desc.Template.Vertices...),
			Indices:  append([]uint16(nil), desc.Template.Indices...),
		}
	} else {
		rt.offsets = vertexOffsets
	}

	if desc.BlankVertex != nil {
		if len(desc.BlankVertex) != rt.Stride() {
			return nil, fmt.Errorf("%q: got %d bytes, stride %d: %w",
				desc.Name, len(desc.BlankVertex), rt.Stride(), ErrBlankVertexSize)
		}
		rt.blank = append([]byte(nil), desc.BlankVertex...)
	}

	for i, u := range desc.Uniforms {
		if _, dup := rt.uniformIndex[u.Name]; dup {
			return nil, fmt.Errorf("%q: uniform %q: %w", desc.Name, u.Name, ErrDuplicateName)
		}
		// Frame-supplied roles are matrices regardless of the declared kind.
		if u.Role == UniformProjection || u.Role == UniformView {
			u.Kind = KindMat4
		}
		if u.Kind < KindFloat || u.Kind > KindTexture {
			return nil, fmt.Errorf("%q: uniform %q: %w", desc.Name, u.Name, ErrInvalidType)
		}
		rt.uniforms = append(rt.uniforms, u)
		rt.uniformIndex[u.Name] = i
		rt.uniformOffsets = append(rt.uniformOffsets, rt.uniformSize)
		rt.uniformSize += u.Kind.Size()
		if u.Kind == KindTexture {
			rt.textureCount++
		}
	}
	return rt, nil
}

func layout(attrs []VertexAttribute) (int, map[string]int, error) {
	offsets := make(map[string]int, len(attrs))
	stride := 0
	for _, a := range attrs {
		if a.Type.Size() == 0 {
			return 0, nil, fmt.Errorf("attribute %q: %w", a.Name, ErrInvalidType)
		}
		if _, dup := offsets[a.Name]; dup {
			return 0, nil, fmt.Errorf("attribute %q: %w", a.Name, ErrDuplicateName)
		}
		offsets[a.Name] = stride
		stride += a.Type.Size()
	}
	return stride, offsets, nil
}

// Name returns the type name.
func (rt *RenderType) Name() string { return rt.name }

// VertexShader returns the vertex shader source.
func (rt *RenderType) VertexShader() string { return rt.vertexShader }

// FragmentShader returns the fragment shader source.
func (rt *RenderType) FragmentShader() string { return rt.fragmentShader }

// Instanced reports whether objects of this type are instance records.
func (rt *RenderType) Instanced() bool { return rt.template != nil }

// Template returns the instance template, or nil.
func (rt *RenderType) Template() *Template { return rt.template }

// Stride returns the size of one object record in bytes: a vertex, or an
// instance for instanced types.
func (rt *RenderType) Stride() int {
	if rt.Instanced() {
		return rt.instanceStride
	}
	return rt.vertexStride
}

// VertexStride returns the size of one (template) vertex in bytes.
func (rt *RenderType) VertexStride() int { return rt.vertexStride }

// Attributes returns the per-vertex attributes.
func (rt *RenderType) Attributes() []VertexAttribute { return rt.attributes }

// InstanceAttributes returns the per-instance attributes.
func (rt *RenderType) InstanceAttributes() []VertexAttribute { return rt.instanceAttributes }

// AttributeOffset returns the byte offset of a record attribute.
func (rt *RenderType) AttributeOffset(name string) (int, bool) {
	off, ok := rt.offsets[name]
	return off, ok
}

// RecordAttribute looks up an attribute of the object record: a vertex
// attribute, or an instance attribute for instanced types.
func (rt *RenderType) RecordAttribute(name string) (VertexAttribute, int, bool) {
	off, ok := rt.offsets[name]
	if !ok {
		return VertexAttribute{}, 0, false
	}
	attrs := rt.attributes
	if rt.Instanced() {
		attrs = rt.instanceAttributes
	}
	for _, a := range attrs {
		if a.Name == name {
			return a, off, true
		}
	}
	return VertexAttribute{}, 0, false
}

// RecordOffset returns the byte offset of attribute name in record idx.
func (rt *RenderType) RecordOffset(idx int, name string) (int, bool) {
	off, ok := rt.offsets[name]
	if !ok {
		return 0, false
	}
	return rt.Stride()*idx + off, true
}

// Uniforms returns the declared uniforms in order.
func (rt *RenderType) Uniforms() []UniformAttribute { return rt.uniforms }

// Uniform looks up a declared uniform and its byte offset in the packed
// uniform block.
func (rt *RenderType) Uniform(name string) (UniformAttribute, int, bool) {
	i, ok := rt.uniformIndex[name]
	if !ok {
		return UniformAttribute{}, 0, false
	}
	return rt.uniforms[i], rt.uniformOffsets[i], true
}

// UniformSize returns the packed uniform block size in bytes.
func (rt *RenderType) UniformSize() int { return rt.uniformSize }

// TextureCount returns the number of texture uniforms.
func (rt *RenderType) TextureCount() int { return rt.textureCount }

// BlankVertex returns the fill pattern for freed records, or nil.
func (rt *RenderType) BlankVertex() []byte { return rt.blank }

// Sizing returns the normalized chunk sizing policy.
func (rt *RenderType) Sizing() Sizing { return rt.sizing }

// ProgramDesc builds the GPU program description for the type. Vertex
// attributes take locations 0..n-1 and instance attributes follow.
func (rt *RenderType) ProgramDesc(label string) gpucore.ProgramDesc {
	desc := gpucore.ProgramDesc{
		Label:          label,
		VertexShader:   rt.vertexShader,
		FragmentShader: rt.fragmentShader,
		UniformSize:    rt.uniformSize,
		TextureCount:   rt.textureCount,
	}
	loc := 0
	desc.Layouts = append(desc.Layouts, vertexLayout(rt.attributes, rt.vertexStride, false, &loc))
	if rt.Instanced() {
		desc.Layouts = append(desc.Layouts, vertexLayout(rt.instanceAttributes, rt.instanceStride, true, &loc))
	}
	return desc
}

func vertexLayout(attrs []VertexAttribute, stride int, instance bool, loc *int) gpucore.VertexLayout {
	l := gpucore.VertexLayout{Stride: stride, Instance: instance}
	off := 0
	for _, a := range attrs {
		l.Attributes = append(l.Attributes, gpucore.VertexAttribute{
			Name:     a.Name,
			Format:   a.Type.Format(),
			Offset:   off,
			Location: *loc,
		})
		off += a.Type.Size()
		*loc++
	}
	return l
}

// String returns the type name.
func (rt *RenderType) String() string { return rt.name }
