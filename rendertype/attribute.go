package rendertype

import "github.com/gogpu/batch/gpucore"

// DataType is the element type of a vertex attribute.
type DataType uint8

// Vertex attribute data types.
const (
	Float DataType = iota + 1
	Vec2
	Vec3
	Vec4
	Int
)

// Size returns the element size in bytes.
func (t DataType) Size() int { return t.Format().Size() }

// Format maps the data type to its GPU vertex format.
func (t DataType) Format() gpucore.VertexFormat {
	switch t {
	case Float:
		return gpucore.VertexFormatFloat32
	case Vec2:
		return gpucore.VertexFormatFloat32x2
	case Vec3:
		return gpucore.VertexFormatFloat32x3
	case Vec4:
		return gpucore.VertexFormatFloat32x4
	case Int:
		return gpucore.VertexFormatSint32
	default:
		return 0
	}
}

// Kind returns the uniform kind holding values of this type.
func (t DataType) Kind() UniformKind {
	switch t {
	case Float:
		return KindFloat
	case Vec2:
		return KindVec2
	case Vec3:
		return KindVec3
	case Vec4:
		return KindVec4
	case Int:
		return KindInt
	default:
		return 0
	}
}

// String returns the data type name.
func (t DataType) String() string {
	switch t {
	case Float:
		return "float"
	case Vec2:
		return "vec2"
	case Vec3:
		return "vec3"
	case Vec4:
		return "vec4"
	case Int:
		return "int"
	default:
		return "invalid"
	}
}

// AttributeRole tags what a vertex attribute means to the renderer.
type AttributeRole uint8

// Attribute roles.
const (
	RoleCustom AttributeRole = iota

	// RoleTextureCoordinate marks atlas-relative UVs. Callers feed these
	// through atlas.Handle.TexCoord before writing them.
	RoleTextureCoordinate
)

// VertexAttribute is one named field of a vertex or instance record.
type VertexAttribute struct {
	Name string
	Role AttributeRole
	Type DataType
}

// UniformRole tags uniforms whose value is supplied by the frame rather
// than by the object.
type UniformRole uint8

// Uniform roles.
const (
	UniformCustom UniformRole = iota
	UniformProjection
	UniformView
)

// String returns the role name.
func (r UniformRole) String() string {
	switch r {
	case UniformProjection:
		return "projection"
	case UniformView:
		return "view"
	default:
		return "custom"
	}
}

// UniformKind is the value shape of a uniform.
type UniformKind uint8

// Uniform kinds.
const (
	KindFloat UniformKind = iota + 1
	KindVec2
	KindVec3
	KindVec4
	KindInt
	KindMat4
	KindTexture
)

// Size returns the packed size in the uniform block, std140 style: every
// scalar and vector takes a 16-byte slot, matrices take 64 bytes and
// textures take none.
func (k UniformKind) Size() int {
	switch k {
	case KindFloat, KindVec2, KindVec3, KindVec4, KindInt:
		return 16
	case KindMat4:
		return 64
	default:
		return 0
	}
}

// String returns the kind name.
func (k UniformKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindVec2:
		return "vec2"
	case KindVec3:
		return "vec3"
	case KindVec4:
		return "vec4"
	case KindInt:
		return "int"
	case KindMat4:
		return "mat4"
	case KindTexture:
		return "texture"
	default:
		return "invalid"
	}
}

// UniformAttribute declares one uniform of a render type.
type UniformAttribute struct {
	Name string
	Role UniformRole
	Kind UniformKind
}
