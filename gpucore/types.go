package gpucore

// Resource IDs
//
// These opaque IDs represent GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// ProgramID is an opaque handle to a compiled shader program together with
// its vertex layout and binding layout.
type ProgramID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageCopyDst indicates the buffer can be written by the queue.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageIndex indicates the buffer can be used as an index buffer.
	BufferUsageIndex BufferUsage = 1 << 4

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 5

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 6
)

// TextureFormat specifies the pixel layout of texture data as supplied by
// callers. Devices without a native 3-channel format expand on upload.
type TextureFormat uint8

// Texture formats.
const (
	// TextureFormatRGB8 is 8-bit RGB, 3 bytes per pixel.
	TextureFormatRGB8 TextureFormat = iota + 1

	// TextureFormatRGBA8 is 8-bit RGBA, 4 bytes per pixel.
	TextureFormatRGBA8
)

// BytesPerPixel returns the tightly packed pixel size of the format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGB8:
		return 3
	case TextureFormatRGBA8:
		return 4
	default:
		return 0
	}
}

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGB8:
		return "RGB8"
	case TextureFormatRGBA8:
		return "RGBA8"
	default:
		return "Unknown"
	}
}

// FilterMode selects texel filtering for minification or magnification.
type FilterMode uint8

// Filter modes.
const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// String returns the filter name.
func (m FilterMode) String() string {
	if m == FilterNearest {
		return "Nearest"
	}
	return "Linear"
}

// VertexFormat is the element type of one vertex attribute.
type VertexFormat uint8

// Vertex formats.
const (
	VertexFormatFloat32 VertexFormat = iota + 1
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatSint32
)

// Size returns the attribute size in bytes.
func (f VertexFormat) Size() int {
	switch f {
	case VertexFormatFloat32, VertexFormatSint32:
		return 4
	case VertexFormatFloat32x2:
		return 8
	case VertexFormatFloat32x3:
		return 12
	case VertexFormatFloat32x4:
		return 16
	default:
		return 0
	}
}

// Components returns the number of scalar components.
func (f VertexFormat) Components() int {
	switch f {
	case VertexFormatFloat32, VertexFormatSint32:
		return 1
	case VertexFormatFloat32x2:
		return 2
	case VertexFormatFloat32x3:
		return 3
	case VertexFormatFloat32x4:
		return 4
	default:
		return 0
	}
}

// VertexAttribute places one named attribute inside a vertex record.
type VertexAttribute struct {
	Name     string
	Format   VertexFormat
	Offset   int
	Location int
}

// VertexLayout describes one vertex buffer slot.
type VertexLayout struct {
	// Stride is the record size in bytes.
	Stride int

	// Instance selects per-instance stepping instead of per-vertex.
	Instance bool

	Attributes []VertexAttribute
}

// ProgramDesc describes a shader program and the layouts it consumes.
//
// Binding convention: the uniform block is at group 0 binding 0, and
// texture unit i occupies binding 1+2i (texture view) and 2+2i (sampler).
type ProgramDesc struct {
	Label          string
	VertexShader   string
	FragmentShader string

	// Layouts lists vertex buffer slots in binding order.
	Layouts []VertexLayout

	// UniformSize is the size in bytes of the packed uniform block.
	// Zero means the program takes no uniform buffer.
	UniformSize int

	// TextureCount is the number of sampled texture units.
	TextureCount int
}

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Label     string
	Width     int
	Height    int
	Format    TextureFormat
	MinFilter FilterMode
	MagFilter FilterMode
}

// DrawCall is one indexed draw issued inside a frame.
type DrawCall struct {
	// VertexBuffers are bound to the program's layout slots in order.
	VertexBuffers []BufferID

	// IndexBuffer holds uint16 indices.
	IndexBuffer BufferID

	// IndexCount is the number of indices drawn starting at index 0.
	IndexCount int

	// InstanceCount is the number of instances. Zero draws one instance.
	InstanceCount int

	// Uniforms is the packed uniform block, ProgramDesc.UniformSize bytes.
	Uniforms []byte

	// Textures are bound to texture units 0..n-1.
	Textures []TextureID
}

// Instances returns the effective instance count.
func (d DrawCall) Instances() int {
	if d.InstanceCount <= 0 {
		return 1
	}
	return d.InstanceCount
}
