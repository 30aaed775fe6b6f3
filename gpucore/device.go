package gpucore

import "errors"

// Errors returned by Device implementations.
var (
	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = errors.New("gpucore: unknown resource")

	// ErrOutOfBounds is returned when a write exceeds the resource extent.
	ErrOutOfBounds = errors.New("gpucore: write out of bounds")

	// ErrFrameActive is returned by BeginFrame while another frame is open.
	ErrFrameActive = errors.New("gpucore: frame already active")
)

// Device abstracts over GPU backends for the batching renderer.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - IDs become invalid after destruction and are never reused
//
// Writes are treated as synchronous for frame-budget purposes: a write
// issued between frames is visible to the next frame's draws.
type Device interface {
	// CreateBuffer creates a zero-filled buffer of size bytes.
	CreateBuffer(label string, size int, usage BufferUsage) (BufferID, error)

	// WriteBuffer copies data into the buffer at a byte offset.
	WriteBuffer(id BufferID, offset int, data []byte) error

	// DestroyBuffer releases a buffer.
	DestroyBuffer(id BufferID)

	// CreateTexture creates a zero-filled 2D texture.
	CreateTexture(desc TextureDesc) (TextureID, error)

	// WriteTexture uploads a tightly packed sub-rectangle in the
	// texture's format.
	WriteTexture(id TextureID, x, y, width, height int, data []byte) error

	// DestroyTexture releases a texture.
	DestroyTexture(id TextureID)

	// CreateProgram compiles shaders and builds the pipeline state.
	CreateProgram(desc ProgramDesc) (ProgramID, error)

	// DestroyProgram releases a program.
	DestroyProgram(id ProgramID)

	// BeginFrame starts recording a frame whose viewport covers
	// width x height pixels.
	BeginFrame(width, height int) (Frame, error)

	// Destroy releases every resource still owned by the device.
	Destroy()
}

// Frame records draws for one displayed frame.
//
// Usage:
//  1. Obtain a frame from Device.BeginFrame
//  2. SetProgram, then Draw one or more times; repeat per program
//  3. Call End to submit
//
// A frame is single-use and cannot be reused after End.
type Frame interface {
	// SetProgram binds the program used by following draws.
	SetProgram(id ProgramID)

	// Draw records one indexed draw with the bound program.
	Draw(call DrawCall) error

	// End submits the frame.
	End() error
}
