package gpucore

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// MemoryDevice is a Device that keeps every resource in host memory and
// records frames instead of submitting them. It backs headless runs and
// tests.
//
// MemoryDevice is safe for concurrent use.
type MemoryDevice struct {
	mu       sync.Mutex
	nextID   atomic.Uint64
	buffers  map[BufferID]*memBuffer
	textures map[TextureID]*memTexture
	programs map[ProgramID]ProgramDesc
	frames   []FrameRecord
	active   bool
}

type memBuffer struct {
	label string
	usage BufferUsage
	data  []byte
}

type memTexture struct {
	desc   TextureDesc
	pixels []byte
}

// FrameRecord is a submitted frame as seen by a MemoryDevice.
type FrameRecord struct {
	Width  int
	Height int
	Draws  []DrawRecord
}

// DrawRecord is one recorded draw and the program bound when it was issued.
type DrawRecord struct {
	Program ProgramID
	Call    DrawCall
}

// NewMemoryDevice creates an empty in-memory device.
func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{
		buffers:  make(map[BufferID]*memBuffer),
		textures: make(map[TextureID]*memTexture),
		programs: make(map[ProgramID]ProgramDesc),
	}
}

func (d *MemoryDevice) newID() uint64 {
	return d.nextID.Add(1)
}

// CreateBuffer implements Device.
func (d *MemoryDevice) CreateBuffer(label string, size int, usage BufferUsage) (BufferID, error) {
	if size < 0 {
		return InvalidID, fmt.Errorf("gpucore: buffer %q: negative size %d", label, size)
	}
	id := BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = &memBuffer{label: label, usage: usage, data: make([]byte, size)}
	d.mu.Unlock()
	return id, nil
}

// WriteBuffer implements Device.
func (d *MemoryDevice) WriteBuffer(id BufferID, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("buffer %d: %w", id, ErrUnknownResource)
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("buffer %q [%d,%d) of %d: %w",
			b.label, offset, offset+len(data), len(b.data), ErrOutOfBounds)
	}
	copy(b.data[offset:], data)
	return nil
}

// DestroyBuffer implements Device.
func (d *MemoryDevice) DestroyBuffer(id BufferID) {
	d.mu.Lock()
	delete(d.buffers, id)
	d.mu.Unlock()
}

// CreateTexture implements Device.
func (d *MemoryDevice) CreateTexture(desc TextureDesc) (TextureID, error) {
	bpp := desc.Format.BytesPerPixel()
	if bpp == 0 || desc.Width <= 0 || desc.Height <= 0 {
		return InvalidID, fmt.Errorf("gpucore: texture %q: invalid %dx%d %s",
			desc.Label, desc.Width, desc.Height, desc.Format)
	}
	id := TextureID(d.newID())
	d.mu.Lock()
	d.textures[id] = &memTexture{desc: desc, pixels: make([]byte, desc.Width*desc.Height*bpp)}
	d.mu.Unlock()
	return id, nil
}

// WriteTexture implements Device.
func (d *MemoryDevice) WriteTexture(id TextureID, x, y, width, height int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("texture %d: %w", id, ErrUnknownResource)
	}
	if x < 0 || y < 0 || x+width > t.desc.Width || y+height > t.desc.Height {
		return fmt.Errorf("texture %q rect (%d,%d %dx%d): %w", t.desc.Label, x, y, width, height, ErrOutOfBounds)
	}
	bpp := t.desc.Format.BytesPerPixel()
	row := width * bpp
	if len(data) < row*height {
		return fmt.Errorf("texture %q: %d bytes for %dx%d: %w", t.desc.Label, len(data), width, height, ErrOutOfBounds)
	}
	stride := t.desc.Width * bpp
	for r := 0; r < height; r++ {
		dst := (y+r)*stride + x*bpp
		copy(t.pixels[dst:dst+row], data[r*row:(r+1)*row])
	}
	return nil
}

// DestroyTexture implements Device.
func (d *MemoryDevice) DestroyTexture(id TextureID) {
	d.mu.Lock()
	delete(d.textures, id)
	d.mu.Unlock()
}

// CreateProgram implements Device.
func (d *MemoryDevice) CreateProgram(desc ProgramDesc) (ProgramID, error) {
	if desc.VertexShader == "" || desc.FragmentShader == "" {
		return InvalidID, fmt.Errorf("gpucore: program %q: empty shader source", desc.Label)
	}
	id := ProgramID(d.newID())
	d.mu.Lock()
	d.programs[id] = desc
	d.mu.Unlock()
	return id, nil
}

// DestroyProgram implements Device.
func (d *MemoryDevice) DestroyProgram(id ProgramID) {
	d.mu.Lock()
	delete(d.programs, id)
	d.mu.Unlock()
}

// BeginFrame implements Device.
func (d *MemoryDevice) BeginFrame(width, height int) (Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return nil, ErrFrameActive
	}
	d.active = true
	return &memFrame{dev: d, rec: FrameRecord{Width: width, Height: height}}, nil
}

// Destroy implements Device.
func (d *MemoryDevice) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffers = make(map[BufferID]*memBuffer)
	d.textures = make(map[TextureID]*memTexture)
	d.programs = make(map[ProgramID]ProgramDesc)
}

// Buffer returns a copy of the buffer contents, or nil if id is not live.
func (d *MemoryDevice) Buffer(id BufferID) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil
	}
	return append([]byte(nil), b.data...)
}

// Texture returns the descriptor and a copy of the pixels of a live texture.
func (d *MemoryDevice) Texture(id TextureID) (TextureDesc, []byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return TextureDesc{}, nil, false
	}
	return t.desc, append([]byte(nil), t.pixels...), true
}

// Program returns the descriptor of a live program.
func (d *MemoryDevice) Program(id ProgramID) (ProgramDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.programs[id]
	return p, ok
}

// Frames returns the frames submitted so far.
func (d *MemoryDevice) Frames() []FrameRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]FrameRecord(nil), d.frames...)
}

// LastFrame returns the most recently submitted frame.
func (d *MemoryDevice) LastFrame() (FrameRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) == 0 {
		return FrameRecord{}, false
	}
	return d.frames[len(d.frames)-1], true
}

// LiveTextures returns the number of textures not yet destroyed.
func (d *MemoryDevice) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures)
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (d *MemoryDevice) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

type memFrame struct {
	dev     *MemoryDevice
	program ProgramID
	rec     FrameRecord
	ended   bool
}

func (f *memFrame) SetProgram(id ProgramID) { f.program = id }

func (f *memFrame) Draw(call DrawCall) error {
	if f.ended {
		return fmt.Errorf("gpucore: draw after End")
	}
	f.dev.mu.Lock()
	_, ok := f.dev.programs[f.program]
	f.dev.mu.Unlock()
	if !ok {
		return fmt.Errorf("program %d: %w", f.program, ErrUnknownResource)
	}
	call.VertexBuffers = append([]BufferID(nil), call.VertexBuffers...)
	call.Uniforms = append([]byte(nil), call.Uniforms...)
	call.Textures = append([]TextureID(nil), call.Textures...)
	f.rec.Draws = append(f.rec.Draws, DrawRecord{Program: f.program, Call: call})
	return nil
}

func (f *memFrame) End() error {
	if f.ended {
		return nil
	}
	f.ended = true
	f.dev.mu.Lock()
	f.dev.frames = append(f.dev.frames, f.rec)
	f.dev.active = false
	f.dev.mu.Unlock()
	return nil
}
