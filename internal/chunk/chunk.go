// Package chunk implements fixed-capacity GPU buffer arenas that hold
// the geometry of many objects of one render type.
package chunk

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/exp/constraints"

	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/internal/logging"
	"github.com/gogpu/batch/rendertype"
	"github.com/gogpu/batch/uniform"
)

// Geometry is the packed data of one object.
type Geometry struct {
	// Vertices holds whole records of the type's stride: vertices, or
	// instances for instanced types.
	Vertices []byte

	// Indices are local to the object, 0-based. Instanced types have none.
	Indices []uint16

	Uniforms *uniform.Block
}

// Placement records where an object lives in a chunk. Vertex ranges are
// in bytes, index ranges in indices.
type Placement struct {
	Vertices Range
	Indices  Range
}

// Template is the shared geometry of an instanced render type, uploaded
// once per coordinator.
type Template struct {
	Vertices   gpucore.BufferID
	Indices    gpucore.BufferID
	IndexCount int
}

// Chunk is one vertex buffer and one index buffer managed as arenas.
type Chunk struct {
	rt       *rendertype.RenderType
	dev      gpucore.Device
	template *Template
	label    string

	vbuf gpucore.BufferID
	ibuf gpucore.BufferID
	vcap int // bytes
	icap int // indices

	vfree *FreeList
	ifree *FreeList

	// uniforms is a clone of the first object's block. textures are its
	// textures as they were at adoption, pinned until the next adopt or
	// until the chunk empties.
	uniforms *uniform.Block
	textures []gpucore.TextureID
	unpin    func()
	live     int
	packed   []byte
	scratch  []byte
}

// New creates a chunk of vertexRecords records and indexCount indices.
// Instanced types pass their shared template and no indices.
func New(dev gpucore.Device, rt *rendertype.RenderType, vertexRecords, indexCount int, tmpl *Template) (*Chunk, error) {
	if vertexRecords > rendertype.MaxChunkVertices {
		return nil, fmt.Errorf("chunk: %d records exceed %d", vertexRecords, rendertype.MaxChunkVertices)
	}
	if rt.Instanced() {
		indexCount = 0
	}
	c := &Chunk{
		rt:       rt,
		dev:      dev,
		template: tmpl,
		label:    fmt.Sprintf("chunk-%s-%s", rt.Name(), uuid.NewString()),
		vcap:     vertexRecords * rt.Stride(),
		icap:     indexCount,
		uniforms: &uniform.Block{},
		unpin:    func() {},
		packed:   make([]byte, rt.UniformSize()),
	}
	c.vfree = NewFreeList(c.vcap)
	c.ifree = NewFreeList(c.icap)

	var err error
	c.vbuf, err = dev.CreateBuffer(c.label+"-vertices", alignUp(c.vcap, 4),
		gpucore.BufferUsageVertex|gpucore.BufferUsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("chunk: vertex buffer: %w", err)
	}
	if c.icap > 0 {
		c.ibuf, err = dev.CreateBuffer(c.label+"-indices", alignUp(c.icap*2, 4),
			gpucore.BufferUsageIndex|gpucore.BufferUsageCopyDst)
		if err != nil {
			dev.DestroyBuffer(c.vbuf)
			return nil, fmt.Errorf("chunk: index buffer: %w", err)
		}
	}
	if blank := rt.BlankVertex(); blank != nil && c.vcap > 0 {
		if err := c.dev.WriteBuffer(c.vbuf, 0, c.fill(Range{Size: c.vcap})); err != nil {
			c.Destroy()
			return nil, fmt.Errorf("chunk: blank fill: %w", err)
		}
	}
	logging.Logger().Debug("chunk: created",
		"label", c.label, "vertex_bytes", c.vcap, "indices", c.icap)
	return c, nil
}

func alignUp[T constraints.Integer](v, align T) T {
	return (v + align - 1) / align * align
}

// Label returns the chunk's debug label.
func (c *Chunk) Label() string { return c.label }

// Live returns the number of placed objects.
func (c *Chunk) Live() int { return c.live }

// VertexFree and IndexFree expose the free lists.
func (c *Chunk) VertexFree() *FreeList { return c.vfree }
func (c *Chunk) IndexFree() *FreeList  { return c.ifree }

// VertexBuffer returns the GPU vertex buffer.
func (c *Chunk) VertexBuffer() gpucore.BufferID { return c.vbuf }

// IndexBuffer returns the GPU index buffer, InvalidID for instanced types.
func (c *Chunk) IndexBuffer() gpucore.BufferID { return c.ibuf }

// Uniforms returns the block every object in the chunk is batchable with.
func (c *Chunk) Uniforms() *uniform.Block { return c.uniforms }

func (c *Chunk) accepts(u *uniform.Block) bool {
	return c.live == 0 || c.batchable(u)
}

// batchable also compares textures by value: a handle the chunk adopted
// may have moved to another instance since.
func (c *Chunk) batchable(u *uniform.Block) bool {
	u = orEmpty(u)
	return c.uniforms.BatchableWith(u) && slices.Equal(c.textures, u.Textures(c.rt))
}

func orEmpty(u *uniform.Block) *uniform.Block {
	if u == nil {
		return &uniform.Block{}
	}
	return u
}

func (c *Chunk) adopt(u *uniform.Block) {
	c.unpin()
	c.uniforms.Release()
	c.uniforms = orEmpty(u).Clone()
	c.textures, c.unpin = c.uniforms.Pin(c.rt)
}

// vacate drops the adopted uniforms so textures only referenced by
// removed objects can be freed.
func (c *Chunk) vacate() {
	c.unpin()
	c.unpin = func() {}
	c.textures = nil
	c.uniforms.Release()
	c.uniforms = &uniform.Block{}
}

// Allocate places g with first-fit on both free lists. It returns false
// when either list has no range large enough or the uniforms are not
// batchable with the chunk's.
func (c *Chunk) Allocate(g Geometry) (Placement, bool, error) {
	if !c.accepts(g.Uniforms) {
		return Placement{}, false, nil
	}
	vi, ok := c.vfree.FirstFit(len(g.Vertices))
	if !ok {
		return Placement{}, false, nil
	}
	ii, ok := c.ifree.FirstFit(len(g.Indices))
	if !ok {
		return Placement{}, false, nil
	}
	p := Placement{
		Vertices: c.vfree.Take(vi, len(g.Vertices)),
		Indices:  c.ifree.Take(ii, len(g.Indices)),
	}
	if c.live == 0 {
		c.adopt(g.Uniforms)
	}
	c.live++
	if err := c.upload(p, g); err != nil {
		c.Free(p)
		return Placement{}, false, err
	}
	return p, true, nil
}

// Update rewrites g in place. It returns false, leaving the chunk
// untouched, when g's size differs from p or its uniforms no longer
// batch with the chunk.
func (c *Chunk) Update(g Geometry, p Placement) (bool, error) {
	if len(g.Vertices) != p.Vertices.Size || len(g.Indices) != p.Indices.Size {
		return false, nil
	}
	if !c.batchable(g.Uniforms) {
		if c.live != 1 {
			return false, nil
		}
		// Sole occupant: the chunk follows the object.
		c.adopt(g.Uniforms)
	}
	return true, c.upload(p, g)
}

// Free returns p's ranges to the free lists and blanks the freed bytes.
func (c *Chunk) Free(p Placement) {
	c.vfree.Release(p.Vertices)
	c.ifree.Release(p.Indices)
	c.live--
	if c.live == 0 {
		c.vacate()
	}

	if p.Vertices.Size > 0 {
		if err := c.dev.WriteBuffer(c.vbuf, p.Vertices.Start, c.fill(p.Vertices)); err != nil {
			logging.Logger().Warn("chunk: blank vertices", "label", c.label, "err", err)
		}
	}
	if p.Indices.Size > 0 {
		if err := c.dev.WriteBuffer(c.ibuf, p.Indices.Start*2, c.zero(p.Indices.Size*2)); err != nil {
			logging.Logger().Warn("chunk: blank indices", "label", c.label, "err", err)
		}
	}
}

func (c *Chunk) upload(p Placement, g Geometry) error {
	if p.Vertices.Size > 0 {
		if err := c.dev.WriteBuffer(c.vbuf, p.Vertices.Start, g.Vertices); err != nil {
			return fmt.Errorf("chunk %s: vertices: %w", c.label, err)
		}
	}
	if p.Indices.Size > 0 {
		base := uint16(p.Vertices.Start / c.rt.Stride())
		buf := c.zero(len(g.Indices) * 2)
		for i, idx := range g.Indices {
			binary.LittleEndian.PutUint16(buf[i*2:], idx+base)
		}
		if err := c.dev.WriteBuffer(c.ibuf, p.Indices.Start*2, buf); err != nil {
			return fmt.Errorf("chunk %s: indices: %w", c.label, err)
		}
	}
	return nil
}

// fill returns r.Size bytes of the blank vertex pattern, or zeros.
func (c *Chunk) fill(r Range) []byte {
	buf := c.zero(r.Size)
	blank := c.rt.BlankVertex()
	if len(blank) == 0 {
		return buf
	}
	for off := 0; off < len(buf); off += len(blank) {
		copy(buf[off:], blank)
	}
	return buf
}

func (c *Chunk) zero(n int) []byte {
	if cap(c.scratch) < n {
		c.scratch = make([]byte, n)
	}
	buf := c.scratch[:n]
	clear(buf)
	return buf
}

// DrawLength returns the number of indices, or instances for instanced
// types, the next Render draws.
func (c *Chunk) DrawLength() int {
	if c.rt.Instanced() {
		return c.vfree.ActiveLength() / c.rt.Stride()
	}
	return c.ifree.ActiveLength()
}

// Render records one draw of the chunk into f. The caller has bound the
// program.
func (c *Chunk) Render(f gpucore.Frame, g uniform.Globals) error {
	n := c.DrawLength()
	if n == 0 {
		return nil
	}
	call := gpucore.DrawCall{
		VertexBuffers: []gpucore.BufferID{c.vbuf},
		IndexBuffer:   c.ibuf,
		IndexCount:    n,
		Textures:      c.textures,
	}
	if c.rt.Instanced() {
		call.VertexBuffers = []gpucore.BufferID{c.template.Vertices, c.vbuf}
		call.IndexBuffer = c.template.Indices
		call.IndexCount = c.template.IndexCount
		call.InstanceCount = n
	}
	if len(c.packed) > 0 {
		c.uniforms.Pack(c.rt, g, c.packed)
		call.Uniforms = c.packed
	}
	return f.Draw(call)
}

// Destroy releases the GPU buffers and the uniform references.
func (c *Chunk) Destroy() {
	c.dev.DestroyBuffer(c.vbuf)
	if c.ibuf != gpucore.InvalidID {
		c.dev.DestroyBuffer(c.ibuf)
	}
	c.vacate()
}
