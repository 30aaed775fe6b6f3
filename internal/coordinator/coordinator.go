// Package coordinator owns the program and the chunks of one render type
// and routes objects into chunks.
package coordinator

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/internal/chunk"
	"github.com/gogpu/batch/internal/logging"
	"github.com/gogpu/batch/rendertype"
	"github.com/gogpu/batch/uniform"
)

// Errors returned by Add and Update.
var (
	// ErrPartialRecord is returned when vertex data is not a whole number
	// of records.
	ErrPartialRecord = errors.New("coordinator: vertex data is not a whole number of records")

	// ErrTooLarge is returned for objects no chunk can hold.
	ErrTooLarge = errors.New("coordinator: object exceeds chunk limit")
)

type placement struct {
	chunk *chunk.Chunk
	at    chunk.Placement
}

// Stats summarizes a coordinator.
type Stats struct {
	Chunks          int
	Objects         int
	VertexBytes     int
	FreeVertexBytes int
	Indices         int
	FreeIndices     int
}

// Coordinator batches the objects of one render type.
type Coordinator struct {
	dev      gpucore.Device
	rt       *rendertype.RenderType
	program  gpucore.ProgramID
	template *chunk.Template

	chunks     []*chunk.Chunk
	placements map[ID]*placement
	queue      *removalQueue
	nextID     ID
}

// New compiles rt's program and, for instanced types, uploads the
// template geometry.
func New(dev gpucore.Device, rt *rendertype.RenderType) (*Coordinator, error) {
	prog, err := dev.CreateProgram(rt.ProgramDesc(rt.Name()))
	if err != nil {
		return nil, fmt.Errorf("coordinator %q: %w", rt.Name(), err)
	}
	c := &Coordinator{
		dev:        dev,
		rt:         rt,
		program:    prog,
		placements: make(map[ID]*placement),
		queue:      &removalQueue{},
	}
	if rt.Instanced() {
		if c.template, err = uploadTemplate(dev, rt); err != nil {
			dev.DestroyProgram(prog)
			return nil, fmt.Errorf("coordinator %q: %w", rt.Name(), err)
		}
	}
	logging.Logger().Info("coordinator: program ready", "type", rt.Name(), "instanced", rt.Instanced())
	return c, nil
}

func uploadTemplate(dev gpucore.Device, rt *rendertype.RenderType) (*chunk.Template, error) {
	tmpl := rt.Template()
	vsize := (len(tmpl.Vertices) + 3) &^ 3
	vb, err := dev.CreateBuffer(rt.Name()+"-template-vertices", vsize,
		gpucore.BufferUsageVertex|gpucore.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	verts := make([]byte, vsize)
	copy(verts, tmpl.Vertices)
	if err := dev.WriteBuffer(vb, 0, verts); err != nil {
		dev.DestroyBuffer(vb)
		return nil, err
	}

	isize := (len(tmpl.Indices)*2 + 3) &^ 3
	ib, err := dev.CreateBuffer(rt.Name()+"-template-indices", isize,
		gpucore.BufferUsageIndex|gpucore.BufferUsageCopyDst)
	if err != nil {
		dev.DestroyBuffer(vb)
		return nil, err
	}
	idx := make([]byte, isize)
	for i, v := range tmpl.Indices {
		binary.LittleEndian.PutUint16(idx[i*2:], v)
	}
	if err := dev.WriteBuffer(ib, 0, idx); err != nil {
		dev.DestroyBuffer(vb)
		dev.DestroyBuffer(ib)
		return nil, err
	}
	return &chunk.Template{Vertices: vb, Indices: ib, IndexCount: len(tmpl.Indices)}, nil
}

// RenderType returns the coordinated type.
func (c *Coordinator) RenderType() *rendertype.RenderType { return c.rt }

// Program returns the compiled program.
func (c *Coordinator) Program() gpucore.ProgramID { return c.program }

// Sweep frees the placements of every released token, in release order.
func (c *Coordinator) Sweep() {
	for _, id := range c.queue.drain() {
		pl, ok := c.placements[id]
		if !ok {
			continue
		}
		pl.chunk.Free(pl.at)
		delete(c.placements, id)
	}
}

func (c *Coordinator) validate(g chunk.Geometry) error {
	stride := c.rt.Stride()
	if stride == 0 || len(g.Vertices)%stride != 0 {
		return fmt.Errorf("%d bytes, stride %d: %w", len(g.Vertices), stride, ErrPartialRecord)
	}
	if n := len(g.Vertices) / stride; n > rendertype.MaxChunkVertices {
		return fmt.Errorf("%d records: %w", n, ErrTooLarge)
	}
	return nil
}

// Add places g and returns a token holding one reference.
func (c *Coordinator) Add(g chunk.Geometry) (*Token, error) {
	if err := c.validate(g); err != nil {
		return nil, err
	}
	c.Sweep()
	pl, err := c.place(g)
	if err != nil {
		return nil, err
	}
	c.nextID++
	t := &Token{id: c.nextID, queue: c.queue, refs: 1}
	c.placements[t.id] = pl
	return t, nil
}

// Update rewrites the object behind t. Same-sized geometry that still
// batches with its chunk is rewritten in place; otherwise the object is
// freed and placed again under the same token. If placing fails, the
// token stays live without a placement and the next Update retries.
// Updating a released token is a no-op.
func (c *Coordinator) Update(t *Token, g chunk.Geometry) error {
	if err := c.validate(g); err != nil {
		return err
	}
	c.Sweep()
	if !t.Live() {
		logging.Logger().Debug("coordinator: update on removed token", "type", c.rt.Name(), "id", t.id)
		return nil
	}
	if pl, ok := c.placements[t.id]; ok {
		ok, err := pl.chunk.Update(g, pl.at)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		pl.chunk.Free(pl.at)
		delete(c.placements, t.id)
	}
	npl, err := c.place(g)
	if err != nil {
		return err
	}
	c.placements[t.id] = npl
	return nil
}

// place puts g into the first chunk that accepts it, creating a chunk
// when none does.
func (c *Coordinator) place(g chunk.Geometry) (*placement, error) {
	for _, ch := range c.chunks {
		at, ok, err := ch.Allocate(g)
		if err != nil {
			return nil, err
		}
		if ok {
			return &placement{chunk: ch, at: at}, nil
		}
	}

	sizing := c.rt.Sizing()
	n := len(c.chunks)
	records := min(sizing.ChunkVertices(n, len(g.Vertices)/c.rt.Stride()), rendertype.MaxChunkVertices)
	indices := sizing.ChunkIndices(n, len(g.Indices))
	ch, err := chunk.New(c.dev, c.rt, records, indices, c.template)
	if err != nil {
		return nil, fmt.Errorf("coordinator %q: %w", c.rt.Name(), err)
	}
	c.chunks = append(c.chunks, ch)
	logging.Logger().Debug("coordinator: chunk added",
		"type", c.rt.Name(), "chunks", len(c.chunks), "records", records, "indices", indices)

	at, ok, err := ch.Allocate(g)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Unreachable: the chunk is empty and sized for g.
		return nil, fmt.Errorf("coordinator %q: new chunk rejected object", c.rt.Name())
	}
	return &placement{chunk: ch, at: at}, nil
}

// Render sweeps, binds the program and records one draw per chunk.
func (c *Coordinator) Render(f gpucore.Frame, g uniform.Globals) error {
	c.Sweep()
	f.SetProgram(c.program)
	for _, ch := range c.chunks {
		if err := ch.Render(f, g); err != nil {
			return fmt.Errorf("coordinator %q: %s: %w", c.rt.Name(), ch.Label(), err)
		}
	}
	return nil
}

// Placement reports the chunk label and ranges of a live object.
func (c *Coordinator) Placement(t *Token) (string, chunk.Placement, bool) {
	pl, ok := c.placements[t.id]
	if !ok {
		return "", chunk.Placement{}, false
	}
	return pl.chunk.Label(), pl.at, true
}

// Stats summarizes chunk occupancy.
func (c *Coordinator) Stats() Stats {
	s := Stats{Chunks: len(c.chunks), Objects: len(c.placements)}
	for _, ch := range c.chunks {
		s.VertexBytes += ch.VertexFree().Capacity()
		s.FreeVertexBytes += ch.VertexFree().FreeSize()
		s.Indices += ch.IndexFree().Capacity()
		s.FreeIndices += ch.IndexFree().FreeSize()
	}
	return s
}

// Destroy releases every chunk, the template and the program.
func (c *Coordinator) Destroy() {
	for _, ch := range c.chunks {
		ch.Destroy()
	}
	c.chunks = nil
	c.placements = make(map[ID]*placement)
	if c.template != nil {
		c.dev.DestroyBuffer(c.template.Vertices)
		c.dev.DestroyBuffer(c.template.Indices)
	}
	c.dev.DestroyProgram(c.program)
}
