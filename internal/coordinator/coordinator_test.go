package coordinator

import (
	"errors"
	"testing"

	"github.com/gogpu/batch/atlas"
	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/internal/chunk"
	"github.com/gogpu/batch/rendertype"
	"github.com/gogpu/batch/uniform"
)

func spriteType(t *testing.T, sizing rendertype.Sizing) *rendertype.RenderType {
	t.Helper()
	rt, err := rendertype.New(rendertype.Desc{
		Name:           "sprite",
		VertexShader:   "vs",
		FragmentShader: "fs",
		Attributes: []rendertype.VertexAttribute{
			{Name: "pos", Type: rendertype.Vec2},
			{Name: "uv", Role: rendertype.RoleTextureCoordinate, Type: rendertype.Vec2},
		},
		Uniforms: []rendertype.UniformAttribute{
			{Name: "alpha", Kind: rendertype.KindFloat},
			{Name: "image", Kind: rendertype.KindTexture},
		},
		Sizing: sizing,
	})
	if err != nil {
		t.Fatal(err)
	}
	return rt
}

func quad(rt *rendertype.RenderType, u *uniform.Block) chunk.Geometry {
	return chunk.Geometry{
		Vertices: make([]byte, 4*rt.Stride()),
		Indices:  []uint16{0, 1, 2, 0, 2, 3},
		Uniforms: u,
	}
}

func newCoordinator(t *testing.T, dev gpucore.Device, rt *rendertype.RenderType) *Coordinator {
	t.Helper()
	c, err := New(dev, rt)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Destroy)
	return c
}

func TestDoubleRemoveIsNoop(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	rt := spriteType(t, rendertype.Fixed(20, 20))
	c := newCoordinator(t, dev, rt)

	a, err := c.Add(quad(rt, nil))
	if err != nil {
		t.Fatal(err)
	}
	c.Add(quad(rt, nil))

	a.Release()
	c.Sweep()
	before := c.chunks[0].VertexFree().Ranges()

	a.Release()
	c.Sweep()
	after := c.chunks[0].VertexFree().Ranges()
	if len(before) != len(after) || before[0] != after[0] {
		t.Errorf("free list changed on second remove: %v -> %v", before, after)
	}
	if got := c.Stats().Objects; got != 1 {
		t.Errorf("Objects = %d, want 1", got)
	}
}

func TestRemovalDeferredUntilSweep(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	rt := spriteType(t, rendertype.Fixed(20, 20))
	c := newCoordinator(t, dev, rt)

	a, _ := c.Add(quad(rt, nil))
	a.Retain()
	a.Release()
	if _, _, ok := c.Placement(a); !ok {
		t.Fatal("object removed while a reference is held")
	}
	a.Release()
	if _, _, ok := c.Placement(a); !ok {
		t.Fatal("object removed before sweep")
	}
	f, _ := dev.BeginFrame(4, 4)
	if err := c.Render(f, uniform.DefaultGlobals()); err != nil {
		t.Fatal(err)
	}
	f.End()
	if _, _, ok := c.Placement(a); ok {
		t.Error("object still placed after Render")
	}
}

func TestDifferentAtlasInstancesNeverShareChunk(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p, err := atlas.New(dev, 32, 32)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	img := func(unique bool) *atlas.Handle {
		var opts []atlas.SourceOption
		if unique {
			opts = append(opts, atlas.AsUnique())
		}
		src, _ := atlas.NewRawSource(2, 2, gpucore.TextureFormatRGBA8, make([]byte, 16), opts...)
		h, err := p.Add(src)
		if err != nil {
			t.Fatal(err)
		}
		return h
	}

	rt := spriteType(t, rendertype.Fixed(64, 96))
	c := newCoordinator(t, dev, rt)

	blocks := make([]*uniform.Block, 3)
	handles := []*atlas.Handle{img(false), img(true), img(false)}
	for i, h := range handles {
		blocks[i] = &uniform.Block{}
		blocks[i].Set(rt, "alpha", uniform.Float(1))
		blocks[i].Set(rt, "image", uniform.Texture{Handle: h})
	}

	var labels []string
	for _, b := range blocks {
		tok, err := c.Add(quad(rt, b))
		if err != nil {
			t.Fatal(err)
		}
		label, _, _ := c.Placement(tok)
		labels = append(labels, label)
	}
	if labels[0] == labels[1] {
		t.Error("objects with textures in different instances share a chunk")
	}
	if labels[0] != labels[2] {
		t.Error("objects with textures in the same instance split across chunks")
	}
	if got := c.Stats().Chunks; got != 2 {
		t.Errorf("Chunks = %d, want 2", got)
	}

	f, _ := dev.BeginFrame(8, 8)
	c.Render(f, uniform.DefaultGlobals())
	f.End()
	fr, _ := dev.LastFrame()
	if len(fr.Draws) != 2 {
		t.Fatalf("draws = %d, want 2", len(fr.Draws))
	}
	if fr.Draws[0].Call.Textures[0] == fr.Draws[1].Call.Textures[0] {
		t.Error("both draws bind the same texture")
	}
}

func TestChunkGrowth(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	rt := spriteType(t, rendertype.Growable(4, 16, 6, 24, 2, 2))
	c := newCoordinator(t, dev, rt)

	for range 7 {
		if _, err := c.Add(quad(rt, nil)); err != nil {
			t.Fatal(err)
		}
	}
	// Chunks hold 4, 8 and 16 vertices: 1 + 2 + 4 quads.
	if got := c.Stats().Chunks; got != 3 {
		t.Errorf("Chunks = %d, want 3", got)
	}
	if got, want := c.Stats().VertexBytes, (4+8+16)*rt.Stride(); got != want {
		t.Errorf("VertexBytes = %d, want %d", got, want)
	}
}

func TestUpdate(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	rt := spriteType(t, rendertype.Fixed(8, 12))
	c := newCoordinator(t, dev, rt)

	tok, _ := c.Add(quad(rt, nil))
	label, at, _ := c.Placement(tok)

	if err := c.Update(tok, quad(rt, nil)); err != nil {
		t.Fatal(err)
	}
	if l2, at2, _ := c.Placement(tok); l2 != label || at2 != at {
		t.Error("same-shape update moved the object")
	}

	bigger := chunk.Geometry{Vertices: make([]byte, 6*rt.Stride()), Indices: make([]uint16, 12)}
	if err := c.Update(tok, bigger); err != nil {
		t.Fatal(err)
	}
	_, at3, ok := c.Placement(tok)
	if !ok || at3.Vertices.Size != 6*rt.Stride() {
		t.Errorf("reshaped placement = %+v, %v", at3, ok)
	}
	if got := c.Stats().Objects; got != 1 {
		t.Errorf("Objects = %d, want 1", got)
	}

	tok.Release()
	if err := c.Update(tok, quad(rt, nil)); err != nil {
		t.Errorf("Update(released) error = %v", err)
	}
	if got := c.Stats().Objects; got != 0 {
		t.Errorf("Objects = %d after released update, want 0", got)
	}
}

// flakyDevice fails buffer creation while fail is set.
type flakyDevice struct {
	*gpucore.MemoryDevice
	fail bool
}

func (d *flakyDevice) CreateBuffer(label string, size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if d.fail {
		return gpucore.InvalidID, errors.New("out of memory")
	}
	return d.MemoryDevice.CreateBuffer(label, size, usage)
}

func TestUpdateRetriesAfterFailedPlacement(t *testing.T) {
	dev := &flakyDevice{MemoryDevice: gpucore.NewMemoryDevice()}
	rt := spriteType(t, rendertype.Fixed(4, 6))
	c := newCoordinator(t, dev, rt)

	tok, err := c.Add(quad(rt, nil))
	if err != nil {
		t.Fatal(err)
	}
	bigger := chunk.Geometry{Vertices: make([]byte, 8*rt.Stride()), Indices: make([]uint16, 12)}

	dev.fail = true
	if err := c.Update(tok, bigger); err == nil {
		t.Fatal("Update() with failing device succeeded")
	}
	if _, _, ok := c.Placement(tok); ok {
		t.Fatal("object placed after failed Update")
	}
	if !tok.Live() {
		t.Fatal("token released by failed Update")
	}

	dev.fail = false
	if err := c.Update(tok, bigger); err != nil {
		t.Fatalf("retried Update() error = %v", err)
	}
	_, at, ok := c.Placement(tok)
	if !ok || at.Vertices.Size != 8*rt.Stride() {
		t.Errorf("Placement() = %+v, %v after retry", at, ok)
	}
	if got := c.Stats().Objects; got != 1 {
		t.Errorf("Objects = %d, want 1", got)
	}
}

func TestMovedTextureKeepsChunkTexture(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p, err := atlas.New(dev, 32, 32)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	img := func(w int) atlas.Source {
		src, err := atlas.NewRawSource(w, w, gpucore.TextureFormatRGBA8, make([]byte, w*w*4))
		if err != nil {
			t.Fatal(err)
		}
		return src
	}
	a, _ := p.Add(img(2))
	b, _ := p.Add(img(2))
	oldTex := b.Texture()

	rt := spriteType(t, rendertype.Fixed(64, 96))
	c := newCoordinator(t, dev, rt)
	block := func(h *atlas.Handle) *uniform.Block {
		u := &uniform.Block{}
		u.Set(rt, "alpha", uniform.Float(1))
		u.Set(rt, "image", uniform.Texture{Handle: h})
		return u
	}
	ta, _ := c.Add(quad(rt, block(a)))
	tb, _ := c.Add(quad(rt, block(b)))
	la, _, _ := c.Placement(ta)
	lb, _, _ := c.Placement(tb)
	if la != lb {
		t.Fatal("same-instance objects split across chunks")
	}

	// a moves to a new instance; b still draws from the old one.
	if err := p.Update(a, img(40)); err != nil {
		t.Fatal(err)
	}
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	f, _ := dev.BeginFrame(8, 8)
	c.Render(f, uniform.DefaultGlobals())
	f.End()
	fr, _ := dev.LastFrame()
	if len(fr.Draws) != 1 || fr.Draws[0].Call.Textures[0] != oldTex {
		t.Fatalf("draw textures = %+v, want [%v]", fr.Draws, oldTex)
	}

	tc, _ := c.Add(quad(rt, block(a)))
	if lc, _, _ := c.Placement(tc); lc == la {
		t.Error("object on the new instance joined the chunk drawing the old one")
	}
}

func TestAddValidation(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	rt := spriteType(t, rendertype.Unique())
	c := newCoordinator(t, dev, rt)

	tests := []struct {
		name string
		g    chunk.Geometry
		want error
	}{
		{"partial record", chunk.Geometry{Vertices: make([]byte, rt.Stride()+1)}, ErrPartialRecord},
		{"too large", chunk.Geometry{Vertices: make([]byte, (rendertype.MaxChunkVertices+1)*rt.Stride())}, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Add(tt.g); !errors.Is(err, tt.want) {
				t.Errorf("Add() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestZeroSizedObject(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	rt := spriteType(t, rendertype.Fixed(4, 6))
	c := newCoordinator(t, dev, rt)
	tok, err := c.Add(chunk.Geometry{})
	if err != nil {
		t.Fatalf("Add(empty) error = %v", err)
	}
	tok.Release()
	c.Sweep()
	if c.Stats().Objects != 0 {
		t.Error("empty object not removed")
	}
}

func TestInstancedTemplate(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	rt, err := rendertype.New(rendertype.Desc{
		Name:               "dots",
		VertexShader:       "vs",
		FragmentShader:     "fs",
		Attributes:         []rendertype.VertexAttribute{{Name: "corner", Type: rendertype.Vec2}},
		InstanceAttributes: []rendertype.VertexAttribute{{Name: "center", Type: rendertype.Vec2}},
		Template:           &rendertype.Template{Vertices: make([]byte, 24), Indices: []uint16{0, 1, 2}},
		Sizing:             rendertype.Fixed(8, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	c := newCoordinator(t, dev, rt)
	for range 5 {
		c.Add(chunk.Geometry{Vertices: make([]byte, rt.Stride())})
	}
	f, _ := dev.BeginFrame(1, 1)
	if err := c.Render(f, uniform.DefaultGlobals()); err != nil {
		t.Fatal(err)
	}
	f.End()
	fr, _ := dev.LastFrame()
	if call := fr.Draws[0].Call; call.InstanceCount != 5 || call.IndexCount != 3 {
		t.Errorf("draw = %d instances x %d indices, want 5 x 3", call.InstanceCount, call.IndexCount)
	}
}
