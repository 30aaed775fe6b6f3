package uniform

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/batch/atlas"
	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/rendertype"
)

func testType(t *testing.T) *rendertype.RenderType {
	t.Helper()
	rt, err := rendertype.New(rendertype.Desc{
		Name:           "sprite",
		VertexShader:   "vs",
		FragmentShader: "fs",
		Attributes:     []rendertype.VertexAttribute{{Name: "pos", Type: rendertype.Vec2}},
		Uniforms: []rendertype.UniformAttribute{
			{Name: "alpha", Kind: rendertype.KindFloat},
			{Name: "layer", Kind: rendertype.KindInt},
			{Name: "image", Kind: rendertype.KindTexture},
			{Name: "proj", Role: rendertype.UniformProjection},
			{Name: "tint", Kind: rendertype.KindVec4},
		},
	})
	if err != nil {
		t.Fatalf("rendertype.New() error = %v", err)
	}
	return rt
}

func handle(t *testing.T, p *atlas.Packer, unique bool) *atlas.Handle {
	t.Helper()
	var opts []atlas.SourceOption
	if unique {
		opts = append(opts, atlas.AsUnique())
	}
	src, err := atlas.NewRawSource(2, 2, gpucore.TextureFormatRGBA8, make([]byte, 16), opts...)
	if err != nil {
		t.Fatal(err)
	}
	h, err := p.Add(src)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestSetRejects(t *testing.T) {
	rt := testType(t)
	var b Block
	tests := []struct {
		name  string
		key   string
		value Value
		want  bool
	}{
		{"float", "alpha", Float(0.5), true},
		{"unknown", "missing", Float(1), false},
		{"kind mismatch", "alpha", Vec2{1, 2}, false},
		{"nil", "tint", nil, false},
		{"external proj", "proj", External{Role: rendertype.UniformProjection}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Set(rt, tt.key, tt.value); got != tt.want {
				t.Errorf("Set(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
	if v, _ := b.Get("alpha"); v != Float(0.5) {
		t.Errorf("Get(alpha) = %v, want 0.5", v)
	}
}

func TestBatchableWith(t *testing.T) {
	rt := testType(t)
	p, err := atlas.New(gpucore.NewMemoryDevice(), 64, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	shared1 := handle(t, p, false)
	shared2 := handle(t, p, false)
	other := handle(t, p, true)
	if shared1.Region() == shared2.Region() {
		t.Fatal("shared handles overlap")
	}

	block := func(alpha float32, h *atlas.Handle) *Block {
		b := &Block{}
		b.Set(rt, "alpha", Float(alpha))
		if h != nil {
			b.Set(rt, "image", Texture{Handle: h})
		}
		return b
	}

	tests := []struct {
		name string
		a, b *Block
		want bool
	}{
		{"equal scalars", block(1, nil), block(1, nil), true},
		{"different scalars", block(1, nil), block(2, nil), false},
		{"missing in other", block(1, shared1), block(1, nil), false},
		{"missing in self", block(1, nil), block(1, shared1), false},
		{"same instance different rect", block(1, shared1), block(1, shared2), true},
		{"different instance", block(1, shared1), block(1, other), false},
		{"empty", &Block{}, &Block{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.BatchableWith(tt.b); got != tt.want {
				t.Errorf("BatchableWith() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPack(t *testing.T) {
	rt := testType(t)
	var b Block
	b.Set(rt, "alpha", Float(0.25))
	b.Set(rt, "layer", Int(-3))
	b.Set(rt, "tint", Vec4{1, 2, 3, 4})
	b.Set(rt, "proj", Identity())

	g := Globals{Projection: Ortho(0, 100, 0, 50), View: Identity()}
	dst := make([]byte, rt.UniformSize())
	b.Pack(rt, g, dst)

	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(dst[off:])) }

	_, alphaOff, _ := rt.Uniform("alpha")
	if got := f32(alphaOff); got != 0.25 {
		t.Errorf("alpha = %v, want 0.25", got)
	}
	_, layerOff, _ := rt.Uniform("layer")
	if got := int32(binary.LittleEndian.Uint32(dst[layerOff:])); got != -3 {
		t.Errorf("layer = %d, want -3", got)
	}
	_, projOff, _ := rt.Uniform("proj")
	if got := f32(projOff); got != g.Projection[0] {
		t.Errorf("proj[0] = %v, want frame global %v", got, g.Projection[0])
	}
	_, tintOff, _ := rt.Uniform("tint")
	if got := f32(tintOff + 12); got != 4 {
		t.Errorf("tint.w = %v, want 4", got)
	}
}

func TestTexturesAndClone(t *testing.T) {
	rt := testType(t)
	p, _ := atlas.New(gpucore.NewMemoryDevice(), 64, 64)
	defer p.Close()
	h := handle(t, p, false)

	var b Block
	if got := b.Textures(rt); len(got) != 1 || got[0] != gpucore.InvalidID {
		t.Errorf("Textures() unset = %v, want [InvalidID]", got)
	}
	b.Set(rt, "image", Texture{Handle: h})
	if got := b.Textures(rt); got[0] != h.Texture() {
		t.Errorf("Textures() = %v, want [%d]", got, h.Texture())
	}

	c := b.Clone()
	h.Release()
	if !h.Live() {
		t.Fatal("clone did not retain texture handle")
	}
	c.Release()
	if h.Live() {
		t.Error("handle still live after clone released")
	}
}
