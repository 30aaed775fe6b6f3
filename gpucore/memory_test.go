package gpucore

import (
	"bytes"
	"errors"
	"testing"
)

func TestTextureFormat(t *testing.T) {
	tests := []struct {
		format  TextureFormat
		wantStr string
		wantBPP int
	}{
		{TextureFormatRGB8, "RGB8", 3},
		{TextureFormatRGBA8, "RGBA8", 4},
		{TextureFormat(99), "Unknown", 0},
	}
	for _, tt := range tests {
		t.Run(tt.wantStr, func(t *testing.T) {
			if got := tt.format.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
			if got := tt.format.BytesPerPixel(); got != tt.wantBPP {
				t.Errorf("BytesPerPixel() = %d, want %d", got, tt.wantBPP)
			}
		})
	}
}

func TestVertexFormatSize(t *testing.T) {
	tests := []struct {
		format VertexFormat
		size   int
		comps  int
	}{
		{VertexFormatFloat32, 4, 1},
		{VertexFormatFloat32x2, 8, 2},
		{VertexFormatFloat32x3, 12, 3},
		{VertexFormatFloat32x4, 16, 4},
		{VertexFormatSint32, 4, 1},
	}
	for _, tt := range tests {
		if got := tt.format.Size(); got != tt.size {
			t.Errorf("VertexFormat(%d).Size() = %d, want %d", tt.format, got, tt.size)
		}
		if got := tt.format.Components(); got != tt.comps {
			t.Errorf("VertexFormat(%d).Components() = %d, want %d", tt.format, got, tt.comps)
		}
	}
}

func TestMemoryDeviceBuffer(t *testing.T) {
	d := NewMemoryDevice()
	id, err := d.CreateBuffer("vb", 8, BufferUsageVertex|BufferUsageCopyDst)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if id == InvalidID {
		t.Fatal("CreateBuffer() returned InvalidID")
	}

	if err := d.WriteBuffer(id, 2, []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteBuffer() error = %v", err)
	}
	want := []byte{0, 0, 1, 2, 3, 0, 0, 0}
	if got := d.Buffer(id); !bytes.Equal(got, want) {
		t.Errorf("Buffer() = %v, want %v", got, want)
	}

	err = d.WriteBuffer(id, 6, []byte{1, 2, 3})
	if !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("WriteBuffer(past end) error = %v, want ErrOutOfBounds", err)
	}

	d.DestroyBuffer(id)
	if err := d.WriteBuffer(id, 0, []byte{1}); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("WriteBuffer(destroyed) error = %v, want ErrUnknownResource", err)
	}
	if d.LiveBuffers() != 0 {
		t.Errorf("LiveBuffers() = %d, want 0", d.LiveBuffers())
	}
}

func TestMemoryDeviceTexture(t *testing.T) {
	d := NewMemoryDevice()

	if _, err := d.CreateTexture(TextureDesc{Width: 0, Height: 4, Format: TextureFormatRGBA8}); err == nil {
		t.Error("CreateTexture(0 width) should fail")
	}

	id, err := d.CreateTexture(TextureDesc{Label: "atlas", Width: 4, Height: 4, Format: TextureFormatRGB8})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}

	// 2x1 block at (1,2).
	if err := d.WriteTexture(id, 1, 2, 2, 1, []byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("WriteTexture() error = %v", err)
	}
	_, px, ok := d.Texture(id)
	if !ok {
		t.Fatal("Texture() not found")
	}
	off := (2*4 + 1) * 3
	if !bytes.Equal(px[off:off+6], []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("pixels at (1,2) = %v", px[off:off+6])
	}

	if err := d.WriteTexture(id, 3, 3, 2, 1, make([]byte, 6)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("WriteTexture(outside) error = %v, want ErrOutOfBounds", err)
	}
}

func TestMemoryDeviceFrames(t *testing.T) {
	d := NewMemoryDevice()
	prog, err := d.CreateProgram(ProgramDesc{Label: "p", VertexShader: "vs", FragmentShader: "fs"})
	if err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	if _, err := d.CreateProgram(ProgramDesc{Label: "empty"}); err == nil {
		t.Error("CreateProgram(empty) should fail")
	}

	f, err := d.BeginFrame(640, 480)
	if err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if _, err := d.BeginFrame(1, 1); !errors.Is(err, ErrFrameActive) {
		t.Errorf("nested BeginFrame() error = %v, want ErrFrameActive", err)
	}

	f.SetProgram(prog)
	if err := f.Draw(DrawCall{IndexCount: 6}); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if err := f.End(); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	rec, ok := d.LastFrame()
	if !ok {
		t.Fatal("LastFrame() missing")
	}
	if rec.Width != 640 || rec.Height != 480 {
		t.Errorf("frame size = %dx%d, want 640x480", rec.Width, rec.Height)
	}
	if len(rec.Draws) != 1 || rec.Draws[0].Program != prog || rec.Draws[0].Call.IndexCount != 6 {
		t.Errorf("draws = %+v", rec.Draws)
	}
	if got := rec.Draws[0].Call.Instances(); got != 1 {
		t.Errorf("Instances() = %d, want 1", got)
	}
}
