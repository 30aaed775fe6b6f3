package atlas

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/batch/gpucore"
)

// sizedSource has dimensions but no pixels, for exercising very large
// placements without allocating them.
type sizedSource struct {
	sourceOptions
	w, h int
}

func (s *sizedSource) Width() int                    { return s.w }
func (s *sizedSource) Height() int                   { return s.h }
func (s *sizedSource) Format() gpucore.TextureFormat { return gpucore.TextureFormatRGBA8 }
func (s *sizedSource) Valid() bool                   { return true }
func (s *sizedSource) source()                       {}
func (s *sizedSource) WriteInto(gpucore.Device, gpucore.TextureID, int, int) error {
	return nil
}

// shapeDevice tracks texture descriptors without backing storage.
type shapeDevice struct {
	*gpucore.MemoryDevice
	textures map[gpucore.TextureID]gpucore.TextureDesc
	next     gpucore.TextureID
}

func newShapeDevice() *shapeDevice {
	return &shapeDevice{
		MemoryDevice: gpucore.NewMemoryDevice(),
		textures:     make(map[gpucore.TextureID]gpucore.TextureDesc),
	}
}

func (d *shapeDevice) CreateTexture(desc gpucore.TextureDesc) (gpucore.TextureID, error) {
	d.next++
	d.textures[d.next] = desc
	return d.next, nil
}

func (d *shapeDevice) DestroyTexture(id gpucore.TextureID) { delete(d.textures, id) }

func solid(t *testing.T, w, h int, format gpucore.TextureFormat, fill byte, opts ...SourceOption) *RawSource {
	t.Helper()
	px := bytes.Repeat([]byte{fill}, w*h*format.BytesPerPixel())
	src, err := NewRawSource(w, h, format, px, opts...)
	if err != nil {
		t.Fatalf("NewRawSource() error = %v", err)
	}
	return src
}

func newPacker(t *testing.T, dev gpucore.Device, w, h int, opts ...Option) *Packer {
	t.Helper()
	p, err := New(dev, w, h, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestUniqueSourceGetsDedicatedInstance(t *testing.T) {
	dev := newShapeDevice()
	p := newPacker(t, dev, 8192, 8192)

	shared, err := p.Add(&sizedSource{w: 64, h: 64})
	if err != nil {
		t.Fatalf("Add(shared) error = %v", err)
	}
	unique, err := p.Add(&sizedSource{w: 4096, h: 4096, sourceOptions: sourceOptions{unique: true}})
	if err != nil {
		t.Fatalf("Add(unique) error = %v", err)
	}
	if unique.SameInstance(shared) {
		t.Fatal("unique source placed in the shared instance")
	}
	infos := p.Instances()
	if len(infos) != 2 {
		t.Fatalf("Instances() = %d, want 2", len(infos))
	}
	if got := infos[1]; !got.Unique || got.Width != 4096 || got.Height != 4096 {
		t.Errorf("unique instance = %+v, want dedicated 4096x4096", got)
	}

	// Later shared sources never land in the unique instance.
	other, _ := p.Add(&sizedSource{w: 16, h: 16})
	if !other.SameInstance(shared) {
		t.Error("shared source left the shared instance")
	}
}

func TestAddFillsOneInstance(t *testing.T) {
	dev := newShapeDevice()
	p := newPacker(t, dev, 256, 256)

	// 16 tiles of 64x64 cover the instance exactly.
	var first *Handle
	for i := range 16 {
		h, err := p.Add(&sizedSource{w: 64, h: 64})
		if err != nil {
			t.Fatalf("Add #%d error = %v", i, err)
		}
		if first == nil {
			first = h
		} else if !h.SameInstance(first) {
			t.Fatalf("Add #%d opened a second instance", i)
		}
	}
	if n := len(p.Instances()); n != 1 {
		t.Fatalf("Instances() = %d, want 1", n)
	}

	// Nothing fits now: exactly one new instance.
	h, err := p.Add(&sizedSource{w: 8, h: 8})
	if err != nil {
		t.Fatalf("Add(overflow) error = %v", err)
	}
	if h.SameInstance(first) {
		t.Error("overflow placed in full instance")
	}
	if n := len(p.Instances()); n != 2 {
		t.Errorf("Instances() = %d, want 2", n)
	}
}

func TestAddOversizeSource(t *testing.T) {
	dev := newShapeDevice()
	p := newPacker(t, dev, 128, 128)
	if _, err := p.Add(&sizedSource{w: 300, h: 50}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	infos := p.Instances()
	if len(infos) != 1 || infos[0].Width != 300 || infos[0].Height != 128 {
		t.Errorf("instance = %+v, want 300x128", infos)
	}
}

func TestAddFormatMatching(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 32, 32)

	rgba, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGBA8, 1))
	rgb, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGB8, 2))
	rgba2, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGBA8, 3))
	if rgb.SameInstance(rgba) {
		t.Error("RGB source shared an RGBA instance")
	}
	if !rgba2.SameInstance(rgba) {
		t.Error("RGBA sources split across instances")
	}
}

func TestAddUploadsPixels(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 8, 8)
	h, err := p.Add(solid(t, 2, 2, gpucore.TextureFormatRGBA8, 0xAB))
	if err != nil {
		t.Fatal(err)
	}
	desc, px, ok := dev.Texture(h.Texture())
	if !ok {
		t.Fatal("instance texture missing")
	}
	r := h.Region()
	off := (r.Y*desc.Width + r.X) * 4
	if px[off] != 0xAB || px[off+4+3] != 0xAB {
		t.Errorf("pixels at %v not uploaded", r)
	}
	if !h.Loaded() {
		t.Error("Loaded() = false for raw source")
	}
}

func TestUpdateInPlace(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 16, 16)
	h, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGBA8, 1))
	before, version := h.Region(), h.Version()

	if err := p.Update(h, solid(t, 4, 4, gpucore.TextureFormatRGBA8, 9)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if h.Region() != before || h.Version() != version {
		t.Errorf("in-place update moved handle to %v", h.Region())
	}
	_, px, _ := dev.Texture(h.Texture())
	if px[(before.Y*16+before.X)*4] != 9 {
		t.Error("in-place update did not upload")
	}
}

func TestUpdateReallocates(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 16, 16)
	h, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGBA8, 1))
	version := h.Version()

	tests := []struct {
		name string
		src  Source
		w, h int
	}{
		{"larger", solid(t, 8, 6, gpucore.TextureFormatRGBA8, 2), 8, 6},
		{"other format", solid(t, 8, 6, gpucore.TextureFormatRGB8, 3), 8, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.Update(h, tt.src); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if r := h.Region(); r.Width != tt.w || r.Height != tt.h {
				t.Errorf("Region() = %v, want %dx%d", r, tt.w, tt.h)
			}
			if h.Version() == version {
				t.Error("Version() unchanged after reallocation")
			}
			version = h.Version()
		})
	}
	var rgb int
	for _, info := range p.Instances() {
		if info.Format == gpucore.TextureFormatRGB8 {
			rgb += info.Allocations
		}
	}
	if rgb != 1 {
		t.Errorf("RGB allocations = %d, want 1", rgb)
	}
}

func TestReleaseDefersRemoval(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 16, 16)
	a, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGBA8, 1))
	a.Retain()

	a.Release()
	if !a.Live() {
		t.Fatal("handle dead with one reference left")
	}
	a.Release()
	if a.InstanceID() == 0 {
		t.Fatal("placement freed before the queue was drained")
	}
	a.Release() // already released: no-op
	if len(p.removals) != 1 {
		t.Fatalf("removal queue = %d, want 1", len(p.removals))
	}

	if err := p.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if a.InstanceID() != 0 {
		t.Error("placement not freed by Flush")
	}
	if n := len(p.Instances()); n != 0 {
		t.Errorf("Instances() = %d after Flush, want empty instance destroyed", n)
	}
	if n := dev.LiveTextures(); n != 0 {
		t.Errorf("LiveTextures() = %d, want 0", n)
	}
}

func TestDrainedInstanceReusedBeforeFlush(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 16, 16)
	a, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGBA8, 1))
	id := a.InstanceID()
	a.Release()

	// Add drains the queue, then reuses the now-empty instance.
	b, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGBA8, 2))
	if b.InstanceID() != id {
		t.Errorf("InstanceID() = %d, want reuse of %d", b.InstanceID(), id)
	}
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(p.Instances()) != 1 {
		t.Error("instance destroyed while holding a placement")
	}
}

func TestUpdateRemovedHandleIsNoop(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 16, 16)
	a, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGBA8, 1))
	a.Release()
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := p.Update(a, solid(t, 8, 8, gpucore.TextureFormatRGBA8, 1)); err != nil {
		t.Errorf("Update(removed) error = %v", err)
	}
	if len(p.Instances()) != 0 {
		t.Error("Update(removed) placed a source")
	}
}

func TestUpdateRetriesAfterFailedPlacement(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 16, 16)
	h, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGBA8, 1))

	if err := p.Update(h, &sizedSource{w: 0, h: 3}); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("Update(empty) error = %v, want %v", err, ErrInvalidSource)
	}
	if !h.Live() || h.InstanceID() != 0 {
		t.Fatalf("after failed Update: Live() = %v, InstanceID() = %d", h.Live(), h.InstanceID())
	}

	if err := p.Update(h, solid(t, 6, 6, gpucore.TextureFormatRGBA8, 2)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if r := h.Region(); r.Width != 6 || r.Height != 6 {
		t.Errorf("Region() = %v, want 6x6", r)
	}
	if h.InstanceID() == 0 {
		t.Error("handle not placed again")
	}
}

func TestPinKeepsInstance(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 16, 16)
	a, _ := p.Add(solid(t, 4, 4, gpucore.TextureFormatRGBA8, 1))
	tex := a.Texture()
	unpin := a.Pin()

	// Moving the only placement out drains the pinned instance.
	if err := p.Update(a, solid(t, 32, 32, gpucore.TextureFormatRGBA8, 2)); err != nil {
		t.Fatal(err)
	}
	if a.Texture() == tex {
		t.Fatal("handle did not move to a new instance")
	}
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := dev.Texture(tex); !ok {
		t.Fatal("pinned texture destroyed")
	}

	unpin()
	unpin()
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := dev.Texture(tex); ok {
		t.Error("texture kept after unpin")
	}
	if n := len(p.Instances()); n != 1 {
		t.Errorf("Instances() = %d, want 1", n)
	}
}

func TestTexCoord(t *testing.T) {
	dev := newShapeDevice()
	p := newPacker(t, dev, 100, 50)
	p.Add(&sizedSource{w: 20, h: 50})
	h, _ := p.Add(&sizedSource{w: 40, h: 10})
	r := h.Region()

	tests := []struct {
		u, v   float32
		wu, wv float32
	}{
		{0, 0, float32(r.X) / 100, float32(r.Y) / 50},
		{1, 1, float32(r.X+40) / 100, float32(r.Y+10) / 50},
		{0.5, 0.5, float32(r.X+20) / 100, float32(r.Y+5) / 50},
	}
	for _, tt := range tests {
		gu, gv := p.TexCoord(h, tt.u, tt.v)
		if gu != tt.wu || gv != tt.wv {
			t.Errorf("TexCoord(%v, %v) = (%v, %v), want (%v, %v)", tt.u, tt.v, gu, gv, tt.wu, tt.wv)
		}
	}
}

func TestEnqueueUpdateAppliesAtFlush(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 64, 64)
	h, _ := p.Add(NewPlaceholder())
	if h.Loaded() {
		t.Fatal("placeholder reported loaded")
	}
	if r := h.Region(); r.Width != 1 || r.Height != 1 {
		t.Fatalf("placeholder region = %v, want 1x1", r)
	}
	if u, v := h.TexCoord(1, 1); u <= 0 || v <= 0 {
		t.Errorf("placeholder TexCoord = (%v, %v)", u, v)
	}

	src := solid(t, 10, 10, gpucore.TextureFormatRGBA8, 5)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.EnqueueUpdate(h, src)
	}()
	wg.Wait()

	if h.Loaded() {
		t.Fatal("update applied before Flush")
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !h.Loaded() || h.Region().Width != 10 {
		t.Errorf("after Flush: loaded=%v region=%v", h.Loaded(), h.Region())
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUploadURL(t *testing.T) {
	encoded := pngBytes(t, 6, 3)
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	loader := LoaderFunc(func(ctx context.Context, url string, opts ...SourceOption) (Source, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return DecodeImage(bytes.NewReader(encoded), opts...)
	})

	dev := gpucore.NewMemoryDevice()
	p := newPacker(t, dev, 64, 64, WithLoader(loader))

	a, err := p.UploadURL("https://example.test/a.png", gpucore.FilterNearest, gpucore.FilterNearest)
	if err != nil {
		t.Fatalf("UploadURL() error = %v", err)
	}
	b, _ := p.UploadURL("https://example.test/a.png", gpucore.FilterNearest, gpucore.FilterNearest)
	if a != b {
		t.Error("same url returned different handles")
	}
	if a.Loaded() {
		t.Error("handle loaded before fetch completed")
	}

	close(release)
	deadline := time.Now().Add(5 * time.Second)
	for !a.Loaded() && time.Now().Before(deadline) {
		if err := p.Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if !a.Loaded() {
		t.Fatal("image never loaded")
	}
	if r := a.Region(); r.Width != 6 || r.Height != 3 {
		t.Errorf("Region() = %v, want 6x3", r)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("loader calls = %d, want 1", calls)
	}
}

func TestUploadURLAfterRelease(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context, url string, opts ...SourceOption) (Source, error) {
		return nil, errors.New("offline")
	})
	p := newPacker(t, gpucore.NewMemoryDevice(), 16, 16, WithLoader(loader))
	a, _ := p.UploadURL("x.png", gpucore.FilterLinear, gpucore.FilterLinear)
	a.Release()
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	b, _ := p.UploadURL("x.png", gpucore.FilterLinear, gpucore.FilterLinear)
	if a == b {
		t.Error("released handle served from url cache")
	}
}

func TestHTTPLoaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	if err := os.WriteFile(path, pngBytes(t, 5, 7), 0o600); err != nil {
		t.Fatal(err)
	}
	src, err := DefaultLoader().Load(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if src.Width() != 5 || src.Height() != 7 || src.Format() != gpucore.TextureFormatRGBA8 {
		t.Errorf("Load() = %dx%d %s", src.Width(), src.Height(), src.Format())
	}
}

func TestHTTPLoaderCache(t *testing.T) {
	body := pngBytes(t, 3, 2)
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/img.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	l := NewHTTPLoader(time.Second, 4)
	for range 3 {
		src, err := l.Load(context.Background(), srv.URL+"/img.png", WithFilters(gpucore.FilterNearest, gpucore.FilterNearest))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if src.Width() != 3 || src.Height() != 2 {
			t.Errorf("Load() = %dx%d, want 3x2", src.Width(), src.Height())
		}
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
	if st := l.CacheStats(); st.Hits != 2 || st.Len != 1 {
		t.Errorf("CacheStats() = %+v, want 2 hits, 1 entry", st)
	}

	if _, err := l.Load(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Error("Load(404) succeeded")
	}
	if st := l.CacheStats(); st.Len != 1 {
		t.Errorf("failed load cached: %+v", st)
	}
}

func TestHTTPLoaderNoCacheForFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	if err := os.WriteFile(path, pngBytes(t, 2, 2), 0o600); err != nil {
		t.Fatal(err)
	}
	l := DefaultLoader()
	if _, err := l.Load(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, pngBytes(t, 4, 4), 0o600); err != nil {
		t.Fatal(err)
	}
	src, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if src.Width() != 4 {
		t.Errorf("reloaded width = %d, want 4", src.Width())
	}
}

func TestNewRawSourceValidation(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		format gpucore.TextureFormat
		n      int
	}{
		{"zero width", 0, 4, gpucore.TextureFormatRGBA8, 0},
		{"short data", 2, 2, gpucore.TextureFormatRGBA8, 15},
		{"rgb as rgba", 2, 2, gpucore.TextureFormatRGB8, 16},
		{"unknown format", 2, 2, 0, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRawSource(tt.w, tt.h, tt.format, make([]byte, tt.n))
			if !errors.Is(err, ErrInvalidSource) {
				t.Errorf("NewRawSource() error = %v, want ErrInvalidSource", err)
			}
		})
	}
}

func TestClosedPacker(t *testing.T) {
	dev := gpucore.NewMemoryDevice()
	p, _ := New(dev, 16, 16)
	p.Add(solid(t, 2, 2, gpucore.TextureFormatRGBA8, 1))
	p.Close()
	if dev.LiveTextures() != 0 {
		t.Error("Close() leaked textures")
	}
	if _, err := p.Add(solid(t, 2, 2, gpucore.TextureFormatRGBA8, 1)); !errors.Is(err, ErrAtlasClosed) {
		t.Errorf("Add() after Close error = %v, want ErrAtlasClosed", err)
	}
}
