package atlas

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/batch/gpucore"
)

func newWatched(t *testing.T) (*Packer, *FileWatcher, *Handle, string) {
	t.Helper()
	p := newPacker(t, gpucore.NewMemoryDevice(), 64, 64)
	h, err := p.Add(solid(t, 2, 2, gpucore.TextureFormatRGBA8, 0))
	if err != nil {
		t.Fatal(err)
	}
	fw, err := NewFileWatcher(p)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	t.Cleanup(func() { fw.Close() })
	path := filepath.Join(t.TempDir(), "sprite.png")
	if err := fw.Watch("file://"+path, h); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	return p, fw, h, path
}

func TestFileWatcherReload(t *testing.T) {
	p, fw, h, path := newWatched(t)
	if err := os.WriteFile(path, pngBytes(t, 4, 3), 0o600); err != nil {
		t.Fatal(err)
	}
	fw.reload(path)
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if r := h.Region(); r.Width != 4 || r.Height != 3 {
		t.Errorf("Region() = %v, want 4x3", r)
	}

	// A partial file leaves the handle alone.
	if err := os.WriteFile(path, []byte("\x89PNG"), 0o600); err != nil {
		t.Fatal(err)
	}
	fw.reload(path)
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if r := h.Region(); r.Width != 4 {
		t.Errorf("Region() after bad write = %v, want 4x3", r)
	}
}

func TestFileWatcherEvents(t *testing.T) {
	p, _, h, path := newWatched(t)
	if err := os.WriteFile(path, pngBytes(t, 6, 5), 0o600); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := p.Flush(); err != nil {
			t.Fatal(err)
		}
		if r := h.Region(); r.Width == 6 && r.Height == 5 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Region() = %v after write, want 6x5", h.Region())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFileWatcherUnwatchClose(t *testing.T) {
	p, fw, h, path := newWatched(t)
	if err := fw.Unwatch(path); err != nil {
		t.Fatalf("Unwatch() error = %v", err)
	}
	if err := fw.Unwatch(path); err != nil {
		t.Errorf("second Unwatch() error = %v", err)
	}
	if err := os.WriteFile(path, pngBytes(t, 8, 8), 0o600); err != nil {
		t.Fatal(err)
	}
	fw.reload(path)
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if r := h.Region(); r.Width != 2 {
		t.Errorf("Region() after Unwatch = %v, want 2x2", r)
	}

	if err := fw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := fw.Watch(path, h); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Watch() after Close error = %v, want %v", err, ErrWatcherClosed)
	}
}

func TestFileWatcherForgetsReleasedHandle(t *testing.T) {
	p, fw, h, path := newWatched(t)
	if err := fw.Watch(path, h); err != nil {
		t.Fatal(err)
	}
	fw.mu.Lock()
	n := len(fw.files[path])
	fw.mu.Unlock()
	if n != 1 {
		t.Fatalf("registrations after watching twice = %d, want 1", n)
	}

	h.Release()
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	fw.mu.Lock()
	files, dirs := len(fw.files), len(fw.dirs)
	fw.mu.Unlock()
	if files != 0 || dirs != 0 {
		t.Errorf("after release: %d files, %d dirs watched, want none", files, dirs)
	}
}
