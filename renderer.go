package batch

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/batch/atlas"
	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/internal/coordinator"
	"github.com/gogpu/batch/rendertype"
	"github.com/gogpu/batch/uniform"
)

// Renderer routes render objects to per-type coordinators, owns the
// texture atlas and draws everything once per Render call.
//
// A Renderer is driven from one goroutine. Only the atlas update queue,
// fed by image loads, is safe for concurrent use.
type Renderer struct {
	dev    gpucore.Device
	window gpucontext.WindowProvider

	types  *rendertype.Registry
	coords map[*rendertype.RenderType]*coordinator.Coordinator
	order  []*coordinator.Coordinator

	atlas   *atlas.Packer
	watcher *atlas.FileWatcher
	globals uniform.Globals
	closed  bool

	// ownsDevice makes Close destroy dev.
	ownsDevice bool
}

// Stats summarizes renderer occupancy for diagnostics.
type Stats struct {
	// Types holds per render type chunk occupancy, in registration order.
	Types []TypeStats

	// AtlasInstances lists the live atlas textures.
	AtlasInstances []atlas.InstanceInfo
}

// TypeStats is the occupancy of one render type.
type TypeStats struct {
	Name string
	coordinator.Stats
}

// New creates a renderer drawing with dev into a viewport that follows
// window. Register render types before adding objects of them.
func New(dev gpucore.Device, window gpucontext.WindowProvider, opts ...Option) (*Renderer, error) {
	if window == nil {
		return nil, ErrNilSurface
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var popts []atlas.Option
	if o.loader != nil {
		popts = append(popts, atlas.WithLoader(o.loader))
	}
	packer, err := atlas.New(dev, o.atlasWidth, o.atlasHeight, popts...)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	types, _ := rendertype.NewRegistry()
	r := &Renderer{
		dev:     dev,
		window:  window,
		types:   types,
		coords:  make(map[*rendertype.RenderType]*coordinator.Coordinator),
		atlas:   packer,
		globals: o.globals,
	}
	if o.hotReload {
		if r.watcher, err = atlas.NewFileWatcher(packer); err != nil {
			packer.Close()
			return nil, fmt.Errorf("batch: %w", err)
		}
	}
	Logger().Info("batch: renderer created",
		"atlas_width", o.atlasWidth, "atlas_height", o.atlasHeight, "hot_reload", o.hotReload)
	return r, nil
}

// Register compiles a program for each type and readies its coordinator.
// Types draw in registration order. Registering a type twice is a no-op.
func (r *Renderer) Register(types ...*rendertype.RenderType) error {
	if r.closed {
		return ErrRendererClosed
	}
	for _, rt := range types {
		if _, ok := r.coords[rt]; ok {
			continue
		}
		if err := r.types.Register(rt); err != nil {
			return fmt.Errorf("batch: register: %w", err)
		}
		c, err := coordinator.New(r.dev, rt)
		if err != nil {
			return fmt.Errorf("batch: register: %w", err)
		}
		r.coords[rt] = c
		r.order = append(r.order, c)
	}
	return nil
}

// Types returns the registry of registered render types.
func (r *Renderer) Types() *rendertype.Registry { return r.types }

// Update adds obj, or rewrites it if it is already placed. Objects whose
// shape or uniforms no longer fit their chunk move to another one.
func (r *Renderer) Update(obj *RenderObject) error {
	if r.closed {
		return ErrRendererClosed
	}
	c, ok := r.coords[obj.rt]
	if !ok {
		return fmt.Errorf("batch: %q: %w", obj.rt.Name(), ErrUnregisteredType)
	}
	if obj.token != nil && obj.token.Live() {
		if obj.owner != r {
			return ErrForeignObject
		}
		return c.Update(obj.token, obj.geometry())
	}
	tok, err := c.Add(obj.geometry())
	if err != nil {
		return fmt.Errorf("batch: %q: %w", obj.rt.Name(), err)
	}
	obj.token = tok
	obj.owner = r
	return nil
}

// Render draws one frame: queued texture updates are flushed, the
// viewport is sized to the window's physical size, and every coordinator
// draws its chunks.
func (r *Renderer) Render() error {
	if r.closed {
		return ErrRendererClosed
	}
	if err := r.atlas.Flush(); err != nil {
		// Failed uploads leave their handles on the previous pixels.
		Logger().Warn("batch: atlas flush", "err", err)
	}

	w, h := r.Viewport()
	f, err := r.dev.BeginFrame(w, h)
	if err != nil {
		return fmt.Errorf("batch: begin frame: %w", err)
	}
	for _, c := range r.order {
		if err := c.Render(f, r.globals); err != nil {
			return errors.Join(fmt.Errorf("batch: render: %w", err), f.End())
		}
	}
	if err := f.End(); err != nil {
		return fmt.Errorf("batch: end frame: %w", err)
	}
	return nil
}

// Viewport returns the window size in physical pixels.
func (r *Renderer) Viewport() (width, height int) {
	w, h := r.window.Size()
	s := r.window.ScaleFactor()
	return int(math.Round(float64(w) * s)), int(math.Round(float64(h) * s))
}

// UploadTexture places src in the atlas synchronously.
func (r *Renderer) UploadTexture(src atlas.Source) (*atlas.Handle, error) {
	if r.closed {
		return nil, ErrRendererClosed
	}
	return r.atlas.Add(src)
}

// UpdateTexture replaces the pixels behind h. Same-sized sources of the
// same format are written in place; others move to a new region.
func (r *Renderer) UpdateTexture(h *atlas.Handle, src atlas.Source) error {
	if r.closed {
		return ErrRendererClosed
	}
	return r.atlas.Update(h, src)
}

// UploadImageFromURL returns a placeholder-backed handle for url. The
// image replaces the placeholder at the first Render after it loads.
// With hot reload enabled, local files are watched for changes.
func (r *Renderer) UploadImageFromURL(url string, minFilter, magFilter gpucore.FilterMode) (*atlas.Handle, error) {
	if r.closed {
		return nil, ErrRendererClosed
	}
	h, err := r.atlas.UploadURL(url, minFilter, magFilter)
	if err != nil {
		return nil, err
	}
	if r.watcher != nil && isLocal(url) {
		if err := r.watcher.Watch(url, h, atlas.WithFilters(minFilter, magFilter)); err != nil {
			Logger().Warn("batch: hot reload unavailable", "url", url, "err", err)
		}
	}
	return h, nil
}

func isLocal(url string) bool {
	return strings.HasPrefix(url, "file://") || !strings.Contains(url, "://")
}

// TexCoord maps handle-local UVs in [0,1] to atlas texture coordinates.
func (r *Renderer) TexCoord(h *atlas.Handle, u, v float32) (float32, float32) {
	return r.atlas.TexCoord(h, u, v)
}

// Atlas returns the texture atlas.
func (r *Renderer) Atlas() *atlas.Packer { return r.atlas }

// Globals returns the frame-supplied matrices.
func (r *Renderer) Globals() uniform.Globals { return r.globals }

// SetGlobals replaces the frame-supplied matrices.
func (r *Renderer) SetGlobals(g uniform.Globals) { r.globals = g }

// SetProjection replaces the projection matrix.
func (r *Renderer) SetProjection(m uniform.Mat4) { r.globals.Projection = m }

// SetView replaces the view matrix.
func (r *Renderer) SetView(m uniform.Mat4) { r.globals.View = m }

// Stats reports chunk and atlas occupancy.
func (r *Renderer) Stats() Stats {
	var s Stats
	for _, c := range r.order {
		s.Types = append(s.Types, TypeStats{Name: c.RenderType().Name(), Stats: c.Stats()})
	}
	s.AtlasInstances = r.atlas.Instances()
	return s
}

// Close releases every GPU resource the renderer created. A device passed
// to New stays open; one opened by NewFromProvider is destroyed.
func (r *Renderer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	if r.watcher != nil {
		err = r.watcher.Close()
	}
	for _, c := range r.order {
		c.Destroy()
	}
	r.order = nil
	clear(r.coords)
	r.atlas.Close()
	if r.ownsDevice {
		r.dev.Destroy()
	}
	Logger().Info("batch: renderer closed")
	return err
}
