package atlas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"weak"

	"github.com/google/uuid"

	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/internal/logging"
)

// Atlas errors.
var (
	// ErrAtlasClosed is returned when operating on a closed packer.
	ErrAtlasClosed = errors.New("atlas: packer is closed")

	// ErrInvalidSource is returned for sources with no pixels or with
	// data that does not match their dimensions.
	ErrInvalidSource = errors.New("atlas: invalid source")

	// ErrInvalidSize is returned for non-positive instance sizes.
	ErrInvalidSize = errors.New("atlas: invalid instance size")
)

// instance is one GPU texture subdivided by a guillotine allocator.
type instance struct {
	id     uint64
	label  string
	tex    gpucore.TextureID
	width  int
	height int
	format gpucore.TextureFormat
	unique bool
	alloc  *GuillotineAllocator

	// drained is set when the last placement is removed. The instance is
	// destroyed at the next Flush if it is still empty and unpinned then.
	drained bool

	// pins counts draws still bound to the texture; see Handle.Pin.
	pins int
}

type pendingUpdate struct {
	h   *Handle
	src Source
}

// InstanceInfo describes one live atlas instance.
type InstanceInfo struct {
	ID          uint64
	Label       string
	Width       int
	Height      int
	Format      gpucore.TextureFormat
	Unique      bool
	Allocations int
	Utilization float64
}

// Option configures a Packer.
type Option func(*Packer)

// WithLoader sets the loader used by UploadURL. The default is
// DefaultLoader.
func WithLoader(l Loader) Option {
	return func(p *Packer) {
		p.loader = l
	}
}

// Packer places texture sources into shared GPU textures.
//
// All methods except EnqueueUpdate must be called from the goroutine that
// drives rendering. EnqueueUpdate may be called from any goroutine; the
// queued work is applied at the next Flush.
type Packer struct {
	dev       gpucore.Device
	minWidth  int
	minHeight int

	instances []*instance
	nextID    uint64

	// removals holds handles whose last reference was dropped.
	removals []*Handle

	mu      sync.Mutex
	updates []pendingUpdate

	urls   map[string]weak.Pointer[Handle]
	loader Loader

	// freed is called for every released handle whose placement is freed.
	freed []func(*Handle)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// New creates a packer whose shared instances are at least width x height.
func New(dev gpucore.Device, width, height int, opts ...Option) (*Packer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%dx%d: %w", width, height, ErrInvalidSize)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Packer{
		dev:       dev,
		minWidth:  width,
		minHeight: height,
		urls:      make(map[string]weak.Pointer[Handle]),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.loader == nil {
		p.loader = DefaultLoader()
	}
	return p, nil
}

// Add places src and returns a handle holding one reference.
func (p *Packer) Add(src Source) (*Handle, error) {
	if p.closed {
		return nil, ErrAtlasClosed
	}
	p.cleanup()
	h := &Handle{packer: p, refs: 1}
	if err := p.place(h, src); err != nil {
		return nil, err
	}
	return h, nil
}

// place allocates a rectangle for src, uploads it and binds h to it.
func (p *Packer) place(h *Handle, src Source) error {
	w, ht := src.Width(), src.Height()
	if w <= 0 || ht <= 0 || src.Format().BytesPerPixel() == 0 {
		return fmt.Errorf("%dx%d %s: %w", w, ht, src.Format(), ErrInvalidSource)
	}

	if !src.Unique() {
		for _, inst := range p.instances {
			if inst.unique || inst.format != src.Format() {
				continue
			}
			if id, r, ok := inst.alloc.Allocate(w, ht); ok {
				return p.bind(h, inst, id, r, src)
			}
		}
	}

	width, height := w, ht
	if !src.Unique() {
		width, height = max(p.minWidth, w), max(p.minHeight, ht)
	}
	inst, err := p.newInstance(width, height, src)
	if err != nil {
		return err
	}
	id, r, ok := inst.alloc.Allocate(w, ht)
	if !ok {
		// Unreachable: the instance is at least as large as the source.
		return fmt.Errorf("atlas: %dx%d does not fit new %dx%d instance", w, ht, width, height)
	}
	return p.bind(h, inst, id, r, src)
}

func (p *Packer) bind(h *Handle, inst *instance, id AllocID, r Region, src Source) error {
	inst.drained = false
	if err := src.WriteInto(p.dev, inst.tex, r.X, r.Y); err != nil {
		inst.alloc.Deallocate(id)
		if inst.alloc.IsEmpty() {
			inst.drained = true
		}
		return fmt.Errorf("atlas: upload to %s: %w", inst.label, err)
	}
	h.inst = inst
	h.alloc = id
	h.region = r
	h.loaded = src.Valid()
	h.version++
	return nil
}

func (p *Packer) newInstance(width, height int, src Source) (*instance, error) {
	p.nextID++
	inst := &instance{
		id:     p.nextID,
		label:  "atlas-" + uuid.NewString(),
		width:  width,
		height: height,
		format: src.Format(),
		unique: src.Unique(),
		alloc:  NewGuillotineAllocator(width, height),
	}
	tex, err := p.dev.CreateTexture(gpucore.TextureDesc{
		Label:     inst.label,
		Width:     width,
		Height:    height,
		Format:    inst.format,
		MinFilter: src.MinFilter(),
		MagFilter: src.MagFilter(),
	})
	if err != nil {
		return nil, fmt.Errorf("atlas: create %dx%d instance: %w", width, height, err)
	}
	inst.tex = tex
	p.instances = append(p.instances, inst)
	logging.Logger().Info("atlas: instance created",
		"id", inst.id,
		"label", inst.label,
		"width", width,
		"height", height,
		"format", inst.format,
		"unique", inst.unique)
	return inst, nil
}

// Update replaces the pixels behind h. A source with the placement's
// size and the instance's format is uploaded in place; anything else
// frees the placement and places src anew, moving h and bumping its
// Version. A moved handle may land in another instance: texture
// coordinates derived from it are stale, while draws that pinned the old
// texture keep it alive until they re-pin. If placing src fails, h keeps
// its references without a placement and the next Update places it
// again. Updating a released handle is a no-op.
func (p *Packer) Update(h *Handle, src Source) error {
	if p.closed {
		return ErrAtlasClosed
	}
	if h.refs <= 0 {
		logging.Logger().Debug("atlas: update on removed handle")
		return nil
	}
	inst := h.inst
	if inst != nil && src.Width() == h.region.Width && src.Height() == h.region.Height && src.Format() == inst.format {
		if err := src.WriteInto(p.dev, inst.tex, h.region.X, h.region.Y); err != nil {
			return fmt.Errorf("atlas: upload to %s: %w", inst.label, err)
		}
		h.loaded = src.Valid()
		return nil
	}

	p.cleanup()
	p.free(h)
	return p.place(h, src)
}

// EnqueueUpdate queues an update of h to be applied at the next Flush.
// It is safe for concurrent use.
func (p *Packer) EnqueueUpdate(h *Handle, src Source) {
	p.mu.Lock()
	p.updates = append(p.updates, pendingUpdate{h: h, src: src})
	p.mu.Unlock()
}

// Flush applies queued updates and removals, then destroys instances
// that stayed empty since the previous flush.
func (p *Packer) Flush() error {
	if p.closed {
		return ErrAtlasClosed
	}
	p.cleanup()

	p.mu.Lock()
	updates := p.updates
	p.updates = nil
	p.mu.Unlock()

	var errs []error
	for _, u := range updates {
		if err := p.Update(u.h, u.src); err != nil {
			logging.Logger().Warn("atlas: queued update failed", "err", err)
			errs = append(errs, err)
		}
	}
	p.cleanup()
	p.destroyDrained()
	return errors.Join(errs...)
}

// cleanup frees the placements of released handles in release order.
func (p *Packer) cleanup() {
	if len(p.removals) == 0 {
		return
	}
	for _, h := range p.removals {
		p.free(h)
		for _, fn := range p.freed {
			fn(h)
		}
		if h.url != "" {
			if wp, ok := p.urls[h.url]; ok && wp.Value() == h {
				delete(p.urls, h.url)
			}
		}
	}
	clear(p.removals)
	p.removals = p.removals[:0]
}

func (p *Packer) free(h *Handle) {
	inst := h.inst
	if inst == nil {
		return
	}
	if !inst.alloc.Deallocate(h.alloc) {
		logging.Logger().Debug("atlas: placement already freed", "instance", inst.id)
	}
	if inst.alloc.IsEmpty() {
		inst.drained = true
	}
	h.inst = nil
	h.alloc = 0
	h.region = Region{}
}

func (p *Packer) destroyDrained() {
	kept := p.instances[:0]
	for _, inst := range p.instances {
		if inst.drained && inst.alloc.IsEmpty() && inst.pins == 0 {
			p.dev.DestroyTexture(inst.tex)
			logging.Logger().Info("atlas: instance destroyed", "id", inst.id, "label", inst.label)
			continue
		}
		kept = append(kept, inst)
	}
	clear(p.instances[len(kept):])
	p.instances = kept
}

// TexCoord maps (u, v) in [0,1] over h's placement to instance texture
// coordinates.
func (p *Packer) TexCoord(h *Handle, u, v float32) (float32, float32) {
	return h.TexCoord(u, v)
}

// Instances describes the live instances in creation order.
func (p *Packer) Instances() []InstanceInfo {
	out := make([]InstanceInfo, 0, len(p.instances))
	for _, inst := range p.instances {
		out = append(out, InstanceInfo{
			ID:          inst.id,
			Label:       inst.label,
			Width:       inst.width,
			Height:      inst.height,
			Format:      inst.format,
			Unique:      inst.unique,
			Allocations: inst.alloc.AllocCount(),
			Utilization: inst.alloc.Utilization(),
		})
	}
	return out
}

// MinSize returns the minimum size of shared instances.
func (p *Packer) MinSize() (width, height int) { return p.minWidth, p.minHeight }

// Close stops pending loads and destroys every instance texture.
func (p *Packer) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.cancel()
	p.wg.Wait()
	for _, inst := range p.instances {
		p.dev.DestroyTexture(inst.tex)
	}
	p.instances = nil
	p.removals = nil
	p.urls = nil
}
