//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements gpucore.Device on the gogpu/wgpu HAL.
//
// A Device either wraps a HAL device shared by a host application
// (FromProvider, Wrap) or opens its own (Open). Frames render into an
// offscreen color target unless the host sets a surface view with
// SetTarget before each frame.
package native

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/internal/logging"
)

type buffer struct {
	label  string
	buf    hal.Buffer
	shadow []byte // host copy, allocated size
}

type texture struct {
	desc    gpucore.TextureDesc
	tex     hal.Texture
	view    hal.TextureView
	sampler hal.Sampler
}

func (t *texture) destroy(dev hal.Device) {
	dev.DestroySampler(t.sampler)
	dev.DestroyTextureView(t.view)
	dev.DestroyTexture(t.tex)
}

// Option configures a Device.
type Option func(*Device)

// WithTargetFormat sets the color format pipelines render to. It must
// match the view passed to SetTarget.
func WithTargetFormat(f gputypes.TextureFormat) Option {
	return func(d *Device) {
		if f != gputypes.TextureFormatUndefined {
			d.format = f
		}
	}
}

// WithClearColor sets the color each frame starts from.
func WithClearColor(c gputypes.Color) Option {
	return func(d *Device) { d.clear = c }
}

// Device is a gpucore.Device backed by a HAL device and queue.
//
// Resource IDs map to HAL objects in tables guarded by mu. Frames are
// recorded on the caller's goroutine.
type Device struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue

	// release tears down a device opened by Open.
	release func()

	format gputypes.TextureFormat
	clear  gputypes.Color

	nextID   uint64
	buffers  map[gpucore.BufferID]*buffer
	textures map[gpucore.TextureID]*texture
	programs map[gpucore.ProgramID]*program

	// white is bound to texture units with no texture.
	white *texture

	target    *texture // offscreen color target
	extView   hal.TextureView
	extWidth  int
	extHeight int

	active  bool
	retired []*frameResources
}

// Wrap builds a Device on a HAL device and queue owned by the caller.
func Wrap(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	d := &Device{
		device:   device,
		queue:    queue,
		format:   gputypes.TextureFormatRGBA8Unorm,
		clear:    gputypes.Color{A: 1},
		buffers:  make(map[gpucore.BufferID]*buffer),
		textures: make(map[gpucore.TextureID]*texture),
		programs: make(map[gpucore.ProgramID]*program),
	}
	for _, opt := range opts {
		opt(d)
	}
	white, err := d.newTexture(gpucore.TextureDesc{
		Label:  "batch-white",
		Width:  1,
		Height: 1,
		Format: gpucore.TextureFormatRGBA8,
	})
	if err != nil {
		return nil, fmt.Errorf("native: default texture: %w", err)
	}
	if err := d.writeTexture(white, 0, 0, 1, 1, []byte{0xFF, 0xFF, 0xFF, 0xFF}); err != nil {
		white.destroy(device)
		return nil, fmt.Errorf("native: default texture: %w", err)
	}
	d.white = white
	return d, nil
}

// FromProvider builds a Device on the HAL device of a host application.
// The provider must expose HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. Pipelines target the provider's surface
// format unless overridden.
func FromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	opts = append([]Option{WithTargetFormat(provider.SurfaceFormat())}, opts...)
	return Wrap(device, queue, opts...)
}

// Open selects the best available HAL backend, opens a device on its
// first discrete or integrated adapter, and wraps it. Destroy closes it.
func Open(opts ...Option) (*Device, error) {
	backend, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoGPU, err)
	}
	return openBackend(backend, opts...)
}

func openBackend(backend hal.Backend, opts ...Option) (*Device, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}
	d, err := Wrap(openDev.Device, openDev.Queue, opts...)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	logging.Logger().Info("native: device opened",
		"adapter", selected.Info.Name, "backend", selected.Info.Backend)
	return d, nil
}

// HalDevice returns the underlying HAL device.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue returns the underlying HAL queue.
func (d *Device) HalQueue() hal.Queue { return d.queue }

// Format returns the color target format.
func (d *Device) Format() gputypes.TextureFormat { return d.format }

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// CreateBuffer implements gpucore.Device. The HAL buffer is rounded up
// to the queue write alignment.
func (d *Device) CreateBuffer(label string, size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size < 0 {
		return gpucore.InvalidID, fmt.Errorf("native: buffer %q: size %d: %w", label, size, ErrInvalidDimensions)
	}
	alloc := max(alignUp(size, copyAlign), copyAlign)
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(alloc),
		Usage: bufferUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer %q: %w", label, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{label: label, buf: buf, shadow: make([]byte, alloc)}
	return id, nil
}

// WriteBuffer implements gpucore.Device. Unaligned writes are widened to
// the enclosing aligned range using the host shadow.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset int, data []byte) error {
	d.mu.Lock()
	b, ok := d.buffers[id]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("native: buffer %d: %w", id, gpucore.ErrUnknownResource)
	}
	if offset < 0 || offset+len(data) > len(b.shadow) {
		return fmt.Errorf("native: buffer %q [%d:%d]: %w", b.label, offset, offset+len(data), gpucore.ErrOutOfBounds)
	}
	if len(data) == 0 {
		return nil
	}
	copy(b.shadow[offset:], data)
	lo := alignDown(offset, copyAlign)
	hi := alignUp(offset+len(data), copyAlign)
	if err := d.queue.WriteBuffer(b.buf, uint64(lo), b.shadow[lo:hi]); err != nil {
		return fmt.Errorf("native: write buffer %q: %w", b.label, err)
	}
	return nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBuffer(b.buf)
	}
}

func (d *Device) newTexture(desc gpucore.TextureDesc) (*texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("native: texture %q %dx%d: %w", desc.Label, desc.Width, desc.Height, ErrInvalidDimensions)
	}
	if desc.Format.BytesPerPixel() == 0 {
		return nil, fmt.Errorf("native: texture %q: %w", desc.Label, ErrUnsupportedFormat)
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "-view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("native: create texture view %q: %w", desc.Label, err)
	}
	sampler, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label + "-sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    filterMode(desc.MagFilter),
		MinFilter:    filterMode(desc.MinFilter),
		LodMaxClamp:  32,
	})
	if err != nil {
		d.device.DestroyTextureView(view)
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("native: create sampler %q: %w", desc.Label, err)
	}
	return &texture{desc: desc, tex: tex, view: view, sampler: sampler}, nil
}

// CreateTexture implements gpucore.Device. Every texture is stored as
// RGBA8; RGB data is expanded on upload.
func (d *Device) CreateTexture(desc gpucore.TextureDesc) (gpucore.TextureID, error) {
	t, err := d.newTexture(desc)
	if err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.TextureID(d.newID())
	d.textures[id] = t
	return id, nil
}

// WriteTexture implements gpucore.Device.
func (d *Device) WriteTexture(id gpucore.TextureID, x, y, width, height int, data []byte) error {
	d.mu.Lock()
	t, ok := d.textures[id]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("native: texture %d: %w", id, gpucore.ErrUnknownResource)
	}
	return d.writeTexture(t, x, y, width, height, data)
}

func (d *Device) writeTexture(t *texture, x, y, width, height int, data []byte) error {
	if x < 0 || y < 0 || width <= 0 || height <= 0 || x+width > t.desc.Width || y+height > t.desc.Height {
		return fmt.Errorf("native: texture %q region (%d,%d %dx%d): %w", t.desc.Label, x, y, width, height, gpucore.ErrOutOfBounds)
	}
	if want := width * height * t.desc.Format.BytesPerPixel(); len(data) < want {
		return fmt.Errorf("native: texture %q: %d bytes, want %d: %w", t.desc.Label, len(data), want, gpucore.ErrOutOfBounds)
	}
	if t.desc.Format == gpucore.TextureFormatRGB8 {
		data = expandRGB(data[:width*height*3])
	}
	err := d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(x), Y: uint32(y)},
			Aspect:   gputypes.TextureAspectAll,
		},
		data[:width*height*4],
		&hal.ImageDataLayout{BytesPerRow: uint32(width * 4), RowsPerImage: uint32(height)},
		&hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("native: write texture %q: %w", t.desc.Label, err)
	}
	return nil
}

// DestroyTexture implements gpucore.Device.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	t, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()
	if ok {
		t.destroy(d.device)
	}
}

// Destroy implements gpucore.Device. It waits for the GPU, releases
// every resource, and closes the HAL device if Open created it.
func (d *Device) Destroy() {
	if err := d.device.WaitIdle(); err != nil {
		logging.Logger().Warn("native: wait idle", "err", err)
	}
	d.retire(true)

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, p := range d.programs {
		p.destroy(d.device)
		delete(d.programs, id)
	}
	for id, t := range d.textures {
		t.destroy(d.device)
		delete(d.textures, id)
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
	if d.white != nil {
		d.white.destroy(d.device)
		d.white = nil
	}
	if d.target != nil {
		d.destroyTarget()
	}
	if d.release != nil {
		d.release()
		d.release = nil
	}
}

var _ gpucore.Device = (*Device)(nil)
