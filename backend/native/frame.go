//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/batch/gpucore"
)

// frameResources are the per-frame GPU objects released once the
// frame's submission completes.
type frameResources struct {
	submission uint64
	encoder    hal.CommandEncoder
	cmd        hal.CommandBuffer
	uniforms   []hal.Buffer
	groups     []hal.BindGroup
}

func (r *frameResources) destroy(dev hal.Device) {
	for _, g := range r.groups {
		dev.DestroyBindGroup(g)
	}
	for _, b := range r.uniforms {
		dev.DestroyBuffer(b)
	}
	if r.cmd != nil {
		dev.FreeCommandBuffer(r.cmd)
	}
	if r.encoder != nil {
		r.encoder.Destroy()
	}
}

// SetTarget makes following frames render into view, typically the
// current surface texture. Pass nil to return to the offscreen target.
func (d *Device) SetTarget(view hal.TextureView, width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.extView, d.extWidth, d.extHeight = view, width, height
}

func (d *Device) destroyTarget() {
	d.device.DestroyTextureView(d.target.view)
	d.device.DestroyTexture(d.target.tex)
	d.target = nil
}

// targetView returns the view frames render into, resizing the
// offscreen target to width x height as needed.
func (d *Device) targetView(width, height int) (hal.TextureView, error) {
	if d.extView != nil {
		return d.extView, nil
	}
	if d.target != nil && d.target.desc.Width == width && d.target.desc.Height == height {
		return d.target.view, nil
	}
	if d.target != nil {
		d.destroyTarget()
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "batch-target",
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create target: %w", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "batch-target-view",
		Format:        d.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("native: create target view: %w", err)
	}
	d.target = &texture{
		desc: gpucore.TextureDesc{Label: "batch-target", Width: width, Height: height},
		tex:  tex,
		view: view,
	}
	return view, nil
}

// retire releases the resources of completed frames, or of every frame
// when all is set.
func (d *Device) retire(all bool) {
	done := d.queue.PollCompleted()
	kept := d.retired[:0]
	for _, r := range d.retired {
		if all || r.submission <= done {
			r.destroy(d.device)
			continue
		}
		kept = append(kept, r)
	}
	clear(d.retired[len(kept):])
	d.retired = kept
}

// BeginFrame implements gpucore.Device. It clears the target and sets
// the viewport to width x height.
func (d *Device) BeginFrame(width, height int) (gpucore.Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("native: frame %dx%d: %w", width, height, ErrInvalidDimensions)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return nil, gpucore.ErrFrameActive
	}
	d.retire(false)

	view, err := d.targetView(width, height)
	if err != nil {
		return nil, err
	}
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "batch-frame"})
	if err != nil {
		return nil, fmt.Errorf("native: create encoder: %w", err)
	}
	if err := enc.BeginEncoding("batch-frame"); err != nil {
		enc.Destroy()
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "batch-pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: d.clear,
		}},
	})
	pass.SetViewport(0, 0, float32(width), float32(height), 0, 1)
	d.active = true
	return &frame{dev: d, pass: pass, res: &frameResources{encoder: enc}}, nil
}

type frame struct {
	dev     *Device
	pass    hal.RenderPassEncoder
	program *program
	res     *frameResources
	ended   bool
}

// SetProgram implements gpucore.Frame.
func (f *frame) SetProgram(id gpucore.ProgramID) {
	f.dev.mu.Lock()
	p := f.dev.programs[id]
	f.dev.mu.Unlock()
	f.program = p
	if p != nil && !f.ended {
		f.pass.SetPipeline(p.pipeline)
	}
}

// Draw implements gpucore.Frame. Each draw gets its own uniform buffer
// and bind group, released when the frame completes on the GPU.
func (f *frame) Draw(call gpucore.DrawCall) error {
	if f.ended {
		return ErrFrameEnded
	}
	p := f.program
	if p == nil {
		return ErrNoProgram
	}
	d := f.dev

	d.mu.Lock()
	vbufs := make([]hal.Buffer, len(call.VertexBuffers))
	for i, id := range call.VertexBuffers {
		b, ok := d.buffers[id]
		if !ok {
			d.mu.Unlock()
			return fmt.Errorf("native: vertex buffer %d: %w", id, gpucore.ErrUnknownResource)
		}
		vbufs[i] = b.buf
	}
	ib, ok := d.buffers[call.IndexBuffer]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("native: index buffer %d: %w", call.IndexBuffer, gpucore.ErrUnknownResource)
	}
	textures := make([]*texture, p.desc.TextureCount)
	for i := range textures {
		textures[i] = d.white
		if i < len(call.Textures) {
			if t, ok := d.textures[call.Textures[i]]; ok {
				textures[i] = t
			}
		}
	}
	d.mu.Unlock()

	group, err := f.bindGroup(p, call.Uniforms, textures)
	if err != nil {
		return err
	}
	if group != nil {
		f.pass.SetBindGroup(0, group, nil)
	}
	for i, b := range vbufs {
		f.pass.SetVertexBuffer(uint32(i), b, 0)
	}
	f.pass.SetIndexBuffer(ib.buf, gputypes.IndexFormatUint16, 0)
	f.pass.DrawIndexed(uint32(call.IndexCount), uint32(call.Instances()), 0, 0, 0)
	return nil
}

func (f *frame) bindGroup(p *program, uniforms []byte, textures []*texture) (hal.BindGroup, error) {
	d := f.dev
	var entries []gputypes.BindGroupEntry
	if p.desc.UniformSize > 0 {
		size := alignUp(p.desc.UniformSize, 16)
		ub, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: p.desc.Label + "-uniforms",
			Size:  uint64(size),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("native: uniform buffer: %w", err)
		}
		f.res.uniforms = append(f.res.uniforms, ub)
		data := make([]byte, size)
		copy(data, uniforms)
		if err := d.queue.WriteBuffer(ub, 0, data); err != nil {
			return nil, fmt.Errorf("native: write uniforms: %w", err)
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  0,
			Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Size: uint64(size)},
		})
	}
	for i, t := range textures {
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding:  uint32(1 + 2*i),
				Resource: gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()},
			},
			gputypes.BindGroupEntry{
				Binding:  uint32(2 + 2*i),
				Resource: gputypes.SamplerBinding{Sampler: t.sampler.NativeHandle()},
			},
		)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.desc.Label + "-group",
		Layout:  p.bgl,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: bind group: %w", err)
	}
	f.res.groups = append(f.res.groups, g)
	return g, nil
}

// End implements gpucore.Frame.
func (f *frame) End() error {
	if f.ended {
		return ErrFrameEnded
	}
	f.ended = true
	d := f.dev
	defer func() {
		d.mu.Lock()
		d.active = false
		d.mu.Unlock()
	}()

	f.pass.End()
	cmd, err := f.res.encoder.EndEncoding()
	if err != nil {
		f.res.destroy(d.device)
		return fmt.Errorf("native: end encoding: %w", err)
	}
	f.res.cmd = cmd
	idx, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		f.res.destroy(d.device)
		return fmt.Errorf("native: submit: %w", err)
	}
	f.res.submission = idx
	d.mu.Lock()
	d.retired = append(d.retired, f.res)
	d.mu.Unlock()
	return nil
}
