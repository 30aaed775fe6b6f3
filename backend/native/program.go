//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/internal/logging"
)

// Shader entry points. The vertex and fragment sources may be the same
// WGSL module.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

type program struct {
	desc     gpucore.ProgramDesc
	vs, fs   hal.ShaderModule
	bgl      hal.BindGroupLayout
	layout   hal.PipelineLayout
	pipeline hal.RenderPipeline
}

func (p *program) destroy(dev hal.Device) {
	if p.pipeline != nil {
		dev.DestroyRenderPipeline(p.pipeline)
	}
	if p.layout != nil {
		dev.DestroyPipelineLayout(p.layout)
	}
	if p.bgl != nil {
		dev.DestroyBindGroupLayout(p.bgl)
	}
	if p.fs != nil && p.fs != p.vs {
		dev.DestroyShaderModule(p.fs)
	}
	if p.vs != nil {
		dev.DestroyShaderModule(p.vs)
	}
}

// bindGroupLayoutEntries follows the gpucore binding convention: the
// uniform block at binding 0, texture unit i at 1+2i and its sampler at
// 2+2i.
func bindGroupLayoutEntries(desc gpucore.ProgramDesc) []gputypes.BindGroupLayoutEntry {
	var entries []gputypes.BindGroupLayoutEntry
	if desc.UniformSize > 0 {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	for i := range desc.TextureCount {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(1 + 2*i),
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(2 + 2*i),
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}
	return entries
}

func validateWGSL(label, stage, source string) error {
	if _, err := naga.Compile(source); err != nil {
		return fmt.Errorf("native: program %q %s: %w: %w", label, stage, ErrShader, err)
	}
	return nil
}

// CreateProgram implements gpucore.Device. Both sources are validated
// with naga before any GPU object is created.
func (d *Device) CreateProgram(desc gpucore.ProgramDesc) (gpucore.ProgramID, error) {
	shared := desc.VertexShader == desc.FragmentShader
	if err := validateWGSL(desc.Label, "vertex", desc.VertexShader); err != nil {
		return gpucore.InvalidID, err
	}
	if !shared {
		if err := validateWGSL(desc.Label, "fragment", desc.FragmentShader); err != nil {
			return gpucore.InvalidID, err
		}
	}
	buffers, err := vertexLayouts(desc.Layouts)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: program %q: %w", desc.Label, err)
	}

	p := &program{desc: desc}
	fail := func(step string, err error) (gpucore.ProgramID, error) {
		p.destroy(d.device)
		return gpucore.InvalidID, fmt.Errorf("native: program %q: %s: %w", desc.Label, step, err)
	}

	if p.vs, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label + "-vs",
		Source: hal.ShaderSource{WGSL: desc.VertexShader},
	}); err != nil {
		return fail("vertex shader", err)
	}
	p.fs = p.vs
	if !shared {
		if p.fs, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  desc.Label + "-fs",
			Source: hal.ShaderSource{WGSL: desc.FragmentShader},
		}); err != nil {
			p.fs = nil
			return fail("fragment shader", err)
		}
	}

	if p.bgl, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "-bgl",
		Entries: bindGroupLayoutEntries(desc),
	}); err != nil {
		return fail("bind group layout", err)
	}
	if p.layout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "-layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bgl},
	}); err != nil {
		return fail("pipeline layout", err)
	}

	blend := gputypes.BlendStateAlpha()
	if p.pipeline, err = d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     p.vs,
			EntryPoint: VertexEntryPoint,
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     p.fs,
			EntryPoint: FragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{{
				Format:    d.format,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	}); err != nil {
		return fail("render pipeline", err)
	}

	d.mu.Lock()
	id := gpucore.ProgramID(d.newID())
	d.programs[id] = p
	d.mu.Unlock()
	logging.Logger().Debug("native: program created", "label", desc.Label, "id", id,
		"uniform_size", desc.UniformSize, "textures", desc.TextureCount)
	return id, nil
}

// DestroyProgram implements gpucore.Device.
func (d *Device) DestroyProgram(id gpucore.ProgramID) {
	d.mu.Lock()
	p, ok := d.programs[id]
	delete(d.programs, id)
	d.mu.Unlock()
	if ok {
		p.destroy(d.device)
	}
}
