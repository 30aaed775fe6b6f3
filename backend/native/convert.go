//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/batch/gpucore"
)

// copyAlign is the offset and size alignment of queue buffer writes.
const copyAlign = 4

func alignDown(v, a int) int { return v &^ (a - 1) }
func alignUp(v, a int) int   { return (v + a - 1) &^ (a - 1) }

func bufferUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u&gpucore.BufferUsageCopyDst != 0 {
		out |= gputypes.BufferUsageCopyDst
	}
	if u&gpucore.BufferUsageIndex != 0 {
		out |= gputypes.BufferUsageIndex
	}
	if u&gpucore.BufferUsageVertex != 0 {
		out |= gputypes.BufferUsageVertex
	}
	if u&gpucore.BufferUsageUniform != 0 {
		out |= gputypes.BufferUsageUniform
	}
	// Shadowed writes always go through the queue.
	return out | gputypes.BufferUsageCopyDst
}

func filterMode(m gpucore.FilterMode) gputypes.FilterMode {
	if m == gpucore.FilterNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

func vertexFormat(f gpucore.VertexFormat) (gputypes.VertexFormat, bool) {
	switch f {
	case gpucore.VertexFormatFloat32:
		return gputypes.VertexFormatFloat32, true
	case gpucore.VertexFormatFloat32x2:
		return gputypes.VertexFormatFloat32x2, true
	case gpucore.VertexFormatFloat32x3:
		return gputypes.VertexFormatFloat32x3, true
	case gpucore.VertexFormatFloat32x4:
		return gputypes.VertexFormatFloat32x4, true
	case gpucore.VertexFormatSint32:
		return gputypes.VertexFormatSint32, true
	}
	return gputypes.VertexFormatUndefined, false
}

func vertexLayouts(ls []gpucore.VertexLayout) ([]gputypes.VertexBufferLayout, error) {
	out := make([]gputypes.VertexBufferLayout, 0, len(ls))
	for _, l := range ls {
		vl := gputypes.VertexBufferLayout{
			ArrayStride: uint64(l.Stride),
			StepMode:    gputypes.VertexStepModeVertex,
		}
		if l.Instance {
			vl.StepMode = gputypes.VertexStepModeInstance
		}
		for _, a := range l.Attributes {
			f, ok := vertexFormat(a.Format)
			if !ok {
				return nil, ErrUnsupportedFormat
			}
			vl.Attributes = append(vl.Attributes, gputypes.VertexAttribute{
				Format:         f,
				Offset:         uint64(a.Offset),
				ShaderLocation: uint32(a.Location),
			})
		}
		out = append(out, vl)
	}
	return out, nil
}

// expandRGB converts tightly packed RGB pixels to opaque RGBA. WebGPU has
// no 3-channel 8-bit texture format.
func expandRGB(rgb []byte) []byte {
	n := len(rgb) / 3
	out := make([]byte, n*4)
	for i := range n {
		out[i*4+0] = rgb[i*3+0]
		out[i*4+1] = rgb[i*3+1]
		out[i*4+2] = rgb[i*3+2]
		out[i*4+3] = 0xFF
	}
	return out
}
