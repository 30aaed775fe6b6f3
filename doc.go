// Package batch is a retained-mode batching renderer for gogpu.
//
// # Overview
//
// Callers describe drawables once and keep them alive across frames.
// batch packs many small objects of the same render type into shared
// GPU vertex and index buffers, called chunks, and draws each chunk with
// a single call. Images share atlas textures so objects with different
// images can still land in one draw.
//
// # Quick Start
//
//	import "github.com/gogpu/batch"
//
//	r, err := batch.New(dev, window)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	if err := r.Register(spriteType); err != nil {
//	    log.Fatal(err)
//	}
//
//	img, _ := r.UploadImageFromURL("assets/ship.png", gpucore.FilterLinear, gpucore.FilterLinear)
//
//	obj := batch.NewRenderObject(spriteType)
//	obj.SetTexture("image", img)
//	obj.SetVertexDatas(0, "pos", batch.Vec2{0, 0}, batch.Vec2{1, 0}, batch.Vec2{1, 1}, batch.Vec2{0, 1})
//	obj.AddTriangle([3]uint16{0, 1, 2})
//	obj.AddTriangle([3]uint16{0, 2, 3})
//	obj.Update(r)
//
//	for running {
//	    r.Render()
//	}
//
// # Devices
//
// New draws with a device the caller owns. Open picks a device from the
// backend registry by name and owns it:
//
//	import _ "github.com/gogpu/batch/backend/native"
//
//	r, err := batch.Open("native", window)
//
// NewFromProvider runs on the GPU device of a host application.
//
// # Batching
//
// Objects batch together when they share a render type and their uniform
// blocks are equal. Texture uniforms compare equal when both images live
// in the same atlas instance, whatever their regions.
//
// # Removal
//
// Removal is deferred. RenderObject.Remove drops the object's reference;
// its buffer space is reclaimed at the next Update or Render touching the
// same render type, never during a draw.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Renderer, RenderObject
//   - rendertype: immutable descriptions of drawable kinds
//   - uniform: uniform values and batchable equality
//   - atlas: texture atlas packer, loaders and file watching
//   - gpucore: the device boundary and an in-memory test device
//   - backend: named device factories
//   - backend/native: a gogpu/wgpu HAL device
//   - shapes: ready-made triangle, rectangle, line and image drawables
//
// # Logging
//
// batch is silent by default. See SetLogger.
package batch
