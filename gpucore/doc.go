// Package gpucore defines the GPU boundary of the batching renderer.
//
// The [Device] interface is deliberately narrow: buffers, textures,
// programs and a per-frame draw recorder, all addressed through opaque IDs
// ([BufferID], [TextureID], [ProgramID]). Everything above it (chunk
// allocation, batching, atlas packing) is backend-agnostic.
//
//	          +----------------------+
//	          |   batch.Renderer     |
//	          +----------+-----------+
//	                     |
//	          +----------v-----------+
//	          |   gpucore.Device     |
//	          +----------+-----------+
//	                     |
//	     +---------------+----------------+
//	     |                                |
//	+----v-------------+       +----------v--------+
//	| backend/native   |       | MemoryDevice      |
//	| (gogpu/wgpu HAL) |       | (host memory)     |
//	+------------------+       +-------------------+
//
// # Resource Management
//
// Devices track the mapping between IDs and backend resources. IDs start
// at 1; [InvalidID] is never handed out.
package gpucore
