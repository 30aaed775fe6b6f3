// Package atlas packs many small textures into a few large GPU textures.
//
// A Packer owns a list of instances. Each instance is one GPU texture of a
// single pixel format, subdivided by a GuillotineAllocator. Sources are
// placed into the first instance of matching format with room; when none
// has room a new instance of at least the packer's minimum size is created.
// Sources marked unique always get an instance of their own.
//
//	packer, _ := atlas.New(dev, 2048, 2048)
//	src, _ := atlas.NewRawSource(16, 16, gpucore.TextureFormatRGBA8, pixels)
//	h, _ := packer.Add(src)
//	u, v := h.TexCoord(1, 1)
//
// Removal is deferred: releasing the last reference to a Handle queues the
// placement, and the queue is drained at the packer's next mutating call.
// Instances left empty are destroyed at Flush. Images loaded by UploadURL
// start on a 1x1 placeholder and are swapped in by Flush once decoded.
package atlas
