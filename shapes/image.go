package shapes

import (
	"github.com/gogpu/batch"
	"github.com/gogpu/batch/atlas"
)

// Image is a textured quad showing one atlas placement. Images in the
// same atlas instance with the same tint share a draw call.
//
// The image does not own its handle; release the handle separately once
// no image shows it.
type Image struct {
	*batch.RenderObject
	handle  *atlas.Handle
	version uint64
}

// NewImage returns a w x h quad with its top-left corner at (x, y)
// showing h. Call Update to show it.
func NewImage(types *Types, handle *atlas.Handle, x, y, w, h float32) *Image {
	im := &Image{RenderObject: batch.NewRenderObject(types.Image)}
	im.AddIndices(0, 1, 2, 0, 2, 3)
	im.SetUniform("tint", batch.Vec4{1, 1, 1, 1})
	im.SetBounds(x, y, w, h)
	im.SetHandle(handle)
	return im
}

// Handle returns the shown placement.
func (im *Image) Handle() *atlas.Handle { return im.handle }

// SetHandle shows another placement.
func (im *Image) SetHandle(h *atlas.Handle) {
	im.handle = h
	im.SetTexture("image", h)
	im.writeTexCoords()
}

// SetBounds moves and resizes the quad.
func (im *Image) SetBounds(x, y, w, h float32) {
	im.SetVertexDatas(0, "pos",
		batch.Vec2{x, y},
		batch.Vec2{x + w, y},
		batch.Vec2{x + w, y + h},
		batch.Vec2{x, y + h},
	)
}

// SetTint multiplies the sampled color by c.
func (im *Image) SetTint(c batch.Vec4) {
	im.SetUniform("tint", c)
}

// Stale reports whether the placement moved since the texture
// coordinates were written.
func (im *Image) Stale() bool {
	return im.handle != nil && im.handle.Version() != im.version
}

// Update refreshes stale texture coordinates and places the image in r.
func (im *Image) Update(r *batch.Renderer) error {
	if im.Stale() {
		im.writeTexCoords()
	}
	return im.RenderObject.Update(r)
}

func (im *Image) writeTexCoords() {
	if im.handle == nil {
		return
	}
	im.version = im.handle.Version()
	corners := [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for i, c := range corners {
		u, v := im.handle.TexCoord(c[0], c[1])
		im.SetVertexData(i, "uv", batch.Vec2{u, v})
	}
}
