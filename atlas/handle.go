package atlas

import (
	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/internal/logging"
)

// Handle is a reference-counted placement of one source in an atlas
// instance. The placement may move when the handle is updated with a
// source of a different size or format; Version changes when it does.
//
// Handles belong to the goroutine that drives the packer.
type Handle struct {
	packer *Packer
	inst   *instance
	alloc  AllocID
	region Region

	refs    int
	loaded  bool
	version uint64
	url     string
}

// Retain adds a reference.
func (h *Handle) Retain() *Handle {
	if h.refs <= 0 {
		logging.Logger().Debug("atlas: retain on released handle")
		return h
	}
	h.refs++
	return h
}

// Release drops a reference. Dropping the last one queues the placement
// for removal at the packer's next mutating call. Releasing a handle
// that is already gone is a no-op.
func (h *Handle) Release() {
	if h.refs <= 0 {
		logging.Logger().Debug("atlas: release on released handle")
		return
	}
	h.refs--
	if h.refs == 0 {
		h.packer.removals = append(h.packer.removals, h)
	}
}

// Live reports whether the handle still holds references.
func (h *Handle) Live() bool { return h.refs > 0 }

// Loaded reports whether the placement holds real pixels rather than a
// placeholder.
func (h *Handle) Loaded() bool { return h.loaded }

// Version increments every time the handle moves to a new placement.
// Texture coordinates derived from an older version are stale.
func (h *Handle) Version() uint64 { return h.version }

// Region returns the placement rectangle within its instance.
func (h *Handle) Region() Region { return h.region }

// InstanceID identifies the atlas instance holding the placement, or 0
// for a removed handle. Two handles draw from the same GPU texture iff
// their instance IDs are equal.
func (h *Handle) InstanceID() uint64 {
	if h.inst == nil {
		return 0
	}
	return h.inst.id
}

// SameInstance reports whether both handles live in one instance.
func (h *Handle) SameInstance(other *Handle) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.inst != nil && h.inst == other.inst
}

// Texture returns the GPU texture of the instance.
func (h *Handle) Texture() gpucore.TextureID {
	if h.inst == nil {
		return gpucore.InvalidID
	}
	return h.inst.tex
}

// Pin keeps the texture of h's current instance alive, even after h
// moves or every placement in the instance is removed, until the
// returned func is called. Calling it more than once has no effect.
func (h *Handle) Pin() (unpin func()) {
	inst := h.inst
	if inst == nil {
		return func() {}
	}
	inst.pins++
	done := false
	return func() {
		if done {
			return
		}
		done = true
		inst.pins--
	}
}

// TexCoord maps (u, v) in [0,1] over the placement to texture
// coordinates of the whole instance.
func (h *Handle) TexCoord(u, v float32) (float32, float32) {
	if h.inst == nil {
		return u, v
	}
	r := h.region
	return (float32(r.X) + u*float32(r.Width)) / float32(h.inst.width),
		(float32(r.Y) + v*float32(r.Height)) / float32(h.inst.height)
}
