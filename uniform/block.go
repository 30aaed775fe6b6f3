package uniform

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/internal/logging"
	"github.com/gogpu/batch/rendertype"
)

// Globals are the frame-wide values substituted for Projection and View
// uniforms.
type Globals struct {
	Projection Mat4
	View       Mat4
}

// DefaultGlobals returns identity projection and view.
func DefaultGlobals() Globals {
	return Globals{Projection: Identity(), View: Identity()}
}

func (g Globals) role(r rendertype.UniformRole) (Mat4, bool) {
	switch r {
	case rendertype.UniformProjection:
		return g.Projection, true
	case rendertype.UniformView:
		return g.View, true
	default:
		return Mat4{}, false
	}
}

// Block maps uniform names to values for one object or chunk.
// The zero value is an empty block.
type Block struct {
	values map[string]Value
}

// Set stores v under name. Names rt does not declare, and values of the
// wrong kind, are logged and ignored; Set reports whether v was stored.
func (b *Block) Set(rt *rendertype.RenderType, name string, v Value) bool {
	u, _, ok := rt.Uniform(name)
	if !ok {
		logging.Logger().Warn("uniform: unknown name", "type", rt.Name(), "name", name)
		return false
	}
	if v == nil || v.Kind() != u.Kind {
		logging.Logger().Warn("uniform: kind mismatch",
			"type", rt.Name(), "name", name, "want", u.Kind, "value", v)
		return false
	}
	if b.values == nil {
		b.values = make(map[string]Value)
	}
	b.values[name] = v
	return true
}

// Get returns the value stored under name.
func (b *Block) Get(name string) (Value, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Len returns the number of stored values.
func (b *Block) Len() int { return len(b.values) }

// BatchableWith reports whether b and other may be drawn by one call:
// every value set in either block must be set and equal in the other.
func (b *Block) BatchableWith(other *Block) bool {
	if len(b.values) != len(other.values) {
		return false
	}
	for name, v := range b.values {
		w, ok := other.values[name]
		if !ok || !v.equal(w) {
			return false
		}
	}
	return true
}

// Clone returns a copy of b holding its own reference to every texture
// handle. Release the copy when done with it.
func (b *Block) Clone() *Block {
	c := &Block{}
	if len(b.values) > 0 {
		c.values = make(map[string]Value, len(b.values))
		for k, v := range b.values {
			if t, ok := v.(Texture); ok && t.Handle != nil {
				t.Handle.Retain()
			}
			c.values[k] = v
		}
	}
	return c
}

// Release drops the texture references taken by Clone.
func (b *Block) Release() {
	for _, v := range b.values {
		if t, ok := v.(Texture); ok && t.Handle != nil {
			t.Handle.Release()
		}
	}
	b.values = nil
}

// Pack writes the uniform buffer contents for rt into dst, which must be
// at least rt.UniformSize() bytes. Projection and View uniforms and
// External values take the frame globals; unset uniforms are zero.
func (b *Block) Pack(rt *rendertype.RenderType, g Globals, dst []byte) {
	clear(dst[:rt.UniformSize()])
	for _, u := range rt.Uniforms() {
		_, off, _ := rt.Uniform(u.Name)
		if m, ok := g.role(u.Role); ok {
			putFloats(dst[off:], m[:])
			continue
		}
		switch v := b.values[u.Name].(type) {
		case External:
			m, _ := g.role(v.Role)
			putFloats(dst[off:], m[:])
		case Value:
			Put(dst[off:], v)
		}
	}
}

// Put encodes a scalar, vector or matrix little-endian into dst and
// returns the number of bytes written. Texture and External values write
// nothing.
func Put(dst []byte, v Value) int {
	switch v := v.(type) {
	case Float:
		return putFloats(dst, []float32{float32(v)})
	case Int:
		binary.LittleEndian.PutUint32(dst, uint32(v))
		return 4
	case Vec2:
		return putFloats(dst, v[:])
	case Vec3:
		return putFloats(dst, v[:])
	case Vec4:
		return putFloats(dst, v[:])
	case Mat4:
		return putFloats(dst, v[:])
	default:
		return 0
	}
}

// Textures returns the GPU textures of rt's texture uniforms in
// declaration order, which is texture unit order. Unset or removed
// textures are gpucore.InvalidID.
func (b *Block) Textures(rt *rendertype.RenderType) []gpucore.TextureID {
	if rt.TextureCount() == 0 {
		return nil
	}
	out := make([]gpucore.TextureID, 0, rt.TextureCount())
	for _, u := range rt.Uniforms() {
		if u.Kind != rendertype.KindTexture {
			continue
		}
		id := gpucore.TextureID(gpucore.InvalidID)
		if t, ok := b.values[u.Name].(Texture); ok && t.Handle != nil {
			id = t.Handle.Texture()
		}
		out = append(out, id)
	}
	return out
}

// Pin returns the textures of rt's texture uniforms like Textures and
// keeps each of them alive until unpin is called, even if its handle
// moves to another atlas instance meanwhile.
func (b *Block) Pin(rt *rendertype.RenderType) (textures []gpucore.TextureID, unpin func()) {
	textures = b.Textures(rt)
	var unpins []func()
	for _, u := range rt.Uniforms() {
		if t, ok := b.values[u.Name].(Texture); ok && u.Kind == rendertype.KindTexture && t.Handle != nil {
			unpins = append(unpins, t.Handle.Pin())
		}
	}
	return textures, func() {
		for _, f := range unpins {
			f()
		}
	}
}

func putFloats(dst []byte, vs []float32) int {
	for i, f := range vs {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
	return len(vs) * 4
}
