package rendertype

import (
	"fmt"

	"github.com/gogpu/batch/internal/logging"
)

// Registry interns render types by name. It is built explicitly at
// construction time and passed to whoever needs it; there is no global
// registry.
type Registry struct {
	types  []*RenderType
	byName map[string]*RenderType
}

// NewRegistry creates an empty registry, optionally pre-populated.
func NewRegistry(types ...*RenderType) (*Registry, error) {
	r := &Registry{byName: make(map[string]*RenderType)}
	for _, rt := range types {
		if err := r.Register(rt); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds rt. Registering the same pointer twice is a no-op; a
// different type under an existing name is an error.
func (r *Registry) Register(rt *RenderType) error {
	if existing, ok := r.byName[rt.name]; ok {
		if existing == rt {
			return nil
		}
		return fmt.Errorf("%q: %w", rt.name, ErrDuplicateName)
	}
	r.byName[rt.name] = rt
	r.types = append(r.types, rt)
	logging.Logger().Debug("rendertype: registered",
		"name", rt.name,
		"stride", rt.Stride(),
		"instanced", rt.Instanced(),
		"uniforms", len(rt.uniforms))
	return nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*RenderType, bool) {
	rt, ok := r.byName[name]
	return rt, ok
}

// Contains reports whether rt itself (not just its name) is registered.
func (r *Registry) Contains(rt *RenderType) bool {
	return rt != nil && r.byName[rt.name] == rt
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []*RenderType {
	return append([]*RenderType(nil), r.types...)
}

// Len returns the number of registered types.
func (r *Registry) Len() int { return len(r.types) }
