package batch

import (
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/batch/backend"
)

// Open creates a renderer on a device opened from the backend registry.
// An empty name opens the default backend. The renderer destroys the
// device on Close.
//
// The native backend registers when its package is imported:
//
//	import _ "github.com/gogpu/batch/backend/native"
func Open(name string, window gpucontext.WindowProvider, opts ...Option) (*Renderer, error) {
	if window == nil {
		return nil, ErrNilSurface
	}
	dev, err := backend.Open(name)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	r, err := New(dev, window, opts...)
	if err != nil {
		dev.Destroy()
		return nil, err
	}
	r.ownsDevice = true
	Logger().Debug("batch: opened backend", "backend", name)
	return r, nil
}
