//go:build !nogpu

package batch

import (
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/batch/backend"
	"github.com/gogpu/batch/backend/native"
)

// NewFromProvider creates a renderer on the GPU device of a host
// application, such as a gogpu window. The provider must expose its HAL
// device and queue (HalDevice, HalQueue). The renderer owns the wrapping
// native device and destroys it on Close; the HAL device stays with the
// host.
//
// Example:
//
//	r, err := batch.NewFromProvider(app.GPUContextProvider(), app)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
func NewFromProvider(provider gpucontext.DeviceProvider, window gpucontext.WindowProvider, opts ...Option) (*Renderer, error) {
	if window == nil {
		return nil, ErrNilSurface
	}
	dev, err := native.FromProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	r, err := New(dev, window, opts...)
	if err != nil {
		dev.Destroy()
		return nil, err
	}
	r.ownsDevice = true
	return r, nil
}

// NewNative opens a GPU device of its own and creates a renderer on it.
// Frames render into an offscreen target sized to the viewport.
func NewNative(window gpucontext.WindowProvider, opts ...Option) (*Renderer, error) {
	return Open(backend.Native, window, opts...)
}
