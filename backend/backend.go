package backend

import (
	"errors"

	"github.com/gogpu/batch/gpucore"
)

// Backend names.
const (
	Native = "native"
	Memory = "memory"
)

var (
	// ErrNotRegistered is returned by Open for an unknown name.
	ErrNotRegistered = errors.New("backend: not registered")

	// ErrNoBackend is returned by OpenDefault when every registered
	// backend failed to open.
	ErrNoBackend = errors.New("backend: no backend could be opened")
)

// Factory opens a device. The caller owns the device and destroys it.
type Factory func() (gpucore.Device, error)

func init() {
	Register(Memory, func() (gpucore.Device, error) {
		return gpucore.NewMemoryDevice(), nil
	})
}
