package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/batch/gpucore"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)

	// First registered entry that opens wins.
	priority = []string{Native, Memory}
)

// Register adds a factory under name, replacing any earlier one.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Unregister removes name from the registry.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether name has a factory.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens the device registered under name. An empty name opens the
// default backend.
func Open(name string) (gpucore.Device, error) {
	if name == "" {
		return OpenDefault()
	}
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	dev, err := f()
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return dev, nil
}

// OpenDefault walks the priority list and returns the first device that
// opens. Backends that are not registered are skipped.
func OpenDefault() (gpucore.Device, error) {
	var errs []error
	for _, name := range priority {
		if !IsRegistered(name) {
			continue
		}
		dev, err := Open(name)
		if err == nil {
			return dev, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(append([]error{ErrNoBackend}, errs...)...)
}
