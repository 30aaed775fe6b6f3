package batch

import "errors"

// Errors returned by the Renderer.
var (
	// ErrUnregisteredType is returned when an object's render type was
	// never passed to Register.
	ErrUnregisteredType = errors.New("batch: render type not registered")

	// ErrRendererClosed is returned by every operation after Close.
	ErrRendererClosed = errors.New("batch: renderer closed")

	// ErrForeignObject is returned when an object placed by one renderer
	// is passed to another.
	ErrForeignObject = errors.New("batch: object belongs to another renderer")

	// ErrNilSurface is returned by New when no window is given.
	ErrNilSurface = errors.New("batch: nil surface")
)
