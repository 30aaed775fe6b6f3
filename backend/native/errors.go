//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import "errors"

// Package errors for the HAL device.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrNoHAL is returned when a device provider does not expose HAL
	// device and queue handles.
	ErrNoHAL = errors.New("native: provider does not expose HAL types")

	// ErrInvalidDimensions is returned when width or height is invalid.
	ErrInvalidDimensions = errors.New("native: invalid dimensions")

	// ErrUnsupportedFormat is returned for texture or vertex formats the
	// device cannot map.
	ErrUnsupportedFormat = errors.New("native: unsupported format")

	// ErrShader is returned when WGSL source fails validation.
	ErrShader = errors.New("native: shader validation failed")

	// ErrFrameEnded is returned by frame operations after End.
	ErrFrameEnded = errors.New("native: frame already ended")

	// ErrNoProgram is returned by Draw before SetProgram.
	ErrNoProgram = errors.New("native: no program bound")
)
