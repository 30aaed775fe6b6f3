// Package backend maps device names to device factories.
//
// Device packages register themselves from init, so a program selects a
// backend by importing it:
//
//	import _ "github.com/gogpu/batch/backend/native"
//
//	dev, err := backend.Open("native")
//
// The "memory" backend is always registered. It records frames in
// memory and needs no GPU.
package backend
