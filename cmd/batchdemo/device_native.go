//go:build !nogpu

package main

// Registers the "native" backend.
import _ "github.com/gogpu/batch/backend/native"
