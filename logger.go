package batch

import (
	"log/slog"

	"github.com/gogpu/batch/internal/logging"
)

// SetLogger configures the logger for batch and all its sub-packages.
// By default, batch produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by batch:
//   - [slog.LevelDebug]: allocator and queue diagnostics (chunk creation,
//     operations on already removed handles)
//   - [slog.LevelInfo]: lifecycle events (program compiled, atlas instance
//     created or destroyed)
//   - [slog.LevelWarn]: content bugs that are skipped (unknown uniform or
//     attribute names, failed image loads)
//
// Example:
//
//	// Enable debug-level logging to stderr:
//	batch.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by batch.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
