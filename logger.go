package pano

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/pano/texture"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for pano and its sub-packages.
// By default, pano produces no log output.
//
// Pass nil to restore the silent default.
//
// Log levels used by pano:
//   - [slog.LevelDebug]: per-tile load, retry and eviction decisions
//   - [slog.LevelInfo]: lifecycle events (layer added, stage destroyed)
//   - [slog.LevelWarn]: non-fatal failures (tile loads, texture creation)
//
// Example:
//
//	pano.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	texture.SetLogger(l)
}

// Logger returns the current logger used by pano.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
