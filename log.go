package diesel

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger sets the logger used by the engine and by drivers that accept
// one. The engine is silent until SetLogger is called; nil restores that.
//
// Levels used:
//   - [slog.LevelDebug]: allocations, frame advance, descriptor writes
//   - [slog.LevelInfo]: device and swapchain lifecycle
//   - [slog.LevelWarn]: out-of-date swapchains, validation reports
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger hands the current logger to drv if it takes one.
func propagateLogger(drv any) {
	if ls, ok := drv.(loggerSetter); ok {
		ls.SetLogger(Logger())
	}
}
