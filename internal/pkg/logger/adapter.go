package logger

import (
	"log/slog"

	"batch_transfer/internal/app/port"

	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// slogAdapter реализует интерфейс port.Logger поверх slog.
type slogAdapter struct {
	l *slog.Logger
}

// NewSlogAdapter returns a port.Logger backed by the global logger.
func NewSlogAdapter() port.Logger {
	ensureInitialized()
	return &slogAdapter{l: globalLogger}
}

// Named returns a port.Logger tagging every entry with the component name.
func Named(component string) port.Logger {
	ensureInitialized()
	return &slogAdapter{l: globalLogger.With("component", component)}
}

// NewNop returns a port.Logger that discards everything.
func NewNop() port.Logger {
	return &slogAdapter{l: slog.New(zapslog.NewHandler(zapcore.NewNopCore()))}
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
