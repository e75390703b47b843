// Package obs carries the observability contracts shared by the repository
// and service layers: logging, operation metrics, and tracing.
package obs

import "log/slog"

// Logger is the minimal structured logging contract. Args are alternating
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards all log output. It is the default for constructors
// that are not handed a logger.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(string, ...any) {}

// Warn implements Logger.
func (NopLogger) Warn(string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(string, ...any) {}

// SlogLogger adapts a *slog.Logger to the Logger contract.
type SlogLogger struct {
	L *slog.Logger
}

// NewSlogLogger wraps l; a nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return SlogLogger{L: l}
}

// Debug implements Logger.
func (s SlogLogger) Debug(msg string, args ...any) { s.L.Debug(msg, args...) }

// Info implements Logger.
func (s SlogLogger) Info(msg string, args ...any) { s.L.Info(msg, args...) }

// Warn implements Logger.
func (s SlogLogger) Warn(msg string, args ...any) { s.L.Warn(msg, args...) }

// Error implements Logger.
func (s SlogLogger) Error(msg string, args ...any) { s.L.Error(msg, args...) }
