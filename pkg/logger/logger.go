// Package logger is the structured logging facade used across the service.
package logger

import (
	"context"
)

// Logger takes a message followed by alternating keys and values.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Fatal(msg string, keysAndValues ...any)
	// With returns a Logger that adds keysAndValues to every entry.
	With(keysAndValues ...any) Logger
}

type nop struct{}

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}
func (nop) Fatal(string, ...any) {}
func (n nop) With(...any) Logger { return n }

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return nop{}
}

type ctxKey struct{}

func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Logger stored by WithLogger, or a no-op one.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return nop{}
}
