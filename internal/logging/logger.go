package logging

import (
	"fmt"
	"io"
	"reflect"

	"giftprobe/internal/observability"
)

// Logger defines a minimal, printf-style logging contract shared by every
// component. Components take a Logger explicitly; nil means discard.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

// Configure installs the process-wide structured logger.
func Configure(level, format string, output io.Writer) {
	observability.SetDefault(observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: format,
		Output: output,
	}))
}

// NewComponentLogger returns the default application logger scoped to a component.
// The default is resolved on every call so Configure may run after construction.
func NewComponentLogger(component string) Logger {
	return &componentLogger{component: component}
}

type componentLogger struct {
	component string
}

func (l *componentLogger) scoped() *observability.Logger {
	base := observability.Default()
	if l.component == "" {
		return base
	}
	return base.With("component", l.component)
}

func (l *componentLogger) Debug(format string, args ...any) {
	l.scoped().Debug(fmt.Sprintf(format, args...))
}

func (l *componentLogger) Info(format string, args ...any) {
	l.scoped().Info(fmt.Sprintf(format, args...))
}

func (l *componentLogger) Warn(format string, args ...any) {
	l.scoped().Warn(fmt.Sprintf(format, args...))
}

func (l *componentLogger) Error(format string, args ...any) {
	l.scoped().Error(fmt.Sprintf(format, args...))
}
