// Package async runs work with panic recovery so one failing goroutine is
// logged instead of taking the process down.
package async

import (
	"fmt"
	"runtime/debug"
)

// PanicLogger captures panic reports from background goroutines.
type PanicLogger interface {
	Error(format string, args ...any)
}

// Go runs fn in a goroutine guarded by panic recovery.
func Go(logger PanicLogger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Guard runs fn on the calling goroutine and turns a panic into an error.
func Guard(logger PanicLogger, name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			report(logger, name, r)
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	fn()
	return nil
}

// Recover logs panic details without crashing the process.
func Recover(logger PanicLogger, name string) {
	if r := recover(); r != nil {
		report(logger, name, r)
	}
}

func report(logger PanicLogger, name string, r any) {
	if logger == nil {
		return
	}
	if name == "" {
		logger.Error("goroutine panic: %v, stack: %s", r, debug.Stack())
		return
	}
	logger.Error("goroutine panic [%s]: %v, stack: %s", name, r, debug.Stack())
}
