package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers a panic in a deferred call and logs it with the
// stack trace. The panic is not re-raised; use only where a crashed
// background task should not take the process down.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// MustRecover converts a recovered panic value into an error, for APIs
// that treat panics from callee code as failures.
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
