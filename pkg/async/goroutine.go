package async

import (
	"context"
	"time"

	"github.com/AstromanXD/Astricord-sub001/pkg/observability"
)

// SafeGo runs fn on its own goroutine with a deadline and panic
// recovery. A panic is logged with its stack and swallowed; an error
// return is logged. Use it for fire-and-forget work instead of a bare
// go statement so one bad task cannot take the process down.
func SafeGo(parent context.Context, timeout time.Duration, task string, logger *observability.Logger, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		defer observability.RecoverPanic(logger, task)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", task).Error("background task failed")
		}
	}()
}

// Go is SafeGo without a deadline, for long-lived background loops
// that run until the parent context is cancelled.
func Go(parent context.Context, task string, logger *observability.Logger, fn func(context.Context) error) {
	go func() {
		defer observability.RecoverPanic(logger, task)

		if err := fn(parent); err != nil {
			logger.WithError(err).WithField("task", task).Error("background task failed")
		}
	}()
}
