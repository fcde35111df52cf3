// Package async runs background tasks in goroutines with panic recovery
// and timeout enforcement.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/dmitrijs2005/contactbook/internal/logging"
)

// SafeGo executes fn in a goroutine with a deadline derived from parentCtx.
// Panics are recovered and logged together with the stack trace, errors are
// logged and discarded. Use this instead of a bare `go func()` for
// fire-and-forget work such as sending mail.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, logger logging.Logger, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "panic in background task",
					"task", taskName, "panic", r, "stack", string(debug.Stack()))
			}
		}()

		if err := fn(ctx); err != nil {
			logger.Error(ctx, "background task failed", "task", taskName, "error", err)
		}
	}()
}
