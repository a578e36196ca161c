// Package extensibility adapts named host callbacks (actions, guards,
// services) for registration on an execctx.Context, adding cross-cutting
// concerns — logging, retry — around a caller-supplied implementation
// before it's registered.
package extensibility

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/waferflow/statechart/internal/execctx"
)

// LoggingAction wraps fn so every invocation is logged with its name, the
// event payload, duration, and outcome.
func LoggingAction(name string, fn execctx.ActionFunc) execctx.ActionFunc {
	return func(ec *execctx.Context, payload any) error {
		start := time.Now()
		err := fn(ec, payload)
		log.Printf("action %s: payload=%v duration=%v err=%v", name, payload, time.Since(start), err)
		return err
	}
}

// RetryAction wraps fn so it is retried up to attempts times (including the
// first try) with a fixed delay between attempts, returning the last error
// if every attempt fails. attempts < 1 is treated as 1.
func RetryAction(fn execctx.ActionFunc, attempts int, delay time.Duration) execctx.ActionFunc {
	if attempts < 1 {
		attempts = 1
	}
	return func(ec *execctx.Context, payload any) error {
		var err error
		for i := 0; i < attempts; i++ {
			if err = fn(ec, payload); err == nil {
				return nil
			}
			if i < attempts-1 && delay > 0 {
				time.Sleep(delay)
			}
		}
		return fmt.Errorf("action failed after %d attempts: %w", attempts, err)
	}
}

// LoggingService wraps a ServiceFunc the same way LoggingAction wraps an
// ActionFunc, for invoked services (§4.5.6).
func LoggingService(name string, fn execctx.ServiceFunc) execctx.ServiceFunc {
	return func(ctx context.Context, ec *execctx.Context, data map[string]any) (any, error) {
		start := time.Now()
		result, err := fn(ctx, ec, data)
		log.Printf("service %s: duration=%v err=%v", name, time.Since(start), err)
		return result, err
	}
}
