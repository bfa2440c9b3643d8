package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline derived from ctx and names the
// operation in the error when the deadline passes. A non-positive timeout
// runs fn directly. fn must honour its context; after the deadline its
// result is discarded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: exceeded %v: %w", name, timeout, err)
		}
		return err
	case <-timeoutCtx.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: exceeded %v: %w", name, timeout, context.DeadlineExceeded)
	}
}
