package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when an operation exceeds its deadline.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout races fn against a deadline. If the deadline fires first the
// call returns ErrTimeout and fn's eventual result is discarded. The context
// passed to fn is cancelled on timeout, so cooperative operations may stop
// early, but nothing forces them to: abandoned calls run to completion in
// the background.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if d <= 0 {
		return fn(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}

	// Buffered so the abandoned goroutine can always complete its send.
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(tctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
	}
}

// TimeoutFunc wraps a result-less operation with a deadline.
func TimeoutFunc(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := WithTimeout(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
