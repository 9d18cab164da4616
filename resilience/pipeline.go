package resilience

import (
	"context"
	"time"
)

// Operation is a unit of work guarded by a Pipeline.
type Operation[T any] func(ctx context.Context) (T, error)

// Pipeline composes resilience policies around an operation in a fixed
// inside-out order:
//
//	base -> timeout -> circuit breaker -> bulkhead -> retry -> fallback
//
// The order is load-bearing and not configurable: the timeout bounds each
// raw attempt, so the breaker records every timed-out attempt as exactly one
// failure; the bulkhead counts breaker-guarded attempts toward occupancy;
// retry re-runs the whole timeout+breaker+bulkhead unit; fallback resolves
// only after retries are exhausted.
//
// A Pipeline is immutable once built and safe for concurrent use. The
// attached CircuitBreaker and Bulkhead are shared, long-lived instances;
// the retry configuration is a value object.
type Pipeline[T any] struct {
	timeout  time.Duration
	breaker  *CircuitBreaker
	bulkhead *Bulkhead
	retry    *RetryConfig
	fallback func(err error) T
}

// NewPipeline creates an empty pipeline. With no policies attached,
// Execute invokes the operation directly.
func NewPipeline[T any]() *Pipeline[T] {
	return &Pipeline[T]{}
}

// WithTimeout bounds each individual attempt with a deadline.
func (p *Pipeline[T]) WithTimeout(d time.Duration) *Pipeline[T] {
	q := *p
	q.timeout = d
	return &q
}

// WithCircuitBreaker guards attempts with a shared circuit breaker.
func (p *Pipeline[T]) WithCircuitBreaker(cb *CircuitBreaker) *Pipeline[T] {
	q := *p
	q.breaker = cb
	return &q
}

// WithBulkhead limits concurrent attempts with a shared bulkhead.
func (p *Pipeline[T]) WithBulkhead(b *Bulkhead) *Pipeline[T] {
	q := *p
	q.bulkhead = b
	return &q
}

// WithRetry re-runs failed attempts according to cfg.
func (p *Pipeline[T]) WithRetry(cfg RetryConfig) *Pipeline[T] {
	q := *p
	q.retry = &cfg
	return &q
}

// WithFallback resolves with the factory's value when every other policy
// has given up. The factory receives the final error.
func (p *Pipeline[T]) WithFallback(fallback func(err error) T) *Pipeline[T] {
	q := *p
	q.fallback = fallback
	return &q
}

// WithFallbackValue resolves with a static value when every other policy
// has given up.
func (p *Pipeline[T]) WithFallbackValue(value T) *Pipeline[T] {
	return p.WithFallback(func(error) T { return value })
}

// Execute runs fn through the composed policy stack.
func (p *Pipeline[T]) Execute(ctx context.Context, fn Operation[T]) (T, error) {
	call := fn

	if p.timeout > 0 {
		inner := call
		d := p.timeout
		call = func(ctx context.Context) (T, error) {
			return WithTimeout(ctx, d, inner)
		}
	}

	if p.breaker != nil {
		inner := call
		cb := p.breaker
		call = func(ctx context.Context) (T, error) {
			var result T
			err := cb.Execute(func() error {
				var innerErr error
				result, innerErr = inner(ctx)
				return innerErr
			})
			if err != nil {
				var zero T
				return zero, err
			}
			return result, nil
		}
	}

	if p.bulkhead != nil {
		inner := call
		b := p.bulkhead
		call = func(ctx context.Context) (T, error) {
			return ExecuteWithResult(ctx, b, func() (T, error) {
				return inner(ctx)
			})
		}
	}

	if p.retry != nil {
		inner := call
		cfg := *p.retry
		call = func(ctx context.Context) (T, error) {
			return Retry(ctx, cfg, func() (T, error) {
				return inner(ctx)
			})
		}
	}

	result, err := call(ctx)
	if err != nil && p.fallback != nil {
		return p.fallback(err), nil
	}
	return result, err
}
