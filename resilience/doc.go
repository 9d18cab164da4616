// Package resilience provides patterns for building fault-tolerant systems.
//
// This package includes:
//   - CircuitBreaker: Fails fast while a dependency is unhealthy, with a
//     sliding failure window and half-open recovery probing
//   - Retry: Retries failed operations with exponential backoff and jitter
//   - Bulkhead: Limits concurrent access with a FIFO wait queue
//   - WithTimeout / WithFallback: Deadline and substitute-value combinators
//   - RateLimiter: Controls request rate with a token bucket
//   - Pipeline: Composes the above in a fixed inside-out order
//
// The patterns can be used individually:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("payments"))
//	err := cb.Execute(func() error { return client.Ping() })
//
// or composed through a Pipeline, which wraps the base operation as
// timeout -> circuit breaker -> bulkhead -> retry -> fallback:
//
//	p := resilience.NewPipeline[*Quote]().
//	    WithTimeout(2 * time.Second).
//	    WithCircuitBreaker(cb).
//	    WithRetry(resilience.DefaultRetryConfig())
//	quote, err := p.Execute(ctx, fetchQuote)
package resilience
