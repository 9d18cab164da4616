package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrAborted is returned when the context is cancelled before an attempt
// starts or during an inter-attempt wait.
var ErrAborted = errors.New("retry aborted")

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64
	// Jitter is the random perturbation applied to each backoff,
	// as a fraction of the computed delay (0.25 means +/-25%).
	Jitter float64
	// RetryIf decides whether an error from the given attempt should be
	// retried. Attempts are numbered from 1. Nil means retry everything.
	RetryIf func(err error, attempt int) bool
	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.25,
	}
}

// applyDefaults fills zero fields with the package defaults. A RetryConfig
// is a value object; callers may share or copy it freely.
func (cfg RetryConfig) applyDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2.0
	}
	return cfg
}

// Retry executes fn, retrying failures according to cfg.
// The last attempt's error is returned unchanged once attempts are
// exhausted or the RetryIf predicate declines; exhaustion is not a
// distinct error kind. Context cancellation surfaces as ErrAborted.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	cfg = cfg.applyDefaults()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err, attempt) {
			return zero, err
		}

		// No wait after the final attempt.
		if attempt == cfg.MaxAttempts {
			break
		}

		backoff := backoffDelay(attempt, cfg)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// RetryFunc executes a function that returns only an error.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// BackoffDelay returns the jittered wait before retry attempt number
// attempt (numbered from 1), with zero cfg fields filled from defaults.
// Useful for callers that run their own retry loops, such as reconnecting
// long-lived connections.
func BackoffDelay(attempt int, cfg RetryConfig) time.Duration {
	return backoffDelay(attempt, cfg.applyDefaults())
}

// backoffDelay computes the wait before the retry that follows attempt.
// The base delay is min(initial * factor^(attempt-1), max); jitter then
// perturbs it uniformly within +/-(Jitter * delay).
func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}

	if cfg.Jitter > 0 {
		span := delay * cfg.Jitter
		delay += (rand.Float64()*2 - 1) * span
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
