package guard

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/faultkit/config"
	"github.com/skillsenselab/faultkit/logger"
	"github.com/skillsenselab/faultkit/observability"
	"github.com/skillsenselab/faultkit/resilience"
)

// Rejection reasons recorded on metrics.
const (
	reasonCircuitOpen  = "circuit_open"
	reasonBulkheadFull = "bulkhead_full"
	reasonRateLimited  = "rate_limited"
)

// Guard wraps calls to one named downstream dependency with a composed
// resilience pipeline. A Guard is safe for concurrent use; the breaker,
// bulkhead and rate limiter it owns are shared across all calls.
type Guard struct {
	name         string
	timeout      time.Duration
	retry        resilience.RetryConfig
	breaker      *resilience.CircuitBreaker
	bulkhead     *resilience.Bulkhead
	limiter      *resilience.RateLimiter
	resetTimeout time.Duration

	log     *logger.Logger
	metrics *observability.Metrics
}

// Option customizes Guard construction.
type Option func(*options)

type options struct {
	log           *logger.Logger
	metrics       *observability.Metrics
	onStateChange func(name string, from, to resilience.State)
}

// WithLogger sets the logger for guard events.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics attaches OpenTelemetry instruments to the guard.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithStateChange registers a callback invoked on every circuit breaker
// state transition, after the guard's own logging and metrics.
func WithStateChange(fn func(name string, from, to resilience.State)) Option {
	return func(o *options) { o.onStateChange = fn }
}

// New creates a guard for the named dependency from its config section.
func New(name string, cfg config.GuardConfig, opts ...Option) (*Guard, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.GetGlobalLogger()
	}

	g := &Guard{
		name:    name,
		timeout: cfg.Timeout,
		retry:   cfg.Retry.ToRetryConfig(),
		log:     o.log.WithGuard(name),
		metrics: o.metrics,
	}

	breakerCfg := cfg.Breaker.ToBreakerConfig(name)
	g.resetTimeout = breakerCfg.ResetTimeout
	onStateChange := o.onStateChange
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		g.logTransition(name, from, to)
		if g.metrics != nil {
			g.metrics.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
		}
		if onStateChange != nil {
			onStateChange(name, from, to)
		}
	}
	g.breaker = resilience.NewCircuitBreaker(breakerCfg)

	bulkheadCfg := cfg.Bulkhead.ToBulkheadConfig(name)
	bulkhead, err := resilience.NewBulkhead(bulkheadCfg)
	if err != nil {
		return nil, err
	}
	g.bulkhead = bulkhead

	if cfg.RateLimit > 0 {
		limiterCfg := resilience.DefaultRateLimiterConfig(name)
		limiterCfg.Rate = cfg.RateLimit
		if cfg.RateBurst > 0 {
			limiterCfg.Burst = cfg.RateBurst
		}
		g.limiter = resilience.NewRateLimiter(limiterCfg)
	}

	retryLog := g.log
	userOnRetry := g.retry.OnRetry
	g.retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		retryLog.Warn("retrying after failure", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldError, err.Error(),
			logger.FieldBackoff, backoff.Milliseconds(),
		))
		if g.metrics != nil {
			g.metrics.RecordRetry(context.Background(), name, attempt)
		}
		if userOnRetry != nil {
			userOnRetry(attempt, err, backoff)
		}
	}

	return g, nil
}

// Name returns the dependency name this guard protects.
func (g *Guard) Name() string { return g.name }

// State returns the current circuit breaker state.
func (g *Guard) State() resilience.State { return g.breaker.State() }

// ResetTimeout returns the breaker's open-state cooldown.
func (g *Guard) ResetTimeout() time.Duration { return g.resetTimeout }

// Reset forces the breaker back to closed and clears its history.
func (g *Guard) Reset() {
	g.breaker.Reset()
	g.log.Info("circuit manually reset")
}

// Stats is a point-in-time snapshot of all guard internals.
type Stats struct {
	Name        string                         `json:"name"`
	Breaker     resilience.CircuitBreakerStats `json:"breaker"`
	Bulkhead    resilience.BulkheadStats       `json:"bulkhead"`
	RateLimiter *resilience.RateLimiterStats   `json:"rate_limiter,omitempty"`
}

// Stats returns a snapshot of breaker, bulkhead and rate limiter state.
func (g *Guard) Stats() Stats {
	s := Stats{
		Name:     g.name,
		Breaker:  g.breaker.Stats(),
		Bulkhead: g.bulkhead.Stats(),
	}
	if g.limiter != nil {
		ls := g.limiter.Stats()
		s.RateLimiter = &ls
	}
	return s
}

// Do runs fn through the guard's full pipeline.
func (g *Guard) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, g, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Probe runs fn through the timeout and circuit breaker only, bypassing
// bulkhead and retry. A probe succeeding while the breaker is half-open
// counts toward closing it, so health checks can recover an open circuit
// without carrying caller traffic.
func (g *Guard) Probe(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanHealthProbe)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrGuardName, g.name)

	err := g.breaker.Execute(func() error {
		return resilience.TimeoutFunc(ctx, g.timeout, fn)
	})
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return err
}

// Call runs fn through g's full pipeline:
// timeout, circuit breaker, bulkhead, then retry around the whole unit.
// Rejections (open circuit, full bulkhead, rate limit) surface as the
// resilience package's sentinel errors.
func Call[T any](ctx context.Context, g *Guard, operation string, fn resilience.Operation[T]) (T, error) {
	eventID := uuid.NewString()
	cc := observability.NewCallContext(g.name, operation, eventID, g.metrics)
	ctx = observability.WithCallContext(ctx, cc)
	ctx, span := cc.StartCall(ctx)

	if g.limiter != nil && !g.limiter.Allow() {
		var zero T
		err := resilience.ErrRateLimited
		g.rejected(ctx, operation, reasonRateLimited)
		cc.EndCall(ctx, span, observability.OutcomeRejected, err)
		return zero, err
	}

	pipeline := resilience.NewPipeline[T]().
		WithTimeout(g.timeout).
		WithCircuitBreaker(g.breaker).
		WithBulkhead(g.bulkhead).
		WithRetry(g.retry)

	result, err := pipeline.Execute(ctx, fn)

	switch {
	case err == nil:
		cc.EndCall(ctx, span, observability.OutcomeSuccess, nil)
	case errors.Is(err, resilience.ErrCircuitOpen):
		g.rejected(ctx, operation, reasonCircuitOpen)
		cc.EndCall(ctx, span, observability.OutcomeRejected, err)
	case errors.Is(err, resilience.ErrBulkheadFull):
		g.rejected(ctx, operation, reasonBulkheadFull)
		cc.EndCall(ctx, span, observability.OutcomeRejected, err)
	default:
		g.log.Error("call failed", logger.ErrorFields(operation, err))
		cc.EndCall(ctx, span, observability.OutcomeFailure, err)
	}
	return result, err
}

// CallWithFallback runs fn through g's pipeline and resolves with the
// fallback factory's value on any failure. It never returns an error.
func CallWithFallback[T any](ctx context.Context, g *Guard, operation string, fn resilience.Operation[T], fallback func(err error) T) T {
	result, err := Call(ctx, g, operation, fn)
	if err != nil {
		g.log.Warn("falling back", logger.ErrorFields(operation, err))
		return fallback(err)
	}
	return result
}

func (g *Guard) rejected(ctx context.Context, operation, reason string) {
	g.log.Warn("call rejected", logger.Fields(
		logger.FieldOperation, operation,
		"reason", reason,
	))
	if g.metrics != nil {
		g.metrics.RecordRejection(ctx, g.name, reason)
	}
}

func (g *Guard) logTransition(name string, from, to resilience.State) {
	fields := logger.TransitionFields(name, from.String(), to.String())
	fields[logger.FieldEventID] = uuid.NewString()
	if to == resilience.StateOpen {
		g.log.Warn("circuit state changed", fields)
		return
	}
	g.log.Info("circuit state changed", fields)
}
