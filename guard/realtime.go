package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/skillsenselab/faultkit/component"
	"github.com/skillsenselab/faultkit/config"
	"github.com/skillsenselab/faultkit/logger"
	"github.com/skillsenselab/faultkit/observability"
	"github.com/skillsenselab/faultkit/resilience"
)

// Session is a live long-lived connection. Done is closed when the
// session ends; Err reports why. Close tears the session down.
type Session interface {
	Done() <-chan struct{}
	Err() error
	Close() error
}

// DialFunc establishes a new session.
type DialFunc func(ctx context.Context) (Session, error)

// RealtimeGuard maintains one long-lived connection, reconnecting with
// jittered backoff when it drops. Dial attempts run through the circuit
// breaker, so a dependency that keeps refusing connections stops being
// dialed until the reset timeout elapses. It implements
// component.Component.
type RealtimeGuard struct {
	name    string
	dial    DialFunc
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	log     *logger.Logger

	onUp   func()
	onDown func(err error)

	mu        sync.Mutex
	session   Session
	connected bool

	stop chan struct{}
	done chan struct{}
}

// RealtimeOption customizes RealtimeGuard construction.
type RealtimeOption func(*RealtimeGuard)

// OnUp registers a callback invoked after each successful (re)connect.
func OnUp(fn func()) RealtimeOption {
	return func(rg *RealtimeGuard) { rg.onUp = fn }
}

// OnDown registers a callback invoked when the connection drops or a
// dial attempt fails. The error is nil on orderly shutdown.
func OnDown(fn func(err error)) RealtimeOption {
	return func(rg *RealtimeGuard) { rg.onDown = fn }
}

// WithRealtimeLogger sets the guard's logger.
func WithRealtimeLogger(log *logger.Logger) RealtimeOption {
	return func(rg *RealtimeGuard) { rg.log = log.WithGuard(rg.name) }
}

// NewRealtime creates a realtime guard for the named connection.
func NewRealtime(name string, cfg config.GuardConfig, dial DialFunc, opts ...RealtimeOption) *RealtimeGuard {
	rg := &RealtimeGuard{
		name:  name,
		dial:  dial,
		retry: cfg.Retry.ToRetryConfig(),
	}
	for _, opt := range opts {
		opt(rg)
	}
	if rg.log == nil {
		rg.log = logger.GetGlobalLogger().WithGuard(name)
	}

	breakerCfg := cfg.Breaker.ToBreakerConfig(name)
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		rg.log.Info("circuit state changed", logger.TransitionFields(name, from.String(), to.String()))
	}
	rg.breaker = resilience.NewCircuitBreaker(breakerCfg)
	return rg
}

// Name returns the connection name. Implements component.Component.
func (rg *RealtimeGuard) Name() string { return rg.name }

// Connected reports whether a session is currently up.
func (rg *RealtimeGuard) Connected() bool {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	return rg.connected
}

// State returns the dial circuit breaker's state.
func (rg *RealtimeGuard) State() resilience.State { return rg.breaker.State() }

// Start launches the connect loop. Implements component.Component.
func (rg *RealtimeGuard) Start(ctx context.Context) error {
	rg.stop = make(chan struct{})
	rg.done = make(chan struct{})
	go rg.run(rg.stop, rg.done)
	return nil
}

// Stop closes the current session and halts reconnecting.
// Implements component.Component.
func (rg *RealtimeGuard) Stop(ctx context.Context) error {
	if rg.stop == nil {
		return nil
	}
	close(rg.stop)

	rg.mu.Lock()
	session := rg.session
	rg.mu.Unlock()
	if session != nil {
		session.Close()
	}

	select {
	case <-rg.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	rg.stop = nil
	return nil
}

// Health reports connection health. Implements component.Component.
func (rg *RealtimeGuard) Health(ctx context.Context) component.Health {
	h := component.Health{Name: rg.name, Status: component.StatusHealthy}
	if rg.breaker.State() == resilience.StateOpen {
		h.Status = component.StatusUnhealthy
		h.Message = "circuit open"
		return h
	}
	if !rg.Connected() {
		h.Status = component.StatusDegraded
		h.Message = "reconnecting"
	}
	return h
}

func (rg *RealtimeGuard) run(stop, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	attempt := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		session, err := rg.connect(ctx)
		if err != nil {
			attempt++
			rg.notifyDown(err)
			if !rg.sleep(ctx, rg.reconnectDelay(attempt, err)) {
				return
			}
			continue
		}

		attempt = 0
		rg.setSession(session, true)
		rg.log.Info("connection up")
		if rg.onUp != nil {
			rg.onUp()
		}

		select {
		case <-stop:
			rg.setSession(nil, false)
			return
		case <-session.Done():
		}

		rg.setSession(nil, false)
		rg.notifyDown(session.Err())
		if !rg.sleep(ctx, resilience.BackoffDelay(1, rg.retry)) {
			return
		}
	}
}

func (rg *RealtimeGuard) connect(ctx context.Context) (Session, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanRealtimeConn)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrGuardName, rg.name)

	var session Session
	err := rg.breaker.Execute(func() error {
		var dialErr error
		session, dialErr = rg.dial(ctx)
		return dialErr
	})
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	return session, nil
}

// reconnectDelay picks the wait before the next dial. While the circuit
// is open there is no point retrying sooner than the reset timeout allows,
// so the backoff still applies but attempts that were rejected outright
// do not advance the exponential curve.
func (rg *RealtimeGuard) reconnectDelay(attempt int, err error) time.Duration {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return resilience.BackoffDelay(1, rg.retry)
	}
	return resilience.BackoffDelay(attempt, rg.retry)
}

func (rg *RealtimeGuard) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (rg *RealtimeGuard) setSession(s Session, connected bool) {
	rg.mu.Lock()
	rg.session = s
	rg.connected = connected
	rg.mu.Unlock()
}

func (rg *RealtimeGuard) notifyDown(err error) {
	rg.mu.Lock()
	wasConnected := rg.connected
	rg.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		rg.log.Warn("connection down", logger.Fields(logger.FieldError, err.Error()))
	} else if wasConnected {
		rg.log.Info("connection closed")
	}
	if rg.onDown != nil {
		rg.onDown(err)
	}
}
