package resilience

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen allows requests through to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker for metrics/logging.
	Name string
	// FailureThreshold is the number of failures within FailureWindow
	// before the circuit opens.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit again.
	SuccessThreshold int
	// ResetTimeout is how long the circuit stays open before the next
	// state query moves it to half-open.
	ResetTimeout time.Duration
	// FailureWindow is the sliding window over which failures are counted
	// while the circuit is closed.
	FailureWindow time.Duration
	// OnStateChange is called on every state transition.
	OnStateChange func(name string, from, to State)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
		FailureWindow:    60 * time.Second,
	}
}

// CircuitBreakerStats is a point-in-time snapshot of breaker state.
type CircuitBreakerStats struct {
	Name              string    `json:"name"`
	State             string    `json:"state"`
	WindowedFailures  int       `json:"windowed_failures"`
	HalfOpenSuccesses int       `json:"half_open_successes"`
	LastFailureTime   time.Time `json:"last_failure_time,omitzero"`
}

// CircuitBreaker implements the circuit breaker pattern.
// It prevents cascading failures by failing fast when a dependency is unhealthy.
//
// States:
//   - Closed: Normal operation; failures are recorded in a sliding window
//   - Open: Dependency is unhealthy; requests fail immediately
//   - Half-Open: Testing recovery; successes close the circuit, any failure reopens it
//
// The open-to-half-open transition is lazy: it happens when state is next
// queried after ResetTimeout has elapsed, not on a background timer.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu                sync.Mutex
	state             State
	failureTimes      []time.Time
	halfOpenSuccesses int
	lastFailureTime   time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.FailureWindow <= 0 {
		config.FailureWindow = 60 * time.Second
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs the given function through the circuit breaker.
// Returns ErrCircuitOpen without invoking fn if the circuit is open;
// otherwise fn's own error is recorded and returned unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}

	err := fn()
	cb.recordResult(err)
	return err
}

// State returns the current circuit breaker state, applying the lazy
// open-to-half-open transition if ResetTimeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState(time.Now())
}

// Name returns the breaker's configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Reset forces the circuit breaker back to closed and clears all history.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toState(StateClosed)
	cb.failureTimes = nil
	cb.halfOpenSuccesses = 0
}

// Stats returns a snapshot of the breaker's current state and counters.
// Like State, this forces the lazy open-to-half-open check.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state := cb.currentState(now)
	cb.prune(now)

	return CircuitBreakerStats{
		Name:              cb.config.Name,
		State:             state.String(),
		WindowedFailures:  len(cb.failureTimes),
		HalfOpenSuccesses: cb.halfOpenSuccesses,
		LastFailureTime:   cb.lastFailureTime,
	}
}

// allowRequest checks if a request should be allowed.
func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState(time.Now()) {
	case StateClosed, StateHalfOpen:
		return true
	default:
		return false
	}
}

// recordResult records the result of an executed request.
func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	if err != nil {
		cb.onFailure(now)
	} else {
		cb.onSuccess(now)
	}
}

// onSuccess handles a successful request.
func (cb *CircuitBreaker) onSuccess(now time.Time) {
	switch cb.currentState(now) {
	case StateClosed:
		// A success does not erase recorded failures; only window
		// expiry removes them.
		cb.prune(now)
	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.config.SuccessThreshold {
			cb.toState(StateClosed)
		}
	}
}

// onFailure handles a failed request.
func (cb *CircuitBreaker) onFailure(now time.Time) {
	cb.lastFailureTime = now

	switch cb.currentState(now) {
	case StateClosed:
		cb.prune(now)
		cb.failureTimes = append(cb.failureTimes, now)
		if len(cb.failureTimes) >= cb.config.FailureThreshold {
			cb.toState(StateOpen)
		}
	case StateHalfOpen:
		cb.toState(StateOpen)
	}
}

// prune drops failures that have aged out of the sliding window.
// Callers must hold cb.mu.
func (cb *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-cb.config.FailureWindow)
	i := 0
	for i < len(cb.failureTimes) && !cb.failureTimes[i].After(cutoff) {
		i++
	}
	if i > 0 {
		cb.failureTimes = append(cb.failureTimes[:0], cb.failureTimes[i:]...)
	}
}

// currentState returns the current state, handling the lazy open-to-half-open
// transition. Callers must hold cb.mu.
func (cb *CircuitBreaker) currentState(now time.Time) State {
	if cb.state == StateOpen && now.Sub(cb.lastFailureTime) >= cb.config.ResetTimeout {
		cb.toState(StateHalfOpen)
	}
	return cb.state
}

// toState transitions to a new state. Callers must hold cb.mu.
func (cb *CircuitBreaker) toState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to

	switch to {
	case StateClosed:
		cb.failureTimes = nil
		cb.halfOpenSuccesses = 0
	case StateHalfOpen:
		cb.halfOpenSuccesses = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
