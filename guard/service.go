package guard

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/faultkit/component"
	"github.com/skillsenselab/faultkit/config"
	apperrors "github.com/skillsenselab/faultkit/errors"
	"github.com/skillsenselab/faultkit/logger"
	"github.com/skillsenselab/faultkit/resilience"
)

const defaultProbeInterval = 30 * time.Second

// ProbeFunc checks whether the guarded dependency is alive.
type ProbeFunc func(ctx context.Context) error

// ServiceGuard wraps a remote service with a guard plus a periodic health
// prober. Probes run through the circuit breaker, so a probe succeeding
// after the reset timeout drives the open -> half-open -> closed recovery
// without waiting for caller traffic. It implements component.Component
// so the probe loop is lifecycle-managed.
type ServiceGuard struct {
	*Guard

	prober   ProbeFunc
	interval time.Duration

	mu        sync.Mutex
	available bool
	lastErr   error

	stop chan struct{}
	done chan struct{}
}

// NewService creates a guarded service with an optional health prober.
// A nil prober disables the probe loop; availability then tracks only the
// breaker state.
func NewService(name string, cfg config.GuardConfig, prober ProbeFunc, opts ...Option) (*ServiceGuard, error) {
	g, err := New(name, cfg, opts...)
	if err != nil {
		return nil, err
	}

	interval := cfg.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	return &ServiceGuard{
		Guard:     g,
		prober:    prober,
		interval:  interval,
		available: true,
	}, nil
}

// Start launches the probe loop. Implements component.Component.
func (sg *ServiceGuard) Start(ctx context.Context) error {
	if sg.prober == nil {
		return nil
	}
	sg.stop = make(chan struct{})
	sg.done = make(chan struct{})
	go sg.probeLoop(sg.stop, sg.done)
	sg.log.Info("health probing started", logger.Fields("interval", sg.interval.String()))
	return nil
}

// Stop halts the probe loop. Implements component.Component.
func (sg *ServiceGuard) Stop(ctx context.Context) error {
	if sg.stop == nil {
		return nil
	}
	close(sg.stop)
	select {
	case <-sg.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	sg.stop = nil
	return nil
}

// Health reports the dependency's health from the breaker state and the
// last probe result. Implements component.Component.
func (sg *ServiceGuard) Health(ctx context.Context) component.Health {
	h := component.Health{Name: sg.name, Status: component.StatusHealthy}

	switch sg.State() {
	case resilience.StateOpen:
		h.Status = component.StatusUnhealthy
		h.Message = "circuit open"
	case resilience.StateHalfOpen:
		h.Status = component.StatusDegraded
		h.Message = "circuit half-open"
	}

	sg.mu.Lock()
	defer sg.mu.Unlock()
	if !sg.available && h.Status == component.StatusHealthy {
		h.Status = component.StatusDegraded
	}
	if sg.lastErr != nil && h.Message == "" {
		h.Message = sg.lastErr.Error()
	}
	return h
}

// Available reports whether the last probe succeeded and the circuit is
// not open.
func (sg *ServiceGuard) Available() bool {
	if sg.State() == resilience.StateOpen {
		return false
	}
	sg.mu.Lock()
	defer sg.mu.Unlock()
	return sg.available
}

// Unavailability returns a caller-facing coded error describing why the
// service is unavailable, or nil when it is available.
func (sg *ServiceGuard) Unavailability() error {
	if sg.State() == resilience.StateOpen {
		return apperrors.CircuitOpen(sg.name, sg.resetTimeout)
	}
	sg.mu.Lock()
	defer sg.mu.Unlock()
	if !sg.available {
		return apperrors.ServiceUnavailable(sg.name).WithCause(sg.lastErr)
	}
	return nil
}

// ProbeNow runs one probe immediately, outside the periodic schedule.
func (sg *ServiceGuard) ProbeNow(ctx context.Context) error {
	if sg.prober == nil {
		return nil
	}
	return sg.runProbe(ctx)
}

func (sg *ServiceGuard) probeLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(sg.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	sg.runProbe(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sg.runProbe(ctx)
		}
	}
}

func (sg *ServiceGuard) runProbe(ctx context.Context) error {
	err := sg.Probe(ctx, func(ctx context.Context) error {
		return sg.prober(ctx)
	})

	sg.mu.Lock()
	wasAvailable := sg.available
	sg.available = err == nil
	sg.lastErr = err
	sg.mu.Unlock()

	switch {
	case err != nil && wasAvailable:
		sg.log.Warn("service became unavailable", logger.ErrorFields("probe", err))
	case err == nil && !wasAvailable:
		sg.log.Info("service recovered")
	}
	return err
}
