package guard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skillsenselab/faultkit/config"
	"github.com/skillsenselab/faultkit/resilience"
)

// testConfig returns a guard config with short timings suited to tests.
// Retry is a single attempt so breaker failure counts stay predictable.
func testConfig() config.GuardConfig {
	return config.GuardConfig{
		Timeout: 200 * time.Millisecond,
		Retry: config.RetrySection{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
		Breaker: config.BreakerSection{
			FailureThreshold: 2,
			SuccessThreshold: 1,
			ResetTimeout:     30 * time.Millisecond,
			FailureWindow:    time.Second,
		},
		Bulkhead: config.BulkheadSection{MaxConcurrent: 2},
	}
}

func TestNew_Defaults(t *testing.T) {
	g, err := New("backend", config.GuardConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Name() != "backend" {
		t.Errorf("expected name 'backend', got %s", g.Name())
	}
	if g.State() != resilience.StateClosed {
		t.Errorf("expected closed state, got %v", g.State())
	}
	if g.ResetTimeout() != 30*time.Second {
		t.Errorf("expected default reset timeout 30s, got %v", g.ResetTimeout())
	}
}

func TestCall_Success(t *testing.T) {
	g, _ := New("backend", testConfig())

	got, err := Call(context.Background(), g, "fetch", func(ctx context.Context) (string, error) {
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "payload" {
		t.Errorf("expected 'payload', got %q", got)
	}
}

func TestCall_RetriesTransientFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.MaxAttempts = 3
	cfg.Breaker.FailureThreshold = 10
	g, _ := New("backend", cfg)

	var calls int32
	got, err := Call(context.Background(), g, "fetch", func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return 0, fmt.Errorf("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestCall_CircuitOpensAndRejects(t *testing.T) {
	g, _ := New("backend", testConfig())
	boom := fmt.Errorf("boom")

	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), g, "fetch", func(ctx context.Context) (string, error) {
			return "", boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected underlying error, got %v", err)
		}
	}
	if g.State() != resilience.StateOpen {
		t.Fatalf("expected open state after threshold failures, got %v", g.State())
	}

	var called bool
	_, err := Call(context.Background(), g, "fetch", func(ctx context.Context) (string, error) {
		called = true
		return "", nil
	})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("operation should not run while circuit is open")
	}
}

func TestCall_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.1
	cfg.RateBurst = 1
	g, _ := New("backend", cfg)

	if _, err := Call(context.Background(), g, "fetch", func(ctx context.Context) (string, error) {
		return "ok", nil
	}); err != nil {
		t.Fatalf("first call should pass, got %v", err)
	}

	var called bool
	_, err := Call(context.Background(), g, "fetch", func(ctx context.Context) (string, error) {
		called = true
		return "ok", nil
	})
	if !errors.Is(err, resilience.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if called {
		t.Error("operation should not run when rate limited")
	}
}

func TestCall_TimeoutBoundsAttempt(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	g, _ := New("backend", cfg)

	_, err := Call(context.Background(), g, "fetch", func(ctx context.Context) (string, error) {
		select {
		case <-time.After(time.Second):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	if !errors.Is(err, resilience.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestCallWithFallback_AlwaysResolves(t *testing.T) {
	g, _ := New("backend", testConfig())

	got := CallWithFallback(context.Background(), g, "fetch",
		func(ctx context.Context) (string, error) {
			return "", fmt.Errorf("primary failed")
		},
		func(err error) string {
			return "fallback"
		})
	if got != "fallback" {
		t.Errorf("expected 'fallback', got %q", got)
	}
}

func TestCallWithFallback_PrefersPrimary(t *testing.T) {
	g, _ := New("backend", testConfig())

	got := CallWithFallback(context.Background(), g, "fetch",
		func(ctx context.Context) (string, error) {
			return "primary", nil
		},
		func(err error) string {
			return "fallback"
		})
	if got != "primary" {
		t.Errorf("expected 'primary', got %q", got)
	}
}

func TestDo_PassesErrorThrough(t *testing.T) {
	g, _ := New("backend", testConfig())
	boom := fmt.Errorf("boom")

	err := g.Do(context.Background(), "send", func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected underlying error, got %v", err)
	}
}

func TestStats(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 100
	g, _ := New("backend", cfg)

	Call(context.Background(), g, "fetch", func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("boom")
	})

	s := g.Stats()
	if s.Name != "backend" {
		t.Errorf("expected name 'backend', got %s", s.Name)
	}
	if s.Breaker.WindowedFailures != 1 {
		t.Errorf("expected 1 windowed failure, got %d", s.Breaker.WindowedFailures)
	}
	if s.Bulkhead.Running != 0 {
		t.Errorf("expected 0 running, got %d", s.Bulkhead.Running)
	}
	if s.RateLimiter == nil {
		t.Error("expected rate limiter stats when rate limit configured")
	}
}

func TestStats_NoRateLimiter(t *testing.T) {
	g, _ := New("backend", testConfig())
	if g.Stats().RateLimiter != nil {
		t.Error("expected nil rate limiter stats without rate limit")
	}
}

func TestReset_ClosesCircuit(t *testing.T) {
	g, _ := New("backend", testConfig())
	for i := 0; i < 2; i++ {
		g.Do(context.Background(), "send", func(ctx context.Context) error {
			return fmt.Errorf("boom")
		})
	}
	if g.State() != resilience.StateOpen {
		t.Fatalf("expected open state, got %v", g.State())
	}

	g.Reset()
	if g.State() != resilience.StateClosed {
		t.Errorf("expected closed state after reset, got %v", g.State())
	}
}

func TestProbe_RecoversOpenCircuit(t *testing.T) {
	g, _ := New("backend", testConfig())
	for i := 0; i < 2; i++ {
		g.Do(context.Background(), "send", func(ctx context.Context) error {
			return fmt.Errorf("boom")
		})
	}
	if g.State() != resilience.StateOpen {
		t.Fatalf("expected open state, got %v", g.State())
	}

	time.Sleep(40 * time.Millisecond)

	err := g.Probe(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("expected probe to pass, got %v", err)
	}
	if g.State() != resilience.StateClosed {
		t.Errorf("expected closed state after successful probe, got %v", g.State())
	}
}

func TestWithStateChange(t *testing.T) {
	type transition struct {
		from, to resilience.State
	}
	changes := make(chan transition, 4)

	g, _ := New("backend", testConfig(), WithStateChange(func(name string, from, to resilience.State) {
		changes <- transition{from, to}
	}))

	for i := 0; i < 2; i++ {
		g.Do(context.Background(), "send", func(ctx context.Context) error {
			return fmt.Errorf("boom")
		})
	}

	select {
	case tr := <-changes:
		if tr.from != resilience.StateClosed || tr.to != resilience.StateOpen {
			t.Errorf("expected closed->open, got %v->%v", tr.from, tr.to)
		}
	default:
		t.Fatal("expected a state change notification")
	}
}
