package guard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skillsenselab/faultkit/component"
	"github.com/skillsenselab/faultkit/config"
)

type fakeSession struct {
	done chan struct{}
	err  error

	mu     sync.Mutex
	closed bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{done: make(chan struct{})}
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }

func (s *fakeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// drop ends the session with the given error, as a remote disconnect would.
func (s *fakeSession) drop(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.err = err
		close(s.done)
	}
}

func realtimeConfig() config.GuardConfig {
	cfg := testConfig()
	cfg.Breaker.FailureThreshold = 5
	return cfg
}

func TestRealtimeGuard_ConnectsAndReportsUp(t *testing.T) {
	session := newFakeSession()
	up := make(chan struct{}, 1)

	rg := NewRealtime("events", realtimeConfig(),
		func(ctx context.Context) (Session, error) {
			return session, nil
		},
		OnUp(func() { up <- struct{}{} }),
	)

	if err := rg.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer rg.Stop(context.Background())

	select {
	case <-up:
	case <-time.After(time.Second):
		t.Fatal("expected OnUp notification")
	}
	if !rg.Connected() {
		t.Error("expected Connected after dial")
	}
	if h := rg.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s", h.Status)
	}
}

func TestRealtimeGuard_ReconnectsAfterDrop(t *testing.T) {
	var dials atomic.Int32
	var sessions sync.Map
	up := make(chan struct{}, 4)
	down := make(chan error, 4)

	rg := NewRealtime("events", realtimeConfig(),
		func(ctx context.Context) (Session, error) {
			n := dials.Add(1)
			s := newFakeSession()
			sessions.Store(n, s)
			return s, nil
		},
		OnUp(func() { up <- struct{}{} }),
		OnDown(func(err error) { down <- err }),
	)

	rg.Start(context.Background())
	defer rg.Stop(context.Background())

	select {
	case <-up:
	case <-time.After(time.Second):
		t.Fatal("expected first OnUp")
	}

	first, _ := sessions.Load(int32(1))
	first.(*fakeSession).drop(fmt.Errorf("remote reset"))

	select {
	case err := <-down:
		if err == nil || err.Error() != "remote reset" {
			t.Errorf("expected drop error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected OnDown after drop")
	}

	select {
	case <-up:
	case <-time.After(time.Second):
		t.Fatal("expected reconnect")
	}
	if dials.Load() < 2 {
		t.Errorf("expected at least 2 dials, got %d", dials.Load())
	}
}

func TestRealtimeGuard_RetriesFailedDials(t *testing.T) {
	var dials atomic.Int32
	up := make(chan struct{}, 1)

	rg := NewRealtime("events", realtimeConfig(),
		func(ctx context.Context) (Session, error) {
			if dials.Add(1) < 3 {
				return nil, fmt.Errorf("dial refused")
			}
			return newFakeSession(), nil
		},
		OnUp(func() { up <- struct{}{} }),
	)

	rg.Start(context.Background())
	defer rg.Stop(context.Background())

	select {
	case <-up:
	case <-time.After(time.Second):
		t.Fatal("expected connection after retried dials")
	}
	if dials.Load() != 3 {
		t.Errorf("expected 3 dials, got %d", dials.Load())
	}
}

func TestRealtimeGuard_StopDuringBackoff(t *testing.T) {
	cfg := realtimeConfig()
	cfg.Retry.InitialBackoff = 10 * time.Second
	cfg.Retry.MaxBackoff = 10 * time.Second
	cfg.Retry.Jitter = 0

	rg := NewRealtime("events", cfg, func(ctx context.Context) (Session, error) {
		return nil, fmt.Errorf("dial refused")
	})

	rg.Start(context.Background())
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rg.Stop(ctx); err != nil {
		t.Fatalf("expected prompt stop during backoff, got %v", err)
	}
}

func TestRealtimeGuard_HealthWhileReconnecting(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	rg := NewRealtime("events", realtimeConfig(), func(ctx context.Context) (Session, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, fmt.Errorf("dial refused")
	})

	rg.Start(context.Background())
	defer rg.Stop(context.Background())

	if h := rg.Health(context.Background()); h.Status != component.StatusDegraded {
		t.Errorf("expected degraded while not connected, got %s", h.Status)
	}
}

func TestRealtimeGuard_ImplementsComponent(t *testing.T) {
	rg := NewRealtime("events", realtimeConfig(), func(ctx context.Context) (Session, error) {
		return newFakeSession(), nil
	})
	var _ component.Component = rg

	if rg.Name() != "events" {
		t.Errorf("expected name 'events', got %s", rg.Name())
	}
}
