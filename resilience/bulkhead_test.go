package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitForQueued(t *testing.T, b *Bulkhead, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if b.Stats().Queued == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d queued callers, have %d", want, b.Stats().Queued)
}

func TestBulkhead_RequiresMaxConcurrent(t *testing.T) {
	if _, err := NewBulkhead(BulkheadConfig{Name: "test"}); err == nil {
		t.Error("expected error for missing MaxConcurrent")
	}
}

func TestBulkhead_AdmitsUnderLimit(t *testing.T) {
	b, err := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 2})
	if err != nil {
		t.Fatal(err)
	}

	var called bool
	err = b.Execute(context.Background(), func() error {
		called = true
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called {
		t.Error("function was not called")
	}
}

func TestBulkhead_FIFOAdmissionOrder(t *testing.T) {
	b, err := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxQueueDepth: 10})
	if err != nil {
		t.Fatal(err)
	}

	gate := make(chan struct{})
	holderRunning := make(chan struct{})
	var wg sync.WaitGroup

	// Occupy the single slot.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Execute(context.Background(), func() error {
			close(holderRunning)
			<-gate
			return nil
		})
	}()
	<-holderRunning

	// Enqueue three waiters one at a time so queue order is known.
	var mu sync.Mutex
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		waitForQueued(t, b, i)
	}

	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(order))
	}
	for i, got := range order {
		if got != i+1 {
			t.Errorf("position %d: expected caller %d, got %d (order %v)", i, i+1, got, order)
		}
	}
}

func TestBulkhead_OverflowFailsImmediately(t *testing.T) {
	b, err := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxQueueDepth: 0})
	if err != nil {
		t.Fatal(err)
	}

	gate := make(chan struct{})
	running := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func() error {
			close(running)
			<-gate
			return nil
		})
	}()
	<-running
	defer close(gate)

	start := time.Now()
	err = b.Execute(context.Background(), func() error { return nil })

	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("expected ErrBulkheadFull, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("rejection should be immediate, took %s", elapsed)
	}
}

func TestBulkhead_QueueDepthLimit(t *testing.T) {
	b, err := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxQueueDepth: 1})
	if err != nil {
		t.Fatal(err)
	}

	gate := make(chan struct{})
	running := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func() error {
			close(running)
			<-gate
			return nil
		})
	}()
	<-running

	done := make(chan error, 1)
	go func() {
		done <- b.Execute(context.Background(), func() error { return nil })
	}()
	waitForQueued(t, b, 1)

	// Queue is now at depth; the next caller bounces.
	if err := b.Execute(context.Background(), func() error { return nil }); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("expected ErrBulkheadFull, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Errorf("queued caller failed: %v", err)
	}
}

func TestBulkhead_ErrorsReleaseSlot(t *testing.T) {
	b, err := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1})
	if err != nil {
		t.Fatal(err)
	}

	testErr := errors.New("operation failed")
	if err := b.Execute(context.Background(), func() error { return testErr }); !errors.Is(err, testErr) {
		t.Errorf("expected testErr, got %v", err)
	}

	// The failed call must have freed its slot.
	if got := b.Stats().Running; got != 0 {
		t.Errorf("expected 0 running after failure, got %d", got)
	}
	if err := b.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("expected admission after failure, got %v", err)
	}
}

func TestBulkhead_CancelledWaiterLeavesQueue(t *testing.T) {
	b, err := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxQueueDepth: 5})
	if err != nil {
		t.Fatal(err)
	}

	gate := make(chan struct{})
	running := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func() error {
			close(running)
			<-gate
			return nil
		})
	}()
	<-running

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(ctx, func() error { return nil })
	}()
	waitForQueued(t, b, 1)

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	waitForQueued(t, b, 0)

	close(gate)
}

func TestBulkhead_ExecuteWithResult(t *testing.T) {
	b, err := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1})
	if err != nil {
		t.Fatal(err)
	}

	got, err := ExecuteWithResult(context.Background(), b, func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestBulkhead_RejectCallback(t *testing.T) {
	var rejected []string
	b, err := NewBulkhead(BulkheadConfig{
		Name:          "orders",
		MaxConcurrent: 1,
		MaxQueueDepth: 0,
		OnReject:      func(name string) { rejected = append(rejected, name) },
	})
	if err != nil {
		t.Fatal(err)
	}

	gate := make(chan struct{})
	running := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func() error {
			close(running)
			<-gate
			return nil
		})
	}()
	<-running
	defer close(gate)

	_ = b.Execute(context.Background(), func() error { return nil })

	if len(rejected) != 1 || rejected[0] != "orders" {
		t.Errorf("expected one rejection for 'orders', got %v", rejected)
	}
}

func TestBulkhead_Stats(t *testing.T) {
	b, err := NewBulkhead(BulkheadConfig{Name: "orders", MaxConcurrent: 2, MaxQueueDepth: 3})
	if err != nil {
		t.Fatal(err)
	}

	stats := b.Stats()
	if stats.Name != "orders" || stats.MaxConcurrent != 2 || stats.MaxQueueDepth != 3 {
		t.Errorf("unexpected config in stats: %+v", stats)
	}
	if stats.Running != 0 || stats.Queued != 0 {
		t.Errorf("expected idle bulkhead, got %+v", stats)
	}
}
