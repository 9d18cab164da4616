package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrBulkheadFull is returned when both the running slots and the wait
// queue are at capacity.
var ErrBulkheadFull = errors.New("bulkhead queue is full")

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of concurrent calls.
	MaxConcurrent int
	// MaxQueueDepth is the maximum number of callers allowed to wait for
	// a slot. Zero means callers never queue: excess calls fail immediately.
	MaxQueueDepth int
	// OnReject is called when a request is rejected with ErrBulkheadFull.
	OnReject func(name string)
	// OnAcquire is called when a slot is acquired.
	OnAcquire func(name string)
	// OnRelease is called when a slot is released.
	OnRelease func(name string)
}

// DefaultBulkheadConfig returns sensible defaults.
func DefaultBulkheadConfig(name string) BulkheadConfig {
	return BulkheadConfig{
		Name:          name,
		MaxConcurrent: 10,
		MaxQueueDepth: 100,
	}
}

// BulkheadStats is a point-in-time snapshot of bulkhead utilization.
type BulkheadStats struct {
	Name          string `json:"name"`
	Running       int    `json:"running"`
	Queued        int    `json:"queued"`
	MaxConcurrent int    `json:"max_concurrent"`
	MaxQueueDepth int    `json:"max_queue_depth"`
}

// Bulkhead bounds the number of concurrent in-flight calls and queues
// excess callers in strict FIFO order up to MaxQueueDepth.
type Bulkhead struct {
	config BulkheadConfig

	mu      sync.Mutex
	running int
	waiters []chan struct{}
}

// NewBulkhead creates a new bulkhead. MaxConcurrent must be positive;
// MaxQueueDepth is taken as configured (zero disables queueing).
func NewBulkhead(config BulkheadConfig) (*Bulkhead, error) {
	if config.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("bulkhead %q: MaxConcurrent must be positive (got %d)", config.Name, config.MaxConcurrent)
	}
	if config.MaxQueueDepth < 0 {
		config.MaxQueueDepth = 0
	}

	return &Bulkhead{config: config}, nil
}

// Execute runs fn within the bulkhead. If all slots are busy the caller
// queues (FIFO) up to MaxQueueDepth; beyond that it fails immediately with
// ErrBulkheadFull. Errors from fn propagate unchanged after the slot is
// released and do not count as bulkhead failures.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.acquire(ctx); err != nil {
		if errors.Is(err, ErrBulkheadFull) && b.config.OnReject != nil {
			b.config.OnReject(b.config.Name)
		}
		return err
	}

	if b.config.OnAcquire != nil {
		b.config.OnAcquire(b.config.Name)
	}

	defer func() {
		b.release()
		if b.config.OnRelease != nil {
			b.config.OnRelease(b.config.Name)
		}
	}()

	return fn()
}

// ExecuteWithResult runs a function that returns a value through the bulkhead.
func ExecuteWithResult[T any](ctx context.Context, b *Bulkhead, fn func() (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// Stats returns a snapshot of current utilization.
func (b *Bulkhead) Stats() BulkheadStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BulkheadStats{
		Name:          b.config.Name,
		Running:       b.running,
		Queued:        len(b.waiters),
		MaxConcurrent: b.config.MaxConcurrent,
		MaxQueueDepth: b.config.MaxQueueDepth,
	}
}

// acquire claims a running slot, queueing if necessary.
func (b *Bulkhead) acquire(ctx context.Context) error {
	b.mu.Lock()

	if b.running < b.config.MaxConcurrent {
		b.running++
		b.mu.Unlock()
		return nil
	}

	if len(b.waiters) >= b.config.MaxQueueDepth {
		b.mu.Unlock()
		return ErrBulkheadFull
	}

	ready := make(chan struct{})
	b.waiters = append(b.waiters, ready)
	b.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		b.abandon(ready)
		return ctx.Err()
	}
}

// release frees a slot, handing it to the oldest waiter if any. The slot
// transfers directly, so running stays constant across a hand-off.
func (b *Bulkhead) release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.waiters) > 0 {
		ready := b.waiters[0]
		b.waiters = b.waiters[1:]
		close(ready)
		return
	}
	b.running--
}

// abandon removes a cancelled waiter from the queue. If the waiter was
// already admitted before cancellation won the race, its slot is released
// back so the count stays accurate.
func (b *Bulkhead) abandon(ready chan struct{}) {
	b.mu.Lock()
	for i, w := range b.waiters {
		if w == ready {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			b.mu.Unlock()
			return
		}
	}
	b.mu.Unlock()

	// Not in the queue: the slot was already handed to us.
	b.release()
}
