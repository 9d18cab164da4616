package guard

import (
	"fmt"
	"sort"
	"sync"

	"github.com/skillsenselab/faultkit/config"
	"github.com/skillsenselab/faultkit/logger"
	"github.com/skillsenselab/faultkit/observability"
)

// Registry is an explicit store of guards keyed by dependency name.
// It is constructed by the composition root and passed to call sites;
// there is no package-level instance. Guards are created on first use
// from the registry defaults, so independent call sites naming the same
// dependency share one breaker and one bulkhead.
type Registry struct {
	mu       sync.Mutex
	guards   map[string]*Guard
	defaults config.GuardConfig
	overlays map[string]config.GuardConfig
	opts     []Option
	log      *logger.Logger
	closed   bool
}

// RegistryOption customizes Registry construction.
type RegistryOption func(*Registry)

// WithGuardOptions sets options applied to every guard the registry creates.
func WithGuardOptions(opts ...Option) RegistryOption {
	return func(r *Registry) { r.opts = opts }
}

// WithOverride sets a per-dependency config overriding the defaults.
func WithOverride(name string, cfg config.GuardConfig) RegistryOption {
	return func(r *Registry) { r.overlays[name] = cfg }
}

// WithRegistryLogger sets the registry's own logger.
func WithRegistryLogger(log *logger.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates a registry whose guards default to cfg.
func NewRegistry(defaults config.GuardConfig, opts ...RegistryOption) *Registry {
	r := &Registry{
		guards:   make(map[string]*Guard),
		defaults: defaults,
		overlays: make(map[string]config.GuardConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.GetGlobalLogger().WithComponent("guard-registry")
	}
	return r
}

// Get returns the guard for name, creating it on first use.
func (r *Registry) Get(name string) (*Guard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("guard registry is closed")
	}
	if g, ok := r.guards[name]; ok {
		return g, nil
	}

	cfg := r.defaults
	if overlay, ok := r.overlays[name]; ok {
		cfg = overlay
	}

	g, err := New(name, cfg, r.opts...)
	if err != nil {
		return nil, fmt.Errorf("creating guard %q: %w", name, err)
	}
	r.guards[name] = g
	r.log.Debug("guard created", logger.Fields(logger.FieldGuard, name))
	return g, nil
}

// Lookup returns the guard for name without creating one.
func (r *Registry) Lookup(name string) (*Guard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guards[name]
	return g, ok
}

// Names returns the names of all guards, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.guards))
	for name := range r.guards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StatsAll returns a snapshot of every guard, ordered by name.
func (r *Registry) StatsAll() []Stats {
	r.mu.Lock()
	guards := make([]*Guard, 0, len(r.guards))
	for _, g := range r.guards {
		guards = append(guards, g)
	}
	r.mu.Unlock()

	sort.Slice(guards, func(i, j int) bool { return guards[i].name < guards[j].name })

	stats := make([]Stats, 0, len(guards))
	for _, g := range guards {
		stats = append(stats, g.Stats())
	}
	return stats
}

// ResetAll forces every guard's breaker back to closed.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.guards {
		g.Reset()
	}
}

// Close tears down the registry. Subsequent Get calls fail; existing
// guards keep working for in-flight calls.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.guards = make(map[string]*Guard)
	r.log.Debug("guard registry closed")
}

// Observe attaches metrics built on the given meter name to all guards
// the registry creates afterwards. Call before the first Get.
func (r *Registry) Observe(meterName string) error {
	metrics, err := observability.NewMetrics(observability.Meter(meterName))
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = append(r.opts, WithMetrics(metrics))
	return nil
}
