package guard

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/faultkit/config"
	apperrors "github.com/skillsenselab/faultkit/errors"
	"github.com/skillsenselab/faultkit/logger"
	"github.com/skillsenselab/faultkit/observability"
	"github.com/skillsenselab/faultkit/resilience"
)

// LoadFunc fetches a dynamically loaded module by name.
type LoadFunc func(ctx context.Context, name string) (any, error)

// ModuleCache stores previously loaded modules so a failing loader can
// fall back to stale content instead of erroring out.
type ModuleCache interface {
	Get(ctx context.Context, name string) (any, bool)
	Put(ctx context.Context, name string, module any)
}

// MemoryModuleCache is a trivial in-memory ModuleCache.
type MemoryModuleCache struct {
	mu      sync.RWMutex
	modules map[string]any
}

// NewMemoryModuleCache creates an empty in-memory module cache.
func NewMemoryModuleCache() *MemoryModuleCache {
	return &MemoryModuleCache{modules: make(map[string]any)}
}

// Get returns the cached module for name.
func (c *MemoryModuleCache) Get(ctx context.Context, name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[name]
	return m, ok
}

// Put stores a module under name, replacing any previous entry.
func (c *MemoryModuleCache) Put(ctx context.Context, name string, module any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[name] = module
}

// LoaderGuard guards dynamic module loading. Each module name gets its
// own circuit breaker, so one chronically failing module cannot block
// loads of the others. When loading fails, or the module's circuit is
// open, a previously cached copy is served instead.
type LoaderGuard struct {
	load  LoadFunc
	cache ModuleCache
	cfg   config.GuardConfig
	log   *logger.Logger

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// LoaderOption customizes LoaderGuard construction.
type LoaderOption func(*LoaderGuard)

// WithModuleCache sets the fallback cache. Without one, failures are
// returned to the caller directly.
func WithModuleCache(cache ModuleCache) LoaderOption {
	return func(lg *LoaderGuard) { lg.cache = cache }
}

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(log *logger.Logger) LoaderOption {
	return func(lg *LoaderGuard) { lg.log = log.WithComponent("module-loader") }
}

// NewLoader creates a loader guard around the given load function.
func NewLoader(load LoadFunc, cfg config.GuardConfig, opts ...LoaderOption) *LoaderGuard {
	lg := &LoaderGuard{
		load:     load,
		cfg:      cfg,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(lg)
	}
	if lg.log == nil {
		lg.log = logger.GetGlobalLogger().WithComponent("module-loader")
	}
	return lg
}

// Load fetches the named module through its breaker, retrying per the
// configured policy. On failure it serves the cached copy when one
// exists; otherwise the caller gets a coded error.
func (lg *LoaderGuard) Load(ctx context.Context, name string) (any, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanModuleLoad)
	defer span.End()
	observability.SetSpanAttribute(ctx, "module", name)

	breaker := lg.breakerFor(name)

	pipeline := resilience.NewPipeline[any]().
		WithTimeout(lg.cfg.Timeout).
		WithCircuitBreaker(breaker).
		WithRetry(lg.cfg.Retry.ToRetryConfig())

	module, err := pipeline.Execute(ctx, func(ctx context.Context) (any, error) {
		return lg.load(ctx, name)
	})
	if err == nil {
		if lg.cache != nil {
			lg.cache.Put(ctx, name, module)
		}
		return module, nil
	}

	observability.SetSpanError(ctx, err)

	if lg.cache != nil {
		if cached, ok := lg.cache.Get(ctx, name); ok {
			lg.log.Warn("serving cached module after load failure", logger.Fields(
				"module", name,
				logger.FieldError, err.Error(),
			))
			return cached, nil
		}
	}

	lg.log.Error("module load failed", logger.ErrorFields("load", err))
	return nil, apperrors.FromResilience(err, name, lg.breakerResetTimeout())
}

// BreakerState returns the breaker state for one module name.
// A module that has never been loaded reports a closed circuit.
func (lg *LoaderGuard) BreakerState(name string) resilience.State {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if breaker, ok := lg.breakers[name]; ok {
		return breaker.State()
	}
	return resilience.StateClosed
}

// StatsAll returns breaker snapshots for every module seen so far.
func (lg *LoaderGuard) StatsAll() []resilience.CircuitBreakerStats {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	stats := make([]resilience.CircuitBreakerStats, 0, len(lg.breakers))
	for _, breaker := range lg.breakers {
		stats = append(stats, breaker.Stats())
	}
	return stats
}

func (lg *LoaderGuard) breakerFor(name string) *resilience.CircuitBreaker {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if breaker, ok := lg.breakers[name]; ok {
		return breaker
	}

	breakerCfg := lg.cfg.Breaker.ToBreakerConfig(name)
	log := lg.log
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		log.Info("module circuit state changed", logger.TransitionFields(name, from.String(), to.String()))
	}
	breaker := resilience.NewCircuitBreaker(breakerCfg)
	lg.breakers[name] = breaker
	return breaker
}

func (lg *LoaderGuard) breakerResetTimeout() time.Duration {
	return lg.cfg.Breaker.ToBreakerConfig("").ResetTimeout
}
