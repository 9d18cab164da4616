package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillsenselab/faultkit/component"
	"github.com/skillsenselab/faultkit/config"
	"github.com/skillsenselab/faultkit/guard"
	"github.com/skillsenselab/faultkit/logger"
)

// App represents an application with uniform lifecycle management.
// The type parameter C is the config type, which must satisfy the Config
// interface; any struct embedding config.BaseConfig gets most of the way
// there.
//
//	app, err := bootstrap.NewApp(&myConfig)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*MyConfig]) error {
//	    g, err := a.Guards.Get("backend")
//	    ...
//	})
//	app.Run(context.Background())
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Guards     *guard.Registry
	Logger     *logger.Logger

	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App[C]) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp creates a new application instance from a typed config.
// It applies defaults, validates the config, and initializes the logger
// and registries.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetBaseConfig()
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	guardDefaults := config.GuardConfig{}
	if o.guardDefaults != nil {
		guardDefaults = *o.guardDefaults
	}

	app.Components = component.NewRegistry(app.Logger)
	app.Guards = guard.NewRegistry(guardDefaults,
		guard.WithRegistryLogger(app.Logger),
		guard.WithGuardOptions(guard.WithLogger(app.Logger)),
	)
	return app, nil
}

// RegisterComponent adds a component to the application's registry.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure registers a callback to run after infrastructure has
// started. Use this to set up guards and business-layer wiring.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck verifies that all registered components are healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	results := a.Components.HealthAll(ctx)
	var unhealthy []string
	for _, h := range results {
		if h.Status == component.StatusUnhealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Startup runs the startup sequence: start components, OnStart hooks,
// configure callbacks, ready check, then OnReady hooks.
func (a *App[C]) Startup(ctx context.Context) error {
	a.Logger.Info("starting application", logger.Fields(
		"name", a.Name,
		"version", a.Version,
	))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("starting components: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return err
	}
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
	}
	if err := a.ReadyCheck(ctx); err != nil {
		return err
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return err
	}

	a.Logger.Info("application ready")
	return nil
}

// Shutdown runs OnStop hooks, stops components in reverse order, and
// closes the guard registry, all within the graceful timeout.
func (a *App[C]) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.gracefulTimeout)
	defer cancel()

	var firstErr error
	if err := runHooks(shutdownCtx, a.onStop); err != nil {
		firstErr = err
	}
	if err := a.Components.StopAll(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	a.Guards.Close()

	if firstErr != nil {
		a.Logger.Error("shutdown finished with errors", logger.Fields("error", firstErr.Error()))
		return firstErr
	}
	a.Logger.Info("application stopped")
	return nil
}

// Run executes the full lifecycle for long-running services: Startup,
// block until SIGINT/SIGTERM or context cancellation, then Shutdown.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.Startup(ctx); err != nil {
		// Best-effort cleanup of whatever did start.
		a.Shutdown(context.Background())
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("signal received", logger.Fields("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.Info("context cancelled")
	}

	return a.Shutdown(context.Background())
}
