package bootstrap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/skillsenselab/faultkit/component"
	"github.com/skillsenselab/faultkit/config"
	"github.com/skillsenselab/faultkit/logger"
)

type appConfig struct {
	config.BaseConfig `yaml:",inline" mapstructure:",squash"`
}

func (c *appConfig) GetBaseConfig() *config.BaseConfig { return &c.BaseConfig }

func validConfig() *appConfig {
	return &appConfig{BaseConfig: config.BaseConfig{Name: "test-app", Version: "1.0.0"}}
}

type lifecycleComponent struct {
	name    string
	started bool
	stopped bool
	status  component.HealthStatus
}

func (c *lifecycleComponent) Name() string { return c.name }

func (c *lifecycleComponent) Start(ctx context.Context) error {
	c.started = true
	return nil
}

func (c *lifecycleComponent) Stop(ctx context.Context) error {
	c.stopped = true
	return nil
}

func (c *lifecycleComponent) Health(ctx context.Context) component.Health {
	status := c.status
	if status == "" {
		status = component.StatusHealthy
	}
	return component.Health{Name: c.name, Status: status}
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(validConfig(), WithLogger(logger.NewDefault("test")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.Name != "test-app" {
		t.Errorf("expected name 'test-app', got %s", app.Name)
	}
	if app.Components == nil || app.Guards == nil {
		t.Fatal("expected registries to be initialized")
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := &appConfig{}
	if _, err := NewApp(cfg, WithLogger(logger.NewDefault("test"))); err == nil {
		t.Error("expected validation error for empty name")
	}
}

func TestApp_StartupAndShutdown(t *testing.T) {
	app, _ := NewApp(validConfig(), WithLogger(logger.NewDefault("test")))

	comp := &lifecycleComponent{name: "worker"}
	if err := app.RegisterComponent(comp); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}

	var order []string
	app.OnStart(func(ctx context.Context) error {
		order = append(order, "start")
		return nil
	})
	app.OnConfigure(func(ctx context.Context, a *App[*appConfig]) error {
		order = append(order, "configure")
		_, err := a.Guards.Get("backend")
		return err
	})
	app.OnReady(func(ctx context.Context) error {
		order = append(order, "ready")
		return nil
	})
	app.OnStop(func(ctx context.Context) error {
		order = append(order, "stop")
		return nil
	})

	if err := app.Startup(context.Background()); err != nil {
		t.Fatalf("unexpected startup error: %v", err)
	}
	if !comp.started {
		t.Error("expected component started")
	}

	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if !comp.stopped {
		t.Error("expected component stopped")
	}

	want := []string{"start", "configure", "ready", "stop"}
	if len(order) != len(want) {
		t.Fatalf("expected hook order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected hook order %v, got %v", want, order)
		}
	}

	if _, err := app.Guards.Get("backend"); err == nil {
		t.Error("expected guard registry closed after shutdown")
	}
}

func TestApp_StartupFailsOnUnhealthyComponent(t *testing.T) {
	app, _ := NewApp(validConfig(), WithLogger(logger.NewDefault("test")))
	app.RegisterComponent(&lifecycleComponent{name: "broken", status: component.StatusUnhealthy})

	if err := app.Startup(context.Background()); err == nil {
		t.Error("expected startup to fail ready check")
	}
}

func TestApp_StartupHookFailure(t *testing.T) {
	app, _ := NewApp(validConfig(), WithLogger(logger.NewDefault("test")))
	app.OnStart(func(ctx context.Context) error {
		return fmt.Errorf("hook boom")
	})

	if err := app.Startup(context.Background()); err == nil {
		t.Error("expected startup error from failing hook")
	}
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	app, _ := NewApp(validConfig(),
		WithLogger(logger.NewDefault("test")),
		WithGracefulTimeout(time.Second),
	)
	comp := &lifecycleComponent{name: "worker"}
	app.RegisterComponent(comp)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	if !comp.stopped {
		t.Error("expected component stopped after Run returns")
	}
}

func TestApp_GuardDefaults(t *testing.T) {
	defaults := config.GuardConfig{Timeout: 123 * time.Millisecond}
	app, _ := NewApp(validConfig(),
		WithLogger(logger.NewDefault("test")),
		WithGuardDefaults(defaults),
	)

	g, err := app.Guards.Get("backend")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Name() != "backend" {
		t.Errorf("expected guard 'backend', got %s", g.Name())
	}
}
