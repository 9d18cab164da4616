package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skillsenselab/faultkit/resilience"
)

type testConfig struct {
	BaseConfig `yaml:",inline" mapstructure:",squash"`
	Guard      GuardConfig `yaml:"guard" mapstructure:"guard"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yml", `
name: checkout
environment: production
guard:
  timeout: 2s
  retry:
    max_attempts: 5
    initial_backoff: 200ms
  breaker:
    failure_threshold: 3
    reset_timeout: 10s
  bulkhead:
    max_concurrent: 4
`)

	var cfg testConfig
	if err := Load("checkout", &cfg, WithConfigFile(cfgFile)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Name != "checkout" {
		t.Errorf("expected name 'checkout', got %s", cfg.Name)
	}
	if cfg.Guard.Timeout != 2*time.Second {
		t.Errorf("expected 2s timeout, got %s", cfg.Guard.Timeout)
	}
	if cfg.Guard.Retry.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Guard.Retry.MaxAttempts)
	}
	if cfg.Guard.Breaker.FailureThreshold != 3 {
		t.Errorf("expected threshold 3, got %d", cfg.Guard.Breaker.FailureThreshold)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yml", `
name: checkout
guard:
  retry:
    max_attempts: 3
`)
	t.Setenv("GUARD_RETRY_MAX_ATTEMPTS", "7")

	var cfg testConfig
	if err := Load("checkout", &cfg, WithConfigFile(cfgFile)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Guard.Retry.MaxAttempts != 7 {
		t.Errorf("expected env override 7, got %d", cfg.Guard.Retry.MaxAttempts)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yml", `
name: checkout
guard:
  retry:
    backoff_factor: -1
`)

	var cfg testConfig
	if err := Load("checkout", &cfg, WithConfigFile(cfgFile)); err == nil {
		t.Error("expected validation error for negative backoff factor")
	}
}

func TestBaseConfig_ApplyDefaults(t *testing.T) {
	cfg := BaseConfig{Name: "svc"}
	cfg.ApplyDefaults()

	if cfg.Environment != "development" {
		t.Errorf("expected development environment, got %s", cfg.Environment)
	}
	if !cfg.Debug {
		t.Error("expected debug enabled in development")
	}
	if cfg.Logging.ServiceName != "svc" {
		t.Errorf("expected logging service name propagated, got %s", cfg.Logging.ServiceName)
	}
}

func TestBaseConfig_ValidateRequiresName(t *testing.T) {
	cfg := BaseConfig{}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestRetrySection_ToRetryConfig(t *testing.T) {
	s := RetrySection{MaxAttempts: 5, InitialBackoff: 100 * time.Millisecond}
	cfg := s.ToRetryConfig()

	if cfg.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %s", cfg.InitialBackoff)
	}
	// Unset fields keep the package defaults.
	if cfg.MaxBackoff != 30*time.Second {
		t.Errorf("expected default max backoff, got %s", cfg.MaxBackoff)
	}
	if cfg.Jitter != 0.25 {
		t.Errorf("expected default jitter, got %f", cfg.Jitter)
	}
}

func TestBreakerSection_ToBreakerConfig(t *testing.T) {
	s := BreakerSection{FailureThreshold: 2, ResetTimeout: 5 * time.Second}
	cfg := s.ToBreakerConfig("payments")

	if cfg.Name != "payments" {
		t.Errorf("expected name 'payments', got %s", cfg.Name)
	}
	if cfg.FailureThreshold != 2 {
		t.Errorf("expected threshold 2, got %d", cfg.FailureThreshold)
	}
	if cfg.SuccessThreshold != 2 {
		t.Errorf("expected default success threshold, got %d", cfg.SuccessThreshold)
	}
}

func TestBulkheadSection_ToBulkheadConfig(t *testing.T) {
	s := BulkheadSection{MaxConcurrent: 4}
	cfg := s.ToBulkheadConfig("payments")

	if cfg.MaxConcurrent != 4 {
		t.Errorf("expected 4, got %d", cfg.MaxConcurrent)
	}
	if cfg.MaxQueueDepth != 100 {
		t.Errorf("expected default queue depth 100, got %d", cfg.MaxQueueDepth)
	}

	zero := 0
	s = BulkheadSection{MaxConcurrent: 4, MaxQueueDepth: &zero}
	if got := s.ToBulkheadConfig("payments").MaxQueueDepth; got != 0 {
		t.Errorf("explicit zero queue depth must stick, got %d", got)
	}

	if _, err := resilience.NewBulkhead(cfg); err != nil {
		t.Errorf("converted config should build a bulkhead: %v", err)
	}
}
