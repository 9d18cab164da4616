package config

import (
	"time"

	"github.com/skillsenselab/faultkit/resilience"
)

// RetrySection configures a retry policy from YAML/env.
type RetrySection struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts" validate:"omitempty,min=1"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor" mapstructure:"backoff_factor" validate:"omitempty,gt=0"`
	Jitter         float64       `yaml:"jitter" mapstructure:"jitter" validate:"omitempty,min=0,max=1"`
}

// ToRetryConfig converts the section into a resilience.RetryConfig,
// leaving package defaults in place for unset fields.
func (s RetrySection) ToRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if s.MaxAttempts > 0 {
		cfg.MaxAttempts = s.MaxAttempts
	}
	if s.InitialBackoff > 0 {
		cfg.InitialBackoff = s.InitialBackoff
	}
	if s.MaxBackoff > 0 {
		cfg.MaxBackoff = s.MaxBackoff
	}
	if s.BackoffFactor > 0 {
		cfg.BackoffFactor = s.BackoffFactor
	}
	if s.Jitter > 0 {
		cfg.Jitter = s.Jitter
	}
	return cfg
}

// BreakerSection configures a circuit breaker from YAML/env.
type BreakerSection struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"omitempty,min=1"`
	SuccessThreshold int           `yaml:"success_threshold" mapstructure:"success_threshold" validate:"omitempty,min=1"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
	FailureWindow    time.Duration `yaml:"failure_window" mapstructure:"failure_window"`
}

// ToBreakerConfig converts the section into a resilience.CircuitBreakerConfig.
func (s BreakerSection) ToBreakerConfig(name string) resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig(name)
	if s.FailureThreshold > 0 {
		cfg.FailureThreshold = s.FailureThreshold
	}
	if s.SuccessThreshold > 0 {
		cfg.SuccessThreshold = s.SuccessThreshold
	}
	if s.ResetTimeout > 0 {
		cfg.ResetTimeout = s.ResetTimeout
	}
	if s.FailureWindow > 0 {
		cfg.FailureWindow = s.FailureWindow
	}
	return cfg
}

// BulkheadSection configures a bulkhead from YAML/env.
// MaxQueueDepth is a pointer so an explicit 0 (no queueing) can be told
// apart from an absent value (package default).
type BulkheadSection struct {
	MaxConcurrent int  `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"omitempty,min=1"`
	MaxQueueDepth *int `yaml:"max_queue_depth" mapstructure:"max_queue_depth" validate:"omitempty,min=0"`
}

// ToBulkheadConfig converts the section into a resilience.BulkheadConfig.
func (s BulkheadSection) ToBulkheadConfig(name string) resilience.BulkheadConfig {
	cfg := resilience.DefaultBulkheadConfig(name)
	if s.MaxConcurrent > 0 {
		cfg.MaxConcurrent = s.MaxConcurrent
	}
	if s.MaxQueueDepth != nil {
		cfg.MaxQueueDepth = *s.MaxQueueDepth
	}
	return cfg
}

// GuardConfig is the full per-dependency guard section.
type GuardConfig struct {
	Timeout       time.Duration   `yaml:"timeout" mapstructure:"timeout"`
	Retry         RetrySection    `yaml:"retry" mapstructure:"retry"`
	Breaker       BreakerSection  `yaml:"breaker" mapstructure:"breaker"`
	Bulkhead      BulkheadSection `yaml:"bulkhead" mapstructure:"bulkhead"`
	ProbeInterval time.Duration   `yaml:"probe_interval" mapstructure:"probe_interval"`
	RateLimit     float64         `yaml:"rate_limit" mapstructure:"rate_limit" validate:"omitempty,gt=0"`
	RateBurst     int             `yaml:"rate_burst" mapstructure:"rate_burst" validate:"omitempty,min=1"`
}
