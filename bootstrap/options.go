package bootstrap

import (
	"time"

	"github.com/skillsenselab/faultkit/config"
	"github.com/skillsenselab/faultkit/logger"
)

// Option configures the App during creation. Options are non-generic so
// they can be used with any config type.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	guardDefaults   *config.GuardConfig
	gracefulTimeout *time.Duration
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGuardDefaults sets the default policy for guards created through
// the application's guard registry.
func WithGuardDefaults(cfg config.GuardConfig) Option {
	return func(o *appOptions) {
		o.guardDefaults = &cfg
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}
