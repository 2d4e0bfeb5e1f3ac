package vitagl

import (
	"log/slog"

	"github.com/gogpu/vitagl/driver"
)

// ContextOption configures a Context during creation.
//
// Example:
//
//	drv := drivertest.New()
//	ctx, err := vitagl.NewContext(
//	    vitagl.WithDriver(drv),
//	    vitagl.WithSize(640, 480),
//	    vitagl.WithPoolPolicy(vitagl.PoolGrow),
//	)
type ContextOption func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	driver driver.Driver
	memory driver.MemoryProvider
	config Config
	logger *slog.Logger
	policy *PoolPolicy
	width  int
	height int
}

// defaultOptions returns the default context options.
func defaultOptions() contextOptions {
	return contextOptions{
		config: DefaultConfig(),
	}
}

// WithDriver sets the GPU driver the context submits to. It is required.
func WithDriver(d driver.Driver) ContextOption {
	return func(o *contextOptions) {
		o.driver = d
	}
}

// WithConfig replaces the default sizing configuration.
func WithConfig(c Config) ContextOption {
	return func(o *contextOptions) {
		o.config = c
	}
}

// WithLogger sets the logger of this context. Without it the context uses
// the package logger returned by [Logger] at creation time.
func WithLogger(l *slog.Logger) ContextOption {
	return func(o *contextOptions) {
		o.logger = l
	}
}

// WithMemoryProvider sets the provider the heap reserves its arenas from.
// By default the driver is used when it implements driver.MemoryProvider,
// and Go-allocated host memory otherwise.
func WithMemoryProvider(p driver.MemoryProvider) ContextOption {
	return func(o *contextOptions) {
		o.memory = p
	}
}

// WithPoolPolicy overrides the configured transient pool policy.
func WithPoolPolicy(p PoolPolicy) ContextOption {
	return func(o *contextOptions) {
		o.policy = &p
	}
}

// WithSize overrides the configured display surface size.
func WithSize(width, height int) ContextOption {
	return func(o *contextOptions) {
		o.width, o.height = width, height
	}
}
