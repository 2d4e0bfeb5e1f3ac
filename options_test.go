package vitagl

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gogpu/vitagl/driver/drivertest"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	assert.Nil(t, o.driver)
	assert.Nil(t, o.memory)
	assert.Nil(t, o.logger)
	assert.Nil(t, o.policy)
	assert.Equal(t, DefaultConfig(), o.config)
	assert.Zero(t, o.width)
}

func TestOptionsApply(t *testing.T) {
	drv := drivertest.New()
	mem := drivertest.New()
	logger := slog.New(nopHandler{})
	cfg := testConfig()

	o := defaultOptions()
	for _, opt := range []ContextOption{
		WithDriver(drv),
		WithMemoryProvider(mem),
		WithConfig(cfg),
		WithLogger(logger),
		WithPoolPolicy(PoolPanic),
		WithSize(320, 240),
	} {
		opt(&o)
	}

	assert.Same(t, drv, o.driver)
	assert.Same(t, mem, o.memory)
	assert.Same(t, logger, o.logger)
	assert.Equal(t, cfg, o.config)
	if assert.NotNil(t, o.policy) {
		assert.Equal(t, PoolPanic, *o.policy)
	}
	assert.Equal(t, 320, o.width)
	assert.Equal(t, 240, o.height)
}

func TestWithPoolPolicyCopiesValue(t *testing.T) {
	p := PoolGrow
	opt := WithPoolPolicy(p)
	p = PoolPanic

	o := defaultOptions()
	opt(&o)
	assert.Equal(t, PoolGrow, *o.policy)
}
