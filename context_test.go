package vitagl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/driver/drivertest"
	"github.com/gogpu/vitagl/internal/heap"
)

// testConfig is a small configuration that keeps test arenas cheap.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.VRAMSize = 1 << 20
	cfg.RAMSize = 1 << 20
	cfg.PhycontSize = 0
	cfg.PoolSize = 64 << 10
	return cfg
}

// newTestContext creates a 64x32 context on a recording driver. Options
// passed by the test are applied after the defaults.
func newTestContext(t *testing.T, opts ...ContextOption) (*Context, *drivertest.Driver) {
	t.Helper()
	drv := drivertest.New()
	all := append([]ContextOption{WithDriver(drv), WithConfig(testConfig()), WithSize(64, 32)}, opts...)
	c, err := NewContext(all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, drv
}

func floatBytes(vs ...float32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func shortBytes(vs ...uint16) []byte {
	out := make([]byte, len(vs)*2)
	for i, v := range vs {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

func TestNewContextRequiresDriver(t *testing.T) {
	_, err := NewContext()
	assert.ErrorIs(t, err, ErrNoDriver)
}

func TestNewContextInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.PoolSize = 0
	_, err := NewContext(WithDriver(drivertest.New()), WithConfig(cfg))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewContextOptions(t *testing.T) {
	c, drv := newTestContext(t, WithPoolPolicy(PoolGrow), WithSize(128, 64))

	cfg := c.Config()
	assert.Equal(t, 128, cfg.DisplayWidth)
	assert.Equal(t, 64, cfg.DisplayHeight)
	assert.Equal(t, PoolGrow, cfg.PoolPolicy)
	assert.Same(t, drv, c.Driver())

	// Two display buffers and the depth buffer come out of VRAM.
	assert.Less(t, c.MemoryFree(MemVRAM), cfg.VRAMSize)
	assert.Equal(t, 1, drv.LiveTargets())
	assert.Equal(t, 2*int(numVariants), drv.Registered())
	// The phycont arena is disabled.
	assert.Equal(t, 2, drv.Count("Reserve"))
}

func TestNewContextMemoryProvider(t *testing.T) {
	mem := drivertest.New()
	drv := drivertest.New()
	c, err := NewContext(WithDriver(drv), WithConfig(testConfig()), WithSize(64, 32), WithMemoryProvider(mem))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 2, mem.Count("Reserve"))
	assert.Zero(t, drv.Count("Reserve"))
}

func TestContextClose(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.StartDrawing())

	require.NoError(t, c.Close())
	assert.True(t, drv.Scenes[0].Ended)
	assert.Equal(t, 1, drv.FinishCalls)
	assert.Zero(t, drv.LiveTargets())
	assert.Zero(t, drv.Registered())
	assert.Zero(t, drv.LiveFragmentPrograms())

	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.StartDrawing(), ErrClosed)
	assert.ErrorIs(t, c.SwapBuffers(), ErrClosed)
}

func TestContextCloseReleasesObjects(t *testing.T) {
	c, drv := newTestContext(t)
	p := linkTestProgram(t, c)
	require.NoError(t, c.UseProgram(p))

	fbs, err := c.GenFramebuffers(1)
	require.NoError(t, err)
	tex := uploadTestTexture(t, c, 16, 16)
	require.NoError(t, c.BindFramebuffer(fbs[0]))
	require.NoError(t, c.FramebufferTexture2D(tex))
	assert.Equal(t, 2, drv.LiveTargets())

	require.NoError(t, c.Close())
	assert.Zero(t, drv.LiveTargets())
	assert.Zero(t, drv.Registered())
	assert.Zero(t, drv.LiveFragmentPrograms())
}

func TestGetErrorSticky(t *testing.T) {
	c, _ := newTestContext(t)
	assert.Equal(t, NoError, c.GetError())

	err := c.MatrixMode(MatrixMode(9))
	assert.ErrorIs(t, err, ErrInvalidEnum)
	assert.Contains(t, err.Error(), "MatrixMode")
	assert.Equal(t, InvalidEnum, c.GetError())
	assert.Equal(t, NoError, c.GetError())
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{nil, NoError},
		{ErrInvalidEnum, InvalidEnum},
		{ErrInvalidValue, InvalidValue},
		{ErrInvalidOperation, InvalidOperation},
		{ErrStackOverflow, StackOverflow},
		{ErrStackUnderflow, StackUnderflow},
		{ErrOutOfMemory, OutOfMemory},
		{outOfMemory("pool", ErrInvalidValue), OutOfMemory},
		{fmt.Errorf("%w: %w", ErrInvalidEnum, heap.ErrExhausted), OutOfMemory},
		{driver.ErrNoScene, InvalidOperation},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Code(tt.err), "Code(%v)", tt.err)
	}
	assert.Equal(t, "stack overflow", StackOverflow.String())
	assert.Equal(t, "ErrorCode(42)", ErrorCode(42).String())
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, _ := newTestContext(t, WithLogger(l))

	assert.Contains(t, buf.String(), "vitagl: context created")
	_ = c.PopMatrix()
	assert.Contains(t, buf.String(), "op=PopMatrix")
}

func TestStats(t *testing.T) {
	c, _ := newTestContext(t)
	require.NoError(t, c.StartDrawing())
	drawTriangle(t, c)
	require.NoError(t, c.SwapBuffers())

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Draws)
	assert.Equal(t, uint64(1), s.Frames)
	assert.Zero(t, s.PoolUsed)
	assert.Positive(t, s.PoolPeak)
	assert.Equal(t, testConfig().PoolSize, s.PoolCap)
	assert.NotEmpty(t, s.Memory)
	assert.True(t, strings.HasPrefix(s.String(), "Draws: 1 (skipped 0)"))
}

// drawTriangle draws one immediate-mode triangle.
func drawTriangle(t *testing.T, c *Context) {
	t.Helper()
	require.NoError(t, c.Begin(Triangles))
	require.NoError(t, c.Vertex2f(0, 0))
	require.NoError(t, c.Vertex2f(1, 0))
	require.NoError(t, c.Vertex2f(0, 1))
	require.NoError(t, c.End())
}
