package vitagl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vitagl/driver"
)

func TestStartStopDrawing(t *testing.T) {
	c, drv := newTestContext(t)

	assert.ErrorIs(t, c.StopDrawing(), ErrInvalidOperation)
	require.NoError(t, c.StartDrawing())
	assert.ErrorIs(t, c.StartDrawing(), ErrInvalidOperation)
	require.NoError(t, c.StopDrawing())

	require.Len(t, drv.Scenes, 1)
	s := drv.Scenes[0]
	assert.True(t, s.Ended)
	assert.Zero(t, s.Flags)
	assert.Equal(t, 64, s.Color.Width)
	assert.Equal(t, 32, s.Color.Height)
	assert.Equal(t, 64, s.Depth.Width)
}

func TestSwapBuffersRing(t *testing.T) {
	c, drv := newTestContext(t)

	for range 3 {
		require.NoError(t, c.StartDrawing())
		require.NoError(t, c.SwapBuffers())
	}
	require.Len(t, drv.Flips, 3)
	assert.NotSame(t, drv.Flips[0], drv.Flips[1])
	assert.Same(t, drv.Flips[0], drv.Flips[2])
	for _, s := range drv.Scenes {
		assert.True(t, s.Ended, "SwapBuffers stops the open scene")
	}
	assert.Equal(t, uint64(3), c.Stats().Frames)
}

func TestSwapBuffersWithoutDisplayScene(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.SwapBuffers())
	assert.Empty(t, drv.Flips)

	// A frame drawn only into a framebuffer is not presented.
	fb, _ := attachTestFramebuffer(t, c, 16, 16)
	require.NoError(t, c.BindFramebuffer(fb))
	require.NoError(t, c.StartDrawing())
	require.NoError(t, c.SwapBuffers())
	assert.Empty(t, drv.Flips)
}

func TestSwapBuffersResetsPool(t *testing.T) {
	c, _ := newTestContext(t)
	require.NoError(t, c.StartDrawing())
	drawTriangle(t, c)
	assert.Positive(t, c.Stats().PoolUsed)

	require.NoError(t, c.SwapBuffers())
	assert.Zero(t, c.Stats().PoolUsed)
}

func TestSceneDependencyFlag(t *testing.T) {
	c, drv := newTestContext(t)
	fb, _ := attachTestFramebuffer(t, c, 16, 16)

	require.NoError(t, c.BindFramebuffer(fb))
	require.NoError(t, c.StartDrawing())
	require.NoError(t, c.StopDrawing())
	require.NoError(t, c.StartDrawing())
	require.NoError(t, c.StopDrawing())
	require.NoError(t, c.BindFramebuffer(0))
	require.NoError(t, c.StartDrawing())
	require.NoError(t, c.StopDrawing())

	require.Len(t, drv.Scenes, 3)
	assert.Zero(t, drv.Scenes[0].Flags)
	assert.Zero(t, drv.Scenes[1].Flags, "same surface as the previous scene")
	assert.Equal(t, driver.SceneVertexWaitForDependency, drv.Scenes[2].Flags)
	assert.Equal(t, 16, drv.Scenes[0].Color.Width)
}

func TestViewportTransform(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.StartDrawing())

	require.NoError(t, c.Viewport(0, 0, 64, 32))
	assert.Equal(t, driver.Viewport{
		XOffset: 32, XScale: 32,
		YOffset: 16, YScale: -16,
		ZOffset: 0.5, ZScale: 0.5,
	}, drv.Viewport)

	require.NoError(t, c.Viewport(0, 8, 32, 16))
	assert.Equal(t, float32(16), drv.Viewport.XOffset)
	assert.Equal(t, float32(16), drv.Viewport.YOffset)

	c.DepthRange(-1, 2)
	assert.Equal(t, float32(0.5), drv.Viewport.ZOffset)

	assert.ErrorIs(t, c.Viewport(0, 0, -1, 4), ErrInvalidValue)
}

func TestViewportAppliedAtSceneStart(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.Viewport(10, 0, 20, 32))
	assert.Zero(t, drv.Count("SetViewport"))

	require.NoError(t, c.StartDrawing())
	assert.Equal(t, float32(20), drv.Viewport.XOffset)
	assert.Equal(t, driver.ClipNone, drv.Clip.Mode)
}

func TestRegionClip(t *testing.T) {
	tests := []struct {
		name string
		box  rect
		want driver.RegionClip
	}{
		{"full", rect{0, 0, 64, 32}, driver.RegionClip{Mode: driver.ClipOutside, X0: 0, Y0: 0, X1: 63, Y1: 31}},
		{"inner", rect{8, 4, 16, 8}, driver.RegionClip{Mode: driver.ClipOutside, X0: 8, Y0: 20, X1: 23, Y1: 27}},
		{"clamped", rect{-10, -10, 100, 100}, driver.RegionClip{Mode: driver.ClipOutside, X0: 0, Y0: 0, X1: 63, Y1: 31}},
		{"empty", rect{0, 0, 0, 0}, driver.RegionClip{Mode: driver.ClipAll}},
		{"outside", rect{80, 0, 8, 8}, driver.RegionClip{Mode: driver.ClipAll}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, regionClip(tt.box, 64, 32))
		})
	}
}

func TestScissorTest(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.Scissor(8, 4, 16, 8))
	require.NoError(t, c.Enable(ScissorTest))
	require.NoError(t, c.StartDrawing())
	assert.Equal(t, driver.ClipOutside, drv.Clip.Mode)

	drawTriangle(t, c)
	assert.Equal(t, 8, drv.LastDraw().Clip.X0)

	require.NoError(t, c.Disable(ScissorTest))
	assert.Equal(t, driver.ClipNone, drv.Clip.Mode)
	assert.ErrorIs(t, c.Scissor(0, 0, 4, -4), ErrInvalidValue)
}

func TestClear(t *testing.T) {
	c, drv := newTestContext(t)
	assert.ErrorIs(t, c.Clear(ColorBufferBit), ErrInvalidOperation)

	require.NoError(t, c.StartDrawing())
	require.NoError(t, c.Viewport(0, 0, 16, 16))
	c.ClearColor(1, 0.5, 0, 2)
	require.NoError(t, c.Clear(ColorBufferBit|DepthBufferBit))

	d := drv.LastDraw()
	require.NotNil(t, d)
	assert.Equal(t, []uint16{0, 1, 3, 1, 2, 3}, d.Indices16())
	assert.Equal(t, driver.DepthState{Func: driver.DepthAlways, Write: true}, d.Depth)
	assert.Equal(t, driver.CullNone, d.Cull)
	assert.Contains(t, d.FragmentUniforms, float32(0.5))
	assert.NotContains(t, d.FragmentUniforms, float32(2), "clear color is clamped")

	// The caller's viewport is restored afterwards.
	assert.Equal(t, float32(8), drv.Viewport.XOffset)
}

func TestClearDepthOnly(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.StartDrawing())
	require.NoError(t, c.Clear(DepthBufferBit))

	d := drv.LastDraw()
	require.NotNil(t, d)
	require.NotNil(t, d.Fragment.Blend)
	assert.Equal(t, driver.ColorMaskNone, d.Fragment.Blend.ColorMask)
	assert.True(t, d.Depth.Write)
}

func TestClearMasks(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.StartDrawing())

	require.NoError(t, c.Clear(StencilBufferBit))
	assert.Zero(t, drv.Count("Draw"), "stencil clears are ignored")
	assert.ErrorIs(t, c.Clear(ClearMask(0x80)), ErrInvalidValue)

	require.NoError(t, c.Begin(Triangles))
	assert.ErrorIs(t, c.Clear(ColorBufferBit), ErrInvalidOperation)
}

func TestWaitIdle(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.WaitIdle())
	assert.Equal(t, 1, drv.FinishCalls)
}
