// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vitagl

import (
	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/heap"
	"github.com/gogpu/vitagl/internal/linear"
	"github.com/gogpu/vitagl/internal/pool"
)

type displayBuffer struct {
	block   heap.Block
	surface driver.ColorSurface
}

// rect is a window rectangle with a bottom-left origin.
type rect struct{ x, y, w, h int }

type frameState struct {
	inScene bool

	buffers     []displayBuffer
	front, back int
	depthBlock  heap.Block
	depth       driver.DepthStencilSurface
	target      driver.RenderTarget
	vsync       bool

	// usedDefault is set once a scene of the current frame rendered into
	// the display surface.
	usedDefault bool
	started     bool
	lastFB      Framebuffer

	viewport  rect
	scissor   rect
	near, far float32
	// surfW and surfH are the extent of the surface of the open scene.
	surfW, surfH int

	frames uint64
}

// StartDrawing opens a scene on the bound framebuffer, or on the back
// display buffer when none is bound.
//
// A scene following one that rendered into a different surface waits for
// the previous scene's fragment work. Viewport, region clip, cull and depth
// state are re-applied because the driver resets them per scene.
func (c *Context) StartDrawing() error {
	const op = "StartDrawing"
	if c.closed {
		return c.fail(op, ErrClosed)
	}
	if c.frame.inScene {
		return c.failf(op, ErrInvalidOperation, "scene already in progress")
	}

	target := c.frame.target
	color := &c.frame.buffers[c.frame.back].surface
	depth := &c.frame.depth
	if c.boundFB != 0 {
		fb := c.framebuffers.Ptr(c.boundFB.handle())
		if fb == nil || !c.attachment(fb) {
			return c.failf(op, ErrInvalidOperation, "framebuffer %d is incomplete", c.boundFB)
		}
		target, color, depth = fb.target, &fb.color, &fb.depth
	}

	var flags driver.SceneFlags
	if c.frame.started && c.frame.lastFB != c.boundFB {
		flags |= driver.SceneVertexWaitForDependency
	}
	if err := c.drv.BeginScene(target, color, depth, flags); err != nil {
		return c.fail(op, err)
	}

	f := &c.frame
	f.inScene = true
	f.started = true
	f.lastFB = c.boundFB
	if c.boundFB == 0 {
		f.usedDefault = true
	}
	f.surfW, f.surfH = color.Width, color.Height

	c.applyViewport()
	c.applyRegionClip()
	c.drv.SetCullMode(c.state.cullMode())
	c.drv.SetDepthState(c.state.depthState())
	return nil
}

// StopDrawing closes the open scene and submits it without waiting for
// the GPU.
func (c *Context) StopDrawing() error {
	const op = "StopDrawing"
	if !c.frame.inScene {
		return c.failf(op, ErrInvalidOperation, "no scene in progress")
	}
	c.frame.inScene = false
	if err := c.drv.EndScene(); err != nil {
		return c.fail(op, err)
	}
	return nil
}

// SwapBuffers ends the frame. An open scene is stopped first. If any scene
// of the frame rendered into the display surface, the back buffer is
// queued for presentation and the ring advances. The transient pool is
// reset in every case.
func (c *Context) SwapBuffers() error {
	const op = "SwapBuffers"
	if c.closed {
		return c.fail(op, ErrClosed)
	}
	var err error
	if c.frame.inScene {
		err = c.StopDrawing()
	}

	f := &c.frame
	if f.usedDefault {
		if qerr := c.drv.QueueFlip(&f.buffers[f.back].surface, f.vsync); qerr != nil && err == nil {
			err = c.fail(op, qerr)
		}
		f.front = f.back
		f.back = (f.back + 1) % len(f.buffers)
		f.usedDefault = false
	}

	c.pool.Reset()
	if c.growPool {
		c.growTransientPool()
	}
	f.frames++
	return err
}

// growTransientPool doubles the pool. The old pool stays in place when
// the heap cannot satisfy the larger size.
func (c *Context) growTransientPool() {
	c.growPool = false
	size := c.pool.Cap() * 2
	b, err := c.heap.Alloc(size, poolAlign, heap.RAM)
	if err != nil {
		c.logger.Warn("vitagl: transient pool growth failed", "size", size, "err", err)
		return
	}
	c.freeBlock("pool", c.poolBlock)
	c.poolBlock = b
	c.pool = pool.New(b.Bytes(), b.Addr)
	c.logger.Info("vitagl: transient pool grown", "size", size, "type", b.Type)
}

// WaitIdle blocks until the GPU has finished every submitted scene.
func (c *Context) WaitIdle() error {
	if err := c.drv.Finish(); err != nil {
		return c.fail("WaitIdle", err)
	}
	return nil
}

// SetVSync selects whether presentation waits for vertical blank.
func (c *Context) SetVSync(on bool) { c.frame.vsync = on }

// Viewport sets the window rectangle mapped from normalized device
// coordinates. The origin is the bottom-left corner.
func (c *Context) Viewport(x, y, w, h int) error {
	if w < 0 || h < 0 {
		return c.failf("Viewport", ErrInvalidValue, "size %dx%d", w, h)
	}
	c.frame.viewport = rect{x, y, w, h}
	c.applyViewport()
	return nil
}

// DepthRange sets the window depth mapping. Both ends are clamped to [0, 1].
func (c *Context) DepthRange(near, far float32) {
	c.frame.near, c.frame.far = clamp01(near), clamp01(far)
	c.applyViewport()
}

// Scissor sets the scissor rectangle used while ScissorTest is enabled.
func (c *Context) Scissor(x, y, w, h int) error {
	if w < 0 || h < 0 {
		return c.failf("Scissor", ErrInvalidValue, "size %dx%d", w, h)
	}
	c.frame.scissor = rect{x, y, w, h}
	c.applyRegionClip()
	return nil
}

func (c *Context) applyViewport() {
	if !c.frame.inScene {
		return
	}
	c.drv.SetViewport(viewportTransform(c.frame.viewport, c.frame.surfH, c.frame.near, c.frame.far))
}

// viewportTransform converts a bottom-left origin viewport into the
// offset/scale form of a top-left origin surface.
func viewportTransform(v rect, surfH int, near, far float32) driver.Viewport {
	hw, hh := float32(v.w)/2, float32(v.h)/2
	return driver.Viewport{
		XOffset: float32(v.x) + hw,
		XScale:  hw,
		YOffset: float32(surfH-v.y) - hh,
		YScale:  -hh,
		ZOffset: (far + near) / 2,
		ZScale:  (far - near) / 2,
	}
}

// applyRegionClip pushes the scissor state to the driver.
func (c *Context) applyRegionClip() {
	if !c.frame.inScene {
		return
	}
	if !c.state.scissor {
		c.drv.SetRegionClip(driver.RegionClip{Mode: driver.ClipNone})
		return
	}
	c.drv.SetRegionClip(regionClip(c.frame.scissor, c.frame.surfW, c.frame.surfH))
}

// regionClip converts a scissor box into an inclusive top-left origin
// rectangle clamped to the surface. An empty box clips everything.
func regionClip(s rect, surfW, surfH int) driver.RegionClip {
	x0 := max(s.x, 0)
	x1 := min(s.x+s.w, surfW) - 1
	y0 := max(surfH-(s.y+s.h), 0)
	y1 := min(surfH-s.y, surfH) - 1
	if x1 < x0 || y1 < y0 {
		return driver.RegionClip{Mode: driver.ClipAll}
	}
	return driver.RegionClip{Mode: driver.ClipOutside, X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// ClearColor sets the color Clear fills the color buffer with.
func (c *Context) ClearColor(r, g, b, a float32) {
	c.state.clearColor = [4]float32{clamp01(r), clamp01(g), clamp01(b), clamp01(a)}
}

// Clear fills the buffers selected by mask by drawing a full-surface quad
// honoring the scissor box and color mask. Stencil is accepted and
// ignored.
func (c *Context) Clear(mask ClearMask) error {
	const op = "Clear"
	if mask&^(ColorBufferBit|DepthBufferBit|StencilBufferBit) != 0 {
		return c.failf(op, ErrInvalidValue, "clear mask %#x", uint8(mask))
	}
	if c.imm.active {
		return c.failf(op, ErrInvalidOperation, "inside Begin/End")
	}
	if !c.frame.inScene {
		return c.failf(op, ErrInvalidOperation, "no scene in progress")
	}
	if mask&(ColorBufferBit|DepthBufferBit) == 0 {
		return nil
	}

	flat := c.fixed.variants[variantFlat]
	fp := c.fixed.clearColor
	if mask&ColorBufferBit == 0 {
		fp = c.fixed.clearDepth
	}
	pos, err := c.floats(4 * 3)
	if err != nil {
		c.skip(op, "pool exhausted")
		return c.fail(op, err)
	}
	for i, v := range [12]float32{-1, -1, 1, 1, -1, 1, 1, 1, 1, -1, 1, 1} {
		pos.Set(i, v)
	}
	dc := &drawCall{
		prim:    driver.PrimTriangles,
		vp:      flat.vp,
		fp:      fp,
		streams: [][]byte{streamPosition: pos.Bytes()},
		uniforms: func(w *uniformWriter) error {
			id := linear.Identity()
			return c.writeClearUniforms(w, flat, &id)
		},
	}
	if dc.indices, dc.format, dc.count, err = c.sequentialIndices(4, true); err != nil {
		c.skip(op, "pool exhausted")
		return c.fail(op, err)
	}

	full := rect{0, 0, c.frame.surfW, c.frame.surfH}
	c.drv.SetViewport(viewportTransform(full, c.frame.surfH, 0, 1))
	c.drv.SetCullMode(driver.CullNone)
	c.drv.SetDepthState(driver.DepthState{Func: driver.DepthAlways, Write: mask&DepthBufferBit != 0})
	err = c.submit(op, dc)
	c.applyViewport()
	c.drv.SetCullMode(c.state.cullMode())
	c.drv.SetDepthState(c.state.depthState())
	return err
}

// writeClearUniforms sets the flat program to emit the clear color with
// every per-fragment test disabled.
func (c *Context) writeClearUniforms(w *uniformWriter, p *fixedProgram, wvp *linear.Mat4) error {
	for _, wr := range []struct {
		name string
		data []float32
	}{
		{"wvp", wvp[:]},
		{"tint", c.state.clearColor[:]},
		{"alpha_op", []float32{float32(Always)}},
		{"fog_mode", []float32{0}},
		{"clip_enabled", []float32{0}},
	} {
		if err := w.set(p.params[wr.name], 0, wr.data); err != nil {
			return err
		}
	}
	return nil
}
