package vitagl

import (
	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/heap"
	"github.com/gogpu/vitagl/internal/pixel"
	"github.com/gogpu/vitagl/internal/slot"
)

// Framebuffer names a framebuffer object. Zero is the default display
// surface.
type Framebuffer uint32

func (f Framebuffer) handle() slot.Handle { return slot.Handle(f) }

// framebuffer renders into a texture. target is nil until a texture is
// attached.
type framebuffer struct {
	tex    Texture
	target driver.RenderTarget
	color  driver.ColorSurface

	depthBlock heap.Block
	depth      driver.DepthStencilSurface
}

// GenFramebuffers creates n framebuffer names with no attachment.
func (c *Context) GenFramebuffers(n int) ([]Framebuffer, error) {
	if n < 0 {
		return nil, c.failf("GenFramebuffers", ErrInvalidValue, "n = %d", n)
	}
	out := make([]Framebuffer, 0, n)
	for range n {
		h, ok := c.framebuffers.Insert(framebuffer{})
		if !ok {
			return out, c.failf("GenFramebuffers", ErrInvalidOperation, "framebuffer table full (%d)", c.framebuffers.Cap())
		}
		out = append(out, Framebuffer(h))
	}
	return out, nil
}

// IsFramebuffer reports whether fb names a live framebuffer.
func (c *Context) IsFramebuffer(fb Framebuffer) bool {
	return fb != 0 && c.framebuffers.Ptr(fb.handle()) != nil
}

// BindFramebuffer selects the surface the next StartDrawing renders into.
func (c *Context) BindFramebuffer(fb Framebuffer) error {
	if fb != 0 && c.framebuffers.Ptr(fb.handle()) == nil {
		return c.failf("BindFramebuffer", ErrInvalidOperation, "unknown framebuffer %d", fb)
	}
	c.boundFB = fb
	return nil
}

// FramebufferTexture2D attaches tex as the color buffer of the bound
// framebuffer. It allocates depth memory of the same size and creates
// the render target.
func (c *Context) FramebufferTexture2D(tex Texture) error {
	const op = "FramebufferTexture2D"
	if c.boundFB == 0 {
		return c.failf(op, ErrInvalidOperation, "no framebuffer bound")
	}
	fb := c.framebuffers.Ptr(c.boundFB.handle())
	if fb == nil {
		return c.failf(op, ErrInvalidOperation, "stale framebuffer %d", c.boundFB)
	}
	t := c.textures.Ptr(tex.handle())
	if tex == 0 || t == nil || !t.valid {
		return c.failf(op, ErrInvalidOperation, "texture %d has no storage", tex)
	}
	if t.desc.Format != driver.FormatRGBA8 {
		return c.failf(op, ErrInvalidOperation, "texture format %v is not renderable", t.desc.Format)
	}

	w, h := t.desc.Width, t.desc.Height
	db, err := c.heap.Alloc(pixel.Pitch(w)*h*4, surfaceAlign, heap.VRAM)
	if err != nil {
		return c.fail(op, outOfMemory("framebuffer depth", err))
	}
	rt, err := c.drv.CreateRenderTarget(driver.RenderTargetParams{Width: w, Height: h})
	if err != nil {
		c.freeBlock("framebuffer depth", db)
		return c.fail(op, err)
	}
	c.releaseFramebuffer(fb)
	fb.tex = tex
	fb.target = rt
	fb.depthBlock = db
	fb.depth = driver.DepthStencilSurface{Width: w, Height: h, Data: db.Bytes()}
	fb.color = colorSurface(t)
	return nil
}

func colorSurface(t *texture) driver.ColorSurface {
	return driver.ColorSurface{
		Format: t.desc.Format,
		Width:  t.desc.Width,
		Height: t.desc.Height,
		Stride: t.desc.Stride,
		Data:   t.block.Bytes(),
		Addr:   t.block.Addr,
	}
}

// attachment refreshes the color surface of fb from its texture, which may
// have been reallocated since the attach.
func (c *Context) attachment(fb *framebuffer) bool {
	if fb.target == nil {
		return false
	}
	t := c.textures.Ptr(fb.tex.handle())
	if t == nil || !t.valid || t.desc.Width != fb.depth.Width || t.desc.Height != fb.depth.Height {
		return false
	}
	fb.color = colorSurface(t)
	return true
}

// DeleteFramebuffers destroys each framebuffer. Deleting the bound one
// returns rendering to the display surface.
func (c *Context) DeleteFramebuffers(fbs ...Framebuffer) {
	for _, f := range fbs {
		if f == 0 {
			continue
		}
		fb, ok := c.framebuffers.Remove(f.handle())
		if !ok {
			continue
		}
		c.releaseFramebuffer(&fb)
		if c.boundFB == f {
			c.boundFB = 0
		}
	}
}

func (c *Context) releaseFramebuffer(fb *framebuffer) {
	if fb.target != nil {
		if err := c.drv.DestroyRenderTarget(fb.target); err != nil {
			c.logger.Warn("vitagl: destroy framebuffer target", "err", err)
		}
		fb.target = nil
	}
	if !fb.depthBlock.IsZero() {
		c.freeBlock("framebuffer depth", fb.depthBlock)
		fb.depthBlock = heap.Block{}
	}
	fb.depth = driver.DepthStencilSurface{}
	fb.color = driver.ColorSurface{}
	fb.tex = 0
}
