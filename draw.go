package vitagl

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/pool"
)

// uniformWriter reserves each stage's default uniform buffer on first
// use within one draw.
type uniformWriter struct {
	drv  driver.Context
	bufs [2]driver.UniformBuffer
}

// set writes data at off components into p. A nil p is ignored, as are
// components beyond the parameter's extent.
func (w *uniformWriter) set(p *driver.Parameter, off int, data []float32) error {
	if p == nil {
		return nil
	}
	n := min(len(data), p.Size()-off)
	if n <= 0 {
		return nil
	}
	buf := w.bufs[p.Stage]
	if buf == nil {
		b, err := w.drv.ReserveUniformBuffer(p.Stage)
		if err != nil {
			return fmt.Errorf("reserve %v uniforms: %w", p.Stage, err)
		}
		w.bufs[p.Stage] = b
		buf = b
	}
	return w.drv.SetUniformData(buf, p, off, data[:n])
}

// drawCall is one fully assembled draw.
type drawCall struct {
	prim    driver.Primitive
	format  driver.IndexFormat
	indices []byte
	count   int
	// streams maps stream slots to vertex data; nil entries are unbound.
	streams [][]byte

	vp      driver.VertexProgram
	fp      driver.FragmentProgram
	texture *driver.TextureDesc

	uniforms func(w *uniformWriter) error
}

// submit binds everything a draw references and issues it.
func (c *Context) submit(op string, dc *drawCall) error {
	if !c.frame.inScene {
		return c.failf(op, ErrInvalidOperation, "no scene in progress")
	}
	c.drv.SetVertexProgram(dc.vp)
	c.drv.SetFragmentProgram(dc.fp)
	if err := c.drv.SetFragmentTexture(0, dc.texture); err != nil {
		return c.fail(op, err)
	}
	if dc.uniforms != nil {
		w := uniformWriter{drv: c.drv}
		if err := dc.uniforms(&w); err != nil {
			return c.fail(op, err)
		}
	}
	for i, data := range dc.streams {
		if data == nil {
			continue
		}
		if err := c.drv.SetVertexStream(i, data); err != nil {
			return c.fail(op, fmt.Errorf("stream %d: %w", i, err))
		}
	}
	if err := c.drv.Draw(dc.prim, dc.format, dc.indices, dc.count); err != nil {
		return c.fail(op, err)
	}
	c.stats.Draws++
	c.logger.Debug("vitagl: draw", "op", op, "prim", dc.prim, "count", dc.count, "pool", c.pool.Used())
	return nil
}

// skip records a dropped draw.
func (c *Context) skip(op, reason string) {
	c.stats.SkippedDraws++
	c.logger.Debug("vitagl: draw skipped", "op", op, "reason", reason)
}

// poolAlloc reserves transient memory for one draw and applies the pool
// policy on exhaustion.
func (c *Context) poolAlloc(size, align int) (pool.Span, error) {
	s, err := c.pool.Alloc(size, align)
	if err == nil {
		return s, nil
	}
	switch c.poolPolicy {
	case PoolPanic:
		panic(fmt.Sprintf("vitagl: transient pool exhausted: %v", err))
	case PoolGrow:
		if !c.growPool {
			c.logger.Warn("vitagl: transient pool exhausted, growing at frame end", "cap", c.pool.Cap(), "requested", size)
		}
		c.growPool = true
	}
	return pool.Span{}, outOfMemory("transient pool", err)
}

// floats reserves n float32 values.
func (c *Context) floats(n int) (pool.Float32Span, error) {
	s, err := c.poolAlloc(n*4, 4)
	if err != nil {
		return pool.Float32Span{}, err
	}
	return pool.Float32Span{Span: s}, nil
}

// indexBuffer allocates count indices of format f.
func (c *Context) indexBuffer(count int, f driver.IndexFormat) ([]byte, error) {
	s, err := c.poolAlloc(count*f.Size(), 4)
	if err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// indexFormatFor returns the narrowest format addressing n vertices.
func indexFormatFor(n int) driver.IndexFormat {
	if n > math.MaxUint16+1 {
		return driver.IndexU32
	}
	return driver.IndexU16
}

func putIndex(b []byte, f driver.IndexFormat, i int, v uint32) {
	if f == driver.IndexU32 {
		binary.LittleEndian.PutUint32(b[i*4:], v)
		return
	}
	binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
}

// quadIndexCount is the triangle index count of n quad vertices.
func quadIndexCount(n int) int { return n / 4 * 6 }

// quadPattern splits a quad into two triangles sharing the 1-3 diagonal.
var quadPattern = [6]uint32{0, 1, 3, 1, 2, 3}

// sequentialIndices writes either an identity index list for n vertices
// or, when expand is set, the triangle list of n/4 quads.
func (c *Context) sequentialIndices(n int, expand bool) ([]byte, driver.IndexFormat, int, error) {
	f := indexFormatFor(n)
	count := n
	if expand {
		count = quadIndexCount(n)
	}
	buf, err := c.indexBuffer(count, f)
	if err != nil {
		return nil, f, 0, err
	}
	if expand {
		for q := range n / 4 {
			for k, off := range quadPattern {
				putIndex(buf, f, q*6+k, uint32(q*4)+off)
			}
		}
	} else {
		for i := range n {
			putIndex(buf, f, i, uint32(i))
		}
	}
	return buf, f, count, nil
}

// expandQuadIndices rewrites an explicit index list of quads as triangles.
func (c *Context) expandQuadIndices(src []uint32, f driver.IndexFormat) ([]byte, int, error) {
	count := quadIndexCount(len(src))
	buf, err := c.indexBuffer(count, f)
	if err != nil {
		return nil, 0, err
	}
	for q := range len(src) / 4 {
		for k, off := range quadPattern {
			putIndex(buf, f, q*6+k, src[q*4+int(off)])
		}
	}
	return buf, count, nil
}

// boundTexture returns a snapshot of the texture sampled by the active
// unit, or nil when texturing is off or nothing valid is bound.
func (c *Context) boundTexture() *driver.TextureDesc {
	u := &c.units[c.activeUnit]
	if !u.enabled || u.bound == 0 {
		return nil
	}
	t := c.textures.Ptr(u.bound.handle())
	if t == nil || !t.valid {
		return nil
	}
	desc := t.desc
	desc.MinFilter, desc.MipFilter, desc.Mipmapped = u.minFilter.filters()
	desc.MagFilter, _, _ = u.magFilter.filters()
	desc.WrapU = u.wrapS.wrap()
	desc.WrapV = u.wrapT.wrap()
	if desc.Levels <= 1 {
		desc.Mipmapped = false
	}
	return &desc
}

// fixedUniforms returns the uniform writer of a fixed-function draw. The
// view-projection is resolved here, once per draw.
func (c *Context) fixedUniforms(p *fixedProgram) func(w *uniformWriter) error {
	wvp := c.viewProjection()
	tint := c.state.color
	return func(w *uniformWriter) error {
		return c.writeFixedUniforms(w, p, wvp, tint)
	}
}
