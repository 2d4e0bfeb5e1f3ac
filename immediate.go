// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vitagl

// immediateState accumulates one Begin/End batch. The slices keep their
// capacity between batches.
type immediateState struct {
	active bool
	prim   Primitive
	info   primInfo

	positions []float32 // xyz per vertex
	colors    []float32 // rgba per vertex
	texcoords []float32 // st per pushed texcoord
}

func (s *immediateState) vertices() int { return len(s.positions) / 3 }

func (s *immediateState) reset() {
	s.active = false
	s.positions = s.positions[:0]
	s.colors = s.colors[:0]
	s.texcoords = s.texcoords[:0]
}

// Begin starts accumulating vertices of primitive p.
func (c *Context) Begin(p Primitive) error {
	if c.imm.active {
		return c.failf("Begin", ErrInvalidOperation, "already inside Begin/End")
	}
	info, ok := p.info()
	if !ok {
		return c.failf("Begin", ErrInvalidEnum, "primitive %d", p)
	}
	c.imm.reset()
	c.imm.active = true
	c.imm.prim = p
	c.imm.info = info
	return nil
}

// Vertex3f appends a vertex carrying the current color.
func (c *Context) Vertex3f(x, y, z float32) error {
	if !c.imm.active {
		return c.failf("Vertex", ErrInvalidOperation, "outside Begin/End")
	}
	c.imm.positions = append(c.imm.positions, x, y, z)
	c.imm.colors = append(c.imm.colors, c.state.color[:]...)
	return nil
}

// Vertex2f appends a vertex at z = 0.
func (c *Context) Vertex2f(x, y float32) error { return c.Vertex3f(x, y, 0) }

// Color4f sets the current color. It affects vertices pushed afterwards.
func (c *Context) Color4f(r, g, b, a float32) {
	c.state.color = [4]float32{clamp01(r), clamp01(g), clamp01(b), clamp01(a)}
}

// Color3f sets the current color with full opacity.
func (c *Context) Color3f(r, g, b float32) { c.Color4f(r, g, b, 1) }

// Color4ub sets the current color from normalized bytes.
func (c *Context) Color4ub(r, g, b, a uint8) {
	c.Color4f(float32(r)/255, float32(g)/255, float32(b)/255, float32(a)/255)
}

// TexCoord2f sets the current texture coordinate. Inside Begin/End it is
// also appended to the batch.
func (c *Context) TexCoord2f(s, t float32) {
	c.state.texcoord = [2]float32{s, t}
	if c.imm.active {
		c.imm.texcoords = append(c.imm.texcoords, s, t)
	}
}

// End closes the batch and draws it. The batch is cleared whether or not
// a draw is issued.
func (c *Context) End() error {
	const op = "End"
	if !c.imm.active {
		return c.failf(op, ErrInvalidOperation, "End without Begin")
	}
	defer c.imm.reset()

	imm := &c.imm
	n := imm.vertices()
	if !imm.info.validCount(n) {
		return c.failf(op, ErrInvalidValue, "%d vertices for %v", n, imm.prim)
	}
	if c.state.cullsEverything(imm.info) {
		c.skip(op, "culled")
		return nil
	}
	if !c.frame.inScene {
		return c.failf(op, ErrInvalidOperation, "no scene in progress")
	}

	tex := c.boundTexture()
	textured := tex != nil && len(imm.texcoords) > 0
	v := variantColor
	if textured {
		if len(imm.texcoords) != 2*n {
			return c.failf(op, ErrInvalidOperation, "%d texcoords for %d vertices", len(imm.texcoords)/2, n)
		}
		v = variantTextureColor
	} else {
		tex = nil
	}
	p := c.fixed.variants[v]

	dc := &drawCall{
		prim:     imm.info.native,
		vp:       p.vp,
		fp:       p.fp,
		texture:  tex,
		streams:  make([][]byte, 3),
		uniforms: c.fixedUniforms(p),
	}

	// One walk of each accumulation list into flat transient buffers.
	for _, s := range []struct {
		slot int
		data []float32
	}{
		{streamPosition, imm.positions},
		{p.color, imm.colors},
		{p.texcoord, imm.texcoords},
	} {
		if s.slot == noStream {
			continue
		}
		buf, err := c.floats(len(s.data))
		if err != nil {
			c.skip(op, "pool exhausted")
			return c.fail(op, err)
		}
		for i, f := range s.data {
			buf.Set(i, f)
		}
		dc.streams[s.slot] = buf.Bytes()
	}

	var err error
	dc.indices, dc.format, dc.count, err = c.sequentialIndices(n, imm.info.expand)
	if err != nil {
		c.skip(op, "pool exhausted")
		return c.fail(op, err)
	}
	return c.submit(op, dc)
}
