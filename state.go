package vitagl

import "github.com/gogpu/vitagl/driver"

// renderState is the server-side fixed-function state.
type renderState struct {
	blend     bool
	srcRGB    BlendFactor
	dstRGB    BlendFactor
	srcAlpha  BlendFactor
	dstAlpha  BlendFactor
	eqRGB     BlendEquation
	eqAlpha   BlendEquation
	colorMask driver.ColorMask

	cull      bool
	cullFace  Face
	frontFace Winding

	depthTest bool
	depthFunc CompareFunc
	depthMask bool

	alphaTest bool
	alphaFunc CompareFunc
	alphaRef  float32

	fog        bool
	fogMode    FogMode
	fogStart   float32
	fogEnd     float32
	fogDensity float32
	fogColor   [4]float32

	scissor bool

	clip0 bool
	// clipPlane is the eye-space plane equation.
	clipPlane [4]float32

	color      [4]float32
	texcoord   [2]float32
	clearColor [4]float32
}

func defaultRenderState() renderState {
	return renderState{
		srcRGB:     One,
		dstRGB:     Zero,
		srcAlpha:   One,
		dstAlpha:   Zero,
		colorMask:  driver.ColorMaskAll,
		cullFace:   Back,
		depthFunc:  Less,
		depthMask:  true,
		alphaFunc:  Always,
		fogMode:    FogExp,
		fogEnd:     1,
		fogDensity: 1,
		color:      [4]float32{1, 1, 1, 1},
	}
}

// opaqueBlend is a pass-through blend writing only mask.
func opaqueBlend(mask driver.ColorMask) *driver.BlendInfo {
	return &driver.BlendInfo{
		ColorMask: mask,
		ColorFunc: driver.BlendFuncAdd,
		AlphaFunc: driver.BlendFuncAdd,
		ColorSrc:  driver.BlendOne,
		ColorDst:  driver.BlendZero,
		AlphaSrc:  driver.BlendOne,
		AlphaDst:  driver.BlendZero,
	}
}

// blendInfo returns the blend configuration for new fragment programs, or
// nil when blending is off and every channel is written.
func (s *renderState) blendInfo() *driver.BlendInfo {
	if !s.blend {
		if s.colorMask == driver.ColorMaskAll {
			return nil
		}
		return opaqueBlend(s.colorMask)
	}
	return &driver.BlendInfo{
		ColorMask: s.colorMask,
		ColorFunc: blendEquations[s.eqRGB],
		AlphaFunc: blendEquations[s.eqAlpha],
		ColorSrc:  blendFactors[s.srcRGB],
		ColorDst:  blendFactors[s.dstRGB],
		AlphaSrc:  blendFactors[s.srcAlpha],
		AlphaDst:  blendFactors[s.dstAlpha],
	}
}

// cullMode maps the cull state to the culled winding. FrontAndBack is
// handled by skipping draws.
func (s *renderState) cullMode() driver.CullMode {
	if !s.cull || s.cullFace == FrontAndBack {
		return driver.CullNone
	}
	// Back faces of a CCW-front mesh wind clockwise.
	cw := (s.cullFace == Back) == (s.frontFace == CCW)
	if cw {
		return driver.CullCW
	}
	return driver.CullCCW
}

// cullsEverything reports whether triangles of any winding are discarded.
func (s *renderState) cullsEverything(pi primInfo) bool {
	return s.cull && s.cullFace == FrontAndBack && pi.triangle
}

func (s *renderState) depthState() driver.DepthState {
	if !s.depthTest {
		return driver.DepthState{Func: driver.DepthAlways}
	}
	return driver.DepthState{Func: depthFuncs[s.depthFunc], Write: s.depthMask}
}

// Enable turns a capability on.
func (c *Context) Enable(cp Capability) error { return c.setCapability("Enable", cp, true) }

// Disable turns a capability off.
func (c *Context) Disable(cp Capability) error { return c.setCapability("Disable", cp, false) }

// IsEnabled reports whether a capability is on.
func (c *Context) IsEnabled(cp Capability) bool {
	s := &c.state
	switch cp {
	case Blend:
		return s.blend
	case CullFace:
		return s.cull
	case DepthTest:
		return s.depthTest
	case AlphaTest:
		return s.alphaTest
	case Fog:
		return s.fog
	case Texture2D:
		return c.units[c.activeUnit].enabled
	case ScissorTest:
		return s.scissor
	case ClipPlane0:
		return s.clip0
	}
	return false
}

func (c *Context) setCapability(op string, cp Capability, on bool) error {
	s := &c.state
	switch cp {
	case Blend:
		if s.blend != on {
			s.blend = on
			return c.fail(op, c.reloadBlend())
		}
	case CullFace:
		s.cull = on
		c.drv.SetCullMode(s.cullMode())
	case DepthTest:
		s.depthTest = on
		c.drv.SetDepthState(s.depthState())
	case AlphaTest:
		s.alphaTest = on
	case Fog:
		s.fog = on
	case Texture2D:
		c.units[c.activeUnit].enabled = on
	case ScissorTest:
		s.scissor = on
		c.applyRegionClip()
	case ClipPlane0:
		s.clip0 = on
	default:
		return c.failf(op, ErrInvalidEnum, "capability %d", cp)
	}
	return nil
}

// BlendFunc sets the source and destination factors of both color and alpha.
func (c *Context) BlendFunc(src, dst BlendFactor) error {
	return c.blendFuncSeparate("BlendFunc", src, dst, src, dst)
}

// BlendFuncSeparate sets color and alpha blend factors independently.
func (c *Context) BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha BlendFactor) error {
	return c.blendFuncSeparate("BlendFuncSeparate", srcRGB, dstRGB, srcAlpha, dstAlpha)
}

func (c *Context) blendFuncSeparate(op string, srcRGB, dstRGB, srcAlpha, dstAlpha BlendFactor) error {
	for _, f := range []BlendFactor{srcRGB, dstRGB, srcAlpha, dstAlpha} {
		if int(f) >= len(blendFactors) {
			return c.failf(op, ErrInvalidEnum, "blend factor %d", f)
		}
	}
	s := &c.state
	if s.srcRGB == srcRGB && s.dstRGB == dstRGB && s.srcAlpha == srcAlpha && s.dstAlpha == dstAlpha {
		return nil
	}
	s.srcRGB, s.dstRGB, s.srcAlpha, s.dstAlpha = srcRGB, dstRGB, srcAlpha, dstAlpha
	return c.fail(op, c.reloadBlendIfEnabled())
}

// BlendEquation sets the blend operator of color and alpha.
func (c *Context) BlendEquation(eq BlendEquation) error {
	return c.BlendEquationSeparate(eq, eq)
}

// BlendEquationSeparate sets color and alpha blend operators independently.
func (c *Context) BlendEquationSeparate(rgb, alpha BlendEquation) error {
	const op = "BlendEquation"
	if int(rgb) >= len(blendEquations) || int(alpha) >= len(blendEquations) {
		return c.failf(op, ErrInvalidEnum, "blend equation %d/%d", rgb, alpha)
	}
	s := &c.state
	if s.eqRGB == rgb && s.eqAlpha == alpha {
		return nil
	}
	s.eqRGB, s.eqAlpha = rgb, alpha
	return c.fail(op, c.reloadBlendIfEnabled())
}

// ColorMask selects the writable color channels.
func (c *Context) ColorMask(r, g, b, a bool) error {
	var m driver.ColorMask
	for i, on := range []bool{r, g, b, a} {
		if on {
			m |= driver.ColorMaskR << i
		}
	}
	if m == c.state.colorMask {
		return nil
	}
	c.state.colorMask = m
	return c.fail("ColorMask", c.reloadBlend())
}

func (c *Context) reloadBlendIfEnabled() error {
	if !c.state.blend {
		return nil
	}
	return c.reloadBlend()
}

// CullFace selects the faces discarded when culling is enabled.
func (c *Context) CullFace(f Face) error {
	if f > FrontAndBack {
		return c.failf("CullFace", ErrInvalidEnum, "face %d", f)
	}
	c.state.cullFace = f
	c.drv.SetCullMode(c.state.cullMode())
	return nil
}

// FrontFace sets the winding of front-facing polygons.
func (c *Context) FrontFace(w Winding) error {
	if w > CW {
		return c.failf("FrontFace", ErrInvalidEnum, "winding %d", w)
	}
	c.state.frontFace = w
	c.drv.SetCullMode(c.state.cullMode())
	return nil
}

// DepthFunc sets the depth comparison.
func (c *Context) DepthFunc(f CompareFunc) error {
	if !f.valid() {
		return c.failf("DepthFunc", ErrInvalidEnum, "func %d", f)
	}
	c.state.depthFunc = f
	c.drv.SetDepthState(c.state.depthState())
	return nil
}

// DepthMask enables or disables depth writes.
func (c *Context) DepthMask(write bool) {
	c.state.depthMask = write
	c.drv.SetDepthState(c.state.depthState())
}

// AlphaFunc sets the alpha test comparison and reference value.
func (c *Context) AlphaFunc(f CompareFunc, ref float32) error {
	if !f.valid() {
		return c.failf("AlphaFunc", ErrInvalidEnum, "func %d", f)
	}
	c.state.alphaFunc = f
	c.state.alphaRef = clamp01(ref)
	return nil
}

// FogMode selects the fog density function.
func (c *Context) FogMode(m FogMode) error {
	if m < FogLinear || m > FogExp2 {
		return c.failf("FogMode", ErrInvalidEnum, "mode %d", m)
	}
	c.state.fogMode = m
	return nil
}

// FogRange sets the linear fog start and end distances.
func (c *Context) FogRange(start, end float32) {
	c.state.fogStart, c.state.fogEnd = start, end
}

// FogDensity sets the density of exponential fog.
func (c *Context) FogDensity(d float32) error {
	if d < 0 {
		return c.failf("FogDensity", ErrInvalidValue, "density %v", d)
	}
	c.state.fogDensity = d
	return nil
}

// FogColor sets the fog color.
func (c *Context) FogColor(r, g, b, a float32) {
	c.state.fogColor = [4]float32{clamp01(r), clamp01(g), clamp01(b), clamp01(a)}
}

// ClipPlane sets user clip plane 0. The equation is given in object space
// and transformed to eye space by the current model-view matrix.
func (c *Context) ClipPlane(eq [4]float32) error {
	inv, ok := c.matrix.stacks[ModelView].Top().Invert()
	if !ok {
		return c.failf("ClipPlane", ErrInvalidOperation, "singular model-view matrix")
	}
	// The eye-space plane is the row vector eq times the inverse matrix.
	var out [4]float32
	for col := range 4 {
		for k := range 4 {
			out[col] += eq[k] * inv.At(k, col)
		}
	}
	c.state.clipPlane = out
	return nil
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
