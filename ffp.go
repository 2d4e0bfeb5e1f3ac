package vitagl

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/linear"
)

// Embedded WGSL sources of the fixed-function variants.

//go:embed shaders/ffp_color_vs.wgsl
var colorVertexSource string

//go:embed shaders/ffp_color_fs.wgsl
var colorFragmentSource string

//go:embed shaders/ffp_flat_vs.wgsl
var flatVertexSource string

//go:embed shaders/ffp_flat_fs.wgsl
var flatFragmentSource string

//go:embed shaders/ffp_texture_vs.wgsl
var textureVertexSource string

//go:embed shaders/ffp_texture_fs.wgsl
var textureFragmentSource string

//go:embed shaders/ffp_texture_color_vs.wgsl
var textureColorVertexSource string

//go:embed shaders/ffp_texture_color_fs.wgsl
var textureColorFragmentSource string

// variant is a fixed-function program pair.
type variant uint8

const (
	// variantColor draws per-vertex colors.
	variantColor variant = iota
	// variantFlat draws a constant tint color.
	variantFlat
	// variantTexture draws a texture modulated by the tint color.
	variantTexture
	// variantTextureColor draws a texture modulated by per-vertex colors.
	variantTextureColor
	numVariants
)

var variantNames = [numVariants]string{"color", "flat", "texture", "texture-color"}

func (v variant) String() string { return variantNames[v] }

func (v variant) textured() bool { return v == variantTexture || v == variantTextureColor }

// selectVariant picks the fixed-function pair for the draw inputs.
func selectVariant(textured, colored bool) variant {
	switch {
	case textured && colored:
		return variantTextureColor
	case textured:
		return variantTexture
	case colored:
		return variantColor
	default:
		return variantFlat
	}
}

// Stream slots of the fixed-function vertex programs.
const (
	streamPosition = 0
	noStream       = -1
)

type variantSource struct {
	vertex, fragment string
	// texcoord and color are the stream slots of those inputs.
	texcoord, color int
}

var variantSources = [numVariants]variantSource{
	variantColor:        {colorVertexSource, colorFragmentSource, noStream, 1},
	variantFlat:         {flatVertexSource, flatFragmentSource, noStream, noStream},
	variantTexture:      {textureVertexSource, textureFragmentSource, 1, noStream},
	variantTextureColor: {textureColorVertexSource, textureColorFragmentSource, 1, 2},
}

// Uniform parameter names used by the fixed-function shaders.
var (
	vertexParamNames   = []string{"wvp", "modelview", "tex_matrix", "clip_plane", "clip_enabled"}
	fragmentParamNames = []string{
		"alpha_op", "alpha_ref", "tint",
		"fog_mode", "fog_near", "fog_far", "fog_density", "fog_color",
		"tex_env", "tex_env_color",
	}
)

type fixedProgram struct {
	variant  variant
	vsBlob   []byte
	fsBlob   []byte
	vsID     driver.ProgramID
	fsID     driver.ProgramID
	vp       driver.VertexProgram
	fp       driver.FragmentProgram
	texcoord int
	color    int
	params   map[string]*driver.Parameter
}

type fixedPrograms struct {
	variants [numVariants]*fixedProgram
	// clearColor and clearDepth are flat fragment programs used by Clear;
	// clearDepth writes no color channel.
	clearColor driver.FragmentProgram
	clearDepth driver.FragmentProgram
}

func (c *Context) initFixedPrograms() error {
	for v := range numVariants {
		fp, err := c.newFixedProgram(v)
		if err != nil {
			c.releaseFixedPrograms()
			return fmt.Errorf("vitagl: %v program: %w", v, err)
		}
		c.fixed.variants[v] = fp
	}
	if err := c.createClearPrograms(); err != nil {
		c.releaseFixedPrograms()
		return fmt.Errorf("vitagl: clear program: %w", err)
	}
	return nil
}

func (c *Context) newFixedProgram(v variant) (*fixedProgram, error) {
	src := variantSources[v]
	p := &fixedProgram{
		variant:  v,
		vsBlob:   []byte(src.vertex),
		fsBlob:   []byte(src.fragment),
		texcoord: src.texcoord,
		color:    src.color,
		params:   make(map[string]*driver.Parameter),
	}
	var err error
	if p.vsID, err = c.drv.RegisterProgram(p.vsBlob); err != nil {
		return nil, err
	}
	if p.fsID, err = c.drv.RegisterProgram(p.fsBlob); err != nil {
		c.unregister(p.vsID)
		return nil, err
	}

	var attrs []driver.VertexAttribute
	var streams []driver.VertexStream
	for _, in := range []struct {
		name   string
		stream int
		comps  int
	}{
		{"position", streamPosition, 3},
		{"texcoord", p.texcoord, 2},
		{"color", p.color, 4},
	} {
		if in.stream == noStream {
			continue
		}
		reg, ok := c.drv.AttributeIndex(p.vsBlob, in.name)
		if !ok {
			c.unregister(p.vsID, p.fsID)
			return nil, fmt.Errorf("vertex input %q not found", in.name)
		}
		attrs = append(attrs, driver.VertexAttribute{
			StreamIndex: in.stream,
			Format:      driver.AttribF32,
			Components:  in.comps,
			RegIndex:    reg,
		})
		streams = append(streams, driver.VertexStream{Stride: in.comps * 4})
	}
	if p.vp, err = c.drv.CreateVertexProgram(p.vsID, attrs, streams); err != nil {
		c.unregister(p.vsID, p.fsID)
		return nil, err
	}
	if p.fp, err = c.drv.CreateFragmentProgram(p.fsID, driver.ColorFormatRGBA8, driver.MultisampleNone, c.state.blendInfo(), p.vp); err != nil {
		c.releaseVertexProgram(p.vp)
		c.unregister(p.vsID, p.fsID)
		return nil, err
	}

	for _, name := range vertexParamNames {
		if param := c.drv.FindParameter(p.vsBlob, name); param != nil {
			p.params[name] = param
		}
	}
	for _, name := range fragmentParamNames {
		if param := c.drv.FindParameter(p.fsBlob, name); param != nil {
			p.params[name] = param
		}
	}
	c.logger.Debug("vitagl: fixed program ready", "variant", v, "params", len(p.params))
	return p, nil
}

func (c *Context) createClearPrograms() error {
	flat := c.fixed.variants[variantFlat]
	var blend *driver.BlendInfo
	if c.state.colorMask != driver.ColorMaskAll {
		blend = opaqueBlend(c.state.colorMask)
	}
	color, err := c.drv.CreateFragmentProgram(flat.fsID, driver.ColorFormatRGBA8, driver.MultisampleNone, blend, flat.vp)
	if err != nil {
		return err
	}
	depth, err := c.drv.CreateFragmentProgram(flat.fsID, driver.ColorFormatRGBA8, driver.MultisampleNone, opaqueBlend(driver.ColorMaskNone), flat.vp)
	if err != nil {
		c.releaseFragmentProgram(color)
		return err
	}
	c.fixed.clearColor, c.fixed.clearDepth = color, depth
	return nil
}

// reloadFixedBlend recreates the fragment programs of every variant
// against the current blend state.
func (c *Context) reloadFixedBlend() error {
	blend := c.state.blendInfo()
	for _, p := range c.fixed.variants {
		if p == nil {
			continue
		}
		fp, err := c.drv.CreateFragmentProgram(p.fsID, driver.ColorFormatRGBA8, driver.MultisampleNone, blend, p.vp)
		if err != nil {
			return fmt.Errorf("reload %v blend: %w", p.variant, err)
		}
		c.releaseFragmentProgram(p.fp)
		p.fp = fp
	}
	c.releaseFragmentProgram(c.fixed.clearColor)
	c.releaseFragmentProgram(c.fixed.clearDepth)
	c.fixed.clearColor, c.fixed.clearDepth = nil, nil
	return c.createClearPrograms()
}

func (c *Context) releaseFixedPrograms() {
	for i, p := range c.fixed.variants {
		if p == nil {
			continue
		}
		c.releaseFragmentProgram(p.fp)
		c.releaseVertexProgram(p.vp)
		c.unregister(p.vsID, p.fsID)
		c.fixed.variants[i] = nil
	}
	c.releaseFragmentProgram(c.fixed.clearColor)
	c.releaseFragmentProgram(c.fixed.clearDepth)
	c.fixed.clearColor, c.fixed.clearDepth = nil, nil
}

func (c *Context) unregister(ids ...driver.ProgramID) {
	for _, id := range ids {
		if err := c.drv.UnregisterProgram(id); err != nil {
			c.logger.Warn("vitagl: unregister program", "id", id, "err", err)
		}
	}
}

func (c *Context) releaseVertexProgram(vp driver.VertexProgram) {
	if vp == nil {
		return
	}
	if err := c.drv.ReleaseVertexProgram(vp); err != nil {
		c.logger.Warn("vitagl: release vertex program", "err", err)
	}
}

// releaseFragmentProgram drops every reference the patcher holds on fp,
// including references taken by presentation.
func (c *Context) releaseFragmentProgram(fp driver.FragmentProgram) {
	if fp == nil {
		return
	}
	refs, err := c.drv.FragmentProgramRefCount(fp)
	if err != nil {
		c.logger.Warn("vitagl: fragment program refcount", "err", err)
		refs = 1
	}
	for range max(refs, 1) {
		if err := c.drv.ReleaseFragmentProgram(fp); err != nil {
			c.logger.Warn("vitagl: release fragment program", "err", err)
			return
		}
	}
}

// writeFixedUniforms populates both stages of a fixed-function draw.
// Parameters a variant does not declare are skipped.
func (c *Context) writeFixedUniforms(w *uniformWriter, p *fixedProgram, wvp *linear.Mat4, tint [4]float32) error {
	s := &c.state
	alphaOp := float32(Always)
	if s.alphaTest {
		alphaOp = float32(s.alphaFunc)
	}
	fog := float32(0)
	if s.fog {
		fog = float32(s.fogMode)
	}
	unit := &c.units[c.activeUnit]

	writes := []struct {
		name string
		data []float32
	}{
		{"alpha_op", []float32{alphaOp}},
		{"alpha_ref", []float32{s.alphaRef}},
		{"tint", tint[:]},
		{"fog_mode", []float32{fog}},
		{"fog_near", []float32{s.fogStart}},
		{"fog_far", []float32{s.fogEnd}},
		{"fog_density", []float32{s.fogDensity}},
		{"fog_color", s.fogColor[:]},
		{"tex_env", []float32{float32(unit.env)}},
		{"tex_env_color", unit.envColor[:]},
		{"wvp", wvp[:]},
	}
	for _, wr := range writes {
		if err := w.set(p.params[wr.name], 0, wr.data); err != nil {
			return err
		}
	}
	if !p.variant.textured() {
		return nil
	}

	clipOn := float32(0)
	if s.clip0 {
		clipOn = 1
	}
	for _, wr := range []struct {
		name string
		data []float32
	}{
		{"modelview", c.matrix.stacks[ModelView].Top()[:]},
		{"tex_matrix", c.matrix.stacks[TextureMatrix].Top()[:]},
		{"clip_plane", s.clipPlane[:]},
		{"clip_enabled", []float32{clipOn}},
	} {
		if err := w.set(p.params[wr.name], 0, wr.data); err != nil {
			return err
		}
	}
	return nil
}
