package vitagl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/linear"
)

const testVertexShader = `
struct VertexUniforms {
    wvp: mat4x4<f32>,
    offset: vec4<f32>,
}

@group(0) @binding(0) var<uniform> vu: VertexUniforms;

struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) shade: vec4<f32>,
}

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) shade: vec4<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = vu.wvp * vec4<f32>(in.position, 1.0) + vu.offset;
    out.shade = in.shade;
    return out;
}
`

const testFragmentShader = `
struct FragmentUniforms {
    gain: f32,
    color: vec4<f32>,
}

@group(0) @binding(1) var<uniform> fu: FragmentUniforms;

@fragment
fn fs_main(@location(0) shade: vec4<f32>) -> @location(0) vec4<f32> {
    return fu.color * shade * fu.gain;
}
`

// compileTestShader creates a shader of type typ holding src.
func compileTestShader(t *testing.T, c *Context, typ ShaderType, src string) Shader {
	t.Helper()
	s, err := c.CreateShader(typ)
	require.NoError(t, err)
	require.NoError(t, c.ShaderBinary(s, []byte(src)))
	return s
}

// linkTestProgram links the test shaders with position bound to attribute
// 0 and shade, as normalized bytes, to attribute 1.
func linkTestProgram(t *testing.T, c *Context) Program {
	t.Helper()
	p, err := c.CreateProgram()
	require.NoError(t, err)
	require.NoError(t, c.AttachShader(p, compileTestShader(t, c, VertexShader, testVertexShader)))
	require.NoError(t, c.AttachShader(p, compileTestShader(t, c, FragmentShader, testFragmentShader)))
	require.NoError(t, c.BindAttribLocation(p, 0, "position", 3, Float))
	require.NoError(t, c.BindAttribLocation(p, 1, "shade", 4, UnsignedByte))
	require.NoError(t, c.LinkProgram(p))
	return p
}

func enableTestAttribs(t *testing.T, c *Context) {
	t.Helper()
	require.NoError(t, c.VertexAttribPointer(0, 3, Float, 0, floatBytes(trianglePositions...)))
	require.NoError(t, c.VertexAttribPointer(1, 4, UnsignedByte, 0, []byte{255, 0, 0, 255, 0, 255, 0, 255, 0, 0, 255, 255}))
	require.NoError(t, c.EnableVertexAttribArray(0))
	require.NoError(t, c.EnableVertexAttribArray(1))
}

func TestShaderObjects(t *testing.T) {
	c, drv := newTestContext(t)
	base := drv.Registered()

	s, err := c.CreateShader(VertexShader)
	require.NoError(t, err)
	assert.True(t, c.IsShader(s))
	assert.ErrorIs(t, c.ShaderBinary(s, []byte("not a shader")), ErrInvalidValue)
	assert.Equal(t, base, drv.Registered())

	require.NoError(t, c.ShaderBinary(s, []byte(testVertexShader)))
	assert.Equal(t, base+1, drv.Registered())
	// Replacing the binary releases the previous registration.
	require.NoError(t, c.ShaderBinary(s, []byte(testVertexShader)))
	assert.Equal(t, base+1, drv.Registered())

	c.DeleteShader(s)
	assert.False(t, c.IsShader(s))
	assert.Equal(t, base, drv.Registered())

	_, err = c.CreateShader(ShaderType(7))
	assert.ErrorIs(t, err, ErrInvalidEnum)
	assert.ErrorIs(t, c.ShaderBinary(s, []byte(testVertexShader)), ErrInvalidValue)
}

func TestDeleteAttachedShader(t *testing.T) {
	c, drv := newTestContext(t)
	base := drv.Registered()
	p, err := c.CreateProgram()
	require.NoError(t, err)
	vs := compileTestShader(t, c, VertexShader, testVertexShader)
	fs := compileTestShader(t, c, FragmentShader, testFragmentShader)
	require.NoError(t, c.AttachShader(p, vs))
	require.NoError(t, c.AttachShader(p, fs))

	c.DeleteShader(vs)
	assert.False(t, c.IsShader(vs))
	assert.Equal(t, base+2, drv.Registered(), "still attached")

	c.DeleteProgram(p)
	assert.Equal(t, base+1, drv.Registered())
	assert.True(t, c.IsShader(fs))
	c.DeleteShader(fs)
	assert.Equal(t, base, drv.Registered())
}

func TestAttachShaderReplacesStage(t *testing.T) {
	c, drv := newTestContext(t)
	base := drv.Registered()
	p, err := c.CreateProgram()
	require.NoError(t, err)

	first := compileTestShader(t, c, VertexShader, testVertexShader)
	second := compileTestShader(t, c, VertexShader, testVertexShader)
	require.NoError(t, c.AttachShader(p, first))
	c.DeleteShader(first)
	assert.Equal(t, base+2, drv.Registered())

	// Detaching the deleted shader releases it.
	require.NoError(t, c.AttachShader(p, second))
	assert.Equal(t, base+1, drv.Registered())
}

func TestLinkProgramErrors(t *testing.T) {
	c, _ := newTestContext(t)
	p, err := c.CreateProgram()
	require.NoError(t, err)

	assert.ErrorIs(t, c.LinkProgram(p), ErrInvalidOperation)
	assert.ErrorIs(t, c.UseProgram(p), ErrInvalidOperation)
	assert.ErrorIs(t, c.BindAttribLocation(p, 0, "position", 3, Float), ErrInvalidOperation)

	require.NoError(t, c.AttachShader(p, compileTestShader(t, c, VertexShader, testVertexShader)))
	assert.ErrorIs(t, c.BindAttribLocation(p, 0, "normal", 3, Float), ErrInvalidValue)
	assert.ErrorIs(t, c.BindAttribLocation(p, 0, "position", 5, Float), ErrInvalidValue)
	assert.ErrorIs(t, c.BindAttribLocation(p, 0, "position", 3, UnsignedShort), ErrInvalidEnum)
	assert.ErrorIs(t, c.LinkProgram(p), ErrInvalidOperation, "no fragment shader")

	assert.ErrorIs(t, c.LinkProgram(Program(77)), ErrInvalidValue)
	_, err = c.GetUniformLocation(p, "color")
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestCustomProgramDraw(t *testing.T) {
	c, drv := newTestContext(t)
	p := linkTestProgram(t, c)
	require.NoError(t, c.UseProgram(p))
	enableTestAttribs(t, c)

	color, err := c.GetUniformLocation(p, "color")
	require.NoError(t, err)
	gain, err := c.GetUniformLocation(p, "gain")
	require.NoError(t, err)
	again, err := c.GetUniformLocation(p, "color")
	require.NoError(t, err)
	assert.Equal(t, color, again)
	require.NoError(t, c.Uniform4f(color, 1, 0.5, 0.25, 1))
	require.NoError(t, c.Uniform1f(gain, 2))

	require.NoError(t, c.StartDrawing())
	require.NoError(t, c.DrawArrays(Triangles, 0, 3))

	d := drv.LastDraw()
	require.NotNil(t, d)
	assert.Equal(t, trianglePositions, d.Floats(0))
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 255, 0, 255, 0, 0, 255, 255}, d.Streams[1])
	require.Len(t, d.Vertex.Attrs, 2)
	assert.Equal(t, driver.AttribU8N, d.Vertex.Attrs[1].Format)
	assert.Equal(t, 1, d.Vertex.Attrs[1].RegIndex)

	assert.Equal(t, float32(2), d.FragmentUniforms[0])
	assert.Equal(t, []float32{1, 0.5, 0.25, 1}, d.FragmentUniforms[4:8])
	assert.Nil(t, d.VertexUniforms, "no vertex uniform was set")

	// Uniform values persist across draws.
	require.NoError(t, c.DrawArrays(Triangles, 0, 3))
	assert.Equal(t, float32(2), drv.LastDraw().FragmentUniforms[0])
}

func TestCustomProgramLayoutMismatch(t *testing.T) {
	c, _ := newTestContext(t)
	p := linkTestProgram(t, c)
	require.NoError(t, c.UseProgram(p))
	enableTestAttribs(t, c)
	require.NoError(t, c.VertexAttribPointer(0, 2, Float, 0, floatBytes(0, 0, 1, 0, 0, 1)))
	require.NoError(t, c.StartDrawing())
	assert.ErrorIs(t, c.DrawArrays(Triangles, 0, 3), ErrInvalidOperation)

	require.NoError(t, c.VertexAttribPointer(0, 3, Float, 0, floatBytes(trianglePositions...)))
	require.NoError(t, c.DisableVertexAttribArray(1))
	assert.ErrorIs(t, c.DrawArrays(Triangles, 0, 3), ErrInvalidOperation)
}

func TestUniformLocations(t *testing.T) {
	c, _ := newTestContext(t)
	p := linkTestProgram(t, c)

	missing, err := c.GetUniformLocation(p, "nothing")
	require.NoError(t, err)
	assert.NoError(t, c.Uniform1f(missing, 1), "writes to undeclared uniforms are ignored")
	assert.NoError(t, c.Uniform1f(Uniform{}, 1))

	offset, err := c.GetUniformLocation(p, "offset")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Uniform4fv(offset, 2, make([]float32, 4)), ErrInvalidValue)
	assert.ErrorIs(t, c.UniformMatrix4fv(offset, 1, false, make([]float32, 8)), ErrInvalidValue)

	c.DeleteProgram(p)
	assert.ErrorIs(t, c.Uniform1f(offset, 1), ErrInvalidOperation)
}

func TestUniformMatrixTranspose(t *testing.T) {
	c, drv := newTestContext(t)
	p := linkTestProgram(t, c)
	require.NoError(t, c.UseProgram(p))
	enableTestAttribs(t, c)

	wvp, err := c.GetUniformLocation(p, "wvp")
	require.NoError(t, err)
	tm := linear.Translate(1, 2, 3)
	rowMajor := tm.Transpose()
	require.NoError(t, c.UniformMatrix4fv(wvp, 1, true, rowMajor[:]))

	require.NoError(t, c.StartDrawing())
	require.NoError(t, c.DrawArrays(Triangles, 0, 3))
	want := linear.Translate(1, 2, 3)
	assert.Equal(t, want[:], drv.LastDraw().VertexUniforms[:16])
}

func TestDrawObjectsImplicitWVP(t *testing.T) {
	c, drv := newTestContext(t)
	p := linkTestProgram(t, c)
	require.NoError(t, c.UseProgram(p))
	require.NoError(t, c.Translate(3, 0, 0))

	c.IndexPointerMapped(shortBytes(0, 1, 2))
	require.NoError(t, c.VertexAttribPointerMapped(0, floatBytes(trianglePositions...)))
	require.NoError(t, c.StartDrawing())
	assert.ErrorIs(t, c.DrawObjects(Triangles, 3, true), ErrInvalidOperation, "shade is not mapped")

	require.NoError(t, c.VertexAttribPointerMapped(1, make([]byte, 12)))
	require.NoError(t, c.DrawObjects(Triangles, 3, true))
	want := linear.Translate(3, 0, 0)
	assert.Equal(t, want[:], drv.LastDraw().VertexUniforms[:16])

	require.NoError(t, c.DrawObjects(Triangles, 3, false))
	assert.Nil(t, drv.LastDraw().VertexUniforms)
}

func TestUseProgramZero(t *testing.T) {
	c, drv := newTestContext(t)
	p := linkTestProgram(t, c)
	require.NoError(t, c.UseProgram(p))
	require.NoError(t, c.UseProgram(0))
	require.NoError(t, c.StartDrawing())
	drawTriangle(t, c)
	assert.Same(t, c.fixed.variants[variantColor].vp, driver.VertexProgram(drv.LastDraw().Vertex))

	// Deleting the current program returns to fixed function.
	require.NoError(t, c.UseProgram(p))
	c.DeleteProgram(p)
	assert.Zero(t, c.current)
}

func TestBlendReloadKeepsProgramCount(t *testing.T) {
	c, drv := newTestContext(t)
	p := linkTestProgram(t, c)
	live := drv.LiveFragmentPrograms()

	require.NoError(t, c.Enable(Blend))
	require.NoError(t, c.BlendFunc(SrcAlpha, OneMinusSrcAlpha))
	require.NoError(t, c.BlendEquation(FuncSubtract))
	assert.Equal(t, live, drv.LiveFragmentPrograms())

	require.NoError(t, c.StartDrawing())
	drawTriangle(t, c)
	blend := drv.LastDraw().Fragment.Blend
	require.NotNil(t, blend)
	assert.Equal(t, driver.BlendSrcAlpha, blend.ColorSrc)
	assert.Equal(t, driver.BlendOneMinusSrcAlpha, blend.ColorDst)
	assert.Equal(t, driver.BlendFuncSubtract, blend.ColorFunc)

	// Linked programs pick up the new blend state as well.
	require.NoError(t, c.UseProgram(p))
	enableTestAttribs(t, c)
	require.NoError(t, c.DrawArrays(Triangles, 0, 3))
	require.NotNil(t, drv.LastDraw().Fragment.Blend)
	assert.Equal(t, driver.BlendSrcAlpha, drv.LastDraw().Fragment.Blend.ColorSrc)
}
