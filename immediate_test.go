package vitagl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/linear"
)

func drawQuads(t *testing.T, c *Context, n int) error {
	t.Helper()
	require.NoError(t, c.Begin(Quads))
	for i := range n {
		require.NoError(t, c.Vertex2f(float32(i), float32(i%2)))
	}
	return c.End()
}

func TestImmediateQuads(t *testing.T) {
	tests := []struct {
		name     string
		vertices int
		want     []uint16
	}{
		{"one quad", 4, []uint16{0, 1, 3, 1, 2, 3}},
		{"two quads", 8, []uint16{0, 1, 3, 1, 2, 3, 4, 5, 7, 5, 6, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, drv := newTestContext(t)
			require.NoError(t, c.StartDrawing())
			require.NoError(t, drawQuads(t, c, tt.vertices))

			d := drv.LastDraw()
			require.NotNil(t, d)
			assert.Equal(t, driver.PrimTriangles, d.Prim)
			assert.Equal(t, driver.IndexU16, d.Format)
			assert.Equal(t, len(tt.want), d.Count)
			assert.Equal(t, tt.want, d.Indices16())
			assert.Len(t, d.Floats(streamPosition), tt.vertices*3)
			assert.Len(t, d.Floats(1), tt.vertices*4)
		})
	}
}

func TestImmediateColors(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.StartDrawing())

	require.NoError(t, c.Begin(Triangles))
	c.Color3f(1, 0, 0)
	require.NoError(t, c.Vertex3f(0, 0, 0.5))
	c.Color4ub(0, 255, 0, 51)
	require.NoError(t, c.Vertex2f(1, 0))
	c.Color4f(0, 0, 2, -1)
	require.NoError(t, c.Vertex2f(0, 1))
	require.NoError(t, c.End())

	d := drv.LastDraw()
	require.NotNil(t, d)
	assert.Equal(t, []uint16{0, 1, 2}, d.Indices16())
	assert.Equal(t, []float32{0, 0, 0.5, 1, 0, 0, 0, 1, 0}, d.Floats(streamPosition))
	assert.Equal(t, []float32{
		1, 0, 0, 1,
		0, 1, 0, 0.2,
		0, 0, 1, 0,
	}, d.Floats(1))
	assert.Nil(t, d.Textures[0])
}

func TestImmediateTextured(t *testing.T) {
	c, drv := newTestContext(t)
	uploadTestTexture(t, c, 4, 4)
	require.NoError(t, c.Enable(Texture2D))
	require.NoError(t, c.StartDrawing())

	require.NoError(t, c.Begin(Triangles))
	for _, v := range [][2]float32{{0, 0}, {1, 0}, {0, 1}} {
		c.TexCoord2f(v[0], v[1])
		require.NoError(t, c.Vertex2f(v[0], v[1]))
	}
	require.NoError(t, c.End())

	d := drv.LastDraw()
	require.NotNil(t, d)
	assert.Same(t, c.fixed.variants[variantTextureColor].vp, driver.VertexProgram(d.Vertex))
	require.NotNil(t, d.Textures[0])
	assert.Equal(t, 4, d.Textures[0].Width)
	assert.Equal(t, []float32{0, 0, 1, 0, 0, 1}, d.Floats(1))
	assert.Len(t, d.Floats(2), 12)
}

func TestImmediateTexcoordMismatch(t *testing.T) {
	c, drv := newTestContext(t)
	uploadTestTexture(t, c, 4, 4)
	require.NoError(t, c.Enable(Texture2D))
	require.NoError(t, c.StartDrawing())

	require.NoError(t, c.Begin(Triangles))
	c.TexCoord2f(0, 0)
	require.NoError(t, c.Vertex2f(0, 0))
	require.NoError(t, c.Vertex2f(1, 0))
	require.NoError(t, c.Vertex2f(0, 1))
	assert.ErrorIs(t, c.End(), ErrInvalidOperation)
	assert.Zero(t, drv.Count("Draw"))
	assert.False(t, c.imm.active)
}

func TestImmediateInvalidCount(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.StartDrawing())

	require.NoError(t, c.Begin(Triangles))
	require.NoError(t, c.Vertex2f(0, 0))
	require.NoError(t, c.Vertex2f(1, 0))
	assert.ErrorIs(t, c.End(), ErrInvalidValue)
	assert.Equal(t, InvalidValue, c.GetError())
	assert.Zero(t, drv.Count("Draw"))

	// The batch was discarded.
	drawTriangle(t, c)
	assert.Equal(t, 3, drv.LastDraw().Count)

	assert.ErrorIs(t, drawQuads(t, c, 6), ErrInvalidValue)
}

func TestImmediateOutsideBatch(t *testing.T) {
	c, _ := newTestContext(t)
	assert.ErrorIs(t, c.Vertex2f(0, 0), ErrInvalidOperation)
	assert.ErrorIs(t, c.End(), ErrInvalidOperation)
	assert.ErrorIs(t, c.Begin(Primitive(99)), ErrInvalidEnum)

	require.NoError(t, c.Begin(Points))
	assert.ErrorIs(t, c.Begin(Points), ErrInvalidOperation)
}

func TestImmediateWithoutScene(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.Begin(Triangles))
	require.NoError(t, c.Vertex2f(0, 0))
	require.NoError(t, c.Vertex2f(1, 0))
	require.NoError(t, c.Vertex2f(0, 1))
	assert.ErrorIs(t, c.End(), ErrInvalidOperation)
	assert.Zero(t, drv.Count("Draw"))
}

func TestImmediateCulledBatchIsReset(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.Enable(CullFace))
	require.NoError(t, c.CullFace(FrontAndBack))
	require.NoError(t, c.StartDrawing())

	drawTriangle(t, c)
	assert.Zero(t, drv.Count("Draw"))
	assert.Equal(t, uint64(1), c.Stats().SkippedDraws)
	assert.Zero(t, c.imm.vertices())

	// Lines are not faces and are never culled.
	require.NoError(t, c.Begin(Lines))
	require.NoError(t, c.Vertex2f(0, 0))
	require.NoError(t, c.Vertex2f(1, 1))
	require.NoError(t, c.End())
	assert.Equal(t, 1, drv.Count("Draw"))

	require.NoError(t, c.Disable(CullFace))
	drawTriangle(t, c)
	assert.Equal(t, 3, drv.LastDraw().Count)
}

func TestViewProjectionComputedOnce(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.Translate(1, 2, 3))
	require.NoError(t, c.StartDrawing())

	for range 3 {
		drawTriangle(t, c)
	}
	assert.Equal(t, uint64(1), c.Stats().MatrixMuls)

	want := linear.Translate(1, 2, 3)
	for _, d := range drv.Draws {
		assert.Equal(t, want[:], d.VertexUniforms[:16])
	}

	require.NoError(t, c.MatrixMode(Projection))
	require.NoError(t, c.Scale(2, 2, 2))
	drawTriangle(t, c)
	assert.Equal(t, uint64(2), c.Stats().MatrixMuls)
	assert.Equal(t, float32(2), drv.LastDraw().VertexUniforms[0])
	assert.Equal(t, float32(2), drv.LastDraw().VertexUniforms[12])

	// The texture matrix is not part of the view-projection.
	require.NoError(t, c.MatrixMode(TextureMatrix))
	require.NoError(t, c.Translate(5, 5, 0))
	drawTriangle(t, c)
	assert.Equal(t, uint64(2), c.Stats().MatrixMuls)
}

func TestImmediateTint(t *testing.T) {
	c, drv := newTestContext(t)
	require.NoError(t, c.Enable(AlphaTest))
	require.NoError(t, c.AlphaFunc(Greater, 0.25))
	require.NoError(t, c.StartDrawing())
	drawTriangle(t, c)

	p := c.fixed.variants[variantColor]
	d := drv.LastDraw()
	require.NotNil(t, d)
	op := p.params["alpha_op"]
	ref := p.params["alpha_ref"]
	require.NotNil(t, op)
	require.NotNil(t, ref)
	assert.Equal(t, float32(Greater), d.FragmentUniforms[op.Offset])
	assert.Equal(t, float32(0.25), d.FragmentUniforms[ref.Offset])
}
