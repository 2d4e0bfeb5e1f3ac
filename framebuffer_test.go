package vitagl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attachTestFramebuffer returns a framebuffer rendering into a new w x h
// RGBA8 texture, and that texture. The display surface stays bound.
func attachTestFramebuffer(t *testing.T, c *Context, w, h int) (Framebuffer, Texture) {
	t.Helper()
	tex := uploadTestTexture(t, c, w, h)
	fbs, err := c.GenFramebuffers(1)
	require.NoError(t, err)
	require.NoError(t, c.BindFramebuffer(fbs[0]))
	require.NoError(t, c.FramebufferTexture2D(tex))
	require.NoError(t, c.BindFramebuffer(0))
	return fbs[0], tex
}

func TestFramebufferLifecycle(t *testing.T) {
	c, drv := newTestContext(t)
	fbs, err := c.GenFramebuffers(2)
	require.NoError(t, err)
	require.Len(t, fbs, 2)
	assert.True(t, c.IsFramebuffer(fbs[0]))
	assert.False(t, c.IsFramebuffer(0))

	require.NoError(t, c.BindFramebuffer(fbs[0]))
	assert.ErrorIs(t, c.StartDrawing(), ErrInvalidOperation, "no attachment yet")

	free := c.MemoryFree(MemVRAM)
	tex := uploadTestTexture(t, c, 16, 8)
	require.NoError(t, c.FramebufferTexture2D(tex))
	assert.Equal(t, 2, drv.LiveTargets())
	assert.Less(t, c.MemoryFree(MemVRAM), free)

	require.NoError(t, c.StartDrawing())
	scene := drv.Scenes[len(drv.Scenes)-1]
	info, ok := c.TextureInfo(tex)
	require.True(t, ok)
	assert.Equal(t, 16, scene.Color.Width)
	assert.Equal(t, 8, scene.Color.Height)
	assert.Equal(t, info.Addr, scene.Color.Addr)
	require.NoError(t, c.StopDrawing())

	c.DeleteFramebuffers(fbs...)
	assert.False(t, c.IsFramebuffer(fbs[0]))
	assert.Equal(t, Framebuffer(0), c.boundFB)
	assert.Equal(t, 1, drv.LiveTargets())
}

func TestFramebufferTextureErrors(t *testing.T) {
	c, _ := newTestContext(t)
	tex := uploadTestTexture(t, c, 8, 8)
	assert.ErrorIs(t, c.FramebufferTexture2D(tex), ErrInvalidOperation, "no framebuffer bound")

	fbs, err := c.GenFramebuffers(1)
	require.NoError(t, err)
	require.NoError(t, c.BindFramebuffer(fbs[0]))

	empty, err := c.GenTextures(1)
	require.NoError(t, err)
	assert.ErrorIs(t, c.FramebufferTexture2D(empty[0]), ErrInvalidOperation)

	require.NoError(t, c.BindTexture(empty[0]))
	require.NoError(t, c.TexImage2D(0, L8, 8, 8, L8, nil))
	assert.ErrorIs(t, c.FramebufferTexture2D(empty[0]), ErrInvalidOperation, "L8 is not renderable")

	assert.ErrorIs(t, c.BindFramebuffer(Framebuffer(99)), ErrInvalidOperation)
}

func TestFramebufferFollowsTextureReupload(t *testing.T) {
	c, drv := newTestContext(t)
	fb, tex := attachTestFramebuffer(t, c, 8, 8)
	info, _ := c.TextureInfo(tex)

	// Re-uploading at the same size moves the storage; the attachment
	// follows it.
	require.NoError(t, c.BindTexture(tex))
	require.NoError(t, c.TexImage2D(0, RGBA8, 8, 8, RGBA8, nil))
	moved, _ := c.TextureInfo(tex)
	require.NotEqual(t, info.Addr, moved.Addr)

	require.NoError(t, c.BindFramebuffer(fb))
	require.NoError(t, c.StartDrawing())
	assert.Equal(t, moved.Addr, drv.Scenes[0].Color.Addr)
	require.NoError(t, c.StopDrawing())

	// A different size leaves the framebuffer incomplete.
	require.NoError(t, c.TexImage2D(0, RGBA8, 4, 4, RGBA8, nil))
	assert.ErrorIs(t, c.StartDrawing(), ErrInvalidOperation)
}
