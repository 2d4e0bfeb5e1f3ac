package vitagl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferLifecycle(t *testing.T) {
	c, _ := newTestContext(t)
	free := c.MemoryFree(MemVRAM)

	bufs, err := c.GenBuffers(2)
	require.NoError(t, err)
	require.Len(t, bufs, 2)
	assert.NotEqual(t, bufs[0], bufs[1])
	assert.True(t, c.IsBuffer(bufs[0]))
	assert.False(t, c.IsBuffer(0))

	require.NoError(t, c.BindBuffer(ArrayBuffer, bufs[0]))
	require.NoError(t, c.BufferData(ArrayBuffer, 256, nil))
	assert.Less(t, c.MemoryFree(MemVRAM), free)

	require.NoError(t, c.BufferSubData(ArrayBuffer, 4, []byte{1, 2, 3, 4}))
	data, err := c.MapBuffer(ArrayBuffer)
	require.NoError(t, err)
	assert.Len(t, data, 256)
	assert.Equal(t, []byte{1, 2, 3, 4}, data[4:8])
	require.NoError(t, c.UnmapBuffer(ArrayBuffer))

	c.DeleteBuffers(bufs...)
	assert.False(t, c.IsBuffer(bufs[0]))
	assert.Equal(t, free, c.MemoryFree(MemVRAM))
	assert.ErrorIs(t, c.BufferData(ArrayBuffer, 16, nil), ErrInvalidOperation, "deleting unbinds")
	assert.ErrorIs(t, c.BindBuffer(ArrayBuffer, bufs[1]), ErrInvalidOperation)
}

func TestBufferMapping(t *testing.T) {
	c, _ := newTestContext(t)
	bufs, err := c.GenBuffers(1)
	require.NoError(t, err)
	require.NoError(t, c.BindBuffer(ElementArrayBuffer, bufs[0]))

	_, err = c.MapBuffer(ElementArrayBuffer)
	assert.ErrorIs(t, err, ErrInvalidOperation, "no storage yet")

	require.NoError(t, c.BufferData(ElementArrayBuffer, 8, nil))
	_, err = c.MapBuffer(ElementArrayBuffer)
	require.NoError(t, err)
	_, err = c.MapBuffer(ElementArrayBuffer)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.ErrorIs(t, c.BufferData(ElementArrayBuffer, 8, nil), ErrInvalidOperation, "mapped")

	require.NoError(t, c.UnmapBuffer(ElementArrayBuffer))
	assert.ErrorIs(t, c.UnmapBuffer(ElementArrayBuffer), ErrInvalidOperation)
}

func TestBufferErrors(t *testing.T) {
	c, _ := newTestContext(t)
	_, err := c.GenBuffers(-1)
	assert.ErrorIs(t, err, ErrInvalidValue)

	assert.ErrorIs(t, c.BufferData(ArrayBuffer, 4, nil), ErrInvalidOperation)
	assert.ErrorIs(t, c.BindBuffer(BufferTarget(5), 0), ErrInvalidEnum)

	bufs, err := c.GenBuffers(1)
	require.NoError(t, err)
	require.NoError(t, c.BindBuffer(ArrayBuffer, bufs[0]))
	assert.ErrorIs(t, c.BufferData(ArrayBuffer, 0, nil), ErrInvalidValue)
	assert.ErrorIs(t, c.BufferData(ArrayBuffer, 8, []byte{1}), ErrInvalidValue)

	require.NoError(t, c.BufferData(ArrayBuffer, 8, nil))
	assert.ErrorIs(t, c.BufferSubData(ArrayBuffer, 6, []byte{1, 2, 3}), ErrInvalidValue)
	assert.ErrorIs(t, c.BufferData(ArrayBuffer, 1<<30, nil), ErrOutOfMemory)
	assert.Equal(t, OutOfMemory, c.GetError())
}
