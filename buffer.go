package vitagl

import (
	"github.com/gogpu/vitagl/internal/heap"
	"github.com/gogpu/vitagl/internal/slot"
)

// Buffer names a buffer object. Zero is no buffer.
type Buffer uint32

func (b Buffer) handle() slot.Handle { return slot.Handle(b) }

const bufferAlign = 16

type buffer struct {
	block  heap.Block
	size   int
	mapped bool
}

// GenBuffers creates n buffer names.
func (c *Context) GenBuffers(n int) ([]Buffer, error) {
	if n < 0 {
		return nil, c.failf("GenBuffers", ErrInvalidValue, "n = %d", n)
	}
	out := make([]Buffer, 0, n)
	for range n {
		h, ok := c.buffers.Insert(buffer{})
		if !ok {
			return out, c.failf("GenBuffers", ErrInvalidOperation, "buffer table full (%d)", c.buffers.Cap())
		}
		out = append(out, Buffer(h))
	}
	return out, nil
}

// DeleteBuffers frees each buffer and unbinds it from every target.
func (c *Context) DeleteBuffers(bs ...Buffer) {
	for _, b := range bs {
		if b == 0 {
			continue
		}
		buf, ok := c.buffers.Remove(b.handle())
		if !ok {
			continue
		}
		if !buf.block.IsZero() {
			c.freeBlock("buffer", buf.block)
		}
		if c.arrayBuffer == b {
			c.arrayBuffer = 0
		}
		if c.elementBuffer == b {
			c.elementBuffer = 0
		}
	}
}

// IsBuffer reports whether b names a live buffer.
func (c *Context) IsBuffer(b Buffer) bool {
	return b != 0 && c.buffers.Ptr(b.handle()) != nil
}

// BindBuffer binds b to target. Zero unbinds.
func (c *Context) BindBuffer(target BufferTarget, b Buffer) error {
	const op = "BindBuffer"
	if b != 0 && c.buffers.Ptr(b.handle()) == nil {
		return c.failf(op, ErrInvalidOperation, "unknown buffer %d", b)
	}
	switch target {
	case ArrayBuffer:
		c.arrayBuffer = b
	case ElementArrayBuffer:
		c.elementBuffer = b
	default:
		return c.failf(op, ErrInvalidEnum, "target %d", target)
	}
	return nil
}

func (c *Context) targetBuffer(op string, target BufferTarget) (*buffer, error) {
	var b Buffer
	switch target {
	case ArrayBuffer:
		b = c.arrayBuffer
	case ElementArrayBuffer:
		b = c.elementBuffer
	default:
		return nil, c.failf(op, ErrInvalidEnum, "target %d", target)
	}
	if b == 0 {
		return nil, c.failf(op, ErrInvalidOperation, "no buffer bound")
	}
	buf := c.buffers.Ptr(b.handle())
	if buf == nil {
		return nil, c.failf(op, ErrInvalidOperation, "stale buffer %d", b)
	}
	return buf, nil
}

// BufferData replaces the storage of the buffer bound to target with size
// bytes, initialized from data when it is not nil.
func (c *Context) BufferData(target BufferTarget, size int, data []byte) error {
	const op = "BufferData"
	buf, err := c.targetBuffer(op, target)
	if err != nil {
		return err
	}
	if size <= 0 || (data != nil && len(data) < size) {
		return c.failf(op, ErrInvalidValue, "size %d with %d bytes", size, len(data))
	}
	if buf.mapped {
		return c.failf(op, ErrInvalidOperation, "buffer is mapped")
	}
	b, err := c.heap.Alloc(size, bufferAlign, heap.VRAM)
	if err != nil {
		return c.fail(op, outOfMemory("buffer", err))
	}
	if data != nil {
		copy(b.Bytes(), data[:size])
	}
	if !buf.block.IsZero() {
		c.freeBlock("buffer", buf.block)
	}
	buf.block, buf.size = b, size
	c.logger.Debug("vitagl: buffer allocated", "size", size, "type", b.Type)
	return nil
}

// BufferSubData overwrites len(data) bytes at offset.
func (c *Context) BufferSubData(target BufferTarget, offset int, data []byte) error {
	const op = "BufferSubData"
	buf, err := c.targetBuffer(op, target)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > buf.size {
		return c.failf(op, ErrInvalidValue, "range %d+%d outside %d", offset, len(data), buf.size)
	}
	copy(buf.block.Bytes()[offset:], data)
	return nil
}

// MapBuffer returns the storage of the buffer bound to target for direct
// writes. The slice stays valid until the buffer is reallocated or deleted.
func (c *Context) MapBuffer(target BufferTarget) ([]byte, error) {
	const op = "MapBuffer"
	buf, err := c.targetBuffer(op, target)
	if err != nil {
		return nil, err
	}
	if buf.block.IsZero() {
		return nil, c.failf(op, ErrInvalidOperation, "buffer has no storage")
	}
	if buf.mapped {
		return nil, c.failf(op, ErrInvalidOperation, "buffer already mapped")
	}
	buf.mapped = true
	return buf.block.Bytes()[:buf.size], nil
}

// UnmapBuffer ends a MapBuffer access.
func (c *Context) UnmapBuffer(target BufferTarget) error {
	const op = "UnmapBuffer"
	buf, err := c.targetBuffer(op, target)
	if err != nil {
		return err
	}
	if !buf.mapped {
		return c.failf(op, ErrInvalidOperation, "buffer not mapped")
	}
	buf.mapped = false
	return nil
}
