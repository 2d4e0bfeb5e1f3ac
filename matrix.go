package vitagl

import (
	"fmt"

	"github.com/gogpu/vitagl/internal/linear"
)

// matrixState holds the three matrix stacks and the cached
// view-projection product.
type matrixState struct {
	mode   MatrixMode
	stacks [3]*linear.Stack

	wvp   linear.Mat4
	dirty bool
}

func newMatrixState() matrixState {
	return matrixState{
		stacks: [3]*linear.Stack{
			ModelView:     linear.NewStack(MatrixStackDepth),
			Projection:    linear.NewStack(MatrixStackDepth),
			TextureMatrix: linear.NewStack(MatrixStackDepth),
		},
		wvp: linear.Identity(),
	}
}

// viewProjection returns projection * model-view, recomputing it only
// when a matrix changed since the last draw.
func (c *Context) viewProjection() *linear.Mat4 {
	m := &c.matrix
	if m.dirty {
		m.wvp = m.stacks[Projection].Top().Mul(m.stacks[ModelView].Top())
		m.dirty = false
		c.stats.MatrixMuls++
	}
	return &m.wvp
}

// matrixOp guards every matrix-stack alteration: it fails while an
// immediate-mode batch is accumulating and returns the current stack.
func (c *Context) matrixOp(op string) (*linear.Stack, error) {
	if c.imm.active {
		return nil, c.failf(op, ErrInvalidOperation, "inside Begin/End")
	}
	return c.matrix.stacks[c.matrix.mode], nil
}

func (c *Context) touch() {
	if c.matrix.mode != TextureMatrix {
		c.matrix.dirty = true
	}
}

// MatrixMode selects the stack affected by subsequent matrix calls.
func (c *Context) MatrixMode(mode MatrixMode) error {
	if mode > TextureMatrix {
		return c.failf("MatrixMode", ErrInvalidEnum, "mode %d", mode)
	}
	if _, err := c.matrixOp("MatrixMode"); err != nil {
		return err
	}
	c.matrix.mode = mode
	return nil
}

// LoadIdentity replaces the current matrix with the identity.
func (c *Context) LoadIdentity() error {
	return c.LoadMatrix(linear.Identity())
}

// LoadMatrix replaces the current matrix. m is column-major.
func (c *Context) LoadMatrix(m [16]float32) error {
	s, err := c.matrixOp("LoadMatrix")
	if err != nil {
		return err
	}
	s.Load(m)
	c.touch()
	return nil
}

// MultMatrix post-multiplies the current matrix by m.
func (c *Context) MultMatrix(m [16]float32) error {
	s, err := c.matrixOp("MultMatrix")
	if err != nil {
		return err
	}
	s.Mul(m)
	c.touch()
	return nil
}

// Translate multiplies the current matrix by a translation.
func (c *Context) Translate(x, y, z float32) error {
	return c.MultMatrix(linear.Translate(x, y, z))
}

// Scale multiplies the current matrix by a scale.
func (c *Context) Scale(x, y, z float32) error {
	return c.MultMatrix(linear.Scale(x, y, z))
}

// Rotate multiplies the current matrix by a rotation of angle degrees
// around the axis (x, y, z).
func (c *Context) Rotate(angle, x, y, z float32) error {
	return c.MultMatrix(linear.Rotate(angle, x, y, z))
}

// Ortho multiplies the current matrix by an orthographic projection.
func (c *Context) Ortho(left, right, bottom, top, near, far float32) error {
	m, err := linear.Ortho(left, right, bottom, top, near, far)
	if err != nil {
		return c.failf("Ortho", ErrInvalidValue, "%v", err)
	}
	return c.MultMatrix(m)
}

// Frustum multiplies the current matrix by a perspective projection.
func (c *Context) Frustum(left, right, bottom, top, near, far float32) error {
	m, err := linear.Frustum(left, right, bottom, top, near, far)
	if err != nil {
		return c.failf("Frustum", ErrInvalidValue, "%v", err)
	}
	return c.MultMatrix(m)
}

// PerspectiveFov multiplies the current matrix by a perspective projection
// with a vertical field of view of fovy degrees.
func (c *Context) PerspectiveFov(fovy, aspect, near, far float32) error {
	m, err := linear.Perspective(fovy, aspect, near, far)
	if err != nil {
		return c.failf("PerspectiveFov", ErrInvalidValue, "%v", err)
	}
	return c.MultMatrix(m)
}

// PushMatrix duplicates the current matrix on its stack.
func (c *Context) PushMatrix() error {
	s, err := c.matrixOp("PushMatrix")
	if err != nil {
		return err
	}
	if err := s.Push(); err != nil {
		return c.fail("PushMatrix", fmt.Errorf("%w: %w", ErrStackOverflow, err))
	}
	return nil
}

// PopMatrix restores the previously pushed matrix.
func (c *Context) PopMatrix() error {
	s, err := c.matrixOp("PopMatrix")
	if err != nil {
		return err
	}
	if err := s.Pop(); err != nil {
		return c.fail("PopMatrix", fmt.Errorf("%w: %w", ErrStackUnderflow, err))
	}
	c.touch()
	return nil
}

// GetMatrix returns the top of the given stack in column-major order.
func (c *Context) GetMatrix(mode MatrixMode) [16]float32 {
	if mode > TextureMatrix {
		return linear.Identity()
	}
	return *c.matrix.stacks[mode].Top()
}
