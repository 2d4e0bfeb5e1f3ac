// Package linear implements float32 4x4 matrices and matrix stacks.
//
// Matrices are column-major: element (row r, column c) lives at index
// c*4+r, matching the legacy API's LoadMatrix layout.
package linear

import (
	"errors"

	"github.com/chewxy/math32"
)

// Mat4 is a column-major 4x4 matrix.
type Mat4 [16]float32

// Vec4 is a homogeneous vector.
type Vec4 [4]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns the element at row r, column c.
func (m *Mat4) At(r, c int) float32 { return m[c*4+r] }

// Mul returns m * n.
func (m *Mat4) Mul(n *Mat4) Mat4 {
	var out Mat4
	for c := range 4 {
		for r := range 4 {
			var s float32
			for k := range 4 {
				s += m[k*4+r] * n[c*4+k]
			}
			out[c*4+r] = s
		}
	}
	return out
}

// Transform returns m * v.
func (m *Mat4) Transform(v Vec4) Vec4 {
	var out Vec4
	for r := range 4 {
		out[r] = m[r]*v[0] + m[4+r]*v[1] + m[8+r]*v[2] + m[12+r]*v[3]
	}
	return out
}

// Transpose returns the transpose of m.
func (m *Mat4) Transpose() Mat4 {
	var out Mat4
	for c := range 4 {
		for r := range 4 {
			out[r*4+c] = m[c*4+r]
		}
	}
	return out
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

// Scale returns a scaling matrix.
func Scale(x, y, z float32) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = x, y, z
	return m
}

// Rotate returns a rotation of angle degrees around axis (x, y, z). A zero
// axis yields the identity.
func Rotate(angle, x, y, z float32) Mat4 {
	l := math32.Sqrt(x*x + y*y + z*z)
	if l == 0 {
		return Identity()
	}
	x, y, z = x/l, y/l, z/l
	rad := angle * math32.Pi / 180
	s, c := math32.Sin(rad), math32.Cos(rad)
	ic := 1 - c

	return Mat4{
		x*x*ic + c, y*x*ic + z*s, x*z*ic - y*s, 0,
		x*y*ic - z*s, y*y*ic + c, y*z*ic + x*s, 0,
		x*z*ic + y*s, y*z*ic - x*s, z*z*ic + c, 0,
		0, 0, 0, 1,
	}
}

// ErrDegenerate is returned for projections with empty extents.
var ErrDegenerate = errors.New("linear: degenerate projection")

// Ortho returns an orthographic projection.
func Ortho(left, right, bottom, top, near, far float32) (Mat4, error) {
	if left == right || bottom == top || near == far {
		return Mat4{}, ErrDegenerate
	}
	m := Identity()
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[10] = -2 / (far - near)
	m[12] = -(right + left) / (right - left)
	m[13] = -(top + bottom) / (top - bottom)
	m[14] = -(far + near) / (far - near)
	return m, nil
}

// Frustum returns a perspective projection for the given clip planes.
func Frustum(left, right, bottom, top, near, far float32) (Mat4, error) {
	if left == right || bottom == top || near == far || near <= 0 || far <= 0 {
		return Mat4{}, ErrDegenerate
	}
	var m Mat4
	m[0] = 2 * near / (right - left)
	m[5] = 2 * near / (top - bottom)
	m[8] = (right + left) / (right - left)
	m[9] = (top + bottom) / (top - bottom)
	m[10] = -(far + near) / (far - near)
	m[11] = -1
	m[14] = -2 * far * near / (far - near)
	return m, nil
}

// Perspective returns a perspective projection from a vertical field of
// view in degrees.
func Perspective(fovy, aspect, near, far float32) (Mat4, error) {
	if aspect == 0 {
		return Mat4{}, ErrDegenerate
	}
	top := near * math32.Tan(fovy*math32.Pi/360)
	return Frustum(-top*aspect, top*aspect, -top, top, near, far)
}

// Invert returns the inverse of m. The second result is false when m is
// singular.
func (m *Mat4) Invert() (Mat4, bool) {
	var inv Mat4
	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] + m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] - m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] + m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] - m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]
	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] - m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] + m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] - m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] + m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]
	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] + m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] - m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] + m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] - m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]
	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] - m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] + m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] - m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] + m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]

	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	if det == 0 {
		return Mat4{}, false
	}
	det = 1 / det
	for i := range inv {
		inv[i] *= det
	}
	return inv, true
}
