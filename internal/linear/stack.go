package linear

import "errors"

// Stack errors.
var (
	ErrStackOverflow  = errors.New("linear: matrix stack overflow")
	ErrStackUnderflow = errors.New("linear: matrix stack underflow")
)

// Stack is a bounded matrix stack whose top is the current matrix.
type Stack struct {
	top   Mat4
	saved []Mat4
	depth int
}

// NewStack returns a stack holding depth entries including the current
// matrix, initialised to identity.
func NewStack(depth int) *Stack {
	return &Stack{top: Identity(), saved: make([]Mat4, 0, max(depth-1, 0)), depth: depth}
}

// Top returns the current matrix.
func (s *Stack) Top() *Mat4 { return &s.top }

// Load replaces the current matrix.
func (s *Stack) Load(m Mat4) { s.top = m }

// Mul post-multiplies the current matrix by m.
func (s *Stack) Mul(m Mat4) { s.top = s.top.Mul(&m) }

// Push duplicates the current matrix.
func (s *Stack) Push() error {
	if len(s.saved)+1 >= s.depth {
		return ErrStackOverflow
	}
	s.saved = append(s.saved, s.top)
	return nil
}

// Pop restores the previously pushed matrix.
func (s *Stack) Pop() error {
	n := len(s.saved)
	if n == 0 {
		return ErrStackUnderflow
	}
	s.top = s.saved[n-1]
	s.saved = s.saved[:n-1]
	return nil
}

// Depth returns the number of entries including the current matrix.
func (s *Stack) Depth() int { return len(s.saved) + 1 }
