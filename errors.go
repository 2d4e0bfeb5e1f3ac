package vitagl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/vitagl/internal/heap"
	"github.com/gogpu/vitagl/internal/linear"
	"github.com/gogpu/vitagl/internal/pool"
)

// ErrorCode is the value reported by [Context.GetError].
type ErrorCode uint8

// Error codes.
const (
	NoError ErrorCode = iota
	InvalidEnum
	InvalidValue
	InvalidOperation
	StackOverflow
	StackUnderflow
	OutOfMemory
)

var errorCodeNames = [...]string{
	NoError:          "no error",
	InvalidEnum:      "invalid enum",
	InvalidValue:     "invalid value",
	InvalidOperation: "invalid operation",
	StackOverflow:    "stack overflow",
	StackUnderflow:   "stack underflow",
	OutOfMemory:      "out of memory",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", c)
}

// Sentinel errors returned by Context methods. Each maps to one ErrorCode.
var (
	ErrInvalidEnum      = errors.New("vitagl: invalid enum")
	ErrInvalidValue     = errors.New("vitagl: invalid value")
	ErrInvalidOperation = errors.New("vitagl: invalid operation")
	ErrStackOverflow    = errors.New("vitagl: stack overflow")
	ErrStackUnderflow   = errors.New("vitagl: stack underflow")
	ErrOutOfMemory      = errors.New("vitagl: out of memory")

	// ErrClosed is returned by every call on a closed Context.
	ErrClosed = errors.New("vitagl: context closed")
)

// Code returns the ErrorCode an error returned by a Context method maps to.
// Exhaustion wins over any other sentinel in the chain. Errors that do not
// belong to the vitagl taxonomy map to InvalidOperation; nil maps to NoError.
func Code(err error) ErrorCode {
	switch {
	case err == nil:
		return NoError
	case errors.Is(err, ErrOutOfMemory), errors.Is(err, heap.ErrExhausted), errors.Is(err, pool.ErrExhausted):
		return OutOfMemory
	case errors.Is(err, ErrInvalidEnum):
		return InvalidEnum
	case errors.Is(err, ErrInvalidValue):
		return InvalidValue
	case errors.Is(err, ErrStackOverflow), errors.Is(err, linear.ErrStackOverflow):
		return StackOverflow
	case errors.Is(err, ErrStackUnderflow), errors.Is(err, linear.ErrStackUnderflow):
		return StackUnderflow
	default:
		return InvalidOperation
	}
}

// GetError returns the last recorded error code and clears it.
func (c *Context) GetError() ErrorCode {
	code := c.lastError
	c.lastError = NoError
	return code
}

// fail records err in the sticky error slot and returns it wrapped with op.
// A nil err is passed through.
func (c *Context) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	code := Code(err)
	c.lastError = code
	level := slog.LevelDebug
	if code == OutOfMemory {
		level = slog.LevelWarn
	}
	c.logger.Log(context.Background(), level, "vitagl: call failed", "op", op, "code", code.String(), "err", err)
	return fmt.Errorf("%s: %w", op, err)
}

// failf records code and returns a formatted error wrapping the matching
// sentinel.
func (c *Context) failf(op string, sentinel error, format string, args ...any) error {
	return c.fail(op, fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

// outOfMemory wraps an allocator error so that both the allocator sentinel
// and ErrOutOfMemory match.
func outOfMemory(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOutOfMemory, what, err)
}
