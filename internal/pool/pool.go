// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pool implements the per-frame transient bump allocator.
//
// A Pool hands out aligned spans of one fixed arena in allocation order.
// Spans are never freed individually; Reset retires all of them at once
// and must be called once per completed frame, after the frame's GPU
// submission has been recorded.
package pool

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrExhausted is returned when an allocation does not fit the pool.
var ErrExhausted = errors.New("pool: exhausted")

// ErrInvalidAlign is returned for alignments that are not powers of two.
var ErrInvalidAlign = errors.New("pool: alignment must be a power of two")

// Span is one transient allocation.
type Span struct {
	// Offset is the aligned byte offset inside the pool.
	Offset int
	// Addr is the absolute address of the span.
	Addr uint64

	mem []byte
}

// Bytes returns the span's memory.
func (s Span) Bytes() []byte { return s.mem }

// Len returns the span length in bytes.
func (s Span) Len() int { return len(s.mem) }

// Pool is a bump allocator over one contiguous arena.
// It is not safe for concurrent use.
type Pool struct {
	mem    []byte
	base   uint64
	offset int
	peak   int
	frames uint64
}

// New returns a pool over mem whose first byte lives at address base.
func New(mem []byte, base uint64) *Pool {
	return &Pool{mem: mem, base: base}
}

// Alloc reserves size bytes aligned to align. Alignment is applied to the
// absolute address. The call fails with ErrExhausted, leaving the cursor
// unchanged, when the aligned cursor plus size would meet or exceed the
// pool capacity.
func (p *Pool) Alloc(size, align int) (Span, error) {
	if align <= 0 || align&(align-1) != 0 {
		return Span{}, ErrInvalidAlign
	}
	if size < 0 {
		return Span{}, fmt.Errorf("pool: negative size %d", size)
	}

	addr := p.base + uint64(p.offset)
	aligned := int((addr+uint64(align)-1)&^uint64(align-1) - p.base)
	if aligned+size >= len(p.mem) {
		return Span{}, fmt.Errorf("alloc %d bytes at %d of %d: %w", size, aligned, len(p.mem), ErrExhausted)
	}

	p.offset = aligned + size
	p.peak = max(p.peak, p.offset)
	return Span{
		Offset: aligned,
		Addr:   p.base + uint64(aligned),
		mem:    p.mem[aligned : aligned+size : aligned+size],
	}, nil
}

// Reset retires every span handed out since the previous reset.
func (p *Pool) Reset() {
	p.offset = 0
	p.frames++
}

// Used returns the current cursor position in bytes.
func (p *Pool) Used() int { return p.offset }

// Cap returns the pool capacity in bytes.
func (p *Pool) Cap() int { return len(p.mem) }

// Peak returns the highest cursor position observed.
func (p *Pool) Peak() int { return p.peak }

// Frames returns the number of resets.
func (p *Pool) Frames() uint64 { return p.frames }

// Base returns the pool's base address.
func (p *Pool) Base() uint64 { return p.base }

// Float32s reserves room for n float32 values aligned to 4 bytes.
func (p *Pool) Float32s(n int) (Float32Span, error) {
	s, err := p.Alloc(n*4, 4)
	if err != nil {
		return Float32Span{}, err
	}
	return Float32Span{Span: s}, nil
}

// Uint16s reserves room for n uint16 values aligned to 2 bytes.
func (p *Pool) Uint16s(n int) (Uint16Span, error) {
	s, err := p.Alloc(n*2, 2)
	if err != nil {
		return Uint16Span{}, err
	}
	return Uint16Span{Span: s}, nil
}

// Float32Span is a span viewed as little-endian float32 values.
type Float32Span struct{ Span }

// Set stores v at element i.
func (s Float32Span) Set(i int, v float32) {
	binary.LittleEndian.PutUint32(s.mem[i*4:], math.Float32bits(v))
}

// At returns element i.
func (s Float32Span) At(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(s.mem[i*4:]))
}

// Count returns the number of elements.
func (s Float32Span) Count() int { return len(s.mem) / 4 }

// Uint16Span is a span viewed as little-endian uint16 values.
type Uint16Span struct{ Span }

// Set stores v at element i.
func (s Uint16Span) Set(i int, v uint16) {
	binary.LittleEndian.PutUint16(s.mem[i*2:], v)
}

// At returns element i.
func (s Uint16Span) At(i int) uint16 {
	return binary.LittleEndian.Uint16(s.mem[i*2:])
}

// Count returns the number of elements.
func (s Uint16Span) Count() int { return len(s.mem) / 2 }
