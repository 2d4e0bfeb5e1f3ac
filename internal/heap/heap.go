// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package heap implements the persistent typed-arena allocator.
//
// A Heap manages up to three disjoint memory arenas (VRAM, RAM and
// physically contiguous RAM). Every arena is reserved once at creation and
// carved into blocks through an address-ordered free list. Allocations fall
// back across arena types when the preferred one is exhausted, and can
// optionally fall back to the Go heap as a last tier.
//
// A Heap is not safe for concurrent use.
package heap

import (
	"container/list"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Heap errors.
var (
	// ErrExhausted is returned when no tier can satisfy an allocation.
	ErrExhausted = errors.New("heap: memory exhausted")

	// ErrUnknownBlock is returned when freeing a block the heap does not own.
	ErrUnknownBlock = errors.New("heap: unknown block")

	// ErrInvalidSize is returned for non-positive sizes or bad alignments.
	ErrInvalidSize = errors.New("heap: invalid size or alignment")

	// ErrDuplicateArena is returned when two arena specs share a type.
	ErrDuplicateArena = errors.New("heap: duplicate arena type")
)

// Type tags the arena a block lives in.
type Type uint8

const (
	// VRAM is fast GPU-local memory.
	VRAM Type = iota
	// RAM is general purpose mapped RAM.
	RAM
	// Phycont is slow, physically contiguous RAM.
	Phycont
	// External is the Go heap fallback tier.
	External

	numTypes
)

var typeNames = [...]string{"vram", "ram", "phycont", "external"}

// String returns the lower-case name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Provider reserves the backing memory of an arena. It is called once per
// arena when the heap is created.
type Provider interface {
	Reserve(t Type, size int) (mem []byte, base uint64, err error)
}

// ArenaSpec describes one arena to reserve.
type ArenaSpec struct {
	Type Type
	Size int
}

// Block is an allocation handed out by the heap.
type Block struct {
	// Addr is the stable virtual address of the first byte.
	Addr uint64
	// Offset is the byte offset inside the owning arena.
	Offset int
	// Size is the block length in bytes.
	Size int
	// Type is the arena the block was carved from.
	Type Type

	mem []byte
}

// Bytes returns the block's backing memory.
func (b Block) Bytes() []byte { return b.mem }

// IsZero reports whether b is the zero Block.
func (b Block) IsZero() bool { return b.mem == nil && b.Size == 0 }

// span is a free-list node.
type span struct {
	addr   uint64
	offset int
	size   int
}

type arena struct {
	typ   Type
	mem   []byte
	base  uint64
	free  *list.List // of *span, address ordered
	alloc map[uint64]*span
	avail int
}

// Heap is the typed-arena allocator.
type Heap struct {
	arenas   [numTypes]*arena
	external map[uint64][]byte
	nextExt  uint64
	extBytes int
	extLimit int
	fallback bool
	logger   *slog.Logger
}

// Option configures a Heap.
type Option func(*Heap)

// WithExternalFallback enables the Go heap as the final allocation tier.
// A limit of zero means unlimited.
func WithExternalFallback(limit int) Option {
	return func(h *Heap) {
		h.fallback = true
		h.extLimit = limit
	}
}

// WithLogger sets the logger used for fallback and exhaustion diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(h *Heap) {
		if l != nil {
			h.logger = l
		}
	}
}

// externalBase is the first synthetic address used for Go heap blocks.
const externalBase uint64 = 0xF000_0000_0000

// New reserves the given arenas through p and returns a heap over them.
func New(p Provider, specs []ArenaSpec, opts ...Option) (*Heap, error) {
	h := &Heap{
		external: make(map[uint64][]byte),
		nextExt:  externalBase,
		logger:   slog.New(nopHandler{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	for _, s := range specs {
		if s.Type >= External {
			return nil, fmt.Errorf("heap: arena type %v cannot be reserved", s.Type)
		}
		if s.Size <= 0 {
			return nil, fmt.Errorf("heap: arena %v: %w", s.Type, ErrInvalidSize)
		}
		if h.arenas[s.Type] != nil {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateArena, s.Type)
		}
		mem, base, err := p.Reserve(s.Type, s.Size)
		if err != nil {
			return nil, fmt.Errorf("heap: reserve %v arena: %w", s.Type, err)
		}
		if len(mem) < s.Size {
			return nil, fmt.Errorf("heap: reserve %v arena: provider returned %d of %d bytes", s.Type, len(mem), s.Size)
		}
		a := &arena{
			typ:   s.Type,
			mem:   mem[:s.Size],
			base:  base,
			free:  list.New(),
			alloc: make(map[uint64]*span),
			avail: s.Size,
		}
		a.free.PushBack(&span{addr: base, offset: 0, size: s.Size})
		h.arenas[s.Type] = a
		h.logger.Info("heap: arena reserved", "type", s.Type, "size", s.Size, "base", fmt.Sprintf("%#x", base))
	}
	return h, nil
}

// tiers returns the fallback order starting at preferred.
func tiers(preferred Type) []Type {
	switch preferred {
	case VRAM:
		return []Type{VRAM, RAM, Phycont}
	case RAM:
		return []Type{RAM, VRAM, Phycont}
	case Phycont:
		return []Type{Phycont, RAM, VRAM}
	default:
		return nil
	}
}

// Alloc returns a block of size bytes aligned to align. The preferred type
// is tried first, then the other primary type, then Phycont, then the Go
// heap when external fallback is enabled.
func (h *Heap) Alloc(size, align int, preferred Type) (Block, error) {
	if size <= 0 || align <= 0 || align&(align-1) != 0 {
		return Block{}, ErrInvalidSize
	}

	for i, t := range tiers(preferred) {
		a := h.arenas[t]
		if a == nil {
			continue
		}
		// Admission check: never walk a list that cannot fit the request.
		if size > a.avail {
			continue
		}
		if b, ok := a.take(size, align); ok {
			if i > 0 {
				h.logger.Debug("heap: allocation fell back", "preferred", preferred, "actual", t, "size", size)
			}
			return b, nil
		}
	}

	if h.fallback || preferred == External {
		if h.extLimit > 0 && h.extBytes+size > h.extLimit {
			return Block{}, fmt.Errorf("alloc %d bytes: %w", size, ErrExhausted)
		}
		mem := make([]byte, size)
		addr := h.nextExt
		h.nextExt += uint64(size+align-1) &^ uint64(align-1)
		h.external[addr] = mem
		h.extBytes += size
		h.logger.Warn("heap: using external memory", "preferred", preferred, "size", size)
		return Block{Addr: addr, Size: size, Type: External, mem: mem}, nil
	}

	h.logger.Warn("heap: exhausted", "preferred", preferred, "size", size)
	return Block{}, fmt.Errorf("alloc %d bytes: %w", size, ErrExhausted)
}

// take carves size bytes from the first free span that fits once aligned.
// The leading skip fragment and trailing remainder stay in the free list
// in place of the consumed span, keeping the list address ordered.
func (a *arena) take(size, align int) (Block, bool) {
	for e := a.free.Front(); e != nil; e = e.Next() {
		s := e.Value.(*span)
		aligned := alignUp(a.base+uint64(s.offset), uint64(align))
		skip := int(aligned - (a.base + uint64(s.offset)))
		if skip+size > s.size {
			continue
		}

		rest := s.size - skip - size
		if skip > 0 {
			a.free.InsertBefore(&span{addr: s.addr, offset: s.offset, size: skip}, e)
		}
		if rest > 0 {
			a.free.InsertAfter(&span{addr: aligned + uint64(size), offset: s.offset + skip + size, size: rest}, e)
		}
		a.free.Remove(e)

		body := &span{addr: aligned, offset: s.offset + skip, size: size}
		a.alloc[body.addr] = body
		a.avail -= size
		return Block{
			Addr:   body.addr,
			Offset: body.offset,
			Size:   size,
			Type:   a.typ,
			mem:    a.mem[body.offset : body.offset+size : body.offset+size],
		}, true
	}
	return Block{}, false
}

// Free returns b to the heap.
func (h *Heap) Free(b Block) error {
	if b.Type == External {
		mem, ok := h.external[b.Addr]
		if !ok {
			return fmt.Errorf("free %#x: %w", b.Addr, ErrUnknownBlock)
		}
		delete(h.external, b.Addr)
		h.extBytes -= len(mem)
		return nil
	}
	if b.Type >= numTypes || h.arenas[b.Type] == nil {
		return fmt.Errorf("free %#x (%v): %w", b.Addr, b.Type, ErrUnknownBlock)
	}
	a := h.arenas[b.Type]
	s, ok := a.alloc[b.Addr]
	if !ok {
		return fmt.Errorf("free %#x (%v): %w", b.Addr, b.Type, ErrUnknownBlock)
	}
	delete(a.alloc, b.Addr)
	a.avail += s.size
	a.insert(s)
	return nil
}

// insert places s in address order and merges it with contiguous
// neighbours. Two spans merge only when they touch both in address and in
// arena offset.
func (a *arena) insert(s *span) {
	var next *list.Element
	for e := a.free.Front(); e != nil; e = e.Next() {
		if e.Value.(*span).addr > s.addr {
			next = e
			break
		}
	}

	var cur *list.Element
	if next != nil {
		cur = a.free.InsertBefore(s, next)
	} else {
		cur = a.free.PushBack(s)
	}

	if prev := cur.Prev(); prev != nil && adjacent(prev.Value.(*span), s) {
		p := prev.Value.(*span)
		p.size += s.size
		a.free.Remove(cur)
		cur = prev
		s = p
	}
	if nxt := cur.Next(); nxt != nil && adjacent(s, nxt.Value.(*span)) {
		s.size += nxt.Value.(*span).size
		a.free.Remove(nxt)
	}
}

func adjacent(lo, hi *span) bool {
	return lo.addr+uint64(lo.size) == hi.addr && lo.offset+lo.size == hi.offset
}

// FreeSpace returns the number of free bytes of type t.
func (h *Heap) FreeSpace(t Type) int {
	if t == External {
		if !h.fallback || h.extLimit == 0 {
			return 0
		}
		return h.extLimit - h.extBytes
	}
	if t >= numTypes || h.arenas[t] == nil {
		return 0
	}
	return h.arenas[t].avail
}

// Capacity returns the reserved size of the arena of type t.
func (h *Heap) Capacity(t Type) int {
	if t >= External || h.arenas[t] == nil {
		return 0
	}
	return len(h.arenas[t].mem)
}

// Has reports whether an arena of type t was reserved.
func (h *Heap) Has(t Type) bool {
	return t < External && h.arenas[t] != nil
}

// ArenaStats describes one arena.
type ArenaStats struct {
	Type       Type
	Capacity   int
	FreeBytes  int
	UsedBytes  int
	FreeBlocks int
	UsedBlocks int
}

// Stats holds heap usage statistics.
type Stats struct {
	Arenas        []ArenaStats
	ExternalBytes int
	ExternalCount int
}

// String returns a human-readable summary.
func (s Stats) String() string {
	var b strings.Builder
	b.WriteString("Heap[")
	for i, a := range s.Arenas {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v %d/%d KB used, %d free blocks", a.Type, a.UsedBytes/1024, a.Capacity/1024, a.FreeBlocks)
	}
	if s.ExternalCount > 0 {
		fmt.Fprintf(&b, ", external %d KB in %d blocks", s.ExternalBytes/1024, s.ExternalCount)
	}
	b.WriteString("]")
	return b.String()
}

// Stats returns current usage statistics.
func (h *Heap) Stats() Stats {
	var st Stats
	for _, a := range h.arenas {
		if a == nil {
			continue
		}
		st.Arenas = append(st.Arenas, ArenaStats{
			Type:       a.typ,
			Capacity:   len(a.mem),
			FreeBytes:  a.avail,
			UsedBytes:  len(a.mem) - a.avail,
			FreeBlocks: a.free.Len(),
			UsedBlocks: len(a.alloc),
		})
	}
	st.ExternalBytes = h.extBytes
	st.ExternalCount = len(h.external)
	return st
}

// Check verifies the heap's structural invariants: free plus allocated
// bytes equal capacity, the free list is address ordered, the free counter
// matches the list, and no two free spans are mergeable.
func (h *Heap) Check() error {
	for _, a := range h.arenas {
		if a == nil {
			continue
		}
		var free, used int
		var prev *span
		for e := a.free.Front(); e != nil; e = e.Next() {
			s := e.Value.(*span)
			free += s.size
			if prev != nil {
				if prev.addr >= s.addr {
					return fmt.Errorf("heap: %v free list out of order at %#x", a.typ, s.addr)
				}
				if adjacent(prev, s) {
					return fmt.Errorf("heap: %v free spans %#x and %#x not coalesced", a.typ, prev.addr, s.addr)
				}
			}
			prev = s
		}
		for _, s := range a.alloc {
			used += s.size
		}
		if free != a.avail {
			return fmt.Errorf("heap: %v free counter %d, list holds %d", a.typ, a.avail, free)
		}
		if free+used != len(a.mem) {
			return fmt.Errorf("heap: %v free %d + used %d != capacity %d", a.typ, free, used, len(a.mem))
		}
	}
	return nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
