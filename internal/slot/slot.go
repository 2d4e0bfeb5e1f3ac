// Package slot provides fixed-capacity, generation-checked handle tables.
//
// A handle packs a slot index in its low 16 bits and the slot generation
// in the high 16 bits. The zero handle is never issued. Releasing a slot
// bumps its generation, so stale handles stop resolving instead of
// aliasing whatever object reuses the slot.
package slot

import "math/bits"

// Handle is an opaque table reference. Zero is invalid.
type Handle uint32

const indexBits = 16

// Index returns the slot index encoded in h.
func (h Handle) Index() int { return int(h&(1<<indexBits-1)) - 1 }

func (h Handle) generation() uint16 { return uint16(h >> indexBits) }

func makeHandle(index int, gen uint16) Handle {
	return Handle(uint32(gen)<<indexBits | uint32(index+1))
}

// Table stores up to a fixed number of values of type T.
type Table[T any] struct {
	vals []T
	gens []uint16
	used []uint64 // occupancy bitmap
	n    int
}

// New returns a table holding at most capacity values. Capacity is capped
// at 65535.
func New[T any](capacity int) *Table[T] {
	capacity = min(capacity, 1<<indexBits-1)
	return &Table[T]{
		vals: make([]T, capacity),
		gens: make([]uint16, capacity),
		used: make([]uint64, (capacity+63)/64),
	}
}

// Insert stores v in the lowest free slot. It returns 0 and false when the
// table is full.
func (t *Table[T]) Insert(v T) (Handle, bool) {
	for w, word := range t.used {
		if word == ^uint64(0) {
			continue
		}
		i := w*64 + bits.TrailingZeros64(^word)
		if i >= len(t.vals) {
			break
		}
		t.used[w] |= 1 << (i % 64)
		t.vals[i] = v
		t.n++
		return makeHandle(i, t.gens[i]), true
	}
	return 0, false
}

// Get returns the value for h.
func (t *Table[T]) Get(h Handle) (T, bool) {
	i, ok := t.resolve(h)
	if !ok {
		var zero T
		return zero, false
	}
	return t.vals[i], true
}

// Ptr returns a pointer to the value for h, or nil.
func (t *Table[T]) Ptr(h Handle) *T {
	i, ok := t.resolve(h)
	if !ok {
		return nil
	}
	return &t.vals[i]
}

// Set replaces the value for h.
func (t *Table[T]) Set(h Handle, v T) bool {
	i, ok := t.resolve(h)
	if ok {
		t.vals[i] = v
	}
	return ok
}

// Remove releases h and returns the value it held.
func (t *Table[T]) Remove(h Handle) (T, bool) {
	var zero T
	i, ok := t.resolve(h)
	if !ok {
		return zero, false
	}
	v := t.vals[i]
	t.vals[i] = zero
	t.used[i/64] &^= 1 << (i % 64)
	t.gens[i]++
	t.n--
	return v, true
}

// Len returns the number of occupied slots.
func (t *Table[T]) Len() int { return t.n }

// Cap returns the table capacity.
func (t *Table[T]) Cap() int { return len(t.vals) }

// Each calls fn for every occupied slot in index order.
func (t *Table[T]) Each(fn func(h Handle, v *T)) {
	for i := range t.vals {
		if t.used[i/64]&(1<<(i%64)) != 0 {
			fn(makeHandle(i, t.gens[i]), &t.vals[i])
		}
	}
}

func (t *Table[T]) resolve(h Handle) (int, bool) {
	i := h.Index()
	if h == 0 || i < 0 || i >= len(t.vals) {
		return 0, false
	}
	if t.used[i/64]&(1<<(i%64)) == 0 || t.gens[i] != h.generation() {
		return 0, false
	}
	return i, true
}
