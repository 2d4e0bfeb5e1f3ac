// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package heap

import (
	"errors"
	"math/rand"
	"testing"
)

func newTestHeap(t *testing.T, specs []ArenaSpec, opts ...Option) *Heap {
	t.Helper()
	h, err := New(HostProvider{}, specs, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func TestAllocFreeRoundTrip(t *testing.T) {
	h := newTestHeap(t, []ArenaSpec{{Type: RAM, Size: 1024}})

	b, err := h.Alloc(100, 1, RAM)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	if got := h.FreeSpace(RAM); got != 924 {
		t.Errorf("FreeSpace(RAM) = %d, want 924", got)
	}
	if len(b.Bytes()) != 100 {
		t.Errorf("len(Bytes()) = %d, want 100", len(b.Bytes()))
	}

	if err := h.Free(b); err != nil {
		t.Fatalf("Free() error = %v", err)
	}
	if got := h.FreeSpace(RAM); got != 1024 {
		t.Errorf("FreeSpace(RAM) = %d, want 1024", got)
	}
	st := h.Stats()
	if st.Arenas[0].FreeBlocks != 1 {
		t.Errorf("FreeBlocks = %d, want 1", st.Arenas[0].FreeBlocks)
	}
	if err := h.Check(); err != nil {
		t.Error(err)
	}
}

func TestAllocAlignmentSplit(t *testing.T) {
	h := newTestHeap(t, []ArenaSpec{{Type: VRAM, Size: 4096}})

	a, err := h.Alloc(10, 1, VRAM)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Alloc(64, 256, VRAM)
	if err != nil {
		t.Fatal(err)
	}
	if b.Addr%256 != 0 {
		t.Errorf("Addr = %#x, not 256-aligned", b.Addr)
	}
	// Skip fragment after a, remainder after b.
	if got := h.Stats().Arenas[0].FreeBlocks; got != 2 {
		t.Errorf("FreeBlocks = %d, want 2", got)
	}
	if err := h.Check(); err != nil {
		t.Error(err)
	}

	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}
	if err := h.Free(b); err != nil {
		t.Fatal(err)
	}
	if got := h.Stats().Arenas[0].FreeBlocks; got != 1 {
		t.Errorf("FreeBlocks after free = %d, want 1", got)
	}
	if err := h.Check(); err != nil {
		t.Error(err)
	}
}

func TestAllocFallback(t *testing.T) {
	tests := []struct {
		name      string
		specs     []ArenaSpec
		preferred Type
		size      int
		want      Type
	}{
		{"preferred fits", []ArenaSpec{{VRAM, 256}, {RAM, 256}}, VRAM, 100, VRAM},
		{"vram to ram", []ArenaSpec{{VRAM, 64}, {RAM, 256}}, VRAM, 100, RAM},
		{"ram to vram", []ArenaSpec{{VRAM, 256}, {RAM, 64}}, RAM, 100, VRAM},
		{"primary to phycont", []ArenaSpec{{VRAM, 64}, {RAM, 64}, {Phycont, 256}}, VRAM, 100, Phycont},
		{"missing arena", []ArenaSpec{{RAM, 256}}, VRAM, 100, RAM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHeap(t, tt.specs)
			b, err := h.Alloc(tt.size, 4, tt.preferred)
			if err != nil {
				t.Fatalf("Alloc() error = %v", err)
			}
			if b.Type != tt.want {
				t.Errorf("Type = %v, want %v", b.Type, tt.want)
			}
		})
	}
}

func TestAllocExhausted(t *testing.T) {
	h := newTestHeap(t, []ArenaSpec{{Type: RAM, Size: 128}})

	if _, err := h.Alloc(129, 1, RAM); !errors.Is(err, ErrExhausted) {
		t.Errorf("Alloc(129) error = %v, want ErrExhausted", err)
	}
	if got := h.FreeSpace(RAM); got != 128 {
		t.Errorf("FreeSpace() = %d, want 128", got)
	}
}

func TestExternalFallback(t *testing.T) {
	h := newTestHeap(t, []ArenaSpec{{Type: RAM, Size: 64}}, WithExternalFallback(1024))

	b, err := h.Alloc(512, 4, RAM)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	if b.Type != External {
		t.Fatalf("Type = %v, want External", b.Type)
	}
	if got := h.FreeSpace(External); got != 512 {
		t.Errorf("FreeSpace(External) = %d, want 512", got)
	}
	if _, err := h.Alloc(600, 4, RAM); !errors.Is(err, ErrExhausted) {
		t.Errorf("Alloc over limit error = %v, want ErrExhausted", err)
	}
	if err := h.Free(b); err != nil {
		t.Fatalf("Free() error = %v", err)
	}
	if err := h.Free(b); !errors.Is(err, ErrUnknownBlock) {
		t.Errorf("double Free() error = %v, want ErrUnknownBlock", err)
	}
}

func TestFreeUnknown(t *testing.T) {
	h := newTestHeap(t, []ArenaSpec{{Type: RAM, Size: 64}})
	if err := h.Free(Block{Addr: 12, Type: RAM}); !errors.Is(err, ErrUnknownBlock) {
		t.Errorf("Free() error = %v, want ErrUnknownBlock", err)
	}
	if err := h.Free(Block{Addr: 12, Type: VRAM}); !errors.Is(err, ErrUnknownBlock) {
		t.Errorf("Free() of missing arena error = %v, want ErrUnknownBlock", err)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		specs []ArenaSpec
	}{
		{"zero size", []ArenaSpec{{RAM, 0}}},
		{"duplicate", []ArenaSpec{{RAM, 16}, {RAM, 16}}},
		{"external", []ArenaSpec{{External, 16}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(HostProvider{}, tt.specs); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestCoalesceMiddle(t *testing.T) {
	h := newTestHeap(t, []ArenaSpec{{Type: RAM, Size: 300}})

	var blocks []Block
	for range 3 {
		b, err := h.Alloc(100, 1, RAM)
		if err != nil {
			t.Fatal(err)
		}
		blocks = append(blocks, b)
	}
	for _, i := range []int{0, 2, 1} {
		if err := h.Free(blocks[i]); err != nil {
			t.Fatal(err)
		}
		if err := h.Check(); err != nil {
			t.Fatalf("after free %d: %v", i, err)
		}
	}
	if got := h.Stats().Arenas[0].FreeBlocks; got != 1 {
		t.Errorf("FreeBlocks = %d, want 1", got)
	}
}

// TestRandomConservation runs random alloc/free sequences and checks that
// no bytes are created or lost and that free spans are always coalesced.
func TestRandomConservation(t *testing.T) {
	h := newTestHeap(t, []ArenaSpec{{VRAM, 1 << 14}, {RAM, 1 << 13}, {Phycont, 1 << 12}})
	rng := rand.New(rand.NewSource(7))

	var live []Block
	for i := range 2000 {
		if len(live) > 0 && rng.Intn(3) == 0 {
			j := rng.Intn(len(live))
			if err := h.Free(live[j]); err != nil {
				t.Fatalf("step %d: Free() error = %v", i, err)
			}
			live = append(live[:j], live[j+1:]...)
		} else {
			size := 1 + rng.Intn(700)
			align := 1 << rng.Intn(7)
			b, err := h.Alloc(size, align, Type(rng.Intn(3)))
			if err == nil {
				live = append(live, b)
			} else if !errors.Is(err, ErrExhausted) {
				t.Fatalf("step %d: Alloc() error = %v", i, err)
			}
		}
		if err := h.Check(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	for _, b := range live {
		if err := h.Free(b); err != nil {
			t.Fatal(err)
		}
	}
	for _, typ := range []Type{VRAM, RAM, Phycont} {
		if h.FreeSpace(typ) != h.Capacity(typ) {
			t.Errorf("FreeSpace(%v) = %d, want %d", typ, h.FreeSpace(typ), h.Capacity(typ))
		}
	}
}

func TestTypeString(t *testing.T) {
	if got := Phycont.String(); got != "phycont" {
		t.Errorf("String() = %q, want %q", got, "phycont")
	}
	if got := Type(9).String(); got != "Type(9)" {
		t.Errorf("String() = %q, want %q", got, "Type(9)")
	}
}
