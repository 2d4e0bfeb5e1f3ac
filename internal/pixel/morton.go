// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pixel

import (
	"fmt"

	"github.com/gogpu/vitagl/driver"
)

// part1by1 spreads the low 16 bits of v into the even bits.
func part1by1(v uint32) uint32 {
	v &= 0x0000FFFF
	v = (v | v<<8) & 0x00FF00FF
	v = (v | v<<4) & 0x0F0F0F0F
	v = (v | v<<2) & 0x33333333
	v = (v | v<<1) & 0x55555555
	return v
}

// compact1by1 is the inverse of part1by1.
func compact1by1(v uint32) uint32 {
	v &= 0x55555555
	v = (v | v>>1) & 0x33333333
	v = (v | v>>2) & 0x0F0F0F0F
	v = (v | v>>4) & 0x00FF00FF
	v = (v | v>>8) & 0x0000FFFF
	return v
}

// Morton returns the z-order index of (x, y).
func Morton(x, y int) int {
	return int(part1by1(uint32(x)) | part1by1(uint32(y))<<1)
}

// Demorton returns the coordinates of z-order index i.
func Demorton(i int) (x, y int) {
	return int(compact1by1(uint32(i))), int(compact1by1(uint32(i) >> 1))
}

func nextPow2(v int) int {
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}

// walkBlocks visits the blocks of a bw x bh grid in z-order over the
// bounding power-of-two square, skipping coordinates outside the grid.
// The callback receives the block coordinates and the sequential index of
// the block in swizzled storage.
func walkBlocks(bw, bh int, fn func(bx, by, k int) error) error {
	sq := nextPow2(max(bw, bh))
	k := 0
	for i := range sq * sq {
		bx, by := Demorton(i)
		if bx >= bw || by >= bh {
			continue
		}
		if err := fn(bx, by, k); err != nil {
			return err
		}
		k++
	}
	return nil
}

// SwizzleBlocks reorders already compressed row-major blocks into the
// tiled z-order layout.
func SwizzleBlocks(f driver.TextureFormat, dst, src []byte, w, h int) error {
	bb := f.Info().BlockBytes
	if bb == 0 {
		return fmt.Errorf("swizzle %v: %w", f, ErrUnsupported)
	}
	size := CompressedSize(f, w, h)
	if len(src) < size || len(dst) < size {
		return fmt.Errorf("swizzle %dx%d %v: %w", w, h, f, ErrShortBuffer)
	}
	bw, bh := (w+3)/4, (h+3)/4
	return walkBlocks(bw, bh, func(bx, by, k int) error {
		copy(dst[k*bb:(k+1)*bb], src[(by*bw+bx)*bb:])
		return nil
	})
}

// UnswizzleBlocks is the inverse of SwizzleBlocks.
func UnswizzleBlocks(f driver.TextureFormat, dst, src []byte, w, h int) error {
	bb := f.Info().BlockBytes
	if bb == 0 {
		return fmt.Errorf("unswizzle %v: %w", f, ErrUnsupported)
	}
	size := CompressedSize(f, w, h)
	if len(src) < size || len(dst) < size {
		return fmt.Errorf("unswizzle %dx%d %v: %w", w, h, f, ErrShortBuffer)
	}
	bw, bh := (w+3)/4, (h+3)/4
	return walkBlocks(bw, bh, func(bx, by, k int) error {
		copy(dst[(by*bw+bx)*bb:(by*bw+bx+1)*bb], src[k*bb:])
		return nil
	})
}

// Compress block-compresses a tightly packed uncompressed image into dst
// using the tiled z-order block layout.
func Compress(dst driver.TextureFormat, out []byte, srcFormat driver.TextureFormat, src []byte, w, h int) error {
	bb := dst.Info().BlockBytes
	if bb == 0 || !rasterFormat(srcFormat) {
		return fmt.Errorf("compress %v to %v: %w", srcFormat, dst, ErrUnsupported)
	}
	if len(src) < w*h*srcFormat.BytesPerPixel() || len(out) < CompressedSize(dst, w, h) {
		return fmt.Errorf("compress %dx%d: %w", w, h, ErrShortBuffer)
	}
	var blk Block
	return walkBlocks((w+3)/4, (h+3)/4, func(bx, by, k int) error {
		extractBlock(&blk, src, srcFormat, w, h, bx, by)
		return CompressBlock(dst, out[k*bb:], &blk)
	})
}

// Decompress expands a swizzled compressed image into tightly packed RGBA8.
func Decompress(f driver.TextureFormat, out, src []byte, w, h int) error {
	bb := f.Info().BlockBytes
	if bb == 0 {
		return fmt.Errorf("decompress %v: %w", f, ErrUnsupported)
	}
	if len(src) < CompressedSize(f, w, h) || len(out) < w*h*4 {
		return fmt.Errorf("decompress %dx%d: %w", w, h, ErrShortBuffer)
	}
	var blk Block
	return walkBlocks((w+3)/4, (h+3)/4, func(bx, by, k int) error {
		if err := DecompressBlock(f, src[k*bb:], &blk); err != nil {
			return err
		}
		for y := range 4 {
			py := by*4 + y
			if py >= h {
				break
			}
			for x := range 4 {
				px := bx*4 + x
				if px >= w {
					break
				}
				Write(driver.FormatRGBA8, out[(py*w+px)*4:], blk[y*4+x])
			}
		}
		return nil
	})
}
