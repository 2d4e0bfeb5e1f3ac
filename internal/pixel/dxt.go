// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pixel

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/vitagl/driver"
)

// Block is a 4x4 texel block of normalized values in row-major order.
type Block [16]uint32

func to565(v uint32) uint16 {
	r, g, b, _ := Unpack(v)
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

func from565(c uint16) [3]int {
	return [3]int{int(expand5(c >> 11)), int(expand6(c >> 5 & 0x3F)), int(expand5(c & 0x1F))}
}

func rgb(v uint32) [3]int {
	return [3]int{int(v & 0xFF), int(v >> 8 & 0xFF), int(v >> 16 & 0xFF)}
}

func dist(a, b [3]int) int {
	dr, dg, db := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dr*dr + dg*dg + db*db
}

// compressColor encodes the color half of a block in four-color mode.
func compressColor(dst []byte, blk *Block) {
	lo := [3]int{255, 255, 255}
	hi := [3]int{0, 0, 0}
	for _, v := range blk {
		c := rgb(v)
		for i := range 3 {
			lo[i] = min(lo[i], c[i])
			hi[i] = max(hi[i], c[i])
		}
	}

	c0 := to565(Pack(uint8(hi[0]), uint8(hi[1]), uint8(hi[2]), 0))
	c1 := to565(Pack(uint8(lo[0]), uint8(lo[1]), uint8(lo[2]), 0))
	if c0 < c1 {
		c0, c1 = c1, c0
	}
	binary.LittleEndian.PutUint16(dst[0:], c0)
	binary.LittleEndian.PutUint16(dst[2:], c1)

	var indices uint32
	if c0 != c1 {
		pal := colorPalette(c0, c1)
		for i, v := range blk {
			c := rgb(v)
			best, bestD := 0, dist(c, pal[0])
			for j := 1; j < 4; j++ {
				if d := dist(c, pal[j]); d < bestD {
					best, bestD = j, d
				}
			}
			indices |= uint32(best) << (2 * i)
		}
	}
	binary.LittleEndian.PutUint32(dst[4:], indices)
}

func colorPalette(c0, c1 uint16) [4][3]int {
	a, b := from565(c0), from565(c1)
	var pal [4][3]int
	pal[0], pal[1] = a, b
	for i := range 3 {
		if c0 > c1 {
			pal[2][i] = (2*a[i] + b[i]) / 3
			pal[3][i] = (a[i] + 2*b[i]) / 3
		} else {
			pal[2][i] = (a[i] + b[i]) / 2
			pal[3][i] = 0
		}
	}
	return pal
}

func alphaPalette(a0, a1 int) [8]int {
	var pal [8]int
	pal[0], pal[1] = a0, a1
	if a0 > a1 {
		for i := 1; i < 7; i++ {
			pal[i+1] = ((7-i)*a0 + i*a1) / 7
		}
	} else {
		for i := 1; i < 5; i++ {
			pal[i+1] = ((5-i)*a0 + i*a1) / 5
		}
		pal[6], pal[7] = 0, 255
	}
	return pal
}

func compressAlpha(dst []byte, blk *Block) {
	lo, hi := 255, 0
	for _, v := range blk {
		a := int(v >> 24)
		lo, hi = min(lo, a), max(hi, a)
	}
	dst[0], dst[1] = uint8(hi), uint8(lo)

	var bits uint64
	if hi != lo {
		pal := alphaPalette(hi, lo)
		for i, v := range blk {
			a := int(v >> 24)
			best, bestD := 0, abs(a-pal[0])
			for j := 1; j < 8; j++ {
				if d := abs(a - pal[j]); d < bestD {
					best, bestD = j, d
				}
			}
			bits |= uint64(best) << (3 * i)
		}
	}
	for i := range 6 {
		dst[2+i] = uint8(bits >> (8 * i))
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// CompressBlock encodes blk into dst as DXT1 (8 bytes) or DXT5 (16 bytes).
func CompressBlock(f driver.TextureFormat, dst []byte, blk *Block) error {
	switch f {
	case driver.FormatDXT1:
		compressColor(dst[:8], blk)
	case driver.FormatDXT5:
		compressAlpha(dst[:8], blk)
		compressColor(dst[8:16], blk)
	default:
		return fmt.Errorf("compress %v: %w", f, ErrUnsupported)
	}
	return nil
}

// DecompressBlock decodes one DXT1 or DXT5 block from src.
func DecompressBlock(f driver.TextureFormat, src []byte, blk *Block) error {
	var color []byte
	alpha := [16]int{255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255}
	switch f {
	case driver.FormatDXT1:
		color = src[:8]
	case driver.FormatDXT5:
		pal := alphaPalette(int(src[0]), int(src[1]))
		var bits uint64
		for i := range 6 {
			bits |= uint64(src[2+i]) << (8 * i)
		}
		for i := range 16 {
			alpha[i] = pal[bits>>(3*i)&7]
		}
		color = src[8:16]
	default:
		return fmt.Errorf("decompress %v: %w", f, ErrUnsupported)
	}

	c0 := binary.LittleEndian.Uint16(color[0:])
	c1 := binary.LittleEndian.Uint16(color[2:])
	pal := colorPalette(c0, c1)
	indices := binary.LittleEndian.Uint32(color[4:])
	for i := range 16 {
		idx := indices >> (2 * i) & 3
		c := pal[idx]
		a := alpha[i]
		if f == driver.FormatDXT1 && c0 <= c1 && idx == 3 {
			a = 0
		}
		blk[i] = Pack(uint8(c[0]), uint8(c[1]), uint8(c[2]), uint8(a))
	}
	return nil
}

// CompressedSize returns the storage size of a w x h compressed image.
func CompressedSize(f driver.TextureFormat, w, h int) int {
	return ((w + 3) / 4) * ((h + 3) / 4) * f.Info().BlockBytes
}

// extractBlock reads the 4x4 block at block coordinates (bx, by) from a
// tightly packed image, clamping at the image edges.
func extractBlock(blk *Block, src []byte, f driver.TextureFormat, w, h, bx, by int) {
	bpp := f.BytesPerPixel()
	for y := range 4 {
		sy := min(by*4+y, h-1)
		for x := range 4 {
			sx := min(bx*4+x, w-1)
			blk[y*4+x] = Read(f, src[(sy*w+sx)*bpp:])
		}
	}
}
