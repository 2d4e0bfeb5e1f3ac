package pixel

import (
	"fmt"

	"github.com/gogpu/vitagl/driver"
)

// AllLevels requests a full mip chain.
const AllLevels = -1

// Level is one mip level inside a multi-level allocation.
type Level struct {
	Width  int
	Height int
	// Pitch is the row length in texels.
	Pitch  int
	Offset int
	Size   int
}

// MipChain returns the layout of up to levels mip levels for a w x h base
// level of bpp bytes per texel. Each level halves both dimensions and keeps
// the level-0 row rule, so rows are padded to a multiple of 8 texels. The
// chain stops after the level where either dimension reaches 1, or after
// levels entries when levels is positive.
func MipChain(w, h, bpp, levels int) []Level {
	var out []Level
	offset := 0
	for levels < 0 || len(out) < levels {
		l := Level{Width: w, Height: h, Pitch: Pitch(w), Offset: offset}
		l.Size = l.Pitch * h * bpp
		out = append(out, l)
		offset += l.Size
		if w <= 1 || h <= 1 {
			break
		}
		w, h = w/2, h/2
	}
	return out
}

// ChainSize returns the total byte size of a mip chain.
func ChainSize(levels []Level) int {
	if len(levels) == 0 {
		return 0
	}
	last := levels[len(levels)-1]
	return last.Offset + last.Size
}

// Downscale writes a 2x box-filtered copy of src into dst. Dst must be
// (src.Width/2, src.Height/2) clamped to at least 1, in the same format.
func Downscale(dst, src driver.Surface) error {
	if dst.Format != src.Format {
		return fmt.Errorf("downscale %v to %v: %w", src.Format, dst.Format, ErrUnsupported)
	}
	if !rasterFormat(src.Format) {
		return fmt.Errorf("downscale %v: %w", src.Format, ErrUnsupported)
	}
	bpp := src.Format.BytesPerPixel()
	if len(src.Data) < ((src.Height-1)*src.Stride+src.Width)*bpp ||
		len(dst.Data) < ((dst.Height-1)*dst.Stride+dst.Width)*bpp {
		return fmt.Errorf("downscale: %w", ErrShortBuffer)
	}

	texel := func(x, y int) (r, g, b, a uint32) {
		x = min(x, src.Width-1)
		y = min(y, src.Height-1)
		v := Read(src.Format, src.Data[(y*src.Stride+x)*bpp:])
		return v & 0xFF, v >> 8 & 0xFF, v >> 16 & 0xFF, v >> 24
	}

	for y := range dst.Height {
		for x := range dst.Width {
			var sr, sg, sb, sa uint32
			for _, d := range [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
				r, g, b, a := texel(2*x+d[0], 2*y+d[1])
				sr, sg, sb, sa = sr+r, sg+g, sb+b, sa+a
			}
			// Round to nearest.
			v := Pack(uint8((sr+2)/4), uint8((sg+2)/4), uint8((sb+2)/4), uint8((sa+2)/4))
			Write(dst.Format, dst.Data[(y*dst.Stride+x)*bpp:], v)
		}
	}
	return nil
}
