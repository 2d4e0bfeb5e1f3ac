package pixel

import (
	"fmt"

	"github.com/gogpu/vitagl/driver"
)

// ExpandLevel decodes mip level of tex into tightly packed RGBA8 rows.
func ExpandLevel(tex *driver.TextureDesc, level int) ([]byte, int, int, error) {
	if tex.Format.Compressed() {
		if level != 0 {
			return nil, 0, 0, fmt.Errorf("expand %v level %d: %w", tex.Format, level, ErrUnsupported)
		}
		out := make([]byte, tex.Width*tex.Height*4)
		if err := Decompress(tex.Format, out, tex.Data, tex.Width, tex.Height); err != nil {
			return nil, 0, 0, err
		}
		return out, tex.Width, tex.Height, nil
	}

	bpp := tex.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, 0, 0, fmt.Errorf("expand %v: %w", tex.Format, ErrUnsupported)
	}
	levels := MipChain(tex.Width, tex.Height, bpp, max(tex.Levels, 1))
	if level >= len(levels) {
		return nil, 0, 0, fmt.Errorf("expand level %d of %d: %w", level, len(levels), ErrUnsupported)
	}
	l := levels[level]
	if len(tex.Data) < l.Offset+l.Size {
		return nil, 0, 0, fmt.Errorf("expand level %d: %w", level, ErrShortBuffer)
	}
	data := tex.Data[l.Offset : l.Offset+l.Size]

	out := make([]byte, l.Width*l.Height*4)
	for y := range l.Height {
		for x := range l.Width {
			v := Read(tex.Format, data[(y*l.Pitch+x)*bpp:])
			if tex.Format == driver.FormatP8 {
				v = paletteEntry(tex.Palette, int(v))
			}
			Write(driver.FormatRGBA8, out[(y*l.Width+x)*4:], v)
		}
	}
	return out, l.Width, l.Height, nil
}

func paletteEntry(pal []byte, i int) uint32 {
	if (i+1)*4 > len(pal) {
		return Pack(0, 0, 0, 0xFF)
	}
	return Read(driver.FormatRGBA8, pal[i*4:])
}
