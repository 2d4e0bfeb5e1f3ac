// Package pixel converts texel data between the native texture formats.
//
// Every conversion goes through a normalized 32-bit value holding R in the
// low byte, then G, B and A in the high byte. Read decodes one texel into
// that value and Write encodes it back; the pair covers every uncompressed
// source/destination combination the engine accepts.
package pixel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/vitagl/driver"
)

// ErrUnsupported is returned for format pairs without a conversion.
var ErrUnsupported = errors.New("pixel: unsupported format conversion")

// ErrShortBuffer is returned when source or destination data is too small.
var ErrShortBuffer = errors.New("pixel: buffer too small")

// Pack builds a normalized value from 8-bit channels.
func Pack(r, g, b, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24
}

// Unpack splits a normalized value into 8-bit channels.
func Unpack(v uint32) (r, g, b, a uint8) {
	return uint8(v), uint8(v >> 8), uint8(v >> 16), uint8(v >> 24)
}

func expand5(v uint16) uint8 { return uint8(v<<3 | v>>2) }
func expand6(v uint16) uint8 { return uint8(v<<2 | v>>4) }
func expand4(v uint16) uint8 { return uint8(v * 17) }

// Read decodes the texel at the start of src.
func Read(f driver.TextureFormat, src []byte) uint32 {
	switch f {
	case driver.FormatRGBA8:
		return binary.LittleEndian.Uint32(src)
	case driver.FormatRGB8:
		return Pack(src[0], src[1], src[2], 0xFF)
	case driver.FormatRGB565:
		v := binary.LittleEndian.Uint16(src)
		return Pack(expand5(v>>11), expand6(v>>5&0x3F), expand5(v&0x1F), 0xFF)
	case driver.FormatRGBA4444:
		v := binary.LittleEndian.Uint16(src)
		return Pack(expand4(v>>12), expand4(v>>8&0xF), expand4(v>>4&0xF), expand4(v&0xF))
	case driver.FormatRGBA5551:
		v := binary.LittleEndian.Uint16(src)
		a := uint8(0)
		if v&1 != 0 {
			a = 0xFF
		}
		return Pack(expand5(v>>11), expand5(v>>6&0x1F), expand5(v>>1&0x1F), a)
	case driver.FormatL8:
		return Pack(src[0], src[0], src[0], 0xFF)
	case driver.FormatA8:
		return Pack(0xFF, 0xFF, 0xFF, src[0])
	case driver.FormatLA8:
		return Pack(src[0], src[0], src[0], src[1])
	case driver.FormatP8:
		return uint32(src[0])
	default:
		return 0
	}
}

// Write encodes v at the start of dst.
func Write(f driver.TextureFormat, dst []byte, v uint32) {
	r, g, b, a := Unpack(v)
	switch f {
	case driver.FormatRGBA8:
		binary.LittleEndian.PutUint32(dst, v)
	case driver.FormatRGB8:
		dst[0], dst[1], dst[2] = r, g, b
	case driver.FormatRGB565:
		binary.LittleEndian.PutUint16(dst, uint16(r>>3)<<11|uint16(g>>2)<<5|uint16(b>>3))
	case driver.FormatRGBA4444:
		binary.LittleEndian.PutUint16(dst, uint16(r>>4)<<12|uint16(g>>4)<<8|uint16(b>>4)<<4|uint16(a>>4))
	case driver.FormatRGBA5551:
		binary.LittleEndian.PutUint16(dst, uint16(r>>3)<<11|uint16(g>>3)<<6|uint16(b>>3)<<1|uint16(a>>7))
	case driver.FormatL8:
		dst[0] = r
	case driver.FormatA8:
		dst[0] = a
	case driver.FormatLA8:
		dst[0], dst[1] = r, a
	case driver.FormatP8:
		dst[0] = uint8(v)
	}
}

// rasterFormat reports whether f is an uncompressed, non-paletted format.
func rasterFormat(f driver.TextureFormat) bool {
	info := f.Info()
	return f.Valid() && info.BytesPerPixel > 0 && !info.Paletted
}

// Supported reports whether src data can be stored as dst.
func Supported(src, dst driver.TextureFormat) bool {
	switch {
	case src == driver.FormatP8 || dst == driver.FormatP8:
		return src == dst
	case dst.Compressed():
		return rasterFormat(src)
	default:
		return rasterFormat(src) && rasterFormat(dst)
	}
}

// Pitch returns the row length in texels of a level width w. Rows are
// padded to a multiple of 8 texels.
func Pitch(w int) int {
	return (w + 7) &^ 7
}

// Converter copies texel rows from one format into another.
type Converter struct {
	Src driver.TextureFormat
	Dst driver.TextureFormat
}

// NewConverter returns a converter for the pair or ErrUnsupported.
func NewConverter(src, dst driver.TextureFormat) (Converter, error) {
	if !Supported(src, dst) || dst.Compressed() {
		return Converter{}, fmt.Errorf("%w: %v to %v", ErrUnsupported, src, dst)
	}
	return Converter{Src: src, Dst: dst}, nil
}

// FastPath reports whether rows can be bulk-copied.
func (c Converter) FastPath() bool { return c.Src == c.Dst }

// Convert writes a w x h image from src (tightly packed rows) into dst
// whose rows are dstPitch texels long.
func (c Converter) Convert(dst, src []byte, w, h, dstPitch int) error {
	sb, db := c.Src.BytesPerPixel(), c.Dst.BytesPerPixel()
	if len(src) < w*h*sb {
		return fmt.Errorf("convert %dx%d %v: %w", w, h, c.Src, ErrShortBuffer)
	}
	if h > 0 && len(dst) < (h-1)*dstPitch*db+w*db {
		return fmt.Errorf("convert %dx%d %v: %w", w, h, c.Dst, ErrShortBuffer)
	}

	if c.FastPath() {
		row := w * sb
		for y := range h {
			copy(dst[y*dstPitch*db:], src[y*row:(y+1)*row])
		}
		return nil
	}

	for y := range h {
		s := src[y*w*sb:]
		d := dst[y*dstPitch*db:]
		for x := range w {
			Write(c.Dst, d[x*db:], Read(c.Src, s[x*sb:]))
		}
	}
	return nil
}
