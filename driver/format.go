package driver

import "fmt"

// TextureFormat is a native texture storage format.
type TextureFormat uint8

const (
	// FormatInvalid is the zero format.
	FormatInvalid TextureFormat = iota

	// FormatRGBA8 stores R, G, B, A as bytes in memory order.
	FormatRGBA8

	// FormatRGB8 stores R, G, B as bytes.
	FormatRGB8

	// FormatRGB565 packs R in the high 5 bits of a 16-bit word.
	FormatRGB565

	// FormatRGBA4444 packs R in the high nibble of a 16-bit word.
	FormatRGBA4444

	// FormatRGBA5551 packs R in the high 5 bits, A in the low bit.
	FormatRGBA5551

	// FormatL8 is 8-bit luminance.
	FormatL8

	// FormatA8 is 8-bit alpha.
	FormatA8

	// FormatLA8 is luminance then alpha.
	FormatLA8

	// FormatP8 is an 8-bit index into a 256 entry RGBA8 palette.
	FormatP8

	// FormatDXT1 is BC1 block compression (8 bytes per 4x4 block).
	FormatDXT1

	// FormatDXT5 is BC3 block compression (16 bytes per 4x4 block).
	FormatDXT5

	formatCount
)

// FormatInfo contains metadata about a texture format.
type FormatInfo struct {
	Name string

	// BytesPerPixel is zero for block compressed formats.
	BytesPerPixel int

	// BlockBytes is the size of one 4x4 block for compressed formats.
	BlockBytes int

	HasAlpha bool
	Paletted bool
}

var formatInfoTable = [formatCount]FormatInfo{
	FormatInvalid:  {Name: "Invalid"},
	FormatRGBA8:    {Name: "RGBA8", BytesPerPixel: 4, HasAlpha: true},
	FormatRGB8:     {Name: "RGB8", BytesPerPixel: 3},
	FormatRGB565:   {Name: "RGB565", BytesPerPixel: 2},
	FormatRGBA4444: {Name: "RGBA4444", BytesPerPixel: 2, HasAlpha: true},
	FormatRGBA5551: {Name: "RGBA5551", BytesPerPixel: 2, HasAlpha: true},
	FormatL8:       {Name: "L8", BytesPerPixel: 1},
	FormatA8:       {Name: "A8", BytesPerPixel: 1, HasAlpha: true},
	FormatLA8:      {Name: "LA8", BytesPerPixel: 2, HasAlpha: true},
	FormatP8:       {Name: "P8", BytesPerPixel: 1, HasAlpha: true, Paletted: true},
	FormatDXT1:     {Name: "DXT1", BlockBytes: 8},
	FormatDXT5:     {Name: "DXT5", BlockBytes: 16, HasAlpha: true},
}

// Info returns the format's metadata.
func (f TextureFormat) Info() FormatInfo {
	if f >= formatCount {
		return FormatInfo{Name: fmt.Sprintf("Unknown(%d)", f)}
	}
	return formatInfoTable[f]
}

// String returns the format name.
func (f TextureFormat) String() string { return f.Info().Name }

// BytesPerPixel returns the texel size of uncompressed formats and zero
// otherwise.
func (f TextureFormat) BytesPerPixel() int { return f.Info().BytesPerPixel }

// Compressed reports whether f is block compressed.
func (f TextureFormat) Compressed() bool { return f.Info().BlockBytes > 0 }

// Valid reports whether f names a real format.
func (f TextureFormat) Valid() bool { return f > FormatInvalid && f < formatCount }
