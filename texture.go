// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vitagl

import (
	"fmt"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/heap"
	"github.com/gogpu/vitagl/internal/pixel"
	"github.com/gogpu/vitagl/internal/slot"
)

// Texture names a texture object. Zero is no texture.
type Texture uint32

func (t Texture) handle() slot.Handle { return slot.Handle(t) }

const (
	textureAlign = 256
	paletteAlign = 64
	stagingAlign = 16

	paletteEntries = 256
)

type texture struct {
	valid      bool
	block      heap.Block
	palette    heap.Block
	desc       driver.TextureDesc
	autoMipmap bool
}

// textureUnit is one texture unit. Client arrays are per unit so that
// each unit carries its own texture coordinate array.
type textureUnit struct {
	enabled bool
	bound   Texture

	env      TexEnvMode
	envColor [4]float32

	minFilter TexValue
	magFilter TexValue
	wrapS     TexValue
	wrapT     TexValue

	vertex   clientArray
	color    clientArray
	texcoord clientArray
}

func defaultTextureUnit() textureUnit {
	return textureUnit{
		env:       Modulate,
		minFilter: NearestMipmapLinear,
		magFilter: Linear,
		wrapS:     Repeat,
		wrapT:     Repeat,
		vertex:    clientArray{size: 4, typ: Float},
		color:     clientArray{size: 4, typ: Float},
		texcoord:  clientArray{size: 4, typ: Float},
	}
}

// filters maps a filter value to the base filter, the filter between mip
// levels and whether mip levels are sampled at all.
func (v TexValue) filters() (base, mip driver.Filter, mipmapped bool) {
	switch v {
	case Nearest:
		return driver.FilterPoint, driver.FilterPoint, false
	case NearestMipmapNearest:
		return driver.FilterPoint, driver.FilterPoint, true
	case LinearMipmapNearest:
		return driver.FilterLinear, driver.FilterPoint, true
	case NearestMipmapLinear:
		return driver.FilterPoint, driver.FilterLinear, true
	case LinearMipmapLinear:
		return driver.FilterLinear, driver.FilterLinear, true
	default:
		return driver.FilterLinear, driver.FilterPoint, false
	}
}

func (v TexValue) wrap() driver.Wrap {
	switch v {
	case ClampToEdge:
		return driver.WrapClamp
	case MirroredRepeat:
		return driver.WrapMirror
	default:
		return driver.WrapRepeat
	}
}

// GenTextures creates n texture names. When the texture table is full the
// names created so far are returned with an error.
func (c *Context) GenTextures(n int) ([]Texture, error) {
	if n < 0 {
		return nil, c.failf("GenTextures", ErrInvalidValue, "n = %d", n)
	}
	out := make([]Texture, 0, n)
	for range n {
		h, ok := c.textures.Insert(texture{})
		if !ok {
			return out, c.failf("GenTextures", ErrInvalidOperation, "texture table full (%d)", c.textures.Cap())
		}
		out = append(out, Texture(h))
	}
	return out, nil
}

// DeleteTextures frees the storage of each texture and releases its name.
// Units the texture is bound to revert to no texture. Unknown names are
// ignored.
func (c *Context) DeleteTextures(ts ...Texture) {
	for _, t := range ts {
		if t == 0 {
			continue
		}
		tex, ok := c.textures.Remove(t.handle())
		if !ok {
			continue
		}
		c.freeTexture(&tex)
		for i := range c.units {
			if c.units[i].bound == t {
				c.units[i].bound = 0
			}
		}
	}
}

// IsTexture reports whether t names a live texture.
func (c *Context) IsTexture(t Texture) bool {
	return t != 0 && c.textures.Ptr(t.handle()) != nil
}

// BindTexture binds t to the active unit. Zero unbinds.
func (c *Context) BindTexture(t Texture) error {
	if t != 0 && c.textures.Ptr(t.handle()) == nil {
		return c.failf("BindTexture", ErrInvalidOperation, "unknown texture %d", t)
	}
	c.units[c.activeUnit].bound = t
	return nil
}

// ActiveTexture selects the unit affected by texture calls.
func (c *Context) ActiveTexture(unit int) error {
	if unit < 0 || unit >= MaxTextureUnits {
		return c.failf("ActiveTexture", ErrInvalidEnum, "unit %d", unit)
	}
	c.activeUnit = unit
	return nil
}

// boundTextureObject returns the texture bound to the active unit.
func (c *Context) boundTextureObject(op string) (*texture, error) {
	u := &c.units[c.activeUnit]
	if u.bound == 0 {
		return nil, c.failf(op, ErrInvalidOperation, "no texture bound")
	}
	t := c.textures.Ptr(u.bound.handle())
	if t == nil {
		return nil, c.failf(op, ErrInvalidOperation, "stale texture %d", u.bound)
	}
	return t, nil
}

func (c *Context) checkSize(op string, w, h int) error {
	if w <= 0 || h <= 0 || w > c.cfg.MaxTextureSize || h > c.cfg.MaxTextureSize {
		return c.failf(op, ErrInvalidValue, "size %dx%d (max %d)", w, h, c.cfg.MaxTextureSize)
	}
	return nil
}

// TexImage2D uploads data of format src as level of the bound texture,
// stored as internal. Data holds tightly packed rows and may be nil to
// leave the storage zeroed. A compressed internal format compresses the
// data on upload.
//
// Every argument is validated before the texture is touched: a rejected
// upload leaves the previous image in place.
func (c *Context) TexImage2D(level int, internal Format, w, h int, src Format, data []byte) error {
	const op = "TexImage2D"
	t, err := c.boundTextureObject(op)
	if err != nil {
		return err
	}
	if level < 0 {
		return c.failf(op, ErrInvalidValue, "level %d", level)
	}
	if err := c.checkSize(op, w, h); err != nil {
		return err
	}
	if !internal.Valid() || !src.Valid() || src.Compressed() || !pixel.Supported(src, internal) {
		return c.failf(op, ErrInvalidEnum, "%v data as %v", src, internal)
	}
	if data != nil && len(data) < w*h*src.BytesPerPixel() {
		return c.failf(op, ErrInvalidValue, "%d bytes for %dx%d %v", len(data), w, h, src)
	}
	if level > 0 {
		return c.texSubLevel(op, t, level, internal, w, h, src, data)
	}

	size := pixel.Pitch(w) * h * internal.BytesPerPixel()
	if internal.Compressed() {
		size = pixel.CompressedSize(internal, w, h)
	}
	b, err := c.heap.Alloc(size, textureAlign, heap.VRAM)
	if err != nil {
		return c.fail(op, outOfMemory("texture", err))
	}
	if data != nil {
		if internal.Compressed() {
			err = pixel.Compress(internal, b.Bytes(), src, data, w, h)
		} else {
			err = convertRows(b.Bytes(), data, src, internal, w, h, pixel.Pitch(w))
		}
		if err != nil {
			c.freeBlock("texture", b)
			return c.fail(op, fmt.Errorf("%w: %w", ErrInvalidValue, err))
		}
	}
	c.replaceStorage(t, b, internal, w, h)
	c.logger.Debug("vitagl: texture uploaded", "format", internal, "width", w, "height", h, "bytes", size, "type", b.Type)

	if t.autoMipmap && !internal.Compressed() && internal != P8 {
		return c.generateMipmaps(op, t, pixel.AllLevels)
	}
	return nil
}

func convertRows(dst, src []byte, from, to Format, w, h, pitch int) error {
	cv, err := pixel.NewConverter(from, to)
	if err != nil {
		return err
	}
	return cv.Convert(dst, src, w, h, pitch)
}

// texSubLevel writes one level of an existing mip chain.
func (c *Context) texSubLevel(op string, t *texture, level int, internal Format, w, h int, src Format, data []byte) error {
	if !t.valid || level >= t.desc.Levels || internal != t.desc.Format || internal.Compressed() {
		return c.failf(op, ErrInvalidOperation, "level %d not allocated", level)
	}
	chain := pixel.MipChain(t.desc.Width, t.desc.Height, internal.BytesPerPixel(), t.desc.Levels)
	l := chain[level]
	if l.Width != w || l.Height != h {
		return c.failf(op, ErrInvalidValue, "level %d is %dx%d, got %dx%d", level, l.Width, l.Height, w, h)
	}
	if data != nil {
		if err := convertRows(t.desc.Data[l.Offset:l.Offset+l.Size], data, src, internal, w, h, l.Pitch); err != nil {
			return c.fail(op, fmt.Errorf("%w: %w", ErrInvalidValue, err))
		}
	}
	t.desc.Version++
	return nil
}

// replaceStorage installs b as the single-level storage of t and frees the
// previous storage.
func (c *Context) replaceStorage(t *texture, b heap.Block, f Format, w, h int) {
	if !t.block.IsZero() {
		c.freeBlock("texture", t.block)
	}
	stride := pixel.Pitch(w)
	if f.Compressed() {
		stride = w
	}
	version := t.desc.Version + 1
	t.block = b
	t.valid = true
	t.desc = driver.TextureDesc{
		Format:  f,
		Width:   w,
		Height:  h,
		Stride:  stride,
		Levels:  1,
		Data:    b.Bytes(),
		Palette: t.palette.Bytes(),
		Version: version,
	}
}

// CompressedTexImage2D uploads pre-compressed row-major blocks of format
// to the bound texture. Blocks are reordered into the tiled layout.
func (c *Context) CompressedTexImage2D(w, h int, format Format, data []byte) error {
	const op = "CompressedTexImage2D"
	t, err := c.boundTextureObject(op)
	if err != nil {
		return err
	}
	if err := c.checkSize(op, w, h); err != nil {
		return err
	}
	if !format.Compressed() {
		return c.failf(op, ErrInvalidEnum, "format %v is not compressed", format)
	}
	size := pixel.CompressedSize(format, w, h)
	if len(data) < size {
		return c.failf(op, ErrInvalidValue, "%d bytes for %dx%d %v, want %d", len(data), w, h, format, size)
	}
	b, err := c.heap.Alloc(size, textureAlign, heap.VRAM)
	if err != nil {
		return c.fail(op, outOfMemory("texture", err))
	}
	if err := pixel.SwizzleBlocks(format, b.Bytes(), data, w, h); err != nil {
		c.freeBlock("texture", b)
		return c.fail(op, err)
	}
	c.replaceStorage(t, b, format, w, h)
	return nil
}

// TexSubImage2D overwrites a rectangle of level 0 of the bound texture.
func (c *Context) TexSubImage2D(x, y, w, h int, src Format, data []byte) error {
	const op = "TexSubImage2D"
	t, err := c.boundTextureObject(op)
	if err != nil {
		return err
	}
	if !t.valid {
		return c.failf(op, ErrInvalidOperation, "texture has no storage")
	}
	d := &t.desc
	if d.Format.Compressed() || d.Format == P8 || !src.Valid() || !pixel.Supported(src, d.Format) {
		return c.failf(op, ErrInvalidEnum, "%v data into %v", src, d.Format)
	}
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > d.Width || y+h > d.Height {
		return c.failf(op, ErrInvalidValue, "rect %d,%d %dx%d outside %dx%d", x, y, w, h, d.Width, d.Height)
	}
	if len(data) < w*h*src.BytesPerPixel() {
		return c.failf(op, ErrInvalidValue, "%d bytes for %dx%d %v", len(data), w, h, src)
	}
	if w == 0 || h == 0 {
		return nil
	}
	bpp := d.Format.BytesPerPixel()
	dst := d.Data[(y*d.Stride+x)*bpp:]
	if err := convertRows(dst, data, src, d.Format, w, h, d.Stride); err != nil {
		return c.fail(op, err)
	}
	d.Version++
	if t.autoMipmap && d.Levels > 1 {
		return c.regenerateLevels(op, t)
	}
	return nil
}

// ColorTable sets the RGBA8 palette of the bound texture. Up to 256
// entries are accepted; missing entries are opaque black.
func (c *Context) ColorTable(data []byte) error {
	const op = "ColorTable"
	t, err := c.boundTextureObject(op)
	if err != nil {
		return err
	}
	if len(data) == 0 || len(data)%4 != 0 || len(data) > paletteEntries*4 {
		return c.failf(op, ErrInvalidValue, "palette of %d bytes", len(data))
	}
	b, err := c.heap.Alloc(paletteEntries*4, paletteAlign, heap.RAM)
	if err != nil {
		return c.fail(op, outOfMemory("palette", err))
	}
	mem := b.Bytes()
	for i := len(data); i < len(mem); i += 4 {
		mem[i+3] = 0xFF
	}
	copy(mem, data)
	if !t.palette.IsZero() {
		c.freeBlock("palette", t.palette)
	}
	t.palette = b
	t.desc.Palette = mem
	t.desc.Version++
	return nil
}

// TexParameter sets a sampling parameter of the active unit, or the
// automatic mipmap generation flag of the bound texture.
func (c *Context) TexParameter(p TexParam, v TexValue) error {
	const op = "TexParameter"
	u := &c.units[c.activeUnit]
	switch p {
	case TextureMinFilter:
		if v > LinearMipmapLinear {
			return c.failf(op, ErrInvalidEnum, "min filter %d", v)
		}
		u.minFilter = v
	case TextureMagFilter:
		if v != Nearest && v != Linear {
			return c.failf(op, ErrInvalidEnum, "mag filter %d", v)
		}
		u.magFilter = v
	case TextureWrapS, TextureWrapT:
		if v != Repeat && v != ClampToEdge && v != MirroredRepeat {
			return c.failf(op, ErrInvalidEnum, "wrap %d", v)
		}
		if p == TextureWrapS {
			u.wrapS = v
		} else {
			u.wrapT = v
		}
	case GenerateMipmapHint:
		if v != True && v != False {
			return c.failf(op, ErrInvalidEnum, "generate mipmap %d", v)
		}
		t, err := c.boundTextureObject(op)
		if err != nil {
			return err
		}
		t.autoMipmap = v == True
		if t.autoMipmap && t.valid {
			return c.generateMipmaps(op, t, pixel.AllLevels)
		}
	default:
		return c.failf(op, ErrInvalidEnum, "parameter %d", p)
	}
	return nil
}

// TexEnv sets the texture environment of the active unit.
func (c *Context) TexEnv(mode TexEnvMode, color [4]float32) error {
	if mode > Add {
		return c.failf("TexEnv", ErrInvalidEnum, "mode %d", mode)
	}
	u := &c.units[c.activeUnit]
	u.env = mode
	for i, v := range color {
		u.envColor[i] = clamp01(v)
	}
	return nil
}

// GenerateMipmap builds the full mip chain of the bound texture.
func (c *Context) GenerateMipmap() error {
	return c.GenerateMipmapLevels(pixel.AllLevels)
}

// GenerateMipmapLevels builds levels mip levels of the bound texture,
// including the base level. A negative count builds the full chain.
func (c *Context) GenerateMipmapLevels(levels int) error {
	const op = "GenerateMipmap"
	t, err := c.boundTextureObject(op)
	if err != nil {
		return err
	}
	if levels == 0 {
		return c.failf(op, ErrInvalidValue, "zero levels")
	}
	return c.generateMipmaps(op, t, levels)
}

// generateMipmaps grows t to the requested chain. Level 0 is staged
// outside the arenas while the enlarged storage is allocated, then each
// level is produced from the previous one by a downscale transfer.
func (c *Context) generateMipmaps(op string, t *texture, levels int) error {
	if !t.valid {
		return c.failf(op, ErrInvalidOperation, "texture has no storage")
	}
	d := &t.desc
	if d.Format.Compressed() || d.Format == P8 {
		return c.failf(op, ErrInvalidOperation, "cannot mipmap %v", d.Format)
	}
	bpp := d.Format.BytesPerPixel()
	chain := pixel.MipChain(d.Width, d.Height, bpp, levels)
	if len(chain) <= d.Levels {
		return nil
	}
	base := chain[0]

	stage, err := c.heap.Alloc(base.Size, stagingAlign, heap.External)
	if err != nil {
		return c.fail(op, outOfMemory("mipmap staging", err))
	}
	defer c.freeBlock("mipmap staging", stage)
	copy(stage.Bytes(), t.block.Bytes()[:base.Size])

	c.freeBlock("texture", t.block)
	total := pixel.ChainSize(chain)
	b, err := c.heap.Alloc(total, textureAlign, heap.VRAM)
	if err != nil {
		allocErr := err
		// Put the base level back where it came from.
		if b, err = c.heap.Alloc(base.Size, textureAlign, heap.VRAM); err != nil {
			t.valid = false
			t.block = heap.Block{}
			d.Data = nil
			return c.fail(op, outOfMemory("texture", err))
		}
		copy(b.Bytes(), stage.Bytes())
		t.block = b
		d.Data = b.Bytes()
		d.Version++
		return c.fail(op, outOfMemory("mipmap chain", allocErr))
	}
	copy(b.Bytes(), stage.Bytes())
	t.block = b
	d.Data = b.Bytes()
	d.Levels = len(chain)
	d.Version++
	if err := c.downscaleChain(t, chain); err != nil {
		return c.fail(op, err)
	}
	c.logger.Debug("vitagl: mipmaps generated", "levels", len(chain), "bytes", total)
	return nil
}

// regenerateLevels rebuilds every level past 0 from the current base.
func (c *Context) regenerateLevels(op string, t *texture) error {
	d := &t.desc
	chain := pixel.MipChain(d.Width, d.Height, d.Format.BytesPerPixel(), d.Levels)
	if err := c.downscaleChain(t, chain); err != nil {
		return c.fail(op, err)
	}
	d.Version++
	return nil
}

func (c *Context) downscaleChain(t *texture, chain []pixel.Level) error {
	surface := func(l pixel.Level) driver.Surface {
		return driver.Surface{
			Format: t.desc.Format,
			Width:  l.Width,
			Height: l.Height,
			Stride: l.Pitch,
			Data:   t.desc.Data[l.Offset : l.Offset+l.Size],
		}
	}
	for i := 1; i < len(chain); i++ {
		if err := c.drv.TransferDownscale(surface(chain[i-1]), surface(chain[i])); err != nil {
			return fmt.Errorf("mip level %d: %w", i, err)
		}
	}
	return nil
}

func (c *Context) freeTexture(t *texture) {
	if !t.block.IsZero() {
		c.freeBlock("texture", t.block)
	}
	if !t.palette.IsZero() {
		c.freeBlock("palette", t.palette)
	}
	*t = texture{}
}

// TextureInfo describes the storage of a texture.
type TextureInfo struct {
	Valid  bool
	Format Format
	Width  int
	Height int
	Levels int
	// Stride is the level 0 row length in texels.
	Stride int
	Memory MemoryType
	Addr   uint64
	// Data aliases the texture storage.
	Data []byte
}

// TextureInfo returns the storage description of t.
func (c *Context) TextureInfo(t Texture) (TextureInfo, bool) {
	if t == 0 {
		return TextureInfo{}, false
	}
	tex := c.textures.Ptr(t.handle())
	if tex == nil {
		return TextureInfo{}, false
	}
	return TextureInfo{
		Valid:  tex.valid,
		Format: tex.desc.Format,
		Width:  tex.desc.Width,
		Height: tex.desc.Height,
		Levels: tex.desc.Levels,
		Stride: tex.desc.Stride,
		Memory: memoryType(tex.block.Type),
		Addr:   tex.block.Addr,
		Data:   tex.desc.Data,
	}, true
}

func memoryType(t heap.Type) MemoryType {
	for m, h := range heapTypes {
		if h == t {
			return MemoryType(m)
		}
	}
	return MemExternal
}
