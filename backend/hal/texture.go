package hal

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/pixel"
)

type gpuTexture struct {
	tex    hal.Texture
	view   hal.TextureView
	levels uint32
}

func (t *gpuTexture) destroy(device hal.Device) {
	if t == nil || t.tex == nil {
		return
	}
	device.DestroyTextureView(t.view)
	device.DestroyTexture(t.tex)
	t.tex, t.view = nil, nil
}

func (d *Driver) newTexture(label string, w, h int, levels, samples uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*gpuTexture, error) {
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: levels,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create texture %s: %w", label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: levels,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("hal: create texture view %s: %w", label, err)
	}
	return &gpuTexture{tex: tex, view: view, levels: levels}, nil
}

func (d *Driver) writeLevel(t *gpuTexture, level uint32, rgba []byte, w, h int) {
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: level},
		rgba,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(w * 4), RowsPerImage: uint32(h)},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
}

// uploadTexture creates a single level sampled texture from tight RGBA8 rows.
func (d *Driver) uploadTexture(label string, rgba []byte, w, h int) (*gpuTexture, error) {
	t, err := d.newTexture(label, w, h, 1, 1, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
	if err != nil {
		return nil, err
	}
	d.writeLevel(t, 0, rgba, w, h)
	return t, nil
}

// textureKey identifies one upload of engine texture memory. Version
// changes whenever the engine rewrites the memory.
type textureKey struct {
	data    *byte
	version uint64
	format  driver.TextureFormat
	w, h    int
}

// texture returns the device copy of desc, uploading every level on first
// use. Formats without a native equivalent are expanded to RGBA8.
func (d *Driver) texture(desc *driver.TextureDesc) (*gpuTexture, error) {
	if desc == nil || len(desc.Data) == 0 {
		return d.white, nil
	}
	key := textureKey{data: &desc.Data[0], version: desc.Version, format: desc.Format, w: desc.Width, h: desc.Height}
	return d.textures.GetOrCreate(key, func() (*gpuTexture, error) {
		levels := 1
		if desc.Mipmapped && !desc.Format.Compressed() {
			levels = max(desc.Levels, 1)
		}
		label := fmt.Sprintf("vitagl_texture_%dx%d_%v", desc.Width, desc.Height, desc.Format)
		t, err := d.newTexture(label, desc.Width, desc.Height, uint32(levels), 1, gputypes.TextureFormatRGBA8Unorm,
			gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
		if err != nil {
			return nil, err
		}
		for l := range levels {
			rgba, w, h, err := pixel.ExpandLevel(desc, l)
			if err != nil {
				t.destroy(d.device)
				return nil, err
			}
			d.writeLevel(t, uint32(l), rgba, w, h)
		}
		slogger().Debug("hal: texture uploaded", "label", label, "levels", levels, "version", desc.Version)
		return t, nil
	})
}

type samplerKey struct {
	min, mag, mip driver.Filter
	mipmapped     bool
	u, v          driver.Wrap
}

func (d *Driver) sampler(desc *driver.TextureDesc) (hal.Sampler, error) {
	var key samplerKey
	if desc != nil {
		key = samplerKey{
			min: desc.MinFilter, mag: desc.MagFilter, mip: desc.MipFilter,
			mipmapped: desc.Mipmapped, u: desc.WrapU, v: desc.WrapV,
		}
	}
	if s, ok := d.samplers[key]; ok {
		return s, nil
	}
	mip := gputypes.FilterModeNearest
	if key.mipmapped {
		mip = filterMode(key.mip)
	}
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "vitagl_sampler",
		AddressModeU: addressMode(key.u),
		AddressModeV: addressMode(key.v),
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    filterMode(key.mag),
		MinFilter:    filterMode(key.min),
		MipmapFilter: mip,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create sampler: %w", err)
	}
	d.samplers[key] = s
	return s, nil
}

// renderTarget holds the device side of a color surface. The engine owns
// the color memory; the target texture mirrors it for the length of a
// scene.
type renderTarget struct {
	w, h    int
	samples uint32
	color   *gpuTexture
	msaa    *gpuTexture
	depth   *gpuTexture
}

func (r *renderTarget) Size() (int, int) { return r.w, r.h }

// CreateRenderTarget implements driver.Context.
func (d *Driver) CreateRenderTarget(params driver.RenderTargetParams) (driver.RenderTarget, error) {
	if params.Width <= 0 || params.Height <= 0 {
		return nil, fmt.Errorf("hal: render target size %dx%d", params.Width, params.Height)
	}
	samples := uint32(params.Multisample.Samples())
	rt := &renderTarget{w: params.Width, h: params.Height, samples: samples}

	var err error
	label := fmt.Sprintf("vitagl_target_%dx%d", params.Width, params.Height)
	rt.color, err = d.newTexture(label, params.Width, params.Height, 1, 1, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc|gputypes.TextureUsageCopyDst)
	if err != nil {
		return nil, err
	}
	if samples > 1 {
		rt.msaa, err = d.newTexture(label+"_msaa", params.Width, params.Height, 1, samples, gputypes.TextureFormatRGBA8Unorm,
			gputypes.TextureUsageRenderAttachment)
		if err != nil {
			d.destroyTarget(rt)
			return nil, err
		}
	}
	rt.depth, err = d.newTexture(label+"_depth", params.Width, params.Height, 1, samples, depthFormat,
		gputypes.TextureUsageRenderAttachment)
	if err != nil {
		d.destroyTarget(rt)
		return nil, err
	}
	slogger().Debug("hal: render target created", "width", params.Width, "height", params.Height, "samples", samples)
	return rt, nil
}

// DestroyRenderTarget implements driver.Context.
func (d *Driver) DestroyRenderTarget(t driver.RenderTarget) error {
	rt, ok := t.(*renderTarget)
	if !ok {
		return fmt.Errorf("hal: foreign render target %T", t)
	}
	d.destroyTarget(rt)
	return nil
}

func (d *Driver) destroyTarget(rt *renderTarget) {
	rt.color.destroy(d.device)
	rt.msaa.destroy(d.device)
	rt.depth.destroy(d.device)
}
