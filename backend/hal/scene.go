// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vitagl/driver"
)

// rowAlign is the copy row pitch alignment of CopyTextureToBuffer.
const rowAlign = 256

type uniformBuffer struct {
	stage driver.Stage
	data  []float32
}

func (u *uniformBuffer) Stage() driver.Stage { return u.stage }

// scene is one open render pass.
type scene struct {
	target  *renderTarget
	color   *driver.ColorSurface
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder

	vp       *vertexProgram
	fp       *fragmentProgram
	cull     driver.CullMode
	depth    driver.DepthState
	clip     driver.RegionClip
	viewport driver.Viewport
	streams  [][]byte
	texture  *driver.TextureDesc
	uniforms [2]*uniformBuffer

	buffers []hal.Buffer
	groups  []hal.BindGroup
	draws   int
}

func (s *scene) release(device hal.Device) {
	for _, g := range s.groups {
		device.DestroyBindGroup(g)
	}
	for _, b := range s.buffers {
		device.DestroyBuffer(b)
	}
	s.groups, s.buffers = nil, nil
}

// abort drops a scene that will never be submitted.
func (s *scene) abort(device hal.Device) {
	s.pass.End()
	s.encoder.DiscardEncoding()
	s.release(device)
}

// BeginScene implements driver.Context. The color surface is uploaded
// into the target so draws blend over its current content.
func (d *Driver) BeginScene(target driver.RenderTarget, color *driver.ColorSurface, _ *driver.DepthStencilSurface, flags driver.SceneFlags) error {
	if d.scene != nil {
		return driver.ErrSceneInProgress
	}
	rt, ok := target.(*renderTarget)
	if !ok {
		return fmt.Errorf("hal: foreign render target %T", target)
	}
	if color == nil || color.Format != driver.FormatRGBA8 {
		return fmt.Errorf("hal: color surface must be RGBA8")
	}
	if color.Width != rt.w || color.Height != rt.h {
		return fmt.Errorf("hal: color surface %dx%d on %dx%d target", color.Width, color.Height, rt.w, rt.h)
	}
	d.writeLevel(rt.color, 0, tightRows(color.Data, color.Width, color.Height, color.Stride), rt.w, rt.h)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "vitagl_scene"})
	if err != nil {
		return fmt.Errorf("hal: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("vitagl_scene"); err != nil {
		return fmt.Errorf("hal: begin encoding: %w", err)
	}

	attachment := hal.RenderPassColorAttachment{
		View:    rt.color.view,
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if rt.msaa != nil {
		attachment.View = rt.msaa.view
		attachment.ResolveTarget = rt.color.view
	}
	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            "vitagl_scene_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{attachment},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              rt.depth.view,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		},
	})

	d.scene = &scene{
		target:  rt,
		color:   color,
		encoder: encoder,
		pass:    pass,
		clip:    driver.RegionClip{Mode: driver.ClipNone},
		viewport: driver.Viewport{
			XOffset: float32(rt.w) / 2, XScale: float32(rt.w) / 2,
			YOffset: float32(rt.h) / 2, YScale: -float32(rt.h) / 2,
			ZOffset: 0.5, ZScale: 0.5,
		},
	}
	slogger().Debug("hal: scene begun", "width", rt.w, "height", rt.h,
		"wait_dependency", flags&driver.SceneVertexWaitForDependency != 0)
	return nil
}

// EndScene implements driver.Context. The target is read back into the
// color surface before it returns.
func (d *Driver) EndScene() error {
	s := d.scene
	if s == nil {
		return driver.ErrNoScene
	}
	d.scene = nil
	defer s.release(d.device)
	s.pass.End()

	w, h := uint32(s.target.w), uint32(s.target.h)
	bytesPerRow := w * 4
	alignedRow := (bytesPerRow + rowAlign - 1) / rowAlign * rowAlign
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "vitagl_readback",
		Size:  uint64(alignedRow) * uint64(h),
		Usage: gputypes.BufferUsageCopyDst | gputypes.BufferUsageMapRead,
	})
	if err != nil {
		s.encoder.DiscardEncoding()
		return fmt.Errorf("hal: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	tex := s.target.color.tex
	s.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	s.encoder.CopyTextureToBuffer(tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	s.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := s.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("hal: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("hal: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("hal: submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !ok {
		return fmt.Errorf("hal: wait for GPU: ok=%v err=%w", ok, err)
	}

	readback := make([]byte, uint64(alignedRow)*uint64(h))
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("hal: readback: %w", err)
	}
	stride := s.color.Stride * 4
	for y := range int(h) {
		copy(s.color.Data[y*stride:y*stride+int(bytesPerRow)], readback[y*int(alignedRow):])
	}
	slogger().Debug("hal: scene ended", "draws", s.draws, "buffers", len(s.buffers))
	return nil
}

// SetViewport implements driver.Context.
func (d *Driver) SetViewport(v driver.Viewport) {
	if d.scene != nil {
		d.scene.viewport = v
	}
}

// SetRegionClip implements driver.Context.
func (d *Driver) SetRegionClip(c driver.RegionClip) {
	if d.scene == nil {
		return
	}
	if c.Mode == driver.ClipInside {
		slogger().Warn("hal: inside region clip unsupported, clipping disabled")
		c.Mode = driver.ClipNone
	}
	d.scene.clip = c
}

// SetCullMode implements driver.Context.
func (d *Driver) SetCullMode(m driver.CullMode) {
	if d.scene != nil {
		d.scene.cull = m
	}
}

// SetDepthState implements driver.Context.
func (d *Driver) SetDepthState(st driver.DepthState) {
	if d.scene != nil {
		d.scene.depth = st
	}
}

// SetVertexProgram implements driver.Context.
func (d *Driver) SetVertexProgram(p driver.VertexProgram) {
	if d.scene == nil {
		return
	}
	vp, _ := p.(*vertexProgram)
	d.scene.vp = vp
}

// SetFragmentProgram implements driver.Context.
func (d *Driver) SetFragmentProgram(p driver.FragmentProgram) {
	if d.scene == nil {
		return
	}
	fp, _ := p.(*fragmentProgram)
	d.scene.fp = fp
}

// SetVertexStream implements driver.Context.
func (d *Driver) SetVertexStream(index int, data []byte) error {
	s := d.scene
	if s == nil {
		return driver.ErrNoScene
	}
	if index < 0 {
		return fmt.Errorf("hal: vertex stream %d", index)
	}
	for len(s.streams) <= index {
		s.streams = append(s.streams, nil)
	}
	s.streams[index] = data
	return nil
}

// SetFragmentTexture implements driver.Context. The shared layout has one
// texture binding, so only unit 0 is sampled.
func (d *Driver) SetFragmentTexture(unit int, tex *driver.TextureDesc) error {
	s := d.scene
	if s == nil {
		return driver.ErrNoScene
	}
	if unit != 0 {
		if tex != nil {
			slogger().Debug("hal: texture unit ignored", "unit", unit)
		}
		return nil
	}
	s.texture = tex
	return nil
}

// ReserveUniformBuffer implements driver.Context.
func (d *Driver) ReserveUniformBuffer(stage driver.Stage) (driver.UniformBuffer, error) {
	s := d.scene
	if s == nil {
		return nil, driver.ErrNoScene
	}
	size, err := s.uniformSize(stage)
	if err != nil {
		return nil, err
	}
	ub := &uniformBuffer{stage: stage, data: make([]float32, size)}
	s.uniforms[stage] = ub
	return ub, nil
}

func (s *scene) uniformSize(stage driver.Stage) (int, error) {
	switch {
	case stage == driver.StageVertex && s.vp != nil:
		return s.vp.prog.shader.UniformSize, nil
	case stage == driver.StageFragment && s.fp != nil:
		return s.fp.prog.shader.UniformSize, nil
	case stage > driver.StageFragment:
		return 0, fmt.Errorf("hal: stage %v", stage)
	}
	return 0, driver.ErrNoProgram
}

// SetUniformData implements driver.Context.
func (d *Driver) SetUniformData(buf driver.UniformBuffer, p *driver.Parameter, componentOffset int, data []float32) error {
	ub, ok := buf.(*uniformBuffer)
	if !ok {
		return fmt.Errorf("hal: foreign uniform buffer %T", buf)
	}
	start := p.Offset + componentOffset
	if start < 0 || start+len(data) > len(ub.data) {
		return fmt.Errorf("hal: uniform %s write %d+%d outside %d components", p.Name, start, len(data), len(ub.data))
	}
	copy(ub.data[start:], data)
	return nil
}

// Draw implements driver.Context.
func (d *Driver) Draw(prim driver.Primitive, format driver.IndexFormat, indices []byte, count int) error {
	s := d.scene
	if s == nil {
		return driver.ErrNoScene
	}
	if s.vp == nil || s.fp == nil {
		return driver.ErrNoProgram
	}
	defer func() { s.uniforms = [2]*uniformBuffer{} }()
	if s.clip.Mode == driver.ClipAll || count == 0 {
		return nil
	}
	if len(indices) < count*format.Size() {
		return fmt.Errorf("hal: %d indices in %d bytes", count, len(indices))
	}
	if prim == driver.PrimTriangleFan {
		indices, count = fanToList(format, indices, count)
		if count == 0 {
			return nil
		}
	}

	pipeline, err := d.pipeline(s.vp, s.fp, topology(prim), s.cull, s.depth)
	if err != nil {
		return err
	}
	group, err := d.bindGroup(s)
	if err != nil {
		return err
	}

	rp := s.pass
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, group, nil)
	for i := range s.vp.streams {
		if i >= len(s.streams) || len(s.streams[i]) == 0 {
			return fmt.Errorf("hal: vertex stream %d not set", i)
		}
		vb, err := d.transientBuffer(s, "vitagl_vertices", s.streams[i], gputypes.BufferUsageVertex)
		if err != nil {
			return err
		}
		rp.SetVertexBuffer(uint32(i), vb, 0)
	}
	ib, err := d.transientBuffer(s, "vitagl_indices", indices[:count*format.Size()], gputypes.BufferUsageIndex)
	if err != nil {
		return err
	}
	rp.SetIndexBuffer(ib, indexFormat(format), 0)

	x, y, w, h, near, far := viewportRect(s.viewport)
	rp.SetViewport(x, y, w, h, near, far)
	sx, sy, sw, sh := s.scissor()
	rp.SetScissorRect(sx, sy, sw, sh)

	rp.DrawIndexed(uint32(count), 1, 0, 0, 0)
	s.draws++
	return nil
}

// bindGroup builds group 0 for the next draw from the reserved uniform
// buffers and texture unit 0.
func (d *Driver) bindGroup(s *scene) (hal.BindGroup, error) {
	var ubs [2]hal.Buffer
	var sizes [2]uint64
	for stage := range ubs {
		size, err := s.uniformSize(driver.Stage(stage))
		if err != nil {
			return nil, err
		}
		data := make([]float32, size)
		if ub := s.uniforms[stage]; ub != nil {
			data = ub.data
		}
		raw := float32Bytes(data, max(roundUp(size*4, 16), 16))
		buf, err := d.transientBuffer(s, "vitagl_uniforms", raw, gputypes.BufferUsageUniform)
		if err != nil {
			return nil, err
		}
		ubs[stage], sizes[stage] = buf, uint64(len(raw))
	}

	tex, err := d.texture(s.texture)
	if err != nil {
		return nil, err
	}
	smp, err := d.sampler(s.texture)
	if err != nil {
		return nil, err
	}

	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "vitagl_draw_group",
		Layout: d.layout.group,
		Entries: []gputypes.BindGroupEntry{
			{Binding: bindingVertexUniforms, Resource: gputypes.BufferBinding{
				Buffer: ubs[driver.StageVertex].NativeHandle(), Offset: 0, Size: sizes[driver.StageVertex],
			}},
			{Binding: bindingFragmentUniforms, Resource: gputypes.BufferBinding{
				Buffer: ubs[driver.StageFragment].NativeHandle(), Offset: 0, Size: sizes[driver.StageFragment],
			}},
			{Binding: bindingTexture, Resource: gputypes.TextureViewBinding{TextureView: tex.view.NativeHandle()}},
			{Binding: bindingSampler, Resource: gputypes.SamplerBinding{Sampler: smp.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create bind group: %w", err)
	}
	s.groups = append(s.groups, group)
	return group, nil
}

// transientBuffer uploads data into a buffer freed when the scene ends.
// Sizes are padded to 4 bytes for WriteBuffer.
func (d *Driver) transientBuffer(s *scene, label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	size := roundUp(len(data), 4)
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create %s buffer (%d bytes): %w", label, size, err)
	}
	s.buffers = append(s.buffers, buf)
	if size != len(data) {
		padded := make([]byte, size)
		copy(padded, data)
		data = padded
	}
	d.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// viewportRect converts the offset/scale form into a top-left rectangle
// and depth range.
func viewportRect(v driver.Viewport) (x, y, w, h, near, far float32) {
	hw, hh := abs32(v.XScale), abs32(v.YScale)
	near = min(max(v.ZOffset-v.ZScale, 0), 1)
	far = min(max(v.ZOffset+v.ZScale, 0), 1)
	return v.XOffset - hw, v.YOffset - hh, max(2*hw, 1), max(2*hh, 1), min(near, far), max(near, far)
}

// scissor returns the pass scissor rectangle of the current clip.
func (s *scene) scissor() (x, y, w, h uint32) {
	if s.clip.Mode != driver.ClipOutside {
		return 0, 0, uint32(s.target.w), uint32(s.target.h)
	}
	x0 := min(max(s.clip.X0, 0), s.target.w)
	y0 := min(max(s.clip.Y0, 0), s.target.h)
	x1 := min(max(s.clip.X1+1, x0), s.target.w)
	y1 := min(max(s.clip.Y1+1, y0), s.target.h)
	return uint32(x0), uint32(y0), uint32(x1 - x0), uint32(y1 - y0)
}

func float32Bytes(v []float32, size int) []byte {
	out := make([]byte, size)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// tightRows drops the row padding of an RGBA8 surface.
func tightRows(data []byte, w, h, stride int) []byte {
	if stride == w {
		return data[:w*h*4]
	}
	out := make([]byte, w*h*4)
	for y := range h {
		copy(out[y*w*4:(y+1)*w*4], data[y*stride*4:])
	}
	return out
}

func roundUp(v, a int) int { return (v + a - 1) / a * a }

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
