// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vitagl/driver"
)

const depthFormat = gputypes.TextureFormatDepth24PlusStencil8

// Bindings of the shared group 0 layout.
const (
	bindingVertexUniforms = iota
	bindingFragmentUniforms
	bindingTexture
	bindingSampler
)

// bindLayout is the group 0 layout every program is compiled against.
type bindLayout struct {
	group    hal.BindGroupLayout
	pipeline hal.PipelineLayout
}

func newBindLayout(device hal.Device) (*bindLayout, error) {
	group, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "vitagl_group0_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    bindingVertexUniforms,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    bindingFragmentUniforms,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    bindingTexture,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    bindingSampler,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create bind group layout: %w", err)
	}
	pipeline, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "vitagl_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{group},
	})
	if err != nil {
		device.DestroyBindGroupLayout(group)
		return nil, fmt.Errorf("hal: create pipeline layout: %w", err)
	}
	return &bindLayout{group: group, pipeline: pipeline}, nil
}

func (l *bindLayout) destroy(device hal.Device) {
	device.DestroyPipelineLayout(l.pipeline)
	device.DestroyBindGroupLayout(l.group)
}

// pipelineKey identifies a render pipeline. Program objects are keyed by
// serial so a released program never aliases a newer one.
type pipelineKey struct {
	vp, fp   uint64
	topology gputypes.PrimitiveTopology
	cull     driver.CullMode
	depth    driver.DepthState
}

func (d *Driver) pipeline(vp *vertexProgram, fp *fragmentProgram, topo gputypes.PrimitiveTopology, cull driver.CullMode, depth driver.DepthState) (hal.RenderPipeline, error) {
	key := pipelineKey{vp: vp.serial, fp: fp.serial, topology: topo, cull: cull, depth: depth}
	return d.pipelines.GetOrCreate(key, func() (hal.RenderPipeline, error) {
		label := fmt.Sprintf("vitagl_pipeline_%d_%d", vp.prog.id, fp.prog.id)
		p, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
			Label:  label,
			Layout: d.layout.pipeline,
			Vertex: hal.VertexState{
				Module:     vp.prog.module,
				EntryPoint: vp.prog.entry,
				Buffers:    vp.buffers,
			},
			Fragment: &hal.FragmentState{
				Module:     fp.prog.module,
				EntryPoint: fp.prog.entry,
				Targets: []gputypes.ColorTargetState{
					{
						Format:    fp.format,
						Blend:     fp.blend,
						WriteMask: fp.mask,
					},
				},
			},
			DepthStencil: &hal.DepthStencilState{
				Format:            depthFormat,
				DepthWriteEnabled: depth.Write,
				DepthCompare:      compareFunc(depth.Func),
				StencilFront:      keepStencil,
				StencilBack:       keepStencil,
			},
			Primitive: gputypes.PrimitiveState{
				Topology:  topo,
				FrontFace: gputypes.FrontFaceCCW,
				CullMode:  cullMode(cull),
			},
			Multisample: gputypes.MultisampleState{
				Count: fp.samples,
				Mask:  0xFFFFFFFF,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("hal: create pipeline %s: %w", label, err)
		}
		slogger().Debug("hal: pipeline created", "label", label, "topology", topo)
		return p, nil
	})
}

var keepStencil = hal.StencilFaceState{
	Compare:     gputypes.CompareFunctionAlways,
	FailOp:      hal.StencilOperationKeep,
	DepthFailOp: hal.StencilOperationKeep,
	PassOp:      hal.StencilOperationKeep,
}
