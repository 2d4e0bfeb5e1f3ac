package hal

import (
	"fmt"
	"hash/fnv"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/wgslparam"
)

// program is a registered blob compiled into a shader module.
type program struct {
	id     driver.ProgramID
	shader *wgslparam.Shader
	module hal.ShaderModule
	entry  string
}

type vertexProgram struct {
	prog    *program
	serial  uint64
	buffers []gputypes.VertexBufferLayout
	// streams is the number of vertex buffers Draw must bind.
	streams  int
	released bool
}

func (p *vertexProgram) Program() driver.ProgramID { return p.prog.id }

type fragmentProgram struct {
	prog    *program
	serial  uint64
	format  gputypes.TextureFormat
	samples uint32
	blend   *gputypes.BlendState
	mask    gputypes.ColorWriteMask
	refs    int
}

func (p *fragmentProgram) Program() driver.ProgramID { return p.prog.id }

// reflect parses blob once per distinct content.
func (d *Driver) reflect(blob []byte) (*wgslparam.Shader, error) {
	h := fnv.New64a()
	h.Write(blob)
	return d.reflections.GetOrCreate(h.Sum64(), func() (*wgslparam.Shader, error) {
		return wgslparam.Parse(blob)
	})
}

// RegisterProgram implements driver.ShaderPatcher.
func (d *Driver) RegisterProgram(blob []byte) (driver.ProgramID, error) {
	sh, err := d.reflect(blob)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", driver.ErrInvalidBlob, err)
	}
	d.nextID++
	id := d.nextID
	label := fmt.Sprintf("vitagl_%s_%d", sh.Stage, id)

	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: shaderSource(label, blob),
	})
	if err != nil {
		return 0, fmt.Errorf("hal: create shader module %s: %w", label, err)
	}
	entry := "vs_main"
	if sh.Stage == driver.StageFragment {
		entry = "fs_main"
	}
	d.programs[id] = &program{id: id, shader: sh, module: module, entry: entry}
	slogger().Debug("hal: program registered", "id", id, "stage", sh.Stage, "uniforms", sh.UniformSize)
	return id, nil
}

// shaderSource compiles WGSL to SPIR-V. Modules naga rejects are handed
// to the device as WGSL.
func shaderSource(label string, blob []byte) hal.ShaderSource {
	spirv, err := naga.Compile(string(blob))
	if err != nil {
		slogger().Debug("hal: naga compile failed, using WGSL source", "module", label, "err", err)
		return hal.ShaderSource{WGSL: string(blob)}
	}
	// SPIR-V is little-endian 32-bit words
	code := make([]uint32, len(spirv)/4)
	for i := range code {
		code[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return hal.ShaderSource{SPIRV: code}
}

// UnregisterProgram implements driver.ShaderPatcher.
func (d *Driver) UnregisterProgram(id driver.ProgramID) error {
	p, ok := d.programs[id]
	if !ok {
		return driver.ErrUnknownProgram
	}
	d.device.DestroyShaderModule(p.module)
	delete(d.programs, id)
	return nil
}

// FindParameter implements driver.ShaderPatcher.
func (d *Driver) FindParameter(blob []byte, name string) *driver.Parameter {
	sh, err := d.reflect(blob)
	if err != nil {
		return nil
	}
	return sh.Find(name)
}

// AttributeIndex implements driver.ShaderPatcher.
func (d *Driver) AttributeIndex(blob []byte, name string) (int, bool) {
	sh, err := d.reflect(blob)
	if err != nil {
		return 0, false
	}
	return sh.Input(name)
}

func (d *Driver) stageProgram(id driver.ProgramID, stage driver.Stage) (*program, error) {
	p, ok := d.programs[id]
	if !ok {
		return nil, driver.ErrUnknownProgram
	}
	if p.shader.Stage != stage {
		return nil, fmt.Errorf("hal: program %d is a %v shader", id, p.shader.Stage)
	}
	return p, nil
}

// CreateVertexProgram implements driver.ShaderPatcher. Each stream becomes
// one vertex buffer layout.
func (d *Driver) CreateVertexProgram(id driver.ProgramID, attrs []driver.VertexAttribute, streams []driver.VertexStream) (driver.VertexProgram, error) {
	p, err := d.stageProgram(id, driver.StageVertex)
	if err != nil {
		return nil, err
	}
	buffers := make([]gputypes.VertexBufferLayout, len(streams))
	for i, s := range streams {
		buffers[i] = gputypes.VertexBufferLayout{
			ArrayStride: uint64(s.Stride),
			StepMode:    gputypes.VertexStepModeVertex,
		}
	}
	for _, a := range attrs {
		if a.StreamIndex < 0 || a.StreamIndex >= len(buffers) {
			return nil, fmt.Errorf("hal: attribute stream %d of %d", a.StreamIndex, len(buffers))
		}
		f, err := vertexFormat(a.Format, a.Components)
		if err != nil {
			return nil, err
		}
		b := &buffers[a.StreamIndex]
		b.Attributes = append(b.Attributes, gputypes.VertexAttribute{
			Format:         f,
			Offset:         uint64(a.Offset),
			ShaderLocation: uint32(a.RegIndex),
		})
	}
	d.serial++
	return &vertexProgram{prog: p, serial: d.serial, buffers: buffers, streams: len(streams)}, nil
}

// CreateFragmentProgram implements driver.ShaderPatcher.
func (d *Driver) CreateFragmentProgram(id driver.ProgramID, format driver.ColorFormat, ms driver.Multisample, blend *driver.BlendInfo, _ driver.VertexProgram) (driver.FragmentProgram, error) {
	p, err := d.stageProgram(id, driver.StageFragment)
	if err != nil {
		return nil, err
	}
	state, mask, err := blendState(blend)
	if err != nil {
		return nil, err
	}
	d.serial++
	return &fragmentProgram{
		prog:    p,
		serial:  d.serial,
		format:  colorFormat(format),
		samples: uint32(ms.Samples()),
		blend:   state,
		mask:    mask,
		refs:    1,
	}, nil
}

// ReleaseVertexProgram implements driver.ShaderPatcher. Pipelines built
// from p age out of the pipeline cache.
func (d *Driver) ReleaseVertexProgram(p driver.VertexProgram) error {
	vp, ok := p.(*vertexProgram)
	if !ok || vp.released {
		return fmt.Errorf("hal: release of invalid vertex program")
	}
	vp.released = true
	return nil
}

// ReleaseFragmentProgram implements driver.ShaderPatcher.
func (d *Driver) ReleaseFragmentProgram(p driver.FragmentProgram) error {
	fp, ok := p.(*fragmentProgram)
	if !ok || fp.refs <= 0 {
		return fmt.Errorf("hal: release of invalid fragment program")
	}
	fp.refs--
	return nil
}

// FragmentProgramRefCount implements driver.ShaderPatcher.
func (d *Driver) FragmentProgramRefCount(p driver.FragmentProgram) (int, error) {
	fp, ok := p.(*fragmentProgram)
	if !ok {
		return 0, fmt.Errorf("hal: foreign fragment program %T", p)
	}
	return fp.refs, nil
}
