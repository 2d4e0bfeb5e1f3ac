package drivertest

import (
	"fmt"
	"slices"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/wgslparam"
)

// RegisterProgram implements driver.ShaderPatcher.
func (d *Driver) RegisterProgram(blob []byte) (driver.ProgramID, error) {
	d.op("RegisterProgram")
	sh, err := wgslparam.Parse(blob)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", driver.ErrInvalidBlob, err)
	}
	d.nextID++
	d.programs[d.nextID] = &program{blob: slices.Clone(blob), shader: sh}
	return d.nextID, nil
}

// UnregisterProgram implements driver.ShaderPatcher.
func (d *Driver) UnregisterProgram(id driver.ProgramID) error {
	d.op("UnregisterProgram")
	if _, ok := d.programs[id]; !ok {
		return driver.ErrUnknownProgram
	}
	delete(d.programs, id)
	return nil
}

// Registered returns the number of registered programs.
func (d *Driver) Registered() int { return len(d.programs) }

// FindParameter implements driver.ShaderPatcher.
func (d *Driver) FindParameter(blob []byte, name string) *driver.Parameter {
	sh, err := wgslparam.Parse(blob)
	if err != nil {
		return nil
	}
	return sh.Find(name)
}

// AttributeIndex implements driver.ShaderPatcher.
func (d *Driver) AttributeIndex(blob []byte, name string) (int, bool) {
	sh, err := wgslparam.Parse(blob)
	if err != nil {
		return 0, false
	}
	return sh.Input(name)
}

// CreateVertexProgram implements driver.ShaderPatcher.
func (d *Driver) CreateVertexProgram(id driver.ProgramID, attrs []driver.VertexAttribute, streams []driver.VertexStream) (driver.VertexProgram, error) {
	d.op("CreateVertexProgram")
	p, ok := d.programs[id]
	if !ok {
		return nil, driver.ErrUnknownProgram
	}
	if p.shader.Stage != driver.StageVertex {
		return nil, fmt.Errorf("drivertest: program %d is a %v shader", id, p.shader.Stage)
	}
	vp := &VertexProgram{ID: id, Attrs: slices.Clone(attrs), Streams: slices.Clone(streams)}
	d.VertexPrograms = append(d.VertexPrograms, vp)
	return vp, nil
}

// CreateFragmentProgram implements driver.ShaderPatcher.
func (d *Driver) CreateFragmentProgram(id driver.ProgramID, format driver.ColorFormat, ms driver.Multisample, blend *driver.BlendInfo, vp driver.VertexProgram) (driver.FragmentProgram, error) {
	d.op("CreateFragmentProgram")
	p, ok := d.programs[id]
	if !ok {
		return nil, driver.ErrUnknownProgram
	}
	if p.shader.Stage != driver.StageFragment {
		return nil, fmt.Errorf("drivertest: program %d is a %v shader", id, p.shader.Stage)
	}
	fp := &FragmentProgram{ID: id, Format: format, Multisample: ms, refs: 1}
	if blend != nil {
		b := *blend
		fp.Blend = &b
	}
	d.FragPrograms = append(d.FragPrograms, fp)
	return fp, nil
}

// ReleaseVertexProgram implements driver.ShaderPatcher.
func (d *Driver) ReleaseVertexProgram(p driver.VertexProgram) error {
	d.op("ReleaseVertexProgram")
	vp, ok := p.(*VertexProgram)
	if !ok || vp.Released {
		return fmt.Errorf("drivertest: release of invalid vertex program")
	}
	vp.Released = true
	return nil
}

// ReleaseFragmentProgram implements driver.ShaderPatcher. The program is
// released once its reference count drops to zero.
func (d *Driver) ReleaseFragmentProgram(p driver.FragmentProgram) error {
	d.op("ReleaseFragmentProgram")
	fp, ok := p.(*FragmentProgram)
	if !ok || fp.Released {
		return fmt.Errorf("drivertest: release of invalid fragment program")
	}
	fp.refs--
	if fp.refs <= 0 {
		fp.Released = true
	}
	return nil
}

// FragmentProgramRefCount implements driver.ShaderPatcher.
func (d *Driver) FragmentProgramRefCount(p driver.FragmentProgram) (int, error) {
	fp, ok := p.(*FragmentProgram)
	if !ok {
		return 0, fmt.Errorf("drivertest: foreign fragment program %T", p)
	}
	return fp.refs, nil
}

// LiveFragmentPrograms returns the fragment programs not yet released.
func (d *Driver) LiveFragmentPrograms() int {
	n := 0
	for _, fp := range d.FragPrograms {
		if !fp.Released {
			n++
		}
	}
	return n
}
