// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vitagl

import (
	"fmt"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/linear"
	"github.com/gogpu/vitagl/internal/slot"
)

// Shader names a shader object. Zero is invalid.
type Shader uint32

func (s Shader) handle() slot.Handle { return slot.Handle(s) }

// Program names a program object. Zero selects the fixed-function
// programs.
type Program uint32

func (p Program) handle() slot.Handle { return slot.Handle(p) }

// Uniform locates a uniform of one program. The zero Uniform is the
// location of no uniform; writes to it are ignored.
type Uniform struct {
	prog  Program
	index int // 1-based into program.uniforms
}

type shader struct {
	typ   ShaderType
	blob  []byte
	id    driver.ProgramID
	valid bool

	attached int
	deleted  bool
}

type attribute struct {
	name   string
	reg    int
	format driver.AttribFormat
	comps  int
	set    bool
	stream int
}

type uniformRecord struct {
	name   string
	param  *driver.Parameter
	values []float32
	set    bool
}

type program struct {
	vs, fs  Shader
	attrs   [MaxVertexAttribs]attribute
	streams int

	vp     driver.VertexProgram
	fp     driver.FragmentProgram
	linked bool

	uniforms []uniformRecord
	// wvp is the vertex parameter written by DrawObjects with an implicit
	// view-projection.
	wvp *driver.Parameter
}

// CreateShader creates an empty shader of type t. It returns 0 when the
// shader table is full.
func (c *Context) CreateShader(t ShaderType) (Shader, error) {
	const op = "CreateShader"
	if t > FragmentShader {
		return 0, c.failf(op, ErrInvalidEnum, "shader type %d", t)
	}
	h, ok := c.shaders.Insert(shader{typ: t})
	if !ok {
		return 0, c.failf(op, ErrInvalidOperation, "shader table full (%d)", c.shaders.Cap())
	}
	return Shader(h), nil
}

func (c *Context) shaderObject(op string, s Shader) (*shader, error) {
	sh := c.shaders.Ptr(s.handle())
	if s == 0 || sh == nil || sh.deleted {
		return nil, c.failf(op, ErrInvalidValue, "unknown shader %d", s)
	}
	return sh, nil
}

func (c *Context) programObject(op string, p Program) (*program, error) {
	pr := c.programs.Ptr(p.handle())
	if p == 0 || pr == nil {
		return nil, c.failf(op, ErrInvalidValue, "unknown program %d", p)
	}
	return pr, nil
}

// ShaderBinary registers a precompiled blob as the code of s.
func (c *Context) ShaderBinary(s Shader, blob []byte) error {
	const op = "ShaderBinary"
	sh, err := c.shaderObject(op, s)
	if err != nil {
		return err
	}
	if sh.valid && sh.attached > 0 {
		return c.failf(op, ErrInvalidOperation, "shader %d is attached", s)
	}
	id, err := c.drv.RegisterProgram(blob)
	if err != nil {
		return c.fail(op, fmt.Errorf("%w: %w", ErrInvalidValue, err))
	}
	if sh.valid {
		c.unregister(sh.id)
	}
	sh.blob = append(sh.blob[:0], blob...)
	sh.id = id
	sh.valid = true
	c.logger.Debug("vitagl: shader binary registered", "shader", s, "stage", sh.typ.stage(), "bytes", len(blob))
	return nil
}

// DeleteShader deletes s. A shader still attached to a program is
// released once the last program lets go of it.
func (c *Context) DeleteShader(s Shader) {
	sh := c.shaders.Ptr(s.handle())
	if s == 0 || sh == nil || sh.deleted {
		return
	}
	sh.deleted = true
	c.dropShader(s, sh)
}

// dropShader releases a deleted shader with no attachments.
func (c *Context) dropShader(s Shader, sh *shader) {
	if !sh.deleted || sh.attached > 0 {
		return
	}
	if sh.valid {
		c.unregister(sh.id)
	}
	c.shaders.Remove(s.handle())
}

func (c *Context) detachShader(s Shader) {
	if s == 0 {
		return
	}
	if sh := c.shaders.Ptr(s.handle()); sh != nil {
		sh.attached--
		c.dropShader(s, sh)
	}
}

// IsShader reports whether s names a live shader.
func (c *Context) IsShader(s Shader) bool {
	sh := c.shaders.Ptr(s.handle())
	return s != 0 && sh != nil && !sh.deleted
}

// CreateProgram creates an empty program. It returns 0 when the program
// table is full.
func (c *Context) CreateProgram() (Program, error) {
	h, ok := c.programs.Insert(program{})
	if !ok {
		return 0, c.failf("CreateProgram", ErrInvalidOperation, "program table full (%d)", c.programs.Cap())
	}
	return Program(h), nil
}

// AttachShader attaches s to p, replacing any shader of the same stage.
func (c *Context) AttachShader(p Program, s Shader) error {
	const op = "AttachShader"
	pr, err := c.programObject(op, p)
	if err != nil {
		return err
	}
	sh, err := c.shaderObject(op, s)
	if err != nil {
		return err
	}
	slotOf := &pr.vs
	if sh.typ == FragmentShader {
		slotOf = &pr.fs
	}
	if *slotOf == s {
		return nil
	}
	sh.attached++
	prev := *slotOf
	*slotOf = s
	c.detachShader(prev)
	return nil
}

// BindAttribLocation binds generic attribute index to the vertex input
// called name. The attribute is fetched as comps components of typ:
// Float or normalized UnsignedByte. It takes effect at the next link.
func (c *Context) BindAttribLocation(p Program, index int, name string, comps int, typ Type) error {
	const op = "BindAttribLocation"
	pr, err := c.programObject(op, p)
	if err != nil {
		return err
	}
	if index < 0 || index >= MaxVertexAttribs || comps < 1 || comps > 4 {
		return c.failf(op, ErrInvalidValue, "index %d components %d", index, comps)
	}
	format := driver.AttribF32
	switch typ {
	case Float:
	case UnsignedByte:
		format = driver.AttribU8N
	default:
		return c.failf(op, ErrInvalidEnum, "attribute type %d", typ)
	}
	vs := c.shaders.Ptr(pr.vs.handle())
	if pr.vs == 0 || vs == nil || !vs.valid {
		return c.failf(op, ErrInvalidOperation, "program %d has no vertex shader", p)
	}
	reg, ok := c.drv.AttributeIndex(vs.blob, name)
	if !ok {
		return c.failf(op, ErrInvalidValue, "vertex input %q not found", name)
	}
	pr.attrs[index] = attribute{name: name, reg: reg, format: format, comps: comps, set: true}
	return nil
}

// LinkProgram creates the vertex and fragment program objects of p from
// its attached shaders, attribute bindings and the current blend state.
func (c *Context) LinkProgram(p Program) error {
	const op = "LinkProgram"
	pr, err := c.programObject(op, p)
	if err != nil {
		return err
	}
	vs, fs := c.shaders.Ptr(pr.vs.handle()), c.shaders.Ptr(pr.fs.handle())
	if pr.vs == 0 || pr.fs == 0 || vs == nil || fs == nil || !vs.valid || !fs.valid {
		return c.failf(op, ErrInvalidOperation, "program %d needs a vertex and a fragment shader", p)
	}

	var attrs []driver.VertexAttribute
	var streams []driver.VertexStream
	for i := range pr.attrs {
		at := &pr.attrs[i]
		if !at.set {
			continue
		}
		at.stream = len(streams)
		attrs = append(attrs, driver.VertexAttribute{
			StreamIndex: at.stream,
			Format:      at.format,
			Components:  at.comps,
			RegIndex:    at.reg,
		})
		streams = append(streams, driver.VertexStream{Stride: at.comps * at.format.Size()})
	}

	vp, err := c.drv.CreateVertexProgram(vs.id, attrs, streams)
	if err != nil {
		return c.fail(op, err)
	}
	fp, err := c.drv.CreateFragmentProgram(fs.id, driver.ColorFormatRGBA8, driver.MultisampleNone, c.state.blendInfo(), vp)
	if err != nil {
		c.releaseVertexProgram(vp)
		return c.fail(op, err)
	}
	c.releaseProgramObjects(pr)
	pr.vp, pr.fp = vp, fp
	pr.streams = len(streams)
	pr.linked = true
	pr.wvp = c.drv.FindParameter(vs.blob, "wvp")
	for i := range pr.uniforms {
		pr.uniforms[i].param = c.findUniform(pr, pr.uniforms[i].name)
	}
	if c.current == p {
		c.bindProgram(pr)
	}
	c.logger.Debug("vitagl: program linked", "program", p, "attributes", len(attrs))
	return nil
}

func (c *Context) bindProgram(pr *program) {
	c.drv.SetVertexProgram(pr.vp)
	c.drv.SetFragmentProgram(pr.fp)
}

// UseProgram makes p current and binds its program objects. Zero returns
// to the fixed-function programs.
func (c *Context) UseProgram(p Program) error {
	if p == 0 {
		c.current = 0
		return nil
	}
	pr, err := c.programObject("UseProgram", p)
	if err != nil {
		return err
	}
	if !pr.linked {
		return c.failf("UseProgram", ErrInvalidOperation, "program %d not linked", p)
	}
	c.current = p
	c.bindProgram(pr)
	return nil
}

// DeleteProgram releases the program objects of p and detaches its
// shaders.
func (c *Context) DeleteProgram(p Program) {
	pr, ok := c.programs.Remove(p.handle())
	if p == 0 || !ok {
		return
	}
	c.releaseProgramObjects(&pr)
	c.detachShader(pr.vs)
	c.detachShader(pr.fs)
	if c.current == p {
		c.current = 0
	}
}

func (c *Context) releaseProgramObjects(pr *program) {
	c.releaseFragmentProgram(pr.fp)
	c.releaseVertexProgram(pr.vp)
	pr.vp, pr.fp = nil, nil
	pr.linked = false
}

// findUniform searches the vertex stage and then the fragment stage.
func (c *Context) findUniform(pr *program, name string) *driver.Parameter {
	for _, s := range []Shader{pr.vs, pr.fs} {
		if sh := c.shaders.Ptr(s.handle()); s != 0 && sh != nil && sh.valid {
			if param := c.drv.FindParameter(sh.blob, name); param != nil {
				return param
			}
		}
	}
	return nil
}

// GetUniformLocation returns the location of name in the linked program
// p. A name neither stage declares yields a location whose writes are
// ignored.
func (c *Context) GetUniformLocation(p Program, name string) (Uniform, error) {
	const op = "GetUniformLocation"
	pr, err := c.programObject(op, p)
	if err != nil {
		return Uniform{}, err
	}
	if !pr.linked {
		return Uniform{}, c.failf(op, ErrInvalidOperation, "program %d not linked", p)
	}
	for i, u := range pr.uniforms {
		if u.name == name {
			return Uniform{prog: p, index: i + 1}, nil
		}
	}
	pr.uniforms = append(pr.uniforms, uniformRecord{name: name, param: c.findUniform(pr, name)})
	return Uniform{prog: p, index: len(pr.uniforms)}, nil
}

// setUniform stores values for upload by the draws of the owning program.
func (c *Context) setUniform(op string, u Uniform, values []float32) error {
	if u.index == 0 {
		return nil
	}
	pr := c.programs.Ptr(u.prog.handle())
	if pr == nil || u.index > len(pr.uniforms) {
		return c.failf(op, ErrInvalidOperation, "stale uniform location")
	}
	rec := &pr.uniforms[u.index-1]
	if rec.param == nil {
		return nil
	}
	n := min(len(values), rec.param.Size())
	rec.values = append(rec.values[:0], values[:n]...)
	rec.set = true
	return nil
}

// Uniform1f sets a float uniform.
func (c *Context) Uniform1f(u Uniform, v float32) error {
	return c.setUniform("Uniform1f", u, []float32{v})
}

// Uniform2f sets a vec2 uniform.
func (c *Context) Uniform2f(u Uniform, x, y float32) error {
	return c.setUniform("Uniform2f", u, []float32{x, y})
}

// Uniform3f sets a vec3 uniform.
func (c *Context) Uniform3f(u Uniform, x, y, z float32) error {
	return c.setUniform("Uniform3f", u, []float32{x, y, z})
}

// Uniform4f sets a vec4 uniform.
func (c *Context) Uniform4f(u Uniform, x, y, z, w float32) error {
	return c.setUniform("Uniform4f", u, []float32{x, y, z, w})
}

// Uniform1i sets an integer uniform. Integers are stored as floats.
func (c *Context) Uniform1i(u Uniform, v int32) error {
	return c.setUniform("Uniform1i", u, []float32{float32(v)})
}

// Uniform4fv sets count vec4 elements.
func (c *Context) Uniform4fv(u Uniform, count int, v []float32) error {
	if count < 0 || len(v) < count*4 {
		return c.failf("Uniform4fv", ErrInvalidValue, "%d values for %d elements", len(v), count)
	}
	return c.setUniform("Uniform4fv", u, v[:count*4])
}

// UniformMatrix4fv sets count column-major 4x4 matrices, transposing each
// when transpose is set.
func (c *Context) UniformMatrix4fv(u Uniform, count int, transpose bool, v []float32) error {
	const op = "UniformMatrix4fv"
	if count < 0 || len(v) < count*16 {
		return c.failf(op, ErrInvalidValue, "%d values for %d matrices", len(v), count)
	}
	vals := v[:count*16]
	if transpose {
		vals = make([]float32, 0, count*16)
		for i := range count {
			m := linear.Mat4(v[i*16 : (i+1)*16])
			t := m.Transpose()
			vals = append(vals, t[:]...)
		}
	}
	return c.setUniform(op, u, vals)
}

// customUniforms uploads every uniform set on p. With wvp set, the
// program's "wvp" parameter receives the view-projection.
func (c *Context) customUniforms(p *program, wvp bool) func(w *uniformWriter) error {
	var m *linear.Mat4
	if wvp && p.wvp != nil {
		m = c.viewProjection()
	}
	return func(w *uniformWriter) error {
		for i := range p.uniforms {
			if u := &p.uniforms[i]; u.set {
				if err := w.set(u.param, 0, u.values); err != nil {
					return err
				}
			}
		}
		if m != nil {
			return w.set(p.wvp, 0, m[:])
		}
		return nil
	}
}

// reloadBlend recreates every fragment program against the current blend
// state. Fragment programs snapshot blending when they are created.
func (c *Context) reloadBlend() error {
	if err := c.reloadFixedBlend(); err != nil {
		return err
	}
	blend := c.state.blendInfo()
	var errs []error
	c.programs.Each(func(h slot.Handle, pr *program) {
		if !pr.linked {
			return
		}
		fs := c.shaders.Ptr(pr.fs.handle())
		if fs == nil || !fs.valid {
			return
		}
		fp, err := c.drv.CreateFragmentProgram(fs.id, driver.ColorFormatRGBA8, driver.MultisampleNone, blend, pr.vp)
		if err != nil {
			errs = append(errs, fmt.Errorf("program %d: %w", h, err))
			return
		}
		c.releaseFragmentProgram(pr.fp)
		pr.fp = fp
	})
	if c.current != 0 {
		if pr := c.programs.Ptr(c.current.handle()); pr != nil && pr.linked {
			c.bindProgram(pr)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("reload blend: %w", errs[0])
	}
	return nil
}
