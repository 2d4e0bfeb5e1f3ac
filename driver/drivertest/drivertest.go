// Package drivertest provides a recording in-memory implementation of the
// driver interfaces.
//
// Every call is appended to an operation log, and every draw is captured
// together with copies of its vertex streams, index data and uniform
// buffers, so tests can assert exactly what the engine submitted. Shader
// blobs are reflected with the same WGSL layout rules as the HAL backend.
package drivertest

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/pixel"
	"github.com/gogpu/vitagl/internal/wgslparam"
)

// VertexProgram is the recorded vertex program object.
type VertexProgram struct {
	ID       driver.ProgramID
	Attrs    []driver.VertexAttribute
	Streams  []driver.VertexStream
	Released bool
}

// Program implements driver.VertexProgram.
func (p *VertexProgram) Program() driver.ProgramID { return p.ID }

// FragmentProgram is the recorded fragment program object.
type FragmentProgram struct {
	ID          driver.ProgramID
	Format      driver.ColorFormat
	Multisample driver.Multisample
	Blend       *driver.BlendInfo
	Released    bool

	refs int
}

// Program implements driver.FragmentProgram.
func (p *FragmentProgram) Program() driver.ProgramID { return p.ID }

// AddRef raises the reference count, as a presenting display would.
func (p *FragmentProgram) AddRef() { p.refs++ }

type uniformBuffer struct {
	stage driver.Stage
	data  []float32
}

func (b *uniformBuffer) Stage() driver.Stage { return b.stage }

type renderTarget struct{ w, h int }

func (r *renderTarget) Size() (int, int) { return r.w, r.h }

// Scene is one recorded BeginScene/EndScene pair.
type Scene struct {
	Target driver.RenderTarget
	Color  *driver.ColorSurface
	Depth  *driver.DepthStencilSurface
	Flags  driver.SceneFlags
	Ended  bool
}

// Draw is one recorded draw call.
type Draw struct {
	Prim     driver.Primitive
	Format   driver.IndexFormat
	Indices  []byte
	Count    int
	Streams  map[int][]byte
	Vertex   *VertexProgram
	Fragment *FragmentProgram
	Textures map[int]*driver.TextureDesc

	// VertexUniforms and FragmentUniforms are nil when the stage's buffer
	// was not reserved for this draw.
	VertexUniforms   []float32
	FragmentUniforms []float32

	Cull  driver.CullMode
	Depth driver.DepthState
	Clip  driver.RegionClip
}

// Indices16 decodes the draw's index buffer.
func (d *Draw) Indices16() []uint16 {
	out := make([]uint16, 0, d.Count)
	for i := range d.Count {
		out = append(out, binary.LittleEndian.Uint16(d.Indices[i*2:]))
	}
	return out
}

// Floats decodes stream index as float32 values.
func (d *Draw) Floats(index int) []float32 {
	return Floats(d.Streams[index])
}

// Floats decodes little-endian float32 values.
func Floats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

type program struct {
	blob   []byte
	shader *wgslparam.Shader
}

// Driver records all calls made through the driver interfaces.
// It is not safe for concurrent use.
type Driver struct {
	// Ops is the ordered log of operation names.
	Ops []string

	Scenes []Scene
	Draws  []Draw
	Flips  []*driver.ColorSurface

	Viewport driver.Viewport
	Clip     driver.RegionClip

	Transfers      int
	FinishCalls    int
	Reservations   map[driver.Stage]int
	VertexPrograms []*VertexProgram
	FragPrograms   []*FragmentProgram

	// FailDraw makes every Draw return this error when set.
	FailDraw error

	// Logger is the logger handed over through SetLogger.
	Logger *slog.Logger

	programs map[driver.ProgramID]*program
	nextID   driver.ProgramID

	inScene  bool
	vp       *VertexProgram
	fp       *FragmentProgram
	cull     driver.CullMode
	depth    driver.DepthState
	streams  map[int][]byte
	textures map[int]*driver.TextureDesc
	pending  map[driver.Stage]*uniformBuffer
	targets  int
	reserved map[driver.MemoryKind]bool
}

// New returns an empty recording driver.
func New() *Driver {
	return &Driver{
		Reservations: make(map[driver.Stage]int),
		programs:     make(map[driver.ProgramID]*program),
		streams:      make(map[int][]byte),
		textures:     make(map[int]*driver.TextureDesc),
		pending:      make(map[driver.Stage]*uniformBuffer),
	}
}

func (d *Driver) op(name string) { d.Ops = append(d.Ops, name) }

// Count returns how many times op was logged.
func (d *Driver) Count(op string) int {
	n := 0
	for _, o := range d.Ops {
		if o == op {
			n++
		}
	}
	return n
}

// LastDraw returns the most recent draw or nil.
func (d *Driver) LastDraw() *Draw {
	if len(d.Draws) == 0 {
		return nil
	}
	return &d.Draws[len(d.Draws)-1]
}

// Reset clears the recorded log but keeps registered programs.
func (d *Driver) Reset() {
	d.Ops = nil
	d.Draws = nil
	d.Scenes = nil
	d.Flips = nil
	clear(d.Reservations)
}

// BeginScene implements driver.Context.
func (d *Driver) BeginScene(target driver.RenderTarget, color *driver.ColorSurface, depth *driver.DepthStencilSurface, flags driver.SceneFlags) error {
	d.op("BeginScene")
	if d.inScene {
		return driver.ErrSceneInProgress
	}
	d.inScene = true
	d.Viewport = driver.Viewport{}
	d.Clip = driver.RegionClip{}
	d.Scenes = append(d.Scenes, Scene{Target: target, Color: color, Depth: depth, Flags: flags})
	return nil
}

// EndScene implements driver.Context.
func (d *Driver) EndScene() error {
	d.op("EndScene")
	if !d.inScene {
		return driver.ErrNoScene
	}
	d.inScene = false
	d.Scenes[len(d.Scenes)-1].Ended = true
	return nil
}

// SetViewport implements driver.Context.
func (d *Driver) SetViewport(v driver.Viewport) {
	d.op("SetViewport")
	d.Viewport = v
}

// SetRegionClip implements driver.Context.
func (d *Driver) SetRegionClip(c driver.RegionClip) {
	d.op("SetRegionClip")
	d.Clip = c
}

// SetCullMode implements driver.Context.
func (d *Driver) SetCullMode(m driver.CullMode) { d.cull = m }

// SetDepthState implements driver.Context.
func (d *Driver) SetDepthState(s driver.DepthState) { d.depth = s }

// SetVertexProgram implements driver.Context.
func (d *Driver) SetVertexProgram(p driver.VertexProgram) {
	d.op("SetVertexProgram")
	d.vp, _ = p.(*VertexProgram)
}

// SetFragmentProgram implements driver.Context.
func (d *Driver) SetFragmentProgram(p driver.FragmentProgram) {
	d.op("SetFragmentProgram")
	d.fp, _ = p.(*FragmentProgram)
}

// SetVertexStream implements driver.Context.
func (d *Driver) SetVertexStream(index int, data []byte) error {
	d.streams[index] = slices.Clone(data)
	return nil
}

// SetFragmentTexture implements driver.Context.
func (d *Driver) SetFragmentTexture(unit int, tex *driver.TextureDesc) error {
	if tex == nil {
		delete(d.textures, unit)
		return nil
	}
	cp := *tex
	d.textures[unit] = &cp
	return nil
}

// ReserveUniformBuffer implements driver.Context.
func (d *Driver) ReserveUniformBuffer(stage driver.Stage) (driver.UniformBuffer, error) {
	d.op("Reserve" + stage.String())
	if !d.inScene {
		return nil, driver.ErrNoScene
	}
	var id driver.ProgramID
	switch {
	case stage == driver.StageVertex && d.vp != nil:
		id = d.vp.ID
	case stage == driver.StageFragment && d.fp != nil:
		id = d.fp.ID
	default:
		return nil, driver.ErrNoProgram
	}
	d.Reservations[stage]++
	size := 0
	if p := d.programs[id]; p != nil {
		size = p.shader.UniformSize
	}
	b := &uniformBuffer{stage: stage, data: make([]float32, size)}
	d.pending[stage] = b
	return b, nil
}

// SetUniformData implements driver.Context.
func (d *Driver) SetUniformData(buf driver.UniformBuffer, p *driver.Parameter, componentOffset int, data []float32) error {
	b, ok := buf.(*uniformBuffer)
	if !ok {
		return fmt.Errorf("drivertest: foreign uniform buffer %T", buf)
	}
	start := p.Offset + componentOffset
	if start+len(data) > len(b.data) {
		return fmt.Errorf("drivertest: uniform %s write [%d:%d] exceeds %d", p.Name, start, start+len(data), len(b.data))
	}
	copy(b.data[start:], data)
	return nil
}

// Draw implements driver.Context.
func (d *Driver) Draw(prim driver.Primitive, format driver.IndexFormat, indices []byte, count int) error {
	d.op("Draw")
	if d.FailDraw != nil {
		return d.FailDraw
	}
	if !d.inScene {
		return driver.ErrNoScene
	}
	if d.vp == nil || d.fp == nil {
		return driver.ErrNoProgram
	}
	dr := Draw{
		Prim:     prim,
		Format:   format,
		Indices:  slices.Clone(indices),
		Count:    count,
		Streams:  make(map[int][]byte, len(d.streams)),
		Vertex:   d.vp,
		Fragment: d.fp,
		Textures: make(map[int]*driver.TextureDesc, len(d.textures)),
		Cull:     d.cull,
		Depth:    d.depth,
		Clip:     d.Clip,
	}
	for k, v := range d.streams {
		dr.Streams[k] = v
	}
	for k, v := range d.textures {
		dr.Textures[k] = v
	}
	if b := d.pending[driver.StageVertex]; b != nil {
		dr.VertexUniforms = b.data
	}
	if b := d.pending[driver.StageFragment]; b != nil {
		dr.FragmentUniforms = b.data
	}
	d.Draws = append(d.Draws, dr)
	clear(d.pending)
	clear(d.streams)
	return nil
}

// TransferDownscale implements driver.Context.
func (d *Driver) TransferDownscale(src, dst driver.Surface) error {
	d.op("TransferDownscale")
	d.Transfers++
	return pixel.Downscale(dst, src)
}

// CreateRenderTarget implements driver.Context.
func (d *Driver) CreateRenderTarget(params driver.RenderTargetParams) (driver.RenderTarget, error) {
	d.op("CreateRenderTarget")
	d.targets++
	return &renderTarget{w: params.Width, h: params.Height}, nil
}

// DestroyRenderTarget implements driver.Context.
func (d *Driver) DestroyRenderTarget(rt driver.RenderTarget) error {
	d.op("DestroyRenderTarget")
	d.targets--
	return nil
}

// LiveTargets returns the number of render targets not yet destroyed.
func (d *Driver) LiveTargets() int { return d.targets }

// Finish implements driver.Context.
func (d *Driver) Finish() error {
	d.op("Finish")
	d.FinishCalls++
	return nil
}

// QueueFlip implements driver.Display.
func (d *Driver) QueueFlip(surface *driver.ColorSurface, vsync bool) error {
	d.op("QueueFlip")
	d.Flips = append(d.Flips, surface)
	return nil
}

// SetLogger records l.
func (d *Driver) SetLogger(l *slog.Logger) {
	d.Logger = l
}
