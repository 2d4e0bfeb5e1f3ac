package driver

import "fmt"

// ProgramID identifies a registered shader blob. Zero is invalid.
type ProgramID uint32

// VertexProgram is an opaque vertex program object.
type VertexProgram interface {
	Program() ProgramID
}

// FragmentProgram is an opaque fragment program object.
type FragmentProgram interface {
	Program() ProgramID
}

// RenderTarget is an opaque render target object.
type RenderTarget interface {
	Size() (width, height int)
}

// UniformBuffer is a reserved default uniform buffer.
type UniformBuffer interface {
	Stage() Stage
}

// Stage is a programmable pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
)

// String returns "vertex" or "fragment".
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", s)
	}
}

// Primitive is a native primitive type.
type Primitive uint8

const (
	PrimTriangles Primitive = iota
	PrimLines
	PrimPoints
	PrimTriangleStrip
	PrimTriangleFan
)

var primitiveNames = [...]string{"triangles", "lines", "points", "triangle-strip", "triangle-fan"}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return fmt.Sprintf("Primitive(%d)", p)
}

// IndexFormat is the element type of an index buffer.
type IndexFormat uint8

const (
	IndexU16 IndexFormat = iota
	IndexU32
)

// Size returns the index element size in bytes.
func (f IndexFormat) Size() int {
	if f == IndexU32 {
		return 4
	}
	return 2
}

// AttribFormat is the storage format of a vertex attribute.
type AttribFormat uint8

const (
	AttribF32 AttribFormat = iota
	// AttribU8N is an unsigned byte normalized to [0,1].
	AttribU8N
)

// Size returns the component size in bytes.
func (f AttribFormat) Size() int {
	if f == AttribU8N {
		return 1
	}
	return 4
}

// VertexAttribute describes one attribute fetched from a stream.
type VertexAttribute struct {
	StreamIndex int
	Offset      int
	Format      AttribFormat
	Components  int
	// RegIndex is the shader resource index of the input.
	RegIndex int
}

// VertexStream describes one vertex stream.
type VertexStream struct {
	Stride int
}

// Parameter is a uniform parameter of a shader blob.
type Parameter struct {
	Name  string
	Stage Stage
	// Offset is the parameter start, in float components, inside the
	// stage's default uniform buffer.
	Offset int
	// Components is the number of float components of one element.
	Components int
	// ArraySize is the element count; 1 for non-arrays.
	ArraySize int
	// Stride is the distance in components between array elements.
	Stride int
}

// Size returns the total component span of the parameter.
func (p *Parameter) Size() int {
	if p.ArraySize <= 1 {
		return p.Components
	}
	return p.Stride*(p.ArraySize-1) + p.Components
}

// BlendFactor is a blend equation operand.
type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendOneMinusSrcColor
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstColor
	BlendOneMinusDstColor
	BlendDstAlpha
	BlendOneMinusDstAlpha
	BlendSrcAlphaSaturate
)

// BlendFunc is a blend equation operator.
type BlendFunc uint8

const (
	BlendFuncAdd BlendFunc = iota
	BlendFuncSubtract
	BlendFuncReverseSubtract
	BlendFuncMin
	BlendFuncMax
)

// ColorMask selects writable color channels.
type ColorMask uint8

const (
	ColorMaskR ColorMask = 1 << iota
	ColorMaskG
	ColorMaskB
	ColorMaskA

	ColorMaskNone ColorMask = 0
	ColorMaskAll            = ColorMaskR | ColorMaskG | ColorMaskB | ColorMaskA
)

// BlendInfo is the blend configuration baked into a fragment program.
type BlendInfo struct {
	ColorMask ColorMask
	ColorFunc BlendFunc
	AlphaFunc BlendFunc
	ColorSrc  BlendFactor
	ColorDst  BlendFactor
	AlphaSrc  BlendFactor
	AlphaDst  BlendFactor
}

// ColorFormat is the output format of a fragment program.
type ColorFormat uint8

const (
	ColorFormatRGBA8 ColorFormat = iota
	ColorFormatBGRA8
)

// Multisample is the render target multisample mode.
type Multisample uint8

const (
	MultisampleNone Multisample = iota
	Multisample2x
	Multisample4x
)

// Samples returns the per-pixel sample count.
func (m Multisample) Samples() int {
	switch m {
	case Multisample2x:
		return 2
	case Multisample4x:
		return 4
	default:
		return 1
	}
}

// CullMode selects the culled winding.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullCW
	CullCCW
)

// DepthFunc is a depth comparison.
type DepthFunc uint8

const (
	DepthAlways DepthFunc = iota
	DepthNever
	DepthLess
	DepthLessEqual
	DepthEqual
	DepthGreater
	DepthGreaterEqual
	DepthNotEqual
)

// DepthState is the depth test configuration.
type DepthState struct {
	Func  DepthFunc
	Write bool
}

// Viewport is the viewport transform in offset/scale form.
type Viewport struct {
	XOffset, XScale float32
	YOffset, YScale float32
	ZOffset, ZScale float32
}

// ClipMode selects how the region clip rectangle is applied.
type ClipMode uint8

const (
	// ClipNone disables region clipping.
	ClipNone ClipMode = iota
	// ClipAll discards every fragment.
	ClipAll
	// ClipOutside discards fragments outside the rectangle.
	ClipOutside
	// ClipInside discards fragments inside the rectangle.
	ClipInside
)

// RegionClip is the hardware scissor state. X1 and Y1 are inclusive.
type RegionClip struct {
	Mode           ClipMode
	X0, Y0, X1, Y1 int
}

// SceneFlags modify BeginScene.
type SceneFlags uint8

const (
	// SceneVertexWaitForDependency makes vertex processing of the scene
	// wait for the previous scene's fragment work.
	SceneVertexWaitForDependency SceneFlags = 1 << iota
)

// MemoryKind is a physical memory class.
type MemoryKind uint8

const (
	MemoryVRAM MemoryKind = iota
	MemoryRAM
	MemoryPhycont
)

// Filter is a texture sampling filter.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterPoint
)

// Wrap is a texture addressing mode.
type Wrap uint8

const (
	WrapRepeat Wrap = iota
	WrapClamp
	WrapMirror
)

// TextureDesc describes texture memory for binding. Data holds every mip
// level back to back; each level's rows are Stride texels wide for that
// level (see the pixel package). Version increases whenever Data changes.
type TextureDesc struct {
	Format  TextureFormat
	Width   int
	Height  int
	Stride  int
	Levels  int
	Data    []byte
	Palette []byte

	MinFilter Filter
	MagFilter Filter
	// Mipmapped enables sampling past level 0; MipFilter selects how
	// adjacent levels are combined.
	MipFilter Filter
	Mipmapped bool
	WrapU     Wrap
	WrapV     Wrap

	Version uint64
}

// Surface is a plain 2D pixel block used by transfers.
type Surface struct {
	Format TextureFormat
	Width  int
	Height int
	// Stride is the row length in texels.
	Stride int
	Data   []byte
}

// ColorSurface is a renderable color buffer.
type ColorSurface struct {
	Format TextureFormat
	Width  int
	Height int
	Stride int
	Data   []byte
	Addr   uint64
}

// DepthStencilSurface is a depth/stencil buffer.
type DepthStencilSurface struct {
	Width  int
	Height int
	Data   []byte
}

// RenderTargetParams configures CreateRenderTarget.
type RenderTargetParams struct {
	Width       int
	Height      int
	Multisample Multisample
}
