package vitagl

import "github.com/gogpu/vitagl/driver"

// Capacity limits.
const (
	MaxTextures      = 16384
	MaxTextureUnits  = 2
	MaxBuffers       = 256
	MaxFramebuffers  = 32
	MaxShaders       = 128
	MaxPrograms      = 32
	MaxVertexAttribs = 8
	MatrixStackDepth = 32
)

// Format is a native texture format.
type Format = driver.TextureFormat

// Texture formats.
const (
	RGBA8    = driver.FormatRGBA8
	RGB8     = driver.FormatRGB8
	RGB565   = driver.FormatRGB565
	RGBA4444 = driver.FormatRGBA4444
	RGBA5551 = driver.FormatRGBA5551
	L8       = driver.FormatL8
	A8       = driver.FormatA8
	LA8      = driver.FormatLA8
	P8       = driver.FormatP8
	DXT1     = driver.FormatDXT1
	DXT5     = driver.FormatDXT5
)

// Primitive is a drawing topology.
type Primitive uint8

// Primitives.
const (
	Points Primitive = iota
	Lines
	Triangles
	TriangleStrip
	TriangleFan
	Quads
)

var primitiveNames = [...]string{"points", "lines", "triangles", "triangle-strip", "triangle-fan", "quads"}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return "invalid"
}

// primInfo describes how a topology maps onto the driver.
type primInfo struct {
	native driver.Primitive
	// per is the vertex-per-element count; min the smallest valid count.
	per, min int
	expand   bool
	triangle bool
}

var primTable = [...]primInfo{
	Points:        {native: driver.PrimPoints, per: 1, min: 1},
	Lines:         {native: driver.PrimLines, per: 2, min: 2},
	Triangles:     {native: driver.PrimTriangles, per: 3, min: 3, triangle: true},
	TriangleStrip: {native: driver.PrimTriangleStrip, per: 1, min: 3, triangle: true},
	TriangleFan:   {native: driver.PrimTriangleFan, per: 1, min: 3, triangle: true},
	Quads:         {native: driver.PrimTriangles, per: 4, min: 4, expand: true, triangle: true},
}

func (p Primitive) info() (primInfo, bool) {
	if int(p) >= len(primTable) {
		return primInfo{}, false
	}
	return primTable[p], true
}

// validCount reports whether n vertices form whole elements of p.
func (pi primInfo) validCount(n int) bool {
	return n >= pi.min && n%pi.per == 0
}

// Capability is a server-side feature toggled by Enable and Disable.
type Capability uint8

// Capabilities.
const (
	Blend Capability = iota
	CullFace
	DepthTest
	AlphaTest
	Fog
	Texture2D
	ScissorTest
	ClipPlane0
)

// MatrixMode selects the stack affected by matrix calls.
type MatrixMode uint8

// Matrix modes.
const (
	ModelView MatrixMode = iota
	Projection
	TextureMatrix
)

// Face selects polygon faces for culling.
type Face uint8

// Faces.
const (
	Back Face = iota
	Front
	FrontAndBack
)

// Winding is the front-face orientation.
type Winding uint8

// Windings.
const (
	CCW Winding = iota
	CW
)

// CompareFunc is a depth or alpha comparison.
type CompareFunc uint8

// Comparison functions.
const (
	Never CompareFunc = iota
	Less
	Equal
	LessEqual
	Greater
	NotEqual
	GreaterEqual
	Always
)

func (f CompareFunc) valid() bool { return f <= Always }

var depthFuncs = [...]driver.DepthFunc{
	Never:        driver.DepthNever,
	Less:         driver.DepthLess,
	Equal:        driver.DepthEqual,
	LessEqual:    driver.DepthLessEqual,
	Greater:      driver.DepthGreater,
	NotEqual:     driver.DepthNotEqual,
	GreaterEqual: driver.DepthGreaterEqual,
	Always:       driver.DepthAlways,
}

// BlendFactor is a blend equation operand.
type BlendFactor uint8

// Blend factors.
const (
	Zero BlendFactor = iota
	One
	SrcColor
	OneMinusSrcColor
	SrcAlpha
	OneMinusSrcAlpha
	DstColor
	OneMinusDstColor
	DstAlpha
	OneMinusDstAlpha
	SrcAlphaSaturate
)

var blendFactors = [...]driver.BlendFactor{
	Zero:             driver.BlendZero,
	One:              driver.BlendOne,
	SrcColor:         driver.BlendSrcColor,
	OneMinusSrcColor: driver.BlendOneMinusSrcColor,
	SrcAlpha:         driver.BlendSrcAlpha,
	OneMinusSrcAlpha: driver.BlendOneMinusSrcAlpha,
	DstColor:         driver.BlendDstColor,
	OneMinusDstColor: driver.BlendOneMinusDstColor,
	DstAlpha:         driver.BlendDstAlpha,
	OneMinusDstAlpha: driver.BlendOneMinusDstAlpha,
	SrcAlphaSaturate: driver.BlendSrcAlphaSaturate,
}

// BlendEquation is the blend operator.
type BlendEquation uint8

// Blend equations.
const (
	FuncAdd BlendEquation = iota
	FuncSubtract
	FuncReverseSubtract
	Min
	Max
)

var blendEquations = [...]driver.BlendFunc{
	FuncAdd:             driver.BlendFuncAdd,
	FuncSubtract:        driver.BlendFuncSubtract,
	FuncReverseSubtract: driver.BlendFuncReverseSubtract,
	Min:                 driver.BlendFuncMin,
	Max:                 driver.BlendFuncMax,
}

// FogMode is the fog density function.
type FogMode uint8

// Fog modes.
const (
	FogLinear FogMode = iota + 1
	FogExp
	FogExp2
)

// TexEnvMode is the texture environment combine mode.
type TexEnvMode uint8

// Texture environment modes.
const (
	Modulate TexEnvMode = iota
	Decal
	Replace
	TexEnvBlend
	Add
)

// TexParam is a texture parameter name.
type TexParam uint8

// Texture parameters.
const (
	TextureMinFilter TexParam = iota
	TextureMagFilter
	TextureWrapS
	TextureWrapT
	GenerateMipmapHint
)

// TexValue is a texture parameter value.
type TexValue uint8

// Texture parameter values.
const (
	Nearest TexValue = iota
	Linear
	NearestMipmapNearest
	LinearMipmapNearest
	NearestMipmapLinear
	LinearMipmapLinear
	Repeat
	ClampToEdge
	MirroredRepeat
	False
	True
)

// ClientState is a client-side vertex array.
type ClientState uint8

// Client arrays.
const (
	VertexArray ClientState = iota
	ColorArray
	TextureCoordArray
)

// Type is a component data type.
type Type uint8

// Component types.
const (
	UnsignedByte Type = iota
	UnsignedShort
	UnsignedInt
	Float
)

// Size returns the component size in bytes.
func (t Type) Size() int {
	switch t {
	case UnsignedByte:
		return 1
	case UnsignedShort:
		return 2
	case UnsignedInt, Float:
		return 4
	default:
		return 0
	}
}

// BufferTarget is a buffer binding point.
type BufferTarget uint8

// Buffer targets.
const (
	ArrayBuffer BufferTarget = iota
	ElementArrayBuffer
)

// ShaderType is a shader stage.
type ShaderType uint8

// Shader types.
const (
	VertexShader ShaderType = iota
	FragmentShader
)

func (t ShaderType) stage() driver.Stage {
	if t == FragmentShader {
		return driver.StageFragment
	}
	return driver.StageVertex
}

// ClearMask selects the buffers affected by Clear.
type ClearMask uint8

// Clear bits.
const (
	ColorBufferBit ClearMask = 1 << iota
	DepthBufferBit
	StencilBufferBit
)

// MemoryType is a heap arena class.
type MemoryType uint8

// Memory types.
const (
	MemVRAM MemoryType = iota
	MemRAM
	MemPhycont
	MemExternal
)
