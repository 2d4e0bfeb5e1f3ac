package hal

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/vitagl/driver"
)

// ErrUnsupported marks a configuration the HAL backend cannot express.
var ErrUnsupported = errors.New("hal: unsupported")

var blendFactors = [...]gputypes.BlendFactor{
	driver.BlendZero:             gputypes.BlendFactorZero,
	driver.BlendOne:              gputypes.BlendFactorOne,
	driver.BlendSrcColor:         gputypes.BlendFactorSrc,
	driver.BlendOneMinusSrcColor: gputypes.BlendFactorOneMinusSrc,
	driver.BlendSrcAlpha:         gputypes.BlendFactorSrcAlpha,
	driver.BlendOneMinusSrcAlpha: gputypes.BlendFactorOneMinusSrcAlpha,
	driver.BlendDstColor:         gputypes.BlendFactorDst,
	driver.BlendOneMinusDstColor: gputypes.BlendFactorOneMinusDst,
	driver.BlendDstAlpha:         gputypes.BlendFactorDstAlpha,
	driver.BlendOneMinusDstAlpha: gputypes.BlendFactorOneMinusDstAlpha,
	driver.BlendSrcAlphaSaturate: gputypes.BlendFactorSrcAlphaSaturated,
}

var blendOps = [...]gputypes.BlendOperation{
	driver.BlendFuncAdd:             gputypes.BlendOperationAdd,
	driver.BlendFuncSubtract:        gputypes.BlendOperationSubtract,
	driver.BlendFuncReverseSubtract: gputypes.BlendOperationReverseSubtract,
	driver.BlendFuncMin:             gputypes.BlendOperationMin,
	driver.BlendFuncMax:             gputypes.BlendOperationMax,
}

var compareFuncs = [...]gputypes.CompareFunction{
	driver.DepthAlways:       gputypes.CompareFunctionAlways,
	driver.DepthNever:        gputypes.CompareFunctionNever,
	driver.DepthLess:         gputypes.CompareFunctionLess,
	driver.DepthLessEqual:    gputypes.CompareFunctionLessEqual,
	driver.DepthEqual:        gputypes.CompareFunctionEqual,
	driver.DepthGreater:      gputypes.CompareFunctionGreater,
	driver.DepthGreaterEqual: gputypes.CompareFunctionGreaterEqual,
	driver.DepthNotEqual:     gputypes.CompareFunctionNotEqual,
}

// blendState converts b. Min and max ignore their factors and must use
// One, so they are normalized here.
func blendState(b *driver.BlendInfo) (*gputypes.BlendState, gputypes.ColorWriteMask, error) {
	if b == nil {
		return nil, gputypes.ColorWriteMaskAll, nil
	}
	if int(b.ColorSrc) >= len(blendFactors) || int(b.ColorDst) >= len(blendFactors) ||
		int(b.AlphaSrc) >= len(blendFactors) || int(b.AlphaDst) >= len(blendFactors) ||
		int(b.ColorFunc) >= len(blendOps) || int(b.AlphaFunc) >= len(blendOps) {
		return nil, 0, fmt.Errorf("%w: blend %+v", ErrUnsupported, *b)
	}
	comp := func(fn driver.BlendFunc, src, dst driver.BlendFactor) gputypes.BlendComponent {
		c := gputypes.BlendComponent{
			Operation: blendOps[fn],
			SrcFactor: blendFactors[src],
			DstFactor: blendFactors[dst],
		}
		if fn == driver.BlendFuncMin || fn == driver.BlendFuncMax {
			c.SrcFactor, c.DstFactor = gputypes.BlendFactorOne, gputypes.BlendFactorOne
		}
		return c
	}
	state := &gputypes.BlendState{
		Color: comp(b.ColorFunc, b.ColorSrc, b.ColorDst),
		Alpha: comp(b.AlphaFunc, b.AlphaSrc, b.AlphaDst),
	}
	return state, writeMask(b.ColorMask), nil
}

func writeMask(m driver.ColorMask) gputypes.ColorWriteMask {
	var out gputypes.ColorWriteMask
	if m&driver.ColorMaskR != 0 {
		out |= gputypes.ColorWriteMaskRed
	}
	if m&driver.ColorMaskG != 0 {
		out |= gputypes.ColorWriteMaskGreen
	}
	if m&driver.ColorMaskB != 0 {
		out |= gputypes.ColorWriteMaskBlue
	}
	if m&driver.ColorMaskA != 0 {
		out |= gputypes.ColorWriteMaskAlpha
	}
	return out
}

func compareFunc(f driver.DepthFunc) gputypes.CompareFunction {
	if int(f) < len(compareFuncs) {
		return compareFuncs[f]
	}
	return gputypes.CompareFunctionAlways
}

// cullMode maps the culled winding. Front faces are counter-clockwise in
// window space, so culling clockwise triangles culls back faces.
func cullMode(m driver.CullMode) gputypes.CullMode {
	switch m {
	case driver.CullCW:
		return gputypes.CullModeBack
	case driver.CullCCW:
		return gputypes.CullModeFront
	default:
		return gputypes.CullModeNone
	}
}

// topology maps a primitive. Fans have no HAL topology; Draw rewrites
// them as triangle lists.
func topology(p driver.Primitive) gputypes.PrimitiveTopology {
	switch p {
	case driver.PrimLines:
		return gputypes.PrimitiveTopologyLineList
	case driver.PrimPoints:
		return gputypes.PrimitiveTopologyPointList
	case driver.PrimTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip
	default:
		return gputypes.PrimitiveTopologyTriangleList
	}
}

func vertexFormat(f driver.AttribFormat, comps int) (gputypes.VertexFormat, error) {
	switch {
	case f == driver.AttribF32 && comps == 1:
		return gputypes.VertexFormatFloat32, nil
	case f == driver.AttribF32 && comps == 2:
		return gputypes.VertexFormatFloat32x2, nil
	case f == driver.AttribF32 && comps == 3:
		return gputypes.VertexFormatFloat32x3, nil
	case f == driver.AttribF32 && comps == 4:
		return gputypes.VertexFormatFloat32x4, nil
	case f == driver.AttribU8N && comps == 2:
		return gputypes.VertexFormatUnorm8x2, nil
	case f == driver.AttribU8N && comps == 4:
		return gputypes.VertexFormatUnorm8x4, nil
	}
	return gputypes.VertexFormat(0), fmt.Errorf("%w: vertex attribute format %d x%d", ErrUnsupported, f, comps)
}

func colorFormat(f driver.ColorFormat) gputypes.TextureFormat {
	if f == driver.ColorFormatBGRA8 {
		return gputypes.TextureFormatBGRA8Unorm
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func filterMode(f driver.Filter) gputypes.FilterMode {
	if f == driver.FilterPoint {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

func addressMode(w driver.Wrap) gputypes.AddressMode {
	switch w {
	case driver.WrapClamp:
		return gputypes.AddressModeClampToEdge
	case driver.WrapMirror:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeRepeat
	}
}

// fanToList expands a triangle fan index list into a triangle list.
func fanToList(format driver.IndexFormat, indices []byte, count int) ([]byte, int) {
	if count < 3 {
		return nil, 0
	}
	size := format.Size()
	out := make([]byte, 0, (count-2)*3*size)
	at := func(i int) []byte { return indices[i*size : (i+1)*size] }
	for i := 1; i+1 < count; i++ {
		out = append(out, at(0)...)
		out = append(out, at(i)...)
		out = append(out, at(i+1)...)
	}
	return out, (count - 2) * 3
}

func indexFormat(f driver.IndexFormat) gputypes.IndexFormat {
	if f == driver.IndexU32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}
