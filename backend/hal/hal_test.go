//go:build !nogpu

package hal

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/vitagl/driver"
)

const testVS = `
struct VertexUniforms {
    wvp: mat4x4<f32>,
    tint: vec4<f32>,
}

@group(0) @binding(0) var<uniform> vu: VertexUniforms;

struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) color: vec4<f32>,
}

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = vu.wvp * vec4<f32>(in.position, 1.0);
    out.color = in.color * vu.tint;
    return out;
}
`

const testFS = `
@fragment
fn fs_main(@location(0) color: vec4<f32>) -> @location(0) vec4<f32> {
    return color;
}
`

// newNoopDriver creates a driver on the noop HAL backend.
func newNoopDriver(t *testing.T, opts ...Option) *Driver {
	t.Helper()
	d, err := NewNoop(opts...)
	if err != nil {
		t.Fatalf("NewNoop failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func registerPrograms(t *testing.T, d *Driver) (driver.VertexProgram, driver.FragmentProgram) {
	t.Helper()
	vsID, err := d.RegisterProgram([]byte(testVS))
	if err != nil {
		t.Fatalf("RegisterProgram(vs) error = %v", err)
	}
	fsID, err := d.RegisterProgram([]byte(testFS))
	if err != nil {
		t.Fatalf("RegisterProgram(fs) error = %v", err)
	}
	vp, err := d.CreateVertexProgram(vsID,
		[]driver.VertexAttribute{
			{StreamIndex: 0, Format: driver.AttribF32, Components: 3, RegIndex: 0},
			{StreamIndex: 1, Format: driver.AttribU8N, Components: 4, RegIndex: 1},
		},
		[]driver.VertexStream{{Stride: 12}, {Stride: 4}},
	)
	if err != nil {
		t.Fatalf("CreateVertexProgram error = %v", err)
	}
	fp, err := d.CreateFragmentProgram(fsID, driver.ColorFormatRGBA8, driver.MultisampleNone,
		&driver.BlendInfo{
			ColorMask: driver.ColorMaskAll,
			ColorSrc:  driver.BlendSrcAlpha, ColorDst: driver.BlendOneMinusSrcAlpha,
			AlphaSrc: driver.BlendOne, AlphaDst: driver.BlendOneMinusSrcAlpha,
		}, vp)
	if err != nil {
		t.Fatalf("CreateFragmentProgram error = %v", err)
	}
	return vp, fp
}

func TestNewNoopClose(t *testing.T) {
	d, err := NewNoop()
	if err != nil {
		t.Fatalf("NewNoop failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestNewFromProviderUnsupported(t *testing.T) {
	if _, err := NewFromProvider(nil); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("NewFromProvider(nil) error = %v, want ErrUnsupportedProvider", err)
	}
}

func TestNewFromDeviceNil(t *testing.T) {
	if _, err := NewFromDevice(nil, nil); err == nil {
		t.Error("NewFromDevice(nil, nil) should fail")
	}
}

func TestRegisterProgram(t *testing.T) {
	d := newNoopDriver(t)

	id, err := d.RegisterProgram([]byte(testVS))
	if err != nil {
		t.Fatalf("RegisterProgram error = %v", err)
	}
	if id == 0 {
		t.Fatal("RegisterProgram returned the zero id")
	}

	p := d.FindParameter([]byte(testVS), "tint")
	if p == nil {
		t.Fatal("FindParameter(tint) = nil")
	}
	if p.Offset != 16 || p.Components != 4 || p.Stage != driver.StageVertex {
		t.Errorf("tint = %+v, want offset 16, 4 components, vertex stage", *p)
	}
	if d.FindParameter([]byte(testVS), "missing") != nil {
		t.Error("FindParameter(missing) should be nil")
	}
	if loc, ok := d.AttributeIndex([]byte(testVS), "color"); !ok || loc != 1 {
		t.Errorf("AttributeIndex(color) = %d, %v, want 1, true", loc, ok)
	}

	if err := d.UnregisterProgram(id); err != nil {
		t.Fatalf("UnregisterProgram error = %v", err)
	}
	if err := d.UnregisterProgram(id); !errors.Is(err, driver.ErrUnknownProgram) {
		t.Errorf("second UnregisterProgram error = %v, want ErrUnknownProgram", err)
	}
}

func TestRegisterProgramInvalidBlob(t *testing.T) {
	d := newNoopDriver(t)
	if _, err := d.RegisterProgram([]byte("fn helper() {}")); !errors.Is(err, driver.ErrInvalidBlob) {
		t.Errorf("RegisterProgram error = %v, want ErrInvalidBlob", err)
	}
}

func TestReflectionCached(t *testing.T) {
	d := newNoopDriver(t)
	for range 3 {
		_ = d.FindParameter([]byte(testVS), "wvp")
	}
	if s := d.reflections.Stats(); s.Misses != 1 || s.Hits != 2 {
		t.Errorf("reflection cache hits/misses = %d/%d, want 2/1", s.Hits, s.Misses)
	}
}

func TestCreateProgramStageMismatch(t *testing.T) {
	d := newNoopDriver(t)
	fsID, err := d.RegisterProgram([]byte(testFS))
	if err != nil {
		t.Fatalf("RegisterProgram error = %v", err)
	}
	if _, err := d.CreateVertexProgram(fsID, nil, nil); err == nil {
		t.Error("CreateVertexProgram on a fragment blob should fail")
	}
	if _, err := d.CreateFragmentProgram(99, driver.ColorFormatRGBA8, driver.MultisampleNone, nil, nil); !errors.Is(err, driver.ErrUnknownProgram) {
		t.Errorf("CreateFragmentProgram(99) error = %v, want ErrUnknownProgram", err)
	}
}

func TestCreateVertexProgramUnsupportedFormat(t *testing.T) {
	d := newNoopDriver(t)
	id, err := d.RegisterProgram([]byte(testVS))
	if err != nil {
		t.Fatalf("RegisterProgram error = %v", err)
	}
	_, err = d.CreateVertexProgram(id,
		[]driver.VertexAttribute{{StreamIndex: 0, Format: driver.AttribU8N, Components: 3}},
		[]driver.VertexStream{{Stride: 3}})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestFragmentProgramRefCount(t *testing.T) {
	d := newNoopDriver(t)
	_, fp := registerPrograms(t, d)

	if n, err := d.FragmentProgramRefCount(fp); err != nil || n != 1 {
		t.Fatalf("refcount = %d, %v, want 1", n, err)
	}
	if err := d.ReleaseFragmentProgram(fp); err != nil {
		t.Fatalf("ReleaseFragmentProgram error = %v", err)
	}
	if n, _ := d.FragmentProgramRefCount(fp); n != 0 {
		t.Errorf("refcount after release = %d, want 0", n)
	}
	if err := d.ReleaseFragmentProgram(fp); err == nil {
		t.Error("releasing a dead fragment program should fail")
	}
}

func TestSceneLifecycle(t *testing.T) {
	d := newNoopDriver(t)
	vp, fp := registerPrograms(t, d)

	rt, err := d.CreateRenderTarget(driver.RenderTargetParams{Width: 8, Height: 4})
	if err != nil {
		t.Fatalf("CreateRenderTarget error = %v", err)
	}
	defer func() { _ = d.DestroyRenderTarget(rt) }()
	if w, h := rt.Size(); w != 8 || h != 4 {
		t.Errorf("Size() = %dx%d, want 8x4", w, h)
	}

	color := &driver.ColorSurface{Format: driver.FormatRGBA8, Width: 8, Height: 4, Stride: 16, Data: make([]byte, 16*4*4)}

	if err := d.Draw(driver.PrimTriangles, driver.IndexU16, make([]byte, 6), 3); !errors.Is(err, driver.ErrNoScene) {
		t.Errorf("Draw outside scene error = %v, want ErrNoScene", err)
	}
	if err := d.BeginScene(rt, color, nil, 0); err != nil {
		t.Fatalf("BeginScene error = %v", err)
	}
	if err := d.BeginScene(rt, color, nil, 0); !errors.Is(err, driver.ErrSceneInProgress) {
		t.Errorf("nested BeginScene error = %v, want ErrSceneInProgress", err)
	}
	if _, err := d.ReserveUniformBuffer(driver.StageVertex); !errors.Is(err, driver.ErrNoProgram) {
		t.Errorf("ReserveUniformBuffer without program error = %v, want ErrNoProgram", err)
	}

	d.SetVertexProgram(vp)
	d.SetFragmentProgram(fp)
	d.SetCullMode(driver.CullCW)
	d.SetDepthState(driver.DepthState{Func: driver.DepthLessEqual, Write: true})
	d.SetRegionClip(driver.RegionClip{Mode: driver.ClipOutside, X0: 1, Y0: 1, X1: 6, Y1: 2})

	if err := d.SetVertexStream(0, make([]byte, 4*12)); err != nil {
		t.Fatalf("SetVertexStream(0) error = %v", err)
	}
	if err := d.SetVertexStream(1, make([]byte, 4*4)); err != nil {
		t.Fatalf("SetVertexStream(1) error = %v", err)
	}
	tex := &driver.TextureDesc{Format: driver.FormatRGBA8, Width: 2, Height: 2, Stride: 2, Levels: 1, Data: make([]byte, 16), Version: 1}
	if err := d.SetFragmentTexture(0, tex); err != nil {
		t.Fatalf("SetFragmentTexture error = %v", err)
	}

	ub, err := d.ReserveUniformBuffer(driver.StageVertex)
	if err != nil {
		t.Fatalf("ReserveUniformBuffer error = %v", err)
	}
	tint := d.FindParameter([]byte(testVS), "tint")
	if err := d.SetUniformData(ub, tint, 0, []float32{1, 0.5, 0.25, 1}); err != nil {
		t.Fatalf("SetUniformData error = %v", err)
	}
	if err := d.SetUniformData(ub, tint, 2, []float32{1, 1, 1}); err == nil {
		t.Error("SetUniformData past the buffer should fail")
	}

	indices := make([]byte, 8)
	for i := range 4 {
		binary.LittleEndian.PutUint16(indices[i*2:], uint16(i))
	}
	if err := d.Draw(driver.PrimTriangleFan, driver.IndexU16, indices, 4); err != nil {
		t.Fatalf("Draw(fan) error = %v", err)
	}
	if err := d.Draw(driver.PrimTriangles, driver.IndexU16, indices, 3); err != nil {
		t.Fatalf("Draw(triangles) error = %v", err)
	}
	if d.textures.Len() != 1 {
		t.Errorf("texture cache holds %d entries, want 1", d.textures.Len())
	}

	d.SetRegionClip(driver.RegionClip{Mode: driver.ClipAll})
	if err := d.Draw(driver.PrimTriangles, driver.IndexU16, indices, 3); err != nil {
		t.Fatalf("clipped Draw error = %v", err)
	}

	if err := d.EndScene(); err != nil {
		t.Fatalf("EndScene error = %v", err)
	}
	if err := d.EndScene(); !errors.Is(err, driver.ErrNoScene) {
		t.Errorf("second EndScene error = %v, want ErrNoScene", err)
	}
	if err := d.Finish(); err != nil {
		t.Errorf("Finish error = %v", err)
	}
}

func TestBeginSceneSizeMismatch(t *testing.T) {
	d := newNoopDriver(t)
	rt, err := d.CreateRenderTarget(driver.RenderTargetParams{Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("CreateRenderTarget error = %v", err)
	}
	color := &driver.ColorSurface{Format: driver.FormatRGBA8, Width: 2, Height: 2, Stride: 2, Data: make([]byte, 16)}
	if err := d.BeginScene(rt, color, nil, 0); err == nil {
		t.Error("BeginScene with mismatched surface should fail")
	}
}

func TestQueueFlipPresenter(t *testing.T) {
	var got *driver.ColorSurface
	d := newNoopDriver(t, WithPresenter(func(s *driver.ColorSurface) { got = s }))
	s := &driver.ColorSurface{Width: 1, Height: 1}
	if err := d.QueueFlip(s, true); err != nil {
		t.Fatalf("QueueFlip error = %v", err)
	}
	if got != s {
		t.Error("presenter did not receive the surface")
	}
}

func TestTransferDownscale(t *testing.T) {
	d := newNoopDriver(t)
	src := driver.Surface{Format: driver.FormatRGBA8, Width: 2, Height: 2, Stride: 2, Data: []byte{
		0, 0, 0, 0, 200, 200, 200, 200,
		200, 200, 200, 200, 0, 0, 0, 0,
	}}
	dst := driver.Surface{Format: driver.FormatRGBA8, Width: 1, Height: 1, Stride: 1, Data: make([]byte, 4)}
	if err := d.TransferDownscale(src, dst); err != nil {
		t.Fatalf("TransferDownscale error = %v", err)
	}
	if dst.Data[0] != 100 {
		t.Errorf("downscaled red = %d, want 100", dst.Data[0])
	}
}

func TestFanToList(t *testing.T) {
	in := []byte{0, 0, 1, 0, 2, 0, 3, 0}
	out, n := fanToList(driver.IndexU16, in, 4)
	if n != 6 {
		t.Fatalf("count = %d, want 6", n)
	}
	want := []uint16{0, 1, 2, 0, 2, 3}
	for i, w := range want {
		if got := binary.LittleEndian.Uint16(out[i*2:]); got != w {
			t.Errorf("index %d = %d, want %d", i, got, w)
		}
	}
	if _, n := fanToList(driver.IndexU16, in, 2); n != 0 {
		t.Errorf("degenerate fan count = %d, want 0", n)
	}
}

func TestViewportRect(t *testing.T) {
	x, y, w, h, near, far := viewportRect(driver.Viewport{
		XOffset: 50, XScale: 50,
		YOffset: 30, YScale: -20,
		ZOffset: 0.5, ZScale: 0.5,
	})
	if x != 0 || y != 10 || w != 100 || h != 40 || near != 0 || far != 1 {
		t.Errorf("viewportRect = %v %v %v %v %v %v", x, y, w, h, near, far)
	}
}

func TestScissor(t *testing.T) {
	s := &scene{target: &renderTarget{w: 10, h: 10}}
	tests := []struct {
		name       string
		clip       driver.RegionClip
		x, y, w, h uint32
	}{
		{"none", driver.RegionClip{Mode: driver.ClipNone}, 0, 0, 10, 10},
		{"outside", driver.RegionClip{Mode: driver.ClipOutside, X0: 2, Y0: 3, X1: 4, Y1: 8}, 2, 3, 3, 6},
		{"clamped", driver.RegionClip{Mode: driver.ClipOutside, X0: -5, Y0: 0, X1: 20, Y1: 9}, 0, 0, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.clip = tt.clip
			x, y, w, h := s.scissor()
			if x != tt.x || y != tt.y || w != tt.w || h != tt.h {
				t.Errorf("scissor() = %d,%d %dx%d, want %d,%d %dx%d", x, y, w, h, tt.x, tt.y, tt.w, tt.h)
			}
		})
	}
}

func TestBlendState(t *testing.T) {
	state, mask, err := blendState(nil)
	if err != nil || state != nil || mask != gputypes.ColorWriteMaskAll {
		t.Errorf("blendState(nil) = %v, %v, %v", state, mask, err)
	}

	state, mask, err = blendState(&driver.BlendInfo{
		ColorMask: driver.ColorMaskR | driver.ColorMaskA,
		ColorFunc: driver.BlendFuncMax,
		ColorSrc:  driver.BlendSrcAlpha,
		ColorDst:  driver.BlendZero,
		AlphaSrc:  driver.BlendOne,
		AlphaDst:  driver.BlendOneMinusSrcAlpha,
	})
	if err != nil {
		t.Fatalf("blendState error = %v", err)
	}
	if state.Color.SrcFactor != gputypes.BlendFactorOne || state.Color.DstFactor != gputypes.BlendFactorOne {
		t.Errorf("max blend factors = %v/%v, want One/One", state.Color.SrcFactor, state.Color.DstFactor)
	}
	if state.Alpha.DstFactor != gputypes.BlendFactorOneMinusSrcAlpha {
		t.Errorf("alpha dst = %v", state.Alpha.DstFactor)
	}
	if mask != gputypes.ColorWriteMaskRed|gputypes.ColorWriteMaskAlpha {
		t.Errorf("mask = %v", mask)
	}

	if _, _, err := blendState(&driver.BlendInfo{ColorSrc: 200}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("invalid factor error = %v, want ErrUnsupported", err)
	}
}

func TestTightRows(t *testing.T) {
	data := []byte{
		1, 1, 1, 1, 9, 9, 9, 9,
		2, 2, 2, 2, 9, 9, 9, 9,
	}
	out := tightRows(data, 1, 2, 2)
	want := []byte{1, 1, 1, 1, 2, 2, 2, 2}
	if string(out) != string(want) {
		t.Errorf("tightRows = %v, want %v", out, want)
	}
}
