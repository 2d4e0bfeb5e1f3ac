package wgslparam

import (
	"errors"
	"testing"

	"github.com/gogpu/vitagl/driver"
)

const vertexSrc = `
struct Uniforms {
    wvp: mat4x4<f32>,
    tint: f32,
    offset: vec2<f32>, // aligned to 2
    light: vec3<f32>,
    planes: array<vec4<f32>, 2>,
}
@group(0) @binding(0) var<uniform> u: Uniforms;

struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(2) uv: vec2<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4<f32> {
    return u.wvp * vec4<f32>(in.position, 1.0);
}
`

func TestParseVertex(t *testing.T) {
	sh, err := Parse([]byte(vertexSrc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if sh.Stage != driver.StageVertex {
		t.Errorf("Stage = %v, want vertex", sh.Stage)
	}

	tests := []struct {
		name       string
		offset     int
		components int
		arraySize  int
	}{
		{"wvp", 0, 16, 1},
		{"tint", 16, 1, 1},
		{"offset", 18, 2, 1},
		{"light", 20, 3, 1},
		{"planes", 24, 4, 2},
	}
	for _, tt := range tests {
		p := sh.Find(tt.name)
		if p == nil {
			t.Errorf("Find(%q) = nil", tt.name)
			continue
		}
		if p.Offset != tt.offset || p.Components != tt.components || p.ArraySize != tt.arraySize {
			t.Errorf("Find(%q) = {off %d, comp %d, n %d}, want {%d, %d, %d}",
				tt.name, p.Offset, p.Components, p.ArraySize, tt.offset, tt.components, tt.arraySize)
		}
	}
	if sh.UniformSize != 32 {
		t.Errorf("UniformSize = %d, want 32", sh.UniformSize)
	}
	if sh.Find("missing") != nil {
		t.Error("Find(missing) != nil")
	}

	if loc, ok := sh.Input("uv"); !ok || loc != 2 {
		t.Errorf("Input(uv) = (%d, %v), want (2, true)", loc, ok)
	}
	if _, ok := sh.Input("color"); ok {
		t.Error("Input(color) found")
	}
}

func TestParseFragmentDirectInputs(t *testing.T) {
	src := `
struct F { alpha_ref: f32, color: vec4<f32> }
@group(0) @binding(1) var<uniform> fu: F;
@fragment
fn fs_main(@location(0) c: vec4<f32>) -> @location(0) vec4<f32> { return c * fu.color; }
`
	sh, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if sh.Stage != driver.StageFragment {
		t.Errorf("Stage = %v, want fragment", sh.Stage)
	}
	p := sh.Find("color")
	if p == nil || p.Offset != 4 || p.Stage != driver.StageFragment {
		t.Errorf("Find(color) = %+v, want offset 4 fragment", p)
	}
}

func TestParseVertexDirectInputs(t *testing.T) {
	src := `@vertex fn vs_main(@location(0) pos: vec3<f32>, @location(1) col: vec4<f32>) -> @builtin(position) vec4<f32> { return vec4<f32>(pos, 1.0); }`
	sh, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(sh.Inputs) != 2 || sh.Inputs[1].Name != "col" || sh.Inputs[1].Components != 4 {
		t.Errorf("Inputs = %+v", sh.Inputs)
	}
	if sh.UniformSize != 0 {
		t.Errorf("UniformSize = %d, want 0", sh.UniformSize)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("fn helper() {}")); !errors.Is(err, ErrNoEntryPoint) {
		t.Errorf("Parse(no entry) error = %v, want ErrNoEntryPoint", err)
	}
	src := `struct U { m: mat2x2<f32> }
var<uniform> u: U;
@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }`
	if _, err := Parse([]byte(src)); err == nil {
		t.Error("Parse(unsupported type) error = nil")
	}
}
