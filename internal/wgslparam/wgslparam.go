// Package wgslparam extracts the uniform and vertex input layout of a WGSL
// shader blob.
//
// A blob holds exactly one entry point, vs_main (vertex stage) or fs_main
// (fragment stage). Uniform parameters are the fields of the struct bound
// through the module's single var<uniform>; offsets follow the WGSL
// uniform address space layout, expressed in 4-byte components.
package wgslparam

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/vitagl/driver"
)

// ErrNoEntryPoint is returned when a blob declares neither vs_main nor fs_main.
var ErrNoEntryPoint = errors.New("wgslparam: no vs_main or fs_main entry point")

// Input is a vertex shader input.
type Input struct {
	Name       string
	Location   int
	Components int
}

// Shader is the reflected layout of one blob.
type Shader struct {
	Stage  driver.Stage
	Params []driver.Parameter
	Inputs []Input
	// UniformSize is the uniform block size in components.
	UniformSize int
}

var (
	reVertex   = regexp.MustCompile(`@vertex\s+fn\s+vs_main\s*\(`)
	reFragment = regexp.MustCompile(`@fragment\s+fn\s+fs_main\s*\(`)
	reUniform  = regexp.MustCompile(`var<uniform>\s+\w+\s*:\s*(\w+)\s*;`)
	reLocation = regexp.MustCompile(`@location\((\d+)\)\s*(\w+)\s*:\s*([\w<>]+)`)
	reParam    = regexp.MustCompile(`^\s*(\w+)\s*:\s*(\w+)\s*$`)
	reField    = regexp.MustCompile(`(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*((?:array<[^<>]*(?:<[^<>]*>)?[^<>]*>)|[\w<>]+)`)
	reArray    = regexp.MustCompile(`^array<\s*([\w<>]+)\s*,\s*(\d+)\s*>$`)
)

// Parse reflects src.
func Parse(src []byte) (*Shader, error) {
	text := stripComments(string(src))
	sh := &Shader{}

	switch loc := reVertex.FindStringIndex(text); {
	case loc != nil:
		sh.Stage = driver.StageVertex
		inputs, err := vertexInputs(text, balanced(text[loc[1]:]))
		if err != nil {
			return nil, err
		}
		sh.Inputs = inputs
	case reFragment.MatchString(text):
		sh.Stage = driver.StageFragment
	default:
		return nil, ErrNoEntryPoint
	}

	if m := reUniform.FindStringSubmatch(text); m != nil {
		body, ok := structBody(text, m[1])
		if !ok {
			return nil, fmt.Errorf("wgslparam: uniform struct %s not found", m[1])
		}
		if err := sh.layout(body); err != nil {
			return nil, err
		}
	}
	return sh, nil
}

// Find returns the parameter called name, or nil.
func (s *Shader) Find(name string) *driver.Parameter {
	for i := range s.Params {
		if s.Params[i].Name == name {
			p := s.Params[i]
			return &p
		}
	}
	return nil
}

// Input returns the resource index of the vertex input called name.
func (s *Shader) Input(name string) (int, bool) {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in.Location, true
		}
	}
	return 0, false
}

func stripComments(s string) string {
	var b strings.Builder
	for line := range strings.SplitSeq(s, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// balanced returns the text up to the parenthesis closing an already
// opened one.
func balanced(s string) string {
	depth := 1
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i]
			}
		}
	}
	return s
}

func structBody(text, name string) (string, bool) {
	re := regexp.MustCompile(`struct\s+` + regexp.QuoteMeta(name) + `\s*\{([^}]*)\}`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func vertexInputs(text, params string) ([]Input, error) {
	var out []Input
	add := func(decl string) error {
		for _, m := range reLocation.FindAllStringSubmatch(decl, -1) {
			loc, _ := strconv.Atoi(m[1])
			t, err := typeOf(m[3])
			if err != nil {
				return err
			}
			out = append(out, Input{Name: m[2], Location: loc, Components: t.size})
		}
		return nil
	}

	if err := add(params); err != nil {
		return nil, err
	}
	for _, p := range strings.Split(params, ",") {
		if m := reParam.FindStringSubmatch(p); m != nil {
			if body, ok := structBody(text, m[2]); ok {
				if err := add(body); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

type wgslType struct {
	size  int // components
	align int // components
}

var scalarTypes = map[string]wgslType{
	"f32": {1, 1}, "i32": {1, 1}, "u32": {1, 1},
	"vec2<f32>": {2, 2}, "vec2f": {2, 2}, "vec2<i32>": {2, 2},
	"vec3<f32>": {3, 4}, "vec3f": {3, 4},
	"vec4<f32>": {4, 4}, "vec4f": {4, 4}, "vec4<i32>": {4, 4},
	"mat3x3<f32>": {12, 4}, "mat3x3f": {12, 4},
	"mat4x4<f32>": {16, 4}, "mat4x4f": {16, 4},
}

func typeOf(name string) (wgslType, error) {
	t, ok := scalarTypes[strings.ReplaceAll(name, " ", "")]
	if !ok {
		return wgslType{}, fmt.Errorf("wgslparam: unsupported type %q", name)
	}
	return t, nil
}

func roundUp(v, a int) int { return (v + a - 1) / a * a }

// layout assigns offsets to the uniform struct fields in declaration order.
func (s *Shader) layout(body string) error {
	offset, structAlign := 0, 4
	for _, m := range reField.FindAllStringSubmatch(body, -1) {
		name, typ := m[1], strings.ReplaceAll(m[2], " ", "")
		p := driver.Parameter{Name: name, ArraySize: 1}

		if am := reArray.FindStringSubmatch(typ); am != nil {
			elem, err := typeOf(am[1])
			if err != nil {
				return err
			}
			n, _ := strconv.Atoi(am[2])
			p.Components = elem.size
			p.ArraySize = n
			p.Stride = roundUp(elem.size, 4)
			offset = roundUp(offset, 4)
			p.Offset = offset
			offset += p.Stride * n
		} else {
			t, err := typeOf(typ)
			if err != nil {
				return err
			}
			offset = roundUp(offset, t.align)
			p.Offset = offset
			p.Components = t.size
			p.Stride = t.size
			offset += t.size
		}
		p.Stage = s.Stage
		s.Params = append(s.Params, p)
	}
	s.UniformSize = roundUp(offset, structAlign)
	return nil
}
