package gpu

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Program names understood by every device.
const (
	ProgramCopy           = "copy"
	ProgramFXAA           = "fxaa"
	ProgramLuminosity     = "luminosity_high_pass"
	ProgramUnrealBlur     = "unreal_bloom_blur"
	ProgramBloomComposite = "bloom_composite"
	ProgramFastBlur       = "fast_gaussian_blur"
	ProgramReflector      = "reflector"
)

// BloomBlurUniform names the bloom composite input for mip level i
// (tBlur1, tBlur2, ...).
func BloomBlurUniform(i int) string {
	return "tBlur" + strconv.Itoa(i+1)
}

// Program is a compiled shader program. Defines are fixed at compile time.
type Program struct {
	Name    string
	Defines map[string]string

	// Handle is owned by the device that compiled the program.
	Handle any

	device Device
}

// NewProgram compiles name with defines on d.
func NewProgram(d Device, name string, defines map[string]string) (*Program, error) {
	p := &Program{Name: name, Defines: defines, device: d}
	if p.Defines == nil {
		p.Defines = map[string]string{}
	}
	if err := d.CompileProgram(p); err != nil {
		return nil, fmt.Errorf("compile %s: %w", p, err)
	}
	return p, nil
}

// Has reports whether define is set.
func (p *Program) Has(define string) bool {
	_, ok := p.Defines[define]
	return ok
}

func (p *Program) Dispose() {
	if p.device == nil {
		return
	}
	p.device.DestroyProgram(p)
	p.device = nil
	p.Handle = nil
}

func (p *Program) String() string {
	if len(p.Defines) == 0 {
		return p.Name
	}
	var b strings.Builder
	b.WriteString(p.Name)
	for _, k := range slices.Sorted(maps.Keys(p.Defines)) {
		b.WriteString(" ")
		b.WriteString(k)
		if v := p.Defines[k]; v != "" {
			b.WriteString("=")
			b.WriteString(v)
		}
	}
	return b.String()
}

// Blending selects how a draw combines with the target.
type Blending int

const (
	NoBlending Blending = iota
	// NormalBlending is src*src.a + dst*(1-src.a).
	NormalBlending
	// AdditiveBlending is src*src.a + dst.
	AdditiveBlending
)

// Uniform is a mutable cell. Materials that hold the same *Uniform see
// every write to Value without rebinding.
type Uniform struct {
	Value any
}

func NewUniform(v any) *Uniform {
	return &Uniform{Value: v}
}

// Material pairs a program with its uniform cells and blend state.
type Material struct {
	Program  *Program
	Uniforms map[string]*Uniform
	Blending Blending

	// Depth state for mesh draws; fullscreen draws ignore it.
	DepthTest  bool
	DepthWrite bool
}

func NewMaterial(p *Program) *Material {
	return &Material{
		Program:    p,
		Uniforms:   make(map[string]*Uniform),
		DepthTest:  true,
		DepthWrite: true,
	}
}

// Set writes v into the named cell, creating the cell if needed.
func (m *Material) Set(name string, v any) {
	if u, ok := m.Uniforms[name]; ok {
		u.Value = v
		return
	}
	m.Uniforms[name] = NewUniform(v)
}

// Bind makes the material share cell u under name.
func (m *Material) Bind(name string, u *Uniform) {
	m.Uniforms[name] = u
}

// Value returns the current value of the named cell, or nil.
func (m *Material) Value(name string) any {
	if u, ok := m.Uniforms[name]; ok {
		return u.Value
	}
	return nil
}

// Defines returns the compile-time defines of the material's program.
func (m *Material) Defines() map[string]string {
	if m.Program == nil {
		return nil
	}
	return m.Program.Defines
}

// Dispose releases the program. Uniform cells are left untouched since
// other materials may share them.
func (m *Material) Dispose() {
	if m.Program != nil {
		m.Program.Dispose()
	}
}
