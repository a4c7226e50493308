package opengl

import (
	"fmt"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/math"
)

// uniformInfo describes one active uniform of a linked program.
type uniformInfo struct {
	loc   int32
	typ   uint32
	size  int32
	array bool
}

// glProgram is the compiled form stored in gpu.Program.Handle.
type glProgram struct {
	id       uint32
	kind     programKind
	uniforms map[string]uniformInfo
}

func newGLProgram(vertSrc, fragSrc string, kind programKind) (*glProgram, error) {
	id, err := newProgram(vertSrc, fragSrc)
	if err != nil {
		return nil, err
	}
	p := &glProgram{id: id, kind: kind, uniforms: make(map[string]uniformInfo)}

	var count, maxLen int32
	gl.GetProgramiv(id, gl.ACTIVE_UNIFORMS, &count)
	gl.GetProgramiv(id, gl.ACTIVE_UNIFORM_MAX_LENGTH, &maxLen)
	buf := make([]uint8, maxLen+1)
	for i := int32(0); i < count; i++ {
		var length, size int32
		var typ uint32
		gl.GetActiveUniform(id, uint32(i), maxLen, &length, &size, &typ, &buf[0])
		name := string(buf[:length])
		array := strings.HasSuffix(name, "[0]")
		name = strings.TrimSuffix(name, "[0]")
		p.uniforms[name] = uniformInfo{
			loc:   gl.GetUniformLocation(id, gl.Str(name+"\x00")),
			typ:   typ,
			size:  size,
			array: array,
		}
	}
	return p, nil
}

func (p *glProgram) delete() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

func (p *glProgram) location(name string) int32 {
	if u, ok := p.uniforms[name]; ok {
		return u.loc
	}
	return -1
}

// applyMaterial uploads every active uniform of p from m. Samplers take
// consecutive texture units starting at firstUnit; the next free unit is
// returned.
func (d *Device) applyMaterial(p *glProgram, m *gpu.Material, firstUnit int32) (int32, error) {
	unit := firstUnit
	for name, u := range p.uniforms {
		v := m.Value(name)
		if v == nil {
			continue
		}
		switch u.typ {
		case gl.FLOAT:
			if u.array {
				f := m.Floats(name)
				if n := min(int32(len(f)), u.size); n > 0 {
					gl.Uniform1fv(u.loc, n, &f[0])
				}
				continue
			}
			gl.Uniform1f(u.loc, m.Float(name))
		case gl.INT, gl.BOOL:
			if b, ok := v.(bool); ok {
				gl.Uniform1i(u.loc, boolToInt(b))
				continue
			}
			gl.Uniform1i(u.loc, int32(m.Int(name)))
		case gl.FLOAT_VEC2:
			vv := m.Vec2(name)
			gl.Uniform2f(u.loc, vv.X, vv.Y)
		case gl.FLOAT_VEC3:
			vv := m.Vec3(name)
			gl.Uniform3f(u.loc, vv.X, vv.Y, vv.Z)
		case gl.FLOAT_VEC4:
			vv := vec4Of(v)
			gl.Uniform4f(u.loc, vv.X, vv.Y, vv.Z, vv.W)
		case gl.FLOAT_MAT3:
			setMat3(u.loc, m.Mat3(name))
		case gl.FLOAT_MAT4:
			setMat4(u.loc, m.Mat4(name))
		case gl.SAMPLER_2D:
			id, err := d.textureID(v)
			if err != nil {
				return unit, fmt.Errorf("uniform %s: %w", name, err)
			}
			gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
			gl.BindTexture(gl.TEXTURE_2D, id)
			gl.Uniform1i(u.loc, unit)
			unit++
		}
	}
	return unit, nil
}

func vec4Of(v any) math.Vec4 {
	switch c := v.(type) {
	case math.Vec4:
		return c
	case core.Color:
		return c.Vec4()
	case math.Vec3:
		return c.ToVec4(1)
	}
	return math.Vec4{}
}

func setMat4(loc int32, m math.Mat4) {
	gl.UniformMatrix4fv(loc, 1, false, &m[0][0])
}

func setMat3(loc int32, m math.Mat3) {
	gl.UniformMatrix3fv(loc, 1, false, &m[0][0])
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// ── Shader helpers ────────────────────────────────────────────────────────────

func newProgram(vertSrc, fragSrc string) (uint32, error) {
	vert, err := compileShader(vertSrc+"\x00", gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex: %w", err)
	}
	frag, err := compileShader(fragSrc+"\x00", gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vert)
		return 0, fmt.Errorf("fragment: %w", err)
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vert)
	gl.AttachShader(prog, frag)
	gl.LinkProgram(prog)
	gl.DeleteShader(vert)
	gl.DeleteShader(frag)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("link failed: %v", log)
	}
	return prog, nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src)
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %v", log)
	}
	return shader, nil
}
