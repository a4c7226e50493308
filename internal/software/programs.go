package software

import (
	"fmt"
	"strconv"

	"github.com/chewxy/math32"

	"render-pipeline/gpu"
	"render-pipeline/math"
)

// program is the compiled form of a gpu.Program: a Go function standing in
// for the fragment shader. Exactly one of the two fields is set.
type program struct {
	fullscreen fullscreenFunc
	surface    surfaceFunc

	kernelRadius int
	mips         int
}

type fullscreenFunc func(d *Device, p *program, m *gpu.Material, uv math.Vec2) math.Vec4

var lumaWeights = math.Vec3{X: 0.299, Y: 0.587, Z: 0.114}

func luma(c math.Vec4) float32 {
	return c.ToVec3().Dot(lumaWeights)
}

func compile(p *gpu.Program) (*program, error) {
	switch p.Name {
	case gpu.ProgramCopy:
		return &program{fullscreen: copyFragment}, nil
	case gpu.ProgramFXAA:
		return &program{fullscreen: fxaaFragment}, nil
	case gpu.ProgramLuminosity:
		return &program{fullscreen: luminosityFragment}, nil
	case gpu.ProgramUnrealBlur:
		r, err := intDefine(p, "KERNEL_RADIUS")
		if err != nil {
			return nil, err
		}
		return &program{fullscreen: unrealBlurFragment, kernelRadius: r}, nil
	case gpu.ProgramBloomComposite:
		n, err := intDefine(p, "NUM_MIPS")
		if err != nil {
			return nil, err
		}
		return &program{fullscreen: bloomCompositeFragment, mips: n}, nil
	case gpu.ProgramFastBlur:
		return &program{fullscreen: fastBlurFragment}, nil
	case gpu.ProgramReflector:
		return &program{surface: reflectorSurface}, nil
	}
	return nil, fmt.Errorf("%w: %q", gpu.ErrUnknownProgram, p.Name)
}

func intDefine(p *gpu.Program, name string) (int, error) {
	v, ok := p.Defines[name]
	if !ok {
		return 0, fmt.Errorf("%s: missing define %s", p.Name, name)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s: invalid %s=%q", p.Name, name, v)
	}
	return n, nil
}

func (d *Device) sampleTexture(t *gpu.Texture, uv math.Vec2) math.Vec4 {
	if s := d.textureSurface(t); s != nil {
		return s.sample(uv)
	}
	return math.Vec4{}
}

func copyFragment(d *Device, _ *program, m *gpu.Material, uv math.Vec2) math.Vec4 {
	return d.sampleTexture(m.Texture("tMap"), uv)
}

const (
	fxaaReduceMin = 1.0 / 128.0
	fxaaReduceMul = 1.0 / 8.0
	fxaaSpanMax   = 8.0
)

func fxaaFragment(d *Device, _ *program, m *gpu.Material, uv math.Vec2) math.Vec4 {
	tex := d.textureSurface(m.Texture("tMap"))
	if tex == nil {
		return math.Vec4{}
	}
	res := m.Vec2("uResolution")
	if res.X <= 0 || res.Y <= 0 {
		res = math.Vec2{X: float32(tex.w), Y: float32(tex.h)}
	}
	rcp := math.Vec2{X: 1 / res.X, Y: 1 / res.Y}
	at := func(dx, dy float32) math.Vec4 {
		return tex.sample(math.Vec2{X: uv.X + dx*rcp.X, Y: uv.Y + dy*rcp.Y})
	}

	rgbNW := at(-1, -1)
	rgbNE := at(1, -1)
	rgbSW := at(-1, 1)
	rgbSE := at(1, 1)
	texM := at(0, 0)

	lumaNW, lumaNE, lumaSW, lumaSE, lumaM := luma(rgbNW), luma(rgbNE), luma(rgbSW), luma(rgbSE), luma(texM)
	lumaMin := min(lumaM, lumaNW, lumaNE, lumaSW, lumaSE)
	lumaMax := max(lumaM, lumaNW, lumaNE, lumaSW, lumaSE)

	dir := math.Vec2{
		X: -((lumaNW + lumaNE) - (lumaSW + lumaSE)),
		Y: (lumaNW + lumaSW) - (lumaNE + lumaSE),
	}
	dirReduce := max((lumaNW+lumaNE+lumaSW+lumaSE)*0.25*fxaaReduceMul, fxaaReduceMin)
	rcpDirMin := 1 / (min(math32.Abs(dir.X), math32.Abs(dir.Y)) + dirReduce)
	dir = math.Vec2{
		X: clamp(dir.X*rcpDirMin, -fxaaSpanMax, fxaaSpanMax) * rcp.X,
		Y: clamp(dir.Y*rcpDirMin, -fxaaSpanMax, fxaaSpanMax) * rcp.Y,
	}

	along := func(t float32) math.Vec4 {
		return tex.sample(uv.Add(dir.Mul(t)))
	}
	rgbA := along(1.0/3.0 - 0.5).Add(along(2.0/3.0 - 0.5)).Mul(0.5)
	rgbB := rgbA.Mul(0.5).Add(along(-0.5).Add(along(0.5)).Mul(0.25))

	out := rgbB
	if l := luma(rgbB); l < lumaMin || l > lumaMax {
		out = rgbA
	}
	out.W = texM.W
	return out
}

func luminosityFragment(d *Device, _ *program, m *gpu.Material, uv math.Vec2) math.Vec4 {
	texel := d.sampleTexture(m.Texture("tMap"), uv)
	threshold := m.Float("uLuminosityThreshold")
	smoothing := m.Float("uLuminositySmoothing")
	alpha := smoothstep(threshold, threshold+smoothing, luma(texel))
	return texel.Mul(alpha)
}

func gaussianPdf(x, sigma float32) float32 {
	return 0.39894 * math32.Exp(-0.5*x*x/(sigma*sigma)) / sigma
}

func unrealBlurFragment(d *Device, p *program, m *gpu.Material, uv math.Vec2) math.Vec4 {
	tex := d.textureSurface(m.Texture("tMap"))
	if tex == nil {
		return math.Vec4{}
	}
	res := m.Vec2("uResolution")
	dir := m.Vec2("uDirection")
	invSize := math.Vec2{X: 1 / max(res.X, 1), Y: 1 / max(res.Y, 1)}

	sigma := float32(p.kernelRadius)
	weightSum := gaussianPdf(0, sigma)
	sum := tex.sample(uv).ToVec3().Mul(weightSum)
	for i := 1; i < p.kernelRadius; i++ {
		x := float32(i)
		w := gaussianPdf(x, sigma)
		off := math.Vec2{X: dir.X * invSize.X * x, Y: dir.Y * invSize.Y * x}
		s1 := tex.sample(uv.Add(off)).ToVec3()
		s2 := tex.sample(uv.Sub(off)).ToVec3()
		sum = sum.Add(s1.Add(s2).Mul(w))
		weightSum += 2 * w
	}
	c := sum.Mul(1 / weightSum)
	return math.Vec4{X: c.X, Y: c.Y, Z: c.Z, W: 1}
}

func bloomCompositeFragment(d *Device, p *program, m *gpu.Material, uv math.Vec2) math.Vec4 {
	factors := m.Floats("uBloomFactors")
	var out math.Vec4
	for i := 0; i < p.mips && i < len(factors); i++ {
		c := d.sampleTexture(m.Texture(gpu.BloomBlurUniform(i)), uv)
		out = out.Add(c.Mul(factors[i]))
	}
	return out
}

func fastBlurFragment(d *Device, _ *program, m *gpu.Material, uv math.Vec2) math.Vec4 {
	tex := d.textureSurface(m.Texture("tMap"))
	if tex == nil {
		return math.Vec4{}
	}
	res := m.Vec2("uResolution")
	dir := m.Vec2("uDirection")
	off1 := math.Vec2{X: 1.3846153846 * dir.X / max(res.X, 1), Y: 1.3846153846 * dir.Y / max(res.Y, 1)}
	off2 := math.Vec2{X: 3.2307692308 * dir.X / max(res.X, 1), Y: 3.2307692308 * dir.Y / max(res.Y, 1)}

	c := tex.sample(uv).Mul(0.2270270270)
	c = c.Add(tex.sample(uv.Add(off1)).Mul(0.3162162162))
	c = c.Add(tex.sample(uv.Sub(off1)).Mul(0.3162162162))
	c = c.Add(tex.sample(uv.Add(off2)).Mul(0.0702702703))
	c = c.Add(tex.sample(uv.Sub(off2)).Mul(0.0702702703))
	return c
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func smoothstep(e0, e1, x float32) float32 {
	if e1 == e0 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}
