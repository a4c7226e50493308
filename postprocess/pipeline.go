// Package postprocess implements the screen-space compositor: FXAA, a
// bright pass, a mip chain of separable Gaussian blurs and an additive
// bloom composite over the anti-aliased frame.
package postprocess

import (
	"errors"
	"fmt"
	gomath "math"
	"strconv"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/math"
	"render-pipeline/renderer"
	"render-pipeline/scene"
)

var (
	directionX = math.Vec2{X: 1, Y: 0}
	directionY = math.Vec2{X: 0, Y: 1}
)

// MipLevel is one level of the blur chain. Horizontal also serves as
// scratch for the composite at level 0.
type MipLevel struct {
	Horizontal *gpu.RenderTarget
	Vertical   *gpu.RenderTarget
	Blur       *gpu.Material

	// Resolution holds the level size as a math.Vec2; Blur reads it.
	Resolution *gpu.Uniform
}

// Pipeline renders a scene and composites bloom over it on the display.
type Pipeline struct {
	renderer *renderer.Renderer
	scene    *scene.Scene
	camera   *scene.Camera
	opts     Options

	renderTargetA *gpu.RenderTarget // scene colour + depth
	renderTargetB *gpu.RenderTarget // anti-aliased frame
	bright        *gpu.RenderTarget
	mips          []MipLevel

	fxaa       *gpu.Material
	luminosity *gpu.Material
	composite  *gpu.Material
	copy       *gpu.Material

	// factors is the composite's uBloomFactors cell; its slice is
	// rewritten in place by SetBloom.
	factors *gpu.Uniform

	width, height int // full resolution in device pixels

	lost      bool
	destroyed bool
}

// New allocates every target and material at 1x1. Call Resize before the
// first Update. On failure everything allocated so far is released.
func New(r *renderer.Renderer, s *scene.Scene, cam *scene.Camera, opts Options) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("postprocess: %w", err)
	}
	p := &Pipeline{
		renderer: r,
		scene:    s,
		camera:   cam,
		opts:     opts,
		width:    1,
		height:   1,
	}
	if err := p.init(); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("postprocess: %w", err)
	}
	core.Logger().Debug("postprocess pipeline created", "mips", opts.Mips)
	return p, nil
}

func (p *Pipeline) init() error {
	r := p.renderer
	var err error

	// ── Render targets ────────────────────────────────────────────────────────
	if p.renderTargetA, err = r.NewRenderTarget(1, 1, gpu.TargetOptions{Depth: true}); err != nil {
		return err
	}
	if p.renderTargetB, err = r.NewRenderTarget(1, 1, gpu.TargetOptions{}); err != nil {
		return err
	}
	if p.bright, err = r.NewRenderTarget(1, 1, gpu.TargetOptions{}); err != nil {
		return err
	}

	for i := 0; i < p.opts.Mips; i++ {
		var lvl MipLevel
		if lvl.Horizontal, err = r.NewRenderTarget(1, 1, gpu.TargetOptions{}); err != nil {
			return err
		}
		if lvl.Vertical, err = r.NewRenderTarget(1, 1, gpu.TargetOptions{}); err != nil {
			lvl.Horizontal.Dispose()
			return err
		}
		lvl.Resolution = gpu.NewUniform(math.Vec2{X: 1, Y: 1})
		lvl.Blur, err = r.NewMaterial(gpu.ProgramUnrealBlur, map[string]string{
			"KERNEL_RADIUS": strconv.Itoa(p.opts.KernelSizes[i]),
		})
		if err != nil {
			lvl.Horizontal.Dispose()
			lvl.Vertical.Dispose()
			return err
		}
		lvl.Blur.Bind("uResolution", lvl.Resolution)
		lvl.Blur.Set("uDirection", directionX)
		p.mips = append(p.mips, lvl)
	}

	// ── Materials ─────────────────────────────────────────────────────────────
	if p.fxaa, err = r.NewMaterial(gpu.ProgramFXAA, nil); err != nil {
		return err
	}
	p.fxaa.Set("tMap", p.renderTargetA.Texture)
	p.fxaa.Bind("uResolution", r.Resolution)

	if p.luminosity, err = r.NewMaterial(gpu.ProgramLuminosity, nil); err != nil {
		return err
	}
	p.luminosity.Set("tMap", p.renderTargetB.Texture)
	p.luminosity.Set("uLuminosityThreshold", p.opts.LuminosityThreshold)
	p.luminosity.Set("uLuminositySmoothing", p.opts.LuminositySmoothing)

	p.composite, err = r.NewMaterial(gpu.ProgramBloomComposite, map[string]string{
		"NUM_MIPS": strconv.Itoa(p.opts.Mips),
	})
	if err != nil {
		return err
	}
	for i, lvl := range p.mips {
		p.composite.Set(gpu.BloomBlurUniform(i), lvl.Vertical.Texture)
	}
	p.factors = gpu.NewUniform(BloomFactors(p.opts.BaseFactors, p.opts.BloomStrength, p.opts.BloomRadius))
	p.composite.Bind("uBloomFactors", p.factors)

	if p.copy, err = r.NewMaterial(gpu.ProgramCopy, nil); err != nil {
		return err
	}
	return nil
}

// halve returns round(n/2) floored at 1.
func halve(n int) int {
	return max(1, int(gomath.Round(float64(n)/2)))
}

// Resize sets the output to width x height logical pixels at dpr and
// cascades the size through the chain. Every size is validated first; on
// failure nothing changes.
func (p *Pipeline) Resize(width, height int, dpr float32) error {
	if err := p.usable(); err != nil {
		return err
	}
	if dpr <= 0 {
		dpr = 1
	}
	fw := int(gomath.Round(float64(float32(width) * dpr)))
	fh := int(gomath.Round(float64(float32(height) * dpr)))

	device := p.renderer.Device()
	type size struct{ w, h int }
	check := func(s size) error {
		if err := gpu.ValidateSize(device, s.w, s.h); err != nil {
			return fmt.Errorf("postprocess: resize to %dx%d: %w", s.w, s.h, err)
		}
		return nil
	}

	full := size{fw, fh}
	if err := check(full); err != nil {
		return err
	}
	half := size{halve(fw), halve(fh)}
	levels := make([]size, len(p.mips))
	cur := half
	for i := range levels {
		levels[i] = cur
		cur = size{halve(cur.w), halve(cur.h)}
	}
	// Halving only shrinks, so the full size bounds every level.

	oldRatio := p.renderer.PixelRatio()
	p.renderer.SetPixelRatio(dpr)
	if err := p.renderer.SetSize(width, height); err != nil {
		p.renderer.SetPixelRatio(oldRatio)
		return p.fail(fmt.Errorf("postprocess: resize: %w", err))
	}

	if err := p.renderTargetA.SetSize(full.w, full.h); err != nil {
		return p.fail(fmt.Errorf("postprocess: resize: %w", err))
	}
	if err := p.renderTargetB.SetSize(full.w, full.h); err != nil {
		return p.fail(fmt.Errorf("postprocess: resize: %w", err))
	}
	if err := p.bright.SetSize(half.w, half.h); err != nil {
		return p.fail(fmt.Errorf("postprocess: resize: %w", err))
	}
	for i, lvl := range p.mips {
		s := levels[i]
		if err := lvl.Horizontal.SetSize(s.w, s.h); err != nil {
			return p.fail(fmt.Errorf("postprocess: resize level %d: %w", i, err))
		}
		if err := lvl.Vertical.SetSize(s.w, s.h); err != nil {
			return p.fail(fmt.Errorf("postprocess: resize level %d: %w", i, err))
		}
		lvl.Resolution.Value = math.Vec2{X: float32(s.w), Y: float32(s.h)}
	}

	p.width, p.height = full.w, full.h
	core.Logger().Debug("postprocess resized", "width", full.w, "height", full.h, "dpr", dpr)
	return nil
}

// Update renders one frame. time and frame are accepted for the harness
// signature and ignored.
func (p *Pipeline) Update(time, delta float64, frame uint64) error {
	if err := p.usable(); err != nil {
		return err
	}
	return p.fail(p.render())
}

func (p *Pipeline) render() error {
	r := p.renderer

	// 1. scene into A
	if err := r.SetRenderTarget(p.renderTargetA); err != nil {
		return err
	}
	if err := r.Clear(true, true); err != nil {
		return err
	}
	if err := r.Render(p.scene, p.camera); err != nil {
		return err
	}

	// 2. FXAA A -> B
	if err := p.pass(p.fxaa, p.renderTargetB, true); err != nil {
		return err
	}

	// 3. B to the display
	p.copy.Set("tMap", p.renderTargetB.Texture)
	p.copy.Blending = gpu.NoBlending
	if err := p.pass(p.copy, nil, true); err != nil {
		return err
	}

	// 4. bright pass
	if err := p.pass(p.luminosity, p.bright, true); err != nil {
		return err
	}

	// 5. blur cascade
	input := p.bright
	for _, lvl := range p.mips {
		lvl.Blur.Set("tMap", input.Texture)
		lvl.Blur.Set("uDirection", directionX)
		if err := p.pass(lvl.Blur, lvl.Horizontal, true); err != nil {
			return err
		}
		lvl.Blur.Set("tMap", lvl.Horizontal.Texture)
		lvl.Blur.Set("uDirection", directionY)
		if err := p.pass(lvl.Blur, lvl.Vertical, true); err != nil {
			return err
		}
		input = lvl.Vertical
	}

	// 6. composite into level 0 scratch
	if err := p.pass(p.composite, p.mips[0].Horizontal, true); err != nil {
		return err
	}

	// 7. add bloom over the display
	p.copy.Set("tMap", p.mips[0].Horizontal.Texture)
	p.copy.Blending = gpu.AdditiveBlending
	return p.pass(p.copy, nil, false)
}

func (p *Pipeline) pass(m *gpu.Material, target *gpu.RenderTarget, clear bool) error {
	r := p.renderer
	if err := r.SetRenderTarget(target); err != nil {
		return err
	}
	if clear {
		if err := r.Clear(true, true); err != nil {
			return err
		}
	}
	return r.DrawFullscreen(m)
}

func (p *Pipeline) usable() error {
	if p.destroyed {
		return gpu.ErrDisposed
	}
	if p.lost {
		return gpu.ErrContextLost
	}
	return nil
}

// fail moves the pipeline into the lost state when err is a context loss.
func (p *Pipeline) fail(err error) error {
	if err != nil && errors.Is(err, gpu.ErrContextLost) && !p.lost {
		p.lost = true
		core.Logger().Warn("postprocess pipeline lost its context", "err", err)
	}
	return err
}

// SetBloom recomputes the factor table in place.
func (p *Pipeline) SetBloom(strength, radius float32) {
	p.opts.BloomStrength = strength
	p.opts.BloomRadius = radius
	if f, ok := p.factors.Value.([]float32); ok {
		fillBloomFactors(f, p.opts.BaseFactors, strength, radius)
	}
}

func (p *Pipeline) SetLuminosityThreshold(v float32) {
	p.opts.LuminosityThreshold = v
	p.luminosity.Set("uLuminosityThreshold", v)
}

// Factors returns the live bloom factor table.
func (p *Pipeline) Factors() []float32 {
	f, _ := p.factors.Value.([]float32)
	return f
}

func (p *Pipeline) Options() Options { return p.opts }

// Size returns the full resolution in device pixels.
func (p *Pipeline) Size() (width, height int) { return p.width, p.height }

func (p *Pipeline) RenderTargetA() *gpu.RenderTarget { return p.renderTargetA }
func (p *Pipeline) RenderTargetB() *gpu.RenderTarget { return p.renderTargetB }
func (p *Pipeline) Bright() *gpu.RenderTarget        { return p.bright }
func (p *Pipeline) Mips() []MipLevel                 { return p.mips }

// Lost reports whether a context loss has disabled the pipeline.
func (p *Pipeline) Lost() bool { return p.lost }

// Destroy releases every target and material. Safe to call more than once.
func (p *Pipeline) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true

	for _, rt := range []*gpu.RenderTarget{p.renderTargetA, p.renderTargetB, p.bright} {
		if rt != nil {
			rt.Dispose()
		}
	}
	for _, lvl := range p.mips {
		lvl.Horizontal.Dispose()
		lvl.Vertical.Dispose()
		lvl.Blur.Dispose()
	}
	for _, m := range []*gpu.Material{p.fxaa, p.luminosity, p.composite, p.copy} {
		if m != nil {
			m.Dispose()
		}
	}
	core.Logger().Debug("postprocess pipeline destroyed")
}
