package postprocess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/internal/software"
	"render-pipeline/math"
	"render-pipeline/renderer"
	"render-pipeline/scene"
)

func newRenderer(t *testing.T, opts ...software.Option) (*renderer.Renderer, *software.Device) {
	t.Helper()
	d, err := software.New(8, 8, opts...)
	require.NoError(t, err)
	r := renderer.New(d)
	t.Cleanup(r.Destroy)
	return r, d
}

func testScene() *scene.Scene {
	s := scene.NewScene()
	cam := scene.NewCamera(1.0, 1, 0.1, 100)
	cam.SetPosition(math.NewVec3(0, 0, 3))
	cam.LookAt(math.Vec3Zero, math.Vec3Up)
	s.SetCamera(cam)
	s.Background = core.Color{R: 0.05, G: 0.05, B: 0.1, A: 1}

	cube := scene.NewMeshNode("cube", scene.CreateCube(1))
	cube.Mesh.Material = scene.NewEmissiveMaterial("glow", core.Color{R: 1, G: 0.8, B: 0.3, A: 1}, 1)
	cube.Rotate(math.NewVec3(1, 1, 0).Normalize(), 0.6)
	s.AddNode(cube)
	return s
}

func newPipeline(t *testing.T, r *renderer.Renderer, s *scene.Scene, opts Options) *Pipeline {
	t.Helper()
	p, err := New(r, s, s.Camera, opts)
	require.NoError(t, err)
	t.Cleanup(p.Destroy)
	return p
}

func TestBloomFactors(t *testing.T) {
	base := DefaultOptions().BaseFactors

	f := BloomFactors(base, 0.3, 0.75)
	for i, b := range base {
		assert.InDelta(t, 0.3*(b+0.75*(1.2-2*b)), f[i], 1e-6)
	}

	for _, radius := range []float32{0, 0.25, 0.49} {
		f := BloomFactors(base, 2, radius)
		for i := 1; i < len(f); i++ {
			assert.Less(t, f[i], f[i-1], "radius %v level %d", radius, i)
		}
	}

	// at radius 0.5 every level weighs the same
	for _, v := range BloomFactors(base, 1, 0.5) {
		assert.InDelta(t, 0.6, v, 1e-6)
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	o := DefaultOptions()
	o.Mips = 0
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.KernelSizes = o.KernelSizes[:4]
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.BaseFactors = append(o.BaseFactors, 0.1)
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.KernelSizes[2] = 0
	assert.Error(t, o.Validate())

	r, _ := newRenderer(t)
	_, err := New(r, testScene(), nil, o)
	assert.Error(t, err)
}

func levelSizes(p *Pipeline) [][2]int {
	var out [][2]int
	for _, lvl := range p.Mips() {
		out = append(out, [2]int{lvl.Horizontal.Width, lvl.Horizontal.Height})
	}
	return out
}

func TestResizeCascade(t *testing.T) {
	r, d := newRenderer(t)
	s := testScene()
	p := newPipeline(t, r, s, DefaultOptions())

	require.NoError(t, p.Resize(50, 25, 2))

	w, h := p.Size()
	assert.Equal(t, [2]int{100, 50}, [2]int{w, h})
	assert.Equal(t, 100, p.RenderTargetA().Width)
	assert.Equal(t, 50, p.RenderTargetB().Height)
	assert.Equal(t, [2]int{50, 25}, [2]int{p.Bright().Width, p.Bright().Height})
	assert.Equal(t, [][2]int{{50, 25}, {25, 13}, {13, 7}, {7, 4}, {4, 2}}, levelSizes(p))

	for _, lvl := range p.Mips() {
		assert.Equal(t, lvl.Horizontal.Width, lvl.Vertical.Width)
		assert.Equal(t, lvl.Horizontal.Height, lvl.Vertical.Height)
		assert.Equal(t, math.Vec2{X: float32(lvl.Vertical.Width), Y: float32(lvl.Vertical.Height)}, lvl.Resolution.Value)
	}

	ow, oh := d.OutputSize()
	assert.Equal(t, [2]int{100, 50}, [2]int{ow, oh})
	assert.Equal(t, math.Vec2{X: 100, Y: 50}, r.Resolution.Value)
	assert.Equal(t, float32(2), r.PixelRatio())

	// tiny outputs bottom out at 1x1
	require.NoError(t, p.Resize(3, 3, 1))
	assert.Equal(t, [][2]int{{2, 2}, {1, 1}, {1, 1}, {1, 1}, {1, 1}}, levelSizes(p))
}

func TestResizeKeepsLastValidSize(t *testing.T) {
	r, _ := newRenderer(t, software.WithMaxTextureSize(256))
	p := newPipeline(t, r, testScene(), DefaultOptions())

	require.NoError(t, p.Resize(100, 60, 1))
	before := levelSizes(p)

	err := p.Resize(300, 10, 1)
	assert.ErrorIs(t, err, gpu.ErrTargetTooLarge)

	err = p.Resize(0, 10, 1)
	assert.ErrorIs(t, err, gpu.ErrInvalidSize)

	w, h := p.Size()
	assert.Equal(t, [2]int{100, 60}, [2]int{w, h})
	assert.Equal(t, before, levelSizes(p))
	rw, rh := r.Size()
	assert.Equal(t, [2]int{100, 60}, [2]int{rw, rh})
	assert.False(t, p.Lost())
}

func TestUpdatePassOrder(t *testing.T) {
	r, d := newRenderer(t)
	p := newPipeline(t, r, testScene(), DefaultOptions())
	require.NoError(t, p.Resize(32, 32, 1))

	d.Trace(true)
	require.NoError(t, p.Update(0, 1.0/60, 0))
	recs := d.Records()

	// skip the scene draws
	i := 0
	for i < len(recs) && recs[i].Program == "phong" {
		assert.Same(t, p.RenderTargetA(), recs[i].Target)
		i++
	}
	post := recs[i:]
	require.Len(t, post, 3+2*len(p.Mips())+2)

	expect := func(k int, program string, target *gpu.RenderTarget, input *gpu.RenderTarget) {
		t.Helper()
		assert.Equal(t, program, post[k].Program, "pass %d", k)
		assert.Same(t, target, post[k].Target, "pass %d", k)
		if input != nil {
			assert.Same(t, input.Texture, post[k].Inputs["tMap"], "pass %d", k)
		}
	}

	expect(0, gpu.ProgramFXAA, p.RenderTargetB(), p.RenderTargetA())
	expect(1, gpu.ProgramCopy, nil, p.RenderTargetB())
	assert.Equal(t, gpu.NoBlending, post[1].Blending)
	expect(2, gpu.ProgramLuminosity, p.Bright(), p.RenderTargetB())

	input := p.Bright()
	for l, lvl := range p.Mips() {
		expect(3+2*l, gpu.ProgramUnrealBlur, lvl.Horizontal, input)
		expect(4+2*l, gpu.ProgramUnrealBlur, lvl.Vertical, lvl.Horizontal)
		input = lvl.Vertical
	}

	n := len(post)
	expect(n-2, gpu.ProgramBloomComposite, p.Mips()[0].Horizontal, nil)
	for l, lvl := range p.Mips() {
		assert.Same(t, lvl.Vertical.Texture, post[n-2].Inputs[gpu.BloomBlurUniform(l)])
	}
	expect(n-1, gpu.ProgramCopy, nil, p.Mips()[0].Horizontal)
	assert.Equal(t, gpu.AdditiveBlending, post[n-1].Blending)
}

func TestZeroBloomShowsAntialiasedFrame(t *testing.T) {
	r, d := newRenderer(t)
	opts := DefaultOptions()
	opts.BloomStrength = 0
	p := newPipeline(t, r, testScene(), opts)
	require.NoError(t, p.Resize(24, 16, 1))

	require.NoError(t, p.Update(0, 0, 0))

	display := d.Display()
	assert.Equal(t, d.TargetImage(p.RenderTargetB()).Pix, display.Pix)

	lit := false
	for i := 0; i < len(display.Pix); i += 4 {
		if display.Pix[i] > 200 {
			lit = true
			break
		}
	}
	assert.True(t, lit, "the emissive cube should be visible")
}

func TestBloomOnlyAddsLight(t *testing.T) {
	r, d := newRenderer(t)
	p := newPipeline(t, r, testScene(), DefaultOptions())
	require.NoError(t, p.Resize(24, 16, 1))
	require.NoError(t, p.Update(0, 0, 0))

	base := d.TargetImage(p.RenderTargetB()).Pix
	display := d.Display().Pix
	brighter := false
	for i := range display {
		assert.GreaterOrEqual(t, display[i], base[i])
		if display[i] > base[i] {
			brighter = true
		}
	}
	assert.True(t, brighter)
}

func TestSetBloomUpdatesSharedTable(t *testing.T) {
	r, _ := newRenderer(t)
	p := newPipeline(t, r, testScene(), DefaultOptions())

	f := p.Factors()
	p.SetBloom(0.6, 0)
	assert.InDelta(t, 0.6, f[0], 1e-6)
	assert.InDelta(t, 0.12, f[4], 1e-6)
	assert.Equal(t, f, p.composite.Floats("uBloomFactors"))

	p.SetLuminosityThreshold(0.5)
	assert.Equal(t, float32(0.5), p.luminosity.Float("uLuminosityThreshold"))
}

func TestContextLossIsSticky(t *testing.T) {
	r, d := newRenderer(t)
	p := newPipeline(t, r, testScene(), DefaultOptions())
	require.NoError(t, p.Resize(16, 16, 1))
	require.NoError(t, p.Update(0, 0, 0))

	d.LoseContext()
	assert.ErrorIs(t, p.Update(0.1, 0.1, 1), gpu.ErrContextLost)
	assert.True(t, p.Lost())
	assert.ErrorIs(t, p.Update(0.2, 0.1, 2), gpu.ErrContextLost)
	assert.ErrorIs(t, p.Resize(16, 16, 1), gpu.ErrContextLost)
}

func TestFailedResizeKeepsPixelRatio(t *testing.T) {
	r, d := newRenderer(t)
	p := newPipeline(t, r, testScene(), DefaultOptions())
	require.NoError(t, p.Resize(16, 16, 1))

	d.LoseContext()
	assert.ErrorIs(t, p.Resize(16, 16, 2), gpu.ErrContextLost)
	assert.Equal(t, float32(1), r.PixelRatio())
	rw, rh := r.Size()
	assert.Equal(t, [2]int{16, 16}, [2]int{rw, rh})
	assert.True(t, p.Lost())
}

type failingDevice struct {
	*software.Device
	program string
}

func (f failingDevice) CompileProgram(p *gpu.Program) error {
	if p.Name == f.program {
		return errors.New("link failed")
	}
	return f.Device.CompileProgram(p)
}

func TestNewReleasesOnFailure(t *testing.T) {
	d, err := software.New(8, 8)
	require.NoError(t, err)
	t.Cleanup(d.Destroy)
	r := renderer.New(failingDevice{Device: d, program: gpu.ProgramBloomComposite})

	_, err = New(r, testScene(), nil, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link failed")
	assert.Equal(t, 0, d.Stats().LiveTargets)
}

func TestDestroyIsIdempotent(t *testing.T) {
	r, d := newRenderer(t)
	p, err := New(r, testScene(), nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3+2*5, d.Stats().LiveTargets)

	p.Destroy()
	p.Destroy()
	assert.Equal(t, 0, d.Stats().LiveTargets)
	assert.True(t, p.renderTargetA.Disposed())
	assert.True(t, p.mips[len(p.mips)-1].Vertical.Disposed())
	assert.ErrorIs(t, p.Update(0, 0, 0), gpu.ErrDisposed)
}
