package reflector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/internal/software"
	"render-pipeline/math"
	"render-pipeline/postprocess"
	"render-pipeline/renderer"
	"render-pipeline/scene"
)

type fixture struct {
	r     *renderer.Renderer
	d     *software.Device
	scene *scene.Scene
	cam   *scene.Camera
	ref   *Reflector
}

// newFixture builds a mirror on the XY plane at the origin facing +Z, a
// red cube in front of it and a camera looking at the mirror from +Z.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	d, err := software.New(32, 32)
	require.NoError(t, err)
	r := renderer.New(d)
	t.Cleanup(r.Destroy)

	s := scene.NewScene()
	cam := scene.NewCamera(1.0, 1, 0.1, 100)
	cam.SetPosition(math.NewVec3(0, 3, 4))
	cam.LookAt(math.Vec3Zero, math.Vec3Up)
	s.SetCamera(cam)

	cube := scene.NewMeshNode("cube", scene.CreateCube(0.5))
	cube.Mesh.Material = &scene.Material{Albedo: core.ColorRed, Unlit: true}
	cube.SetPosition(math.NewVec3(0, 0.5, 1.5))
	s.AddNode(cube)

	ref, err := New(r, scene.CreatePlaneXY(4, 4, 1), opts)
	require.NoError(t, err)
	t.Cleanup(ref.Destroy)
	s.AddNode(ref.Node())

	return &fixture{r: r, d: d, scene: s, cam: cam, ref: ref}
}

func hasRed(pix []uint8) bool {
	for i := 0; i < len(pix); i += 4 {
		if pix[i] > 200 && pix[i+1] < 50 && pix[i+2] < 50 {
			return true
		}
	}
	return false
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, uint32(0x7f7f7f), o.Color.Hex())
	assert.Equal(t, 512, o.Width)
	assert.Equal(t, 512, o.Height)
	assert.Equal(t, float32(0), o.ClipBias)
	assert.Equal(t, 8, o.BlurIterations)
}

func TestCaptureSeesSceneInFront(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 32, 32
	opts.BlurIterations = 0
	f := newFixture(t, opts)

	require.NoError(t, f.r.Render(f.scene, nil))
	assert.Equal(t, Stats{Rendered: 1}, f.ref.Stats())
	assert.True(t, hasRed(f.d.TargetImage(f.ref.Capture()).Pix))
	assert.True(t, f.ref.Node().Visible)
	assert.Nil(t, f.r.RenderTarget())
}

func TestSkipsWhenCameraBehindMirror(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 16, 16
	f := newFixture(t, opts)
	f.r.FrustumCulling = false

	f.cam.SetPosition(math.NewVec3(0, 1, -4))
	f.cam.LookAt(math.Vec3Zero, math.Vec3Up)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.r.Render(f.scene, nil))
	}
	assert.Equal(t, Stats{Skipped: 3}, f.ref.Stats())
	assert.Equal(t, 0, f.d.DrawCount(f.ref.Capture()))

	// edge-on counts as facing away
	f.cam.SetPosition(math.NewVec3(3, 0, 0))
	f.cam.LookAt(math.NewVec3(-1, 0, 0), math.Vec3Up)
	require.NoError(t, f.r.Render(f.scene, nil))
	assert.Equal(t, 4, f.ref.Stats().Skipped)
}

func TestCaptureUnchangedWhileFacingAway(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 32, 32
	f := newFixture(t, opts)

	p, err := postprocess.New(f.r, f.scene, f.cam, postprocess.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(p.Destroy)
	require.NoError(t, p.Resize(32, 32, 1))

	require.NoError(t, p.Update(0, 0, 0))
	capture := f.d.TargetImage(f.ref.Capture()).Pix
	reflection := f.ref.Reflection()
	read, _ := f.ref.PingPong()
	blurred := f.d.TargetImage(read).Pix

	f.cam.SetPosition(math.NewVec3(0, 3, -4))
	f.cam.LookAt(math.Vec3Zero, math.Vec3Up)
	f.r.FrustumCulling = false
	for frame := uint64(1); frame <= 5; frame++ {
		require.NoError(t, p.Update(float64(frame)/60, 1.0/60, frame))
	}

	assert.Equal(t, capture, f.d.TargetImage(f.ref.Capture()).Pix)
	assert.Equal(t, blurred, f.d.TargetImage(read).Pix)
	assert.Same(t, reflection, f.ref.Reflection())
	assert.Equal(t, Stats{Rendered: 1, Skipped: 5}, f.ref.Stats())
}

func TestPingPongInvariant(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 16, 16
	f := newFixture(t, opts)

	f.d.Trace(true)
	require.NoError(t, f.ref.BeforeRender(f.r, f.scene, f.cam))

	var blurs []software.DrawRecord
	for _, rec := range f.d.Records() {
		if rec.Program == gpu.ProgramFastBlur {
			blurs = append(blurs, rec)
		}
	}
	require.Len(t, blurs, opts.BlurIterations)

	read, write := f.ref.PingPong()
	assert.Same(t, f.ref.Capture().Texture, blurs[0].Inputs["tMap"])
	for i, rec := range blurs {
		input := rec.Inputs["tMap"].Target()
		assert.NotSame(t, input, rec.Target, "pass %d samples its own target", i)
		assert.NotSame(t, f.ref.Capture(), rec.Target)
		if i > 0 {
			// each pass reads what the previous one wrote
			assert.Same(t, blurs[i-1].Target, input)
		}
	}
	last := blurs[len(blurs)-1].Target
	assert.Same(t, read, last)
	assert.NotSame(t, read, write)
	assert.Same(t, read.Texture, f.ref.Reflection())
}

// directionDevice records the blur direction of every fast blur pass.
type directionDevice struct {
	*software.Device
	dirs []math.Vec2
}

func (d *directionDevice) DrawFullscreen(m *gpu.Material) error {
	if m.Program.Name == gpu.ProgramFastBlur {
		d.dirs = append(d.dirs, m.Vec2("uDirection"))
	}
	return d.Device.DrawFullscreen(m)
}

func TestBlurDirectionsShrink(t *testing.T) {
	sw, err := software.New(8, 8)
	require.NoError(t, err)
	d := &directionDevice{Device: sw}
	r := renderer.New(d)
	t.Cleanup(r.Destroy)

	s := scene.NewScene()
	cam := scene.NewCamera(1.0, 1, 0.1, 100)
	cam.SetPosition(math.NewVec3(0, 1, 4))
	cam.LookAt(math.Vec3Zero, math.Vec3Up)
	s.SetCamera(cam)

	opts := DefaultOptions()
	opts.Width, opts.Height = 8, 8
	opts.BlurIterations = 4
	ref, err := New(r, scene.CreatePlaneXY(2, 2, 1), opts)
	require.NoError(t, err)
	t.Cleanup(ref.Destroy)
	s.AddNode(ref.Node())

	require.NoError(t, r.Render(s, nil))
	assert.Equal(t, []math.Vec2{{X: 1.5}, {Y: 1}, {X: 0.5}, {}}, d.dirs)
	assert.Equal(t, math.Vec2{X: 8, Y: 8}, ref.blur.Vec2("uResolution"))
}

func TestZeroBlurSamplesCapture(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 16, 16
	opts.BlurIterations = 0
	f := newFixture(t, opts)

	f.d.Trace(true)
	require.NoError(t, f.r.Render(f.scene, nil))

	read, write := f.ref.PingPong()
	assert.Nil(t, read)
	assert.Nil(t, write)
	assert.Same(t, f.ref.Capture().Texture, f.ref.Reflection())
	assert.Same(t, f.ref.Capture().Texture, f.ref.Material().Texture("tReflection"))
	for _, rec := range f.d.Records() {
		assert.NotEqual(t, gpu.ProgramFastBlur, rec.Program)
	}
}

func TestVirtualCameraMirrorsPose(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 8, 8
	opts.BlurIterations = 0
	f := newFixture(t, opts)

	f.cam.SetPosition(math.NewVec3(1, 2, 3))
	f.cam.LookAt(math.NewVec3(0, 1, 0), math.Vec3Up)
	require.NoError(t, f.ref.BeforeRender(f.r, f.scene, f.cam))

	vc := f.ref.Camera()
	assert.InDelta(t, 1, vc.Position.X, 1e-4)
	assert.InDelta(t, 2, vc.Position.Y, 1e-4)
	assert.InDelta(t, -3, vc.Position.Z, 1e-4)
	assert.Equal(t, f.cam.FarPlane, vc.FarPlane)

	// the reflected look point lies on the far side of the mirror
	fwd := vc.GetForward()
	assert.Greater(t, fwd.Z, float32(0))
	assert.InDelta(t, 1, vc.GetUp().Dot(math.Vec3Up), 0.2)
}

func TestTextureMatrixCentersLookPoint(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 8, 8
	opts.BlurIterations = 0
	f := newFixture(t, opts)

	f.cam.SetPosition(math.NewVec3(0, 1, 4))
	f.cam.LookAt(math.NewVec3(0, 1, 0), math.Vec3Up)
	require.NoError(t, f.ref.BeforeRender(f.r, f.scene, f.cam))

	// the mirror node sits at the origin, so local equals world
	coord := math.NewVec4(0, 1, 0, 1).MulMat(f.ref.TextureMatrix())
	assert.InDelta(t, 0.5, coord.X/coord.W, 1e-4)
	assert.InDelta(t, 0.5, coord.Y/coord.W, 1e-4)

	// points higher on the mirror appear higher in the reflection
	above := math.NewVec4(0, 1.5, 0, 1).MulMat(f.ref.TextureMatrix())
	assert.Greater(t, above.Y/above.W, float32(0.5))
}

func nearSide(p math.Vec3, view, proj math.Mat4) float32 {
	c := p.ToVec4(1).MulMat(view).MulMat(proj)
	return c.Z + c.W
}

func TestObliqueNearPlaneIsMirror(t *testing.T) {
	for _, far := range []float32{50, 1000} {
		opts := DefaultOptions()
		opts.Width, opts.Height = 8, 8
		opts.BlurIterations = 0
		f := newFixture(t, opts)

		f.cam.FarPlane = far
		f.cam.UpdateProjectionMatrix()
		f.ref.Node().SetPosition(math.NewVec3(0, 0, -2))
		require.NoError(t, f.ref.BeforeRender(f.r, f.scene, f.cam))

		vc := f.ref.Camera()
		view := vc.GetViewMatrix()
		proj := vc.GetProjectionMatrix()

		// every point of the mirror sits exactly on the near plane
		for _, p := range []math.Vec3{{X: 0, Y: 0, Z: -2}, {X: 1.5, Y: -1, Z: -2}, {X: -2, Y: 3, Z: -2}} {
			assert.InDelta(t, 0, nearSide(p, view, proj), 1e-3, "far %v point %v", far, p)
		}
		// the reflected world is kept, anything behind the mirror is clipped
		assert.Greater(t, nearSide(math.NewVec3(0, 0.5, -1), view, proj), float32(0))
		assert.Less(t, nearSide(math.NewVec3(0, 0.5, -3), view, proj), float32(0))
	}
}

func TestClipBiasMovesNearPlane(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 8, 8
	opts.BlurIterations = 0
	opts.ClipBias = 0.1
	f := newFixture(t, opts)
	require.NoError(t, f.ref.BeforeRender(f.r, f.scene, f.cam))

	vc := f.ref.Camera()
	view := vc.GetViewMatrix()
	// the origin lies on the mirror; the bias pushes the near plane toward
	// the virtual camera by ClipBias times its view depth
	depth := math.Vec3Zero.ToVec4(1).MulMat(view).Z
	assert.InDelta(t, -5, depth, 1e-3)
	got := nearSide(math.Vec3Zero, view, vc.GetProjectionMatrix())
	assert.InDelta(t, -opts.ClipBias*depth, got, 1e-3)
	assert.Greater(t, got, float32(0))
}

func TestHookRestoresRendererState(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 32, 32
	f := newFixture(t, opts)

	prev, err := f.r.NewRenderTarget(8, 8, gpu.TargetOptions{})
	require.NoError(t, err)
	t.Cleanup(prev.Dispose)
	require.NoError(t, f.r.SetRenderTarget(prev))

	xrCam := scene.NewCamera(1, 1, 0.1, 10)
	f.r.XR = renderer.XRSettings{Enabled: true, Camera: xrCam}
	f.r.ShadowMap = renderer.ShadowSettings{Enabled: true, AutoUpdate: true}
	f.r.AutoClear = false

	require.NoError(t, f.ref.BeforeRender(f.r, f.scene, f.cam))

	assert.Same(t, prev, f.r.RenderTarget())
	assert.True(t, f.r.XR.Enabled)
	assert.True(t, f.r.ShadowMap.AutoUpdate)
	assert.True(t, f.ref.Node().Visible)
	assert.Equal(t, 0, f.d.Stats().ShadowPasses)
	assert.True(t, hasRed(f.d.TargetImage(f.ref.Capture()).Pix))
}

func TestMaterialDefines(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 8, 8
	opts.Map = scene.NewCheckerTexture("checker", 8, 2, [4]uint8{255, 255, 255, 255}, [4]uint8{0, 0, 0, 255})
	opts.Map.Repeat = math.NewVec2(2, 2)
	opts.Fog = scene.NewFog(core.ColorWhite, 1, 10)
	opts.Dithering = true
	f := newFixture(t, opts)

	m := f.ref.Material()
	for _, def := range []string{"USE_MAP", "USE_FOG", "DITHERING"} {
		assert.True(t, m.Program.Has(def), def)
	}
	assert.Same(t, opts.Map, m.Image("tMap"))
	assert.Equal(t, opts.Map.Matrix(), m.Mat3("uMapTransform"))
	assert.Equal(t, float32(10), m.Float("uFogFar"))
	assert.Equal(t, opts.Color.Vec3(), m.Vec3("uColor"))

	plain := newFixture(t, Options{Color: core.ColorWhite, Width: 8, Height: 8})
	assert.Empty(t, plain.ref.Material().Defines())
}

func TestResize(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 16, 16
	f := newFixture(t, opts)

	require.NoError(t, f.ref.Resize(64, 32))
	read, write := f.ref.PingPong()
	for _, rt := range []*gpu.RenderTarget{f.ref.Capture(), read, write} {
		assert.Equal(t, 64, rt.Width)
		assert.Equal(t, 32, rt.Height)
	}
	assert.Equal(t, math.Vec2{X: 64, Y: 32}, f.ref.blur.Vec2("uResolution"))

	assert.ErrorIs(t, f.ref.Resize(1<<20, 32), gpu.ErrTargetTooLarge)
	assert.Equal(t, 64, f.ref.Capture().Width)
}

func TestDestroy(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 8, 8
	f := newFixture(t, opts)
	assert.Len(t, f.r.Surfaces(), 1)
	live := f.d.Stats().LiveTargets
	capture := f.ref.Capture()
	assert.False(t, capture.Disposed())

	f.ref.Destroy()
	f.ref.Destroy()
	assert.Empty(t, f.r.Surfaces())
	assert.Nil(t, f.ref.Node().Parent)
	assert.Equal(t, live-3, f.d.Stats().LiveTargets)
	assert.True(t, capture.Disposed())
	assert.ErrorIs(t, f.ref.BeforeRender(f.r, f.scene, f.cam), gpu.ErrDisposed)

	// the rest of the scene keeps rendering
	require.NoError(t, f.r.Render(f.scene, nil))
}

func TestNewRejectsBadOptions(t *testing.T) {
	d, err := software.New(8, 8, software.WithMaxTextureSize(64))
	require.NoError(t, err)
	r := renderer.New(d)
	t.Cleanup(r.Destroy)

	opts := DefaultOptions()
	_, err = New(r, scene.CreatePlaneXY(1, 1, 1), opts)
	assert.ErrorIs(t, err, gpu.ErrTargetTooLarge)
	assert.Equal(t, 0, d.Stats().LiveTargets)
	assert.Empty(t, r.Surfaces())

	opts.Width, opts.Height = 8, 8
	opts.BlurIterations = -1
	_, err = New(r, scene.CreatePlaneXY(1, 1, 1), opts)
	assert.Error(t, err)

	_, err = New(r, nil, DefaultOptions())
	assert.Error(t, err)
}
