package software

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/math"
	"render-pipeline/scene"
)

func newDevice(t *testing.T, w, h int, opts ...Option) *Device {
	t.Helper()
	d, err := New(w, h, opts...)
	require.NoError(t, err)
	t.Cleanup(d.Destroy)
	return d
}

func fill(t *testing.T, d *Device, rt *gpu.RenderTarget, c core.Color) {
	t.Helper()
	require.NoError(t, d.BindTarget(rt))
	require.NoError(t, d.Clear(core.ClearValue{Color: c, Depth: 1}, true, true))
}

func copyMaterial(t *testing.T, d *Device, src *gpu.RenderTarget) *gpu.Material {
	t.Helper()
	p, err := gpu.NewProgram(d, gpu.ProgramCopy, nil)
	require.NoError(t, err)
	m := gpu.NewMaterial(p)
	m.Set("tMap", src.Texture)
	return m
}

func assertColor(t *testing.T, expected core.Color, actual math.Vec4, delta float64) {
	t.Helper()
	assert.InDelta(t, expected.R, actual.X, delta, "R")
	assert.InDelta(t, expected.G, actual.Y, delta, "G")
	assert.InDelta(t, expected.B, actual.Z, delta, "B")
	assert.InDelta(t, expected.A, actual.W, delta, "A")
}

func TestCopyToDisplay(t *testing.T) {
	d := newDevice(t, 8, 6)
	rt, err := gpu.NewRenderTarget(d, 8, 6, gpu.TargetOptions{})
	require.NoError(t, err)

	red := core.Color{R: 1, A: 1}
	fill(t, d, rt, red)

	require.NoError(t, d.BindTarget(nil))
	require.NoError(t, d.DrawFullscreen(copyMaterial(t, d, rt)))

	assert.Equal(t, d.TargetImage(rt).Pix, d.Display().Pix)
	assertColor(t, red, d.Pixel(nil, 3, 2), 1e-6)
	assert.Equal(t, 1, d.DrawCount(nil))
	assert.Equal(t, 0, d.DrawCount(rt))
}

func TestAdditiveBlendingKeepsDestination(t *testing.T) {
	d := newDevice(t, 4, 4)
	rt, err := gpu.NewRenderTarget(d, 4, 4, gpu.TargetOptions{})
	require.NoError(t, err)
	fill(t, d, rt, core.Color{G: 0.2, A: 1})
	fill(t, d, nil, core.Color{R: 0.4, A: 1})

	m := copyMaterial(t, d, rt)
	m.Blending = gpu.AdditiveBlending
	require.NoError(t, d.DrawFullscreen(m))

	assertColor(t, core.Color{R: 0.4, G: 0.2, A: 1}, d.Pixel(nil, 1, 1), 1.0/255)
}

func TestFullscreenRejectsSelfSampling(t *testing.T) {
	d := newDevice(t, 4, 4)
	rt, err := gpu.NewRenderTarget(d, 4, 4, gpu.TargetOptions{})
	require.NoError(t, err)

	m := copyMaterial(t, d, rt)
	require.NoError(t, d.BindTarget(rt))
	assert.Error(t, d.DrawFullscreen(m))
}

func TestRGBA8Quantizes(t *testing.T) {
	d := newDevice(t, 2, 2)
	rt8, err := gpu.NewRenderTarget(d, 2, 2, gpu.TargetOptions{Format: gpu.FormatRGBA8})
	require.NoError(t, err)
	rt16, err := gpu.NewRenderTarget(d, 2, 2, gpu.TargetOptions{Format: gpu.FormatRGBA16F})
	require.NoError(t, err)

	c := core.Color{R: 0.1234, G: 1.5, A: 1}
	fill(t, d, rt8, c)
	fill(t, d, rt16, c)

	assert.InDelta(t, 31.0/255, d.Pixel(rt8, 0, 0).X, 1e-6)
	assert.Equal(t, float32(1), d.Pixel(rt8, 0, 0).Y)
	assert.Equal(t, float32(0.1234), d.Pixel(rt16, 0, 0).X)
	assert.Equal(t, float32(1.5), d.Pixel(rt16, 0, 0).Y)
}

func TestTargetLimits(t *testing.T) {
	d := newDevice(t, 4, 4, WithMaxTextureSize(64))

	_, err := gpu.NewRenderTarget(d, 65, 8, gpu.TargetOptions{})
	assert.ErrorIs(t, err, gpu.ErrTargetTooLarge)

	_, err = gpu.NewRenderTarget(d, 0, 8, gpu.TargetOptions{})
	assert.ErrorIs(t, err, gpu.ErrInvalidSize)

	rt, err := gpu.NewRenderTarget(d, 64, 64, gpu.TargetOptions{})
	require.NoError(t, err)
	tex := rt.Texture

	require.NoError(t, rt.SetSize(32, 16))
	assert.Same(t, tex, rt.Texture)
	assert.Equal(t, 32, tex.Width())
	assert.Equal(t, 16, tex.Height())

	assert.ErrorIs(t, rt.SetSize(128, 16), gpu.ErrTargetTooLarge)
	assert.Equal(t, 32, rt.Width)

	assert.Equal(t, 1, d.Stats().LiveTargets)
	assert.False(t, rt.Disposed())
	rt.Dispose()
	rt.Dispose()
	assert.True(t, rt.Disposed())
	assert.Equal(t, 0, d.Stats().LiveTargets)
	assert.ErrorIs(t, rt.SetSize(8, 8), gpu.ErrDisposed)
	assert.Nil(t, d.TargetImage(rt))
}

func TestUnknownProgram(t *testing.T) {
	d := newDevice(t, 4, 4)
	_, err := gpu.NewProgram(d, "toon", nil)
	assert.ErrorIs(t, err, gpu.ErrUnknownProgram)

	_, err = gpu.NewProgram(d, gpu.ProgramUnrealBlur, map[string]string{"KERNEL_RADIUS": "x"})
	assert.Error(t, err)
}

func TestContextLost(t *testing.T) {
	d := newDevice(t, 4, 4)
	rt, err := gpu.NewRenderTarget(d, 4, 4, gpu.TargetOptions{})
	require.NoError(t, err)
	m := copyMaterial(t, d, rt)

	d.LoseContext()

	assert.ErrorIs(t, d.BindTarget(nil), gpu.ErrContextLost)
	assert.ErrorIs(t, d.Clear(core.DefaultClearValue(), true, true), gpu.ErrContextLost)
	assert.ErrorIs(t, d.DrawFullscreen(m), gpu.ErrContextLost)
	assert.ErrorIs(t, rt.SetSize(8, 8), gpu.ErrContextLost)
	assert.ErrorIs(t, d.SetOutputSize(8, 8), gpu.ErrContextLost)
	_, err = gpu.NewRenderTarget(d, 4, 4, gpu.TargetOptions{})
	assert.ErrorIs(t, err, gpu.ErrContextLost)
	_, err = gpu.NewProgram(d, gpu.ProgramCopy, nil)
	assert.ErrorIs(t, err, gpu.ErrContextLost)
}

func fullscreenQuad(mat *scene.Material) *gpu.DrawCall {
	mesh := scene.CreatePlaneXY(2, 2, 1)
	mesh.Material = mat
	return &gpu.DrawCall{
		Mesh:       mesh,
		Model:      math.Mat4Identity(),
		View:       math.Mat4Identity(),
		Projection: math.Mat4Identity(),
	}
}

func TestDrawMeshUnlit(t *testing.T) {
	d := newDevice(t, 8, 8)
	fill(t, d, nil, core.ColorBlack)

	blue := core.Color{B: 1, A: 1}
	mat := scene.NewMaterial("blue", blue)
	mat.Unlit = true
	require.NoError(t, d.DrawMesh(fullscreenQuad(mat)))

	for _, p := range [][2]int{{0, 0}, {7, 7}, {4, 3}} {
		assertColor(t, blue, d.Pixel(nil, p[0], p[1]), 1e-6)
	}
	assert.Equal(t, 2, d.Stats().Triangles)
}

func TestDrawMeshDepthTest(t *testing.T) {
	d := newDevice(t, 4, 4)
	fill(t, d, nil, core.ColorBlack)

	near := fullscreenQuad(&scene.Material{Albedo: core.ColorRed, Unlit: true})
	near.Model = math.Mat4Translation(math.NewVec3(0, 0, -0.5))
	far := fullscreenQuad(&scene.Material{Albedo: core.ColorGreen, Unlit: true})
	far.Model = math.Mat4Translation(math.NewVec3(0, 0, 0.5))

	require.NoError(t, d.DrawMesh(near))
	require.NoError(t, d.DrawMesh(far))
	assertColor(t, core.ColorRed, d.Pixel(nil, 2, 2), 1e-6)
}

func TestDrawMeshClipsBehindCamera(t *testing.T) {
	d := newDevice(t, 4, 4)
	fill(t, d, nil, core.ColorBlack)

	dc := fullscreenQuad(&scene.Material{Albedo: core.ColorWhite, Unlit: true})
	dc.Model = math.Mat4Translation(math.NewVec3(0, 0, -2))
	require.NoError(t, d.DrawMesh(dc))
	assertColor(t, core.ColorBlack, d.Pixel(nil, 2, 2), 1e-6)
}

func TestDrawMeshFog(t *testing.T) {
	d := newDevice(t, 4, 4)
	fill(t, d, nil, core.ColorBlack)

	// camera at the origin looking down -Z at a quad 10 units away
	dc := fullscreenQuad(&scene.Material{Albedo: core.ColorRed, Unlit: true})
	dc.Model = math.Mat4TRS(math.NewVec3(0, 0, -10), math.QuaternionIdentity(), math.NewVec3(20, 20, 1))
	dc.Projection = math.Mat4Perspective(1.5, 1, 0.1, 100)
	dc.Env = &gpu.Environment{Fog: scene.NewFog(core.ColorWhite, 1, 5)}
	require.NoError(t, d.DrawMesh(dc))

	assertColor(t, core.ColorWhite, d.Pixel(nil, 2, 2), 1e-6)
}

func TestPhongDirectionalLight(t *testing.T) {
	d := newDevice(t, 4, 4)
	fill(t, d, nil, core.ColorBlack)

	mat := &scene.Material{Albedo: core.ColorWhite, Shininess: 1}
	dc := fullscreenQuad(mat)
	dc.Env = &gpu.Environment{Lights: []*scene.Light{{
		Type:      scene.LightTypeDirectional,
		Direction: math.NewVec3(0, 0, -1),
		Color:     core.ColorWhite,
		Intensity: 0.5,
	}}}
	require.NoError(t, d.DrawMesh(dc))
	assert.InDelta(t, 0.5, d.Pixel(nil, 1, 1).X, 1.0/255)

	// a light shining from behind contributes nothing
	fill(t, d, nil, core.ColorBlack)
	dc.Env.Lights[0].Direction = math.NewVec3(0, 0, 1)
	require.NoError(t, d.DrawMesh(dc))
	assert.InDelta(t, 0, d.Pixel(nil, 1, 1).X, 1e-6)
}

func TestShadowMapOccludes(t *testing.T) {
	d := newDevice(t, 4, 4, WithShadowMapSize(64))
	fill(t, d, nil, core.ColorBlack)

	// light looks down -Z with an orthographic box; the blocker sits
	// between it and the receiver
	lightVP := math.Mat4Orthographic(-2, 2, -2, 2, -10, 10)
	blocker := scene.CreatePlaneXY(4, 4, 1)
	require.NoError(t, d.RenderShadowMap([]gpu.ShadowCaster{{
		Mesh:  blocker,
		Model: math.Mat4Translation(math.NewVec3(0, 0, 5)),
	}}, lightVP))

	dc := fullscreenQuad(&scene.Material{Albedo: core.ColorWhite})
	dc.Env = &gpu.Environment{
		Lights: []*scene.Light{{
			Type:       scene.LightTypeDirectional,
			Direction:  math.NewVec3(0, 0, -1),
			Color:      core.ColorWhite,
			Intensity:  1,
			CastShadow: true,
		}},
		LightViewProj: lightVP,
		Shadows:       true,
	}
	require.NoError(t, d.DrawMesh(dc))
	assert.InDelta(t, 0, d.Pixel(nil, 1, 1).X, 1e-6)
	assert.Equal(t, 1, d.Stats().ShadowPasses)
}

func TestTrace(t *testing.T) {
	d := newDevice(t, 4, 4)
	rt, err := gpu.NewRenderTarget(d, 4, 4, gpu.TargetOptions{})
	require.NoError(t, err)
	m := copyMaterial(t, d, rt)

	d.Trace(true)
	require.NoError(t, d.BindTarget(nil))
	require.NoError(t, d.DrawFullscreen(m))

	recs := d.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, gpu.ProgramCopy, recs[0].Program)
	assert.Nil(t, recs[0].Target)
	assert.Same(t, rt.Texture, recs[0].Inputs["tMap"])
}
