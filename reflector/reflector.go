// Package reflector implements a planar mirror surface. Each frame, right
// before the surface is drawn, it renders the scene from the mirrored
// camera with an oblique near plane on the mirror, blurs the capture and
// hands it to the surface material through a texture matrix.
package reflector

import (
	"errors"
	"fmt"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/math"
	"render-pipeline/renderer"
	"render-pipeline/scene"
)

type Options struct {
	Color          core.Color
	Width          int
	Height         int
	ClipBias       float32
	BlurIterations int

	// Map is an optional base texture multiplied into the reflection.
	Map       *scene.Texture
	Fog       *scene.Fog
	Dithering bool
}

func DefaultOptions() Options {
	return Options{
		Color:          core.ColorFromHex(0x7F7F7F),
		Width:          512,
		Height:         512,
		ClipBias:       0,
		BlurIterations: 8,
	}
}

// Stats counts hook invocations.
type Stats struct {
	Rendered int
	Skipped  int // camera behind the mirror
}

// Reflector is a renderer.Surface. Add Node to the scene; New registers the
// reflector with the renderer.
type Reflector struct {
	renderer *renderer.Renderer
	opts     Options

	node     *scene.Node
	material *gpu.Material
	camera   *scene.Camera

	textureMatrix *gpu.Uniform // math.Mat4
	reflection    *gpu.Uniform // *gpu.Texture

	capture *gpu.RenderTarget
	read    *gpu.RenderTarget
	write   *gpu.RenderTarget

	blur           *gpu.Material
	blurResolution *gpu.Uniform // math.Vec2

	stats     Stats
	destroyed bool
}

var _ renderer.Surface = (*Reflector)(nil)

// New builds a reflector over geometry, whose local +Z is the mirror
// normal. Allocation failures release everything and are returned.
func New(r *renderer.Renderer, geometry *scene.Mesh, opts Options) (*Reflector, error) {
	if geometry == nil {
		return nil, errors.New("reflector: nil geometry")
	}
	if opts.BlurIterations < 0 {
		return nil, fmt.Errorf("reflector: negative blur iterations %d", opts.BlurIterations)
	}
	ref := &Reflector{
		renderer:       r,
		opts:           opts,
		node:           scene.NewMeshNode("Reflector", geometry),
		camera:         scene.NewCamera(1, 1, 0.1, 1000),
		textureMatrix:  gpu.NewUniform(math.Mat4Identity()),
		reflection:     gpu.NewUniform(nil),
		blurResolution: gpu.NewUniform(math.Vec2{X: float32(opts.Width), Y: float32(opts.Height)}),
	}
	if err := ref.init(); err != nil {
		ref.Destroy()
		return nil, fmt.Errorf("reflector: %w", err)
	}
	r.Register(ref)
	core.Logger().Debug("reflector created", "width", opts.Width, "height", opts.Height, "blur_iterations", opts.BlurIterations)
	return ref, nil
}

func (ref *Reflector) init() error {
	r := ref.renderer
	opts := ref.opts
	var err error

	if ref.capture, err = r.NewRenderTarget(opts.Width, opts.Height, gpu.TargetOptions{Depth: true}); err != nil {
		return err
	}
	ref.reflection.Value = ref.capture.Texture

	if opts.BlurIterations > 0 {
		if ref.read, err = r.NewRenderTarget(opts.Width, opts.Height, gpu.TargetOptions{}); err != nil {
			return err
		}
		if ref.write, err = r.NewRenderTarget(opts.Width, opts.Height, gpu.TargetOptions{}); err != nil {
			return err
		}
		if ref.blur, err = r.NewMaterial(gpu.ProgramFastBlur, nil); err != nil {
			return err
		}
		ref.blur.Bind("uResolution", ref.blurResolution)
		ref.blur.Set("uDirection", math.Vec2{})
		ref.reflection.Value = ref.read.Texture
	}

	defines := map[string]string{}
	if opts.Map != nil {
		defines["USE_MAP"] = ""
	}
	if opts.Fog != nil {
		defines["USE_FOG"] = ""
	}
	if opts.Dithering {
		defines["DITHERING"] = ""
	}
	if ref.material, err = r.NewMaterial(gpu.ProgramReflector, defines); err != nil {
		return err
	}
	m := ref.material
	m.Bind("tReflection", ref.reflection)
	m.Bind("uMatrix", ref.textureMatrix)
	m.Set("uColor", opts.Color)
	if opts.Map != nil {
		m.Set("tMap", opts.Map)
		m.Set("uMapTransform", opts.Map.Matrix())
	}
	if opts.Fog != nil {
		m.Set("uFogColor", opts.Fog.Color)
		m.Set("uFogNear", opts.Fog.Near)
		m.Set("uFogFar", opts.Fog.Far)
	}
	return nil
}

func (ref *Reflector) Node() *scene.Node { return ref.node }

func (ref *Reflector) Material() *gpu.Material { return ref.material }

// BeforeRender updates the reflection for cam. It returns early, leaving
// the last capture in place, when cam is behind the mirror.
func (ref *Reflector) BeforeRender(r *renderer.Renderer, s *scene.Scene, cam *scene.Camera) (err error) {
	if ref.destroyed {
		return gpu.ErrDisposed
	}

	world := ref.node.GetWorldMatrix()
	reflectorWorldPosition := world.Position()
	cameraWorldPosition := cam.Position
	normal := math.Vec3Front.TransformDirection(world.ExtractRotation())

	view := reflectorWorldPosition.Sub(cameraWorldPosition)
	if view.Dot(normal) >= 0 {
		ref.stats.Skipped++
		return nil
	}

	ref.updateVirtualCamera(cam, normal, reflectorWorldPosition, cameraWorldPosition)

	// texture matrix from the unclipped projection
	ref.textureMatrix.Value = world.
		Mul(ref.camera.GetViewMatrix()).
		Mul(ref.camera.GetProjectionMatrix()).
		Mul(math.Mat4TextureBias())

	ref.camera.SetProjectionMatrix(obliqueProjection(
		ref.camera.GetProjectionMatrix(),
		ref.camera.GetViewMatrix(),
		math.PlaneFromNormalAndCoplanarPoint(normal, reflectorWorldPosition),
		ref.opts.ClipBias,
	))

	// ── Capture ───────────────────────────────────────────────────────────────
	prevTarget := r.RenderTarget()
	prevXR := r.XR.Enabled
	prevShadowAutoUpdate := r.ShadowMap.AutoUpdate

	ref.node.Visible = false
	r.XR.Enabled = false
	r.ShadowMap.AutoUpdate = false
	defer func() {
		r.XR.Enabled = prevXR
		r.ShadowMap.AutoUpdate = prevShadowAutoUpdate
		ref.node.Visible = true
		if rerr := r.SetRenderTarget(prevTarget); err == nil {
			err = rerr
		}
	}()

	if err := r.SetRenderTarget(ref.capture); err != nil {
		return err
	}
	if !r.AutoClear {
		if err := r.Clear(true, true); err != nil {
			return err
		}
	}
	if err := r.Render(s, ref.camera); err != nil {
		return err
	}

	// ── Blur ──────────────────────────────────────────────────────────────────
	if err := ref.blurCapture(r); err != nil {
		return err
	}

	ref.stats.Rendered++
	return nil
}

// updateVirtualCamera places the mirrored camera behind the surface.
func (ref *Reflector) updateVirtualCamera(cam *scene.Camera, normal, reflectorWorldPosition, cameraWorldPosition math.Vec3) {
	view := reflectorWorldPosition.Sub(cameraWorldPosition)
	view = view.Reflect(normal).Negate().Add(reflectorWorldPosition)

	rotationMatrix := cam.GetWorldMatrix().ExtractRotation()

	lookAtPosition := math.Vec3Back.TransformDirection(rotationMatrix).Add(cameraWorldPosition)
	target := reflectorWorldPosition.Sub(lookAtPosition)
	target = target.Reflect(normal).Negate().Add(reflectorWorldPosition)

	up := math.Vec3Up.TransformDirection(rotationMatrix).Reflect(normal)

	vc := ref.camera
	vc.SetPosition(view)
	vc.LookAt(target, up)
	vc.FOV = cam.FOV
	vc.AspectRatio = cam.AspectRatio
	vc.NearPlane = cam.NearPlane
	vc.FarPlane = cam.FarPlane
	vc.SetProjectionMatrix(cam.GetProjectionMatrix())
}

// obliqueProjection replaces the near plane of proj with plane (world
// space), so that geometry behind the mirror is clipped.
func obliqueProjection(proj, view math.Mat4, plane math.Plane, clipBias float32) math.Mat4 {
	clipPlane := plane.ApplyMat4(view).Vec4()

	e := proj.Elements()
	q := math.Vec4{
		X: (math.Sign(clipPlane.X) + e[8]) / e[0],
		Y: (math.Sign(clipPlane.Y) + e[9]) / e[5],
		Z: -1,
		W: (1 + e[10]) / e[14],
	}
	clipPlane = clipPlane.Mul(2 / clipPlane.Dot(q))

	e[2] = clipPlane.X
	e[6] = clipPlane.Y
	e[10] = clipPlane.Z + 1 - clipBias
	e[14] = clipPlane.W
	return math.Mat4FromElements(e)
}

// blurCapture runs the ping-pong blur with a shrinking radius and points
// the reflection uniform at the result.
func (ref *Reflector) blurCapture(r *renderer.Renderer) error {
	n := ref.opts.BlurIterations
	for i := 0; i < n; i++ {
		radius := float32(n-i-1) * 0.5
		dir := math.Vec2{X: radius}
		if i%2 == 1 {
			dir = math.Vec2{Y: radius}
		}
		input := ref.read
		if i == 0 {
			input = ref.capture
		}
		ref.blur.Set("tMap", input.Texture)
		ref.blur.Set("uDirection", dir)

		if err := r.SetRenderTarget(ref.write); err != nil {
			return err
		}
		if err := r.Clear(true, false); err != nil {
			return err
		}
		if err := r.DrawFullscreen(ref.blur); err != nil {
			return err
		}
		ref.read, ref.write = ref.write, ref.read
		ref.reflection.Value = ref.read.Texture
	}
	return nil
}

// Resize reallocates the capture and blur targets. Both sizes are
// validated before any target changes.
func (ref *Reflector) Resize(width, height int) error {
	if ref.destroyed {
		return gpu.ErrDisposed
	}
	if err := gpu.ValidateSize(ref.renderer.Device(), width, height); err != nil {
		return fmt.Errorf("reflector: resize to %dx%d: %w", width, height, err)
	}
	for _, rt := range []*gpu.RenderTarget{ref.capture, ref.read, ref.write} {
		if rt == nil {
			continue
		}
		if err := rt.SetSize(width, height); err != nil {
			return fmt.Errorf("reflector: %w", err)
		}
	}
	ref.opts.Width, ref.opts.Height = width, height
	ref.blurResolution.Value = math.Vec2{X: float32(width), Y: float32(height)}
	return nil
}

// Camera returns the virtual camera of the last rendered frame.
func (ref *Reflector) Camera() *scene.Camera { return ref.camera }

func (ref *Reflector) TextureMatrix() math.Mat4 {
	m, _ := ref.textureMatrix.Value.(math.Mat4)
	return m
}

// Reflection returns the texture the surface currently samples.
func (ref *Reflector) Reflection() *gpu.Texture {
	t, _ := ref.reflection.Value.(*gpu.Texture)
	return t
}

func (ref *Reflector) Capture() *gpu.RenderTarget { return ref.capture }

// PingPong returns the read and write blur targets; both are nil without
// blur iterations.
func (ref *Reflector) PingPong() (read, write *gpu.RenderTarget) { return ref.read, ref.write }

func (ref *Reflector) Stats() Stats { return ref.stats }

func (ref *Reflector) Options() Options { return ref.opts }

// Destroy unregisters the reflector, detaches its node and releases every
// target and material. Safe to call more than once.
func (ref *Reflector) Destroy() {
	if ref.destroyed {
		return
	}
	ref.destroyed = true
	ref.renderer.Unregister(ref)
	if p := ref.node.Parent; p != nil {
		p.RemoveChild(ref.node)
	}
	for _, rt := range []*gpu.RenderTarget{ref.capture, ref.read, ref.write} {
		if rt != nil {
			rt.Dispose()
		}
	}
	for _, m := range []*gpu.Material{ref.blur, ref.material} {
		if m != nil {
			m.Dispose()
		}
	}
	core.Logger().Debug("reflector destroyed")
}
