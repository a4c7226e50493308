// Package renderer is the frame driver: it draws a scene graph through a
// gpu.Device, runs per-surface render hooks right before their surface is
// drawn, and offers the fullscreen pass utility used by post-processing
// and reflectors.
package renderer

import (
	"errors"
	"fmt"
	gomath "math"
	"slices"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/math"
	"render-pipeline/scene"
)

// Surface is a scene node drawn with its own material and prepared by a
// hook each time it is about to be drawn.
type Surface interface {
	Node() *scene.Node
	Material() *gpu.Material
	BeforeRender(r *Renderer, s *scene.Scene, cam *scene.Camera) error
}

// XRSettings mirrors the stereo presentation switch. While Enabled and
// Camera is set, Render draws from Camera instead of the one passed in.
type XRSettings struct {
	Enabled bool
	Camera  *scene.Camera
}

// ShadowSettings controls the directional shadow map. With AutoUpdate off
// the last rendered map is reused until NeedsUpdate is set.
type ShadowSettings struct {
	Enabled     bool
	AutoUpdate  bool
	NeedsUpdate bool
}

// Renderer owns a device and the per-frame draw state.
type Renderer struct {
	device gpu.Device

	// Resolution is a shared cell holding the drawing-buffer size as a
	// math.Vec2. Materials bind it to follow resizes automatically.
	Resolution *gpu.Uniform

	XR        XRSettings
	ShadowMap ShadowSettings

	// AutoClear clears the bound target at the start of every Render.
	AutoClear bool

	FrustumCulling bool

	width, height int
	pixelRatio    float32

	target   *gpu.RenderTarget
	surfaces []Surface
	depth    int

	shadowOrthoSize float32
	lightViewProj   math.Mat4
	hasShadowMap    bool

	// Per-frame stats of the outermost Render call
	lastObjects   int
	lastVertices  int
	lastTriangles int
	lastCulled    int
}

// New wraps device. The renderer takes ownership and destroys it in
// Destroy.
func New(device gpu.Device) *Renderer {
	w, h := device.OutputSize()
	core.Logger().Debug("renderer initialized", "device", device.Name(), "width", w, "height", h)
	return &Renderer{
		device:          device,
		Resolution:      gpu.NewUniform(math.Vec2{X: float32(w), Y: float32(h)}),
		ShadowMap:       ShadowSettings{AutoUpdate: true},
		AutoClear:       true,
		FrustumCulling:  true,
		width:           w,
		height:          h,
		pixelRatio:      1,
		shadowOrthoSize: 30.0,
		lightViewProj:   math.Mat4Identity(),
	}
}

func (r *Renderer) Device() gpu.Device { return r.device }

func (r *Renderer) SetPixelRatio(dpr float32) {
	if dpr <= 0 {
		dpr = 1
	}
	r.pixelRatio = dpr
}

func (r *Renderer) PixelRatio() float32 { return r.pixelRatio }

// SetSize sets the logical output size. The display is resized to the
// size times the pixel ratio.
func (r *Renderer) SetSize(width, height int) error {
	bw, bh := r.scaled(width, height)
	if err := r.device.SetOutputSize(bw, bh); err != nil {
		return fmt.Errorf("set output size %dx%d: %w", bw, bh, err)
	}
	r.width, r.height = width, height
	r.Resolution.Value = math.Vec2{X: float32(bw), Y: float32(bh)}
	return nil
}

func (r *Renderer) Size() (width, height int) { return r.width, r.height }

// DrawingBufferSize returns the output size in device pixels.
func (r *Renderer) DrawingBufferSize() (width, height int) {
	return r.scaled(r.width, r.height)
}

func (r *Renderer) scaled(width, height int) (int, int) {
	return int(gomath.Round(float64(float32(width) * r.pixelRatio))),
		int(gomath.Round(float64(float32(height) * r.pixelRatio)))
}

// SetRenderTarget selects where later draws land; nil is the display.
func (r *Renderer) SetRenderTarget(rt *gpu.RenderTarget) error {
	if err := r.device.BindTarget(rt); err != nil {
		return fmt.Errorf("bind render target: %w", err)
	}
	r.target = rt
	return nil
}

// RenderTarget returns the currently selected target, nil for the display.
func (r *Renderer) RenderTarget() *gpu.RenderTarget { return r.target }

// Clear clears the bound target to black and the far depth.
func (r *Renderer) Clear(color, depth bool) error {
	return r.ClearWith(core.DefaultClearValue(), color, depth)
}

func (r *Renderer) ClearWith(v core.ClearValue, color, depth bool) error {
	if err := r.device.Clear(v, color, depth); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// DrawFullscreen runs m over the whole bound target.
func (r *Renderer) DrawFullscreen(m *gpu.Material) error {
	if err := r.device.DrawFullscreen(m); err != nil {
		return fmt.Errorf("fullscreen %s: %w", m.Program.Name, err)
	}
	return nil
}

// NewRenderTarget allocates a target on the renderer's device.
func (r *Renderer) NewRenderTarget(width, height int, opts gpu.TargetOptions) (*gpu.RenderTarget, error) {
	return gpu.NewRenderTarget(r.device, width, height, opts)
}

// NewMaterial compiles program with defines and wraps it in a material.
func (r *Renderer) NewMaterial(program string, defines map[string]string) (*gpu.Material, error) {
	p, err := gpu.NewProgram(r.device, program, defines)
	if err != nil {
		return nil, err
	}
	return gpu.NewMaterial(p), nil
}

// Register adds a surface. Registering twice is a no-op.
func (r *Renderer) Register(s Surface) {
	if slices.Contains(r.surfaces, s) {
		return
	}
	r.surfaces = append(r.surfaces, s)
}

func (r *Renderer) Unregister(s Surface) {
	if i := slices.Index(r.surfaces, s); i >= 0 {
		r.surfaces = slices.Delete(r.surfaces, i, i+1)
	}
}

// Surfaces returns the registered surfaces.
func (r *Renderer) Surfaces() []Surface {
	return slices.Clone(r.surfaces)
}

func (r *Renderer) surfaceFor(n *scene.Node) Surface {
	for _, s := range r.surfaces {
		if s.Node() == n {
			return s
		}
	}
	return nil
}

// Render draws s from cam into the current render target. It may be
// called from inside a surface hook; the nested call draws into whatever
// target the hook selected.
func (r *Renderer) Render(s *scene.Scene, cam *scene.Camera) error {
	if s == nil {
		return errors.New("render: nil scene")
	}
	if cam == nil {
		cam = s.Camera
	}
	if r.XR.Enabled && r.XR.Camera != nil {
		cam = r.XR.Camera
	}
	if cam == nil {
		return errors.New("render: no camera")
	}

	r.depth++
	defer func() { r.depth-- }()

	if err := r.device.BindTarget(r.target); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if r.AutoClear {
		bg := core.ClearValue{Color: s.Background, Depth: 1}
		if err := r.device.Clear(bg, true, true); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}

	env, err := r.shadowPass(s, cam)
	if err != nil {
		return fmt.Errorf("render: shadow pass: %w", err)
	}

	view := cam.GetViewMatrix()
	proj := cam.GetProjectionMatrix()
	frustum := scene.FrustumFromVP(view.Mul(proj))
	camPos := cam.Position

	objects, vertices, triangles, culled := 0, 0, 0, 0

	for _, node := range s.GetVisibleNodes() {
		model := node.GetWorldMatrix()

		// Frustum culling: skip draw if AABB is completely outside the frustum
		if r.FrustumCulling {
			aabb := scene.ComputeAABB(node.Mesh, model)
			if !aabb.IntersectsFrustum(&frustum) {
				culled++
				continue
			}
		}

		var material *gpu.Material
		if surf := r.surfaceFor(node); surf != nil {
			if err := surf.BeforeRender(r, s, cam); err != nil {
				if errors.Is(err, gpu.ErrContextLost) {
					return fmt.Errorf("render: %s hook: %w", node.Name, err)
				}
				core.Logger().Warn("render hook failed, surface removed", "node", node.Name, "err", err)
				r.Unregister(surf)
				node.Visible = false
				continue
			}
			// the hook may have rendered elsewhere
			if err := r.device.BindTarget(r.target); err != nil {
				return fmt.Errorf("render: %w", err)
			}
			material = surf.Material()
		}

		err := r.device.DrawMesh(&gpu.DrawCall{
			Mesh:           node.Mesh,
			Model:          model,
			View:           view,
			Projection:     proj,
			CameraPosition: camPos,
			Env:            env,
			Material:       material,
		})
		if err != nil {
			return fmt.Errorf("render: draw %s: %w", node.Name, err)
		}

		objects++
		vertices += len(node.Mesh.Vertices)
		triangles += node.Mesh.TriangleCount()
	}

	if r.depth == 1 {
		r.lastObjects = objects
		r.lastVertices = vertices
		r.lastTriangles = triangles
		r.lastCulled = culled
	}
	return nil
}

// shadowPass renders the directional shadow map when enabled and builds the
// lighting environment for the main pass.
func (r *Renderer) shadowPass(s *scene.Scene, cam *scene.Camera) (*gpu.Environment, error) {
	env := &gpu.Environment{
		Lights:        s.Lights,
		Ambient:       s.Ambient,
		Fog:           s.Fog,
		LightViewProj: r.lightViewProj,
	}
	if !r.ShadowMap.Enabled {
		return env, nil
	}
	dirLight := s.DirectionalLight()
	if dirLight == nil || !dirLight.CastShadow {
		return env, nil
	}

	if r.ShadowMap.AutoUpdate || r.ShadowMap.NeedsUpdate {
		ortho := r.shadowOrthoSize
		camPos := cam.Position
		lightDir := dirLight.Direction.Normalize()

		// Guard: degenerate direction (zero vector)
		if lightDir.LengthSqr() < 0.001 {
			return env, nil
		}

		// Place shadow camera behind the scene along the light direction
		lightEye := camPos.Sub(lightDir.Mul(ortho))

		// Choose an up vector that is not parallel to the light direction
		upVec := math.Vec3Up
		if gomath.Abs(float64(lightDir.Dot(math.Vec3Up))) > 0.999 {
			upVec = math.Vec3{X: 0, Y: 0, Z: 1}
		}

		lightView := math.Mat4LookAt(lightEye, camPos, upVec)
		lightProj := math.Mat4Orthographic(
			-ortho, ortho, -ortho, ortho,
			-ortho, ortho*3,
		)
		lightVP := lightView.Mul(lightProj)

		var casters []gpu.ShadowCaster
		for _, node := range s.GetVisibleNodes() {
			if r.surfaceFor(node) != nil {
				continue
			}
			casters = append(casters, gpu.ShadowCaster{Mesh: node.Mesh, Model: node.GetWorldMatrix()})
		}
		if err := r.device.RenderShadowMap(casters, lightVP); err != nil {
			return nil, err
		}
		// the shadow pass leaves its own target bound
		if err := r.device.BindTarget(r.target); err != nil {
			return nil, err
		}
		r.lightViewProj = lightVP
		r.hasShadowMap = true
		r.ShadowMap.NeedsUpdate = false
	}

	env.LightViewProj = r.lightViewProj
	env.Shadows = r.hasShadowMap
	return env, nil
}

// DrawStats returns stats from the most recent outermost Render call.
func (r *Renderer) DrawStats() (objects, vertices, triangles, culled int) {
	return r.lastObjects, r.lastVertices, r.lastTriangles, r.lastCulled
}

// Destroy releases the device.
func (r *Renderer) Destroy() {
	r.surfaces = nil
	r.device.Destroy()
}
