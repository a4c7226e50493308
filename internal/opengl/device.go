// Package opengl implements gpu.Device on an OpenGL 4.1 core context. The
// context must be current on the calling goroutine, which core locks to
// the main OS thread.
package opengl

import (
	"errors"
	"fmt"
	"image"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/math"
	"render-pipeline/scene"
)

const defaultShadowMapSize = 2048

// Fixed texture units of the Phong program.
const (
	albedoUnit = 0
	shadowUnit = 1
)

// glContextLost is GL_CONTEXT_LOST from KHR_robustness, reported by
// glGetError on drivers that expose it.
const glContextLost = 0x0507

type Option func(*Device)

func WithShadowMapSize(n int) Option {
	return func(d *Device) { d.shadowSize = n }
}

// Device is the OpenGL backend.
type Device struct {
	width, height  int
	maxTextureSize int
	shadowSize     int

	// bound is the current render target, nil for the default framebuffer.
	bound *gpu.RenderTarget

	fullscreenVAO uint32
	phong         *glProgram
	depthProg     *glProgram
	shadow        *shadowMap

	meshes map[*scene.Mesh]*glMesh
	images map[*scene.Texture]uint32

	lost      bool
	destroyed bool
}

var _ gpu.Device = (*Device)(nil)

// New initialises OpenGL. Must be called after the window context is made
// current; width and height are the framebuffer size in pixels.
func New(width, height int, opts ...Option) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	d := &Device{
		width:      width,
		height:     height,
		shadowSize: defaultShadowMapSize,
		meshes:     make(map[*scene.Mesh]*glMesh),
		images:     make(map[*scene.Texture]uint32),
	}
	for _, opt := range opts {
		opt(d)
	}

	var maxSize int32
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &maxSize)
	d.maxTextureSize = int(maxSize)

	var err error
	if d.phong, err = newGLProgram(glslVersion+meshVertSrc, glslVersion+phongFragSrc, kindSurface); err != nil {
		return nil, fmt.Errorf("phong shader: %w", err)
	}
	if d.depthProg, err = newGLProgram(glslVersion+depthVertSrc, glslVersion+depthFragSrc, kindSurface); err != nil {
		d.phong.delete()
		return nil, fmt.Errorf("depth shader: %w", err)
	}
	gl.GenVertexArrays(1, &d.fullscreenVAO)

	// samplers of different types may not share a unit
	gl.UseProgram(d.phong.id)
	gl.Uniform1i(d.phong.location("tAlbedo"), albedoUnit)
	gl.Uniform1i(d.phong.location("tShadowMap"), shadowUnit)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Viewport(0, 0, int32(width), int32(height))

	core.Logger().Info("opengl device created",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"max_texture_size", d.maxTextureSize)
	return d, nil
}

func (d *Device) Name() string { return "opengl" }

func (d *Device) MaxTextureSize() int { return d.maxTextureSize }

func (d *Device) check() error {
	if d.lost || d.destroyed {
		return gpu.ErrContextLost
	}
	return nil
}

// fail marks the device lost when err reports a lost context.
func (d *Device) fail(err error) error {
	if errors.Is(err, gpu.ErrContextLost) {
		d.lost = true
	}
	return err
}

func glError(op string) error {
	switch code := gl.GetError(); code {
	case gl.NO_ERROR:
		return nil
	case glContextLost:
		return fmt.Errorf("opengl: %s: %w", op, gpu.ErrContextLost)
	case gl.OUT_OF_MEMORY:
		return fmt.Errorf("opengl: %s: out of memory", op)
	default:
		return fmt.Errorf("opengl: %s: error 0x%X", op, code)
	}
}

// SetOutputSize records the default framebuffer size; the window owns the
// storage.
func (d *Device) SetOutputSize(width, height int) error {
	if err := d.check(); err != nil {
		return err
	}
	if width < 1 || height < 1 {
		return fmt.Errorf("opengl output %dx%d: %w", width, height, gpu.ErrInvalidSize)
	}
	d.width, d.height = width, height
	if d.bound == nil {
		gl.Viewport(0, 0, int32(width), int32(height))
	}
	return nil
}

func (d *Device) OutputSize() (int, int) { return d.width, d.height }

func (d *Device) CompileProgram(p *gpu.Program) error {
	if err := d.check(); err != nil {
		return err
	}
	vert, frag, kind, err := sources(p)
	if err != nil {
		return err
	}
	prog, err := newGLProgram(vert, frag, kind)
	if err != nil {
		return fmt.Errorf("opengl: %s: %w", p, err)
	}
	p.Handle = prog
	return nil
}

func (d *Device) DestroyProgram(p *gpu.Program) {
	if prog, ok := p.Handle.(*glProgram); ok && !d.destroyed {
		prog.delete()
	}
}

func (d *Device) BindTarget(rt *gpu.RenderTarget) error {
	if err := d.check(); err != nil {
		return err
	}
	if rt == nil {
		return d.bind(nil, d.width, d.height)
	}
	return d.bind(rt, rt.Width, rt.Height)
}

func (d *Device) bind(rt *gpu.RenderTarget, width, height int) error {
	fbo := uint32(0)
	if rt != nil {
		t, ok := rt.Handle.(*glTarget)
		if !ok {
			return gpu.ErrDisposed
		}
		fbo = t.fbo
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.Viewport(0, 0, int32(width), int32(height))
	d.bound = rt
	return nil
}

// restoreBinding rebinds the current target after a pass that switched
// framebuffers internally.
func (d *Device) restoreBinding() {
	if d.bound == nil {
		_ = d.bind(nil, d.width, d.height)
		return
	}
	_ = d.bind(d.bound, d.bound.Width, d.bound.Height)
}

func (d *Device) Clear(value core.ClearValue, color, depth bool) error {
	if err := d.check(); err != nil {
		return err
	}
	var mask uint32
	if color {
		c := value.Color
		gl.ClearColor(c.R, c.G, c.B, c.A)
		mask |= gl.COLOR_BUFFER_BIT
	}
	if depth {
		gl.DepthMask(true)
		gl.ClearDepth(float64(value.Depth))
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if mask != 0 {
		gl.Clear(mask)
	}
	return d.fail(glError("clear"))
}

func setBlending(b gpu.Blending) {
	switch b {
	case gpu.NormalBlending:
		gl.Enable(gl.BLEND)
		gl.BlendEquation(gl.FUNC_ADD)
		gl.BlendFuncSeparate(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA, gl.ONE, gl.ONE_MINUS_SRC_ALPHA)
	case gpu.AdditiveBlending:
		gl.Enable(gl.BLEND)
		gl.BlendEquation(gl.FUNC_ADD)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE)
	default:
		gl.Disable(gl.BLEND)
	}
}

func programOf(m *gpu.Material, kind programKind) (*glProgram, error) {
	if m == nil || m.Program == nil {
		return nil, errors.New("opengl: material has no program")
	}
	prog, ok := m.Program.Handle.(*glProgram)
	if !ok || prog.id == 0 {
		return nil, fmt.Errorf("opengl: program %s: %w", m.Program.Name, gpu.ErrDisposed)
	}
	if prog.kind != kind {
		return nil, fmt.Errorf("opengl: %s cannot be used for this draw", m.Program.Name)
	}
	return prog, nil
}

func (d *Device) DrawFullscreen(m *gpu.Material) error {
	if err := d.check(); err != nil {
		return err
	}
	prog, err := programOf(m, kindFullscreen)
	if err != nil {
		return err
	}

	gl.Disable(gl.DEPTH_TEST)
	gl.DepthMask(false)
	setBlending(m.Blending)
	gl.UseProgram(prog.id)
	if _, err := d.applyMaterial(prog, m, 0); err != nil {
		return fmt.Errorf("opengl: %s: %w", m.Program.Name, err)
	}
	gl.BindVertexArray(d.fullscreenVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)

	gl.DepthMask(true)
	gl.Enable(gl.DEPTH_TEST)
	return d.fail(glError(m.Program.Name))
}

func (d *Device) DrawMesh(dc *gpu.DrawCall) error {
	if err := d.check(); err != nil {
		return err
	}
	if dc == nil || dc.Mesh == nil {
		return errors.New("opengl: draw call without mesh")
	}
	mesh := d.ensureUploaded(dc.Mesh)
	if mesh == nil {
		return nil
	}

	modelView := dc.Model.Mul(dc.View)
	var prog *glProgram
	if dc.Material != nil {
		p, err := programOf(dc.Material, kindSurface)
		if err != nil {
			return err
		}
		prog = p
		gl.UseProgram(prog.id)
		if _, err := d.applyMaterial(prog, dc.Material, 0); err != nil {
			return fmt.Errorf("opengl: %s: %w", dc.Material.Program.Name, err)
		}
		setDepth(dc.Material.DepthTest, dc.Material.DepthWrite)
		setBlending(dc.Material.Blending)
	} else {
		prog = d.phong
		gl.UseProgram(prog.id)
		if err := d.applyPhong(dc); err != nil {
			return err
		}
		setDepth(true, true)
		blending := gpu.NoBlending
		if mat := dc.Mesh.Material; mat != nil && mat.Albedo.A < 1 {
			blending = gpu.NormalBlending
		}
		setBlending(blending)
	}

	setMat4(prog.location("uModel"), dc.Model)
	setMat4(prog.location("uModelView"), modelView)
	setMat4(prog.location("uModelViewProjection"), modelView.Mul(dc.Projection))
	setMat3(prog.location("uNormalMatrix"), math.NormalMatrix(dc.Model))

	mesh.draw()
	setDepth(true, true)
	return d.fail(glError("draw mesh"))
}

func setDepth(test, write bool) {
	if test {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(write)
}

// applyPhong uploads the scene material and lighting of dc.
func (d *Device) applyPhong(dc *gpu.DrawCall) error {
	p := d.phong
	mat := dc.Mesh.Material
	if mat == nil {
		mat = scene.DefaultMaterial()
	}
	env := dc.Env
	if env == nil {
		env = &gpu.Environment{}
	}

	a := mat.Albedo
	gl.Uniform4f(p.location("uAlbedo"), a.R, a.G, a.B, a.A)
	gl.Uniform3f(p.location("uSpecular"), mat.Specular.R, mat.Specular.G, mat.Specular.B)
	gl.Uniform1f(p.location("uShininess"), mat.Shininess)
	gl.Uniform3f(p.location("uEmissive"), mat.Emissive.R, mat.Emissive.G, mat.Emissive.B)
	gl.Uniform1i(p.location("uUnlit"), boolToInt(mat.Unlit))

	gl.Uniform1i(p.location("uHasAlbedoTex"), boolToInt(mat.AlbedoTexture != nil))
	if tex := mat.AlbedoTexture; tex != nil {
		id, err := d.uploadTexture(tex)
		if err != nil {
			return err
		}
		gl.ActiveTexture(gl.TEXTURE0 + albedoUnit)
		gl.BindTexture(gl.TEXTURE_2D, id)
		setMat3(p.location("uAlbedoTransform"), tex.Matrix())
	}

	gl.Uniform3f(p.location("uAmbient"), env.Ambient.R, env.Ambient.G, env.Ambient.B)
	gl.Uniform3f(p.location("uCameraPos"), dc.CameraPosition.X, dc.CameraPosition.Y, dc.CameraPosition.Z)

	var (
		types     [maxLights]int32
		positions [maxLights * 3]float32
		dirs      [maxLights * 3]float32
		radiance  [maxLights * 3]float32
		ranges    [maxLights]float32
		shadows   [maxLights]int32
	)
	n := 0
	for _, l := range env.Lights {
		if l == nil || n == maxLights {
			continue
		}
		types[n] = int32(l.Type)
		positions[n*3], positions[n*3+1], positions[n*3+2] = l.Position.X, l.Position.Y, l.Position.Z
		dirs[n*3], dirs[n*3+1], dirs[n*3+2] = l.Direction.X, l.Direction.Y, l.Direction.Z
		c := l.Color.Vec3().Mul(l.Intensity)
		radiance[n*3], radiance[n*3+1], radiance[n*3+2] = c.X, c.Y, c.Z
		ranges[n] = l.Range
		shadows[n] = boolToInt(l.CastShadow)
		n++
	}
	gl.Uniform1i(p.location("uLightCount"), int32(n))
	gl.Uniform1iv(p.location("uLightType"), maxLights, &types[0])
	gl.Uniform3fv(p.location("uLightPosition"), maxLights, &positions[0])
	gl.Uniform3fv(p.location("uLightDirection"), maxLights, &dirs[0])
	gl.Uniform3fv(p.location("uLightRadiance"), maxLights, &radiance[0])
	gl.Uniform1fv(p.location("uLightRange"), maxLights, &ranges[0])
	gl.Uniform1iv(p.location("uLightShadow"), maxLights, &shadows[0])

	shadowsOn := env.Shadows && d.shadow != nil
	gl.Uniform1i(p.location("uShadows"), boolToInt(shadowsOn))
	setMat4(p.location("uLightViewProj"), env.LightViewProj)
	if shadowsOn {
		gl.ActiveTexture(gl.TEXTURE0 + shadowUnit)
		gl.BindTexture(gl.TEXTURE_2D, d.shadow.depthTex)
	}

	fog := env.Fog
	gl.Uniform1i(p.location("uFog"), boolToInt(fog != nil))
	if fog != nil {
		gl.Uniform3f(p.location("uFogColor"), fog.Color.R, fog.Color.G, fog.Color.B)
		gl.Uniform1f(p.location("uFogNear"), fog.Near)
		gl.Uniform1f(p.location("uFogFar"), fog.Far)
	}
	return nil
}

// Screenshot reads the default framebuffer back as a top-down image.
func (d *Device) Screenshot() (*image.RGBA, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	w, h := d.width, d.height
	buf := make([]uint8, w*h*4)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(buf))
	d.restoreBinding()
	if err := d.fail(glError("read pixels")); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stride := w * 4
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+stride], buf[(h-1-y)*stride:(h-y)*stride])
	}
	return img, nil
}

// Destroy frees every GPU resource the device created. Render targets and
// programs still referencing it become unusable.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	for mesh := range d.meshes {
		d.ReleaseMesh(mesh)
	}
	for tex := range d.images {
		d.ReleaseTexture(tex)
	}
	if d.shadow != nil {
		d.shadow.destroy()
		d.shadow = nil
	}
	d.phong.delete()
	d.depthProg.delete()
	if d.fullscreenVAO != 0 {
		gl.DeleteVertexArrays(1, &d.fullscreenVAO)
		d.fullscreenVAO = 0
	}
	d.destroyed = true
	core.Logger().Debug("opengl device destroyed")
}
