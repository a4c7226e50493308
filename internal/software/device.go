// Package software is a CPU implementation of gpu.Device. It runs the same
// programs as the OpenGL backend as Go functions over float buffers, which
// makes headless rendering and pixel-exact tests possible without a GPU.
package software

import (
	"errors"
	"fmt"
	"image"

	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/math"
	"render-pipeline/scene"
)

const (
	defaultMaxTextureSize = 4096
	defaultShadowMapSize  = 512
)

// Stats counts device work since creation or the last ResetStats.
type Stats struct {
	Clears          int
	FullscreenDraws int
	MeshDraws       int
	Triangles       int
	ShadowPasses    int
	LiveTargets     int
}

// DrawRecord describes one fullscreen or mesh draw, kept while tracing.
type DrawRecord struct {
	Program  string
	Target   *gpu.RenderTarget // nil is the display
	Inputs   map[string]*gpu.Texture
	Blending gpu.Blending
}

type Option func(*Device)

// WithMaxTextureSize sets the largest render target dimension.
func WithMaxTextureSize(n int) Option {
	return func(d *Device) { d.maxTextureSize = n }
}

func WithShadowMapSize(n int) Option {
	return func(d *Device) { d.shadowSize = n }
}

// Device renders into in-memory surfaces.
type Device struct {
	maxTextureSize int
	shadowSize     int

	display *surface
	bound   *surface
	shadow  *surface
	images  map[*scene.Texture]*surface

	lost      bool
	destroyed bool

	stats     Stats
	perTarget map[*surface]int

	tracing bool
	records []DrawRecord
}

var _ gpu.Device = (*Device)(nil)

// New creates a device whose display is width x height.
func New(width, height int, opts ...Option) (*Device, error) {
	d := &Device{
		maxTextureSize: defaultMaxTextureSize,
		shadowSize:     defaultShadowMapSize,
		images:         make(map[*scene.Texture]*surface),
		perTarget:      make(map[*surface]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("software device %dx%d: %w", width, height, gpu.ErrInvalidSize)
	}
	d.display = newSurface(width, height, gpu.FormatRGBA8, gpu.FilterLinear, true)
	d.bound = d.display
	core.Logger().Debug("software device created", "width", width, "height", height, "max_texture_size", d.maxTextureSize)
	return d, nil
}

func (d *Device) Name() string { return "software" }

func (d *Device) MaxTextureSize() int { return d.maxTextureSize }

// LoseContext simulates a lost graphics context. Every later call fails
// with gpu.ErrContextLost.
func (d *Device) LoseContext() {
	d.lost = true
	core.Logger().Warn("software device context lost")
}

func (d *Device) check() error {
	if d.lost || d.destroyed {
		return gpu.ErrContextLost
	}
	return nil
}

func (d *Device) SetOutputSize(width, height int) error {
	if err := d.check(); err != nil {
		return err
	}
	if width < 1 || height < 1 {
		return gpu.ErrInvalidSize
	}
	if width == d.display.w && height == d.display.h {
		return nil
	}
	d.display.resize(width, height, true)
	return nil
}

func (d *Device) OutputSize() (int, int) {
	return d.display.w, d.display.h
}

func (d *Device) CreateTarget(rt *gpu.RenderTarget) error {
	if err := d.check(); err != nil {
		return err
	}
	s := newSurface(rt.Width, rt.Height, rt.Options.Format, rt.Options.Filter, rt.Options.Depth)
	s.rt = rt
	rt.Handle = s
	d.stats.LiveTargets++
	return nil
}

func (d *Device) ResizeTarget(rt *gpu.RenderTarget, width, height int) error {
	if err := d.check(); err != nil {
		return err
	}
	s, ok := rt.Handle.(*surface)
	if !ok {
		return gpu.ErrDisposed
	}
	s.resize(width, height, rt.Options.Depth)
	return nil
}

func (d *Device) DestroyTarget(rt *gpu.RenderTarget) {
	s, ok := rt.Handle.(*surface)
	if !ok {
		return
	}
	if d.bound == s {
		d.bound = d.display
	}
	delete(d.perTarget, s)
	s.rt = nil
	d.stats.LiveTargets--
}

func (d *Device) CompileProgram(p *gpu.Program) error {
	if err := d.check(); err != nil {
		return err
	}
	prog, err := compile(p)
	if err != nil {
		return err
	}
	p.Handle = prog
	return nil
}

func (d *Device) DestroyProgram(p *gpu.Program) {
	p.Handle = nil
}

func (d *Device) BindTarget(rt *gpu.RenderTarget) error {
	if err := d.check(); err != nil {
		return err
	}
	if rt == nil {
		d.bound = d.display
		return nil
	}
	s, ok := rt.Handle.(*surface)
	if !ok {
		return gpu.ErrDisposed
	}
	d.bound = s
	return nil
}

func (d *Device) Clear(value core.ClearValue, color, depth bool) error {
	if err := d.check(); err != nil {
		return err
	}
	d.bound.clear(value.Color.Vec4(), value.Depth, color, depth)
	d.stats.Clears++
	return nil
}

func programOf(m *gpu.Material) (*program, error) {
	if m == nil || m.Program == nil {
		return nil, errors.New("software: material has no program")
	}
	prog, ok := m.Program.Handle.(*program)
	if !ok {
		return nil, fmt.Errorf("software: program %s: %w", m.Program.Name, gpu.ErrDisposed)
	}
	return prog, nil
}

func (d *Device) DrawFullscreen(m *gpu.Material) error {
	if err := d.check(); err != nil {
		return err
	}
	prog, err := programOf(m)
	if err != nil {
		return err
	}
	if prog.fullscreen == nil {
		return fmt.Errorf("software: %s is not a fullscreen program", m.Program.Name)
	}

	dst := d.bound
	// Inputs are read from the state before the draw, so a pass may not
	// sample its own target.
	for _, t := range d.inputs(m) {
		if d.textureSurface(t) == dst {
			return fmt.Errorf("software: %s samples its own target", m.Program.Name)
		}
	}

	fw, fh := float32(dst.w), float32(dst.h)
	for y := 0; y < dst.h; y++ {
		for x := 0; x < dst.w; x++ {
			uv := math.Vec2{X: (float32(x) + 0.5) / fw, Y: (float32(y) + 0.5) / fh}
			dst.write(x, y, prog.fullscreen(d, prog, m, uv), m.Blending)
		}
	}
	d.stats.FullscreenDraws++
	d.perTarget[dst]++
	d.record(m, dst)
	return nil
}

func (d *Device) DrawMesh(dc *gpu.DrawCall) error {
	if err := d.check(); err != nil {
		return err
	}
	if dc == nil || dc.Mesh == nil {
		return errors.New("software: draw call without mesh")
	}

	var (
		prog       *program
		blending   = gpu.NoBlending
		depthTest  = true
		depthWrite = true
	)
	if dc.Material != nil {
		p, err := programOf(dc.Material)
		if err != nil {
			return err
		}
		if p.surface == nil {
			return fmt.Errorf("software: %s is not a mesh program", dc.Material.Program.Name)
		}
		prog = p
		blending = dc.Material.Blending
		depthTest = dc.Material.DepthTest
		depthWrite = dc.Material.DepthWrite
	} else if mat := dc.Mesh.Material; mat != nil && mat.Albedo.A < 1 {
		blending = gpu.NormalBlending
	}

	dst := d.bound
	modelView := dc.Model.Mul(dc.View)
	mvp := modelView.Mul(dc.Projection)
	normalMatrix := math.NormalMatrix(dc.Model)

	frag := func(x, y int, z float32, v varyings) {
		i := y*dst.w + x
		if depthTest && dst.depth != nil && z >= dst.depth[i] {
			return
		}
		in := fragmentInput{
			x:         x,
			y:         y,
			local:     v.local,
			world:     dc.Model.MulVec3(v.local),
			normal:    normalMatrix.MulVec3(v.normal).Normalize(),
			uv:        v.uv,
			color:     v.color,
			viewDepth: -v.local.ToVec4(1).MulMat(modelView).Z,
		}
		var c math.Vec4
		if prog != nil {
			c = prog.surface(d, dc.Material, dc, &in)
		} else {
			c = d.shadePhong(dc, &in)
		}
		dst.write(x, y, c, blending)
		if depthWrite && dst.depth != nil {
			dst.depth[i] = z
		}
	}

	mesh := dc.Mesh
	n := mesh.TriangleCount()
	for t := 0; t < n; t++ {
		ia, ib, ic := mesh.Triangle(t)
		if int(max(ia, ib, ic)) >= len(mesh.Vertices) {
			continue
		}
		var tri [3]clipVertex
		for k, idx := range [3]uint32{ia, ib, ic} {
			vert := mesh.Vertices[idx]
			tri[k] = clipVertex{
				pos: vert.Position.ToVec4(1).MulMat(mvp),
				vary: varyings{
					local:  vert.Position,
					normal: vert.Normal,
					uv:     vert.UV,
					color:  vertexColor(vert.Color),
				},
			}
		}
		rasterTriangle(tri, dst.w, dst.h, frag)
	}

	d.stats.MeshDraws++
	d.stats.Triangles += n
	d.perTarget[dst]++
	if dc.Material != nil {
		d.record(dc.Material, dst)
	} else {
		d.record(nil, dst)
	}
	return nil
}

// vertexColor treats an unset vertex colour as white.
func vertexColor(c core.Color) math.Vec4 {
	if c == (core.Color{}) {
		return math.Vec4{X: 1, Y: 1, Z: 1, W: 1}
	}
	return c.Vec4()
}

func (d *Device) RenderShadowMap(casters []gpu.ShadowCaster, lightViewProj math.Mat4) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.shadow == nil {
		d.shadow = newSurface(d.shadowSize, d.shadowSize, gpu.FormatRGBA16F, gpu.FilterNearest, true)
	}
	sm := d.shadow
	sm.clear(math.Vec4{}, 1, false, true)

	for _, c := range casters {
		if c.Mesh == nil {
			continue
		}
		mvp := c.Model.Mul(lightViewProj)
		for t := 0; t < c.Mesh.TriangleCount(); t++ {
			ia, ib, ic := c.Mesh.Triangle(t)
			if int(max(ia, ib, ic)) >= len(c.Mesh.Vertices) {
				continue
			}
			var tri [3]clipVertex
			for k, idx := range [3]uint32{ia, ib, ic} {
				tri[k] = clipVertex{pos: c.Mesh.Vertices[idx].Position.ToVec4(1).MulMat(mvp)}
			}
			rasterTriangle(tri, sm.w, sm.h, func(x, y int, z float32, _ varyings) {
				if i := y*sm.w + x; z < sm.depth[i] {
					sm.depth[i] = z
				}
			})
		}
	}
	d.stats.ShadowPasses++
	return nil
}

// Destroy releases every surface. The device is unusable afterwards.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.shadow = nil
	d.images = nil
	d.perTarget = nil
	d.records = nil
	core.Logger().Debug("software device destroyed")
}

func (d *Device) textureSurface(t *gpu.Texture) *surface {
	if t == nil || t.Target() == nil {
		return nil
	}
	s, _ := t.Target().Handle.(*surface)
	return s
}

// inputs returns the render-target textures bound on m.
func (d *Device) inputs(m *gpu.Material) map[string]*gpu.Texture {
	if m == nil {
		return nil
	}
	out := make(map[string]*gpu.Texture)
	for name := range m.Uniforms {
		if t := m.Texture(name); t != nil {
			out[name] = t
		}
	}
	return out
}

func (d *Device) record(m *gpu.Material, dst *surface) {
	if !d.tracing {
		return
	}
	rec := DrawRecord{Target: dst.rt, Program: "phong"}
	if m != nil {
		rec.Program = m.Program.Name
		rec.Inputs = d.inputs(m)
		rec.Blending = m.Blending
	}
	d.records = append(d.records, rec)
}

// Trace turns draw recording on or off. Turning it on discards old records.
func (d *Device) Trace(on bool) {
	d.tracing = on
	if on {
		d.records = nil
	}
}

// Records returns the draws recorded since tracing started.
func (d *Device) Records() []DrawRecord {
	return d.records
}

func (d *Device) Stats() Stats { return d.stats }

func (d *Device) ResetStats() {
	live := d.stats.LiveTargets
	d.stats = Stats{LiveTargets: live}
	clear(d.perTarget)
}

// DrawCount returns the number of draws that landed in rt; nil is the
// display.
func (d *Device) DrawCount(rt *gpu.RenderTarget) int {
	s := d.display
	if rt != nil {
		var ok bool
		if s, ok = rt.Handle.(*surface); !ok {
			return 0
		}
	}
	return d.perTarget[s]
}

// Display returns a top-down copy of the display.
func (d *Device) Display() *image.RGBA {
	return d.display.image()
}

// TargetImage returns a top-down copy of rt's colour buffer, or nil when rt
// has been disposed.
func (d *Device) TargetImage(rt *gpu.RenderTarget) *image.RGBA {
	if rt == nil {
		return d.Display()
	}
	s, ok := rt.Handle.(*surface)
	if !ok {
		return nil
	}
	return s.image()
}

// Pixel reads one texel of rt (nil for the display) in GL orientation,
// row 0 at the bottom.
func (d *Device) Pixel(rt *gpu.RenderTarget, x, y int) math.Vec4 {
	s := d.display
	if rt != nil {
		var ok bool
		if s, ok = rt.Handle.(*surface); !ok {
			return math.Vec4{}
		}
	}
	return s.texel(x, y)
}
