// Package gpu holds the backend-neutral resource model shared by the frame
// driver, the post-processing pipeline and reflectors: render targets,
// programs, materials with shared uniform cells, and the Device interface
// that the OpenGL and software backends implement.
package gpu

import (
	"render-pipeline/core"
	"render-pipeline/math"
	"render-pipeline/scene"
)

// Device is a graphics backend. All methods must be called from the
// goroutine that owns the context.
type Device interface {
	Name() string

	// MaxTextureSize is the largest width or height a render target may have.
	MaxTextureSize() int

	// SetOutputSize resizes the display surface (the nil target).
	SetOutputSize(width, height int) error
	OutputSize() (width, height int)

	CreateTarget(rt *RenderTarget) error
	// ResizeTarget reallocates storage in place; rt.Texture stays valid.
	ResizeTarget(rt *RenderTarget, width, height int) error
	DestroyTarget(rt *RenderTarget)

	CompileProgram(p *Program) error
	DestroyProgram(p *Program)

	// BindTarget selects where draws land; nil is the display.
	BindTarget(rt *RenderTarget) error
	Clear(value core.ClearValue, color, depth bool) error

	// DrawFullscreen runs m's program over every pixel of the bound target
	// with m.Blending applied.
	DrawFullscreen(m *Material) error
	DrawMesh(dc *DrawCall) error

	// RenderShadowMap renders depth from the light's point of view for use
	// by later DrawMesh calls with Environment.Shadows set.
	RenderShadowMap(casters []ShadowCaster, lightViewProj math.Mat4) error

	Destroy()
}

// Environment carries the per-frame lighting state for scene draws.
type Environment struct {
	Lights        []*scene.Light
	Ambient       core.Color
	Fog           *scene.Fog
	LightViewProj math.Mat4
	Shadows       bool
}

// DrawCall is one mesh draw into the bound target.
type DrawCall struct {
	Mesh           *scene.Mesh
	Model          math.Mat4
	View           math.Mat4
	Projection     math.Mat4
	CameraPosition math.Vec3
	Env            *Environment

	// Material overrides the mesh's Phong material when set.
	Material *Material
}

// ShadowCaster is a mesh drawn into the shadow map.
type ShadowCaster struct {
	Mesh  *scene.Mesh
	Model math.Mat4
}

// ValidateSize checks a target size against the device limit.
func ValidateSize(d Device, width, height int) error {
	if width < 1 || height < 1 {
		return ErrInvalidSize
	}
	if max := d.MaxTextureSize(); width > max || height > max {
		return ErrTargetTooLarge
	}
	return nil
}
