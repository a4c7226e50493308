package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/gpu"
	"render-pipeline/math"
)

// shadowMap wraps a depth-only framebuffer used for shadow mapping.
type shadowMap struct {
	fbo      uint32
	depthTex uint32
	size     int32
}

// newShadowMap creates a size×size 32-bit float depth texture with hardware
// comparison enabled, so sampler2DShadow lookups return 0 or 1.
func newShadowMap(size int) (*shadowMap, error) {
	sm := &shadowMap{size: int32(size)}

	gl.GenTextures(1, &sm.depthTex)
	gl.BindTexture(gl.TEXTURE_2D, sm.depthTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.DEPTH_COMPONENT32F,
		int32(size), int32(size), 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
	// outside the map counts as lit
	border := [4]float32{1, 1, 1, 1}
	gl.TexParameterfv(gl.TEXTURE_2D, gl.TEXTURE_BORDER_COLOR, &border[0])
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)

	gl.GenFramebuffers(1, &sm.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, sm.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, sm.depthTex, 0)
	gl.DrawBuffer(gl.NONE)
	gl.ReadBuffer(gl.NONE)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		sm.destroy()
		return nil, fmt.Errorf("opengl: shadow framebuffer incomplete (0x%X)", status)
	}
	return sm, nil
}

func (sm *shadowMap) destroy() {
	if sm.fbo != 0 {
		gl.DeleteFramebuffers(1, &sm.fbo)
		sm.fbo = 0
	}
	if sm.depthTex != 0 {
		gl.DeleteTextures(1, &sm.depthTex)
		sm.depthTex = 0
	}
}

func (d *Device) RenderShadowMap(casters []gpu.ShadowCaster, lightViewProj math.Mat4) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.shadow == nil {
		sm, err := newShadowMap(d.shadowSize)
		if err != nil {
			return err
		}
		d.shadow = sm
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, d.shadow.fbo)
	gl.Viewport(0, 0, d.shadow.size, d.shadow.size)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)
	gl.Clear(gl.DEPTH_BUFFER_BIT)
	// front-face culling reduces acne on closed casters
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.FRONT)

	gl.UseProgram(d.depthProg.id)
	loc := d.depthProg.location("uLightMVP")
	for _, c := range casters {
		if c.Mesh == nil {
			continue
		}
		m := d.ensureUploaded(c.Mesh)
		if m == nil {
			continue
		}
		setMat4(loc, c.Model.Mul(lightViewProj))
		m.draw()
	}

	gl.CullFace(gl.BACK)
	gl.Disable(gl.CULL_FACE)
	d.restoreBinding()
	return glError("shadow pass")
}
