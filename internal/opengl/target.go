package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/gpu"
)

// textureMaxAnisotropy is GL_TEXTURE_MAX_ANISOTROPY; core 4.1 headers
// lack it but every desktop driver exposes the extension.
const textureMaxAnisotropy = 0x84FE

// glTarget is the storage behind gpu.RenderTarget.Handle.
type glTarget struct {
	fbo      uint32
	colorTex uint32
	depthRB  uint32
}

func (d *Device) CreateTarget(rt *gpu.RenderTarget) error {
	if err := d.check(); err != nil {
		return err
	}
	t, err := allocTarget(rt.Width, rt.Height, rt.Options)
	if err != nil {
		return err
	}
	rt.Handle = t
	return nil
}

func (d *Device) ResizeTarget(rt *gpu.RenderTarget, width, height int) error {
	if err := d.check(); err != nil {
		return err
	}
	old, ok := rt.Handle.(*glTarget)
	if !ok {
		return gpu.ErrDisposed
	}
	t, err := allocTarget(width, height, rt.Options)
	if err != nil {
		return err
	}
	old.free()
	rt.Handle = t
	if d.bound == rt {
		return d.bind(rt, width, height)
	}
	return nil
}

func (d *Device) DestroyTarget(rt *gpu.RenderTarget) {
	t, ok := rt.Handle.(*glTarget)
	if !ok {
		return
	}
	if d.bound == rt {
		d.bound = nil
		if !d.destroyed {
			gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
			gl.Viewport(0, 0, int32(d.width), int32(d.height))
		}
	}
	if !d.destroyed {
		t.free()
	}
}

func allocTarget(width, height int, opts gpu.TargetOptions) (*glTarget, error) {
	t := &glTarget{}

	internal, typ := int32(gl.RGBA8), uint32(gl.UNSIGNED_BYTE)
	if opts.Format == gpu.FormatRGBA16F {
		internal, typ = gl.RGBA16F, gl.HALF_FLOAT
	}
	filter := int32(gl.LINEAR)
	if opts.Filter == gpu.FilterNearest {
		filter = gl.NEAREST
	}

	gl.GenTextures(1, &t.colorTex)
	gl.BindTexture(gl.TEXTURE_2D, t.colorTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(width), int32(height), 0, gl.RGBA, typ, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	if opts.Anisotropy > 1 {
		gl.TexParameterf(gl.TEXTURE_2D, textureMaxAnisotropy, float32(opts.Anisotropy))
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenFramebuffers(1, &t.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.colorTex, 0)

	if opts.Depth {
		gl.GenRenderbuffers(1, &t.depthRB)
		gl.BindRenderbuffer(gl.RENDERBUFFER, t.depthRB)
		gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, int32(width), int32(height))
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, t.depthRB)
		gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
	}

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		t.free()
		return nil, fmt.Errorf("opengl: framebuffer %dx%d %s incomplete (0x%X)", width, height, opts.Format, status)
	}
	if err := glError("allocate target"); err != nil {
		t.free()
		return nil, err
	}
	return t, nil
}

func (t *glTarget) free() {
	if t.fbo != 0 {
		gl.DeleteFramebuffers(1, &t.fbo)
		t.fbo = 0
	}
	if t.colorTex != 0 {
		gl.DeleteTextures(1, &t.colorTex)
		t.colorTex = 0
	}
	if t.depthRB != 0 {
		gl.DeleteRenderbuffers(1, &t.depthRB)
		t.depthRB = 0
	}
}
