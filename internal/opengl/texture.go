package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/gpu"
	"render-pipeline/scene"
)

// textureID resolves a sampler uniform value to a GL texture name. Scene
// textures are uploaded on first use.
func (d *Device) textureID(v any) (uint32, error) {
	switch t := v.(type) {
	case *gpu.Texture:
		rt := t.Target()
		if rt == d.bound && rt != nil {
			return 0, fmt.Errorf("opengl: pass samples its own target")
		}
		gt, ok := rt.Handle.(*glTarget)
		if !ok {
			return 0, gpu.ErrDisposed
		}
		return gt.colorTex, nil
	case *scene.Texture:
		return d.uploadTexture(t)
	}
	return 0, fmt.Errorf("opengl: %T is not a texture", v)
}

// uploadTexture copies a scene texture to the GPU once. Pixel rows are
// stored top row first, so v = 0 samples the top of the image.
func (d *Device) uploadTexture(tex *scene.Texture) (uint32, error) {
	if id, ok := d.images[tex]; ok {
		return id, nil
	}
	if len(tex.Pixels) < tex.Width*tex.Height*4 || tex.Width == 0 {
		return 0, fmt.Errorf("opengl: texture %q has no pixel data", tex.Name)
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)

	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8,
		int32(tex.Width), int32(tex.Height), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(tex.Pixels))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	d.images[tex] = id
	return id, nil
}

// ReleaseTexture frees the GPU copy of tex, if any.
func (d *Device) ReleaseTexture(tex *scene.Texture) {
	id, ok := d.images[tex]
	if !ok {
		return
	}
	gl.DeleteTextures(1, &id)
	delete(d.images, tex)
}
