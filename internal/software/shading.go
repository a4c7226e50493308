package software

import (
	"github.com/chewxy/math32"

	"render-pipeline/gpu"
	"render-pipeline/math"
	"render-pipeline/scene"
)

// fragmentInput is what a mesh program sees for one pixel.
type fragmentInput struct {
	x, y      int
	local     math.Vec3
	world     math.Vec3
	normal    math.Vec3 // world space, unit length
	uv        math.Vec2
	color     math.Vec4
	viewDepth float32 // distance along the view axis
}

type surfaceFunc func(d *Device, m *gpu.Material, dc *gpu.DrawCall, in *fragmentInput) math.Vec4

func reflectorSurface(d *Device, m *gpu.Material, _ *gpu.DrawCall, in *fragmentInput) math.Vec4 {
	coord := in.local.ToVec4(1).MulMat(m.Mat4("uMatrix"))
	var reflection math.Vec4
	if coord.W != 0 {
		reflection = d.sampleTexture(m.Texture("tReflection"), math.Vec2{X: coord.X / coord.W, Y: coord.Y / coord.W})
	}

	base := math.Vec4{X: 1, Y: 1, Z: 1, W: 1}
	if m.Program.Has("USE_MAP") {
		if img := m.Image("tMap"); img != nil {
			base = d.sampleImage(img, m.Mat3("uMapTransform").MulVec2(in.uv))
		}
	}

	rgb := base.ToVec3().MulVec(reflection.ToVec3()).MulVec(m.Vec3("uColor"))

	if m.Program.Has("USE_FOG") {
		f := smoothstep(m.Float("uFogNear"), m.Float("uFogFar"), in.viewDepth)
		rgb = rgb.Lerp(m.Vec3("uFogColor"), f)
	}
	if m.Program.Has("DITHERING") {
		rgb = rgb.Add(dither(in.x, in.y))
	}
	return rgb.ToVec4(1)
}

// dither returns +-0.5/255 of ordered noise.
func dither(x, y int) math.Vec3 {
	h := uint32(x)*73856093 ^ uint32(y)*19349663
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	v := (float32(h&0xffff)/65535 - 0.5) / 255
	return math.Vec3{X: v, Y: -v, Z: v}
}

// shadePhong lights a fragment with the mesh's scene material.
func (d *Device) shadePhong(dc *gpu.DrawCall, in *fragmentInput) math.Vec4 {
	mat := dc.Mesh.Material
	if mat == nil {
		mat = scene.DefaultMaterial()
	}

	albedo := mul4(mat.Albedo.Vec4(), in.color)
	if tex := mat.AlbedoTexture; tex != nil {
		albedo = mul4(albedo, d.sampleImage(tex, tex.Matrix().MulVec2(in.uv)))
	}
	emissive := mat.Emissive.Vec3()

	env := dc.Env
	if env == nil {
		env = &gpu.Environment{}
	}

	var rgb math.Vec3
	if mat.Unlit {
		rgb = albedo.ToVec3().Add(emissive)
	} else {
		n := in.normal
		v := dc.CameraPosition.Sub(in.world).Normalize()
		base := albedo.ToVec3()
		rgb = base.MulVec(env.Ambient.Vec3())

		for _, light := range env.Lights {
			if light == nil {
				continue
			}
			var l math.Vec3
			atten := float32(1)
			switch light.Type {
			case scene.LightTypeDirectional:
				l = light.Direction.Negate().Normalize()
				if env.Shadows && light.CastShadow {
					atten = d.shadowFactor(in.world, env.LightViewProj)
				}
			case scene.LightTypePoint:
				toLight := light.Position.Sub(in.world)
				dist := toLight.Length()
				l = toLight.Normalize()
				if light.Range > 0 {
					a := clamp(1-dist/light.Range, 0, 1)
					atten = a * a
				}
			default:
				continue
			}

			diff := max(n.Dot(l), 0)
			h := l.Add(v).Normalize()
			spec := float32(0)
			if diff > 0 {
				spec = math32.Pow(max(n.Dot(h), 0), max(mat.Shininess, 1))
			}
			radiance := light.Color.Vec3().Mul(light.Intensity * atten)
			contrib := base.Mul(diff).Add(mat.Specular.Vec3().Mul(spec))
			rgb = rgb.Add(contrib.MulVec(radiance))
		}
		rgb = rgb.Add(emissive)
	}

	if env.Fog != nil {
		rgb = rgb.Lerp(env.Fog.Color.Vec3(), env.Fog.Factor(in.viewDepth))
	}
	return rgb.ToVec4(albedo.W)
}

const shadowBias = 0.002

// shadowFactor returns the lit fraction of world from a 3x3 PCF lookup.
func (d *Device) shadowFactor(world math.Vec3, lightViewProj math.Mat4) float32 {
	sm := d.shadow
	if sm == nil {
		return 1
	}
	p := world.ToVec4(1).MulMat(lightViewProj)
	if p.W == 0 {
		return 1
	}
	u := (p.X/p.W)*0.5 + 0.5
	v := (p.Y/p.W)*0.5 + 0.5
	z := (p.Z/p.W)*0.5 + 0.5
	if z > 1 {
		return 1
	}
	cx := int(u * float32(sm.w))
	cy := int(v * float32(sm.h))
	lit := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			x := min(max(cx+dx, 0), sm.w-1)
			y := min(max(cy+dy, 0), sm.h-1)
			if z-shadowBias <= sm.depth[y*sm.w+x] {
				lit++
			}
		}
	}
	return float32(lit) / 9
}

func (d *Device) sampleImage(t *scene.Texture, uv math.Vec2) math.Vec4 {
	s, ok := d.images[t]
	if !ok {
		s = surfaceFromPixels(t.Width, t.Height, t.Pixels)
		d.images[t] = s
	}
	return s.sample(uv)
}
