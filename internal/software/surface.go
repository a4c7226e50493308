package software

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"

	"render-pipeline/gpu"
	"render-pipeline/math"
)

// surface is a colour buffer with optional depth. Row 0 is the bottom row,
// matching GL texture coordinates.
type surface struct {
	w, h   int
	color  []math.Vec4
	depth  []float32
	format gpu.Format
	filter gpu.Filter

	// rt is the render target the surface backs; nil for the display, the
	// shadow map and uploaded images.
	rt *gpu.RenderTarget
}

func newSurface(w, h int, format gpu.Format, filter gpu.Filter, depth bool) *surface {
	s := &surface{format: format, filter: filter}
	s.resize(w, h, depth)
	return s
}

func (s *surface) resize(w, h int, depth bool) {
	s.w, s.h = w, h
	s.color = make([]math.Vec4, w*h)
	s.depth = nil
	if depth {
		s.depth = make([]float32, w*h)
		for i := range s.depth {
			s.depth[i] = 1
		}
	}
}

func (s *surface) clear(c math.Vec4, d float32, color, depth bool) {
	if color {
		c = s.store(c)
		for i := range s.color {
			s.color[i] = c
		}
	}
	if depth && s.depth != nil {
		for i := range s.depth {
			s.depth[i] = d
		}
	}
}

// store applies the storage precision of the surface format.
func (s *surface) store(c math.Vec4) math.Vec4 {
	if s.format != gpu.FormatRGBA8 {
		return c
	}
	return math.Vec4{X: quantize(c.X), Y: quantize(c.Y), Z: quantize(c.Z), W: quantize(c.W)}
}

func quantize(v float32) float32 {
	return math32.Round(clamp01(v)*255) / 255
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (s *surface) write(x, y int, src math.Vec4, blending gpu.Blending) {
	i := y*s.w + x
	dst := s.color[i]
	var out math.Vec4
	switch blending {
	case gpu.NormalBlending:
		a := src.W
		out = math.Vec4{
			X: src.X*a + dst.X*(1-a),
			Y: src.Y*a + dst.Y*(1-a),
			Z: src.Z*a + dst.Z*(1-a),
			W: src.W*a + dst.W*(1-a),
		}
	case gpu.AdditiveBlending:
		a := src.W
		out = math.Vec4{
			X: src.X*a + dst.X,
			Y: src.Y*a + dst.Y,
			Z: src.Z*a + dst.Z,
			W: src.W*a + dst.W,
		}
	default:
		out = src
	}
	s.color[i] = s.store(out)
}

func (s *surface) texel(x, y int) math.Vec4 {
	if x < 0 {
		x = 0
	} else if x >= s.w {
		x = s.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= s.h {
		y = s.h - 1
	}
	return s.color[y*s.w+x]
}

// sample reads the surface at uv with clamp-to-edge addressing.
func (s *surface) sample(uv math.Vec2) math.Vec4 {
	if s.w == 0 || s.h == 0 {
		return math.Vec4{}
	}
	fx := uv.X*float32(s.w) - 0.5
	fy := uv.Y*float32(s.h) - 0.5
	if s.filter == gpu.FilterNearest {
		return s.texel(int(math32.Floor(fx+0.5)), int(math32.Floor(fy+0.5)))
	}
	x0 := math32.Floor(fx)
	y0 := math32.Floor(fy)
	tx := fx - x0
	ty := fy - y0
	ix, iy := int(x0), int(y0)

	a := s.texel(ix, iy)
	b := s.texel(ix+1, iy)
	c := s.texel(ix, iy+1)
	d := s.texel(ix+1, iy+1)
	return mix4(mix4(a, b, tx), mix4(c, d, tx), ty)
}

// image converts the surface to a top-down 8-bit image.
func (s *surface) image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	for y := 0; y < s.h; y++ {
		row := s.h - 1 - y
		for x := 0; x < s.w; x++ {
			c := s.color[y*s.w+x]
			img.SetRGBA(x, row, color.RGBA{
				R: to8(c.X),
				G: to8(c.Y),
				B: to8(c.Z),
				A: to8(c.W),
			})
		}
	}
	return img
}

func to8(v float32) uint8 {
	return uint8(math32.Round(clamp01(v) * 255))
}

// surfaceFromPixels uploads top-down RGBA8 pixels.
func surfaceFromPixels(w, h int, pix []byte) *surface {
	s := newSurface(w, h, gpu.FormatRGBA8, gpu.FilterLinear, false)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := (y*w + x) * 4
			if o+3 >= len(pix) {
				continue
			}
			s.color[y*w+x] = math.Vec4{
				X: float32(pix[o]) / 255,
				Y: float32(pix[o+1]) / 255,
				Z: float32(pix[o+2]) / 255,
				W: float32(pix[o+3]) / 255,
			}
		}
	}
	return s
}

func mix4(a, b math.Vec4, t float32) math.Vec4 {
	return math.Vec4{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
		W: a.W + (b.W-a.W)*t,
	}
}

func mul4(a, b math.Vec4) math.Vec4 {
	return math.Vec4{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z, W: a.W * b.W}
}
