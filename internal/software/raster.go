package software

import (
	"github.com/chewxy/math32"

	"render-pipeline/math"
)

// varyings are interpolated across a triangle.
type varyings struct {
	local  math.Vec3
	normal math.Vec3
	uv     math.Vec2
	color  math.Vec4
}

func lerpVaryings(a, b varyings, t float32) varyings {
	return varyings{
		local:  a.local.Lerp(b.local, t),
		normal: a.normal.Lerp(b.normal, t),
		uv:     a.uv.Lerp(b.uv, t),
		color:  mix4(a.color, b.color, t),
	}
}

type clipVertex struct {
	pos  math.Vec4
	vary varyings
}

const minW = 1e-5

// clipPolygon keeps the part of poly where dist >= 0.
func clipPolygon(poly []clipVertex, dist func(math.Vec4) float32) []clipVertex {
	if len(poly) == 0 {
		return nil
	}
	out := make([]clipVertex, 0, len(poly)+2)
	prev := poly[len(poly)-1]
	prevD := dist(prev.pos)
	for _, cur := range poly {
		curD := dist(cur.pos)
		if curD >= 0 {
			if prevD < 0 {
				out = append(out, intersect(prev, cur, prevD, curD))
			}
			out = append(out, cur)
		} else if prevD >= 0 {
			out = append(out, intersect(prev, cur, prevD, curD))
		}
		prev, prevD = cur, curD
	}
	return out
}

func intersect(a, b clipVertex, da, db float32) clipVertex {
	t := da / (da - db)
	return clipVertex{
		pos:  mix4(a.pos, b.pos, t),
		vary: lerpVaryings(a.vary, b.vary, t),
	}
}

// Near plane in GL clip space is z >= -w. For an oblique projection this
// is the user clip plane.
func nearDist(p math.Vec4) float32 { return p.Z + p.W }
func wDist(p math.Vec4) float32    { return p.W - minW }

type screenVertex struct {
	x, y, z float32
	invW    float32
	vary    varyings
}

// fragmentFunc receives pixel coordinates, window depth in [0,1] and the
// perspective-correct varyings.
type fragmentFunc func(x, y int, depth float32, v varyings)

// rasterTriangle clips a triangle and scan-converts it into a w x h grid.
// Both windings are drawn.
func rasterTriangle(tri [3]clipVertex, w, h int, frag fragmentFunc) {
	poly := clipPolygon(tri[:], nearDist)
	poly = clipPolygon(poly, wDist)
	if len(poly) < 3 {
		return
	}

	sv := make([]screenVertex, len(poly))
	for i, v := range poly {
		inv := 1 / v.pos.W
		sv[i] = screenVertex{
			x:    (v.pos.X*inv*0.5 + 0.5) * float32(w),
			y:    (v.pos.Y*inv*0.5 + 0.5) * float32(h),
			z:    v.pos.Z*inv*0.5 + 0.5,
			invW: inv,
			vary: v.vary,
		}
	}
	for i := 1; i+1 < len(sv); i++ {
		fillTriangle(sv[0], sv[i], sv[i+1], w, h, frag)
	}
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func fillTriangle(a, b, c screenVertex, w, h int, frag fragmentFunc) {
	area := edge(a.x, a.y, b.x, b.y, c.x, c.y)
	if area == 0 {
		return
	}

	minX := int(math32.Floor(min(a.x, b.x, c.x)))
	maxX := int(math32.Ceil(max(a.x, b.x, c.x)))
	minY := int(math32.Floor(min(a.y, b.y, c.y)))
	maxY := int(math32.Ceil(max(a.y, b.y, c.y)))
	minX = max(minX, 0)
	minY = max(minY, 0)
	maxX = min(maxX, w-1)
	maxY = min(maxY, h-1)

	inv := 1 / area
	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			b0 := edge(b.x, b.y, c.x, c.y, px, py) * inv
			b1 := edge(c.x, c.y, a.x, a.y, px, py) * inv
			b2 := edge(a.x, a.y, b.x, b.y, px, py) * inv
			if b0 < 0 || b1 < 0 || b2 < 0 {
				continue
			}

			z := b0*a.z + b1*b.z + b2*c.z
			if z < 0 || z > 1 {
				continue
			}

			// perspective-correct weights
			p0 := b0 * a.invW
			p1 := b1 * b.invW
			p2 := b2 * c.invW
			sum := p0 + p1 + p2
			if sum == 0 {
				continue
			}
			p0 /= sum
			p1 /= sum
			p2 /= sum

			frag(x, y, z, varyings{
				local:  a.vary.local.Mul(p0).Add(b.vary.local.Mul(p1)).Add(c.vary.local.Mul(p2)),
				normal: a.vary.normal.Mul(p0).Add(b.vary.normal.Mul(p1)).Add(c.vary.normal.Mul(p2)),
				uv:     a.vary.uv.Mul(p0).Add(b.vary.uv.Mul(p1)).Add(c.vary.uv.Mul(p2)),
				color:  a.vary.color.Mul(p0).Add(b.vary.color.Mul(p1)).Add(c.vary.color.Mul(p2)),
			})
		}
	}
}
