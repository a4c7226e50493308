package scene

import "render-pipeline/math"

// Frustum holds the six clip planes of a view frustum.
type Frustum struct {
	Planes [6]math.Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumFromVP extracts the six frustum planes from a view-projection matrix
// (view followed by projection). The planes are normalized so DistanceTo
// returns a true distance in world units.
//
// Points are row vectors, so clip component j is the dot product of the
// point with column j of vp; Gribb/Hartmann works on those columns.
func FrustumFromVP(vp math.Mat4) Frustum {
	col := func(j int) math.Vec4 {
		return math.Vec4{X: vp[0][j], Y: vp[1][j], Z: vp[2][j], W: vp[3][j]}
	}
	r0, r1, r2, r3 := col(0), col(1), col(2), col(3)

	var f Frustum
	f.Planes[0] = normalizePlane(r3.Add(r0)) // left
	f.Planes[1] = normalizePlane(r3.Sub(r0)) // right
	f.Planes[2] = normalizePlane(r3.Add(r1)) // bottom
	f.Planes[3] = normalizePlane(r3.Sub(r1)) // top
	f.Planes[4] = normalizePlane(r3.Add(r2)) // near
	f.Planes[5] = normalizePlane(r3.Sub(r2)) // far
	return f
}

func normalizePlane(v math.Vec4) math.Plane {
	l := v.ToVec3().Length()
	if l == 0 {
		return math.Plane{}
	}
	return math.Plane{Normal: v.ToVec3().Mul(1 / l), D: v.W / l}
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max math.Vec3
}

// Corner returns corner i; bit 0 selects Max.X, bit 1 Max.Y, bit 2 Max.Z.
func (box AABB) Corner(i int) math.Vec3 {
	c := box.Min
	if i&1 != 0 {
		c.X = box.Max.X
	}
	if i&2 != 0 {
		c.Y = box.Max.Y
	}
	if i&4 != 0 {
		c.Z = box.Max.Z
	}
	return c
}

// Extend grows box to contain p.
func (box AABB) Extend(p math.Vec3) AABB {
	return AABB{Min: math.Vec3Min(box.Min, p), Max: math.Vec3Max(box.Max, p)}
}

// IntersectsFrustum reports false only when box lies entirely behind one
// of the planes, tested with the corner furthest along that plane's normal.
// Boxes straddling a frustum corner can pass.
func (box AABB) IntersectsFrustum(f *Frustum) bool {
	for _, p := range f.Planes {
		i := 0
		if p.Normal.X >= 0 {
			i |= 1
		}
		if p.Normal.Y >= 0 {
			i |= 2
		}
		if p.Normal.Z >= 0 {
			i |= 4
		}
		if p.DistanceTo(box.Corner(i)) < 0 {
			return false
		}
	}
	return true
}

// ComputeAABB returns the world-space bounds of mesh under worldMatrix,
// from the cached local box when there is one.
func ComputeAABB(mesh *Mesh, worldMatrix math.Mat4) AABB {
	var points func(yield func(math.Vec3) bool)
	switch {
	case mesh.HasLocalAABB:
		points = func(yield func(math.Vec3) bool) {
			for i := range 8 {
				if !yield(mesh.LocalAABB.Corner(i)) {
					return
				}
			}
		}
	case len(mesh.Vertices) > 0:
		points = func(yield func(math.Vec3) bool) {
			for _, v := range mesh.Vertices {
				if !yield(v.Position) {
					return
				}
			}
		}
	default:
		return AABB{}
	}

	var out AABB
	first := true
	for p := range points {
		wp := worldMatrix.MulVec3(p)
		if first {
			out, first = AABB{Min: wp, Max: wp}, false
			continue
		}
		out = out.Extend(wp)
	}
	return out
}
