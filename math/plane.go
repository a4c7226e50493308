package math

// Plane is the set of points p with Normal·p + D = 0.
type Plane struct {
	Normal Vec3
	D      float32
}

// PlaneFromNormalAndCoplanarPoint builds a plane through point. normal must
// be unit length.
func PlaneFromNormalAndCoplanarPoint(normal, point Vec3) Plane {
	return Plane{Normal: normal, D: -point.Dot(normal)}
}

// DistanceTo returns the signed distance from pt to the plane. Positive is
// the side the normal points to.
func (p Plane) DistanceTo(pt Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// CoplanarPoint returns the point of the plane closest to the origin.
func (p Plane) CoplanarPoint() Vec3 {
	return p.Normal.Mul(-p.D)
}

// ApplyMat4 transforms the plane by m.
func (p Plane) ApplyMat4(m Mat4) Plane {
	ref := m.MulVec3(p.CoplanarPoint())
	normal := NormalMatrix(m).MulVec3(p.Normal).Normalize()
	return Plane{Normal: normal, D: -ref.Dot(normal)}
}

// Vec4 packs the plane as (nx, ny, nz, d).
func (p Plane) Vec4() Vec4 {
	return Vec4{X: p.Normal.X, Y: p.Normal.Y, Z: p.Normal.Z, W: p.D}
}
