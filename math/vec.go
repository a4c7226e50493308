package math

import "github.com/chewxy/math32"

// Vec2 is used for UVs, resolutions and blur directions.
type Vec2 struct{ X, Y float32 }

// Vec3 is a point, direction or linear RGB triple.
type Vec3 struct{ X, Y, Z float32 }

// Vec4 is a homogeneous point or a packed plane.
type Vec4 struct{ X, Y, Z, W float32 }

var (
	Vec3Zero  = Vec3{}
	Vec3One   = Vec3{1, 1, 1}
	Vec3Up    = Vec3{Y: 1}
	Vec3Down  = Vec3{Y: -1}
	Vec3Right = Vec3{X: 1}
	Vec3Left  = Vec3{X: -1}
	Vec3Front = Vec3{Z: 1}
	Vec3Back  = Vec3{Z: -1}
)

func NewVec2(x, y float32) Vec2       { return Vec2{x, y} }
func NewVec3(x, y, z float32) Vec3    { return Vec3{x, y, z} }
func NewVec4(x, y, z, w float32) Vec4 { return Vec4{x, y, z, w} }

func (a Vec2) Add(b Vec2) Vec2             { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2             { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Mul(s float32) Vec2          { return Vec2{a.X * s, a.Y * s} }
func (a Vec2) MulVec(b Vec2) Vec2          { return Vec2{a.X * b.X, a.Y * b.Y} }
func (a Vec2) Dot(b Vec2) float32          { return a.X*b.X + a.Y*b.Y }
func (a Vec2) Length() float32             { return math32.Hypot(a.X, a.Y) }
func (a Vec2) Lerp(b Vec2, t float32) Vec2 { return a.Add(b.Sub(a).Mul(t)) }

func (a Vec2) Normalize() Vec2 {
	if l := a.Length(); l > 0 {
		return a.Mul(1 / l)
	}
	return a
}

func (a Vec3) Add(b Vec3) Vec3             { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3             { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Mul(s float32) Vec3          { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) MulVec(b Vec3) Vec3          { return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }
func (a Vec3) Negate() Vec3                { return Vec3{-a.X, -a.Y, -a.Z} }
func (a Vec3) Dot(b Vec3) float32          { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) LengthSqr() float32          { return a.Dot(a) }
func (a Vec3) Length() float32             { return math32.Sqrt(a.Dot(a)) }
func (a Vec3) Lerp(b Vec3, t float32) Vec3 { return a.Add(b.Sub(a).Mul(t)) }
func (a Vec3) ToVec4(w float32) Vec4       { return Vec4{a.X, a.Y, a.Z, w} }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Normalize returns a unit vector. The zero vector is returned unchanged.
func (a Vec3) Normalize() Vec3 {
	if l := a.Length(); l > 0 {
		return a.Mul(1 / l)
	}
	return a
}

// Reflect mirrors a across the plane orthogonal to the unit vector n.
func (a Vec3) Reflect(n Vec3) Vec3 { return a.Sub(n.Mul(2 * a.Dot(n))) }

// TransformDirection applies the rotation and scale part of m, then
// normalizes.
func (a Vec3) TransformDirection(m Mat4) Vec3 {
	return a.ToVec4(0).MulMat(m).ToVec3().Normalize()
}

// Vec3Min and Vec3Max are component-wise.
func Vec3Min(a, b Vec3) Vec3 {
	return Vec3{math32.Min(a.X, b.X), math32.Min(a.Y, b.Y), math32.Min(a.Z, b.Z)}
}

func Vec3Max(a, b Vec3) Vec3 {
	return Vec3{math32.Max(a.X, b.X), math32.Max(a.Y, b.Y), math32.Max(a.Z, b.Z)}
}

func (a Vec4) Add(b Vec4) Vec4    { return Vec4{a.X + b.X, a.Y + b.Y, a.Z + b.Z, a.W + b.W} }
func (a Vec4) Sub(b Vec4) Vec4    { return Vec4{a.X - b.X, a.Y - b.Y, a.Z - b.Z, a.W - b.W} }
func (a Vec4) Mul(s float32) Vec4 { return Vec4{a.X * s, a.Y * s, a.Z * s, a.W * s} }
func (a Vec4) Dot(b Vec4) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W }
func (a Vec4) ToVec3() Vec3       { return Vec3{a.X, a.Y, a.Z} }

// MulMat returns the row vector a times m.
func (a Vec4) MulMat(m Mat4) Vec4 {
	var r [4]float32
	for j := range 4 {
		r[j] = a.X*m[0][j] + a.Y*m[1][j] + a.Z*m[2][j] + a.W*m[3][j]
	}
	return Vec4{r[0], r[1], r[2], r[3]}
}

// ToVec3DivW performs the perspective divide. W == 0 is passed through.
func (a Vec4) ToVec3DivW() Vec3 {
	if a.W == 0 {
		return a.ToVec3()
	}
	return a.ToVec3().Mul(1 / a.W)
}
