package math

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const tol = 1e-4

func assertVec3(t *testing.T, expected, actual Vec3) {
	t.Helper()
	assert.InDelta(t, expected.X, actual.X, tol, "X")
	assert.InDelta(t, expected.Y, actual.Y, tol, "Y")
	assert.InDelta(t, expected.Z, actual.Z, tol, "Z")
}

func assertMat4(t *testing.T, expected, actual Mat4) {
	t.Helper()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.InDelta(t, expected[i][j], actual[i][j], tol, "[%d][%d]", i, j)
		}
	}
}

func TestVec3Operations(t *testing.T) {
	v1 := NewVec3(1, 2, 3)
	v2 := NewVec3(4, 5, 6)

	assert.Equal(t, NewVec3(5, 7, 9), v1.Add(v2))
	assert.Equal(t, NewVec3(3, 3, 3), v2.Sub(v1))
	assert.Equal(t, NewVec3(2, 4, 6), v1.Mul(2))
	assert.Equal(t, float32(32), v1.Dot(v2))

	// Right x Up = Front in a right-handed system
	assert.Equal(t, Vec3Front, Vec3Right.Cross(Vec3Up))
}

func TestVec3Normalize(t *testing.T) {
	n := NewVec3(3, 0, 0).Normalize()
	assert.Equal(t, NewVec3(1, 0, 0), n)
	assert.InDelta(t, 1, n.Length(), tol)

	// zero vector stays zero
	assert.Equal(t, Vec3Zero, Vec3Zero.Normalize())
}

func TestVec3Reflect(t *testing.T) {
	// a ray going down bounces up off a floor
	r := NewVec3(1, -1, 0).Reflect(Vec3Up)
	assertVec3(t, NewVec3(1, 1, 0), r)

	// vectors in the plane are unchanged
	assertVec3(t, Vec3Right, Vec3Right.Reflect(Vec3Up))
}

func TestMat4Identity(t *testing.T) {
	m := Mat4Identity()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			expected := float32(0)
			if i == j {
				expected = 1
			}
			assert.Equal(t, expected, m[i][j])
		}
	}
	assertMat4(t, m, m.Mul(m))
}

func TestMat4Translation(t *testing.T) {
	translation := NewVec3(1, 2, 3)
	m := Mat4Translation(translation)

	assert.Equal(t, translation, m.Position())
	assert.Equal(t, translation, NewVec4(0, 0, 0, 1).MulMat(m).ToVec3())
}

func TestMat4MulOrder(t *testing.T) {
	// scale first, then translate
	m := Mat4Scale(NewVec3(2, 2, 2)).Mul(Mat4Translation(NewVec3(1, 0, 0)))
	assertVec3(t, NewVec3(3, 2, 2), m.MulVec3(NewVec3(1, 1, 1)))
}

func TestMat4Elements(t *testing.T) {
	m := Mat4Translation(NewVec3(4, 5, 6))
	e := m.Elements()

	// column-major: translation in elements 12..14
	assert.Equal(t, float32(4), e[12])
	assert.Equal(t, float32(5), e[13])
	assert.Equal(t, float32(6), e[14])
	assert.Equal(t, m, Mat4FromElements(e))
}

func TestMat4Inverse(t *testing.T) {
	q := QuaternionFromAxisAngle(NewVec3(1, 2, 3), 0.7)
	m := Mat4TRS(NewVec3(3, -2, 5), q, NewVec3(2, 0.5, 1.5))

	assertMat4(t, Mat4Identity(), m.Mul(m.Inverse()))
	assertMat4(t, Mat4Identity(), m.Inverse().Mul(m))

	p := NewVec3(0.3, 0.2, -7)
	assertVec3(t, p, m.Inverse().MulVec3(m.MulVec3(p)))

	proj := Mat4Perspective(1, 1.5, 0.1, 100)
	assertMat4(t, Mat4Identity(), proj.Mul(proj.Inverse()))

	// singular matrices fall back to identity
	assert.Equal(t, Mat4Identity(), Mat4Zero().Inverse())
}

func TestMat4ExtractRotation(t *testing.T) {
	q := QuaternionFromAxisAngle(Vec3Up, float32(math.Pi/3))
	m := Mat4TRS(NewVec3(1, 2, 3), q, NewVec3(4, 4, 4))
	assertMat4(t, q.ToMat4(), m.ExtractRotation())
}

func TestQuaternionIdentity(t *testing.T) {
	q := QuaternionIdentity()
	assert.Equal(t, Quaternion{0, 0, 0, 1}, q)
}

func TestQuaternionRotation(t *testing.T) {
	// 90 degrees around Y turns +X into -Z
	q := QuaternionFromAxisAngle(Vec3Up, float32(math.Pi/2))
	assertVec3(t, NewVec3(0, 0, -1), q.RotateVector(Vec3Right))

	// matrix form agrees with the vector form
	assertVec3(t, q.RotateVector(Vec3Right), q.ToMat4().MulVec3(Vec3Right))
}

func TestQuaternionFromMat4(t *testing.T) {
	for _, q := range []Quaternion{
		QuaternionIdentity(),
		QuaternionFromAxisAngle(Vec3Up, 2.5),
		QuaternionFromAxisAngle(NewVec3(1, 1, 0), -1.2),
		QuaternionFromAxisAngle(Vec3Right, float32(math.Pi)),
	} {
		back := QuaternionFromMat4(q.ToMat4())
		v := NewVec3(0.2, -0.5, 0.9)
		assertVec3(t, q.RotateVector(v), back.RotateVector(v))
	}
}

func TestMat4Perspective(t *testing.T) {
	m := Mat4Perspective(float32(math.Pi/4), 16.0/9.0, 0.1, 100.0)

	// a point on the near plane maps to ndc z = -1, on the far plane to +1
	assert.InDelta(t, -1, m.MulVec3(NewVec3(0, 0, -0.1)).Z, tol)
	assert.InDelta(t, 1, m.MulVec3(NewVec3(0, 0, -100)).Z, 1e-3)
}

func TestMat4LookAt(t *testing.T) {
	eye := NewVec3(0, 0, 5)
	m := Mat4LookAt(eye, Vec3Zero, Vec3Up)

	// the eye is at the view-space origin, the target straight ahead
	assertVec3(t, Vec3Zero, m.MulVec3(eye))
	assertVec3(t, NewVec3(0, 0, -5), m.MulVec3(Vec3Zero))
}

func TestMat4LookRotation(t *testing.T) {
	eye := NewVec3(1, 2, 3)
	target := NewVec3(4, 2, 3)
	world := Mat4LookRotation(eye, target, Vec3Up).Mul(Mat4Translation(eye))

	// the view matrix is the inverse of the camera world matrix
	assertMat4(t, Mat4LookAt(eye, target, Vec3Up), world.Inverse())

	// local -Z points at the target
	assertVec3(t, Vec3Right, Vec3Back.TransformDirection(world))
}

func TestMat3UVTransform(t *testing.T) {
	m := Mat3UVTransform(NewVec2(0.25, 0), NewVec2(2, 2), 0, Vec2{})
	uv := m.MulVec2(NewVec2(0.5, 0.5))
	assert.InDelta(t, 1.25, uv.X, tol)
	assert.InDelta(t, 1.0, uv.Y, tol)

	r := Mat3UVTransform(Vec2{}, NewVec2(1, 1), float32(math.Pi/2), NewVec2(0.5, 0.5))
	uv = r.MulVec2(NewVec2(0.5, 0.5))
	assert.InDelta(t, 0.5, uv.X, tol)
	assert.InDelta(t, 0.5, uv.Y, tol)
}

func TestMat3Inverse(t *testing.T) {
	m := Mat3FromMat4(Mat4TRS(Vec3Zero, QuaternionFromAxisAngle(Vec3Front, 0.4), NewVec3(2, 3, 4)))
	p := m.Mul(m.Inverse())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := float32(0)
			if i == j {
				expected = 1
			}
			assert.InDelta(t, expected, p[i][j], tol)
		}
	}
}

func TestPlaneApplyMat4(t *testing.T) {
	// floor plane y = 0 seen from a camera at (0, 2, 0) looking down -Z
	plane := PlaneFromNormalAndCoplanarPoint(Vec3Up, Vec3Zero)
	view := Mat4LookAt(NewVec3(0, 2, 0), NewVec3(0, 2, -1), Vec3Up)

	p := plane.ApplyMat4(view)
	assertVec3(t, Vec3Up, p.Normal)
	assert.InDelta(t, 2, p.D, tol)

	// distance is preserved by rigid transforms
	pt := NewVec3(3, 5, -2)
	assert.InDelta(t, plane.DistanceTo(pt), p.DistanceTo(view.MulVec3(pt)), tol)
}

func TestSign(t *testing.T) {
	assert.Equal(t, float32(1), Sign(0.3))
	assert.Equal(t, float32(-1), Sign(-2))
	assert.Equal(t, float32(0), Sign(0))
}

func BenchmarkVec3Add(b *testing.B) {
	v1 := NewVec3(1, 2, 3)
	v2 := NewVec3(4, 5, 6)

	for i := 0; i < b.N; i++ {
		_ = v1.Add(v2)
	}
}

func BenchmarkMat4Mul(b *testing.B) {
	m1 := Mat4Identity()
	m2 := Mat4Identity()

	for i := 0; i < b.N; i++ {
		_ = m1.Mul(m2)
	}
}

func BenchmarkMat4Inverse(b *testing.B) {
	m := Mat4Perspective(1, 1.5, 0.1, 100)
	for i := 0; i < b.N; i++ {
		_ = m.Inverse()
	}
}
