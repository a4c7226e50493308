package math

import (
	stdmath "math"

	"github.com/chewxy/math32"
)

// Mat4 is a 4x4 matrix applied to row vectors (p' = p * M), so the
// translation lives in m[3]. The memory layout matches what OpenGL expects
// for a column-major mat4, so matrices upload without a transpose.
type Mat4 [4][4]float32

func Mat4Identity() Mat4 {
	return Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

func Mat4Zero() Mat4 {
	return Mat4{}
}

// Mat4FromElements builds a matrix from 16 column-major elements
// (element k is column k/4, row k%4 in column-vector notation).
func Mat4FromElements(e [16]float32) Mat4 {
	var m Mat4
	for k := 0; k < 16; k++ {
		m[k/4][k%4] = e[k]
	}
	return m
}

// Elements returns the matrix as 16 column-major floats.
func (m Mat4) Elements() [16]float32 {
	var e [16]float32
	for k := 0; k < 16; k++ {
		e[k] = m[k/4][k%4]
	}
	return e
}

// Mul returns m followed by other: p * (m.Mul(other)) == (p * m) * other.
func (m Mat4) Mul(other Mat4) Mat4 {
	var r Mat4
	for i := range 4 {
		for j := range 4 {
			for k := range 4 {
				r[i][j] += m[i][k] * other[k][j]
			}
		}
	}
	return r
}

func (m Mat4) MulVec(v Vec4) Vec4 {
	return v.MulMat(m)
}

// MulVec3 transforms a point and performs the perspective divide.
func (m Mat4) MulVec3(v Vec3) Vec3 {
	return v.ToVec4(1).MulMat(m).ToVec3DivW()
}

func (m Mat4) Transpose() Mat4 {
	return Mat4{
		{m[0][0], m[1][0], m[2][0], m[3][0]},
		{m[0][1], m[1][1], m[2][1], m[3][1]},
		{m[0][2], m[1][2], m[2][2], m[3][2]},
		{m[0][3], m[1][3], m[2][3], m[3][3]},
	}
}

// Position returns the translation part.
func (m Mat4) Position() Vec3 {
	return Vec3{X: m[3][0], Y: m[3][1], Z: m[3][2]}
}

// ExtractRotation returns the rotation part with scale removed and no
// translation. Degenerate axes are left as identity rows.
func (m Mat4) ExtractRotation() Mat4 {
	r := Mat4Identity()
	for i := range 3 {
		if axis := (Vec3{m[i][0], m[i][1], m[i][2]}); axis.LengthSqr() > 0 {
			n := axis.Normalize()
			r[i][0], r[i][1], r[i][2] = n.X, n.Y, n.Z
		}
	}
	return r
}

func Mat4Translation(t Vec3) Mat4 {
	m := Mat4Identity()
	m[3] = [4]float32{t.X, t.Y, t.Z, 1}
	return m
}

func Mat4Scale(s Vec3) Mat4 {
	return Mat4{{s.X}, {1: s.Y}, {2: s.Z}, {3: 1}}
}

func Mat4Perspective(fovY, aspect, near, far float32) Mat4 {
	tanHalfFovy := math32.Tan(fovY / 2)

	m := Mat4Zero()
	m[0][0] = 1 / (aspect * tanHalfFovy)
	m[1][1] = 1 / tanHalfFovy
	m[2][2] = -(far + near) / (far - near)
	m[2][3] = -1
	m[3][2] = -(2 * far * near) / (far - near)
	return m
}

func Mat4Orthographic(left, right, bottom, top, near, far float32) Mat4 {
	m := Mat4Identity()
	m[0][0] = 2 / (right - left)
	m[1][1] = 2 / (top - bottom)
	m[2][2] = -2 / (far - near)
	m[3][0] = -(right + left) / (right - left)
	m[3][1] = -(top + bottom) / (top - bottom)
	m[3][2] = -(far + near) / (far - near)
	return m
}

// Mat4LookAt returns a view matrix for an eye looking at target.
func Mat4LookAt(eye, target, up Vec3) Mat4 {
	zAxis := eye.Sub(target).Normalize()
	xAxis := up.Cross(zAxis).Normalize()
	yAxis := zAxis.Cross(xAxis)

	return Mat4{
		{xAxis.X, yAxis.X, zAxis.X, 0},
		{xAxis.Y, yAxis.Y, zAxis.Y, 0},
		{xAxis.Z, yAxis.Z, zAxis.Z, 0},
		{-xAxis.Dot(eye), -yAxis.Dot(eye), -zAxis.Dot(eye), 1},
	}
}

// Mat4LookRotation returns the world rotation of an object at eye whose -Z
// axis points at target.
func Mat4LookRotation(eye, target, up Vec3) Mat4 {
	zAxis := eye.Sub(target)
	if zAxis.LengthSqr() == 0 {
		zAxis = Vec3Front
	}
	zAxis = zAxis.Normalize()
	xAxis := up.Cross(zAxis)
	if xAxis.LengthSqr() == 0 {
		// up is parallel to the view direction; nudge it
		if math32.Abs(up.Z) == 1 {
			zAxis.X += 0.0001
		} else {
			zAxis.Z += 0.0001
		}
		zAxis = zAxis.Normalize()
		xAxis = up.Cross(zAxis)
	}
	xAxis = xAxis.Normalize()
	yAxis := zAxis.Cross(xAxis)

	return Mat4{
		{xAxis.X, xAxis.Y, xAxis.Z, 0},
		{yAxis.X, yAxis.Y, yAxis.Z, 0},
		{zAxis.X, zAxis.Y, zAxis.Z, 0},
		{0, 0, 0, 1},
	}
}

// Mat4TRS composes scale, then rotation, then translation.
func Mat4TRS(translation Vec3, rotation Quaternion, scale Vec3) Mat4 {
	return Mat4Scale(scale).Mul(rotation.ToMat4()).Mul(Mat4Translation(translation))
}

// Mat4TextureBias maps clip space [-1,1] to texture space [0,1] on all axes.
func Mat4TextureBias() Mat4 {
	return Mat4{
		{0.5, 0, 0, 0},
		{0, 0.5, 0, 0},
		{0, 0, 0.5, 0},
		{0.5, 0.5, 0.5, 1},
	}
}

// Inverse returns the inverse of m, or the identity when m is singular.
// It runs Gauss-Jordan elimination with partial pivoting in float64.
func (m Mat4) Inverse() Mat4 {
	var a, inv [4][4]float64
	for i := range 4 {
		for j := range 4 {
			a[i][j] = float64(m[i][j])
		}
		inv[i][i] = 1
	}
	for col := range 4 {
		pivot := col
		for r := col + 1; r < 4; r++ {
			if stdmath.Abs(a[r][col]) > stdmath.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if a[pivot][col] == 0 {
			return Mat4Identity()
		}
		a[col], a[pivot] = a[pivot], a[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]

		d := 1 / a[col][col]
		for j := range 4 {
			a[col][j] *= d
			inv[col][j] *= d
		}
		for r := range 4 {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for j := range 4 {
				a[r][j] -= f * a[col][j]
				inv[r][j] -= f * inv[col][j]
			}
		}
	}
	var out Mat4
	for i := range 4 {
		for j := range 4 {
			out[i][j] = float32(inv[i][j])
		}
	}
	return out
}

// Sign returns -1, 0 or 1 according to the sign of x.
func Sign(x float32) float32 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// Round rounds half away from zero.
func Round(x float32) float32 {
	return math32.Round(x)
}
