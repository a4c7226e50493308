package math

import "github.com/chewxy/math32"

// Mat3 follows the same row-vector convention as Mat4.
type Mat3 [3][3]float32

func Mat3Identity() Mat3 {
	return Mat3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// Mat3FromMat4 returns the upper-left 3x3 of m.
func Mat3FromMat4(m Mat4) Mat3 {
	return Mat3{
		{m[0][0], m[0][1], m[0][2]},
		{m[1][0], m[1][1], m[1][2]},
		{m[2][0], m[2][1], m[2][2]},
	}
}

// Mat3UVTransform builds a texture coordinate transform: offset, repeat,
// rotation (radians) around center.
func Mat3UVTransform(offset, repeat Vec2, rotation float32, center Vec2) Mat3 {
	c := math32.Cos(rotation)
	s := math32.Sin(rotation)
	sx, sy := repeat.X, repeat.Y
	return Mat3{
		{sx * c, -sy * s, 0},
		{sx * s, sy * c, 0},
		{
			-sx*(c*center.X+s*center.Y) + center.X + offset.X,
			-sy*(-s*center.X+c*center.Y) + center.Y + offset.Y,
			1,
		},
	}
}

func (m Mat3) Mul(other Mat3) Mat3 {
	var result Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				result[i][j] += m[i][k] * other[k][j]
			}
		}
	}
	return result
}

// MulVec2 transforms uv as a point (z = 1).
func (m Mat3) MulVec2(v Vec2) Vec2 {
	return Vec2{
		X: v.X*m[0][0] + v.Y*m[1][0] + m[2][0],
		Y: v.X*m[0][1] + v.Y*m[1][1] + m[2][1],
	}
}

func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		X: v.X*m[0][0] + v.Y*m[1][0] + v.Z*m[2][0],
		Y: v.X*m[0][1] + v.Y*m[1][1] + v.Z*m[2][1],
		Z: v.X*m[0][2] + v.Y*m[1][2] + v.Z*m[2][2],
	}
}

func (m Mat3) Transpose() Mat3 {
	return Mat3{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}

func (m Mat3) Determinant() float32 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Inverse returns the inverse of m, or the identity when m is singular.
func (m Mat3) Inverse() Mat3 {
	det := m.Determinant()
	if det == 0 {
		return Mat3Identity()
	}
	inv := 1 / det
	return Mat3{
		{
			(m[1][1]*m[2][2] - m[1][2]*m[2][1]) * inv,
			(m[0][2]*m[2][1] - m[0][1]*m[2][2]) * inv,
			(m[0][1]*m[1][2] - m[0][2]*m[1][1]) * inv,
		},
		{
			(m[1][2]*m[2][0] - m[1][0]*m[2][2]) * inv,
			(m[0][0]*m[2][2] - m[0][2]*m[2][0]) * inv,
			(m[0][2]*m[1][0] - m[0][0]*m[1][2]) * inv,
		},
		{
			(m[1][0]*m[2][1] - m[1][1]*m[2][0]) * inv,
			(m[0][1]*m[2][0] - m[0][0]*m[2][1]) * inv,
			(m[0][0]*m[1][1] - m[0][1]*m[1][0]) * inv,
		},
	}
}

// NormalMatrix returns the inverse transpose of the upper 3x3 of m.
func NormalMatrix(m Mat4) Mat3 {
	return Mat3FromMat4(m).Inverse().Transpose()
}
