package math

import "github.com/chewxy/math32"

// Quaternion is a rotation (X, Y, Z vector part, W scalar part). Methods
// other than Normalize assume unit length.
type Quaternion struct {
	X, Y, Z, W float32
}

func QuaternionIdentity() Quaternion {
	return Quaternion{W: 1}
}

func QuaternionFromAxisAngle(axis Vec3, angle float32) Quaternion {
	s, c := math32.Sincos(angle / 2)
	v := axis.Normalize().Mul(s)
	return Quaternion{v.X, v.Y, v.Z, c}
}

// QuaternionFromMat4 converts the (unscaled) rotation part of m.
func QuaternionFromMat4(m Mat4) Quaternion {
	// e is row r, column c in column-vector notation.
	e := func(r, c int) float32 { return m[c][r] }

	if tr := e(0, 0) + e(1, 1) + e(2, 2); tr > 0 {
		s := 2 * math32.Sqrt(tr+1)
		return Quaternion{
			(e(2, 1) - e(1, 2)) / s,
			(e(0, 2) - e(2, 0)) / s,
			(e(1, 0) - e(0, 1)) / s,
			s / 4,
		}.Normalize()
	}

	// Pivot on the largest diagonal element for stability.
	i := 0
	if e(1, 1) > e(0, 0) {
		i = 1
	}
	if e(2, 2) > e(i, i) {
		i = 2
	}
	j, k := (i+1)%3, (i+2)%3
	s := 2 * math32.Sqrt(1+e(i, i)-e(j, j)-e(k, k))
	var v [3]float32
	v[i] = s / 4
	v[j] = (e(j, i) + e(i, j)) / s
	v[k] = (e(k, i) + e(i, k)) / s
	return Quaternion{v[0], v[1], v[2], (e(k, j) - e(j, k)) / s}.Normalize()
}

func (q Quaternion) vec() Vec3 { return Vec3{q.X, q.Y, q.Z} }

// Mul returns the Hamilton product q*r, which rotates by r first.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	a, b := q.vec(), r.vec()
	v := b.Mul(q.W).Add(a.Mul(r.W)).Add(a.Cross(b))
	return Quaternion{v.X, v.Y, v.Z, q.W*r.W - a.Dot(b)}
}

func (q Quaternion) Normalize() Quaternion {
	l := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return q
	}
	return Quaternion{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

func (q Quaternion) RotateVector(v Vec3) Vec3 {
	u := q.vec()
	t := u.Cross(v).Mul(2)
	return v.Add(t.Mul(q.W)).Add(u.Cross(t))
}

// ToMat4 returns the rotation matrix; row i is the rotated basis vector i.
func (q Quaternion) ToMat4() Mat4 {
	m := Mat4Identity()
	for i, axis := range [3]Vec3{Vec3Right, Vec3Up, Vec3Front} {
		r := q.RotateVector(axis)
		m[i][0], m[i][1], m[i][2] = r.X, r.Y, r.Z
	}
	return m
}
