package scene

import (
	"github.com/chewxy/math32"

	"render-pipeline/core"
	"render-pipeline/math"
)

var primitiveColor = core.Color{R: 0.8, G: 0.8, B: 0.8, A: 1}

// surface evaluates a parametric patch at (u, v) in [0, 1]^2.
type surface func(u, v float32) (pos, normal math.Vec3)

// grid samples f on a (cols+1) x (rows+1) lattice and stitches it into
// triangles wound counter-clockwise when seen from the normal side.
func grid(name string, cols, rows int, color core.Color, f surface) *Mesh {
	vertices := make([]core.Vertex, 0, (cols+1)*(rows+1))
	for j := 0; j <= rows; j++ {
		v := float32(j) / float32(rows)
		for i := 0; i <= cols; i++ {
			u := float32(i) / float32(cols)
			pos, n := f(u, v)
			vertices = append(vertices, core.Vertex{
				Position: pos,
				Normal:   n,
				UV:       math.Vec2{X: u, Y: v},
				Color:    color,
			})
		}
	}
	stride := uint32(cols + 1)
	indices := make([]uint32, 0, cols*rows*6)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			a := uint32(j)*stride + uint32(i)
			b, c := a+1, a+stride
			indices = append(indices, a, b, c, b, c+1, c)
		}
	}
	return CreateMeshFromData(name, vertices, indices)
}

// CreateSphere generates a UV sphere centred on the origin.
func CreateSphere(radius float32, segments, rings int) *Mesh {
	return grid("Sphere", max(segments, 3), max(rings, 2), primitiveColor, func(u, v float32) (math.Vec3, math.Vec3) {
		theta, phi := -2*math32.Pi*u, math32.Pi*(1-v)
		st, ct := math32.Sincos(theta)
		sp, cp := math32.Sincos(phi)
		n := math.Vec3{X: sp * ct, Y: cp, Z: sp * st}
		return n.Mul(radius), n
	})
}

// CreateTorus generates a torus around the Y axis.
func CreateTorus(majorRadius, minorRadius float32, majorSegments, minorSegments int) *Mesh {
	return grid("Torus", max(majorSegments, 3), max(minorSegments, 3), primitiveColor, func(u, v float32) (math.Vec3, math.Vec3) {
		st, ct := math32.Sincos(-2 * math32.Pi * u)
		sp, cp := math32.Sincos(2 * math32.Pi * v)
		n := math.Vec3{X: cp * ct, Y: sp, Z: cp * st}
		ring := majorRadius + minorRadius*cp
		return math.Vec3{X: ring * ct, Y: minorRadius * sp, Z: ring * st}, n
	})
}

// CreatePlane generates a width x depth floor in the XZ plane facing +Y.
func CreatePlane(width, depth float32, subdivisions int) *Mesh {
	n := max(subdivisions, 1)
	return grid("Plane", n, n, primitiveColor, func(u, v float32) (math.Vec3, math.Vec3) {
		return math.Vec3{X: (u - 0.5) * width, Z: (0.5 - v) * depth}, math.Vec3Up
	})
}

// CreatePlaneXY generates a width x height plane in the XY plane facing +Z,
// the orientation mirrors expect.
func CreatePlaneXY(width, height float32, subdivisions int) *Mesh {
	n := max(subdivisions, 1)
	return grid("PlaneXY", n, n, core.ColorWhite, func(u, v float32) (math.Vec3, math.Vec3) {
		return math.Vec3{X: (u - 0.5) * width, Y: (v - 0.5) * height}, math.Vec3Front
	})
}

// CreateQuad is a unit CreatePlaneXY.
func CreateQuad() *Mesh {
	m := CreatePlaneXY(1, 1, 1)
	m.Name = "Quad"
	return m
}

// cubeFaces lists each face as normal, u axis, v axis with u x v == normal.
var cubeFaces = [6][3]math.Vec3{
	{math.Vec3Front, math.Vec3Right, math.Vec3Up},
	{math.Vec3Back, math.Vec3Left, math.Vec3Up},
	{math.Vec3Up, math.Vec3Right, math.Vec3Back},
	{math.Vec3Down, math.Vec3Right, math.Vec3Front},
	{math.Vec3Right, math.Vec3Back, math.Vec3Up},
	{math.Vec3Left, math.Vec3Front, math.Vec3Up},
}

// CreateCube generates an axis-aligned cube with flat per-face normals.
func CreateCube(size float32) *Mesh {
	h := size / 2
	vertices := make([]core.Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range cubeFaces {
		n, du, dv := f[0], f[1], f[2]
		base := uint32(len(vertices))
		for _, c := range [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
			pos := n.Add(du.Mul(2*c[0] - 1)).Add(dv.Mul(2*c[1] - 1)).Mul(h)
			vertices = append(vertices, core.Vertex{
				Position: pos,
				Normal:   n,
				UV:       math.Vec2{X: c[0], Y: c[1]},
				Color:    core.ColorWhite,
			})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return CreateMeshFromData("Cube", vertices, indices)
}
