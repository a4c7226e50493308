package scene

import (
	"render-pipeline/core"
	"render-pipeline/math"
)

// Mesh is CPU-side geometry. Devices upload it lazily and key their
// buffers on the pointer, so a mesh must not be mutated after its first
// draw.
type Mesh struct {
	Name     string
	Vertices []core.Vertex
	// Indices may be empty, in which case every three vertices form a
	// triangle.
	Indices []uint32

	// MaterialName is the source material reference (OBJ usemtl).
	MaterialName string
	// Material is nil for DefaultMaterial.
	Material *Material

	LocalAABB    AABB
	HasLocalAABB bool
}

// CreateMeshFromData builds a Mesh and caches its local bounds.
func CreateMeshFromData(name string, vertices []core.Vertex, indices []uint32) *Mesh {
	m := &Mesh{Name: name, Vertices: vertices, Indices: indices}
	if len(vertices) > 0 {
		m.LocalAABB = boundsOf(vertices)
		m.HasLocalAABB = true
	}
	return m
}

func boundsOf(vertices []core.Vertex) AABB {
	box := AABB{Min: vertices[0].Position, Max: vertices[0].Position}
	for _, v := range vertices[1:] {
		box.Min = math.Vec3Min(box.Min, v.Position)
		box.Max = math.Vec3Max(box.Max, v.Position)
	}
	return box
}

// TriangleCount returns the number of triangles drawn for the mesh.
func (m *Mesh) TriangleCount() int {
	if len(m.Indices) > 0 {
		return len(m.Indices) / 3
	}
	return len(m.Vertices) / 3
}

// Triangle returns the vertex indices of triangle i.
func (m *Mesh) Triangle(i int) (a, b, c uint32) {
	if len(m.Indices) > 0 {
		return m.Indices[3*i], m.Indices[3*i+1], m.Indices[3*i+2]
	}
	return uint32(3 * i), uint32(3*i + 1), uint32(3*i + 2)
}
