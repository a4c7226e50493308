package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/math"
)

// One triangle in the XY plane, no normals, with a glowing unlit material.
// The child node uses a matrix: translate (1, 2, 3), scale 2.
const triangleGLTF = `{
  "asset": {"version": "2.0"},
  "extensionsUsed": ["KHR_materials_unlit", "KHR_materials_emissive_strength"],
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [
    {"name": "root", "translation": [0, 1, 0], "children": [1]},
    {"name": "tri", "mesh": 0, "matrix": [2,0,0,0, 0,2,0,0, 0,0,2,0, 1,2,3,1]}
  ],
  "meshes": [{"name": "tri", "primitives": [{"attributes": {"POSITION": 0}, "material": 0}]}],
  "materials": [{
    "name": "glow",
    "emissiveFactor": [1, 0.5, 0],
    "extensions": {
      "KHR_materials_unlit": {},
      "KHR_materials_emissive_strength": {"emissiveStrength": 4}
    }
  }],
  "accessors": [{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3",
                 "min": [0, 0, 0], "max": [1, 1, 0]}],
  "bufferViews": [{"buffer": 0, "byteLength": 36}],
  "buffers": [{"byteLength": 36,
               "uri": "data:application/octet-stream;base64,AAAAAAAAAAAAAAAAAACAPwAAAAAAAAAAAAAAAAAAgD8AAAAA"}]
}`

func TestLoadGLTF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.gltf")
	require.NoError(t, os.WriteFile(path, []byte(triangleGLTF), 0o644))

	res, err := LoadGLTF(path)
	require.NoError(t, err)
	require.Len(t, res.Roots, 1)
	root := res.Roots[0]
	assert.Equal(t, "root", root.Name)
	require.Len(t, root.Children, 1)

	tri := root.Children[0]
	require.NotNil(t, tri.Mesh)
	assert.Len(t, tri.Mesh.Vertices, 3)
	// generated from the winding
	assert.InDelta(t, 1, tri.Mesh.Vertices[0].Normal.Z, 1e-5)

	assert.InDelta(t, 2, tri.Transform.Scale.X, 1e-5)
	p := tri.WorldPosition()
	assert.InDelta(t, 1, p.X, 1e-5)
	assert.InDelta(t, 3, p.Y, 1e-5)
	assert.InDelta(t, 3, p.Z, 1e-5)

	mat := tri.Mesh.Material
	require.NotNil(t, mat)
	assert.Equal(t, "glow", mat.Name)
	assert.True(t, mat.Unlit)
	assert.InDelta(t, 4, mat.Emissive.R, 1e-6)
	assert.InDelta(t, 2, mat.Emissive.G, 1e-6)
}

func TestLoadGLTFMissingFile(t *testing.T) {
	_, err := LoadGLTF(filepath.Join(t.TempDir(), "none.glb"))
	assert.Error(t, err)
}

func TestTransformFromMatrix(t *testing.T) {
	rot := math.QuaternionFromAxisAngle(math.Vec3Up, 0.7)
	want := math.Mat4TRS(math.NewVec3(4, 5, 6), rot, math.NewVec3(1, 3, 2))
	var flat [16]float64
	for i := range 16 {
		flat[i] = float64(want[i/4][i%4])
	}

	tr := transformFromMatrix(flat)
	got := tr.GetMatrix()
	for i := range 4 {
		for j := range 4 {
			assert.InDelta(t, want[i][j], got[i][j], 1e-4, "m[%d][%d]", i, j)
		}
	}
	assert.InDelta(t, 3, tr.Scale.Y, 1e-5)
}
