package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `
# unit quad, no normals
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
o quad
f 1/1 2/2 3/3 4/4
`

func TestParseOBJQuad(t *testing.T) {
	meshes, err := ParseOBJ(strings.NewReader(quadOBJ), "")
	require.NoError(t, err)
	require.Len(t, meshes, 1)

	m := meshes[0]
	assert.Equal(t, "quad", m.Name)
	assert.Len(t, m.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, m.Indices)
	assert.Equal(t, 2, m.TriangleCount())
	for _, v := range m.Vertices {
		assert.InDelta(t, 1, v.Normal.Z, 1e-5)
	}
	assert.Equal(t, float32(1), m.Vertices[2].UV.X)
	assert.Equal(t, "Default", m.Material.Name)
}

func TestParseOBJNegativeIndices(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nvn 0 0 2\nf -3//-1 -2//-1 -1//-1\n"
	meshes, err := ParseOBJ(strings.NewReader(src), "")
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Len(t, meshes[0].Vertices, 3)
	assert.InDelta(t, 1, meshes[0].Vertices[0].Normal.Z, 1e-6)
}

func TestParseOBJSplitsOnMaterialChange(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl a\nf 1 2 3\nusemtl b\nf 1 3 2\n"
	meshes, err := ParseOBJ(strings.NewReader(src), "")
	require.NoError(t, err)
	require.Len(t, meshes, 2)
	assert.Equal(t, "a", meshes[0].MaterialName)
	assert.Equal(t, "b", meshes[1].MaterialName)
}

func TestParseOBJErrors(t *testing.T) {
	for name, src := range map[string]string{
		"empty":        "v 0 0 0\n",
		"out of range": "v 0 0 0\nf 1 2 3\n",
		"zero index":   "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n",
		"bad number":   "v 0 zero 0\n",
		"short face":   "v 0 0 0\nv 1 0 0\nf 1 2\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(src), "")
			assert.Error(t, err)
		})
	}

	_, err := ParseOBJ(strings.NewReader("v 0 0 0\nv 1 0 0\nf 1 2 3\n"), "")
	assert.ErrorContains(t, err, "line 3")
}

func TestLoadOBJWithMaterials(t *testing.T) {
	dir := t.TempDir()
	mtl := "newmtl glow\nKd 0.2 0.2 0.2\nKe 4 2 1\nNs 0\n"
	obj := "mtllib scene.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl glow\nf 1 2 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.mtl"), []byte(mtl), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.obj"), []byte(obj), 0o644))

	meshes, err := LoadOBJ(filepath.Join(dir, "scene.obj"))
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	mat := meshes[0].Material
	assert.Equal(t, "glow", mat.Name)
	assert.Equal(t, float32(4), mat.Emissive.R)
	assert.Equal(t, float32(0.2), mat.Albedo.G)
	assert.Equal(t, float32(1), mat.Shininess)

	_, err = LoadOBJ(filepath.Join(dir, "missing.obj"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
