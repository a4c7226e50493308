package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/postprocess"
	"render-pipeline/reflector"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "render.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultMatchesComponents(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, postprocess.DefaultOptions(), cfg.PostProcess())

	ref := cfg.ReflectorOptions()
	def := reflector.DefaultOptions()
	assert.Equal(t, def.Color.Hex(), ref.Color.Hex())
	assert.Equal(t, def.Width, ref.Width)
	assert.Equal(t, def.BlurIterations, ref.BlurIterations)
	assert.Equal(t, "#7f7f7f", cfg.Reflector.Color)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[window]
width = 640
title = "mirror"

[bloom]
strength = 1.5
radius = 0.2
kernel_sizes = [3, 5, 7]
base_factors = [1.0, 0.6, 0.2]

[reflector]
color = "#ff8000"
blur_iterations = 0

[scene]
gltf = "models/hall.glb"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.Equal(t, "mirror", cfg.WindowConfig().Title)
	assert.Equal(t, "models/hall.glb", cfg.Scene.GLTF)

	pp := cfg.PostProcess()
	assert.Equal(t, 3, pp.Mips)
	assert.Equal(t, float32(1.5), pp.BloomStrength)
	assert.Equal(t, float32(0.1), pp.LuminosityThreshold)

	ref := cfg.ReflectorOptions()
	assert.Equal(t, uint32(0xff8000), ref.Color.Hex())
	assert.Equal(t, 0, ref.BlurIterations)
	assert.Equal(t, 512, ref.Width)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "[window]\nwidth = \"wide\"\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "[window]\ndepth = 3\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "[bloom]\nkernel_sizes = [3, 5]\n"))
	assert.ErrorContains(t, err, "bloom")
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Window.Width = 0
	cfg.Reflector.Color = "blue"
	cfg.Reflector.BlurIterations = -2
	cfg.Bloom.Radius = 2

	err := cfg.Validate()
	require.Error(t, err)
	for _, part := range []string{"window", "colour", "blur iterations", "radius"} {
		assert.ErrorContains(t, err, part)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Bloom.Strength = 0.9
	cfg.Scene.GLTF = "a.gltf"
	cfg.Scene.OBJ = "b.obj"

	b, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[scene]")

	path := filepath.Join(t.TempDir(), "out.toml")
	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
