package opengl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/gpu"
)

func program(name string, defines map[string]string) *gpu.Program {
	return &gpu.Program{Name: name, Defines: defines}
}

func TestSourcesEmitDefinesAfterVersion(t *testing.T) {
	vert, frag, kind, err := sources(program(gpu.ProgramUnrealBlur, map[string]string{"KERNEL_RADIUS": "7"}))
	require.NoError(t, err)
	assert.Equal(t, kindFullscreen, kind)
	assert.True(t, strings.HasPrefix(vert, glslVersion))
	assert.True(t, strings.HasPrefix(frag, glslVersion+"#define KERNEL_RADIUS 7\n"))
	assert.Contains(t, vert, "gl_VertexID")
}

func TestSourcesReflector(t *testing.T) {
	defines := map[string]string{"USE_MAP": "", "DITHERING": ""}
	vert, frag, kind, err := sources(program(gpu.ProgramReflector, defines))
	require.NoError(t, err)
	assert.Equal(t, kindSurface, kind)
	assert.Contains(t, vert, "uMatrix")
	// sorted, so the output is stable across runs
	assert.True(t, strings.HasPrefix(frag, glslVersion+"#define DITHERING \n#define USE_MAP \n"))
	assert.Contains(t, frag, "textureProj(tReflection")
}

func TestBloomCompositeSource(t *testing.T) {
	_, frag, _, err := sources(program(gpu.ProgramBloomComposite, map[string]string{"NUM_MIPS": "3"}))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Contains(t, frag, "uniform sampler2D "+gpu.BloomBlurUniform(i)+";")
	}
	assert.NotContains(t, frag, gpu.BloomBlurUniform(3))
	assert.Contains(t, frag, "uBloomFactors[2] * texture(tBlur3, vUv)")
}

func TestSourcesRejectBadPrograms(t *testing.T) {
	_, _, _, err := sources(program("ssao", nil))
	assert.ErrorIs(t, err, gpu.ErrUnknownProgram)

	_, _, _, err = sources(program(gpu.ProgramUnrealBlur, nil))
	assert.ErrorContains(t, err, "missing define KERNEL_RADIUS")

	_, _, _, err = sources(program(gpu.ProgramBloomComposite, map[string]string{"NUM_MIPS": "zero"}))
	assert.ErrorContains(t, err, "invalid NUM_MIPS")
}
