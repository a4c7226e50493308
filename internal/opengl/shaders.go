package opengl

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"render-pipeline/gpu"
)

const glslVersion = "#version 410 core\n"

// fullscreenVertSrc draws a single triangle covering the viewport from
// gl_VertexID, so no vertex buffer is needed.
const fullscreenVertSrc = `
out vec2 vUv;
void main() {
    const vec2 pos[3] = vec2[3](
        vec2(-1.0, -1.0),
        vec2( 3.0, -1.0),
        vec2(-1.0,  3.0)
    );
    gl_Position = vec4(pos[gl_VertexID], 0.0, 1.0);
    vUv         = pos[gl_VertexID] * 0.5 + 0.5;
}
`

const copyFragSrc = `
uniform sampler2D tMap;
in  vec2 vUv;
out vec4 outColor;
void main() {
    outColor = texture(tMap, vUv);
}
`

const fxaaFragSrc = `
uniform sampler2D tMap;
uniform vec2 uResolution;
in  vec2 vUv;
out vec4 outColor;

#define FXAA_REDUCE_MIN (1.0 / 128.0)
#define FXAA_REDUCE_MUL (1.0 / 8.0)
#define FXAA_SPAN_MAX   8.0

const vec3 LUMA = vec3(0.299, 0.587, 0.114);

void main() {
    vec2 res = uResolution;
    if (res.x <= 0.0 || res.y <= 0.0) {
        res = vec2(textureSize(tMap, 0));
    }
    vec2 rcp = 1.0 / res;

    vec3 rgbNW = texture(tMap, vUv + vec2(-1.0, -1.0) * rcp).rgb;
    vec3 rgbNE = texture(tMap, vUv + vec2( 1.0, -1.0) * rcp).rgb;
    vec3 rgbSW = texture(tMap, vUv + vec2(-1.0,  1.0) * rcp).rgb;
    vec3 rgbSE = texture(tMap, vUv + vec2( 1.0,  1.0) * rcp).rgb;
    vec4 texM  = texture(tMap, vUv);

    float lumaNW = dot(rgbNW, LUMA);
    float lumaNE = dot(rgbNE, LUMA);
    float lumaSW = dot(rgbSW, LUMA);
    float lumaSE = dot(rgbSE, LUMA);
    float lumaM  = dot(texM.rgb, LUMA);
    float lumaMin = min(lumaM, min(min(lumaNW, lumaNE), min(lumaSW, lumaSE)));
    float lumaMax = max(lumaM, max(max(lumaNW, lumaNE), max(lumaSW, lumaSE)));

    vec2 dir;
    dir.x = -((lumaNW + lumaNE) - (lumaSW + lumaSE));
    dir.y =  ((lumaNW + lumaSW) - (lumaNE + lumaSE));

    float dirReduce = max((lumaNW + lumaNE + lumaSW + lumaSE) * (0.25 * FXAA_REDUCE_MUL), FXAA_REDUCE_MIN);
    float rcpDirMin = 1.0 / (min(abs(dir.x), abs(dir.y)) + dirReduce);
    dir = clamp(dir * rcpDirMin, vec2(-FXAA_SPAN_MAX), vec2(FXAA_SPAN_MAX)) * rcp;

    vec3 rgbA = 0.5 * (
        texture(tMap, vUv + dir * (1.0 / 3.0 - 0.5)).rgb +
        texture(tMap, vUv + dir * (2.0 / 3.0 - 0.5)).rgb);
    vec3 rgbB = rgbA * 0.5 + 0.25 * (
        texture(tMap, vUv + dir * -0.5).rgb +
        texture(tMap, vUv + dir *  0.5).rgb);

    float lumaB = dot(rgbB, LUMA);
    if (lumaB < lumaMin || lumaB > lumaMax) {
        outColor = vec4(rgbA, texM.a);
    } else {
        outColor = vec4(rgbB, texM.a);
    }
}
`

const luminosityFragSrc = `
uniform sampler2D tMap;
uniform float uLuminosityThreshold;
uniform float uLuminositySmoothing;
in  vec2 vUv;
out vec4 outColor;
void main() {
    vec4 texel = texture(tMap, vUv);
    float v = dot(texel.rgb, vec3(0.299, 0.587, 0.114));
    float alpha = smoothstep(uLuminosityThreshold, uLuminosityThreshold + uLuminositySmoothing, v);
    outColor = texel * alpha;
}
`

// unrealBlurFragSrc needs KERNEL_RADIUS.
const unrealBlurFragSrc = `
uniform sampler2D tMap;
uniform vec2 uResolution;
uniform vec2 uDirection;
in  vec2 vUv;
out vec4 outColor;

float gaussianPdf(in float x, in float sigma) {
    return 0.39894 * exp(-0.5 * x * x / (sigma * sigma)) / sigma;
}

void main() {
    vec2 invSize = 1.0 / max(uResolution, vec2(1.0));
    float sigma = float(KERNEL_RADIUS);
    float weightSum = gaussianPdf(0.0, sigma);
    vec3 diffuseSum = texture(tMap, vUv).rgb * weightSum;
    for (int i = 1; i < KERNEL_RADIUS; i++) {
        float x = float(i);
        float w = gaussianPdf(x, sigma);
        vec2 uvOffset = uDirection * invSize * x;
        vec3 sample1 = texture(tMap, vUv + uvOffset).rgb;
        vec3 sample2 = texture(tMap, vUv - uvOffset).rgb;
        diffuseSum += (sample1 + sample2) * w;
        weightSum += 2.0 * w;
    }
    outColor = vec4(diffuseSum / weightSum, 1.0);
}
`

const fastBlurFragSrc = `
uniform sampler2D tMap;
uniform vec2 uResolution;
uniform vec2 uDirection;
in  vec2 vUv;
out vec4 outColor;
void main() {
    vec2 res = max(uResolution, vec2(1.0));
    vec2 off1 = vec2(1.3846153846) * uDirection / res;
    vec2 off2 = vec2(3.2307692308) * uDirection / res;
    vec4 color = texture(tMap, vUv) * 0.2270270270;
    color += texture(tMap, vUv + off1) * 0.3162162162;
    color += texture(tMap, vUv - off1) * 0.3162162162;
    color += texture(tMap, vUv + off2) * 0.0702702703;
    color += texture(tMap, vUv - off2) * 0.0702702703;
    outColor = color;
}
`

// bloomCompositeFragSrc is generated: GLSL 4.1 cannot index an array of
// samplers with a loop variable bound to separate uniforms.
func bloomCompositeFragSrc(mips int) string {
	var b strings.Builder
	for i := 0; i < mips; i++ {
		fmt.Fprintf(&b, "uniform sampler2D %s;\n", gpu.BloomBlurUniform(i))
	}
	b.WriteString("uniform float uBloomFactors[NUM_MIPS];\nin  vec2 vUv;\nout vec4 outColor;\nvoid main() {\n    outColor =")
	for i := 0; i < mips; i++ {
		if i > 0 {
			b.WriteString(" +\n       ")
		}
		fmt.Fprintf(&b, " uBloomFactors[%d] * texture(%s, vUv)", i, gpu.BloomBlurUniform(i))
	}
	b.WriteString(";\n}\n")
	return b.String()
}

// meshVertSrc is shared by the mesh programs. Attribute locations follow
// uploadMesh.
const meshVertSrc = `
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec3 inNormal;
layout(location = 2) in vec2 inUV;
layout(location = 3) in vec4 inColor;

uniform mat4 uModel;
uniform mat4 uModelView;
uniform mat4 uModelViewProjection;
uniform mat3 uNormalMatrix;
uniform mat4 uLightViewProj;
uniform mat4 uMatrix;

out vec3  vLocal;
out vec3  vWorldPos;
out vec3  vNormal;
out vec2  vUv;
out vec4  vColor;
out float vViewDepth;
out vec4  vLightSpacePos;
out vec4  vReflectCoord;

void main() {
    vec4 world     = uModel * vec4(inPosition, 1.0);
    vLocal         = inPosition;
    vWorldPos      = world.xyz;
    vNormal        = uNormalMatrix * inNormal;
    vUv            = inUV;
    vColor         = inColor == vec4(0.0) ? vec4(1.0) : inColor;
    vViewDepth     = -(uModelView * vec4(inPosition, 1.0)).z;
    vLightSpacePos = uLightViewProj * world;
    vReflectCoord  = uMatrix * vec4(inPosition, 1.0);
    gl_Position    = uModelViewProjection * vec4(inPosition, 1.0);
}
`

const reflectorFragSrc = `
uniform sampler2D tReflection;
uniform vec3 uColor;
#ifdef USE_MAP
uniform sampler2D tMap;
uniform mat3 uMapTransform;
#endif
#ifdef USE_FOG
uniform vec3  uFogColor;
uniform float uFogNear;
uniform float uFogFar;
#endif

in vec2  vUv;
in float vViewDepth;
in vec4  vReflectCoord;
out vec4 outColor;

#ifdef DITHERING
vec3 dither(vec3 color) {
    float grid = fract(dot(vec2(171.0, 231.0), gl_FragCoord.xy) / 103.0);
    vec3 noise = vec3(grid, -grid, grid) - vec3(0.5, -0.5, 0.5);
    return color + noise / 255.0;
}
#endif

void main() {
    vec4 base = vec4(1.0);
#ifdef USE_MAP
    base = texture(tMap, (uMapTransform * vec3(vUv, 1.0)).xy);
#endif
    vec4 reflection = textureProj(tReflection, vReflectCoord);
    vec3 color = base.rgb * reflection.rgb * uColor;
#ifdef USE_FOG
    color = mix(color, uFogColor, smoothstep(uFogNear, uFogFar, vViewDepth));
#endif
#ifdef DITHERING
    color = dither(color);
#endif
    outColor = vec4(color, 1.0);
}
`

const maxLights = 8

const phongFragSrc = `
#define MAX_LIGHTS 8
#define LIGHT_DIRECTIONAL 0
#define LIGHT_POINT 1

uniform vec4  uAlbedo;
uniform vec3  uSpecular;
uniform float uShininess;
uniform vec3  uEmissive;
uniform bool  uUnlit;
uniform bool  uHasAlbedoTex;
uniform sampler2D tAlbedo;
uniform mat3  uAlbedoTransform;

uniform vec3 uAmbient;
uniform vec3 uCameraPos;
uniform int  uLightCount;
uniform int  uLightType[MAX_LIGHTS];
uniform vec3 uLightPosition[MAX_LIGHTS];
uniform vec3 uLightDirection[MAX_LIGHTS];
uniform vec3 uLightRadiance[MAX_LIGHTS];
uniform float uLightRange[MAX_LIGHTS];
uniform bool uLightShadow[MAX_LIGHTS];

uniform bool uShadows;
uniform sampler2DShadow tShadowMap;

uniform bool  uFog;
uniform vec3  uFogColor;
uniform float uFogNear;
uniform float uFogFar;

in vec3  vWorldPos;
in vec3  vNormal;
in vec2  vUv;
in vec4  vColor;
in float vViewDepth;
in vec4  vLightSpacePos;
out vec4 outColor;

float shadowFactor() {
    vec3 p = vLightSpacePos.xyz / vLightSpacePos.w * 0.5 + 0.5;
    if (p.z > 1.0) {
        return 1.0;
    }
    vec2 texel = 1.0 / vec2(textureSize(tShadowMap, 0));
    float lit = 0.0;
    for (int x = -1; x <= 1; x++) {
        for (int y = -1; y <= 1; y++) {
            lit += texture(tShadowMap, vec3(p.xy + vec2(x, y) * texel, p.z - 0.002));
        }
    }
    return lit / 9.0;
}

float fogFactor(float depth) {
    if (uFogFar <= uFogNear) {
        return depth >= uFogFar ? 1.0 : 0.0;
    }
    return smoothstep(uFogNear, uFogFar, depth);
}

void main() {
    vec4 albedo = uAlbedo * vColor;
    if (uHasAlbedoTex) {
        albedo *= texture(tAlbedo, (uAlbedoTransform * vec3(vUv, 1.0)).xy);
    }

    vec3 color;
    if (uUnlit) {
        color = albedo.rgb + uEmissive;
    } else {
        vec3 n = normalize(vNormal);
        vec3 v = normalize(uCameraPos - vWorldPos);
        color = albedo.rgb * uAmbient;
        for (int i = 0; i < MAX_LIGHTS; i++) {
            if (i >= uLightCount) {
                break;
            }
            vec3 l;
            float atten = 1.0;
            if (uLightType[i] == LIGHT_DIRECTIONAL) {
                l = normalize(-uLightDirection[i]);
                if (uShadows && uLightShadow[i]) {
                    atten = shadowFactor();
                }
            } else {
                vec3 toLight = uLightPosition[i] - vWorldPos;
                l = normalize(toLight);
                if (uLightRange[i] > 0.0) {
                    float a = clamp(1.0 - length(toLight) / uLightRange[i], 0.0, 1.0);
                    atten = a * a;
                }
            }
            float diff = max(dot(n, l), 0.0);
            float spec = 0.0;
            if (diff > 0.0) {
                vec3 h = normalize(l + v);
                spec = pow(max(dot(n, h), 0.0), max(uShininess, 1.0));
            }
            color += (albedo.rgb * diff + uSpecular * spec) * uLightRadiance[i] * atten;
        }
        color += uEmissive;
        if (uFog) {
            color = mix(color, uFogColor, fogFactor(vViewDepth));
        }
    }
    outColor = vec4(color, albedo.a);
}
`

const depthVertSrc = `
layout(location = 0) in vec3 inPosition;
uniform mat4 uLightMVP;
void main() {
    gl_Position = uLightMVP * vec4(inPosition, 1.0);
}
`

const depthFragSrc = `
void main() {}
`

// programKind tells the device how a compiled program is driven.
type programKind int

const (
	kindFullscreen programKind = iota
	kindSurface
)

// sources returns the vertex and fragment sources for p, with its defines
// emitted after the version line.
func sources(p *gpu.Program) (vert, frag string, kind programKind, err error) {
	var body string
	switch p.Name {
	case gpu.ProgramCopy:
		body = copyFragSrc
	case gpu.ProgramFXAA:
		body = fxaaFragSrc
	case gpu.ProgramLuminosity:
		body = luminosityFragSrc
	case gpu.ProgramUnrealBlur:
		if _, err := intDefine(p, "KERNEL_RADIUS"); err != nil {
			return "", "", 0, err
		}
		body = unrealBlurFragSrc
	case gpu.ProgramBloomComposite:
		n, err := intDefine(p, "NUM_MIPS")
		if err != nil {
			return "", "", 0, err
		}
		body = bloomCompositeFragSrc(n)
	case gpu.ProgramFastBlur:
		body = fastBlurFragSrc
	case gpu.ProgramReflector:
		header := defineBlock(p.Defines)
		return glslVersion + header + meshVertSrc, glslVersion + header + reflectorFragSrc, kindSurface, nil
	default:
		return "", "", 0, fmt.Errorf("%w: %q", gpu.ErrUnknownProgram, p.Name)
	}
	header := defineBlock(p.Defines)
	return glslVersion + fullscreenVertSrc, glslVersion + header + body, kindFullscreen, nil
}

func defineBlock(defines map[string]string) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(defines)) {
		fmt.Fprintf(&b, "#define %s %s\n", k, defines[k])
	}
	return b.String()
}

func intDefine(p *gpu.Program, name string) (int, error) {
	v, ok := p.Defines[name]
	if !ok {
		return 0, fmt.Errorf("%s: missing define %s", p.Name, name)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s: invalid %s=%q", p.Name, name, v)
	}
	return n, nil
}
