package core

import (
	"fmt"
	"strconv"
	"strings"

	"render-pipeline/math"
)

// Color is linear RGBA. Channels may exceed 1 for emissive values.
type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite  = Color{1, 1, 1, 1}
	ColorBlack  = Color{0, 0, 0, 1}
	ColorRed    = Color{1, 0, 0, 1}
	ColorGreen  = Color{0, 1, 0, 1}
	ColorBlue   = Color{0, 0, 1, 1}
	ColorYellow = Color{1, 1, 0, 1}
)

// ColorFromHex converts a packed 0xRRGGBB value to an opaque colour.
func ColorFromHex(hex uint32) Color {
	return Color{
		R: float32((hex>>16)&0xff) / 255,
		G: float32((hex>>8)&0xff) / 255,
		B: float32(hex&0xff) / 255,
		A: 1,
	}
}

// ParseColor accepts "#rrggbb", "rrggbb" or "0xrrggbb".
func ParseColor(s string) (Color, error) {
	t := strings.TrimSpace(strings.ToLower(s))
	t = strings.TrimPrefix(t, "#")
	t = strings.TrimPrefix(t, "0x")
	if len(t) != 6 {
		return Color{}, fmt.Errorf("invalid colour %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(t, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return ColorFromHex(uint32(v)), nil
}

// Hex packs the RGB channels back into 0xRRGGBB.
func (c Color) Hex() uint32 {
	return uint32(clamp01(c.R)*255+0.5)<<16 | uint32(clamp01(c.G)*255+0.5)<<8 | uint32(clamp01(c.B)*255+0.5)
}

func (c Color) Vec3() math.Vec3 {
	return math.Vec3{X: c.R, Y: c.G, Z: c.B}
}

func (c Color) Vec4() math.Vec4 {
	return math.Vec4{X: c.R, Y: c.G, Z: c.B, W: c.A}
}

func (c Color) Mul(other Color) Color {
	return Color{c.R * other.R, c.G * other.G, c.B * other.B, c.A * other.A}
}

func (c Color) Scale(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s, c.A}
}

func clamp01(v float32) float32 { return min(max(v, 0), 1) }

// Vertex is the interleaved layout both devices upload. A zero Color
// is treated as white.
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	UV       math.Vec2
	Color    Color
}

// Transform is a node's local position, rotation and scale.
type Transform struct {
	Position math.Vec3
	Rotation math.Quaternion
	Scale    math.Vec3
}

func NewTransform() Transform {
	return Transform{
		Position: math.Vec3Zero,
		Rotation: math.QuaternionIdentity(),
		Scale:    math.Vec3One,
	}
}

// GetMatrix returns the local matrix: scale, then rotation, then translation.
func (t Transform) GetMatrix() math.Mat4 {
	return math.Mat4TRS(t.Position, t.Rotation, t.Scale)
}

// ClearValue is what BeginPass writes into a target before drawing.
type ClearValue struct {
	Color Color
	Depth float32
}

// DefaultClearValue clears to opaque black and the far depth.
func DefaultClearValue() ClearValue {
	return ClearValue{Color: ColorBlack, Depth: 1}
}
