package gpu

import (
	"render-pipeline/core"
	"render-pipeline/math"
	"render-pipeline/scene"
)

// Typed readers used by backends. A missing or mistyped cell reads as the
// zero value.

func (m *Material) Float(name string) float32 {
	switch v := m.Value(name).(type) {
	case float32:
		return v
	case float64:
		return float32(v)
	case int:
		return float32(v)
	case int32:
		return float32(v)
	}
	return 0
}

func (m *Material) Int(name string) int {
	switch v := m.Value(name).(type) {
	case int:
		return v
	case int32:
		return int(v)
	case float32:
		return int(v)
	}
	return 0
}

func (m *Material) Floats(name string) []float32 {
	v, _ := m.Value(name).([]float32)
	return v
}

func (m *Material) Vec2(name string) math.Vec2 {
	v, _ := m.Value(name).(math.Vec2)
	return v
}

func (m *Material) Vec3(name string) math.Vec3 {
	switch v := m.Value(name).(type) {
	case math.Vec3:
		return v
	case core.Color:
		return v.Vec3()
	}
	return math.Vec3{}
}

func (m *Material) Mat3(name string) math.Mat3 {
	if v, ok := m.Value(name).(math.Mat3); ok {
		return v
	}
	return math.Mat3Identity()
}

func (m *Material) Mat4(name string) math.Mat4 {
	if v, ok := m.Value(name).(math.Mat4); ok {
		return v
	}
	return math.Mat4Identity()
}

// Texture returns a render-target texture bound under name.
func (m *Material) Texture(name string) *Texture {
	v, _ := m.Value(name).(*Texture)
	return v
}

// Image returns a CPU-side scene texture bound under name.
func (m *Material) Image(name string) *scene.Texture {
	v, _ := m.Value(name).(*scene.Texture)
	return v
}
