package scene

import (
	"render-pipeline/core"
	"render-pipeline/math"
)

// Scene is the root of a node graph plus the lighting environment shared
// by every pass that renders it.
type Scene struct {
	Root       *Node
	Camera     *Camera
	Lights     []*Light
	Ambient    core.Color
	Background core.Color
	Fog        *Fog
}

// Light kinds. Only the first directional light casts shadows.
const (
	LightTypeDirectional = iota
	LightTypePoint
)

// Light is a directional or point light. Range bounds point lights.
type Light struct {
	Type       int
	Position   math.Vec3
	Direction  math.Vec3
	Color      core.Color
	Intensity  float32
	Range      float32
	CastShadow bool
}

// Fog fades fragments linearly towards Color between Near and Far.
type Fog struct {
	Color core.Color
	Near  float32
	Far   float32
}

func NewFog(color core.Color, near, far float32) *Fog {
	return &Fog{Color: color, Near: near, Far: far}
}

// Factor returns how much of the fog colour is mixed in at depth.
func (f *Fog) Factor(depth float32) float32 {
	if f.Far <= f.Near {
		if depth >= f.Far {
			return 1
		}
		return 0
	}
	t := min(max((depth-f.Near)/(f.Far-f.Near), 0), 1)
	return t * t * (3 - 2*t)
}

func NewScene() *Scene {
	return &Scene{
		Root:       NewNode("Root"),
		Lights:     make([]*Light, 0),
		Ambient:    core.Color{R: 0.2, G: 0.2, B: 0.2, A: 1.0},
		Background: core.ColorBlack,
	}
}

func (s *Scene) SetCamera(camera *Camera) {
	s.Camera = camera
}

func (s *Scene) AddNode(node *Node) {
	s.Root.AddChild(node)
}

func (s *Scene) AddLight(light *Light) {
	s.Lights = append(s.Lights, light)
}

// DirectionalLight returns the first directional light, or nil.
func (s *Scene) DirectionalLight() *Light {
	for _, l := range s.Lights {
		if l != nil && l.Type == LightTypeDirectional {
			return l
		}
	}
	return nil
}

func (s *Scene) Update(time, delta float32) {
	if s.Root != nil {
		s.Root.Update(time, delta)
	}
}

// GetVisibleNodes returns all nodes with meshes whose whole ancestry is
// visible.
func (s *Scene) GetVisibleNodes() []*Node {
	var visible []*Node
	for n := range s.Root.VisibleNodes() {
		if n.Mesh != nil {
			visible = append(visible, n)
		}
	}
	return visible
}
