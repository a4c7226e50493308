package scene

import "render-pipeline/core"

// Material is a Blinn-Phong surface. Devices shade
//
//	albedo*texture*(ambient + diffuse) + specular + emissive
//
// or, when Unlit, albedo*texture + emissive. Emissive channels above the
// luminosity threshold are what the bloom pass picks up.
type Material struct {
	Name          string
	Albedo        core.Color
	AlbedoTexture *Texture
	Specular      core.Color
	Shininess     float32
	Emissive      core.Color
	Unlit         bool
}

func phong(name string, albedo core.Color, specular float32) *Material {
	return &Material{
		Name:      name,
		Albedo:    albedo,
		Specular:  core.Color{R: specular, G: specular, B: specular, A: 1},
		Shininess: 32,
	}
}

// DefaultMaterial is used for meshes without a material.
func DefaultMaterial() *Material { return phong("Default", core.ColorWhite, 0.3) }

func NewMaterial(name string, albedo core.Color) *Material { return phong(name, albedo, 0.5) }

// NewEmissiveMaterial creates an unlit material that glows with
// color*intensity and reflects nothing.
func NewEmissiveMaterial(name string, color core.Color, intensity float32) *Material {
	return &Material{
		Name:     name,
		Albedo:   core.ColorBlack,
		Emissive: color.Scale(intensity),
		Unlit:    true,
	}
}
