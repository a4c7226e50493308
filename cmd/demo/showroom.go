package main

import (
	"fmt"

	"github.com/chewxy/math32"

	"render-pipeline/config"
	"render-pipeline/core"
	"render-pipeline/math"
	"render-pipeline/reflector"
	"render-pipeline/renderer"
	"render-pipeline/scene"
)

// showroom is the demo world: a floor, a mirror wall, glowing props and a
// sun driven by the day/night cycle.
type showroom struct {
	scene    *scene.Scene
	camera   *scene.OrbitCamera
	sun      *scene.Light
	mirror   *reflector.Reflector
	dayNight *DayNight
}

const mirrorDistance = 4

func newShowroom(r *renderer.Renderer, cfg config.Config, aspect float32) (*showroom, error) {
	s := scene.NewScene()
	cam := scene.NewOrbitCamera(math.NewVec3(0, 1, 0), 7, 1.0472, aspect)
	cam.Pitch = 0.25
	cam.UpdatePosition()
	s.SetCamera(&cam.Camera)

	sun := &scene.Light{
		Type:       scene.LightTypeDirectional,
		Direction:  math.NewVec3(0.5, -1, -0.3).Normalize(),
		Color:      core.ColorWhite,
		Intensity:  1,
		CastShadow: true,
	}
	s.AddLight(sun)

	floor := scene.NewMeshNode("Floor", scene.CreatePlane(24, 24, 1))
	floor.Mesh.Material = scene.NewMaterial("Floor", core.Color{R: 0.35, G: 0.35, B: 0.38, A: 1})
	floor.Mesh.Material.AlbedoTexture = scene.NewCheckerTexture("FloorChecker", 256, 32,
		[4]uint8{230, 230, 230, 255}, [4]uint8{120, 120, 130, 255})
	s.AddNode(floor)

	if err := addContent(s, cfg.Scene); err != nil {
		return nil, err
	}

	dayNight := NewDayNight(90)
	dayNight.Apply(s, sun)

	opts := cfg.ReflectorOptions()
	opts.Fog = s.Fog
	mirror, err := reflector.New(r, scene.CreatePlaneXY(8, 4, 1), opts)
	if err != nil {
		return nil, err
	}
	mirror.Node().SetPosition(math.NewVec3(0, 2, -mirrorDistance))
	s.AddNode(mirror.Node())

	return &showroom{scene: s, camera: cam, sun: sun, mirror: mirror, dayNight: dayNight}, nil
}

// addContent loads the configured model, or builds the default props.
func addContent(s *scene.Scene, sc config.Scene) error {
	switch {
	case sc.GLTF != "":
		res, err := scene.LoadGLTF(sc.GLTF)
		if err != nil {
			return err
		}
		for _, n := range res.Roots {
			s.AddNode(n)
		}
		core.Logger().Info("model loaded", "path", sc.GLTF, "nodes", len(res.Roots), "textures", len(res.Textures))
		return nil
	case sc.OBJ != "":
		meshes, err := scene.LoadOBJ(sc.OBJ)
		if err != nil {
			return err
		}
		for _, m := range meshes {
			s.AddNode(scene.NewMeshNode(m.Name, m))
		}
		core.Logger().Info("model loaded", "path", sc.OBJ, "meshes", len(meshes))
		return nil
	}
	addProps(s)
	return nil
}

func addProps(s *scene.Scene) {
	ring := scene.NewMeshNode("Ring", scene.CreateTorus(1, 0.12, 48, 16))
	ring.Mesh.Material = scene.NewEmissiveMaterial("Ring", core.Color{R: 1, G: 0.45, B: 0.1, A: 1}, 3)
	ring.SetPosition(math.NewVec3(0, 1.6, 0))
	ring.OnUpdate = func(n *scene.Node, time, delta float32) {
		n.SetRotation(math.QuaternionFromAxisAngle(math.Vec3Up, time*0.6).
			Mul(math.QuaternionFromAxisAngle(math.Vec3Right, 0.4)))
	}
	s.AddNode(ring)

	// orbs circle the ring and carry a point light each
	orbColors := []core.Color{
		{R: 0.2, G: 0.6, B: 1, A: 1},
		{R: 1, G: 0.2, B: 0.6, A: 1},
		{R: 0.3, G: 1, B: 0.4, A: 1},
	}
	for i, c := range orbColors {
		phase := float32(i) * 2 * math32.Pi / float32(len(orbColors))
		orb := scene.NewMeshNode(fmt.Sprintf("Orb%d", i), scene.CreateSphere(0.2, 16, 12))
		orb.Mesh.Material = scene.NewEmissiveMaterial(orb.Name, c, 2.5)
		light := &scene.Light{Type: scene.LightTypePoint, Color: c, Intensity: 1.5, Range: 6}
		s.AddLight(light)
		orb.OnUpdate = func(n *scene.Node, time, delta float32) {
			a := time*0.8 + phase
			p := math.NewVec3(2.5*math32.Cos(a), 0.6+0.3*math32.Sin(2*a), 2.5*math32.Sin(a))
			n.SetPosition(p)
			light.Position = p
		}
		orb.OnUpdate(orb, 0, 0)
		s.AddNode(orb)
	}

	pedestals := []math.Vec3{{X: -3, Z: 1.5}, {X: 3, Z: 1.5}, {X: 0, Z: 3}}
	for i, p := range pedestals {
		block := scene.NewMeshNode(fmt.Sprintf("Pedestal%d", i), scene.CreateCube(1))
		block.Mesh.Material = scene.NewMaterial(block.Name, core.Color{R: 0.8, G: 0.78, B: 0.72, A: 1})
		block.SetPosition(math.NewVec3(p.X, 0.5, p.Z))
		s.AddNode(block)
	}
}

// Update advances the animations and the light cycle.
func (room *showroom) Update(time, delta float64) {
	room.scene.Update(float32(time), float32(delta))
	room.dayNight.Update(float32(delta))
	room.dayNight.Apply(room.scene, room.sun)
	if fog := room.scene.Fog; fog != nil {
		m := room.mirror.Material()
		m.Set("uFogColor", fog.Color)
		m.Set("uFogFar", fog.Far)
	}
}

// Resize keeps the camera aspect in step with the output.
func (room *showroom) Resize(width, height int) {
	room.camera.UpdateAspectRatio(float32(width), float32(height))
}

func (room *showroom) Destroy() {
	room.mirror.Destroy()
}
