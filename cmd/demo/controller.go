package main

import (
	"github.com/chewxy/math32"

	"render-pipeline/core"
	"render-pipeline/postprocess"
	"render-pipeline/scene"
)

// keySource is the part of core.Window the controller reads.
type keySource interface {
	IsKeyPressed(key int) bool
}

// Controller maps keys to camera and effect changes:
//
//	arrows   orbit
//	[ ]      zoom
//	- =      bloom strength
//	B        bloom on/off
//	N        pause the day/night cycle
//	R        reset the camera
type Controller struct {
	keys     keySource
	camera   *scene.OrbitCamera
	pipeline *postprocess.Pipeline
	dayNight *DayNight

	orbitSpeed float32 // radians per second
	zoomSpeed  float32 // units per second

	strength float32 // last strength while bloom is toggled off
	bloomOff bool
	wasDown  map[int]bool

	home struct{ yaw, pitch, distance float32 }
}

func NewController(keys keySource, cam *scene.OrbitCamera, p *postprocess.Pipeline, dn *DayNight) *Controller {
	c := &Controller{
		keys:       keys,
		camera:     cam,
		pipeline:   p,
		dayNight:   dn,
		orbitSpeed: 1.5,
		zoomSpeed:  4,
		wasDown:    map[int]bool{},
	}
	c.home.yaw, c.home.pitch, c.home.distance = cam.Yaw, cam.Pitch, cam.Distance
	return c
}

// pressed reports a key going down this frame.
func (c *Controller) pressed(key int) bool {
	down := c.keys.IsKeyPressed(key)
	was := c.wasDown[key]
	c.wasDown[key] = down
	return down && !was
}

func (c *Controller) Update(delta float32) {
	var yaw, pitch, zoom float32
	if c.keys.IsKeyPressed(core.KeyLeft) {
		yaw -= c.orbitSpeed * delta
	}
	if c.keys.IsKeyPressed(core.KeyRight) {
		yaw += c.orbitSpeed * delta
	}
	if c.keys.IsKeyPressed(core.KeyUp) {
		pitch += c.orbitSpeed * delta
	}
	if c.keys.IsKeyPressed(core.KeyDown) {
		pitch -= c.orbitSpeed * delta
	}
	if c.keys.IsKeyPressed(core.KeyLeftBracket) {
		zoom -= c.zoomSpeed * delta
	}
	if c.keys.IsKeyPressed(core.KeyRightBracket) {
		zoom += c.zoomSpeed * delta
	}
	if yaw != 0 || pitch != 0 {
		c.camera.Orbit(yaw, pitch)
	}
	if zoom != 0 {
		c.camera.Zoom(zoom)
	}

	if c.pressed(core.KeyR) {
		c.camera.Yaw, c.camera.Pitch, c.camera.Distance = c.home.yaw, c.home.pitch, c.home.distance
		c.camera.UpdatePosition()
	}
	if c.pressed(core.KeyN) {
		c.dayNight.Active = !c.dayNight.Active
	}

	opts := c.pipeline.Options()
	if c.pressed(core.KeyB) {
		if c.bloomOff {
			c.pipeline.SetBloom(c.strength, opts.BloomRadius)
		} else {
			c.strength = opts.BloomStrength
			c.pipeline.SetBloom(0, opts.BloomRadius)
		}
		c.bloomOff = !c.bloomOff
		core.Logger().Info("bloom toggled", "on", !c.bloomOff)
	}
	if c.bloomOff {
		return
	}
	step := float32(0)
	if c.keys.IsKeyPressed(core.KeyMinus) {
		step -= delta
	}
	if c.keys.IsKeyPressed(core.KeyEqual) {
		step += delta
	}
	if step != 0 {
		c.pipeline.SetBloom(math32.Max(0, opts.BloomStrength+step), opts.BloomRadius)
	}
}
