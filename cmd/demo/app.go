package main

import (
	"fmt"

	"render-pipeline/config"
	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/postprocess"
	"render-pipeline/renderer"
)

// app wires one device to the renderer, the showroom and the post chain.
// The frame order is world, camera, then the post chain.
type app struct {
	renderer *renderer.Renderer
	room     *showroom
	pipeline *postprocess.Pipeline
	status   *statusLine

	// controller is nil when nothing drives the camera.
	controller *Controller
}

// newApp takes ownership of device. width and height are logical pixels.
func newApp(device gpu.Device, cfg config.Config, width, height int, dpr float32) (*app, error) {
	r := renderer.New(device)
	room, err := newShowroom(r, cfg, float32(width)/float32(height))
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("scene: %w", err)
	}
	p, err := postprocess.New(r, room.scene, &room.camera.Camera, cfg.PostProcess())
	if err != nil {
		room.Destroy()
		r.Destroy()
		return nil, err
	}
	a := &app{renderer: r, room: room, pipeline: p, status: newStatusLine(1)}
	if err := a.Resize(width, height, dpr); err != nil {
		a.Destroy()
		return nil, err
	}
	core.Logger().Info("demo ready", "device", device.Name(), "width", width, "height", height, "dpr", dpr)
	return a, nil
}

func (a *app) Resize(width, height int, dpr float32) error {
	if err := a.pipeline.Resize(width, height, dpr); err != nil {
		return err
	}
	a.room.Resize(width, height)
	return nil
}

func (a *app) Update(time, delta float64, frame uint64) error {
	a.room.Update(time, delta)
	if a.controller != nil {
		a.controller.Update(float32(delta))
	}
	return a.pipeline.Update(time, delta, frame)
}

// Status returns a new status line when one is due.
func (a *app) Status(delta float64) (string, bool) {
	if !a.status.Tick(delta) {
		return "", false
	}
	return a.status.Compose(a.renderer, a.pipeline, a.room.mirror, a.room.dayNight), true
}

func (a *app) Destroy() {
	a.pipeline.Destroy()
	a.room.Destroy()
	a.renderer.Destroy()
}
