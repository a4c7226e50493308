package main

import (
	"errors"

	"github.com/spf13/cobra"

	"render-pipeline/config"
	"render-pipeline/core"
	"render-pipeline/gpu"
	"render-pipeline/internal/opengl"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		shadowSize int
		watch      bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open a window and render until it is closed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			var cw *configWatcher
			if watch {
				if g.configPath == "" {
					return errors.New("--watch needs --config")
				}
				if cw, err = watchConfig(g.configPath); err != nil {
					return err
				}
				defer cw.Close()
			}
			return runWindow(cfg.WindowConfig(), cw, func(w *core.Window) (*app, error) {
				fbw, fbh := w.GetFramebufferSize()
				device, err := opengl.New(fbw, fbh, opengl.WithShadowMapSize(shadowSize))
				if err != nil {
					return nil, err
				}
				return newApp(device, cfg, w.Width, w.Height, w.PixelRatio())
			})
		},
	}
	cmd.Flags().IntVar(&shadowSize, "shadow-size", 2048, "shadow map resolution")
	cmd.Flags().BoolVar(&watch, "watch", false, "apply bloom and mirror settings when the config file changes")
	return cmd
}

// runWindow drives the frame loop. cw may be nil.
func runWindow(wc core.WindowConfig, cw *configWatcher, build func(*core.Window) (*app, error)) error {
	window, err := core.NewWindow(wc)
	if err != nil {
		return err
	}
	defer window.Destroy()

	a, err := build(window)
	if err != nil {
		return err
	}
	defer a.Destroy()

	log := core.Logger()
	window.OnResize(func(width, height int, dpr float32) {
		if err := a.Resize(width, height, dpr); err != nil {
			log.Warn("resize failed", "width", width, "height", height, "err", err)
		}
	})

	a.controller = NewController(window, a.room.camera, a.pipeline, a.room.dayNight)
	var changes <-chan config.Config
	if cw != nil {
		changes = cw.Changes()
	}
	clock := core.NewClock()
	for !window.ShouldClose() {
		window.PollEvents()
		if window.IsKeyPressed(core.KeyEscape) {
			break
		}
		select {
		case cfg := <-changes:
			a.applyLive(cfg)
		default:
		}
		time, delta, frame := clock.Tick()
		if err := a.Update(time, delta, frame); err != nil {
			if errors.Is(err, gpu.ErrContextLost) {
				return err
			}
			log.Warn("frame failed", "frame", frame, "err", err)
		}
		window.SwapBuffers()

		if line, ok := a.Status(delta); ok {
			window.SetTitle(wc.Title + " | " + line)
		}
	}
	return nil
}
