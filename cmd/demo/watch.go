package main

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"render-pipeline/config"
	"render-pipeline/core"
)

// configWatcher reloads the settings file when it changes. Reloaded
// configs arrive on Changes; the render loop applies them on its own
// goroutine.
type configWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan config.Config
	done    chan struct{}
}

// watchConfig watches the directory of path so that editors which replace
// the file on save are still seen.
func watchConfig(path string) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	cw := &configWatcher{
		path:    filepath.Clean(path),
		watcher: w,
		changes: make(chan config.Config, 1),
		done:    make(chan struct{}),
	}
	go cw.loop()
	return cw, nil
}

func (cw *configWatcher) loop() {
	defer close(cw.done)
	log := core.Logger()
	for {
		select {
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != cw.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg, err := config.Load(cw.path)
			if err != nil {
				log.Warn("config reload failed", "err", err)
				continue
			}
			// keep only the newest
			select {
			case <-cw.changes:
			default:
			}
			cw.changes <- cfg
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher", "err", err)
		}
	}
}

func (cw *configWatcher) Changes() <-chan config.Config { return cw.changes }

func (cw *configWatcher) Close() error {
	err := cw.watcher.Close()
	<-cw.done
	return err
}

// applyLive pushes the settings that can change without reallocating:
// bloom strength, radius and threshold, and the mirror tint.
func (a *app) applyLive(cfg config.Config) {
	a.pipeline.SetBloom(cfg.Bloom.Strength, cfg.Bloom.Radius)
	a.pipeline.SetLuminosityThreshold(cfg.Bloom.LuminosityThreshold)
	if col, err := core.ParseColor(cfg.Reflector.Color); err == nil {
		a.room.mirror.Material().Set("uColor", col)
	}
	core.Logger().Info("config applied", "strength", cfg.Bloom.Strength, "radius", cfg.Bloom.Radius)
}
