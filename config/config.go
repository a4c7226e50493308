// Package config loads the demo settings from TOML. Fields missing from the
// file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"render-pipeline/core"
	"render-pipeline/postprocess"
	"render-pipeline/reflector"
)

type Config struct {
	Window    Window    `toml:"window"`
	Bloom     Bloom     `toml:"bloom"`
	Reflector Reflector `toml:"reflector"`
	Scene     Scene     `toml:"scene"`
}

type Window struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
	VSync  bool   `toml:"vsync"`
}

type Bloom struct {
	LuminosityThreshold float32   `toml:"luminosity_threshold"`
	LuminositySmoothing float32   `toml:"luminosity_smoothing"`
	Strength            float32   `toml:"strength"`
	Radius              float32   `toml:"radius"`
	KernelSizes         []int     `toml:"kernel_sizes"`
	BaseFactors         []float32 `toml:"base_factors"`
}

type Reflector struct {
	Color          string  `toml:"color"`
	Width          int     `toml:"width"`
	Height         int     `toml:"height"`
	ClipBias       float32 `toml:"clip_bias"`
	BlurIterations int     `toml:"blur_iterations"`
	Dithering      bool    `toml:"dithering"`
}

// Scene selects the demo content. With both paths empty the default
// showroom is built; GLTF wins when both are set.
type Scene struct {
	GLTF string `toml:"gltf"`
	OBJ  string `toml:"obj"`
}

func Default() Config {
	win := core.DefaultWindowConfig()
	bloom := postprocess.DefaultOptions()
	ref := reflector.DefaultOptions()
	return Config{
		Window: Window{
			Width:  win.Width,
			Height: win.Height,
			Title:  win.Title,
			VSync:  win.VSync,
		},
		Bloom: Bloom{
			LuminosityThreshold: bloom.LuminosityThreshold,
			LuminositySmoothing: bloom.LuminositySmoothing,
			Strength:            bloom.BloomStrength,
			Radius:              bloom.BloomRadius,
			KernelSizes:         bloom.KernelSizes,
			BaseFactors:         bloom.BaseFactors,
		},
		Reflector: Reflector{
			Color:          fmt.Sprintf("#%06x", ref.Color.Hex()),
			Width:          ref.Width,
			Height:         ref.Height,
			ClipBias:       ref.ClipBias,
			BlurIterations: ref.BlurIterations,
			Dithering:      true,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return cfg, fmt.Errorf("config: %s:%d:%d: %w", path, row, col, err)
		}
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	core.Logger().Debug("config loaded", "path", path)
	return cfg, nil
}

// Marshal encodes cfg as TOML.
func Marshal(cfg Config) ([]byte, error) {
	b, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return b, nil
}

// Save writes cfg as TOML.
func Save(path string, cfg Config) error {
	b, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width < 1 || c.Window.Height < 1 {
		errs = append(errs, fmt.Errorf("window: invalid size %dx%d", c.Window.Width, c.Window.Height))
	}
	if err := c.PostProcess().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bloom: %w", err))
	}
	if c.Bloom.Strength < 0 {
		errs = append(errs, fmt.Errorf("bloom: negative strength %v", c.Bloom.Strength))
	}
	if c.Bloom.Radius < 0 || c.Bloom.Radius > 1 {
		errs = append(errs, fmt.Errorf("bloom: radius %v outside [0, 1]", c.Bloom.Radius))
	}
	if _, err := core.ParseColor(c.Reflector.Color); err != nil {
		errs = append(errs, fmt.Errorf("reflector: %w", err))
	}
	if c.Reflector.Width < 1 || c.Reflector.Height < 1 {
		errs = append(errs, fmt.Errorf("reflector: invalid size %dx%d", c.Reflector.Width, c.Reflector.Height))
	}
	if c.Reflector.BlurIterations < 0 {
		errs = append(errs, fmt.Errorf("reflector: negative blur iterations %d", c.Reflector.BlurIterations))
	}
	return errors.Join(errs...)
}

func (c Config) WindowConfig() core.WindowConfig {
	win := core.DefaultWindowConfig()
	win.Width = c.Window.Width
	win.Height = c.Window.Height
	win.Title = c.Window.Title
	win.VSync = c.Window.VSync
	return win
}

func (c Config) PostProcess() postprocess.Options {
	opts := postprocess.DefaultOptions()
	opts.LuminosityThreshold = c.Bloom.LuminosityThreshold
	opts.LuminositySmoothing = c.Bloom.LuminositySmoothing
	opts.BloomStrength = c.Bloom.Strength
	opts.BloomRadius = c.Bloom.Radius
	opts.KernelSizes = c.Bloom.KernelSizes
	opts.BaseFactors = c.Bloom.BaseFactors
	opts.Mips = len(c.Bloom.KernelSizes)
	return opts
}

// ReflectorOptions converts the reflector table. The colour must already
// have passed Validate.
func (c Config) ReflectorOptions() reflector.Options {
	opts := reflector.DefaultOptions()
	if col, err := core.ParseColor(c.Reflector.Color); err == nil {
		opts.Color = col
	}
	opts.Width = c.Reflector.Width
	opts.Height = c.Reflector.Height
	opts.ClipBias = c.Reflector.ClipBias
	opts.BlurIterations = c.Reflector.BlurIterations
	opts.Dithering = c.Reflector.Dithering
	return opts
}
