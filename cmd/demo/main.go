// Command demo drives the bloom pipeline and the planar reflector over a
// small showroom scene, either in a window or headless into a PNG.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"render-pipeline/config"
	"render-pipeline/core"
)

type globalFlags struct {
	configPath string
	model      string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "demo",
		Short:        "Bloom and planar reflection demo",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(g.logLevel)
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "TOML settings file")
	root.PersistentFlags().StringVar(&g.model, "model", "", "glTF or OBJ model to show instead of the showroom")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(newRunCmd(g), newRenderCmd(g), newConfigCmd(g))
	return root
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	core.SetLogger(slog.New(h))
	return nil
}

// load returns the settings named by --config, or the defaults. --model
// overrides the scene table.
func (g *globalFlags) load() (config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return cfg, err
		}
	}
	if g.model != "" {
		cfg.Scene.GLTF = ""
		cfg.Scene.OBJ = ""
		if strings.EqualFold(filepath.Ext(g.model), ".obj") {
			cfg.Scene.OBJ = g.model
		} else {
			cfg.Scene.GLTF = g.model
		}
	}
	return cfg, nil
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config [file]",
		Short: "Write the effective settings as TOML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return config.Save(args[0], cfg)
			}
			b, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
