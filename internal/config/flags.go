package config

import (
	"flag"

	"github.com/Faultbox/meshlod/pkg/simplify"
)

var (
	flagConfig       = flag.String("config", "", "Path to config file")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")
	flagMesh         = flag.String("mesh", "", "Mesh file (PLY or OBJ)")
	flagPolicy       = flag.String("policy", "", "Simplification policy")
	flagBudget       = flag.Int("budget", -1, "Triangle budget per frame")
	flagInstances    = flag.Int("instances", -1, "Instance grid side")
	flagNoHysteresis = flag.Bool("no-hysteresis", false, "Disable the per-instance cooldown")
	flagWindowed     = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen   = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth        = flag.Int("width", 0, "Window width")
	flagHeight       = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config. A trailing positional
// argument names the mesh when -mesh is not set.
func applyFlags(cfg *Config) error {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagMesh != "" {
		cfg.Mesh.Path = *flagMesh
	} else if flag.NArg() > 0 {
		cfg.Mesh.Path = flag.Arg(0)
	}
	if *flagPolicy != "" {
		p, err := simplify.ParsePolicy(*flagPolicy)
		if err != nil {
			return err
		}
		cfg.Mesh.Policy = p
	}
	if *flagBudget >= 0 {
		cfg.LOD.Budget = *flagBudget
	}
	if *flagInstances >= 0 {
		cfg.LOD.Instances = *flagInstances
	}
	if *flagNoHysteresis {
		cfg.LOD.Hysteresis = false
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	return nil
}
