// Package config handles meshlod configuration loading and management.
package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/meshlod/internal/lod"
	"github.com/Faultbox/meshlod/pkg/simplify"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Config holds all viewer and tool settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Mesh     MeshConfig     `yaml:"mesh"`
	Simplify SimplifyConfig `yaml:"simplify"`
	LOD      LODConfig      `yaml:"lod"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	FPSLimit   int  `yaml:"fps_limit"`
}

// MeshConfig selects the input mesh and how it is simplified.
type MeshConfig struct {
	Path   string          `yaml:"path"`
	Policy simplify.Policy `yaml:"policy"`
}

// SimplifyConfig holds the level build schedule.
type SimplifyConfig struct {
	simplify.Schedule `yaml:",inline"`
	Workers           int `yaml:"workers"`
}

// LODConfig holds the instance allocator settings.
type LODConfig struct {
	lod.Config `yaml:",inline"`
	// Instances is the initial grid side.
	Instances  int  `yaml:"instances"`
	Hysteresis bool `yaml:"hysteresis"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,
		},
		Mesh: MeshConfig{
			Policy: simplify.Mean,
		},
		Simplify: SimplifyConfig{
			Schedule: simplify.DefaultSchedule(),
			Workers:  1,
		},
		LOD: LODConfig{
			Config:     lod.DefaultConfig(),
			Instances:  10,
			Hysteresis: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Options returns the simplify options described by the config.
func (c *Config) Options() simplify.Options {
	opts := simplify.DefaultOptions()
	opts.Schedule = c.Simplify.Schedule
	opts.Workers = c.Simplify.Workers
	return opts
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Graphics.Width, c.Graphics.Height)
	}
	if _, err := c.Simplify.Resolutions(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Simplify.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalid, c.Simplify.Workers)
	}
	if err := c.LOD.Config.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.LOD.Instances < 0 || c.LOD.Instances > c.LOD.MaxInstances {
		return fmt.Errorf("%w: instances %d not in [0, %d]", ErrInvalid, c.LOD.Instances, c.LOD.MaxInstances)
	}
	return nil
}
