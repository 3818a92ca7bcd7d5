package lod

import (
	"errors"
	"fmt"

	"github.com/Faultbox/meshlod/pkg/mesh"
)

// Allocator errors.
var (
	ErrInvalidConfig      = errors.New("lod: invalid config")
	ErrNoLevels           = errors.New("lod: no levels")
	ErrLevelOutOfRange    = errors.New("lod: level out of range")
	ErrInstanceOutOfRange = errors.New("lod: instance out of range")
)

// Config holds the allocator constants.
type Config struct {
	// Budget is the target number of rendered triangles per frame.
	Budget int `yaml:"budget"`
	// Cooldown is the minimum number of frames between two changes of the
	// same instance when hysteresis is on.
	Cooldown int `yaml:"cooldown"`
	// MaxInstances caps the instance grid along each side.
	MaxInstances int `yaml:"max_instances"`
	// MaxLevel caps the coarsest usable level; 0 uses every built level.
	MaxLevel int `yaml:"max_level"`
	// Spacing is the distance between neighbouring instances in multiples of
	// the mesh extent.
	Spacing float32 `yaml:"spacing"`
}

// DefaultConfig returns a one million triangle budget with a 15 frame cooldown
// over at most 50x50 instances.
func DefaultConfig() Config {
	return Config{
		Budget:       1_000_000,
		Cooldown:     15,
		MaxInstances: 50,
		MaxLevel:     0,
		Spacing:      1.0,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Budget < 0:
		return fmt.Errorf("%w: budget %d", ErrInvalidConfig, c.Budget)
	case c.Cooldown < 0:
		return fmt.Errorf("%w: cooldown %d", ErrInvalidConfig, c.Cooldown)
	case c.MaxInstances < 1:
		return fmt.Errorf("%w: max instances %d", ErrInvalidConfig, c.MaxInstances)
	case c.MaxLevel < 0:
		return fmt.Errorf("%w: max level %d", ErrInvalidConfig, c.MaxLevel)
	case c.Spacing <= 0:
		return fmt.Errorf("%w: spacing %g", ErrInvalidConfig, c.Spacing)
	}
	return nil
}

// LevelInfo is what the allocator needs to know about one LOD level.
type LevelInfo struct {
	Triangles int
	Vertices  int
}

// LevelsFromMeshes summarizes an LOD sequence.
func LevelsFromMeshes(levels []mesh.Mesh) []LevelInfo {
	out := make([]LevelInfo, len(levels))
	for i := range levels {
		out[i] = LevelInfo{
			Triangles: levels[i].TriangleCount(),
			Vertices:  levels[i].VertexCount(),
		}
	}
	return out
}
