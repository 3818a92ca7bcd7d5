// Package viewer runs the interactive LOD viewer: an SDL2 window showing a
// grid of mesh instances whose levels are chosen by the budget allocator.
package viewer

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/internal/config"
	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/internal/lod"
	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
	"github.com/Faultbox/meshlod/pkg/simplify"
)

// autoLevels marks the allocator-driven mode.
const autoLevels = -1

// ActionKind enumerates what a key can do.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionQuit
	ActionMoreInstances
	ActionFewerInstances
	ActionToggleHysteresis
	ActionSetPolicy
	ActionAutoLevels
	ActionForceLevel
	ActionBudgetUp
	ActionBudgetDown
	ActionToggleWireframe
	ActionToggleTint
	ActionToggleOrbit
	ActionResetCamera
)

// Action is a user command with its argument.
type Action struct {
	Kind ActionKind
	// Value is the policy for ActionSetPolicy or the level for ActionForceLevel.
	Value int
}

// Session is the viewer state that does not touch the GPU: the source mesh,
// its levels, the allocator and the current mode.
type Session struct {
	cfg    *config.Config
	source mesh.Mesh
	levels simplify.Levels
	alloc  *lod.Allocator

	instances  int
	hysteresis bool
	manual     int
	frame      int64

	// rebuilt is set when levels changed and GPU buffers must be replaced.
	rebuilt bool
}

// NewSession builds the levels of m with the configured policy and sizes
// the instance grid.
func NewSession(cfg *config.Config, m mesh.Mesh) (*Session, error) {
	s := &Session{
		cfg:        cfg,
		source:     m,
		instances:  cfg.LOD.Instances,
		hysteresis: cfg.LOD.Hysteresis,
		manual:     autoLevels,
	}
	if err := s.build(cfg.Mesh.Policy); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) build(policy simplify.Policy) error {
	opts := s.cfg.Options()
	opts.Logger = logger.Named("simplify")

	start := time.Now()
	levels, err := simplify.BuildLevels(s.source, policy, opts)
	if err != nil {
		return fmt.Errorf("building %s levels: %w", policy, err)
	}

	alloc, err := lod.New(lod.LevelsFromMeshes(levels.Meshes), levels.Meshes[0].Bounds, s.cfg.LOD.Config)
	if err != nil {
		return fmt.Errorf("creating allocator: %w", err)
	}

	s.levels = levels
	s.alloc = alloc
	s.rebuilt = true
	s.resize()

	logger.Info("levels built",
		zap.Stringer("policy", policy),
		zap.Int("levels", levels.Len()),
		zap.Ints("resolutions", levels.Resolutions),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (s *Session) resize() {
	s.alloc.Resize(s.instances, s.instances)
	if s.manual != autoLevels {
		if err := s.alloc.SetAll(min(s.manual, s.alloc.MaxLevel())); err != nil {
			logger.Warn("manual level rejected", zap.Error(err))
		}
	}
}

// Apply performs one action. Rendering-only actions are ignored here.
func (s *Session) Apply(a Action) error {
	switch a.Kind {
	case ActionMoreInstances:
		if s.instances < s.cfg.LOD.MaxInstances {
			s.instances++
			s.resize()
		}
	case ActionFewerInstances:
		if s.instances > 1 {
			s.instances--
			s.resize()
		}
	case ActionToggleHysteresis:
		s.hysteresis = !s.hysteresis
	case ActionSetPolicy:
		p := simplify.Policy(a.Value)
		if p == s.levels.Policy {
			return nil
		}
		return s.build(p)
	case ActionAutoLevels:
		s.manual = autoLevels
	case ActionForceLevel:
		if err := s.alloc.SetAll(a.Value); err != nil {
			return err
		}
		s.manual = a.Value
	case ActionBudgetUp:
		s.alloc.SetBudget(max(s.alloc.Budget()*2, 1))
	case ActionBudgetDown:
		s.alloc.SetBudget(s.alloc.Budget() / 2)
	}
	return nil
}

// Step advances one frame and, in auto mode, lets the allocator move one
// instance.
func (s *Session) Step(model, view math.Mat4) {
	if s.manual == autoLevels {
		s.alloc.Recompute(model, view, s.frame, s.hysteresis)
		if c, ok := s.alloc.LastChange(); ok {
			logger.Debug("level changed",
				zap.Int("row", c.Row),
				zap.Int("col", c.Col),
				zap.Int("from", c.From),
				zap.Int("to", c.To),
				zap.Int("triangles", s.alloc.Triangles()))
		}
	}
	s.frame++
}

// TakeRebuilt reports whether levels changed since the last call.
func (s *Session) TakeRebuilt() bool {
	r := s.rebuilt
	s.rebuilt = false
	return r
}

// Levels returns the current LOD sequence.
func (s *Session) Levels() *simplify.Levels {
	return &s.levels
}

// Allocator returns the instance allocator.
func (s *Session) Allocator() *lod.Allocator {
	return s.alloc
}

// Manual returns the forced level, or false in auto mode.
func (s *Session) Manual() (int, bool) {
	return s.manual, s.manual != autoLevels
}

// Hysteresis reports whether the cooldown is on.
func (s *Session) Hysteresis() bool {
	return s.hysteresis
}

// GridBounds returns the box spanning every instance.
func (s *Session) GridBounds() (math.Vec3, math.Vec3) {
	b := s.levels.Meshes[0].Bounds
	rows, cols := s.alloc.Size()
	far := s.alloc.InstanceOffset(max(rows-1, 0), max(cols-1, 0))
	return math.V3(b.Min), math.V3(b.Max).Add(far)
}

// Title summarizes the session for the window title.
func (s *Session) Title() string {
	mode := "auto"
	if s.manual != autoLevels {
		mode = fmt.Sprintf("level %d", s.manual)
	}
	hyst := "off"
	if s.hysteresis {
		hyst = "on"
	}

	hist := s.alloc.Histogram()
	parts := make([]string, len(hist))
	for i, n := range hist {
		parts[i] = fmt.Sprint(n)
	}

	rows, cols := s.alloc.Size()
	return fmt.Sprintf("meshlod | %s | %dx%d | %s | tris %d / %d | levels [%s] | hysteresis %s",
		s.levels.Policy, rows, cols, mode,
		s.alloc.Triangles(), s.alloc.Budget(),
		strings.Join(parts, " "), hyst)
}
