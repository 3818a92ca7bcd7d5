package viewer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshlod/internal/config"
	"github.com/Faultbox/meshlod/internal/lod"
	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
	"github.com/Faultbox/meshlod/pkg/simplify"
)

// grid returns an n x n heightfield with a bump, dense enough that every
// level of the default schedule differs.
func grid(n int) mesh.Mesh {
	var m mesh.Mesh
	for z := 0; z <= n; z++ {
		for x := 0; x <= n; x++ {
			fx, fz := float32(x)/float32(n), float32(z)/float32(n)
			y := 0.2 * (1 - (fx-0.5)*(fx-0.5)*4) * (1 - (fz-0.5)*(fz-0.5)*4)
			m.Vertices = append(m.Vertices, fx, y, fz)
		}
	}
	row := uint32(n + 1)
	for z := uint32(0); z < uint32(n); z++ {
		for x := uint32(0); x < uint32(n); x++ {
			a := z*row + x
			m.Faces = append(m.Faces, a, a+row, a+1, a+1, a+row, a+row+1)
		}
	}
	return m
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.LOD.Instances = 3
	cfg.LOD.MaxInstances = 4
	cfg.LOD.Budget = 0
	cfg.Simplify.Schedule = simplify.Schedule{Ratio: 4, Steps: 3}
	return cfg
}

func TestNewSession(t *testing.T) {
	s, err := NewSession(testConfig(), grid(24))
	require.NoError(t, err)

	assert.Equal(t, 4, s.Levels().Len())
	assert.Equal(t, simplify.Mean, s.Levels().Policy)
	rows, cols := s.Allocator().Size()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.True(t, s.TakeRebuilt())
	assert.False(t, s.TakeRebuilt())
	assert.True(t, s.Hysteresis())
}

func TestSessionStepCoarsensOverBudget(t *testing.T) {
	s, err := NewSession(testConfig(), grid(24))
	require.NoError(t, err)
	before := s.Allocator().Triangles()

	view := math.LookAt(math.Vec3{X: 1, Y: 3, Z: 6}, math.Vec3{X: 1, Z: 1}, math.Vec3{Y: 1})
	for i := 0; i < 5; i++ {
		s.Step(math.Identity(), view)
	}

	assert.Less(t, s.Allocator().Triangles(), before)
	assert.Equal(t, 9-5, s.Allocator().Histogram()[0])
}

func TestSessionActions(t *testing.T) {
	s, err := NewSession(testConfig(), grid(24))
	require.NoError(t, err)
	s.TakeRebuilt()

	require.NoError(t, s.Apply(Action{Kind: ActionMoreInstances}))
	require.NoError(t, s.Apply(Action{Kind: ActionMoreInstances}))
	rows, _ := s.Allocator().Size()
	assert.Equal(t, 4, rows, "capped at MaxInstances")

	require.NoError(t, s.Apply(Action{Kind: ActionToggleHysteresis}))
	assert.False(t, s.Hysteresis())

	require.NoError(t, s.Apply(Action{Kind: ActionForceLevel, Value: 2}))
	level, manual := s.Manual()
	assert.True(t, manual)
	assert.Equal(t, 2, level)
	assert.Equal(t, []int{0, 0, 16, 0}, s.Allocator().Histogram())

	// Manual mode survives a resize and freezes the allocator.
	require.NoError(t, s.Apply(Action{Kind: ActionFewerInstances}))
	assert.Equal(t, []int{0, 0, 9, 0}, s.Allocator().Histogram())
	s.Step(math.Identity(), math.Translate(0, 0, -5))
	assert.Equal(t, []int{0, 0, 9, 0}, s.Allocator().Histogram())

	err = s.Apply(Action{Kind: ActionForceLevel, Value: 5})
	assert.True(t, errors.Is(err, lod.ErrLevelOutOfRange), "got %v", err)

	require.NoError(t, s.Apply(Action{Kind: ActionAutoLevels}))
	_, manual = s.Manual()
	assert.False(t, manual)

	budget := s.Allocator().Budget()
	require.NoError(t, s.Apply(Action{Kind: ActionBudgetUp}))
	assert.Equal(t, max(budget*2, 1), s.Allocator().Budget())
	require.NoError(t, s.Apply(Action{Kind: ActionBudgetDown}))
	assert.Equal(t, max(budget*2, 1)/2, s.Allocator().Budget())
}

func TestSessionSwitchPolicy(t *testing.T) {
	s, err := NewSession(testConfig(), grid(16))
	require.NoError(t, err)
	s.TakeRebuilt()

	require.NoError(t, s.Apply(Action{Kind: ActionSetPolicy, Value: int(simplify.Mean)}))
	assert.False(t, s.TakeRebuilt(), "same policy does not rebuild")

	require.NoError(t, s.Apply(Action{Kind: ActionSetPolicy, Value: int(simplify.ErrorQuadric)}))
	assert.True(t, s.TakeRebuilt())
	assert.Equal(t, simplify.ErrorQuadric, s.Levels().Policy)
	assert.Contains(t, s.Title(), "error-quadric")
}

func TestGridBounds(t *testing.T) {
	s, err := NewSession(testConfig(), grid(8))
	require.NoError(t, err)

	lo, hi := s.GridBounds()
	assert.Equal(t, math.Vec3{}, lo)
	assert.InDelta(t, 3, hi.X, 1e-5)
	assert.InDelta(t, 3, hi.Z, 1e-5)
}
