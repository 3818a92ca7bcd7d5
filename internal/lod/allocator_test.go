package lod

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
)

var unitBox = mesh.Bounds{Min: [3]float32{-0.5, -0.5, -0.5}, Max: [3]float32{0.5, 0.5, 0.5}}

func halvingLevels(top, n int) []LevelInfo {
	out := make([]LevelInfo, n)
	for i := range out {
		out[i] = LevelInfo{Triangles: top, Vertices: top / 2}
		top /= 2
	}
	return out
}

func newTestAllocator(t *testing.T, levels []LevelInfo, budget int) *Allocator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Budget = budget
	cfg.MaxInstances = 8
	a, err := New(levels, unitBox, cfg)
	require.NoError(t, err)
	return a
}

func TestCoarsensLargerInstanceFirst(t *testing.T) {
	levels := []LevelInfo{{150, 80}, {40, 22}, {10, 6}}
	a := newTestAllocator(t, levels, 100)
	a.Resize(1, 2)
	require.NoError(t, a.SetLevel(0, 1, 1))
	require.Equal(t, 190, a.Triangles())

	a.Recompute(math.Identity(), math.Translate(0, 0, -10), 0, false)

	assert.Equal(t, 1, a.Level(0, 0))
	assert.Equal(t, 1, a.Level(0, 1))
	assert.Equal(t, 80, a.Triangles())
	assert.Equal(t, 44, a.Vertices())

	change, ok := a.LastChange()
	require.True(t, ok)
	assert.Equal(t, Change{Row: 0, Col: 0, From: 0, To: 1, Frame: 0}, change)
}

func TestConvergesOnBudget(t *testing.T) {
	levels := halvingLevels(1000, 6)
	a := newTestAllocator(t, levels, 4000)
	a.Resize(4, 4)
	require.Equal(t, 16000, a.Triangles())

	// A single move changes the total by at most the largest adjacent-level step.
	step := 0
	for k := 1; k < len(levels); k++ {
		step = max(step, levels[k-1].Triangles-levels[k].Triangles)
	}

	view := math.LookAt(math.Vec3{X: 2, Y: 3, Z: -6}, math.Vec3{X: 2, Z: 2}, math.Vec3{Y: 1})
	crossed := false
	for frame := int64(0); frame < 200; frame++ {
		before := a.Triangles()
		a.Recompute(math.Identity(), view, frame, false)
		after := a.Triangles()

		delta := after - before
		require.LessOrEqual(t, max(delta, -delta), step, "frame %d", frame)
		if before >= 4000 {
			require.LessOrEqual(t, after, before, "frame %d: over budget must not refine", frame)
		} else {
			require.GreaterOrEqual(t, after, before, "frame %d: under budget must not coarsen", frame)
		}

		if after < 4000 {
			crossed = true
		}
		if crossed {
			require.InDelta(t, 4000, after, float64(step), "frame %d", frame)
		}

		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				l := a.Level(r, c)
				require.GreaterOrEqual(t, l, 0)
				require.LessOrEqual(t, l, a.MaxLevel())
			}
		}
	}

	assert.True(t, crossed)
	assert.InDelta(t, 4000, a.Triangles(), float64(step))
}

func TestOneChangePerCall(t *testing.T) {
	a := newTestAllocator(t, halvingLevels(1000, 6), 0)
	a.Resize(3, 3)

	before := a.Histogram()
	a.Recompute(math.Identity(), math.Translate(0, 0, -5), 1, false)
	after := a.Histogram()

	assert.Equal(t, before[0]-1, after[0])
	assert.Equal(t, before[1]+1, after[1])
}

func TestSaturatesAtCoarsestLevel(t *testing.T) {
	a := newTestAllocator(t, halvingLevels(1000, 6), 0)
	a.Resize(2, 2)

	for frame := int64(0); frame < 4*5; frame++ {
		a.Recompute(math.Identity(), math.Translate(0, 0, -5), frame, false)
		_, ok := a.LastChange()
		require.True(t, ok, "frame %d", frame)
	}
	assert.Equal(t, []int{0, 0, 0, 0, 0, 4}, a.Histogram())

	a.Recompute(math.Identity(), math.Translate(0, 0, -5), 100, false)
	_, ok := a.LastChange()
	assert.False(t, ok)
	assert.Equal(t, 4*31, a.Triangles())
}

func TestUnderBudgetAtFinestIsNoop(t *testing.T) {
	a := newTestAllocator(t, halvingLevels(1000, 6), 1_000_000)
	a.Resize(2, 2)

	a.Recompute(math.Identity(), math.Translate(0, 0, -5), 0, true)
	_, ok := a.LastChange()
	assert.False(t, ok)
	assert.Equal(t, []int{4, 0, 0, 0, 0, 0}, a.Histogram())
}

func TestHysteresisCooldown(t *testing.T) {
	levels := []LevelInfo{{100, 50}, {50, 25}, {25, 12}}
	view := math.Translate(0, 0, -3)

	t.Run("enabled", func(t *testing.T) {
		a := newTestAllocator(t, levels, 60)
		a.Resize(1, 1)

		a.Recompute(math.Identity(), view, 0, true)
		require.Equal(t, 1, a.Level(0, 0))

		for frame := int64(1); frame < 15; frame++ {
			a.Recompute(math.Identity(), view, frame, true)
			_, ok := a.LastChange()
			require.False(t, ok, "frame %d", frame)
			require.Equal(t, 1, a.Level(0, 0))
		}

		a.Recompute(math.Identity(), view, 15, true)
		change, ok := a.LastChange()
		require.True(t, ok)
		assert.Equal(t, Change{From: 1, To: 0, Frame: 15}, change)
	})

	t.Run("disabled", func(t *testing.T) {
		a := newTestAllocator(t, levels, 60)
		a.Resize(1, 1)

		a.Recompute(math.Identity(), view, 0, false)
		a.Recompute(math.Identity(), view, 1, false)
		assert.Equal(t, 0, a.Level(0, 0))
	})
}

func TestHysteresisAcrossInstances(t *testing.T) {
	const cooldown = 15
	a := newTestAllocator(t, halvingLevels(1000, 6), 8000)
	a.Resize(4, 4)

	view := math.LookAt(math.Vec3{X: 2, Y: 3, Z: -6}, math.Vec3{X: 2, Z: 2}, math.Vec3{Y: 1})
	lastChange := map[[2]int]int64{}
	changes := 0
	for frame := int64(0); frame < 200; frame++ {
		a.Recompute(math.Identity(), view, frame, true)
		change, ok := a.LastChange()
		if !ok {
			continue
		}
		changes++
		require.Equal(t, frame, change.Frame)

		key := [2]int{change.Row, change.Col}
		if prev, seen := lastChange[key]; seen {
			require.GreaterOrEqual(t, frame-prev, int64(cooldown),
				"instance %v changed at frames %d and %d", key, prev, frame)
		}
		lastChange[key] = frame
	}

	// Getting from 16000 under 8000 takes at least sixteen moves of at most
	// 500 triangles, and refining back follows.
	assert.Greater(t, changes, 16)
	assert.Greater(t, len(lastChange), 1)
}

func TestNearestInstanceChangesFirst(t *testing.T) {
	a := newTestAllocator(t, halvingLevels(1000, 6), 0)
	a.Resize(1, 3)

	// Camera sits in front of the last column.
	view := math.Translate(-2, 0, -2)
	a.Recompute(math.Identity(), view, 0, false)

	change, ok := a.LastChange()
	require.True(t, ok)
	assert.Equal(t, 2, change.Col)
}

func TestTieGoesToHighestIndex(t *testing.T) {
	a := newTestAllocator(t, halvingLevels(1000, 6), 0)
	a.Resize(2, 1)

	// Both rows sit half a unit from the eye.
	a.Recompute(math.Translate(0, 0, -0.5), math.Identity(), 0, false)

	change, ok := a.LastChange()
	require.True(t, ok)
	assert.Equal(t, 1, change.Row)
}

func TestInstanceOffset(t *testing.T) {
	b := mesh.Bounds{Min: [3]float32{0, 0, 0}, Max: [3]float32{2, 1, 4}}
	cfg := DefaultConfig()
	cfg.Spacing = 1.5
	a, err := New(halvingLevels(100, 2), b, cfg)
	require.NoError(t, err)

	assert.Equal(t, math.Vec3{}, a.InstanceOffset(0, 0))
	assert.Equal(t, math.Vec3{X: 3 * 2 * 1.5, Z: 2 * 4 * 1.5}, a.InstanceOffset(2, 3))
}

func TestResize(t *testing.T) {
	a := newTestAllocator(t, halvingLevels(100, 3), 10)
	a.Resize(2, 3)
	require.NoError(t, a.SetAll(2))

	a.Resize(3, 3)
	rows, cols := a.Size()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []int{9, 0, 0}, a.Histogram())
	assert.Equal(t, 900, a.Triangles())

	a.Resize(100, -1)
	rows, cols = a.Size()
	assert.Equal(t, 8, rows)
	assert.Equal(t, 0, cols)
	assert.Equal(t, 0, a.Triangles())

	a.Recompute(math.Identity(), math.Identity(), 0, true)
	_, ok := a.LastChange()
	assert.False(t, ok)
}

func TestManualLevels(t *testing.T) {
	a := newTestAllocator(t, halvingLevels(100, 3), 10)
	a.Resize(2, 2)

	require.NoError(t, a.SetLevel(1, 0, 2))
	assert.Equal(t, 2, a.Level(1, 0))
	assert.Equal(t, 325, a.Triangles())

	err := a.SetLevel(2, 0, 1)
	assert.True(t, errors.Is(err, ErrInstanceOutOfRange), "got %v", err)
	err = a.SetLevel(0, 0, 3)
	assert.True(t, errors.Is(err, ErrLevelOutOfRange), "got %v", err)
	err = a.SetAll(-1)
	assert.True(t, errors.Is(err, ErrLevelOutOfRange), "got %v", err)

	var got [][2]int
	a.Instances(2, func(row, col int) { got = append(got, [2]int{row, col}) })
	assert.Equal(t, [][2]int{{1, 0}}, got)

	offsets := a.AppendOffsets(nil, 0)
	assert.Len(t, offsets, 9)
}

func TestMaxLevelCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLevel = 2
	a, err := New(halvingLevels(1000, 6), unitBox, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, a.MaxLevel())

	cfg.MaxLevel = 40
	a, err = New(halvingLevels(1000, 6), unitBox, cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, a.MaxLevel())
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, unitBox, DefaultConfig())
	assert.True(t, errors.Is(err, ErrNoLevels), "got %v", err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative budget", func(c *Config) { c.Budget = -1 }},
		{"negative cooldown", func(c *Config) { c.Cooldown = -1 }},
		{"no instances", func(c *Config) { c.MaxInstances = 0 }},
		{"negative max level", func(c *Config) { c.MaxLevel = -2 }},
		{"zero spacing", func(c *Config) { c.Spacing = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(halvingLevels(10, 2), unitBox, cfg)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLevelsFromMeshes(t *testing.T) {
	levels := LevelsFromMeshes([]mesh.Mesh{
		{Vertices: make([]float32, 9), Faces: []uint32{0, 1, 2}},
		{Vertices: make([]float32, 3)},
	})
	assert.Equal(t, []LevelInfo{{Triangles: 1, Vertices: 3}, {Triangles: 0, Vertices: 1}}, levels)
}
