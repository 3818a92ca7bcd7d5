package lodrender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshlod/internal/lod"
	"github.com/Faultbox/meshlod/pkg/mesh"
)

func newAllocator(t *testing.T, levels int) *lod.Allocator {
	t.Helper()
	info := make([]lod.LevelInfo, levels)
	for k := range info {
		info[k] = lod.LevelInfo{Triangles: 100 >> k, Vertices: 60 >> k}
	}
	a, err := lod.New(info, mesh.Bounds{Max: [3]float32{1, 1, 1}}, lod.DefaultConfig())
	require.NoError(t, err)
	a.Resize(2, 2)
	return a
}

func TestPlanGroupsInstancesByLevel(t *testing.T) {
	a := newAllocator(t, 3)
	require.NoError(t, a.SetLevel(0, 1, 2))
	require.NoError(t, a.SetLevel(1, 1, 2))

	batches, scratch := plan(a, []int32{30, 18, 12}, nil)

	require.Len(t, batches, 2)
	assert.Equal(t, batch{level: 0, start: 0, end: 6, instances: 2, triangles: 20}, batches[0])
	assert.Equal(t, batch{level: 2, start: 6, end: 12, instances: 2, triangles: 8}, batches[1])
	require.Len(t, scratch, 12)

	// Level 0 holds (0,0) and (1,0), level 2 holds (0,1) and (1,1).
	for i, rc := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		off := a.InstanceOffset(rc[0], rc[1])
		assert.Equal(t, []float32{off.X, off.Y, off.Z}, scratch[3*i:3*i+3], "instance %v", rc)
	}
}

func TestPlanSkipsEmptyLevels(t *testing.T) {
	a := newAllocator(t, 3)
	require.NoError(t, a.SetAll(1))

	// Level 1 lost every face during simplification.
	batches, scratch := plan(a, []int32{30, 0, 12}, nil)
	assert.Empty(t, batches)
	assert.Empty(t, scratch)

	require.NoError(t, a.SetLevel(0, 0, 2))
	batches, _ = plan(a, []int32{30, 0, 12}, scratch[:0])
	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].level)
	assert.Equal(t, 1, batches[0].instances)
}

func TestPlanStopsAtUploadedLevels(t *testing.T) {
	a := newAllocator(t, 3)
	require.NoError(t, a.SetAll(2))

	// Only two levels were uploaded.
	batches, _ := plan(a, []int32{30, 18}, nil)
	assert.Empty(t, batches)
}
