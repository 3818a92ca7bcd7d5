package simplify

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
)

var box2 = mesh.Bounds{Max: [3]float32{2, 2, 2}}

// uvSphere builds a closed sphere of radius 1 with outward normals.
func uvSphere(stacks, slices int) mesh.Mesh {
	var m mesh.Mesh
	for i := 0; i <= stacks; i++ {
		phi := gomath.Pi * float64(i) / float64(stacks)
		for j := 0; j <= slices; j++ {
			theta := 2 * gomath.Pi * float64(j) / float64(slices)
			p := [3]float32{
				float32(gomath.Sin(phi) * gomath.Cos(theta)),
				float32(gomath.Cos(phi)),
				float32(gomath.Sin(phi) * gomath.Sin(theta)),
			}
			m.Vertices = append(m.Vertices, p[:]...)
			m.Normals = append(m.Normals, p[:]...)
		}
	}
	row := uint32(slices + 1)
	for i := uint32(0); i < uint32(stacks); i++ {
		for j := uint32(0); j < uint32(slices); j++ {
			a := i*row + j
			b := a + row
			m.Faces = append(m.Faces, a, b, a+1, a+1, b, b+1)
		}
	}
	m.Bounds = mesh.ComputeBounds(m.Vertices)
	return m
}

func vertices(m mesh.Mesh) []math.Vec3 {
	out := make([]math.Vec3, m.VertexCount())
	for i := range out {
		out[i] = m.Vertex(i)
	}
	return out
}

func assertVec(t *testing.T, want, got math.Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-5, "x of %v", got)
	assert.InDelta(t, want.Y, got.Y, 1e-5, "y of %v", got)
	assert.InDelta(t, want.Z, got.Z, 1e-5, "z of %v", got)
}

func TestMeanOppositeCells(t *testing.T) {
	m := mesh.Mesh{Vertices: []float32{
		0.2, 0.2, 0.2,
		0.8, 0.2, 0.2,
		0.2, 0.8, 0.2,
		0.2, 0.2, 0.8,
		1.2, 1.2, 1.2,
		1.8, 1.8, 1.8,
		1.4, 1.6, 1.2,
		1.6, 1.4, 1.8,
	}}

	level := BuildLevel(m, box2, 2, Mean)

	require.Equal(t, 2, level.VertexCount())
	assertVec(t, math.Vec3{X: 0.35, Y: 0.35, Z: 0.35}, level.Vertex(0))
	assertVec(t, math.Vec3{X: 1.5, Y: 1.5, Z: 1.5}, level.Vertex(1))
}

func TestDegenerateFacesDropped(t *testing.T) {
	m := mesh.Mesh{
		Vertices: []float32{
			0.5, 0.5, 0.5,
			1.5, 0.5, 0.5,
			0.5, 1.5, 0.5,
		},
		Faces: []uint32{0, 1, 2},
	}

	t.Run("three cells keep the face", func(t *testing.T) {
		level := BuildLevel(m, box2, 2, Mean)
		assert.Equal(t, 1, level.TriangleCount())
		assert.Equal(t, 3, level.VertexCount())
	})

	t.Run("single cell drops it", func(t *testing.T) {
		level := BuildLevel(m, box2, 1, Mean)
		assert.Equal(t, 0, level.TriangleCount())
		assert.Equal(t, 1, level.VertexCount())
	})
}

func TestUpperBoundClampsIntoLastCell(t *testing.T) {
	m := mesh.Mesh{Vertices: []float32{
		0, 0, 0,
		2, 2, 2,
	}}

	level := BuildLevel(m, box2, 2, Voxelize)

	require.Equal(t, 2, level.VertexCount())
	assertVec(t, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, level.Vertex(0))
	assertVec(t, math.Vec3{X: 1.5, Y: 1.5, Z: 1.5}, level.Vertex(1))
}

func TestMedianPicksMiddleInsertion(t *testing.T) {
	m := mesh.Mesh{Vertices: []float32{
		0.1, 0.1, 0.1,
		0.9, 0.9, 0.9,
		0.3, 0.7, 0.2,
		0.5, 0.5, 0.5,
	}}

	level := BuildLevel(m, mesh.Bounds{Max: [3]float32{1, 1, 1}}, 1, Median)

	require.Equal(t, 1, level.VertexCount())
	assert.Equal(t, math.Vec3{X: 0.3, Y: 0.7, Z: 0.2}, level.Vertex(0))
}

func TestErrorQuadric(t *testing.T) {
	unit := mesh.Bounds{Max: [3]float32{1, 1, 1}}

	tests := []struct {
		name string
		m    mesh.Mesh
		want math.Vec3
	}{
		{
			name: "three planes meet at the corner",
			m: mesh.Mesh{
				Vertices: []float32{1, 0.2, 0.3, 0.4, 1, 0.1, 0.2, 0.6, 1},
				Normals:  []float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
			},
			want: math.Vec3{X: 1, Y: 1, Z: 1},
		},
		{
			name: "coplanar normals fall back to the mean",
			m: mesh.Mesh{
				Vertices: []float32{0.1, 0.2, 0.5, 0.4, 0.8, 0.5, 0.7, 0.5, 0.5},
				Normals:  []float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
			},
			want: math.Vec3{X: 0.4, Y: 0.5, Z: 0.5},
		},
		{
			name: "minimizer outside the bounds falls back to the mean",
			m: mesh.Mesh{
				Vertices: []float32{0.1, 0.4, 0.3, 0.6, 0.1, 0.7, 0.9, 0.5, 0.1},
				Normals:  []float32{1, 0, 0, 0, 1, 0, 0.8, 0, 0.6},
			},
			want: math.Vec3{X: 1.6 / 3, Y: 1.0 / 3, Z: 1.1 / 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := BuildLevel(tt.m, unit, 1, ErrorQuadric)
			require.Equal(t, 1, level.VertexCount())
			assertVec(t, tt.want, level.Vertex(0))
		})
	}
}

func TestShapePreservingSplitsByNormal(t *testing.T) {
	m := mesh.Mesh{
		Vertices: []float32{
			0.2, 0.5, 0.5,
			0.3, 0.5, 0.5,
			0.7, 0.5, 0.5,
			0.8, 0.5, 0.5,
		},
		Normals: []float32{
			-1, 0, 0,
			-1, 0, 0,
			1, 0, 0,
			1, 0, 0,
		},
	}
	unit := mesh.Bounds{Max: [3]float32{1, 1, 1}}

	merged := BuildLevel(m, unit, 1, ErrorQuadric)
	assert.Equal(t, 1, merged.VertexCount())

	level := BuildLevel(m, unit, 1, ShapePreserving)
	require.Equal(t, 2, level.VertexCount())
	// Octant of -x sorts before +x; both sides are flat so they fall back to the mean.
	assertVec(t, math.Vec3{X: 0.25, Y: 0.5, Z: 0.5}, level.Vertex(0))
	assertVec(t, math.Vec3{X: 0.75, Y: 0.5, Z: 0.5}, level.Vertex(1))
}

func TestBuildLevelsProperties(t *testing.T) {
	sphere := uvSphere(24, 32)

	for _, policy := range Policies() {
		t.Run(policy.String(), func(t *testing.T) {
			levels, err := BuildLevels(sphere, policy, DefaultOptions())
			require.NoError(t, err)
			require.Equal(t, 6, levels.Len())
			assert.Equal(t, []int{0, 40, 32, 24, 16, 8}, levels.Resolutions)
			assert.Equal(t, sphere.Vertices, levels.Level(0).Vertices)

			for k := 0; k < levels.Len(); k++ {
				lvl := levels.Level(k)
				assert.NoError(t, lvl.Validate(), "level %d", k)
				assert.LessOrEqual(t, lvl.VertexCount(), sphere.VertexCount(), "level %d", k)
				assert.Len(t, lvl.Normals, len(lvl.Vertices), "level %d", k)
			}
			assert.Less(t, levels.Level(levels.MaxLevel()).TriangleCount(), sphere.TriangleCount())

			again, err := BuildLevels(sphere, policy, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, levels, again, "builds must be deterministic")
		})
	}
}

func TestBuildLevelsWorkersMatchSequential(t *testing.T) {
	sphere := uvSphere(16, 16)

	seq, err := BuildLevels(sphere, ShapePreserving, DefaultOptions())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Workers = 4
	par, err := BuildLevels(sphere, ShapePreserving, opts)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
}

func TestBuildLevelsEdgeCases(t *testing.T) {
	t.Run("empty mesh", func(t *testing.T) {
		levels, err := BuildLevels(mesh.Mesh{}, Mean, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 1, levels.Len())
	})

	t.Run("vertices without faces", func(t *testing.T) {
		levels, err := BuildLevels(mesh.Mesh{Vertices: []float32{0, 0, 0, 1, 1, 1}}, Mean, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 1, levels.Len())
		assert.Equal(t, 2, levels.Level(0).VertexCount())
	})

	t.Run("invalid mesh", func(t *testing.T) {
		_, err := BuildLevels(mesh.Mesh{Vertices: []float32{0, 0, 0}, Faces: []uint32{0, 0, 1}}, Mean, DefaultOptions())
		assert.True(t, errors.Is(err, mesh.ErrFaceIndexOutOfRange), "got %v", err)
	})

	t.Run("invalid schedule", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Schedule.Ratio = 0
		_, err := BuildLevels(uvSphere(4, 4), Mean, opts)
		assert.True(t, errors.Is(err, ErrInvalidSchedule), "got %v", err)
	})

	t.Run("explicit resolutions", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Resolutions = []int{4, 2, 1}
		levels, err := BuildLevels(uvSphere(8, 8), Voxelize, opts)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 4, 2, 1}, levels.Resolutions)
		assert.Equal(t, 1, levels.Level(3).VertexCount())
		assert.Equal(t, 0, levels.Level(3).TriangleCount())
	})

	t.Run("missing normals and bounds are derived", func(t *testing.T) {
		sphere := uvSphere(8, 8)
		sphere.Normals = nil
		sphere.Bounds = mesh.Bounds{}
		levels, err := BuildLevels(sphere, ErrorQuadric, DefaultOptions())
		require.NoError(t, err)
		assert.Len(t, levels.Level(0).Normals, len(sphere.Vertices))
		assert.NotEqual(t, mesh.Bounds{}, levels.Level(0).Bounds)
	})
}

func TestNewNormals(t *testing.T) {
	t.Run("single triangle", func(t *testing.T) {
		normals := NewNormals([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, []uint32{0, 1, 2})
		for v := 0; v < 3; v++ {
			assertVec(t, math.Vec3{Z: 1}, math.At(normals, v))
		}
	})

	t.Run("degenerate triangle contributes nothing", func(t *testing.T) {
		normals := NewNormals([]float32{0, 0, 0, 1, 0, 0, 2, 0, 0}, []uint32{0, 1, 2})
		assert.Equal(t, make([]float32, 9), normals)
	})

	t.Run("corner weights follow the angle", func(t *testing.T) {
		// Two faces share vertex 0: one in the xy plane with a 90 degree
		// corner, one in the xz plane with a 45 degree corner.
		verts := []float32{
			0, 0, 0,
			1, 0, 0,
			0, 1, 0,
			1, 0, 1,
		}
		normals := NewNormals(verts, []uint32{0, 1, 2, 0, 3, 1})
		n := math.At(normals, 0)
		// Sum is (pi/2)*(0,0,1) + (pi/4)*(0,1,0), normalized.
		want := math.Vec3{Y: gomath.Pi / 4, Z: gomath.Pi / 2}.Normalize()
		assertVec(t, want, n)
	})
}

func TestVerticesAreRepresentatives(t *testing.T) {
	sphere := uvSphere(12, 12)
	level := BuildLevel(sphere, sphere.Bounds, 2, Median)

	original := make(map[math.Vec3]bool)
	for _, v := range vertices(sphere) {
		original[v] = true
	}
	for _, v := range vertices(level) {
		assert.True(t, original[v], "median vertex %v is not an input vertex", v)
	}
}
