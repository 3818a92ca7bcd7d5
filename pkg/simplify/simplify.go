// Package simplify builds levels of detail for a triangle mesh by vertex
// clustering on uniform 3D grids.
//
// Every level is produced the same way: vertices are bucketed into the cells
// of a res^3 grid spanning the mesh bounds, each non-empty cell collapses to a
// single representative chosen by a Policy, faces are remapped onto the
// representatives and dropped when two corners collapse together, and normals
// are recomputed.
//
// Levels are ordered finest first. Level 0 is always the input mesh and each
// following level was built on a coarser grid than the one before it when
// the default Schedule is used.
package simplify

import (
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/pkg/mesh"
)

// Levels is an ordered LOD sequence for one mesh.
type Levels struct {
	Policy Policy
	// Meshes[0] is the original mesh.
	Meshes []mesh.Mesh
	// Resolutions[k] is the grid resolution of level k; 0 for the original.
	Resolutions []int
}

// Len returns the number of levels including the original.
func (l *Levels) Len() int {
	return len(l.Meshes)
}

// MaxLevel returns the index of the coarsest level.
func (l *Levels) MaxLevel() int {
	return len(l.Meshes) - 1
}

// Level returns level k.
func (l *Levels) Level(k int) *mesh.Mesh {
	return &l.Meshes[k]
}

// BuildLevels builds the LOD sequence of m. The grid spans m.Bounds, or the
// bounds of the vertices when m.Bounds is unset. A mesh without normals gets
// flat-shaded normals before clustering.
//
// An empty mesh is not an error: the result then holds only level 0.
func BuildLevels(m mesh.Mesh, policy Policy, opts Options) (Levels, error) {
	if err := m.Validate(); err != nil {
		return Levels{}, err
	}
	resolutions, err := opts.resolutions()
	if err != nil {
		return Levels{}, err
	}
	log := opts.logger()

	if m.Bounds == (mesh.Bounds{}) {
		m.Bounds = mesh.ComputeBounds(m.Vertices)
	}
	if len(m.Normals) == 0 && len(m.Vertices) > 0 {
		m.Normals = mesh.FlatNormals(m.Vertices, m.Faces)
	}

	out := Levels{
		Policy:      policy,
		Meshes:      []mesh.Mesh{m},
		Resolutions: []int{0},
	}
	if m.Empty() {
		log.Debug("empty mesh, keeping original level only",
			zap.Int("vertices", m.VertexCount()),
			zap.Int("faces", m.TriangleCount()))
		return out, nil
	}

	b := newBuilder(&m, policy)
	out.Meshes = append(out.Meshes, make([]mesh.Mesh, len(resolutions))...)
	out.Resolutions = append(out.Resolutions, resolutions...)

	build := func(k, res int) {
		start := time.Now()
		out.Meshes[k+1] = b.level(res)
		log.Debug("built level",
			zap.Stringer("policy", policy),
			zap.Int("level", k+1),
			zap.Int("resolution", res),
			zap.Int("vertices", out.Meshes[k+1].VertexCount()),
			zap.Int("faces", out.Meshes[k+1].TriangleCount()),
			zap.Duration("took", time.Since(start)))
	}

	if opts.Workers > 1 && len(resolutions) > 1 {
		pool := pond.NewPool(opts.Workers)
		for k, res := range resolutions {
			pool.Submit(func() { build(k, res) })
		}
		pool.StopAndWait()
	} else {
		for k, res := range resolutions {
			build(k, res)
		}
	}

	return out, nil
}

// BuildLevel builds a single simplified level of m at the given resolution
// over bounds. m must already be valid; normals are only read by the quadric
// policies.
func BuildLevel(m mesh.Mesh, bounds mesh.Bounds, resolution int, policy Policy) mesh.Mesh {
	if resolution < 1 {
		resolution = 1
	}
	m.Bounds = bounds
	return newBuilder(&m, policy).level(resolution)
}

// builder holds the state shared by all levels of one build. It is read-only
// once constructed, so levels may be built concurrently.
type builder struct {
	src    *mesh.Mesh
	policy Policy
	pick   selector
}

func newBuilder(m *mesh.Mesh, policy Policy) *builder {
	var planes []plane
	if policy.usesQuadrics() {
		planes = vertexPlanes(m)
	}
	return &builder{
		src:    m,
		policy: policy,
		pick:   newSelector(policy, m.Bounds, planes),
	}
}

func (b *builder) level(res int) mesh.Mesh {
	g := newGrid(b.src.Bounds, res)
	clusters, owner := g.assign(b.src, b.policy.splitsByNormal())

	vertices := make([]float32, 3*len(clusters))
	for i := range clusters {
		b.pick.represent(b.src, g, &clusters[i]).Put(vertices, i)
	}

	faces := make([]uint32, 0, len(b.src.Faces))
	for f := 0; f+2 < len(b.src.Faces); f += 3 {
		v0 := owner[b.src.Faces[f]]
		v1 := owner[b.src.Faces[f+1]]
		v2 := owner[b.src.Faces[f+2]]
		if v0 != v1 && v0 != v2 && v1 != v2 {
			faces = append(faces, v0, v1, v2)
		}
	}

	return mesh.Mesh{
		Vertices: vertices,
		Normals:  NewNormals(vertices, faces),
		Faces:    faces,
		Bounds:   mesh.ComputeBounds(vertices),
	}
}
