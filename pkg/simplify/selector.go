package simplify

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
)

// selector computes the representative vertex of one cluster.
type selector interface {
	represent(m *mesh.Mesh, g grid, c *cluster) math.Vec3
}

// newSelector resolves a policy once per build. planes is only read by the
// quadric policies and may be nil otherwise.
func newSelector(p Policy, bounds mesh.Bounds, planes []plane) selector {
	switch p {
	case Median:
		return medianSelector{}
	case Voxelize:
		return voxelSelector{}
	case ErrorQuadric, ShapePreserving:
		return quadricSelector{
			planes: planes,
			bounds: bounds,
			eps:    1e-5 * float64(bounds.Diagonal()),
		}
	default:
		return meanSelector{}
	}
}

type meanSelector struct{}

func (meanSelector) represent(m *mesh.Mesh, _ grid, c *cluster) math.Vec3 {
	return mean(m, c.members)
}

type medianSelector struct{}

func (medianSelector) represent(m *mesh.Mesh, _ grid, c *cluster) math.Vec3 {
	return m.Vertex(c.members[len(c.members)/2])
}

type voxelSelector struct{}

func (voxelSelector) represent(_ *mesh.Mesh, g grid, c *cluster) math.Vec3 {
	return g.cellCenter(c.cell())
}

type quadricSelector struct {
	planes []plane
	bounds mesh.Bounds
	eps    float64
}

func (s quadricSelector) represent(m *mesh.Mesh, _ grid, c *cluster) math.Vec3 {
	if len(c.members) > 1 {
		p, ok := minimizeQuadric(sumQuadrics(s.planes, c.members))
		if ok && s.bounds.Contains(p, s.eps) {
			return math.Vec3{X: float32(p[0]), Y: float32(p[1]), Z: float32(p[2])}
		}
	}
	return mean(m, c.members)
}

// mean averages vertex positions in float64.
func mean(m *mesh.Mesh, members []int) math.Vec3 {
	var sum r3.Vec
	for _, v := range members {
		sum = r3.Add(sum, toR3(m.Vertex(v).Array()))
	}
	avg := r3.Scale(1/float64(len(members)), sum)
	return math.Vec3{X: float32(avg.X), Y: float32(avg.Y), Z: float32(avg.Z)}
}
