package simplify

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/meshlod/pkg/mesh"
)

// maxQuadricCondition bounds the condition number of the reduced quadric
// system. Cells whose tangent planes do not pin down a point (flat or
// cylindrical patches) exceed it and fall back to the mean.
const maxQuadricCondition = 1e8

// plane is the tangent plane of a vertex as (n, -n·p).
type plane [4]float64

// vertexPlanes returns the tangent plane of every vertex. Its outer product
// with itself is the vertex quadric Q_v = P_v·P_vᵗ.
func vertexPlanes(m *mesh.Mesh) []plane {
	planes := make([]plane, m.VertexCount())
	for v := range planes {
		n := toR3(m.Normal(v).Array())
		p := toR3(m.Vertex(v).Array())
		planes[v] = plane{n.X, n.Y, n.Z, -r3.Dot(n, p)}
	}
	return planes
}

// sumQuadrics accumulates the quadrics of the given vertices.
func sumQuadrics(planes []plane, members []int) *mat.SymDense {
	q := mat.NewSymDense(4, nil)
	for _, v := range members {
		p := planes[v]
		q.SymRankOne(q, 1, mat.NewVecDense(4, p[:]))
	}
	return q
}

// minimizeQuadric returns the point minimizing vᵗQv. The last row of Q is
// replaced by (0, 0, 0, 1) so the system solves for a homogeneous point, and
// the answer is the last column of the inverse. ok is false when the system
// is singular or too ill-conditioned to trust.
func minimizeQuadric(q *mat.SymDense) (point [3]float64, ok bool) {
	a := mat.NewDense(4, 4, nil)
	a.Copy(q)
	a.SetRow(3, []float64{0, 0, 0, 1})

	if c := mat.Cond(a, 1); math.IsInf(c, 0) || math.IsNaN(c) || c > maxQuadricCondition {
		return point, false
	}

	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return point, false
	}

	point = [3]float64{inv.At(0, 3), inv.At(1, 3), inv.At(2, 3)}
	for _, x := range point {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return point, false
		}
	}
	return point, true
}

func toR3(a [3]float32) r3.Vec {
	return r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])}
}
