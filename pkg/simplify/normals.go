package simplify

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/meshlod/pkg/math"
)

const normalEpsilon = 1e-9

// NewNormals computes angle-weighted vertex normals for a triangle list.
//
// Each face contributes its unit flat normal to its three corners, weighted by
// the interior angle at that corner. Faces whose cross product is shorter than
// 1e-9 contribute nothing, and vertices whose accumulated normal stays that
// short are left as zero.
func NewNormals(vertices []float32, faces []uint32) []float32 {
	normals := make([]float32, len(vertices))

	for f := 0; f+2 < len(faces); f += 3 {
		idx := [3]int{int(faces[f]), int(faces[f+1]), int(faces[f+2])}
		p := [3]math.Vec3{
			math.At(vertices, idx[0]),
			math.At(vertices, idx[1]),
			math.At(vertices, idx[2]),
		}

		n := p[1].Sub(p[0]).Cross(p[2].Sub(p[1]))
		l := n.Length()
		if l < normalEpsilon {
			continue
		}
		n = n.Scale(1 / l)

		for k := 0; k < 3; k++ {
			e1 := p[(k+1)%3].Sub(p[k]).Normalize()
			e2 := p[(k+2)%3].Sub(p[k]).Normalize()
			angle := math32.Acos(clamp01(e1.Dot(e2)))
			math.At(normals, idx[k]).Add(n.Scale(angle)).Put(normals, idx[k])
		}
	}

	for v := 0; v < len(normals)/3; v++ {
		n := math.At(normals, v)
		if l := n.Length(); l >= normalEpsilon {
			n.Scale(1/l).Put(normals, v)
		}
	}
	return normals
}

// clamp01 keeps acos in its domain. Negative dots are clamped to zero, which
// caps the weight of obtuse corners at pi/2.
func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
