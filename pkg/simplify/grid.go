package simplify

import (
	"cmp"
	"slices"

	"github.com/chewxy/math32"

	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
)

// grid is a uniform res^3 partition of a bounding box.
type grid struct {
	res  int
	min  math.Vec3
	size math.Vec3 // cell size per axis
}

func newGrid(b mesh.Bounds, res int) grid {
	return grid{
		res:  res,
		min:  math.V3(b.Min),
		size: b.Extent().Scale(1 / float32(res)),
	}
}

// axisIndex maps a coordinate to its cell index along one axis, clamping
// points on or beyond the upper bound into the last cell.
func (g grid) axisIndex(v, lo, size float32) int {
	if size <= 0 {
		return 0
	}
	i := int(math32.Floor((v - lo) / size))
	if i >= g.res {
		return g.res - 1
	}
	if i < 0 {
		return 0
	}
	return i
}

// cellKey returns x + res*(y + res*z) for the cell containing p.
func (g grid) cellKey(p math.Vec3) int {
	x := g.axisIndex(p.X, g.min.X, g.size.X)
	y := g.axisIndex(p.Y, g.min.Y, g.size.Y)
	z := g.axisIndex(p.Z, g.min.Z, g.size.Z)
	return x + g.res*(y+g.res*z)
}

// cellCenter returns the geometric center of a cell.
func (g grid) cellCenter(key int) math.Vec3 {
	x := key % g.res
	y := (key / g.res) % g.res
	z := key / (g.res * g.res)
	return math.Vec3{
		X: g.min.X + (float32(x)+0.5)*g.size.X,
		Y: g.min.Y + (float32(y)+0.5)*g.size.Y,
		Z: g.min.Z + (float32(z)+0.5)*g.size.Z,
	}
}

// octant packs the signs of a normal into a 3-bit code.
func octant(n math.Vec3) int {
	code := 0
	if n.X >= 0 {
		code |= 1
	}
	if n.Y >= 0 {
		code |= 2
	}
	if n.Z >= 0 {
		code |= 4
	}
	return code
}

// cluster is the set of original vertices collapsing onto one representative.
type cluster struct {
	key     int   // cell key << 3 | normal octant
	members []int // vertex indices in insertion order
}

func (c *cluster) cell() int {
	return c.key >> 3
}

// assign buckets every vertex of m. Clusters come back sorted by key, and
// owner maps each original vertex to its cluster index.
func (g grid) assign(m *mesh.Mesh, splitByNormal bool) (clusters []cluster, owner []uint32) {
	n := m.VertexCount()
	index := make(map[int]int)

	for v := 0; v < n; v++ {
		key := g.cellKey(m.Vertex(v)) << 3
		if splitByNormal {
			key |= octant(m.Normal(v))
		}

		ci, ok := index[key]
		if !ok {
			ci = len(clusters)
			index[key] = ci
			clusters = append(clusters, cluster{key: key})
		}
		clusters[ci].members = append(clusters[ci].members, v)
	}

	slices.SortFunc(clusters, func(a, b cluster) int {
		return cmp.Compare(a.key, b.key)
	})

	owner = make([]uint32, n)
	for i := range clusters {
		for _, v := range clusters[i].members {
			owner[v] = uint32(i)
		}
	}
	return clusters, owner
}
