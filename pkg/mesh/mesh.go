// Package mesh provides the flat-array triangle mesh shared by the simplifier,
// the LOD allocator and the renderer.
package mesh

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/meshlod/pkg/math"
)

// Validation errors.
var (
	ErrRaggedArrays        = errors.New("mesh: array length is not a multiple of 3")
	ErrNormalCount         = errors.New("mesh: normal count does not match vertex count")
	ErrFaceIndexOutOfRange = errors.New("mesh: face index out of range")
)

// Mesh is an indexed triangle mesh stored as flat arrays ready for GPU upload.
// Vertices and Normals hold xyz triples; Faces holds index triples into Vertices.
type Mesh struct {
	Vertices []float32
	Normals  []float32
	Faces    []uint32
	Bounds   Bounds
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces) / 3
}

// Empty reports whether the mesh has nothing to draw.
func (m *Mesh) Empty() bool {
	return m.VertexCount() == 0 || m.TriangleCount() == 0
}

// Vertex returns vertex i.
func (m *Mesh) Vertex(i int) math.Vec3 {
	return math.At(m.Vertices, i)
}

// Normal returns the normal of vertex i, or the zero vector if the mesh has
// no normals.
func (m *Mesh) Normal(i int) math.Vec3 {
	if 3*i+2 >= len(m.Normals) {
		return math.Vec3{}
	}
	return math.At(m.Normals, i)
}

// Validate checks array shapes and that every face index addresses a vertex.
// A mesh without normals is valid.
func (m *Mesh) Validate() error {
	if len(m.Vertices)%3 != 0 || len(m.Faces)%3 != 0 || len(m.Normals)%3 != 0 {
		return ErrRaggedArrays
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("%w: %d normals for %d vertices", ErrNormalCount, len(m.Normals)/3, m.VertexCount())
	}
	n := uint32(m.VertexCount())
	for i, idx := range m.Faces {
		if idx >= n {
			return fmt.Errorf("%w: face %d references vertex %d of %d", ErrFaceIndexOutOfRange, i/3, idx, n)
		}
	}
	return nil
}

// ComputeBounds returns the bounding box of a flat vertex array.
// An empty array yields the zero box.
func ComputeBounds(vertices []float32) Bounds {
	if len(vertices) < 3 {
		return Bounds{}
	}

	b := Bounds{
		Min: [3]float32{vertices[0], vertices[1], vertices[2]},
		Max: [3]float32{vertices[0], vertices[1], vertices[2]},
	}
	for i := 3; i+2 < len(vertices); i += 3 {
		b.Extend([3]float32{vertices[i], vertices[i+1], vertices[i+2]})
	}
	return b
}

// Extend grows the box to contain p.
func (b *Bounds) Extend(p [3]float32) {
	for axis := 0; axis < 3; axis++ {
		if p[axis] < b.Min[axis] {
			b.Min[axis] = p[axis]
		}
		if p[axis] > b.Max[axis] {
			b.Max[axis] = p[axis]
		}
	}
}

// Extent returns the box size along each axis.
func (b Bounds) Extent() math.Vec3 {
	return math.V3(b.Max).Sub(math.V3(b.Min))
}

// Center returns the box center.
func (b Bounds) Center() math.Vec3 {
	return math.V3(b.Min).Add(math.V3(b.Max)).Scale(0.5)
}

// Diagonal returns the length of the box diagonal.
func (b Bounds) Diagonal() float32 {
	return b.Extent().Length()
}

// Contains reports whether p lies inside the box grown by eps on every side.
func (b Bounds) Contains(p [3]float64, eps float64) bool {
	for axis := 0; axis < 3; axis++ {
		if p[axis] < float64(b.Min[axis])-eps || p[axis] > float64(b.Max[axis])+eps {
			return false
		}
	}
	return true
}

// FlatNormals recomputes per-vertex normals as the normalized sum of adjacent
// face normals. Used for meshes loaded without normals.
func FlatNormals(vertices []float32, faces []uint32) []float32 {
	normals := make([]float32, len(vertices))
	for f := 0; f+2 < len(faces); f += 3 {
		a, b, c := int(faces[f]), int(faces[f+1]), int(faces[f+2])
		v0, v1, v2 := math.At(vertices, a), math.At(vertices, b), math.At(vertices, c)
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		for _, idx := range [3]int{a, b, c} {
			math.At(normals, idx).Add(n).Put(normals, idx)
		}
	}
	for i := 0; i < len(normals)/3; i++ {
		n := math.At(normals, i)
		if l := n.Length(); l > 1e-9 && !math32.IsNaN(l) {
			n.Scale(1/l).Put(normals, i)
		}
	}
	return normals
}
