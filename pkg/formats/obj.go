// Wavefront OBJ reader for triangle meshes.
package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
)

// OBJ format errors.
var (
	ErrInvalidOBJVertex = errors.New("invalid OBJ vertex")
	ErrInvalidOBJFace   = errors.New("invalid OBJ face")
)

// OBJ is a parsed OBJ file. Only geometry statements are kept.
type OBJ struct {
	// Objects lists the o/g names in file order.
	Objects []string
	Mesh    mesh.Mesh
}

// ParseOBJ parses a Wavefront OBJ file. Polygons are fan-triangulated and
// negative indices count back from the latest vertex. Per-corner normals are
// averaged onto their positions; when a file has none, Mesh.Normals is nil.
func ParseOBJ(r io.Reader) (*OBJ, error) {
	obj := &OBJ{}
	var (
		normals    []float32
		vertexNrm  []float32
		anyNormals bool
		poly       []uint32
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "v":
			p, err := parseOBJTriple(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidOBJVertex, line, err)
			}
			obj.Mesh.Vertices = append(obj.Mesh.Vertices, p[0], p[1], p[2])
			vertexNrm = append(vertexNrm, 0, 0, 0)
		case "vn":
			n, err := parseOBJTriple(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidOBJVertex, line, err)
			}
			normals = append(normals, n[0], n[1], n[2])
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: %d corners", ErrInvalidOBJFace, line, len(fields)-1)
			}
			poly = poly[:0]
			vertexCount := len(obj.Mesh.Vertices) / 3
			for _, corner := range fields[1:] {
				v, n, err := parseOBJCorner(corner, vertexCount, len(normals)/3)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidOBJFace, line, err)
				}
				poly = append(poly, uint32(v))
				if n >= 0 {
					anyNormals = true
					for k := 0; k < 3; k++ {
						vertexNrm[3*v+k] += normals[3*n+k]
					}
				}
			}
			obj.Mesh.Faces = appendFan(obj.Mesh.Faces, poly)
		case "o", "g":
			if len(fields) > 1 {
				obj.Objects = append(obj.Objects, strings.Join(fields[1:], " "))
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}

	if anyNormals {
		for i := 0; i < len(vertexNrm)/3; i++ {
			math.At(vertexNrm, i).Normalize().Put(vertexNrm, i)
		}
		obj.Mesh.Normals = vertexNrm
	}
	obj.Mesh.Bounds = mesh.ComputeBounds(obj.Mesh.Vertices)
	return obj, nil
}

// ParseOBJFile reads and parses an OBJ file from disk.
func ParseOBJFile(path string) (*OBJ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OBJ file: %w", err)
	}
	return ParseOBJ(bytes.NewReader(data))
}

func parseOBJTriple(fields []string) ([3]float32, error) {
	var out [3]float32
	if len(fields) < 3 {
		return out, fmt.Errorf("need 3 components, got %d", len(fields))
	}
	for k := 0; k < 3; k++ {
		v, err := strconv.ParseFloat(fields[k], 32)
		if err != nil {
			return out, err
		}
		out[k] = float32(v)
	}
	return out, nil
}

// parseOBJCorner resolves a v, v/vt, v//vn or v/vt/vn corner to zero-based
// vertex and normal indices. The normal index is -1 when absent.
func parseOBJCorner(corner string, vertexCount, normalCount int) (int, int, error) {
	parts := strings.Split(corner, "/")
	v, err := resolveOBJIndex(parts[0], vertexCount)
	if err != nil {
		return 0, 0, err
	}
	n := -1
	if len(parts) == 3 && parts[2] != "" {
		if n, err = resolveOBJIndex(parts[2], normalCount); err != nil {
			return 0, 0, err
		}
	}
	return v, n, nil
}

func resolveOBJIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	default:
		return 0, fmt.Errorf("%w: %d of %d", mesh.ErrFaceIndexOutOfRange, i, count)
	}
}
