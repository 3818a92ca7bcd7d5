// Package formats reads and writes triangle mesh files.
package formats

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/meshlod/pkg/mesh"
)

// ErrUnknownMeshFormat is returned by Load for unsupported file extensions.
var ErrUnknownMeshFormat = errors.New("unknown mesh format")

// Load reads a mesh from a .ply or .obj file.
func Load(path string) (*mesh.Mesh, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ply":
		ply, err := ParsePLYFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &ply.Mesh, nil
	case ".obj":
		obj, err := ParseOBJFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &obj.Mesh, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMeshFormat, ext)
	}
}
