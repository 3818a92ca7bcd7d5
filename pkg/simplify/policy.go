package simplify

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPolicy is returned when a policy name cannot be parsed.
var ErrUnknownPolicy = errors.New("simplify: unknown policy")

// Policy selects how the representative vertex of a grid cell is chosen.
type Policy int

const (
	// Mean uses the arithmetic average of the cell's vertices.
	Mean Policy = iota
	// Median uses the cell member at position count/2 in insertion order.
	Median
	// Voxelize uses the geometric center of the cell.
	Voxelize
	// ErrorQuadric uses the point minimizing the summed vertex quadrics.
	ErrorQuadric
	// ShapePreserving is ErrorQuadric with cells split by normal octant.
	ShapePreserving
)

var policyNames = [...]string{
	Mean:            "mean",
	Median:          "median",
	Voxelize:        "voxelize",
	ErrorQuadric:    "error-quadric",
	ShapePreserving: "shape-preserving",
}

// Policies returns every policy in declaration order.
func Policies() []Policy {
	return []Policy{Mean, Median, Voxelize, ErrorQuadric, ShapePreserving}
}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return policyNames[p]
}

// ParsePolicy parses a policy name. Matching ignores case, spaces, dashes and
// underscores, so "ErrorQuadric", "error_quadric" and "error-quadric" are
// equivalent. "quadric" and "shape" are accepted as short forms.
func ParsePolicy(s string) (Policy, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch key {
	case "mean", "average":
		return Mean, nil
	case "median":
		return Median, nil
	case "voxelize", "voxel":
		return Voxelize, nil
	case "errorquadric", "quadric", "qem":
		return ErrorQuadric, nil
	case "shapepreserving", "shape":
		return ShapePreserving, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// MarshalText implements encoding.TextMarshaler so policies read naturally in
// YAML configs and reports.
func (p Policy) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(policyNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, int(p))
	}
	return []byte(policyNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// splitsByNormal reports whether cells are subdivided by normal octant.
func (p Policy) splitsByNormal() bool {
	return p == ShapePreserving
}

// usesQuadrics reports whether per-vertex quadrics are needed.
func (p Policy) usesQuadrics() bool {
	return p == ErrorQuadric || p == ShapePreserving
}
