// PLY (Polygon File Format) reader and writer for triangle meshes.
package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	gomath "math"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/meshlod/pkg/mesh"
)

// PLY format errors.
var (
	ErrInvalidPLYMagic      = errors.New("invalid PLY magic: expected 'ply'")
	ErrUnsupportedPLYFormat = errors.New("unsupported PLY format")
	ErrInvalidPLYHeader     = errors.New("invalid PLY header")
	ErrTruncatedPLYData     = errors.New("truncated PLY data")
	ErrInvalidPLYValue      = errors.New("invalid PLY value")
	ErrMissingPLYVertices   = errors.New("PLY has no vertex element with x, y and z")
)

// PLYFormat is the encoding of the PLY body.
type PLYFormat int

const (
	PLYASCII PLYFormat = iota
	PLYBinaryLittleEndian
	PLYBinaryBigEndian
)

var plyFormatNames = map[string]PLYFormat{
	"ascii":                PLYASCII,
	"binary_little_endian": PLYBinaryLittleEndian,
	"binary_big_endian":    PLYBinaryBigEndian,
}

// String returns the name used in the PLY header.
func (f PLYFormat) String() string {
	switch f {
	case PLYASCII:
		return "ascii"
	case PLYBinaryLittleEndian:
		return "binary_little_endian"
	case PLYBinaryBigEndian:
		return "binary_big_endian"
	default:
		return fmt.Sprintf("PLYFormat(%d)", int(f))
	}
}

// plyType is a PLY scalar type.
type plyType int

const (
	plyInt8 plyType = iota
	plyUint8
	plyInt16
	plyUint16
	plyInt32
	plyUint32
	plyFloat32
	plyFloat64
)

var plyTypeNames = map[string]plyType{
	"char": plyInt8, "int8": plyInt8,
	"uchar": plyUint8, "uint8": plyUint8,
	"short": plyInt16, "int16": plyInt16,
	"ushort": plyUint16, "uint16": plyUint16,
	"int": plyInt32, "int32": plyInt32,
	"uint": plyUint32, "uint32": plyUint32,
	"float": plyFloat32, "float32": plyFloat32,
	"double": plyFloat64, "float64": plyFloat64,
}

func (t plyType) size() int {
	switch t {
	case plyInt8, plyUint8:
		return 1
	case plyInt16, plyUint16:
		return 2
	case plyFloat64:
		return 8
	default:
		return 4
	}
}

// PLYProperty is one property declaration of an element.
type PLYProperty struct {
	Name string
	List bool
	// count and item types; count is unused for scalar properties.
	count plyType
	item  plyType
}

// PLYElement is one element declaration.
type PLYElement struct {
	Name       string
	Count      int
	Properties []PLYProperty
}

func (e *PLYElement) property(name string) int {
	for i := range e.Properties {
		if e.Properties[i].Name == name {
			return i
		}
	}
	return -1
}

// PLY is a parsed PLY file.
type PLY struct {
	Format   PLYFormat
	Comments []string
	Elements []PLYElement
	Mesh     mesh.Mesh
}

// ParsePLY parses a PLY file. Polygons are fan-triangulated. Vertex normals
// are read when the vertex element carries nx, ny and nz.
func ParsePLY(data []byte) (*PLY, error) {
	if !bytes.HasPrefix(data, []byte("ply")) {
		return nil, ErrInvalidPLYMagic
	}

	end := bytes.Index(data, []byte("end_header"))
	if end < 0 {
		return nil, fmt.Errorf("%w: missing end_header", ErrTruncatedPLYData)
	}
	bodyStart := len(data)
	if nl := bytes.IndexByte(data[end:], '\n'); nl >= 0 {
		bodyStart = end + nl + 1
	}

	ply, err := parsePLYHeader(string(data[:end]))
	if err != nil {
		return nil, err
	}

	var src plySource
	switch ply.Format {
	case PLYASCII:
		src = &plyASCII{fields: bytes.Fields(data[bodyStart:])}
	case PLYBinaryLittleEndian:
		src = &plyBinary{data: data[bodyStart:], order: binary.LittleEndian}
	default:
		src = &plyBinary{data: data[bodyStart:], order: binary.BigEndian}
	}

	if err := ply.readBody(src); err != nil {
		return nil, err
	}
	if err := ply.Mesh.Validate(); err != nil {
		return nil, fmt.Errorf("PLY mesh: %w", err)
	}
	ply.Mesh.Bounds = mesh.ComputeBounds(ply.Mesh.Vertices)
	return ply, nil
}

// ParsePLYFile reads and parses a PLY file from disk.
func ParsePLYFile(path string) (*PLY, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PLY file: %w", err)
	}
	return ParsePLY(data)
}

func parsePLYHeader(header string) (*PLY, error) {
	ply := &PLY{Format: -1}
	var current *PLYElement

	for n, line := range strings.Split(header, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		bad := func(msg string) error {
			return fmt.Errorf("%w: line %d: %s", ErrInvalidPLYHeader, n+1, msg)
		}

		switch fields[0] {
		case "ply":
		case "comment", "obj_info":
			ply.Comments = append(ply.Comments, strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
		case "format":
			if len(fields) < 2 {
				return nil, bad("format needs a name")
			}
			f, ok := plyFormatNames[fields[1]]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedPLYFormat, fields[1])
			}
			ply.Format = f
		case "element":
			if len(fields) != 3 {
				return nil, bad("element needs a name and a count")
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, bad("bad element count " + fields[2])
			}
			ply.Elements = append(ply.Elements, PLYElement{Name: fields[1], Count: count})
			current = &ply.Elements[len(ply.Elements)-1]
		case "property":
			if current == nil {
				return nil, bad("property before element")
			}
			prop, err := parsePLYProperty(fields[1:])
			if err != nil {
				return nil, bad(err.Error())
			}
			current.Properties = append(current.Properties, prop)
		default:
			return nil, bad("unknown keyword " + fields[0])
		}
	}

	if ply.Format < 0 {
		return nil, fmt.Errorf("%w: missing format line", ErrInvalidPLYHeader)
	}
	return ply, nil
}

func parsePLYProperty(fields []string) (PLYProperty, error) {
	if len(fields) == 4 && fields[0] == "list" {
		count, ok1 := plyTypeNames[fields[1]]
		item, ok2 := plyTypeNames[fields[2]]
		if !ok1 || !ok2 {
			return PLYProperty{}, fmt.Errorf("unknown list types %s %s", fields[1], fields[2])
		}
		return PLYProperty{Name: fields[3], List: true, count: count, item: item}, nil
	}
	if len(fields) != 2 {
		return PLYProperty{}, fmt.Errorf("malformed property %q", strings.Join(fields, " "))
	}
	t, ok := plyTypeNames[fields[0]]
	if !ok {
		return PLYProperty{}, fmt.Errorf("unknown type %s", fields[0])
	}
	return PLYProperty{Name: fields[1], item: t}, nil
}

func (p *PLY) readBody(src plySource) error {
	haveVertices := false

	for ei := range p.Elements {
		e := &p.Elements[ei]
		switch e.Name {
		case "vertex":
			if err := p.readVertices(e, src); err != nil {
				return err
			}
			haveVertices = true
		case "face":
			if err := p.readFaces(e, src); err != nil {
				return err
			}
		default:
			if err := skipPLYElement(e, src); err != nil {
				return err
			}
		}
	}

	if !haveVertices {
		return ErrMissingPLYVertices
	}
	return nil
}

func (p *PLY) readVertices(e *PLYElement, src plySource) error {
	pos := [3]int{e.property("x"), e.property("y"), e.property("z")}
	if pos[0] < 0 || pos[1] < 0 || pos[2] < 0 {
		return ErrMissingPLYVertices
	}
	nrm := [3]int{e.property("nx"), e.property("ny"), e.property("nz")}
	hasNormals := nrm[0] >= 0 && nrm[1] >= 0 && nrm[2] >= 0

	p.Mesh.Vertices = make([]float32, 0, 3*e.Count)
	if hasNormals {
		p.Mesh.Normals = make([]float32, 0, 3*e.Count)
	}

	row := make([]float64, len(e.Properties))
	for v := 0; v < e.Count; v++ {
		for i, prop := range e.Properties {
			if prop.List {
				if err := skipPLYList(prop, src); err != nil {
					return err
				}
				continue
			}
			val, err := src.scalar(prop.item)
			if err != nil {
				return fmt.Errorf("vertex %d: %w", v, err)
			}
			row[i] = val
		}
		p.Mesh.Vertices = append(p.Mesh.Vertices, float32(row[pos[0]]), float32(row[pos[1]]), float32(row[pos[2]]))
		if hasNormals {
			p.Mesh.Normals = append(p.Mesh.Normals, float32(row[nrm[0]]), float32(row[nrm[1]]), float32(row[nrm[2]]))
		}
	}
	return nil
}

func (p *PLY) readFaces(e *PLYElement, src plySource) error {
	idx := e.property("vertex_indices")
	if idx < 0 {
		idx = e.property("vertex_index")
	}

	p.Mesh.Faces = make([]uint32, 0, 3*e.Count)
	var poly []uint32
	for f := 0; f < e.Count; f++ {
		for i, prop := range e.Properties {
			if i != idx || !prop.List {
				if err := skipPLYProperty(prop, src); err != nil {
					return err
				}
				continue
			}

			n, err := src.scalar(prop.count)
			if err != nil {
				return fmt.Errorf("face %d: %w", f, err)
			}
			poly = poly[:0]
			for k := 0; k < int(n); k++ {
				v, err := src.scalar(prop.item)
				if err != nil {
					return fmt.Errorf("face %d: %w", f, err)
				}
				if v < 0 {
					return fmt.Errorf("face %d: %w: %g", f, mesh.ErrFaceIndexOutOfRange, v)
				}
				poly = append(poly, uint32(v))
			}
			p.Mesh.Faces = appendFan(p.Mesh.Faces, poly)
		}
	}
	return nil
}

// appendFan triangulates a convex polygon around its first corner.
func appendFan(faces, poly []uint32) []uint32 {
	for k := 1; k+1 < len(poly); k++ {
		faces = append(faces, poly[0], poly[k], poly[k+1])
	}
	return faces
}

func skipPLYElement(e *PLYElement, src plySource) error {
	for n := 0; n < e.Count; n++ {
		for _, prop := range e.Properties {
			if err := skipPLYProperty(prop, src); err != nil {
				return fmt.Errorf("%s %d: %w", e.Name, n, err)
			}
		}
	}
	return nil
}

func skipPLYProperty(prop PLYProperty, src plySource) error {
	if prop.List {
		return skipPLYList(prop, src)
	}
	_, err := src.scalar(prop.item)
	return err
}

func skipPLYList(prop PLYProperty, src plySource) error {
	n, err := src.scalar(prop.count)
	if err != nil {
		return err
	}
	for k := 0; k < int(n); k++ {
		if _, err := src.scalar(prop.item); err != nil {
			return err
		}
	}
	return nil
}

// plySource yields the scalars of a PLY body in file order.
type plySource interface {
	scalar(t plyType) (float64, error)
}

type plyASCII struct {
	fields [][]byte
	pos    int
}

func (s *plyASCII) scalar(plyType) (float64, error) {
	if s.pos >= len(s.fields) {
		return 0, ErrTruncatedPLYData
	}
	tok := s.fields[s.pos]
	s.pos++
	v, err := strconv.ParseFloat(string(tok), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPLYValue, tok)
	}
	return v, nil
}

type plyBinary struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

func (s *plyBinary) scalar(t plyType) (float64, error) {
	n := t.size()
	if s.pos+n > len(s.data) {
		return 0, ErrTruncatedPLYData
	}
	b := s.data[s.pos : s.pos+n]
	s.pos += n

	switch t {
	case plyInt8:
		return float64(int8(b[0])), nil
	case plyUint8:
		return float64(b[0]), nil
	case plyInt16:
		return float64(int16(s.order.Uint16(b))), nil
	case plyUint16:
		return float64(s.order.Uint16(b)), nil
	case plyInt32:
		return float64(int32(s.order.Uint32(b))), nil
	case plyUint32:
		return float64(s.order.Uint32(b)), nil
	case plyFloat32:
		return float64(gomath.Float32frombits(s.order.Uint32(b))), nil
	default:
		return gomath.Float64frombits(s.order.Uint64(b)), nil
	}
}

// WritePLY encodes m as a binary little-endian PLY file. Normals are written
// when present.
func WritePLY(w io.Writer, m *mesh.Mesh, comments ...string) error {
	bw := bufio.NewWriter(w)
	hasNormals := len(m.Normals) == len(m.Vertices) && len(m.Normals) > 0

	fmt.Fprintln(bw, "ply")
	fmt.Fprintln(bw, "format binary_little_endian 1.0")
	for _, c := range comments {
		fmt.Fprintln(bw, "comment", c)
	}
	fmt.Fprintln(bw, "element vertex", m.VertexCount())
	fmt.Fprintln(bw, "property float x\nproperty float y\nproperty float z")
	if hasNormals {
		fmt.Fprintln(bw, "property float nx\nproperty float ny\nproperty float nz")
	}
	fmt.Fprintln(bw, "element face", m.TriangleCount())
	fmt.Fprintln(bw, "property list uchar uint vertex_indices")
	fmt.Fprintln(bw, "end_header")

	le := binary.LittleEndian
	buf := make([]byte, 0, 24)
	for i := 0; i < m.VertexCount(); i++ {
		buf = buf[:0]
		for k := 0; k < 3; k++ {
			buf = le.AppendUint32(buf, gomath.Float32bits(m.Vertices[3*i+k]))
		}
		if hasNormals {
			for k := 0; k < 3; k++ {
				buf = le.AppendUint32(buf, gomath.Float32bits(m.Normals[3*i+k]))
			}
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	for f := 0; f+2 < len(m.Faces); f += 3 {
		buf = append(buf[:0], 3)
		for k := 0; k < 3; k++ {
			buf = le.AppendUint32(buf, m.Faces[f+k])
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WritePLYFile writes m to path.
func WritePLYFile(path string, m *mesh.Mesh, comments ...string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePLY(f, m, comments...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
