// Package lodrender uploads every level of a mesh to the GPU once and draws
// the instance grid with one instanced call per level.
package lodrender

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/internal/engine/shader"
	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/internal/lod"
	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
)

const vertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec3 aOffset;

uniform mat4 uModel;
uniform mat4 uView;
uniform mat4 uProjection;
uniform mat3 uNormalMatrix;

out vec3 vNormal;

void main() {
	gl_Position = uProjection * uView * uModel * vec4(aPos + aOffset, 1.0);
	vNormal = uNormalMatrix * aNormal;
}
`

const fragmentShader = `
#version 410 core

in vec3 vNormal;
out vec4 FragColor;

uniform vec3 uColor;
uniform vec3 uLightDir;

void main() {
	vec3 n = normalize(vNormal);
	float diffuse = abs(dot(n, -uLightDir));
	FragColor = vec4(uColor * (0.25 + 0.75 * diffuse), 1.0);
}
`

// palette tints levels from fine (warm) to coarse (cool).
var palette = [][3]float32{
	{0.85, 0.85, 0.85},
	{0.95, 0.45, 0.35},
	{0.95, 0.75, 0.30},
	{0.55, 0.85, 0.40},
	{0.35, 0.75, 0.90},
	{0.45, 0.45, 0.95},
	{0.75, 0.45, 0.90},
}

// LevelColor returns the tint used for level k.
func LevelColor(k int) math.Vec3 {
	return math.V3(palette[k%len(palette)])
}

type levelBuffers struct {
	vao, vbo, ebo uint32
	indices       int32
}

// Stats describes one Draw.
type Stats struct {
	DrawCalls int
	Triangles int
}

// Renderer holds the GPU buffers of one LOD sequence.
type Renderer struct {
	program  *shader.Program
	levels   []levelBuffers
	offsets  uint32 // shared per-instance offset buffer
	scratch  []float32
	tint     bool
	lightDir math.Vec3
}

// Upload compiles the shader and creates one VAO per level. Level k of the
// result draws levels[k]. It must run on the GL thread.
func Upload(levels []mesh.Mesh) (*Renderer, error) {
	prog, err := shader.New(vertexShader, fragmentShader)
	if err != nil {
		return nil, fmt.Errorf("lod shader: %w", err)
	}

	r := &Renderer{
		program:  prog,
		levels:   make([]levelBuffers, len(levels)),
		tint:     true,
		lightDir: math.Vec3{X: -0.4, Y: -1, Z: -0.3}.Normalize(),
	}
	gl.GenBuffers(1, &r.offsets)

	for k := range levels {
		r.levels[k] = r.uploadLevel(&levels[k])
		logger.Debug("uploaded level",
			zap.Int("level", k),
			zap.Int("vertices", levels[k].VertexCount()),
			zap.Int("triangles", levels[k].TriangleCount()),
			zap.Uint32("vao", r.levels[k].vao))
	}
	return r, nil
}

func (r *Renderer) uploadLevel(m *mesh.Mesh) levelBuffers {
	var b levelBuffers
	if m.TriangleCount() == 0 {
		return b
	}

	// Interleaved position + normal.
	const stride = 6 * 4
	data := make([]float32, 0, 6*m.VertexCount())
	for i := 0; i < m.VertexCount(); i++ {
		p, n := m.Vertex(i), m.Normal(i)
		data = append(data, p.X, p.Y, p.Z, n.X, n.Y, n.Z)
	}

	gl.GenVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)

	gl.GenBuffers(1, &b.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, unsafe.Pointer(&data[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)

	gl.BindBuffer(gl.ARRAY_BUFFER, r.offsets)
	gl.VertexAttribPointerWithOffset(2, 3, gl.FLOAT, false, 3*4, 0)
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribDivisor(2, 1)

	gl.GenBuffers(1, &b.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Faces)*4, unsafe.Pointer(&m.Faces[0]), gl.STATIC_DRAW)
	b.indices = int32(len(m.Faces))

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return b
}

// SetTint switches between per-level colors and a single neutral color.
func (r *Renderer) SetTint(on bool) {
	r.tint = on
}

// Tint reports whether levels are drawn in their own color.
func (r *Renderer) Tint() bool {
	return r.tint
}

// batch is one instanced draw: every instance at level, whose offsets are
// scratch[start:end].
type batch struct {
	level      int
	start, end int
	instances  int
	triangles  int
}

// plan groups the instances of alloc by level, finest first. indices[k] is
// the index count uploaded for level k; levels without indices or without
// instances produce no batch. Offsets are appended to scratch.
func plan(alloc *lod.Allocator, indices []int32, scratch []float32) ([]batch, []float32) {
	last := min(len(indices)-1, alloc.MaxLevel())

	var batches []batch
	for k := 0; k <= last; k++ {
		if indices[k] == 0 {
			continue
		}
		start := len(scratch)
		scratch = alloc.AppendOffsets(scratch, k)
		n := (len(scratch) - start) / 3
		if n == 0 {
			continue
		}
		batches = append(batches, batch{
			level:     k,
			start:     start,
			end:       len(scratch),
			instances: n,
			triangles: n * int(indices[k]) / 3,
		})
	}
	return batches, scratch
}

// Draw renders every instance of alloc at its current level.
func (r *Renderer) Draw(alloc *lod.Allocator, projection, view, model math.Mat4) Stats {
	var stats Stats

	r.program.Use()
	r.program.SetMat4("uProjection", projection)
	r.program.SetMat4("uView", view)
	r.program.SetMat4("uModel", model)
	r.program.SetMat3("uNormalMatrix", model.NormalMatrix())
	r.program.SetVec3("uLightDir", r.lightDir)

	indices := make([]int32, len(r.levels))
	for k, b := range r.levels {
		indices[k] = b.indices
	}
	var batches []batch
	batches, r.scratch = plan(alloc, indices, r.scratch[:0])

	for _, bt := range batches {
		b := r.levels[bt.level]
		offsets := r.scratch[bt.start:bt.end]

		color := LevelColor(0)
		if r.tint {
			color = LevelColor(bt.level)
		}
		r.program.SetVec3("uColor", color)

		gl.BindBuffer(gl.ARRAY_BUFFER, r.offsets)
		gl.BufferData(gl.ARRAY_BUFFER, len(offsets)*4, unsafe.Pointer(&offsets[0]), gl.STREAM_DRAW)

		gl.BindVertexArray(b.vao)
		gl.DrawElementsInstanced(gl.TRIANGLES, b.indices, gl.UNSIGNED_INT, nil, int32(bt.instances))

		stats.DrawCalls++
		stats.Triangles += bt.triangles
	}

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return stats
}

// Close releases every GPU object.
func (r *Renderer) Close() {
	for k := range r.levels {
		b := &r.levels[k]
		if b.vao != 0 {
			gl.DeleteVertexArrays(1, &b.vao)
			gl.DeleteBuffers(1, &b.vbo)
			gl.DeleteBuffers(1, &b.ebo)
		}
	}
	r.levels = nil
	if r.offsets != 0 {
		gl.DeleteBuffers(1, &r.offsets)
		r.offsets = 0
	}
	r.program.Delete()
}
