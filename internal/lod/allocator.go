// Package lod assigns a level of detail to every rendered instance of a mesh
// so the total triangle count tracks a per-frame budget.
package lod

import (
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
)

// neverAdjusted marks instances that have not changed level yet, so the
// cooldown never blocks their first change.
const neverAdjusted = gomath.MinInt64 / 2

// minDistance keeps the contribution finite for instances at the eye.
const minDistance = 1e-6

type instance struct {
	level        int
	lastAdjusted int64
}

// Change describes one level adjustment made by Recompute.
type Change struct {
	Row, Col int
	From, To int
	Frame    int64
}

// Allocator owns the per-instance level grid. It is driven from the render
// loop and is not safe for concurrent use.
type Allocator struct {
	cfg      Config
	levels   []LevelInfo
	maxLevel int

	center   math.Vec3
	extent   math.Vec3
	diagonal float64

	rows, cols int
	grid       []instance // row-major

	triangles int
	vertices  int

	last    Change
	changed bool
}

// New creates an allocator for a mesh with the given levels. The grid starts
// empty; call Resize to add instances.
func New(levels []LevelInfo, bounds mesh.Bounds, cfg Config) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}

	maxLevel := len(levels) - 1
	if cfg.MaxLevel > 0 && cfg.MaxLevel < maxLevel {
		maxLevel = cfg.MaxLevel
	}

	return &Allocator{
		cfg:      cfg,
		levels:   levels,
		maxLevel: maxLevel,
		center:   bounds.Center(),
		extent:   bounds.Extent(),
		diagonal: float64(bounds.Diagonal()),
	}, nil
}

// Resize clears the grid to rows x cols instances, each clamped to
// [0, MaxInstances]. Every instance restarts at level 0 with no cooldown.
func (a *Allocator) Resize(rows, cols int) {
	a.rows = clampInt(rows, 0, a.cfg.MaxInstances)
	a.cols = clampInt(cols, 0, a.cfg.MaxInstances)
	a.grid = make([]instance, a.rows*a.cols)
	for i := range a.grid {
		a.grid[i].lastAdjusted = neverAdjusted
	}
	a.changed = false
	a.recount()

	logger.Debug("instance grid reset",
		zap.Int("rows", a.rows),
		zap.Int("cols", a.cols),
		zap.Int("triangles", a.triangles))
}

// Recompute moves at most one instance one level towards the budget: the
// coarsening candidate when the current total is at or above budget, the
// refining candidate otherwise. With hysteresis on, instances changed less
// than Cooldown frames ago are skipped.
func (a *Allocator) Recompute(model, view math.Mat4, frame int64, hysteresis bool) {
	a.changed = false

	ready := func(*instance) bool { return true }
	if hysteresis {
		cooldown := int64(a.cfg.Cooldown)
		ready = func(in *instance) bool { return frame-in.lastAdjusted >= cooldown }
	}

	dir := -1
	if a.triangles >= a.cfg.Budget {
		dir = 1
	}

	best, ok := a.candidate(view.Mul(model), dir, ready)
	if !ok {
		return
	}
	a.apply(best, a.grid[best].level+dir, frame)
}

// candidate scans rows and columns from the highest index down and returns
// the instance whose move by dir has the lowest cost when coarsening or the
// highest when refining. The first instance found wins ties.
func (a *Allocator) candidate(modelView math.Mat4, dir int, ready func(*instance) bool) (int, bool) {
	best := -1
	var bestCost float64

	for r := a.rows - 1; r >= 0; r-- {
		for c := a.cols - 1; c >= 0; c-- {
			i := r*a.cols + c
			in := &a.grid[i]
			next := in.level + dir
			if next < 0 || next > a.maxLevel || !ready(in) {
				continue
			}

			d := a.distance(modelView, r, c)
			cost := a.contribution(next, d) - a.contribution(in.level, d)
			if best < 0 || (dir > 0 && cost < bestCost) || (dir < 0 && cost > bestCost) {
				best, bestCost = i, cost
			}
		}
	}
	return best, best >= 0
}

// contribution is diagonal / (2^level * distance).
func (a *Allocator) contribution(level int, distance float64) float64 {
	return a.diagonal / gomath.Ldexp(distance, level)
}

// distance returns the view-space distance of the instance's bounding box
// center. The instance transform is a pure translation, so applying it to the
// center before modelView equals composing the matrices.
func (a *Allocator) distance(modelView math.Mat4, row, col int) float64 {
	p := modelView.TransformPoint(a.center.Add(a.InstanceOffset(row, col)))
	return gomath.Max(float64(p.Length()), minDistance)
}

func (a *Allocator) apply(i, level int, frame int64) {
	in := &a.grid[i]
	from := in.level

	a.triangles += a.levels[level].Triangles - a.levels[from].Triangles
	a.vertices += a.levels[level].Vertices - a.levels[from].Vertices
	in.level = level
	in.lastAdjusted = frame

	a.last = Change{Row: i / a.cols, Col: i % a.cols, From: from, To: level, Frame: frame}
	a.changed = true
}

// InstanceOffset returns the model-space translation of instance (row, col).
// Instances are laid out on the XZ plane, one mesh extent times Spacing apart.
func (a *Allocator) InstanceOffset(row, col int) math.Vec3 {
	return math.Vec3{
		X: float32(col) * a.extent.X * a.cfg.Spacing,
		Z: float32(row) * a.extent.Z * a.cfg.Spacing,
	}
}

// LastChange returns the adjustment made by the most recent Recompute, if any.
func (a *Allocator) LastChange() (Change, bool) {
	return a.last, a.changed
}

// Level returns the level of instance (row, col).
func (a *Allocator) Level(row, col int) int {
	return a.grid[row*a.cols+col].level
}

// SetLevel forces the level of one instance, bypassing the budget.
func (a *Allocator) SetLevel(row, col, level int) error {
	if row < 0 || row >= a.rows || col < 0 || col >= a.cols {
		return fmt.Errorf("%w: (%d, %d) in %dx%d", ErrInstanceOutOfRange, row, col, a.rows, a.cols)
	}
	if level < 0 || level > a.maxLevel {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrLevelOutOfRange, level, a.maxLevel)
	}
	a.grid[row*a.cols+col].level = level
	a.recount()
	return nil
}

// SetAll forces every instance to the same level.
func (a *Allocator) SetAll(level int) error {
	if level < 0 || level > a.maxLevel {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrLevelOutOfRange, level, a.maxLevel)
	}
	for i := range a.grid {
		a.grid[i].level = level
	}
	a.recount()
	return nil
}

// SetBudget changes the triangle budget.
func (a *Allocator) SetBudget(budget int) {
	if budget < 0 {
		budget = 0
	}
	a.cfg.Budget = budget
}

func (a *Allocator) recount() {
	a.triangles, a.vertices = 0, 0
	for i := range a.grid {
		info := a.levels[a.grid[i].level]
		a.triangles += info.Triangles
		a.vertices += info.Vertices
	}
}

// Size returns the grid dimensions.
func (a *Allocator) Size() (rows, cols int) {
	return a.rows, a.cols
}

// Triangles returns the total triangle count of all instances.
func (a *Allocator) Triangles() int {
	return a.triangles
}

// Vertices returns the total vertex count of all instances.
func (a *Allocator) Vertices() int {
	return a.vertices
}

// Budget returns the triangle budget.
func (a *Allocator) Budget() int {
	return a.cfg.Budget
}

// MaxLevel returns the coarsest level instances may use.
func (a *Allocator) MaxLevel() int {
	return a.maxLevel
}

// Histogram returns the number of instances at each level.
func (a *Allocator) Histogram() []int {
	h := make([]int, a.maxLevel+1)
	for i := range a.grid {
		h[a.grid[i].level]++
	}
	return h
}

// Instances calls fn for every instance at the given level in row-major order.
func (a *Allocator) Instances(level int, fn func(row, col int)) {
	for i := range a.grid {
		if a.grid[i].level == level {
			fn(i/a.cols, i%a.cols)
		}
	}
}

// AppendOffsets appends the xyz offsets of every instance at level to dst.
func (a *Allocator) AppendOffsets(dst []float32, level int) []float32 {
	a.Instances(level, func(row, col int) {
		off := a.InstanceOffset(row, col)
		dst = append(dst, off.X, off.Y, off.Z)
	})
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
