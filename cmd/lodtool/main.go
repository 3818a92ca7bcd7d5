// lodtool builds and inspects mesh levels of detail without a GPU.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/meshlod/internal/engine/camera"
	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/internal/lod"
	"github.com/Faultbox/meshlod/pkg/formats"
	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
	"github.com/Faultbox/meshlod/pkg/simplify"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(args)
	case "build", "b":
		err = cmdBuild(args)
	case "simulate", "sim":
		err = cmdSimulate(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lodtool - mesh level of detail utility

Usage:
  lodtool <command> [options] <mesh.ply|mesh.obj>

Commands:
  info <mesh>                  Show vertex, face and bounds information
  build [options] <mesh>       Build levels and print a per-level table
  simulate [options] <mesh>    Run the instance allocator against an orbiting camera

Build options:
  -policy P     mean, median, voxelize, error-quadric, shape-preserving (default mean)
  -ratio R      grid resolution step (default 8)
  -steps S      number of simplified levels (default 5)
  -workers W    build levels concurrently
  -report FILE  write a YAML report
  -out DIR      write every level as binary PLY

Simulate options:
  -policy, -ratio, -steps as above
  -budget B         triangle budget (default 1000000)
  -instances N      grid side (default 10)
  -frames F         frames to simulate (default 600)
  -no-hysteresis    disable the per-instance cooldown
  -report FILE      write a YAML report

Examples:
  lodtool info bunny.ply
  lodtool build -policy error-quadric -report levels.yaml bunny.ply
  lodtool simulate -budget 200000 -instances 20 bunny.ply`)
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: lodtool info <mesh>")
	}

	m, err := formats.Load(args[0])
	if err != nil {
		return err
	}

	ext := m.Bounds.Extent()
	fmt.Printf("Mesh:      %s\n", args[0])
	fmt.Printf("Vertices:  %d\n", m.VertexCount())
	fmt.Printf("Triangles: %d\n", m.TriangleCount())
	fmt.Printf("Normals:   %t\n", len(m.Normals) > 0)
	fmt.Printf("Bounds:    %v .. %v\n", m.Bounds.Min, m.Bounds.Max)
	fmt.Printf("Extent:    %.4g x %.4g x %.4g (diagonal %.4g)\n", ext.X, ext.Y, ext.Z, m.Bounds.Diagonal())
	return nil
}

// buildFlags are shared by build and simulate.
type buildFlags struct {
	policy  string
	ratio   int
	steps   int
	workers int
	debug   bool
	report  string
}

func (b *buildFlags) register(fs *flag.FlagSet) {
	def := simplify.DefaultSchedule()
	fs.StringVar(&b.policy, "policy", simplify.Mean.String(), "Simplification policy")
	fs.IntVar(&b.ratio, "ratio", def.Ratio, "Grid resolution step")
	fs.IntVar(&b.steps, "steps", def.Steps, "Number of simplified levels")
	fs.IntVar(&b.workers, "workers", 1, "Concurrent level builds")
	fs.BoolVar(&b.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&b.report, "report", "", "Write a YAML report to this file")
}

// load reads the mesh named by the first positional argument and builds its
// levels.
func (b *buildFlags) load(fs *flag.FlagSet) (string, simplify.Levels, time.Duration, error) {
	if fs.NArg() < 1 {
		return "", simplify.Levels{}, 0, fmt.Errorf("usage: lodtool %s [options] <mesh>", fs.Name())
	}
	level := "info"
	if b.debug {
		level = "debug"
	}
	if err := logger.Init(level, ""); err != nil {
		return "", simplify.Levels{}, 0, err
	}

	policy, err := simplify.ParsePolicy(b.policy)
	if err != nil {
		return "", simplify.Levels{}, 0, err
	}

	path := fs.Arg(0)
	m, err := formats.Load(path)
	if err != nil {
		return "", simplify.Levels{}, 0, err
	}

	opts := simplify.DefaultOptions()
	opts.Schedule = simplify.Schedule{Ratio: b.ratio, Steps: b.steps}
	opts.Workers = b.workers
	opts.Logger = logger.Named("simplify")

	start := time.Now()
	levels, err := simplify.BuildLevels(*m, policy, opts)
	if err != nil {
		return "", simplify.Levels{}, 0, err
	}
	return path, levels, time.Since(start), nil
}

type levelReport struct {
	Level      int     `yaml:"level"`
	Resolution int     `yaml:"resolution"`
	Vertices   int     `yaml:"vertices"`
	Triangles  int     `yaml:"triangles"`
	Reduction  float64 `yaml:"reduction"`
	File       string  `yaml:"file,omitempty"`
}

type buildReport struct {
	Mesh     string            `yaml:"mesh"`
	Policy   simplify.Policy   `yaml:"policy"`
	Schedule simplify.Schedule `yaml:"schedule"`
	BuildMS  int64             `yaml:"build_ms"`
	Levels   []levelReport     `yaml:"levels"`
}

func cmdBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var bf buildFlags
	bf.register(fs)
	outDir := fs.String("out", "", "Write every level as PLY into this directory")
	fs.Parse(args)

	path, levels, took, err := bf.load(fs)
	if err != nil {
		return err
	}

	report := buildReport{
		Mesh:     path,
		Policy:   levels.Policy,
		Schedule: simplify.Schedule{Ratio: bf.ratio, Steps: bf.steps},
		BuildMS:  took.Milliseconds(),
		Levels:   summarize(levels),
	}

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0755); err != nil {
			return err
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for k := range levels.Meshes {
			file := filepath.Join(*outDir, fmt.Sprintf("%s_lod%d.ply", base, k))
			comment := fmt.Sprintf("%s level %d resolution %d", levels.Policy, k, levels.Resolutions[k])
			if err := formats.WritePLYFile(file, levels.Level(k), comment); err != nil {
				return err
			}
			report.Levels[k].File = file
		}
	}

	fmt.Printf("Mesh:   %s\n", path)
	fmt.Printf("Policy: %s (built in %v)\n\n", levels.Policy, took.Round(time.Millisecond))
	fmt.Printf("  %-6s %-6s %10s %10s %8s\n", "Level", "Grid", "Vertices", "Triangles", "Kept")
	for _, l := range report.Levels {
		grid := "-"
		if l.Resolution > 0 {
			grid = fmt.Sprint(l.Resolution)
		}
		fmt.Printf("  %-6d %-6s %10d %10d %7.1f%%\n", l.Level, grid, l.Vertices, l.Triangles, 100*(1-l.Reduction))
	}

	return writeReport(bf.report, report)
}

func summarize(levels simplify.Levels) []levelReport {
	base := levels.Level(0).TriangleCount()
	out := make([]levelReport, levels.Len())
	for k := range out {
		m := levels.Level(k)
		reduction := 0.0
		if base > 0 {
			reduction = 1 - float64(m.TriangleCount())/float64(base)
		}
		out[k] = levelReport{
			Level:      k,
			Resolution: levels.Resolutions[k],
			Vertices:   m.VertexCount(),
			Triangles:  m.TriangleCount(),
			Reduction:  reduction,
		}
	}
	return out
}

type simulateReport struct {
	Mesh          string          `yaml:"mesh"`
	Policy        simplify.Policy `yaml:"policy"`
	Budget        int             `yaml:"budget"`
	Instances     int             `yaml:"instances"`
	Hysteresis    bool            `yaml:"hysteresis"`
	Frames        int             `yaml:"frames"`
	Changes       int             `yaml:"changes"`
	FirstInBudget int             `yaml:"first_frame_in_budget"`
	Triangles     int             `yaml:"triangles"`
	Histogram     []int           `yaml:"histogram"`
	Levels        []levelReport   `yaml:"levels"`
}

func cmdSimulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	var bf buildFlags
	bf.register(fs)
	cfg := lod.DefaultConfig()
	fs.IntVar(&cfg.Budget, "budget", cfg.Budget, "Triangle budget")
	fs.IntVar(&cfg.Cooldown, "cooldown", cfg.Cooldown, "Frames between changes of one instance")
	instances := fs.Int("instances", 10, "Instance grid side")
	frames := fs.Int("frames", 600, "Frames to simulate")
	noHysteresis := fs.Bool("no-hysteresis", false, "Disable the per-instance cooldown")
	every := fs.Int("every", 60, "Print progress every N frames")
	fs.Parse(args)

	path, levels, _, err := bf.load(fs)
	if err != nil {
		return err
	}

	alloc, err := lod.New(lod.LevelsFromMeshes(levels.Meshes), levels.Level(0).Bounds, cfg)
	if err != nil {
		return err
	}
	alloc.Resize(*instances, *instances)

	cam := camera.NewOrbitCamera()
	lo, hi := gridBounds(alloc, levels.Level(0).Bounds)
	cam.FitToBounds(lo, hi)
	cam.Pitch = 0.4
	cam.SetAutoOrbit(true, 0.3)

	report := simulateReport{
		Mesh:          path,
		Policy:        levels.Policy,
		Budget:        cfg.Budget,
		Instances:     *instances,
		Hysteresis:    !*noHysteresis,
		Frames:        *frames,
		FirstInBudget: -1,
		Levels:        summarize(levels),
	}

	fmt.Printf("Simulating %d frames, %dx%d instances, budget %d, hysteresis %t\n\n",
		*frames, *instances, *instances, cfg.Budget, report.Hysteresis)
	fmt.Printf("  %-6s %10s  %s\n", "Frame", "Triangles", "Levels")

	const dt = 1.0 / 60
	model := math.Identity()
	for frame := 0; frame < *frames; frame++ {
		cam.Update(dt)
		alloc.Recompute(model, cam.ViewMatrix(), int64(frame), report.Hysteresis)
		if _, ok := alloc.LastChange(); ok {
			report.Changes++
		}
		if report.FirstInBudget < 0 && alloc.Triangles() < cfg.Budget {
			report.FirstInBudget = frame
		}
		if *every > 0 && (frame%*every == 0 || frame == *frames-1) {
			fmt.Printf("  %-6d %10d  %v\n", frame, alloc.Triangles(), alloc.Histogram())
		}
	}

	report.Triangles = alloc.Triangles()
	report.Histogram = alloc.Histogram()
	logger.Info("simulation done",
		zap.Int("changes", report.Changes),
		zap.Int("first_frame_in_budget", report.FirstInBudget),
		zap.Int("triangles", report.Triangles))

	return writeReport(bf.report, report)
}

func gridBounds(alloc *lod.Allocator, b mesh.Bounds) (math.Vec3, math.Vec3) {
	rows, cols := alloc.Size()
	far := alloc.InstanceOffset(max(rows-1, 0), max(cols-1, 0))
	return math.V3(b.Min), math.V3(b.Max).Add(far)
}

func writeReport(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Printf("\nReport written to %s\n", path)
	return nil
}
