// Package main is the entry point for the interactive LOD viewer.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/internal/config"
	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/internal/viewer"
	"github.com/Faultbox/meshlod/pkg/formats"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg)
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run loads the mesh and drives the viewer. The viewer is closed before it
// returns on every path.
func run(cfg *config.Config) error {
	logger.Info("=== meshlod viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if cfg.Mesh.Path == "" {
		path, err := pickMesh()
		if err != nil {
			return err
		}
		cfg.Mesh.Path = path
	}

	m, err := formats.Load(cfg.Mesh.Path)
	if err != nil {
		logger.Error("failed to load mesh", zap.String("path", cfg.Mesh.Path), zap.Error(err))
		return err
	}
	logger.Info("mesh loaded",
		zap.String("path", cfg.Mesh.Path),
		zap.Int("vertices", m.VertexCount()),
		zap.Int("triangles", m.TriangleCount()))

	v, err := viewer.New(cfg, *m)
	if err != nil {
		logger.Error("failed to create viewer", zap.Error(err))
		return err
	}
	defer v.Close()

	if err := v.Run(); err != nil {
		logger.Error("viewer error", zap.Error(err))
		return err
	}

	logger.Info("viewer closed normally")
	return nil
}

// pickMesh asks for a mesh file when none was configured.
func pickMesh() (string, error) {
	path, err := dialog.File().
		Filter("Meshes", "ply", "obj").
		Filter("All Files", "*").
		Title("Open Mesh").
		Load()
	if errors.Is(err, dialog.ErrCancelled) {
		return "", errors.New("no mesh given; pass -mesh or a positional path")
	}
	return path, err
}
