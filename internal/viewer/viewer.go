package viewer

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/internal/config"
	"github.com/Faultbox/meshlod/internal/engine/camera"
	"github.com/Faultbox/meshlod/internal/engine/input"
	"github.com/Faultbox/meshlod/internal/engine/lodrender"
	"github.com/Faultbox/meshlod/internal/engine/renderer"
	"github.com/Faultbox/meshlod/internal/engine/window"
	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/pkg/math"
	"github.com/Faultbox/meshlod/pkg/mesh"
)

// orbitSpeed is the automatic orbit rate in radians per second.
const orbitSpeed = 0.3

// Viewer is the interactive main loop.
type Viewer struct {
	cfg      *config.Config
	running  bool
	window   *window.Window
	renderer *renderer.Renderer
	levels   *lodrender.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	session  *Session
	model    math.Mat4
}

// New opens the window, builds the levels of m and uploads them.
func New(cfg *config.Config, m mesh.Mesh) (*Viewer, error) {
	v := &Viewer{
		cfg:    cfg,
		input:  input.New(),
		camera: camera.NewOrbitCamera(),
		model:  math.Identity(),
	}

	var err error
	v.session, err = NewSession(cfg, m)
	if err != nil {
		return nil, err
	}

	v.window, err = window.New(window.Config{
		Title:      "meshlod",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
		Samples:    4,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	width, height := v.window.Size()
	v.renderer, err = renderer.New(renderer.Config{
		Width:      width,
		Height:     height,
		ClearColor: [3]float32{0.1, 0.1, 0.15},
	})
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	if err := v.upload(); err != nil {
		v.window.Close()
		return nil, err
	}
	v.resetCamera()

	logger.Info("viewer initialized")
	return v, nil
}

func (v *Viewer) upload() error {
	if v.levels != nil {
		v.levels.Close()
	}
	tint := v.levels == nil || v.levels.Tint()

	lr, err := lodrender.Upload(v.session.Levels().Meshes)
	if err != nil {
		return fmt.Errorf("failed to upload levels: %w", err)
	}
	lr.SetTint(tint)
	v.levels = lr
	v.session.TakeRebuilt()
	return renderer.CheckError("upload")
}

func (v *Viewer) resetCamera() {
	lo, hi := v.session.GridBounds()
	v.camera.FitToBounds(lo, hi)
}

// Run drives the frame loop until the window closes or Esc is pressed.
func (v *Viewer) Run() error {
	v.running = true
	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()
	var fps int

	logger.Info("starting frame loop")

	for v.running {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		if v.input.Update() {
			v.running = false
			break
		}
		if err := v.handleEvents(); err != nil {
			return err
		}

		v.camera.HandleKeys(input.Axis(yawRight, yawLeft), input.Axis(pitchUp, pitchDown), dt)
		v.camera.Update(dt)

		view := v.camera.ViewMatrix()
		v.session.Step(v.model, view)

		v.renderer.Begin()
		stats := v.levels.Draw(v.session.Allocator(), v.camera.ProjectionMatrix(v.window.Aspect()), view, v.model)
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			fps = frameCount
			frameCount = 0
			fpsTimer = time.Now()
			logger.Debug("frame stats",
				zap.Int("fps", fps),
				zap.Int("draw_calls", stats.DrawCalls),
				zap.Int("triangles", stats.Triangles))
		}
		v.window.SetTitle(fmt.Sprintf("%s | %d fps", v.session.Title(), fps))
	}

	return nil
}

func (v *Viewer) handleEvents() error {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			width, height := v.window.Size()
			v.renderer.Resize(width, height)
		case input.EventMouseDrag:
			v.camera.HandleDrag(event.DX, event.DY)
		case input.EventMouseWheel:
			v.camera.HandleZoom(event.DY)
		case input.EventKeyDown:
			action, ok := keyBindings[event.Key]
			if !ok {
				continue
			}
			if err := v.apply(action); err != nil {
				logger.Warn("action failed", zap.Int("action", int(action.Kind)), zap.Error(err))
			}
		}
	}

	if v.session.TakeRebuilt() {
		if err := v.upload(); err != nil {
			return err
		}
	}
	return nil
}

func (v *Viewer) apply(a Action) error {
	switch a.Kind {
	case ActionQuit:
		v.running = false
	case ActionToggleWireframe:
		v.renderer.SetWireframe(!v.renderer.Wireframe())
	case ActionToggleTint:
		v.levels.SetTint(!v.levels.Tint())
	case ActionToggleOrbit:
		v.camera.SetAutoOrbit(!v.camera.AutoOrbit(), orbitSpeed)
	case ActionResetCamera:
		v.resetCamera()
	default:
		return v.session.Apply(a)
	}
	return nil
}

// Close releases GPU resources and the window.
func (v *Viewer) Close() {
	logger.Info("closing viewer")

	if v.levels != nil {
		v.levels.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
