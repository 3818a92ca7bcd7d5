// Package camera provides the orbit camera used to inspect the instance grid.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/meshlod/pkg/math"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	Center math.Vec3

	// Spherical coordinates
	Distance float32
	Pitch    float32 // radians above the XZ plane
	Yaw      float32 // radians around +Y

	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	DragSensitivity float32
	ZoomSensitivity float32
	// KeySpeed is the yaw/pitch rate in radians per second for held keys.
	KeySpeed float32

	FovY       float32
	Near, Far  float32
	autoOrbit  bool
	orbitSpeed float32
}

// NewOrbitCamera creates an orbit camera with default settings.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        10,
		Pitch:           0.5,
		MinDistance:     0.1,
		MaxDistance:     1000,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		KeySpeed:        1.2,
		FovY:            math32.Pi / 4,
		Near:            0.01,
		Far:             1000,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	sp, cp := math32.Sincos(c.Pitch)
	sy, cy := math32.Sincos(c.Yaw)
	return c.Center.Add(math.Vec3{
		X: c.Distance * cp * sy,
		Y: c.Distance * sp,
		Z: c.Distance * cp * cy,
	})
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), c.Center, math.Vec3{Y: 1})
}

// ProjectionMatrix returns a perspective projection for the given aspect.
func (c *OrbitCamera) ProjectionMatrix(aspect float32) math.Mat4 {
	return math.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// HandleDrag updates rotation from a mouse drag delta in pixels.
func (c *OrbitCamera) HandleDrag(dx, dy float32) {
	c.Rotate(-dx*c.DragSensitivity, dy*c.DragSensitivity)
}

// HandleKeys rotates from held-key axes over dt seconds.
func (c *OrbitCamera) HandleKeys(yaw, pitch, dt float32) {
	c.Rotate(yaw*c.KeySpeed*dt, pitch*c.KeySpeed*dt)
}

// Rotate adds yaw and pitch, clamping pitch.
func (c *OrbitCamera) Rotate(dYaw, dPitch float32) {
	c.Yaw += dYaw
	c.Pitch = clamp(c.Pitch+dPitch, c.MinPitch, c.MaxPitch)
}

// HandleZoom scales the distance by a wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance = clamp(c.Distance-delta*c.Distance*c.ZoomSensitivity, c.MinDistance, c.MaxDistance)
}

// SetAutoOrbit spins the camera around its center at speed radians per second.
func (c *OrbitCamera) SetAutoOrbit(on bool, speed float32) {
	c.autoOrbit = on
	c.orbitSpeed = speed
}

// AutoOrbit reports whether the camera spins on its own.
func (c *OrbitCamera) AutoOrbit() bool {
	return c.autoOrbit
}

// Update advances the automatic orbit by dt seconds.
func (c *OrbitCamera) Update(dt float32) {
	if c.autoOrbit {
		c.Yaw += c.orbitSpeed * dt
	}
}

// FitToBounds centers the camera on an axis-aligned box and backs off until
// the whole box fits the vertical field of view.
func (c *OrbitCamera) FitToBounds(min, max math.Vec3) {
	c.Center = min.Add(max).Scale(0.5)
	radius := max.Sub(min).Length() / 2
	if radius == 0 {
		radius = 1
	}

	c.Distance = radius / math32.Sin(c.FovY/2)
	c.MinDistance = radius * 0.05
	c.MaxDistance = c.Distance * 20
	c.Near = c.Distance / 1000
	c.Far = c.Distance * 40
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
