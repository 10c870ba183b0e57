// Package camera provides the orbit camera used by the viewer.
package camera

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	// Center point to orbit around
	Center mgl32.Vec3

	// Spherical coordinates
	Distance float32 // Distance from center
	Pitch    float32 // Vertical angle, radians
	Yaw      float32 // Horizontal angle, radians

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	OrbitStep float32 // Radians per key press
	ZoomStep  float32 // Fraction of distance per key press

	// Projection
	FOV  float32 // Vertical field of view, radians
	Near float32
	Far  float32
}

// NewOrbitCamera creates a new orbit camera with default settings.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:    3.0,
		Pitch:       0.3,
		Yaw:         0.0,
		MinDistance: 0.2,
		MaxDistance: 100.0,
		MinPitch:    -1.5,
		MaxPitch:    1.5,
		OrbitStep:   0.08,
		ZoomStep:    0.1,
		FOV:         gomath.Pi / 4,
		Near:        0.05,
		Far:         500.0,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	x := c.Distance * float32(gomath.Cos(float64(c.Pitch))*gomath.Sin(float64(c.Yaw)))
	y := c.Distance * float32(gomath.Sin(float64(c.Pitch)))
	z := c.Distance * float32(gomath.Cos(float64(c.Pitch))*gomath.Cos(float64(c.Yaw)))

	return c.Center.Add(mgl32.Vec3{x, y, z})
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Center, mgl32.Vec3{0, 1, 0})
}

// ProjectionMatrix returns a perspective projection for the given aspect
// ratio. Vulkan clip space has Y pointing down, so the Y axis is flipped.
func (c *OrbitCamera) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	proj := mgl32.Perspective(c.FOV, aspect, c.Near, c.Far)
	proj[5] *= -1
	return proj
}

// Orbit rotates the camera around the center by the given key step deltas.
func (c *OrbitCamera) Orbit(dYaw, dPitch float32) {
	c.Yaw += dYaw * c.OrbitStep
	c.Pitch += dPitch * c.OrbitStep

	if c.Pitch < c.MinPitch {
		c.Pitch = c.MinPitch
	}
	if c.Pitch > c.MaxPitch {
		c.Pitch = c.MaxPitch
	}
}

// Zoom moves the camera toward (positive delta) or away from the center.
func (c *OrbitCamera) Zoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomStep
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}
	if c.Distance > c.MaxDistance {
		c.Distance = c.MaxDistance
	}
}

// LightDirection returns the directional light vector, fixed slightly above
// and behind the camera so the visible side of the model is always lit.
func (c *OrbitCamera) LightDirection() mgl32.Vec3 {
	toCenter := c.Center.Sub(c.Position())
	dir := toCenter.Add(mgl32.Vec3{0, -c.Distance * 0.5, 0})
	if dir.Len() < 1e-6 {
		return mgl32.Vec3{0, -1, 0}
	}
	return dir.Normalize()
}

// FitToBounds centers the camera on a bounding box and backs off far enough
// to keep the whole box in frame.
func (c *OrbitCamera) FitToBounds(min, max mgl32.Vec3) {
	c.Center = min.Add(max).Mul(0.5)

	size := max.Sub(min).Len()
	if size < 1e-6 {
		size = 1
	}

	// Distance so the bounding sphere fits the vertical field of view.
	c.Distance = size / (2 * float32(gomath.Tan(float64(c.FOV)/2)))
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}

	c.MaxDistance = c.Distance * 20
	c.Pitch = 0.3
	c.Yaw = 0.0
}
