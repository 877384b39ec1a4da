package components

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/math"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

/**
 * @brief Converts OpenGL clip space (y up, depth -1..1) to Vulkan clip space
 * (y down, depth 0..1).
 */
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

const (
	/** @brief Radians of orbit per pixel of pointer drag. */
	orbitSensitivity float32 = 0.005
	/** @brief Radians of orbit per frame while an arrow key is held. */
	keyOrbitStep float32 = 0.02
	/** @brief Distance factor applied per scroll notch. */
	zoomFactor float32 = 0.9
	/** @brief 89 degrees, keeps the view matrix away from the poles. */
	pitchLimit float32 = 1.55334306
)

/**
 * @brief An orbit camera looking at a target point. Drag with the left
 * button to orbit, scroll to zoom.
 */
type Camera struct {
	Target   mgl32.Vec3
	Distance float32
	/** @brief Rotation around the world up axis, in radians. */
	Yaw float32
	/** @brief Elevation above the target plane, in radians. */
	Pitch float32

	/** @brief Vertical field of view in degrees. */
	FOV    float32
	Near   float32
	Far    float32
	Aspect float32

	LightPosition mgl32.Vec3

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty    bool
	ViewMatrix mgl32.Mat4
}

func NewCamera(fov, near, far, distance float32) *Camera {
	c := &Camera{
		FOV:      fov,
		Near:     near,
		Far:      far,
		Distance: distance,
		Aspect:   1,
	}
	c.Reset()
	return c
}

func (c *Camera) Reset() {
	c.Target = mgl32.Vec3{}
	c.Yaw = 0
	c.Pitch = 0.3
	c.IsDirty = true
}

func (c *Camera) Position() mgl32.Vec3 {
	cp := float32(stdmath.Cos(float64(c.Pitch)))
	sp := float32(stdmath.Sin(float64(c.Pitch)))
	cy := float32(stdmath.Cos(float64(c.Yaw)))
	sy := float32(stdmath.Sin(float64(c.Yaw)))
	return c.Target.Add(mgl32.Vec3{sy * cp, sp, cy * cp}.Mul(c.Distance))
}

func (c *Camera) GetView() mgl32.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = mgl32.LookAtV(c.Position(), c.Target, mgl32.Vec3{0, 1, 0})
		c.IsDirty = false
	}
	return c.ViewMatrix
}

// GetProjection returns a right handed perspective already in Vulkan clip space.
func (c *Camera) GetProjection() mgl32.Mat4 {
	return vulkanClip.Mul4(mgl32.Perspective(mgl32.DegToRad(c.FOV), c.Aspect, c.Near, c.Far))
}

func (c *Camera) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.Aspect = aspect
}

func (c *Camera) SetFOV(fov float32) {
	c.FOV = math.Clamp(fov, 10, 120)
}

func (c *Camera) Orbit(dYaw, dPitch float32) {
	c.Yaw += dYaw
	c.Pitch = math.Clamp(c.Pitch+dPitch, -pitchLimit, pitchLimit)
	c.IsDirty = true
}

// Zoom moves toward the target for positive notches, keeping the eye
// between the clip planes.
func (c *Camera) Zoom(notches float32) {
	d := c.Distance * float32(stdmath.Pow(float64(zoomFactor), float64(notches)))
	c.Distance = math.Clamp(d, c.Near*2, c.Far*0.5)
	c.IsDirty = true
}

// HandleInput applies one frame of input. Pointer input is ignored when the
// UI has captured it.
func (c *Camera) HandleInput(in *core.InputState, uiCaptured bool) {
	if !uiCaptured {
		if in.IsButtonDown(core.BUTTON_LEFT) && !in.ButtonPressed(core.BUTTON_LEFT) {
			dx, dy := in.MouseDelta()
			if dx != 0 || dy != 0 {
				c.Orbit(-float32(dx)*orbitSensitivity, float32(dy)*orbitSensitivity)
			}
		}
		if in.Scroll != 0 {
			c.Zoom(float32(in.Scroll))
		}
	}
	if in.IsKeyDown(core.KEY_LEFT) {
		c.Orbit(-keyOrbitStep, 0)
	}
	if in.IsKeyDown(core.KEY_RIGHT) {
		c.Orbit(keyOrbitStep, 0)
	}
	if in.IsKeyDown(core.KEY_UP) {
		c.Orbit(0, keyOrbitStep)
	}
	if in.IsKeyDown(core.KEY_DOWN) {
		c.Orbit(0, -keyOrbitStep)
	}
}

// UniformBlock fills the camera block read by the scene vertex shader.
func (c *Camera) UniformBlock() metadata.CameraUniform {
	return metadata.CameraUniform{
		Projection: c.GetProjection(),
		View:       c.GetView(),
		LightPos:   c.LightPosition.Vec4(1),
	}
}
