package components

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-viewer/engine/core"
)

func TestProjectionIsVulkanClipSpace(t *testing.T) {
	c := NewCamera(45, 0.1, 100, 5)
	c.SetAspect(16.0 / 9.0)
	p := c.GetProjection()

	if p[5] >= 0 {
		t.Fatalf("y scale %v should be flipped", p[5])
	}
	near := p.Mul4x1(mgl32.Vec4{0, 0, -0.1, 1})
	far := p.Mul4x1(mgl32.Vec4{0, 0, -100, 1})
	if z := near.Z() / near.W(); mgl32.Abs(z) > 1e-4 {
		t.Fatalf("near plane depth %v, want 0", z)
	}
	if z := far.Z() / far.W(); mgl32.Abs(z-1) > 1e-4 {
		t.Fatalf("far plane depth %v, want 1", z)
	}
}

func TestSetAspectIgnoresZero(t *testing.T) {
	c := NewCamera(45, 0.1, 100, 5)
	c.SetAspect(2)
	c.SetAspect(0)
	if c.Aspect != 2 {
		t.Fatalf("aspect %v", c.Aspect)
	}
}

func TestOrbitClampsPitch(t *testing.T) {
	c := NewCamera(45, 0.1, 100, 5)
	c.Orbit(0, 10)
	if c.Pitch != pitchLimit {
		t.Fatalf("pitch %v", c.Pitch)
	}
	c.Orbit(0, -20)
	if c.Pitch != -pitchLimit {
		t.Fatalf("pitch %v", c.Pitch)
	}
}

func TestZoomStaysInsideClipPlanes(t *testing.T) {
	c := NewCamera(45, 1, 100, 10)
	c.Zoom(1000)
	if c.Distance != 2 {
		t.Fatalf("distance %v, want 2", c.Distance)
	}
	c.Zoom(-1000)
	if c.Distance != 50 {
		t.Fatalf("distance %v, want 50", c.Distance)
	}
}

func TestViewLooksAtTarget(t *testing.T) {
	c := NewCamera(45, 0.1, 100, 5)
	c.Target = mgl32.Vec3{1, 2, 3}
	c.IsDirty = true
	eye := c.GetView().Mul4x1(c.Target.Vec4(1))
	if mgl32.Abs(eye.X()) > 1e-4 || mgl32.Abs(eye.Y()) > 1e-4 {
		t.Fatalf("target not centered: %v", eye)
	}
	if mgl32.Abs(eye.Z()+5) > 1e-4 {
		t.Fatalf("target at depth %v, want -5", eye.Z())
	}
}

func TestHandleInputDrag(t *testing.T) {
	c := NewCamera(45, 0.1, 100, 5)
	in := core.NewInputState()

	in.Apply(core.EventContext{Code: core.EVENT_CODE_BUTTON_PRESSED, Button: core.BUTTON_LEFT, X: 100, Y: 100})
	c.HandleInput(in, false)
	if c.Yaw != 0 {
		t.Fatal("press frame must not orbit")
	}
	in.Update()

	in.Apply(core.EventContext{Code: core.EVENT_CODE_MOUSE_MOVED, X: 110, Y: 100})
	c.HandleInput(in, false)
	if want := -10 * orbitSensitivity; mgl32.Abs(c.Yaw-want) > 1e-6 {
		t.Fatalf("yaw %v, want %v", c.Yaw, want)
	}
	in.Update()

	in.Apply(core.EventContext{Code: core.EVENT_CODE_MOUSE_MOVED, X: 150, Y: 100})
	yaw := c.Yaw
	c.HandleInput(in, true)
	if c.Yaw != yaw {
		t.Fatal("captured pointer input moved the camera")
	}
}

func TestUniformBlockCarriesLight(t *testing.T) {
	c := NewCamera(45, 0.1, 100, 5)
	c.LightPosition = mgl32.Vec3{1, 4, 2}
	b := c.UniformBlock()
	if b.LightPos != (mgl32.Vec4{1, 4, 2, 1}) {
		t.Fatalf("light %v", b.LightPos)
	}
}
