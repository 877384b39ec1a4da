package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/anima-viewer/engine/config"
	"github.com/spaghettifunk/anima-viewer/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

/**
 * @brief The application window. Callbacks only translate and push events;
 * the frame loop drains them.
 */
type Window struct {
	handle *glfw.Window
	events *core.EventQueue
}

func NewWindow(cfg config.WindowConfig, events *core.EventQueue) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize glfw: %w", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, fmt.Errorf("glfw reports no Vulkan loader: %w", core.ErrResourceCreation)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	handle, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w := &Window{handle: handle, events: events}
	handle.SetKeyCallback(w.keyCallback)
	handle.SetMouseButtonCallback(w.mouseButtonCallback)
	handle.SetCursorPosCallback(w.cursorPosCallback)
	handle.SetScrollCallback(w.scrollCallback)
	handle.SetFramebufferSizeCallback(w.framebufferSizeCallback)
	handle.SetCloseCallback(w.closeCallback)
	handle.SetPos(cfg.X, cfg.Y)
	handle.Show()

	core.LogInfo("Window %q created at %dx%d.", cfg.Title, cfg.Width, cfg.Height)
	return w, nil
}

func (w *Window) FramebufferSize() (int, int) {
	return w.handle.GetFramebufferSize()
}

// PollEvents runs pending callbacks without blocking.
func (w *Window) PollEvents() {
	glfw.PollEvents()
}

// WaitEvents blocks until at least one event arrives.
func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

func (w *Window) ShouldClose() bool {
	return w.handle.ShouldClose()
}

func (w *Window) SetShouldClose(value bool) {
	w.handle.SetShouldClose(value)
}

// RequestClose may be called from any goroutine. It also wakes a blocked
// WaitEvents.
func (w *Window) RequestClose() {
	w.handle.SetShouldClose(true)
	glfw.PostEmptyEvent()
}

// CursorScale converts window coordinates to framebuffer pixels.
func (w *Window) CursorScale() (float64, float64) {
	ww, wh := w.handle.GetSize()
	fw, fh := w.handle.GetFramebufferSize()
	if ww <= 0 || wh <= 0 {
		return 1, 1
	}
	return float64(fw) / float64(ww), float64(fh) / float64(wh)
}

func (w *Window) SetTitle(title string) {
	w.handle.SetTitle(title)
}

func (w *Window) CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error) {
	return w.handle.CreateWindowSurface(instance, allocCallbacks)
}

func (w *Window) GetRequiredInstanceExtensions() []string {
	return w.handle.GetRequiredInstanceExtensions()
}

// Destroy closes the window and terminates glfw.
func (w *Window) Destroy() {
	if w.handle != nil {
		w.handle.Destroy()
		w.handle = nil
	}
	glfw.Terminate()
}

func GetAbsoluteTime() float64 {
	return glfw.GetTime()
}

func (w *Window) keyCallback(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	code := TranslateKey(key)
	if code == core.KEY_UNKNOWN {
		return
	}
	e := core.EventContext{Code: core.EVENT_CODE_KEY_PRESSED, Key: code}
	if action == glfw.Release {
		e.Code = core.EVENT_CODE_KEY_RELEASED
	}
	w.events.Push(e)
}

func (w *Window) mouseButtonCallback(win *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	b, ok := TranslateButton(button)
	if !ok {
		return
	}
	x, y := win.GetCursorPos()
	e := core.EventContext{Code: core.EVENT_CODE_BUTTON_PRESSED, Button: b, X: x, Y: y}
	if action == glfw.Release {
		e.Code = core.EVENT_CODE_BUTTON_RELEASED
	}
	w.events.Push(e)
}

func (w *Window) cursorPosCallback(_ *glfw.Window, xpos, ypos float64) {
	w.events.Push(core.EventContext{Code: core.EVENT_CODE_MOUSE_MOVED, X: xpos, Y: ypos})
}

func (w *Window) scrollCallback(_ *glfw.Window, _, yoff float64) {
	w.events.Push(core.EventContext{Code: core.EVENT_CODE_MOUSE_WHEEL, Z: yoff})
}

func (w *Window) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	w.events.Push(core.EventContext{Code: core.EVENT_CODE_RESIZED, Width: width, Height: height})
}

func (w *Window) closeCallback(_ *glfw.Window) {
	w.events.Push(core.EventContext{Code: core.EVENT_CODE_APPLICATION_QUIT})
}

var specialKeys = map[glfw.Key]core.KeyCode{
	glfw.KeyTab:    core.KEY_TAB,
	glfw.KeyEnter:  core.KEY_ENTER,
	glfw.KeyEscape: core.KEY_ESCAPE,
	glfw.KeySpace:  core.KEY_SPACE,
	glfw.KeyLeft:   core.KEY_LEFT,
	glfw.KeyUp:     core.KEY_UP,
	glfw.KeyRight:  core.KEY_RIGHT,
	glfw.KeyDown:   core.KEY_DOWN,
	glfw.KeyF1:     core.KEY_F1,
	glfw.KeyF5:     core.KEY_F5,
}

// TranslateKey maps a glfw key to the engine key code. Letters and digits
// share their ASCII values in both tables.
func TranslateKey(key glfw.Key) core.KeyCode {
	if code, ok := specialKeys[key]; ok {
		return code
	}
	if (key >= glfw.KeyA && key <= glfw.KeyZ) || (key >= glfw.Key0 && key <= glfw.Key9) {
		return core.KeyCode(key)
	}
	return core.KEY_UNKNOWN
}

func TranslateButton(button glfw.MouseButton) (core.Button, bool) {
	switch button {
	case glfw.MouseButtonLeft:
		return core.BUTTON_LEFT, true
	case glfw.MouseButtonRight:
		return core.BUTTON_RIGHT, true
	case glfw.MouseButtonMiddle:
		return core.BUTTON_MIDDLE, true
	}
	return 0, false
}
