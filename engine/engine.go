package engine

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-viewer/engine/assets"
	"github.com/spaghettifunk/anima-viewer/engine/assets/loaders"
	"github.com/spaghettifunk/anima-viewer/engine/config"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/platform"
	"github.com/spaghettifunk/anima-viewer/engine/renderer"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/components"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-viewer/engine/ui"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const (
	sceneVertexShader   = "scene.vert.spv"
	sceneFragmentShader = "scene.frag.spv"
	uiVertexShader      = "ui.vert.spv"
	uiFragmentShader    = "ui.frag.spv"
)

type Engine struct {
	currentStage Stage
	config       *config.Config
	isRunning    bool

	events       *core.EventQueue
	input        *core.InputState
	window       *platform.Window
	assetManager *assets.AssetManager
	watcher      *assets.ShaderWatcher

	context   *vulkan.VulkanContext
	swapchain *vulkan.VulkanSwapchain
	resources *vulkan.VulkanResourceSet
	overlay   *vulkan.VulkanOverlay
	scheduler *renderer.Scheduler

	scene    *loaders.SceneData
	camera   *components.Camera
	ui       *ui.Context
	settings ui.DebugSettings
	showUI   bool

	clock    *core.Clock
	metrics  *core.FrameMetrics
	lastTime float64
}

func New(cfg *config.Config) (*Engine, error) {
	e := &Engine{currentStage: EngineStageBooting}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	e.config = cfg
	e.events = core.NewEventQueue(0)
	e.input = core.NewInputState()
	e.assetManager = assets.NewAssetManager()
	e.clock = core.NewClock()
	e.metrics = core.NewFrameMetrics()
	e.showUI = cfg.UI.Enabled
	e.settings = ui.DebugSettings{FOV: cfg.Camera.FOV, LightPosition: cfg.Scene.LightPosition}
	e.currentStage = EngineStageBootComplete
	return e, nil
}

// Initialize opens the window, loads the scene and brings up the renderer.
// On failure the caller still owns the engine and must call Shutdown.
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("engine cannot initialize from stage %d", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	// Assets load before any GPU object exists so a bad file fails fast.
	if err := e.loadScene(); err != nil {
		return err
	}

	var err error
	e.window, err = platform.NewWindow(e.config.Window, e.events)
	if err != nil {
		return err
	}

	e.context, err = vulkan.NewContext(e.window, vulkan.ContextOptions{
		AppName:    e.config.Window.Title,
		Validation: e.config.Renderer.Validation,
	})
	if err != nil {
		return err
	}
	e.swapchain = vulkan.NewSwapchain(e.context, e.config.Renderer.PresentMode)

	e.resources, err = vulkan.NewResourceSet(e.context, &vulkan.SceneData{
		Geometry:  e.scene.Geometry,
		Materials: e.scene.Materials,
		Textures:  e.scene.Textures,
	}, e.shaderSource(sceneVertexShader, sceneFragmentShader), e.config.Renderer.ClearColor)
	if err != nil {
		return err
	}

	var overlay renderer.Overlay
	if e.config.UI.Enabled {
		font, atlas := e.loadFont()
		e.ui = ui.NewContext(font, e.config.UI.Scale)
		e.overlay, err = vulkan.NewOverlay(e.context, atlas, e.shaderSource(uiVertexShader, uiFragmentShader))
		if err != nil {
			return err
		}
		overlay = e.overlay
	}

	e.camera = components.NewCamera(e.config.Camera.FOV, e.config.Camera.Near, e.config.Camera.Far, e.config.Camera.Distance)
	e.camera.LightPosition = mgl32.Vec3(e.config.Scene.LightPosition)

	e.scheduler, err = renderer.NewScheduler(renderer.SchedulerConfig{
		FramesInFlight: e.config.Renderer.FramesInFlight,
		Device:         e.context,
		Surface:        e.swapchain,
		Resources:      e.resources,
		Overlay:        overlay,
		Window:         e.window,
		Camera:         e.camera,
		Scene:          e.scene.Graph,
		UI:             e.buildUI,
	})
	if err != nil {
		return err
	}

	if e.config.Shaders.HotReload {
		e.watcher, err = assets.NewShaderWatcher(e.config.Shaders.Dir, e.events)
		if err != nil {
			// Rendering works without reloads.
			core.LogWarn("Shader hot reload disabled: %s", err)
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) loadScene() error {
	params := &metadata.ImageResourceParams{MaxSize: uint32(e.config.Scene.MaxTextureSize)}
	resource, err := e.assetManager.LoadAsset(e.config.Scene.Path, params)
	if err != nil {
		return err
	}
	data, ok := resource.Data.(*loaders.SceneData)
	if !ok {
		return fmt.Errorf("%w: %s is not a scene", core.ErrAssetLoad, e.config.Scene.Path)
	}
	if err := data.Graph.Validate(); err != nil {
		return err
	}
	e.scene = data
	core.LogInfo("Scene %s: %d nodes, %d primitives, %d materials, %d textures.",
		resource.Name, len(data.Graph.Nodes), data.Graph.PrimitiveCount(), len(data.Materials), len(data.Textures))
	return nil
}

// loadFont falls back to untextured widgets when the font is missing.
func (e *Engine) loadFont() (*metadata.FontData, *metadata.ImageResourceData) {
	path := e.config.UI.Font
	if path == "" {
		return nil, metadata.WhiteImage()
	}
	resource, err := e.assetManager.LoadAsset(path, nil)
	if err != nil {
		core.LogWarn("Overlay font unavailable, drawing widgets without text: %s", err)
		return nil, metadata.WhiteImage()
	}
	font := resource.Data.(*metadata.FontData)
	return font, font.Atlas
}

// shaderSource reads the pair from disk on every call so a rebuild picks up
// recompiled bytecode.
func (e *Engine) shaderSource(vertex, fragment string) vulkan.ShaderSource {
	return func() ([]byte, []byte, error) {
		vert, err := e.assetManager.ReadShader(e.config.Shaders.Dir, vertex)
		if err != nil {
			return nil, nil, err
		}
		frag, err := e.assetManager.ReadShader(e.config.Shaders.Dir, fragment)
		if err != nil {
			return nil, nil, err
		}
		return vert, frag, nil
	}
}

// Run drives the frame loop until the window closes. A returned error is
// fatal; closing the window is not an error.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run from stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		e.window.PollEvents()
		e.processEvents()
		if !e.isRunning || e.window.ShouldClose() {
			break
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		e.lastTime = currentTime
		e.metrics.Update(delta)

		e.camera.HandleInput(e.input, e.showUI && e.ui != nil && e.ui.WantsMouse())

		if err := e.scheduler.RenderFrame(); err != nil {
			if errors.Is(err, core.ErrWindowClosed) {
				break
			}
			core.LogError("Frame failed: %s", err)
			return err
		}

		// NOTE: input state is advanced last so every consumer above saw
		// this frame's edges.
		e.input.Update()
	}
	return nil
}

// RequestQuit stops the loop. Safe to call from any goroutine.
func (e *Engine) RequestQuit() {
	e.events.Push(core.EventContext{Code: core.EVENT_CODE_APPLICATION_QUIT})
	if e.window != nil {
		e.window.RequestClose()
	}
}

func (e *Engine) processEvents() {
	for _, ev := range e.events.Drain() {
		e.input.Apply(ev)
		switch ev.Code {
		case core.EVENT_CODE_APPLICATION_QUIT:
			core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
			e.isRunning = false
		case core.EVENT_CODE_RESIZED:
			core.LogDebug("Window resize: %d, %d", ev.Width, ev.Height)
			e.scheduler.NotifyResized()
		case core.EVENT_CODE_SHADER_CHANGED:
			e.reloadShaders("shader changed: " + ev.Path)
		case core.EVENT_CODE_KEY_PRESSED:
			e.onKey(ev.Key)
		}
	}
	if dropped := e.events.Dropped(); dropped > 0 {
		core.LogDebug("%d events dropped so far.", dropped)
	}
}

func (e *Engine) onKey(key core.KeyCode) {
	switch key {
	case core.KEY_ESCAPE:
		e.isRunning = false
	case core.KEY_F1:
		e.showUI = !e.showUI
	case core.KEY_R:
		e.camera.Reset()
	case core.KEY_F5:
		e.reloadShaders("manual shader reload")
	}
}

// reloadShaders asks for a rebuild only when every pipeline's bytecode on
// disk is complete. A compiler still writing a file raises events for a
// truncated module; the next event after the write finishes retries.
func (e *Engine) reloadShaders(reason string) {
	pairs := []assets.ShaderPair{{Vertex: sceneVertexShader, Fragment: sceneFragmentShader}}
	if e.overlay != nil {
		pairs = append(pairs, assets.ShaderPair{Vertex: uiVertexShader, Fragment: uiFragmentShader})
	}
	if err := e.assetManager.CheckShaders(e.config.Shaders.Dir, pairs...); err != nil {
		core.LogWarn("Shader reload skipped, keeping current pipelines: %s", err)
		return
	}
	core.LogInfo("Rebuilding pipelines (%s).", reason)
	e.scheduler.RequestRecreate(reason)
}

// buildUI is called by the scheduler once per frame, after the slot fence
// wait, so the draw data it returns is only read by this frame.
func (e *Engine) buildUI() *metadata.UIDrawData {
	if !e.showUI || e.ui == nil {
		return nil
	}
	stats := e.scheduler.Stats()
	mx, my := e.input.MousePosition()
	sx, sy := e.window.CursorScale()

	e.ui.Begin(float32(stats.Extent.Width), float32(stats.Extent.Height), ui.Input{
		MouseX: float32(mx * sx),
		MouseY: float32(my * sy),
		Down:   e.input.IsButtonDown(core.BUTTON_LEFT),
	})
	if e.ui.DebugPanel(ui.DebugStats{
		FPS:            e.metrics.FPS(),
		FrameTimeMS:    e.metrics.FrameTime(),
		FramesInFlight: stats.FramesInFlight,
		ImageCount:     stats.ImageCount,
		Extent:         stats.Extent,
		Frames:         stats.Frames,
		Recreations:    stats.Recreations,
		SkippedFrames:  stats.SkippedFrames,
	}, &e.settings) {
		e.camera.SetFOV(e.settings.FOV)
		e.camera.LightPosition = mgl32.Vec3(e.settings.LightPosition)
	}
	return e.ui.End()
}

// Shutdown drains the GPU and releases everything in reverse creation order.
// It tolerates a partially initialized engine.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
	}
	if e.scheduler != nil {
		errs = append(errs, e.scheduler.Shutdown())
	} else if e.context != nil {
		errs = append(errs, e.context.WaitIdle())
	}
	if e.overlay != nil {
		e.overlay.Release()
	}
	if e.resources != nil {
		e.resources.Release()
	}
	if e.swapchain != nil {
		errs = append(errs, e.swapchain.Release())
	}
	if e.context != nil {
		e.context.Destroy()
	}
	if e.window != nil {
		e.window.Destroy()
	}
	core.LogInfo("Engine shut down.")
	return errors.Join(errs...)
}
