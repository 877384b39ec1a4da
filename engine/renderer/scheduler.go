package renderer

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-viewer/engine/scene"
)

type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateSubmitted
	StatePresenting
	StateRecreating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateSubmitted:
		return "submitted"
	case StatePresenting:
		return "presenting"
	case StateRecreating:
		return "recreating"
	default:
		return "unknown"
	}
}

// frameSlot holds the synchronization objects of one frame in flight.
type frameSlot struct {
	imageAvailable Semaphore
	renderFinished Semaphore
	inFlight       Fence
}

type SchedulerConfig struct {
	FramesInFlight int
	Device         Device
	Surface        Surface
	Resources      ResourceSet
	// Overlay is optional. Without it only the scene buffer is submitted.
	Overlay Overlay
	Window  Window
	Camera  CameraSource
	Scene   *scene.Graph
	// UI is called once per frame for the overlay draw data.
	UI func() *metadata.UIDrawData
}

type Stats struct {
	FramesInFlight int
	ImageCount     int
	Extent         metadata.Extent
	Frames         uint64
	Submissions    uint64
	Presents       uint64
	Recreations    uint64
	// Frames abandoned at acquire because the surface was out of date.
	SkippedFrames uint64
}

// Scheduler drives the acquire, record, submit and present sequence and
// rebuilds the size-dependent resources when the surface goes stale.
type Scheduler struct {
	device    Device
	surface   Surface
	resources ResourceSet
	overlay   Overlay
	window    Window
	camera    CameraSource
	graph     *scene.Graph
	ui        func() *metadata.UIDrawData

	slots   []frameSlot
	current int
	state   State

	// imagesInFlight maps each presentable image to the fence of the slot that
	// last submitted work against it. Entries are not owned.
	imagesInFlight []Fence

	// generation bumps on every rebuild or scene invalidation. recorded holds
	// the generation each [slot][image] scene buffer was recorded at.
	generation uint64
	recorded   [][]uint64
	sceneCmds  [][]CommandBuffer

	resized atomic.Bool
	reason  atomic.Value

	stats  Stats
	closed bool
}

// NewScheduler creates the frame slots and builds the surface, resource set
// and overlay for the current window size.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.FramesInFlight < 1 {
		return nil, fmt.Errorf("frames in flight must be at least 1, got %d", cfg.FramesInFlight)
	}
	if cfg.Device == nil || cfg.Surface == nil || cfg.Resources == nil || cfg.Window == nil || cfg.Camera == nil {
		return nil, errors.New("scheduler needs a device, surface, resource set, window and camera")
	}
	if cfg.Scene == nil {
		cfg.Scene = scene.NewGraph()
	}

	s := &Scheduler{
		device:    cfg.Device,
		surface:   cfg.Surface,
		resources: cfg.Resources,
		overlay:   cfg.Overlay,
		window:    cfg.Window,
		camera:    cfg.Camera,
		graph:     cfg.Scene,
		ui:        cfg.UI,
		slots:     make([]frameSlot, cfg.FramesInFlight),
	}
	s.stats.FramesInFlight = cfg.FramesInFlight

	for i := range s.slots {
		var err error
		if s.slots[i].imageAvailable, err = s.device.NewSemaphore(); err != nil {
			s.destroySlots()
			return nil, fmt.Errorf("creating image available semaphore %d: %w", i, err)
		}
		if s.slots[i].renderFinished, err = s.device.NewSemaphore(); err != nil {
			s.destroySlots()
			return nil, fmt.Errorf("creating render finished semaphore %d: %w", i, err)
		}
		// Created signaled so the first wait on each slot returns at once.
		if s.slots[i].inFlight, err = s.device.NewFence(true); err != nil {
			s.destroySlots()
			return nil, fmt.Errorf("creating in flight fence %d: %w", i, err)
		}
	}

	extent, err := s.waitForDrawableSize()
	if err != nil {
		s.destroySlots()
		return nil, err
	}
	if err := s.build(extent); err != nil {
		s.destroySlots()
		return nil, err
	}
	core.LogInfo("Frame scheduler ready: %d frames in flight, %d images, extent %s", len(s.slots), s.surface.ImageCount(), extent)
	return s, nil
}

func (s *Scheduler) State() State {
	return s.state
}

func (s *Scheduler) CurrentSlot() int {
	return s.current
}

func (s *Scheduler) Stats() Stats {
	return s.stats
}

// NotifyResized raises the flag consumed after the next present.
func (s *Scheduler) NotifyResized() {
	s.RequestRecreate("framebuffer resized")
}

// RequestRecreate schedules a full rebuild after the next present.
func (s *Scheduler) RequestRecreate(reason string) {
	s.reason.Store(reason)
	s.resized.Store(true)
}

// invalidateScene forces every scene command buffer to be re-recorded the
// next time its slot and image come up.
func (s *Scheduler) invalidateScene() {
	s.generation++
}

// RenderFrame runs one iteration of throttle, acquire, hazard check, record,
// submit, present and advance. Surface staleness is recovered in place; the
// returned error is always fatal.
func (s *Scheduler) RenderFrame() error {
	if s.closed {
		return core.ErrWindowClosed
	}
	slot := &s.slots[s.current]

	s.state = StateAcquiring
	if err := slot.inFlight.Wait(); err != nil {
		return fmt.Errorf("waiting on frame slot %d: %w", s.current, err)
	}

	image, status, err := s.surface.Acquire(slot.imageAvailable)
	if err != nil {
		return fmt.Errorf("acquiring swapchain image: %w", err)
	}
	if status == metadata.SurfaceOutOfDate {
		// Nothing was submitted for this frame and the fence stays signaled.
		s.stats.SkippedFrames++
		core.LogInfo("Surface out of date at acquire, recreating.")
		return s.Recreate()
	}
	recreateAfterPresent := status == metadata.SurfaceSuboptimal

	if int(image) >= len(s.imagesInFlight) {
		return fmt.Errorf("acquired image %d outside of %d tracked images", image, len(s.imagesInFlight))
	}
	if prev := s.imagesInFlight[image]; prev != nil && prev != slot.inFlight && !prev.Signaled() {
		if err := prev.Wait(); err != nil {
			return fmt.Errorf("waiting on image %d: %w", image, err)
		}
	}
	s.imagesInFlight[image] = slot.inFlight

	s.state = StateRecording
	cmds, err := s.record(image)
	if err != nil {
		return err
	}
	block := s.camera.UniformBlock()
	if err := s.resources.WriteCamera(s.current, &block); err != nil {
		return fmt.Errorf("writing camera uniform for slot %d: %w", s.current, err)
	}

	// The fence must be reset before the submission that signals it.
	if err := slot.inFlight.Reset(); err != nil {
		return fmt.Errorf("resetting fence of slot %d: %w", s.current, err)
	}
	if err := s.device.Submit(cmds, slot.imageAvailable, slot.renderFinished, slot.inFlight); err != nil {
		return fmt.Errorf("submitting frame: %w", err)
	}
	s.state = StateSubmitted
	s.stats.Submissions++

	s.state = StatePresenting
	presentStatus, err := s.surface.Present(image, slot.renderFinished)
	if err != nil {
		return fmt.Errorf("presenting image %d: %w", image, err)
	}
	s.stats.Presents++
	s.stats.Frames++

	s.current = (s.current + 1) % len(s.slots)

	if presentStatus != metadata.SurfaceOptimal {
		core.LogInfo("Surface %s at present, recreating.", presentStatus)
		recreateAfterPresent = true
	}
	if s.resized.Swap(false) {
		reason, _ := s.reason.Load().(string)
		core.LogInfo("Recreation requested: %s.", reason)
		recreateAfterPresent = true
	}
	if recreateAfterPresent {
		return s.Recreate()
	}
	s.state = StateIdle
	return nil
}

// record returns the scene and overlay buffers for image, re-recording the
// scene buffer when it predates the current generation.
func (s *Scheduler) record(image uint32) ([]CommandBuffer, error) {
	slot := s.current
	if s.sceneCmds[slot][image] == nil || s.recorded[slot][image] != s.generation {
		cmd, err := s.resources.RecordScene(slot, image, func(r Recorder) error {
			return RecordScene(r, s.graph, slot, image)
		})
		if err != nil {
			return nil, fmt.Errorf("recording scene for slot %d image %d: %w", slot, image, err)
		}
		s.sceneCmds[slot][image] = cmd
		s.recorded[slot][image] = s.generation
	}
	cmds := []CommandBuffer{s.sceneCmds[slot][image]}

	if s.overlay != nil {
		var data *metadata.UIDrawData
		if s.ui != nil {
			data = s.ui()
		}
		cmd, err := s.overlay.Record(slot, image, data)
		if err != nil {
			return nil, fmt.Errorf("recording overlay for slot %d image %d: %w", slot, image, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Recreate tears down and rebuilds every size-dependent resource. Any
// failure is fatal and wraps core.ErrRecreateFailed.
func (s *Scheduler) Recreate() error {
	s.state = StateRecreating
	s.resized.Store(false)

	extent, err := s.waitForDrawableSize()
	if err != nil {
		return err
	}

	if err := s.device.WaitIdle(); err != nil {
		return fmt.Errorf("%w: waiting for device idle: %w", core.ErrRecreateFailed, err)
	}

	if err := s.teardown(); err != nil {
		return err
	}
	if err := s.build(extent); err != nil {
		return err
	}

	s.stats.Recreations++
	core.LogInfo("Recreated size-dependent resources at %s (%d images).", s.surface.Extent(), s.surface.ImageCount())
	return nil
}

// teardown destroys in reverse build order: overlay, resource set, swapchain.
func (s *Scheduler) teardown() error {
	if s.overlay != nil {
		if err := s.overlay.Destroy(); err != nil {
			return fmt.Errorf("%w: destroying overlay: %w", core.ErrRecreateFailed, err)
		}
	}
	if err := s.resources.Destroy(); err != nil {
		return fmt.Errorf("%w: destroying resources: %w", core.ErrRecreateFailed, err)
	}
	if err := s.surface.Release(); err != nil {
		return fmt.Errorf("%w: releasing swapchain: %w", core.ErrRecreateFailed, err)
	}
	s.sceneCmds = nil
	return nil
}

func (s *Scheduler) build(extent metadata.Extent) error {
	if err := s.surface.Rebuild(extent); err != nil {
		return fmt.Errorf("%w: rebuilding swapchain: %w", core.ErrRecreateFailed, err)
	}
	if err := s.resources.Build(s.surface, len(s.slots)); err != nil {
		return fmt.Errorf("%w: building resources: %w", core.ErrRecreateFailed, err)
	}

	images := s.surface.ImageCount()
	s.imagesInFlight = make([]Fence, images)
	s.sceneCmds = make([][]CommandBuffer, len(s.slots))
	s.recorded = make([][]uint64, len(s.slots))
	for i := range s.slots {
		s.sceneCmds[i] = make([]CommandBuffer, images)
		s.recorded[i] = make([]uint64, images)
	}
	s.invalidateScene()

	actual := s.surface.Extent()
	s.camera.SetAspect(actual.Aspect())

	if s.overlay != nil {
		if err := s.overlay.Build(s.surface, len(s.slots)); err != nil {
			return fmt.Errorf("%w: building overlay: %w", core.ErrRecreateFailed, err)
		}
	}

	s.stats.ImageCount = images
	s.stats.Extent = actual
	s.state = StateIdle
	return nil
}

// waitForDrawableSize blocks on window events while the framebuffer has a zero side.
func (s *Scheduler) waitForDrawableSize() (metadata.Extent, error) {
	w, h := s.window.FramebufferSize()
	if w <= 0 || h <= 0 {
		core.LogInfo("Framebuffer is %dx%d, waiting for a drawable size.", w, h)
	}
	for w <= 0 || h <= 0 {
		if s.window.ShouldClose() {
			return metadata.Extent{}, core.ErrWindowClosed
		}
		s.window.WaitEvents()
		w, h = s.window.FramebufferSize()
	}
	return metadata.Extent{Width: uint32(w), Height: uint32(h)}, nil
}

// Shutdown drains the GPU, then releases the overlay, the resource set and
// the frame slots. The surface belongs to the device context.
func (s *Scheduler) Shutdown() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.device.WaitIdle(); err != nil {
		return fmt.Errorf("waiting for device idle at shutdown: %w", err)
	}
	var errs []error
	if s.overlay != nil {
		errs = append(errs, s.overlay.Destroy())
	}
	errs = append(errs, s.resources.Destroy())
	s.destroySlots()
	s.imagesInFlight = nil
	s.sceneCmds = nil
	return errors.Join(errs...)
}

func (s *Scheduler) destroySlots() {
	for i := range s.slots {
		if s.slots[i].imageAvailable != nil {
			s.slots[i].imageAvailable.Destroy()
			s.slots[i].imageAvailable = nil
		}
		if s.slots[i].renderFinished != nil {
			s.slots[i].renderFinished.Destroy()
			s.slots[i].renderFinished = nil
		}
		if s.slots[i].inFlight != nil {
			s.slots[i].inFlight.Destroy()
			s.slots[i].inFlight = nil
		}
	}
}
