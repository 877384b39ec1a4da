package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

// The fakes model a GPU that executes submissions in order and only makes
// progress when the CPU waits on a fence or on the whole device.

type fakeCmd struct {
	kind  string
	slot  int
	image uint32
	// build generation of the owner that recorded it
	build int
}

type batch struct {
	cmds  []CommandBuffer
	fence *fakeFence
}

type fakeFence struct {
	dev       *fakeDevice
	signaled  bool
	resets    int
	waits     int
	destroyed bool
}

func (f *fakeFence) Wait() error {
	f.waits++
	if f.signaled {
		return nil
	}
	for i, b := range f.dev.pending {
		if b.fence == f {
			f.dev.complete(i + 1)
			return nil
		}
	}
	return errors.New("wait on an unsignaled fence with no pending work would never return")
}

func (f *fakeFence) Reset() error {
	f.signaled = false
	f.resets++
	return nil
}

func (f *fakeFence) Signaled() bool { return f.signaled }

func (f *fakeFence) Destroy() {
	if !f.destroyed {
		f.destroyed = true
		f.dev.liveFences--
	}
}

type fakeSemaphore struct {
	dev       *fakeDevice
	destroyed bool
}

func (s *fakeSemaphore) Destroy() {
	if !s.destroyed {
		s.destroyed = true
		s.dev.liveSemaphores--
	}
}

type fakeDevice struct {
	log            *[]string
	pending        []batch
	maxPending     int
	submits        int
	lastBatch      []CommandBuffer
	liveFences     int
	liveSemaphores int
}

func (d *fakeDevice) complete(n int) {
	for _, b := range d.pending[:n] {
		b.fence.signaled = true
	}
	d.pending = append([]batch(nil), d.pending[n:]...)
}

func (d *fakeDevice) WaitIdle() error {
	*d.log = append(*d.log, "device.waitIdle")
	d.complete(len(d.pending))
	return nil
}

func (d *fakeDevice) NewFence(signaled bool) (Fence, error) {
	d.liveFences++
	return &fakeFence{dev: d, signaled: signaled}, nil
}

func (d *fakeDevice) NewSemaphore() (Semaphore, error) {
	d.liveSemaphores++
	return &fakeSemaphore{dev: d}, nil
}

func (d *fakeDevice) Submit(cmds []CommandBuffer, wait, signal Semaphore, fence Fence) error {
	f := fence.(*fakeFence)
	if f.signaled {
		return errors.New("submit with a fence that was not reset")
	}
	for _, b := range d.pending {
		if b.fence == f {
			return errors.New("fence already held by a pending submission")
		}
		for _, pc := range b.cmds {
			for _, c := range cmds {
				if pc.(*fakeCmd).image == c.(*fakeCmd).image {
					return fmt.Errorf("image %d is still in flight", c.(*fakeCmd).image)
				}
			}
		}
	}
	d.pending = append(d.pending, batch{cmds: cmds, fence: f})
	d.maxPending = max(d.maxPending, len(d.pending))
	d.submits++
	d.lastBatch = cmds
	return nil
}

type fakeSurface struct {
	log    *[]string
	images int
	// order overrides round robin acquisition when set.
	order   []uint32
	next    int
	extent  metadata.Extent
	live    int
	builds  int
	acquire map[int]metadata.SurfaceStatus
	present map[int]metadata.SurfaceStatus

	acquires int
	presents int
	shown    []uint32
}

func (s *fakeSurface) Rebuild(extent metadata.Extent) error {
	*s.log = append(*s.log, "surface.rebuild")
	if s.live != 0 {
		return errors.New("swapchain rebuilt without release")
	}
	s.live++
	s.builds++
	s.extent = extent
	s.next = 0
	return nil
}

func (s *fakeSurface) Release() error {
	*s.log = append(*s.log, "surface.release")
	if s.live != 1 {
		return errors.New("no swapchain to release")
	}
	s.live--
	return nil
}

func (s *fakeSurface) ImageCount() int          { return s.images }
func (s *fakeSurface) Extent() metadata.Extent { return s.extent }

func (s *fakeSurface) Acquire(imageAvailable Semaphore) (uint32, metadata.SurfaceStatus, error) {
	s.acquires++
	if st, ok := s.acquire[s.acquires]; ok && st == metadata.SurfaceOutOfDate {
		return 0, st, nil
	}
	var idx uint32
	if len(s.order) > 0 {
		idx = s.order[s.next%len(s.order)]
	} else {
		idx = uint32(s.next % s.images)
	}
	s.next++
	return idx, s.acquire[s.acquires], nil
}

func (s *fakeSurface) Present(image uint32, renderFinished Semaphore) (metadata.SurfaceStatus, error) {
	s.presents++
	s.shown = append(s.shown, image)
	return s.present[s.presents], nil
}

type draw struct {
	firstIndex, indexCount, instances uint32
	material                          int
	transform                         mgl32.Mat4
	extent                            metadata.Extent
}

type fakeRecorder struct {
	calls     []string
	transform mgl32.Mat4
	draws     []draw
	extent    metadata.Extent
}

func (r *fakeRecorder) BeginRenderPass(image uint32) {
	r.calls = append(r.calls, fmt.Sprintf("begin:%d", image))
}
func (r *fakeRecorder) BindPipeline() { r.calls = append(r.calls, "pipeline") }
func (r *fakeRecorder) BindGlobalSet(slot int) {
	r.calls = append(r.calls, fmt.Sprintf("global:%d", slot))
}
func (r *fakeRecorder) BindGeometry() { r.calls = append(r.calls, "geometry") }
func (r *fakeRecorder) PushTransform(m mgl32.Mat4) {
	r.transform = m
	r.calls = append(r.calls, "push")
}
func (r *fakeRecorder) BindMaterialSet(material int) {
	r.calls = append(r.calls, fmt.Sprintf("material:%d", material))
	r.draws = append(r.draws, draw{material: material})
}
func (r *fakeRecorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32) {
	r.calls = append(r.calls, "draw")
	d := &r.draws[len(r.draws)-1]
	d.indexCount, d.instances, d.firstIndex = indexCount, instanceCount, firstIndex
	d.transform = r.transform
	d.extent = r.extent
}
func (r *fakeRecorder) EndRenderPass() { r.calls = append(r.calls, "end") }

type fakeResources struct {
	log          *[]string
	dev          *fakeDevice
	built        bool
	live         int
	builds       int
	extent       metadata.Extent
	framebuffers int
	failBuild    bool
	recordings   int
	draws        []draw
	writes       map[int]int
	cameraBlocks []metadata.CameraUniform
}

func (r *fakeResources) Build(surface Surface, slots int) error {
	*r.log = append(*r.log, "resources.build")
	if r.failBuild {
		return errors.New("out of device memory")
	}
	if r.built {
		return errors.New("resources built twice")
	}
	r.built = true
	r.live++
	r.builds++
	r.extent = surface.Extent()
	r.framebuffers = surface.ImageCount()
	return nil
}

func (r *fakeResources) Destroy() error {
	*r.log = append(*r.log, "resources.destroy")
	if len(r.dev.pending) > 0 {
		return errors.New("resources destroyed while GPU work is pending")
	}
	if !r.built {
		return nil
	}
	r.built = false
	r.live--
	r.framebuffers = 0
	return nil
}

func (r *fakeResources) FramebufferCount() int     { return r.framebuffers }
func (r *fakeResources) Extent() metadata.Extent { return r.extent }

func (r *fakeResources) WriteCamera(slot int, block *metadata.CameraUniform) error {
	if !r.built {
		return errors.New("camera write without resources")
	}
	if r.writes == nil {
		r.writes = map[int]int{}
	}
	r.writes[slot]++
	r.cameraBlocks = append(r.cameraBlocks, *block)
	return nil
}

func (r *fakeResources) RecordScene(slot int, image uint32, record func(Recorder) error) (CommandBuffer, error) {
	if !r.built {
		return nil, errors.New("recording without resources")
	}
	if int(image) >= r.framebuffers {
		return nil, fmt.Errorf("no framebuffer for image %d", image)
	}
	rec := &fakeRecorder{extent: r.extent}
	if err := record(rec); err != nil {
		return nil, err
	}
	r.recordings++
	r.draws = append(r.draws, rec.draws...)
	return &fakeCmd{kind: "scene", slot: slot, image: image, build: r.builds}, nil
}

type fakeOverlay struct {
	log          *[]string
	built        bool
	live         int
	framebuffers int
	records      int
}

func (o *fakeOverlay) Build(surface Surface, slots int) error {
	*o.log = append(*o.log, "overlay.build")
	if o.built {
		return errors.New("overlay built twice")
	}
	o.built = true
	o.live++
	o.framebuffers = surface.ImageCount()
	return nil
}

func (o *fakeOverlay) Destroy() error {
	*o.log = append(*o.log, "overlay.destroy")
	if !o.built {
		return nil
	}
	o.built = false
	o.live--
	o.framebuffers = 0
	return nil
}

func (o *fakeOverlay) FramebufferCount() int { return o.framebuffers }

func (o *fakeOverlay) Record(slot int, image uint32, data *metadata.UIDrawData) (CommandBuffer, error) {
	if !o.built {
		return nil, errors.New("overlay recording without a render pass")
	}
	o.records++
	return &fakeCmd{kind: "overlay", slot: slot, image: image}, nil
}

type fakeWindow struct {
	width, height int
	// queued sizes are applied one per WaitEvents call
	queued [][2]int
	waits  int
	onWait func()
	closed bool
}

func (w *fakeWindow) FramebufferSize() (int, int) { return w.width, w.height }

func (w *fakeWindow) WaitEvents() {
	w.waits++
	if w.onWait != nil {
		w.onWait()
	}
	if len(w.queued) > 0 {
		w.width, w.height = w.queued[0][0], w.queued[0][1]
		w.queued = w.queued[1:]
	} else {
		w.closed = true
	}
}

func (w *fakeWindow) ShouldClose() bool { return w.closed }

type fakeCamera struct {
	log     *[]string
	aspects []float32
}

func (c *fakeCamera) UniformBlock() metadata.CameraUniform {
	return metadata.CameraUniform{
		Projection: mgl32.Ident4(),
		View:       mgl32.Ident4(),
		LightPos:   mgl32.Vec4{1, 2, 3, 1},
	}
}

func (c *fakeCamera) SetAspect(aspect float32) {
	*c.log = append(*c.log, "camera.aspect")
	c.aspects = append(c.aspects, aspect)
}

type harness struct {
	log       []string
	device    *fakeDevice
	surface   *fakeSurface
	resources *fakeResources
	overlay   *fakeOverlay
	window    *fakeWindow
	camera    *fakeCamera
}

func newHarness(images, width, height int) *harness {
	h := &harness{}
	h.device = &fakeDevice{log: &h.log}
	h.surface = &fakeSurface{
		log:     &h.log,
		images:  images,
		acquire: map[int]metadata.SurfaceStatus{},
		present: map[int]metadata.SurfaceStatus{},
	}
	h.resources = &fakeResources{log: &h.log, dev: h.device}
	h.overlay = &fakeOverlay{log: &h.log}
	h.window = &fakeWindow{width: width, height: height}
	h.camera = &fakeCamera{log: &h.log}
	return h
}

func (h *harness) config(framesInFlight int) SchedulerConfig {
	return SchedulerConfig{
		FramesInFlight: framesInFlight,
		Device:         h.device,
		Surface:        h.surface,
		Resources:      h.resources,
		Overlay:        h.overlay,
		Window:         h.window,
		Camera:         h.camera,
		UI: func() *metadata.UIDrawData {
			return &metadata.UIDrawData{DisplaySize: [2]float32{float32(h.window.width), float32(h.window.height)}}
		},
	}
}
