package renderer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-viewer/engine/scene"
)

func twoNodeScene(t *testing.T) *scene.Graph {
	t.Helper()
	g := scene.NewGraph()
	root, err := g.AddNode("root", scene.NoParent, mgl32.Translate3D(1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddNode("child", root, mgl32.Scale3D(2, 2, 2), scene.Primitive{FirstIndex: 0, IndexCount: 6, Material: 0}); err != nil {
		t.Fatal(err)
	}
	return g
}

func newTestScheduler(t *testing.T, h *harness, framesInFlight int, g *scene.Graph) *Scheduler {
	t.Helper()
	cfg := h.config(framesInFlight)
	cfg.Scene = g
	s, err := NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func TestNewSchedulerRejectsZeroFrames(t *testing.T) {
	h := newHarness(3, 800, 600)
	if _, err := NewScheduler(h.config(0)); err == nil {
		t.Fatal("expected an error for zero frames in flight")
	}
}

func TestNewSchedulerBuildsEverything(t *testing.T) {
	h := newHarness(3, 800, 600)
	s := newTestScheduler(t, h, 2, nil)

	if h.device.liveFences != 2 || h.device.liveSemaphores != 4 {
		t.Fatalf("sync objects: %d fences, %d semaphores", h.device.liveFences, h.device.liveSemaphores)
	}
	if h.surface.live != 1 || h.resources.live != 1 || h.overlay.live != 1 {
		t.Fatalf("live objects: surface %d resources %d overlay %d", h.surface.live, h.resources.live, h.overlay.live)
	}
	want := []string{"surface.rebuild", "resources.build", "camera.aspect", "overlay.build"}
	if !reflect.DeepEqual(h.log, want) {
		t.Fatalf("build order %v, want %v", h.log, want)
	}
	if got := h.camera.aspects[0]; got != float32(800)/600 {
		t.Fatalf("aspect %v", got)
	}
	if s.State() != StateIdle {
		t.Fatalf("state %s", s.State())
	}
}

func TestSingleFrameIssuesOneDraw(t *testing.T) {
	h := newHarness(3, 800, 600)
	s := newTestScheduler(t, h, 2, twoNodeScene(t))

	if err := s.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}

	if len(h.resources.draws) != 1 {
		t.Fatalf("got %d draws, want 1", len(h.resources.draws))
	}
	d := h.resources.draws[0]
	if d.firstIndex != 0 || d.indexCount != 6 || d.instances != 1 {
		t.Fatalf("draw %+v", d)
	}
	want := mgl32.Translate3D(1, 0, 0).Mul4(mgl32.Scale3D(2, 2, 2))
	if !d.transform.ApproxEqual(want) {
		t.Fatalf("transform %v, want %v", d.transform, want)
	}
	if h.device.submits != 1 || h.surface.presents != 1 {
		t.Fatalf("submits %d presents %d", h.device.submits, h.surface.presents)
	}
	if len(h.device.lastBatch) != 2 {
		t.Fatalf("batch has %d command buffers, want scene and overlay", len(h.device.lastBatch))
	}
	if h.device.lastBatch[0].(*fakeCmd).kind != "scene" || h.device.lastBatch[1].(*fakeCmd).kind != "overlay" {
		t.Fatal("scene must be submitted before the overlay")
	}
	if h.resources.writes[0] != 1 {
		t.Fatalf("camera writes for slot 0: %d", h.resources.writes[0])
	}
	if s.CurrentSlot() != 1 {
		t.Fatalf("current slot %d, want 1", s.CurrentSlot())
	}
}

func TestSceneRecordedOncePerSlotAndImage(t *testing.T) {
	h := newHarness(2, 800, 600)
	s := newTestScheduler(t, h, 2, twoNodeScene(t))

	for i := 0; i < 10; i++ {
		if err := s.RenderFrame(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	// Two slots alternate over two images in lock step.
	if h.resources.recordings != 2 {
		t.Fatalf("scene recorded %d times, want 2", h.resources.recordings)
	}
	if h.overlay.records != 10 {
		t.Fatalf("overlay recorded %d times, want every frame", h.overlay.records)
	}

	s.invalidateScene()
	if err := s.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if h.resources.recordings != 3 {
		t.Fatalf("scene recorded %d times after invalidation, want 3", h.resources.recordings)
	}
}

func TestInFlightSubmissionsBounded(t *testing.T) {
	for _, tc := range []struct {
		frames, images int
	}{
		{1, 2}, {1, 3}, {2, 2}, {2, 3}, {2, 4}, {3, 3}, {3, 5},
	} {
		h := newHarness(tc.images, 640, 480)
		s := newTestScheduler(t, h, tc.frames, twoNodeScene(t))
		for i := 0; i < 25; i++ {
			if err := s.RenderFrame(); err != nil {
				t.Fatalf("N=%d M=%d frame %d: %v", tc.frames, tc.images, i, err)
			}
			if len(h.device.pending) > tc.frames {
				t.Fatalf("N=%d M=%d: %d pending submissions", tc.frames, tc.images, len(h.device.pending))
			}
		}
		if h.device.maxPending != tc.frames {
			t.Fatalf("N=%d M=%d: max pending %d", tc.frames, tc.images, h.device.maxPending)
		}
	}
}

func TestImageHazardWaitsOnOtherSlot(t *testing.T) {
	h := newHarness(3, 640, 480)
	// The same image comes back before the slot that last used it is reused.
	h.surface.order = []uint32{0, 0, 1, 1, 2}
	s := newTestScheduler(t, h, 2, twoNodeScene(t))

	for i := 0; i < 10; i++ {
		if err := s.RenderFrame(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
}

func TestImageHazardSkipsSignaledFence(t *testing.T) {
	h := newHarness(3, 640, 480)
	h.surface.order = []uint32{0, 0}
	s := newTestScheduler(t, h, 2, twoNodeScene(t))

	if err := s.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	first := s.imagesInFlight[0].(*fakeFence)
	waits := first.waits
	h.device.complete(len(h.device.pending))

	if err := s.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if s.imagesInFlight[0] == Fence(first) {
		t.Fatal("second frame should own image 0")
	}
	if first.waits != waits {
		t.Errorf("waited %d times on a fence that had already signaled", first.waits-waits)
	}
}

func TestAcquireOutOfDateSkipsSubmitAndPresent(t *testing.T) {
	h := newHarness(3, 800, 600)
	h.surface.acquire[5] = metadata.SurfaceOutOfDate
	s := newTestScheduler(t, h, 2, twoNodeScene(t))

	for i := 1; i <= 4; i++ {
		if err := s.RenderFrame(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	submits, presents := h.device.submits, h.surface.presents
	slot := s.CurrentSlot()
	fence := s.slots[slot].inFlight.(*fakeFence)
	resets := fence.resets

	if err := s.RenderFrame(); err != nil {
		t.Fatalf("frame 5: %v", err)
	}
	if h.device.submits != submits || h.surface.presents != presents {
		t.Fatalf("frame 5 submitted %d and presented %d", h.device.submits-submits, h.surface.presents-presents)
	}
	if fence.resets != resets {
		t.Fatal("fence reset on an abandoned frame")
	}
	if s.CurrentSlot() != slot {
		t.Fatal("slot advanced on an abandoned frame")
	}
	st := s.Stats()
	if st.Recreations != 1 || st.SkippedFrames != 1 {
		t.Fatalf("stats %+v", st)
	}

	if err := s.RenderFrame(); err != nil {
		t.Fatalf("frame 6: %v", err)
	}
	if h.device.submits != submits+1 || h.surface.presents != presents+1 {
		t.Fatal("frame 6 did not submit and present once")
	}
	for _, c := range h.device.lastBatch {
		if c.(*fakeCmd).kind == "scene" && c.(*fakeCmd).build != h.resources.builds {
			t.Fatalf("frame 6 used a scene buffer from build %d, current is %d", c.(*fakeCmd).build, h.resources.builds)
		}
	}
}

func TestResizeThroughZeroBlocksUntilRestored(t *testing.T) {
	h := newHarness(3, 800, 600)
	s := newTestScheduler(t, h, 2, twoNodeScene(t))

	if err := s.RenderFrame(); err != nil {
		t.Fatal(err)
	}

	// Minimized: the swapchain goes stale and the framebuffer reports 0x0.
	h.window.width, h.window.height = 0, 0
	h.window.queued = [][2]int{{0, 0}, {1024, 768}}
	h.surface.acquire[h.surface.acquires+1] = metadata.SurfaceOutOfDate
	s.NotifyResized()

	submits := h.device.submits
	draws := len(h.resources.draws)
	h.window.onWait = func() {
		if h.device.submits != submits || len(h.resources.draws) != draws {
			t.Error("work issued while the framebuffer is zero sized")
		}
	}

	if err := s.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame across minimize: %v", err)
	}
	if h.window.waits != 2 {
		t.Fatalf("waited for events %d times, want 2", h.window.waits)
	}
	want := metadata.Extent{Width: 1024, Height: 768}
	if h.resources.extent != want || h.surface.extent != want {
		t.Fatalf("rebuilt at %s / %s, want %s", h.resources.extent, h.surface.extent, want)
	}
	if h.resources.framebuffers != h.surface.ImageCount() || h.overlay.framebuffers != h.surface.ImageCount() {
		t.Fatal("framebuffer count does not follow the image count")
	}

	h.window.onWait = nil
	draws = len(h.resources.draws)
	if err := s.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if len(h.resources.draws) != draws+1 || h.resources.draws[draws].extent != want {
		t.Fatalf("next frame did not draw at %s", want)
	}
	if got := h.camera.aspects[len(h.camera.aspects)-1]; got != float32(1024)/768 {
		t.Fatalf("aspect %v", got)
	}
}

func TestRecreateIsIdempotent(t *testing.T) {
	h := newHarness(3, 800, 600)
	s := newTestScheduler(t, h, 2, twoNodeScene(t))
	if err := s.RenderFrame(); err != nil {
		t.Fatal(err)
	}

	if err := s.Recreate(); err != nil {
		t.Fatal(err)
	}
	first := s.Stats()
	if err := s.Recreate(); err != nil {
		t.Fatal(err)
	}
	second := s.Stats()

	if first.ImageCount != second.ImageCount || first.Extent != second.Extent {
		t.Fatalf("recreations differ: %+v vs %+v", first, second)
	}
	if second.ImageCount != h.surface.ImageCount() || len(s.imagesInFlight) != h.surface.ImageCount() {
		t.Fatal("image tracking does not match the surface")
	}
	if h.surface.live != 1 || h.resources.live != 1 || h.overlay.live != 1 {
		t.Fatalf("leak: surface %d resources %d overlay %d", h.surface.live, h.resources.live, h.overlay.live)
	}
	if h.device.liveFences != 2 || h.device.liveSemaphores != 4 {
		t.Fatal("frame slot objects must survive recreation")
	}
	for i, f := range s.imagesInFlight {
		if f != nil {
			t.Fatalf("image %d still tracks a fence after recreation", i)
		}
	}
}

func TestRecreateOrder(t *testing.T) {
	h := newHarness(3, 800, 600)
	s := newTestScheduler(t, h, 2, twoNodeScene(t))
	h.log = h.log[:0]

	if err := s.Recreate(); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"device.waitIdle",
		"overlay.destroy", "resources.destroy", "surface.release",
		"surface.rebuild", "resources.build", "camera.aspect", "overlay.build",
	}
	if !reflect.DeepEqual(h.log, want) {
		t.Fatalf("order %v\nwant  %v", h.log, want)
	}
}

func TestPresentStatusTriggersRecreateAfterPresent(t *testing.T) {
	for _, st := range []metadata.SurfaceStatus{metadata.SurfaceSuboptimal, metadata.SurfaceOutOfDate} {
		h := newHarness(3, 800, 600)
		h.surface.present[1] = st
		s := newTestScheduler(t, h, 2, twoNodeScene(t))

		if err := s.RenderFrame(); err != nil {
			t.Fatal(err)
		}
		if h.surface.presents != 1 {
			t.Fatalf("%s: frame was not presented", st)
		}
		if s.Stats().Recreations != 1 {
			t.Fatalf("%s: recreations %d", st, s.Stats().Recreations)
		}
	}
}

func TestSuboptimalAcquireStillPresents(t *testing.T) {
	h := newHarness(3, 800, 600)
	h.surface.acquire[1] = metadata.SurfaceSuboptimal
	s := newTestScheduler(t, h, 2, twoNodeScene(t))

	if err := s.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if h.device.submits != 1 || h.surface.presents != 1 || s.Stats().Recreations != 1 {
		t.Fatalf("submits %d presents %d stats %+v", h.device.submits, h.surface.presents, s.Stats())
	}
}

func TestResizeFlagConsumedOnce(t *testing.T) {
	h := newHarness(3, 800, 600)
	s := newTestScheduler(t, h, 2, twoNodeScene(t))

	s.NotifyResized()
	s.RequestRecreate("shader changed")
	for i := 0; i < 3; i++ {
		if err := s.RenderFrame(); err != nil {
			t.Fatal(err)
		}
	}
	if s.Stats().Recreations != 1 {
		t.Fatalf("recreations %d, want 1", s.Stats().Recreations)
	}
}

func TestRecreateFailureIsFatal(t *testing.T) {
	h := newHarness(3, 800, 600)
	s := newTestScheduler(t, h, 2, twoNodeScene(t))
	h.resources.failBuild = true

	err := s.Recreate()
	if !errors.Is(err, core.ErrRecreateFailed) {
		t.Fatalf("got %v, want ErrRecreateFailed", err)
	}
}

func TestWindowClosedWhileMinimized(t *testing.T) {
	h := newHarness(3, 800, 600)
	s := newTestScheduler(t, h, 2, twoNodeScene(t))
	h.window.width, h.window.height = 0, 0

	if err := s.Recreate(); !errors.Is(err, core.ErrWindowClosed) {
		t.Fatalf("got %v, want ErrWindowClosed", err)
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	h := newHarness(3, 800, 600)
	s := newTestScheduler(t, h, 3, twoNodeScene(t))
	for i := 0; i < 5; i++ {
		if err := s.RenderFrame(); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if len(h.device.pending) != 0 {
		t.Fatal("work pending after shutdown")
	}
	if h.device.liveFences != 0 || h.device.liveSemaphores != 0 {
		t.Fatalf("leaked %d fences, %d semaphores", h.device.liveFences, h.device.liveSemaphores)
	}
	if h.resources.live != 0 || h.overlay.live != 0 {
		t.Fatal("size-dependent resources leaked")
	}
	if err := s.RenderFrame(); !errors.Is(err, core.ErrWindowClosed) {
		t.Fatalf("RenderFrame after shutdown: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestSchedulerWithoutOverlay(t *testing.T) {
	h := newHarness(3, 800, 600)
	cfg := h.config(2)
	cfg.Overlay = nil
	cfg.Scene = twoNodeScene(t)
	s, err := NewScheduler(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if len(h.device.lastBatch) != 1 {
		t.Fatalf("batch of %d, want scene only", len(h.device.lastBatch))
	}
}
