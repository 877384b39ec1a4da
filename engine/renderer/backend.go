package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

// Fence is a GPU to CPU completion signal.
type Fence interface {
	// Wait blocks until the fence is signaled. It returns at once if it already is.
	Wait() error
	Reset() error
	Signaled() bool
	Destroy()
}

// Semaphore orders work between queue operations on the GPU.
type Semaphore interface {
	Destroy()
}

// CommandBuffer is a recorded buffer ready for submission.
type CommandBuffer interface{}

// Device owns the logical device and its queues.
type Device interface {
	WaitIdle() error
	NewFence(signaled bool) (Fence, error)
	NewSemaphore() (Semaphore, error)
	// Submit executes cmds as one batch once wait is signaled, then signals
	// signal and fence.
	Submit(cmds []CommandBuffer, wait, signal Semaphore, fence Fence) error
}

// Surface owns the chain of presentable images. Its identity survives
// recreation, only the swapchain behind it is rebuilt.
type Surface interface {
	// Rebuild creates the swapchain and its image views for the extent the
	// window reports, clamped to the surface capabilities.
	Rebuild(extent metadata.Extent) error
	// Release destroys the swapchain and its image views.
	Release() error
	ImageCount() int
	Extent() metadata.Extent
	// Acquire returns the next image index. imageAvailable is signaled on the GPU
	// once the image can be written.
	Acquire(imageAvailable Semaphore) (uint32, metadata.SurfaceStatus, error)
	// Present queues image for display after renderFinished is signaled.
	Present(image uint32, renderFinished Semaphore) (metadata.SurfaceStatus, error)
}

// ResourceSet is everything whose validity follows the swapchain extent:
// depth buffer, render pass, pipeline, framebuffers, per-slot uniform
// buffers, descriptor pool and sets, and scene command buffers.
type ResourceSet interface {
	Build(surface Surface, slots int) error
	Destroy() error
	FramebufferCount() int
	Extent() metadata.Extent
	// WriteCamera updates the uniform buffer owned by slot.
	WriteCamera(slot int, block *metadata.CameraUniform) error
	// RecordScene re-records the scene command buffer for (slot, image).
	RecordScene(slot int, image uint32, record func(Recorder) error) (CommandBuffer, error)
}

// Recorder receives the scene pass commands.
type Recorder interface {
	BeginRenderPass(image uint32)
	BindPipeline()
	// BindGlobalSet binds the camera descriptor set of slot at set index 0.
	BindGlobalSet(slot int)
	BindGeometry()
	PushTransform(m mgl32.Mat4)
	// BindMaterialSet binds the material texture set at set index 1.
	BindMaterialSet(material int)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32)
	EndRenderPass()
}

// Overlay is the UI pass. It loads the scene output and leaves the image
// ready for presentation.
type Overlay interface {
	Build(surface Surface, slots int) error
	Destroy() error
	FramebufferCount() int
	// Record rebuilds the overlay command buffer of slot for image.
	Record(slot int, image uint32, data *metadata.UIDrawData) (CommandBuffer, error)
}

// Window is the part of the windowing layer recreation depends on.
type Window interface {
	FramebufferSize() (int, int)
	WaitEvents()
	ShouldClose() bool
}

// CameraSource produces the per-frame camera block.
type CameraSource interface {
	UniformBlock() metadata.CameraUniform
	SetAspect(aspect float32)
}
