package vulkan

import (
	"fmt"
	stdmath "math"
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/math"
	"github.com/spaghettifunk/anima-viewer/engine/renderer"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

/**
 * @brief The presentation surface. The object survives recreation; Rebuild
 * and Release swap the swapchain and image views behind it.
 */
type VulkanSwapchain struct {
	context       *VulkanContext
	preferredMode vk.PresentMode

	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Handle      vk.Swapchain
	Images      []vk.Image
	Views       []vk.ImageView
	extent      vk.Extent2D
}

var _ renderer.Surface = (*VulkanSwapchain)(nil)

func NewSwapchain(context *VulkanContext, presentMode string) *VulkanSwapchain {
	return &VulkanSwapchain{
		context:       context,
		preferredMode: ParsePresentMode(presentMode),
	}
}

// ParsePresentMode maps fifo, mailbox and immediate. Anything else is fifo.
func ParsePresentMode(mode string) vk.PresentMode {
	switch strings.ToLower(mode) {
	case "mailbox":
		return vk.PresentModeMailbox
	case "immediate":
		return vk.PresentModeImmediate
	default:
		return vk.PresentModeFifo
	}
}

// chooseSurfaceFormat prefers B8G8R8A8_UNORM with an sRGB non-linear color space.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// choosePresentMode returns preferred when supported. FIFO is always available.
func choosePresentMode(modes []vk.PresentMode, preferred vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == preferred {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent uses the surface's current extent unless the surface leaves
// it to the swapchain, then clamps the window size to the allowed range.
func chooseExtent(capabilities *vk.SurfaceCapabilities, want metadata.Extent) vk.Extent2D {
	if capabilities.CurrentExtent.Width != stdmath.MaxUint32 {
		return capabilities.CurrentExtent
	}
	lo, hi := capabilities.MinImageExtent, capabilities.MaxImageExtent
	return vk.Extent2D{
		Width:  math.Clamp(want.Width, lo.Width, hi.Width),
		Height: math.Clamp(want.Height, lo.Height, hi.Height),
	}
}

// chooseImageCount asks for one image more than the minimum. A maximum of
// zero means unbounded.
func chooseImageCount(capabilities *vk.SurfaceCapabilities) uint32 {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func (vs *VulkanSwapchain) Rebuild(want metadata.Extent) error {
	if vs.Handle != vk.NullSwapchain {
		if err := vs.Release(); err != nil {
			return err
		}
	}
	context := vs.context
	device := context.Device

	// Capabilities follow the window, so they are queried on every rebuild.
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, context.Surface, &device.SwapchainSupport); err != nil {
		return err
	}
	support := &device.SwapchainSupport
	if len(support.Formats) == 0 {
		return fmt.Errorf("surface reports no formats: %w", core.ErrResourceCreation)
	}

	vs.ImageFormat = chooseSurfaceFormat(support.Formats)
	vs.PresentMode = choosePresentMode(support.PresentModes, vs.preferredMode)
	extent := chooseExtent(&support.Capabilities, want)
	if extent.Width == 0 || extent.Height == 0 {
		return fmt.Errorf("surface extent is %dx%d: %w", extent.Width, extent.Height, core.ErrSurfaceOutOfDate)
	}
	imageCount := chooseImageCount(&support.Capabilities)

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      vs.ImageFormat.Format,
		ImageColorSpace:  vs.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vs.PresentMode,
		Clipped:          vk.True,
	}

	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle); res != vk.Success {
		return ResultError("vkCreateSwapchainKHR", res)
	}
	vs.Handle = handle
	vs.extent = extent

	var count uint32
	if res := vk.GetSwapchainImages(device.LogicalDevice, vs.Handle, &count, nil); res != vk.Success {
		return ResultError("vkGetSwapchainImagesKHR", res)
	}
	vs.Images = make([]vk.Image, count)
	if res := vk.GetSwapchainImages(device.LogicalDevice, vs.Handle, &count, vs.Images); res != vk.Success {
		return ResultError("vkGetSwapchainImagesKHR", res)
	}

	vs.Views = make([]vk.ImageView, 0, count)
	for _, image := range vs.Images {
		view, err := createImageView(context, image, vs.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return err
		}
		vs.Views = append(vs.Views, view)
	}

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.", extent.Width, extent.Height, count, vs.PresentMode)
	return nil
}

// Release destroys the image views and the swapchain. The images are owned
// by the swapchain and go with it.
func (vs *VulkanSwapchain) Release() error {
	device := vs.context.Device.LogicalDevice
	for _, view := range vs.Views {
		vk.DestroyImageView(device, view, vs.context.Allocator)
	}
	vs.Views = nil
	vs.Images = nil
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(device, vs.Handle, vs.context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
	vs.extent = vk.Extent2D{}
	return nil
}

func (vs *VulkanSwapchain) ImageCount() int {
	return len(vs.Images)
}

func (vs *VulkanSwapchain) Extent() metadata.Extent {
	return metadata.Extent{Width: vs.extent.Width, Height: vs.extent.Height}
}

func (vs *VulkanSwapchain) Acquire(imageAvailable renderer.Semaphore) (uint32, metadata.SurfaceStatus, error) {
	sem, ok := imageAvailable.(*VulkanSemaphore)
	if !ok {
		return 0, metadata.SurfaceOptimal, fmt.Errorf("acquire: unexpected semaphore %T", imageAvailable)
	}
	var index uint32
	result := vk.AcquireNextImage(vs.context.Device.LogicalDevice, vs.Handle, vk.MaxUint64, sem.Handle, vk.NullFence, &index)
	status, err := surfaceStatus("vkAcquireNextImageKHR", result)
	return index, status, err
}

func (vs *VulkanSwapchain) Present(image uint32, renderFinished renderer.Semaphore) (metadata.SurfaceStatus, error) {
	sem, ok := renderFinished.(*VulkanSemaphore)
	if !ok {
		return metadata.SurfaceOptimal, fmt.Errorf("present: unexpected semaphore %T", renderFinished)
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sem.Handle},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{image},
	}

	device := vs.context.Device
	return presentOnQueue(vs.context.LockPool, uint32(device.PresentQueueIndex), func() vk.Result {
		return vk.QueuePresent(device.PresentQueue, &presentInfo)
	})
}

// presentOnQueue runs present under the queue family lock. Errors from the
// pool and from the present result both reach the caller.
func presentOnQueue(pool *VulkanLockPool, queueFamily uint32, present func() vk.Result) (metadata.SurfaceStatus, error) {
	status := metadata.SurfaceOptimal
	err := pool.SafeQueueCall(queueFamily, func() error {
		var err error
		status, err = surfaceStatus("vkQueuePresentKHR", present())
		return err
	})
	return status, err
}

func surfaceStatus(op string, result vk.Result) (metadata.SurfaceStatus, error) {
	switch result {
	case vk.Success:
		return metadata.SurfaceOptimal, nil
	case vk.Suboptimal:
		return metadata.SurfaceSuboptimal, nil
	case vk.ErrorOutOfDate:
		return metadata.SurfaceOutOfDate, nil
	default:
		return metadata.SurfaceOptimal, ResultError(op, result)
	}
}
