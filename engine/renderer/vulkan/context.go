package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// WindowSurface is the part of a window a Vulkan surface is created from.
// *glfw.Window satisfies it.
type WindowSurface interface {
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
	GetRequiredInstanceExtensions() []string
}

type ContextOptions struct {
	AppName    string
	Validation bool
}

/**
 * @brief The device context: instance, surface, logical device, queues and
 * the graphics command pool. Implements renderer.Device.
 */
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device   *VulkanDevice
	LockPool *VulkanLockPool
}

var _ renderer.Device = (*VulkanContext)(nil)

func NewContext(window WindowSurface, opts ContextOptions) (*VulkanContext, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil: %w", core.ErrResourceCreation)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}

	context := &VulkanContext{
		Allocator: nil,
		Device: &VulkanDevice{
			GraphicsQueueIndex: -1,
			PresentQueueIndex:  -1,
			TransferQueueIndex: -1,
		},
		LockPool: NewVulkanLockPool(),
	}

	if err := context.createInstance(window, opts); err != nil {
		return nil, err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateWindowSurface(context.Instance, nil)
	if err != nil {
		context.Destroy()
		return nil, fmt.Errorf("vulkan surface creation failed: %w", err)
	}
	context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(context); err != nil {
		context.Destroy()
		return nil, err
	}
	core.LogInfo("Vulkan device context initialized successfully.")
	return context, nil
}

func (vc *VulkanContext) createInstance(window WindowSurface, opts ContextOptions) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(opts.AppName),
		PEngineName:        VulkanSafeString("Anima Viewer"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := window.GetRequiredInstanceExtensions()
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if opts.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogInfo("Validation layers enabled. Enumerating...")
		if !instanceLayerAvailable(validationLayerName) {
			return fmt.Errorf("required validation layer is missing: %s: %w", validationLayerName, core.ErrResourceCreation)
		}
		layers = []string{validationLayerName}
		core.LogInfo("All required validation layers are present.")
	}

	core.LogDebug("Required extensions: %v", requiredExtensions)
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, vc.Allocator, &instance); res != vk.Success {
		return ResultError("vkCreateInstance", res)
	}
	vc.Instance = instance
	if err := vk.InitInstance(vc.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if opts.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vc.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vc.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func instanceLayerAvailable(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if vk.ToString(available[i].LayerName[:]) == name {
			core.LogInfo("Found layer %s.", name)
			return true
		}
	}
	return false
}

func (vc *VulkanContext) WaitIdle() error {
	if res := vk.DeviceWaitIdle(vc.Device.LogicalDevice); !VulkanResultIsSuccess(res) {
		return ResultError("vkDeviceWaitIdle", res)
	}
	return nil
}

func (vc *VulkanContext) NewFence(signaled bool) (renderer.Fence, error) {
	return NewFence(vc, signaled)
}

func (vc *VulkanContext) NewSemaphore() (renderer.Semaphore, error) {
	return NewSemaphore(vc)
}

// Submit executes cmds as one batch on the graphics queue.
func (vc *VulkanContext) Submit(cmds []renderer.CommandBuffer, wait, signal renderer.Semaphore, fence renderer.Fence) error {
	handles := make([]vk.CommandBuffer, 0, len(cmds))
	buffers := make([]*VulkanCommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		cb, ok := c.(*VulkanCommandBuffer)
		if !ok {
			return fmt.Errorf("submit: unexpected command buffer %T", c)
		}
		// Reusable buffers stay executable after a submit.
		if cb.State != COMMAND_BUFFER_STATE_RECORDING_ENDED && cb.State != COMMAND_BUFFER_STATE_SUBMITTED {
			return fmt.Errorf("submit: command buffer is not ready (state %d)", cb.State)
		}
		handles = append(handles, cb.Handle)
		buffers = append(buffers, cb)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(handles)),
		PCommandBuffers:    handles,
	}
	if s, ok := wait.(*VulkanSemaphore); ok && s != nil {
		// Color writes wait for the image; everything before them may start early.
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{s.Handle}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if s, ok := signal.(*VulkanSemaphore); ok && s != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{s.Handle}
	}
	var fenceHandle vk.Fence
	var vf *VulkanFence
	if f, ok := fence.(*VulkanFence); ok && f != nil {
		vf = f
		fenceHandle = f.Handle
	}

	err := vc.LockPool.SafeQueueCall(uint32(vc.Device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(vc.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fenceHandle); res != vk.Success {
			return ResultError("vkQueueSubmit", res)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if vf != nil {
		vf.IsSignaled = false
	}
	for _, cb := range buffers {
		cb.UpdateSubmitted()
	}
	return nil
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	memoryProperties := vc.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryType := memoryProperties.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unable to find suitable memory type: %w", core.ErrResourceCreation)
}

// Destroy releases the device, surface and instance. Everything created
// from the device must already be gone.
func (vc *VulkanContext) Destroy() {
	if vc.Device != nil && vc.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(vc.Device.LogicalDevice)
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vc)

	if vc.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	}

	if vc.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugMessenger, vc.Allocator)
		vc.debugMessenger = vk.NullDebugReportCallback
	}

	if vc.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
