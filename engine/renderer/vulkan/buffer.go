package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-viewer/engine/core"
)

type VulkanBuffer struct {
	Handle      vk.Buffer
	Memory      vk.DeviceMemory
	TotalSize   uint64
	Usage       vk.BufferUsageFlags
	MemoryFlags vk.MemoryPropertyFlags
	mapped      unsafe.Pointer
}

func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer of zero size: %w", core.ErrResourceCreation)
	}
	outBuffer := &VulkanBuffer{
		TotalSize:   size,
		Usage:       usage,
		MemoryFlags: memoryFlags,
	}
	device := context.Device.LogicalDevice

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(device, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		return nil, ResultError("vkCreateBuffer", res)
	}
	outBuffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &requirements)
	requirements.Deref()

	memoryType, err := context.FindMemoryIndex(requirements.MemoryTypeBits, memoryFlags)
	if err != nil {
		outBuffer.Destroy(context)
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		outBuffer.Destroy(context)
		return nil, ResultError("vkAllocateMemory", res)
	}
	outBuffer.Memory = memory

	if res := vk.BindBufferMemory(device, handle, memory, 0); res != vk.Success {
		outBuffer.Destroy(context)
		return nil, ResultError("vkBindBufferMemory", res)
	}
	return outBuffer, nil
}

func hostVisible() vk.MemoryPropertyFlags {
	return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
}

// LoadData copies data at offset. Host-visible buffers stay mapped for
// their lifetime, which suits the per-frame uniform and overlay buffers.
func (vb *VulkanBuffer) LoadData(context *VulkanContext, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if offset+uint64(len(data)) > vb.TotalSize {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d", len(data), offset, vb.TotalSize)
	}
	if vb.mapped == nil {
		var ptr unsafe.Pointer
		if res := vk.MapMemory(context.Device.LogicalDevice, vb.Memory, 0, vk.DeviceSize(vb.TotalSize), 0, &ptr); res != vk.Success {
			return ResultError("vkMapMemory", res)
		}
		vb.mapped = ptr
	}
	vk.Memcopy(unsafe.Add(vb.mapped, int(offset)), data)
	return nil
}

// BufferCreateDeviceLocal uploads data through a staging buffer into a
// device-local buffer with the given usage.
func BufferCreateDeviceLocal(context *VulkanContext, data []byte, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	size := uint64(len(data))
	staging, err := BufferCreate(context, size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), hostVisible())
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(context)

	if err := staging.LoadData(context, 0, data); err != nil {
		return nil, err
	}

	target, err := BufferCreate(context, size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}

	err = RunSingleUse(context, func(cmd vk.CommandBuffer) {
		vk.CmdCopyBuffer(cmd, staging.Handle, target.Handle, 1, []vk.BufferCopy{{Size: vk.DeviceSize(size)}})
	})
	if err != nil {
		target.Destroy(context)
		return nil, err
	}
	return target, nil
}

func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if vb.mapped != nil {
		vk.UnmapMemory(device, vb.Memory)
		vb.mapped = nil
	}
	if vb.Handle != nil {
		vk.DestroyBuffer(device, vb.Handle, context.Allocator)
		vb.Handle = nil
	}
	if vb.Memory != nil {
		vk.FreeMemory(device, vb.Memory, context.Allocator)
		vb.Memory = nil
	}
	vb.TotalSize = 0
}
