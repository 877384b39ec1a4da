package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

/**
 * @brief A sampled RGBA8 texture: image, view and sampler.
 */
type VulkanTexture struct {
	Image   *VulkanImage
	Sampler vk.Sampler
}

func TextureCreate(context *VulkanContext, data *metadata.ImageResourceData, format vk.Format) (*VulkanTexture, error) {
	if data.ChannelCount != 4 || len(data.Pixels) != int(data.Width*data.Height*4) {
		return nil, fmt.Errorf("texture %dx%d with %d channels and %d bytes: %w",
			data.Width, data.Height, data.ChannelCount, len(data.Pixels), core.ErrResourceCreation)
	}

	staging, err := BufferCreate(context, uint64(len(data.Pixels)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), hostVisible())
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(context)
	if err := staging.LoadData(context, 0, data.Pixels); err != nil {
		return nil, err
	}

	image, err := ImageCreate(context, data.Width, data.Height, format,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)|vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}

	err = RunSingleUse(context, func(cmd vk.CommandBuffer) {
		image.TransitionLayout(cmd, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		image.CopyFromBuffer(cmd, staging.Handle)
		image.TransitionLayout(cmd, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		image.Destroy(context)
		return nil, err
	}

	sampler, err := samplerCreate(context)
	if err != nil {
		image.Destroy(context)
		return nil, err
	}
	return &VulkanTexture{Image: image, Sampler: sampler}, nil
}

func samplerCreate(context *VulkanContext) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if context.Device.Features.SamplerAnisotropy == vk.True {
		limits := context.Device.Properties.Limits
		limits.Deref()
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = limits.MaxSamplerAnisotropy
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		return nil, ResultError("vkCreateSampler", res)
	}
	return sampler, nil
}

func (vt *VulkanTexture) Destroy(context *VulkanContext) {
	if vt.Sampler != nil {
		vk.DestroySampler(context.Device.LogicalDevice, vt.Sampler, context.Allocator)
		vt.Sampler = nil
	}
	if vt.Image != nil {
		vt.Image.Destroy(context)
		vt.Image = nil
	}
}
