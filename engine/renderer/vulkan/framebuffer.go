package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
	Extent      vk.Extent2D
}

func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, extent vk.Extent2D, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
		Renderpass:  renderpass,
		Extent:      extent,
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var pFramebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &framebufferCreateInfo, context.Allocator, &pFramebuffer); res != vk.Success {
		return nil, ResultError("vkCreateFramebuffer", res)
	}
	outFramebuffer.Handle = pFramebuffer
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	if vfb.Handle != nil {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
	}
	vfb.Attachments = nil
	vfb.Handle = nil
	vfb.Renderpass = nil
}

// framebuffersCreate builds one framebuffer per swapchain view, each sharing
// the optional depth view.
func framebuffersCreate(context *VulkanContext, renderpass *VulkanRenderpass, extent vk.Extent2D, views []vk.ImageView, depth vk.ImageView) ([]*VulkanFramebuffer, error) {
	framebuffers := make([]*VulkanFramebuffer, 0, len(views))
	for _, view := range views {
		attachments := []vk.ImageView{view}
		if depth != nil {
			attachments = append(attachments, depth)
		}
		fb, err := FramebufferCreate(context, renderpass, extent, attachments)
		if err != nil {
			for _, created := range framebuffers {
				created.Destroy(context)
			}
			return nil, err
		}
		framebuffers = append(framebuffers, fb)
	}
	return framebuffers, nil
}
