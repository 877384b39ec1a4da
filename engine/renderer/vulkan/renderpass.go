package vulkan

import (
	vk "github.com/goki/vulkan"
)

type RenderpassClearFlag uint8

const (
	RENDERPASS_CLEAR_NONE_FLAG         RenderpassClearFlag = 0x0
	RENDERPASS_CLEAR_COLOR_BUFFER_FLAG RenderpassClearFlag = 0x1
	RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG RenderpassClearFlag = 0x2
)

/**
 * @brief Describes how a render pass treats the swapchain image. The scene
 * pass clears color and depth; the overlay pass loads what the scene left
 * behind and draws on top.
 */
type RenderpassConfig struct {
	ColorFormat   vk.Format
	DepthFormat   vk.Format
	ClearFlags    RenderpassClearFlag
	ClearColor    [4]float32
	Depth         float32
	Stencil       uint32
	HasPrevPass   bool
	UseDepthImage bool
}

type VulkanRenderpass struct {
	Handle     vk.RenderPass
	ClearFlags RenderpassClearFlag
	ClearColor [4]float32
	Depth      float32
	Stencil    uint32
	HasDepth   bool
}

func RenderpassCreate(context *VulkanContext, config *RenderpassConfig) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		ClearFlags: config.ClearFlags,
		ClearColor: config.ClearColor,
		Depth:      config.Depth,
		Stencil:    config.Stencil,
		HasDepth:   config.UseDepthImage,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}

	attachmentDescriptions := make([]vk.AttachmentDescription, 0, 2)

	clearColor := config.ClearFlags&RENDERPASS_CLEAR_COLOR_BUFFER_FLAG != 0
	colorAttachment := vk.AttachmentDescription{
		Format:         config.ColorFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpLoad,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		// Every pass leaves the image presentable; a later pass loads it from there.
		InitialLayout: vk.ImageLayoutPresentSrc,
		FinalLayout:   vk.ImageLayoutPresentSrc,
	}
	if clearColor {
		colorAttachment.LoadOp = vk.AttachmentLoadOpClear
	}
	if !config.HasPrevPass {
		colorAttachment.InitialLayout = vk.ImageLayoutUndefined
	}
	attachmentDescriptions = append(attachmentDescriptions, colorAttachment)

	colorAttachmentReference := []vk.AttachmentReference{
		{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}
	subpass.ColorAttachmentCount = 1
	subpass.PColorAttachments = colorAttachmentReference

	if config.UseDepthImage {
		depthAttachment := vk.AttachmentDescription{
			Format:         config.DepthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachmentDescriptions = append(attachmentDescriptions, depthAttachment)

		depthAttachmentReference := vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		subpass.PDepthStencilAttachment = &depthAttachmentReference
	}

	stageMask := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	accessMask := vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	if config.UseDepthImage {
		stageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		accessMask |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stageMask,
		SrcAccessMask: 0,
		DstStageMask:  stageMask,
		DstAccessMask: accessMask,
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pRenderPass vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass); res != vk.Success {
		return nil, ResultError("vkCreateRenderPass", res)
	}
	outRenderpass.Handle = pRenderPass
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) Destroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = nil
	}
}

func (vr *VulkanRenderpass) clearValues() []vk.ClearValue {
	clearValues := make([]vk.ClearValue, 0, 2)
	// Load-op attachments ignore their clear value, but the slot must exist.
	var color vk.ClearValue
	color.SetColor(vr.ClearColor[:])
	clearValues = append(clearValues, color)
	if vr.HasDepth {
		var depth vk.ClearValue
		depth.SetDepthStencil(vr.Depth, vr.Stencil)
		clearValues = append(clearValues, depth)
	}
	return clearValues
}

func (vr *VulkanRenderpass) Begin(commandBuffer *VulkanCommandBuffer, frameBuffer vk.Framebuffer, extent vk.Extent2D) {
	clearValues := vr.clearValues()
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) End(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
