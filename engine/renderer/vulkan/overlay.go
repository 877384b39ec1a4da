package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/spirv"
)

// overlayPush maps pixel coordinates to clip space: clip = pos*Scale + Translate.
type overlayPush struct {
	Scale     [2]float32
	Translate [2]float32
}

const overlayPushSize = uint32(unsafe.Sizeof(overlayPush{}))

/**
 * @brief The UI pass. It has its own render pass that loads the scene output,
 * one color-only framebuffer per swapchain image and one command buffer per
 * frame slot, re-recorded every frame.
 */
type VulkanOverlay struct {
	context *VulkanContext
	shaders ShaderSource
	atlas   *VulkanTexture

	// Per slot, grown on demand. A slot's buffers are only written after its
	// fence has been waited on.
	vertexBuffers []*VulkanBuffer
	indexBuffers  []*VulkanBuffer

	extent         vk.Extent2D
	renderpass     *VulkanRenderpass
	shader         *VulkanShader
	pipeline       *VulkanPipeline
	framebuffers   []*VulkanFramebuffer
	descriptorPool vk.DescriptorPool
	atlasSet       vk.DescriptorSet
	commandBuffers []*VulkanCommandBuffer
	pushStages     vk.ShaderStageFlags
}

var _ renderer.Overlay = (*VulkanOverlay)(nil)

func NewOverlay(context *VulkanContext, atlas *metadata.ImageResourceData, shaders ShaderSource) (*VulkanOverlay, error) {
	if atlas == nil {
		atlas = metadata.WhiteImage()
	}
	texture, err := TextureCreate(context, atlas, vk.FormatR8g8b8a8Unorm)
	if err != nil {
		return nil, fmt.Errorf("uploading font atlas: %w", err)
	}
	return &VulkanOverlay{
		context: context,
		shaders: shaders,
		atlas:   texture,
	}, nil
}

func (vo *VulkanOverlay) Build(surface renderer.Surface, slots int) error {
	swapchain, ok := surface.(*VulkanSwapchain)
	if !ok {
		return fmt.Errorf("overlay needs a vulkan swapchain, got %T", surface)
	}
	if vo.renderpass != nil {
		if err := vo.Destroy(); err != nil {
			return err
		}
	}
	if err := vo.build(swapchain, slots); err != nil {
		_ = vo.Destroy()
		return err
	}
	return nil
}

func (vo *VulkanOverlay) build(swapchain *VulkanSwapchain, slots int) error {
	context := vo.context
	vo.extent = swapchain.extent

	vertex, fragment, err := vo.shaders()
	if err != nil {
		return fmt.Errorf("loading overlay shaders: %w", err)
	}
	vo.shader, err = ShaderCreate(context, vertex, fragment)
	if err != nil {
		return err
	}
	if err := vo.shader.RequireSets(1); err != nil {
		return err
	}
	vo.pushStages = vo.shader.PushStages
	if vo.pushStages == 0 {
		vo.pushStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}

	vo.renderpass, err = RenderpassCreate(context, &RenderpassConfig{
		ColorFormat: swapchain.ImageFormat.Format,
		ClearFlags:  RENDERPASS_CLEAR_NONE_FLAG,
		HasPrevPass: true,
	})
	if err != nil {
		return err
	}

	vo.pipeline, err = NewGraphicsPipeline(context, &VulkanPipelineConfig{
		Renderpass:           vo.renderpass,
		Stride:               metadata.UIVertexSize,
		Attributes:           overlayVertexAttributes(),
		DescriptorSetLayouts: vo.shader.DescriptorSetLayouts,
		Stages:               vo.shader.StageInfos(),
		CullMode:             metadata.FaceCullModeNone,
		Blend:                true,
		PushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vo.pushStages,
			Offset:     0,
			Size:       overlayPushSize,
		}},
	})
	if err != nil {
		return err
	}

	vo.framebuffers, err = framebuffersCreate(context, vo.renderpass, vo.extent, swapchain.Views, nil)
	if err != nil {
		return err
	}

	if err := vo.createDescriptors(); err != nil {
		return err
	}

	for len(vo.vertexBuffers) < slots {
		vo.vertexBuffers = append(vo.vertexBuffers, nil)
		vo.indexBuffers = append(vo.indexBuffers, nil)
	}
	vo.commandBuffers = make([]*VulkanCommandBuffer, slots)
	for slot := range vo.commandBuffers {
		cb, err := NewVulkanCommandBuffer(context, context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		vo.commandBuffers[slot] = cb
	}
	return nil
}

func overlayVertexAttributes() []vk.VertexInputAttributeDescription {
	var v metadata.UIVertex
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(v.Position))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(v.UV))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: uint32(unsafe.Offsetof(v.Color))},
	}
}

func (vo *VulkanOverlay) createDescriptors() error {
	context := vo.context
	device := context.Device.LogicalDevice
	sizes := descriptorPoolSizes(vo.shader.SetLayouts[:1], []uint32{1})
	if len(sizes) == 0 {
		return fmt.Errorf("overlay shaders declare no descriptors: %w", core.ErrResourceCreation)
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	return context.LockPool.SafeCall(DescriptorManagement, func() error {
		var pool vk.DescriptorPool
		if res := vk.CreateDescriptorPool(device, &poolInfo, context.Allocator, &pool); res != vk.Success {
			return ResultError("vkCreateDescriptorPool", res)
		}
		vo.descriptorPool = pool

		sets, err := allocateSets(context, pool, vo.shader.DescriptorSetLayouts[0], 1)
		if err != nil {
			return err
		}
		vo.atlasSet = sets[0]

		var writes []vk.WriteDescriptorSet
		for _, b := range vo.shader.SetLayouts[0].Bindings {
			if b.Type != spirv.DescriptorCombinedImageSampler {
				core.LogWarn("Overlay binding %d (%s) has no resource, left unwritten.", b.Binding, b.Type)
				continue
			}
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          vo.atlasSet,
				DstBinding:      b.Binding,
				DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,
				PImageInfo: []vk.DescriptorImageInfo{{
					Sampler:     vo.atlas.Sampler,
					ImageView:   vo.atlas.Image.View,
					ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
				}},
			})
		}
		vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)
		return nil
	})
}

// ensureCapacity grows a slot buffer to hold size bytes, doubling to keep
// reallocations rare.
func (vo *VulkanOverlay) ensureCapacity(buffer **VulkanBuffer, size uint64, usage vk.BufferUsageFlags) error {
	if *buffer != nil && (*buffer).TotalSize >= size {
		return nil
	}
	capacity := uint64(4096)
	if *buffer != nil {
		capacity = (*buffer).TotalSize
		(*buffer).Destroy(vo.context)
		*buffer = nil
	}
	for capacity < size {
		capacity *= 2
	}
	created, err := BufferCreate(vo.context, capacity, usage, hostVisible())
	if err != nil {
		return err
	}
	*buffer = created
	return nil
}

// clampScissor keeps a draw command's clip rectangle inside the framebuffer.
func clampScissor(clip [4]int32, extent vk.Extent2D) vk.Rect2D {
	x0, y0 := clip[0], clip[1]
	x1, y1 := clip[0]+clip[2], clip[1]+clip[3]
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > int32(extent.Width) {
		x1 = int32(extent.Width)
	}
	if y1 > int32(extent.Height) {
		y1 = int32(extent.Height)
	}
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return vk.Rect2D{
		Offset: vk.Offset2D{X: x0, Y: y0},
		Extent: vk.Extent2D{Width: uint32(x1 - x0), Height: uint32(y1 - y0)},
	}
}

func overlayTransform(displaySize [2]float32) overlayPush {
	if displaySize[0] <= 0 || displaySize[1] <= 0 {
		return overlayPush{Scale: [2]float32{1, 1}}
	}
	return overlayPush{
		Scale:     [2]float32{2 / displaySize[0], 2 / displaySize[1]},
		Translate: [2]float32{-1, -1},
	}
}

func (vo *VulkanOverlay) Record(slot int, image uint32, data *metadata.UIDrawData) (renderer.CommandBuffer, error) {
	if slot < 0 || slot >= len(vo.commandBuffers) || int(image) >= len(vo.framebuffers) {
		return nil, fmt.Errorf("no overlay command buffer for slot %d image %d", slot, image)
	}
	cb := vo.commandBuffers[slot]
	if err := cb.Reset(); err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		return nil, err
	}

	vo.renderpass.Begin(cb, vo.framebuffers[image].Handle, vo.extent)
	if !data.Empty() {
		if err := vo.draw(cb, slot, data); err != nil {
			vo.renderpass.End(cb)
			_ = cb.End()
			return nil, err
		}
	}
	vo.renderpass.End(cb)

	if err := cb.End(); err != nil {
		return nil, err
	}
	return cb, nil
}

func (vo *VulkanOverlay) draw(cb *VulkanCommandBuffer, slot int, data *metadata.UIDrawData) error {
	vertices, indices := data.VertexBytes(), data.IndexBytes()
	if err := vo.ensureCapacity(&vo.vertexBuffers[slot], uint64(len(vertices)), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)); err != nil {
		return err
	}
	if err := vo.ensureCapacity(&vo.indexBuffers[slot], uint64(len(indices)), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)); err != nil {
		return err
	}
	if err := vo.vertexBuffers[slot].LoadData(vo.context, 0, vertices); err != nil {
		return err
	}
	if err := vo.indexBuffers[slot].LoadData(vo.context, 0, indices); err != nil {
		return err
	}

	cmd := cb.Handle
	vo.pipeline.Bind(cb, vk.PipelineBindPointGraphics)
	setViewportAndScissor(cmd, vo.extent)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, vo.pipeline.PipelineLayout, 0, 1, []vk.DescriptorSet{vo.atlasSet}, 0, nil)
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{vo.vertexBuffers[slot].Handle}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(cmd, vo.indexBuffers[slot].Handle, 0, vk.IndexTypeUint32)

	push := overlayTransform(data.DisplaySize)
	vk.CmdPushConstants(cmd, vo.pipeline.PipelineLayout, vo.pushStages, 0, overlayPushSize, unsafe.Pointer(&push))

	for _, command := range data.Commands {
		scissor := clampScissor(command.Clip, vo.extent)
		if scissor.Extent.Width == 0 || scissor.Extent.Height == 0 || command.IndexCount == 0 {
			continue
		}
		vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{scissor})
		vk.CmdDrawIndexed(cmd, command.IndexCount, 1, command.IndexOffset, 0, 0)
	}
	return nil
}

func (vo *VulkanOverlay) FramebufferCount() int {
	return len(vo.framebuffers)
}

// Destroy releases everything Build created. The atlas and the slot
// buffers survive until Release.
func (vo *VulkanOverlay) Destroy() error {
	context := vo.context
	for _, cb := range vo.commandBuffers {
		if cb != nil {
			cb.Free(context, context.Device.GraphicsCommandPool)
		}
	}
	vo.commandBuffers = nil

	if vo.descriptorPool != nil {
		_ = context.LockPool.SafeCall(DescriptorManagement, func() error {
			vk.DestroyDescriptorPool(context.Device.LogicalDevice, vo.descriptorPool, context.Allocator)
			return nil
		})
		vo.descriptorPool = nil
		vo.atlasSet = nil
	}
	for _, fb := range vo.framebuffers {
		fb.Destroy(context)
	}
	vo.framebuffers = nil

	var err error
	if vo.pipeline != nil {
		err = vo.pipeline.Destroy(context)
		vo.pipeline = nil
	}
	if vo.shader != nil {
		vo.shader.Destroy(context)
		vo.shader = nil
	}
	if vo.renderpass != nil {
		vo.renderpass.Destroy(context)
		vo.renderpass = nil
	}
	vo.extent = vk.Extent2D{}
	return err
}

func (vo *VulkanOverlay) Release() {
	_ = vo.Destroy()
	for i := range vo.vertexBuffers {
		if vo.vertexBuffers[i] != nil {
			vo.vertexBuffers[i].Destroy(vo.context)
		}
		if vo.indexBuffers[i] != nil {
			vo.indexBuffers[i].Destroy(vo.context)
		}
	}
	vo.vertexBuffers, vo.indexBuffers = nil, nil
	if vo.atlas != nil {
		vo.atlas.Destroy(vo.context)
		vo.atlas = nil
	}
}
