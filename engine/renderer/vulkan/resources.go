package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/spirv"
)

const (
	globalSetIndex   = 0
	materialSetIndex = 1
)

// ShaderSource returns vertex and fragment SPIR-V. It is called on every
// build so a recreation picks up rewritten bytecode.
type ShaderSource func() (vertex, fragment []byte, err error)

/**
 * @brief GPU-side scene content uploaded once and shared by every build.
 */
type SceneData struct {
	Geometry  *metadata.GeometryData
	Materials []metadata.Material
	Textures  []*metadata.ImageResourceData
}

/**
 * @brief The size-dependent resource set of the scene pass. Static scene data
 * lives for the lifetime of the set; everything else is rebuilt per extent.
 */
type VulkanResourceSet struct {
	context    *VulkanContext
	shaders    ShaderSource
	clearColor [4]float32

	vertexBuffer   *VulkanBuffer
	indexBuffer    *VulkanBuffer
	textures       []*VulkanTexture
	white          *VulkanTexture
	materials      []metadata.Material
	materialBuffer *VulkanBuffer
	materialStride uint64

	ID             uuid.UUID
	extent         vk.Extent2D
	depth          *VulkanImage
	renderpass     *VulkanRenderpass
	shader         *VulkanShader
	pipeline       *VulkanPipeline
	framebuffers   []*VulkanFramebuffer
	cameraBuffers  []*VulkanBuffer
	descriptorPool vk.DescriptorPool
	globalSets     []vk.DescriptorSet
	materialSets   []vk.DescriptorSet
	commandBuffers [][]*VulkanCommandBuffer
	pushStages     vk.ShaderStageFlags
}

var _ renderer.ResourceSet = (*VulkanResourceSet)(nil)

func NewResourceSet(context *VulkanContext, scene *SceneData, shaders ShaderSource, clearColor [4]float32) (*VulkanResourceSet, error) {
	rs := &VulkanResourceSet{
		context:    context,
		shaders:    shaders,
		clearColor: clearColor,
		materials:  append([]metadata.Material(nil), scene.Materials...),
	}
	// The last material is the fallback for primitives without one.
	rs.materials = append(rs.materials, metadata.DefaultMaterial())

	if err := rs.uploadGeometry(scene.Geometry); err != nil {
		rs.Release()
		return nil, err
	}
	if err := rs.uploadTextures(scene.Textures); err != nil {
		rs.Release()
		return nil, err
	}
	if err := rs.uploadMaterials(); err != nil {
		rs.Release()
		return nil, err
	}
	core.LogInfo("Scene uploaded: %d vertices, %d indices, %d textures, %d materials.",
		len(scene.Geometry.Vertices), len(scene.Geometry.Indices), len(rs.textures), len(rs.materials)-1)
	return rs, nil
}

func (rs *VulkanResourceSet) uploadGeometry(geometry *metadata.GeometryData) error {
	if geometry == nil || len(geometry.Vertices) == 0 || len(geometry.Indices) == 0 {
		return fmt.Errorf("scene has no geometry: %w", core.ErrInvalidScene)
	}
	var err error
	rs.vertexBuffer, err = BufferCreateDeviceLocal(rs.context, geometry.VertexBytes(), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return fmt.Errorf("uploading vertices: %w", err)
	}
	rs.indexBuffer, err = BufferCreateDeviceLocal(rs.context, geometry.IndexBytes(), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		return fmt.Errorf("uploading indices: %w", err)
	}
	return nil
}

func (rs *VulkanResourceSet) uploadTextures(images []*metadata.ImageResourceData) error {
	var err error
	rs.white, err = TextureCreate(rs.context, metadata.WhiteImage(), vk.FormatR8g8b8a8Unorm)
	if err != nil {
		return err
	}
	for i, image := range images {
		texture, err := TextureCreate(rs.context, image, vk.FormatR8g8b8a8Srgb)
		if err != nil {
			return fmt.Errorf("uploading texture %d: %w", i, err)
		}
		rs.textures = append(rs.textures, texture)
	}
	return nil
}

// uploadMaterials packs every base color factor into one uniform buffer at
// the device's uniform offset alignment.
func (rs *VulkanResourceSet) uploadMaterials() error {
	limits := rs.context.Device.Properties.Limits
	limits.Deref()
	rs.materialStride = alignUp(uint64(unsafe.Sizeof([4]float32{})), uint64(limits.MinUniformBufferOffsetAlignment))

	data := make([]byte, rs.materialStride*uint64(len(rs.materials)))
	for i := range rs.materials {
		factor := rs.materials[i].BaseColorFactor
		copy(data[uint64(i)*rs.materialStride:], unsafe.Slice((*byte)(unsafe.Pointer(&factor[0])), 16))
	}
	var err error
	rs.materialBuffer, err = BufferCreateDeviceLocal(rs.context, data, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
	return err
}

func alignUp(size, alignment uint64) uint64 {
	if alignment == 0 {
		return size
	}
	return (size + alignment - 1) &^ (alignment - 1)
}

// materialIndex maps a primitive's material to a set index. Negative and
// unknown materials use the fallback.
func (rs *VulkanResourceSet) materialIndex(material int) int {
	if material < 0 || material >= len(rs.materials)-1 {
		return len(rs.materials) - 1
	}
	return material
}

func (rs *VulkanResourceSet) textureFor(material metadata.Material) *VulkanTexture {
	if material.Texture < 0 || material.Texture >= len(rs.textures) {
		return rs.white
	}
	return rs.textures[material.Texture]
}

func (rs *VulkanResourceSet) Build(surface renderer.Surface, slots int) error {
	swapchain, ok := surface.(*VulkanSwapchain)
	if !ok {
		return fmt.Errorf("resource set needs a vulkan swapchain, got %T", surface)
	}
	if rs.renderpass != nil {
		if err := rs.Destroy(); err != nil {
			return err
		}
	}
	if err := rs.build(swapchain, slots); err != nil {
		_ = rs.Destroy()
		return err
	}
	core.LogInfo("Resource set %s built: %dx%d, %d framebuffers, %d slots.",
		rs.ID, rs.extent.Width, rs.extent.Height, len(rs.framebuffers), slots)
	return nil
}

func (rs *VulkanResourceSet) build(swapchain *VulkanSwapchain, slots int) error {
	context := rs.context
	rs.ID = uuid.New()
	rs.extent = swapchain.extent

	vertex, fragment, err := rs.shaders()
	if err != nil {
		return fmt.Errorf("loading scene shaders: %w", err)
	}
	rs.shader, err = ShaderCreate(context, vertex, fragment)
	if err != nil {
		return err
	}
	if err := rs.shader.RequireSets(materialSetIndex + 1); err != nil {
		return err
	}
	rs.pushStages = rs.shader.PushStages
	if rs.pushStages == 0 {
		rs.pushStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}

	rs.depth, err = ImageCreate(context, rs.extent.Width, rs.extent.Height, context.Device.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true, vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return err
	}

	rs.renderpass, err = RenderpassCreate(context, &RenderpassConfig{
		ColorFormat:   swapchain.ImageFormat.Format,
		DepthFormat:   context.Device.DepthFormat,
		ClearFlags:    RENDERPASS_CLEAR_COLOR_BUFFER_FLAG | RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG,
		ClearColor:    rs.clearColor,
		Depth:         1.0,
		Stencil:       0,
		UseDepthImage: true,
	})
	if err != nil {
		return err
	}

	rs.pipeline, err = NewGraphicsPipeline(context, &VulkanPipelineConfig{
		Renderpass:           rs.renderpass,
		Stride:               metadata.VertexSize,
		Attributes:           sceneVertexAttributes(),
		DescriptorSetLayouts: rs.shader.DescriptorSetLayouts,
		Stages:               rs.shader.StageInfos(),
		CullMode:             metadata.FaceCullModeBack,
		DepthTest:            true,
		DepthWrite:           true,
		PushConstantRanges: []vk.PushConstantRange{{
			StageFlags: rs.pushStages,
			Offset:     0,
			Size:       metadata.PushConstantSize,
		}},
	})
	if err != nil {
		return err
	}

	rs.framebuffers, err = framebuffersCreate(context, rs.renderpass, rs.extent, swapchain.Views, rs.depth.View)
	if err != nil {
		return err
	}

	for i := 0; i < slots; i++ {
		buffer, err := BufferCreate(context, metadata.CameraUniformSize, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), hostVisible())
		if err != nil {
			return err
		}
		rs.cameraBuffers = append(rs.cameraBuffers, buffer)
	}

	if err := rs.createDescriptors(slots); err != nil {
		return err
	}

	rs.commandBuffers = make([][]*VulkanCommandBuffer, slots)
	for slot := range rs.commandBuffers {
		rs.commandBuffers[slot] = make([]*VulkanCommandBuffer, len(rs.framebuffers))
		for image := range rs.commandBuffers[slot] {
			cb, err := NewVulkanCommandBuffer(context, context.Device.GraphicsCommandPool, true)
			if err != nil {
				return err
			}
			rs.commandBuffers[slot][image] = cb
		}
	}
	return nil
}

func sceneVertexAttributes() []vk.VertexInputAttributeDescription {
	var v metadata.Vertex
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Position))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Normal))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(v.UV))},
	}
}

// descriptorPoolSizes counts descriptors per type for sets allocated from
// each layout the given number of times.
func descriptorPoolSizes(layouts []spirv.SetLayout, setsPerLayout []uint32) []vk.DescriptorPoolSize {
	counts := map[spirv.DescriptorType]uint32{}
	var order []spirv.DescriptorType
	for i, layout := range layouts {
		if i >= len(setsPerLayout) {
			break
		}
		for _, b := range layout.Bindings {
			if _, seen := counts[b.Type]; !seen {
				order = append(order, b.Type)
			}
			counts[b.Type] += descriptorCount(b) * setsPerLayout[i]
		}
	}
	sizes := make([]vk.DescriptorPoolSize, 0, len(order))
	for _, t := range order {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorType(t), DescriptorCount: counts[t]})
	}
	return sizes
}

func (rs *VulkanResourceSet) createDescriptors(slots int) error {
	context := rs.context
	device := context.Device.LogicalDevice
	setsPerLayout := []uint32{uint32(slots), uint32(len(rs.materials))}
	sizes := descriptorPoolSizes(rs.shader.SetLayouts, setsPerLayout)
	if len(sizes) == 0 {
		return fmt.Errorf("scene shaders declare no descriptors: %w", core.ErrResourceCreation)
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(slots + len(rs.materials)),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}

	return context.LockPool.SafeCall(DescriptorManagement, func() error {
		var pool vk.DescriptorPool
		if res := vk.CreateDescriptorPool(device, &poolInfo, context.Allocator, &pool); res != vk.Success {
			return ResultError("vkCreateDescriptorPool", res)
		}
		rs.descriptorPool = pool

		var err error
		rs.globalSets, err = allocateSets(context, pool, rs.shader.DescriptorSetLayouts[globalSetIndex], slots)
		if err != nil {
			return err
		}
		rs.materialSets, err = allocateSets(context, pool, rs.shader.DescriptorSetLayouts[materialSetIndex], len(rs.materials))
		if err != nil {
			return err
		}

		var writes []vk.WriteDescriptorSet
		for slot, set := range rs.globalSets {
			writes = append(writes, rs.setWrites(globalSetIndex, set, func(b spirv.Binding) descriptorResource {
				return descriptorResource{buffer: rs.cameraBuffers[slot], size: metadata.CameraUniformSize}
			})...)
		}
		for i, set := range rs.materialSets {
			material := rs.materials[i]
			offset := uint64(i) * rs.materialStride
			writes = append(writes, rs.setWrites(materialSetIndex, set, func(b spirv.Binding) descriptorResource {
				return descriptorResource{
					buffer:  rs.materialBuffer,
					offset:  offset,
					size:    rs.materialStride,
					texture: rs.textureFor(material),
				}
			})...)
		}
		vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)
		return nil
	})
}

func allocateSets(context *VulkanContext, pool vk.DescriptorPool, layout vk.DescriptorSetLayout, count int) ([]vk.DescriptorSet, error) {
	if count == 0 {
		return nil, nil
	}
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(count),
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, count)
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &sets[0]); res != vk.Success {
		return nil, ResultError("vkAllocateDescriptorSets", res)
	}
	return sets, nil
}

type descriptorResource struct {
	buffer  *VulkanBuffer
	offset  uint64
	size    uint64
	texture *VulkanTexture
}

// setWrites builds one write per reflected binding of set, picking buffer or
// image info by the binding's descriptor type.
func (rs *VulkanResourceSet) setWrites(set uint32, handle vk.DescriptorSet, resource func(spirv.Binding) descriptorResource) []vk.WriteDescriptorSet {
	var writes []vk.WriteDescriptorSet
	for _, b := range rs.shader.SetLayouts[set].Bindings {
		r := resource(b)
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          handle,
			DstBinding:      b.Binding,
			DstArrayElement: 0,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: 1,
		}
		switch b.Type {
		case spirv.DescriptorUniformBuffer, spirv.DescriptorStorageBuffer:
			if r.buffer == nil {
				continue
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: r.buffer.Handle,
				Offset: vk.DeviceSize(r.offset),
				Range:  vk.DeviceSize(r.size),
			}}
		case spirv.DescriptorCombinedImageSampler:
			if r.texture == nil {
				continue
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     r.texture.Sampler,
				ImageView:   r.texture.Image.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		default:
			core.LogWarn("Set %d binding %d (%s) has no resource, left unwritten.", set, b.Binding, b.Type)
			continue
		}
		writes = append(writes, write)
	}
	return writes
}

// Destroy releases everything Build created. Static scene data survives.
func (rs *VulkanResourceSet) Destroy() error {
	context := rs.context
	for _, row := range rs.commandBuffers {
		for _, cb := range row {
			if cb != nil {
				cb.Free(context, context.Device.GraphicsCommandPool)
			}
		}
	}
	rs.commandBuffers = nil

	if rs.descriptorPool != nil {
		_ = context.LockPool.SafeCall(DescriptorManagement, func() error {
			vk.DestroyDescriptorPool(context.Device.LogicalDevice, rs.descriptorPool, context.Allocator)
			return nil
		})
		rs.descriptorPool = nil
	}
	rs.globalSets = nil
	rs.materialSets = nil

	for _, buffer := range rs.cameraBuffers {
		buffer.Destroy(context)
	}
	rs.cameraBuffers = nil

	for _, fb := range rs.framebuffers {
		fb.Destroy(context)
	}
	rs.framebuffers = nil

	var err error
	if rs.pipeline != nil {
		err = rs.pipeline.Destroy(context)
		rs.pipeline = nil
	}
	if rs.shader != nil {
		rs.shader.Destroy(context)
		rs.shader = nil
	}
	if rs.renderpass != nil {
		rs.renderpass.Destroy(context)
		rs.renderpass = nil
	}
	if rs.depth != nil {
		rs.depth.Destroy(context)
		rs.depth = nil
	}
	rs.extent = vk.Extent2D{}
	return err
}

// Release destroys the built resources and the uploaded scene data.
func (rs *VulkanResourceSet) Release() {
	_ = rs.Destroy()
	context := rs.context
	for _, texture := range rs.textures {
		texture.Destroy(context)
	}
	rs.textures = nil
	if rs.white != nil {
		rs.white.Destroy(context)
		rs.white = nil
	}
	for _, buffer := range []*VulkanBuffer{rs.vertexBuffer, rs.indexBuffer, rs.materialBuffer} {
		if buffer != nil {
			buffer.Destroy(context)
		}
	}
	rs.vertexBuffer, rs.indexBuffer, rs.materialBuffer = nil, nil, nil
}

func (rs *VulkanResourceSet) FramebufferCount() int {
	return len(rs.framebuffers)
}

func (rs *VulkanResourceSet) Extent() metadata.Extent {
	return metadata.Extent{Width: rs.extent.Width, Height: rs.extent.Height}
}

func (rs *VulkanResourceSet) WriteCamera(slot int, block *metadata.CameraUniform) error {
	if slot < 0 || slot >= len(rs.cameraBuffers) {
		return fmt.Errorf("camera slot %d out of range [0,%d)", slot, len(rs.cameraBuffers))
	}
	return rs.cameraBuffers[slot].LoadData(rs.context, 0, block.Bytes())
}

func (rs *VulkanResourceSet) RecordScene(slot int, image uint32, record func(renderer.Recorder) error) (renderer.CommandBuffer, error) {
	if slot < 0 || slot >= len(rs.commandBuffers) || int(image) >= len(rs.commandBuffers[slot]) {
		return nil, fmt.Errorf("no scene command buffer for slot %d image %d", slot, image)
	}
	cb := rs.commandBuffers[slot][image]
	if err := cb.Reset(); err != nil {
		return nil, err
	}
	if err := cb.Begin(false, false, false); err != nil {
		return nil, err
	}
	recordErr := record(&sceneRecorder{set: rs, cmd: cb})
	if err := cb.End(); err != nil {
		return nil, err
	}
	if recordErr != nil {
		return nil, recordErr
	}
	return cb, nil
}
