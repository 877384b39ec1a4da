package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/spirv"
)

type VulkanShaderStage struct {
	Module     vk.ShaderModule
	Stage      spirv.Stage
	EntryPoint string
}

/**
 * @brief A set of shader stages and the descriptor set layouts reflected
 * from their bytecode. Layouts are indexed by set number.
 */
type VulkanShader struct {
	Stages               []VulkanShaderStage
	SetLayouts           []spirv.SetLayout
	DescriptorSetLayouts []vk.DescriptorSetLayout
	// PushStages is the union of stages declaring a push constant block.
	PushStages vk.ShaderStageFlags
}

// ShaderCreate builds one module per bytecode blob and the descriptor set
// layouts their combined bindings describe.
func ShaderCreate(context *VulkanContext, codes ...[]byte) (*VulkanShader, error) {
	shader := &VulkanShader{}
	modules := make([]*spirv.Module, 0, len(codes))
	for i, code := range codes {
		reflected, err := spirv.Reflect(code)
		if err != nil {
			return nil, fmt.Errorf("reflecting shader stage %d: %w", i, err)
		}
		modules = append(modules, reflected)
		if reflected.PushConstants {
			shader.PushStages |= vk.ShaderStageFlags(reflected.Stage)
		}

		module, err := shaderModuleCreate(context, code)
		if err != nil {
			shader.Destroy(context)
			return nil, err
		}
		shader.Stages = append(shader.Stages, VulkanShaderStage{
			Module:     module,
			Stage:      reflected.Stage,
			EntryPoint: reflected.EntryPoint,
		})
	}

	layouts, err := spirv.Merge(modules...)
	if err != nil {
		shader.Destroy(context)
		return nil, err
	}
	shader.SetLayouts = layouts

	for _, layout := range layouts {
		handle, err := descriptorSetLayoutCreate(context, layout)
		if err != nil {
			shader.Destroy(context)
			return nil, err
		}
		shader.DescriptorSetLayouts = append(shader.DescriptorSetLayouts, handle)
	}
	return shader, nil
}

func shaderModuleCreate(context *VulkanContext, code []byte) (vk.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    bytesToBytecode(code),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &module); res != vk.Success {
		return nil, ResultError("vkCreateShaderModule", res)
	}
	return module, nil
}

func descriptorSetLayoutCreate(context *VulkanContext, layout spirv.SetLayout) (vk.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, len(layout.Bindings))
	for _, b := range layout.Bindings {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: descriptorCount(b),
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		})
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var handle vk.DescriptorSetLayout
	err := context.LockPool.SafeCall(DescriptorManagement, func() error {
		if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
			return ResultError("vkCreateDescriptorSetLayout", res)
		}
		return nil
	})
	return handle, err
}

func descriptorCount(b spirv.Binding) uint32 {
	if b.Count == 0 {
		return 1
	}
	return b.Count
}

// StageInfos returns the pipeline stage descriptions.
func (vs *VulkanShader) StageInfos() []vk.PipelineShaderStageCreateInfo {
	infos := make([]vk.PipelineShaderStageCreateInfo, 0, len(vs.Stages))
	for _, stage := range vs.Stages {
		infos = append(infos, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(stage.Stage),
			Module: stage.Module,
			PName:  VulkanSafeString(stage.EntryPoint),
		})
	}
	return infos
}

// Binding looks up a reflected binding.
func (vs *VulkanShader) Binding(set, binding uint32) (spirv.Binding, bool) {
	if int(set) >= len(vs.SetLayouts) {
		return spirv.Binding{}, false
	}
	for _, b := range vs.SetLayouts[set].Bindings {
		if b.Binding == binding {
			return b, true
		}
	}
	return spirv.Binding{}, false
}

// RequireSets fails when the shader declares fewer descriptor sets than the
// caller binds.
func (vs *VulkanShader) RequireSets(count int) error {
	if len(vs.DescriptorSetLayouts) < count {
		return fmt.Errorf("shader declares %d descriptor sets, %d needed: %w", len(vs.DescriptorSetLayouts), count, core.ErrResourceCreation)
	}
	return nil
}

func (vs *VulkanShader) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	for _, layout := range vs.DescriptorSetLayouts {
		vk.DestroyDescriptorSetLayout(device, layout, context.Allocator)
	}
	vs.DescriptorSetLayouts = nil
	for _, stage := range vs.Stages {
		vk.DestroyShaderModule(device, stage.Module, context.Allocator)
	}
	vs.Stages = nil
}
