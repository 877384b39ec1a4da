package vulkan

import (
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/spirv"
)

func TestAlignUp(t *testing.T) {
	tests := []struct{ size, align, want uint64 }{
		{16, 0, 16},
		{16, 256, 256},
		{256, 256, 256},
		{257, 64, 320},
	}
	for _, tt := range tests {
		if got := alignUp(tt.size, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.size, tt.align, got, tt.want)
		}
	}
}

func TestDescriptorPoolSizes(t *testing.T) {
	layouts := []spirv.SetLayout{
		{Set: 0, Bindings: []spirv.Binding{{Binding: 0, Type: spirv.DescriptorUniformBuffer, Count: 1}}},
		{Set: 1, Bindings: []spirv.Binding{
			{Binding: 0, Type: spirv.DescriptorCombinedImageSampler, Count: 1},
			{Binding: 1, Type: spirv.DescriptorUniformBuffer, Count: 1},
		}},
	}
	sizes := descriptorPoolSizes(layouts, []uint32{2, 5})
	got := map[vk.DescriptorType]uint32{}
	for _, s := range sizes {
		got[s.Type] = s.DescriptorCount
	}
	if got[vk.DescriptorTypeUniformBuffer] != 7 {
		t.Errorf("uniform buffers = %d, want 7", got[vk.DescriptorTypeUniformBuffer])
	}
	if got[vk.DescriptorTypeCombinedImageSampler] != 5 {
		t.Errorf("samplers = %d, want 5", got[vk.DescriptorTypeCombinedImageSampler])
	}
	if len(sizes) != 2 {
		t.Errorf("got %d pool sizes, want 2", len(sizes))
	}
}

func TestMaterialIndexFallsBackToDefault(t *testing.T) {
	rs := &VulkanResourceSet{
		materials: []metadata.Material{
			{Name: "a", Texture: 0},
			{Name: "b", Texture: -1},
			metadata.DefaultMaterial(),
		},
	}
	tests := []struct{ in, want int }{
		{0, 0},
		{1, 1},
		{-1, 2},
		{2, 2},
		{99, 2},
	}
	for _, tt := range tests {
		if got := rs.materialIndex(tt.in); got != tt.want {
			t.Errorf("materialIndex(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTextureForUsesWhiteWhenMissing(t *testing.T) {
	white := &VulkanTexture{}
	stone := &VulkanTexture{}
	rs := &VulkanResourceSet{white: white, textures: []*VulkanTexture{stone}}

	if rs.textureFor(metadata.Material{Texture: 0}) != stone {
		t.Error("texture 0 should resolve to the uploaded texture")
	}
	if rs.textureFor(metadata.Material{Texture: -1}) != white {
		t.Error("untextured material should use white")
	}
	if rs.textureFor(metadata.Material{Texture: 3}) != white {
		t.Error("out of range texture should use white")
	}
}

func TestSceneVertexAttributesMatchVertexLayout(t *testing.T) {
	attrs := sceneVertexAttributes()
	if len(attrs) != 3 {
		t.Fatalf("got %d attributes", len(attrs))
	}
	var v metadata.Vertex
	if attrs[1].Offset != uint32(unsafe.Offsetof(v.Normal)) || attrs[2].Offset != 24 {
		t.Errorf("offsets = %d, %d", attrs[1].Offset, attrs[2].Offset)
	}
	for i, a := range attrs {
		if a.Location != uint32(i) || a.Binding != 0 {
			t.Errorf("attribute %d at location %d binding %d", i, a.Location, a.Binding)
		}
	}
}

func TestLayoutTransitionMasks(t *testing.T) {
	if _, _, _, _, ok := layoutTransitionMasks(vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); !ok {
		t.Error("undefined -> transfer dst should be supported")
	}
	_, dst, _, stage, ok := layoutTransitionMasks(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	if !ok || dst != vk.AccessFlags(vk.AccessShaderReadBit) || stage != vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit) {
		t.Errorf("transfer dst -> shader read: ok=%v dst=%d stage=%d", ok, dst, stage)
	}
	if _, _, _, _, ok := layoutTransitionMasks(vk.ImageLayoutUndefined, vk.ImageLayoutPresentSrc); ok {
		t.Error("unsupported transition reported as supported")
	}
}

func TestCullModeFlags(t *testing.T) {
	if cullModeFlags(metadata.FaceCullModeNone) != vk.CullModeFlags(vk.CullModeNone) {
		t.Error("none")
	}
	if cullModeFlags(metadata.FaceCullMode(42)) != vk.CullModeFlags(vk.CullModeBackBit) {
		t.Error("unknown modes should cull back faces")
	}
}
