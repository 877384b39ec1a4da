package vulkan

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-viewer/engine/renderer"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

// sceneRecorder writes scene pass commands into one command buffer of a
// resource set.
type sceneRecorder struct {
	set *VulkanResourceSet
	cmd *VulkanCommandBuffer
}

var _ renderer.Recorder = (*sceneRecorder)(nil)

func (r *sceneRecorder) BeginRenderPass(image uint32) {
	rs := r.set
	rs.renderpass.Begin(r.cmd, rs.framebuffers[image].Handle, rs.extent)
	setViewportAndScissor(r.cmd.Handle, rs.extent)
}

func (r *sceneRecorder) BindPipeline() {
	r.set.pipeline.Bind(r.cmd, vk.PipelineBindPointGraphics)
}

func (r *sceneRecorder) BindGlobalSet(slot int) {
	rs := r.set
	vk.CmdBindDescriptorSets(r.cmd.Handle, vk.PipelineBindPointGraphics, rs.pipeline.PipelineLayout,
		globalSetIndex, 1, []vk.DescriptorSet{rs.globalSets[slot]}, 0, nil)
}

func (r *sceneRecorder) BindGeometry() {
	rs := r.set
	vk.CmdBindVertexBuffers(r.cmd.Handle, 0, 1, []vk.Buffer{rs.vertexBuffer.Handle}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(r.cmd.Handle, rs.indexBuffer.Handle, 0, vk.IndexTypeUint32)
}

func (r *sceneRecorder) PushTransform(m mgl32.Mat4) {
	rs := r.set
	vk.CmdPushConstants(r.cmd.Handle, rs.pipeline.PipelineLayout, rs.pushStages, 0, metadata.PushConstantSize, unsafe.Pointer(&m[0]))
}

func (r *sceneRecorder) BindMaterialSet(material int) {
	rs := r.set
	set := rs.materialSets[rs.materialIndex(material)]
	vk.CmdBindDescriptorSets(r.cmd.Handle, vk.PipelineBindPointGraphics, rs.pipeline.PipelineLayout,
		materialSetIndex, 1, []vk.DescriptorSet{set}, 0, nil)
}

func (r *sceneRecorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32) {
	vk.CmdDrawIndexed(r.cmd.Handle, indexCount, instanceCount, firstIndex, 0, 0)
}

func (r *sceneRecorder) EndRenderPass() {
	r.set.renderpass.End(r.cmd)
}
