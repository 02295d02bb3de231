package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/core"
	"github.com/spaghettifunk/inflight/engine/renderer"
)

// VulkanRenderpass is a render pass with one color attachment that is
// cleared on load and left ready for presentation.
type VulkanRenderpass struct {
	Handle vk.RenderPass
	Format vk.Format
}

func pipelineStageFlags(stage renderer.PipelineStage) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlagBits
	if stage&renderer.PipelineStageColorAttachmentOutput != 0 {
		flags |= vk.PipelineStageColorAttachmentOutputBit
	}
	if stage&renderer.PipelineStageBottomOfPipe != 0 {
		flags |= vk.PipelineStageBottomOfPipeBit
	}
	return vk.PipelineStageFlags(flags)
}

func accessFlags(access renderer.Access) vk.AccessFlags {
	var flags vk.AccessFlagBits
	if access&renderer.AccessColorAttachmentWrite != 0 {
		flags |= vk.AccessColorAttachmentWriteBit
	}
	if access&renderer.AccessMemoryRead != 0 {
		flags |= vk.AccessMemoryReadBit
	}
	return vk.AccessFlags(flags)
}

func subpassDependency(d renderer.SubpassDependency) vk.SubpassDependency {
	dep := vk.SubpassDependency{
		SrcSubpass:    d.SrcSubpass,
		DstSubpass:    d.DstSubpass,
		SrcStageMask:  pipelineStageFlags(d.SrcStage),
		DstStageMask:  pipelineStageFlags(d.DstStage),
		SrcAccessMask: 0,
		DstAccessMask: accessFlags(d.DstAccess),
	}
	if d.ByRegion {
		dep.DependencyFlags = vk.DependencyFlags(vk.DependencyByRegionBit)
	}
	return dep
}

func RenderpassCreate(context *VulkanContext, format vk.Format, dependencies []vk.SubpassDependency) (*VulkanRenderpass, error) {
	colorAttachment := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,  // Do not expect any particular layout before render pass starts.
		FinalLayout:    vk.ImageLayoutPresentSrc, // Transitioned to after the render pass
	}

	colorAttachmentReference := []vk.AttachmentReference{{
		Attachment: 0, // Attachment description array index
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorAttachmentReference,
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var pRenderPass vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass); res != vk.Success {
		return nil, resultError("vkCreateRenderPass", res)
	}
	return &VulkanRenderpass{Handle: pRenderPass, Format: format}, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = vk.NullRenderPass
	}
}

func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, frameBuffer vk.Framebuffer, area vk.Rect2D, clear renderer.ClearColor) {
	clearValues := make([]vk.ClearValue, 1)
	clearValues[0].SetColor(clear[:])

	beginInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      vr.Handle,
		Framebuffer:     frameBuffer,
		RenderArea:      area,
		ClearValueCount: 1,
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}

func (vc *VulkanContext) CreateRenderPass(desc renderer.RenderPassDesc) (renderer.RenderPass, error) {
	dependencies := make([]vk.SubpassDependency, len(desc.Dependencies))
	for i, d := range desc.Dependencies {
		dependencies[i] = subpassDependency(d)
	}
	rp, err := RenderpassCreate(vc, vk.Format(desc.ColorFormat), dependencies)
	if err != nil {
		return 0, err
	}
	return renderer.RenderPass(vc.handles.renderPasses.Acquire(rp)), nil
}

func (vc *VulkanContext) DestroyRenderPass(r renderer.RenderPass) {
	rp, err := vc.handles.renderPasses.Release(uint64(r))
	if err != nil {
		core.LogWarn("destroy render pass: %s", err)
		return
	}
	rp.RenderpassDestroy(vc)
}

func (vc *VulkanContext) CmdBeginRenderPass(c renderer.CommandBuffer, r renderer.RenderPass, f renderer.Framebuffer, area renderer.Rect2D, clear renderer.ClearColor) {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		unresolved("CmdBeginRenderPass", "command buffer", uint64(c))
		return
	}
	rp, ok := vc.handles.renderPasses.Get(uint64(r))
	if !ok {
		unresolved("CmdBeginRenderPass", "render pass", uint64(r))
		return
	}
	fb, ok := vc.handles.framebuffers.Get(uint64(f))
	if !ok {
		unresolved("CmdBeginRenderPass", "framebuffer", uint64(f))
		return
	}
	rp.RenderpassBegin(cb, fb.Handle, rect(area), clear)
}

func (vc *VulkanContext) CmdEndRenderPass(c renderer.CommandBuffer) {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		unresolved("CmdEndRenderPass", "command buffer", uint64(c))
		return
	}
	RenderpassEnd(cb)
}
