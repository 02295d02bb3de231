package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/core"
	"github.com/spaghettifunk/inflight/engine/renderer"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	level := vk.CommandBufferLevelPrimary
	if !isPrimary {
		level = vk.CommandBufferLevelSecondary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	err := context.lockPool.SafeCall(CommandBufferManagement, func() error {
		return resultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles))
	})
	if err != nil {
		return nil, err
	}
	return &VulkanCommandBuffer{
		Handle: handles[0],
		State:  COMMAND_BUFFER_STATE_READY,
	}, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	_ = context.lockPool.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(v.Handle, 0); res != vk.Success {
		return resultError("vkResetCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

// AllocateAndBeginSingleUse allocates a primary command buffer and begins
// recording it for one submission.
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits, waits for the queue to go idle and
// frees the command buffer.
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queueFamily uint32, queue vk.Queue) error {
	defer v.Free(context, pool)

	if err := v.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	return context.lockPool.SafeQueueCall(queueFamily, func() error {
		if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			return resultError("vkQueueSubmit", res)
		}
		return resultError("vkQueueWaitIdle", vk.QueueWaitIdle(queue))
	})
}

func (vc *VulkanContext) createCommandPool(queueFamily uint32) (renderer.CommandPool, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(vc.Device.LogicalDevice, &poolCreateInfo, vc.Allocator, &pool); res != vk.Success {
		return 0, resultError("vkCreateCommandPool", res)
	}
	core.LogInfo("Graphics command pool created.")
	return renderer.CommandPool(vc.handles.commandPools.Acquire(pool)), nil
}

func (vc *VulkanContext) destroyCommandPool(p renderer.CommandPool) {
	pool, err := vc.handles.commandPools.Release(uint64(p))
	if err != nil {
		core.LogWarn("destroy command pool: %s", err)
		return
	}
	vk.DestroyCommandPool(vc.Device.LogicalDevice, pool, vc.Allocator)
}

func (vc *VulkanContext) AllocateCommandBuffer(p renderer.CommandPool) (renderer.CommandBuffer, error) {
	pool, ok := vc.handles.commandPools.Get(uint64(p))
	if !ok {
		return 0, fmt.Errorf("command pool %d: %w", p, errUnknownHandle)
	}
	cb, err := NewVulkanCommandBuffer(vc, pool, true)
	if err != nil {
		return 0, err
	}
	return renderer.CommandBuffer(vc.handles.commandBuffers.Acquire(cb)), nil
}

func (vc *VulkanContext) FreeCommandBuffer(p renderer.CommandPool, c renderer.CommandBuffer) {
	pool, ok := vc.handles.commandPools.Get(uint64(p))
	if !ok {
		core.LogWarn("free command buffer: unknown command pool %d", p)
		return
	}
	cb, err := vc.handles.commandBuffers.Release(uint64(c))
	if err != nil {
		core.LogWarn("free command buffer: %s", err)
		return
	}
	cb.Free(vc, pool)
}

func (vc *VulkanContext) ResetCommandBuffer(c renderer.CommandBuffer) error {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		return errUnknownHandle
	}
	return cb.Reset()
}

func (vc *VulkanContext) BeginCommandBuffer(c renderer.CommandBuffer) error {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		return errUnknownHandle
	}
	return cb.Begin(true, false, false)
}

func (vc *VulkanContext) EndCommandBuffer(c renderer.CommandBuffer) error {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		return errUnknownHandle
	}
	return cb.End()
}

// SubmitGraphics waits on info.Wait at the color attachment output stage and
// signals info.Signal and info.Fence once the commands retire.
func (vc *VulkanContext) SubmitGraphics(info renderer.SubmitInfo) error {
	cb, ok := vc.handles.commandBuffer(info.CommandBuffer)
	if !ok {
		return fmt.Errorf("command buffer %d: %w", info.CommandBuffer, errUnknownHandle)
	}
	fence, ok := vc.handles.fence(info.Fence)
	if !ok {
		return fmt.Errorf("fence %d: %w", info.Fence, errUnknownHandle)
	}

	waits, err := vc.handles.optionalSemaphore(info.Wait)
	if err != nil {
		return err
	}
	signals, err := vc.handles.optionalSemaphore(info.Signal)
	if err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	if len(waits) > 0 {
		submitInfo.WaitSemaphoreCount = uint32(len(waits))
		submitInfo.PWaitSemaphores = waits
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if len(signals) > 0 {
		submitInfo.SignalSemaphoreCount = uint32(len(signals))
		submitInfo.PSignalSemaphores = signals
	}

	err = vc.lockPool.SafeQueueCall(uint32(vc.Device.GraphicsQueueIndex), func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(vc.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle))
	})
	if err != nil {
		return err
	}
	fence.IsSignaled = false
	cb.UpdateSubmitted()
	return nil
}

func (vc *VulkanContext) CmdBindPipeline(c renderer.CommandBuffer, p renderer.Pipeline) {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		unresolved("CmdBindPipeline", "command buffer", uint64(c))
		return
	}
	pipeline, ok := vc.handles.pipelines.Get(uint64(p))
	if !ok {
		unresolved("CmdBindPipeline", "pipeline", uint64(p))
		return
	}
	pipeline.Bind(cb, vk.PipelineBindPointGraphics)
}

func (vc *VulkanContext) CmdSetViewport(c renderer.CommandBuffer, area renderer.Rect2D) {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		unresolved("CmdSetViewport", "command buffer", uint64(c))
		return
	}
	vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{viewport(area)})
}

func (vc *VulkanContext) CmdSetScissor(c renderer.CommandBuffer, area renderer.Rect2D) {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		unresolved("CmdSetScissor", "command buffer", uint64(c))
		return
	}
	vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{rect(area)})
}

func (vc *VulkanContext) CmdBindVertexBuffers(c renderer.CommandBuffer, buffers []renderer.Buffer, offsets []uint64) {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		unresolved("CmdBindVertexBuffers", "command buffer", uint64(c))
		return
	}
	if len(buffers) != len(offsets) {
		core.LogWarn("CmdBindVertexBuffers: %d buffers with %d offsets, command not recorded", len(buffers), len(offsets))
		return
	}
	vkBuffers := make([]vk.Buffer, 0, len(buffers))
	vkOffsets := make([]vk.DeviceSize, 0, len(offsets))
	for i, b := range buffers {
		buf, ok := vc.handles.buffer(b)
		if !ok {
			unresolved("CmdBindVertexBuffers", "buffer", uint64(b))
			return
		}
		vkBuffers = append(vkBuffers, buf)
		vkOffsets = append(vkOffsets, vk.DeviceSize(offsets[i]))
	}
	vk.CmdBindVertexBuffers(cb.Handle, 0, uint32(len(vkBuffers)), vkBuffers, vkOffsets)
}

func (vc *VulkanContext) CmdBindIndexBuffer(c renderer.CommandBuffer, b renderer.Buffer, offset uint64, indexType renderer.IndexType) {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		unresolved("CmdBindIndexBuffer", "command buffer", uint64(c))
		return
	}
	buf, ok := vc.handles.buffer(b)
	if !ok {
		unresolved("CmdBindIndexBuffer", "buffer", uint64(b))
		return
	}
	vkIndexType := vk.IndexTypeUint16
	if indexType == renderer.IndexTypeUint32 {
		vkIndexType = vk.IndexTypeUint32
	}
	vk.CmdBindIndexBuffer(cb.Handle, buf, vk.DeviceSize(offset), vkIndexType)
}

func (vc *VulkanContext) CmdBindDescriptorSets(c renderer.CommandBuffer, l renderer.PipelineLayout, sets []renderer.DescriptorSet) {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		unresolved("CmdBindDescriptorSets", "command buffer", uint64(c))
		return
	}
	layout, ok := vc.handles.pipelineLayouts.Get(uint64(l))
	if !ok {
		unresolved("CmdBindDescriptorSets", "pipeline layout", uint64(l))
		return
	}
	vkSets := make([]vk.DescriptorSet, 0, len(sets))
	for _, s := range sets {
		set, ok := vc.handles.descriptorSets.Get(uint64(s))
		if !ok {
			unresolved("CmdBindDescriptorSets", "descriptor set", uint64(s))
			return
		}
		vkSets = append(vkSets, set)
	}
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, layout, 0, uint32(len(vkSets)), vkSets, 0, nil)
}

func (vc *VulkanContext) CmdDrawIndexed(c renderer.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		unresolved("CmdDrawIndexed", "command buffer", uint64(c))
		return
	}
	vk.CmdDrawIndexed(cb.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (vc *VulkanContext) CmdDraw(c renderer.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb, ok := vc.handles.commandBuffer(c)
	if !ok {
		unresolved("CmdDraw", "command buffer", uint64(c))
		return
	}
	vk.CmdDraw(cb.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func viewport(area renderer.Rect2D) vk.Viewport {
	return vk.Viewport{
		X:        float32(area.X),
		Y:        float32(area.Y),
		Width:    float32(area.Width),
		Height:   float32(area.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
}

func rect(area renderer.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: area.X, Y: area.Y},
		Extent: vk.Extent2D{Width: area.Width, Height: area.Height},
	}
}
