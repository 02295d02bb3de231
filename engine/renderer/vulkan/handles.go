package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/core"
	"github.com/spaghettifunk/inflight/engine/renderer"
)

// handleTable maps the opaque renderer handles to the Vulkan objects behind
// them. Ids are never 0, so the zero renderer handle stays the null handle.
type handleTable struct {
	commandPools    *core.Identifiers[vk.CommandPool]
	commandBuffers  *core.Identifiers[*VulkanCommandBuffer]
	fences          *core.Identifiers[*VulkanFence]
	semaphores      *core.Identifiers[vk.Semaphore]
	buffers         *core.Identifiers[vk.Buffer]
	memory          *core.Identifiers[vk.DeviceMemory]
	setLayouts      *core.Identifiers[vk.DescriptorSetLayout]
	descriptorPools *core.Identifiers[*descriptorPool]
	descriptorSets  *core.Identifiers[vk.DescriptorSet]
	pipelineLayouts *core.Identifiers[vk.PipelineLayout]
	pipelines       *core.Identifiers[*VulkanPipeline]
	renderPasses    *core.Identifiers[*VulkanRenderpass]
	framebuffers    *core.Identifiers[*VulkanFramebuffer]
}

func newHandleTable() handleTable {
	return handleTable{
		commandPools:    core.NewIdentifiers[vk.CommandPool](),
		commandBuffers:  core.NewIdentifiers[*VulkanCommandBuffer](),
		fences:          core.NewIdentifiers[*VulkanFence](),
		semaphores:      core.NewIdentifiers[vk.Semaphore](),
		buffers:         core.NewIdentifiers[vk.Buffer](),
		memory:          core.NewIdentifiers[vk.DeviceMemory](),
		setLayouts:      core.NewIdentifiers[vk.DescriptorSetLayout](),
		descriptorPools: core.NewIdentifiers[*descriptorPool](),
		descriptorSets:  core.NewIdentifiers[vk.DescriptorSet](),
		pipelineLayouts: core.NewIdentifiers[vk.PipelineLayout](),
		pipelines:       core.NewIdentifiers[*VulkanPipeline](),
		renderPasses:    core.NewIdentifiers[*VulkanRenderpass](),
		framebuffers:    core.NewIdentifiers[*VulkanFramebuffer](),
	}
}

// live counts objects still registered, per kind. Used to report leaks on
// shutdown.
func (h handleTable) live() map[string]int {
	return map[string]int{
		"command pool":          h.commandPools.Len(),
		"command buffer":        h.commandBuffers.Len(),
		"fence":                 h.fences.Len(),
		"semaphore":             h.semaphores.Len(),
		"buffer":                h.buffers.Len(),
		"device memory":         h.memory.Len(),
		"descriptor set layout": h.setLayouts.Len(),
		"descriptor pool":       h.descriptorPools.Len(),
		"pipeline layout":       h.pipelineLayouts.Len(),
		"pipeline":              h.pipelines.Len(),
		"render pass":           h.renderPasses.Len(),
		"framebuffer":           h.framebuffers.Len(),
	}
}

func (h handleTable) commandBuffer(cb renderer.CommandBuffer) (*VulkanCommandBuffer, bool) {
	return h.commandBuffers.Get(uint64(cb))
}

func (h handleTable) fence(f renderer.Fence) (*VulkanFence, bool) {
	return h.fences.Get(uint64(f))
}

func (h handleTable) semaphore(s renderer.Semaphore) (vk.Semaphore, bool) {
	return h.semaphores.Get(uint64(s))
}

func (h handleTable) buffer(b renderer.Buffer) (vk.Buffer, bool) {
	return h.buffers.Get(uint64(b))
}

// optionalSemaphore resolves an optional semaphore. The zero handle means none;
// any other handle must be registered.
func (h handleTable) optionalSemaphore(s renderer.Semaphore) ([]vk.Semaphore, error) {
	if s == 0 {
		return nil, nil
	}
	sem, ok := h.semaphore(s)
	if !ok {
		return nil, fmt.Errorf("semaphore %d: %w", s, errUnknownHandle)
	}
	return []vk.Semaphore{sem}, nil
}

// unresolved reports a recording call dropped because a handle was unknown.
func unresolved(op, kind string, id uint64) {
	core.LogWarn("%s: unknown %s %d, command not recorded", op, kind, id)
}
