package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/core"
	"github.com/spaghettifunk/inflight/engine/renderer"
)

// VulkanContext owns the instance, the surface and the logical device. It
// implements renderer.Device; every handle it returns is an id into its
// handle table.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	// preferred present mode, fifo when the surface lacks it
	presentMode vk.PresentMode

	lockPool *VulkanLockPool
	handles  handleTable

	graphicsPool renderer.CommandPool
}

var _ renderer.Device = (*VulkanContext)(nil)

// GraphicsCommandPool is the pool every frame command buffer comes from.
func (vc *VulkanContext) GraphicsCommandPool() renderer.CommandPool {
	return vc.graphicsPool
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

func (vc *VulkanContext) WaitIdle() error {
	// Waiting on the device also waits on its queues, which must not be used
	// concurrently.
	return vc.lockPool.SafeQueueCall(uint32(vc.Device.GraphicsQueueIndex), func() error {
		return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(vc.Device.LogicalDevice))
	})
}
