package vulkan

import (
	"math"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/core"
	"github.com/spaghettifunk/inflight/engine/renderer"
)

type VulkanFence struct {
	Handle vk.Fence
	// Cached so a wait on a fence already seen signaled skips the driver.
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		return nil, resultError("vkCreateFence", res)
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != nil {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
	default:
		core.LogError("vk_fence_wait - %s", VulkanResultString(result))
	}
	return resultError("vkWaitForFences", result)
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if !vf.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		return resultError("vkResetFences", res)
	}
	vf.IsSignaled = false
	return nil
}

func fenceTimeout(d time.Duration) uint64 {
	if d == renderer.NoTimeout || d < 0 {
		return math.MaxUint64
	}
	return uint64(d.Nanoseconds())
}

func (vc *VulkanContext) CreateFence(signaled bool) (renderer.Fence, error) {
	f, err := NewFence(vc, signaled)
	if err != nil {
		return 0, err
	}
	return renderer.Fence(vc.handles.fences.Acquire(f)), nil
}

func (vc *VulkanContext) DestroyFence(f renderer.Fence) {
	fence, err := vc.handles.fences.Release(uint64(f))
	if err != nil {
		core.LogWarn("destroy fence: %s", err)
		return
	}
	fence.FenceDestroy(vc)
}

func (vc *VulkanContext) WaitForFence(f renderer.Fence, timeout time.Duration) error {
	fence, ok := vc.handles.fence(f)
	if !ok {
		return errUnknownHandle
	}
	return fence.FenceWait(vc, fenceTimeout(timeout))
}

func (vc *VulkanContext) ResetFence(f renderer.Fence) error {
	fence, ok := vc.handles.fence(f)
	if !ok {
		return errUnknownHandle
	}
	return fence.FenceReset(vc)
}

func (vc *VulkanContext) CreateSemaphore() (renderer.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(vc.Device.LogicalDevice, &semaphoreCreateInfo, vc.Allocator, &semaphore); res != vk.Success {
		return 0, resultError("vkCreateSemaphore", res)
	}
	return renderer.Semaphore(vc.handles.semaphores.Acquire(semaphore)), nil
}

func (vc *VulkanContext) DestroySemaphore(s renderer.Semaphore) {
	semaphore, err := vc.handles.semaphores.Release(uint64(s))
	if err != nil {
		core.LogWarn("destroy semaphore: %s", err)
		return
	}
	vk.DestroySemaphore(vc.Device.LogicalDevice, semaphore, vc.Allocator)
}
