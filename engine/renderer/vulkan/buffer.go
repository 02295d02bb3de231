package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/core"
	"github.com/spaghettifunk/inflight/engine/renderer"
)

func bufferUsageFlags(usage renderer.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&renderer.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if usage&renderer.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	if usage&renderer.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&renderer.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage&renderer.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

func memoryPropertyFlags(props renderer.MemoryProperty) uint32 {
	var flags vk.MemoryPropertyFlagBits
	if props&renderer.MemoryPropertyDeviceLocal != 0 {
		flags |= vk.MemoryPropertyDeviceLocalBit
	}
	if props&renderer.MemoryPropertyHostVisible != 0 {
		flags |= vk.MemoryPropertyHostVisibleBit
	}
	if props&renderer.MemoryPropertyHostCoherent != 0 {
		flags |= vk.MemoryPropertyHostCoherentBit
	}
	return uint32(flags)
}

func (vc *VulkanContext) CreateBufferWithMemory(size uint64, usage renderer.BufferUsage, props renderer.MemoryProperty) (renderer.Buffer, renderer.DeviceMemory, error) {
	device := vc.Device.LogicalDevice
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	var memory vk.DeviceMemory
	err := vc.lockPool.SafeCall(BufferManagement, func() error {
		if res := vk.CreateBuffer(device, &bufferInfo, vc.Allocator, &buffer); res != vk.Success {
			return resultError("vkCreateBuffer", res)
		}

		var requirements vk.MemoryRequirements
		vk.GetBufferMemoryRequirements(device, buffer, &requirements)
		requirements.Deref()

		memoryIndex := vc.FindMemoryIndex(requirements.MemoryTypeBits, memoryPropertyFlags(props))
		if memoryIndex < 0 {
			vk.DestroyBuffer(device, buffer, vc.Allocator)
			return fmt.Errorf("no memory type for buffer of %d bytes with properties %#x", size, props)
		}

		allocateInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  requirements.Size,
			MemoryTypeIndex: uint32(memoryIndex),
		}
		if res := vk.AllocateMemory(device, &allocateInfo, vc.Allocator, &memory); res != vk.Success {
			vk.DestroyBuffer(device, buffer, vc.Allocator)
			return resultError("vkAllocateMemory", res)
		}
		if res := vk.BindBufferMemory(device, buffer, memory, 0); res != vk.Success {
			vk.FreeMemory(device, memory, vc.Allocator)
			vk.DestroyBuffer(device, buffer, vc.Allocator)
			return resultError("vkBindBufferMemory", res)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return renderer.Buffer(vc.handles.buffers.Acquire(buffer)),
		renderer.DeviceMemory(vc.handles.memory.Acquire(memory)),
		nil
}

func (vc *VulkanContext) DestroyBufferWithMemory(b renderer.Buffer, m renderer.DeviceMemory) {
	buffer, bufErr := vc.handles.buffers.Release(uint64(b))
	memory, memErr := vc.handles.memory.Release(uint64(m))
	_ = vc.lockPool.SafeCall(BufferManagement, func() error {
		if bufErr == nil {
			vk.DestroyBuffer(vc.Device.LogicalDevice, buffer, vc.Allocator)
		}
		if memErr == nil {
			vk.FreeMemory(vc.Device.LogicalDevice, memory, vc.Allocator)
		}
		return nil
	})
	if bufErr != nil || memErr != nil {
		core.LogWarn("destroy buffer %d with memory %d: buffer: %v, memory: %v", b, m, bufErr, memErr)
	}
}

// MapMemory maps the first size bytes of m. The slice aliases device memory
// and is valid until UnmapMemory.
func (vc *VulkanContext) MapMemory(m renderer.DeviceMemory, size uint64) ([]byte, error) {
	memory, ok := vc.handles.memory.Get(uint64(m))
	if !ok {
		return nil, fmt.Errorf("device memory %d: %w", m, errUnknownHandle)
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(vc.Device.LogicalDevice, memory, 0, vk.DeviceSize(size), 0, &data); res != vk.Success {
		return nil, resultError("vkMapMemory", res)
	}
	return unsafe.Slice((*byte)(data), size), nil
}

func (vc *VulkanContext) UnmapMemory(m renderer.DeviceMemory) {
	if memory, ok := vc.handles.memory.Get(uint64(m)); ok {
		vk.UnmapMemory(vc.Device.LogicalDevice, memory)
	}
}

// CopyBuffer copies size bytes from the start of src to the start of dst and
// waits for the graphics queue to finish the copy.
func (vc *VulkanContext) CopyBuffer(p renderer.CommandPool, src, dst renderer.Buffer, size uint64) error {
	pool, ok := vc.handles.commandPools.Get(uint64(p))
	if !ok {
		return fmt.Errorf("command pool %d: %w", p, errUnknownHandle)
	}
	srcBuffer, ok := vc.handles.buffer(src)
	if !ok {
		return fmt.Errorf("buffer %d: %w", src, errUnknownHandle)
	}
	dstBuffer, ok := vc.handles.buffer(dst)
	if !ok {
		return fmt.Errorf("buffer %d: %w", dst, errUnknownHandle)
	}

	cb, err := AllocateAndBeginSingleUse(vc, pool)
	if err != nil {
		return err
	}
	vk.CmdCopyBuffer(cb.Handle, srcBuffer, dstBuffer, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}})
	return cb.EndSingleUse(vc, pool, uint32(vc.Device.GraphicsQueueIndex), vc.Device.GraphicsQueue)
}
