package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/core"
	"github.com/spaghettifunk/inflight/engine/renderer"
)

// descriptorPool remembers the sets allocated from it; they are released
// together with the pool.
type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []uint64
}

func shaderStageFlags(stages renderer.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if stages&renderer.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if stages&renderer.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(flags)
}

func (vc *VulkanContext) CreateDescriptorSetLayout(bindings []renderer.UniformBinding) (renderer.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: b.Count,
			StageFlags:      shaderStageFlags(b.Stages),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}

	var layout vk.DescriptorSetLayout
	err := vc.lockPool.SafeCall(DescriptorManagement, func() error {
		return resultError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(vc.Device.LogicalDevice, &layoutInfo, vc.Allocator, &layout))
	})
	if err != nil {
		return 0, err
	}
	return renderer.DescriptorSetLayout(vc.handles.setLayouts.Acquire(layout)), nil
}

func (vc *VulkanContext) DestroyDescriptorSetLayout(l renderer.DescriptorSetLayout) {
	layout, err := vc.handles.setLayouts.Release(uint64(l))
	if err != nil {
		core.LogWarn("destroy descriptor set layout: %s", err)
		return
	}
	vk.DestroyDescriptorSetLayout(vc.Device.LogicalDevice, layout, vc.Allocator)
}

func (vc *VulkanContext) CreateDescriptorPool(maxSets, uniformDescriptors uint32) (renderer.DescriptorPool, error) {
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: uniformDescriptors,
		}},
	}

	var pool vk.DescriptorPool
	err := vc.lockPool.SafeCall(DescriptorManagement, func() error {
		return resultError("vkCreateDescriptorPool", vk.CreateDescriptorPool(vc.Device.LogicalDevice, &poolInfo, vc.Allocator, &pool))
	})
	if err != nil {
		return 0, err
	}
	return renderer.DescriptorPool(vc.handles.descriptorPools.Acquire(&descriptorPool{handle: pool})), nil
}

// DestroyDescriptorPool also frees every set allocated from the pool.
func (vc *VulkanContext) DestroyDescriptorPool(p renderer.DescriptorPool) {
	pool, err := vc.handles.descriptorPools.Release(uint64(p))
	if err != nil {
		core.LogWarn("destroy descriptor pool: %s", err)
		return
	}
	for _, id := range pool.sets {
		_, _ = vc.handles.descriptorSets.Release(id)
	}
	vk.DestroyDescriptorPool(vc.Device.LogicalDevice, pool.handle, vc.Allocator)
}

func (vc *VulkanContext) AllocateDescriptorSets(p renderer.DescriptorPool, layouts []renderer.DescriptorSetLayout) ([]renderer.DescriptorSet, error) {
	pool, ok := vc.handles.descriptorPools.Get(uint64(p))
	if !ok {
		return nil, fmt.Errorf("descriptor pool %d: %w", p, errUnknownHandle)
	}
	if len(layouts) == 0 {
		return nil, nil
	}
	vkLayouts := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		layout, ok := vc.handles.setLayouts.Get(uint64(l))
		if !ok {
			return nil, fmt.Errorf("descriptor set layout %d: %w", l, errUnknownHandle)
		}
		vkLayouts[i] = layout
	}

	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.handle,
		DescriptorSetCount: uint32(len(vkLayouts)),
		PSetLayouts:        vkLayouts,
	}
	vkSets := make([]vk.DescriptorSet, len(vkLayouts))
	err := vc.lockPool.SafeCall(DescriptorManagement, func() error {
		return resultError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(vc.Device.LogicalDevice, &allocateInfo, &vkSets[0]))
	})
	if err != nil {
		return nil, err
	}

	sets := make([]renderer.DescriptorSet, len(vkSets))
	for i, set := range vkSets {
		id := vc.handles.descriptorSets.Acquire(set)
		pool.sets = append(pool.sets, id)
		sets[i] = renderer.DescriptorSet(id)
	}
	return sets, nil
}

// WriteUniformDescriptor points binding of set at the whole of buf.
func (vc *VulkanContext) WriteUniformDescriptor(s renderer.DescriptorSet, binding uint32, b renderer.Buffer, size uint64) {
	set, ok := vc.handles.descriptorSets.Get(uint64(s))
	if !ok {
		core.LogWarn("write descriptor: unknown descriptor set %d", s)
		return
	}
	buffer, ok := vc.handles.buffer(b)
	if !ok {
		core.LogWarn("write descriptor: unknown buffer %d", b)
		return
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer,
			Offset: 0,
			Range:  vk.DeviceSize(size),
		}},
	}
	vk.UpdateDescriptorSets(vc.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
