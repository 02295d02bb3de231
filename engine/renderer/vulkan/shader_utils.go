package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"
)

// VulkanShaderStage is one compiled shader module and the pipeline stage
// info that references it.
type VulkanShaderStage struct {
	CreateInfo            vk.ShaderModuleCreateInfo
	Handle                vk.ShaderModule
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// shaderCode reinterprets a SPIR-V blob as the words Vulkan consumes.
func shaderCode(blob []byte) ([]uint32, error) {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil, fmt.Errorf("shader code of %d bytes is not a whole number of words", len(blob))
	}
	code := make([]uint32, len(blob)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(blob[i*4:])
	}
	return code, nil
}

func NewShaderStage(context *VulkanContext, blob []byte, stage vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	code, err := shaderCode(blob)
	if err != nil {
		return nil, err
	}

	s := &VulkanShaderStage{
		CreateInfo: vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			CodeSize: uint64(len(blob)),
			PCode:    code,
		},
	}
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &s.CreateInfo, context.Allocator, &s.Handle); res != vk.Success {
		return nil, resultError("vkCreateShaderModule", res)
	}

	s.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: s.Handle,
		PName:  VulkanSafeString("main"),
	}
	return s, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = vk.NullShaderModule
	}
}
