package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/core"
	"github.com/spaghettifunk/inflight/engine/renderer"
)

// VulkanPipeline holds a graphics pipeline. Its layout is owned separately
// because several pipelines may share one.
type VulkanPipeline struct {
	Handle vk.Pipeline
}

type VulkanPipelineConfig struct {
	Renderpass *VulkanRenderpass
	Subpass    uint32
	// The stride of one vertex in the bound vertex buffer.
	Stride     uint32
	Attributes []vk.VertexInputAttributeDescription
	Layout     vk.PipelineLayout
	Stages     []vk.PipelineShaderStageCreateInfo
	Topology   vk.PrimitiveTopology
	// The initial viewport and scissor; both stay dynamic.
	Viewport    vk.Viewport
	Scissor     vk.Rect2D
	CullMode    vk.CullModeFlagBits
	IsWireframe bool
}

func NewGraphicsPipeline(context *VulkanContext, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{config.Viewport},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{config.Scissor},
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(config.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if config.IsWireframe {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    config.Stride,
		InputRate: vk.VertexInputRateVertex,
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(config.Attributes)),
		PVertexAttributeDescriptions:    config.Attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               config.Topology,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  nil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		PTessellationState:  nil,
		Layout:              config.Layout,
		RenderPass:          config.Renderpass.Handle,
		Subpass:             config.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := context.lockPool.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(
			context.Device.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pPipelines)
		return resultError("vkCreateGraphicsPipelines", result)
	}); err != nil {
		return nil, err
	}
	if pPipelines[0] == vk.NullPipeline {
		return nil, fmt.Errorf("vulkan pipeline handle is nil")
	}

	core.LogDebug("Graphics pipeline created!")
	return &VulkanPipeline{Handle: pPipelines[0]}, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	if pipeline.Handle == vk.NullPipeline {
		return
	}
	_ = context.lockPool.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = vk.NullPipeline
		return nil
	})
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer, bindPoint vk.PipelineBindPoint) {
	vk.CmdBindPipeline(commandBuffer.Handle, bindPoint, pipeline.Handle)
}

func vertexFormat(f renderer.VertexFormat) (vk.Format, error) {
	switch f {
	case renderer.VertexFormatFloat32x2:
		return vk.FormatR32g32Sfloat, nil
	case renderer.VertexFormatFloat32x3:
		return vk.FormatR32g32b32Sfloat, nil
	default:
		return vk.FormatUndefined, fmt.Errorf("unsupported vertex format %d", f)
	}
}

func primitiveTopology(t renderer.PrimitiveTopology) vk.PrimitiveTopology {
	if t == renderer.TopologyTriangleStrip {
		return vk.PrimitiveTopologyTriangleStrip
	}
	return vk.PrimitiveTopologyTriangleList
}

func (vc *VulkanContext) CreatePipelineLayout(setLayouts []renderer.DescriptorSetLayout) (renderer.PipelineLayout, error) {
	vkLayouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, l := range setLayouts {
		layout, ok := vc.handles.setLayouts.Get(uint64(l))
		if !ok {
			return 0, fmt.Errorf("descriptor set layout %d: %w", l, errUnknownHandle)
		}
		vkLayouts[i] = layout
	}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(vkLayouts)),
		PSetLayouts:    vkLayouts,
	}

	var layout vk.PipelineLayout
	if err := vc.lockPool.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(vc.Device.LogicalDevice, &pipelineLayoutCreateInfo, vc.Allocator, &layout))
	}); err != nil {
		return 0, err
	}
	return renderer.PipelineLayout(vc.handles.pipelineLayouts.Acquire(layout)), nil
}

func (vc *VulkanContext) DestroyPipelineLayout(l renderer.PipelineLayout) {
	layout, err := vc.handles.pipelineLayouts.Release(uint64(l))
	if err != nil {
		core.LogWarn("destroy pipeline layout: %s", err)
		return
	}
	_ = vc.lockPool.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipelineLayout(vc.Device.LogicalDevice, layout, vc.Allocator)
		return nil
	})
}

// CreateGraphicsPipeline builds the shader modules, the pipeline and then
// drops the modules again.
func (vc *VulkanContext) CreateGraphicsPipeline(desc renderer.GraphicsPipelineDesc) (renderer.Pipeline, error) {
	layout, ok := vc.handles.pipelineLayouts.Get(uint64(desc.Layout))
	if !ok {
		return 0, fmt.Errorf("pipeline layout %d: %w", desc.Layout, errUnknownHandle)
	}
	renderpass, ok := vc.handles.renderPasses.Get(uint64(desc.RenderPass))
	if !ok {
		return 0, fmt.Errorf("render pass %d: %w", desc.RenderPass, errUnknownHandle)
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(desc.Vertex.Attributes))
	for i, a := range desc.Vertex.Attributes {
		format, err := vertexFormat(a.Format)
		if err != nil {
			return 0, err
		}
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   format,
			Offset:   a.Offset,
		}
	}

	vertexStage, err := NewShaderStage(vc, desc.VertexShader, vk.ShaderStageVertexBit)
	if err != nil {
		return 0, fmt.Errorf("vertex shader: %w", err)
	}
	defer vertexStage.Destroy(vc)
	fragmentStage, err := NewShaderStage(vc, desc.FragmentShader, vk.ShaderStageFragmentBit)
	if err != nil {
		return 0, fmt.Errorf("fragment shader: %w", err)
	}
	defer fragmentStage.Destroy(vc)

	pipeline, err := NewGraphicsPipeline(vc, &VulkanPipelineConfig{
		Renderpass: renderpass,
		Subpass:    desc.Subpass,
		Stride:     desc.Vertex.Stride,
		Attributes: attributes,
		Layout:     layout,
		Stages: []vk.PipelineShaderStageCreateInfo{
			vertexStage.ShaderStageCreateInfo,
			fragmentStage.ShaderStageCreateInfo,
		},
		Topology: primitiveTopology(desc.Topology),
		Viewport: viewport(desc.Viewport),
		Scissor:  rect(desc.Viewport),
		CullMode: vk.CullModeNone,
	})
	if err != nil {
		return 0, err
	}
	return renderer.Pipeline(vc.handles.pipelines.Acquire(pipeline)), nil
}

func (vc *VulkanContext) DestroyPipeline(p renderer.Pipeline) {
	pipeline, err := vc.handles.pipelines.Release(uint64(p))
	if err != nil {
		core.LogWarn("destroy pipeline: %s", err)
		return
	}
	pipeline.Destroy(vc)
}
