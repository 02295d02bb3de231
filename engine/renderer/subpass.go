package renderer

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/inflight/engine/core"
)

// ShaderBlobs are precompiled SPIR-V modules.
type ShaderBlobs struct {
	Vertex   []byte
	Fragment []byte
}

// SubpassConfig configures the single graphics subpass.
type SubpassConfig struct {
	Shaders    ShaderBlobs
	FrameCount int
	Clip       ClipConvention
	// Elapsed returns the time since the subpass was created. Defaults to a
	// wall clock started at construction.
	Elapsed  func() time.Duration
	Vertices []Vertex
	// With no indices the subpass draws a non-indexed triangle strip.
	Indices []uint16
}

type uniformSlot struct {
	buffer Buffer
	memory DeviceMemory
	mapped *MappedRegion
	set    DescriptorSet
}

// Subpass owns the graphics pipeline, its descriptor state and one uniform
// buffer per frame slot.
type Subpass struct {
	device Device

	descriptorSetLayout DescriptorSetLayout
	pipelineLayout      PipelineLayout
	pipeline            Pipeline

	combined       *CombinedBuffer
	descriptorPool DescriptorPool
	uniforms       []uniformSlot

	clip    ClipConvention
	elapsed func() time.Duration
}

func NewSubpass(device Device, pool CommandPool, renderArea Rect2D, renderPass RenderPass, index uint32, cfg SubpassConfig) (_ *Subpass, err error) {
	if cfg.FrameCount < 1 {
		return nil, &InitError{Stage: "subpass", Err: ErrNoFrames}
	}
	if cfg.Vertices == nil {
		cfg.Vertices = QuadVertices
		if cfg.Indices == nil {
			cfg.Indices = QuadIndices
		}
	}
	if cfg.Elapsed == nil {
		clock := core.NewClock()
		clock.Start()
		cfg.Elapsed = clock.Elapsed
	}

	s := &Subpass{
		device:  device,
		clip:    cfg.Clip,
		elapsed: cfg.Elapsed,
	}
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	s.descriptorSetLayout, err = device.CreateDescriptorSetLayout([]UniformBinding{
		{Binding: 0, Count: 1, Stages: ShaderStageVertex},
	})
	if err != nil {
		return nil, &InitError{Stage: "descriptor set layout", Err: err}
	}

	s.pipelineLayout, err = device.CreatePipelineLayout([]DescriptorSetLayout{s.descriptorSetLayout})
	if err != nil {
		return nil, &InitError{Stage: "pipeline layout", Err: err}
	}

	topology := TopologyTriangleList
	if len(cfg.Indices) == 0 {
		topology = TopologyTriangleStrip
	}
	s.pipeline, err = device.CreateGraphicsPipeline(GraphicsPipelineDesc{
		Layout:         s.pipelineLayout,
		RenderPass:     renderPass,
		Subpass:        index,
		VertexShader:   cfg.Shaders.Vertex,
		FragmentShader: cfg.Shaders.Fragment,
		Vertex:         VertexLayoutDesc,
		Topology:       topology,
		Viewport:       renderArea,
	})
	if err != nil {
		return nil, &InitError{Stage: "graphics pipeline", Err: err}
	}

	s.combined, err = NewCombinedBuffer(device, pool, cfg.Vertices, cfg.Indices)
	if err != nil {
		return nil, &InitError{Stage: "combined buffer", Err: err}
	}

	frames := uint32(cfg.FrameCount)
	s.descriptorPool, err = device.CreateDescriptorPool(frames, frames)
	if err != nil {
		return nil, &InitError{Stage: "descriptor pool", Err: err}
	}

	layouts := make([]DescriptorSetLayout, cfg.FrameCount)
	for i := range layouts {
		layouts[i] = s.descriptorSetLayout
	}
	sets, err := device.AllocateDescriptorSets(s.descriptorPool, layouts)
	if err != nil {
		return nil, &InitError{Stage: "descriptor sets", Err: err}
	}
	if len(sets) != cfg.FrameCount {
		return nil, &InitError{Stage: "descriptor sets", Err: fmt.Errorf("allocated %d sets, want %d", len(sets), cfg.FrameCount)}
	}

	s.uniforms = make([]uniformSlot, 0, cfg.FrameCount)
	for i := 0; i < cfg.FrameCount; i++ {
		buffer, memory, err := device.CreateBufferWithMemory(
			UniformBufferObjectSize,
			BufferUsageUniform,
			MemoryPropertyHostVisible|MemoryPropertyHostCoherent,
		)
		if err != nil {
			return nil, &InitError{Stage: fmt.Sprintf("uniform buffer %d", i), Err: err}
		}
		mapped, err := MapRegion(device, memory, UniformBufferObjectSize)
		if err != nil {
			device.DestroyBufferWithMemory(buffer, memory)
			return nil, &InitError{Stage: fmt.Sprintf("uniform buffer %d", i), Err: err}
		}
		device.WriteUniformDescriptor(sets[i], 0, buffer, UniformBufferObjectSize)
		s.uniforms = append(s.uniforms, uniformSlot{
			buffer: buffer,
			memory: memory,
			mapped: mapped,
			set:    sets[i],
		})
	}

	core.LogDebug("subpass %d created: %d uniform slots, topology %d", index, cfg.FrameCount, topology)
	return s, nil
}

// UpdateUniforms writes the transform block of frameIdx. Only that slot's
// buffer is touched; the caller has already waited on the slot's fence.
func (s *Subpass) UpdateUniforms(frameIdx int, width, height uint32, transform SurfaceTransform) error {
	if frameIdx < 0 || frameIdx >= len(s.uniforms) {
		return fmt.Errorf("uniform slot %d of %d: %w", frameIdx, len(s.uniforms), ErrInvalidFrameIndex)
	}
	ubo := ComputeUniforms(s.elapsed(), width, height, s.clip, transform)
	return s.uniforms[frameIdx].mapped.Write(0, ubo.Bytes())
}

func (s *Subpass) RecordCommands(cb CommandBuffer, frameIdx int, width, height uint32, transform SurfaceTransform) error {
	if frameIdx < 0 || frameIdx >= len(s.uniforms) {
		return fmt.Errorf("frame %d of %d: %w", frameIdx, len(s.uniforms), ErrInvalidFrameIndex)
	}

	s.device.CmdBindPipeline(cb, s.pipeline)

	area := Rect2D{Width: width, Height: height}
	s.device.CmdSetViewport(cb, area)
	s.device.CmdSetScissor(cb, area)

	s.device.CmdBindVertexBuffers(cb, []Buffer{s.combined.Buffer}, []uint64{s.combined.VertexOffset})
	if s.combined.Indexed() {
		s.device.CmdBindIndexBuffer(cb, s.combined.Buffer, s.combined.IndexOffset, IndexTypeUint16)
	}

	if err := s.UpdateUniforms(frameIdx, width, height, transform); err != nil {
		return err
	}

	s.device.CmdBindDescriptorSets(cb, s.pipelineLayout, []DescriptorSet{s.uniforms[frameIdx].set})

	if s.combined.Indexed() {
		s.device.CmdDrawIndexed(cb, s.combined.IndexCount, 1, 0, 0, 0)
	} else {
		s.device.CmdDraw(cb, s.combined.VertexCount, 1, 0, 0)
	}
	return nil
}

// Destroy releases everything after the device went idle, in reverse order of
// binding: descriptor pool, uniform buffers, combined buffer, pipeline,
// pipeline layout, descriptor set layout.
func (s *Subpass) Destroy() {
	if err := s.device.WaitIdle(); err != nil {
		core.LogError("subpass: wait idle before destroy failed: %s", err)
	}
	s.release()
}

func (s *Subpass) release() {
	if s.descriptorPool != 0 {
		s.device.DestroyDescriptorPool(s.descriptorPool)
		s.descriptorPool = 0
	}
	for _, u := range s.uniforms {
		u.mapped.Unmap()
		s.device.DestroyBufferWithMemory(u.buffer, u.memory)
	}
	s.uniforms = nil
	if s.combined != nil {
		s.combined.Destroy()
		s.combined = nil
	}
	if s.pipeline != 0 {
		s.device.DestroyPipeline(s.pipeline)
		s.pipeline = 0
	}
	if s.pipelineLayout != 0 {
		s.device.DestroyPipelineLayout(s.pipelineLayout)
		s.pipelineLayout = 0
	}
	if s.descriptorSetLayout != 0 {
		s.device.DestroyDescriptorSetLayout(s.descriptorSetLayout)
		s.descriptorSetLayout = 0
	}
}
