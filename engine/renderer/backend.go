package renderer

import (
	"math"
	"time"
)

// Opaque handles handed out by a Device. The zero value is the null handle.
type (
	CommandPool         uint64
	CommandBuffer       uint64
	Fence               uint64
	Semaphore           uint64
	Buffer              uint64
	DeviceMemory        uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	PipelineLayout      uint64
	Pipeline            uint64
	RenderPass          uint64
	Framebuffer         uint64
)

// NoTimeout makes WaitForFence block until the fence is signaled.
const NoTimeout time.Duration = math.MaxInt64

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageIndex
	BufferUsageVertex
)

type MemoryProperty uint32

const (
	MemoryPropertyDeviceLocal MemoryProperty = 1 << iota
	MemoryPropertyHostVisible
	MemoryPropertyHostCoherent
)

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

type IndexType uint8

const (
	IndexTypeUint16 IndexType = iota
	IndexTypeUint32
)

type PrimitiveTopology uint8

const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyTriangleStrip
)

type VertexFormat uint8

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
)

// Format is a backend defined surface/attachment format value.
type Format uint32

// SurfaceTransform mirrors the presentation engine's pre-transform.
type SurfaceTransform uint8

const (
	SurfaceTransformIdentity SurfaceTransform = iota
	SurfaceTransformRotate90
	SurfaceTransformRotate180
	SurfaceTransformRotate270
)

type PipelineStage uint32

const (
	PipelineStageColorAttachmentOutput PipelineStage = 1 << iota
	PipelineStageBottomOfPipe
)

type Access uint32

const (
	AccessColorAttachmentWrite Access = 1 << iota
	AccessMemoryRead
)

// SubpassExternal refers to work outside of the render pass in a dependency.
const SubpassExternal = ^uint32(0)

type Extent2D struct {
	Width  uint32
	Height uint32
}

type Rect2D struct {
	X, Y   int32
	Width  uint32
	Height uint32
}

func (r Rect2D) Extent() Extent2D {
	return Extent2D{Width: r.Width, Height: r.Height}
}

type ClearColor [4]float32

type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type UniformBinding struct {
	Binding uint32
	Count   uint32
	Stages  ShaderStage
}

type SubpassDependency struct {
	SrcSubpass uint32
	DstSubpass uint32
	SrcStage   PipelineStage
	DstStage   PipelineStage
	DstAccess  Access
	ByRegion   bool
}

type RenderPassDesc struct {
	ColorFormat  Format
	Dependencies []SubpassDependency
}

type GraphicsPipelineDesc struct {
	Layout         PipelineLayout
	RenderPass     RenderPass
	Subpass        uint32
	VertexShader   []byte
	FragmentShader []byte
	Vertex         VertexLayout
	Topology       PrimitiveTopology
	// Initial viewport; the pipeline keeps viewport and scissor dynamic.
	Viewport Rect2D
}

// SubmitInfo describes one graphics queue submission. Wait is waited on at the
// color attachment output stage, Signal and Fence are signaled on completion.
type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	Signal        Semaphore
	Fence         Fence
}

// Device is the GPU capability surface the frame pipeline drives. A Device is
// shared by every component of a renderer and must outlive all of them.
type Device interface {
	AllocateCommandBuffer(pool CommandPool) (CommandBuffer, error)
	FreeCommandBuffer(pool CommandPool, cb CommandBuffer)
	ResetCommandBuffer(cb CommandBuffer) error
	BeginCommandBuffer(cb CommandBuffer) error
	EndCommandBuffer(cb CommandBuffer) error

	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	WaitForFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error

	SubmitGraphics(info SubmitInfo) error
	WaitIdle() error

	CreateBufferWithMemory(size uint64, usage BufferUsage, props MemoryProperty) (Buffer, DeviceMemory, error)
	DestroyBufferWithMemory(buf Buffer, mem DeviceMemory)
	MapMemory(mem DeviceMemory, size uint64) ([]byte, error)
	UnmapMemory(mem DeviceMemory)
	// CopyBuffer records, submits and waits for a single-use copy.
	CopyBuffer(pool CommandPool, src, dst Buffer, size uint64) error

	CreateDescriptorSetLayout(bindings []UniformBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreateDescriptorPool(maxSets, uniformDescriptors uint32) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	WriteUniformDescriptor(set DescriptorSet, binding uint32, buf Buffer, size uint64)

	CreatePipelineLayout(setLayouts []DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)
	CreateGraphicsPipeline(desc GraphicsPipelineDesc) (Pipeline, error)
	DestroyPipeline(p Pipeline)
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	DestroyFramebuffer(fb Framebuffer)

	CmdBeginRenderPass(cb CommandBuffer, rp RenderPass, fb Framebuffer, area Rect2D, clear ClearColor)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, p Pipeline)
	CmdSetViewport(cb CommandBuffer, area Rect2D)
	CmdSetScissor(cb CommandBuffer, area Rect2D)
	CmdBindVertexBuffers(cb CommandBuffer, buffers []Buffer, offsets []uint64)
	CmdBindIndexBuffer(cb CommandBuffer, buf Buffer, offset uint64, indexType IndexType)
	CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, sets []DescriptorSet)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdDraw(cb CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
}

// Swapchain is the live presentation contract. It is immutable once built:
// any extent or format change means building a new one.
type Swapchain interface {
	ImageCount() int
	Extent() Extent2D
	Format() Format
	PreTransform() SurfaceTransform
	// AcquireNextImage signals signal once the returned image is available.
	// An out of date swapchain is reported as an error wrapping ErrOutOfDate.
	AcquireNextImage(signal Semaphore) (index uint32, suboptimal bool, err error)
	// Present queues the image for display once wait is signaled.
	Present(index uint32, wait Semaphore) (suboptimal bool, err error)
	// CreateFramebuffers builds one framebuffer per image, in image order.
	// The caller owns the result and destroys it through the Device.
	CreateFramebuffers(rp RenderPass) ([]Framebuffer, error)
	Destroy()
}

// SwapchainFactory builds a swapchain at the given size. old, when not nil, is
// the swapchain being replaced and may be used as a resource sharing hint.
type SwapchainFactory func(width, height uint32, old Swapchain) (Swapchain, error)
