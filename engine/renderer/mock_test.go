package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errInjected = errors.New("injected failure")

type drawCall struct {
	indexed       bool
	count         uint32
	instanceCount uint32
	first         uint32
	vertexOffset  int32
	firstInstance uint32
}

type mockBuffer struct {
	memory DeviceMemory
	size   uint64
}

type submission struct {
	frame CommandBuffer
	fence Fence
	// uniform memory bound by the submitted commands and its contents at
	// submit time
	uniform  DeviceMemory
	snapshot []byte
}

// mockDevice records every call and models GPU execution. A submission stays
// in flight until a wait on its fence (or WaitIdle) retires it, so tests see
// exactly when the CPU blocked.
type mockDevice struct {
	next uint64

	fences   map[Fence]bool
	buffers  map[Buffer]mockBuffer
	memory   map[DeviceMemory][]byte
	mapped   map[DeviceMemory]bool
	sets     map[DescriptorSet]Buffer
	boundSet map[CommandBuffer]DescriptorSet
	live     map[string]int

	// retire submissions as soon as they are made
	autoRetire bool

	pending       []submission
	maxInFlight   int
	blockingWaits int
	waitIdles     int
	violations    []string

	log        []string
	draws      []drawCall
	viewports  []Rect2D
	passAreas  []Rect2D
	submits    []SubmitInfo
	pipelines  []GraphicsPipelineDesc
	copies     int
	recordings int

	// fail makes the named method return errInjected
	fail map[string]error
}

func newMockDevice() *mockDevice {
	return &mockDevice{
		fences:   make(map[Fence]bool),
		buffers:  make(map[Buffer]mockBuffer),
		memory:   make(map[DeviceMemory][]byte),
		mapped:   make(map[DeviceMemory]bool),
		sets:     make(map[DescriptorSet]Buffer),
		boundSet: make(map[CommandBuffer]DescriptorSet),
		live:     make(map[string]int),
		fail:     make(map[string]error),
	}
}

func (d *mockDevice) handle(kind string) uint64 {
	d.next++
	d.live[kind]++
	return d.next
}

func (d *mockDevice) release(kind string) {
	d.live[kind]--
}

func (d *mockDevice) record(format string, args ...interface{}) {
	d.log = append(d.log, fmt.Sprintf(format, args...))
}

func (d *mockDevice) failure(op string) error {
	if err, ok := d.fail[op]; ok {
		return err
	}
	return nil
}

// indexOf returns the position of the first log entry with the given prefix
// at or after from, or -1.
func (d *mockDevice) indexOf(prefix string, from int) int {
	for i := from; i < len(d.log); i++ {
		if len(d.log[i]) >= len(prefix) && d.log[i][:len(prefix)] == prefix {
			return i
		}
	}
	return -1
}

func (d *mockDevice) count(prefix string) int {
	n := 0
	for i := 0; i >= 0; {
		i = d.indexOf(prefix, i)
		if i < 0 {
			break
		}
		n++
		i++
	}
	return n
}

func (d *mockDevice) resetLog() {
	d.log = nil
	d.draws = nil
	d.viewports = nil
	d.passAreas = nil
	d.submits = nil
}

func (d *mockDevice) assertNoLeaks(t *testing.T) {
	t.Helper()
	for kind, n := range d.live {
		if n != 0 {
			t.Errorf("%d %s(s) leaked", n, kind)
		}
	}
	for mem, m := range d.mapped {
		if m {
			t.Errorf("memory %d still mapped", mem)
		}
	}
}

// retireThrough completes every submission up to and including the one that
// signals f. Work on the queue completes in submission order.
func (d *mockDevice) retireThrough(f Fence) bool {
	for i, s := range d.pending {
		if s.fence != f {
			continue
		}
		for _, done := range d.pending[:i+1] {
			d.retire(done)
		}
		d.pending = d.pending[i+1:]
		return true
	}
	return false
}

func (d *mockDevice) retireAll() {
	for _, s := range d.pending {
		d.retire(s)
	}
	d.pending = nil
}

func (d *mockDevice) retire(s submission) {
	if s.uniform != 0 {
		if !bytes.Equal(d.memory[s.uniform], s.snapshot) {
			d.violations = append(d.violations, fmt.Sprintf("uniform memory %d written while command buffer %d was executing", s.uniform, s.frame))
		}
	}
	d.fences[s.fence] = true
}

func (d *mockDevice) AllocateCommandBuffer(pool CommandPool) (CommandBuffer, error) {
	if err := d.failure("AllocateCommandBuffer"); err != nil {
		return 0, err
	}
	return CommandBuffer(d.handle("command buffer")), nil
}

func (d *mockDevice) FreeCommandBuffer(pool CommandPool, cb CommandBuffer) {
	d.release("command buffer")
}

func (d *mockDevice) ResetCommandBuffer(cb CommandBuffer) error {
	d.record("ResetCommandBuffer %d", cb)
	delete(d.boundSet, cb)
	return d.failure("ResetCommandBuffer")
}

func (d *mockDevice) BeginCommandBuffer(cb CommandBuffer) error {
	d.record("BeginCommandBuffer %d", cb)
	d.recordings++
	return d.failure("BeginCommandBuffer")
}

func (d *mockDevice) EndCommandBuffer(cb CommandBuffer) error {
	d.record("EndCommandBuffer %d", cb)
	return d.failure("EndCommandBuffer")
}

func (d *mockDevice) CreateFence(signaled bool) (Fence, error) {
	if err := d.failure("CreateFence"); err != nil {
		return 0, err
	}
	f := Fence(d.handle("fence"))
	d.fences[f] = signaled
	return f, nil
}

func (d *mockDevice) DestroyFence(f Fence) {
	delete(d.fences, f)
	d.release("fence")
}

func (d *mockDevice) CreateSemaphore() (Semaphore, error) {
	if err := d.failure("CreateSemaphore"); err != nil {
		return 0, err
	}
	return Semaphore(d.handle("semaphore")), nil
}

func (d *mockDevice) DestroySemaphore(s Semaphore) {
	d.release("semaphore")
}

func (d *mockDevice) WaitForFence(f Fence, timeout time.Duration) error {
	d.record("WaitForFence %d", f)
	if err := d.failure("WaitForFence"); err != nil {
		return err
	}
	signaled, ok := d.fences[f]
	if !ok {
		return fmt.Errorf("unknown fence %d", f)
	}
	if signaled {
		return nil
	}
	if d.retireThrough(f) {
		d.blockingWaits++
		return nil
	}
	// unsignaled with nothing queued to signal it: a real wait never returns
	return ErrFenceTimeout
}

func (d *mockDevice) ResetFence(f Fence) error {
	d.record("ResetFence %d", f)
	if err := d.failure("ResetFence"); err != nil {
		return err
	}
	d.fences[f] = false
	return nil
}

func (d *mockDevice) SubmitGraphics(info SubmitInfo) error {
	d.record("SubmitGraphics %d", info.CommandBuffer)
	if err := d.failure("SubmitGraphics"); err != nil {
		return err
	}
	d.submits = append(d.submits, info)
	s := submission{frame: info.CommandBuffer, fence: info.Fence}
	if set, ok := d.boundSet[info.CommandBuffer]; ok {
		s.uniform = d.buffers[d.sets[set]].memory
		s.snapshot = append([]byte(nil), d.memory[s.uniform]...)
	}
	d.pending = append(d.pending, s)
	if len(d.pending) > d.maxInFlight {
		d.maxInFlight = len(d.pending)
	}
	if d.autoRetire {
		d.retireAll()
	}
	return nil
}

func (d *mockDevice) WaitIdle() error {
	d.record("WaitIdle")
	d.waitIdles++
	d.retireAll()
	return d.failure("WaitIdle")
}

func (d *mockDevice) CreateBufferWithMemory(size uint64, usage BufferUsage, props MemoryProperty) (Buffer, DeviceMemory, error) {
	if err := d.failure("CreateBufferWithMemory"); err != nil {
		return 0, 0, err
	}
	buf := Buffer(d.handle("buffer"))
	mem := DeviceMemory(d.next + 1000000)
	d.memory[mem] = make([]byte, size)
	d.buffers[buf] = mockBuffer{memory: mem, size: size}
	d.record("CreateBufferWithMemory %d", size)
	return buf, mem, nil
}

func (d *mockDevice) DestroyBufferWithMemory(buf Buffer, mem DeviceMemory) {
	d.record("DestroyBufferWithMemory %d", buf)
	delete(d.buffers, buf)
	d.release("buffer")
}

func (d *mockDevice) MapMemory(mem DeviceMemory, size uint64) ([]byte, error) {
	if err := d.failure("MapMemory"); err != nil {
		return nil, err
	}
	data, ok := d.memory[mem]
	if !ok {
		return nil, fmt.Errorf("unknown memory %d", mem)
	}
	d.mapped[mem] = true
	if size > uint64(len(data)) {
		return data, nil
	}
	return data[:size], nil
}

func (d *mockDevice) UnmapMemory(mem DeviceMemory) {
	d.mapped[mem] = false
}

func (d *mockDevice) CopyBuffer(pool CommandPool, src, dst Buffer, size uint64) error {
	if err := d.failure("CopyBuffer"); err != nil {
		return err
	}
	d.copies++
	from := d.memory[d.buffers[src].memory]
	to := d.memory[d.buffers[dst].memory]
	copy(to[:size], from[:size])
	return nil
}

func (d *mockDevice) CreateDescriptorSetLayout(bindings []UniformBinding) (DescriptorSetLayout, error) {
	if err := d.failure("CreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	return DescriptorSetLayout(d.handle("descriptor set layout")), nil
}

func (d *mockDevice) DestroyDescriptorSetLayout(l DescriptorSetLayout) {
	d.release("descriptor set layout")
}

func (d *mockDevice) CreateDescriptorPool(maxSets, uniformDescriptors uint32) (DescriptorPool, error) {
	if err := d.failure("CreateDescriptorPool"); err != nil {
		return 0, err
	}
	return DescriptorPool(d.handle("descriptor pool")), nil
}

func (d *mockDevice) DestroyDescriptorPool(p DescriptorPool) {
	d.release("descriptor pool")
}

func (d *mockDevice) AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error) {
	if err := d.failure("AllocateDescriptorSets"); err != nil {
		return nil, err
	}
	sets := make([]DescriptorSet, len(layouts))
	for i := range sets {
		d.next++
		sets[i] = DescriptorSet(d.next)
	}
	return sets, nil
}

func (d *mockDevice) WriteUniformDescriptor(set DescriptorSet, binding uint32, buf Buffer, size uint64) {
	d.sets[set] = buf
}

func (d *mockDevice) CreatePipelineLayout(setLayouts []DescriptorSetLayout) (PipelineLayout, error) {
	if err := d.failure("CreatePipelineLayout"); err != nil {
		return 0, err
	}
	return PipelineLayout(d.handle("pipeline layout")), nil
}

func (d *mockDevice) DestroyPipelineLayout(l PipelineLayout) {
	d.release("pipeline layout")
}

func (d *mockDevice) CreateGraphicsPipeline(desc GraphicsPipelineDesc) (Pipeline, error) {
	if err := d.failure("CreateGraphicsPipeline"); err != nil {
		return 0, err
	}
	d.pipelines = append(d.pipelines, desc)
	return Pipeline(d.handle("pipeline")), nil
}

func (d *mockDevice) DestroyPipeline(p Pipeline) {
	d.release("pipeline")
}

func (d *mockDevice) CreateRenderPass(desc RenderPassDesc) (RenderPass, error) {
	if err := d.failure("CreateRenderPass"); err != nil {
		return 0, err
	}
	return RenderPass(d.handle("render pass")), nil
}

func (d *mockDevice) DestroyRenderPass(rp RenderPass) {
	d.record("DestroyRenderPass %d", rp)
	d.release("render pass")
}

func (d *mockDevice) DestroyFramebuffer(fb Framebuffer) {
	d.record("DestroyFramebuffer %d", fb)
	d.release("framebuffer")
}

func (d *mockDevice) CmdBeginRenderPass(cb CommandBuffer, rp RenderPass, fb Framebuffer, area Rect2D, clear ClearColor) {
	d.record("CmdBeginRenderPass %d", fb)
	d.passAreas = append(d.passAreas, area)
}

func (d *mockDevice) CmdEndRenderPass(cb CommandBuffer) {
	d.record("CmdEndRenderPass")
}

func (d *mockDevice) CmdBindPipeline(cb CommandBuffer, p Pipeline) {
	d.record("CmdBindPipeline %d", p)
}

func (d *mockDevice) CmdSetViewport(cb CommandBuffer, area Rect2D) {
	d.record("CmdSetViewport")
	d.viewports = append(d.viewports, area)
}

func (d *mockDevice) CmdSetScissor(cb CommandBuffer, area Rect2D) {
	d.record("CmdSetScissor")
}

func (d *mockDevice) CmdBindVertexBuffers(cb CommandBuffer, buffers []Buffer, offsets []uint64) {
	d.record("CmdBindVertexBuffers %v", offsets)
}

func (d *mockDevice) CmdBindIndexBuffer(cb CommandBuffer, buf Buffer, offset uint64, indexType IndexType) {
	d.record("CmdBindIndexBuffer %d", offset)
}

func (d *mockDevice) CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, sets []DescriptorSet) {
	d.record("CmdBindDescriptorSets")
	if len(sets) > 0 {
		d.boundSet[cb] = sets[0]
	}
}

func (d *mockDevice) CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.record("CmdDrawIndexed")
	d.draws = append(d.draws, drawCall{
		indexed:       true,
		count:         indexCount,
		instanceCount: instanceCount,
		first:         firstIndex,
		vertexOffset:  vertexOffset,
		firstInstance: firstInstance,
	})
}

func (d *mockDevice) CmdDraw(cb CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.record("CmdDraw")
	d.draws = append(d.draws, drawCall{
		count:         vertexCount,
		instanceCount: instanceCount,
		first:         firstVertex,
		firstInstance: firstInstance,
	})
}

// mockSwapchain hands out images round-robin.
type mockSwapchain struct {
	device    *mockDevice
	extent    Extent2D
	images    int
	transform SurfaceTransform
	old       Swapchain

	next      uint32
	acquired  []uint32
	presented []uint32
	destroyed bool

	acquireSuboptimal bool
	acquireErr        error
	presentSuboptimal bool
	presentErr        error
}

func newMockSwapchain(d *mockDevice, width, height uint32, images int) *mockSwapchain {
	d.live["swapchain"]++
	return &mockSwapchain{
		device: d,
		extent: Extent2D{Width: width, Height: height},
		images: images,
	}
}

func (s *mockSwapchain) ImageCount() int                { return s.images }
func (s *mockSwapchain) Extent() Extent2D               { return s.extent }
func (s *mockSwapchain) Format() Format                 { return 44 }
func (s *mockSwapchain) PreTransform() SurfaceTransform { return s.transform }

func (s *mockSwapchain) AcquireNextImage(signal Semaphore) (uint32, bool, error) {
	s.device.record("AcquireNextImage %d", signal)
	if s.acquireErr != nil {
		return 0, false, s.acquireErr
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(s.images)
	s.acquired = append(s.acquired, idx)
	return idx, s.acquireSuboptimal, nil
}

func (s *mockSwapchain) Present(index uint32, wait Semaphore) (bool, error) {
	s.device.record("Present %d", index)
	if s.presentErr != nil {
		return false, s.presentErr
	}
	s.presented = append(s.presented, index)
	return s.presentSuboptimal, nil
}

func (s *mockSwapchain) CreateFramebuffers(rp RenderPass) ([]Framebuffer, error) {
	if err := s.device.failure("CreateFramebuffers"); err != nil {
		return nil, err
	}
	fbs := make([]Framebuffer, s.images)
	for i := range fbs {
		fbs[i] = Framebuffer(s.device.handle("framebuffer"))
	}
	return fbs, nil
}

func (s *mockSwapchain) Destroy() {
	s.device.record("DestroySwapchain %dx%d", s.extent.Width, s.extent.Height)
	if !s.destroyed {
		s.destroyed = true
		s.device.live["swapchain"]--
	}
}

// fixedClock returns a constant elapsed time so uniform contents are
// predictable.
func fixedClock(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

// tickingClock advances by step on every call, so every uniform write differs
// from the previous one.
func tickingClock(step time.Duration) func() time.Duration {
	var now time.Duration
	return func() time.Duration {
		now += step
		return now
	}
}
