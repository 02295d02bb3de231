package renderer

import (
	"fmt"

	"github.com/spaghettifunk/inflight/engine/core"
)

// MaxFramesInFlight is the default number of frame slots.
const MaxFramesInFlight = 2

// FrameSlot is one reusable recording context. InFlight is signaled once the
// GPU retired the last submission made from this slot.
type FrameSlot struct {
	Index          int
	ImageAvailable Semaphore
	InFlight       Fence
	CommandBuffer  CommandBuffer
}

// ImageSync is the per swapchain image state. RenderFinished is keyed by image,
// not by slot, because the image index and the slot index cycle independently.
type ImageSync struct {
	RenderFinished Semaphore
}

type FrameManager struct {
	device Device
	pool   CommandPool
	frames []*FrameSlot
	images []*ImageSync
	// number of slots handed out so far
	submitted uint64
}

func NewFrameManager(device Device, pool CommandPool, frameCount, imageCount int) (*FrameManager, error) {
	if frameCount < 1 {
		return nil, ErrNoFrames
	}
	if imageCount < 0 {
		imageCount = 0
	}
	fm := &FrameManager{
		device: device,
		pool:   pool,
		frames: make([]*FrameSlot, 0, frameCount),
		images: make([]*ImageSync, imageCount),
	}

	for i := 0; i < frameCount; i++ {
		slot, err := fm.createSlot(i)
		if err != nil {
			fm.release()
			return nil, err
		}
		fm.frames = append(fm.frames, slot)
	}

	core.LogDebug("frame manager created with %d frame slots for %d swapchain images", frameCount, imageCount)
	return fm, nil
}

func (fm *FrameManager) createSlot(index int) (*FrameSlot, error) {
	imageAvailable, err := fm.device.CreateSemaphore()
	if err != nil {
		return nil, gpuError(fmt.Sprintf("create image available semaphore %d", index), err)
	}

	// Created signaled so the first wait on every slot returns immediately.
	inFlight, err := fm.device.CreateFence(true)
	if err != nil {
		fm.device.DestroySemaphore(imageAvailable)
		return nil, gpuError(fmt.Sprintf("create in flight fence %d", index), err)
	}

	cb, err := fm.device.AllocateCommandBuffer(fm.pool)
	if err != nil {
		fm.device.DestroyFence(inFlight)
		fm.device.DestroySemaphore(imageAvailable)
		return nil, gpuError(fmt.Sprintf("allocate command buffer %d", index), err)
	}

	return &FrameSlot{
		Index:          index,
		ImageAvailable: imageAvailable,
		InFlight:       inFlight,
		CommandBuffer:  cb,
	}, nil
}

// NextFrame hands out the next slot in round-robin order. It never blocks;
// throttling is the caller's fence wait.
func (fm *FrameManager) NextFrame() (*FrameSlot, int) {
	idx := int(fm.submitted % uint64(len(fm.frames)))
	fm.submitted++
	return fm.frames[idx], idx
}

// SwapchainImage returns the synchronization state of a swapchain image,
// creating it the first time the index is seen.
func (fm *FrameManager) SwapchainImage(index int) (*ImageSync, error) {
	if index < 0 || index >= len(fm.images) {
		return nil, fmt.Errorf("image %d of %d: %w", index, len(fm.images), ErrInvalidImageIndex)
	}
	if img := fm.images[index]; img != nil {
		return img, nil
	}
	sem, err := fm.device.CreateSemaphore()
	if err != nil {
		return nil, gpuError(fmt.Sprintf("create render finished semaphore %d", index), err)
	}
	img := &ImageSync{RenderFinished: sem}
	fm.images[index] = img
	return img, nil
}

func (fm *FrameManager) frame(index int) (*FrameSlot, error) {
	if index < 0 || index >= len(fm.frames) {
		return nil, fmt.Errorf("frame %d of %d: %w", index, len(fm.frames), ErrInvalidFrameIndex)
	}
	return fm.frames[index], nil
}

func (fm *FrameManager) FrameCount() int {
	return len(fm.frames)
}

func (fm *FrameManager) ImageCount() int {
	return len(fm.images)
}

// Submitted is the number of slots handed out by NextFrame.
func (fm *FrameManager) Submitted() uint64 {
	return fm.submitted
}

// Destroy waits for the device to go idle and releases every slot and image
// semaphore.
func (fm *FrameManager) Destroy() {
	if err := fm.device.WaitIdle(); err != nil {
		core.LogError("frame manager: wait idle before destroy failed: %s", err)
	}
	fm.release()
}

func (fm *FrameManager) release() {
	for i, img := range fm.images {
		if img != nil {
			fm.device.DestroySemaphore(img.RenderFinished)
			fm.images[i] = nil
		}
	}
	for _, slot := range fm.frames {
		fm.device.DestroySemaphore(slot.ImageAvailable)
		fm.device.DestroyFence(slot.InFlight)
		fm.device.FreeCommandBuffer(fm.pool, slot.CommandBuffer)
	}
	fm.frames = nil
}
