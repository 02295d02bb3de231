package vulkan

import (
	"fmt"
	stdmath "math"
	"strings"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/core"
	"github.com/spaghettifunk/inflight/engine/math"
	"github.com/spaghettifunk/inflight/engine/renderer"
)

// VulkanSwapchain is an immutable presentation chain. Resizing builds a new
// one through the factory.
type VulkanSwapchain struct {
	context *VulkanContext

	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode

	extent    vk.Extent2D
	transform vk.SurfaceTransformFlagBits
	images    []*VulkanImage
}

var _ renderer.Swapchain = (*VulkanSwapchain)(nil)

// ParsePresentMode maps a configured present mode name. An empty name is fifo.
func ParsePresentMode(name string) (vk.PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fifo":
		return vk.PresentModeFifo, nil
	case "mailbox":
		return vk.PresentModeMailbox, nil
	case "immediate":
		return vk.PresentModeImmediate, nil
	default:
		return vk.PresentModeFifo, fmt.Errorf("unknown present mode %q", name)
	}
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// choosePresentMode falls back to fifo, the only mode every surface supports.
func choosePresentMode(preferred vk.PresentMode, available []vk.PresentMode) vk.PresentMode {
	for _, mode := range available {
		if mode == preferred {
			return mode
		}
	}
	return vk.PresentModeFifo
}

func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != stdmath.MaxUint32 {
		return caps.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	return vk.Extent2D{
		Width:  math.Clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func surfaceTransform(t vk.SurfaceTransformFlagBits) renderer.SurfaceTransform {
	switch t {
	case vk.SurfaceTransformRotate90Bit:
		return renderer.SurfaceTransformRotate90
	case vk.SurfaceTransformRotate180Bit:
		return renderer.SurfaceTransformRotate180
	case vk.SurfaceTransformRotate270Bit:
		return renderer.SurfaceTransformRotate270
	default:
		return renderer.SurfaceTransformIdentity
	}
}

// SwapchainFactory builds swapchains on the context's surface. The replaced
// swapchain, when it is one of ours, is handed to the driver as OldSwapchain.
func (vc *VulkanContext) SwapchainFactory() renderer.SwapchainFactory {
	return func(width, height uint32, old renderer.Swapchain) (renderer.Swapchain, error) {
		oldHandle := vk.NullSwapchain
		if prev, ok := old.(*VulkanSwapchain); ok && prev != nil {
			oldHandle = prev.Handle
		}
		var sc *VulkanSwapchain
		err := vc.lockPool.SafeCall(SwapchainManagement, func() error {
			var err error
			sc, err = createSwapchain(vc, width, height, oldHandle)
			return err
		})
		if err != nil {
			return nil, err
		}
		return sc, nil
	}
}

func createSwapchain(context *VulkanContext, width, height uint32, old vk.Swapchain) (*VulkanSwapchain, error) {
	support, err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface)
	if err != nil {
		return nil, err
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, fmt.Errorf("surface reports no formats or present modes")
	}

	caps := support.Capabilities
	swapchain := &VulkanSwapchain{
		context:     context,
		ImageFormat: chooseSurfaceFormat(support.Formats),
		PresentMode: choosePresentMode(context.presentMode, support.PresentModes),
		extent:      chooseExtent(caps, width, height),
		transform:   caps.CurrentTransform,
	}
	if swapchain.extent.Width == 0 || swapchain.extent.Height == 0 {
		return nil, fmt.Errorf("swapchain extent %dx%d: %w", swapchain.extent.Width, swapchain.extent.Height, renderer.ErrOutOfDate)
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    chooseImageCount(caps),
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      swapchain.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}

	// Setup the queue family indices
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &swapchain.Handle); res != vk.Success {
		return nil, resultError("vkCreateSwapchainKHR", res)
	}

	var imageCount uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &imageCount, nil); res != vk.Success {
		swapchain.release()
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}
	images := make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &imageCount, images); res != vk.Success {
		swapchain.release()
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}

	for _, image := range images {
		img, err := newSwapchainImage(context, image, swapchain.ImageFormat.Format, swapchain.extent)
		if err != nil {
			swapchain.release()
			return nil, err
		}
		swapchain.images = append(swapchain.images, img)
	}

	core.LogInfo("swapchain created: %dx%d, %d images, present mode %d", swapchain.extent.Width, swapchain.extent.Height, len(swapchain.images), swapchain.PresentMode)
	return swapchain, nil
}

func (vs *VulkanSwapchain) ImageCount() int { return len(vs.images) }

func (vs *VulkanSwapchain) Extent() renderer.Extent2D {
	return renderer.Extent2D{Width: vs.extent.Width, Height: vs.extent.Height}
}

func (vs *VulkanSwapchain) Format() renderer.Format { return renderer.Format(vs.ImageFormat.Format) }

func (vs *VulkanSwapchain) PreTransform() renderer.SurfaceTransform {
	return surfaceTransform(vs.transform)
}

func (vs *VulkanSwapchain) AcquireNextImage(signal renderer.Semaphore) (uint32, bool, error) {
	sem, ok := vs.context.handles.semaphore(signal)
	if !ok {
		return 0, false, fmt.Errorf("semaphore %d: %w", signal, errUnknownHandle)
	}

	var index uint32
	res := vk.AcquireNextImage(vs.context.Device.LogicalDevice, vs.Handle, stdmath.MaxUint64, sem, vk.NullFence, &index)
	switch res {
	case vk.Success:
		return index, false, nil
	case vk.Suboptimal:
		return index, true, nil
	default:
		return 0, false, resultError("vkAcquireNextImageKHR", res)
	}
}

func (vs *VulkanSwapchain) Present(index uint32, wait renderer.Semaphore) (bool, error) {
	waits, err := vs.context.handles.optionalSemaphore(wait)
	if err != nil {
		return false, err
	}
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{vs.Handle},
		PImageIndices:  []uint32{index},
	}
	if len(waits) > 0 {
		presentInfo.WaitSemaphoreCount = uint32(len(waits))
		presentInfo.PWaitSemaphores = waits
	}

	var res vk.Result
	_ = vs.context.lockPool.SafeQueueCall(uint32(vs.context.Device.PresentQueueIndex), func() error {
		res = vk.QueuePresent(vs.context.Device.PresentQueue, &presentInfo)
		return nil
	})
	switch res {
	case vk.Success:
		return false, nil
	case vk.Suboptimal:
		return true, nil
	default:
		return false, resultError("vkQueuePresentKHR", res)
	}
}

// CreateFramebuffers builds one framebuffer per image view against rp. On
// failure the ones already built are destroyed.
func (vs *VulkanSwapchain) CreateFramebuffers(r renderer.RenderPass) ([]renderer.Framebuffer, error) {
	rp, ok := vs.context.handles.renderPasses.Get(uint64(r))
	if !ok {
		return nil, fmt.Errorf("render pass %d: %w", r, errUnknownHandle)
	}

	out := make([]renderer.Framebuffer, 0, len(vs.images))
	for _, img := range vs.images {
		fb, err := FramebufferCreate(vs.context, rp, vs.extent.Width, vs.extent.Height, []vk.ImageView{img.View})
		if err != nil {
			for _, f := range out {
				vs.context.DestroyFramebuffer(f)
			}
			return nil, err
		}
		out = append(out, renderer.Framebuffer(vs.context.handles.framebuffers.Acquire(fb)))
	}
	return out, nil
}

// Destroy releases the image views and the swapchain. The images belong to
// the swapchain and go with it.
func (vs *VulkanSwapchain) Destroy() {
	_ = vs.context.lockPool.SafeCall(SwapchainManagement, func() error {
		vs.release()
		return nil
	})
}

func (vs *VulkanSwapchain) release() {
	for _, img := range vs.images {
		img.destroyView(vs.context)
	}
	vs.images = nil
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(vs.context.Device.LogicalDevice, vs.Handle, vs.context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}
