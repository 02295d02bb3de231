package renderer

import (
	"fmt"

	"github.com/spaghettifunk/inflight/engine/core"
)

// DefaultClearColor is the background the render pass clears to.
var DefaultClearColor = ClearColor{0.1921, 0.302, 0.4745, 1.0}

// mainPassDependencies order the color attachment writes of subpass 0 after
// the presentation engine released the image, and the present read after them.
var mainPassDependencies = []SubpassDependency{
	{
		SrcSubpass: SubpassExternal,
		DstSubpass: 0,
		SrcStage:   PipelineStageColorAttachmentOutput,
		DstStage:   PipelineStageColorAttachmentOutput,
		DstAccess:  AccessColorAttachmentWrite,
		ByRegion:   true,
	},
	{
		SrcSubpass: 0,
		DstSubpass: SubpassExternal,
		SrcStage:   PipelineStageColorAttachmentOutput,
		DstStage:   PipelineStageBottomOfPipe,
		DstAccess:  AccessMemoryRead,
		ByRegion:   true,
	},
}

// MainRenderPass is the one render pass of a frame. It owns the swapchain
// framebuffers, keyed 1:1 by image index, so it must be rebuilt together with
// the swapchain.
type MainRenderPass struct {
	device       Device
	renderArea   Rect2D
	clear        ClearColor
	handle       RenderPass
	framebuffers []Framebuffer
	subpass      *Subpass
}

func NewMainRenderPass(device Device, swapchain Swapchain, pool CommandPool, renderArea Rect2D, cfg SubpassConfig) (_ *MainRenderPass, err error) {
	rp := &MainRenderPass{
		device:     device,
		renderArea: renderArea,
		clear:      DefaultClearColor,
	}
	defer func() {
		if err != nil {
			rp.release()
		}
	}()

	rp.handle, err = device.CreateRenderPass(RenderPassDesc{
		ColorFormat:  swapchain.Format(),
		Dependencies: mainPassDependencies,
	})
	if err != nil {
		return nil, &InitError{Stage: "render pass", Err: err}
	}

	rp.framebuffers, err = swapchain.CreateFramebuffers(rp.handle)
	if err != nil {
		return nil, &InitError{Stage: "framebuffers", Err: err}
	}
	if len(rp.framebuffers) != swapchain.ImageCount() {
		return nil, &InitError{
			Stage: "framebuffers",
			Err:   fmt.Errorf("got %d framebuffers for %d images", len(rp.framebuffers), swapchain.ImageCount()),
		}
	}

	rp.subpass, err = NewSubpass(device, pool, renderArea, rp.handle, 0, cfg)
	if err != nil {
		return nil, err
	}

	core.LogDebug("render pass created with %d framebuffers (%dx%d)", len(rp.framebuffers), renderArea.Width, renderArea.Height)
	return rp, nil
}

// RecordCommands records the whole pass for one frame into cb, targeting the
// framebuffer of imageIdx and the uniform slot of frameIdx.
func (rp *MainRenderPass) RecordCommands(cb CommandBuffer, imageIdx, frameIdx int, width, height uint32, transform SurfaceTransform) error {
	if imageIdx < 0 || imageIdx >= len(rp.framebuffers) {
		return fmt.Errorf("framebuffer %d of %d: %w", imageIdx, len(rp.framebuffers), ErrInvalidImageIndex)
	}

	area := Rect2D{X: rp.renderArea.X, Y: rp.renderArea.Y, Width: width, Height: height}
	rp.device.CmdBeginRenderPass(cb, rp.handle, rp.framebuffers[imageIdx], area, rp.clear)
	err := rp.subpass.RecordCommands(cb, frameIdx, width, height, transform)
	rp.device.CmdEndRenderPass(cb)
	return err
}

// Destroy tears the subpass down first, then waits for the device to go idle
// before releasing the framebuffers and the render pass.
func (rp *MainRenderPass) Destroy() {
	if rp.subpass != nil {
		rp.subpass.Destroy()
		rp.subpass = nil
	}
	if err := rp.device.WaitIdle(); err != nil {
		core.LogError("render pass: wait idle before destroy failed: %s", err)
	}
	rp.release()
}

func (rp *MainRenderPass) release() {
	if rp.subpass != nil {
		rp.subpass.release()
		rp.subpass = nil
	}
	for _, fb := range rp.framebuffers {
		rp.device.DestroyFramebuffer(fb)
	}
	rp.framebuffers = nil
	if rp.handle != 0 {
		rp.device.DestroyRenderPass(rp.handle)
		rp.handle = 0
	}
}
