package renderer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/inflight/engine/core"
)

type options struct {
	frameCount   int
	clip         ClipConvention
	shaders      ShaderBlobs
	elapsed      func() time.Duration
	fenceTimeout time.Duration
	scalePolicy  ScalePolicy
}

func defaultOptions() options {
	return options{
		frameCount:   MaxFramesInFlight,
		clip:         ClipVulkan,
		fenceTimeout: NoTimeout,
		scalePolicy:  ScaleRecreate,
	}
}

type Option func(*options)

// WithFrameCount sets the number of frames that may be in flight at once.
func WithFrameCount(n int) Option {
	return func(o *options) {
		o.frameCount = n
	}
}

func WithClipConvention(c ClipConvention) Option {
	return func(o *options) {
		o.clip = c
	}
}

func WithShaders(shaders ShaderBlobs) Option {
	return func(o *options) {
		o.shaders = shaders
	}
}

// WithClock drives the model rotation. Sharing one clock between renderer
// generations keeps the animation continuous across rebuilds.
func WithClock(elapsed func() time.Duration) Option {
	return func(o *options) {
		o.elapsed = elapsed
	}
}

// WithFenceTimeout bounds the wait on a frame slot's fence. NoTimeout blocks
// until the GPU retires the slot.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fenceTimeout = d
	}
}

// WithScalePolicy only affects a Presenter.
func WithScalePolicy(p ScalePolicy) Option {
	return func(o *options) {
		o.scalePolicy = p
	}
}

// Renderer drives one frame per Render call against a single swapchain. It is
// never mutated to follow a new swapchain: the owner destroys it and builds a
// new one together with the new swapchain.
type Renderer struct {
	id        uuid.UUID
	device    Device
	swapchain Swapchain

	frames *FrameManager
	pass   *MainRenderPass

	extent       Extent2D
	transform    SurfaceTransform
	fenceTimeout time.Duration

	// set once a slot's fence was reset without a submission to signal it
	stale bool

	presented uint64
	dropped   uint64
}

func NewRenderer(device Device, swapchain Swapchain, pool CommandPool, renderArea Rect2D, opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	frames, err := NewFrameManager(device, pool, o.frameCount, swapchain.ImageCount())
	if err != nil {
		return nil, &InitError{Stage: "frame manager", Err: err}
	}

	pass, err := NewMainRenderPass(device, swapchain, pool, renderArea, SubpassConfig{
		Shaders:    o.shaders,
		FrameCount: o.frameCount,
		Clip:       o.clip,
		Elapsed:    o.elapsed,
	})
	if err != nil {
		frames.Destroy()
		var initErr *InitError
		if errors.As(err, &initErr) {
			return nil, initErr
		}
		return nil, &InitError{Stage: "render pass", Err: err}
	}

	r := &Renderer{
		id:           uuid.New(),
		device:       device,
		swapchain:    swapchain,
		frames:       frames,
		pass:         pass,
		extent:       renderArea.Extent(),
		transform:    swapchain.PreTransform(),
		fenceTimeout: o.fenceTimeout,
	}
	core.LogInfo("renderer %s created: %dx%d, %d frames in flight, %d swapchain images, clip %s",
		r.id, r.extent.Width, r.extent.Height, frames.FrameCount(), frames.ImageCount(), o.clip)
	return r, nil
}

func (r *Renderer) ID() uuid.UUID {
	return r.id
}

func (r *Renderer) Extent() Extent2D {
	return r.extent
}

func (r *Renderer) FrameCount() int {
	return r.frames.FrameCount()
}

// FramesPresented is the number of frames handed to the presentation engine.
func (r *Renderer) FramesPresented() uint64 {
	return r.presented
}

// FramesDropped counts frames abandoned before submission.
func (r *Renderer) FramesDropped() uint64 {
	return r.dropped
}

// Render draws and presents one frame. The boolean reports that the swapchain
// and this renderer must be rebuilt before the next frame. An out of date
// swapchain is reported as true together with an error wrapping ErrOutOfDate.
func (r *Renderer) Render() (bool, error) {
	if r.stale {
		return true, ErrRecreateRequired
	}

	slot, frameIdx := r.frames.NextFrame()

	if err := r.device.WaitForFence(slot.InFlight, r.fenceTimeout); err != nil {
		r.dropped++
		return false, &RenderError{Op: OpWaitFence, Err: err}
	}
	if err := r.device.ResetFence(slot.InFlight); err != nil {
		return r.abandon(OpResetFence, err)
	}

	imageIdx, suboptimal, err := r.swapchain.AcquireNextImage(slot.ImageAvailable)
	if err != nil {
		if errors.Is(err, ErrOutOfDate) {
			core.LogDebug("renderer %s: swapchain out of date on acquire", r.id)
		}
		return r.abandon(OpAcquireImage, err)
	}
	if suboptimal {
		// Drawing into a framebuffer of the old size is worse than a
		// dropped frame.
		core.LogDebug("renderer %s: swapchain suboptimal on acquire, frame dropped", r.id)
		r.stale = true
		r.dropped++
		return true, nil
	}

	image, err := r.frames.SwapchainImage(int(imageIdx))
	if err != nil {
		return r.abandon(OpAcquireImage, err)
	}

	cb := slot.CommandBuffer
	if err := r.device.ResetCommandBuffer(cb); err != nil {
		return r.abandon(OpResetCommandBuffer, err)
	}
	if err := r.device.BeginCommandBuffer(cb); err != nil {
		return r.abandon(OpBeginCommandBuffer, err)
	}
	if err := r.pass.RecordCommands(cb, int(imageIdx), frameIdx, r.extent.Width, r.extent.Height, r.transform); err != nil {
		return r.abandon(OpRecordCommands, err)
	}
	if err := r.device.EndCommandBuffer(cb); err != nil {
		return r.abandon(OpEndCommandBuffer, err)
	}

	if err := r.device.SubmitGraphics(SubmitInfo{
		CommandBuffer: cb,
		Wait:          slot.ImageAvailable,
		Signal:        image.RenderFinished,
		Fence:         slot.InFlight,
	}); err != nil {
		return r.abandon(OpSubmit, err)
	}

	suboptimal, err = r.swapchain.Present(imageIdx, image.RenderFinished)
	if err != nil {
		if errors.Is(err, ErrOutOfDate) {
			core.LogDebug("renderer %s: swapchain out of date on present", r.id)
			return true, &RenderError{Op: OpPresent, Err: err}
		}
		return false, &RenderError{Op: OpPresent, Err: err}
	}
	r.presented++
	if suboptimal {
		core.LogDebug("renderer %s: swapchain suboptimal on present", r.id)
		return true, nil
	}
	return false, nil
}

// abandon gives up on a frame whose fence was already reset. Nothing will
// signal that fence again, so the renderer refuses to render until rebuilt.
func (r *Renderer) abandon(op RenderOp, err error) (bool, error) {
	r.stale = true
	r.dropped++
	return errors.Is(err, ErrOutOfDate), &RenderError{Op: op, Err: err}
}

// Destroy releases the render pass with its subpass, then the frame slots.
func (r *Renderer) Destroy() {
	if r.pass != nil {
		r.pass.Destroy()
		r.pass = nil
	}
	if r.frames != nil {
		r.frames.Destroy()
		r.frames = nil
	}
	core.LogDebug("renderer %s destroyed after %d frames (%d dropped)", r.id, r.presented, r.dropped)
}
