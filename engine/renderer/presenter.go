package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/inflight/engine/core"
)

// ScalePolicy decides what a display scale factor change does to the surface.
type ScalePolicy uint8

const (
	// ScaleRecreate rebuilds the swapchain at the new physical size.
	ScaleRecreate ScalePolicy = iota
	// ScaleIgnore only records the new factor; a later resize event rebuilds.
	ScaleIgnore
)

func (p ScalePolicy) String() string {
	switch p {
	case ScaleRecreate:
		return "recreate"
	case ScaleIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("scale(%d)", uint8(p))
	}
}

func ParseScalePolicy(s string) (ScalePolicy, error) {
	switch s {
	case "", "recreate":
		return ScaleRecreate, nil
	case "ignore":
		return ScaleIgnore, nil
	default:
		return 0, fmt.Errorf("unknown scale policy %q", s)
	}
}

// Presenter owns the swapchain and the renderer built from it. The pair is
// always built in that order and always replaced together.
type Presenter struct {
	device  Device
	pool    CommandPool
	factory SwapchainFactory
	opts    []Option
	policy  ScalePolicy
	// shaders from the last Reload, applied after opts
	shaders *ShaderBlobs

	swapchain Swapchain
	renderer  *Renderer

	width, height uint32
	scale         float32
	suspended     bool

	generation  uint64
	recreations uint64
	// counters of renderer generations already destroyed
	presented uint64
	dropped   uint64
}

func NewPresenter(device Device, pool CommandPool, factory SwapchainFactory, width, height uint32, opts ...Option) (*Presenter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	p := &Presenter{
		device:  device,
		pool:    pool,
		factory: factory,
		opts:    opts,
		policy:  o.scalePolicy,
		scale:   1,
	}
	if err := p.Recreate(width, height); err != nil {
		p.Destroy()
		return nil, err
	}
	// the first build is not a recreation
	p.recreations = 0
	return p, nil
}

// Resize follows the window size. A zero dimension suspends rendering until a
// usable size arrives.
func (p *Presenter) Resize(width, height uint32) error {
	if width == p.width && height == p.height && p.renderer != nil && !p.suspended {
		return nil
	}
	return p.Recreate(width, height)
}

// ScaleFactorChanged handles a display scale change. width and height are the
// window's physical size under the new factor.
func (p *Presenter) ScaleFactorChanged(scale float32, width, height uint32) error {
	core.LogDebug("scale factor changed %.2f -> %.2f (policy %s)", p.scale, scale, p.policy)
	p.scale = scale
	if p.policy == ScaleIgnore {
		return nil
	}
	return p.Recreate(width, height)
}

// Redraw renders one frame and rebuilds the pair when the renderer asks for
// it. Out of date swapchains are recovered here; every other error is
// returned.
func (p *Presenter) Redraw() error {
	if p.suspended && (p.width == 0 || p.height == 0) {
		return nil
	}
	// suspended at a non zero size means the surface had no usable extent
	// last time, so every redraw retries the build
	if p.renderer == nil || p.suspended {
		if err := p.Recreate(p.width, p.height); err != nil {
			return err
		}
		if p.suspended {
			return nil
		}
	}

	recreate, err := p.renderer.Render()
	if err != nil && !errors.Is(err, ErrOutOfDate) && !errors.Is(err, ErrRecreateRequired) {
		return err
	}
	if recreate {
		return p.Recreate(p.width, p.height)
	}
	return nil
}

// Reload replaces the shader modules and rebuilds the pair with them.
func (p *Presenter) Reload(shaders ShaderBlobs) error {
	p.shaders = &shaders
	if p.suspended {
		return nil
	}
	return p.Recreate(p.width, p.height)
}

// Recreate waits for the device to go idle, tears the renderer down, builds a
// new swapchain with the old one as a hint, destroys the old swapchain and
// builds a new renderer from the new one.
func (p *Presenter) Recreate(width, height uint32) error {
	p.width, p.height = width, height
	if width == 0 || height == 0 {
		if !p.suspended {
			core.LogDebug("surface is %dx%d, rendering suspended", width, height)
		}
		p.suspended = true
		return nil
	}

	if err := p.device.WaitIdle(); err != nil {
		return gpuError("wait idle before recreate", err)
	}
	p.destroyRenderer()

	swapchain, err := p.factory(width, height, p.swapchain)
	if errors.Is(err, ErrOutOfDate) {
		// minimized surfaces report a zero extent
		if !p.suspended {
			core.LogDebug("surface has no usable extent, rendering suspended: %s", err)
		}
		p.suspended = true
		return nil
	}
	if err != nil {
		return &InitError{Stage: "swapchain", Err: err}
	}
	if p.swapchain != nil {
		p.swapchain.Destroy()
	}
	p.swapchain = swapchain

	extent := swapchain.Extent()
	renderer, err := NewRenderer(p.device, swapchain, p.pool, Rect2D{Width: extent.Width, Height: extent.Height}, p.rendererOptions()...)
	if err != nil {
		return err
	}
	p.renderer = renderer
	p.suspended = false
	p.generation++
	p.recreations++

	core.LogInfo("presenter generation %d: renderer %s at %dx%d", p.generation, renderer.ID(), extent.Width, extent.Height)
	return nil
}

func (p *Presenter) rendererOptions() []Option {
	if p.shaders == nil {
		return p.opts
	}
	return append(p.opts[:len(p.opts):len(p.opts)], WithShaders(*p.shaders))
}

func (p *Presenter) destroyRenderer() {
	if p.renderer == nil {
		return
	}
	p.presented += p.renderer.FramesPresented()
	p.dropped += p.renderer.FramesDropped()
	p.renderer.Destroy()
	p.renderer = nil
}

func (p *Presenter) Destroy() {
	if p.device != nil {
		if err := p.device.WaitIdle(); err != nil {
			core.LogError("presenter: wait idle before destroy failed: %s", err)
		}
	}
	p.destroyRenderer()
	if p.swapchain != nil {
		p.swapchain.Destroy()
		p.swapchain = nil
	}
}

// Extent is the extent of the live swapchain, or the last requested size
// while suspended.
func (p *Presenter) Extent() Extent2D {
	if p.swapchain == nil || p.suspended {
		return Extent2D{Width: p.width, Height: p.height}
	}
	return p.swapchain.Extent()
}

// Generation counts swapchain and renderer pairs built so far.
func (p *Presenter) Generation() uint64 {
	return p.generation
}

func (p *Presenter) Suspended() bool {
	return p.suspended
}

func (p *Presenter) Renderer() *Renderer {
	return p.renderer
}

type PresenterStats struct {
	Presented   uint64
	Dropped     uint64
	Recreations uint64
}

func (p *Presenter) Stats() PresenterStats {
	s := PresenterStats{
		Presented:   p.presented,
		Dropped:     p.dropped,
		Recreations: p.recreations,
	}
	if p.renderer != nil {
		s.Presented += p.renderer.FramesPresented()
		s.Dropped += p.renderer.FramesDropped()
	}
	return s
}
