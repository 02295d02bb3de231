package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the window. Window callbacks are turned into events posted to
// the event system and handled on the next Dispatch.
type Platform struct {
	Window *glfw.Window
	events *core.EventSystem
}

func New(events *core.EventSystem) *Platform {
	return &Platform{events: events}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetContentScaleCallback(p.contentScaleCallback)
	p.Window.SetRefreshCallback(p.refreshCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages polls the window system. It returns false once the window has
// been asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// FramebufferSize is the drawable size in physical pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

func (p *Platform) ContentScale() float32 {
	x, _ := p.Window.GetContentScale()
	return x
}

func (p *Platform) GetRequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(ptr), nil
}

func (p *Platform) post(ctx core.EventContext) {
	if err := p.events.Post(ctx); err != nil {
		core.LogWarn("dropped window event %d: %s", ctx.Type, err)
	}
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	if key == glfw.KeyEscape {
		p.post(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		return
	}
	p.post(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: int(key)}})
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.post(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{WindowWidth: uint32(width), WindowHeight: uint32(height), Scale: p.ContentScale()},
	})
}

func (p *Platform) contentScaleCallback(w *glfw.Window, x, y float32) {
	width, height := w.GetFramebufferSize()
	p.post(core.EventContext{
		Type: core.EVENT_CODE_SCALE_CHANGED,
		Data: &core.SystemEvent{WindowWidth: uint32(width), WindowHeight: uint32(height), Scale: x},
	})
}

func (p *Platform) refreshCallback(w *glfw.Window) {
	p.post(core.EventContext{Type: core.EVENT_CODE_REDRAW_REQUESTED})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.post(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}
