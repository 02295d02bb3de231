package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/inflight/engine/assets"
	"github.com/spaghettifunk/inflight/engine/config"
	"github.com/spaghettifunk/inflight/engine/core"
	"github.com/spaghettifunk/inflight/engine/platform"
	"github.com/spaghettifunk/inflight/engine/renderer"
	"github.com/spaghettifunk/inflight/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const eventQueueCapacity = 256

// Engine owns the window and the presenter and runs the event loop that
// drives frames. Everything except the asset watcher runs on the goroutine
// that calls Run.
type Engine struct {
	currentStage Stage
	config       *config.ApplicationConfig

	events       *core.EventSystem
	platform     *platform.Platform
	backend      *vulkan.VulkanContext
	assetManager *assets.AssetManager
	presenter    *renderer.Presenter

	clock   *core.Clock
	metrics *core.Metrics

	isRunning     bool
	pendingReload bool
	lastReport    time.Time
}

func New(cfg *config.ApplicationConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		return nil, err
	}

	events := core.NewEventSystem(eventQueueCapacity)
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		events:       events,
		platform:     platform.New(events),
		assetManager: am,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

// Initialize opens the window, brings up the Vulkan backend and builds the
// first swapchain and renderer pair.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onQuit)
	e.events.Register(core.EVENT_CODE_RESIZED, e.onResized)
	e.events.Register(core.EVENT_CODE_SCALE_CHANGED, e.onScaleChanged)
	e.events.Register(core.EVENT_CODE_REDRAW_REQUESTED, e.onRedraw)
	e.events.Register(core.EVENT_CODE_SHADERS_CHANGED, e.onShadersChanged)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)

	win := e.config.Window
	if err := e.platform.Startup(win.Name, win.StartPosX, win.StartPosY, win.StartWidth, win.StartHeight); err != nil {
		return err
	}

	backend, err := vulkan.New(vulkan.Config{
		ApplicationName: win.Name,
		Validation:      e.config.Renderer.Validation,
		PresentMode:     e.config.Renderer.PresentMode,
	}, e.platform)
	if err != nil {
		return fmt.Errorf("vulkan backend: %w", err)
	}
	e.backend = backend

	if err := e.assetManager.Initialize(e.config.Assets.ShaderDir, e.config.Assets.HotReload, e.postShaderChange); err != nil {
		return err
	}
	shaders, err := e.assetManager.LoadShaders()
	if err != nil {
		return err
	}

	opts, err := e.config.Renderer.Options()
	if err != nil {
		return err
	}
	opts = append(opts, renderer.WithShaders(shaders), renderer.WithClock(e.clock.Elapsed))

	width, height := e.platform.FramebufferSize()
	presenter, err := renderer.NewPresenter(backend, backend.GraphicsCommandPool(), backend.SwapchainFactory(), width, height, opts...)
	if err != nil {
		return err
	}
	e.presenter = presenter

	e.currentStage = EngineStageInitialized
	return nil
}

// Run renders until the window closes, a quit event arrives or ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return core.ErrNotInitialized
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true
	e.clock.Start()
	e.lastReport = time.Now()
	lastFrame := time.Now()

	for e.isRunning {
		select {
		case <-ctx.Done():
			e.isRunning = false
			continue
		default:
		}

		if !e.platform.PumpMessages() {
			break
		}
		e.events.Dispatch()
		if !e.isRunning {
			break
		}

		if e.pendingReload {
			e.pendingReload = false
			if err := e.reloadShaders(); err != nil {
				// keep the previous modules, the next change retries
				core.LogError("shader reload: %s", err)
			}
		}

		// out of date swapchains are recovered inside Redraw
		if err := e.presenter.Redraw(); err != nil {
			return fmt.Errorf("redraw: %w", err)
		}

		now := time.Now()
		e.metrics.Update(now.Sub(lastFrame))
		lastFrame = now
		e.report(now)
	}
	return nil
}

func (e *Engine) report(now time.Time) {
	interval := time.Duration(e.config.MetricsInterval) * time.Second
	if interval <= 0 || now.Sub(e.lastReport) < interval {
		return
	}
	e.lastReport = now
	stats := e.presenter.Stats()
	e.metrics.Presented = stats.Presented
	e.metrics.Dropped = stats.Dropped
	e.metrics.Recreations = stats.Recreations
	e.metrics.Log()
}

func (e *Engine) reloadShaders() error {
	shaders, err := e.assetManager.LoadShaders()
	if err != nil {
		return err
	}
	core.LogInfo("shaders changed, rebuilding the presenter")
	return e.presenter.Reload(shaders)
}

// Shutdown tears down in reverse order of construction. The presenter goes
// first so no swapchain dependent object outlives the device.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false
	e.clock.Stop()

	if e.presenter != nil {
		e.presenter.Destroy()
		e.presenter = nil
	}
	var errs []error
	if err := e.assetManager.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("assets: %w", err))
	}
	if e.backend != nil {
		e.backend.Shutdown()
		e.backend = nil
	}
	e.events.Shutdown()
	if err := e.platform.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("platform: %w", err))
	}
	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}

// postShaderChange runs on the watcher goroutine.
func (e *Engine) postShaderChange(path string) {
	if err := e.events.Post(core.EventContext{Type: core.EVENT_CODE_SHADERS_CHANGED, Data: path}); err != nil {
		core.LogWarn("dropped shader change of %s: %s", path, err)
	}
}

func (e *Engine) onQuit(evt core.EventContext) bool {
	core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
	e.isRunning = false
	return true
}

func (e *Engine) onResized(evt core.EventContext) bool {
	se := evt.Data.(*core.SystemEvent)
	if err := e.presenter.Resize(se.WindowWidth, se.WindowHeight); err != nil {
		core.LogError("resize to %dx%d: %s", se.WindowWidth, se.WindowHeight, err)
	}
	return true
}

func (e *Engine) onScaleChanged(evt core.EventContext) bool {
	se := evt.Data.(*core.SystemEvent)
	if err := e.presenter.ScaleFactorChanged(se.Scale, se.WindowWidth, se.WindowHeight); err != nil {
		core.LogError("scale factor %.2f: %s", se.Scale, err)
	}
	return true
}

// The loop redraws every iteration, so a redraw request needs no extra work.
func (e *Engine) onRedraw(evt core.EventContext) bool {
	return true
}

func (e *Engine) onShadersChanged(evt core.EventContext) bool {
	core.LogDebug("shader changed on disk: %v", evt.Data)
	e.pendingReload = true
	return true
}

func (e *Engine) onKey(evt core.EventContext) bool {
	if key, ok := evt.Data.(*core.KeyEvent); ok {
		core.LogDebug("key %d pressed", key.KeyCode)
	}
	return false
}
