package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/inflight/engine/renderer"
)

type WindowConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"y"`
	// Window starting width.
	StartWidth uint32 `toml:"width"`
	// Window starting height.
	StartHeight uint32 `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight int    `toml:"frames_in_flight"`
	ClipConvention string `toml:"clip_convention"`
	ScalePolicy    string `toml:"scale_policy"`
	// Go duration string; empty or "0" waits forever.
	FenceTimeout string `toml:"fence_timeout"`
	// fifo, mailbox or immediate. The backend falls back to fifo.
	PresentMode string `toml:"present_mode"`
	Validation  bool   `toml:"validation"`
}

type AssetsConfig struct {
	ShaderDir string `toml:"shader_dir"`
	HotReload bool   `toml:"hot_reload"`
}

type ApplicationConfig struct {
	LogLevel string `toml:"log_level"`
	// Seconds between two metrics reports. Zero disables them.
	MetricsInterval int `toml:"metrics_interval"`

	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
}

func Default() *ApplicationConfig {
	return &ApplicationConfig{
		LogLevel:        "info",
		MetricsInterval: 5,
		Window: WindowConfig{
			Name:        "inflight",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  800,
			StartHeight: 600,
		},
		Renderer: RendererConfig{
			FramesInFlight: renderer.MaxFramesInFlight,
			ClipConvention: "vulkan",
			ScalePolicy:    "recreate",
			PresentMode:    "fifo",
		},
		Assets: AssetsConfig{
			ShaderDir: "shaders",
			HotReload: false,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*ApplicationConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode unmarshals TOML data into cfg and validates the result. Unknown keys
// are rejected.
func Decode(data []byte, cfg *ApplicationConfig) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("line %d, column %d: %w", row, col, err)
		}
		return err
	}
	return cfg.Validate()
}

func (c *ApplicationConfig) Validate() error {
	if c.Window.StartWidth == 0 || c.Window.StartHeight == 0 {
		return fmt.Errorf("window size %dx%d must be non zero", c.Window.StartWidth, c.Window.StartHeight)
	}
	if c.Renderer.FramesInFlight < 1 {
		return fmt.Errorf("frames_in_flight %d: %w", c.Renderer.FramesInFlight, renderer.ErrNoFrames)
	}
	if _, err := renderer.ParseClipConvention(c.Renderer.ClipConvention); err != nil {
		return err
	}
	if _, err := renderer.ParseScalePolicy(c.Renderer.ScalePolicy); err != nil {
		return err
	}
	if _, err := c.Renderer.Timeout(); err != nil {
		return err
	}
	switch c.Renderer.PresentMode {
	case "", "fifo", "mailbox", "immediate":
	default:
		return fmt.Errorf("unknown present mode %q", c.Renderer.PresentMode)
	}
	return nil
}

// Timeout is the fence wait bound, renderer.NoTimeout when unset.
func (r RendererConfig) Timeout() (time.Duration, error) {
	if r.FenceTimeout == "" || r.FenceTimeout == "0" {
		return renderer.NoTimeout, nil
	}
	d, err := time.ParseDuration(r.FenceTimeout)
	if err != nil {
		return 0, fmt.Errorf("fence_timeout: %w", err)
	}
	if d <= 0 {
		return renderer.NoTimeout, nil
	}
	return d, nil
}

// Options turns the renderer section into renderer options. Shaders and the
// clock are supplied by the caller.
func (r RendererConfig) Options() ([]renderer.Option, error) {
	clip, err := renderer.ParseClipConvention(r.ClipConvention)
	if err != nil {
		return nil, err
	}
	policy, err := renderer.ParseScalePolicy(r.ScalePolicy)
	if err != nil {
		return nil, err
	}
	timeout, err := r.Timeout()
	if err != nil {
		return nil, err
	}
	return []renderer.Option{
		renderer.WithFrameCount(r.FramesInFlight),
		renderer.WithClipConvention(clip),
		renderer.WithScalePolicy(policy),
		renderer.WithFenceTimeout(timeout),
	}, nil
}
