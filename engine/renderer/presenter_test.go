package renderer

import (
	"errors"
	"fmt"
	"testing"
)

type testFactory struct {
	device *mockDevice
	images int
	built  []*mockSwapchain
	fail   error
}

func (f *testFactory) build(width, height uint32, old Swapchain) (Swapchain, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	sc := newMockSwapchain(f.device, width, height, f.images)
	sc.old = old
	f.built = append(f.built, sc)
	return sc, nil
}

func (f *testFactory) last() *mockSwapchain {
	return f.built[len(f.built)-1]
}

func newTestPresenter(t *testing.T, width, height uint32, opts ...Option) (*Presenter, *mockDevice, *testFactory) {
	t.Helper()
	d := newMockDevice()
	f := &testFactory{device: d, images: 3}
	opts = append([]Option{WithClock(fixedClock(0))}, opts...)
	p, err := NewPresenter(d, 1, f.build, width, height, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return p, d, f
}

func TestPresenterResizeScenario(t *testing.T) {
	p, d, f := newTestPresenter(t, 800, 600)
	defer p.Destroy()

	if err := p.Redraw(); err != nil {
		t.Fatal(err)
	}
	old := f.last()

	d.resetLog()
	if err := p.Resize(1024, 768); err != nil {
		t.Fatal(err)
	}

	idle := d.indexOf("WaitIdle", 0)
	if idle < 0 {
		t.Fatal("no idle wait during recreation")
	}
	if fb := d.indexOf("DestroyFramebuffer", 0); fb < idle {
		t.Errorf("framebuffer destroyed before the device went idle: %v", d.log)
	}
	pass := d.indexOf("DestroyRenderPass", 0)
	if pass < idle {
		t.Errorf("render pass destroyed before the device went idle: %v", d.log)
	}
	if d.count("DestroyFramebuffer") != 3 {
		t.Errorf("got %d framebuffers destroyed, want 3", d.count("DestroyFramebuffer"))
	}
	if sw := d.indexOf("DestroySwapchain 800x600", 0); sw < pass {
		t.Errorf("old swapchain destroyed before the renderer built on it: %v", d.log)
	}

	current := f.last()
	if current == old || current.old != Swapchain(old) || !old.destroyed {
		t.Error("new swapchain was not built with the old one as a hint")
	}
	if p.Generation() != 2 || p.Extent() != (Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("generation %d, extent %+v", p.Generation(), p.Extent())
	}

	d.resetLog()
	if err := p.Redraw(); err != nil {
		t.Fatal(err)
	}
	want := Rect2D{Width: 1024, Height: 768}
	if len(d.passAreas) != 1 || d.passAreas[0] != want || d.viewports[0] != want {
		t.Errorf("next frame rendered at %+v / %+v, want %+v", d.passAreas, d.viewports, want)
	}
	if len(current.presented) != 1 {
		t.Errorf("new swapchain presented %d images, want 1", len(current.presented))
	}
}

func TestPresenterResizeToSameSizeIsNoop(t *testing.T) {
	p, _, _ := newTestPresenter(t, 800, 600)
	defer p.Destroy()

	if err := p.Resize(800, 600); err != nil {
		t.Fatal(err)
	}
	if p.Generation() != 1 {
		t.Errorf("generation %d, want 1", p.Generation())
	}
}

func TestPresenterSuspendsOnZeroSize(t *testing.T) {
	p, d, _ := newTestPresenter(t, 800, 600)
	defer p.Destroy()

	if err := p.Resize(0, 600); err != nil {
		t.Fatal(err)
	}
	if !p.Suspended() {
		t.Fatal("presenter not suspended at zero width")
	}

	d.resetLog()
	if err := p.Redraw(); err != nil {
		t.Fatal(err)
	}
	if len(d.log) != 0 {
		t.Errorf("suspended presenter touched the device: %v", d.log)
	}

	if err := p.Resize(640, 480); err != nil {
		t.Fatal(err)
	}
	if p.Suspended() || p.Generation() != 2 {
		t.Errorf("suspended %v, generation %d after resume", p.Suspended(), p.Generation())
	}
}

func TestPresenterSuspendsWhenSurfaceHasNoExtent(t *testing.T) {
	p, d, f := newTestPresenter(t, 800, 600)
	defer p.Destroy()

	first := f.last()
	first.acquireErr = fmt.Errorf("acquire: %w", ErrOutOfDate)
	f.fail = fmt.Errorf("swapchain extent 0x0: %w", ErrOutOfDate)

	if err := p.Redraw(); err != nil {
		t.Fatalf("minimized surface stopped the loop: %v", err)
	}
	if !p.Suspended() || p.Renderer() != nil {
		t.Fatalf("suspended %v, renderer %v", p.Suspended(), p.Renderer())
	}
	if err := p.Redraw(); err != nil {
		t.Fatal(err)
	}
	if first.destroyed {
		t.Error("old swapchain destroyed before a replacement was built")
	}

	f.fail = nil
	d.resetLog()
	if err := p.Redraw(); err != nil {
		t.Fatal(err)
	}
	if p.Suspended() || p.Generation() != 2 {
		t.Fatalf("suspended %v, generation %d after restore", p.Suspended(), p.Generation())
	}
	current := f.last()
	if current.old != Swapchain(first) || !first.destroyed {
		t.Error("restored swapchain was not built with the old one as a hint")
	}
	if len(current.presented) != 1 {
		t.Errorf("restored swapchain presented %d images, want 1", len(current.presented))
	}
}

func TestPresenterResizeAfterLostExtent(t *testing.T) {
	p, _, f := newTestPresenter(t, 800, 600)
	defer p.Destroy()

	f.fail = fmt.Errorf("swapchain extent 0x0: %w", ErrOutOfDate)
	if err := p.Recreate(800, 600); err != nil {
		t.Fatal(err)
	}
	if !p.Suspended() {
		t.Fatal("presenter not suspended")
	}

	f.fail = nil
	if err := p.Resize(800, 600); err != nil {
		t.Fatal(err)
	}
	if p.Suspended() || p.Renderer() == nil {
		t.Error("resize to the same size did not rebuild a suspended presenter")
	}
}

func TestPresenterRecreatesWhenRendererAsks(t *testing.T) {
	tests := []struct {
		name string
		set  func(sc *mockSwapchain)
	}{
		{"suboptimal acquire", func(sc *mockSwapchain) { sc.acquireSuboptimal = true }},
		{"suboptimal present", func(sc *mockSwapchain) { sc.presentSuboptimal = true }},
		{"out of date acquire", func(sc *mockSwapchain) { sc.acquireErr = fmt.Errorf("acquire: %w", ErrOutOfDate) }},
		{"out of date present", func(sc *mockSwapchain) { sc.presentErr = fmt.Errorf("present: %w", ErrOutOfDate) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, f := newTestPresenter(t, 800, 600)
			defer p.Destroy()

			first := f.last()
			tt.set(first)
			if err := p.Redraw(); err != nil {
				t.Fatal(err)
			}
			if p.Generation() != 2 || !first.destroyed || f.last().old != Swapchain(first) {
				t.Errorf("pair not rebuilt: generation %d", p.Generation())
			}
			if err := p.Redraw(); err != nil {
				t.Fatal(err)
			}
			if len(f.last().presented) != 1 {
				t.Error("rebuilt pair did not present")
			}
		})
	}
}

func TestPresenterReturnsRenderErrors(t *testing.T) {
	p, d, _ := newTestPresenter(t, 800, 600)
	defer p.Destroy()

	d.fail["SubmitGraphics"] = errInjected
	if err := p.Redraw(); !errors.Is(err, errInjected) {
		t.Fatalf("got %v, want the injected submit failure", err)
	}
	if p.Generation() != 1 {
		t.Errorf("generation %d, want 1", p.Generation())
	}

	delete(d.fail, "SubmitGraphics")
	if err := p.Redraw(); err != nil {
		t.Fatal(err)
	}
	if p.Generation() != 2 {
		t.Errorf("abandoned renderer not rebuilt, generation %d", p.Generation())
	}
	if err := p.Redraw(); err != nil {
		t.Fatal(err)
	}
}

func TestPresenterScaleFactorChanged(t *testing.T) {
	t.Run("recreate", func(t *testing.T) {
		p, _, _ := newTestPresenter(t, 800, 600)
		defer p.Destroy()

		if err := p.ScaleFactorChanged(2, 1600, 1200); err != nil {
			t.Fatal(err)
		}
		if p.Generation() != 2 || p.Extent() != (Extent2D{Width: 1600, Height: 1200}) {
			t.Errorf("generation %d, extent %+v", p.Generation(), p.Extent())
		}
	})
	t.Run("ignore", func(t *testing.T) {
		p, _, _ := newTestPresenter(t, 800, 600, WithScalePolicy(ScaleIgnore))
		defer p.Destroy()

		if err := p.ScaleFactorChanged(2, 1600, 1200); err != nil {
			t.Fatal(err)
		}
		if p.Generation() != 1 || p.Extent() != (Extent2D{Width: 800, Height: 600}) {
			t.Errorf("generation %d, extent %+v", p.Generation(), p.Extent())
		}
	})
}

func TestPresenterReload(t *testing.T) {
	p, d, _ := newTestPresenter(t, 800, 600)
	defer p.Destroy()

	shaders := ShaderBlobs{Vertex: []byte{3, 2, 35, 7}, Fragment: []byte{3, 2, 35, 7, 0, 0, 1, 0}}
	if err := p.Reload(shaders); err != nil {
		t.Fatal(err)
	}
	if p.Generation() != 2 {
		t.Errorf("generation %d, want 2", p.Generation())
	}
	last := d.pipelines[len(d.pipelines)-1]
	if string(last.VertexShader) != string(shaders.Vertex) || string(last.FragmentShader) != string(shaders.Fragment) {
		t.Error("rebuilt pipeline does not use the reloaded shaders")
	}
}

func TestPresenterRepeatedReloads(t *testing.T) {
	p, d, _ := newTestPresenter(t, 800, 600)
	defer p.Destroy()

	opts := len(p.opts)
	var shaders ShaderBlobs
	for i := 0; i < 50; i++ {
		shaders = ShaderBlobs{Vertex: []byte{3, 2, 35, 7, byte(i)}, Fragment: []byte{3, 2, 35, 7, 0, byte(i)}}
		if err := p.Reload(shaders); err != nil {
			t.Fatal(err)
		}
	}
	if len(p.opts) != opts {
		t.Errorf("options grew from %d to %d across reloads", opts, len(p.opts))
	}
	last := d.pipelines[len(d.pipelines)-1]
	if string(last.VertexShader) != string(shaders.Vertex) {
		t.Error("pipeline does not use the latest shaders")
	}
}

func TestPresenterStats(t *testing.T) {
	p, _, f := newTestPresenter(t, 800, 600)
	defer p.Destroy()

	for i := 0; i < 3; i++ {
		if err := p.Redraw(); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.Resize(1024, 768); err != nil {
		t.Fatal(err)
	}
	f.last().acquireSuboptimal = true
	if err := p.Redraw(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := p.Redraw(); err != nil {
			t.Fatal(err)
		}
	}

	want := PresenterStats{Presented: 5, Dropped: 1, Recreations: 2}
	if got := p.Stats(); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNewPresenterFactoryFailure(t *testing.T) {
	d := newMockDevice()
	f := &testFactory{device: d, images: 3, fail: errInjected}
	_, err := NewPresenter(d, 1, f.build, 800, 600)
	var initErr *InitError
	if !errors.As(err, &initErr) || initErr.Stage != "swapchain" || !errors.Is(err, errInjected) {
		t.Fatalf("got %v, want swapchain InitError", err)
	}
	d.assertNoLeaks(t)
}

func TestPresenterDestroy(t *testing.T) {
	p, d, _ := newTestPresenter(t, 800, 600)
	for i := 0; i < 4; i++ {
		if err := p.Redraw(); err != nil {
			t.Fatal(err)
		}
	}
	p.Destroy()
	d.assertNoLeaks(t)
}

func TestParseScalePolicy(t *testing.T) {
	for in, want := range map[string]ScalePolicy{"": ScaleRecreate, "recreate": ScaleRecreate, "ignore": ScaleIgnore} {
		got, err := ParseScalePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseScalePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseScalePolicy("sometimes"); err == nil {
		t.Error("unknown policy accepted")
	}
}
