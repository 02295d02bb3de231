package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestPass(t *testing.T, d *mockDevice, sc *mockSwapchain, cfg SubpassConfig) *MainRenderPass {
	t.Helper()
	if cfg.FrameCount == 0 {
		cfg.FrameCount = 2
	}
	if cfg.Elapsed == nil {
		cfg.Elapsed = fixedClock(0)
	}
	rp, err := NewMainRenderPass(d, sc, 1, Rect2D{Width: sc.extent.Width, Height: sc.extent.Height}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return rp
}

func TestRecordCommandsQuad(t *testing.T) {
	d := newMockDevice()
	sc := newMockSwapchain(d, 800, 600, 3)
	rp := newTestPass(t, d, sc, SubpassConfig{})
	defer rp.Destroy()

	d.resetLog()
	cb := CommandBuffer(999)
	if err := rp.RecordCommands(cb, 1, 0, 800, 600, SurfaceTransformIdentity); err != nil {
		t.Fatal(err)
	}

	if len(d.draws) != 1 {
		t.Fatalf("got %d draws, want exactly 1", len(d.draws))
	}
	want := drawCall{indexed: true, count: 6, instanceCount: 1}
	if d.draws[0] != want {
		t.Errorf("got draw %+v, want %+v", d.draws[0], want)
	}

	order := []string{
		fmt.Sprintf("CmdBeginRenderPass %d", rp.framebuffers[1]),
		"CmdBindPipeline",
		"CmdSetViewport",
		"CmdSetScissor",
		"CmdBindVertexBuffers [0]",
		"CmdBindIndexBuffer 80",
		"CmdBindDescriptorSets",
		"CmdDrawIndexed",
		"CmdEndRenderPass",
	}
	at := 0
	for _, entry := range order {
		i := d.indexOf(entry, at)
		if i < 0 {
			t.Fatalf("%q missing or out of order in %v", entry, d.log)
		}
		at = i + 1
	}
	if d.passAreas[0] != (Rect2D{Width: 800, Height: 600}) {
		t.Errorf("render area %+v", d.passAreas[0])
	}
}

func TestRecordCommandsWritesFrameUniforms(t *testing.T) {
	d := newMockDevice()
	sc := newMockSwapchain(d, 800, 600, 3)
	rp := newTestPass(t, d, sc, SubpassConfig{Elapsed: fixedClock(time.Second)})
	defer rp.Destroy()

	cb := CommandBuffer(999)
	if err := rp.RecordCommands(cb, 0, 1, 800, 600, SurfaceTransformIdentity); err != nil {
		t.Fatal(err)
	}

	set := d.boundSet[cb]
	mem := d.buffers[d.sets[set]].memory
	want := ComputeUniforms(time.Second, 800, 600, ClipVulkan, SurfaceTransformIdentity)
	if !bytes.Equal(d.memory[mem], want.Bytes()) {
		t.Error("bound uniform buffer does not hold the frame's transforms")
	}
	if set != rp.subpass.uniforms[1].set {
		t.Error("recording bound another slot's descriptor set")
	}
}

func TestRecordCommandsInvalidIndices(t *testing.T) {
	d := newMockDevice()
	sc := newMockSwapchain(d, 800, 600, 3)
	rp := newTestPass(t, d, sc, SubpassConfig{})
	defer rp.Destroy()

	if err := rp.RecordCommands(1, 3, 0, 800, 600, SurfaceTransformIdentity); !errors.Is(err, ErrInvalidImageIndex) {
		t.Errorf("got %v, want ErrInvalidImageIndex", err)
	}
	if err := rp.RecordCommands(1, 0, 2, 800, 600, SurfaceTransformIdentity); !errors.Is(err, ErrInvalidFrameIndex) {
		t.Errorf("got %v, want ErrInvalidFrameIndex", err)
	}
	if len(d.draws) != 0 {
		t.Errorf("got %d draws after invalid recordings", len(d.draws))
	}
}

func TestRecordCommandsWithoutIndices(t *testing.T) {
	d := newMockDevice()
	sc := newMockSwapchain(d, 800, 600, 2)
	rp := newTestPass(t, d, sc, SubpassConfig{Vertices: QuadVertices})
	defer rp.Destroy()

	if d.pipelines[0].Topology != TopologyTriangleStrip {
		t.Errorf("got topology %d, want triangle strip", d.pipelines[0].Topology)
	}
	if err := rp.RecordCommands(1, 0, 0, 800, 600, SurfaceTransformIdentity); err != nil {
		t.Fatal(err)
	}
	if len(d.draws) != 1 || d.draws[0].indexed || d.draws[0].count != 4 {
		t.Errorf("got draws %+v, want one non-indexed draw of 4 vertices", d.draws)
	}
	if d.count("CmdBindIndexBuffer") != 0 {
		t.Error("index buffer bound for a non-indexed draw")
	}
}

func TestMainRenderPassDestroyOrder(t *testing.T) {
	d := newMockDevice()
	sc := newMockSwapchain(d, 800, 600, 3)
	rp := newTestPass(t, d, sc, SubpassConfig{})

	d.resetLog()
	rp.Destroy()

	idle := d.indexOf("WaitIdle", 0)
	fb := d.indexOf("DestroyFramebuffer", 0)
	pass := d.indexOf("DestroyRenderPass", 0)
	if idle < 0 || fb < idle || pass < idle {
		t.Errorf("framebuffers and render pass destroyed before the device went idle: %v", d.log)
	}
	if d.count("DestroyFramebuffer") != 3 {
		t.Errorf("got %d framebuffers destroyed, want 3", d.count("DestroyFramebuffer"))
	}
	sc.Destroy()
	d.assertNoLeaks(t)
}

func TestNewMainRenderPassFailures(t *testing.T) {
	tests := []struct {
		op    string
		stage string
	}{
		{"CreateRenderPass", "render pass"},
		{"CreateFramebuffers", "framebuffers"},
		{"CreateDescriptorSetLayout", "descriptor set layout"},
		{"CreatePipelineLayout", "pipeline layout"},
		{"CreateGraphicsPipeline", "graphics pipeline"},
		{"CopyBuffer", "combined buffer"},
		{"CreateDescriptorPool", "descriptor pool"},
		{"AllocateDescriptorSets", "descriptor sets"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			d := newMockDevice()
			sc := newMockSwapchain(d, 800, 600, 3)
			d.fail[tt.op] = errInjected

			_, err := NewMainRenderPass(d, sc, 1, Rect2D{Width: 800, Height: 600}, SubpassConfig{FrameCount: 2})
			var initErr *InitError
			if !errors.As(err, &initErr) {
				t.Fatalf("got %v, want *InitError", err)
			}
			if initErr.Stage != tt.stage {
				t.Errorf("got stage %q, want %q", initErr.Stage, tt.stage)
			}
			if !errors.Is(err, errInjected) {
				t.Errorf("%v does not wrap the injected failure", err)
			}
			sc.Destroy()
			d.assertNoLeaks(t)
		})
	}
}
