package renderer

import (
	"errors"
	"testing"
)

func TestNewFrameManagerRejectsZeroFrames(t *testing.T) {
	d := newMockDevice()
	if _, err := NewFrameManager(d, 1, 0, 3); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("got %v, want ErrNoFrames", err)
	}
}

func TestFrameManagerSlotsStartSignaled(t *testing.T) {
	d := newMockDevice()
	fm, err := NewFrameManager(d, 1, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer fm.Destroy()

	seen := make(map[Fence]bool)
	for i := 0; i < fm.FrameCount(); i++ {
		slot, err := fm.frame(i)
		if err != nil {
			t.Fatal(err)
		}
		if !d.fences[slot.InFlight] {
			t.Errorf("slot %d fence not signaled at creation", i)
		}
		if seen[slot.InFlight] {
			t.Errorf("slot %d shares a fence", i)
		}
		seen[slot.InFlight] = true
	}
	if got := d.live["semaphore"]; got != 3 {
		t.Errorf("got %d semaphores, want 3 (render finished semaphores are lazy)", got)
	}
}

func TestFrameManagerNextFrameRoundRobin(t *testing.T) {
	d := newMockDevice()
	fm, err := NewFrameManager(d, 1, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer fm.Destroy()

	for k := 0; k < 7; k++ {
		slot, idx := fm.NextFrame()
		if idx != k%3 || slot.Index != idx {
			t.Fatalf("frame %d: got slot %d (index %d), want %d", k, idx, slot.Index, k%3)
		}
	}
	if fm.Submitted() != 7 {
		t.Errorf("got %d submitted, want 7", fm.Submitted())
	}
}

func TestFrameManagerSwapchainImageIsLazy(t *testing.T) {
	d := newMockDevice()
	fm, err := NewFrameManager(d, 1, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer fm.Destroy()

	img, err := fm.SwapchainImage(2)
	if err != nil {
		t.Fatal(err)
	}
	if d.live["semaphore"] != 3 {
		t.Fatalf("got %d semaphores, want 3", d.live["semaphore"])
	}
	again, err := fm.SwapchainImage(2)
	if err != nil {
		t.Fatal(err)
	}
	if again != img || d.live["semaphore"] != 3 {
		t.Error("second lookup of the same image created a new semaphore")
	}

	for _, idx := range []int{-1, 4} {
		if _, err := fm.SwapchainImage(idx); !errors.Is(err, ErrInvalidImageIndex) {
			t.Errorf("image %d: got %v, want ErrInvalidImageIndex", idx, err)
		}
	}
	if _, err := fm.frame(2); !errors.Is(err, ErrInvalidFrameIndex) {
		t.Errorf("got %v, want ErrInvalidFrameIndex", err)
	}
}

func TestFrameManagerCleansUpPartialSlots(t *testing.T) {
	for _, op := range []string{"CreateSemaphore", "CreateFence", "AllocateCommandBuffer"} {
		t.Run(op, func(t *testing.T) {
			d := newMockDevice()
			d.fail[op] = errInjected
			_, err := NewFrameManager(d, 1, 2, 3)
			if !errors.Is(err, errInjected) {
				t.Fatalf("got %v, want injected failure", err)
			}
			var gpuErr *GPUError
			if !errors.As(err, &gpuErr) {
				t.Errorf("got %T, want *GPUError", err)
			}
			d.assertNoLeaks(t)
		})
	}
}

func TestFrameManagerDestroyWaitsIdle(t *testing.T) {
	d := newMockDevice()
	fm, err := NewFrameManager(d, 1, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := fm.SwapchainImage(i); err != nil {
			t.Fatal(err)
		}
	}
	fm.Destroy()
	if d.waitIdles != 1 {
		t.Errorf("got %d idle waits, want 1", d.waitIdles)
	}
	d.assertNoLeaks(t)
}
