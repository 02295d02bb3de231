package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/renderer"
)

func TestOptionalSemaphore(t *testing.T) {
	h := newHandleTable()
	id := renderer.Semaphore(h.semaphores.Acquire(vk.NullSemaphore))

	waits, err := h.optionalSemaphore(0)
	if err != nil || waits != nil {
		t.Errorf("zero handle: got %v, %v, want no semaphores", waits, err)
	}

	waits, err = h.optionalSemaphore(id)
	if err != nil || len(waits) != 1 {
		t.Errorf("registered handle: got %v, %v", waits, err)
	}

	if _, err := h.optionalSemaphore(id + 1); !errors.Is(err, errUnknownHandle) {
		t.Errorf("unknown handle: got %v, want errUnknownHandle", err)
	}

	if _, err := h.semaphores.Release(uint64(id)); err != nil {
		t.Fatal(err)
	}
	if _, err := h.optionalSemaphore(id); !errors.Is(err, errUnknownHandle) {
		t.Errorf("released handle: got %v, want errUnknownHandle", err)
	}
}
