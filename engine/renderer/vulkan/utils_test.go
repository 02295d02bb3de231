package vulkan

import (
	"errors"
	"strings"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/renderer"
)

func TestResultErrorUnwrapsToRendererErrors(t *testing.T) {
	tests := []struct {
		result vk.Result
		want   error
	}{
		{vk.ErrorOutOfDate, renderer.ErrOutOfDate},
		{vk.Suboptimal, renderer.ErrSuboptimal},
		{vk.Timeout, renderer.ErrFenceTimeout},
		{vk.ErrorDeviceLost, renderer.ErrDeviceLost},
	}
	for _, tt := range tests {
		err := resultError("vkOp", tt.result)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want it to wrap %v", VulkanResultString(tt.result), err, tt.want)
		}
	}

	if err := resultError("vkOp", vk.Success); err != nil {
		t.Errorf("success produced %v", err)
	}

	err := resultError("vkAllocateMemory", vk.ErrorOutOfDeviceMemory)
	if errors.Is(err, renderer.ErrOutOfDate) || errors.Is(err, renderer.ErrDeviceLost) {
		t.Errorf("out of memory matched a frame loop sentinel: %v", err)
	}
	if !strings.Contains(err.Error(), "vkAllocateMemory") || !strings.Contains(err.Error(), "VK_ERROR_OUT_OF_DEVICE_MEMORY") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestVulkanResultString(t *testing.T) {
	if got := VulkanResultString(vk.ErrorSurfaceLost); got != "VK_ERROR_SURFACE_LOST_KHR" {
		t.Errorf("got %q", got)
	}
	if got := VulkanResultString(vk.Result(-12345)); got != "VkResult(-12345)" {
		t.Errorf("got %q", got)
	}
	if !VulkanResultIsSuccess(vk.Suboptimal) || VulkanResultIsSuccess(vk.ErrorOutOfDate) {
		t.Error("success classification is wrong")
	}
}

func TestSafeStrings(t *testing.T) {
	if got := VulkanSafeString(""); got != "\x00" {
		t.Errorf("got %q", got)
	}
	if got := VulkanSafeString("main"); got != "main\x00" {
		t.Errorf("got %q", got)
	}
	if got := VulkanSafeString("main\x00"); got != "main\x00" {
		t.Errorf("terminated string changed to %q", got)
	}

	in := []string{"VK_KHR_surface", "VK_KHR_swapchain\x00"}
	out := VulkanSafeStrings(in)
	if out[0] != "VK_KHR_surface\x00" || out[1] != "VK_KHR_swapchain\x00" {
		t.Errorf("got %q", out)
	}
	if in[0] != "VK_KHR_surface" {
		t.Error("input slice was modified")
	}
}

func TestCString(t *testing.T) {
	var buf [16]byte
	copy(buf[:], "llvmpipe")
	if got := cString(buf[:]); got != "llvmpipe" {
		t.Errorf("got %q", got)
	}
	if got := cString([]byte("full")); got != "full" {
		t.Errorf("unterminated buffer: got %q", got)
	}
}

func TestAppendUnique(t *testing.T) {
	got := appendUnique([]string{"VK_KHR_surface"}, "VK_KHR_surface", "VK_KHR_xcb_surface", "VK_KHR_xcb_surface")
	if len(got) != 2 || got[0] != "VK_KHR_surface" || got[1] != "VK_KHR_xcb_surface" {
		t.Errorf("got %v", got)
	}
}
