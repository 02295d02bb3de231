package vulkan

import (
	"testing"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/inflight/engine/renderer"
)

func TestBufferFlags(t *testing.T) {
	got := bufferUsageFlags(renderer.BufferUsageVertex | renderer.BufferUsageTransferDst)
	want := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit)
	if got != want {
		t.Errorf("usage: got %#x, want %#x", got, want)
	}

	props := memoryPropertyFlags(renderer.MemoryPropertyHostVisible | renderer.MemoryPropertyHostCoherent)
	if props != uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit) {
		t.Errorf("memory: got %#x", props)
	}
}

func TestShaderStageFlags(t *testing.T) {
	got := shaderStageFlags(renderer.ShaderStageVertex | renderer.ShaderStageFragment)
	if got != vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit) {
		t.Errorf("got %#x", got)
	}
}

func TestVertexFormat(t *testing.T) {
	if f, err := vertexFormat(renderer.VertexFormatFloat32x2); err != nil || f != vk.FormatR32g32Sfloat {
		t.Errorf("vec2: %d, %v", f, err)
	}
	if f, err := vertexFormat(renderer.VertexFormatFloat32x3); err != nil || f != vk.FormatR32g32b32Sfloat {
		t.Errorf("vec3: %d, %v", f, err)
	}
	if _, err := vertexFormat(renderer.VertexFormat(99)); err == nil {
		t.Error("unknown vertex format accepted")
	}
}

func TestSubpassDependency(t *testing.T) {
	dep := subpassDependency(renderer.SubpassDependency{
		SrcSubpass: renderer.SubpassExternal,
		DstSubpass: 0,
		SrcStage:   renderer.PipelineStageColorAttachmentOutput,
		DstStage:   renderer.PipelineStageColorAttachmentOutput,
		DstAccess:  renderer.AccessColorAttachmentWrite,
		ByRegion:   true,
	})
	if dep.SrcSubpass != vk.SubpassExternal {
		t.Errorf("src subpass %d", dep.SrcSubpass)
	}
	if dep.SrcStageMask != vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) {
		t.Errorf("src stage %#x", dep.SrcStageMask)
	}
	if dep.DstAccessMask != vk.AccessFlags(vk.AccessColorAttachmentWriteBit) {
		t.Errorf("dst access %#x", dep.DstAccessMask)
	}
	if dep.DependencyFlags != vk.DependencyFlags(vk.DependencyByRegionBit) {
		t.Errorf("flags %#x", dep.DependencyFlags)
	}
}

func TestShaderCode(t *testing.T) {
	code, err := shaderCode([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 2 || code[0] != 0x07230203 || code[1] != 0x00010000 {
		t.Errorf("got %#x", code)
	}
	if _, err := shaderCode([]byte{1, 2, 3}); err == nil {
		t.Error("partial word accepted")
	}
	if _, err := shaderCode(nil); err == nil {
		t.Error("empty blob accepted")
	}
}

func TestFenceTimeout(t *testing.T) {
	if fenceTimeout(renderer.NoTimeout) != ^uint64(0) {
		t.Error("NoTimeout is not infinite")
	}
	if fenceTimeout(-time.Second) != ^uint64(0) {
		t.Error("negative timeout is not infinite")
	}
	if got := fenceTimeout(2 * time.Millisecond); got != 2_000_000 {
		t.Errorf("got %d", got)
	}
}
