package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanImage is an image with the color view rendered through. Swapchain
// images are owned by the swapchain, so only the view is destroyed here.
type VulkanImage struct {
	Handle vk.Image
	View   vk.ImageView
	Width  uint32
	Height uint32
}

func newSwapchainImage(context *VulkanContext, image vk.Image, format vk.Format, extent vk.Extent2D) (*VulkanImage, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view); res != vk.Success {
		return nil, resultError("vkCreateImageView", res)
	}
	return &VulkanImage{
		Handle: image,
		View:   view,
		Width:  extent.Width,
		Height: extent.Height,
	}, nil
}

func (vi *VulkanImage) destroyView(context *VulkanContext) {
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
		vi.View = vk.NullImageView
	}
}
