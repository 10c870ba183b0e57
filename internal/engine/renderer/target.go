package renderer

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/sfenley/meshterm/internal/logger"
)

const (
	colorFormat = vk.FormatR8g8b8a8Unorm
	depthFormat = vk.FormatD32Sfloat
)

// createOffscreenTarget builds the color and depth attachments at the
// current size. The color image is created with transfer-src usage so each
// frame can be copied into a staging buffer for host readback.
func (r *Renderer) createOffscreenTarget() error {
	colorImageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    colorFormat,
		Extent: vk.Extent3D{
			Width:  uint32(r.width),
			Height: uint32(r.height),
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit),
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var colorImage vk.Image
	if res := vk.CreateImage(r.device, &colorImageInfo, nil, &colorImage); res != vk.Success {
		return fmt.Errorf("vkCreateImage (color) failed: %d", res)
	}
	r.colorImage = colorImage

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(r.device, colorImage, &memReqs)
	memReqs.Deref()

	memTypeIndex, err := r.findMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return err
	}

	colorAllocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}

	var colorMem vk.DeviceMemory
	if res := vk.AllocateMemory(r.device, &colorAllocInfo, nil, &colorMem); res != vk.Success {
		return fmt.Errorf("vkAllocateMemory (color) failed: %d", res)
	}
	r.colorImageMemory = colorMem
	vk.BindImageMemory(r.device, colorImage, colorMem, 0)

	colorViewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    colorImage,
		ViewType: vk.ImageViewType2d,
		Format:   colorFormat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var colorView vk.ImageView
	if res := vk.CreateImageView(r.device, &colorViewInfo, nil, &colorView); res != vk.Success {
		return fmt.Errorf("vkCreateImageView (color) failed: %d", res)
	}
	r.colorImageView = colorView

	depthImageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    depthFormat,
		Extent: vk.Extent3D{
			Width:  uint32(r.width),
			Height: uint32(r.height),
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var depthImage vk.Image
	if res := vk.CreateImage(r.device, &depthImageInfo, nil, &depthImage); res != vk.Success {
		return fmt.Errorf("vkCreateImage (depth) failed: %d", res)
	}
	r.depthImage = depthImage

	vk.GetImageMemoryRequirements(r.device, depthImage, &memReqs)
	memReqs.Deref()

	memTypeIndex, err = r.findMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return err
	}

	depthAllocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}

	var depthMem vk.DeviceMemory
	if res := vk.AllocateMemory(r.device, &depthAllocInfo, nil, &depthMem); res != vk.Success {
		return fmt.Errorf("vkAllocateMemory (depth) failed: %d", res)
	}
	r.depthImageMemory = depthMem
	vk.BindImageMemory(r.device, depthImage, depthMem, 0)

	depthViewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    depthImage,
		ViewType: vk.ImageViewType2d,
		Format:   depthFormat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var depthView vk.ImageView
	if res := vk.CreateImageView(r.device, &depthViewInfo, nil, &depthView); res != vk.Success {
		return fmt.Errorf("vkCreateImageView (depth) failed: %d", res)
	}
	r.depthImageView = depthView

	return nil
}

// createRenderPass builds the single-subpass render pass. The color
// attachment ends in transfer-src layout so the readback copy can follow
// without an extra barrier.
func (r *Renderer) createRenderPass() error {
	colorAttachment := vk.AttachmentDescription{
		Format:         colorFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutTransferSrcOptimal,
	}

	depthAttachment := vk.AttachmentDescription{
		Format:         depthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	colorRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	depthRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorRef},
		PDepthStencilAttachment: &depthRef,
	}

	renderPassInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 2,
		PAttachments:    []vk.AttachmentDescription{colorAttachment, depthAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}

	var renderPass vk.RenderPass
	if res := vk.CreateRenderPass(r.device, &renderPassInfo, nil, &renderPass); res != vk.Success {
		return fmt.Errorf("vkCreateRenderPass failed: %d", res)
	}
	r.renderPass = renderPass
	return nil
}

func (r *Renderer) createFramebuffer() error {
	attachments := []vk.ImageView{r.colorImageView, r.depthImageView}

	fbInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      r.renderPass,
		AttachmentCount: 2,
		PAttachments:    attachments,
		Width:           uint32(r.width),
		Height:          uint32(r.height),
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(r.device, &fbInfo, nil, &framebuffer); res != vk.Success {
		return fmt.Errorf("vkCreateFramebuffer failed: %d", res)
	}
	r.framebuffer = framebuffer
	return nil
}

// createStagingBuffers allocates the rotating pool of host-visible readback
// buffers and maps them persistently. Host-cached memory is preferred for
// CPU readback speed; coherent memory is the fallback.
func (r *Renderer) createStagingBuffers() error {
	size := r.width * r.height * 4

	for i := range r.staging {
		bufferInfo := vk.BufferCreateInfo{
			SType:       vk.StructureTypeBufferCreateInfo,
			Size:        vk.DeviceSize(size),
			Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
			SharingMode: vk.SharingModeExclusive,
		}

		var buffer vk.Buffer
		if res := vk.CreateBuffer(r.device, &bufferInfo, nil, &buffer); res != vk.Success {
			return fmt.Errorf("vkCreateBuffer (staging %d) failed: %d", i, res)
		}

		var memReqs vk.MemoryRequirements
		vk.GetBufferMemoryRequirements(r.device, buffer, &memReqs)
		memReqs.Deref()

		memTypeIndex, err := r.findMemoryType(memReqs.MemoryTypeBits,
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCachedBit))
		if err != nil {
			memTypeIndex, err = r.findMemoryType(memReqs.MemoryTypeBits,
				vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
			if err != nil {
				return err
			}
		}

		allocInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  memReqs.Size,
			MemoryTypeIndex: memTypeIndex,
		}

		var memory vk.DeviceMemory
		if res := vk.AllocateMemory(r.device, &allocInfo, nil, &memory); res != vk.Success {
			return fmt.Errorf("vkAllocateMemory (staging %d) failed: %d", i, res)
		}
		vk.BindBufferMemory(r.device, buffer, memory, 0)

		var mapped unsafe.Pointer
		if res := vk.MapMemory(r.device, memory, 0, vk.DeviceSize(size), 0, &mapped); res != vk.Success {
			return fmt.Errorf("vkMapMemory (staging %d) failed: %d", i, res)
		}

		r.staging[i] = stagingSlot{
			buffer: buffer,
			memory: memory,
			mapped: mapped,
			size:   size,
		}
	}

	return nil
}

// Resize tears down and recreates the size-dependent resources. All
// in-flight work is drained first and every frame slot is marked not-ready,
// so the next N Render calls return no frame.
func (r *Renderer) Resize(width, height int) error {
	if width == r.width && height == r.height {
		return nil
	}
	if width < 1 || height < 1 {
		return fmt.Errorf("invalid render target size %dx%d", width, height)
	}

	vk.DeviceWaitIdle(r.device)

	r.destroyFramebuffer()
	r.destroyPipelines()
	r.destroyOffscreenTarget()
	r.destroyStagingBuffers()

	r.width = width
	r.height = height

	if err := r.createOffscreenTarget(); err != nil {
		return err
	}
	if err := r.createFramebuffer(); err != nil {
		return err
	}
	if err := r.createStagingBuffers(); err != nil {
		return err
	}
	if err := r.createPipelines(); err != nil {
		return err
	}

	r.invalidateSlots()

	logger.Debug("render target resized", zap.Int("width", width), zap.Int("height", height))
	return nil
}

// invalidateSlots discards any pending readbacks. Every slot reports
// not-ready until a new frame has been submitted through it, so no pixels
// from before a resize can surface afterwards.
func (r *Renderer) invalidateSlots() {
	for i := range r.slots {
		r.slots[i].ready = false
	}
	r.stagingCursor = 0
}

func (r *Renderer) destroyOffscreenTarget() {
	if r.colorImageView != vk.NullImageView {
		vk.DestroyImageView(r.device, r.colorImageView, nil)
		r.colorImageView = vk.NullImageView
	}
	if r.colorImage != vk.NullImage {
		vk.DestroyImage(r.device, r.colorImage, nil)
		r.colorImage = vk.NullImage
	}
	if r.colorImageMemory != vk.NullDeviceMemory {
		vk.FreeMemory(r.device, r.colorImageMemory, nil)
		r.colorImageMemory = vk.NullDeviceMemory
	}
	if r.depthImageView != vk.NullImageView {
		vk.DestroyImageView(r.device, r.depthImageView, nil)
		r.depthImageView = vk.NullImageView
	}
	if r.depthImage != vk.NullImage {
		vk.DestroyImage(r.device, r.depthImage, nil)
		r.depthImage = vk.NullImage
	}
	if r.depthImageMemory != vk.NullDeviceMemory {
		vk.FreeMemory(r.device, r.depthImageMemory, nil)
		r.depthImageMemory = vk.NullDeviceMemory
	}
}

func (r *Renderer) destroyFramebuffer() {
	if r.framebuffer != vk.NullFramebuffer {
		vk.DestroyFramebuffer(r.device, r.framebuffer, nil)
		r.framebuffer = vk.NullFramebuffer
	}
}

func (r *Renderer) destroyStagingBuffers() {
	for i := range r.staging {
		if r.staging[i].mapped != nil {
			vk.UnmapMemory(r.device, r.staging[i].memory)
		}
		if r.staging[i].buffer != vk.NullBuffer {
			vk.DestroyBuffer(r.device, r.staging[i].buffer, nil)
		}
		if r.staging[i].memory != vk.NullDeviceMemory {
			vk.FreeMemory(r.device, r.staging[i].memory, nil)
		}
		r.staging[i] = stagingSlot{}
	}
}
