package renderer

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/sfenley/meshterm/internal/engine/model"
	"github.com/sfenley/meshterm/internal/logger"
)

// geometryState tracks which mesh generation currently lives in the GPU
// vertex/index buffers.
type geometryState struct {
	generation uint64
	valid      bool
}

// needsUpload reports whether the cached buffers are stale for the given
// mesh generation.
func (g *geometryState) needsUpload(generation uint64) bool {
	return !g.valid || g.generation != generation
}

func (g *geometryState) markUploaded(generation uint64) {
	g.generation = generation
	g.valid = true
}

// textureKey identifies a texture upload by size and the identity of its
// backing byte array. Matching all three skips the copy entirely. A caller
// mutating pixel bytes in place without replacing the slice will not be
// detected; callers allocate a fresh buffer per texture change.
type textureKey struct {
	width  int
	height int
	data   *byte
}

func keyForTexture(t *model.Texture) textureKey {
	k := textureKey{width: t.Width, height: t.Height}
	if len(t.Pixels) > 0 {
		k.data = &t.Pixels[0]
	}
	return k
}

// textureState tracks one GPU texture slot (diffuse, normal, or sky).
type textureState struct {
	key   textureKey
	valid bool

	image  vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
}

func (t *textureState) needsUpload(tex *model.Texture) bool {
	return !t.valid || t.key != keyForTexture(tex)
}

// updateGeometry re-uploads vertex and index buffers when the mesh
// generation moved past the cached one.
func (r *Renderer) updateGeometry(mesh *model.Mesh) error {
	if !r.geometry.needsUpload(mesh.Generation()) {
		return nil
	}
	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return fmt.Errorf("mesh has no geometry")
	}

	// The other in-flight frame may still read the old buffers.
	vk.DeviceWaitIdle(r.device)
	r.destroyGeometryBuffers()

	vertexBytes := rawBytes(unsafe.Pointer(&mesh.Vertices[0]), len(mesh.Vertices)*int(unsafe.Sizeof(model.Vertex{})))
	indexBytes := rawBytes(unsafe.Pointer(&mesh.Indices[0]), len(mesh.Indices)*4)

	var err error
	r.vertexBuffer, r.vertexBufferMemory, err = r.uploadDeviceLocal(vertexBytes,
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return fmt.Errorf("vertex upload: %w", err)
	}

	r.indexBuffer, r.indexBufferMemory, err = r.uploadDeviceLocal(indexBytes,
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		return fmt.Errorf("index upload: %w", err)
	}

	r.indexCount = uint32(len(mesh.Indices))
	r.geometry.markUploaded(mesh.Generation())

	logger.Debug("geometry uploaded",
		zap.Uint64("generation", mesh.Generation()),
		zap.Int("vertices", len(mesh.Vertices)),
		zap.Int("indices", len(mesh.Indices)))
	return nil
}

// updateTexture refreshes one texture slot. A size or identity mismatch
// destroys and recreates the image at the new dimensions and re-copies the
// bytes; recreation marks every frame slot's descriptor set dirty.
func (r *Renderer) updateTexture(slot *textureState, tex *model.Texture, name string) error {
	if !slot.needsUpload(tex) {
		return nil
	}

	recreate := !slot.valid || slot.key.width != tex.Width || slot.key.height != tex.Height
	if recreate {
		if slot.valid {
			// In-flight frames may still sample the old image.
			vk.DeviceWaitIdle(r.device)
		}
		r.destroyTexture(slot)
		if err := r.createTextureImage(slot, tex.Width, tex.Height); err != nil {
			return fmt.Errorf("%s texture image: %w", name, err)
		}
		for i := range r.slots {
			r.slots[i].descriptorDirty = true
		}
	}

	if err := r.copyTexturePixels(slot, tex); err != nil {
		return fmt.Errorf("%s texture copy: %w", name, err)
	}

	slot.key = keyForTexture(tex)
	slot.valid = true

	logger.Debug("texture uploaded",
		zap.String("slot", name),
		zap.Int("width", tex.Width),
		zap.Int("height", tex.Height),
		zap.Bool("recreated", recreate))
	return nil
}

func (r *Renderer) createTextureImage(slot *textureState, width, height int) error {
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    colorFormat,
		Extent: vk.Extent3D{
			Width:  uint32(width),
			Height: uint32(height),
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	if res := vk.CreateImage(r.device, &imageInfo, nil, &image); res != vk.Success {
		return fmt.Errorf("vkCreateImage failed: %d", res)
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(r.device, image, &memReqs)
	memReqs.Deref()

	memTypeIndex, err := r.findMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(r.device, image, nil)
		return err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(r.device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyImage(r.device, image, nil)
		return fmt.Errorf("vkAllocateMemory failed: %d", res)
	}
	vk.BindImageMemory(r.device, image, memory, 0)

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
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

	var view vk.ImageView
	if res := vk.CreateImageView(r.device, &viewInfo, nil, &view); res != vk.Success {
		vk.DestroyImage(r.device, image, nil)
		vk.FreeMemory(r.device, memory, nil)
		return fmt.Errorf("vkCreateImageView failed: %d", res)
	}

	slot.image = image
	slot.memory = memory
	slot.view = view
	return nil
}

// copyTexturePixels streams pixel bytes into the texture image through a
// transient staging buffer, with the usual undefined -> transfer-dst ->
// shader-read layout transitions.
func (r *Renderer) copyTexturePixels(slot *textureState, tex *model.Texture) error {
	stagingBuf, stagingMem, err := r.createBuffer(len(tex.Pixels),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	defer func() {
		vk.DestroyBuffer(r.device, stagingBuf, nil)
		vk.FreeMemory(r.device, stagingMem, nil)
	}()

	var mapped unsafe.Pointer
	vk.MapMemory(r.device, stagingMem, 0, vk.DeviceSize(len(tex.Pixels)), 0, &mapped)
	vk.Memcopy(mapped, tex.Pixels)
	vk.UnmapMemory(r.device, stagingMem)

	cmd, err := r.beginOneTimeCommands()
	if err != nil {
		return err
	}

	subresource := vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}

	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1,
		[]vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           vk.ImageLayoutTransferDstOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               slot.image,
			SubresourceRange:    subresource,
			SrcAccessMask:       0,
			DstAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		}})

	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: uint32(tex.Width), Height: uint32(tex.Height), Depth: 1},
	}
	vk.CmdCopyBufferToImage(cmd, stagingBuf, slot.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		0, 0, nil, 0, nil, 1,
		[]vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayoutTransferDstOptimal,
			NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               slot.image,
			SubresourceRange:    subresource,
			SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
		}})

	return r.endOneTimeCommands(cmd)
}

func (r *Renderer) destroyGeometryBuffers() {
	if r.vertexBuffer != vk.NullBuffer {
		vk.DestroyBuffer(r.device, r.vertexBuffer, nil)
		r.vertexBuffer = vk.NullBuffer
	}
	if r.vertexBufferMemory != vk.NullDeviceMemory {
		vk.FreeMemory(r.device, r.vertexBufferMemory, nil)
		r.vertexBufferMemory = vk.NullDeviceMemory
	}
	if r.indexBuffer != vk.NullBuffer {
		vk.DestroyBuffer(r.device, r.indexBuffer, nil)
		r.indexBuffer = vk.NullBuffer
	}
	if r.indexBufferMemory != vk.NullDeviceMemory {
		vk.FreeMemory(r.device, r.indexBufferMemory, nil)
		r.indexBufferMemory = vk.NullDeviceMemory
	}
	r.indexCount = 0
	r.geometry.valid = false
}

func (r *Renderer) destroyTexture(slot *textureState) {
	if slot.view != vk.NullImageView {
		vk.DestroyImageView(r.device, slot.view, nil)
		slot.view = vk.NullImageView
	}
	if slot.image != vk.NullImage {
		vk.DestroyImage(r.device, slot.image, nil)
		slot.image = vk.NullImage
	}
	if slot.memory != vk.NullDeviceMemory {
		vk.FreeMemory(r.device, slot.memory, nil)
		slot.memory = vk.NullDeviceMemory
	}
	slot.valid = false
}
