// Package renderer renders skinned meshes off-screen through Vulkan and
// hands back finished frames as RGBA pixel buffers. Frames are pipelined:
// each Render call submits GPU work for the current tick and returns the
// pixels of the frame that completed one slot rotation earlier.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/sfenley/meshterm/internal/engine/model"
	"github.com/sfenley/meshterm/internal/logger"
)

// framesInFlight is the depth of the frame pipeline. Render returns nil for
// the first framesInFlight calls while the pipeline fills.
const framesInFlight = 2

// stagingCount sizes the rotating readback pool. One more than the frame
// slots so a buffer is never written while its previous contents are still
// being reaped.
const stagingCount = framesInFlight + 1

// frameSlot is the per-in-flight-frame state.
type frameSlot struct {
	commandBuffer vk.CommandBuffer
	fence         vk.Fence

	// ready means this slot has a submitted frame whose pixels can be
	// reaped on the next pass.
	ready        bool
	stagingIndex int

	uniformBuffer   vk.Buffer
	uniformMemory   vk.DeviceMemory
	uniformMapped   unsafe.Pointer
	descriptorSet   vk.DescriptorSet
	descriptorDirty bool
}

// stagingSlot is one host-visible readback buffer, persistently mapped.
type stagingSlot struct {
	buffer vk.Buffer
	memory vk.DeviceMemory
	mapped unsafe.Pointer
	size   int
}

// FrameInput carries everything one tick needs rendered.
type FrameInput struct {
	Mesh    *model.Mesh
	Diffuse *model.Texture
	Normal  *model.Texture
	Sky     *model.Texture

	BoneMatrices [model.MaxBones]mgl32.Mat4

	ModelMatrix mgl32.Mat4
	ViewMatrix  mgl32.Mat4
	ProjMatrix  mgl32.Mat4
	CameraPos   mgl32.Vec3
	LightDir    mgl32.Vec3

	Lighting    bool
	Wireframe   bool
	SkyEnabled  bool
	SkyTextured bool
	AlphaMode   int

	FogEnabled bool
	FogColor   mgl32.Vec3
	FogStart   float32
	FogEnd     float32
}

// Renderer owns all GPU state. It is not safe for concurrent use; the
// render loop goroutine is its only caller.
type Renderer struct {
	width  int
	height int

	shaderDir string

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	graphicsQueue  vk.Queue
	queueFamily    uint32
	commandPool    vk.CommandPool

	colorImage       vk.Image
	colorImageMemory vk.DeviceMemory
	colorImageView   vk.ImageView
	depthImage       vk.Image
	depthImageMemory vk.DeviceMemory
	depthImageView   vk.ImageView

	renderPass  vk.RenderPass
	framebuffer vk.Framebuffer

	descriptorSetLayout vk.DescriptorSetLayout
	descriptorPool      vk.DescriptorPool
	pipelineLayout      vk.PipelineLayout
	sampler             vk.Sampler

	vertShader    vk.ShaderModule
	fragShader    vk.ShaderModule
	skyVertShader vk.ShaderModule
	skyFragShader vk.ShaderModule

	solidPipeline vk.Pipeline
	wirePipeline  vk.Pipeline
	skyPipeline   vk.Pipeline

	vertexBuffer       vk.Buffer
	vertexBufferMemory vk.DeviceMemory
	indexBuffer        vk.Buffer
	indexBufferMemory  vk.DeviceMemory
	indexCount         uint32
	geometry           geometryState

	diffuse textureState
	normal  textureState
	sky     textureState

	// Stable 1x1 stand-in bound to the sky slot when no sky image is set,
	// so the identity-keyed cache skips re-uploads.
	skyPlaceholder *model.Texture

	slots         [framesInFlight]frameSlot
	frameCursor   int
	stagingCursor int
	staging       [stagingCount]stagingSlot
}

// New creates a renderer with an offscreen target of the given size.
// shaderDir holds the compiled SPIR-V modules.
func New(width, height int, shaderDir string) (*Renderer, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid render target size %dx%d", width, height)
	}

	r := &Renderer{
		width:          width,
		height:         height,
		shaderDir:      shaderDir,
		skyPlaceholder: model.DefaultDiffuse(),
	}

	if err := r.initVulkan(); err != nil {
		return nil, err
	}
	if err := r.createOffscreenTarget(); err != nil {
		return nil, err
	}
	if err := r.createRenderPass(); err != nil {
		return nil, err
	}
	if err := r.createFramebuffer(); err != nil {
		return nil, err
	}
	if err := r.createStagingBuffers(); err != nil {
		return nil, err
	}
	if err := r.loadShaders(); err != nil {
		return nil, err
	}
	if err := r.createDescriptorSetLayout(); err != nil {
		return nil, err
	}
	if err := r.createDescriptorPool(); err != nil {
		return nil, err
	}
	if err := r.createTextureSampler(); err != nil {
		return nil, err
	}
	if err := r.createPipelineLayout(); err != nil {
		return nil, err
	}
	if err := r.createPipelines(); err != nil {
		return nil, err
	}
	if err := r.createFrameSlots(); err != nil {
		return nil, err
	}

	logger.Info("renderer initialized", zap.Int("width", width), zap.Int("height", height))
	return r, nil
}

// Size returns the current render target dimensions.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// Render submits one frame and returns the pixels of the frame this slot
// submitted a full rotation ago, or nil while the pipeline is still
// filling. The returned buffer is valid until the same slot comes around
// again (framesInFlight calls later).
func (r *Renderer) Render(in *FrameInput) ([]byte, error) {
	slot := &r.slots[r.frameCursor]

	// 1. Wait until this slot's previous submission finished.
	vk.WaitForFences(r.device, 1, []vk.Fence{slot.fence}, vk.True, ^uint64(0))

	// 2. Reap the completed frame before anything overwrites the slot.
	var reaped []byte
	if slot.ready {
		reaped = r.reapFrame(slot)
	}

	// 3. Reset the fence and claim this tick's staging buffer. The staging
	// cursor rotates independently of the slot cursor.
	vk.ResetFences(r.device, 1, []vk.Fence{slot.fence})
	stagingIdx := r.stagingCursor
	r.stagingCursor = (r.stagingCursor + 1) % stagingCount

	// 4. Refresh GPU resources and per-frame data.
	if err := r.updateGeometry(in.Mesh); err != nil {
		return nil, err
	}
	if err := r.updateTexture(&r.diffuse, in.Diffuse, "diffuse"); err != nil {
		return nil, err
	}
	if err := r.updateTexture(&r.normal, in.Normal, "normal"); err != nil {
		return nil, err
	}
	skyTex := in.Sky
	if skyTex == nil {
		skyTex = r.skyPlaceholder
	}
	if err := r.updateTexture(&r.sky, skyTex, "sky"); err != nil {
		return nil, err
	}
	if slot.descriptorDirty {
		r.rewriteDescriptorSet(slot)
	}
	r.writeUniforms(slot, in)

	// 5. Record and submit.
	r.recordCommands(slot, stagingIdx, in)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{slot.commandBuffer},
	}
	if res := vk.QueueSubmit(r.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, slot.fence); res != vk.Success {
		// A failed submit leaves the queue in an unknown state; there is
		// no safe retry.
		logger.Fatal("vkQueueSubmit failed", zap.Int("result", int(res)))
	}

	slot.ready = true
	slot.stagingIndex = stagingIdx
	r.frameCursor = (r.frameCursor + 1) % framesInFlight

	// 6. Hand back the frame reaped in step 2 (nil during pipeline fill).
	return reaped, nil
}

// reapFrame makes the slot's finished pixels visible to the host and
// returns the mapped buffer.
func (r *Renderer) reapFrame(slot *frameSlot) []byte {
	staging := &r.staging[slot.stagingIndex]

	memRange := vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: staging.memory,
		Offset: 0,
		Size:   vk.DeviceSize(staging.size),
	}
	vk.InvalidateMappedMemoryRanges(r.device, 1, []vk.MappedMemoryRange{memRange})

	return rawBytes(staging.mapped, staging.size)
}

// recordCommands records the full frame: clear, optional sky pass, mesh
// draw with the live wireframe choice, then the copy into this tick's
// staging buffer with a barrier to host reads.
func (r *Renderer) recordCommands(slot *frameSlot, stagingIdx int, in *FrameInput) {
	cmd := slot.commandBuffer
	vk.ResetCommandBuffer(cmd, 0)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	vk.BeginCommandBuffer(cmd, &beginInfo)

	clearValues := []vk.ClearValue{
		vk.NewClearValue([]float32{0, 0, 0, 1}),
		vk.NewClearDepthStencil(1.0, 0),
	}

	renderPassBegin := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      r.renderPass,
		Framebuffer:     r.framebuffer,
		RenderArea:      vk.Rect2D{Offset: vk.Offset2D{X: 0, Y: 0}, Extent: vk.Extent2D{Width: uint32(r.width), Height: uint32(r.height)}},
		ClearValueCount: 2,
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(cmd, &renderPassBegin, vk.SubpassContentsInline)

	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, r.pipelineLayout, 0, 1,
		[]vk.DescriptorSet{slot.descriptorSet}, 0, nil)

	if in.SkyEnabled {
		vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, r.skyPipeline)
		vk.CmdDraw(cmd, 3, 1, 0, 0)
	}

	pipeline := r.solidPipeline
	if in.Wireframe {
		pipeline = r.wirePipeline
	}
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, pipeline)

	offsets := []vk.DeviceSize{0}
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{r.vertexBuffer}, offsets)
	vk.CmdBindIndexBuffer(cmd, r.indexBuffer, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexed(cmd, r.indexCount, 1, 0, 0, 0)

	vk.CmdEndRenderPass(cmd)

	// Render pass final layout is transfer-src; copy straight out.
	staging := &r.staging[stagingIdx]
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
		ImageExtent: vk.Extent3D{Width: uint32(r.width), Height: uint32(r.height), Depth: 1},
	}
	vk.CmdCopyImageToBuffer(cmd, r.colorImage, vk.ImageLayoutTransferSrcOptimal, staging.buffer, 1, []vk.BufferImageCopy{region})

	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageHostBit),
		0, 0, nil, 1,
		[]vk.BufferMemoryBarrier{{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessHostReadBit),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              staging.buffer,
			Offset:              0,
			Size:                vk.DeviceSize(staging.size),
		}}, 0, nil)

	vk.EndCommandBuffer(cmd)
}

// Destroy waits out all in-flight work and releases every GPU resource.
func (r *Renderer) Destroy() {
	if r.device == nil {
		return
	}

	fences := make([]vk.Fence, 0, framesInFlight)
	for i := range r.slots {
		if r.slots[i].fence != vk.NullFence {
			fences = append(fences, r.slots[i].fence)
		}
	}
	if len(fences) > 0 {
		vk.WaitForFences(r.device, uint32(len(fences)), fences, vk.True, ^uint64(0))
	}
	vk.DeviceWaitIdle(r.device)

	r.destroyFrameSlots()
	r.destroyGeometryBuffers()
	r.destroyTexture(&r.diffuse)
	r.destroyTexture(&r.normal)
	r.destroyTexture(&r.sky)
	r.destroyPipelines()

	if r.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(r.device, r.pipelineLayout, nil)
		r.pipelineLayout = vk.NullPipelineLayout
	}
	for _, sm := range []*vk.ShaderModule{&r.vertShader, &r.fragShader, &r.skyVertShader, &r.skyFragShader} {
		if *sm != vk.NullShaderModule {
			vk.DestroyShaderModule(r.device, *sm, nil)
			*sm = vk.NullShaderModule
		}
	}
	if r.sampler != vk.NullSampler {
		vk.DestroySampler(r.device, r.sampler, nil)
		r.sampler = vk.NullSampler
	}
	if r.descriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(r.device, r.descriptorPool, nil)
		r.descriptorPool = vk.NullDescriptorPool
	}
	if r.descriptorSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(r.device, r.descriptorSetLayout, nil)
		r.descriptorSetLayout = vk.NullDescriptorSetLayout
	}

	r.destroyStagingBuffers()
	r.destroyFramebuffer()
	if r.renderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(r.device, r.renderPass, nil)
		r.renderPass = vk.NullRenderPass
	}
	r.destroyOffscreenTarget()

	if r.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(r.device, r.commandPool, nil)
		r.commandPool = vk.NullCommandPool
	}
	vk.DestroyDevice(r.device, nil)
	r.device = nil
	vk.DestroyInstance(r.instance, nil)
	r.instance = nil

	logger.Info("renderer destroyed")
}
