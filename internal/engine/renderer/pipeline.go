package renderer

//go:generate glslangValidator -V ../../../shaders/model.vert -o ../../../shaders/model.vert.spv
//go:generate glslangValidator -V ../../../shaders/model.frag -o ../../../shaders/model.frag.spv
//go:generate glslangValidator -V ../../../shaders/sky.vert -o ../../../shaders/sky.vert.spv
//go:generate glslangValidator -V ../../../shaders/sky.frag -o ../../../shaders/sky.frag.spv

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/sfenley/meshterm/internal/engine/model"
)

// loadShaders reads the compiled SPIR-V modules from the shader directory.
// A missing or unreadable file is a fatal initialization error.
func (r *Renderer) loadShaders() error {
	load := func(name string) (vk.ShaderModule, error) {
		path := filepath.Join(r.shaderDir, name)
		code, err := os.ReadFile(path)
		if err != nil {
			return vk.NullShaderModule, fmt.Errorf("reading shader %s: %w", path, err)
		}
		return r.createShaderModule(code)
	}

	var err error
	if r.vertShader, err = load("model.vert.spv"); err != nil {
		return err
	}
	if r.fragShader, err = load("model.frag.spv"); err != nil {
		return err
	}
	if r.skyVertShader, err = load("sky.vert.spv"); err != nil {
		return err
	}
	if r.skyFragShader, err = load("sky.frag.spv"); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) createShaderModule(code []byte) (vk.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    sliceUint32(code),
	}

	var shaderModule vk.ShaderModule
	if res := vk.CreateShaderModule(r.device, &createInfo, nil, &shaderModule); res != vk.Success {
		return vk.NullShaderModule, fmt.Errorf("vkCreateShaderModule failed: %d", res)
	}
	return shaderModule, nil
}

func (r *Renderer) createPipelineLayout() error {
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{r.descriptorSetLayout},
	}

	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(r.device, &layoutInfo, nil, &pipelineLayout); res != vk.Success {
		return fmt.Errorf("vkCreatePipelineLayout failed: %d", res)
	}
	r.pipelineLayout = pipelineLayout
	return nil
}

// createPipelines builds the three variants: solid fill, wireframe, and the
// sky pass. Solid and wireframe share everything but the polygon mode; the
// sky pass has no vertex input and neither tests nor writes depth.
func (r *Renderer) createPipelines() error {
	var err error
	if r.solidPipeline, err = r.createMeshPipeline(vk.PolygonModeFill); err != nil {
		return fmt.Errorf("solid pipeline: %w", err)
	}
	if r.wirePipeline, err = r.createMeshPipeline(vk.PolygonModeLine); err != nil {
		return fmt.Errorf("wireframe pipeline: %w", err)
	}
	if r.skyPipeline, err = r.createSkyPipeline(); err != nil {
		return fmt.Errorf("sky pipeline: %w", err)
	}
	return nil
}

func (r *Renderer) createMeshPipeline(polygonMode vk.PolygonMode) (vk.Pipeline, error) {
	shaderStages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: r.vertShader,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: r.fragShader,
			PName:  safeString("main"),
		},
	}

	bindingDesc := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(model.Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}

	attrs := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(model.Vertex{}.Position))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(model.Vertex{}.TexCoord))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(model.Vertex{}.Normal))},
		{Location: 3, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(model.Vertex{}.Tangent))},
		{Location: 4, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(model.Vertex{}.Bitangent))},
		{Location: 5, Binding: 0, Format: vk.FormatR32g32b32a32Uint, Offset: uint32(unsafe.Offsetof(model.Vertex{}.BoneIDs))},
		{Location: 6, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: uint32(unsafe.Offsetof(model.Vertex{}.Weights))},
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDesc},
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}

	// Blending stays enabled on the mesh pipeline; in opaque and mask
	// modes the shader emits alpha 1 so the blend is a no-op.
	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}

	return r.buildPipeline(shaderStages, &vertexInputInfo, polygonMode, vk.CullModeFlags(vk.CullModeBackBit), &depthStencil, colorBlendAttachment)
}

func (r *Renderer) createSkyPipeline() (vk.Pipeline, error) {
	shaderStages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: r.skyVertShader,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: r.skyFragShader,
			PName:  safeString("main"),
		},
	}

	// Fullscreen triangle generated in the vertex shader, no buffers.
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.False,
		DepthWriteEnable: vk.False,
		DepthCompareOp:   vk.CompareOpAlways,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:    vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}

	return r.buildPipeline(shaderStages, &vertexInputInfo, vk.PolygonModeFill, vk.CullModeFlags(vk.CullModeNone), &depthStencil, colorBlendAttachment)
}

func (r *Renderer) buildPipeline(
	stages []vk.PipelineShaderStageCreateInfo,
	vertexInput *vk.PipelineVertexInputStateCreateInfo,
	polygonMode vk.PolygonMode,
	cullMode vk.CullModeFlags,
	depthStencil *vk.PipelineDepthStencilStateCreateInfo,
	blendAttachment vk.PipelineColorBlendAttachmentState,
) (vk.Pipeline, error) {
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(r.width),
		Height:   float32(r.height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: uint32(r.width), Height: uint32(r.height)},
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{viewport},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{scissor},
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             polygonMode,
		CullMode:                cullMode,
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples:  vk.SampleCount1Bit,
		SampleShadingEnable:   vk.False,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  depthStencil,
		PColorBlendState:    &colorBlending,
		Layout:              r.pipelineLayout,
		RenderPass:          r.renderPass,
		Subpass:             0,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(r.device, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines); res != vk.Success {
		return vk.NullPipeline, fmt.Errorf("vkCreateGraphicsPipelines failed: %d", res)
	}
	return pipelines[0], nil
}

func (r *Renderer) destroyPipelines() {
	if r.solidPipeline != vk.NullPipeline {
		vk.DestroyPipeline(r.device, r.solidPipeline, nil)
		r.solidPipeline = vk.NullPipeline
	}
	if r.wirePipeline != vk.NullPipeline {
		vk.DestroyPipeline(r.device, r.wirePipeline, nil)
		r.wirePipeline = vk.NullPipeline
	}
	if r.skyPipeline != vk.NullPipeline {
		vk.DestroyPipeline(r.device, r.skyPipeline, nil)
		r.skyPipeline = vk.NullPipeline
	}
}

// sliceUint32 reinterprets SPIR-V bytes as the uint32 words Vulkan expects.
func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
