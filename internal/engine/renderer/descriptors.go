package renderer

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Descriptor bindings: 0 = per-frame uniforms, 1 = diffuse, 2 = normal map,
// 3 = sky texture.
const (
	bindingUniforms = 0
	bindingDiffuse  = 1
	bindingNormal   = 2
	bindingSky      = 3
)

func (r *Renderer) createDescriptorSetLayout() error {
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         bindingUniforms,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
		},
		{
			Binding:         bindingDiffuse,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
		{
			Binding:         bindingNormal,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
		{
			Binding:         bindingSky,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(r.device, &layoutInfo, nil, &layout); res != vk.Success {
		return fmt.Errorf("vkCreateDescriptorSetLayout failed: %d", res)
	}
	r.descriptorSetLayout = layout
	return nil
}

func (r *Renderer) createDescriptorPool() error {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: framesInFlight},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: framesInFlight * 3},
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       framesInFlight,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(r.device, &poolInfo, nil, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateDescriptorPool failed: %d", res)
	}
	r.descriptorPool = pool
	return nil
}

func (r *Renderer) createTextureSampler() error {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1.0,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(r.device, &samplerInfo, nil, &sampler); res != vk.Success {
		return fmt.Errorf("vkCreateSampler failed: %d", res)
	}
	r.sampler = sampler
	return nil
}

// createFrameSlots builds the per-slot command buffer, signaled fence,
// persistently mapped uniform buffer, and descriptor set.
func (r *Renderer) createFrameSlots() error {
	uniformSize := int(unsafe.Sizeof(uniformBlock{}))

	for i := range r.slots {
		allocInfo := vk.CommandBufferAllocateInfo{
			SType:              vk.StructureTypeCommandBufferAllocateInfo,
			CommandPool:        r.commandPool,
			Level:              vk.CommandBufferLevelPrimary,
			CommandBufferCount: 1,
		}
		cmdBuffers := make([]vk.CommandBuffer, 1)
		if res := vk.AllocateCommandBuffers(r.device, &allocInfo, cmdBuffers); res != vk.Success {
			return fmt.Errorf("vkAllocateCommandBuffers (slot %d) failed: %d", i, res)
		}
		r.slots[i].commandBuffer = cmdBuffers[0]

		// Created signaled so the first wait on each slot returns
		// immediately.
		fenceInfo := vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}
		var fence vk.Fence
		if res := vk.CreateFence(r.device, &fenceInfo, nil, &fence); res != vk.Success {
			return fmt.Errorf("vkCreateFence (slot %d) failed: %d", i, res)
		}
		r.slots[i].fence = fence

		buf, mem, err := r.createBuffer(uniformSize,
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
		if err != nil {
			return fmt.Errorf("uniform buffer (slot %d): %w", i, err)
		}
		r.slots[i].uniformBuffer = buf
		r.slots[i].uniformMemory = mem

		var mapped unsafe.Pointer
		if res := vk.MapMemory(r.device, mem, 0, vk.DeviceSize(uniformSize), 0, &mapped); res != vk.Success {
			return fmt.Errorf("vkMapMemory (uniforms %d) failed: %d", i, res)
		}
		r.slots[i].uniformMapped = mapped

		setAllocInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     r.descriptorPool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{r.descriptorSetLayout},
		}
		var set vk.DescriptorSet
		if res := vk.AllocateDescriptorSets(r.device, &setAllocInfo, &set); res != vk.Success {
			return fmt.Errorf("vkAllocateDescriptorSets (slot %d) failed: %d", i, res)
		}
		r.slots[i].descriptorSet = set
		r.slots[i].descriptorDirty = true
	}

	return nil
}

// rewriteDescriptorSet points a slot's descriptor set at the current
// uniform buffer and texture views. Called only while the slot's fence is
// signaled, so the set is not in use.
func (r *Renderer) rewriteDescriptorSet(slot *frameSlot) {
	uniformSize := int(unsafe.Sizeof(uniformBlock{}))

	imageInfo := func(view vk.ImageView) []vk.DescriptorImageInfo {
		return []vk.DescriptorImageInfo{{
			Sampler:     r.sampler,
			ImageView:   view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}}
	}

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          slot.descriptorSet,
			DstBinding:      bindingUniforms,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: slot.uniformBuffer,
				Offset: 0,
				Range:  vk.DeviceSize(uniformSize),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          slot.descriptorSet,
			DstBinding:      bindingDiffuse,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      imageInfo(r.diffuse.view),
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          slot.descriptorSet,
			DstBinding:      bindingNormal,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      imageInfo(r.normal.view),
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          slot.descriptorSet,
			DstBinding:      bindingSky,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      imageInfo(r.sky.view),
		},
	}

	vk.UpdateDescriptorSets(r.device, uint32(len(writes)), writes, 0, nil)
	slot.descriptorDirty = false
}

func (r *Renderer) destroyFrameSlots() {
	for i := range r.slots {
		if r.slots[i].fence != vk.NullFence {
			vk.DestroyFence(r.device, r.slots[i].fence, nil)
			r.slots[i].fence = vk.NullFence
		}
		if r.slots[i].uniformMapped != nil {
			vk.UnmapMemory(r.device, r.slots[i].uniformMemory)
			r.slots[i].uniformMapped = nil
		}
		if r.slots[i].uniformBuffer != vk.NullBuffer {
			vk.DestroyBuffer(r.device, r.slots[i].uniformBuffer, nil)
			r.slots[i].uniformBuffer = vk.NullBuffer
		}
		if r.slots[i].uniformMemory != vk.NullDeviceMemory {
			vk.FreeMemory(r.device, r.slots[i].uniformMemory, nil)
			r.slots[i].uniformMemory = vk.NullDeviceMemory
		}
	}
}
