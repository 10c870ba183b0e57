package renderer

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// createBuffer allocates a buffer and backing memory with the given usage
// and property flags.
func (r *Renderer) createBuffer(size int, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (vk.Buffer, vk.DeviceMemory, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	if res := vk.CreateBuffer(r.device, &bufferInfo, nil, &buffer); res != vk.Success {
		return vk.NullBuffer, vk.NullDeviceMemory, fmt.Errorf("vkCreateBuffer failed: %d", res)
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(r.device, buffer, &memReqs)
	memReqs.Deref()

	memTypeIndex, err := r.findMemoryType(memReqs.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(r.device, buffer, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(r.device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(r.device, buffer, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, fmt.Errorf("vkAllocateMemory failed: %d", res)
	}
	vk.BindBufferMemory(r.device, buffer, memory, 0)

	return buffer, memory, nil
}

// uploadDeviceLocal creates a device-local buffer and fills it from host
// data through a transient staging buffer.
func (r *Renderer) uploadDeviceLocal(data []byte, usage vk.BufferUsageFlags) (vk.Buffer, vk.DeviceMemory, error) {
	size := len(data)

	stagingBuf, stagingMem, err := r.createBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	defer func() {
		vk.DestroyBuffer(r.device, stagingBuf, nil)
		vk.FreeMemory(r.device, stagingMem, nil)
	}()

	var mapped unsafe.Pointer
	vk.MapMemory(r.device, stagingMem, 0, vk.DeviceSize(size), 0, &mapped)
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(r.device, stagingMem)

	buffer, memory, err := r.createBuffer(size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}

	cmd, err := r.beginOneTimeCommands()
	if err != nil {
		vk.DestroyBuffer(r.device, buffer, nil)
		vk.FreeMemory(r.device, memory, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}

	region := vk.BufferCopy{SrcOffset: 0, DstOffset: 0, Size: vk.DeviceSize(size)}
	vk.CmdCopyBuffer(cmd, stagingBuf, buffer, 1, []vk.BufferCopy{region})

	if err := r.endOneTimeCommands(cmd); err != nil {
		vk.DestroyBuffer(r.device, buffer, nil)
		vk.FreeMemory(r.device, memory, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}

	return buffer, memory, nil
}
