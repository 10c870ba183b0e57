package renderer

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/sfenley/meshterm/internal/logger"
)

// initVulkan brings up the headless Vulkan context: instance, physical
// device, logical device, graphics queue, and command pool. No surface or
// swapchain is created; all rendering is off-screen.
func (r *Renderer) initVulkan() error {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return fmt.Errorf("vulkan loader not found: %w", err)
	}
	if err := vk.Init(); err != nil {
		return fmt.Errorf("vulkan init failed: %w", err)
	}

	if err := r.createInstance(); err != nil {
		return err
	}
	if err := r.pickPhysicalDevice(); err != nil {
		return err
	}
	if err := r.createDevice(); err != nil {
		return err
	}
	if err := r.createCommandPool(); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) createInstance() error {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString("meshterm"),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        safeString("meshterm"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return fmt.Errorf("vkCreateInstance failed: %d", res)
	}
	r.instance = instance

	vk.InitInstance(instance)
	return nil
}

// pickPhysicalDevice selects the first device exposing a graphics queue
// family.
func (r *Renderer) pickPhysicalDevice() error {
	var deviceCount uint32
	vk.EnumeratePhysicalDevices(r.instance, &deviceCount, nil)
	if deviceCount == 0 {
		return fmt.Errorf("no vulkan devices found")
	}

	devices := make([]vk.PhysicalDevice, deviceCount)
	vk.EnumeratePhysicalDevices(r.instance, &deviceCount, devices)

	for _, device := range devices {
		var queueFamilyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
		queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

		for i, qf := range queueFamilies {
			qf.Deref()
			if qf.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
				r.physicalDevice = device
				r.queueFamily = uint32(i)

				var props vk.PhysicalDeviceProperties
				vk.GetPhysicalDeviceProperties(device, &props)
				props.Deref()
				logger.Info("vulkan device selected",
					zap.String("device", safeStringOut(props.DeviceName[:])))
				return nil
			}
		}
	}

	return fmt.Errorf("no graphics-capable vulkan device found")
}

func (r *Renderer) createDevice() error {
	queueCreateInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: r.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueCreateInfo},
	}

	var device vk.Device
	if res := vk.CreateDevice(r.physicalDevice, &deviceCreateInfo, nil, &device); res != vk.Success {
		return fmt.Errorf("vkCreateDevice failed: %d", res)
	}
	r.device = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, r.queueFamily, 0, &queue)
	r.graphicsQueue = queue

	return nil
}

func (r *Renderer) createCommandPool() error {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: r.queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}

	var pool vk.CommandPool
	if res := vk.CreateCommandPool(r.device, &poolInfo, nil, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateCommandPool failed: %d", res)
	}
	r.commandPool = pool
	return nil
}

// findMemoryType locates a memory type index matching the filter and
// property flags.
func (r *Renderer) findMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(r.physicalDevice, &memProps)
	memProps.Deref()

	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memProps.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 &&
			memProps.MemoryTypes[i].PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no suitable memory type (filter %#x, props %#x)", typeFilter, properties)
}

// beginOneTimeCommands allocates and begins a throwaway command buffer used
// for resource uploads outside the frame loop.
func (r *Renderer) beginOneTimeCommands() (vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        r.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}

	cmdBuffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(r.device, &allocInfo, cmdBuffers); res != vk.Success {
		return nil, fmt.Errorf("vkAllocateCommandBuffers failed: %d", res)
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	vk.BeginCommandBuffer(cmdBuffers[0], &beginInfo)
	return cmdBuffers[0], nil
}

// endOneTimeCommands submits the command buffer and blocks until the queue
// drains it. Upload paths only, never the frame loop.
func (r *Renderer) endOneTimeCommands(cmd vk.CommandBuffer) error {
	vk.EndCommandBuffer(cmd)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}
	if res := vk.QueueSubmit(r.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		return fmt.Errorf("vkQueueSubmit failed: %d", res)
	}
	vk.QueueWaitIdle(r.graphicsQueue)

	vk.FreeCommandBuffers(r.device, r.commandPool, 1, []vk.CommandBuffer{cmd})
	return nil
}

// safeString converts a Go string to a null-terminated C-style string.
func safeString(s string) string {
	if len(s) == 0 {
		return "\x00"
	}
	if s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

// safeStringOut trims a fixed-size C string buffer back to a Go string.
func safeStringOut(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// rawBytes reinterprets an arbitrary value as its in-memory byte slice for
// vk.Memcopy uploads.
func rawBytes(ptr unsafe.Pointer, size int) []byte {
	return unsafe.Slice((*byte)(ptr), size)
}
