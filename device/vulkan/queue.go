// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"time"
	"unsafe"

	"github.com/gobuffalo/envy"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/lumen/device"
	"github.com/devblok/lumen/utility/kpack"
)

// EnvKernelArchive points at the kpack archive holding the compiled SPIR-V
// kernels. Read once when the queue initializes.
const EnvKernelArchive = "LUMEN_KERNEL_ARCHIVE"

const (
	// workgroup size every kernel is compiled with
	localSize = 64
	// storage buffer bindings every kernel layout declares
	maxKernelBuffers = 8
	// push constant block: the int args followed by the float args
	pushConstantSize = 4 * (device.ArgIntCount + device.ArgFloatCount)
	// timestamp query pairs available per submit
	maxTimedDispatches = 512
	// descriptor sets available per submit
	maxDispatchesPerSubmit = 1024

	fenceTimeout = uint64(30 * time.Second)
)

// deviceBuffer is the backend payload stored in device.Buffer.Handle.
// Memory is host visible so transfers go through a plain map, but dispatch
// ordering is still done on the timeline with copy commands and barriers.
type deviceBuffer struct {
	buffer vk.Buffer
	memory vk.DeviceMemory
	size   vk.DeviceSize
}

// pendingRead is a device to staging copy whose host side completes after
// the fence.
type pendingRead struct {
	staging *deviceBuffer
	dst     *device.Buffer
}

// timedDispatch ties a timestamp query pair to the dispatch it brackets.
type timedDispatch struct {
	kernel   device.Kernel
	workSize int
}

// Queue implements device.Queue on a Vulkan compute queue. All commands are
// recorded into a single primary command buffer and submitted by
// Synchronize; the fence wait is the only blocking point.
type Queue struct {
	parent   *Device
	physical vk.PhysicalDevice

	logical     vk.Device
	queue       vk.Queue
	familyIndex uint32

	commandPool   vk.CommandPool
	commandBuffer vk.CommandBuffer
	fence         vk.Fence

	descriptorPool   vk.DescriptorPool
	setLayout        vk.DescriptorSetLayout
	pipelineLayout   vk.PipelineLayout
	pipelines        [device.KernelCount]vk.Pipeline
	modules          [device.KernelCount]vk.ShaderModule
	queryPool        vk.QueryPool
	timestampPeriod  float64
	timestampsUsable bool

	// dummy fills the layout bindings a dispatch leaves unused
	dummy *deviceBuffer

	memBudget int64

	initialised bool
	closed      bool
	state       device.QueueState

	owned     []*deviceBuffer
	transient []*deviceBuffer
	reads     []pendingRead
	timed     []timedDispatch
	setsUsed  int

	submitted uint64
	completed uint64
	stats     map[device.Kernel]device.TimingStat

	captureLabel  string
	captureActive bool
}

func newQueue(parent *Device) (*Queue, error) {
	q := &Queue{
		parent:   parent,
		physical: parent.physical,
		state:    device.QueueIdle,
		stats:    make(map[device.Kernel]device.TimingStat),
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(q.physical, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(q.physical, &queueFamilyCount, queueFamilies)

	found := false
	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()
		if queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			q.familyIndex = i
			found = true
			break
		}
	}
	if !found {
		return nil, errors.New("vk.GetPhysicalDeviceQueueFamilyProperties(): no compute queue family")
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: q.familyIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}
	dci := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueInfos)),
		PQueueCreateInfos:    queueInfos,
	}
	var logical vk.Device
	if err := vk.Error(vk.CreateDevice(q.physical, &dci, nil, &logical)); err != nil {
		return nil, errors.New("vk.CreateDevice(): " + err.Error())
	}
	q.logical = logical

	var deviceQueue vk.Queue
	vk.GetDeviceQueue(logical, q.familyIndex, 0, &deviceQueue)
	q.queue = deviceQueue

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(q.physical, &properties)
	properties.Deref()
	properties.Limits.Deref()
	q.timestampPeriod = float64(properties.Limits.TimestampPeriod)
	q.timestampsUsable = q.timestampPeriod > 0

	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(q.physical, &memoryProperties)
	memoryProperties.Deref()
	var total int64
	for i := uint32(0); i < memoryProperties.MemoryHeapCount; i++ {
		memoryProperties.MemoryHeaps[i].Deref()
		total += int64(memoryProperties.MemoryHeaps[i].Size)
	}
	// leave half of device memory for everything that is not path state
	q.memBudget = total / 2
	if q.memBudget < 1 {
		q.memBudget = 1
	}

	return q, nil
}

/* Initialisation */

// InitExecution implements device.Queue. It loads the SPIR-V archive, builds
// the compute pipelines and the pools. Idempotent.
func (q *Queue) InitExecution() error {
	if q.closed {
		return device.ErrQueueClosed
	}
	if q.initialised {
		return nil
	}

	if err := q.createPipelines(); err != nil {
		return err
	}
	if err := q.createPools(); err != nil {
		return err
	}

	dummy, err := q.allocateBuffer(4, vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit))
	if err != nil {
		return err
	}
	q.dummy = dummy

	fci := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(q.logical, &fci, nil, &fence)); err != nil {
		return errors.New("vk.CreateFence(): " + err.Error())
	}
	q.fence = fence

	q.initialised = true
	return nil
}

func (q *Queue) createPipelines() error {
	path := envy.Get(EnvKernelArchive, "lumen_kernels.kpack")
	file, err := os.Open(path)
	if err != nil {
		return errors.New("vulkan: kernel archive: " + err.Error())
	}
	defer file.Close()

	archive, err := kpack.Open(file)
	if err != nil {
		return errors.New("vulkan: kernel archive: " + err.Error())
	}

	bindings := make([]vk.DescriptorSetLayoutBinding, maxKernelBuffers)
	for i := range bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		}
	}
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var setLayout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(q.logical, &dslci, nil, &setLayout)); err != nil {
		return errors.New("vk.CreateDescriptorSetLayout(): " + err.Error())
	}
	q.setLayout = setLayout

	plci := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			Size:       pushConstantSize,
		}},
	}
	var pipelineLayout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(q.logical, &plci, nil, &pipelineLayout)); err != nil {
		return errors.New("vk.CreatePipelineLayout(): " + err.Error())
	}
	q.pipelineLayout = pipelineLayout

	for k := 0; k < device.KernelCount; k++ {
		kernel := device.Kernel(k)
		code, err := archive.ReadAll(kernel.String() + ".spv")
		if err != nil {
			return errors.New("vulkan: kernel " + kernel.String() + ": " + err.Error())
		}

		smci := vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			CodeSize: uint(len(code)),
			PCode:    sliceUint32(code),
		}
		var module vk.ShaderModule
		if err := vk.Error(vk.CreateShaderModule(q.logical, &smci, nil, &module)); err != nil {
			return errors.New("vk.CreateShaderModule(): " + err.Error())
		}
		q.modules[k] = module

		cpci := []vk.ComputePipelineCreateInfo{{
			SType: vk.StructureTypeComputePipelineCreateInfo,
			Stage: vk.PipelineShaderStageCreateInfo{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageComputeBit,
				Module: module,
				PName:  "main\x00",
			},
			Layout: pipelineLayout,
		}}
		pipelines := make([]vk.Pipeline, 1)
		if err := vk.Error(vk.CreateComputePipelines(q.logical, vk.NullPipelineCache, 1, cpci, nil, pipelines)); err != nil {
			return errors.New("vk.CreateComputePipelines(): " + err.Error())
		}
		q.pipelines[k] = pipelines[0]
	}
	return nil
}

func (q *Queue) createPools() error {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: q.familyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var commandPool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(q.logical, &cpci, nil, &commandPool)); err != nil {
		return errors.New("vk.CreateCommandPool(): " + err.Error())
	}
	q.commandPool = commandPool

	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(q.logical, &cbai, commandBuffers)); err != nil {
		return errors.New("vk.AllocateCommandBuffers(): " + err.Error())
	}
	q.commandBuffer = commandBuffers[0]

	dpci := vk.DescriptorPoolCreateInfo{
		SType:   vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets: maxDispatchesPerSubmit,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeStorageBuffer,
			DescriptorCount: maxDispatchesPerSubmit * maxKernelBuffers,
		}},
	}
	var descriptorPool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(q.logical, &dpci, nil, &descriptorPool)); err != nil {
		return errors.New("vk.CreateDescriptorPool(): " + err.Error())
	}
	q.descriptorPool = descriptorPool

	if q.timestampsUsable {
		qpci := vk.QueryPoolCreateInfo{
			SType:      vk.StructureTypeQueryPoolCreateInfo,
			QueryType:  vk.QueryTypeTimestamp,
			QueryCount: 2 * maxTimedDispatches,
		}
		var queryPool vk.QueryPool
		if err := vk.Error(vk.CreateQueryPool(q.logical, &qpci, nil, &queryPool)); err != nil {
			q.timestampsUsable = false
		} else {
			q.queryPool = queryPool
		}
	}
	return nil
}

/* Buffer management */

func (q *Queue) allocateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags) (*deviceBuffer, error) {
	bci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(q.logical, &bci, nil, &buffer)); err != nil {
		return nil, errors.New("vk.CreateBuffer(): " + err.Error())
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(q.logical, buffer, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType, err := q.getMemoryType(memoryRequirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(q.logical, buffer, nil)
		return nil, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(q.logical, &mai, nil, &memory)); err != nil {
		vk.DestroyBuffer(q.logical, buffer, nil)
		return nil, errors.New("vk.AllocateMemory(): " + err.Error())
	}
	if err := vk.Error(vk.BindBufferMemory(q.logical, buffer, memory, 0)); err != nil {
		vk.FreeMemory(q.logical, memory, nil)
		vk.DestroyBuffer(q.logical, buffer, nil)
		return nil, errors.New("vk.BindBufferMemory(): " + err.Error())
	}

	return &deviceBuffer{buffer: buffer, memory: memory, size: size}, nil
}

func (q *Queue) getMemoryType(typeBits uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(q.physical, &memoryProperties)
	memoryProperties.Deref()

	for idx := uint32(0); idx < memoryProperties.MemoryTypeCount; idx++ {
		if (typeBits & 1) == 1 {
			memoryProperties.MemoryTypes[idx].Deref()
			if (memoryProperties.MemoryTypes[idx].PropertyFlags & properties) == properties {
				return idx, nil
			}
		}
		typeBits >>= 1
	}
	return 0, errors.New("vulkan: requested memory type not found")
}

func (q *Queue) destroyBuffer(b *deviceBuffer) {
	if b == nil {
		return
	}
	vk.FreeMemory(q.logical, b.memory, nil)
	vk.DestroyBuffer(q.logical, b.buffer, nil)
}

func (q *Queue) writeBuffer(b *deviceBuffer, data []byte) error {
	var ptr unsafe.Pointer
	if err := vk.Error(vk.MapMemory(q.logical, b.memory, 0, b.size, 0, &ptr)); err != nil {
		return errors.New("vk.MapMemory(): " + err.Error())
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(q.logical, b.memory)
	return nil
}

func (q *Queue) readBuffer(b *deviceBuffer, data []byte) error {
	var ptr unsafe.Pointer
	if err := vk.Error(vk.MapMemory(q.logical, b.memory, 0, b.size, 0, &ptr)); err != nil {
		return errors.New("vk.MapMemory(): " + err.Error())
	}
	src := unsafe.Slice((*byte)(ptr), len(data))
	copy(data, src)
	vk.UnmapMemory(q.logical, b.memory)
	return nil
}

// deviceData returns the backend buffer, allocating it on first use.
func (q *Queue) deviceData(buf *device.Buffer) (*deviceBuffer, error) {
	if b, ok := buf.Handle.(*deviceBuffer); ok {
		return b, nil
	}
	size := vk.DeviceSize(4 * buf.Len())
	if size == 0 {
		size = 4
	}
	b, err := q.allocateBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit|vk.BufferUsageTransferSrcBit|vk.BufferUsageTransferDstBit))
	if err != nil {
		return nil, err
	}
	buf.Handle = b
	q.owned = append(q.owned, b)
	return b, nil
}

/* Recording */

// beginEncoding opens the command buffer if the queue is idle.
func (q *Queue) beginEncoding() error {
	if q.state == device.QueueEncoding {
		return nil
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(q.commandBuffer, &cbbi)); err != nil {
		return errors.New("vk.BeginCommandBuffer(): " + err.Error())
	}
	if q.timestampsUsable {
		vk.CmdResetQueryPool(q.commandBuffer, q.queryPool, 0, 2*maxTimedDispatches)
	}
	q.state = device.QueueEncoding
	return nil
}

// barrier orders every recorded command against the next one. Coarse, but
// the stream is linear by contract so nothing finer pays off.
func (q *Queue) barrier() {
	barriers := []vk.MemoryBarrier{{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessShaderWriteBit | vk.AccessTransferWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit | vk.AccessTransferReadBit | vk.AccessTransferWriteBit),
	}}
	vk.CmdPipelineBarrier(q.commandBuffer,
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit|vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit|vk.PipelineStageTransferBit),
		0, 1, barriers, 0, nil, 0, nil)
}

// Enqueue implements device.Queue.
func (q *Queue) Enqueue(kernel device.Kernel, workSize int, args device.Args) bool {
	if q.closed || !q.initialised || workSize < 0 {
		return false
	}
	if kernel < 0 || int(kernel) >= device.KernelCount {
		return false
	}
	if q.setsUsed >= maxDispatchesPerSubmit {
		return false
	}
	if err := q.beginEncoding(); err != nil {
		return false
	}

	set, ok := q.allocateSet(args.Buffers)
	if !ok {
		return false
	}

	vk.CmdBindPipeline(q.commandBuffer, vk.PipelineBindPointCompute, q.pipelines[kernel])
	vk.CmdBindDescriptorSets(q.commandBuffer, vk.PipelineBindPointCompute, q.pipelineLayout,
		0, 1, []vk.DescriptorSet{set}, 0, nil)

	push := packArgs(args)
	vk.CmdPushConstants(q.commandBuffer, q.pipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, pushConstantSize, unsafe.Pointer(&push[0]))

	timed := q.timestampsUsable && len(q.timed) < maxTimedDispatches
	if timed {
		vk.CmdWriteTimestamp(q.commandBuffer, vk.PipelineStageTopOfPipeBit, q.queryPool, uint32(2*len(q.timed)))
	}

	groups := uint32((workSize + localSize - 1) / localSize)
	if groups == 0 {
		groups = 1
	}
	vk.CmdDispatch(q.commandBuffer, groups, 1, 1)

	if timed {
		vk.CmdWriteTimestamp(q.commandBuffer, vk.PipelineStageBottomOfPipeBit, q.queryPool, uint32(2*len(q.timed)+1))
		q.timed = append(q.timed, timedDispatch{kernel: kernel, workSize: workSize})
	} else {
		// untimed dispatches still count in the stats
		stat := q.stats[kernel]
		stat.TotalWorkSize += uint64(workSize)
		stat.NumDispatches++
		q.stats[kernel] = stat
	}

	q.barrier()
	return true
}

func (q *Queue) allocateSet(buffers []*device.Buffer) (vk.DescriptorSet, bool) {
	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     q.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{q.setLayout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if err := vk.Error(vk.AllocateDescriptorSets(q.logical, &dsai, &sets[0])); err != nil {
		return vk.NullDescriptorSet, false
	}
	q.setsUsed++

	writes := make([]vk.WriteDescriptorSet, maxKernelBuffers)
	for i := 0; i < maxKernelBuffers; i++ {
		target := q.dummy
		if i < len(buffers) {
			b, err := q.deviceData(buffers[i])
			if err != nil {
				return vk.NullDescriptorSet, false
			}
			target = b
		}
		writes[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[0],
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: target.buffer,
				Range:  target.size,
			}},
		}
	}
	vk.UpdateDescriptorSets(q.logical, uint32(len(writes)), writes, 0, nil)
	return sets[0], true
}

/* Transfers */

// ZeroToDevice implements device.Queue.
func (q *Queue) ZeroToDevice(buf *device.Buffer) error {
	if q.closed {
		return device.ErrQueueClosed
	}
	if !q.initialised {
		return errors.New("vulkan: queue is not initialised")
	}
	b, err := q.deviceData(buf)
	if err != nil {
		return err
	}
	if err := q.beginEncoding(); err != nil {
		return err
	}
	vk.CmdFillBuffer(q.commandBuffer, b.buffer, 0, b.size, 0)
	q.barrier()
	return nil
}

// CopyToDevice implements device.Queue. The host data is snapshot into a
// transient staging buffer at record time, so later host writes do not leak
// into an already recorded transfer.
func (q *Queue) CopyToDevice(buf *device.Buffer) error {
	if q.closed {
		return device.ErrQueueClosed
	}
	if !q.initialised {
		return errors.New("vulkan: queue is not initialised")
	}
	b, err := q.deviceData(buf)
	if err != nil {
		return err
	}
	staging, err := q.allocateBuffer(b.size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return err
	}
	q.transient = append(q.transient, staging)
	if err := q.writeBuffer(staging, floatBytes(buf.Host)); err != nil {
		return err
	}
	if err := q.beginEncoding(); err != nil {
		return err
	}
	regions := []vk.BufferCopy{{Size: b.size}}
	vk.CmdCopyBuffer(q.commandBuffer, staging.buffer, b.buffer, 1, regions)
	q.barrier()
	return nil
}

// CopyFromDevice implements device.Queue. The host slice updates after the
// fence in Synchronize.
func (q *Queue) CopyFromDevice(buf *device.Buffer) error {
	if q.closed {
		return device.ErrQueueClosed
	}
	if !q.initialised {
		return errors.New("vulkan: queue is not initialised")
	}
	b, err := q.deviceData(buf)
	if err != nil {
		return err
	}
	staging, err := q.allocateBuffer(b.size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit))
	if err != nil {
		return err
	}
	q.transient = append(q.transient, staging)
	if err := q.beginEncoding(); err != nil {
		return err
	}
	regions := []vk.BufferCopy{{Size: b.size}}
	vk.CmdCopyBuffer(q.commandBuffer, b.buffer, staging.buffer, 1, regions)
	q.barrier()
	q.reads = append(q.reads, pendingRead{staging: staging, dst: buf})
	return nil
}

/* Submission */

// Synchronize implements device.Queue.
func (q *Queue) Synchronize() error {
	if q.closed {
		return device.ErrQueueClosed
	}
	if q.state != device.QueueEncoding {
		return nil
	}

	if err := vk.Error(vk.EndCommandBuffer(q.commandBuffer)); err != nil {
		q.resetEncoder()
		return errors.New("vk.EndCommandBuffer(): " + err.Error())
	}

	submits := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{q.commandBuffer},
	}}
	if err := vk.Error(vk.QueueSubmit(q.queue, 1, submits, q.fence)); err != nil {
		q.resetEncoder()
		return errors.New("vk.QueueSubmit(): " + err.Error())
	}
	q.state = device.QueueSubmitted
	q.submitted++

	if err := vk.Error(vk.WaitForFences(q.logical, 1, []vk.Fence{q.fence}, vk.True, fenceTimeout)); err != nil {
		q.resetEncoder()
		return errors.New("vk.WaitForFences(): " + err.Error())
	}
	vk.ResetFences(q.logical, 1, []vk.Fence{q.fence})
	q.state = device.QueueCompleted
	q.completed++

	q.collectTimestamps()

	var firstErr error
	for _, r := range q.reads {
		data := make([]byte, 4*r.dst.Len())
		if err := q.readBuffer(r.staging, data); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		bytesToFloats(data, r.dst.Host)
	}

	q.resetEncoder()
	return firstErr
}

func (q *Queue) collectTimestamps() {
	if !q.timestampsUsable || len(q.timed) == 0 {
		return
	}
	count := uint32(2 * len(q.timed))
	results := make([]uint64, count)
	size := uint(8 * count)
	res := vk.GetQueryPoolResults(q.logical, q.queryPool, 0, count, size,
		unsafe.Pointer(&results[0]), 8, vk.QueryResultFlags(vk.QueryResult64Bit|vk.QueryResultWaitBit))
	if vk.Error(res) != nil {
		return
	}
	for i, t := range q.timed {
		ticks := results[2*i+1] - results[2*i]
		elapsed := time.Duration(float64(ticks) * q.timestampPeriod)
		stat := q.stats[t.kernel]
		stat.TotalTime += elapsed
		stat.TotalWorkSize += uint64(t.workSize)
		stat.NumDispatches++
		q.stats[t.kernel] = stat
	}
}

func (q *Queue) resetEncoder() {
	for _, b := range q.transient {
		q.destroyBuffer(b)
	}
	q.transient = q.transient[:0]
	q.reads = q.reads[:0]
	q.timed = q.timed[:0]
	if q.setsUsed > 0 {
		vk.ResetDescriptorPool(q.logical, q.descriptorPool, 0)
		q.setsUsed = 0
	}
	vk.ResetCommandBuffer(q.commandBuffer, 0)
	q.state = device.QueueIdle
}

/* Capacity */

// NumConcurrentStates implements device.Queue.
func (q *Queue) NumConcurrentStates(stateSize int) int {
	if stateSize < 1 {
		return 1
	}
	n := int(q.memBudget / int64(stateSize))
	if n < 1 {
		return 1
	}
	return n
}

// NumConcurrentBusyStates implements device.Queue.
func (q *Queue) NumConcurrentBusyStates(stateSize int) int {
	n := q.NumConcurrentStates(stateSize) / 2
	if n < 1 {
		return 1
	}
	return n
}

// NumSortPartitions implements device.Queue.
func (q *Queue) NumSortPartitions(maxNumPaths, maxSceneShaders int) int {
	n := maxNumPaths / (64 << 10)
	if n < 1 {
		n = 1
	}
	if maxSceneShaders >= 1 && n > maxSceneShaders {
		n = maxSceneShaders
	}
	return n
}

/* Capture */

// BeginCapture implements device.Queue. The label marks the submit for an
// externally attached frame debugger; the queue itself records nothing.
func (q *Queue) BeginCapture(label string) error {
	if q.closed {
		return device.ErrQueueClosed
	}
	if q.captureActive {
		return device.ErrCaptureActive
	}
	q.captureActive = true
	q.captureLabel = label
	return nil
}

// EndCapture implements device.Queue.
func (q *Queue) EndCapture() {
	q.captureActive = false
	q.captureLabel = ""
}

/* Introspection */

// SubmittedCount implements device.Queue.
func (q *Queue) SubmittedCount() uint64 { return q.submitted }

// CompletedCount implements device.Queue.
func (q *Queue) CompletedCount() uint64 { return q.completed }

// TimingStats implements device.Queue.
func (q *Queue) TimingStats() map[device.Kernel]device.TimingStat {
	out := make(map[device.Kernel]device.TimingStat, len(q.stats))
	for k, v := range q.stats {
		out[k] = v
	}
	return out
}

// NativeQueue implements device.Queue.
func (q *Queue) NativeQueue() interface{} { return q.queue }

// Close implements device.Queue.
func (q *Queue) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true

	if q.state == device.QueueEncoding {
		vk.EndCommandBuffer(q.commandBuffer)
		q.resetEncoder()
	}

	for _, b := range q.transient {
		q.destroyBuffer(b)
	}
	for _, b := range q.owned {
		q.destroyBuffer(b)
	}
	q.destroyBuffer(q.dummy)

	for k := 0; k < device.KernelCount; k++ {
		if q.pipelines[k] != vk.NullPipeline {
			vk.DestroyPipeline(q.logical, q.pipelines[k], nil)
		}
		if q.modules[k] != vk.NullShaderModule {
			vk.DestroyShaderModule(q.logical, q.modules[k], nil)
		}
	}
	if q.queryPool != vk.NullQueryPool {
		vk.DestroyQueryPool(q.logical, q.queryPool, nil)
	}
	if q.descriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(q.logical, q.descriptorPool, nil)
	}
	if q.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(q.logical, q.pipelineLayout, nil)
	}
	if q.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(q.logical, q.setLayout, nil)
	}
	if q.fence != vk.NullFence {
		vk.DestroyFence(q.logical, q.fence, nil)
	}
	if q.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(q.logical, q.commandPool, nil)
	}
	if q.logical != nil {
		vk.DestroyDevice(q.logical, nil)
	}

	q.parent.release(q)
	return nil
}

/* Marshalling helpers */

// packArgs lays the scalar arguments out as the push constant block the
// kernels expect: the int args at offset zero, the float args after them.
func packArgs(args device.Args) []byte {
	out := make([]byte, pushConstantSize)
	for i := 0; i < device.ArgIntCount && i < len(args.Ints); i++ {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(args.Ints[i]))
	}
	base := 4 * device.ArgIntCount
	for i := 0; i < device.ArgFloatCount && i < len(args.Floats); i++ {
		binary.LittleEndian.PutUint32(out[base+4*i:], math.Float32bits(args.Floats[i]))
	}
	return out
}

func floatBytes(src []float32) []byte {
	out := make([]byte, 4*len(src))
	for i, f := range src {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

func bytesToFloats(src []byte, dst []float32) {
	n := len(src) / 4
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
	}
}

func sliceUint32(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[4*i:])
	}
	return out
}
