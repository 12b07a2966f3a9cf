// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vulkan is the Vulkan compute backend. Kernels run as compute
// pipelines loaded from a SPIR-V kpack archive. Importing the package
// registers the driver, but only when the Vulkan loader is present on the
// system; without a loader the package import is inert and enumeration
// simply never lists Vulkan devices.
package vulkan

import (
	"errors"
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/lumen/device"
)

func init() {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return
	}
	if err := vk.Init(); err != nil {
		return
	}
	device.Register(&driver{})
}

type driver struct {
	once     sync.Once
	instance vk.Instance
	infos    []device.DeviceInfo
	physical []vk.PhysicalDevice
}

func (d *driver) Type() device.DeviceType { return device.TypeVulkan }

// Enumerate implements device.Driver. The instance and the physical device
// list are built once; Vulkan does not hot-plug compute devices.
func (d *driver) Enumerate() []device.DeviceInfo {
	d.once.Do(d.enumerate)
	return d.infos
}

func (d *driver) enumerate() {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 1, 0),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   "lumen\x00",
		PEngineName:        "lumen\x00",
	}

	var instance vk.Instance
	ici := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	if err := vk.Error(vk.CreateInstance(&ici, nil, &instance)); err != nil {
		return
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return
	}
	d.instance = instance

	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return
	}
	physical := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, physical)); err != nil {
		return
	}

	for i, pd := range physical {
		info, ok := describe(pd, i)
		if !ok {
			continue
		}
		d.infos = append(d.infos, info)
		d.physical = append(d.physical, pd)
	}
}

// describe turns one physical device into a DeviceInfo. Devices without a
// compute queue family are skipped; a render queue cannot run on them.
func describe(pd vk.PhysicalDevice, num int) (device.DeviceInfo, bool) {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, queueFamilies)

	var computeFound bool
	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()
		if queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			computeFound = true
			break
		}
	}
	if !computeFound {
		return device.DeviceInfo{}, false
	}

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()

	var numExtensions uint32
	var raytracing, peerMemory bool
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &numExtensions, nil)); err == nil {
		extensions := make([]vk.ExtensionProperties, numExtensions)
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &numExtensions, extensions)); err == nil {
			for _, ext := range extensions {
				ext.Deref()
				switch vk.ToString(ext.ExtensionName[:]) {
				case "VK_KHR_ray_query", "VK_KHR_ray_tracing_pipeline":
					raytracing = true
				case "VK_KHR_device_group":
					peerMemory = true
				}
			}
		}
	}

	return device.DeviceInfo{
		Type:                  device.TypeVulkan,
		Description:           vk.ToString(properties.DeviceName[:]),
		ID:                    fmt.Sprintf("VULKAN_%04X_%04X_%02d", properties.VendorID, properties.DeviceID, num),
		Num:                   num,
		HasPeerMemory:         peerMemory,
		HasHardwareRaytracing: raytracing,
		Denoisers:             device.DenoiserMask(device.DenoiserOpenImageDenoise),
	}, true
}

// Open implements device.Driver.
func (d *driver) Open(info device.DeviceInfo) (device.Device, error) {
	d.once.Do(d.enumerate)
	for i := range d.infos {
		if d.infos[i].ID == info.ID {
			return &Device{info: d.infos[i], physical: d.physical[i]}, nil
		}
	}
	return nil, errors.New("vulkan: device " + info.ID + " is not in the enumeration")
}

// Device is an opened Vulkan physical device. The logical device and its
// resources belong to the queue; one queue may be active at a time.
type Device struct {
	info     device.DeviceInfo
	physical vk.PhysicalDevice

	mutex  sync.Mutex
	active *Queue
}

// Info implements device.Device.
func (d *Device) Info() device.DeviceInfo { return d.info }

// NewQueue implements device.Device.
func (d *Device) NewQueue() (device.Queue, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.active != nil {
		return nil, device.ErrQueueExists
	}
	q, err := newQueue(d)
	if err != nil {
		return nil, err
	}
	d.active = q
	return q, nil
}

func (d *Device) release(q *Queue) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.active == q {
		d.active = nil
	}
}

// Close implements device.Device. The instance is shared by the driver and
// stays alive; only the active queue is torn down.
func (d *Device) Close() error {
	d.mutex.Lock()
	q := d.active
	d.mutex.Unlock()
	if q != nil {
		return q.Close()
	}
	return nil
}
