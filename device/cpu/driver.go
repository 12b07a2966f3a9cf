// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cpu is the host processor compute backend. It runs the kernel
// table in plain Go across a worker pool, which makes it the reference
// backend: always present, deterministic, and the one the batch utilities
// fall back to. Importing the package registers the driver.
package cpu

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/devblok/lumen/device"
)

func init() {
	device.Register(&driver{})
}

type driver struct{}

func (d *driver) Type() device.DeviceType { return device.TypeCPU }

func (d *driver) Enumerate() []device.DeviceInfo {
	return []device.DeviceInfo{{
		Type:                     device.TypeCPU,
		Description:              fmt.Sprintf("%s/%s CPU (%d threads)", runtime.GOOS, runtime.GOARCH, runtime.NumCPU()),
		ID:                       "CPU_0000",
		Num:                      0,
		HasExecutionOptimization: true,
		Denoisers:                device.DenoiserMask(device.DenoiserOpenImageDenoise),
	}}
}

func (d *driver) Open(info device.DeviceInfo) (device.Device, error) {
	return &Device{info: info}, nil
}

// Device is an opened CPU device. It owns no resources beyond its active
// queue; Close only detaches that queue.
type Device struct {
	info device.DeviceInfo

	mutex  sync.Mutex
	active *Queue
}

// Info implements device.Device.
func (d *Device) Info() device.DeviceInfo { return d.info }

// NewQueue implements device.Device. One queue may be active per device;
// a second request fails with device.ErrQueueExists until the first queue
// closes.
func (d *Device) NewQueue() (device.Queue, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.active != nil {
		return nil, device.ErrQueueExists
	}
	q := newQueue(d)
	d.active = q
	return q, nil
}

func (d *Device) release(q *Queue) {
	d.mutex.Lock()
	if d.active == q {
		d.active = nil
	}
	d.mutex.Unlock()
}

// Close implements device.Device.
func (d *Device) Close() error {
	d.mutex.Lock()
	q := d.active
	d.mutex.Unlock()
	if q != nil {
		return q.Close()
	}
	return nil
}
