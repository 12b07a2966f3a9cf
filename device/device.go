// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device is the compute backend abstraction: device types and
// enumeration, the queue command-stream contract and process-wide debug
// flags. Backends register themselves from their package init, so importing
// a backend package for side effects is what makes its devices visible.
package device

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Device is an opened compute device. Exactly one queue may be active per
// device at a time; Close releases all backend resources.
type Device interface {
	Info() DeviceInfo
	NewQueue() (Queue, error)
	Close() error
}

// Driver is a compute backend. Enumerate must be cheap enough to call on
// every cache miss and must not allocate per-device backend resources.
type Driver interface {
	Type() DeviceType
	Enumerate() []DeviceInfo
	Open(info DeviceInfo) (Device, error)
}

// ErrNoDriver is returned by NewDevice for a type no registered backend
// serves.
var ErrNoDriver = errors.New("device: no driver registered for device type")

var (
	driversMu sync.Mutex
	drivers   []Driver

	cacheMu    sync.Mutex
	cacheGen   uint64
	cacheValid bool
	cached     map[TypeMask][]DeviceInfo
)

// Register makes a backend available for enumeration. It is intended to be
// called from a backend package init and panics on a duplicate type.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	for _, existing := range drivers {
		if existing.Type() == d.Type() {
			panic("device: driver for " + d.Type().String() + " registered twice")
		}
	}
	drivers = append(drivers, d)
	sort.SliceStable(drivers, func(i, j int) bool {
		return drivers[i].Type() < drivers[j].Type()
	})
	invalidateCache()
}

func registered() []Driver {
	driversMu.Lock()
	defer driversMu.Unlock()
	out := make([]Driver, len(drivers))
	copy(out, drivers)
	return out
}

func invalidateCache() {
	cacheMu.Lock()
	cacheValid = false
	cacheMu.Unlock()
}

// AvailableDevices enumerates devices of the masked types in a stable
// order. Types without a registered backend are silently omitted. Results
// are cached; a debug-flag change invalidates the cache since flags can
// alter the reported capabilities.
func AvailableDevices(mask TypeMask) []DeviceInfo {
	gen := debugGen()
	backends := registered()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if !cacheValid || cacheGen != gen {
		cached = make(map[TypeMask][]DeviceInfo)
		cacheGen = gen
		cacheValid = true
	}
	if infos, ok := cached[mask]; ok {
		return infos
	}

	var infos []DeviceInfo
	for _, d := range backends {
		if !mask.Has(d.Type()) {
			continue
		}
		infos = append(infos, d.Enumerate()...)
	}
	cached[mask] = infos
	return infos
}

// AvailableTypes reports the backend kinds compiled into this build,
// regardless of whether matching hardware is present.
func AvailableTypes() []DeviceType {
	var types []DeviceType
	for _, d := range registered() {
		types = append(types, d.Type())
	}
	return types
}

// HasType reports whether a backend of the given kind is compiled in.
func HasType(t DeviceType) bool {
	for _, d := range registered() {
		if d.Type() == t {
			return true
		}
	}
	return false
}

// Capabilities returns a human-readable capability report over all
// enumerable devices.
func Capabilities() string {
	var b strings.Builder
	for _, info := range AvailableDevices(MaskAll) {
		fmt.Fprintf(&b, "%s %q id=%s", info.Type, info.Description, info.ID)
		if info.HasPeerMemory {
			b.WriteString(" peer-memory")
		}
		if info.HasHardwareRaytracing {
			b.WriteString(" hw-raytracing")
		}
		if info.HasExecutionOptimization {
			b.WriteString(" exec-optimization")
		}
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "no devices\n"
	}
	return b.String()
}

// NewDevice opens the device described by info. Enumeration stays pure;
// this is the first point where backend resources are allocated.
func NewDevice(info DeviceInfo) (Device, error) {
	for _, d := range registered() {
		if d.Type() == info.Type {
			return d.Open(info)
		}
	}
	return nil, ErrNoDriver
}
