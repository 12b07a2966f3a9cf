// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package bridge is the embedding surface of the renderer. Hosts talk to
// sessions only through opaque uint64 handles resolved on every call, so a
// stale handle fails cleanly instead of dereferencing freed state, and no
// renderer pointers ever cross the boundary.
package bridge

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/lumen/device"
	"github.com/devblok/lumen/session"
)

// package errors
var (
	ErrInvalidHandle = errors.New("bridge: invalid or freed session handle")
	ErrBadDeviceName = errors.New("bridge: unknown device type name")
)

// Handle is an opaque session reference.
type Handle uint64

var (
	tableMu sync.Mutex
	table   = map[Handle]*session.Session{}
	nextID  Handle = 1
)

// Create opens a session on the first device of the named type and returns
// its handle. An empty name or "CPU" selects the host device.
func Create(prefs session.Params, deviceName string) (Handle, error) {
	if deviceName == "" {
		deviceName = device.TypeCPU.String()
	}
	t := device.TypeFromString(deviceName)
	if t == device.TypeNone {
		return 0, ErrBadDeviceName
	}
	infos := device.AvailableDevices(device.Mask(t))
	if len(infos) == 0 {
		return 0, session.ErrNoDevice
	}

	s, err := session.New(infos[0], prefs)
	if err != nil {
		return 0, err
	}

	tableMu.Lock()
	h := nextID
	nextID++
	table[h] = s
	tableMu.Unlock()

	log.WithFields(log.Fields{"handle": h, "device": deviceName}).Debug("session handle created")
	return h, nil
}

func resolve(h Handle) (*session.Session, error) {
	tableMu.Lock()
	defer tableMu.Unlock()
	s, ok := table[h]
	if !ok {
		return nil, ErrInvalidHandle
	}
	return s, nil
}

// Free releases the session behind the handle. The handle is invalid
// afterwards and is never reused for a new session.
func Free(h Handle) error {
	tableMu.Lock()
	s, ok := table[h]
	delete(table, h)
	tableMu.Unlock()
	if !ok {
		return ErrInvalidHandle
	}
	return s.Free()
}

// Render runs the progressive sample loop to completion.
func Render(h Handle, scene *session.SceneData) error {
	s, err := resolve(h)
	if err != nil {
		return err
	}
	return s.Render(scene)
}

// RenderFrameFinish finalizes the accumulated frame.
func RenderFrameFinish(h Handle) error {
	s, err := resolve(h)
	if err != nil {
		return err
	}
	return s.RenderFrameFinish()
}

// Draw returns the finished frame.
func Draw(h Handle) (*image.RGBA, error) {
	s, err := resolve(h)
	if err != nil {
		return nil, err
	}
	return s.Draw(), nil
}

// ViewDraw returns the frame scaled to a viewport.
func ViewDraw(h Handle, width, height int) (*image.RGBA, error) {
	s, err := resolve(h)
	if err != nil {
		return nil, err
	}
	return s.ViewDraw(width, height), nil
}

// Bake renders an object's surface shading into a texture.
func Bake(h Handle, scene *session.SceneData, object string, passType session.PassType, filter session.PassFilter, width, height int) error {
	s, err := resolve(h)
	if err != nil {
		return err
	}
	return s.Bake(scene, object, passType, filter, width, height)
}

// Reset discards progressive accumulation.
func Reset(h Handle, scene *session.SceneData) error {
	s, err := resolve(h)
	if err != nil {
		return err
	}
	return s.Reset(scene)
}

// Sync installs a new scene snapshot.
func Sync(h Handle, scene *session.SceneData) error {
	s, err := resolve(h)
	if err != nil {
		return err
	}
	return s.Synchronize(scene)
}

// Cancel requests a render stop.
func Cancel(h Handle) error {
	s, err := resolve(h)
	if err != nil {
		return err
	}
	s.Cancel()
	return nil
}

// DeviceEntry is one row of the host-visible device list.
type DeviceEntry struct {
	Description              string
	TypeName                 string
	ID                       string
	HasPeerMemory            bool
	HasHardwareRaytracing    bool
	HasOpenImageDenoise      bool
	HasOptiXDenoise          bool
	HasExecutionOptimization bool
}

// AvailableDevices lists devices of the named type. The literal "NONE"
// means all types; any other unknown name is a validation error. The host
// device is always part of the selection, since hybrid rendering can always
// add it.
func AvailableDevices(typeName string) ([]DeviceEntry, error) {
	mask := device.MaskAll
	if typeName != device.TypeNone.String() {
		t := device.TypeFromString(typeName)
		if t == device.TypeNone {
			return nil, fmt.Errorf("bridge: device type %q unknown", typeName)
		}
		mask = device.Mask(t) | device.MaskCPU
	}

	var entries []DeviceEntry
	for _, info := range device.AvailableDevices(mask) {
		entries = append(entries, DeviceEntry{
			Description:              info.Description,
			TypeName:                 info.Type.String(),
			ID:                       info.ID,
			HasPeerMemory:            info.HasPeerMemory,
			HasHardwareRaytracing:    info.HasHardwareRaytracing,
			HasOpenImageDenoise:      info.Denoisers.Has(device.DenoiserOpenImageDenoise),
			HasOptiXDenoise:          info.Denoisers.Has(device.DenoiserOptiX),
			HasExecutionOptimization: info.HasExecutionOptimization,
		})
	}
	return entries, nil
}

// GetDeviceTypes reports which GPU backend kinds this build carries.
func GetDeviceTypes() (hasCUDA, hasOptiX, hasHIP, hasMetal, hasOneAPI, hasHIPRT bool) {
	return device.HasType(device.TypeCUDA),
		device.HasType(device.TypeOptiX),
		device.HasType(device.TypeHIP),
		device.HasType(device.TypeMetal),
		device.HasType(device.TypeOneAPI),
		device.HasType(device.TypeHIPRT)
}

// SetDeviceOverride installs the process-wide device preference.
func SetDeviceOverride(name string) error {
	return session.SetDeviceOverride(name)
}

// DebugFlagsUpdate replaces the process-wide backend debug flags.
func DebugFlagsUpdate(flags device.DebugFlags) {
	device.UpdateDebugFlags(flags)
}

// DebugFlagsReset restores the default backend debug flags.
func DebugFlagsReset() {
	device.ResetDebugFlags()
}

// EnablePrintStats turns on per-kernel timing reports at frame finish.
func EnablePrintStats() {
	session.EnablePrintStats()
}

// SystemInfo returns a capability report for bug reports and logs.
func SystemInfo() string {
	return fmt.Sprintf("lumen render core\nruntime: %s %s/%s\ndevices:\n%s",
		runtime.Version(), runtime.GOOS, runtime.GOARCH, device.Capabilities())
}

// Denoise filters rendered images from disk in batch.
func Denoise(params session.DenoiseParams, input, output []string) error {
	p := &session.DenoiserPipeline{
		Input:  input,
		Output: output,
		Params: params,
	}
	return p.Run()
}

// Merge averages equally sized frames into one image.
func Merge(input []string, output string) error {
	m := &session.ImageMerger{
		Input:  input,
		Output: output,
	}
	return m.Run()
}
