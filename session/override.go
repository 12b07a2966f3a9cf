// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/devblok/lumen/device"
)

// ErrBadOverride is returned for device override strings that name no known
// backend. The active override is left unchanged.
var ErrBadOverride = errors.New("session: unknown device override")

var (
	overrideMu    sync.Mutex
	overrideTypes []device.DeviceType
)

// SetDeviceOverride installs a process-wide device preference read by every
// New. Accepted forms: "NONE" (clear), "<BACKEND>", or "<BACKEND>+CPU" to
// allow hybrid rendering. Unknown names are rejected without touching the
// active override.
func SetDeviceOverride(name string) error {
	trimmed := strings.TrimSpace(name)
	if strings.EqualFold(trimmed, "NONE") || trimmed == "" {
		overrideMu.Lock()
		overrideTypes = nil
		overrideMu.Unlock()
		return nil
	}

	base := trimmed
	withCPU := false
	if idx := strings.Index(trimmed, "+"); idx >= 0 {
		if !strings.EqualFold(trimmed[idx+1:], "CPU") {
			return ErrBadOverride
		}
		base = trimmed[:idx]
		withCPU = true
	}

	t := device.TypeFromString(base)
	if t == device.TypeNone {
		return ErrBadOverride
	}

	types := []device.DeviceType{t}
	if withCPU && t != device.TypeCPU {
		types = append(types, device.TypeCPU)
	}

	overrideMu.Lock()
	overrideTypes = types
	overrideMu.Unlock()
	return nil
}

// DeviceOverride returns the active override types, empty when none is set.
func DeviceOverride() []device.DeviceType {
	overrideMu.Lock()
	defer overrideMu.Unlock()
	out := make([]device.DeviceType, len(overrideTypes))
	copy(out, overrideTypes)
	return out
}
