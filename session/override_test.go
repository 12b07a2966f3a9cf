// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package session

import (
	"testing"

	"github.com/devblok/lumen/device"
)

func TestSetDeviceOverride(t *testing.T) {
	defer SetDeviceOverride("NONE")

	if err := SetDeviceOverride("CPU"); err != nil {
		t.Fatal(err)
	}
	if got := DeviceOverride(); len(got) != 1 || got[0] != device.TypeCPU {
		t.Errorf("override = %v, want [CPU]", got)
	}

	if err := SetDeviceOverride("VULKAN+CPU"); err != nil {
		t.Fatal(err)
	}
	if got := DeviceOverride(); len(got) != 2 || got[0] != device.TypeVulkan || got[1] != device.TypeCPU {
		t.Errorf("override = %v, want [VULKAN CPU]", got)
	}

	// CPU+CPU does not duplicate.
	if err := SetDeviceOverride("CPU+CPU"); err != nil {
		t.Fatal(err)
	}
	if got := DeviceOverride(); len(got) != 1 {
		t.Errorf("override = %v, want [CPU]", got)
	}

	if err := SetDeviceOverride("NONE"); err != nil {
		t.Fatal(err)
	}
	if got := DeviceOverride(); len(got) != 0 {
		t.Errorf("override after clear = %v", got)
	}
}

func TestSetDeviceOverrideRejectsUnknown(t *testing.T) {
	defer SetDeviceOverride("NONE")

	if err := SetDeviceOverride("CUDA"); err != nil {
		t.Fatal(err)
	}
	before := DeviceOverride()

	for _, bad := range []string{"GPU", "CUDA+VULKAN", "CUDA+", "+CPU", "CPUX"} {
		if err := SetDeviceOverride(bad); err != ErrBadOverride {
			t.Errorf("SetDeviceOverride(%q) = %v, want ErrBadOverride", bad, err)
		}
	}

	after := DeviceOverride()
	if len(after) != len(before) || after[0] != before[0] {
		t.Errorf("failed override changed the active setting: %v -> %v", before, after)
	}
}

func TestOverrideAppliesToNew(t *testing.T) {
	defer SetDeviceOverride("NONE")

	// Overriding to a backend that is not compiled in must fail creation.
	if err := SetDeviceOverride("METAL"); err != nil {
		t.Fatal(err)
	}
	if _, err := New(cpuInfo(t), Params{Width: 4, Height: 4, Samples: 1}); err != ErrNoDevice {
		t.Errorf("New under absent override returned %v, want ErrNoDevice", err)
	}

	// Overriding to METAL+CPU falls back to the host device.
	if err := SetDeviceOverride("METAL+CPU"); err != nil {
		t.Fatal(err)
	}
	s, err := New(device.DeviceInfo{Type: device.TypeMetal}, Params{Width: 4, Height: 4, Samples: 1})
	if err != nil {
		t.Fatalf("New under METAL+CPU override failed: %v", err)
	}
	s.Free()
}