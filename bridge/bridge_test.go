// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package bridge

import (
	"strings"
	"testing"

	"github.com/devblok/lumen/kernel"
	"github.com/devblok/lumen/session"
)

func testScene() *session.SceneData {
	return &session.SceneData{
		Shader: kernel.VoronoiParams{
			Scale:      3.0,
			Lacunarity: 2.0,
			Randomness: 1.0,
			Normalize:  true,
		},
	}
}

func testPrefs() session.Params {
	return session.Params{Width: 8, Height: 8, Samples: 2}
}

func TestCreateRenderFree(t *testing.T) {
	h, err := Create(testPrefs(), "CPU")
	if err != nil {
		t.Fatal(err)
	}
	if err := Sync(h, testScene()); err != nil {
		t.Fatal(err)
	}
	if err := Render(h, nil); err != nil {
		t.Fatal(err)
	}
	if err := RenderFrameFinish(h); err != nil {
		t.Fatal(err)
	}
	img, err := Draw(h)
	if err != nil {
		t.Fatal(err)
	}
	if img == nil || img.Bounds().Dx() != 8 {
		t.Errorf("unexpected frame %v", img)
	}
	if err := Free(h); err != nil {
		t.Fatal(err)
	}
}

func TestUseAfterFree(t *testing.T) {
	h, err := Create(testPrefs(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := Free(h); err != nil {
		t.Fatal(err)
	}

	if err := Render(h, testScene()); err != ErrInvalidHandle {
		t.Errorf("Render on freed handle: %v", err)
	}
	if _, err := Draw(h); err != ErrInvalidHandle {
		t.Errorf("Draw on freed handle: %v", err)
	}
	if err := Free(h); err != ErrInvalidHandle {
		t.Errorf("double Free: %v", err)
	}
}

func TestHandlesAreNotReused(t *testing.T) {
	h1, err := Create(testPrefs(), "CPU")
	if err != nil {
		t.Fatal(err)
	}
	Free(h1)
	h2, err := Create(testPrefs(), "CPU")
	if err != nil {
		t.Fatal(err)
	}
	defer Free(h2)
	if h1 == h2 {
		t.Error("handle reused after free")
	}
}

func TestCreateValidation(t *testing.T) {
	if _, err := Create(testPrefs(), "NOTADEVICE"); err != ErrBadDeviceName {
		t.Errorf("bad device name returned %v", err)
	}
	if _, err := Create(testPrefs(), "METAL"); err != session.ErrNoDevice {
		t.Errorf("absent backend returned %v", err)
	}
}

func TestAvailableDevices(t *testing.T) {
	entries, err := AvailableDevices("NONE")
	if err != nil {
		t.Fatal(err)
	}
	foundCPU := false
	for _, e := range entries {
		if e.TypeName == "CPU" {
			foundCPU = true
			if !e.HasOpenImageDenoise {
				t.Error("CPU entry misses OIDN support")
			}
		}
	}
	if !foundCPU {
		t.Error("CPU missing from NONE enumeration")
	}

	// A specific GPU type always keeps the CPU in the selection.
	entries, err = AvailableDevices("CUDA")
	if err != nil {
		t.Fatal(err)
	}
	foundCPU = false
	for _, e := range entries {
		if e.TypeName == "CPU" {
			foundCPU = true
		}
	}
	if !foundCPU {
		t.Error("CPU missing from CUDA selection")
	}

	if _, err := AvailableDevices("GARBAGE"); err == nil {
		t.Error("unknown type name accepted")
	}
}

func TestGetDeviceTypes(t *testing.T) {
	hasCUDA, hasOptiX, hasHIP, hasMetal, hasOneAPI, hasHIPRT := GetDeviceTypes()
	if hasCUDA || hasOptiX || hasHIP || hasMetal || hasOneAPI || hasHIPRT {
		t.Error("this build carries no GPU kinds beyond Vulkan")
	}
}

func TestSystemInfo(t *testing.T) {
	info := SystemInfo()
	if !strings.Contains(info, "CPU") {
		t.Errorf("system info misses the host device:\n%s", info)
	}
}

func TestViewDrawAndBake(t *testing.T) {
	h, err := Create(testPrefs(), "CPU")
	if err != nil {
		t.Fatal(err)
	}
	defer Free(h)

	if err := Bake(h, testScene(), "plane", session.PassCombined, session.FilterNone, 16, 16); err != nil {
		t.Fatal(err)
	}
	view, err := ViewDraw(h, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if view == nil || view.Bounds().Dx() != 4 {
		t.Error("viewport draw failed after bake")
	}

	if err := Reset(h, testScene()); err != nil {
		t.Fatal(err)
	}
	if err := Cancel(h); err != nil {
		t.Fatal(err)
	}
}
