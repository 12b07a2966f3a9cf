// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import "strings"

// DeviceType identifies a compute backend kind. The set of names is fixed
// regardless of which backends this build actually carries; TypeFromString
// accepts all of them so configuration written for a bigger build parses
// here too.
type DeviceType int

const (
	TypeNone DeviceType = iota
	TypeCPU
	TypeCUDA
	TypeOptiX
	TypeHIP
	TypeMetal
	TypeOneAPI
	TypeHIPRT
	TypeVulkan
)

// String returns the canonical upper-case name of the type.
func (t DeviceType) String() string {
	switch t {
	case TypeCPU:
		return "CPU"
	case TypeCUDA:
		return "CUDA"
	case TypeOptiX:
		return "OPTIX"
	case TypeHIP:
		return "HIP"
	case TypeMetal:
		return "METAL"
	case TypeOneAPI:
		return "ONEAPI"
	case TypeHIPRT:
		return "HIPRT"
	case TypeVulkan:
		return "VULKAN"
	}
	return "NONE"
}

// TypeFromString maps a canonical name back to its type. Unknown names map
// to TypeNone; callers that must distinguish a misspelling from the literal
// "NONE" sentinel compare the input themselves.
func TypeFromString(name string) DeviceType {
	switch strings.ToUpper(name) {
	case "CPU":
		return TypeCPU
	case "CUDA":
		return TypeCUDA
	case "OPTIX":
		return TypeOptiX
	case "HIP":
		return TypeHIP
	case "METAL":
		return TypeMetal
	case "ONEAPI":
		return TypeOneAPI
	case "HIPRT":
		return TypeHIPRT
	case "VULKAN":
		return TypeVulkan
	}
	return TypeNone
}

// TypeMask selects a set of device types for enumeration.
type TypeMask uint32

const (
	MaskCPU TypeMask = 1 << iota
	MaskCUDA
	MaskOptiX
	MaskHIP
	MaskMetal
	MaskOneAPI
	MaskHIPRT
	MaskVulkan

	MaskAll TypeMask = 0xffffffff
)

// Mask builds a TypeMask out of individual device types.
func Mask(types ...DeviceType) TypeMask {
	var m TypeMask
	for _, t := range types {
		m |= t.mask()
	}
	return m
}

func (t DeviceType) mask() TypeMask {
	switch t {
	case TypeCPU:
		return MaskCPU
	case TypeCUDA:
		return MaskCUDA
	case TypeOptiX:
		return MaskOptiX
	case TypeHIP:
		return MaskHIP
	case TypeMetal:
		return MaskMetal
	case TypeOneAPI:
		return MaskOneAPI
	case TypeHIPRT:
		return MaskHIPRT
	case TypeVulkan:
		return MaskVulkan
	}
	return 0
}

// Has reports whether the mask selects the given type.
func (m TypeMask) Has(t DeviceType) bool {
	return m&t.mask() != 0
}

// DenoiserType identifies a denoising implementation a device can run.
type DenoiserType int

const (
	DenoiserOpenImageDenoise DenoiserType = iota
	DenoiserOptiX
)

// DenoiserTypeMask is a set of supported denoisers.
type DenoiserTypeMask uint32

// DenoiserMask builds a DenoiserTypeMask out of individual denoiser types.
func DenoiserMask(types ...DenoiserType) DenoiserTypeMask {
	var m DenoiserTypeMask
	for _, t := range types {
		m |= 1 << uint(t)
	}
	return m
}

// Has reports whether the mask contains the given denoiser.
func (m DenoiserTypeMask) Has(t DenoiserType) bool {
	return m&(1<<uint(t)) != 0
}

// DeviceInfo describes one enumerated compute device. Infos are immutable
// once returned from enumeration; opening the device goes through NewDevice.
type DeviceInfo struct {
	Type        DeviceType
	Description string
	// ID is a stable identifier unique across all enumerated devices of
	// all types, usable as a cache key.
	ID  string
	Num int

	HasPeerMemory            bool
	HasHardwareRaytracing    bool
	HasExecutionOptimization bool
	Denoisers                DenoiserTypeMask
}
