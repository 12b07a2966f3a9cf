// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package session

import (
	"github.com/devblok/lumen/device"
	"github.com/devblok/lumen/kernel"
)

// PassType selects what a bake pass outputs.
type PassType int

const (
	PassCombined PassType = iota
	PassColor
	PassDistance
)

// PassFilter narrows a bake pass to a component subset.
type PassFilter int

const (
	FilterNone PassFilter = iota
	FilterColor
	FilterDistance
)

// Camera is the renderer-internal camera snapshot.
type Camera struct {
	FOV      float32
	Exposure float32
}

// SceneData is the renderer-internal scene snapshot, synchronized from the
// opaque host scene. The procedural field doubles as geometry and shader.
type SceneData struct {
	Camera Camera
	Shader kernel.VoronoiParams
	Passes []PassType
}

// shaderArgs packs the scene shader into the dispatch ABI.
func (s *SceneData) shaderArgs(width, height, sample int, buffers ...*device.Buffer) device.Args {
	ints := make([]int32, device.ArgIntCount)
	ints[device.ArgWidth] = int32(width)
	ints[device.ArgHeight] = int32(height)
	ints[device.ArgSample] = int32(sample)
	ints[device.ArgFeature] = int32(s.Shader.Feature)
	ints[device.ArgMetric] = int32(s.Shader.Metric)
	if s.Shader.Normalize {
		ints[device.ArgNormalize] = 1
	}

	floats := make([]float32, device.ArgFloatCount)
	floats[device.ArgScale] = s.Shader.Scale
	floats[device.ArgDetail] = s.Shader.Detail
	floats[device.ArgRoughness] = s.Shader.Roughness
	floats[device.ArgLacunarity] = s.Shader.Lacunarity
	floats[device.ArgSmoothness] = s.Shader.Smoothness
	floats[device.ArgExponent] = s.Shader.Exponent
	floats[device.ArgRandomness] = s.Shader.Randomness

	return device.Args{
		Buffers: buffers,
		Ints:    ints,
		Floats:  floats,
	}
}
