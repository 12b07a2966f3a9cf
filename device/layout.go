// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

// Buffer strides of the pipeline ABI, in float32 elements. Sessions pack
// buffers and backends consume them with the same constants.
const (
	// path state: px, py, sample, alive, dir x/y/z, spare
	PathStateStride = 8
	// hit record: distance, position x/y/z
	HitStride = 4
	// color: r, g, b, a
	ColorStride = 4
)

// Scalar argument layout shared by the shading kernels. Args.Ints starts
// with width, height, sample, then the shader selector ints; Args.Floats
// carries the procedural shader parameters.
const (
	ArgWidth = iota
	ArgHeight
	ArgSample
	ArgFeature
	ArgMetric
	ArgNormalize
	ArgIntCount
)

const (
	ArgScale = iota
	ArgDetail
	ArgRoughness
	ArgLacunarity
	ArgSmoothness
	ArgExponent
	ArgRandomness
	ArgFloatCount
)
