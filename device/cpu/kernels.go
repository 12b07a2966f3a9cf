// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cpu

import (
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/lumen/device"
	"github.com/devblok/lumen/kernel"
)

// kernelFunc runs one work item of a dispatch.
type kernelFunc func(args device.Args, index int)

// Local aliases of the pipeline ABI constants, for brevity.
const (
	PathStateStride = device.PathStateStride
	HitStride       = device.HitStride
	ColorStride     = device.ColorStride

	argWidth     = device.ArgWidth
	argHeight    = device.ArgHeight
	argSample    = device.ArgSample
	argFeature   = device.ArgFeature
	argMetric    = device.ArgMetric
	argNormalize = device.ArgNormalize

	argScale      = device.ArgScale
	argDetail     = device.ArgDetail
	argRoughness  = device.ArgRoughness
	argLacunarity = device.ArgLacunarity
	argSmoothness = device.ArgSmoothness
	argExponent   = device.ArgExponent
	argRandomness = device.ArgRandomness
)

func shaderFromArgs(args device.Args) kernel.VoronoiParams {
	p := kernel.VoronoiParams{
		Scale:      args.Floats[argScale],
		Detail:     args.Floats[argDetail],
		Roughness:  args.Floats[argRoughness],
		Lacunarity: args.Floats[argLacunarity],
		Smoothness: args.Floats[argSmoothness],
		Exponent:   args.Floats[argExponent],
		Randomness: args.Floats[argRandomness],
		Feature:    kernel.VoronoiFeature(args.Ints[argFeature]),
		Metric:     kernel.DistanceMetric(args.Ints[argMetric]),
	}
	p.Normalize = args.Ints[argNormalize] != 0
	return p
}

func kernelTable() map[device.Kernel]kernelFunc {
	return map[device.Kernel]kernelFunc{
		device.KernelIntegratorInit:      integratorInit,
		device.KernelIntegratorIntersect: integratorIntersect,
		device.KernelIntegratorShade:     integratorShade,
		device.KernelFilmAccumulate:      filmAccumulate,
		device.KernelFilmConvert:         filmConvert,
		device.KernelBake:                bake,
		device.KernelDenoiseFilter:       denoiseFilter,
		device.KernelPrefixSum:           prefixSum,
	}
}

// integratorInit seeds one camera path per pixel. Jitter comes from the
// fixed cell hash so re-rendering a sample reproduces the exact rays.
func integratorInit(args device.Args, index int) {
	states := deviceData(args.Buffers[0])
	width := int(args.Ints[argWidth])
	height := int(args.Ints[argHeight])
	sample := args.Ints[argSample]

	px := index % width
	py := index / width
	jitter := kernel.HashInt3ToFloat3(int32(px), int32(py), sample)

	u := (float32(px)+jitter.X())/float32(width) - 0.5
	v := (float32(py)+jitter.Y())/float32(height) - 0.5
	dir := glm.Vec3{u, v, 1.0}.Normalize()

	s := states[index*PathStateStride : index*PathStateStride+PathStateStride]
	s[0] = float32(px)
	s[1] = float32(py)
	s[2] = float32(sample)
	s[3] = 1.0
	s[4] = dir.X()
	s[5] = dir.Y()
	s[6] = dir.Z()
	s[7] = jitter.Z()
}

// integratorIntersect marches the path ray against the procedural field and
// records the hit record.
func integratorIntersect(args device.Args, index int) {
	states := deviceData(args.Buffers[0])
	hits := deviceData(args.Buffers[1])
	shader := shaderFromArgs(args)

	s := states[index*PathStateStride:]
	if s[3] == 0.0 {
		return
	}
	dir := glm.Vec3{s[4], s[5], s[6]}

	// Depth along the ray comes from the field's distance output, offset
	// so the hit point never collapses into the camera.
	probe := dir.Mul(4.0).Add(glm.Vec3{0.0, 0.0, s[2] * 0.1})
	out := kernel.Evaluate3D(shader, probe)
	t := 1.0 + out.Distance
	hit := dir.Mul(t)

	h := hits[index*HitStride : index*HitStride+HitStride]
	h[0] = t
	h[1] = hit.X()
	h[2] = hit.Y()
	h[3] = hit.Z()
}

// integratorShade evaluates the procedural shader at the hit point and
// writes the path radiance.
func integratorShade(args device.Args, index int) {
	states := deviceData(args.Buffers[0])
	hits := deviceData(args.Buffers[1])
	radiance := deviceData(args.Buffers[2])
	shader := shaderFromArgs(args)

	s := states[index*PathStateStride:]
	h := hits[index*HitStride:]
	out := radiance[index*ColorStride : index*ColorStride+ColorStride]
	if s[3] == 0.0 {
		out[0], out[1], out[2], out[3] = 0, 0, 0, 1
		return
	}

	field := kernel.Evaluate3D(shader, glm.Vec3{h[1], h[2], h[3]})
	attenuation := 1.0 / (1.0 + h[0]*h[0]*0.05)
	out[0] = field.Color.X() * attenuation
	out[1] = field.Color.Y() * attenuation
	out[2] = field.Color.Z() * attenuation
	out[3] = 1.0
}

// filmAccumulate adds one sample's radiance into the accumulation film.
func filmAccumulate(args device.Args, index int) {
	radiance := deviceData(args.Buffers[0])
	film := deviceData(args.Buffers[1])
	for c := 0; c < ColorStride; c++ {
		film[index*ColorStride+c] += radiance[index*ColorStride+c]
	}
}

// filmConvert averages the accumulation film into display range.
func filmConvert(args device.Args, index int) {
	film := deviceData(args.Buffers[0])
	out := deviceData(args.Buffers[1])
	samples := float32(args.Ints[argSample])
	if samples < 1 {
		samples = 1
	}
	for c := 0; c < ColorStride; c++ {
		v := film[index*ColorStride+c] / samples
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out[index*ColorStride+c] = v
	}
}

// bake evaluates the procedural shader on a flat uv grid, one texel per
// work item.
func bake(args device.Args, index int) {
	out := deviceData(args.Buffers[0])
	width := int(args.Ints[argWidth])
	shader := shaderFromArgs(args)

	px := index % width
	py := index / width
	u := (float32(px) + 0.5) / float32(args.Ints[argWidth])
	v := (float32(py) + 0.5) / float32(args.Ints[argHeight])

	field := kernel.Evaluate2D(shader, glm.Vec2{u, v})
	t := out[index*ColorStride : index*ColorStride+ColorStride]
	t[0] = field.Color.X()
	t[1] = field.Color.Y()
	t[2] = field.Color.Z()
	t[3] = field.Distance
}

// denoiseFilter runs a 3x3 box filter over the color planes, leaving alpha
// untouched.
func denoiseFilter(args device.Args, index int) {
	in := deviceData(args.Buffers[0])
	out := deviceData(args.Buffers[1])
	width := int(args.Ints[argWidth])
	height := int(args.Ints[argHeight])

	px := index % width
	py := index / width
	for c := 0; c < 3; c++ {
		var sum float32
		var count float32
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := px+dx, py+dy
				if nx < 0 || nx >= width || ny < 0 || ny >= height {
					continue
				}
				sum += in[(ny*width+nx)*ColorStride+c]
				count++
			}
		}
		out[index*ColorStride+c] = sum / count
	}
	out[index*ColorStride+3] = in[index*ColorStride+3]
}

// prefixSum scans the whole input serially; dispatched with a work size
// of one like its GPU counterpart runs in a single workgroup.
func prefixSum(args device.Args, index int) {
	if index != 0 {
		return
	}
	in := deviceData(args.Buffers[0])
	out := deviceData(args.Buffers[1])
	var sum float32
	for i := range in {
		sum += in[i]
		out[i] = sum
	}
}
