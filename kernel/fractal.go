// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kernel

import (
	glm "github.com/go-gl/mathgl/mgl32"
)

// fractalVoronoiOutput runs the octave accumulation loop shared by every
// dimensionality. The octave callback evaluates a single layer at the given
// frequency; this function owns amplitude decay, the fractional last octave
// and normalization. When Detail or Roughness is zero a single raw octave is
// returned untouched.
func fractalVoronoiOutput(p *VoronoiParams, octave func(scale float32) VoronoiOutput) VoronoiOutput {
	var out VoronoiOutput
	amplitude := float32(1.0)
	maxAmplitude := float32(0.0)
	scale := float32(1.0)

	zeroInput := p.Detail == 0.0 || p.Roughness == 0.0
	octaves := int(ceilf(p.Detail))
	for i := 0; i <= octaves; i++ {
		oct := octave(scale)
		if zeroInput {
			maxAmplitude = 1.0
			out = oct
			break
		} else if float32(i) <= p.Detail {
			maxAmplitude += amplitude
			out.Distance += oct.Distance * amplitude
			out.Color = out.Color.Add(oct.Color.Mul(amplitude))
			out.Position = mixVec4(out.Position, oct.Position.Mul(1.0/scale), amplitude)
			scale *= p.Lacunarity
			amplitude *= p.Roughness
		} else {
			remainder := p.Detail - floorf(p.Detail)
			if remainder != 0.0 {
				maxAmplitude = mixf(maxAmplitude, maxAmplitude+amplitude, remainder)
				out.Distance = mixf(out.Distance, out.Distance+oct.Distance*amplitude, remainder)
				out.Color = mixVec3(out.Color, out.Color.Add(oct.Color.Mul(amplitude)), remainder)
				out.Position = mixVec4(out.Position,
					mixVec4(out.Position, oct.Position.Mul(1.0/scale), amplitude), remainder)
			}
		}
	}

	if p.Normalize {
		out.Distance /= maxAmplitude * p.MaxDistance
		out.Color = out.Color.Mul(1.0 / maxAmplitude)
	}
	return out
}

// fractalVoronoiDistanceToEdge is the edge-distance variant of the octave
// loop. Layers combine through min() instead of summation, so the
// accumulators and the normalization differ from fractalVoronoiOutput.
func fractalVoronoiDistanceToEdge(p *VoronoiParams, octave func(scale float32) float32) float32 {
	amplitude := float32(1.0)
	maxAmplitude := p.MaxDistance
	scale := float32(1.0)
	distance := float32(8.0)

	zeroInput := p.Detail == 0.0 || p.Roughness == 0.0
	octaves := int(ceilf(p.Detail))
	for i := 0; i <= octaves; i++ {
		octaveDistance := octave(scale)
		if zeroInput {
			distance = octaveDistance
			break
		} else if float32(i) <= p.Detail {
			maxAmplitude = mixf(maxAmplitude, p.MaxDistance/scale, amplitude)
			distance = mixf(distance, minf(distance, octaveDistance/scale), amplitude)
			scale *= p.Lacunarity
			amplitude *= p.Roughness
		} else {
			remainder := p.Detail - floorf(p.Detail)
			if remainder != 0.0 {
				lerpAmplitude := mixf(maxAmplitude, p.MaxDistance/scale, amplitude)
				maxAmplitude = mixf(maxAmplitude, lerpAmplitude, remainder)
				lerpDistance := mixf(distance, minf(distance, octaveDistance/scale), amplitude)
				distance = mixf(distance, minf(distance, lerpDistance), remainder)
			}
		}
	}

	if p.Normalize {
		distance /= maxAmplitude
	}
	return distance
}

// featureMaxDistance fills p.MaxDistance for the F1/F2/SmoothF1 features.
// The bound is the metric distance between a cell corner and the farthest
// point a feature can wander to at the current randomness, doubled for F2
// since two cells can contribute.
func featureMaxDistance(p *VoronoiParams, base float32) {
	p.MaxDistance = base
	if p.Feature == VoronoiF2 {
		p.MaxDistance *= 2.0
	}
}

/* Per-dimension feature dispatch. A smoothness of zero collapses SmoothF1 to
 * the plain F1 search, avoiding a division by zero in the blend factor. */

func voronoiOctave1D(p *VoronoiParams, coord float32) VoronoiOutput {
	switch {
	case p.Feature == VoronoiF2:
		return voronoiF2_1D(p, coord)
	case p.Feature == VoronoiSmoothF1 && p.Smoothness != 0.0:
		return voronoiSmoothF1_1D(p, coord)
	default:
		return voronoiF1_1D(p, coord)
	}
}

func voronoiOctave2D(p *VoronoiParams, coord glm.Vec2) VoronoiOutput {
	switch {
	case p.Feature == VoronoiF2:
		return voronoiF2_2D(p, coord)
	case p.Feature == VoronoiSmoothF1 && p.Smoothness != 0.0:
		return voronoiSmoothF1_2D(p, coord)
	default:
		return voronoiF1_2D(p, coord)
	}
}

func voronoiOctave3D(p *VoronoiParams, coord glm.Vec3) VoronoiOutput {
	switch {
	case p.Feature == VoronoiF2:
		return voronoiF2_3D(p, coord)
	case p.Feature == VoronoiSmoothF1 && p.Smoothness != 0.0:
		return voronoiSmoothF1_3D(p, coord)
	default:
		return voronoiF1_3D(p, coord)
	}
}

func voronoiOctave4D(p *VoronoiParams, coord glm.Vec4) VoronoiOutput {
	switch {
	case p.Feature == VoronoiF2:
		return voronoiF2_4D(p, coord)
	case p.Feature == VoronoiSmoothF1 && p.Smoothness != 0.0:
		return voronoiSmoothF1_4D(p, coord)
	default:
		return voronoiF1_4D(p, coord)
	}
}

// Evaluate1D evaluates the noise on a single axis.
func Evaluate1D(params VoronoiParams, w float32) VoronoiOutput {
	p := params.normalized()
	w *= p.Scale

	switch p.Feature {
	case VoronoiDistanceToEdge:
		p.MaxDistance = 0.5 + 0.5*p.Randomness
		return VoronoiOutput{
			Distance: fractalVoronoiDistanceToEdge(&p, func(scale float32) float32 {
				return voronoiDistanceToEdge1D(&p, w*scale)
			}),
		}
	case VoronoiNSphereRadius:
		return VoronoiOutput{Radius: voronoiNSphereRadius1D(&p, w)}
	default:
		featureMaxDistance(&p, 0.5+0.5*p.Randomness)
		out := fractalVoronoiOutput(&p, func(scale float32) VoronoiOutput {
			return voronoiOctave1D(&p, w*scale)
		})
		out.Position = safeDivideVec4(out.Position, p.Scale)
		return out
	}
}

// Evaluate2D evaluates the noise on a plane.
func Evaluate2D(params VoronoiParams, coord glm.Vec2) VoronoiOutput {
	p := params.normalized()
	coord = coord.Mul(p.Scale)

	switch p.Feature {
	case VoronoiDistanceToEdge:
		p.MaxDistance = 0.5 + 0.5*p.Randomness
		return VoronoiOutput{
			Distance: fractalVoronoiDistanceToEdge(&p, func(scale float32) float32 {
				return voronoiDistanceToEdge2D(&p, coord.Mul(scale))
			}),
		}
	case VoronoiNSphereRadius:
		return VoronoiOutput{Radius: voronoiNSphereRadius2D(&p, coord)}
	default:
		m := 0.5 + 0.5*p.Randomness
		featureMaxDistance(&p, voronoiDistance2D(glm.Vec2{}, glm.Vec2{m, m}, &p))
		out := fractalVoronoiOutput(&p, func(scale float32) VoronoiOutput {
			return voronoiOctave2D(&p, coord.Mul(scale))
		})
		out.Position = safeDivideVec4(out.Position, p.Scale)
		return out
	}
}

// Evaluate3D evaluates the noise in a volume.
func Evaluate3D(params VoronoiParams, coord glm.Vec3) VoronoiOutput {
	p := params.normalized()
	coord = coord.Mul(p.Scale)

	switch p.Feature {
	case VoronoiDistanceToEdge:
		p.MaxDistance = 0.5 + 0.5*p.Randomness
		return VoronoiOutput{
			Distance: fractalVoronoiDistanceToEdge(&p, func(scale float32) float32 {
				return voronoiDistanceToEdge3D(&p, coord.Mul(scale))
			}),
		}
	case VoronoiNSphereRadius:
		return VoronoiOutput{Radius: voronoiNSphereRadius3D(&p, coord)}
	default:
		m := 0.5 + 0.5*p.Randomness
		featureMaxDistance(&p, voronoiDistance3D(glm.Vec3{}, glm.Vec3{m, m, m}, &p))
		out := fractalVoronoiOutput(&p, func(scale float32) VoronoiOutput {
			return voronoiOctave3D(&p, coord.Mul(scale))
		})
		out.Position = safeDivideVec4(out.Position, p.Scale)
		return out
	}
}

// Evaluate4D evaluates the noise with an extra animatable axis.
func Evaluate4D(params VoronoiParams, coord glm.Vec4) VoronoiOutput {
	p := params.normalized()
	coord = coord.Mul(p.Scale)

	switch p.Feature {
	case VoronoiDistanceToEdge:
		p.MaxDistance = 0.5 + 0.5*p.Randomness
		return VoronoiOutput{
			Distance: fractalVoronoiDistanceToEdge(&p, func(scale float32) float32 {
				return voronoiDistanceToEdge4D(&p, coord.Mul(scale))
			}),
		}
	case VoronoiNSphereRadius:
		return VoronoiOutput{Radius: voronoiNSphereRadius4D(&p, coord)}
	default:
		m := 0.5 + 0.5*p.Randomness
		featureMaxDistance(&p, voronoiDistance4D(glm.Vec4{}, glm.Vec4{m, m, m, m}, &p))
		out := fractalVoronoiOutput(&p, func(scale float32) VoronoiOutput {
			return voronoiOctave4D(&p, coord.Mul(scale))
		})
		out.Position = safeDivideVec4(out.Position, p.Scale)
		return out
	}
}
