// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kernel

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// VoronoiFeature selects which cell measurement the evaluator produces.
type VoronoiFeature int

const (
	// VoronoiF1 measures the nearest feature point.
	VoronoiF1 VoronoiFeature = iota
	// VoronoiF2 measures the second-nearest feature point.
	VoronoiF2
	// VoronoiSmoothF1 is a smooth-minimum blend of nearby feature points.
	VoronoiSmoothF1
	// VoronoiDistanceToEdge measures the distance to the nearest cell border.
	VoronoiDistanceToEdge
	// VoronoiNSphereRadius measures half the distance between the nearest
	// feature point and its own nearest neighbour.
	VoronoiNSphereRadius
)

// DistanceMetric selects the distance function used to rank feature points.
type DistanceMetric int

const (
	MetricEuclidean DistanceMetric = iota
	MetricManhattan
	MetricChebyshev
	MetricMinkowski
)

// VoronoiParams describes one procedural-noise evaluation request. It is a
// pure value; evaluation is a stateless function of the parameters and the
// coordinate.
type VoronoiParams struct {
	Scale      float32
	Detail     float32
	Roughness  float32
	Lacunarity float32
	Smoothness float32
	// Exponent is the Minkowski exponent; only read for MetricMinkowski and
	// must be positive there.
	Exponent    float32
	Randomness  float32
	MaxDistance float32
	Normalize   bool
	Feature     VoronoiFeature
	Metric      DistanceMetric
}

// VoronoiOutput is the evaluation result. Distance, Color and Position are
// filled for the F1/F2/SmoothF1 features, Distance alone for
// VoronoiDistanceToEdge and Radius alone for VoronoiNSphereRadius.
type VoronoiOutput struct {
	Distance float32
	Color    glm.Vec3
	Position glm.Vec4
	Radius   float32
}

// normalized clamps the parameters into their supported ranges. The
// smoothness halving matches the blending window of the smooth-minimum.
func (p VoronoiParams) normalized() VoronoiParams {
	p.Detail = clampf(p.Detail, 0.0, 15.0)
	p.Roughness = clampf(p.Roughness, 0.0, 1.0)
	p.Randomness = clampf(p.Randomness, 0.0, 1.0)
	p.Smoothness = clampf(p.Smoothness/2.0, 0.0, 0.5)
	return p
}

/* Distance metrics. The *Bound variants are cheaper monotonic stand-ins used
 * during the stencil search; they must preserve the ranking of the exact
 * metric, which holds because squaring is order-preserving for non-negative
 * Euclidean lengths and the final Minkowski root is monotonic. The exact
 * metric is applied once to the winning candidate. */

func voronoiDistance1D(a, b float32) float32 {
	return absf(b - a)
}

func voronoiDistance2D(a, b glm.Vec2, p *VoronoiParams) float32 {
	switch p.Metric {
	case MetricEuclidean:
		return a.Sub(b).Len()
	case MetricManhattan:
		return reduceAddVec2(absVec2(a.Sub(b)))
	case MetricChebyshev:
		return reduceMaxVec2(absVec2(a.Sub(b)))
	case MetricMinkowski:
		return powf(reduceAddVec2(powVec2(absVec2(a.Sub(b)), p.Exponent)), 1.0/p.Exponent)
	}
	return 0.0
}

func voronoiDistanceBound2D(a, b glm.Vec2, p *VoronoiParams) float32 {
	switch p.Metric {
	case MetricEuclidean:
		d := a.Sub(b)
		return d.Dot(d)
	case MetricManhattan:
		return reduceAddVec2(absVec2(a.Sub(b)))
	case MetricChebyshev:
		return reduceMaxVec2(absVec2(a.Sub(b)))
	case MetricMinkowski:
		return reduceAddVec2(powVec2(absVec2(a.Sub(b)), p.Exponent))
	}
	return 0.0
}

func voronoiDistance3D(a, b glm.Vec3, p *VoronoiParams) float32 {
	switch p.Metric {
	case MetricEuclidean:
		return a.Sub(b).Len()
	case MetricManhattan:
		return reduceAddVec3(absVec3(a.Sub(b)))
	case MetricChebyshev:
		return reduceMaxVec3(absVec3(a.Sub(b)))
	case MetricMinkowski:
		return powf(reduceAddVec3(powVec3(absVec3(a.Sub(b)), p.Exponent)), 1.0/p.Exponent)
	}
	return 0.0
}

func voronoiDistanceBound3D(a, b glm.Vec3, p *VoronoiParams) float32 {
	switch p.Metric {
	case MetricEuclidean:
		d := a.Sub(b)
		return d.Dot(d)
	case MetricManhattan:
		return reduceAddVec3(absVec3(a.Sub(b)))
	case MetricChebyshev:
		return reduceMaxVec3(absVec3(a.Sub(b)))
	case MetricMinkowski:
		return reduceAddVec3(powVec3(absVec3(a.Sub(b)), p.Exponent))
	}
	return 0.0
}

func voronoiDistance4D(a, b glm.Vec4, p *VoronoiParams) float32 {
	switch p.Metric {
	case MetricEuclidean:
		return a.Sub(b).Len()
	case MetricManhattan:
		return reduceAddVec4(absVec4(a.Sub(b)))
	case MetricChebyshev:
		return reduceMaxVec4(absVec4(a.Sub(b)))
	case MetricMinkowski:
		return powf(reduceAddVec4(powVec4(absVec4(a.Sub(b)), p.Exponent)), 1.0/p.Exponent)
	}
	return 0.0
}

func voronoiDistanceBound4D(a, b glm.Vec4, p *VoronoiParams) float32 {
	switch p.Metric {
	case MetricEuclidean:
		d := a.Sub(b)
		return d.Dot(d)
	case MetricManhattan:
		return reduceAddVec4(absVec4(a.Sub(b)))
	case MetricChebyshev:
		return reduceMaxVec4(absVec4(a.Sub(b)))
	case MetricMinkowski:
		return reduceAddVec4(powVec4(absVec4(a.Sub(b)), p.Exponent))
	}
	return 0.0
}

/* 1D evaluators. A single axis needs no metric selection; all metrics
 * degenerate to the absolute difference. */

func position1D(coord float32) glm.Vec4 {
	return glm.Vec4{0.0, 0.0, 0.0, coord}
}

func voronoiF1_1D(p *VoronoiParams, coord float32) VoronoiOutput {
	cellPosition := floorf(coord)
	localPosition := coord - cellPosition

	minDistance := float32(math.MaxFloat32)
	targetOffset := float32(0.0)
	targetPosition := float32(0.0)
	for i := -1; i <= 1; i++ {
		cellOffset := float32(i)
		pointPosition := cellOffset + HashFloatToFloat(cellPosition+cellOffset)*p.Randomness
		distanceToPoint := voronoiDistance1D(pointPosition, localPosition)
		if distanceToPoint < minDistance {
			targetOffset = cellOffset
			minDistance = distanceToPoint
			targetPosition = pointPosition
		}
	}

	return VoronoiOutput{
		Distance: minDistance,
		Color:    HashFloatToColor(cellPosition + targetOffset),
		Position: position1D(targetPosition + cellPosition),
	}
}

func voronoiSmoothF1_1D(p *VoronoiParams, coord float32) VoronoiOutput {
	cellPosition := floorf(coord)
	localPosition := coord - cellPosition

	smoothDistance := float32(0.0)
	smoothPosition := float32(0.0)
	smoothColor := glm.Vec3{}
	h := float32(-1.0)
	for i := -2; i <= 2; i++ {
		cellOffset := float32(i)
		pointPosition := cellOffset + HashFloatToFloat(cellPosition+cellOffset)*p.Randomness
		distanceToPoint := voronoiDistance1D(pointPosition, localPosition)
		if h == -1.0 {
			h = 1.0
		} else {
			h = smoothstep01(0.5 + 0.5*(smoothDistance-distanceToPoint)/p.Smoothness)
		}
		correctionFactor := p.Smoothness * h * (1.0 - h)
		smoothDistance = mixf(smoothDistance, distanceToPoint, h) - correctionFactor
		correctionFactor /= 1.0 + 3.0*p.Smoothness
		cellColor := HashFloatToColor(cellPosition + cellOffset)
		smoothColor = mixVec3(smoothColor, cellColor, h).Sub(glm.Vec3{correctionFactor, correctionFactor, correctionFactor})
		smoothPosition = mixf(smoothPosition, pointPosition, h) - correctionFactor
	}

	return VoronoiOutput{
		Distance: smoothDistance,
		Color:    smoothColor,
		Position: position1D(cellPosition + smoothPosition),
	}
}

func voronoiF2_1D(p *VoronoiParams, coord float32) VoronoiOutput {
	cellPosition := floorf(coord)
	localPosition := coord - cellPosition

	distanceF1 := float32(math.MaxFloat32)
	distanceF2 := float32(math.MaxFloat32)
	var offsetF1, positionF1, offsetF2, positionF2 float32
	for i := -1; i <= 1; i++ {
		cellOffset := float32(i)
		pointPosition := cellOffset + HashFloatToFloat(cellPosition+cellOffset)*p.Randomness
		distanceToPoint := voronoiDistance1D(pointPosition, localPosition)
		if distanceToPoint < distanceF1 {
			distanceF2 = distanceF1
			distanceF1 = distanceToPoint
			offsetF2 = offsetF1
			offsetF1 = cellOffset
			positionF2 = positionF1
			positionF1 = pointPosition
		} else if distanceToPoint < distanceF2 {
			distanceF2 = distanceToPoint
			offsetF2 = cellOffset
			positionF2 = pointPosition
		}
	}

	return VoronoiOutput{
		Distance: distanceF2,
		Color:    HashFloatToColor(cellPosition + offsetF2),
		Position: position1D(positionF2 + cellPosition),
	}
}

func voronoiDistanceToEdge1D(p *VoronoiParams, coord float32) float32 {
	cellPosition := floorf(coord)
	localPosition := coord - cellPosition

	midPointPosition := HashFloatToFloat(cellPosition) * p.Randomness
	leftPointPosition := -1.0 + HashFloatToFloat(cellPosition-1.0)*p.Randomness
	rightPointPosition := 1.0 + HashFloatToFloat(cellPosition+1.0)*p.Randomness
	distanceToMidLeft := absf((midPointPosition+leftPointPosition)/2.0 - localPosition)
	distanceToMidRight := absf((midPointPosition+rightPointPosition)/2.0 - localPosition)

	return minf(distanceToMidLeft, distanceToMidRight)
}

func voronoiNSphereRadius1D(p *VoronoiParams, coord float32) float32 {
	cellPosition := floorf(coord)
	localPosition := coord - cellPosition

	closestPoint := float32(0.0)
	closestPointOffset := float32(0.0)
	minDistance := float32(math.MaxFloat32)
	for i := -1; i <= 1; i++ {
		cellOffset := float32(i)
		pointPosition := cellOffset + HashFloatToFloat(cellPosition+cellOffset)*p.Randomness
		distanceToPoint := absf(pointPosition - localPosition)
		if distanceToPoint < minDistance {
			minDistance = distanceToPoint
			closestPoint = pointPosition
			closestPointOffset = cellOffset
		}
	}

	minDistance = float32(math.MaxFloat32)
	closestPointToClosestPoint := float32(0.0)
	for i := -1; i <= 1; i++ {
		if i == 0 {
			continue
		}
		cellOffset := float32(i) + closestPointOffset
		pointPosition := cellOffset + HashFloatToFloat(cellPosition+cellOffset)*p.Randomness
		distanceToPoint := absf(closestPoint - pointPosition)
		if distanceToPoint < minDistance {
			minDistance = distanceToPoint
			closestPointToClosestPoint = pointPosition
		}
	}

	return absf(closestPointToClosestPoint-closestPoint) / 2.0
}

/* 2D evaluators. */

func position2D(coord glm.Vec2) glm.Vec4 {
	return glm.Vec4{coord.X(), coord.Y(), 0.0, 0.0}
}

func cellPoint2D(p *VoronoiParams, cx, cy int32, offX, offY int32) glm.Vec2 {
	off := HashInt2ToFloat2(cx+offX, cy+offY).Mul(p.Randomness)
	return glm.Vec2{float32(offX) + off.X(), float32(offY) + off.Y()}
}

func voronoiF1_2D(p *VoronoiParams, coord glm.Vec2) VoronoiOutput {
	cellPositionF := floorVec2(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy := int32(cellPositionF.X()), int32(cellPositionF.Y())

	minDistance := float32(math.MaxFloat32)
	var targetOffX, targetOffY int32
	var targetPosition glm.Vec2
	for j := int32(-1); j <= 1; j++ {
		for i := int32(-1); i <= 1; i++ {
			pointPosition := cellPoint2D(p, cx, cy, i, j)
			distanceToPoint := voronoiDistanceBound2D(pointPosition, localPosition, p)
			if distanceToPoint < minDistance {
				targetOffX, targetOffY = i, j
				minDistance = distanceToPoint
				targetPosition = pointPosition
			}
		}
	}

	return VoronoiOutput{
		Distance: voronoiDistance2D(targetPosition, localPosition, p),
		Color:    HashInt2ToColor(cx+targetOffX, cy+targetOffY),
		Position: position2D(targetPosition.Add(cellPositionF)),
	}
}

func voronoiSmoothF1_2D(p *VoronoiParams, coord glm.Vec2) VoronoiOutput {
	cellPositionF := floorVec2(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy := int32(cellPositionF.X()), int32(cellPositionF.Y())

	smoothDistance := float32(0.0)
	smoothColor := glm.Vec3{}
	smoothPosition := glm.Vec2{}
	h := float32(-1.0)
	for j := int32(-2); j <= 2; j++ {
		for i := int32(-2); i <= 2; i++ {
			pointPosition := cellPoint2D(p, cx, cy, i, j)
			distanceToPoint := voronoiDistance2D(pointPosition, localPosition, p)
			if h == -1.0 {
				h = 1.0
			} else {
				h = smoothstep01(0.5 + 0.5*(smoothDistance-distanceToPoint)/p.Smoothness)
			}
			correctionFactor := p.Smoothness * h * (1.0 - h)
			smoothDistance = mixf(smoothDistance, distanceToPoint, h) - correctionFactor
			correctionFactor /= 1.0 + 3.0*p.Smoothness
			cellColor := HashInt2ToColor(cx+i, cy+j)
			smoothColor = mixVec3(smoothColor, cellColor, h).Sub(glm.Vec3{correctionFactor, correctionFactor, correctionFactor})
			smoothPosition = mixVec2(smoothPosition, pointPosition, h).Sub(glm.Vec2{correctionFactor, correctionFactor})
		}
	}

	return VoronoiOutput{
		Distance: smoothDistance,
		Color:    smoothColor,
		Position: position2D(cellPositionF.Add(smoothPosition)),
	}
}

func voronoiF2_2D(p *VoronoiParams, coord glm.Vec2) VoronoiOutput {
	cellPositionF := floorVec2(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy := int32(cellPositionF.X()), int32(cellPositionF.Y())

	distanceF1 := float32(math.MaxFloat32)
	distanceF2 := float32(math.MaxFloat32)
	var offF1X, offF1Y, offF2X, offF2Y int32
	var positionF1, positionF2 glm.Vec2
	for j := int32(-1); j <= 1; j++ {
		for i := int32(-1); i <= 1; i++ {
			pointPosition := cellPoint2D(p, cx, cy, i, j)
			distanceToPoint := voronoiDistance2D(pointPosition, localPosition, p)
			if distanceToPoint < distanceF1 {
				distanceF2 = distanceF1
				distanceF1 = distanceToPoint
				offF2X, offF2Y = offF1X, offF1Y
				offF1X, offF1Y = i, j
				positionF2 = positionF1
				positionF1 = pointPosition
			} else if distanceToPoint < distanceF2 {
				distanceF2 = distanceToPoint
				offF2X, offF2Y = i, j
				positionF2 = pointPosition
			}
		}
	}

	return VoronoiOutput{
		Distance: distanceF2,
		Color:    HashInt2ToColor(cx+offF2X, cy+offF2Y),
		Position: position2D(positionF2.Add(cellPositionF)),
	}
}

func voronoiDistanceToEdge2D(p *VoronoiParams, coord glm.Vec2) float32 {
	cellPositionF := floorVec2(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy := int32(cellPositionF.X()), int32(cellPositionF.Y())

	vectorToClosest := glm.Vec2{}
	minDistance := float32(math.MaxFloat32)
	for j := int32(-1); j <= 1; j++ {
		for i := int32(-1); i <= 1; i++ {
			vectorToPoint := cellPoint2D(p, cx, cy, i, j).Sub(localPosition)
			distanceToPoint := vectorToPoint.Dot(vectorToPoint)
			if distanceToPoint < minDistance {
				minDistance = distanceToPoint
				vectorToClosest = vectorToPoint
			}
		}
	}

	minDistance = float32(math.MaxFloat32)
	for j := int32(-1); j <= 1; j++ {
		for i := int32(-1); i <= 1; i++ {
			vectorToPoint := cellPoint2D(p, cx, cy, i, j).Sub(localPosition)
			perpendicularToEdge := vectorToPoint.Sub(vectorToClosest)
			if perpendicularToEdge.Dot(perpendicularToEdge) > 0.0001 {
				distanceToEdge := vectorToClosest.Add(vectorToPoint).Mul(0.5).Dot(perpendicularToEdge.Normalize())
				minDistance = minf(minDistance, distanceToEdge)
			}
		}
	}

	return minDistance
}

func voronoiNSphereRadius2D(p *VoronoiParams, coord glm.Vec2) float32 {
	cellPositionF := floorVec2(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy := int32(cellPositionF.X()), int32(cellPositionF.Y())

	closestPoint := glm.Vec2{}
	var closestOffX, closestOffY int32
	minDistanceSq := float32(math.MaxFloat32)
	for j := int32(-1); j <= 1; j++ {
		for i := int32(-1); i <= 1; i++ {
			pointPosition := cellPoint2D(p, cx, cy, i, j)
			d := pointPosition.Sub(localPosition)
			distanceSq := d.Dot(d)
			if distanceSq < minDistanceSq {
				minDistanceSq = distanceSq
				closestPoint = pointPosition
				closestOffX, closestOffY = i, j
			}
		}
	}

	minDistanceSq = float32(math.MaxFloat32)
	closestPointToClosestPoint := glm.Vec2{}
	for j := int32(-1); j <= 1; j++ {
		for i := int32(-1); i <= 1; i++ {
			if i == 0 && j == 0 {
				continue
			}
			pointPosition := cellPoint2D(p, cx, cy, i+closestOffX, j+closestOffY)
			d := closestPoint.Sub(pointPosition)
			distanceSq := d.Dot(d)
			if distanceSq < minDistanceSq {
				minDistanceSq = distanceSq
				closestPointToClosestPoint = pointPosition
			}
		}
	}

	return closestPointToClosestPoint.Sub(closestPoint).Len() / 2.0
}

/* 3D evaluators. */

func position3D(coord glm.Vec3) glm.Vec4 {
	return glm.Vec4{coord.X(), coord.Y(), coord.Z(), 0.0}
}

func cellPoint3D(p *VoronoiParams, cx, cy, cz int32, offX, offY, offZ int32) glm.Vec3 {
	off := HashInt3ToFloat3(cx+offX, cy+offY, cz+offZ).Mul(p.Randomness)
	return glm.Vec3{float32(offX) + off.X(), float32(offY) + off.Y(), float32(offZ) + off.Z()}
}

func voronoiF1_3D(p *VoronoiParams, coord glm.Vec3) VoronoiOutput {
	cellPositionF := floorVec3(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy, cz := int32(cellPositionF.X()), int32(cellPositionF.Y()), int32(cellPositionF.Z())

	minDistance := float32(math.MaxFloat32)
	var targetOffX, targetOffY, targetOffZ int32
	var targetPosition glm.Vec3
	for k := int32(-1); k <= 1; k++ {
		for j := int32(-1); j <= 1; j++ {
			for i := int32(-1); i <= 1; i++ {
				pointPosition := cellPoint3D(p, cx, cy, cz, i, j, k)
				distanceToPoint := voronoiDistanceBound3D(pointPosition, localPosition, p)
				if distanceToPoint < minDistance {
					targetOffX, targetOffY, targetOffZ = i, j, k
					minDistance = distanceToPoint
					targetPosition = pointPosition
				}
			}
		}
	}

	return VoronoiOutput{
		Distance: voronoiDistance3D(targetPosition, localPosition, p),
		Color:    HashInt3ToColor(cx+targetOffX, cy+targetOffY, cz+targetOffZ),
		Position: position3D(targetPosition.Add(cellPositionF)),
	}
}

func voronoiSmoothF1_3D(p *VoronoiParams, coord glm.Vec3) VoronoiOutput {
	cellPositionF := floorVec3(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy, cz := int32(cellPositionF.X()), int32(cellPositionF.Y()), int32(cellPositionF.Z())

	smoothDistance := float32(0.0)
	smoothColor := glm.Vec3{}
	smoothPosition := glm.Vec3{}
	h := float32(-1.0)
	for k := int32(-2); k <= 2; k++ {
		for j := int32(-2); j <= 2; j++ {
			for i := int32(-2); i <= 2; i++ {
				pointPosition := cellPoint3D(p, cx, cy, cz, i, j, k)
				distanceToPoint := voronoiDistance3D(pointPosition, localPosition, p)
				if h == -1.0 {
					h = 1.0
				} else {
					h = smoothstep01(0.5 + 0.5*(smoothDistance-distanceToPoint)/p.Smoothness)
				}
				correctionFactor := p.Smoothness * h * (1.0 - h)
				smoothDistance = mixf(smoothDistance, distanceToPoint, h) - correctionFactor
				correctionFactor /= 1.0 + 3.0*p.Smoothness
				cellColor := HashInt3ToColor(cx+i, cy+j, cz+k)
				smoothColor = mixVec3(smoothColor, cellColor, h).Sub(glm.Vec3{correctionFactor, correctionFactor, correctionFactor})
				smoothPosition = mixVec3(smoothPosition, pointPosition, h).Sub(glm.Vec3{correctionFactor, correctionFactor, correctionFactor})
			}
		}
	}

	return VoronoiOutput{
		Distance: smoothDistance,
		Color:    smoothColor,
		Position: position3D(cellPositionF.Add(smoothPosition)),
	}
}

func voronoiF2_3D(p *VoronoiParams, coord glm.Vec3) VoronoiOutput {
	cellPositionF := floorVec3(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy, cz := int32(cellPositionF.X()), int32(cellPositionF.Y()), int32(cellPositionF.Z())

	distanceF1 := float32(math.MaxFloat32)
	distanceF2 := float32(math.MaxFloat32)
	var offF1X, offF1Y, offF1Z, offF2X, offF2Y, offF2Z int32
	var positionF1, positionF2 glm.Vec3
	for k := int32(-1); k <= 1; k++ {
		for j := int32(-1); j <= 1; j++ {
			for i := int32(-1); i <= 1; i++ {
				pointPosition := cellPoint3D(p, cx, cy, cz, i, j, k)
				distanceToPoint := voronoiDistance3D(pointPosition, localPosition, p)
				if distanceToPoint < distanceF1 {
					distanceF2 = distanceF1
					distanceF1 = distanceToPoint
					offF2X, offF2Y, offF2Z = offF1X, offF1Y, offF1Z
					offF1X, offF1Y, offF1Z = i, j, k
					positionF2 = positionF1
					positionF1 = pointPosition
				} else if distanceToPoint < distanceF2 {
					distanceF2 = distanceToPoint
					offF2X, offF2Y, offF2Z = i, j, k
					positionF2 = pointPosition
				}
			}
		}
	}

	return VoronoiOutput{
		Distance: distanceF2,
		Color:    HashInt3ToColor(cx+offF2X, cy+offF2Y, cz+offF2Z),
		Position: position3D(positionF2.Add(cellPositionF)),
	}
}

func voronoiDistanceToEdge3D(p *VoronoiParams, coord glm.Vec3) float32 {
	cellPositionF := floorVec3(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy, cz := int32(cellPositionF.X()), int32(cellPositionF.Y()), int32(cellPositionF.Z())

	vectorToClosest := glm.Vec3{}
	minDistance := float32(math.MaxFloat32)
	for k := int32(-1); k <= 1; k++ {
		for j := int32(-1); j <= 1; j++ {
			for i := int32(-1); i <= 1; i++ {
				vectorToPoint := cellPoint3D(p, cx, cy, cz, i, j, k).Sub(localPosition)
				distanceToPoint := vectorToPoint.Dot(vectorToPoint)
				if distanceToPoint < minDistance {
					minDistance = distanceToPoint
					vectorToClosest = vectorToPoint
				}
			}
		}
	}

	minDistance = float32(math.MaxFloat32)
	for k := int32(-1); k <= 1; k++ {
		for j := int32(-1); j <= 1; j++ {
			for i := int32(-1); i <= 1; i++ {
				vectorToPoint := cellPoint3D(p, cx, cy, cz, i, j, k).Sub(localPosition)
				perpendicularToEdge := vectorToPoint.Sub(vectorToClosest)
				if perpendicularToEdge.Dot(perpendicularToEdge) > 0.0001 {
					distanceToEdge := vectorToClosest.Add(vectorToPoint).Mul(0.5).Dot(perpendicularToEdge.Normalize())
					minDistance = minf(minDistance, distanceToEdge)
				}
			}
		}
	}

	return minDistance
}

func voronoiNSphereRadius3D(p *VoronoiParams, coord glm.Vec3) float32 {
	cellPositionF := floorVec3(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy, cz := int32(cellPositionF.X()), int32(cellPositionF.Y()), int32(cellPositionF.Z())

	closestPoint := glm.Vec3{}
	var closestOffX, closestOffY, closestOffZ int32
	minDistanceSq := float32(math.MaxFloat32)
	for k := int32(-1); k <= 1; k++ {
		for j := int32(-1); j <= 1; j++ {
			for i := int32(-1); i <= 1; i++ {
				pointPosition := cellPoint3D(p, cx, cy, cz, i, j, k)
				d := pointPosition.Sub(localPosition)
				distanceSq := d.Dot(d)
				if distanceSq < minDistanceSq {
					minDistanceSq = distanceSq
					closestPoint = pointPosition
					closestOffX, closestOffY, closestOffZ = i, j, k
				}
			}
		}
	}

	minDistanceSq = float32(math.MaxFloat32)
	closestPointToClosestPoint := glm.Vec3{}
	for k := int32(-1); k <= 1; k++ {
		for j := int32(-1); j <= 1; j++ {
			for i := int32(-1); i <= 1; i++ {
				if i == 0 && j == 0 && k == 0 {
					continue
				}
				pointPosition := cellPoint3D(p, cx, cy, cz, i+closestOffX, j+closestOffY, k+closestOffZ)
				d := closestPoint.Sub(pointPosition)
				distanceSq := d.Dot(d)
				if distanceSq < minDistanceSq {
					minDistanceSq = distanceSq
					closestPointToClosestPoint = pointPosition
				}
			}
		}
	}

	return closestPointToClosestPoint.Sub(closestPoint).Len() / 2.0
}

/* 4D evaluators. */

func cellPoint4D(p *VoronoiParams, cx, cy, cz, cw int32, offX, offY, offZ, offW int32) glm.Vec4 {
	off := HashInt4ToFloat4(cx+offX, cy+offY, cz+offZ, cw+offW).Mul(p.Randomness)
	return glm.Vec4{
		float32(offX) + off.X(),
		float32(offY) + off.Y(),
		float32(offZ) + off.Z(),
		float32(offW) + off.W(),
	}
}

func voronoiF1_4D(p *VoronoiParams, coord glm.Vec4) VoronoiOutput {
	cellPositionF := floorVec4(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy := int32(cellPositionF.X()), int32(cellPositionF.Y())
	cz, cw := int32(cellPositionF.Z()), int32(cellPositionF.W())

	minDistance := float32(math.MaxFloat32)
	var targetOffX, targetOffY, targetOffZ, targetOffW int32
	var targetPosition glm.Vec4
	for u := int32(-1); u <= 1; u++ {
		for k := int32(-1); k <= 1; k++ {
			for j := int32(-1); j <= 1; j++ {
				for i := int32(-1); i <= 1; i++ {
					pointPosition := cellPoint4D(p, cx, cy, cz, cw, i, j, k, u)
					distanceToPoint := voronoiDistanceBound4D(pointPosition, localPosition, p)
					if distanceToPoint < minDistance {
						targetOffX, targetOffY, targetOffZ, targetOffW = i, j, k, u
						minDistance = distanceToPoint
						targetPosition = pointPosition
					}
				}
			}
		}
	}

	return VoronoiOutput{
		Distance: voronoiDistance4D(targetPosition, localPosition, p),
		Color:    HashInt4ToColor(cx+targetOffX, cy+targetOffY, cz+targetOffZ, cw+targetOffW),
		Position: targetPosition.Add(cellPositionF),
	}
}

func voronoiSmoothF1_4D(p *VoronoiParams, coord glm.Vec4) VoronoiOutput {
	cellPositionF := floorVec4(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy := int32(cellPositionF.X()), int32(cellPositionF.Y())
	cz, cw := int32(cellPositionF.Z()), int32(cellPositionF.W())

	smoothDistance := float32(0.0)
	smoothColor := glm.Vec3{}
	smoothPosition := glm.Vec4{}
	h := float32(-1.0)
	for u := int32(-2); u <= 2; u++ {
		for k := int32(-2); k <= 2; k++ {
			for j := int32(-2); j <= 2; j++ {
				for i := int32(-2); i <= 2; i++ {
					pointPosition := cellPoint4D(p, cx, cy, cz, cw, i, j, k, u)
					distanceToPoint := voronoiDistance4D(pointPosition, localPosition, p)
					if h == -1.0 {
						h = 1.0
					} else {
						h = smoothstep01(0.5 + 0.5*(smoothDistance-distanceToPoint)/p.Smoothness)
					}
					correctionFactor := p.Smoothness * h * (1.0 - h)
					smoothDistance = mixf(smoothDistance, distanceToPoint, h) - correctionFactor
					correctionFactor /= 1.0 + 3.0*p.Smoothness
					cellColor := HashInt4ToColor(cx+i, cy+j, cz+k, cw+u)
					smoothColor = mixVec3(smoothColor, cellColor, h).Sub(glm.Vec3{correctionFactor, correctionFactor, correctionFactor})
					smoothPosition = mixVec4(smoothPosition, pointPosition, h).Sub(glm.Vec4{correctionFactor, correctionFactor, correctionFactor, correctionFactor})
				}
			}
		}
	}

	return VoronoiOutput{
		Distance: smoothDistance,
		Color:    smoothColor,
		Position: cellPositionF.Add(smoothPosition),
	}
}

func voronoiF2_4D(p *VoronoiParams, coord glm.Vec4) VoronoiOutput {
	cellPositionF := floorVec4(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy := int32(cellPositionF.X()), int32(cellPositionF.Y())
	cz, cw := int32(cellPositionF.Z()), int32(cellPositionF.W())

	distanceF1 := float32(math.MaxFloat32)
	distanceF2 := float32(math.MaxFloat32)
	var offF1X, offF1Y, offF1Z, offF1W int32
	var offF2X, offF2Y, offF2Z, offF2W int32
	var positionF1, positionF2 glm.Vec4
	for u := int32(-1); u <= 1; u++ {
		for k := int32(-1); k <= 1; k++ {
			for j := int32(-1); j <= 1; j++ {
				for i := int32(-1); i <= 1; i++ {
					pointPosition := cellPoint4D(p, cx, cy, cz, cw, i, j, k, u)
					distanceToPoint := voronoiDistance4D(pointPosition, localPosition, p)
					if distanceToPoint < distanceF1 {
						distanceF2 = distanceF1
						distanceF1 = distanceToPoint
						offF2X, offF2Y, offF2Z, offF2W = offF1X, offF1Y, offF1Z, offF1W
						offF1X, offF1Y, offF1Z, offF1W = i, j, k, u
						positionF2 = positionF1
						positionF1 = pointPosition
					} else if distanceToPoint < distanceF2 {
						distanceF2 = distanceToPoint
						offF2X, offF2Y, offF2Z, offF2W = i, j, k, u
						positionF2 = pointPosition
					}
				}
			}
		}
	}

	return VoronoiOutput{
		Distance: distanceF2,
		Color:    HashInt4ToColor(cx+offF2X, cy+offF2Y, cz+offF2Z, cw+offF2W),
		Position: positionF2.Add(cellPositionF),
	}
}

func voronoiDistanceToEdge4D(p *VoronoiParams, coord glm.Vec4) float32 {
	cellPositionF := floorVec4(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy := int32(cellPositionF.X()), int32(cellPositionF.Y())
	cz, cw := int32(cellPositionF.Z()), int32(cellPositionF.W())

	vectorToClosest := glm.Vec4{}
	minDistance := float32(math.MaxFloat32)
	for u := int32(-1); u <= 1; u++ {
		for k := int32(-1); k <= 1; k++ {
			for j := int32(-1); j <= 1; j++ {
				for i := int32(-1); i <= 1; i++ {
					vectorToPoint := cellPoint4D(p, cx, cy, cz, cw, i, j, k, u).Sub(localPosition)
					distanceToPoint := vectorToPoint.Dot(vectorToPoint)
					if distanceToPoint < minDistance {
						minDistance = distanceToPoint
						vectorToClosest = vectorToPoint
					}
				}
			}
		}
	}

	minDistance = float32(math.MaxFloat32)
	for u := int32(-1); u <= 1; u++ {
		for k := int32(-1); k <= 1; k++ {
			for j := int32(-1); j <= 1; j++ {
				for i := int32(-1); i <= 1; i++ {
					vectorToPoint := cellPoint4D(p, cx, cy, cz, cw, i, j, k, u).Sub(localPosition)
					perpendicularToEdge := vectorToPoint.Sub(vectorToClosest)
					if perpendicularToEdge.Dot(perpendicularToEdge) > 0.0001 {
						distanceToEdge := vectorToClosest.Add(vectorToPoint).Mul(0.5).Dot(perpendicularToEdge.Normalize())
						minDistance = minf(minDistance, distanceToEdge)
					}
				}
			}
		}
	}

	return minDistance
}

func voronoiNSphereRadius4D(p *VoronoiParams, coord glm.Vec4) float32 {
	cellPositionF := floorVec4(coord)
	localPosition := coord.Sub(cellPositionF)
	cx, cy := int32(cellPositionF.X()), int32(cellPositionF.Y())
	cz, cw := int32(cellPositionF.Z()), int32(cellPositionF.W())

	closestPoint := glm.Vec4{}
	var closestOffX, closestOffY, closestOffZ, closestOffW int32
	minDistanceSq := float32(math.MaxFloat32)
	for u := int32(-1); u <= 1; u++ {
		for k := int32(-1); k <= 1; k++ {
			for j := int32(-1); j <= 1; j++ {
				for i := int32(-1); i <= 1; i++ {
					pointPosition := cellPoint4D(p, cx, cy, cz, cw, i, j, k, u)
					d := pointPosition.Sub(localPosition)
					distanceSq := d.Dot(d)
					if distanceSq < minDistanceSq {
						minDistanceSq = distanceSq
						closestPoint = pointPosition
						closestOffX, closestOffY, closestOffZ, closestOffW = i, j, k, u
					}
				}
			}
		}
	}

	minDistanceSq = float32(math.MaxFloat32)
	closestPointToClosestPoint := glm.Vec4{}
	for u := int32(-1); u <= 1; u++ {
		for k := int32(-1); k <= 1; k++ {
			for j := int32(-1); j <= 1; j++ {
				for i := int32(-1); i <= 1; i++ {
					if i == 0 && j == 0 && k == 0 && u == 0 {
						continue
					}
					pointPosition := cellPoint4D(p, cx, cy, cz, cw,
						i+closestOffX, j+closestOffY, k+closestOffZ, u+closestOffW)
					d := closestPoint.Sub(pointPosition)
					distanceSq := d.Dot(d)
					if distanceSq < minDistanceSq {
						minDistanceSq = distanceSq
						closestPointToClosestPoint = pointPosition
					}
				}
			}
		}
	}

	return closestPointToClosestPoint.Sub(closestPoint).Len() / 2.0
}

func mixVec2(a, b glm.Vec2, t float32) glm.Vec2 {
	return a.Add(b.Sub(a).Mul(t))
}
