// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kernel is the numerics library shared by all compute backends.
// Every function in it is pure and deterministic: the CPU backend calls
// them directly, the GPU backends mirror their semantics in shader code,
// and both must agree bit-for-bit on the procedural shading results.
package kernel

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

func floorf(x float32) float32 {
	return float32(math.Floor(float64(x)))
}

func ceilf(x float32) float32 {
	return float32(math.Ceil(float64(x)))
}

func absf(x float32) float32 {
	return float32(math.Abs(float64(x)))
}

func powf(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func clampf(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func mixf(a, b, t float32) float32 {
	return a + t*(b-a)
}

func mixVec3(a, b glm.Vec3, t float32) glm.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func mixVec4(a, b glm.Vec4, t float32) glm.Vec4 {
	return a.Add(b.Sub(a).Mul(t))
}

// smoothstep01 is the cubic Hermite step between edges 0 and 1.
func smoothstep01(x float32) float32 {
	t := clampf(x, 0.0, 1.0)
	return t * t * (3.0 - 2.0*t)
}

// safeDivideVec4 divides component-wise, mapping division by zero to zero.
func safeDivideVec4(a glm.Vec4, b float32) glm.Vec4 {
	if b == 0.0 {
		return glm.Vec4{}
	}
	return a.Mul(1.0 / b)
}

func floorVec2(v glm.Vec2) glm.Vec2 {
	return glm.Vec2{floorf(v.X()), floorf(v.Y())}
}

func floorVec3(v glm.Vec3) glm.Vec3 {
	return glm.Vec3{floorf(v.X()), floorf(v.Y()), floorf(v.Z())}
}

func floorVec4(v glm.Vec4) glm.Vec4 {
	return glm.Vec4{floorf(v.X()), floorf(v.Y()), floorf(v.Z()), floorf(v.W())}
}

func absVec2(v glm.Vec2) glm.Vec2 {
	return glm.Vec2{absf(v.X()), absf(v.Y())}
}

func absVec3(v glm.Vec3) glm.Vec3 {
	return glm.Vec3{absf(v.X()), absf(v.Y()), absf(v.Z())}
}

func absVec4(v glm.Vec4) glm.Vec4 {
	return glm.Vec4{absf(v.X()), absf(v.Y()), absf(v.Z()), absf(v.W())}
}

func powVec2(v glm.Vec2, e float32) glm.Vec2 {
	return glm.Vec2{powf(v.X(), e), powf(v.Y(), e)}
}

func powVec3(v glm.Vec3, e float32) glm.Vec3 {
	return glm.Vec3{powf(v.X(), e), powf(v.Y(), e), powf(v.Z(), e)}
}

func powVec4(v glm.Vec4, e float32) glm.Vec4 {
	return glm.Vec4{powf(v.X(), e), powf(v.Y(), e), powf(v.Z(), e), powf(v.W(), e)}
}

func reduceAddVec2(v glm.Vec2) float32 {
	return v.X() + v.Y()
}

func reduceAddVec3(v glm.Vec3) float32 {
	return v.X() + v.Y() + v.Z()
}

func reduceAddVec4(v glm.Vec4) float32 {
	return v.X() + v.Y() + v.Z() + v.W()
}

func reduceMaxVec2(v glm.Vec2) float32 {
	return maxf(v.X(), v.Y())
}

func reduceMaxVec3(v glm.Vec3) float32 {
	return maxf(maxf(v.X(), v.Y()), v.Z())
}

func reduceMaxVec4(v glm.Vec4) float32 {
	return maxf(maxf(v.X(), v.Y()), maxf(v.Z(), v.W()))
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
