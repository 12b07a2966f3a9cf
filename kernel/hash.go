// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kernel

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Integer hashing after Bob Jenkins' lookup3 final mix. The hash is a fixed
// function of its inputs, never seeded per call, so that shading evaluation
// at the same coordinate is bit-reproducible across frames and threads.

func rot32(x uint32, k uint) uint32 {
	return x<<k | x>>(32-k)
}

func finalMix(a, b, c uint32) uint32 {
	c ^= b
	c -= rot32(b, 14)
	a ^= c
	a -= rot32(c, 11)
	b ^= a
	b -= rot32(a, 25)
	c ^= b
	c -= rot32(b, 16)
	a ^= c
	a -= rot32(c, 4)
	b ^= a
	b -= rot32(a, 14)
	c ^= b
	c -= rot32(b, 24)
	return c
}

// HashUint hashes a single unsigned integer.
func HashUint(kx uint32) uint32 {
	const seed = 0xdeadbeef + (1 << 2) + 13
	return finalMix(seed+kx, seed, seed)
}

// HashUint2 hashes a pair of unsigned integers.
func HashUint2(kx, ky uint32) uint32 {
	const seed = 0xdeadbeef + (2 << 2) + 13
	return finalMix(seed+kx, seed+ky, seed)
}

// HashUint3 hashes a triple of unsigned integers.
func HashUint3(kx, ky, kz uint32) uint32 {
	const seed = 0xdeadbeef + (3 << 2) + 13
	return finalMix(seed+kx, seed+ky, seed+kz)
}

// HashUint4 hashes a quadruple of unsigned integers.
func HashUint4(kx, ky, kz, kw uint32) uint32 {
	const seed = 0xdeadbeef + (4 << 2) + 13
	a, b, c := seed+kx, seed+ky, seed+kz
	c = finalMix(a, b, c)
	return finalMix(a+kw, b, c)
}

func uintToFloat(h uint32) float32 {
	return float32(h) * (1.0 / float32(math.MaxUint32))
}

// HashFloatToFloat hashes the bit pattern of a float into [0, 1].
func HashFloatToFloat(k float32) float32 {
	return uintToFloat(HashUint(math.Float32bits(k)))
}

// HashFloat2ToFloat hashes two floats into [0, 1].
func HashFloat2ToFloat(kx, ky float32) float32 {
	return uintToFloat(HashUint2(math.Float32bits(kx), math.Float32bits(ky)))
}

// HashFloatToColor derives three independent channels from one float key.
func HashFloatToColor(k float32) glm.Vec3 {
	return glm.Vec3{
		HashFloatToFloat(k),
		HashFloat2ToFloat(k, 1.0),
		HashFloat2ToFloat(k, 2.0),
	}
}

// Integer-cell hashes. Each output component re-hashes the cell hash with
// the component index, keeping all components decorrelated while the whole
// vector remains a pure function of the cell coordinate.

func hashComponent(base, index uint32) float32 {
	return uintToFloat(HashUint2(base, index))
}

// HashInt2ToFloat2 maps a 2D integer cell to a point in [0, 1]^2.
func HashInt2ToFloat2(kx, ky int32) glm.Vec2 {
	base := HashUint2(uint32(kx), uint32(ky))
	return glm.Vec2{hashComponent(base, 0), hashComponent(base, 1)}
}

// HashInt3ToFloat3 maps a 3D integer cell to a point in [0, 1]^3.
func HashInt3ToFloat3(kx, ky, kz int32) glm.Vec3 {
	base := HashUint3(uint32(kx), uint32(ky), uint32(kz))
	return glm.Vec3{hashComponent(base, 0), hashComponent(base, 1), hashComponent(base, 2)}
}

// HashInt4ToFloat4 maps a 4D integer cell to a point in [0, 1]^4.
func HashInt4ToFloat4(kx, ky, kz, kw int32) glm.Vec4 {
	base := HashUint4(uint32(kx), uint32(ky), uint32(kz), uint32(kw))
	return glm.Vec4{
		hashComponent(base, 0),
		hashComponent(base, 1),
		hashComponent(base, 2),
		hashComponent(base, 3),
	}
}

// HashInt2ToColor maps a 2D integer cell to an RGB triple in [0, 1]^3.
func HashInt2ToColor(kx, ky int32) glm.Vec3 {
	base := HashUint2(uint32(kx), uint32(ky))
	return glm.Vec3{hashComponent(base, 0), hashComponent(base, 1), hashComponent(base, 2)}
}

// HashInt3ToColor maps a 3D integer cell to an RGB triple in [0, 1]^3.
func HashInt3ToColor(kx, ky, kz int32) glm.Vec3 {
	return HashInt3ToFloat3(kx, ky, kz)
}

// HashInt4ToColor maps a 4D integer cell to an RGB triple in [0, 1]^3.
func HashInt4ToColor(kx, ky, kz, kw int32) glm.Vec3 {
	base := HashUint4(uint32(kx), uint32(ky), uint32(kz), uint32(kw))
	return glm.Vec3{hashComponent(base, 0), hashComponent(base, 1), hashComponent(base, 2)}
}
