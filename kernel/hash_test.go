// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kernel

import (
	"math"
	"testing"
)

func TestHashUintDeterminism(t *testing.T) {
	for i := uint32(0); i < 1000; i++ {
		if HashUint(i) != HashUint(i) {
			t.Fatalf("HashUint(%d) is not stable", i)
		}
		if HashUint2(i, i+1) != HashUint2(i, i+1) {
			t.Fatalf("HashUint2(%d, %d) is not stable", i, i+1)
		}
	}
}

func TestHashUintArityMatters(t *testing.T) {
	// The seed folds in the argument count, so the same leading words must
	// hash differently at different arities.
	if HashUint(7) == HashUint2(7, 0) {
		t.Error("1-word and 2-word hashes collide on identical input")
	}
	if HashUint2(7, 9) == HashUint3(7, 9, 0) {
		t.Error("2-word and 3-word hashes collide on identical input")
	}
	if HashUint3(7, 9, 11) == HashUint4(7, 9, 11, 0) {
		t.Error("3-word and 4-word hashes collide on identical input")
	}
}

func TestHashFloatToFloatRange(t *testing.T) {
	for i := -500; i < 500; i++ {
		k := float32(i) * 0.137
		v := HashFloatToFloat(k)
		if v < 0.0 || v > 1.0 {
			t.Fatalf("HashFloatToFloat(%f) = %f, out of [0, 1]", k, v)
		}
	}
}

func TestHashFloatDistribution(t *testing.T) {
	const n = 10000
	sum := float64(0)
	for i := 0; i < n; i++ {
		sum += float64(HashFloat2ToFloat(float32(i), 0.5))
	}
	mean := sum / n
	if math.Abs(mean-0.5) > 0.02 {
		t.Errorf("hash output mean %f deviates from 0.5", mean)
	}
}

func TestHashIntVectorComponentsDiffer(t *testing.T) {
	v := HashInt3ToFloat3(3, -7, 12)
	if v.X() == v.Y() || v.Y() == v.Z() || v.X() == v.Z() {
		t.Errorf("vector hash components are correlated: %v", v)
	}
	for i := 0; i < 3; i++ {
		if v[i] < 0.0 || v[i] > 1.0 {
			t.Errorf("component %d = %f, out of [0, 1]", i, v[i])
		}
	}
}

func TestHashFloatToColorMatchesScalarHashes(t *testing.T) {
	k := float32(42.5)
	c := HashFloatToColor(k)
	if c.X() != HashFloatToFloat(k) {
		t.Error("color red channel diverges from scalar hash")
	}
	if c.Y() != HashFloat2ToFloat(k, 1.0) {
		t.Error("color green channel diverges from scalar hash")
	}
	if c.Z() != HashFloat2ToFloat(k, 2.0) {
		t.Error("color blue channel diverges from scalar hash")
	}
}

func TestHashNegativeCells(t *testing.T) {
	// Negative lattice coordinates must hash as well as positive ones.
	a := HashInt2ToFloat2(-1, -1)
	b := HashInt2ToFloat2(1, 1)
	if a == b {
		t.Error("sign of the cell coordinate is ignored")
	}
}

func BenchmarkHashUint3(b *testing.B) {
	for i := 0; i < b.N; i++ {
		HashUint3(uint32(i), uint32(i)+1, uint32(i)+2)
	}
}

func BenchmarkHashInt3ToColor(b *testing.B) {
	for i := 0; i < b.N; i++ {
		HashInt3ToColor(int32(i), int32(i)+1, int32(i)+2)
	}
}
