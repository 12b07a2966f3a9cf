// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kernel

import (
	"math"
	"math/cmplx"
	"testing"

	qt "github.com/frankban/quicktest"
)

// naiveDFT is the O(n^2) reference transform.
func naiveDFT(x []complex64) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var sum complex128
		for i := 0; i < n; i++ {
			angle := -2.0 * math.Pi * float64(k) * float64(i) / float64(n)
			sum += complex128(x[i]) * cmplx.Exp(complex(0, angle))
		}
		out[k] = sum
	}
	return out
}

func testSignal(n int) []complex64 {
	x := make([]complex64, n)
	for i := range x {
		x[i] = complex(HashFloat2ToFloat(float32(i), 0)*2-1, HashFloat2ToFloat(float32(i), 1)*2-1)
	}
	return x
}

func TestFFTMatchesNaiveDFT(t *testing.T) {
	c := qt.New(t)
	for _, n := range []int{1, 2, 4, 8, 64, 256} {
		x := testSignal(n)
		want := naiveDFT(x)
		err := FFTRadix2(x)
		c.Assert(err, qt.IsNil)
		for k := range x {
			diff := cmplx.Abs(complex128(x[k]) - want[k])
			if diff > 1e-3*float64(n) {
				t.Fatalf("n=%d bin %d: fft %v, dft %v", n, k, x[k], want[k])
			}
		}
	}
}

func TestFFTRejectsBadLength(t *testing.T) {
	c := qt.New(t)
	c.Assert(FFTRadix2(make([]complex64, 0)), qt.IsNotNil)
	c.Assert(FFTRadix2(make([]complex64, 3)), qt.IsNotNil)
	c.Assert(FFTRadix2(make([]complex64, 12)), qt.IsNotNil)
	c.Assert(FFTRealToComplex(make([]float32, 6)), qt.IsNotNil)
	c.Assert(FFTRealToComplex(make([]float32, 1)), qt.IsNotNil)
}

func TestFFTLinearity(t *testing.T) {
	const n = 128
	a := testSignal(n)
	b := testSignal(n)
	for i := range b {
		b[i] *= complex(0.5, 0.25)
	}
	sum := make([]complex64, n)
	for i := range sum {
		sum[i] = a[i] + b[i]
	}

	qt.Assert(t, FFTRadix2(a), qt.IsNil)
	qt.Assert(t, FFTRadix2(b), qt.IsNil)
	qt.Assert(t, FFTRadix2(sum), qt.IsNil)
	for k := 0; k < n; k++ {
		diff := cmplx.Abs(complex128(sum[k]) - complex128(a[k]+b[k]))
		if diff > 1e-2 {
			t.Fatalf("bin %d: transform of sum %v differs from sum of transforms %v",
				k, sum[k], a[k]+b[k])
		}
	}
}

func TestFFTRealToComplexPacking(t *testing.T) {
	const n = 64
	data := make([]float32, n)
	full := make([]complex64, n)
	for i := range data {
		data[i] = HashFloat2ToFloat(float32(i), 3)*2 - 1
		full[i] = complex(data[i], 0)
	}

	qt.Assert(t, FFTRealToComplex(data), qt.IsNil)
	qt.Assert(t, FFTRadix2(full), qt.IsNil)

	approx := func(a, b float32) bool { return absf(a-b) < 1e-3 }
	if !approx(data[0], real(full[0])) {
		t.Fatalf("DC slot %f, want %f", data[0], real(full[0]))
	}
	if !approx(data[1], real(full[n/2])) {
		t.Fatalf("Nyquist slot %f, want %f", data[1], real(full[n/2]))
	}
	for k := 1; k < n/2; k++ {
		if !approx(data[2*k], real(full[k])) || !approx(data[2*k+1], imag(full[k])) {
			t.Fatalf("bin %d packed as (%f, %f), want (%f, %f)",
				k, data[2*k], data[2*k+1], real(full[k]), imag(full[k]))
		}
	}
}

func BenchmarkFFTRadix2_1024(b *testing.B) {
	x := testSignal(1024)
	scratch := make([]complex64, len(x))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		copy(scratch, x)
		if err := FFTRadix2(scratch); err != nil {
			b.Fatal(err)
		}
	}
}
