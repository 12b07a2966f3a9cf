// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kernel

import (
	"errors"
	"math"
	"math/bits"
)

// FFTRadix2 performs an in-place forward Fourier transform of x. The length
// must be a power of two. The transform is unscaled; callers wanting a
// round-trip divide by len(x) after the inverse pass.
func FFTRadix2(x []complex64) error {
	n := len(x)
	if n == 0 || n&(n-1) != 0 {
		return errors.New("kernel.FFTRadix2(): length must be a power of two")
	}
	if n == 1 {
		return nil
	}

	// Bit-reversal permutation. The shift drops everything below the
	// significant log2(n) bits.
	shift := uint(bits.LeadingZeros32(uint32(n)) + 1)
	for i := range x {
		j := int(bits.Reverse32(uint32(i)) >> shift)
		if j > i {
			x[i], x[j] = x[j], x[i]
		}
	}

	twiddle := make([]complex64, n/2)
	for k := range twiddle {
		angle := -2.0 * math.Pi * float64(k) / float64(n)
		twiddle[k] = complex(float32(math.Cos(angle)), float32(math.Sin(angle)))
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := n / size
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				w := twiddle[k*step]
				a := x[start+k]
				b := x[start+k+half] * w
				x[start+k] = a + b
				x[start+k+half] = a - b
			}
		}
	}
	return nil
}

// FFTRealToComplex transforms n real samples in place into the packed
// half-spectrum layout: data[0] holds the DC term, data[1] the Nyquist term
// (both purely real), and pairs data[2k], data[2k+1] the real and imaginary
// parts of bin k for 0 < k < n/2.
func FFTRealToComplex(data []float32) error {
	n := len(data)
	if n < 2 || n&(n-1) != 0 {
		return errors.New("kernel.FFTRealToComplex(): length must be a power of two")
	}

	buf := make([]complex64, n)
	for i, v := range data {
		buf[i] = complex(v, 0)
	}
	if err := FFTRadix2(buf); err != nil {
		return err
	}

	data[0] = real(buf[0])
	data[1] = real(buf[n/2])
	for k := 1; k < n/2; k++ {
		data[2*k] = real(buf[k])
		data[2*k+1] = imag(buf[k])
	}
	return nil
}
