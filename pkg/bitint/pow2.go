// SPDX-License-Identifier: MIT

/*
Package bitint holds the small integer helpers used when validating FFT
sizes. Every FFT in the pipeline runs on a radix-2 size, so configuration
errors are reported with the nearest valid neighbours to make the fix
obvious.

	bitint.IsPowerOfTwo(2048)       // true
	bitint.NextPowerOfTwo(2000)     // 2048
	bitint.PreviousPowerOfTwo(2000) // 1024

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map to themselves (8 -> 8, not 16).
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Zero and negative inputs return 1.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PreviousPowerOfTwo returns the largest power of two <= size.
// Zero and negative inputs return 0.
func PreviousPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo reports whether n is a positive power of two.
// A power of two has a single set bit, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
