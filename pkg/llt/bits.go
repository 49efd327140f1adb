package llt

import "math/bits"

// IsPow2 reports whether n is a positive power of two
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2Ceil returns the smallest k with 1<<k >= n (0 for n <= 1)
func Log2Ceil(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// NextPow2 returns the smallest power of two >= n
func NextPow2(n int) int {
	return 1 << Log2Ceil(n)
}

// AlignTo rounds n up to a multiple of align
func AlignTo(n, align int) int {
	return (n + align - 1) / align * align
}
