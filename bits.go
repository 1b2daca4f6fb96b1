package sbf

import (
	"math/bits"

	"github.com/klauspost/cpuid/v2"
)

// hasFastSelect gates select64 between a popcount-driven binary search and
// a linear bit scan. The broadword search leans on hardware POPCNT the way
// the reference implementation leans on BMI2 pdep+ctz; Go has no portable
// way to emit pdep without an assembly stub, so the "fast path" here is a
// different, still-hardware-backed algorithm rather than a transliteration
// of the intrinsic. See DESIGN.md.
var hasFastSelect = cpuid.CPU.Supports(cpuid.POPCNT)

func popcount64(x uint64) int {
	return bits.OnesCount64(x)
}

func clz64(x uint64) int {
	return bits.LeadingZeros64(x)
}

// select64 returns the position of the (n+1)-th set bit in x, counting
// from the least-significant end. Callers guarantee 0 <= n < popcount(x).
func select64(x uint64, n int) int {
	if hasFastSelect {
		return selectBroadword(x, n)
	}
	return selectPortable(x, n)
}

// selectPortable is the canonical fallback: scan bits from the low end,
// counting set bits until the n-th one.
func selectPortable(x uint64, n int) int {
	for i := 0; i < 64; i++ {
		if x&1 == 1 {
			if n == 0 {
				return i
			}
			n--
		}
		x >>= 1
	}
	return -1
}

// selectBroadword finds the (n+1)-th set bit with a popcount-driven binary
// search over successively narrower low windows of x, instead of a linear
// scan. Six OnesCount64 calls (each a single POPCNT instruction) replace up
// to 64 scalar iterations.
func selectBroadword(x uint64, n int) int {
	remaining := n + 1
	pos := 0
	for width := 32; width >= 1; width >>= 1 {
		mask := uint64(1)<<uint(width) - 1
		count := bits.OnesCount64((x >> uint(pos)) & mask)
		if count < remaining {
			pos += width
			remaining -= count
		}
	}
	return pos
}

// lowMaskInclusive returns a mask with bits [0, bit] set.
func lowMaskInclusive(bit int) uint64 {
	return ^uint64(0) >> uint(63-bit)
}
