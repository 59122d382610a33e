// Package safeconv provides integer conversions that make overflow explicit.
package safeconv

import "math"

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// MaxUint32 is the maximum value for uint32 type.
const MaxUint32 = uint32(math.MaxUint32)

// MustIntToUint32 converts int to uint32, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustIntToUint32(v int) uint32 {
	if v < 0 || uint64(v) > uint64(MaxUint32) {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}

// MustUintptrToInt converts a uintptr such as a file descriptor to int,
// panics on overflow.
func MustUintptrToInt(v uintptr) int {
	if uint64(v) > uint64(MaxInt) {
		panic("safeconv: uintptr to int overflow")
	}

	return int(v)
}

// ClampToUint64 converts int64 to uint64, mapping negative values to zero.
func ClampToUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}
