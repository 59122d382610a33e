package safeconv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustIntToUint32(t *testing.T) {
	t.Parallel()

	t.Run("normal_value", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint32(42), MustIntToUint32(42))
	})

	t.Run("max_uint32", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, MaxUint32, MustIntToUint32(int(MaxUint32)))
	})

	t.Run("negative_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: int to uint32 out of bounds", func() {
			MustIntToUint32(-1)
		})
	})

	t.Run("overflow_panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			MustIntToUint32(int(MaxUint32) + 1)
		})
	})
}

func TestMustUintptrToInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, MustUintptrToInt(2))
	assert.Equal(t, MaxInt, MustUintptrToInt(uintptr(MaxInt)))
	assert.Panics(t, func() {
		MustUintptrToInt(uintptr(MaxInt) + 1)
	})
}

func TestClampToUint64(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), ClampToUint64(-5))
	assert.Equal(t, uint64(0), ClampToUint64(0))
	assert.Equal(t, uint64(math.MaxInt64), ClampToUint64(math.MaxInt64))
}
