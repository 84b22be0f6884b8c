package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckedAddU64(t *testing.T) {
	sum, err := CheckedAddU64(1, 2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = CheckedAddU64(math.MaxUint64, 1)
	assert.Equal(t, ErrOverflow, err)
}

func TestCheckedSubU64(t *testing.T) {
	diff, err := CheckedSubU64(10, 4)
	assert.NoError(t, err)
	assert.Equal(t, uint64(6), diff)

	_, err = CheckedSubU64(4, 10)
	assert.Equal(t, ErrUnderflow, err)
}

func TestCheckedMulU64(t *testing.T) {
	product, err := CheckedMulU64(1000000000, 1000)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1000000000000), product)

	_, err = CheckedMulU64(math.MaxUint64, 2)
	assert.Equal(t, ErrOverflow, err)
}

func TestSaturating(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAddU64(math.MaxUint64, 100))
	assert.Equal(t, uint64(0), SaturatingSubU64(100, 200))
	assert.Equal(t, uint64(7), SaturatingSubU64(10, 3))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingMulU64(math.MaxUint64, 3))
}

func TestCheckedMulDivU64(t *testing.T) {
	// exercises the 128-bit intermediate: a*b overflows uint64
	quot, err := CheckedMulDivU64(math.MaxUint64/2, 4, 8)
	assert.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/4), quot)

	quot, err = CheckedMulDivU64(7, 3, 2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(10), quot)

	_, err = CheckedMulDivU64(1, 1, 0)
	assert.Equal(t, ErrDivisionByZero, err)

	_, err = CheckedMulDivU64(math.MaxUint64, math.MaxUint64, 2)
	assert.Equal(t, ErrOverflow, err)
}
