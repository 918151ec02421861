package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckedAddU64(t *testing.T) {
	sum, err := CheckedAddU64(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = CheckedAddU64(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCheckedSubU64(t *testing.T) {
	diff, err := CheckedSubU64(5, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), diff)

	_, err = CheckedSubU64(4, 5)
	assert.ErrorIs(t, err, ErrUnderflow)
}

func TestCheckedMulU64(t *testing.T) {
	product, err := CheckedMulU64(0, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), product)

	_, err = CheckedMulU64(math.MaxUint64, 2)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestSaturating(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAddU64(math.MaxUint64, 10))
	assert.Equal(t, uint64(0), SaturatingSubU64(3, 10))
	assert.Equal(t, uint64(7), SaturatingSubU64(10, 3))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingMulU64(math.MaxUint64, 3))
}

func TestMulDivU64(t *testing.T) {
	quotient, err := MulDivU64(1_100_000_000, 3_000_000_000, 3_100_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_064_516_129), quotient)

	// the intermediate product exceeds 64 bits but the quotient does not
	quotient, err = MulDivU64(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), quotient)

	_, err = MulDivU64(math.MaxUint64, 2, 1)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = MulDivU64(1, 1, 0)
	assert.ErrorIs(t, err, ErrDivideByZero)
}
