package safemath

import (
	"errors"
	"math"

	"github.com/ryanavella/wide"
)

var (
	ErrOverflow     = errors.New("arithmetic overflow")
	ErrUnderflow    = errors.New("arithmetic underflow")
	ErrDivideByZero = errors.New("division by zero")
)

func CheckedAddU64(a uint64, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

func CheckedSubU64(a uint64, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

func CheckedMulU64(a uint64, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

func SaturatingAddU64(a uint64, b uint64) uint64 {
	sum, err := CheckedAddU64(a, b)
	if err != nil {
		return math.MaxUint64
	}
	return sum
}

func SaturatingSubU64(a uint64, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func SaturatingMulU64(a uint64, b uint64) uint64 {
	product, err := CheckedMulU64(a, b)
	if err != nil {
		return math.MaxUint64
	}
	return product
}

// MulDivU64 computes floor(a*b/c) with a 128-bit intermediate product.
func MulDivU64(a uint64, b uint64, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivideByZero
	}

	product := wide.Uint128FromUint64(a).Mul(wide.Uint128FromUint64(b))
	quotient := product.Div(wide.Uint128FromUint64(c))

	if !quotient.IsUint64() {
		return 0, ErrOverflow
	}
	return quotient.Uint64(), nil
}
