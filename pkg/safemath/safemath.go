// Package safemath provides checked and saturating integer arithmetic
// for lamport and token quantities.
package safemath

import (
	"errors"
	"math"
	"math/bits"
)

var ErrOverflow = errors.New("arithmetic overflow")
var ErrUnderflow = errors.New("arithmetic underflow")
var ErrDivisionByZero = errors.New("division by zero")

func CheckedAddU64(a uint64, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

func CheckedSubU64(a uint64, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

func CheckedMulU64(a uint64, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

func CheckedDivU64(a uint64, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return a / b, nil
}

func SaturatingAddU64(a uint64, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func SaturatingSubU64(a uint64, b uint64) uint64 {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0
	}
	return diff
}

func SaturatingMulU64(a uint64, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// CheckedMulDivU64 computes (a * b) / denom with a 128-bit intermediate,
// flooring the result. Errors on a zero denominator or a quotient that
// does not fit in a uint64.
func CheckedMulDivU64(a uint64, b uint64, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, ErrDivisionByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= denom {
		return 0, ErrOverflow
	}
	quot, _ := bits.Div64(hi, lo, denom)
	return quot, nil
}
