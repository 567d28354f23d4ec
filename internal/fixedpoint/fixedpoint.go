// Package fixedpoint provides checked integer arithmetic for pool accounting.
//
// Every operation returns an error instead of wrapping or truncating
// silently. Products that can exceed 64 bits are widened to 256 bits before
// the division that brings them back into range.
package fixedpoint

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow           = errors.New("mathematical overflow occurred")
	ErrUnderflow          = errors.New("mathematical underflow occurred")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrInvalidCalculation = errors.New("invalid calculation result")
)

// BpsDenominator is the basis-point base: 10000 bps = 100%.
const BpsDenominator uint64 = 10_000

// Add returns a + b.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a - b.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// Mul returns a * b.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Div returns a / b, truncated toward zero.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return a / b, nil
}

// Product returns a * b widened to 256 bits. It cannot overflow.
func Product(a, b uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
}

// Quo divides a widened value by d and narrows the result back to 64 bits.
func Quo(n *uint256.Int, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	q := new(uint256.Int).Div(n, uint256.NewInt(d))
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

// MulDiv returns a * b / d with a 256-bit intermediate.
func MulDiv(a, b, d uint64) (uint64, error) {
	return Quo(Product(a, b), d)
}

// Bps returns amount * bps / 10000, truncated.
func Bps(amount uint64, bps uint32) (uint64, error) {
	if uint64(bps) > BpsDenominator {
		return 0, ErrInvalidCalculation
	}
	return MulDiv(amount, uint64(bps), BpsDenominator)
}

// ToBaseUnits converts whole units into the smallest unit using scale
// (for example 1_000_000_000 for a 9-decimal currency).
func ToBaseUnits(whole, scale uint64) (uint64, error) {
	return Mul(whole, scale)
}

// Pow10 returns 10^exp.
func Pow10(exp uint8) (uint64, error) {
	v := uint64(1)
	for i := uint8(0); i < exp; i++ {
		var err error
		if v, err = Mul(v, 10); err != nil {
			return 0, err
		}
	}
	return v, nil
}
