package fixedpoint

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits carried through exp/ln.
const Precision int32 = 18

var (
	// MaxExpArg mirrors the float64 domain of exp; larger arguments are
	// treated as overflow.
	MaxExpArg = decimal.NewFromInt(709)

	// Below minExpArg, exp(x) < 1e-27 and rounds to zero at Precision.
	minExpArg = decimal.NewFromInt(-64)
)

// Exp returns e^x rounded to Precision digits.
func Exp(x decimal.Decimal) (decimal.Decimal, error) {
	if x.GreaterThan(MaxExpArg) {
		return decimal.Zero, fmt.Errorf("exp(%s): %w", x.String(), ErrOverflow)
	}
	if x.LessThan(minExpArg) {
		return decimal.Zero, nil
	}
	r, err := x.ExpTaylor(Precision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("exp(%s): %v: %w", x.String(), err, ErrOverflow)
	}
	return r, nil
}

// Ln returns the natural logarithm of x rounded to Precision digits.
func Ln(x decimal.Decimal) (decimal.Decimal, error) {
	if !x.IsPositive() {
		return decimal.Zero, fmt.Errorf("ln(%s): %w", x.String(), ErrInvalidCalculation)
	}
	r, err := x.Ln(Precision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ln(%s): %v: %w", x.String(), err, ErrInvalidCalculation)
	}
	return r, nil
}

// ToUint64 rounds d to the nearest integer (half away from zero) and
// narrows it to uint64.
func ToUint64(d decimal.Decimal) (uint64, error) {
	r := d.Round(0)
	if r.IsNegative() {
		return 0, fmt.Errorf("%s: %w", r.String(), ErrUnderflow)
	}
	bi := r.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%s: %w", r.String(), ErrOverflow)
	}
	return bi.Uint64(), nil
}

// Scaled returns v / scale as a decimal, converting base units to whole units.
func Scaled(v, scale uint64) (decimal.Decimal, error) {
	if scale == 0 {
		return decimal.Zero, ErrDivisionByZero
	}
	return decimal.NewFromUint64(v).DivRound(decimal.NewFromUint64(scale), Precision), nil
}
