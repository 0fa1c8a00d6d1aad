// Package safemath provides checked unsigned 64-bit arithmetic for the
// market engine. Every operation either returns the exact result or one of
// the arithmetic result codes; nothing wraps, saturates or truncates.
//
// Products that may exceed 64 bits are computed in a 256-bit intermediate
// (holiman/uint256) and only narrowed back when the final value fits.
package safemath

import (
	"math/bits"

	"github.com/holiman/uint256"

	"github.com/atmx/prediction-amm/internal/result"
)

const (
	// MaxLiquidity is the upper bound for either side of a market's virtual pool.
	MaxLiquidity uint64 = 1_000_000_000_000
	// MinLiquidity is the lower bound for either side of a market's virtual pool.
	MinLiquidity uint64 = 1_000
	// MaxBetAmount caps a single bet.
	MaxBetAmount uint64 = 100_000_000
	// MaxShares caps a single share transfer.
	MaxShares uint64 = 1_000_000_000
	// PricePrecision is the fixed-point scale for prices: 1_000_000 == 1.0.
	PricePrecision uint64 = 1_000_000
	// FeeBasisPoints is the denominator of a fee rate.
	FeeBasisPoints uint64 = 10_000
	// DefaultFeeRate is 1%.
	DefaultFeeRate uint64 = 100
)

// Add returns a+b or result.ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, result.ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or result.ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, result.ErrUnderflow
	}
	return diff, nil
}

// Mul returns a*b or result.ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, result.ErrOverflow
	}
	return lo, nil
}

// Div returns floor(a/b) or result.ErrDivisionByZero.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, result.ErrDivisionByZero
	}
	return a / b, nil
}

// MulDiv returns floor(a*b/c) without overflowing on the intermediate
// product. Only a zero divisor is an error; a zero factor yields 0.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, result.ErrDivisionByZero
	}
	num := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	return narrow(num.Div(num, uint256.NewInt(c)))
}

// Fee returns ceil(amount*rate/basis). Any nonzero amount charged at a
// nonzero rate pays at least one unit.
func Fee(amount, rate, basis uint64) (uint64, error) {
	if basis == 0 {
		return 0, result.ErrDivisionByZero
	}
	if amount == 0 || rate == 0 {
		return 0, nil
	}
	num := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(rate))
	num.Add(num, uint256.NewInt(basis-1))
	return narrow(num.Div(num, uint256.NewInt(basis)))
}

// NetAmount returns amount minus its fee.
func NetAmount(amount, rate, basis uint64) (uint64, error) {
	fee, err := Fee(amount, rate, basis)
	if err != nil {
		return 0, err
	}
	return Sub(amount, fee)
}

// K returns the constant product yes*no after checking both sides are
// within the liquidity bounds.
func K(yes, no uint64) (*uint256.Int, error) {
	if err := ValidateLiquidity(yes); err != nil {
		return nil, err
	}
	if err := ValidateLiquidity(no); err != nil {
		return nil, err
	}
	return new(uint256.Int).Mul(uint256.NewInt(yes), uint256.NewInt(no)), nil
}

// LiquidityFromK solves k = x*other for x, flooring. The result must land
// inside the liquidity bounds.
func LiquidityFromK(k *uint256.Int, other uint64) (uint64, error) {
	if other == 0 {
		return 0, result.ErrDivisionByZero
	}
	q := new(uint256.Int).Div(k, uint256.NewInt(other))
	x, err := narrow(q)
	if err != nil {
		return 0, err
	}
	if x < MinLiquidity || x > MaxLiquidity {
		return 0, result.ErrInvalidCalculation
	}
	return x, nil
}

// Price returns numerator/denominator scaled to PricePrecision. An empty
// denominator prices at one half.
func Price(numerator, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return PricePrecision / 2, nil
	}
	if numerator == 0 {
		return 0, nil
	}
	return MulDiv(numerator, PricePrecision, denominator)
}

// EffectivePrice is the average price paid per share, 0 when no shares.
func EffectivePrice(amount, shares uint64) (uint64, error) {
	if shares == 0 || amount == 0 {
		return 0, nil
	}
	return MulDiv(amount, PricePrecision, shares)
}

// ValidateBetAmount rejects zero and amounts above MaxBetAmount.
func ValidateBetAmount(amount uint64) error {
	if amount == 0 {
		return result.ErrInvalidBetAmount
	}
	if amount > MaxBetAmount {
		return result.ErrBetTooLarge
	}
	return nil
}

// ValidateShares rejects zero and counts above MaxShares.
func ValidateShares(shares uint64) error {
	if shares == 0 {
		return result.ErrInvalidShares
	}
	if shares > MaxShares {
		return result.ErrBetTooLarge
	}
	return nil
}

// ValidateLiquidity checks l against [MinLiquidity, MaxLiquidity].
func ValidateLiquidity(l uint64) error {
	if l < MinLiquidity {
		return result.ErrInvalidCalculation
	}
	if l > MaxLiquidity {
		return result.ErrLiquidityTooHigh
	}
	return nil
}

func narrow(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, result.ErrOverflow
	}
	return v.Uint64(), nil
}
