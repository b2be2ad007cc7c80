// internal/fixedpoint/fixedpoint.go
package fixedpoint

import (
	"math/big"
	"sync"
)

var (
	// ValuePrecision scales USD values and normalized prices (10^30).
	ValuePrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)

	// FeePrecision scales fee rates and target weights: 1_000_000 = 100%.
	FeePrecision = big.NewInt(1_000_000)

	// InitialSharePrice is the value assigned to one share base unit when
	// total supply is zero (10^12, so one 18-decimal share token = 1 USD
	// at ValuePrecision).
	InitialSharePrice = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)
)

// RoundingMode selects the direction MulDiv rounds a non-exact quotient.
type RoundingMode int

const (
	RoundDown RoundingMode = iota // truncate toward zero (default)
	RoundUp                       // away from zero when remainder != 0
)

// intPool recycles big.Int scratch values used for wide intermediates.
var intPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt() *big.Int {
	return intPool.Get().(*big.Int)
}

func putInt(v *big.Int) {
	v.SetInt64(0)
	intPool.Put(v)
}

// MulDiv computes a * b / denom into a fresh big.Int. The product is
// carried at full width so the intermediate never overflows. denom must
// be non-zero.
func MulDiv(a, b, denom *big.Int, mode RoundingMode) *big.Int {
	prod := getInt()
	prod.Mul(a, b)

	quo := new(big.Int)
	rem := getInt()
	quo.QuoRem(prod, denom, rem)

	// rem carries the dividend's sign, so this rounds away from zero.
	if mode == RoundUp {
		if rem.Sign() > 0 {
			quo.Add(quo, oneInt)
		} else if rem.Sign() < 0 {
			quo.Sub(quo, oneInt)
		}
	}

	putInt(prod)
	putInt(rem)
	return quo
}

// Div computes a / denom with the given rounding mode.
func Div(a, denom *big.Int, mode RoundingMode) *big.Int {
	return MulDiv(a, oneInt, denom, mode)
}

var oneInt = big.NewInt(1)

// Min returns the smaller of a and b as a fresh big.Int.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// AbsDiff returns |a - b| as a fresh big.Int.
func AbsDiff(a, b *big.Int) *big.Int {
	d := new(big.Int).Sub(a, b)
	return d.Abs(d)
}

// Pow10 returns 10^n as a fresh big.Int. n must be non-negative.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
