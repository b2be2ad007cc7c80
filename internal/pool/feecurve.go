// internal/pool/feecurve.go
package pool

import (
	"math/big"

	"PerpPool/internal/fixedpoint"
)

// FeeRate prices a value-changing operation by its effect on the token's
// deviation from target composition. baseFee and taxBP are at FeePrecision
// scale; targetValue, currentValue, and valueChange are USD values at
// ValuePrecision. The result is in [0, baseFee+taxBP].
//
// Moves that reduce the deviation earn a discount proportional to the
// starting deviation, capped at baseFee. Moves that grow it pay a
// surcharge proportional to the average deviation across the move,
// saturating at taxBP once the average deviation reaches the target value.
func FeeRate(baseFee, taxBP int64, targetValue, currentValue, valueChange *big.Int, increase bool) int64 {
	if targetValue == nil || targetValue.Sign() == 0 {
		return baseFee
	}

	nextValue := new(big.Int)
	if increase {
		nextValue.Add(currentValue, valueChange)
	} else {
		nextValue.Sub(currentValue, valueChange)
		if nextValue.Sign() < 0 {
			nextValue.SetInt64(0)
		}
	}

	initDiff := fixedpoint.AbsDiff(currentValue, targetValue)
	nextDiff := fixedpoint.AbsDiff(nextValue, targetValue)

	if nextDiff.Cmp(initDiff) < 0 {
		discount := fixedpoint.MulDiv(big.NewInt(taxBP), initDiff, targetValue, fixedpoint.RoundDown)
		if discount.Cmp(big.NewInt(baseFee)) >= 0 {
			return 0
		}
		return baseFee - discount.Int64()
	}

	avgDiff := new(big.Int).Add(initDiff, nextDiff)
	avgDiff.Rsh(avgDiff, 1)
	if avgDiff.Cmp(targetValue) >= 0 {
		return baseFee + taxBP
	}
	surcharge := fixedpoint.MulDiv(big.NewInt(taxBP), avgDiff, targetValue, fixedpoint.RoundDown)
	return baseFee + surcharge.Int64()
}

// targetValue is the USD value the token should hold under the configured
// weights, measured against the smoothed virtual pool value.
func (e *Engine) targetValue(token string) *big.Int {
	totalWeight := e.params.TotalWeight()
	if totalWeight == 0 {
		return new(big.Int)
	}
	tp, ok := e.params.Tokens[token]
	if !ok || tp.Weight == 0 {
		return new(big.Int)
	}
	return fixedpoint.MulDiv(big.NewInt(tp.Weight), e.virtualPoolValue, big.NewInt(totalWeight), fixedpoint.RoundDown)
}
