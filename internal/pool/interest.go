// internal/pool/interest.go
package pool

import (
	"math/big"

	"PerpPool/internal/fixedpoint"
)

// AccrueInterest advances the token's borrow index to the current interval
// boundary and returns a copy of it. Safe to call repeatedly; calls within
// one interval are no-ops.
func (e *Engine) AccrueInterest(token string) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.assets[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	e.accrueInterest(a)
	return new(big.Int).Set(a.borrowIndex), nil
}

// accrueInterest advances the token's cumulative borrow index in whole
// accrual intervals. Idempotent within an interval; any sub-interval
// remainder carries to the next call. Runs at the head of every mutating
// operation so the index never goes stale across a call boundary.
func (e *Engine) accrueInterest(a *assetState) {
	interval := e.params.AccrualInterval
	nowUnix := e.now().Unix()

	// Never accrued, or nothing to accrue on: re-anchor to the start of
	// the current interval without touching the index.
	if a.lastAccrualTime == 0 || a.poolAmount.Sign() == 0 {
		a.lastAccrualTime = nowUnix / interval * interval
		return
	}

	elapsed := (nowUnix - a.lastAccrualTime) / interval
	if elapsed <= 0 {
		return
	}

	// index += elapsed * rate * reserved / poolAmount
	accrued := new(big.Int).Mul(big.NewInt(elapsed), big.NewInt(e.params.InterestRate))
	accrued = fixedpoint.MulDiv(accrued, a.reservedAmount, a.poolAmount, fixedpoint.RoundDown)

	a.borrowIndex.Add(a.borrowIndex, accrued)
	a.lastAccrualTime += elapsed * interval
}
