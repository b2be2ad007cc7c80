// internal/pool/valuation.go
package pool

import (
	"fmt"
	"math/big"

	"PerpPool/internal/oracle"
)

// priceSet holds one batched oracle read at both roundings, taken once at
// the head of an operation so pre- and post-mutation valuations see the
// same prices.
type priceSet struct {
	low  map[string]*big.Int
	high map[string]*big.Int
}

func (e *Engine) fetchPrices() (*priceSet, error) {
	low, err := e.oracle.Prices(e.tracked, oracle.Low)
	if err != nil {
		return nil, fmt.Errorf("fetch low prices: %w", err)
	}
	high, err := e.oracle.Prices(e.tracked, oracle.High)
	if err != nil {
		return nil, fmt.Errorf("fetch high prices: %w", err)
	}
	return &priceSet{low: low, high: high}, nil
}

// aum sums price * poolAmount across every tracked asset at one rounding.
// A negative sum indicates upstream data corruption and is unrecoverable
// at the operation level.
func (e *Engine) aum(prices map[string]*big.Int) *big.Int {
	total := new(big.Int)
	scratch := new(big.Int)
	for _, token := range e.tracked {
		a := e.assets[token]
		scratch.Mul(prices[token], a.poolAmount)
		total.Add(total, scratch)
	}
	if total.Sign() < 0 {
		panic(fmt.Sprintf("FATAL: negative AUM %s", total))
	}
	return total
}

// refreshVirtualValue recomputes the smoothed valuation the fee curve
// reads: the average of AUM at both roundings. Invoked after every
// mutating operation.
func (e *Engine) refreshVirtualValue(ps *priceSet) {
	sum := new(big.Int).Add(e.aum(ps.high), e.aum(ps.low))
	e.virtualPoolValue = sum.Rsh(sum, 1)
}
