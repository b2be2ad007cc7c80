// internal/pool/params.go
package pool

import (
	"fmt"
	"math/big"
)

// Protocol maxima for economic parameters. The engine itself applies no
// bounds checking; the configuration loader validates against these before
// handing a Params to the engine.
const (
	MaxBaseFee      = 100_000   // 10% at FeePrecision scale
	MaxTaxBP        = 100_000   // 10%
	MaxDaoFeeRate   = 1_000_000 // 100% of the fee
	MaxInterestRate = 10_000    // 1% per accrual interval
)

// TokenParams configures one whitelisted token.
type TokenParams struct {
	// Weight is the token's target share of total pool value, relative to
	// the sum of all weights. Zero weight means the fee curve charges the
	// base fee unmodified.
	Weight int64

	// Listed tokens accept deposits. Delisted tokens still withdraw,
	// price, and accrue.
	Listed bool

	// MaxLiquidity caps poolAmount in token base units. Nil means no cap.
	MaxLiquidity *big.Int
}

// Params is the pool's full economic parameter set, consumed read-only by
// the engine and swapped atomically via UpdateParams.
type Params struct {
	// BaseFee and TaxBP drive the composition fee curve, FeePrecision scale.
	BaseFee int64
	TaxBP   int64

	// DaoFeeRate is the protocol's cut of every fee, FeePrecision scale.
	// The remainder of the fee stays in the pool for share holders.
	DaoFeeRate int64

	// InterestRate per accrual interval, FeePrecision scale.
	InterestRate int64

	// AccrualInterval in seconds. Accrual time is quantized to whole
	// multiples of this.
	AccrualInterval int64

	// FeeDistributor is the only account allowed to withdraw fee reserves.
	FeeDistributor string

	Tokens map[string]TokenParams
}

// TotalWeight sums all token weights.
func (p Params) TotalWeight() int64 {
	var total int64
	for _, tp := range p.Tokens {
		total += tp.Weight
	}
	return total
}

// Validate checks the parameter set against the protocol maxima. Called by
// the configuration authority before UpdateParams, never by the engine.
func (p Params) Validate() error {
	if p.BaseFee < 0 || p.BaseFee > MaxBaseFee {
		return fmt.Errorf("base fee %d outside [0, %d]", p.BaseFee, MaxBaseFee)
	}
	if p.TaxBP < 0 || p.TaxBP > MaxTaxBP {
		return fmt.Errorf("tax basis points %d outside [0, %d]", p.TaxBP, MaxTaxBP)
	}
	if p.DaoFeeRate < 0 || p.DaoFeeRate > MaxDaoFeeRate {
		return fmt.Errorf("dao fee rate %d outside [0, %d]", p.DaoFeeRate, MaxDaoFeeRate)
	}
	if p.InterestRate < 0 || p.InterestRate > MaxInterestRate {
		return fmt.Errorf("interest rate %d outside [0, %d]", p.InterestRate, MaxInterestRate)
	}
	if p.AccrualInterval <= 0 {
		return fmt.Errorf("accrual interval %d must be positive", p.AccrualInterval)
	}
	for token, tp := range p.Tokens {
		if tp.Weight < 0 {
			return fmt.Errorf("token %s: negative weight %d", token, tp.Weight)
		}
		if tp.MaxLiquidity != nil && tp.MaxLiquidity.Sign() < 0 {
			return fmt.Errorf("token %s: negative max liquidity", token)
		}
	}
	return nil
}
