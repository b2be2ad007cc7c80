// internal/pool/asset.go
package pool

import "math/big"

// assetState is the full per-token ledger, created on whitelisting and
// never deleted. All amounts are token base units; borrowIndex is at
// FeePrecision scale. Guarded by the engine's operation lock.
type assetState struct {
	// poolAmount is the pool's total reserve of the token, net of the
	// protocol fee reserve. Invariant: poolAmount >= reservedAmount.
	poolAmount *big.Int

	// reservedAmount is earmarked against open leveraged exposure.
	reservedAmount *big.Int

	// guaranteedValue is carried for short-PnL accounting in the wider
	// valuation model; not folded into AUM here.
	guaranteedValue *big.Int

	// feeReserve is the protocol's accrued fee cut, withdrawable by the
	// fee distributor only.
	feeReserve *big.Int

	// trackedBalance is the last-observed external balance of the pool
	// account. Deposits credit (current balance - trackedBalance) rather
	// than the caller-declared amount.
	trackedBalance *big.Int

	// borrowIndex is the cumulative interest factor; non-decreasing.
	borrowIndex *big.Int

	// lastAccrualTime is a Unix timestamp quantized to the accrual
	// interval; advances only in whole intervals.
	lastAccrualTime int64
}

func newAssetState() *assetState {
	return &assetState{
		poolAmount:      new(big.Int),
		reservedAmount:  new(big.Int),
		guaranteedValue: new(big.Int),
		feeReserve:      new(big.Int),
		trackedBalance:  new(big.Int),
		borrowIndex:     new(big.Int),
	}
}

// AssetView is a copy of one token's ledger for queries and tests.
type AssetView struct {
	Token           string   `json:"token"`
	Listed          bool     `json:"listed"`
	PoolAmount      *big.Int `json:"pool_amount"`
	ReservedAmount  *big.Int `json:"reserved_amount"`
	GuaranteedValue *big.Int `json:"guaranteed_value"`
	FeeReserve      *big.Int `json:"fee_reserve"`
	BorrowIndex     *big.Int `json:"borrow_index"`
	LastAccrualTime int64    `json:"last_accrual_time"`
}

func (a *assetState) view(token string, listed bool) AssetView {
	return AssetView{
		Token:           token,
		Listed:          listed,
		PoolAmount:      new(big.Int).Set(a.poolAmount),
		ReservedAmount:  new(big.Int).Set(a.reservedAmount),
		GuaranteedValue: new(big.Int).Set(a.guaranteedValue),
		FeeReserve:      new(big.Int).Set(a.feeReserve),
		BorrowIndex:     new(big.Int).Set(a.borrowIndex),
		LastAccrualTime: a.lastAccrualTime,
	}
}
