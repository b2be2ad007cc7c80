// internal/pool/errors.go
package pool

import "errors"

// Caller-correctable input errors. Operations failing with one of these
// leave no state change behind.
var (
	ErrZeroAmount           = errors.New("pool: zero amount")
	ErrTokenNotListed       = errors.New("pool: token not accepting deposits")
	ErrUnknownToken         = errors.New("pool: unknown token")
	ErrSlippage             = errors.New("pool: slippage exceeded")
	ErrMaxLiquidityExceeded = errors.New("pool: max liquidity exceeded")
	ErrUnauthorized         = errors.New("pool: caller not authorized")
)

// ErrInsufficientReserve aborts a withdrawal that would dip into capital
// earmarked against open leverage. Distinct from ErrSlippage: the caller
// holds enough shares, the pool cannot release the underlying.
var ErrInsufficientReserve = errors.New("pool: insufficient free reserve")
