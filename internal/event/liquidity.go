// internal/event/liquidity.go
package event

import (
	"math/big"

	"github.com/google/uuid"
)

type LiquidityAdded struct {
	ID           uuid.UUID `json:"id"`
	Initiator    string    `json:"initiator"`
	Recipient    string    `json:"recipient"`
	Asset        string    `json:"asset"`
	AmountIn     *big.Int  `json:"amount_in"` // reconciled, token base units
	FeeAmount    *big.Int  `json:"fee_amount"`
	DaoFee       *big.Int  `json:"dao_fee"`
	SharesMinted *big.Int  `json:"shares_minted"`
	BorrowIndex  *big.Int  `json:"borrow_index"`
}

func (e *LiquidityAdded) OperationID() string  { return e.ID.String() }
func (e *LiquidityAdded) EventType() EventType { return EventTypeLiquidityAdded }
func (e *LiquidityAdded) Token() string        { return e.Asset }

type LiquidityRemoved struct {
	ID           uuid.UUID `json:"id"`
	Initiator    string    `json:"initiator"`
	Recipient    string    `json:"recipient"`
	Asset        string    `json:"asset"`
	SharesBurned *big.Int  `json:"shares_burned"`
	GrossOut     *big.Int  `json:"gross_out"`
	NetOut       *big.Int  `json:"net_out"`
	FeeAmount    *big.Int  `json:"fee_amount"`
	DaoFee       *big.Int  `json:"dao_fee"`
	BorrowIndex  *big.Int  `json:"borrow_index"`
}

func (e *LiquidityRemoved) OperationID() string  { return e.ID.String() }
func (e *LiquidityRemoved) EventType() EventType { return EventTypeLiquidityRemoved }
func (e *LiquidityRemoved) Token() string        { return e.Asset }

type FeeWithdrawn struct {
	ID        uuid.UUID `json:"id"`
	Recipient string    `json:"recipient"`
	Asset     string    `json:"asset"`
	Amount    *big.Int  `json:"amount"`
}

func (e *FeeWithdrawn) OperationID() string  { return e.ID.String() }
func (e *FeeWithdrawn) EventType() EventType { return EventTypeFeeWithdrawn }
func (e *FeeWithdrawn) Token() string        { return e.Asset }

type AssetReserved struct {
	ID       uuid.UUID `json:"id"`
	Asset    string    `json:"asset"`
	Amount   *big.Int  `json:"amount"`
	Reserved *big.Int  `json:"reserved"` // total after the change
}

func (e *AssetReserved) OperationID() string  { return e.ID.String() }
func (e *AssetReserved) EventType() EventType { return EventTypeAssetReserved }
func (e *AssetReserved) Token() string        { return e.Asset }

type AssetReleased struct {
	ID       uuid.UUID `json:"id"`
	Asset    string    `json:"asset"`
	Amount   *big.Int  `json:"amount"`
	Reserved *big.Int  `json:"reserved"`
}

func (e *AssetReleased) OperationID() string  { return e.ID.String() }
func (e *AssetReleased) EventType() EventType { return EventTypeAssetReleased }
func (e *AssetReleased) Token() string        { return e.Asset }

type ParamsUpdated struct {
	ID     uuid.UUID `json:"id"`
	Tokens []string  `json:"tokens"` // listed set after the update
}

func (e *ParamsUpdated) OperationID() string  { return e.ID.String() }
func (e *ParamsUpdated) EventType() EventType { return EventTypeParamsUpdated }
func (e *ParamsUpdated) Token() string        { return "" }
