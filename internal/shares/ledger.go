// internal/shares/ledger.go
package shares

import (
	"errors"
	"math/big"
	"sync"
)

// ErrInsufficientShares is returned when a burn exceeds the holder's balance.
var ErrInsufficientShares = errors.New("shares: insufficient balance to burn")

// Ledger is the pool share token. Minting and burning happen only inside
// pool operations; holders transfer shares among themselves out of band.
type Ledger interface {
	Mint(to string, amount *big.Int) error
	BurnFrom(from string, amount *big.Int) error
	TotalSupply() *big.Int
	BalanceOf(holder string) *big.Int
}

// SupplyLedger is an in-memory share token with 18-decimal base units.
type SupplyLedger struct {
	mu       sync.RWMutex
	balances map[string]*big.Int
	supply   *big.Int
}

func NewSupplyLedger() *SupplyLedger {
	return &SupplyLedger{
		balances: make(map[string]*big.Int),
		supply:   new(big.Int),
	}
}

func (l *SupplyLedger) Mint(to string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("shares: mint amount must be non-negative")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, ok := l.balances[to]
	if !ok {
		bal = new(big.Int)
		l.balances[to] = bal
	}
	bal.Add(bal, amount)
	l.supply.Add(l.supply, amount)
	return nil
}

func (l *SupplyLedger) BurnFrom(from string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("shares: burn amount must be non-negative")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, ok := l.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	bal.Sub(bal, amount)
	l.supply.Sub(l.supply, amount)
	return nil
}

func (l *SupplyLedger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.supply)
}

func (l *SupplyLedger) BalanceOf(holder string) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[holder]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}
