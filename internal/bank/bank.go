// internal/bank/bank.go
package bank

import (
	"errors"
	"math/big"
	"sync"
)

// ErrInsufficientFunds is returned when a transfer exceeds the source balance.
var ErrInsufficientFunds = errors.New("bank: insufficient funds")

// Transferer moves token base units between external holders and the pool.
// The pool never trusts a requested pull amount: it measures its own balance
// before and after via BalanceOf and credits only what actually arrived,
// which keeps fee-on-transfer tokens honest.
type Transferer interface {
	// TransferFrom pulls amount of token from holder into the pool account.
	TransferFrom(token, holder string, amount *big.Int) error
	// Transfer pushes amount of token from the pool account to recipient.
	Transfer(token, recipient string, amount *big.Int) error
	// BalanceOf reports the pool account's current balance of token.
	BalanceOf(token string) (*big.Int, error)
}

// Memory is an in-memory token bank. It backs tests and the local service
// mode; a chain-backed Transferer replaces it in production.
type Memory struct {
	mu sync.Mutex
	// balances[token][holder]
	balances map[string]map[string]*big.Int
	// transferFeeBP charges holders a fee on every transfer of the token,
	// in basis points. Used to simulate fee-on-transfer tokens.
	transferFeeBP map[string]int64
	poolAccount   string
}

func NewMemory(poolAccount string) *Memory {
	return &Memory{
		balances:      make(map[string]map[string]*big.Int),
		transferFeeBP: make(map[string]int64),
		poolAccount:   poolAccount,
	}
}

// SetTransferFee makes token charge feeBP basis points on every transfer.
func (m *Memory) SetTransferFee(token string, feeBP int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transferFeeBP[token] = feeBP
}

// Fund credits holder with amount of token out of thin air.
func (m *Memory) Fund(token, holder string, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(token, holder, amount)
}

func (m *Memory) TransferFrom(token, holder string, amount *big.Int) error {
	return m.move(token, holder, m.poolAccount, amount)
}

func (m *Memory) Transfer(token, recipient string, amount *big.Int) error {
	return m.move(token, m.poolAccount, recipient, amount)
}

func (m *Memory) BalanceOf(token string) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance(token, m.poolAccount)), nil
}

// HolderBalance reports any holder's balance. Test helper.
func (m *Memory) HolderBalance(token, holder string) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance(token, holder))
}

func (m *Memory) move(token, from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("bank: transfer amount must be non-negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.balance(token, from)
	if src.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	src.Sub(src, amount)

	received := new(big.Int).Set(amount)
	if feeBP := m.transferFeeBP[token]; feeBP > 0 {
		fee := new(big.Int).Mul(amount, big.NewInt(feeBP))
		fee.Quo(fee, big.NewInt(10_000))
		received.Sub(received, fee)
	}
	m.credit(token, to, received)
	return nil
}

func (m *Memory) balance(token, holder string) *big.Int {
	holders, ok := m.balances[token]
	if !ok {
		holders = make(map[string]*big.Int)
		m.balances[token] = holders
	}
	bal, ok := holders[holder]
	if !ok {
		bal = new(big.Int)
		holders[holder] = bal
	}
	return bal
}

func (m *Memory) credit(token, holder string, amount *big.Int) {
	bal := m.balance(token, holder)
	bal.Add(bal, amount)
}
