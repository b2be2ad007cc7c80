package shares_test

import (
	"errors"
	"math/big"
	"testing"

	"PerpPool/internal/shares"
)

// ============================================================================
// Test: SupplyLedger
// ============================================================================

func TestSupplyLedger_MintUpdatesSupplyAndBalance(t *testing.T) {
	l := shares.NewSupplyLedger()

	if err := l.Mint("alice", big.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	if err := l.Mint("bob", big.NewInt(50)); err != nil {
		t.Fatal(err)
	}

	if got := l.TotalSupply(); got.Int64() != 150 {
		t.Errorf("total supply = %s, want 150", got)
	}
	if got := l.BalanceOf("alice"); got.Int64() != 100 {
		t.Errorf("alice balance = %s, want 100", got)
	}
}

func TestSupplyLedger_BurnFrom(t *testing.T) {
	l := shares.NewSupplyLedger()
	if err := l.Mint("alice", big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	if err := l.BurnFrom("alice", big.NewInt(40)); err != nil {
		t.Fatal(err)
	}
	if got := l.BalanceOf("alice"); got.Int64() != 60 {
		t.Errorf("alice balance = %s, want 60", got)
	}
	if got := l.TotalSupply(); got.Int64() != 60 {
		t.Errorf("total supply = %s, want 60", got)
	}
}

func TestSupplyLedger_BurnExceedsBalance(t *testing.T) {
	l := shares.NewSupplyLedger()
	if err := l.Mint("alice", big.NewInt(10)); err != nil {
		t.Fatal(err)
	}

	err := l.BurnFrom("alice", big.NewInt(11))
	if !errors.Is(err, shares.ErrInsufficientShares) {
		t.Errorf("err = %v, want ErrInsufficientShares", err)
	}
	if got := l.TotalSupply(); got.Int64() != 10 {
		t.Errorf("failed burn mutated supply: %s", got)
	}
}

func TestSupplyLedger_BurnUnknownHolder(t *testing.T) {
	l := shares.NewSupplyLedger()
	err := l.BurnFrom("nobody", big.NewInt(1))
	if !errors.Is(err, shares.ErrInsufficientShares) {
		t.Errorf("err = %v, want ErrInsufficientShares", err)
	}
}

func TestSupplyLedger_BalanceCopyIsolated(t *testing.T) {
	l := shares.NewSupplyLedger()
	if err := l.Mint("alice", big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	bal := l.BalanceOf("alice")
	bal.SetInt64(0)
	if got := l.BalanceOf("alice"); got.Int64() != 100 {
		t.Error("returned balance aliases internal state")
	}
}
