package pool_test

import (
	"math/big"
	"testing"
)

// ============================================================================
// Test: pool valuation
// ============================================================================

func TestPool_AumSumsAllAssets(t *testing.T) {
	f := newFixture(t, feeFreeParams())

	if _, err := f.engine.Deposit("alice", "USDC", usdc(1000), nil, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Deposit("bob", "WETH", weth(1), nil, "bob"); err != nil {
		t.Fatal(err)
	}

	view, err := f.engine.Pool()
	if err != nil {
		t.Fatal(err)
	}

	// $1000 of USDC + $3000 of WETH = 4e3 * 1e30.
	want := new(big.Int).Mul(big.NewInt(4000), new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil))
	if view.AumHigh.Cmp(want) != 0 {
		t.Errorf("AUM high = %s, want %s", view.AumHigh, want)
	}
	if view.AumLow.Cmp(view.AumHigh) != 0 {
		t.Errorf("single-price feed: AUM low %s != high %s", view.AumLow, view.AumHigh)
	}
}

func TestPool_VirtualValueIsRoundingAverage(t *testing.T) {
	f := newFixture(t, feeFreeParams())

	if _, err := f.engine.Deposit("alice", "USDC", usdc(1000), nil, "alice"); err != nil {
		t.Fatal(err)
	}

	view, err := f.engine.Pool()
	if err != nil {
		t.Fatal(err)
	}
	wantVPV := new(big.Int).Add(view.AumHigh, view.AumLow)
	wantVPV.Rsh(wantVPV, 1)
	if view.VirtualPoolValue.Cmp(wantVPV) != 0 {
		t.Errorf("virtual value = %s, want %s", view.VirtualPoolValue, wantVPV)
	}
	if got := f.engine.VirtualPoolValue(); got.Cmp(wantVPV) != 0 {
		t.Errorf("VirtualPoolValue() = %s, want %s", got, wantVPV)
	}
}

func TestPool_VirtualValueRefreshedAfterEveryOperation(t *testing.T) {
	f := newFixture(t, feeFreeParams())

	if f.engine.VirtualPoolValue().Sign() != 0 {
		t.Error("fresh pool should carry zero virtual value")
	}

	res, err := f.engine.Deposit("alice", "USDC", usdc(1000), nil, "alice")
	if err != nil {
		t.Fatal(err)
	}
	afterDeposit := f.engine.VirtualPoolValue()
	if afterDeposit.Sign() == 0 {
		t.Error("virtual value not refreshed after deposit")
	}

	// A price move alone does not touch the stored value; the next
	// mutating operation does.
	if err := f.feed.PostPrice("USDC", big.NewInt(2_00000000)); err != nil {
		t.Fatal(err)
	}
	if got := f.engine.VirtualPoolValue(); got.Cmp(afterDeposit) != 0 {
		t.Errorf("stored virtual value moved with the price: %s -> %s", afterDeposit, got)
	}

	quarter := new(big.Int).Rsh(res.SharesMinted, 2)
	if _, err := f.engine.Withdraw("alice", "USDC", quarter, nil, "alice"); err != nil {
		t.Fatal(err)
	}
	if got := f.engine.VirtualPoolValue(); got.Cmp(afterDeposit) == 0 {
		t.Error("virtual value not refreshed after withdrawal")
	}
}

func TestPool_ViewListsTrackedTokens(t *testing.T) {
	f := newFixture(t, feeFreeParams())

	view, err := f.engine.Pool()
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Tokens) != 2 {
		t.Fatalf("tracked tokens = %v, want USDC and WETH", view.Tokens)
	}
	seen := map[string]bool{}
	for _, token := range view.Tokens {
		seen[token] = true
	}
	if !seen["USDC"] || !seen["WETH"] {
		t.Errorf("tracked tokens = %v", view.Tokens)
	}
}
