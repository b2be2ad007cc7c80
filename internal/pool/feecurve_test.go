package pool_test

import (
	"math/big"
	"testing"

	"PerpPool/internal/pool"
)

// ============================================================================
// Test: FeeRate
// ============================================================================

func TestFeeRate_ZeroTargetReturnsBaseFee(t *testing.T) {
	got := pool.FeeRate(1000, 600, big.NewInt(0), big.NewInt(123), big.NewInt(45), true)
	if got != 1000 {
		t.Errorf("rate = %d, want baseFee 1000", got)
	}
	got = pool.FeeRate(1000, 600, nil, big.NewInt(123), big.NewInt(45), false)
	if got != 1000 {
		t.Errorf("rate = %d, want baseFee 1000", got)
	}
}

func TestFeeRate_RebalancingDepositEarnsDiscount(t *testing.T) {
	// Target 500,000; current 400,000; deposit moves value to exactly
	// 500,000, so nextDiff=0 < initDiff=100,000.
	got := pool.FeeRate(1000, 600,
		big.NewInt(500_000), big.NewInt(400_000), big.NewInt(100_000), true)

	// discount = 600 * 100,000 / 500,000 = 120
	if got != 880 {
		t.Errorf("rate = %d, want 880", got)
	}
	if got >= 1000 {
		t.Errorf("rebalancing move must charge strictly less than baseFee, got %d", got)
	}
}

func TestFeeRate_DiscountNeverBelowZero(t *testing.T) {
	// discount = 600 * 9,000 / 1,000 = 5,400 > baseFee 100
	got := pool.FeeRate(100, 600,
		big.NewInt(1_000), big.NewInt(10_000), big.NewInt(9_000), false)
	if got != 0 {
		t.Errorf("rate = %d, want 0", got)
	}
}

func TestFeeRate_ImbalancingMoveChargesSurcharge(t *testing.T) {
	// Current sits at target; any increase grows the deviation.
	got := pool.FeeRate(1000, 600,
		big.NewInt(500_000), big.NewInt(500_000), big.NewInt(100_000), true)

	// initDiff=0, nextDiff=100,000, avgDiff=50,000
	// surcharge = 600 * 50,000 / 500,000 = 60
	if got != 1060 {
		t.Errorf("rate = %d, want 1060", got)
	}
	if got < 1000 {
		t.Errorf("imbalancing move must charge at least baseFee, got %d", got)
	}
}

func TestFeeRate_SurchargeSaturates(t *testing.T) {
	// avgDiff = (0 + 1,000,000) / 2 = 500,000 >= target
	got := pool.FeeRate(1000, 600,
		big.NewInt(500_000), big.NewInt(500_000), big.NewInt(1_000_000), true)
	if got != 1600 {
		t.Errorf("rate = %d, want saturated baseFee+taxBP = 1600", got)
	}

	// Far past saturation the rate stays pinned.
	got = pool.FeeRate(1000, 600,
		big.NewInt(500_000), big.NewInt(500_000), big.NewInt(100_000_000), true)
	if got != 1600 {
		t.Errorf("rate = %d, want 1600", got)
	}
}

func TestFeeRate_WithdrawClampsNextValueAtZero(t *testing.T) {
	// Withdrawing more value than is present: nextValue clamps to zero
	// instead of going negative.
	got := pool.FeeRate(1000, 600,
		big.NewInt(500_000), big.NewInt(100_000), big.NewInt(900_000), false)

	// initDiff=400,000, nextDiff=500,000, avgDiff=450,000 < 500,000
	// surcharge = 600 * 450,000 / 500,000 = 540
	if got != 1540 {
		t.Errorf("rate = %d, want 1540", got)
	}
}

func TestFeeRate_Monotonicity(t *testing.T) {
	target := big.NewInt(1_000_000)
	base := int64(1000)
	tax := int64(600)

	// Sweep current values on both sides of target; a move toward target
	// is never above baseFee, a move away is never below.
	for _, current := range []int64{100_000, 600_000, 900_000, 1_400_000, 3_000_000} {
		cur := big.NewInt(current)
		change := big.NewInt(50_000)

		toward := current < 1_000_000
		rate := pool.FeeRate(base, tax, target, cur, change, toward)
		if rate > base {
			t.Errorf("current=%d: toward-target rate %d exceeds baseFee", current, rate)
		}

		rate = pool.FeeRate(base, tax, target, cur, change, !toward)
		if rate < base {
			t.Errorf("current=%d: away-from-target rate %d below baseFee", current, rate)
		}
	}
}

func TestFeeRate_LargerDeviationChargesMore(t *testing.T) {
	target := big.NewInt(1_000_000)
	prev := int64(-1)
	for _, change := range []int64{10_000, 100_000, 400_000, 900_000} {
		rate := pool.FeeRate(1000, 600, target, big.NewInt(1_000_000), big.NewInt(change), true)
		if prev >= 0 && rate < prev {
			t.Errorf("rate decreased from %d to %d as deviation grew", prev, rate)
		}
		prev = rate
	}
}
