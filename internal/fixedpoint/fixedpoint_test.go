package fixedpoint_test

import (
	"math/big"
	"testing"

	"PerpPool/internal/fixedpoint"
)

// ============================================================================
// Test: MulDiv
// ============================================================================

func TestMulDiv_Exact(t *testing.T) {
	got := fixedpoint.MulDiv(big.NewInt(6), big.NewInt(10), big.NewInt(4), fixedpoint.RoundDown)
	if got.Cmp(big.NewInt(15)) != 0 {
		t.Errorf("6*10/4 = %s, want 15", got)
	}
}

func TestMulDiv_TruncatesDown(t *testing.T) {
	got := fixedpoint.MulDiv(big.NewInt(7), big.NewInt(10), big.NewInt(4), fixedpoint.RoundDown)
	if got.Cmp(big.NewInt(17)) != 0 {
		t.Errorf("7*10/4 truncated = %s, want 17", got)
	}
}

func TestMulDiv_RoundsUp(t *testing.T) {
	got := fixedpoint.MulDiv(big.NewInt(7), big.NewInt(10), big.NewInt(4), fixedpoint.RoundUp)
	if got.Cmp(big.NewInt(18)) != 0 {
		t.Errorf("7*10/4 rounded up = %s, want 18", got)
	}
}

func TestMulDiv_RoundUpExactUnchanged(t *testing.T) {
	got := fixedpoint.MulDiv(big.NewInt(8), big.NewInt(10), big.NewInt(4), fixedpoint.RoundUp)
	if got.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("8*10/4 rounded up = %s, want 20", got)
	}
}

func TestMulDiv_WideIntermediate(t *testing.T) {
	// 10^18 * 10^30 does not fit in int64 or int128 comfortably; the
	// product must be carried at full width.
	a := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	got := fixedpoint.MulDiv(a, fixedpoint.ValuePrecision, a, fixedpoint.RoundDown)
	if got.Cmp(fixedpoint.ValuePrecision) != 0 {
		t.Errorf("10^18 * 10^30 / 10^18 = %s, want 10^30", got)
	}
}

func TestMulDiv_DoesNotMutateInputs(t *testing.T) {
	a := big.NewInt(7)
	b := big.NewInt(3)
	d := big.NewInt(2)
	fixedpoint.MulDiv(a, b, d, fixedpoint.RoundUp)
	if a.Int64() != 7 || b.Int64() != 3 || d.Int64() != 2 {
		t.Errorf("inputs mutated: a=%s b=%s d=%s", a, b, d)
	}
}

// ============================================================================
// Test: helpers
// ============================================================================

func TestMin(t *testing.T) {
	got := fixedpoint.Min(big.NewInt(5), big.NewInt(3))
	if got.Int64() != 3 {
		t.Errorf("Min(5,3) = %s, want 3", got)
	}
	got = fixedpoint.Min(big.NewInt(2), big.NewInt(9))
	if got.Int64() != 2 {
		t.Errorf("Min(2,9) = %s, want 2", got)
	}
}

func TestAbsDiff(t *testing.T) {
	if got := fixedpoint.AbsDiff(big.NewInt(3), big.NewInt(10)); got.Int64() != 7 {
		t.Errorf("AbsDiff(3,10) = %s, want 7", got)
	}
	if got := fixedpoint.AbsDiff(big.NewInt(10), big.NewInt(3)); got.Int64() != 7 {
		t.Errorf("AbsDiff(10,3) = %s, want 7", got)
	}
}

func TestPow10(t *testing.T) {
	want := big.NewInt(1_000_000)
	if got := fixedpoint.Pow10(6); got.Cmp(want) != 0 {
		t.Errorf("Pow10(6) = %s, want %s", got, want)
	}
}

func TestConstants(t *testing.T) {
	if fixedpoint.FeePrecision.Int64() != 1_000_000 {
		t.Errorf("FeePrecision = %s", fixedpoint.FeePrecision)
	}
	wantVP := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	if fixedpoint.ValuePrecision.Cmp(wantVP) != 0 {
		t.Errorf("ValuePrecision = %s", fixedpoint.ValuePrecision)
	}
	wantISP := new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)
	if fixedpoint.InitialSharePrice.Cmp(wantISP) != 0 {
		t.Errorf("InitialSharePrice = %s", fixedpoint.InitialSharePrice)
	}
}
