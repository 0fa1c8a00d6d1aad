package safemath

import (
	"errors"
	"math"
	"testing"

	"github.com/holiman/uint256"

	"github.com/atmx/prediction-amm/internal/result"
)

// --- Primitive tests ---

func TestSub_Underflow(t *testing.T) {
	_, err := Sub(5, 10)
	if !errors.Is(err, result.ErrUnderflow) {
		t.Errorf("expected ErrUnderflow for 5-10, got %v", err)
	}
}

func TestMul_Overflow(t *testing.T) {
	_, err := Mul(math.MaxUint64, 2)
	if !errors.Is(err, result.ErrOverflow) {
		t.Errorf("expected ErrOverflow for MaxUint64*2, got %v", err)
	}
}

func TestAdd_Overflow(t *testing.T) {
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, result.ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	got, err := Add(math.MaxUint64-1, 1)
	if err != nil || got != math.MaxUint64 {
		t.Errorf("Add at boundary = %d, %v", got, err)
	}
}

func TestDiv_ByZero(t *testing.T) {
	if _, err := Div(100, 0); !errors.Is(err, result.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
	if got, _ := Div(7, 2); got != 3 {
		t.Errorf("Div(7,2) = %d, want 3", got)
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c uint64
		want    uint64
		wantErr error
	}{
		{"simple", 10, 20, 3, 66, nil},
		{"wide intermediate", math.MaxUint64, 1000, 1000, math.MaxUint64, nil},
		{"zero divisor", 1, 2, 0, 0, result.ErrDivisionByZero},
		{"zero multiplier", 1, 0, 2, 0, nil},
		{"zero multiplicand", 0, 5, 2, 0, nil},
		{"zero factor, zero divisor", 1, 0, 0, 0, result.ErrDivisionByZero},
		{"does not narrow", math.MaxUint64, 3, 2, 0, result.ErrOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulDiv(tt.a, tt.b, tt.c)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != tt.want {
				t.Errorf("MulDiv = %d, want %d", got, tt.want)
			}
		})
	}
}

// --- Fee tests ---

func TestFee_RoundsUp(t *testing.T) {
	tests := []struct {
		amount uint64
		want   uint64
	}{
		{0, 0},
		{1, 1},
		{99, 1},
		{100, 1},
		{101, 2},
		{1960, 20},
		{10000, 100},
		{MaxBetAmount, 1_000_000},
	}
	for _, tt := range tests {
		got, err := Fee(tt.amount, DefaultFeeRate, FeeBasisPoints)
		if err != nil {
			t.Fatalf("Fee(%d): %v", tt.amount, err)
		}
		if got != tt.want {
			t.Errorf("Fee(%d) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestFee_ZeroRate(t *testing.T) {
	got, err := Fee(5000, 0, FeeBasisPoints)
	if err != nil || got != 0 {
		t.Errorf("Fee at zero rate = %d, %v", got, err)
	}
	if _, err := Fee(5000, 100, 0); !errors.Is(err, result.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero for zero basis, got %v", err)
	}
}

func TestNetAmount(t *testing.T) {
	got, err := NetAmount(10000, DefaultFeeRate, FeeBasisPoints)
	if err != nil || got != 9900 {
		t.Errorf("NetAmount(10000) = %d, %v; want 9900", got, err)
	}
	got, _ = NetAmount(1, DefaultFeeRate, FeeBasisPoints)
	if got != 0 {
		t.Errorf("NetAmount(1) = %d, want 0", got)
	}
}

// --- Constant product tests ---

func TestK(t *testing.T) {
	k, err := K(1_000_000, 1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !k.Eq(uint256.NewInt(1_000_000_000_000)) {
		t.Errorf("k = %s, want 1e12", k.Dec())
	}

	if _, err := K(MaxLiquidity+1, MaxLiquidity); !errors.Is(err, result.ErrLiquidityTooHigh) {
		t.Errorf("expected ErrLiquidityTooHigh, got %v", err)
	}
	if _, err := K(MinLiquidity-1, MinLiquidity); !errors.Is(err, result.ErrInvalidCalculation) {
		t.Errorf("expected ErrInvalidCalculation, got %v", err)
	}
}

func TestK_MaxLiquidityExceeds64Bits(t *testing.T) {
	k, err := K(MaxLiquidity, MaxLiquidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.IsUint64() {
		t.Error("1e24 should not fit in 64 bits")
	}
	back, err := LiquidityFromK(k, MaxLiquidity)
	if err != nil || back != MaxLiquidity {
		t.Errorf("LiquidityFromK = %d, %v", back, err)
	}
}

func TestLiquidityFromK(t *testing.T) {
	k, _ := K(1_000_000, 1_000_000)

	got, err := LiquidityFromK(k, 1_009_900)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 990_197 {
		t.Errorf("LiquidityFromK = %d, want 990197", got)
	}

	if _, err := LiquidityFromK(k, 0); !errors.Is(err, result.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
	// 1e12 / 1e10 = 100, below MinLiquidity.
	if _, err := LiquidityFromK(k, 10_000_000_000); !errors.Is(err, result.ErrInvalidCalculation) {
		t.Errorf("expected ErrInvalidCalculation, got %v", err)
	}
}

// --- Price tests ---

func TestPrice(t *testing.T) {
	if got, _ := Price(1, 0); got != PricePrecision/2 {
		t.Errorf("empty denominator price = %d, want %d", got, PricePrecision/2)
	}
	if got, _ := Price(1_000_000, 2_000_000); got != 500_000 {
		t.Errorf("half price = %d, want 500000", got)
	}
	if got, _ := Price(1, 3); got != 333_333 {
		t.Errorf("third price = %d, want 333333", got)
	}
}

func TestEffectivePrice(t *testing.T) {
	if got, _ := EffectivePrice(10_000, 0); got != 0 {
		t.Errorf("zero shares effective price = %d, want 0", got)
	}
	got, err := EffectivePrice(10_000, 9_803)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1_020_095 {
		t.Errorf("effective price = %d, want 1020095", got)
	}
}

// --- Validators ---

func TestValidateBetAmount(t *testing.T) {
	if err := ValidateBetAmount(1000); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateBetAmount(0); !errors.Is(err, result.ErrInvalidBetAmount) {
		t.Errorf("expected ErrInvalidBetAmount, got %v", err)
	}
	if err := ValidateBetAmount(MaxBetAmount + 1); !errors.Is(err, result.ErrBetTooLarge) {
		t.Errorf("expected ErrBetTooLarge, got %v", err)
	}
	if err := ValidateBetAmount(MaxBetAmount); err != nil {
		t.Errorf("MaxBetAmount itself should be accepted: %v", err)
	}
}

func TestValidateShares(t *testing.T) {
	if err := ValidateShares(0); !errors.Is(err, result.ErrInvalidShares) {
		t.Errorf("expected ErrInvalidShares, got %v", err)
	}
	if err := ValidateShares(MaxShares + 1); !errors.Is(err, result.ErrBetTooLarge) {
		t.Errorf("expected ErrBetTooLarge, got %v", err)
	}
}

func TestValidateLiquidity(t *testing.T) {
	if err := ValidateLiquidity(MinLiquidity); err != nil {
		t.Errorf("MinLiquidity should be valid: %v", err)
	}
	if err := ValidateLiquidity(MaxLiquidity); err != nil {
		t.Errorf("MaxLiquidity should be valid: %v", err)
	}
}
