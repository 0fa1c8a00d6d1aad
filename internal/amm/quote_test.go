package amm

import (
	"errors"
	"testing"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/safemath"
)

func TestQuoteBuy_MatchesPlaceBet(t *testing.T) {
	e := Default()
	m := newMarket(1_000_000, 1_000_000)
	snapshot := *m

	q, err := e.QuoteBuy(m, model.Yes, 10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *m != snapshot {
		t.Fatal("quote mutated market")
	}
	if q.Shares != 9_803 || q.Fee != 100 {
		t.Errorf("quote shares/fee = %d/%d, want 9803/100", q.Shares, q.Fee)
	}
	if q.PriceBefore != 500_000 {
		t.Errorf("price before = %d, want 500000", q.PriceBefore)
	}
	if q.PriceAfter <= q.PriceBefore {
		t.Errorf("price after %d should exceed %d", q.PriceAfter, q.PriceBefore)
	}
	// 10_000 / 9_803 shares ≈ 1.020095 per share.
	if q.EffectivePrice != 1_020_095 {
		t.Errorf("effective price = %d, want 1020095", q.EffectivePrice)
	}
	if q.Slippage != q.EffectivePrice-q.PriceBefore {
		t.Errorf("slippage = %d", q.Slippage)
	}

	tr, _ := e.PlaceBet(m, model.Yes, 10_000)
	after, _ := e.PriceYes(m)
	if tr.Shares != q.Shares || after != q.PriceAfter {
		t.Errorf("quote diverged from execution: %+v vs %+v (price %d)", q, tr, after)
	}
}

func TestQuoteBuy_Dust(t *testing.T) {
	e := Default()
	m := newMarket(1_000_000, 1_000_000)
	q, err := e.QuoteBuy(m, model.No, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Shares != 0 || q.PriceAfter != q.PriceBefore || q.Slippage != 0 {
		t.Errorf("dust quote = %+v", q)
	}
}

func TestQuoteSell(t *testing.T) {
	e := Default()
	m := newMarket(1_000_000, 1_000_000)
	e.PlaceBet(m, model.Yes, 10_000)
	if _, err := e.QuoteSell(m, model.Yes, 9_803); !errors.Is(err, result.ErrInsufficientPrizePool) {
		t.Fatalf("sole bettor exit: expected ErrInsufficientPrizePool, got %v", err)
	}
	m.PrizePool += 1_000
	snapshot := *m

	q, err := e.QuoteSell(m, model.Yes, 9_803)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *m != snapshot {
		t.Fatal("quote mutated market")
	}
	if q.Amount != 9_901 || q.Net != 9_801 {
		t.Errorf("gross/net = %d/%d, want 9901/9801", q.Amount, q.Net)
	}
	if q.PriceAfter >= q.PriceBefore {
		t.Errorf("selling YES should lower its price: %d -> %d", q.PriceBefore, q.PriceAfter)
	}
}

func TestShareValue(t *testing.T) {
	e := Default()
	m := newMarket(1_000_000, 1_000_000)
	if v, _ := e.ShareValue(m, model.Yes); v != 0 {
		t.Errorf("empty market share value = %d", v)
	}
	m.PrizePool = 1_000
	m.TotalYesShares = 30
	m.TotalNoShares = 70
	if v, _ := e.ShareValue(m, model.Yes); v != 10*safemath.PricePrecision {
		t.Errorf("share value = %d, want %d", v, 10*safemath.PricePrecision)
	}
	m.TotalYesShares = 0
	if v, _ := e.ShareValue(m, model.Yes); v != 0 {
		t.Errorf("side without shares valued at %d", v)
	}
}
