package amm

import (
	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/safemath"
)

// Quote previews a trade without committing it. Prices are fixed-point
// with safemath.PricePrecision.
type Quote struct {
	Side           model.Side
	Amount         uint64 // stake for a buy, gross value for a sell
	Fee            uint64
	Net            uint64 // net stake for a buy, payout for a sell
	Shares         uint64
	EffectivePrice uint64
	PriceBefore    uint64
	PriceAfter     uint64
	Slippage       uint64
}

// QuoteBuy previews a bet of amount on side.
func (e *Engine) QuoteBuy(m *model.Market, s model.Side, amount uint64) (Quote, error) {
	before, err := e.Price(m, s)
	if err != nil {
		return Quote{}, err
	}
	t, err := e.CalculateShares(m, s, amount)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{Side: s, Amount: amount, Fee: t.Fee, Net: t.Net, Shares: t.Shares, PriceBefore: before, PriceAfter: before}
	if t.Shares == 0 {
		return q, nil
	}

	if q.EffectivePrice, err = safemath.EffectivePrice(amount, t.Shares); err != nil {
		return Quote{}, err
	}
	sim := *m
	if _, err := e.PlaceBet(&sim, s, amount); err != nil {
		return Quote{}, err
	}
	if q.PriceAfter, err = e.Price(&sim, s); err != nil {
		return Quote{}, err
	}
	if q.EffectivePrice > before {
		q.Slippage = q.EffectivePrice - before
	}
	return q, nil
}

// QuoteSell previews selling shares of side.
func (e *Engine) QuoteSell(m *model.Market, s model.Side, shares uint64) (Quote, error) {
	before, err := e.Price(m, s)
	if err != nil {
		return Quote{}, err
	}
	t, err := e.CalculateSell(m, s, shares)
	if err != nil {
		return Quote{}, err
	}
	if t.Amount > m.PrizePool {
		return Quote{}, result.ErrInsufficientPrizePool
	}
	q := Quote{Side: s, Amount: t.Amount, Fee: t.Fee, Net: t.Net, Shares: shares, PriceBefore: before, PriceAfter: before}
	if t.Net == 0 {
		return q, nil
	}

	if q.EffectivePrice, err = safemath.EffectivePrice(t.Net, shares); err != nil {
		return Quote{}, err
	}
	after := *m
	after.YesLiquidity, after.NoLiquidity = t.YesLiquidity, t.NoLiquidity
	if q.PriceAfter, err = e.Price(&after, s); err != nil {
		return Quote{}, err
	}
	if before > q.EffectivePrice {
		q.Slippage = before - q.EffectivePrice
	}
	return q, nil
}

// ShareValue estimates the pre-resolution value of one share of side as
// the prize pool spread over every outstanding share, scaled by
// safemath.PricePrecision.
func (e *Engine) ShareValue(m *model.Market, s model.Side) (uint64, error) {
	if m.PrizePool == 0 || m.Shares(s) == 0 {
		return 0, nil
	}
	total, err := safemath.Add(m.TotalYesShares, m.TotalNoShares)
	if err != nil {
		return 0, err
	}
	return safemath.MulDiv(m.PrizePool, safemath.PricePrecision, total)
}
