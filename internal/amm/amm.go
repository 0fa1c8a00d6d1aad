// Package amm implements the constant-product automated market maker used
// to price binary YES/NO markets.
//
// The pool holds two virtual liquidities whose product k = yes * no is held
// fixed across the liquidity update of a single trade:
//   - buying a side pushes the net stake into the opposite side and mints
//     the decrease of the same side as shares
//   - selling pushes shares back into the same side and pays out the
//     decrease of the opposite side, less the fee
//
// The engine is stateless: markets are passed in by pointer, and every
// mutating method computes into locals and commits only once all checked
// arithmetic has succeeded, so a returned error leaves the market untouched.
package amm

import (
	"errors"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/safemath"
)

var (
	// ErrInvalidFeeBasis is returned when the fee basis is zero.
	ErrInvalidFeeBasis = errors.New("amm: fee basis must be positive")

	// ErrInvalidFeeRate is returned when the fee rate exceeds the basis.
	ErrInvalidFeeRate = errors.New("amm: fee rate must not exceed fee basis")
)

// Engine prices and mutates markets.
type Engine struct {
	feeRate  uint64
	feeBasis uint64
}

// NewEngine creates an engine charging feeRate/feeBasis on every trade.
func NewEngine(feeRate, feeBasis uint64) (*Engine, error) {
	if feeBasis == 0 {
		return nil, ErrInvalidFeeBasis
	}
	if feeRate > feeBasis {
		return nil, ErrInvalidFeeRate
	}
	return &Engine{feeRate: feeRate, feeBasis: feeBasis}, nil
}

// Default returns an engine with the standard 1% fee.
func Default() *Engine {
	return &Engine{feeRate: safemath.DefaultFeeRate, feeBasis: safemath.FeeBasisPoints}
}

// FeeRate returns the fee rate and basis.
func (e *Engine) FeeRate() (rate, basis uint64) {
	return e.feeRate, e.feeBasis
}

// Fee returns the fee charged on amount.
func (e *Engine) Fee(amount uint64) (uint64, error) {
	return safemath.Fee(amount, e.feeRate, e.feeBasis)
}

// Status derives the lifecycle state of m at logical time now.
func (e *Engine) Status(m *model.Market, now uint64) model.Status {
	switch {
	case m.Resolved:
		return model.StatusResolved
	case now < m.StartTime:
		return model.StatusPending
	case now < m.EndTime:
		return model.StatusActive
	default:
		return model.StatusClosed
	}
}

// IsActive reports whether m accepts bets and sells at now.
func (e *Engine) IsActive(m *model.Market, now uint64) bool {
	return e.Status(m, now) == model.StatusActive
}

// CanResolve reports whether m has reached its resolution time.
func (e *Engine) CanResolve(m *model.Market, now uint64) bool {
	return !m.Resolved && now >= m.ResolutionTime
}

// Price returns the fixed-point price of side:
//
//	p_yes = no / (yes + no),  p_no = yes / (yes + no)
func (e *Engine) Price(m *model.Market, s model.Side) (uint64, error) {
	total, err := safemath.Add(m.YesLiquidity, m.NoLiquidity)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return safemath.PricePrecision / 2, nil
	}
	return safemath.Price(m.Liquidity(s.Opposite()), total)
}

// PriceYes returns the YES price.
func (e *Engine) PriceYes(m *model.Market) (uint64, error) {
	return e.Price(m, model.Yes)
}

// PriceNo returns the NO price.
func (e *Engine) PriceNo(m *model.Market) (uint64, error) {
	return e.Price(m, model.No)
}

// Trade is the computed effect of a bet or sell on a market.
//
// For a bet, Amount is the stake, Fee the fee on it and Net the part
// credited to the prize pool. For a sell, Amount is the gross value of the
// shares, Fee the fee on it and Net the payout to the seller.
type Trade struct {
	Side         model.Side
	Amount       uint64
	Fee          uint64
	Net          uint64
	Shares       uint64
	YesLiquidity uint64
	NoLiquidity  uint64
}

func (t *Trade) setLiquidity(s model.Side, same, opposite uint64) {
	if s == model.Yes {
		t.YesLiquidity, t.NoLiquidity = same, opposite
	} else {
		t.YesLiquidity, t.NoLiquidity = opposite, same
	}
}

// CalculateShares computes the shares a bet of amount on side would mint.
// Zero shares with a nil error means the same-side liquidity would not
// decrease; the bet must be rejected.
func (e *Engine) CalculateShares(m *model.Market, s model.Side, amount uint64) (Trade, error) {
	if err := safemath.ValidateBetAmount(amount); err != nil {
		return Trade{}, err
	}
	fee, err := e.Fee(amount)
	if err != nil {
		return Trade{}, err
	}
	net, err := safemath.Sub(amount, fee)
	if err != nil {
		return Trade{}, err
	}

	k, err := safemath.K(m.YesLiquidity, m.NoLiquidity)
	if err != nil {
		return Trade{}, err
	}
	same := m.Liquidity(s)
	newOpposite, err := safemath.Add(m.Liquidity(s.Opposite()), net)
	if err != nil {
		return Trade{}, err
	}
	if err := safemath.ValidateLiquidity(newOpposite); err != nil {
		return Trade{}, err
	}
	newSame, err := safemath.LiquidityFromK(k, newOpposite)
	if err != nil {
		return Trade{}, err
	}

	t := Trade{Side: s, Amount: amount, Fee: fee, Net: net}
	t.setLiquidity(s, newSame, newOpposite)
	if newSame >= same {
		return t, nil
	}
	t.Shares = same - newSame
	if err := safemath.ValidateShares(t.Shares); err != nil {
		return Trade{}, err
	}
	return t, nil
}

// PlaceBet buys shares of side for amount and commits the trade to m.
func (e *Engine) PlaceBet(m *model.Market, s model.Side, amount uint64) (Trade, error) {
	t, err := e.CalculateShares(m, s, amount)
	if err != nil {
		return Trade{}, err
	}
	if t.Shares == 0 {
		return Trade{}, result.ErrInvalidBetAmount
	}

	pool, err := safemath.Add(m.PrizePool, t.Net)
	if err != nil {
		return Trade{}, err
	}
	volume, err := safemath.Add(m.TotalVolume, t.Amount)
	if err != nil {
		return Trade{}, err
	}
	shares, err := safemath.Add(m.Shares(s), t.Shares)
	if err != nil {
		return Trade{}, err
	}
	fees, err := safemath.Add(m.TotalFees, t.Fee)
	if err != nil {
		return Trade{}, err
	}

	m.YesLiquidity, m.NoLiquidity = t.YesLiquidity, t.NoLiquidity
	m.PrizePool = pool
	m.TotalVolume = volume
	m.SetShares(s, shares)
	m.TotalFees = fees
	return t, nil
}

// CalculateSell computes the payout for selling shares of side back to the
// pool. A zero Net with a nil error means the sale is worthless.
func (e *Engine) CalculateSell(m *model.Market, s model.Side, shares uint64) (Trade, error) {
	if err := safemath.ValidateShares(shares); err != nil {
		return Trade{}, err
	}
	if shares > m.Shares(s) {
		return Trade{}, result.ErrInsufficientShares
	}

	k, err := safemath.K(m.YesLiquidity, m.NoLiquidity)
	if err != nil {
		return Trade{}, err
	}
	opposite := m.Liquidity(s.Opposite())
	newSame, err := safemath.Add(m.Liquidity(s), shares)
	if err != nil {
		return Trade{}, err
	}
	if err := safemath.ValidateLiquidity(newSame); err != nil {
		return Trade{}, err
	}
	newOpposite, err := safemath.LiquidityFromK(k, newSame)
	if err != nil {
		return Trade{}, err
	}

	t := Trade{Side: s, Shares: shares}
	t.setLiquidity(s, newSame, newOpposite)
	if newOpposite >= opposite {
		return t, nil
	}
	t.Amount = opposite - newOpposite
	if t.Fee, err = e.Fee(t.Amount); err != nil {
		return Trade{}, err
	}
	if t.Net, err = safemath.Sub(t.Amount, t.Fee); err != nil {
		return Trade{}, err
	}
	return t, nil
}

// SellShares sells shares of side back to the pool and commits the trade
// to m. The gross amount leaves the prize pool: Net goes to the seller and
// Fee moves to TotalFees. The caller must already have checked the
// seller's own holding.
func (e *Engine) SellShares(m *model.Market, s model.Side, shares uint64) (Trade, error) {
	t, err := e.CalculateSell(m, s, shares)
	if err != nil {
		return Trade{}, err
	}
	if t.Net == 0 {
		return Trade{}, result.ErrInvalidBetAmount
	}
	if t.Amount > m.PrizePool {
		return Trade{}, result.ErrInsufficientPrizePool
	}

	pool, err := safemath.Sub(m.PrizePool, t.Amount)
	if err != nil {
		return Trade{}, err
	}
	outstanding, err := safemath.Sub(m.Shares(s), shares)
	if err != nil {
		return Trade{}, err
	}
	volume, err := safemath.Add(m.TotalVolume, t.Amount)
	if err != nil {
		return Trade{}, err
	}
	fees, err := safemath.Add(m.TotalFees, t.Fee)
	if err != nil {
		return Trade{}, err
	}

	m.YesLiquidity, m.NoLiquidity = t.YesLiquidity, t.NoLiquidity
	m.PrizePool = pool
	m.SetShares(s, outstanding)
	m.TotalVolume = volume
	m.TotalFees = fees
	return t, nil
}

// Resolve settles m in favour of winner. It succeeds once.
func (e *Engine) Resolve(m *model.Market, winner model.Side) error {
	if m.Resolved {
		return result.ErrMarketAlreadyResolved
	}
	m.Resolved = true
	m.Outcome = model.OutcomeOf(winner)
	return nil
}

// CalculatePayout returns the pro-rata share of the prize pool owed to a
// holder of yesShares and noShares. Losing shares are worth nothing.
// Rounding is floored, so payouts never sum past the pool.
func (e *Engine) CalculatePayout(m *model.Market, yesShares, noShares uint64) (uint64, error) {
	if !m.Resolved || m.PrizePool == 0 {
		return 0, nil
	}
	winner, ok := m.Outcome.Winner()
	if !ok {
		return 0, nil
	}
	total := m.Shares(winner)
	held := model.Position{YesShares: yesShares, NoShares: noShares}.Shares(winner)
	if total == 0 || held == 0 {
		return 0, nil
	}
	return safemath.MulDiv(held, m.PrizePool, total)
}

// SettleClaim burns claimed winning shares and debits their payout from
// the prize pool, keeping later pro-rata claims exact. The final claimant
// receives whatever rounding left in the pool.
func (e *Engine) SettleClaim(m *model.Market, winner model.Side, shares, payout uint64) error {
	pool, err := safemath.Sub(m.PrizePool, payout)
	if err != nil {
		return err
	}
	outstanding, err := safemath.Sub(m.Shares(winner), shares)
	if err != nil {
		return err
	}
	m.PrizePool = pool
	m.SetShares(winner, outstanding)
	return nil
}

// WithdrawFees sweeps the collected fees out of m.
func (e *Engine) WithdrawFees(m *model.Market) (uint64, error) {
	if m.TotalFees == 0 {
		return 0, result.ErrNoFeesToWithdraw
	}
	amount := m.TotalFees
	m.TotalFees = 0
	return amount, nil
}
