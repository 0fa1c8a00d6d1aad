package processor

import (
	"github.com/atmx/prediction-amm/internal/ledger"
	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/safemath"
	"github.com/atmx/prediction-amm/internal/tx"
)

// Handlers stage every change in locals and write them back only after the
// last fallible step.

func (p *Processor) withdraw(c *call) error {
	acct, err := ledger.Spend(c.acct, c.cmd.Amount)
	if err != nil {
		return err
	}

	p.state.Accounts.Put(c.pid, acct)
	p.state.settlements = append(p.state.settlements, model.Settlement{
		Player: c.pid,
		Data:   c.cmd.Withdraw,
		Amount: c.cmd.Amount,
	})
	c.log.Emit(tx.EventPlayerUpdate, tx.PlayerPayload(c.pid, acct)...)
	return nil
}

func (p *Processor) deposit(c *call) error {
	target := c.acct
	if c.cmd.Target != c.pid {
		var err error
		if target, err = p.state.Accounts.Get(c.cmd.Target); err != nil {
			return err
		}
	}
	target, err := ledger.Credit(target, c.cmd.Amount)
	if err != nil {
		return err
	}

	p.state.Accounts.Put(c.cmd.Target, target)
	c.log.Emit(tx.EventPlayerUpdate, tx.PlayerPayload(c.cmd.Target, target)...)
	return nil
}

func (p *Processor) bet(c *call) error {
	if err := safemath.ValidateBetAmount(c.cmd.Amount); err != nil {
		return err
	}
	m, err := p.activeMarket(c.cmd.MarketID)
	if err != nil {
		return err
	}
	acct, err := ledger.Spend(c.acct, c.cmd.Amount)
	if err != nil {
		return err
	}
	t, err := p.engine.PlaceBet(&m, c.cmd.Side, c.cmd.Amount)
	if err != nil {
		return err
	}
	key := ledger.PositionKey{Player: c.pid, Market: m.ID}
	pos, err := ledger.AddShares(p.state.Positions.Get(key), c.cmd.Side, t.Shares)
	if err != nil {
		return err
	}

	txid := p.state.TxCounter
	p.commitTrade(c, m, acct, key, pos)
	c.log.Emit(tx.EventBetUpdate, tx.BetPayload(txid, c.pid, m.ID, c.cmd.Side, false, t.Amount, t.Shares, p.state.Tick)...)
	c.log.Emit(tx.EventLiquidityHistory, tx.LiquidityPayload(&m, p.state.Tick, tx.ActionBet)...)
	c.fill = &Fill{Action: "bet", Market: m.ID, Side: c.cmd.Side, Amount: t.Amount, Shares: t.Shares, Fee: t.Fee}
	return nil
}

func (p *Processor) sell(c *call) error {
	if err := safemath.ValidateShares(c.cmd.Amount); err != nil {
		return err
	}
	m, err := p.activeMarket(c.cmd.MarketID)
	if err != nil {
		return err
	}
	key := ledger.PositionKey{Player: c.pid, Market: m.ID}
	pos, err := ledger.SubShares(p.state.Positions.Get(key), c.cmd.Side, c.cmd.Amount)
	if err != nil {
		return err
	}
	t, err := p.engine.SellShares(&m, c.cmd.Side, c.cmd.Amount)
	if err != nil {
		return err
	}
	acct, err := ledger.Credit(c.acct, t.Net)
	if err != nil {
		return err
	}

	txid := p.state.TxCounter
	p.commitTrade(c, m, acct, key, pos)
	c.log.Emit(tx.EventBetUpdate, tx.BetPayload(txid, c.pid, m.ID, c.cmd.Side, true, t.Net, t.Shares, p.state.Tick)...)
	c.log.Emit(tx.EventLiquidityHistory, tx.LiquidityPayload(&m, p.state.Tick, tx.ActionSell)...)
	c.fill = &Fill{Action: "sell", Market: m.ID, Side: c.cmd.Side, Amount: t.Net, Shares: t.Shares, Fee: t.Fee}
	return nil
}

func (p *Processor) commitTrade(c *call, m model.Market, acct model.Account, key ledger.PositionKey, pos model.Position) {
	// Put cannot fail here: m was read from the registry.
	_ = p.state.Markets.Put(m)
	p.state.Accounts.Put(c.pid, acct)
	p.state.Positions.Put(key, pos)
	c.log.Emit(tx.EventMarketUpdate, tx.MarketPayload(&m)...)
	c.log.Emit(tx.EventPlayerUpdate, tx.PlayerPayload(c.pid, acct)...)
}

func (p *Processor) activeMarket(id uint64) (model.Market, error) {
	m, err := p.state.Markets.Get(id)
	if err != nil {
		return model.Market{}, err
	}
	if !p.engine.IsActive(&m, p.state.Tick) {
		return model.Market{}, result.ErrMarketNotActive
	}
	return m, nil
}

func (p *Processor) resolve(c *call) error {
	m, err := p.state.Markets.Get(c.cmd.MarketID)
	if err != nil {
		return err
	}
	if p.cfg.EnforceResolutionTime && !m.Resolved && !p.engine.CanResolve(&m, p.state.Tick) {
		return result.ErrMarketNotResolvable
	}
	if err := p.engine.Resolve(&m, c.cmd.Side); err != nil {
		return err
	}

	_ = p.state.Markets.Put(m)
	c.log.Emit(tx.EventMarketUpdate, tx.MarketPayload(&m)...)
	return nil
}

// claim pays out a winning position. The claimed winning shares are burned
// from both the position and the market so that the remaining pool stays
// split pro rata among unclaimed holders.
func (p *Processor) claim(c *call) error {
	m, err := p.state.Markets.Get(c.cmd.MarketID)
	if err != nil {
		return err
	}
	if !m.Resolved {
		return result.ErrMarketNotResolved
	}
	key := ledger.PositionKey{Player: c.pid, Market: m.ID}
	pos, err := ledger.Claim(p.state.Positions.Get(key))
	if err != nil {
		return err
	}
	payout, err := p.engine.CalculatePayout(&m, pos.YesShares, pos.NoShares)
	if err != nil {
		return err
	}
	if payout == 0 {
		return result.ErrNoWinningPosition
	}
	winner, _ := m.Outcome.Winner()
	shares := pos.Shares(winner)
	if err := p.engine.SettleClaim(&m, winner, shares, payout); err != nil {
		return err
	}
	acct, err := ledger.Credit(c.acct, payout)
	if err != nil {
		return err
	}

	p.commitTrade(c, m, acct, key, pos.WithShares(winner, 0))
	c.fill = &Fill{Action: "claim", Market: m.ID, Side: winner, Amount: payout, Shares: shares}
	return nil
}

func (p *Processor) withdrawFees(c *call) error {
	m, err := p.state.Markets.Get(c.cmd.MarketID)
	if err != nil {
		return err
	}
	amount, err := p.engine.WithdrawFees(&m)
	if err != nil {
		return err
	}
	acct, err := ledger.Credit(c.acct, amount)
	if err != nil {
		return err
	}

	_ = p.state.Markets.Put(m)
	p.state.Accounts.Put(c.pid, acct)
	c.log.Emit(tx.EventMarketUpdate, tx.MarketPayload(&m)...)
	c.log.Emit(tx.EventPlayerUpdate, tx.PlayerPayload(c.pid, acct)...)
	return nil
}

func (p *Processor) createMarket(c *call) error {
	m, err := p.state.Markets.Create(p.state.Tick, c.cmd.Market)
	if err != nil {
		return err
	}
	c.log.Emit(tx.EventMarketUpdate, tx.MarketPayload(&m)...)
	c.log.Emit(tx.EventLiquidityHistory, tx.LiquidityPayload(&m, p.state.Tick, tx.ActionCreate)...)
	return nil
}
