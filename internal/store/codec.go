package store

import (
	"errors"
	"fmt"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/tx"
)

// ErrCorrupt is returned when a stored word stream does not decode.
var ErrCorrupt = errors.New("store: corrupt record")

// EncodeGlobal lays out the global record as
// [tick, total_players, txsize, txcounter, next_market_id, n, ids...].
func EncodeGlobal(g model.GlobalState) []uint64 {
	out := make([]uint64, 0, 6+len(g.MarketIDs))
	out = append(out, g.Tick, g.TotalPlayers, g.TxSize, g.TxCounter, g.NextMarketID, uint64(len(g.MarketIDs)))
	return append(out, g.MarketIDs...)
}

// DecodeGlobal is the inverse of EncodeGlobal.
func DecodeGlobal(w []uint64) (model.GlobalState, error) {
	if len(w) < 6 {
		return model.GlobalState{}, fmt.Errorf("global: %d words: %w", len(w), ErrCorrupt)
	}
	n := w[5]
	if n != uint64(len(w)-6) {
		return model.GlobalState{}, fmt.Errorf("global: %d ids in %d words: %w", n, len(w), ErrCorrupt)
	}
	return model.GlobalState{
		Tick:         w[0],
		TotalPlayers: w[1],
		TxSize:       w[2],
		TxCounter:    w[3],
		NextMarketID: w[4],
		MarketIDs:    append([]uint64(nil), w[6:]...),
	}, nil
}

const marketTailWords = 12

// EncodeMarket lays out a market as [id, title_len, title..., start, end,
// resolution, yes, no, pool, volume, yes_shares, no_shares, resolved,
// outcome, fees].
func EncodeMarket(m *model.Market) []uint64 {
	title := tx.EncodeTitle(m.Title)
	out := make([]uint64, 0, 2+len(title)+marketTailWords)
	out = append(out, m.ID, uint64(len(title)))
	out = append(out, title...)
	var resolved uint64
	if m.Resolved {
		resolved = 1
	}
	return append(out,
		m.StartTime, m.EndTime, m.ResolutionTime,
		m.YesLiquidity, m.NoLiquidity, m.PrizePool, m.TotalVolume,
		m.TotalYesShares, m.TotalNoShares, resolved, uint64(m.Outcome), m.TotalFees)
}

// DecodeMarket is the inverse of EncodeMarket.
func DecodeMarket(w []uint64) (model.Market, error) {
	if len(w) < 2 {
		return model.Market{}, fmt.Errorf("market: %d words: %w", len(w), ErrCorrupt)
	}
	n := w[1]
	if n > tx.MaxTitleWords || uint64(len(w)) != 2+n+marketTailWords {
		return model.Market{}, fmt.Errorf("market %d: title of %d words in %d: %w", w[0], n, len(w), ErrCorrupt)
	}
	title, err := tx.DecodeTitle(w[2 : 2+n])
	if err != nil {
		return model.Market{}, fmt.Errorf("market %d: title: %w", w[0], ErrCorrupt)
	}
	t := w[2+n:]
	if t[9] > 1 || t[10] > uint64(model.OutcomeYes) {
		return model.Market{}, fmt.Errorf("market %d: resolution flags: %w", w[0], ErrCorrupt)
	}
	return model.Market{
		ID:             w[0],
		Title:          title,
		StartTime:      t[0],
		EndTime:        t[1],
		ResolutionTime: t[2],
		YesLiquidity:   t[3],
		NoLiquidity:    t[4],
		PrizePool:      t[5],
		TotalVolume:    t[6],
		TotalYesShares: t[7],
		TotalNoShares:  t[8],
		Resolved:       t[9] == 1,
		Outcome:        model.Outcome(t[10]),
		TotalFees:      t[11],
	}, nil
}

// EncodeAccount lays out an account as [nonce, balance].
func EncodeAccount(a model.Account) []uint64 {
	return []uint64{a.Nonce, a.Balance}
}

// DecodeAccount is the inverse of EncodeAccount.
func DecodeAccount(w []uint64) (model.Account, error) {
	if len(w) != 2 {
		return model.Account{}, fmt.Errorf("account: %d words: %w", len(w), ErrCorrupt)
	}
	return model.Account{Nonce: w[0], Balance: w[1]}, nil
}

// EncodePosition lays out a position as [yes_shares, no_shares, claimed].
func EncodePosition(p model.Position) []uint64 {
	var claimed uint64
	if p.Claimed {
		claimed = 1
	}
	return []uint64{p.YesShares, p.NoShares, claimed}
}

// DecodePosition is the inverse of EncodePosition.
func DecodePosition(w []uint64) (model.Position, error) {
	if len(w) != 3 || w[2] > 1 {
		return model.Position{}, fmt.Errorf("position: %v: %w", w, ErrCorrupt)
	}
	return model.Position{YesShares: w[0], NoShares: w[1], Claimed: w[2] == 1}, nil
}
