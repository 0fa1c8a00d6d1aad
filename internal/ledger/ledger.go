// Package ledger tracks per-player market positions and player accounts.
//
// Both the position ledger and the account table are sparse maps. A
// missing position reads as the zero Position; a missing account is an
// error. The mutation helpers are pure: they take a value and return the
// updated value, so callers can stage changes and commit them with Put
// only after every step of a transaction has succeeded.
package ledger

import (
	"sort"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/safemath"
)

// PositionKey addresses one player's position in one market.
type PositionKey struct {
	Player model.PlayerID
	Market uint64
}

// Ledger is the position store.
type Ledger struct {
	positions map[PositionKey]model.Position
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[PositionKey]model.Position)}
}

// Get returns the position at k, or the zero Position.
func (l *Ledger) Get(k PositionKey) model.Position {
	return l.positions[k]
}

// Put stores p at k. Zero positions are dropped to keep the map sparse.
func (l *Ledger) Put(k PositionKey, p model.Position) {
	if p.IsZero() {
		delete(l.positions, k)
		return
	}
	l.positions[k] = p
}

// Len returns the number of stored positions.
func (l *Ledger) Len() int {
	return len(l.positions)
}

// Holding is one entry of a player's portfolio.
type Holding struct {
	Market   uint64
	Position model.Position
}

// Holdings returns the stored positions of player ordered by market id.
func (l *Ledger) Holdings(player model.PlayerID) []Holding {
	var out []Holding
	for k, p := range l.positions {
		if k.Player == player {
			out = append(out, Holding{Market: k.Market, Position: p})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out
}

// SideTotal sums every player's holding on side of market.
func (l *Ledger) SideTotal(market uint64, s model.Side) (uint64, error) {
	var total uint64
	for k, p := range l.positions {
		if k.Market != market {
			continue
		}
		var err error
		if total, err = safemath.Add(total, p.Shares(s)); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Each calls fn for every stored position in key order.
func (l *Ledger) Each(fn func(PositionKey, model.Position)) {
	keys := make([]PositionKey, 0, len(l.positions))
	for k := range l.positions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
	for _, k := range keys {
		fn(k, l.positions[k])
	}
}

func lessKey(a, b PositionKey) bool {
	if a.Player[0] != b.Player[0] {
		return a.Player[0] < b.Player[0]
	}
	if a.Player[1] != b.Player[1] {
		return a.Player[1] < b.Player[1]
	}
	return a.Market < b.Market
}

// AddShares credits n shares of side.
func AddShares(p model.Position, s model.Side, n uint64) (model.Position, error) {
	v, err := safemath.Add(p.Shares(s), n)
	if err != nil {
		return p, err
	}
	return p.WithShares(s, v), nil
}

// SubShares debits n shares of side.
func SubShares(p model.Position, s model.Side, n uint64) (model.Position, error) {
	if p.Shares(s) < n {
		return p, result.ErrInsufficientShares
	}
	return p.WithShares(s, p.Shares(s)-n), nil
}

// Claim latches the claimed flag. It succeeds once per position.
func Claim(p model.Position) (model.Position, error) {
	if p.Claimed {
		return p, result.ErrAlreadyClaimed
	}
	p.Claimed = true
	return p, nil
}
