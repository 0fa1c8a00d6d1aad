package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/atmx/prediction-amm/internal/ledger"
	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/store"
)

// ShouldCheckpoint reports whether the host should persist the world now:
// when CheckpointTicks ticks have passed since the last checkpoint, when
// TxSizeThreshold transactions have been accepted, or when more than
// SettlementThreshold withdrawals are queued. A true result resets the
// transaction window.
func (p *Processor) ShouldCheckpoint() bool {
	s := p.state
	due := s.Tick-s.checkpointTick >= p.cfg.CheckpointTicks ||
		s.TxSize >= p.cfg.TxSizeThreshold ||
		len(s.settlements) > p.cfg.SettlementThreshold
	if due {
		s.TxSize = 0
		s.checkpointTick = s.Tick
	}
	return due
}

// Settlements returns a copy of the queued withdrawals, oldest first. The
// queue is left untouched until the host acknowledges delivery.
func (p *Processor) Settlements() []model.Settlement {
	return append([]model.Settlement(nil), p.state.settlements...)
}

// AckSettlements drops the n oldest queued withdrawals.
func (p *Processor) AckSettlements(n int) {
	q := p.state.settlements
	if n >= len(q) {
		p.state.settlements = nil
		return
	}
	if n > 0 {
		p.state.settlements = append([]model.Settlement(nil), q[n:]...)
	}
}

// Save writes the whole world to kv. Positions that were emptied since
// the last save are deleted, but only once every live entry is written.
func (p *Processor) Save(ctx context.Context, kv store.KV) error {
	s := p.state
	entries := make(map[store.Key][]uint64)
	entries[store.GlobalKey()] = store.EncodeGlobal(s.Global())

	for _, id := range s.Markets.IDs() {
		m, err := s.Markets.Get(id)
		if err != nil {
			return fmt.Errorf("save market %d: %w", id, err)
		}
		entries[store.MarketKey(id)] = store.EncodeMarket(&m)
	}
	s.Accounts.Each(func(pid model.PlayerID, a model.Account) {
		entries[store.PlayerKey(pid)] = store.EncodeAccount(a)
	})
	s.Positions.Each(func(k ledger.PositionKey, pos model.Position) {
		entries[store.PositionKey(k.Player, k.Market)] = store.EncodePosition(pos)
	})

	if err := store.SetAll(ctx, kv, entries); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	stale, err := kv.Scan(ctx, store.KindPosition)
	if err != nil {
		return fmt.Errorf("scan positions: %w", err)
	}
	for k := range stale {
		if _, ok := entries[k]; ok {
			continue
		}
		if err := kv.Delete(ctx, k); err != nil {
			return fmt.Errorf("delete position %v: %w", k, err)
		}
	}
	return nil
}

// Load replaces the world with the one persisted in kv. An empty kv
// leaves a fresh world.
func (p *Processor) Load(ctx context.Context, kv store.KV) error {
	raw, err := kv.Get(ctx, store.GlobalKey())
	if errors.Is(err, store.ErrNotFound) {
		p.state = NewWorldState()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load global: %w", err)
	}
	g, err := store.DecodeGlobal(raw)
	if err != nil {
		return err
	}

	w := NewWorldState()
	w.Tick, w.TotalPlayers, w.TxSize, w.TxCounter = g.Tick, g.TotalPlayers, g.TxSize, g.TxCounter
	w.checkpointTick = g.Tick

	rawMarkets, err := kv.Scan(ctx, store.KindMarket)
	if err != nil {
		return fmt.Errorf("load markets: %w", err)
	}
	markets := make([]model.Market, 0, len(rawMarkets))
	for k, words := range rawMarkets {
		m, err := store.DecodeMarket(words)
		if err != nil {
			return err
		}
		if m.ID != k[2] {
			return fmt.Errorf("market at %v has id %d: %w", k, m.ID, store.ErrCorrupt)
		}
		markets = append(markets, m)
	}
	if err := w.Markets.Restore(g.NextMarketID, g.MarketIDs, markets); err != nil {
		return err
	}

	players, err := kv.Scan(ctx, store.KindPlayer)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	for k, words := range players {
		a, err := store.DecodeAccount(words)
		if err != nil {
			return err
		}
		w.Accounts.Put(model.PlayerID{k[1], k[2]}, a)
	}

	positions, err := kv.Scan(ctx, store.KindPosition)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	for k, words := range positions {
		pos, err := store.DecodePosition(words)
		if err != nil {
			return err
		}
		w.Positions.Put(ledger.PositionKey{Player: model.PlayerID{k[1], k[2]}, Market: k[3]}, pos)
	}

	p.state = w
	return nil
}
