package tx

import (
	"fmt"

	"github.com/atmx/prediction-amm/internal/model"
)

// EventType tags a record in the event log.
type EventType uint64

const (
	EventPlayerUpdate     EventType = 1
	EventMarketUpdate     EventType = 2
	EventBetUpdate        EventType = 3
	EventLiquidityHistory EventType = 4
)

func (t EventType) String() string {
	switch t {
	case EventPlayerUpdate:
		return "player_update"
	case EventMarketUpdate:
		return "market_update"
	case EventBetUpdate:
		return "bet_update"
	case EventLiquidityHistory:
		return "liquidity_history"
	}
	return fmt.Sprintf("event(%d)", uint64(t))
}

// SellSideOffset is added to the side of a bet record to mark a sell.
const SellSideOffset = 10

// Liquidity history actions.
const (
	ActionCreate uint64 = 0
	ActionBet    uint64 = 1
	ActionSell   uint64 = 2
)

// Event is one decoded log record.
type Event struct {
	Type    EventType
	Payload []uint64
}

// Log accumulates events as a flat word stream: each record is a header
// word (type<<32 | payload length) followed by the payload.
type Log struct {
	words []uint64
}

// Emit appends a record.
func (l *Log) Emit(t EventType, payload ...uint64) {
	l.words = append(l.words, uint64(t)<<32|uint64(len(payload)))
	l.words = append(l.words, payload...)
}

// Words returns the flattened log.
func (l *Log) Words() []uint64 {
	return l.words
}

// Parse splits a flattened log back into records.
func Parse(words []uint64) ([]Event, error) {
	var events []Event
	for i := 0; i < len(words); {
		head := words[i]
		n := int(head & 0xffffffff)
		i++
		if n > len(words)-i {
			return nil, fmt.Errorf("tx: event at word %d claims %d words, %d left", i-1, n, len(words)-i)
		}
		events = append(events, Event{Type: EventType(head >> 32), Payload: words[i : i+n]})
		i += n
	}
	return events, nil
}

// PlayerPayload is [pid0, pid1, nonce, balance].
func PlayerPayload(pid model.PlayerID, a model.Account) []uint64 {
	return []uint64{pid[0], pid[1], a.Nonce, a.Balance}
}

// MarketPayload is the market state without its title:
// [id, start, end, resolution, yes, no, pool, volume, yes_shares,
// no_shares, resolved, outcome, fees].
func MarketPayload(m *model.Market) []uint64 {
	var resolved uint64
	if m.Resolved {
		resolved = 1
	}
	return []uint64{
		m.ID, m.StartTime, m.EndTime, m.ResolutionTime,
		m.YesLiquidity, m.NoLiquidity, m.PrizePool, m.TotalVolume,
		m.TotalYesShares, m.TotalNoShares, resolved, uint64(m.Outcome), m.TotalFees,
	}
}

// BetPayload is [txid, pid0, pid1, market, side, amount, shares, tick].
// Sells carry side + SellSideOffset.
func BetPayload(txid uint64, pid model.PlayerID, market uint64, side model.Side, sell bool, amount, shares, tick uint64) []uint64 {
	s := uint64(side)
	if sell {
		s += SellSideOffset
	}
	return []uint64{txid, pid[0], pid[1], market, s, amount, shares, tick}
}

// LiquidityPayload is [market, tick, yes, no, volume, action].
func LiquidityPayload(m *model.Market, tick, action uint64) []uint64 {
	return []uint64{m.ID, tick, m.YesLiquidity, m.NoLiquidity, m.TotalVolume, action}
}

// BetRecord is a decoded bet or sell record.
type BetRecord struct {
	TxID   uint64
	Player model.PlayerID
	Market uint64
	Side   model.Side
	Sell   bool
	Amount uint64
	Shares uint64
	Tick   uint64
}

// DecodeBet parses a bet record payload.
func DecodeBet(payload []uint64) (BetRecord, error) {
	if len(payload) != 8 {
		return BetRecord{}, fmt.Errorf("tx: bet record has %d words, want 8", len(payload))
	}
	r := BetRecord{
		TxID:   payload[0],
		Player: model.PlayerID{payload[1], payload[2]},
		Market: payload[3],
		Amount: payload[5],
		Shares: payload[6],
		Tick:   payload[7],
	}
	s := payload[4]
	if s >= SellSideOffset {
		r.Sell = true
		s -= SellSideOffset
	}
	side, ok := model.SideFromWord(s)
	if !ok {
		return BetRecord{}, fmt.Errorf("tx: bet record side %d", payload[4])
	}
	r.Side = side
	return r, nil
}
