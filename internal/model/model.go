// Package model defines the core domain types shared across the market engine.
// Engine state is kept in unsigned integers; the JSON views at the bottom of
// this file expose fixed-point prices as shopspring/decimal, never float64.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is one half of a binary market. The numeric values are the wire
// encoding: 0 is NO, 1 is YES.
type Side uint8

const (
	No  Side = 0
	Yes Side = 1
)

// SideFromWord validates a wire-encoded side or outcome flag.
func SideFromWord(w uint64) (Side, bool) {
	switch w {
	case 0:
		return No, true
	case 1:
		return Yes, true
	}
	return 0, false
}

// ParseSide accepts "yes"/"no" in any case as well as "1"/"0".
func ParseSide(s string) (Side, bool) {
	switch strings.ToUpper(s) {
	case "YES", "1":
		return Yes, true
	case "NO", "0":
		return No, true
	}
	return 0, false
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Yes {
		return No
	}
	return Yes
}

func (s Side) String() string {
	if s == Yes {
		return "YES"
	}
	return "NO"
}

// Outcome is a market's resolution. The zero value means unresolved.
// Values match the persisted encoding.
type Outcome uint8

const (
	OutcomeNone Outcome = 0
	OutcomeNo   Outcome = 1
	OutcomeYes  Outcome = 2
)

// OutcomeOf returns the outcome in which side wins.
func OutcomeOf(s Side) Outcome {
	if s == Yes {
		return OutcomeYes
	}
	return OutcomeNo
}

// Winner returns the winning side, or false when unresolved.
func (o Outcome) Winner() (Side, bool) {
	switch o {
	case OutcomeYes:
		return Yes, true
	case OutcomeNo:
		return No, true
	}
	return 0, false
}

func (o Outcome) String() string {
	if s, ok := o.Winner(); ok {
		return s.String()
	}
	return ""
}

// Status is a market's lifecycle state. It is derived from the logical
// clock and the resolved flag and never stored.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusClosed   Status = "closed" // past end, awaiting resolution
	StatusResolved Status = "resolved"
)

// PublicKey is a signer's 4-word public key.
type PublicKey [4]uint64

// ParsePublicKey parses 64 hex digits, 16 per word, most significant word
// first.
func ParsePublicKey(s string) (PublicKey, error) {
	var k PublicKey
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return k, fmt.Errorf("public key: want 64 hex digits, got %d", len(s))
	}
	for i := range k {
		w, err := strconv.ParseUint(s[i*16:(i+1)*16], 16, 64)
		if err != nil {
			return k, fmt.Errorf("public key: %w", err)
		}
		k[i] = w
	}
	return k, nil
}

func (k PublicKey) String() string {
	return fmt.Sprintf("%016x%016x%016x%016x", k[0], k[1], k[2], k[3])
}

// PlayerID derives the account id of k.
func (k PublicKey) PlayerID() PlayerID {
	return PlayerIDFromKey(k)
}

// PlayerID identifies an account. It is derived from words 1 and 2 of the
// acting public key.
type PlayerID [2]uint64

// PlayerIDFromKey derives the player id from a 4-word public key.
func PlayerIDFromKey(pkey [4]uint64) PlayerID {
	return PlayerID{pkey[1], pkey[2]}
}

func (p PlayerID) String() string {
	return fmt.Sprintf("%016x%016x", p[0], p[1])
}

// Market is the full state of one binary market. Liquidity values are
// virtual and used only for pricing; PrizePool holds the real funds.
type Market struct {
	ID             uint64
	Title          string
	StartTime      uint64
	EndTime        uint64
	ResolutionTime uint64
	YesLiquidity   uint64
	NoLiquidity    uint64
	PrizePool      uint64
	TotalVolume    uint64
	TotalYesShares uint64
	TotalNoShares  uint64
	Resolved       bool
	Outcome        Outcome
	TotalFees      uint64
}

// Liquidity returns the virtual liquidity of side.
func (m *Market) Liquidity(s Side) uint64 {
	if s == Yes {
		return m.YesLiquidity
	}
	return m.NoLiquidity
}

// Shares returns the outstanding shares of side.
func (m *Market) Shares(s Side) uint64 {
	if s == Yes {
		return m.TotalYesShares
	}
	return m.TotalNoShares
}

// SetShares sets the outstanding shares of side.
func (m *Market) SetShares(s Side, v uint64) {
	if s == Yes {
		m.TotalYesShares = v
	} else {
		m.TotalNoShares = v
	}
}

// Position is one player's holdings in one market. The zero value is a
// valid, empty position.
type Position struct {
	YesShares uint64
	NoShares  uint64
	Claimed   bool
}

// Shares returns the holding on side.
func (p Position) Shares(s Side) uint64 {
	if s == Yes {
		return p.YesShares
	}
	return p.NoShares
}

// WithShares returns a copy of p holding v shares on side.
func (p Position) WithShares(s Side, v uint64) Position {
	if s == Yes {
		p.YesShares = v
	} else {
		p.NoShares = v
	}
	return p
}

// IsZero reports whether p carries no information worth storing.
func (p Position) IsZero() bool {
	return p == Position{}
}

// Account is a player's fungible balance and replay nonce.
type Account struct {
	Nonce   uint64
	Balance uint64
}

// GlobalState holds the process-wide counters and the registry index.
type GlobalState struct {
	Tick         uint64 // logical clock
	TotalPlayers uint64
	TxSize       uint64 // accepted transactions since the last checkpoint
	TxCounter    uint64 // accepted transactions, ever
	NextMarketID uint64
	MarketIDs    []uint64
}

// Settlement is a queued off-system withdrawal awaiting the host.
type Settlement struct {
	Player PlayerID  `json:"player"`
	Data   [3]uint64 `json:"data"`
	Amount uint64    `json:"amount"`
}

// --- JSON views ---

// PriceDecimal converts a fixed-point price (1_000_000 == 1.0) to decimal.
func PriceDecimal(p uint64) decimal.Decimal {
	return decimal.New(int64(p), -6)
}

// MarketView is the JSON representation of a market.
type MarketView struct {
	ID             uint64          `json:"id"`
	Title          string          `json:"title"`
	Status         Status          `json:"status"`
	StartTime      uint64          `json:"start_time"`
	EndTime        uint64          `json:"end_time"`
	ResolutionTime uint64          `json:"resolution_time"`
	YesLiquidity   uint64          `json:"yes_liquidity"`
	NoLiquidity    uint64          `json:"no_liquidity"`
	PrizePool      uint64          `json:"prize_pool"`
	TotalVolume    uint64          `json:"total_volume"`
	TotalYesShares uint64          `json:"total_yes_shares"`
	TotalNoShares  uint64          `json:"total_no_shares"`
	TotalFees      uint64          `json:"total_fees_collected"`
	Resolved       bool            `json:"resolved"`
	Outcome        string          `json:"outcome,omitempty"`
	PriceYes       decimal.Decimal `json:"price_yes"`
	PriceNo        decimal.Decimal `json:"price_no"`
	ShareValueYes  decimal.Decimal `json:"share_value_yes"`
	ShareValueNo   decimal.Decimal `json:"share_value_no"`
}

// HoldingView is one market position of a player.
type HoldingView struct {
	MarketID  uint64 `json:"market_id"`
	YesShares uint64 `json:"yes_shares"`
	NoShares  uint64 `json:"no_shares"`
	Claimed   bool   `json:"claimed"`
}

// PlayerView is the JSON representation of an account and its positions.
type PlayerView struct {
	PlayerID  string        `json:"player_id"`
	Nonce     uint64        `json:"nonce"`
	Balance   uint64        `json:"balance"`
	Positions []HoldingView `json:"positions"`
}

// QuoteView is a priced, non-committing trade preview.
type QuoteView struct {
	MarketID       uint64          `json:"market_id"`
	Side           string          `json:"side"`
	Amount         uint64          `json:"amount"`
	Fee            uint64          `json:"fee"`
	Shares         uint64          `json:"shares"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	PriceBefore    decimal.Decimal `json:"price_before"`
	PriceAfter     decimal.Decimal `json:"price_after"`
	Slippage       decimal.Decimal `json:"slippage"`
}

// LedgerEntry is an immutable record of an accepted trade-affecting
// transaction. Once created, these are never modified or deleted.
type LedgerEntry struct {
	ID            string          `json:"id" db:"id"`
	CorrelationID uint64          `json:"correlation_id" db:"correlation_id"`
	PlayerID      string          `json:"player_id" db:"player_id"`
	MarketID      uint64          `json:"market_id" db:"market_id"`
	Action        string          `json:"action" db:"action"` // "bet", "sell", "claim"
	Side          string          `json:"side" db:"side"`     // "YES" or "NO"
	Amount        uint64          `json:"amount" db:"amount"` // paid in on bet, paid out on sell/claim
	Shares        uint64          `json:"shares" db:"shares"`
	Price         decimal.Decimal `json:"price" db:"price"` // average price per share
	Tick          uint64          `json:"tick" db:"tick"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}
