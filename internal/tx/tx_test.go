package tx

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/registry"
	"github.com/atmx/prediction-amm/internal/result"
)

// --- Title codec ---

func TestTitle_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		title string
		words int
	}{
		{"multiple of 8", "abcdefgh12345678", 2},
		{"padded", "Will BTC close above 100k?", 4},
		{"single byte", "x", 1},
		{"utf8", "预测市场: yes/no", 3},
		{"68 chars", "Predict CASADADSA Will Launch on binance perp or not in three months", 9},
		{"72 chars", strings.Repeat("z", 72), 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := EncodeTitle(tt.title)
			if len(words) != tt.words {
				t.Fatalf("encoded %d bytes to %d words, want %d", len(tt.title), len(words), tt.words)
			}
			got, err := DecodeTitle(words)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.title {
				t.Errorf("round trip = %q, want %q", got, tt.title)
			}
		})
	}
}

func TestTitle_LittleEndian(t *testing.T) {
	words := EncodeTitle("ab")
	if words[0] != 0x6261 {
		t.Errorf("word = %#x, want 0x6261", words[0])
	}
}

func TestDecodeTitle_Errors(t *testing.T) {
	if _, err := DecodeTitle(make([]uint64, MaxTitleWords+1)); !errors.Is(err, result.ErrInvalidMarketTitle) {
		t.Errorf("expected ErrInvalidMarketTitle for 10 words, got %v", err)
	}
	if _, err := DecodeTitle([]uint64{0xfffe}); !errors.Is(err, result.ErrInvalidMarketTitle) {
		t.Errorf("expected ErrInvalidMarketTitle for bad utf8, got %v", err)
	}
}

// --- Command decoding ---

func TestDecode_Header(t *testing.T) {
	c, err := Decode([]uint64{uint64(OpClaim) | 42<<16, 7})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Op != OpClaim || c.Nonce != 42 || c.MarketID != 7 {
		t.Errorf("command = %+v", c)
	}
	// Bits 8..15 are ignored.
	c, _ = Decode([]uint64{uint64(OpTick) | 0xab00})
	if c.Op != OpTick || c.Nonce != 0 {
		t.Errorf("command = %+v", c)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	cmds := []Command{
		{Op: OpTick},
		{Op: OpInstallPlayer, Nonce: 0},
		{Op: OpWithdraw, Nonce: 3, Withdraw: [3]uint64{11, 22, 1<<40 | 5000}, Amount: 5000},
		{Op: OpDeposit, Nonce: 1, Target: model.PlayerID{9, 8}, Amount: 777},
		{Op: OpBet, Nonce: 5, MarketID: 2, Side: model.Yes, Amount: 10_000},
		{Op: OpSell, Nonce: 6, MarketID: 2, Side: model.No, Amount: 50},
		{Op: OpResolve, Nonce: 7, MarketID: 2, Side: model.No},
		{Op: OpClaim, Nonce: 8, MarketID: 2},
		{Op: OpWithdrawFees, Nonce: 9, MarketID: 2},
		{Op: OpCreateMarket, Nonce: 10, Market: registry.CreateParams{
			Title: "Will it snow?", StartOffset: 0, EndOffset: 10, ResolutionOffset: 20,
			YesLiquidity: 1_000_000, NoLiquidity: 2_000_000,
		}},
	}
	for _, want := range cmds {
		t.Run(want.Op.String(), func(t *testing.T) {
			got, err := Decode(want.Encode())
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip = %+v, want %+v", got, want)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		words []uint64
		want  error
	}{
		{"empty", nil, result.ErrInvalidCommand},
		{"unknown opcode", []uint64{10}, result.ErrInvalidCommand},
		{"tick with params", []uint64{0, 1}, result.ErrInvalidCommand},
		{"bet short", []uint64{uint64(OpBet), 1, 1}, result.ErrInvalidCommand},
		{"bet long", []uint64{uint64(OpBet), 1, 1, 100, 0}, result.ErrInvalidCommand},
		{"bet side 2", []uint64{uint64(OpBet), 1, 2, 100}, result.ErrInvalidBetType},
		{"sell side max", []uint64{uint64(OpSell), 1, ^uint64(0), 100}, result.ErrInvalidBetType},
		{"resolve outcome 3", []uint64{uint64(OpResolve), 1, 3}, result.ErrInvalidBetType},
		{"deposit token index", []uint64{uint64(OpDeposit), 1, 2, 1, 100}, result.ErrInvalidCommand},
		{"withdraw short", []uint64{uint64(OpWithdraw), 1, 2}, result.ErrInvalidCommand},
		{"claim no market", []uint64{uint64(OpClaim)}, result.ErrInvalidCommand},
		{"create title too long", []uint64{uint64(OpCreateMarket), 10}, result.ErrInvalidMarketTitle},
		{"create arity", []uint64{uint64(OpCreateMarket), 1, 0x61, 0, 10, 20, 1000}, result.ErrInvalidCommand},
		{"create no params", []uint64{uint64(OpCreateMarket)}, result.ErrInvalidCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.words); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_WithdrawAmountMasksFlags(t *testing.T) {
	c, err := Decode([]uint64{uint64(OpWithdraw), 1, 2, 0xdead_0000_1234})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Amount != 0x1234 {
		t.Errorf("amount = %#x, want 0x1234", c.Amount)
	}
}

func TestAdminOnly(t *testing.T) {
	admin := map[Opcode]bool{
		OpTick: true, OpInstallPlayer: false, OpWithdraw: false, OpDeposit: true, OpBet: false,
		OpSell: false, OpResolve: true, OpClaim: false, OpWithdrawFees: true, OpCreateMarket: true,
	}
	for op, want := range admin {
		if got := (Command{Op: op}).AdminOnly(); got != want {
			t.Errorf("%s AdminOnly = %v, want %v", op, got, want)
		}
	}
}

// --- Event log ---

func TestLog_EmitAndParse(t *testing.T) {
	var l Log
	l.Emit(EventPlayerUpdate, 1, 2, 3, 4)
	l.Emit(EventMarketUpdate)
	l.Emit(EventBetUpdate, BetPayload(9, model.PlayerID{5, 6}, 1, model.No, true, 100, 50, 12)...)

	words := l.Words()
	if words[0] != 1<<32|4 {
		t.Errorf("header = %#x, want %#x", words[0], uint64(1<<32|4))
	}

	events, err := Parse(words)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("parsed %d events, want 3", len(events))
	}
	if events[0].Type != EventPlayerUpdate || !reflect.DeepEqual(events[0].Payload, []uint64{1, 2, 3, 4}) {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Type != EventMarketUpdate || len(events[1].Payload) != 0 {
		t.Errorf("event 1 = %+v", events[1])
	}

	bet, err := DecodeBet(events[2].Payload)
	if err != nil {
		t.Fatalf("decode bet: %v", err)
	}
	want := BetRecord{TxID: 9, Player: model.PlayerID{5, 6}, Market: 1, Side: model.No, Sell: true, Amount: 100, Shares: 50, Tick: 12}
	if bet != want {
		t.Errorf("bet = %+v, want %+v", bet, want)
	}
	if events[2].Payload[4] != SellSideOffset {
		t.Errorf("sell side word = %d, want %d", events[2].Payload[4], SellSideOffset)
	}
}

func TestParse_Truncated(t *testing.T) {
	if _, err := Parse([]uint64{uint64(EventBetUpdate)<<32 | 8, 1, 2}); err == nil {
		t.Error("expected error for truncated record")
	}
}
