package store

import (
	"errors"
	"testing"

	"github.com/atmx/prediction-amm/internal/model"
)

func TestMarketLayout(t *testing.T) {
	m := &model.Market{
		ID:             7,
		Title:          "Will it rain",
		StartTime:      10,
		EndTime:        20,
		ResolutionTime: 30,
		YesLiquidity:   990197,
		NoLiquidity:    1009900,
		PrizePool:      9900,
		TotalVolume:    10000,
		TotalYesShares: 9803,
		Resolved:       true,
		Outcome:        model.OutcomeYes,
		TotalFees:      100,
	}

	w := EncodeMarket(m)
	// "Will it rain" is 12 bytes: two title words.
	if w[0] != 7 || w[1] != 2 {
		t.Fatalf("header = %v, want [7 2]", w[:2])
	}
	if len(w) != 2+2+12 {
		t.Fatalf("len = %d, want 16", len(w))
	}
	if w[4] != 10 || w[9] != 9900 || w[13] != 1 || w[14] != 2 || w[15] != 100 {
		t.Errorf("tail = %v", w[4:])
	}

	got, err := DecodeMarket(w)
	if err != nil {
		t.Fatal(err)
	}
	if got != *m {
		t.Errorf("decoded %+v, want %+v", got, *m)
	}
}

func TestDecodeMarketRejectsCorruptRecords(t *testing.T) {
	good := EncodeMarket(&model.Market{ID: 1, Title: "x", StartTime: 1, EndTime: 2, ResolutionTime: 2})

	tests := []struct {
		name  string
		words []uint64
	}{
		{"empty", nil},
		{"truncated", good[:len(good)-1]},
		{"title too long", append([]uint64{1, 10}, make([]uint64, 10+12)...)},
		{"bad resolved flag", withWord(good, len(good)-3, 2)},
		{"bad outcome", withWord(good, len(good)-2, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeMarket(tt.words); !errors.Is(err, ErrCorrupt) {
				t.Errorf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestGlobalLayout(t *testing.T) {
	g := model.GlobalState{Tick: 5, TotalPlayers: 2, TxSize: 3, TxCounter: 9, NextMarketID: 4, MarketIDs: []uint64{1, 2, 3}}
	w := EncodeGlobal(g)
	want := []uint64{5, 2, 3, 9, 4, 3, 1, 2, 3}
	if len(w) != len(want) {
		t.Fatalf("words = %v, want %v", w, want)
	}
	for i := range want {
		if w[i] != want[i] {
			t.Fatalf("words = %v, want %v", w, want)
		}
	}

	got, err := DecodeGlobal(w)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tick != 5 || got.NextMarketID != 4 || len(got.MarketIDs) != 3 || got.MarketIDs[2] != 3 {
		t.Errorf("decoded %+v", got)
	}

	if _, err := DecodeGlobal([]uint64{0, 0, 0, 0, 0, 2, 1}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("short id list: err = %v, want ErrCorrupt", err)
	}
}

func TestAccountAndPositionLayout(t *testing.T) {
	a, err := DecodeAccount(EncodeAccount(model.Account{Nonce: 3, Balance: 500}))
	if err != nil || a.Nonce != 3 || a.Balance != 500 {
		t.Errorf("account = %+v, %v", a, err)
	}
	if _, err := DecodeAccount([]uint64{1}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("short account: err = %v", err)
	}

	w := EncodePosition(model.Position{YesShares: 10, Claimed: true})
	if w[0] != 10 || w[1] != 0 || w[2] != 1 {
		t.Errorf("position words = %v", w)
	}
	if _, err := DecodePosition([]uint64{1, 2, 5}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("bad claimed flag: err = %v", err)
	}
}

func TestKeyBytesRoundTrip(t *testing.T) {
	k := PositionKey(model.PlayerID{^uint64(0), 42}, 7)
	got, err := bytesToKey(keyBytes(k))
	if err != nil || got != k {
		t.Errorf("key = %v, %v; want %v", got, err, k)
	}
	if _, err := bytesToWords([]byte{1, 2, 3}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("ragged stream: err = %v", err)
	}
}

func withWord(w []uint64, i int, v uint64) []uint64 {
	out := append([]uint64(nil), w...)
	out[i] = v
	return out
}
