package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/processor"
	"github.com/atmx/prediction-amm/internal/tx"
)

type fakeStream struct {
	mu       sync.Mutex
	subjects []string
	bodies   [][]byte
	fail     bool
}

func (f *fakeStream) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("no responders")
	}
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, data)
	return &jetstream.PubAck{Stream: "TEST"}, nil
}

func (f *fakeStream) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subjects...)
}

func betReceipt() processor.Receipt {
	var log tx.Log
	m := model.Market{ID: 7, YesLiquidity: 1000, NoLiquidity: 1000}
	log.Emit(tx.EventBetUpdate, tx.BetPayload(3, model.PlayerID{1, 2}, 7, model.Yes, false, 100, 95, 4)...)
	log.Emit(tx.EventMarketUpdate, tx.MarketPayload(&m)...)
	log.Emit(tx.EventPlayerUpdate, tx.PlayerPayload(model.PlayerID{1, 2}, model.Account{Nonce: 1, Balance: 900})...)
	return processor.Receipt{Op: tx.OpBet, CorrelationID: 4<<32 + 4, Tick: 4, Events: log.Words()}
}

func TestFromReceipt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	events, err := FromReceipt(betReceipt(), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	want := []struct {
		typ    string
		market uint64
		scoped bool
	}{
		{"bet_update", 7, true},
		{"market_update", 7, true},
		{"player_update", 0, false},
	}
	for i, w := range want {
		e := events[i]
		if e.Type != w.typ || e.Tick != 4 || !e.Timestamp.Equal(now) {
			t.Errorf("event %d = %+v", i, e)
		}
		if (e.MarketID != nil) != w.scoped || (w.scoped && *e.MarketID != w.market) {
			t.Errorf("event %d market = %v, want %d (scoped %v)", i, e.MarketID, w.market, w.scoped)
		}
	}

	if _, err := FromReceipt(processor.Receipt{Events: []uint64{uint64(tx.EventBetUpdate)<<32 | 5}}, now); err == nil {
		t.Error("truncated event log accepted")
	}
}

func TestPublisherRun(t *testing.T) {
	fs := &fakeStream{}
	p := newPublisher(fs, "pamm", 8)

	events, _ := FromReceipt(betReceipt(), time.Now())
	for _, e := range events {
		if !p.Enqueue(e) {
			t.Fatal("enqueue dropped an event with room in the queue")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(fs.published()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}

	got := fs.published()
	want := []string{"pamm.events.bet_update.7", "pamm.events.market_update.7", "pamm.events.player_update"}
	if len(got) != len(want) {
		t.Fatalf("subjects = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("subject %d = %q, want %q", i, got[i], want[i])
		}
	}

	var decoded Event
	if err := json.Unmarshal(fs.bodies[0], &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.CorrelationID != 4<<32+4 || len(decoded.Payload) != 8 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	p := newPublisher(&fakeStream{}, "pamm", 1)
	if !p.Enqueue(Event{Type: "a"}) {
		t.Fatal("first enqueue dropped")
	}
	if p.Enqueue(Event{Type: "b"}) {
		t.Error("enqueue into a full queue succeeded")
	}
}

func TestPublishFailureIsNotFatal(t *testing.T) {
	fs := &fakeStream{fail: true}
	p := newPublisher(fs, "pamm", 1)
	p.Enqueue(Event{Type: "player_update"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want deadline exceeded", err)
	}
}
