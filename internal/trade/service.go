// Package trade feeds transactions into the processor one at a time and
// serves the market, player and history queries over HTTP.
//
// Prices leave this package as shopspring/decimal, never float64.
package trade

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/prediction-amm/internal/metrics"
	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/processor"
	"github.com/atmx/prediction-amm/internal/publish"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/safemath"
	"github.com/atmx/prediction-amm/internal/store"
	"github.com/atmx/prediction-amm/internal/tx"
)

// EventSink receives published engine events. publish.JetStreamPublisher
// satisfies it.
type EventSink interface {
	Enqueue(evt publish.Event) bool
}

// Service owns the processor. Every submission and every query runs under
// one mutex, so the engine sees a strictly serial transaction stream.
type Service struct {
	proc  *processor.Processor
	store store.Store
	hub   *WSHub    // optional
	sink  EventSink // optional
	now   func() time.Time
	mu    sync.Mutex

	txToken string
}

// NewService creates a new trade service. hub and sink may be nil.
func NewService(proc *processor.Processor, st store.Store, hub *WSHub, sink EventSink) *Service {
	return &Service{proc: proc, store: st, hub: hub, sink: sink, now: func() time.Time { return time.Now().UTC() }}
}

// SetTxToken requires a bearer token on POST /tx. Call it before Routes.
func (s *Service) SetTxToken(token string) {
	s.txToken = token
}

// Restore loads the last checkpoint into the processor.
func (s *Service) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.proc.Load(ctx, s.store); err != nil {
		return err
	}
	s.updateGauges()
	g := s.proc.State().Global()
	slog.Info("world restored", "tick", g.Tick, "markets", len(g.MarketIDs), "players", g.TotalPlayers)
	return nil
}

// Submit executes one transaction signed by pkey and runs the host side
// effects of an accepted one.
func (s *Service) Submit(ctx context.Context, pkey model.PublicKey, words []uint64) processor.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	r := s.proc.Process(pkey, words)
	op := r.Op.String()
	metrics.TransactionLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.TransactionsTotal.WithLabelValues(op, r.Code.Name()).Inc()

	if r.Code != result.OK {
		slog.Debug("transaction rejected", "op", op, "player", r.Player.String(), "code", r.Code.Name())
		return r
	}

	if r.Fill != nil {
		s.recordFill(ctx, r)
	}
	s.broadcast(r)
	s.publish(r)
	s.updateGauges()

	if s.proc.ShouldCheckpoint() {
		s.checkpoint(ctx)
	}
	return r
}

// Tick advances the logical clock with an admin-signed Tick.
func (s *Service) Tick(ctx context.Context) processor.Receipt {
	return s.Submit(ctx, s.proc.AdminKey(), tx.Command{Op: tx.OpTick}.Encode())
}

// RunTicker ticks every interval until ctx is cancelled.
func (s *Service) RunTicker(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if r := s.Tick(ctx); r.Code != result.OK {
				slog.Error("auto tick rejected", "code", r.Code.Name())
			}
		}
	}
}

// Checkpoint writes the world state now, regardless of thresholds.
func (s *Service) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint(ctx)
}

// checkpoint saves the world and then hands queued withdrawals to the
// sink. A withdrawal leaves the queue only after a successful save and an
// accepted Enqueue; the rest wait for the next checkpoint.
func (s *Service) checkpoint(ctx context.Context) error {
	if err := s.proc.Save(ctx, s.store); err != nil {
		metrics.Checkpoints.WithLabelValues("error").Inc()
		slog.Error("checkpoint failed", "err", err, "pending_settlements", s.proc.State().PendingSettlements())
		return err
	}
	metrics.Checkpoints.WithLabelValues("ok").Inc()
	slog.Info("checkpoint written", "tick", s.proc.State().Tick)

	s.deliverSettlements()
	return nil
}

func (s *Service) deliverSettlements() {
	pending := s.proc.Settlements()
	g := s.proc.State().Global()
	delivered := 0
	for _, st := range pending {
		if s.sink != nil {
			ok := s.sink.Enqueue(publish.Event{
				CorrelationID: g.Tick<<32 + g.TxCounter,
				Type:          "settlement",
				Payload:       []uint64{st.Player[0], st.Player[1], st.Data[0], st.Data[1], st.Data[2], st.Amount},
				Tick:          g.Tick,
				Timestamp:     s.now(),
			})
			if !ok {
				slog.Warn("settlement not delivered, kept for the next checkpoint",
					"player", st.Player.String(), "amount", st.Amount, "pending", len(pending)-delivered)
				break
			}
		}
		metrics.SettlementsFlushed.Inc()
		slog.Info("settlement due", "player", st.Player.String(), "amount", st.Amount)
		delivered++
	}
	s.proc.AckSettlements(delivered)
}

// recordFill appends the trade to the history ledger. Failures are logged:
// the engine state is already committed and checkpoints stay authoritative.
func (s *Service) recordFill(ctx context.Context, r processor.Receipt) {
	f := r.Fill
	price, err := safemath.EffectivePrice(f.Amount, f.Shares)
	if err != nil {
		price = 0
	}
	entry := &model.LedgerEntry{
		ID:            uuid.New().String(),
		CorrelationID: r.CorrelationID,
		PlayerID:      r.Player.String(),
		MarketID:      f.Market,
		Action:        f.Action,
		Side:          f.Side.String(),
		Amount:        f.Amount,
		Shares:        f.Shares,
		Price:         model.PriceDecimal(price),
		Tick:          r.Tick,
		Timestamp:     s.now(),
	}
	if err := s.store.InsertLedgerEntry(ctx, entry); err != nil {
		slog.Error("failed to record trade", "correlation", r.CorrelationID, "err", err)
		return
	}
	metrics.MarketVolume.WithLabelValues(strconv.FormatUint(f.Market, 10), f.Action).Add(float64(f.Amount))

	slog.Info("trade executed",
		"trade_id", entry.ID,
		"player", entry.PlayerID,
		"market", f.Market,
		"action", f.Action,
		"side", entry.Side,
		"amount", f.Amount,
		"shares", f.Shares,
		"fee", f.Fee,
		"price", entry.Price.String(),
	)
}

func (s *Service) broadcast(r processor.Receipt) {
	if s.hub == nil {
		return
	}
	events, err := tx.Parse(r.Events)
	if err != nil {
		slog.Error("unparseable event log", "correlation", r.CorrelationID, "err", err)
		return
	}
	for _, e := range events {
		if e.Type != tx.EventMarketUpdate || len(e.Payload) == 0 {
			continue
		}
		m, err := s.proc.State().Markets.Get(e.Payload[0])
		if err != nil {
			continue
		}
		v := s.marketView(m)
		s.hub.Broadcast(WSMessage{
			Type:      "market_update",
			MarketID:  m.ID,
			Tick:      r.Tick,
			Status:    string(v.Status),
			PriceYes:  v.PriceYes.String(),
			PriceNo:   v.PriceNo.String(),
			PrizePool: m.PrizePool,
		})
	}
	if f := r.Fill; f != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "trade_executed",
			MarketID: f.Market,
			Tick:     r.Tick,
			Action:   f.Action,
			Side:     f.Side.String(),
			Amount:   f.Amount,
			Shares:   f.Shares,
		})
	}
}

func (s *Service) publish(r processor.Receipt) {
	if s.sink == nil {
		return
	}
	events, err := publish.FromReceipt(r, s.now())
	if err != nil {
		slog.Error("unparseable event log", "correlation", r.CorrelationID, "err", err)
		return
	}
	for _, e := range events {
		s.sink.Enqueue(e)
	}
}

func (s *Service) updateGauges() {
	w := s.proc.State()
	metrics.Tick.Set(float64(w.Tick))
	metrics.Players.Set(float64(w.TotalPlayers))
	metrics.Markets.Set(float64(w.Markets.Len()))
	active := 0
	for _, id := range w.Markets.IDs() {
		if m, err := w.Markets.Get(id); err == nil && s.proc.Engine().IsActive(&m, w.Tick) {
			active++
		}
	}
	metrics.ActiveMarkets.Set(float64(active))
}

// marketView renders m with current prices. Price errors leave the
// decimal fields at zero.
func (s *Service) marketView(m model.Market) model.MarketView {
	e := s.proc.Engine()
	v := model.MarketView{
		ID:             m.ID,
		Title:          m.Title,
		Status:         e.Status(&m, s.proc.State().Tick),
		StartTime:      m.StartTime,
		EndTime:        m.EndTime,
		ResolutionTime: m.ResolutionTime,
		YesLiquidity:   m.YesLiquidity,
		NoLiquidity:    m.NoLiquidity,
		PrizePool:      m.PrizePool,
		TotalVolume:    m.TotalVolume,
		TotalYesShares: m.TotalYesShares,
		TotalNoShares:  m.TotalNoShares,
		TotalFees:      m.TotalFees,
		Resolved:       m.Resolved,
		Outcome:        m.Outcome.String(),
	}
	if p, err := e.PriceYes(&m); err == nil {
		v.PriceYes = model.PriceDecimal(p)
	}
	if p, err := e.PriceNo(&m); err == nil {
		v.PriceNo = model.PriceDecimal(p)
	}
	if sv, err := e.ShareValue(&m, model.Yes); err == nil {
		v.ShareValueYes = model.PriceDecimal(sv)
	}
	if sv, err := e.ShareValue(&m, model.No); err == nil {
		v.ShareValueNo = model.PriceDecimal(sv)
	}
	return v
}
