package trade

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/prediction-amm/internal/amm"
	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/tx"
)

// --- Request/Response types ---

// TxRequest is the JSON body for POST /api/v1/tx.
type TxRequest struct {
	PublicKey string   `json:"pkey"`  // 64 hex digits
	Words     []uint64 `json:"words"` // encoded command
}

// TxResponse reports the outcome of a submitted transaction.
type TxResponse struct {
	Code          uint32      `json:"code"`
	Result        string      `json:"result"`
	CorrelationID uint64      `json:"correlation_id"`
	Tick          uint64      `json:"tick"`
	Output        []uint64    `json:"output"`
	Events        []EventView `json:"events"`
}

// EventView is one decoded event of a receipt.
type EventView struct {
	Type    string   `json:"type"`
	Payload []uint64 `json:"payload"`
}

// StateResponse is the JSON body of GET /api/v1/state.
type StateResponse struct {
	Tick               uint64   `json:"tick"`
	TotalPlayers       uint64   `json:"total_players"`
	TxSize             uint64   `json:"tx_size"`
	TxCounter          uint64   `json:"tx_counter"`
	NextMarketID       uint64   `json:"next_market_id"`
	MarketIDs          []uint64 `json:"market_ids"`
	PendingSettlements int      `json:"pending_settlements"`
	FeeRate            uint64   `json:"fee_rate"`
	FeeBasis           uint64   `json:"fee_basis"`
}

// --- HTTP Handlers ---

// SubmitTx handles POST /api/v1/tx
func (s *Service) SubmitTx(w http.ResponseWriter, r *http.Request) {
	var req TxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	pkey, err := model.ParsePublicKey(req.PublicKey)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Words) == 0 {
		writeError(w, "words is required", http.StatusBadRequest)
		return
	}

	rc := s.Submit(r.Context(), pkey, req.Words)

	resp := TxResponse{
		Code:          uint32(rc.Code),
		Result:        rc.Code.Name(),
		CorrelationID: rc.CorrelationID,
		Tick:          rc.Tick,
		Output:        rc.Output(),
		Events:        []EventView{},
	}
	if events, err := tx.Parse(rc.Events); err == nil {
		for _, e := range events {
			resp.Events = append(resp.Events, EventView{Type: e.Type.String(), Payload: e.Payload})
		}
	}

	writeJSON(w, statusFor(rc.Code), resp)
}

// statusFor maps a result code's class to an HTTP status.
func statusFor(c result.Code) int {
	switch result.Classify(c) {
	case result.ClassNone:
		return http.StatusOK
	case result.ClassValidation:
		return http.StatusBadRequest
	case result.ClassAuthorization:
		return http.StatusForbidden
	case result.ClassState:
		if c == result.ErrMarketNotFound {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case result.ClassArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// GetState handles GET /api/v1/state
func (s *Service) GetState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	g := s.proc.State().Global()
	pending := s.proc.State().PendingSettlements()
	rate, basis := s.proc.Engine().FeeRate()
	s.mu.Unlock()

	if g.MarketIDs == nil {
		g.MarketIDs = []uint64{}
	}
	writeJSON(w, http.StatusOK, StateResponse{
		Tick:               g.Tick,
		TotalPlayers:       g.TotalPlayers,
		TxSize:             g.TxSize,
		TxCounter:          g.TxCounter,
		NextMarketID:       g.NextMarketID,
		MarketIDs:          g.MarketIDs,
		PendingSettlements: pending,
		FeeRate:            rate,
		FeeBasis:           basis,
	})
}

// ListMarkets handles GET /api/v1/markets
// Returns all markets, optionally filtered by ?status=<status>.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	status := model.Status(r.URL.Query().Get("status"))

	s.mu.Lock()
	markets := []model.MarketView{}
	reg := s.proc.State().Markets
	for _, id := range reg.IDs() {
		m, err := reg.Get(id)
		if err != nil {
			continue
		}
		v := s.marketView(m)
		if status != "" && v.Status != status {
			continue
		}
		markets = append(markets, v)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, markets)
}

// GetMarket handles GET /api/v1/markets/{marketID}
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	m, err := s.proc.State().Markets.Get(id)
	var v model.MarketView
	if err == nil {
		v = s.marketView(m)
	}
	s.mu.Unlock()

	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetPrice handles GET /api/v1/markets/{marketID}/price
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	m, err := s.proc.State().Markets.Get(id)
	var v model.MarketView
	if err == nil {
		v = s.marketView(m)
	}
	s.mu.Unlock()

	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{
		"yes": v.PriceYes,
		"no":  v.PriceNo,
	})
}

// GetQuote handles GET /api/v1/markets/{marketID}/quote?side=YES&amount=1000
// With action=sell, amount is a share count instead of a stake.
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	side, ok := model.ParseSide(q.Get("side"))
	if !ok {
		writeError(w, "side must be YES or NO", http.StatusBadRequest)
		return
	}
	amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
	if err != nil {
		writeError(w, "amount must be a non-negative integer", http.StatusBadRequest)
		return
	}
	sell := q.Get("action") == "sell"

	s.mu.Lock()
	var quote amm.Quote
	m, err := s.proc.State().Markets.Get(id)
	if err == nil {
		if sell {
			quote, err = s.proc.Engine().QuoteSell(&m, side, amount)
		} else {
			quote, err = s.proc.Engine().QuoteBuy(&m, side, amount)
		}
	}
	s.mu.Unlock()

	if err != nil {
		c := result.CodeOf(err)
		writeError(w, c.Name(), statusFor(c))
		return
	}
	writeJSON(w, http.StatusOK, model.QuoteView{
		MarketID:       id,
		Side:           side.String(),
		Amount:         quote.Amount,
		Fee:            quote.Fee,
		Shares:         quote.Shares,
		EffectivePrice: model.PriceDecimal(quote.EffectivePrice),
		PriceBefore:    model.PriceDecimal(quote.PriceBefore),
		PriceAfter:     model.PriceDecimal(quote.PriceAfter),
		Slippage:       model.PriceDecimal(quote.Slippage),
	})
}

// GetMarketHistory handles GET /api/v1/markets/{marketID}/history
// Returns ledger entries to reconstruct price history.
func (s *Service) GetMarketHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}

	entries, err := s.store.GetLedgerEntriesByMarket(r.Context(), id)
	if err != nil {
		writeError(w, "failed to get market history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetPlayer handles GET /api/v1/players/{pkey}
func (s *Service) GetPlayer(w http.ResponseWriter, r *http.Request) {
	pkey, err := model.ParsePublicKey(chi.URLParam(r, "pkey"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	pid := pkey.PlayerID()

	s.mu.Lock()
	acct, err := s.proc.State().Accounts.Get(pid)
	holdings := s.proc.State().Positions.Holdings(pid)
	s.mu.Unlock()

	if errors.Is(err, result.ErrPlayerNotExist) {
		writeError(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load player", http.StatusInternalServerError)
		return
	}

	view := model.PlayerView{
		PlayerID:  pid.String(),
		Nonce:     acct.Nonce,
		Balance:   acct.Balance,
		Positions: make([]model.HoldingView, 0, len(holdings)),
	}
	for _, h := range holdings {
		view.Positions = append(view.Positions, model.HoldingView{
			MarketID:  h.Market,
			YesShares: h.Position.YesShares,
			NoShares:  h.Position.NoShares,
			Claimed:   h.Position.Claimed,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

// GetPlayerHistory handles GET /api/v1/players/{pkey}/history
func (s *Service) GetPlayerHistory(w http.ResponseWriter, r *http.Request) {
	pkey, err := model.ParsePublicKey(chi.URLParam(r, "pkey"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := s.store.GetLedgerEntriesByPlayer(r.Context(), pkey.PlayerID().String())
	if err != nil {
		writeError(w, "failed to get player history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Routes mounts the service handlers on r. Transaction submission sits
// behind the bearer token when one is set. The WebSocket endpoint is
// mounted separately, outside any request timeout.
func (s *Service) Routes(r chi.Router) {
	r.With(RequireToken(s.txToken)).Post("/tx", s.SubmitTx)
	r.Get("/state", s.GetState)
	r.Get("/markets", s.ListMarkets)
	r.Get("/markets/{marketID}", s.GetMarket)
	r.Get("/markets/{marketID}/price", s.GetPrice)
	r.Get("/markets/{marketID}/quote", s.GetQuote)
	r.Get("/markets/{marketID}/history", s.GetMarketHistory)
	r.Get("/players/{pkey}", s.GetPlayer)
	r.Get("/players/{pkey}/history", s.GetPlayerHistory)
}

func marketIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "marketID"), 10, 64)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
