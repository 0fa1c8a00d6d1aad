// Package metrics provides Prometheus instrumentation for the market engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransactionsTotal counts processed transactions by opcode and result code.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pamm_transactions_total",
		Help: "Total number of transactions processed",
	}, []string{"op", "result"})

	// TransactionLatency tracks processing time per opcode.
	TransactionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pamm_transaction_latency_seconds",
		Help:    "Transaction processing latency in seconds",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
	}, []string{"op"})

	// Tick is the engine's logical clock.
	Tick = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pamm_tick",
		Help: "Current logical clock",
	})

	// Markets tracks the number of markets ever created.
	Markets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pamm_markets",
		Help: "Number of markets in the registry",
	})

	// ActiveMarkets tracks markets currently accepting trades.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pamm_active_markets",
		Help: "Number of markets currently accepting bets",
	})

	// Players tracks installed player accounts.
	Players = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pamm_players",
		Help: "Number of installed players",
	})

	// MarketVolume tracks cumulative traded value per market.
	MarketVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pamm_market_volume_total",
		Help: "Cumulative traded value in balance units",
	}, []string{"market_id", "action"})

	// Checkpoints counts checkpoint attempts by outcome.
	Checkpoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pamm_checkpoints_total",
		Help: "World-state checkpoints written",
	}, []string{"outcome"})

	// SettlementsFlushed counts withdrawals handed to the host.
	SettlementsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pamm_settlements_flushed_total",
		Help: "Queued withdrawals flushed at checkpoints",
	})

	// PublishedEvents counts events sent to the message bus by outcome.
	PublishedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pamm_published_events_total",
		Help: "Events published to JetStream",
	}, []string{"outcome"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pamm_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pamm_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pamm_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
