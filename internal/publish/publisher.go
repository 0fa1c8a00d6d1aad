// Package publish streams accepted transaction events to NATS JetStream for
// downstream indexers. Subjects follow {prefix}.events.{event_type}, with
// the market id appended for market-scoped events.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/atmx/prediction-amm/internal/metrics"
	"github.com/atmx/prediction-amm/internal/processor"
	"github.com/atmx/prediction-amm/internal/tx"
)

// Event is one engine event ready for publishing.
type Event struct {
	CorrelationID uint64    `json:"correlation_id"`
	Type          string    `json:"event_type"`
	MarketID      *uint64   `json:"market_id,omitempty"`
	Payload       []uint64  `json:"payload"`
	Tick          uint64    `json:"tick"`
	Timestamp     time.Time `json:"timestamp"`
}

// FromReceipt splits a successful receipt's event log into Events.
func FromReceipt(r processor.Receipt, now time.Time) ([]Event, error) {
	parsed, err := tx.Parse(r.Events)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(parsed))
	for _, e := range parsed {
		evt := Event{
			CorrelationID: r.CorrelationID,
			Type:          e.Type.String(),
			Payload:       append([]uint64(nil), e.Payload...),
			Tick:          r.Tick,
			Timestamp:     now,
		}
		if id, ok := marketOf(e); ok {
			evt.MarketID = &id
		}
		out = append(out, evt)
	}
	return out, nil
}

func marketOf(e tx.Event) (uint64, bool) {
	switch e.Type {
	case tx.EventMarketUpdate, tx.EventLiquidityHistory:
		if len(e.Payload) > 0 {
			return e.Payload[0], true
		}
	case tx.EventBetUpdate:
		if rec, err := tx.DecodeBet(e.Payload); err == nil {
			return rec.Market, true
		}
	}
	return 0, false
}

// streamPublisher is the part of jetstream.JetStream the publisher uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamPublisher buffers events and publishes them from Run.
type JetStreamPublisher struct {
	js     streamPublisher
	prefix string
	queue  chan Event
}

// NewJetStreamPublisher creates a publisher with a queue of buffer events.
func NewJetStreamPublisher(js jetstream.JetStream, prefix string, buffer int) *JetStreamPublisher {
	return newPublisher(js, prefix, buffer)
}

func newPublisher(js streamPublisher, prefix string, buffer int) *JetStreamPublisher {
	return &JetStreamPublisher{js: js, prefix: prefix, queue: make(chan Event, buffer)}
}

// Enqueue hands evt to the publish loop without blocking. It reports
// false when the queue is full and the event was dropped.
func (p *JetStreamPublisher) Enqueue(evt Event) bool {
	select {
	case p.queue <- evt:
		return true
	default:
		metrics.PublishedEvents.WithLabelValues("dropped").Inc()
		return false
	}
}

// Run publishes queued events until ctx is cancelled.
func (p *JetStreamPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt := <-p.queue:
			if err := p.publish(ctx, evt); err != nil {
				metrics.PublishedEvents.WithLabelValues("error").Inc()
				// Non-fatal: the history ledger and checkpoints remain authoritative.
				slog.Warn("event publish failed", "correlation", evt.CorrelationID, "type", evt.Type, "err", err)
				continue
			}
			metrics.PublishedEvents.WithLabelValues("ok").Inc()
		}
	}
}

func (p *JetStreamPublisher) publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.js.Publish(ctx, p.Subject(evt), data)
	return err
}

// Subject returns the subject evt is published on.
func (p *JetStreamPublisher) Subject(evt Event) string {
	subject := fmt.Sprintf("%s.events.%s", p.prefix, evt.Type)
	if evt.MarketID != nil {
		subject = fmt.Sprintf("%s.%d", subject, *evt.MarketID)
	}
	return subject
}

// EnsureStream creates or updates the stream capturing {prefix}.events.>.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name, prefix string, maxAge time.Duration) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{prefix + ".events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    maxAge,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	slog.Info("ensured event stream", "stream", name)
	return nil
}

// Connect establishes a NATS connection and returns a JetStream context.
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("prediction-amm"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
