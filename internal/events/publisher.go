// Package events publishes cycle outcomes to NATS JetStream for downstream
// tooling (inventory, alerting). Publishing is best effort: a lost event
// never influences dispatch decisions.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// CycleEvent is the wire form of one finished cycle.
type CycleEvent struct {
	CycleID    string    `json:"cycle_id"`
	Node       string    `json:"node,omitempty"`
	ProfileID  uint64    `json:"profile_id"`
	PivotID    uint64    `json:"pivot_id"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
	ForcedAll  bool      `json:"forced_all"`
	Dispatched []string  `json:"dispatched"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS float64   `json:"duration_ms"`
}

// Publisher wraps a NATS JetStream connection for cycle events.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewPublisher connects to NATS and prepares a JetStream context.
func NewPublisher(url, subject string) (*Publisher, error) {
	if subject == "" {
		return nil, fmt.Errorf("event subject is required")
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("event publisher initialized", "url", url, "subject", subject)
	return &Publisher{conn: conn, js: js, subject: subject}, nil
}

// Publish sends a cycle event. A nil receiver is a no-op, which lets callers
// keep the publisher optional without nil checks at every call site.
func (p *Publisher) Publish(ctx context.Context, ev CycleEvent) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal cycle event: %w", err)
	}
	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("publish cycle event: %w", err)
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		slog.Warn("error draining NATS connection", "error", err)
	}
}
