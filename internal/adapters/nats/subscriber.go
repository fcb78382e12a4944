package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber opens its own connection and ensures the stream exists.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStream(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeListingsFetched delivers each report to handler. Handler errors
// nak the message so JetStream redelivers it, up to three times.
func (s *Subscriber) SubscribeListingsFetched(ctx context.Context, handler func(ctx context.Context, report *domain.ListingsReport) error) error {
	sub, err := s.js.Subscribe(SubjectListingsFetched, func(msg *nats.Msg) {
		var report domain.ListingsReport
		if err := json.Unmarshal(msg.Data, &report); err != nil {
			slog.Warn("dropping malformed listings event", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &report); err != nil {
			slog.Error("listings event handler failed", "address", report.Address, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("listings-recorder"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
