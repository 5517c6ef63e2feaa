package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
)

const subjectPrefix = "ridepass.changes."

// Subject returns the subject carrying changes to table.
func Subject(table string) string {
	return subjectPrefix + table
}

// ChangeFeed implements ports.ChangeFeed on core NATS. Notifications are
// fire-and-forget: a subscriber that misses one catches up on the next.
type ChangeFeed struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewChangeFeed creates a change feed over an open connection.
func NewChangeFeed(conn *nats.Conn, logger *slog.Logger) *ChangeFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeFeed{conn: conn, logger: logger}
}

// Publish announces a row change.
func (f *ChangeFeed) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	data, err := EncodeChange(ev)
	if err != nil {
		return err
	}
	if err := f.conn.Publish(Subject(ev.Table), data); err != nil {
		return fmt.Errorf("publish %s change: %w", ev.Table, err)
	}
	return nil
}

// Subscribe calls onChange for every change to table. Malformed messages
// are logged and dropped.
func (f *ChangeFeed) Subscribe(ctx context.Context, table string, onChange func()) (ports.Subscription, error) {
	sub, err := f.conn.Subscribe(Subject(table), func(msg *nats.Msg) {
		if _, err := DecodeChange(msg.Data); err != nil {
			f.logger.Warn("dropping malformed change", "subject", msg.Subject, "error", err)
			return
		}
		onChange()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSubscriptionFailed, table, err)
	}
	return sub, nil
}

// Healthy reports whether the connection is up.
func (f *ChangeFeed) Healthy() bool {
	return f.conn.IsConnected()
}

// Close drains the connection.
func (f *ChangeFeed) Close() {
	_ = f.conn.Drain()
}
