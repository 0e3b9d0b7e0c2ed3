package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// DefaultChannel is the channel patient changes are announced on.
const DefaultChannel = "patients_changed"

// Notifier announces committed snapshots over Postgres NOTIFY so other
// processes sharing the database can pick up the change.
type Notifier struct {
	DB      *sql.DB
	Channel string
}

// NewNotifier returns a Notifier for channel, or DefaultChannel when it
// is empty.
func NewNotifier(db *sql.DB, channel string) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Notifier{DB: db, Channel: channel}
}

// Notify sends payload on the channel.
func (n *Notifier) Notify(ctx context.Context, payload string) error {
	_, err := n.DB.ExecContext(ctx, fmt.Sprintf("NOTIFY %s, %s", pq.QuoteIdentifier(n.Channel), pq.QuoteLiteral(payload)))
	return err
}
