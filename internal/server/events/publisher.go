// Package events publishes listing lifecycle notifications to NATS.
// Publishing is best-effort: downstream consumers (search indexers,
// notification fan-out) tolerate gaps, so a broker outage must never fail
// the originating request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/swapwithus/listing-service/internal/logging"
)

const (
	SubjectListingCreated = "listings.created"
	SubjectListingUpdated = "listings.updated"
	SubjectListingDeleted = "listings.deleted"
	SubjectUserDeleted    = "users.deleted"
)

var timeNow = time.Now

// ListingEvent is the payload published on listing lifecycle subjects.
type ListingEvent struct {
	ListingID string    `json:"listing_id,omitempty"`
	Category  string    `json:"category,omitempty"`
	OwnerID   string    `json:"owner_id"`
	At        time.Time `json:"at"`
}

// natsConn is the slice of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Publisher emits lifecycle events over a NATS connection.
type Publisher struct {
	conn   natsConn
	logger logging.Logger
}

// natsConnect is a seam for tests.
var natsConnect = func(url string, opts ...nats.Option) (*nats.Conn, error) {
	return nats.Connect(url, opts...)
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url string, logger logging.Logger) (*Publisher, error) {
	conn, err := natsConnect(url,
		nats.Name("listing-service"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, logger: logger}, nil
}

// Publish emits one event on subj. Failures are logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, subj string, ev ListingEvent) {
	if ev.At.IsZero() {
		ev.At = timeNow()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error(ctx, "event marshal failed", "subject", subj, "error", err)
		return
	}
	if err := p.conn.Publish(subj, data); err != nil {
		p.logger.Warn(ctx, "event publish failed", "subject", subj, "error", err)
	}
}

// Close drains the connection, flushing buffered messages.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn(context.Background(), "nats drain failed", "error", err)
	}
}
