package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	BidPlaced       Type = "bid.placed"
	ItemsClosed     Type = "items.closed"
	AuctionReopened Type = "auction.reopened"
	NotifySent      Type = "notify.sent"
	NotifyFailed    Type = "notify.failed"
)

// Event is one append-only audit record. AggregateID refers to the
// item for bid events and is a fixed marker ("auction") for
// auction-wide events.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AuctionAggregate is the AggregateID used for auction-wide events.
const AuctionAggregate = "auction"

// BidPlacedData is the payload for BidPlaced events.
type BidPlacedData struct {
	BidID       string `json:"bid_id"`
	BidderAlias string `json:"bidder_alias"`
	Amount      int64  `json:"amount"`
}

// ItemsClosedData is the payload for ItemsClosed events.
type ItemsClosedData struct {
	ClosedCount int64  `json:"closed_count"`
	TriggeredBy string `json:"triggered_by"`
}

// NotifyData is the payload for NotifySent and NotifyFailed events.
type NotifyData struct {
	Recipient string `json:"recipient"`
	Kind      string `json:"kind"` // "winner_digest" or "admin_winners_list"
	Error     string `json:"error,omitempty"`
}
