package store

import (
	"context"
	"errors"
	"time"
)

// Errors returned by repositories.
var (
	ErrNotFound  = errors.New("not found")
	ErrSlugTaken = errors.New("slug already in use")
)

// Item represents one donated auction lot. Amounts are integer cents.
type Item struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Slug         string    `db:"slug"`
	StartPrice   int64     `db:"start_price"`
	MinIncrement int64     `db:"min_increment"`
	Closed       bool      `db:"is_closed"`
	// CreatedBy is nil for superadmin-created items, otherwise the
	// vendor reference that donated the item.
	CreatedBy *string   `db:"created_by"`
	Category  *string   `db:"category"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Bid represents a single bid on an item. Bids are append-only; there
// is no update or delete path.
type Bid struct {
	ID          string    `db:"id"`
	ItemID      string    `db:"item_id"`
	BidderEmail string    `db:"bidder_email"`
	// BidderAlias is the anonymous display identity shown publicly;
	// the email stays private to admins.
	BidderAlias string    `db:"bidder_alias"`
	Amount      int64     `db:"amount"`
	CreatedAt   time.Time `db:"created_at"`
}

// Settings is the singleton configuration row (id = 1) governing
// auction timing and global close state.
type Settings struct {
	ID                  int        `db:"id"`
	Closed              bool       `db:"auction_closed"`
	Deadline            *time.Time `db:"auction_deadline"`
	StartsAt            *time.Time `db:"auction_start"`
	PaymentInstructions string     `db:"payment_instructions"`
	PickupInstructions  string     `db:"pickup_instructions"`
	ContactEmail        string     `db:"contact_email"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// ItemPatch is an explicit optional-field update: only non-nil fields
// are applied.
type ItemPatch struct {
	Title        *string
	StartPrice   *int64
	MinIncrement *int64
	Closed       *bool
	Category     *string
}

// ItemRepository defines item persistence operations.
type ItemRepository interface {
	Create(ctx context.Context, it *Item) error
	GetBySlug(ctx context.Context, slug string) (*Item, error)
	List(ctx context.Context) ([]Item, error)
	ListClosed(ctx context.Context) ([]Item, error)
	Update(ctx context.Context, slug string, patch ItemPatch) (*Item, error)
	// CloseAll marks every open item closed in a single statement and
	// returns the number of items affected. Idempotent.
	CloseAll(ctx context.Context) (int64, error)
	// ReopenAll is the inverse, used only when an admin explicitly
	// reopens the whole auction.
	ReopenAll(ctx context.Context) (int64, error)
}

// BidRepository defines bid persistence operations.
type BidRepository interface {
	// InsertIfHighest inserts the bid only if no existing bid for the
	// item reaches the given minimum. Returns false when an existing
	// bid won the race.
	InsertIfHighest(ctx context.Context, b *Bid, minimum int64) (bool, error)
	// CurrentHigh returns the highest bid for an item, or nil when the
	// item has no bids.
	CurrentHigh(ctx context.Context, itemID string) (*Bid, error)
	// ListForItems returns every bid for the given items ordered by
	// amount descending, then created_at ascending.
	ListForItems(ctx context.Context, itemIDs []string) ([]Bid, error)
}

// SettingsRepository defines settings persistence operations. The row
// may not pre-exist; reads fall back to defaults and writes upsert.
type SettingsRepository interface {
	Get(ctx context.Context) (*Settings, error)
	Upsert(ctx context.Context, s *Settings) error
	SetClosed(ctx context.Context, closed bool) error
}
