package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/store"
)

// BidRepo implements store.BidRepository with sqlx. Bids are
// append-only; the repo exposes no update or delete.
type BidRepo struct {
	db  *sqlx.DB
	clk clock.Clock
}

// NewBidRepo returns a new BidRepo.
func NewBidRepo(db *sqlx.DB, clk clock.Clock) *BidRepo {
	return &BidRepo{db: db, clk: clk}
}

// InsertIfHighest inserts the bid in a single conditional statement:
// the row only lands if no existing bid for the item has already
// reached the caller's computed minimum. This closes the
// check-then-write race without a serializable transaction; a
// concurrent bid that reached the minimum first makes this insert
// affect zero rows.
func (r *BidRepo) InsertIfHighest(ctx context.Context, b *store.Bid, minimum int64) (bool, error) {
	b.CreatedAt = r.clk.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO bids (id, item_id, bidder_email, bidder_alias, amount, created_at)
		 SELECT $1, $2, $3, $4, $5, $6
		 WHERE NOT EXISTS (
		     SELECT 1 FROM bids WHERE item_id = $2 AND amount >= $7
		 )`,
		b.ID, b.ItemID, b.BidderEmail, b.BidderAlias, b.Amount, b.CreatedAt, minimum,
	)
	if err != nil {
		return false, fmt.Errorf("inserting bid: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("counting inserted bids: %w", err)
	}
	return n == 1, nil
}

// CurrentHigh returns the highest bid for an item, nil when the item
// has no bids. For equal amounts the earlier bid is authoritative.
func (r *BidRepo) CurrentHigh(ctx context.Context, itemID string) (*store.Bid, error) {
	var b store.Bid
	err := r.db.GetContext(ctx, &b,
		`SELECT * FROM bids WHERE item_id = $1 ORDER BY amount DESC, created_at ASC LIMIT 1`,
		itemID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting current high bid: %w", err)
	}
	return &b, nil
}

func (r *BidRepo) ListForItems(ctx context.Context, itemIDs []string) ([]store.Bid, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT * FROM bids WHERE item_id IN (?) ORDER BY amount DESC, created_at ASC`, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("building bid query: %w", err)
	}
	var bids []store.Bid
	if err := r.db.SelectContext(ctx, &bids, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	return bids, nil
}
