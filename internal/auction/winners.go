package auction

import "github.com/stepweaver/silent-auction/internal/store"

// Winner pairs an item with its winning bid. Bid is nil when the item
// received no bids (unsold).
type Winner struct {
	Item store.Item
	Bid  *store.Bid
}

// ResolveWinners determines the winning bid per item: the maximum
// amount, ties broken by earliest created_at (first to reach that
// amount). The computation is read-only and repeatable; for a frozen
// bid set it always yields the same result, which is what makes the
// resend path safe.
func ResolveWinners(items []store.Item, bids []store.Bid) []Winner {
	byItem := make(map[string][]store.Bid, len(items))
	for _, b := range bids {
		byItem[b.ItemID] = append(byItem[b.ItemID], b)
	}

	winners := make([]Winner, 0, len(items))
	for _, it := range items {
		w := Winner{Item: it}
		for i, b := range byItem[it.ID] {
			if w.Bid == nil ||
				b.Amount > w.Bid.Amount ||
				(b.Amount == w.Bid.Amount && b.CreatedAt.Before(w.Bid.CreatedAt)) {
				w.Bid = &byItem[it.ID][i]
			}
		}
		winners = append(winners, w)
	}
	return winners
}
