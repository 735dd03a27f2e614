package auction

import "github.com/stepweaver/silent-auction/internal/store"

// MinimumNextBid returns the lowest acceptable next bid for an item.
// With no prior bid it is the start price; otherwise the current high
// plus the item's fixed increment.
func MinimumNextBid(item *store.Item, currentHigh *store.Bid) int64 {
	if currentHigh == nil {
		return item.StartPrice
	}
	return currentHigh.Amount + item.MinIncrement
}

// Acceptable reports whether a bid of the given amount meets the
// minimum next bid.
func Acceptable(amount, minimum int64) bool {
	return amount >= minimum
}
