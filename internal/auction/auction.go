// Package auction holds the pure bidding rules: the minimum-increment
// policy, the open/closed schedule predicates, and winner resolution.
// Nothing in this package touches the datastore or performs I/O.
package auction

import "errors"

// Errors returned by bid validation.
var (
	ErrAuctionClosed = errors.New("auction is closed")
	ErrNotStarted    = errors.New("auction has not started")
	ErrBidTooLow     = errors.New("bid is below the minimum next bid")
	ErrOutbid        = errors.New("another bid reached the minimum first")
)
