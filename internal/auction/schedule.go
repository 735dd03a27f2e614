package auction

import (
	"time"

	"github.com/stepweaver/silent-auction/internal/store"
)

// Closing is a two-layer condition: the explicit flags on settings and
// item, plus the deadline. The deadline side is always derived at read
// time and never persisted back, so the two layers cannot drift.

// IsOpen reports whether an item currently accepts bids. It is false
// when the auction is globally closed, the deadline has passed, or the
// item itself is closed.
func IsOpen(s *store.Settings, item *store.Item, now time.Time) bool {
	if s.Closed || item.Closed {
		return false
	}
	if DeadlinePassed(s, now) {
		return false
	}
	return true
}

// HasStarted reports whether the auction's start time has been reached.
// A nil start time means the auction is considered started.
func HasStarted(s *store.Settings, now time.Time) bool {
	return s.StartsAt == nil || !now.Before(*s.StartsAt)
}

// DeadlinePassed reports whether the auction deadline exists and has
// been reached.
func DeadlinePassed(s *store.Settings, now time.Time) bool {
	return s.Deadline != nil && !now.Before(*s.Deadline)
}

// EffectiveClosed reports whether an item is closed for any reason,
// explicit flag or elapsed deadline.
func EffectiveClosed(s *store.Settings, item *store.Item, now time.Time) bool {
	return !IsOpen(s, item, now)
}
