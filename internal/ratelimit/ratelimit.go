// Package ratelimit provides a per-identifier request limiter for the
// bid placement endpoint.
package ratelimit

import (
	"sync"
	"time"

	"github.com/stepweaver/silent-auction/internal/clock"
)

// Limiter reports whether a request from the given identifier may
// proceed. Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(identifier string) bool
}

// FixedWindow counts requests per identifier inside a fixed window.
// Counters reset when the window rolls over. State is in-process; in a
// replicated deployment each replica enforces its own budget.
type FixedWindow struct {
	max    int
	window time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	windowStart time.Time
	count       int
}

// NewFixedWindow returns a FixedWindow allowing max requests per
// identifier per window.
func NewFixedWindow(max int, window time.Duration, clk clock.Clock) *FixedWindow {
	return &FixedWindow{
		max:     max,
		window:  window,
		clock:   clk,
		entries: make(map[string]*windowEntry),
	}
}

// Allow records a request for identifier and reports whether it is
// within the window budget.
func (f *FixedWindow) Allow(identifier string) bool {
	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[identifier]
	if !ok || now.Sub(e.windowStart) >= f.window {
		f.entries[identifier] = &windowEntry{windowStart: now, count: 1}
		return true
	}
	if e.count >= f.max {
		return false
	}
	e.count++
	return true
}

// Prune drops entries whose window has expired. Callers run this
// periodically to keep the map from growing with one-off identifiers.
func (f *FixedWindow) Prune() {
	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	for id, e := range f.entries {
		if now.Sub(e.windowStart) >= f.window {
			delete(f.entries, id)
		}
	}
}
