package clock

import (
	"context"
	"time"
)

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
}

// Sleeper abstracts blocking delays, used by the notification
// dispatcher's send throttle so tests don't have to wait.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// Real is a Clock and Sleeper backed by the system clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// Sleep blocks for d or until ctx is cancelled.
func (Real) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Mock is a Clock that returns a controllable fixed time and records
// requested sleeps instead of performing them.
type Mock struct {
	T     time.Time
	Slept []time.Duration
}

// Now returns the fixed time.
func (m *Mock) Now() time.Time { return m.T }

// Sleep records the requested duration and advances the mock time.
func (m *Mock) Sleep(_ context.Context, d time.Duration) {
	m.Slept = append(m.Slept, d)
	m.T = m.T.Add(d)
}

// Advance moves the mock time forward.
func (m *Mock) Advance(d time.Duration) { m.T = m.T.Add(d) }
