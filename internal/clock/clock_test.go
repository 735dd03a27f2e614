package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stepweaver/silent-auction/internal/clock"
)

func TestReal_Now(t *testing.T) {
	clk := clock.Real{}
	before := time.Now()
	got := clk.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Real.Now() = %v, expected between %v and %v", got, before, after)
	}
}

func TestReal_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	clock.Real{}.Sleep(ctx, time.Minute)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sleep with cancelled context took %v, expected immediate return", elapsed)
	}
}

func TestMock_Now(t *testing.T) {
	fixed := time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC)
	clk := &clock.Mock{T: fixed}

	if got := clk.Now(); !got.Equal(fixed) {
		t.Errorf("Mock.Now() = %v, want %v", got, fixed)
	}

	clk.Advance(time.Hour)
	if got := clk.Now(); !got.Equal(fixed.Add(time.Hour)) {
		t.Errorf("Mock.Now() after Advance = %v, want %v", got, fixed.Add(time.Hour))
	}
}

func TestMock_SleepRecordsAndAdvances(t *testing.T) {
	fixed := time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC)
	clk := &clock.Mock{T: fixed}

	clk.Sleep(context.Background(), 800*time.Millisecond)
	clk.Sleep(context.Background(), 800*time.Millisecond)

	if len(clk.Slept) != 2 {
		t.Fatalf("recorded %d sleeps, want 2", len(clk.Slept))
	}
	if clk.Slept[0] != 800*time.Millisecond {
		t.Errorf("Slept[0] = %v, want 800ms", clk.Slept[0])
	}
	if got := clk.Now(); !got.Equal(fixed.Add(1600 * time.Millisecond)) {
		t.Errorf("Mock.Now() after sleeps = %v, want %v", got, fixed.Add(1600*time.Millisecond))
	}
}
