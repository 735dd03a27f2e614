package sched_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/closing"
	"github.com/stepweaver/silent-auction/internal/sched"
)

type scriptedChecker struct {
	results []closing.Result
	calls   int
}

func (s *scriptedChecker) CloseCheck(context.Context, string) closing.Result {
	res := s.results[s.calls]
	s.calls++
	return res
}

func TestRun_TicksUntilClosed(t *testing.T) {
	checker := &scriptedChecker{results: []closing.Result{
		{OK: false, State: closing.StateNotDue},
		{OK: false, State: closing.StateNotDue},
		{OK: true, State: closing.StateClosedNotified, ClosedCount: 3},
	}}
	clk := &clock.Mock{T: time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC)}
	s := sched.New(checker, time.Minute, clk, slog.New(slog.DiscardHandler))

	s.Run(context.Background())

	if checker.calls != 3 {
		t.Errorf("CloseCheck called %d times, want 3", checker.calls)
	}
	if len(clk.Slept) != 3 {
		t.Errorf("slept %d times, want 3", len(clk.Slept))
	}
	for i, d := range clk.Slept {
		if d != time.Minute {
			t.Errorf("sleep %d = %v, want 1m", i, d)
		}
	}
}

func TestRun_StopsWhenAlreadyClosed(t *testing.T) {
	checker := &scriptedChecker{results: []closing.Result{
		{OK: false, State: closing.StateAlreadyClosed},
	}}
	clk := &clock.Mock{T: time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC)}
	s := sched.New(checker, time.Minute, clk, slog.New(slog.DiscardHandler))

	s.Run(context.Background())

	if checker.calls != 1 {
		t.Errorf("CloseCheck called %d times, want 1", checker.calls)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	checker := &scriptedChecker{}
	clk := &clock.Mock{T: time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC)}
	s := sched.New(checker, time.Minute, clk, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	if checker.calls != 0 {
		t.Errorf("CloseCheck called %d times after cancel, want 0", checker.calls)
	}
}
