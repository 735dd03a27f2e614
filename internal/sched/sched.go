// Package sched runs the in-process close-check loop for deployments
// without an external cron. When replicated, callers guard Run with
// leader election so only one replica ticks.
package sched

import (
	"context"
	"log/slog"
	"time"

	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/closing"
)

// CloseChecker is the orchestrator operation the loop invokes.
// Satisfied by *closing.Orchestrator.
type CloseChecker interface {
	CloseCheck(ctx context.Context, triggeredBy string) closing.Result
}

// Scheduler periodically invokes the deadline check.
type Scheduler struct {
	checker  CloseChecker
	interval time.Duration
	sleeper  clock.Sleeper
	logger   *slog.Logger
}

// New returns a Scheduler ticking at the given interval.
func New(checker CloseChecker, interval time.Duration, sleeper clock.Sleeper, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		checker:  checker,
		interval: interval,
		sleeper:  sleeper,
		logger:   logger,
	}
}

// Run blocks, invoking CloseCheck once per interval until the auction
// closes or ctx is cancelled. Once the check reports the auction
// closed there is nothing left to schedule and the loop exits.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.InfoContext(ctx, "close-check scheduler started",
		slog.Duration("interval", s.interval),
	)

	for {
		s.sleeper.Sleep(ctx, s.interval)
		if ctx.Err() != nil {
			s.logger.InfoContext(ctx, "close-check scheduler stopped")
			return
		}

		res := s.checker.CloseCheck(ctx, "scheduler")
		switch res.State {
		case closing.StateNotDue:
			// Nothing to do this tick.
		case closing.StateClosedNotified, closing.StateAlreadyClosed:
			s.logger.InfoContext(ctx, "auction closed, scheduler exiting",
				slog.String("state", res.State),
				slog.Int64("closed_count", res.ClosedCount),
			)
			return
		default:
			s.logger.ErrorContext(ctx, "scheduled close-check failed",
				slog.String("state", res.State),
				slog.String("error", res.Error),
			)
		}
	}
}
