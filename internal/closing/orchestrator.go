// Package closing coordinates the end of the auction: flipping items
// and settings to closed, resolving winners, and dispatching the
// closing emails as one idempotent workflow.
package closing

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stepweaver/silent-auction/internal/auction"
	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/event"
	"github.com/stepweaver/silent-auction/internal/notify"
	"github.com/stepweaver/silent-auction/internal/store"
)

// States reported in Result. not-due and already-closed are expected
// outcomes, not failures; callers map them to a 400-class response so
// schedulers can tell "nothing to do" from "something broke".
const (
	StateNotDue         = "not-due"
	StateAlreadyClosed  = "already-closed"
	StateClosedNotified = "closed-notified"
	StateReopened       = "reopened"
	StateError          = "error"
)

// Result is the uniform outcome shape for every orchestrator
// operation. Error carries a generic message only; details stay in
// the logs.
type Result struct {
	OK              bool             `json:"ok"`
	State           string           `json:"state"`
	ClosedCount     int64            `json:"closed_count"`
	ReopenedCount   int64            `json:"reopened_count,omitempty"`
	EmailsSent      int              `json:"emails_sent"`
	AdminEmailsSent int              `json:"admin_emails_sent"`
	Failed          []notify.Failure `json:"failed,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// Notifier dispatches the closing emails. Satisfied by
// *notify.Dispatcher.
type Notifier interface {
	DispatchClosing(ctx context.Context, winners []auction.Winner, settings *store.Settings, adminRecipients []string) notify.Outcome
}

// Orchestrator runs the close-and-notify workflow.
type Orchestrator struct {
	items       store.ItemRepository
	bids        store.BidRepository
	settings    store.SettingsRepository
	events      event.Store
	notifier    Notifier
	adminEmails []string
	logger      *slog.Logger
	tracer      trace.Tracer
	clock       clock.Clock
}

// NewOrchestrator returns an Orchestrator.
func NewOrchestrator(items store.ItemRepository, bids store.BidRepository, settings store.SettingsRepository, events event.Store, notifier Notifier, adminEmails []string, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Orchestrator {
	return &Orchestrator{
		items:       items,
		bids:        bids,
		settings:    settings,
		events:      events,
		notifier:    notifier,
		adminEmails: adminEmails,
		logger:      logger,
		tracer:      tp.Tracer("github.com/stepweaver/silent-auction/internal/closing"),
		clock:       clk,
	}
}

// CloseCheck is the scheduler-triggered entry point. Before the
// deadline it reports not-due and mutates nothing; once the deadline
// passes it closes and notifies exactly once, with the settings flag
// as the latch against re-notification on subsequent ticks.
func (o *Orchestrator) CloseCheck(ctx context.Context, triggeredBy string) Result {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.CloseCheck",
		trace.WithAttributes(attribute.String("triggered_by", triggeredBy)),
	)
	defer span.End()

	settings, err := o.settings.Get(ctx)
	if err != nil {
		return o.fail(ctx, "loading settings", err)
	}
	if settings.Closed {
		return Result{OK: false, State: StateAlreadyClosed}
	}
	if !auction.DeadlinePassed(settings, o.clock.Now()) {
		return Result{OK: false, State: StateNotDue}
	}

	return o.closeAndNotify(ctx, settings, triggeredBy)
}

// ToggleAuction is the admin-triggered entry point. With force the
// deadline check is bypassed; reopening flips the settings flag and
// every item back to open.
func (o *Orchestrator) ToggleAuction(ctx context.Context, force, desiredClosed bool) Result {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.ToggleAuction",
		trace.WithAttributes(
			attribute.Bool("force", force),
			attribute.Bool("desired_closed", desiredClosed),
		),
	)
	defer span.End()

	settings, err := o.settings.Get(ctx)
	if err != nil {
		return o.fail(ctx, "loading settings", err)
	}

	if !desiredClosed {
		if err := o.settings.SetClosed(ctx, false); err != nil {
			return o.fail(ctx, "reopening auction", err)
		}
		n, err := o.items.ReopenAll(ctx)
		if err != nil {
			return o.fail(ctx, "reopening items", err)
		}
		o.appendEvent(ctx, event.AuctionAggregate, event.AuctionReopened, json.RawMessage(`{}`))
		o.logger.InfoContext(ctx, "auction reopened", slog.Int64("items", n))
		return Result{OK: true, State: StateReopened, ReopenedCount: n}
	}

	if settings.Closed {
		return Result{OK: false, State: StateAlreadyClosed}
	}
	if !force && !auction.DeadlinePassed(settings, o.clock.Now()) {
		return Result{OK: false, State: StateNotDue}
	}

	return o.closeAndNotify(ctx, settings, "admin")
}

// SendClosingEmailsOnly re-runs winner resolution and dispatch over
// the already-closed items without touching close state. This is the
// recovery path for a close that succeeded but whose emails did not.
func (o *Orchestrator) SendClosingEmailsOnly(ctx context.Context, triggeredBy string) Result {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.SendClosingEmailsOnly",
		trace.WithAttributes(attribute.String("triggered_by", triggeredBy)),
	)
	defer span.End()

	settings, err := o.settings.Get(ctx)
	if err != nil {
		return o.fail(ctx, "loading settings", err)
	}

	result := o.notifyWinners(ctx, settings)
	result.ClosedCount = 0
	return result
}

// closeAndNotify flips every open item and the settings flag, then
// resolves winners and dispatches the closing emails.
func (o *Orchestrator) closeAndNotify(ctx context.Context, settings *store.Settings, triggeredBy string) Result {
	closedCount, err := o.items.CloseAll(ctx)
	if err != nil {
		return o.fail(ctx, "closing items", err)
	}
	if err := o.settings.SetClosed(ctx, true); err != nil {
		return o.fail(ctx, "marking auction closed", err)
	}

	data, _ := json.Marshal(event.ItemsClosedData{ClosedCount: closedCount, TriggeredBy: triggeredBy})
	o.appendEvent(ctx, event.AuctionAggregate, event.ItemsClosed, data)

	o.logger.InfoContext(ctx, "auction closed",
		slog.Int64("closed_count", closedCount),
		slog.String("triggered_by", triggeredBy),
	)

	result := o.notifyWinners(ctx, settings)
	result.ClosedCount = closedCount
	return result
}

// notifyWinners resolves winners over the closed items and dispatches
// the emails. Winner resolution is repeatable over the frozen bid
// set, so running this twice sends identical content.
func (o *Orchestrator) notifyWinners(ctx context.Context, settings *store.Settings) Result {
	closed, err := o.items.ListClosed(ctx)
	if err != nil {
		return o.fail(ctx, "listing closed items", err)
	}

	ids := make([]string, len(closed))
	for i, it := range closed {
		ids[i] = it.ID
	}
	bids, err := o.bids.ListForItems(ctx, ids)
	if err != nil {
		return o.fail(ctx, "listing bids", err)
	}

	winners := auction.ResolveWinners(closed, bids)
	out := o.notifier.DispatchClosing(ctx, winners, settings, o.adminEmails)

	for _, sent := range out.Sent {
		data, _ := json.Marshal(event.NotifyData{Recipient: sent, Kind: "closing"})
		o.appendEvent(ctx, event.AuctionAggregate, event.NotifySent, data)
	}
	for _, f := range out.Failed {
		data, _ := json.Marshal(event.NotifyData{Recipient: f.Name, Kind: "closing", Error: f.Error})
		o.appendEvent(ctx, event.AuctionAggregate, event.NotifyFailed, data)
	}

	// Partial send failure still reports OK: closing succeeded and the
	// resend path recovers the missing emails.
	return Result{
		OK:              true,
		State:           StateClosedNotified,
		EmailsSent:      out.EmailsSent,
		AdminEmailsSent: out.AdminEmailsSent,
		Failed:          out.Failed,
	}
}

func (o *Orchestrator) appendEvent(ctx context.Context, aggregate string, t event.Type, data json.RawMessage) {
	evt := event.Event{ID: uuid.NewString(), AggregateID: aggregate, Type: t, Data: data}
	if err := o.events.Append(ctx, evt); err != nil {
		o.logger.ErrorContext(ctx, "failed to append audit event",
			slog.String("type", string(t)),
			slog.Any("error", err),
		)
	}
}

// fail logs the underlying error and returns a generic failure result;
// collaborator error detail never reaches the caller.
func (o *Orchestrator) fail(ctx context.Context, op string, err error) Result {
	o.logger.ErrorContext(ctx, "closing operation failed",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return Result{OK: false, State: StateError, Error: "internal error"}
}
