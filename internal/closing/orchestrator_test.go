package closing_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/stepweaver/silent-auction/internal/auction"
	"github.com/stepweaver/silent-auction/internal/bidding"
	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/closing"
	"github.com/stepweaver/silent-auction/internal/event"
	"github.com/stepweaver/silent-auction/internal/notify"
	"github.com/stepweaver/silent-auction/internal/store"
)

var (
	testTP = noop.NewTracerProvider()
	now    = time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC)
)

func tp(t time.Time) *time.Time { return &t }

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// In-memory repositories implementing the store interfaces.

type fakeItems struct {
	items      []store.Item
	closeCalls int
	failAll    bool
}

func (f *fakeItems) Create(_ context.Context, it *store.Item) error {
	f.items = append(f.items, *it)
	return nil
}

func (f *fakeItems) GetBySlug(_ context.Context, slug string) (*store.Item, error) {
	for i := range f.items {
		if f.items[i].Slug == slug {
			cp := f.items[i]
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeItems) List(context.Context) ([]store.Item, error) { return f.items, nil }

func (f *fakeItems) ListClosed(context.Context) ([]store.Item, error) {
	if f.failAll {
		return nil, errors.New("connection refused")
	}
	var out []store.Item
	for _, it := range f.items {
		if it.Closed {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeItems) Update(context.Context, string, store.ItemPatch) (*store.Item, error) {
	return nil, store.ErrNotFound
}

func (f *fakeItems) CloseAll(context.Context) (int64, error) {
	if f.failAll {
		return 0, errors.New("connection refused")
	}
	f.closeCalls++
	var n int64
	for i := range f.items {
		if !f.items[i].Closed {
			f.items[i].Closed = true
			n++
		}
	}
	return n, nil
}

func (f *fakeItems) ReopenAll(context.Context) (int64, error) {
	var n int64
	for i := range f.items {
		if f.items[i].Closed {
			f.items[i].Closed = false
			n++
		}
	}
	return n, nil
}

type fakeBids struct {
	bids []store.Bid
	clk  clock.Clock
}

func (f *fakeBids) InsertIfHighest(_ context.Context, b *store.Bid, minimum int64) (bool, error) {
	for _, existing := range f.bids {
		if existing.ItemID == b.ItemID && existing.Amount >= minimum {
			return false, nil
		}
	}
	b.CreatedAt = f.clk.Now()
	f.bids = append(f.bids, *b)
	return true, nil
}

func (f *fakeBids) CurrentHigh(_ context.Context, itemID string) (*store.Bid, error) {
	var high *store.Bid
	for i, b := range f.bids {
		if b.ItemID != itemID {
			continue
		}
		if high == nil || b.Amount > high.Amount {
			high = &f.bids[i]
		}
	}
	if high == nil {
		return nil, nil
	}
	cp := *high
	return &cp, nil
}

func (f *fakeBids) ListForItems(_ context.Context, itemIDs []string) ([]store.Bid, error) {
	var out []store.Bid
	for _, id := range itemIDs {
		for _, b := range f.bids {
			if b.ItemID == id {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

type fakeSettings struct {
	s       store.Settings
	failGet bool
}

func (f *fakeSettings) Get(context.Context) (*store.Settings, error) {
	if f.failGet {
		return nil, errors.New("connection refused")
	}
	cp := f.s
	return &cp, nil
}

func (f *fakeSettings) Upsert(_ context.Context, s *store.Settings) error {
	f.s = *s
	return nil
}

func (f *fakeSettings) SetClosed(_ context.Context, closed bool) error {
	f.s.Closed = closed
	return nil
}

type fakeEvents struct {
	appended []event.Event
}

func (f *fakeEvents) Append(_ context.Context, events ...event.Event) error {
	f.appended = append(f.appended, events...)
	return nil
}
func (f *fakeEvents) Load(context.Context, string) ([]event.Event, error) { return nil, nil }
func (f *fakeEvents) LoadByType(context.Context, event.Type) ([]event.Event, error) {
	return nil, nil
}

// fakeNotifier records every dispatch and returns a canned outcome.
type fakeNotifier struct {
	calls   [][]auction.Winner
	outcome notify.Outcome
}

func (f *fakeNotifier) DispatchClosing(_ context.Context, winners []auction.Winner, _ *store.Settings, _ []string) notify.Outcome {
	f.calls = append(f.calls, winners)
	return f.outcome
}

type fixture struct {
	items    *fakeItems
	bids     *fakeBids
	settings *fakeSettings
	events   *fakeEvents
	notifier *fakeNotifier
	clk      *clock.Mock
	orch     *closing.Orchestrator
}

func newFixture(settings store.Settings) *fixture {
	clk := &clock.Mock{T: now}
	f := &fixture{
		items: &fakeItems{items: []store.Item{
			{ID: "i1", Title: "Quilt", Slug: "quilt", StartPrice: 10000, MinIncrement: 500},
			{ID: "i2", Title: "Painting", Slug: "painting", StartPrice: 5000, MinIncrement: 250},
		}},
		bids:     &fakeBids{clk: clk},
		settings: &fakeSettings{s: settings},
		events:   &fakeEvents{},
		notifier: &fakeNotifier{outcome: notify.Outcome{EmailsSent: 1, AdminEmailsSent: 1, Sent: []string{"a@example.com", "ops@example.com"}}},
		clk:      clk,
	}
	f.orch = closing.NewOrchestrator(f.items, f.bids, f.settings, f.events, f.notifier,
		[]string{"ops@example.com"}, discardLogger(), testTP, clk)
	return f
}

func TestCloseCheck_NotDue(t *testing.T) {
	f := newFixture(store.Settings{Deadline: tp(now.Add(time.Hour))})

	res := f.orch.CloseCheck(context.Background(), "cron")

	if res.OK {
		t.Error("OK = true, want false for not-due")
	}
	if res.State != closing.StateNotDue {
		t.Errorf("State = %q, want %q", res.State, closing.StateNotDue)
	}
	if f.items.closeCalls != 0 {
		t.Errorf("CloseAll called %d times before deadline, want 0", f.items.closeCalls)
	}
	if len(f.notifier.calls) != 0 {
		t.Error("notifier invoked before deadline")
	}
	for _, it := range f.items.items {
		if it.Closed {
			t.Errorf("item %s mutated by a not-due check", it.Slug)
		}
	}
}

func TestCloseCheck_DueClosesAndNotifies(t *testing.T) {
	f := newFixture(store.Settings{Deadline: tp(now.Add(-time.Minute))})

	res := f.orch.CloseCheck(context.Background(), "cron")

	if !res.OK {
		t.Fatalf("OK = false: %+v", res)
	}
	if res.State != closing.StateClosedNotified {
		t.Errorf("State = %q, want %q", res.State, closing.StateClosedNotified)
	}
	if res.ClosedCount != 2 {
		t.Errorf("ClosedCount = %d, want 2", res.ClosedCount)
	}
	if res.EmailsSent != 1 || res.AdminEmailsSent != 1 {
		t.Errorf("EmailsSent = %d, AdminEmailsSent = %d", res.EmailsSent, res.AdminEmailsSent)
	}
	if !f.settings.s.Closed {
		t.Error("settings flag not latched after close")
	}
	if len(f.notifier.calls) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(f.notifier.calls))
	}
	if len(f.notifier.calls[0]) != 2 {
		t.Errorf("dispatched %d winner entries, want 2 (one per closed item)", len(f.notifier.calls[0]))
	}
}

// The settings flag latches: the next cron tick after a successful
// close must not close or notify again.
func TestCloseCheck_SecondTickDoesNotRenotify(t *testing.T) {
	f := newFixture(store.Settings{Deadline: tp(now.Add(-time.Minute))})

	first := f.orch.CloseCheck(context.Background(), "cron")
	if !first.OK {
		t.Fatalf("first CloseCheck failed: %+v", first)
	}

	second := f.orch.CloseCheck(context.Background(), "cron")
	if second.OK {
		t.Error("second CloseCheck reported OK, want already-closed")
	}
	if second.State != closing.StateAlreadyClosed {
		t.Errorf("State = %q, want %q", second.State, closing.StateAlreadyClosed)
	}
	if len(f.notifier.calls) != 1 {
		t.Errorf("notifier called %d times across two ticks, want 1", len(f.notifier.calls))
	}
}

func TestToggleAuction(t *testing.T) {
	tests := []struct {
		name          string
		settings      store.Settings
		force         bool
		desiredClosed bool
		wantOK        bool
		wantState     string
	}{
		{
			name:          "force close before deadline",
			settings:      store.Settings{Deadline: tp(now.Add(time.Hour))},
			force:         true,
			desiredClosed: true,
			wantOK:        true,
			wantState:     closing.StateClosedNotified,
		},
		{
			name:          "unforced close before deadline",
			settings:      store.Settings{Deadline: tp(now.Add(time.Hour))},
			force:         false,
			desiredClosed: true,
			wantOK:        false,
			wantState:     closing.StateNotDue,
		},
		{
			name:          "close when already closed",
			settings:      store.Settings{Closed: true},
			force:         true,
			desiredClosed: true,
			wantOK:        false,
			wantState:     closing.StateAlreadyClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.settings)
			res := f.orch.ToggleAuction(context.Background(), tt.force, tt.desiredClosed)
			if res.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v", res.OK, tt.wantOK)
			}
			if res.State != tt.wantState {
				t.Errorf("State = %q, want %q", res.State, tt.wantState)
			}
		})
	}
}

func TestToggleAuction_Reopen(t *testing.T) {
	f := newFixture(store.Settings{Closed: true})
	f.items.items[0].Closed = true
	f.items.items[1].Closed = true

	res := f.orch.ToggleAuction(context.Background(), true, false)

	if !res.OK || res.State != closing.StateReopened {
		t.Fatalf("result = %+v, want reopened", res)
	}
	if res.ReopenedCount != 2 {
		t.Errorf("ReopenedCount = %d, want 2", res.ReopenedCount)
	}
	if f.settings.s.Closed {
		t.Error("settings flag still closed after reopen")
	}
	for _, it := range f.items.items {
		if it.Closed {
			t.Errorf("item %s still closed after reopen", it.Slug)
		}
	}
}

// The resend path recomputes the same winner set and never touches
// close state.
func TestSendClosingEmailsOnly_ResendSafety(t *testing.T) {
	f := newFixture(store.Settings{Deadline: tp(now.Add(-time.Minute))})
	f.bids.bids = []store.Bid{
		{ID: "b1", ItemID: "i1", BidderEmail: "a@example.com", Amount: 10500, CreatedAt: now.Add(-time.Hour)},
	}

	first := f.orch.CloseCheck(context.Background(), "cron")
	if !first.OK {
		t.Fatalf("CloseCheck failed: %+v", first)
	}

	resend := f.orch.SendClosingEmailsOnly(context.Background(), "admin")
	if !resend.OK {
		t.Fatalf("resend failed: %+v", resend)
	}
	if resend.ClosedCount != 0 {
		t.Errorf("resend ClosedCount = %d, want 0", resend.ClosedCount)
	}
	if f.items.closeCalls != 1 {
		t.Errorf("CloseAll called %d times, want 1 (resend must not close)", f.items.closeCalls)
	}
	if len(f.notifier.calls) != 2 {
		t.Fatalf("notifier called %d times, want 2", len(f.notifier.calls))
	}

	// Identical winner set across both dispatches.
	firstWinners, resendWinners := f.notifier.calls[0], f.notifier.calls[1]
	if len(firstWinners) != len(resendWinners) {
		t.Fatalf("winner set size changed: %d vs %d", len(firstWinners), len(resendWinners))
	}
	for i := range firstWinners {
		a, b := firstWinners[i], resendWinners[i]
		if a.Item.ID != b.Item.ID {
			t.Errorf("winner %d item %s vs %s", i, a.Item.ID, b.Item.ID)
		}
		if (a.Bid == nil) != (b.Bid == nil) {
			t.Errorf("winner %d bid presence changed", i)
		}
		if a.Bid != nil && b.Bid != nil && a.Bid.ID != b.Bid.ID {
			t.Errorf("winner %d bid %s vs %s", i, a.Bid.ID, b.Bid.ID)
		}
	}
}

func TestCloseCheck_DatastoreFailureIsGeneric(t *testing.T) {
	f := newFixture(store.Settings{Deadline: tp(now.Add(-time.Minute))})
	f.items.failAll = true

	res := f.orch.CloseCheck(context.Background(), "cron")

	if res.OK {
		t.Error("OK = true, want false on datastore failure")
	}
	if res.State != closing.StateError {
		t.Errorf("State = %q, want %q", res.State, closing.StateError)
	}
	if strings.Contains(res.Error, "connection refused") {
		t.Errorf("Error leaks datastore detail: %q", res.Error)
	}
}

func TestCloseCheck_SettingsFailure(t *testing.T) {
	f := newFixture(store.Settings{})
	f.settings.failGet = true

	res := f.orch.CloseCheck(context.Background(), "cron")
	if res.OK || res.State != closing.StateError {
		t.Errorf("result = %+v, want error state", res)
	}
}

func TestCloseAndNotify_RecordsAuditEvents(t *testing.T) {
	f := newFixture(store.Settings{Deadline: tp(now.Add(-time.Minute))})
	f.notifier.outcome = notify.Outcome{
		EmailsSent: 1,
		Sent:       []string{"a@example.com"},
		Failed:     []notify.Failure{{Name: "b@example.com", Error: "timeout"}},
	}

	res := f.orch.CloseCheck(context.Background(), "cron")
	if !res.OK {
		t.Fatalf("CloseCheck failed: %+v", res)
	}
	if len(res.Failed) != 1 {
		t.Errorf("Failed = %+v, want the timeout entry surfaced", res.Failed)
	}

	var closedEvents, sentEvents, failedEvents int
	for _, e := range f.events.appended {
		switch e.Type {
		case event.ItemsClosed:
			closedEvents++
		case event.NotifySent:
			sentEvents++
		case event.NotifyFailed:
			failedEvents++
		}
	}
	if closedEvents != 1 || sentEvents != 1 || failedEvents != 1 {
		t.Errorf("events closed=%d sent=%d failed=%d, want 1/1/1", closedEvents, sentEvents, failedEvents)
	}
}

// Full walk of a single-item auction: floor bid accepted, short raise
// rejected, valid raise accepted, deadline passes, one item closes and
// the digest goes to the high bidder at the final amount.
func TestClosingScenario_EndToEnd(t *testing.T) {
	clk := &clock.Mock{T: now}
	items := &fakeItems{items: []store.Item{
		{ID: "i1", Title: "Quilt", Slug: "quilt", StartPrice: 10000, MinIncrement: 500},
	}}
	bids := &fakeBids{clk: clk}
	settings := &fakeSettings{s: store.Settings{Deadline: tp(now.Add(time.Hour))}}
	events := &fakeEvents{}
	logger := discardLogger()

	bidSvc := bidding.NewService(items, bids, settings, events, logger, testTP, clk)

	mailer := &recordingMailer{}
	dispatcher := notify.NewDispatcher(mailer, clk, 800*time.Millisecond, logger, testTP)
	orch := closing.NewOrchestrator(items, bids, settings, events, dispatcher,
		[]string{"ops@example.com"}, logger, testTP, clk)

	ctx := context.Background()

	if _, err := bidSvc.PlaceBid(ctx, "quilt", "alice@example.com", "Red Fox", 10000); err != nil {
		t.Fatalf("floor bid: %v", err)
	}
	clk.Advance(time.Minute)
	if _, err := bidSvc.PlaceBid(ctx, "quilt", "bob@example.com", "Blue Owl", 10300); !errors.Is(err, auction.ErrBidTooLow) {
		t.Fatalf("short raise error = %v, want ErrBidTooLow", err)
	}
	if _, err := bidSvc.PlaceBid(ctx, "quilt", "bob@example.com", "Blue Owl", 10500); err != nil {
		t.Fatalf("valid raise: %v", err)
	}

	clk.Advance(2 * time.Hour) // deadline passes

	res := orch.CloseCheck(ctx, "cron")
	if !res.OK {
		t.Fatalf("CloseCheck failed: %+v", res)
	}
	if res.ClosedCount != 1 {
		t.Errorf("ClosedCount = %d, want 1", res.ClosedCount)
	}
	if res.EmailsSent != 1 {
		t.Errorf("EmailsSent = %d, want 1", res.EmailsSent)
	}

	var digest string
	for _, m := range mailer.sent {
		if m.to == "bob@example.com" {
			digest = m.body
		}
	}
	if digest == "" {
		t.Fatal("no digest sent to the winning bidder")
	}
	if !strings.Contains(digest, "Quilt") || !strings.Contains(digest, "$105.00") {
		t.Errorf("digest missing item or amount:\n%s", digest)
	}
}

type recordingMail struct{ to, subject, body string }

type recordingMailer struct{ sent []recordingMail }

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, recordingMail{to, subject, body})
	return nil
}
