// Package bidding accepts and validates bids against the increment
// policy and the auction schedule.
package bidding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stepweaver/silent-auction/internal/auction"
	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/event"
	"github.com/stepweaver/silent-auction/internal/store"
)

// ErrInvalidEmail rejects malformed bidder addresses before any
// datastore access.
var ErrInvalidEmail = fmt.Errorf("invalid bidder email")

// Service coordinates bid acceptance.
type Service struct {
	items    store.ItemRepository
	bids     store.BidRepository
	settings store.SettingsRepository
	events   event.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	clock    clock.Clock
}

// NewService returns a bidding Service.
func NewService(items store.ItemRepository, bids store.BidRepository, settings store.SettingsRepository, events event.Store, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Service {
	return &Service{
		items:    items,
		bids:     bids,
		settings: settings,
		events:   events,
		logger:   logger,
		tracer:   tp.Tracer("github.com/stepweaver/silent-auction/internal/bidding"),
		clock:    clk,
	}
}

// PlaceBid validates a bid for the item with the given slug and, if
// acceptable, records it. The insert is conditional: if a concurrent
// bid reaches the computed minimum first, this bid loses with
// auction.ErrOutbid instead of landing below the new high.
func (s *Service) PlaceBid(ctx context.Context, slug, email, alias string, amount int64) (*store.Bid, error) {
	ctx, span := s.tracer.Start(ctx, "Service.PlaceBid",
		trace.WithAttributes(
			attribute.String("item.slug", slug),
			attribute.Int64("bid.amount", amount),
		),
	)
	defer span.End()

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if alias == "" {
		alias = NewAlias()
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	item, err := s.items.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !auction.HasStarted(settings, now) {
		return nil, auction.ErrNotStarted
	}
	if !auction.IsOpen(settings, item, now) {
		return nil, auction.ErrAuctionClosed
	}

	high, err := s.bids.CurrentHigh(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("reading current high bid: %w", err)
	}
	minimum := auction.MinimumNextBid(item, high)
	if !auction.Acceptable(amount, minimum) {
		return nil, auction.ErrBidTooLow
	}

	b := &store.Bid{
		ID:          uuid.NewString(),
		ItemID:      item.ID,
		BidderEmail: email,
		BidderAlias: alias,
		Amount:      amount,
	}
	ok, err := s.bids.InsertIfHighest(ctx, b, minimum)
	if err != nil {
		return nil, fmt.Errorf("recording bid: %w", err)
	}
	if !ok {
		return nil, auction.ErrOutbid
	}

	data, _ := json.Marshal(event.BidPlacedData{BidID: b.ID, BidderAlias: alias, Amount: amount})
	evt := event.Event{
		ID:          uuid.NewString(),
		AggregateID: item.ID,
		Type:        event.BidPlaced,
		Data:        data,
	}
	if err := s.events.Append(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "failed to append bid placed event", slog.Any("error", err))
	}

	s.logger.InfoContext(ctx, "bid placed",
		slog.String("item", item.Slug),
		slog.String("alias", alias),
		slog.Int64("amount", amount),
	)
	return b, nil
}

// MinimumNextBid returns the lowest acceptable bid for an item right
// now, for display alongside rejections and on the item page.
func (s *Service) MinimumNextBid(ctx context.Context, item *store.Item) (int64, error) {
	high, err := s.bids.CurrentHigh(ctx, item.ID)
	if err != nil {
		return 0, fmt.Errorf("reading current high bid: %w", err)
	}
	return auction.MinimumNextBid(item, high), nil
}
