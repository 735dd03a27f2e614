package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stepweaver/silent-auction/internal/auction"
	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/store"
)

// Failure records one recipient that could not be notified.
type Failure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Outcome summarizes a dispatch batch. A failed recipient never stops
// the rest of the batch; callers get the full picture and decide.
type Outcome struct {
	Sent            []string  `json:"sent"`
	Failed          []Failure `json:"failed"`
	EmailsSent      int       `json:"emails_sent"`
	AdminEmailsSent int       `json:"admin_emails_sent"`
}

// Dispatcher sends the closing emails sequentially, spacing
// consecutive sends to stay inside the email provider's rate limits.
type Dispatcher struct {
	mailer  Mailer
	sleeper clock.Sleeper
	spacing time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewDispatcher returns a Dispatcher. spacing is the minimum delay
// between consecutive sends.
func NewDispatcher(mailer Mailer, sleeper clock.Sleeper, spacing time.Duration, logger *slog.Logger, tp trace.TracerProvider) *Dispatcher {
	return &Dispatcher{
		mailer:  mailer,
		sleeper: sleeper,
		spacing: spacing,
		logger:  logger,
		tracer:  tp.Tracer("github.com/stepweaver/silent-auction/internal/notify"),
	}
}

// DispatchClosing sends one consolidated winner digest per distinct
// winning bidder and the winners list to each admin recipient. Per-
// recipient failures are collected, not raised.
func (d *Dispatcher) DispatchClosing(ctx context.Context, winners []auction.Winner, settings *store.Settings, adminRecipients []string) Outcome {
	ctx, span := d.tracer.Start(ctx, "Dispatcher.DispatchClosing",
		trace.WithAttributes(
			attribute.Int("items", len(winners)),
			attribute.Int("admin_recipients", len(adminRecipients)),
		),
	)
	defer span.End()

	var out Outcome
	first := true
	send := func(to, subject, body string) error {
		if !first {
			d.sleeper.Sleep(ctx, d.spacing)
		}
		first = false
		return d.mailer.Send(ctx, to, subject, body)
	}

	// A bidder who won several items gets one email, not one per item.
	byBidder := make(map[string][]auction.Winner)
	for _, w := range winners {
		if w.Bid == nil {
			continue
		}
		byBidder[w.Bid.BidderEmail] = append(byBidder[w.Bid.BidderEmail], w)
	}
	bidders := make([]string, 0, len(byBidder))
	for email := range byBidder {
		bidders = append(bidders, email)
	}
	sort.Strings(bidders)

	for _, email := range bidders {
		body, err := renderWinnerDigest(byBidder[email], settings)
		if err == nil {
			err = send(email, "You won! Silent auction results", body)
		}
		if err != nil {
			out.Failed = append(out.Failed, Failure{Name: email, Error: err.Error()})
			d.logger.ErrorContext(ctx, "winner digest failed",
				slog.String("recipient", email),
				slog.Any("error", err),
			)
			continue
		}
		out.Sent = append(out.Sent, email)
		out.EmailsSent++
		d.logger.InfoContext(ctx, "winner digest sent",
			slog.String("recipient", email),
			slog.Int("items", len(byBidder[email])),
		)
	}

	if len(adminRecipients) > 0 {
		body, err := renderAdminList(winners)
		if err != nil {
			for _, admin := range adminRecipients {
				out.Failed = append(out.Failed, Failure{Name: admin, Error: err.Error()})
			}
			return out
		}
		for _, admin := range adminRecipients {
			if sendErr := send(admin, "Silent auction winners list", body); sendErr != nil {
				out.Failed = append(out.Failed, Failure{Name: admin, Error: sendErr.Error()})
				d.logger.ErrorContext(ctx, "admin winners list failed",
					slog.String("recipient", admin),
					slog.Any("error", sendErr),
				)
				continue
			}
			out.Sent = append(out.Sent, admin)
			out.AdminEmailsSent++
		}
	}

	return out
}

// String implements fmt.Stringer for log-friendly outcome summaries.
func (o Outcome) String() string {
	return fmt.Sprintf("sent=%d admin=%d failed=%d", o.EmailsSent, o.AdminEmailsSent, len(o.Failed))
}
