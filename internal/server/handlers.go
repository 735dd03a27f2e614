package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stepweaver/silent-auction/internal/auction"
	"github.com/stepweaver/silent-auction/internal/bidding"
	"github.com/stepweaver/silent-auction/internal/store"
)

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.internalError(w, r, "loading settings", err)
		return
	}
	items, err := s.items.List(ctx)
	if err != nil {
		s.internalError(w, r, "listing items", err)
		return
	}

	now := s.clock.Now()
	views := make([]itemView, 0, len(items))
	for i := range items {
		views = append(views, newItemView(&items[i], settings, now))
	}
	writeJSON(w, http.StatusOK, views)
}

// getItem is the poll target for live bidding state: the item plus its
// current high bid and the minimum acceptable next bid.
func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := mux.Vars(r)["slug"]

	item, err := s.items.GetBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "loading item", err)
		return
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.internalError(w, r, "loading settings", err)
		return
	}
	high, err := s.bids.CurrentHigh(ctx, item.ID)
	if err != nil {
		s.internalError(w, r, "loading current high bid", err)
		return
	}

	writeJSON(w, http.StatusOK, itemDetail{
		itemView:       newItemView(item, settings, s.clock.Now()),
		CurrentHigh:    newBidView(high),
		MinimumNextBid: auction.MinimumNextBid(item, high),
	})
}

type placeBidRequest struct {
	Email  string `json:"email"`
	Alias  string `json:"alias"`
	Amount int64  `json:"amount"`
}

func (s *Server) placeBid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := mux.Vars(r)["slug"]

	if !s.limiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := s.bidding.PlaceBid(ctx, slug, req.Email, req.Alias, req.Amount)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, newBidView(b))
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, bidding.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auction.ErrBidTooLow):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auction.ErrNotStarted),
		errors.Is(err, auction.ErrAuctionClosed),
		errors.Is(err, auction.ErrOutbid):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.internalError(w, r, "placing bid", err)
	}
}

func (s *Server) closeCheck(w http.ResponseWriter, r *http.Request) {
	if !s.cronAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeResult(w, s.closing.CloseCheck(r.Context(), "cron"))
}

// internalError logs the detail and returns a generic 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.ErrorContext(r.Context(), "request failed",
		slog.String("op", op),
		slog.Any("error", err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
