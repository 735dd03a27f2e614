package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/stepweaver/silent-auction/internal/auction"
	"github.com/stepweaver/silent-auction/internal/closing"
	"github.com/stepweaver/silent-auction/internal/store"
)

// itemView is the public item representation. Open is derived from the
// settings flag, the deadline and the item flag; it is never stored.
type itemView struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	StartPrice   int64     `json:"start_price"`
	MinIncrement int64     `json:"min_increment"`
	Category     *string   `json:"category,omitempty"`
	Open         bool      `json:"open"`
	CreatedAt    time.Time `json:"created_at"`
}

// bidView is the public bid representation; the bidder's email never
// appears here.
type bidView struct {
	ID        string    `json:"id"`
	Alias     string    `json:"alias"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// itemDetail adds the live bidding state clients poll for.
type itemDetail struct {
	itemView
	CurrentHigh    *bidView `json:"current_high,omitempty"`
	MinimumNextBid int64    `json:"minimum_next_bid"`
}

// settingsView is the admin settings representation.
type settingsView struct {
	Closed              bool       `json:"closed"`
	Deadline            *time.Time `json:"deadline,omitempty"`
	StartsAt            *time.Time `json:"starts_at,omitempty"`
	PaymentInstructions string     `json:"payment_instructions"`
	PickupInstructions  string     `json:"pickup_instructions"`
	ContactEmail        string     `json:"contact_email"`
}

func newItemView(it *store.Item, settings *store.Settings, now time.Time) itemView {
	return itemView{
		ID:           it.ID,
		Title:        it.Title,
		Slug:         it.Slug,
		StartPrice:   it.StartPrice,
		MinIncrement: it.MinIncrement,
		Category:     it.Category,
		Open:         auction.IsOpen(settings, it, now),
		CreatedAt:    it.CreatedAt,
	}
}

func newBidView(b *store.Bid) *bidView {
	if b == nil {
		return nil
	}
	return &bidView{ID: b.ID, Alias: b.BidderAlias, Amount: b.Amount, CreatedAt: b.CreatedAt}
}

func newSettingsView(s *store.Settings) settingsView {
	return settingsView{
		Closed:              s.Closed,
		Deadline:            s.Deadline,
		StartsAt:            s.StartsAt,
		PaymentInstructions: s.PaymentInstructions,
		PickupInstructions:  s.PickupInstructions,
		ContactEmail:        s.ContactEmail,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeResult maps an orchestrator result to an HTTP status. not-due
// and already-closed are expected outcomes (409), never server errors.
func writeResult(w http.ResponseWriter, res closing.Result) {
	code := http.StatusOK
	if !res.OK {
		switch res.State {
		case closing.StateNotDue, closing.StateAlreadyClosed:
			code = http.StatusConflict
		default:
			code = http.StatusInternalServerError
		}
	}
	writeJSON(w, code, res)
}
