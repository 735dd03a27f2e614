package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/stepweaver/silent-auction/internal/store"
)

type createItemRequest struct {
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	StartPrice   int64   `json:"start_price"`
	MinIncrement int64   `json:"min_increment"`
	Category     *string `json:"category"`
	CreatedBy    *string `json:"created_by"`
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "title and slug are required")
		return
	}
	if req.StartPrice < 0 || req.MinIncrement <= 0 {
		writeError(w, http.StatusBadRequest, "start_price must be non-negative and min_increment positive")
		return
	}

	item := &store.Item{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Slug:         req.Slug,
		StartPrice:   req.StartPrice,
		MinIncrement: req.MinIncrement,
		Category:     req.Category,
		CreatedBy:    req.CreatedBy,
	}
	if err := s.items.Create(ctx, item); err != nil {
		if errors.Is(err, store.ErrSlugTaken) {
			writeError(w, http.StatusConflict, "slug already in use")
			return
		}
		s.internalError(w, r, "creating item", err)
		return
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.internalError(w, r, "loading settings", err)
		return
	}
	writeJSON(w, http.StatusCreated, newItemView(item, settings, s.clock.Now()))
}

// patchItemRequest distinguishes absent fields from zero values; only
// present fields are applied.
type patchItemRequest struct {
	Title        *string `json:"title"`
	StartPrice   *int64  `json:"start_price"`
	MinIncrement *int64  `json:"min_increment"`
	Closed       *bool   `json:"closed"`
	Category     *string `json:"category"`
}

func (s *Server) patchItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := mux.Vars(r)["slug"]

	var req patchItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StartPrice != nil && *req.StartPrice < 0 {
		writeError(w, http.StatusBadRequest, "start_price must be non-negative")
		return
	}
	if req.MinIncrement != nil && *req.MinIncrement <= 0 {
		writeError(w, http.StatusBadRequest, "min_increment must be positive")
		return
	}

	item, err := s.items.Update(ctx, slug, store.ItemPatch{
		Title:        req.Title,
		StartPrice:   req.StartPrice,
		MinIncrement: req.MinIncrement,
		Closed:       req.Closed,
		Category:     req.Category,
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "updating item", err)
		return
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.internalError(w, r, "loading settings", err)
		return
	}
	writeJSON(w, http.StatusOK, newItemView(item, settings, s.clock.Now()))
}

type putSettingsRequest struct {
	Closed              bool       `json:"closed"`
	Deadline            *time.Time `json:"deadline"`
	StartsAt            *time.Time `json:"starts_at"`
	PaymentInstructions string     `json:"payment_instructions"`
	PickupInstructions  string     `json:"pickup_instructions"`
	ContactEmail        string     `json:"contact_email"`
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req putSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := &store.Settings{
		ID:                  1,
		Closed:              req.Closed,
		Deadline:            req.Deadline,
		StartsAt:            req.StartsAt,
		PaymentInstructions: req.PaymentInstructions,
		PickupInstructions:  req.PickupInstructions,
		ContactEmail:        req.ContactEmail,
	}
	if err := s.settings.Upsert(ctx, settings); err != nil {
		s.internalError(w, r, "saving settings", err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsView(settings))
}

type toggleAuctionRequest struct {
	Closed bool `json:"closed"`
	Force  bool `json:"force"`
}

func (s *Server) toggleAuction(w http.ResponseWriter, r *http.Request) {
	var req toggleAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeResult(w, s.closing.ToggleAuction(r.Context(), req.Force, req.Closed))
}

func (s *Server) sendClosingEmails(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.closing.SendClosingEmailsOnly(r.Context(), "admin"))
}
