package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/store"
)

// SettingsRepo implements store.SettingsRepository with sqlx. The row
// is created on first write; reads before that return defaults.
type SettingsRepo struct {
	db  *sqlx.DB
	clk clock.Clock
}

// NewSettingsRepo returns a new SettingsRepo.
func NewSettingsRepo(db *sqlx.DB, clk clock.Clock) *SettingsRepo {
	return &SettingsRepo{db: db, clk: clk}
}

func (r *SettingsRepo) Get(ctx context.Context) (*store.Settings, error) {
	var s store.Settings
	err := r.db.GetContext(ctx, &s, `SELECT * FROM settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		// No row yet; the auction runs open-ended until settings are
		// written.
		return &store.Settings{ID: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting settings: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepo) Upsert(ctx context.Context, s *store.Settings) error {
	s.ID = 1
	s.UpdatedAt = r.clk.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (id, auction_closed, auction_deadline, auction_start,
		                       payment_instructions, pickup_instructions, contact_email, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		     auction_closed = EXCLUDED.auction_closed,
		     auction_deadline = EXCLUDED.auction_deadline,
		     auction_start = EXCLUDED.auction_start,
		     payment_instructions = EXCLUDED.payment_instructions,
		     pickup_instructions = EXCLUDED.pickup_instructions,
		     contact_email = EXCLUDED.contact_email,
		     updated_at = EXCLUDED.updated_at`,
		s.Closed, s.Deadline, s.StartsAt,
		s.PaymentInstructions, s.PickupInstructions, s.ContactEmail, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting settings: %w", err)
	}
	return nil
}

func (r *SettingsRepo) SetClosed(ctx context.Context, closed bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (id, auction_closed, updated_at)
		 VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET
		     auction_closed = EXCLUDED.auction_closed,
		     updated_at = EXCLUDED.updated_at`,
		closed, r.clk.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting auction_closed: %w", err)
	}
	return nil
}
