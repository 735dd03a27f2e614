package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/store"
)

// ItemRepo implements store.ItemRepository with sqlx.
type ItemRepo struct {
	db  *sqlx.DB
	clk clock.Clock
}

// NewItemRepo returns a new ItemRepo.
func NewItemRepo(db *sqlx.DB, clk clock.Clock) *ItemRepo {
	return &ItemRepo{db: db, clk: clk}
}

func (r *ItemRepo) Create(ctx context.Context, it *store.Item) error {
	query := `INSERT INTO items (title, slug, start_price, min_increment, is_closed, created_by, category, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`
	now := r.clk.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now
	err := r.db.QueryRowContext(ctx, query,
		it.Title, it.Slug, it.StartPrice, it.MinIncrement, it.Closed, it.CreatedBy, it.Category, now,
	).Scan(&it.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return store.ErrSlugTaken
		}
		return fmt.Errorf("creating item: %w", err)
	}
	return nil
}

func (r *ItemRepo) GetBySlug(ctx context.Context, slug string) (*store.Item, error) {
	var it store.Item
	err := r.db.GetContext(ctx, &it, `SELECT * FROM items WHERE slug = $1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item by slug: %w", err)
	}
	return &it, nil
}

func (r *ItemRepo) List(ctx context.Context) ([]store.Item, error) {
	var items []store.Item
	err := r.db.SelectContext(ctx, &items, `SELECT * FROM items ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

func (r *ItemRepo) ListClosed(ctx context.Context) ([]store.Item, error) {
	var items []store.Item
	err := r.db.SelectContext(ctx, &items, `SELECT * FROM items WHERE is_closed ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing closed items: %w", err)
	}
	return items, nil
}

// Update applies only the fields present in the patch. The SET clause
// is assembled explicitly per field; absent fields are left untouched.
func (r *ItemRepo) Update(ctx context.Context, slug string, patch store.ItemPatch) (*store.Item, error) {
	sets := []string{"updated_at = $1"}
	args := []interface{}{r.clk.Now().UTC()}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.StartPrice != nil {
		add("start_price", *patch.StartPrice)
	}
	if patch.MinIncrement != nil {
		add("min_increment", *patch.MinIncrement)
	}
	if patch.Closed != nil {
		add("is_closed", *patch.Closed)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}

	args = append(args, slug)
	query := fmt.Sprintf(`UPDATE items SET %s WHERE slug = $%d RETURNING *`,
		strings.Join(sets, ", "), len(args))

	var it store.Item
	err := r.db.GetContext(ctx, &it, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	return &it, nil
}

func (r *ItemRepo) CloseAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET is_closed = TRUE, updated_at = $1 WHERE NOT is_closed`,
		r.clk.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("closing all items: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting closed items: %w", err)
	}
	return n, nil
}

func (r *ItemRepo) ReopenAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET is_closed = FALSE, updated_at = $1 WHERE is_closed`,
		r.clk.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("reopening all items: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting reopened items: %w", err)
	}
	return n, nil
}
