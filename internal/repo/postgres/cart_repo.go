package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mydiary/mall-server/internal/domain"
)

type CartRepo interface {
	List(ctx context.Context, userID int64) ([]domain.CartItem, error)
	// Add inserts the line or adds quantity to an existing one, returning the new quantity.
	Add(ctx context.Context, userID, itemID int64, quantity int) (int, error)
	SetQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	Remove(ctx context.Context, userID, itemID int64) error
}

type CartRepoImpl struct{ db DB }

func NewCartRepo(db DB) *CartRepoImpl { return &CartRepoImpl{db: db} }

func (r *CartRepoImpl) List(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	const q = `
SELECT c.item_id, i.name, i.price, c.quantity, c.added_at
FROM cart_items c
JOIN items i ON i.id = c.item_id
WHERE c.user_id = $1
ORDER BY c.added_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.CartItem])
}

func (r *CartRepoImpl) Add(ctx context.Context, userID, itemID int64, quantity int) (int, error) {
	const q = `
INSERT INTO cart_items (user_id, item_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, item_id) DO UPDATE
SET quantity = cart_items.quantity + EXCLUDED.quantity
RETURNING quantity`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var total int
	if err := r.db.QueryRow(ctx, q, userID, itemID, quantity).Scan(&total); err != nil {
		if code, _ := pgErrorCode(err); code == pgForeignKeyViolation {
			return 0, fmt.Errorf("item %d: %w", itemID, domain.ErrNotFound)
		}
		return 0, err
	}
	return total, nil
}

func (r *CartRepoImpl) SetQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx,
		`UPDATE cart_items SET quantity=$3 WHERE user_id=$1 AND item_id=$2`, userID, itemID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart item %d: %w", itemID, domain.ErrNotFound)
	}
	return nil
}

func (r *CartRepoImpl) Remove(ctx context.Context, userID, itemID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND item_id=$2`, userID, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart item %d: %w", itemID, domain.ErrNotFound)
	}
	return nil
}

var _ CartRepo = (*CartRepoImpl)(nil)
