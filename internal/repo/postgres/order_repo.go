package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mydiary/mall-server/internal/domain"
)

// ErrCartEmpty is returned when an order is placed with nothing in the cart.
var ErrCartEmpty = domain.Invalid("cart", "is empty")

var errKeyRace = errors.New("idempotency key claimed concurrently")

type NewOrder struct {
	UserID         int64
	Reference      string
	IdempotencyKey string
	Now            time.Time
}

type OrderRepo interface {
	// CreateFromCart turns the user's cart into an order in one transaction.
	// replayed is true when IdempotencyKey already produced an order.
	CreateFromCart(ctx context.Context, in NewOrder) (o *domain.Order, replayed bool, err error)
	List(ctx context.Context, userID int64) ([]domain.Order, error)
	Get(ctx context.Context, userID, id int64) (*domain.Order, error)
	// UpdateStatus moves a pending order to status; false when it was no longer pending.
	UpdateStatus(ctx context.Context, userID, id int64, status domain.OrderStatus, now time.Time) (bool, error)
}

type OrderRepoImpl struct{ db DB }

func NewOrderRepo(db DB) *OrderRepoImpl { return &OrderRepoImpl{db: db} }

const orderCols = `id, reference, user_id, status, total, created_at, updated_at`

func (r *OrderRepoImpl) CreateFromCart(ctx context.Context, in NewOrder) (*domain.Order, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		orderID  int64
		replayed bool
	)
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		if in.IdempotencyKey != "" {
			existing, err := lookupIdempotency(ctx, tx, in.UserID, in.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != 0 {
				orderID, replayed = existing, true
				return nil
			}
		}

		rows, err := tx.Query(ctx, `
SELECT c.item_id, i.name, i.price, c.quantity
FROM cart_items c
JOIN items i ON i.id = c.item_id
WHERE c.user_id = $1
ORDER BY c.item_id
FOR UPDATE OF c`, in.UserID)
		if err != nil {
			return err
		}
		lines, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.OrderLine])
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrCartEmpty
		}

		var total int64
		for _, l := range lines {
			total += l.UnitPrice * int64(l.Quantity)
		}

		if err := tx.QueryRow(ctx, `
INSERT INTO orders (reference, user_id, status, total, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING id`, in.Reference, in.UserID, domain.OrderPending, total, in.Now).Scan(&orderID); err != nil {
			return err
		}

		copyRows := make([][]any, 0, len(lines))
		for _, l := range lines {
			copyRows = append(copyRows, []any{orderID, l.ItemID, l.Name, l.UnitPrice, l.Quantity})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"order_items"},
			[]string{"order_id", "item_id", "name", "unit_price", "quantity"},
			pgx.CopyFromRows(copyRows)); err != nil {
			return fmt.Errorf("copy order lines: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, in.UserID); err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			tag, err := tx.Exec(ctx, `
INSERT INTO order_idempotency (user_id, key_hash, order_id, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, key_hash) DO NOTHING`,
				in.UserID, hashKey(in.IdempotencyKey), orderID, in.Now.Add(IdempotencyTTL))
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return errKeyRace
			}
		}
		return nil
	})

	if errors.Is(err, errKeyRace) {
		// The concurrent request committed first; answer with its order.
		existing, lerr := lookupIdempotency(ctx, r.db, in.UserID, in.IdempotencyKey)
		if lerr != nil {
			return nil, false, lerr
		}
		orderID, replayed, err = existing, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	o, err := r.Get(ctx, in.UserID, orderID)
	if err != nil {
		return nil, false, err
	}
	return o, replayed, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(&o.ID, &o.Reference, &o.UserID, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepoImpl) List(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.db.Query(ctx,
		`SELECT `+orderCols+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *OrderRepoImpl) Get(ctx context.Context, userID, id int64) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		return nil, notFound(err, "order")
	}

	rows, err := r.db.Query(ctx,
		`SELECT item_id, name, unit_price, quantity FROM order_items WHERE order_id=$1 ORDER BY item_id`, id)
	if err != nil {
		return nil, err
	}
	o.Lines, err = pgx.CollectRows(rows, pgx.RowToStructByPos[domain.OrderLine])
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepoImpl) UpdateStatus(ctx context.Context, userID, id int64, status domain.OrderStatus, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, `
UPDATE orders SET status=$3, updated_at=$4
WHERE id=$1 AND user_id=$2 AND status=$5`, id, userID, status, now, domain.OrderPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

var _ OrderRepo = (*OrderRepoImpl)(nil)
