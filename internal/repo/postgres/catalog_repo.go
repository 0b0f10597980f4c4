package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mydiary/mall-server/internal/domain"
)

type CategoryRepo interface {
	List(ctx context.Context) ([]domain.Category, error)
	Create(ctx context.Context, name string) (*domain.Category, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}

type ItemRepo interface {
	List(ctx context.Context, f domain.ItemFilter) ([]domain.Item, error)
	Get(ctx context.Context, id int64) (*domain.Item, error)
	Create(ctx context.Context, ownerID int64, in domain.ItemRequest) (*domain.Item, error)
	Update(ctx context.Context, id int64, in domain.ItemRequest) error
	Delete(ctx context.Context, id int64) error
}

type CategoryRepoImpl struct{ db DB }

func NewCategoryRepo(db DB) *CategoryRepoImpl { return &CategoryRepoImpl{db: db} }

func (r *CategoryRepoImpl) List(ctx context.Context) ([]domain.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.db.Query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Category])
}

func (r *CategoryRepoImpl) Create(ctx context.Context, name string) (*domain.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	c := domain.Category{Name: name}
	if err := r.db.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`, name).Scan(&c.ID); err != nil {
		if code, _ := pgErrorCode(err); code == pgUniqueViolation {
			return nil, fmt.Errorf("category %q: %w", name, domain.ErrConflict)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepoImpl) Rename(ctx context.Context, id int64, name string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, `UPDATE categories SET name=$2 WHERE id=$1`, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *CategoryRepoImpl) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		if code, _ := pgErrorCode(err); code == pgForeignKeyViolation {
			return fmt.Errorf("category %d still has items: %w", id, domain.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

type ItemRepoImpl struct{ db DB }

func NewItemRepo(db DB) *ItemRepoImpl { return &ItemRepoImpl{db: db} }

const itemCols = `id, name, category_id, description, user_id, image_url, price, created_at, updated_at`

func scanItem(row pgx.Row) (*domain.Item, error) {
	var it domain.Item
	err := row.Scan(&it.ID, &it.Name, &it.CategoryID, &it.Description, &it.UserID,
		&it.ImageURL, &it.Price, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *ItemRepoImpl) List(ctx context.Context, f domain.ItemFilter) ([]domain.Item, error) {
	const q = `SELECT ` + itemCols + ` FROM items
WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
  AND ($2::bigint = 0 OR category_id = $2)
ORDER BY id DESC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.db.Query(ctx, q, escapeLike(strings.TrimSpace(f.Query)), f.CategoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (r *ItemRepoImpl) Get(ctx context.Context, id int64) (*domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	it, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemCols+` FROM items WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err, "item")
	}
	return it, nil
}

func (r *ItemRepoImpl) Create(ctx context.Context, ownerID int64, in domain.ItemRequest) (*domain.Item, error) {
	const q = `INSERT INTO items (name, category_id, description, user_id, image_url, price)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING ` + itemCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	it, err := scanItem(r.db.QueryRow(ctx, q, in.Name, in.CategoryID, in.Description, ownerID, in.ImageURL, in.Price))
	if err != nil {
		return nil, unknownCategory(err)
	}
	return it, nil
}

func (r *ItemRepoImpl) Update(ctx context.Context, id int64, in domain.ItemRequest) error {
	const q = `UPDATE items
SET name=$2, category_id=$3, description=$4, image_url=$5, price=$6, updated_at=now()
WHERE id=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, q, id, in.Name, in.CategoryID, in.Description, in.ImageURL, in.Price)
	if err != nil {
		return unknownCategory(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *ItemRepoImpl) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func unknownCategory(err error) error {
	if code, _ := pgErrorCode(err); code == pgForeignKeyViolation {
		return domain.Invalid("categoryId", "does not exist")
	}
	return err
}

var (
	_ CategoryRepo = (*CategoryRepoImpl)(nil)
	_ ItemRepo     = (*ItemRepoImpl)(nil)
)
