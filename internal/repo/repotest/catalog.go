package repotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/repo/postgres"
)

// Catalog backs both Categories and Items so foreign keys can be checked.
type Catalog struct {
	mu         sync.Mutex
	categories map[int64]domain.Category
	items      map[int64]domain.Item
	nextID     int64
	now        func() time.Time
}

func NewCatalog() *Catalog {
	return &Catalog{
		categories: make(map[int64]domain.Category),
		items:      make(map[int64]domain.Item),
		nextID:     1,
		now:        time.Now,
	}
}

func (c *Catalog) Categories() *Categories { return &Categories{c} }
func (c *Catalog) Items() *Items           { return &Items{c} }

func (c *Catalog) item(id int64) (domain.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	return it, ok
}

type Categories struct{ c *Catalog }

func (r *Categories) List(_ context.Context) ([]domain.Category, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	out := make([]domain.Category, 0, len(r.c.categories))
	for _, cat := range r.c.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Categories) Create(_ context.Context, name string) (*domain.Category, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for _, cat := range r.c.categories {
		if cat.Name == name {
			return nil, fmt.Errorf("category %q exists: %w", name, domain.ErrConflict)
		}
	}
	cat := domain.Category{ID: r.c.nextID, Name: name}
	r.c.nextID++
	r.c.categories[cat.ID] = cat
	return &cat, nil
}

func (r *Categories) Rename(_ context.Context, id int64, name string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	cat, ok := r.c.categories[id]
	if !ok {
		return fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	cat.Name = name
	r.c.categories[id] = cat
	return nil
}

func (r *Categories) Delete(_ context.Context, id int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.categories[id]; !ok {
		return fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	for _, it := range r.c.items {
		if it.CategoryID == id {
			return fmt.Errorf("category %d still has items: %w", id, domain.ErrConflict)
		}
	}
	delete(r.c.categories, id)
	return nil
}

type Items struct{ c *Catalog }

func (r *Items) List(_ context.Context, f domain.ItemFilter) ([]domain.Item, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]domain.Item, 0)
	for _, it := range r.c.items {
		if q != "" && !strings.Contains(strings.ToLower(it.Name), q) {
			continue
		}
		if f.CategoryID != 0 && it.CategoryID != f.CategoryID {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Items) Get(_ context.Context, id int64) (*domain.Item, error) {
	it, ok := r.c.item(id)
	if !ok {
		return nil, fmt.Errorf("item: %w", domain.ErrNotFound)
	}
	return &it, nil
}

func (r *Items) Create(_ context.Context, ownerID int64, in domain.ItemRequest) (*domain.Item, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.categories[in.CategoryID]; !ok {
		return nil, domain.Invalid("categoryId", "does not exist")
	}
	now := r.c.now()
	it := domain.Item{
		ID:          r.c.nextID,
		Name:        in.Name,
		CategoryID:  in.CategoryID,
		Description: in.Description,
		UserID:      ownerID,
		ImageURL:    in.ImageURL,
		Price:       in.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.c.nextID++
	r.c.items[it.ID] = it
	return &it, nil
}

func (r *Items) Update(_ context.Context, id int64, in domain.ItemRequest) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	it, ok := r.c.items[id]
	if !ok {
		return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	if _, ok := r.c.categories[in.CategoryID]; !ok {
		return domain.Invalid("categoryId", "does not exist")
	}
	it.Name, it.CategoryID, it.Description = in.Name, in.CategoryID, in.Description
	it.ImageURL, it.Price, it.UpdatedAt = in.ImageURL, in.Price, r.c.now()
	r.c.items[id] = it
	return nil
}

func (r *Items) Delete(_ context.Context, id int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.items[id]; !ok {
		return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	delete(r.c.items, id)
	return nil
}

var (
	_ postgres.CategoryRepo = (*Categories)(nil)
	_ postgres.ItemRepo     = (*Items)(nil)
)
