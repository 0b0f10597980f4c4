package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/repo/postgres"
)

type cartKey struct{ userID, itemID int64 }

type Cart struct {
	mu      sync.Mutex
	catalog *Catalog
	lines   map[cartKey]domain.CartItem
}

func NewCart(catalog *Catalog) *Cart {
	return &Cart{catalog: catalog, lines: make(map[cartKey]domain.CartItem)}
}

func (r *Cart) List(_ context.Context, userID int64) ([]domain.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(userID), nil
}

func (r *Cart) listLocked(userID int64) []domain.CartItem {
	out := make([]domain.CartItem, 0)
	for k, line := range r.lines {
		if k.userID != userID {
			continue
		}
		if it, ok := r.catalog.item(k.itemID); ok {
			line.Name, line.Price = it.Name, it.Price
		}
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

func (r *Cart) Add(_ context.Context, userID, itemID int64, quantity int) (int, error) {
	if _, ok := r.catalog.item(itemID); !ok {
		return 0, fmt.Errorf("item %d: %w", itemID, domain.ErrNotFound)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := cartKey{userID, itemID}
	line, ok := r.lines[k]
	if !ok {
		line = domain.CartItem{ItemID: itemID, AddedAt: r.catalog.now()}
	}
	line.Quantity += quantity
	r.lines[k] = line
	return line.Quantity, nil
}

func (r *Cart) SetQuantity(_ context.Context, userID, itemID int64, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := cartKey{userID, itemID}
	line, ok := r.lines[k]
	if !ok {
		return fmt.Errorf("cart item %d: %w", itemID, domain.ErrNotFound)
	}
	line.Quantity = quantity
	r.lines[k] = line
	return nil
}

func (r *Cart) Remove(_ context.Context, userID, itemID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := cartKey{userID, itemID}
	if _, ok := r.lines[k]; !ok {
		return fmt.Errorf("cart item %d: %w", itemID, domain.ErrNotFound)
	}
	delete(r.lines, k)
	return nil
}

type idemKey struct {
	userID int64
	key    string
}

type Orders struct {
	mu     sync.Mutex
	cart   *Cart
	orders map[int64]*domain.Order
	keys   map[idemKey]int64
	nextID int64
}

func NewOrders(cart *Cart) *Orders {
	return &Orders{cart: cart, orders: make(map[int64]*domain.Order), keys: make(map[idemKey]int64), nextID: 1}
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &c
}

func (r *Orders) CreateFromCart(_ context.Context, in postgres.NewOrder) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in.IdempotencyKey != "" {
		if id, ok := r.keys[idemKey{in.UserID, in.IdempotencyKey}]; ok {
			return copyOrder(r.orders[id]), true, nil
		}
	}

	r.cart.mu.Lock()
	defer r.cart.mu.Unlock()
	lines := r.cart.listLocked(in.UserID)
	if len(lines) == 0 {
		return nil, false, postgres.ErrCartEmpty
	}

	o := &domain.Order{
		ID:        r.nextID,
		Reference: in.Reference,
		UserID:    in.UserID,
		Status:    domain.OrderPending,
		CreatedAt: in.Now,
		UpdatedAt: in.Now,
	}
	r.nextID++
	for _, l := range lines {
		o.Lines = append(o.Lines, domain.OrderLine{ItemID: l.ItemID, Name: l.Name, UnitPrice: l.Price, Quantity: l.Quantity})
		o.Total += l.Price * int64(l.Quantity)
		delete(r.cart.lines, cartKey{in.UserID, l.ItemID})
	}
	r.orders[o.ID] = o
	if in.IdempotencyKey != "" {
		r.keys[idemKey{in.UserID, in.IdempotencyKey}] = o.ID
	}
	return copyOrder(o), false, nil
}

func (r *Orders) List(_ context.Context, userID int64) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			c := *o
			c.Lines = nil
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Orders) Get(_ context.Context, userID, id int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.UserID != userID {
		return nil, fmt.Errorf("order: %w", domain.ErrNotFound)
	}
	return copyOrder(o), nil
}

func (r *Orders) UpdateStatus(_ context.Context, userID, id int64, status domain.OrderStatus, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.UserID != userID || o.Status != domain.OrderPending {
		return false, nil
	}
	o.Status, o.UpdatedAt = status, now
	return true, nil
}

var (
	_ postgres.CartRepo  = (*Cart)(nil)
	_ postgres.OrderRepo = (*Orders)(nil)
)
