package domain

import "time"

type CartItem struct {
	ItemID   int64     `json:"itemId"`
	Name     string    `json:"name"`
	Price    int64     `json:"price"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"addedAt"`
}

type CartAddRequest struct {
	UserID   int64 `json:"userId"`
	ItemID   int64 `json:"itemId" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0,lte=999"`
}

type CartQuantityRequest struct {
	UserID   int64 `json:"userId"`
	Quantity int   `json:"quantity" validate:"required,gt=0,lte=999"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCanceled  OrderStatus = "canceled"
)

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderPending, OrderCompleted, OrderCanceled:
		return OrderStatus(s), true
	default:
		return "", false
	}
}

// CanTransition reports whether an order may move from s to next.
// Only pending orders change state.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return s == OrderPending && (next == OrderCompleted || next == OrderCanceled)
}

type Order struct {
	ID        int64       `json:"id"`
	Reference string      `json:"reference"`
	UserID    int64       `json:"userId"`
	Status    OrderStatus `json:"status"`
	Total     int64       `json:"total"`
	Lines     []OrderLine `json:"items,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type OrderLine struct {
	ItemID    int64  `json:"itemId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

type OrderRequest struct {
	UserID int64 `json:"userId"`
}

type OrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed canceled"`
}
