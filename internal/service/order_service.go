package service

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/repo/postgres"
	"github.com/mydiary/mall-server/pkg/events"
	"github.com/mydiary/mall-server/pkg/logger"
)

type OrderService interface {
	// Place creates an order from the cart. replayed reports an Idempotency-Key hit.
	Place(ctx context.Context, userID int64, req domain.OrderRequest, idempotencyKey string) (o *domain.Order, replayed bool, err error)
	List(ctx context.Context, userID int64) ([]domain.Order, error)
	Get(ctx context.Context, userID, id int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, userID, id int64, req domain.OrderStatusRequest) (*domain.Order, error)
	Cancel(ctx context.Context, userID, id int64) (*domain.Order, error)
}

type orderService struct {
	orders    postgres.OrderRepo
	publisher events.Publisher
	now       func() time.Time
}

func NewOrderService(orders postgres.OrderRepo, publisher events.Publisher) OrderService {
	return &orderService{orders: orders, publisher: publisher, now: time.Now}
}

func (s *orderService) Place(ctx context.Context, userID int64, req domain.OrderRequest, idempotencyKey string) (*domain.Order, bool, error) {
	if err := sameUser(userID, req.UserID); err != nil {
		return nil, false, err
	}
	if len(idempotencyKey) > 255 {
		return nil, false, domain.Invalid("Idempotency-Key", "must be at most 255 characters")
	}

	o, replayed, err := s.orders.CreateFromCart(ctx, postgres.NewOrder{
		UserID:         userID,
		Reference:      ksuid.New().String(),
		IdempotencyKey: idempotencyKey,
		Now:            s.now(),
	})
	if err != nil {
		return nil, false, err
	}
	if replayed {
		logger.InfoContext(ctx, "Order replayed for idempotency key", "order_id", o.ID)
		return o, true, nil
	}

	logger.InfoContext(ctx, "Order placed", "order_id", o.ID, "reference", o.Reference, "total", o.Total)
	events.Emit(ctx, s.publisher, events.OrderCreated, orderEvent(o, s.now()))
	return o, false, nil
}

func (s *orderService) List(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.orders.List(ctx, userID)
}

func (s *orderService) Get(ctx context.Context, userID, id int64) (*domain.Order, error) {
	return s.orders.Get(ctx, userID, id)
}

func (s *orderService) UpdateStatus(ctx context.Context, userID, id int64, req domain.OrderStatusRequest) (*domain.Order, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	next, _ := domain.ParseOrderStatus(req.Status)
	return s.transition(ctx, userID, id, next)
}

func (s *orderService) Cancel(ctx context.Context, userID, id int64) (*domain.Order, error) {
	return s.transition(ctx, userID, id, domain.OrderCanceled)
}

func (s *orderService) transition(ctx context.Context, userID, id int64, next domain.OrderStatus) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(next) {
		return nil, fmt.Errorf("order %d is %s: %w", id, o.Status, domain.ErrConflict)
	}

	now := s.now()
	ok, err := s.orders.UpdateStatus(ctx, userID, id, next, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %d changed concurrently: %w", id, domain.ErrConflict)
	}
	o.Status, o.UpdatedAt = next, now

	subject := events.OrderUpdated
	if next == domain.OrderCanceled {
		subject = events.OrderCanceled
	}
	logger.InfoContext(ctx, "Order status changed", "order_id", id, "status", next)
	events.Emit(ctx, s.publisher, subject, orderEvent(o, now))
	return o, nil
}

func orderEvent(o *domain.Order, at time.Time) events.OrderEvent {
	return events.OrderEvent{
		OrderID:    o.ID,
		Reference:  o.Reference,
		UserID:     o.UserID,
		Status:     string(o.Status),
		Total:      o.Total,
		OccurredAt: at,
	}
}
