package service

import (
	"context"
	"fmt"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/repo/postgres"
)

type CartService interface {
	List(ctx context.Context, userID int64) ([]domain.CartItem, error)
	Add(ctx context.Context, userID int64, req domain.CartAddRequest) (int, error)
	SetQuantity(ctx context.Context, userID, itemID int64, req domain.CartQuantityRequest) error
	Remove(ctx context.Context, userID, itemID int64) error
}

type cartService struct {
	cart postgres.CartRepo
}

func NewCartService(cart postgres.CartRepo) CartService {
	return &cartService{cart: cart}
}

// sameUser rejects a body userId that names someone other than the session user.
func sameUser(sessionUserID, bodyUserID int64) error {
	if bodyUserID != 0 && bodyUserID != sessionUserID {
		return fmt.Errorf("userId does not match session: %w", domain.ErrForbidden)
	}
	return nil
}

func (s *cartService) List(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	return s.cart.List(ctx, userID)
}

func (s *cartService) Add(ctx context.Context, userID int64, req domain.CartAddRequest) (int, error) {
	if err := domain.Validate(req); err != nil {
		return 0, err
	}
	if err := sameUser(userID, req.UserID); err != nil {
		return 0, err
	}
	return s.cart.Add(ctx, userID, req.ItemID, req.Quantity)
}

func (s *cartService) SetQuantity(ctx context.Context, userID, itemID int64, req domain.CartQuantityRequest) error {
	if err := domain.Validate(req); err != nil {
		return err
	}
	if err := sameUser(userID, req.UserID); err != nil {
		return err
	}
	return s.cart.SetQuantity(ctx, userID, itemID, req.Quantity)
}

func (s *cartService) Remove(ctx context.Context, userID, itemID int64) error {
	return s.cart.Remove(ctx, userID, itemID)
}
