package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/repo/postgres"
	"github.com/mydiary/mall-server/pkg/logger"
)

type CatalogService interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, req domain.CategoryRequest) (*domain.Category, error)
	RenameCategory(ctx context.Context, id int64, req domain.CategoryRequest) error
	DeleteCategory(ctx context.Context, id int64) error

	ListItems(ctx context.Context, f domain.ItemFilter) ([]domain.Item, error)
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	CreateItem(ctx context.Context, ownerID int64, req domain.ItemRequest) (*domain.Item, error)
	UpdateItem(ctx context.Context, userID, id int64, req domain.ItemRequest) error
	DeleteItem(ctx context.Context, userID, id int64) error
}

type catalogService struct {
	categories postgres.CategoryRepo
	items      postgres.ItemRepo
}

func NewCatalogService(categories postgres.CategoryRepo, items postgres.ItemRepo) CatalogService {
	return &catalogService{categories: categories, items: items}
}

func (s *catalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *catalogService) CreateCategory(ctx context.Context, req domain.CategoryRequest) (*domain.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	c, err := s.categories.Create(ctx, req.Name)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	logger.InfoContext(ctx, "Category created", "category_id", c.ID)
	return c, nil
}

func (s *catalogService) RenameCategory(ctx context.Context, id int64, req domain.CategoryRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := domain.Validate(req); err != nil {
		return err
	}
	return s.categories.Rename(ctx, id, req.Name)
}

func (s *catalogService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Category deleted", "category_id", id)
	return nil
}

func (s *catalogService) ListItems(ctx context.Context, f domain.ItemFilter) ([]domain.Item, error) {
	return s.items.List(ctx, f)
}

func (s *catalogService) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	return s.items.Get(ctx, id)
}

func (s *catalogService) CreateItem(ctx context.Context, ownerID int64, req domain.ItemRequest) (*domain.Item, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	it, err := s.items.Create(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Item created", "item_id", it.ID)
	return it, nil
}

func (s *catalogService) UpdateItem(ctx context.Context, userID, id int64, req domain.ItemRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := domain.Validate(req); err != nil {
		return err
	}
	if err := s.requireOwner(ctx, userID, id); err != nil {
		return err
	}
	return s.items.Update(ctx, id, req)
}

func (s *catalogService) DeleteItem(ctx context.Context, userID, id int64) error {
	if err := s.requireOwner(ctx, userID, id); err != nil {
		return err
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Item deleted", "item_id", id)
	return nil
}

func (s *catalogService) requireOwner(ctx context.Context, userID, itemID int64) error {
	it, err := s.items.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if it.UserID != userID {
		return fmt.Errorf("item %d belongs to another user: %w", itemID, domain.ErrForbidden)
	}
	return nil
}
