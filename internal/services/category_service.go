package services

import (
	"context"
	"fmt"

	"finance/internal/core"
	"finance/internal/ports"
)

// CategoryService resolves category names for the transaction workflow.
type CategoryService struct {
	categories ports.CategoryReader
}

func NewCategoryService(categories ports.CategoryReader) *CategoryService {
	return &CategoryService{categories: categories}
}

// FindOneByName returns (nil, nil) when no category has exactly this name.
func (s *CategoryService) FindOneByName(ctx context.Context, name string) (*core.Category, error) {
	c, err := s.categories.FindCategoryByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find category %q: %w", name, err)
	}
	return c, nil
}

func (s *CategoryService) ListCategories(ctx context.Context) ([]core.Category, error) {
	cats, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// resolve is FindOneByName with absence turned into ErrCategoryNotFound.
func (s *CategoryService) resolve(ctx context.Context, name string) (core.Category, error) {
	c, err := s.FindOneByName(ctx, name)
	if err != nil {
		return core.Category{}, err
	}
	if c == nil {
		return core.Category{}, fmt.Errorf("%w: %s", core.ErrCategoryNotFound, name)
	}
	return *c, nil
}
