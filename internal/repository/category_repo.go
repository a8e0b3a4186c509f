package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/tree"
)

// CategoryRepository handles company chat categories
type CategoryRepository struct {
	store *tree.Store
}

// NewCategoryRepository creates a new CategoryRepository
func NewCategoryRepository(store *tree.Store) *CategoryRepository {
	return &CategoryRepository{store: store}
}

// Create stores a new category
func (r *CategoryRepository) Create(ctx context.Context, scope domain.Scope, cat *domain.ChatCategory) (*domain.ChatCategory, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	now := r.store.Now()
	cat.ID = r.store.NewKey()
	cat.CompanyID = scope.CompanyID
	cat.CreatedAt = now
	cat.UpdatedAt = now
	if err := r.store.Set(ctx, domain.CategoryPath(scope.CompanyID, cat.ID), cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// FindByID returns the category or common.ErrCategoryNotFound
func (r *CategoryRepository) FindByID(ctx context.Context, scope domain.Scope, categoryID string) (*domain.ChatCategory, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	var cat domain.ChatCategory
	found, err := r.store.Get(ctx, domain.CategoryPath(scope.CompanyID, categoryID), &cat)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", common.ErrCategoryNotFound, categoryID)
	}
	return &cat, nil
}

// FindAll lists the company's categories by display order
func (r *CategoryRepository) FindAll(ctx context.Context, scope domain.Scope) ([]*domain.ChatCategory, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	snaps, err := r.store.Children(ctx, domain.CategoriesPath(scope.CompanyID))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ChatCategory, 0, len(snaps))
	for _, s := range snaps {
		var c domain.ChatCategory
		if err := s.Decode(&c); err != nil {
			continue
		}
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// Update merge-patches the category
func (r *CategoryRepository) Update(ctx context.Context, scope domain.Scope, categoryID string, fields map[string]interface{}) error {
	if _, err := r.FindByID(ctx, scope, categoryID); err != nil {
		return err
	}
	fields["updated_at"] = r.store.Now()
	return r.store.Update(ctx, domain.CategoryPath(scope.CompanyID, categoryID), fields)
}

// Delete removes the category row only; chat references are cleared by the caller
func (r *CategoryRepository) Delete(ctx context.Context, scope domain.Scope, categoryID string) error {
	if _, err := r.FindByID(ctx, scope, categoryID); err != nil {
		return err
	}
	return r.store.Remove(ctx, domain.CategoryPath(scope.CompanyID, categoryID))
}
