package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// CategoryService manages company chat categories
type CategoryService struct {
	categories *repository.CategoryRepository
	chats      repository.ChatRepository
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(categories *repository.CategoryRepository, chats repository.ChatRepository) *CategoryService {
	return &CategoryService{categories: categories, chats: chats}
}

// Create adds a category
func (s *CategoryService) Create(ctx context.Context, scope domain.Scope, cat *domain.ChatCategory) (*domain.ChatCategory, error) {
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", common.ErrInvalidInput)
	}
	return s.categories.Create(ctx, scope, cat)
}

// List returns the company's categories in display order
func (s *CategoryService) List(ctx context.Context, scope domain.Scope) ([]*domain.ChatCategory, error) {
	return s.categories.FindAll(ctx, scope)
}

// Update patches name, color, icon, order and default flag
func (s *CategoryService) Update(ctx context.Context, scope domain.Scope, categoryID string, cat *domain.ChatCategory) (*domain.ChatCategory, error) {
	fields := map[string]interface{}{
		"color":      cat.Color,
		"icon":       cat.Icon,
		"order":      cat.Order,
		"is_default": cat.IsDefault,
	}
	if name := strings.TrimSpace(cat.Name); name != "" {
		fields["name"] = name
	}
	if err := s.categories.Update(ctx, scope, categoryID, fields); err != nil {
		return nil, err
	}
	return s.categories.FindByID(ctx, scope, categoryID)
}

// Delete removes the category and clears it from chats; chats are kept
func (s *CategoryService) Delete(ctx context.Context, scope domain.Scope, categoryID string) error {
	if err := s.categories.Delete(ctx, scope, categoryID); err != nil {
		return err
	}
	cleared, err := s.chats.ClearCategory(ctx, scope, categoryID)
	if err != nil {
		return err
	}
	pkglogger.GetLogger().Debug().
		Str("company_id", scope.CompanyID).
		Str("category_id", categoryID).
		Int("chats_cleared", cleared).
		Msg("category deleted")
	return nil
}
