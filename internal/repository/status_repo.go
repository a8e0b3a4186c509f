package repository

import (
	"context"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/tree"
)

// StatusRepository handles user presence records
type StatusRepository struct {
	store *tree.Store
}

// NewStatusRepository creates a new StatusRepository
func NewStatusRepository(store *tree.Store) *StatusRepository {
	return &StatusRepository{store: store}
}

// Set overwrites the user's status and stamps last_active
func (r *StatusRepository) Set(ctx context.Context, scope domain.Scope, status *domain.UserStatus) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	status.LastActive = r.store.Now()
	return r.store.Set(ctx, domain.UserStatusPath(scope.CompanyID, status.UserID), status)
}

// Get returns the user's status, or nil when never set
func (r *StatusRepository) Get(ctx context.Context, scope domain.Scope, userID string) (*domain.UserStatus, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	var status domain.UserStatus
	found, err := r.store.Get(ctx, domain.UserStatusPath(scope.CompanyID, userID), &status)
	if err != nil || !found {
		return nil, err
	}
	return &status, nil
}

// FindCompanyStatuses returns every status in the company keyed by user id
func (r *StatusRepository) FindCompanyStatuses(ctx context.Context, scope domain.Scope) (map[string]*domain.UserStatus, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	snaps, err := r.store.Children(ctx, domain.UserStatusesPath(scope.CompanyID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.UserStatus, len(snaps))
	for _, s := range snaps {
		var st domain.UserStatus
		if err := s.Decode(&st); err != nil {
			continue
		}
		out[s.Key] = &st
	}
	return out, nil
}

// Subscribe calls fn on any presence change in the company
func (r *StatusRepository) Subscribe(scope domain.Scope, fn func()) func() {
	return r.store.Watch(domain.UserStatusesPath(scope.CompanyID), func(string) { fn() })
}
