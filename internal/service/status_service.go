package service

import (
	"context"
	"fmt"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
)

// StatusService manages presence
type StatusService struct {
	repo *repository.StatusRepository
}

// NewStatusService creates a new StatusService
func NewStatusService(repo *repository.StatusRepository) *StatusService {
	return &StatusService{repo: repo}
}

// SetStatus overwrites userID's presence
func (s *StatusService) SetStatus(ctx context.Context, scope domain.Scope, userID string, req *domain.SetStatusRequest) (*domain.UserStatus, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrInvalidInput, req.Status)
	}
	status := &domain.UserStatus{UserID: userID, Status: req.Status, CustomStatus: req.CustomStatus}
	if err := s.repo.Set(ctx, scope, status); err != nil {
		return nil, err
	}
	return status, nil
}

// GetStatus returns a user's presence; users that never set one are offline
func (s *StatusService) GetStatus(ctx context.Context, scope domain.Scope, userID string) (*domain.UserStatus, error) {
	status, err := s.repo.Get(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		status = &domain.UserStatus{UserID: userID, Status: domain.PresenceOffline}
	}
	return status, nil
}

// ListStatuses returns all presence records of the company
func (s *StatusService) ListStatuses(ctx context.Context, scope domain.Scope) (map[string]*domain.UserStatus, error) {
	return s.repo.FindCompanyStatuses(ctx, scope)
}

// Subscribe fires fn on any presence change in the company
func (s *StatusService) Subscribe(scope domain.Scope, fn func()) func() {
	return s.repo.Subscribe(scope, fn)
}
