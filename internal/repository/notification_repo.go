package repository

import (
	"context"
	"sort"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/tree"
)

// NotificationRepository handles per-user notifications
type NotificationRepository struct {
	store *tree.Store
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(store *tree.Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

// Create stores n for n.UserID
func (r *NotificationRepository) Create(ctx context.Context, scope domain.Scope, n *domain.Notification) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	n.ID = r.store.NewKey()
	n.CreatedAt = r.store.Now()
	return r.store.Set(ctx, domain.NotificationPath(scope.CompanyID, n.UserID, n.ID), n)
}

// CreateBatch stores several notifications in one commit
func (r *NotificationRepository) CreateBatch(ctx context.Context, scope domain.Scope, list []*domain.Notification) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	now := r.store.Now()
	ops := make([]tree.Op, 0, len(list))
	for _, n := range list {
		n.ID = r.store.NewKey()
		n.CreatedAt = now
		ops = append(ops, tree.SetOp(domain.NotificationPath(scope.CompanyID, n.UserID, n.ID), n))
	}
	return r.store.Commit(ctx, ops...)
}

// FindByUser returns the user's notifications, newest first
func (r *NotificationRepository) FindByUser(ctx context.Context, scope domain.Scope, userID string, limit int) ([]*domain.Notification, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	snaps, err := r.store.LastChildren(ctx, domain.NotificationsPath(scope.CompanyID, userID), limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Notification, 0, len(snaps))
	for i := len(snaps) - 1; i >= 0; i-- {
		var n domain.Notification
		if err := snaps[i].Decode(&n); err != nil {
			continue
		}
		out = append(out, &n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UnreadCount counts unread notifications
func (r *NotificationRepository) UnreadCount(ctx context.Context, scope domain.Scope, userID string) (int, error) {
	if err := requireScope(scope); err != nil {
		return 0, err
	}
	snaps, err := r.store.Children(ctx, domain.NotificationsPath(scope.CompanyID, userID))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, s := range snaps {
		var n domain.Notification
		if err := s.Decode(&n); err == nil && !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead marks one notification read
func (r *NotificationRepository) MarkRead(ctx context.Context, scope domain.Scope, userID, notificationID string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	path := domain.NotificationPath(scope.CompanyID, userID, notificationID)
	found, err := r.store.Exists(ctx, path)
	if err != nil || !found {
		return err
	}
	return r.store.Update(ctx, path, map[string]interface{}{"read": true})
}

// MarkAllRead marks every notification of the user read in one commit
func (r *NotificationRepository) MarkAllRead(ctx context.Context, scope domain.Scope, userID string) (int, error) {
	if err := requireScope(scope); err != nil {
		return 0, err
	}
	snaps, err := r.store.Children(ctx, domain.NotificationsPath(scope.CompanyID, userID))
	if err != nil {
		return 0, err
	}
	var ops []tree.Op
	for _, s := range snaps {
		var n domain.Notification
		if err := s.Decode(&n); err == nil && !n.Read {
			ops = append(ops, tree.UpdateOp(s.Path, map[string]interface{}{"read": true}))
		}
	}
	if len(ops) == 0 {
		return 0, nil
	}
	return len(ops), r.store.Commit(ctx, ops...)
}
