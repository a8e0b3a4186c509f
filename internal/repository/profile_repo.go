package repository

import (
	"context"
	"errors"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/tree"
	"github.com/damoang/angple-messenger/pkg/cache"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// ProfileRepository handles user profiles and company member lists. Reads go
// through the redis cache when one is configured.
type ProfileRepository struct {
	store *tree.Store
	cache cache.Service
}

// NewProfileRepository creates a new ProfileRepository. cacheService may be nil.
func NewProfileRepository(store *tree.Store, cacheService cache.Service) *ProfileRepository {
	if cacheService == nil {
		cacheService = cache.NewService(nil)
	}
	return &ProfileRepository{store: store, cache: cacheService}
}

// GetProfile returns the profile or nil
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	err := r.cache.GetProfile(ctx, userID, &p)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		pkglogger.GetLogger().Warn().Err(err).Str("user_id", userID).Msg("profile cache read failed")
	}

	found, err := r.store.Get(ctx, domain.ProfilePath(userID), &p)
	if err != nil || !found {
		return nil, err
	}
	if p.ID == "" {
		p.ID = userID
	}
	if err := r.cache.SetProfile(ctx, userID, &p); err != nil {
		pkglogger.GetLogger().Warn().Err(err).Str("user_id", userID).Msg("profile cache write failed")
	}
	return &p, nil
}

// SaveProfile overwrites the profile and drops the cached copy
func (r *ProfileRepository) SaveProfile(ctx context.Context, profile *domain.UserProfile) error {
	if err := r.store.Set(ctx, domain.ProfilePath(profile.ID), profile); err != nil {
		return err
	}
	_ = r.cache.InvalidateProfile(ctx, profile.ID)
	return nil
}

// DisplayName returns the profile display name, falling back to userID
func (r *ProfileRepository) DisplayName(ctx context.Context, userID string) string {
	p, err := r.GetProfile(ctx, userID)
	if err != nil || p == nil || p.DisplayName == "" {
		return userID
	}
	return p.DisplayName
}

// FindMembers lists the company's members
func (r *ProfileRepository) FindMembers(ctx context.Context, scope domain.Scope) ([]*domain.CompanyMember, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	var members []*domain.CompanyMember
	if err := r.cache.GetMembers(ctx, scope.CompanyID, &members); err == nil {
		return members, nil
	}

	snaps, err := r.store.Children(ctx, domain.MembersPath(scope.CompanyID))
	if err != nil {
		return nil, err
	}
	members = make([]*domain.CompanyMember, 0, len(snaps))
	for _, s := range snaps {
		var m domain.CompanyMember
		if err := s.Decode(&m); err != nil {
			continue
		}
		if m.UserID == "" {
			m.UserID = s.Key
		}
		members = append(members, &m)
	}
	_ = r.cache.SetMembers(ctx, scope.CompanyID, members)
	return members, nil
}

// SaveMember adds or replaces a company member
func (r *ProfileRepository) SaveMember(ctx context.Context, scope domain.Scope, member *domain.CompanyMember) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = r.store.Now()
	}
	if err := r.store.Set(ctx, domain.MemberPath(scope.CompanyID, member.UserID), member); err != nil {
		return err
	}
	_ = r.cache.InvalidateMembers(ctx, scope.CompanyID)
	return nil
}
