package service

import (
	"context"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
)

// PreferenceService manages per-viewer chat settings and drafts
type PreferenceService struct {
	repo *repository.PreferenceRepository
}

// NewPreferenceService creates a new PreferenceService
func NewPreferenceService(repo *repository.PreferenceRepository) *PreferenceService {
	return &PreferenceService{repo: repo}
}

// GetSettings returns the viewer's settings for chatID
func (s *PreferenceService) GetSettings(ctx context.Context, userID, chatID string) (*domain.ChatSettings, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	return s.repo.GetSettings(ctx, userID, chatID)
}

// UpdateSettings saves the viewer's settings
func (s *PreferenceService) UpdateSettings(ctx context.Context, userID string, settings *domain.ChatSettings) (*domain.ChatSettings, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	if settings.ChatID == "" {
		return nil, common.ErrInvalidInput
	}
	if err := s.repo.SaveSettings(ctx, userID, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveDraft stores the viewer's in-progress message
func (s *PreferenceService) SaveDraft(ctx context.Context, userID, chatID string, req *domain.SaveDraftRequest) (*domain.Draft, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	if chatID == "" {
		return nil, common.ErrInvalidInput
	}
	draft := &domain.Draft{
		ChatID:    chatID,
		Text:      req.Text,
		ReplyToID: req.ReplyToID,
		Mentions:  req.Mentions,
		Files:     req.Files,
	}
	// 빈 초안은 삭제로 처리
	if strings.TrimSpace(draft.Text) == "" && draft.ReplyToID == "" && len(draft.Mentions) == 0 && len(draft.Files) == 0 {
		return nil, s.repo.DeleteDraft(ctx, userID, chatID)
	}
	if err := s.repo.SaveDraft(ctx, userID, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// GetDraft returns the viewer's draft or nil
func (s *PreferenceService) GetDraft(ctx context.Context, userID, chatID string) (*domain.Draft, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	return s.repo.GetDraft(ctx, userID, chatID)
}

// ListDrafts returns all of the viewer's drafts keyed by chat id
func (s *PreferenceService) ListDrafts(ctx context.Context, userID string) (map[string]*domain.Draft, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	return s.repo.FindDrafts(ctx, userID)
}

// DeleteDraft removes the viewer's draft
func (s *PreferenceService) DeleteDraft(ctx context.Context, userID, chatID string) error {
	if userID == "" {
		return common.ErrUnauthenticated
	}
	return s.repo.DeleteDraft(ctx, userID, chatID)
}
