package repository

import (
	"context"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/tree"
)

// PreferenceRepository handles per-viewer chat settings and drafts. Both are
// keyed under the user so they stay private.
type PreferenceRepository struct {
	store *tree.Store
}

// NewPreferenceRepository creates a new PreferenceRepository
func NewPreferenceRepository(store *tree.Store) *PreferenceRepository {
	return &PreferenceRepository{store: store}
}

// GetSettings returns saved settings or the defaults
func (r *PreferenceRepository) GetSettings(ctx context.Context, userID, chatID string) (*domain.ChatSettings, error) {
	settings := domain.DefaultChatSettings(chatID)
	if _, err := r.store.Get(ctx, domain.ChatSettingsPath(userID, chatID), &settings); err != nil {
		return nil, err
	}
	settings.ChatID = chatID
	return &settings, nil
}

// SaveSettings overwrites the user's settings for the chat
func (r *PreferenceRepository) SaveSettings(ctx context.Context, userID string, settings *domain.ChatSettings) error {
	settings.UpdatedAt = r.store.Now()
	return r.store.Set(ctx, domain.ChatSettingsPath(userID, settings.ChatID), settings)
}

// SaveDraft overwrites the user's draft for the chat
func (r *PreferenceRepository) SaveDraft(ctx context.Context, userID string, draft *domain.Draft) error {
	draft.UpdatedAt = r.store.Now()
	return r.store.Set(ctx, domain.DraftPath(userID, draft.ChatID), draft)
}

// GetDraft returns the draft or nil
func (r *PreferenceRepository) GetDraft(ctx context.Context, userID, chatID string) (*domain.Draft, error) {
	var d domain.Draft
	found, err := r.store.Get(ctx, domain.DraftPath(userID, chatID), &d)
	if err != nil || !found {
		return nil, err
	}
	return &d, nil
}

// DeleteDraft removes the draft; absent drafts are fine
func (r *PreferenceRepository) DeleteDraft(ctx context.Context, userID, chatID string) error {
	return r.store.Remove(ctx, domain.DraftPath(userID, chatID))
}

// FindDrafts returns all of the user's drafts keyed by chat id
func (r *PreferenceRepository) FindDrafts(ctx context.Context, userID string) (map[string]*domain.Draft, error) {
	snaps, err := r.store.Children(ctx, domain.DraftsPath(userID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Draft, len(snaps))
	for _, s := range snaps {
		var d domain.Draft
		if err := s.Decode(&d); err != nil {
			continue
		}
		out[s.Key] = &d
	}
	return out, nil
}
