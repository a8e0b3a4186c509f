package domain

import "time"

// ChatSettings are a viewer's private preferences at users/{uid}/chatSettings/{chatId}
type ChatSettings struct {
	ChatID        string     `json:"chat_id"`
	Notifications bool       `json:"notifications"`
	Muted         bool       `json:"muted"`
	MuteUntil     *time.Time `json:"mute_until,omitempty"`
	Pinned        bool       `json:"pinned"`
	Archived      bool       `json:"archived"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DefaultChatSettings is returned when a viewer never saved settings
func DefaultChatSettings(chatID string) ChatSettings {
	return ChatSettings{ChatID: chatID, Notifications: true}
}

// IsMuted reports whether notifications are suppressed at t
func (s *ChatSettings) IsMuted(t time.Time) bool {
	if !s.Notifications {
		return true
	}
	if !s.Muted {
		return false
	}
	return s.MuteUntil == nil || t.Before(*s.MuteUntil)
}

// Draft is an in-progress compose at users/{uid}/drafts/{chatId}
type Draft struct {
	ChatID    string       `json:"chat_id"`
	Text      string       `json:"text"`
	ReplyToID string       `json:"reply_to_id,omitempty"`
	Mentions  []string     `json:"mentions,omitempty"`
	Files     []Attachment `json:"files,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SaveDraftRequest is the input for saving a draft
type SaveDraftRequest struct {
	Text      string       `json:"text"`
	ReplyToID string       `json:"reply_to_id"`
	Mentions  []string     `json:"mentions"`
	Files     []Attachment `json:"files"`
}
