package domain

import (
	"strings"
	"time"
)

// DeletedMessageText replaces the text of soft-deleted messages
const DeletedMessageText = "This message was deleted"

// MessageStatus is the delivery state of a message
type MessageStatus string

const (
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// MessageType distinguishes user content from system notices
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Message is stored at companies/{c}/messages/{chatId}/{id}
type Message struct {
	ID            string              `json:"id"`
	ChatID        string              `json:"chat_id"`
	Text          string              `json:"text"`
	Type          MessageType         `json:"type,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
	SenderID      string              `json:"sender_id"`
	SenderName    string              `json:"sender_name"`
	Status        MessageStatus       `json:"status"`
	ReadBy        []string            `json:"read_by"`
	Attachments   []Attachment        `json:"attachments,omitempty"`
	Mentions      []string            `json:"mentions,omitempty"`
	Reactions     map[string][]string `json:"reactions,omitempty"`
	ReplyTo       *ReplyRef           `json:"reply_to,omitempty"`
	ForwardedFrom *ForwardRef         `json:"forwarded_from,omitempty"`
	IsEdited      bool                `json:"is_edited"`
	EditedAt      *time.Time          `json:"edited_at,omitempty"`
	EditHistory   []EditRecord        `json:"edit_history,omitempty"`
	IsDeleted     bool                `json:"is_deleted"`
	DeletedAt     *time.Time          `json:"deleted_at,omitempty"`
	IsPinned      bool                `json:"is_pinned"`
}

// ReplyRef snapshots the message being replied to
type ReplyRef struct {
	MessageID  string `json:"message_id"`
	Text       string `json:"text"`
	SenderID   string `json:"sender_id,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
}

// ForwardRef points at the original of a forwarded message
type ForwardRef struct {
	MessageID  string `json:"message_id"`
	ChatID     string `json:"chat_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
}

// EditRecord is a prior version of an edited message
type EditRecord struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// AttachmentType is inferred from the MIME type prefix
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
	AttachmentFile  AttachmentType = "file"
)

// Attachment is a file stored in blob storage and referenced by a message
type Attachment struct {
	ID       string         `json:"id"`
	Type     AttachmentType `json:"type"`
	URL      string         `json:"url"`
	Name     string         `json:"name"`
	Size     int64          `json:"size"`
	MimeType string         `json:"mime_type"`
}

// AttachmentTypeOf maps a MIME type to an attachment type
func AttachmentTypeOf(mimeType string) AttachmentType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return AttachmentImage
	case strings.HasPrefix(mimeType, "video/"):
		return AttachmentVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return AttachmentAudio
	}
	return AttachmentFile
}

// IsReadBy reports whether userID has read the message
func (m *Message) IsReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Mirror builds the chat's last-message summary from the message
func (m *Message) Mirror() *LastMessage {
	return &LastMessage{
		ID:         m.ID,
		Text:       m.Text,
		Timestamp:  m.Timestamp,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
	}
}

// SendMessageRequest is the input for sending a message
type SendMessageRequest struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
	Mentions    []string     `json:"mentions"`
	ReplyToID   string       `json:"reply_to_id"`
}

// EditMessageRequest is the input for editing a message
type EditMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// ReactionRequest names the emoji to add or remove
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// ForwardMessageRequest names the forward target
type ForwardMessageRequest struct {
	TargetChatID string `json:"target_chat_id" binding:"required"`
}

// SearchResult is a message hit with its chat name for display
type SearchResult struct {
	Message  Message `json:"message"`
	ChatName string  `json:"chat_name,omitempty"`
}

// SearchResponse wraps hits. Partial is set when the user's chat index was
// empty and results may not cover every chat the user can see.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Partial bool           `json:"partial"`
}
